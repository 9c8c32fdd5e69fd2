/*
   Copyright The containerd Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snapsd/snapsd/internal/endpoint"
	"github.com/snapsd/snapsd/internal/ipc"
)

func TestDecideRotationNoPostexecSuccess(t *testing.T) {
	ep := endpoint.Endpoint{}
	assert.Equal(t, ipc.RotInclude, decideRotation(ep, 0, nil))
}

func TestDecideRotationNoPostexecFailure(t *testing.T) {
	ep := endpoint.Endpoint{}
	assert.Equal(t, ipc.RotCleanup, decideRotation(ep, 23, nil))
}

func TestDecideRotationNoPostexecAcceptedExit(t *testing.T) {
	ep := endpoint.Endpoint{RsyncExit: []int{24}}
	assert.Equal(t, ipc.RotInclude, decideRotation(ep, 24, nil))
}

// Open Question (b): when a postexec hook is configured, its exit code
// fully replaces the syncer's for the rotator decision — a failing
// syncer exit is irrelevant once postexec reports success, and a
// succeeding syncer exit does not save a failing postexec.
func TestDecideRotationPostexecOverridesFailingSyncer(t *testing.T) {
	ep := endpoint.Endpoint{}
	poxExit := 0
	assert.Equal(t, ipc.RotInclude, decideRotation(ep, 23, &poxExit))
}

func TestDecideRotationPostexecOverridesSucceedingSyncer(t *testing.T) {
	ep := endpoint.Endpoint{}
	poxExit := 1
	assert.Equal(t, ipc.RotCleanup, decideRotation(ep, 0, &poxExit))
}

func TestDecideRotationPostexecIgnoresRsyncExitAllowList(t *testing.T) {
	ep := endpoint.Endpoint{RsyncExit: []int{24}}
	poxExit := 1
	assert.Equal(t, ipc.RotCleanup, decideRotation(ep, 24, &poxExit),
		"rsyncexit allow-list must not apply once postexec ran")
}
