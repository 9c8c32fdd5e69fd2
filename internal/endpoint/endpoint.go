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

// Package endpoint defines the resolved, ready-to-run description of one
// configured backup: which remote host and path to pull from, which local
// root to store snapshots in, and the uid/gid the syncer must drop to.
package endpoint

import (
	"fmt"

	"github.com/snapsd/snapsd/internal/snapmodel"
)

// UnsharedGID is the sentinel value meaning "no shared group id was
// configured"; Go's zero value for an int would be a legitimate gid, so
// a negative sentinel is used instead.
const UnsharedGID = -1

// Endpoint is one fully-resolved backup target.
type Endpoint struct {
	RUser    string
	Hostname string
	RPath    string

	// Root is the configured backup root as written in the config file,
	// shared across every endpoint that points into the same tree.
	Root string
	// Path is Root with the endpoint's hostname/rpath folded in as a
	// single normalized component: the directory a rotator/syncer pair
	// actually chroots into and stores snapshots under.
	Path       string
	CreateRoot bool
	SharedGID  int
	UID        int
	GID        int
	Intervals  snapmodel.Intervals
	RsyncBin   string
	RsyncArgs  []string
	RsyncExit  []int
	ExecHook   string
}

// ID returns the identification string this endpoint is known by,
// "ruser@hostname:rpath", used for uniqueness checks and log lines.
func (e Endpoint) ID() string {
	return fmt.Sprintf("%s@%s:%s", e.RUser, e.Hostname, e.RPath)
}

// AcceptsExit reports whether a given rsync exit code is considered
// successful for this endpoint. Exit code 0 is always accepted; any
// additional codes come from the rsyncexit setting.
func (e Endpoint) AcceptsExit(code int) bool {
	if code == 0 {
		return true
	}
	for _, c := range e.RsyncExit {
		if c == code {
			return true
		}
	}
	return false
}
