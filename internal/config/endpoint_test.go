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

package config

import (
	"os/user"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currentUser(t *testing.T) *user.User {
	t.Helper()
	u, err := user.Current()
	if err != nil {
		t.Skipf("no current user available: %v", err)
	}
	if u.Uid == "0" {
		t.Skip("running as root, can't exercise the non-root user path")
	}
	return u
}

func TestBuildEndpointsMinimalConfig(t *testing.T) {
	u := currentUser(t)

	tree := Tree{
		{Key: "user", Val: u.Username},
		{
			Key: "backup",
			Val: "host1:/srv/data",
			Block: []Entry{
				{Key: "root", MVal: []string{"/srv/backup/host1"}},
				{Key: "hourly", Val: "6"},
			},
		},
	}

	eps, errs := BuildEndpoints(tree, time.Now())
	require.Empty(t, errs)
	require.Len(t, eps, 1)

	ep := eps[0]
	assert.Equal(t, "host1", ep.Hostname)
	assert.Equal(t, "/srv/data", ep.RPath)
	assert.Equal(t, "/srv/backup/host1", ep.Root)
	assert.True(t, ep.CreateRoot, "expected createroot to default true")
	require.Len(t, ep.Intervals, 1)
	assert.Equal(t, "hourly", ep.Intervals[0].Name)
}

func TestBuildEndpointsRejectsOverlappingRoots(t *testing.T) {
	u := currentUser(t)

	tree := Tree{
		{Key: "user", Val: u.Username},
		{
			Key: "backup",
			Val: "host1:/srv/data",
			Block: []Entry{
				{Key: "root", MVal: []string{"/srv/backup"}},
				{Key: "hourly", Val: "6"},
			},
		},
		{
			Key: "backup",
			Val: "host2:/srv/data",
			Block: []Entry{
				{Key: "root", MVal: []string{"/srv/backup/nested"}},
				{Key: "hourly", Val: "6"},
			},
		},
	}

	eps, errs := BuildEndpoints(tree, time.Now())
	assert.Len(t, eps, 1, "expected the overlapping endpoint to be skipped")
	assert.NotEmpty(t, errs, "expected an overlap error")
}

func TestBuildEndpointsRejectsMissingInterval(t *testing.T) {
	u := currentUser(t)

	tree := Tree{
		{Key: "user", Val: u.Username},
		{
			Key: "backup",
			Val: "host1:/srv/data",
			Block: []Entry{
				{Key: "root", MVal: []string{"/srv/backup/host1"}},
			},
		},
	}

	eps, errs := BuildEndpoints(tree, time.Now())
	assert.Empty(t, eps)
	assert.NotEmpty(t, errs, "expected an error about missing intervals")
}
