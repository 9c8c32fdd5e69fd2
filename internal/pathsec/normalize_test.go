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

package pathsec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in        string
		withSlash bool
		want      string
	}{
		{"/a/b/../c", false, "/a/c"},
		{"/a//b/", false, "/a/b"},
		{"/a/b", true, "/a/b/"},
		{"/", true, "/"},
	}
	for _, c := range cases {
		got, err := NormalizePath(c.in, c.withSlash)
		require.NoErrorf(t, err, "NormalizePath(%q)", c.in)
		assert.Equalf(t, c.want, got, "NormalizePath(%q, %v)", c.in, c.withSlash)
	}
}

func TestNormalizePathComponent(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/srv/backup", "_srv_backup", false},
		{"srv//backup///", "srv_backup", false},
		{".", "", true},
		{"..", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := NormalizePathComponent(c.in)
		if c.wantErr {
			assert.Errorf(t, err, "NormalizePathComponent(%q): expected error", c.in)
			continue
		}
		require.NoErrorf(t, err, "NormalizePathComponent(%q)", c.in)
		assert.Equalf(t, c.want, got, "NormalizePathComponent(%q)", c.in)
	}
}

func TestInRoot(t *testing.T) {
	inRoot, isSubdir, err := InRoot("/srv/backup", "/srv/backup/host1")
	require.NoError(t, err)
	assert.True(t, inRoot && isSubdir, "expected /srv/backup/host1 to be a subdir of /srv/backup")

	inRoot, isSubdir, err = InRoot("/srv/backup", "/srv/backup")
	require.NoError(t, err)
	assert.True(t, inRoot, "expected /srv/backup to be in its own root")
	assert.False(t, isSubdir, "expected /srv/backup not to be a subdir of itself")

	inRoot, _, err = InRoot("/srv/backup", "/srv/other")
	require.NoError(t, err)
	assert.False(t, inRoot, "expected /srv/other not to be in /srv/backup")
}
