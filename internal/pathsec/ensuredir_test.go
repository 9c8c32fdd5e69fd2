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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func requiresRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
}

// trustedTempDir returns a fresh directory directly under "/". The default
// temp dir sits under a world-writable directory, which TrustedPath (and so
// SecureEnsureDir) rightly refuses.
func trustedTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/", "snapsd-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// TestSecureEnsureDirAppliesModeToIntermediateComponents guards against a
// regression where intermediate path components created by the component
// walk kept a hardcoded mode instead of the caller-supplied one, so
// anything but the leaf directory was silently stuck ungrouped.
func TestSecureEnsureDirAppliesModeToIntermediateComponents(t *testing.T) {
	requiresRoot(t)

	dir := trustedTempDir(t)
	leaf := filepath.Join(dir, "a", "b", "c")

	updated, err := SecureEnsureDir(leaf, unix.S_IRWXU|unix.S_IRGRP|unix.S_IXGRP, os.Getgid())
	require.NoError(t, err)
	assert.True(t, updated)

	for _, p := range []string{filepath.Join(dir, "a"), filepath.Join(dir, "a", "b"), leaf} {
		var st unix.Stat_t
		require.NoError(t, unix.Lstat(p, &st))
		assert.Equalf(t, uint32(unix.S_IRWXU|unix.S_IRGRP|unix.S_IXGRP), st.Mode&pbits,
			"%s: intermediate component did not get the caller-supplied mode", p)
	}
}
