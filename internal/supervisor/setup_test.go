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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapsd/snapsd/internal/endpoint"
)

func requiresRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
}

// trustedTempDir returns a fresh directory directly under "/". The default
// temp dir sits under a world-writable directory, which PrepareEndpoints
// rightly treats as untrusted.
func trustedTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/", "snapsd-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestPrepareEndpointsRejectsRelativeRoot(t *testing.T) {
	ep := endpoint.Endpoint{RUser: "u", Hostname: "h", RPath: "p", Root: "relative/path", Path: "relative/path/h/p"}
	kept := PrepareEndpoints(context.Background(), []endpoint.Endpoint{ep})
	assert.Empty(t, kept, "expected endpoint with relative root to be dropped")
}

func TestPrepareEndpointsRejectsMissingRootWithoutCreateRoot(t *testing.T) {
	requiresRoot(t)

	dir := trustedTempDir(t)
	root := filepath.Join(dir, "does-not-exist")
	ep := endpoint.Endpoint{
		RUser: "u", Hostname: "h", RPath: "p",
		Root: root, Path: filepath.Join(root, "h", "p"),
		SharedGID: endpoint.UnsharedGID,
	}
	kept := PrepareEndpoints(context.Background(), []endpoint.Endpoint{ep})
	assert.Empty(t, kept, "expected endpoint with missing, not-createroot root to be dropped")
}

func TestPrepareEndpointsCreatesRootAndPath(t *testing.T) {
	requiresRoot(t)

	dir := trustedTempDir(t)
	root := filepath.Join(dir, "backup-root")
	ep := endpoint.Endpoint{
		RUser: "u", Hostname: "h", RPath: "p",
		Root: root, Path: filepath.Join(root, "h", "p"),
		CreateRoot: true,
		SharedGID:  endpoint.UnsharedGID,
	}

	kept := PrepareEndpoints(context.Background(), []endpoint.Endpoint{ep})
	require.Len(t, kept, 1, "expected endpoint to be kept")

	for _, p := range []string{root, ep.Path} {
		st, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, st.IsDir(), "%s is not a directory", p)
	}
}
