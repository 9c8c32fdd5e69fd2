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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchFileFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snaps.conf")
	require.NoError(t, os.WriteFile(path, []byte("user x\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	require.NoError(t, WatchFile(ctx, path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	// give the watcher goroutine time to register the directory before
	// the write it needs to observe happens.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("user y\n"), 0644))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called after writing the watched file")
	}
}

func TestWatchFileIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snaps.conf")
	require.NoError(t, os.WriteFile(path, []byte("user x\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	require.NoError(t, WatchFile(ctx, path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	time.Sleep(50 * time.Millisecond)

	other := filepath.Join(dir, "unrelated")
	require.NoError(t, os.WriteFile(other, []byte("noise"), 0644))

	select {
	case <-changed:
		t.Fatal("onChange fired for an unrelated file")
	case <-time.After(400 * time.Millisecond):
	}
}
