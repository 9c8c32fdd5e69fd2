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

package ipc

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// NewChannelPair creates a connected pair of *os.File command channels
// backed by a SOCK_STREAM socketpair, one end for the parent supervisor
// and one to hand to a re-exec'd child via (*exec.Cmd).ExtraFiles. Both
// ends are non-inheritable by any further children by default
// (SOCK_CLOEXEC); the child's copy of its end is explicitly re-inherited
// through ExtraFiles before exec, matching the C original's
// socketpair(..., SOCK_CLOEXEC, ...) plus per-child dup-and-clear-cloexec
// dance.
func NewChannelPair() (parent, child *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "ipc: socketpair")
	}
	return os.NewFile(uintptr(fds[0]), "snapsd-cmd-parent"),
		os.NewFile(uintptr(fds[1]), "snapsd-cmd-child"),
		nil
}
