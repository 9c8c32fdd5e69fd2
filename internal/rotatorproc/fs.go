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

package rotatorproc

import (
	"os"
	"time"
)

// dirFS implements rotate.FS against the process's current working
// directory. The rotator chroots into the endpoint path and chdirs to
// "/" before touching any snapshot, so every name it works with is
// already a bare, trusted path component relative to cwd.
type dirFS struct{}

func (dirFS) StatSnapshot(name string) (time.Time, bool, error) {
	st, err := os.Lstat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return st.ModTime(), true, nil
}

func (dirFS) Rename(oldName, newName string) error {
	return os.Rename(oldName, newName)
}

func (dirFS) RemoveTree(name string) error {
	return os.RemoveAll(name)
}
