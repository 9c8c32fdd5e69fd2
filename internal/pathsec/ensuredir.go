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
	"path"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const relaxDefault = RelaxGroupRead | RelaxGroupExec | RelaxOtherRead | RelaxOtherExec

// pbits is the set of bits SecureEnsureDir accepts in mode: the file
// access permission bits (owner/group/other rwx plus setuid/setgid/sticky),
// no file-type bits.
const pbits uint32 = unix.S_ISUID | unix.S_ISGID | unix.S_ISVTX | unix.S_IRWXU | unix.S_IRWXG | unix.S_IRWXO

// wbits is the set of bits that would make a directory group- or
// other-writable; SecureEnsureDir refuses to create one.
const wbits uint32 = unix.S_IWGRP | unix.S_IWOTH

// SecureEnsureDir idempotently makes sure p exists as a directory with
// mode and gid, creating missing path components as needed. It refuses to
// run unless every existing component of p already passes TrustedPath
// with the fixed relax mask (group/other read+execute), and it refuses
// mode values that would make the directory group- or other-writable.
// updated reports whether anything was created or had its mode/owner
// changed.
func SecureEnsureDir(p string, mode uint32, gid int) (updated bool, err error) {
	if mode&^pbits != 0 {
		return false, errors.New("pathsec: mode has non-permission bits set")
	}
	if mode&wbits != 0 {
		return false, errors.New("pathsec: refusing group/other writable mode")
	}

	res, err := TrustedPath(p, relaxDefault, gid)
	if err != nil {
		return false, errors.Wrap(err, "pathsec: trustedpath")
	}
	if !res.Trusted {
		return false, errors.New("pathsec: path is not trusted")
	}

	abs, err := NormalizePath(p, false)
	if err != nil {
		return false, err
	}

	comps := strings.Split(strings.Trim(abs, "/"), "/")
	cur := "/"
	for _, comp := range comps {
		if comp == "" {
			continue
		}
		cur = path.Join(cur, comp)

		var st unix.Stat_t
		err := unix.Lstat(cur, &st)
		switch {
		case err == nil:
			continue
		case errors.Is(err, unix.ENOENT):
			if err := unix.Mkdir(cur, mode); err != nil {
				return updated, errors.Wrapf(err, "pathsec: mkdir %s", cur)
			}
			updated = true
		default:
			return updated, errors.Wrapf(err, "pathsec: lstat %s", cur)
		}
	}

	var st unix.Stat_t
	if err := unix.Lstat(abs, &st); err != nil {
		return updated, errors.Wrapf(err, "pathsec: lstat %s", abs)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return updated, errors.Errorf("pathsec: %s exists and is not a directory", abs)
	}

	if st.Mode&pbits != mode {
		if err := unix.Chmod(abs, mode); err != nil {
			return updated, errors.Wrapf(err, "pathsec: chmod %s", abs)
		}
		updated = true
	}
	if gid >= 0 && int(st.Gid) != gid {
		if err := unix.Chown(abs, int(st.Uid), gid); err != nil {
			return updated, errors.Wrapf(err, "pathsec: chown %s", abs)
		}
		updated = true
	}

	return updated, nil
}
