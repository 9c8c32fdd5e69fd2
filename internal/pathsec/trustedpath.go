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
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SymloopMax bounds the number of symlinks resolved while walking a path,
// matching the conventional MAXSYMLINKS value enforced by most libc
// realpath(3) implementations.
const SymloopMax = 40

// RelaxMask is the set of permission bits TrustedPath allows the final
// path component to carry beyond owner bits. Only group/other read and
// execute bits may be relaxed; anything else makes the component
// untrusted.
type RelaxMask uint32

const (
	RelaxGroupRead RelaxMask = RelaxMask(unix.S_IRGRP)
	RelaxGroupExec RelaxMask = RelaxMask(unix.S_IXGRP)
	RelaxOtherRead RelaxMask = RelaxMask(unix.S_IROTH)
	RelaxOtherExec RelaxMask = RelaxMask(unix.S_IXOTH)
)

const relaxSupported = RelaxGroupRead | RelaxGroupExec | RelaxOtherRead | RelaxOtherExec

// TrustResult is the outcome of a TrustedPath check.
type TrustResult struct {
	Trusted bool
	Exists  bool
}

// TrustedPath walks p component by component, starting from "/", and
// reports whether every existing component is owned by uid 0, carries no
// group/other write bit, and — for the final component only — has
// permission bits that are a subset of relax and (if gid >= 0) belongs to
// gid. Symlinks are resolved in place, bounded by SymloopMax.
//
// A path with a non-existing final component is still "trusted" as long
// as everything that does exist passes the checks; Exists reports whether
// the full path resolved to something on disk.
func TrustedPath(p string, relax RelaxMask, gid int) (TrustResult, error) {
	if relax&^relaxSupported != 0 {
		return TrustResult{}, errors.New("pathsec: unsupported relax bits")
	}
	if p == "" {
		return TrustResult{}, os.ErrNotExist
	}

	var rootSt unix.Stat_t
	if err := unix.Lstat("/", &rootSt); err != nil {
		return TrustResult{}, errors.Wrap(err, "pathsec: lstat /")
	}
	if rootSt.Mode&unix.S_IFMT != unix.S_IFDIR {
		return TrustResult{}, errors.New("pathsec: / is not a directory")
	}
	if rootSt.Uid != 0 || rootSt.Mode&(unix.S_IWGRP|unix.S_IWOTH) != 0 {
		return TrustResult{Trusted: false}, nil
	}

	abs, err := NormalizePath(p, false)
	if err != nil {
		return TrustResult{}, err
	}

	exists := true
	symlinks := 0
	comps := strings.Split(strings.Trim(abs, "/"), "/")
	cur := "/"

	var finalSt unix.Stat_t
	haveFinalSt := false

	for idx := 0; idx < len(comps); idx++ {
		comp := comps[idx]
		if comp == "" {
			continue
		}
		cur = path.Join(cur, comp)

		var st unix.Stat_t
		if err := unix.Lstat(cur, &st); err != nil {
			if errors.Is(err, unix.ENOENT) {
				exists = false
				haveFinalSt = false
				break
			}
			return TrustResult{}, errors.Wrapf(err, "pathsec: lstat %s", cur)
		}

		if st.Uid != 0 || st.Mode&(unix.S_IWGRP|unix.S_IWOTH) != 0 {
			return TrustResult{Trusted: false}, nil
		}

		if st.Mode&unix.S_IFMT == unix.S_IFLNK {
			symlinks++
			if symlinks > SymloopMax {
				return TrustResult{}, errors.New("pathsec: too many levels of symbolic links")
			}

			target, err := os.Readlink(cur)
			if err != nil {
				return TrustResult{}, errors.Wrapf(err, "pathsec: readlink %s", cur)
			}
			if target == "" {
				return TrustResult{}, fmt.Errorf("pathsec: empty symlink target at %s", cur)
			}

			rest := comps[idx+1:]
			if target[0] == '/' {
				cur = "/"
				comps = append(strings.Split(strings.Trim(target, "/"), "/"), rest...)
			} else {
				cur = path.Dir(cur)
				comps = append(strings.Split(strings.Trim(target, "/"), "/"), rest...)
			}
			idx = -1
			continue
		}

		finalSt = st
		haveFinalSt = true
	}

	if exists && haveFinalSt {
		mode := RelaxMask(finalSt.Mode & (unix.S_ISUID | unix.S_ISGID | unix.S_IRWXG | unix.S_IRWXO))
		if mode&^relax != 0 {
			return TrustResult{Trusted: false}, nil
		}
		if gid >= 0 && int(finalSt.Gid) != gid {
			return TrustResult{Trusted: false}, nil
		}
	}

	return TrustResult{Trusted: true, Exists: exists}, nil
}
