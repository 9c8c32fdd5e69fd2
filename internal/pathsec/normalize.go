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

// Package pathsec implements the filesystem trust primitives that gate
// every directory this program creates or writes into: a bounded,
// symlink-aware check that every component of a path is owned by root and
// not group/other-writable, and an idempotent trusted directory creator
// built on top of it.
package pathsec

import (
	"errors"
	"os"
	"path"
	"strings"
)

// NormalizePath removes "." and ".." components and collapses repeated
// slashes, turning a relative path into an absolute one rooted at the
// current working directory. It does not touch the filesystem: no
// component is required to exist. The result always starts with "/"; when
// withSlash is true it also always ends with "/" (matching a directory
// reference), mirroring the two call conventions used for root-prefix
// comparison versus plain path cleanup.
func NormalizePath(p string, withSlash bool) (string, error) {
	if p == "" {
		return "", os.ErrNotExist
	}

	abs := p
	if !strings.HasPrefix(p, "/") {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		abs = path.Join(cwd, p)
	}

	clean := path.Clean(abs)
	if clean == "" {
		clean = "/"
	}
	if withSlash && !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	return clean, nil
}

// NormalizePathComponent turns path into a single path component, suitable
// as one directory name, by collapsing repeated slashes into a single
// underscore, dropping a trailing slash and rejecting "." and "..". It
// exists to turn an endpoint's configured remote path into a safe
// subdirectory name under that endpoint's local root.
func NormalizePathComponent(p string) (string, error) {
	if p == "" {
		return "", errors.New("pathsec: empty path component")
	}
	if len(p) > 255 {
		return "", errors.New("pathsec: path component too long")
	}
	if p == "." || p == ".." {
		return "", errors.New("pathsec: path component is \".\" or \"..\"")
	}

	var b strings.Builder
	i := 0
	for i < len(p) {
		if p[i] == '/' {
			j := i
			for j < len(p) && p[j] == '/' {
				j++
			}
			last := j == len(p)
			if last && b.Len() > 0 {
				// trailing slash run: drop it entirely
				i = j
				continue
			}
			b.WriteByte('_')
			i = j
			continue
		}
		b.WriteByte(p[i])
		i++
	}

	out := b.String()
	if out == "" {
		return "", errors.New("pathsec: path component reduces to empty")
	}
	return out, nil
}

// InRoot reports whether path lies at or under root, after normalizing
// both. issubdir additionally reports true only when path is strictly
// below root (not equal to it).
func InRoot(root, p string) (inRoot, isSubdir bool, err error) {
	if root == "" || p == "" {
		return false, false, nil
	}

	nroot, err := NormalizePath(root, true)
	if err != nil {
		return false, false, err
	}
	npath, err := NormalizePath(p, true)
	if err != nil {
		return false, false, err
	}

	if strings.HasPrefix(npath, nroot) {
		return true, len(npath) > len(nroot), nil
	}
	return false, false, nil
}
