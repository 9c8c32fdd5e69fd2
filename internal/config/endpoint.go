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
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/snapsd/snapsd/internal/endpoint"
	"github.com/snapsd/snapsd/internal/pathsec"
)

// BuildEndpoints walks every "backup" entry in tree, applies the global
// settings first, then resolves each endpoint against the cascade,
// skipping (and reporting, via errs) any backup entry that fails
// validation rather than aborting the whole run — one operator typo in
// one endpoint's block should not take down every other endpoint.
func BuildEndpoints(tree Tree, starttime time.Time) (eps []endpoint.Endpoint, errs []error) {
	c := NewCascade()

	for _, g := range tree.Globals() {
		if err := c.SetGlobal(g); err != nil {
			errs = append(errs, err)
		}
	}

	for _, b := range tree.Backups() {
		ep, err := buildOneEndpoint(c, b, starttime)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		clash := false
		for _, existing := range eps {
			inExisting, sub, _ := pathsec.InRoot(existing.Root, ep.Root)
			if inExisting && sub {
				errs = append(errs, errors.Errorf("config: %s is a subdir of %s, skipping", ep.Root, existing.Root))
				clash = true
				break
			}
			inNew, sub, _ := pathsec.InRoot(ep.Root, existing.Root)
			if inNew && sub {
				errs = append(errs, errors.Errorf("config: %s is a subdir of %s, skipping", existing.Root, ep.Root))
				clash = true
				break
			}
			if existing.ID() == ep.ID() {
				errs = append(errs, errors.Errorf("config: another endpoint with the same id already exists: %q", ep.ID()))
				clash = true
				break
			}
		}
		if clash {
			continue
		}

		eps = append(eps, ep)
	}

	return eps, errs
}

func buildOneEndpoint(c *Cascade, b Entry, starttime time.Time) (endpoint.Endpoint, error) {
	c.ResetEndpoint()
	defer c.ResetEndpoint()

	for _, e := range b.Block {
		if err := c.SetEndpoint(e); err != nil {
			return endpoint.Endpoint{}, err
		}
	}

	spec, specErr := ParseHostString(b.Val)

	assignIfAbsent := func(key, val string) error {
		if val == "" {
			return nil
		}
		if _, ok := c.ep.val[key]; ok {
			return errors.Errorf("config: %q already set in block for %q", key, b.Val)
		}
		return c.ep.Set(key, val, nil)
	}
	if specErr == nil {
		if err := assignIfAbsent("ruser", spec.RUser); err != nil {
			return endpoint.Endpoint{}, err
		}
		if err := assignIfAbsent("hostname", spec.Hostname); err != nil {
			return endpoint.Endpoint{}, err
		}
		if err := assignIfAbsent("rpath", spec.RPath); err != nil {
			return endpoint.Endpoint{}, err
		}
	}

	var errAcc []string
	fail := func(format string, args ...interface{}) {
		errAcc = append(errAcc, errors.Errorf(format, args...).Error())
	}

	if specErr != nil {
		fail("invalid backup value: %q", b.Val)
	}

	ruser, _ := c.Get("ruser")
	hostname, _ := c.Get("hostname")
	rpath, _ := c.Get("rpath")

	if strings.TrimSpace(ruser) == "" {
		fail("missing required parameter ruser for %q", b.Val)
	}
	if strings.TrimSpace(hostname) == "" {
		fail("missing required parameter hostname for %q", b.Val)
	}
	if strings.TrimSpace(rpath) == "" {
		fail("missing required parameter rpath for %q", b.Val)
	}

	ivs, err := ParseIntervals(c, starttime)
	if err != nil {
		fail("%s", err)
	} else if len(ivs) == 0 {
		fail("specify at least one interval for %q", b.Val)
	}

	root, hasRoot := c.GetMulti("root")
	if !hasRoot || len(root) == 0 || root[0] == "" {
		fail("root must be set for %q", b.Val)
	} else if !path.IsAbs(root[0]) {
		fail("root must be set to an absolute path: %s", root[0])
	}

	createRoot, err := c.GetBool("createroot")
	if err != nil {
		fail("%s", err)
	}

	sharedGID := endpoint.UnsharedGID
	if hasRoot && len(root) > 1 && root[1] != "" {
		if g, err := user.LookupGroup(root[1]); err == nil {
			gid, convErr := strconv.Atoi(g.Gid)
			if convErr != nil {
				fail("could not determine shared group id of %q", root[1])
			} else {
				sharedGID = gid
			}
		} else if n, convErr := strconv.Atoi(root[1]); convErr == nil {
			sharedGID = n
		} else {
			fail("could not determine shared group id of %q", root[1])
		}
	}

	uid, gid := -1, -1
	userSetting, _ := c.Get("user")
	if strings.TrimSpace(userSetting) == "" {
		fail("configure an unprivileged user as which rsync must be run")
	} else if u, err := user.Lookup(userSetting); err == nil {
		uid, _ = strconv.Atoi(u.Uid)
		gid, _ = strconv.Atoi(u.Gid)
	} else if n, convErr := strconv.Atoi(userSetting); convErr == nil {
		uid = n
		if u2, err := user.LookupId(userSetting); err == nil {
			gid, _ = strconv.Atoi(u2.Gid)
		} else {
			gid = n
		}
	} else {
		fail("could not determine user id of user %q", userSetting)
	}
	if uid == 0 {
		fail("it is unsafe and not supported to run rsync as the superuser")
	}

	if groupSetting, ok := c.Get("group"); ok && groupSetting != "" {
		if g, err := user.LookupGroup(groupSetting); err == nil {
			gid, _ = strconv.Atoi(g.Gid)
		} else if n, convErr := strconv.Atoi(groupSetting); convErr == nil {
			gid = n
		} else {
			fail("could not determine group id of %q", groupSetting)
		}
	}

	rsyncExit, err := c.GetMultiInt("rsyncexit")
	if err != nil {
		fail("rsyncexit contains invalid exit codes")
	}

	if len(errAcc) > 0 {
		return endpoint.Endpoint{}, errors.New(strings.Join(errAcc, "; "))
	}

	rsyncArgs, _ := c.GetMulti("rsyncargs")
	rsyncBin, _ := c.Get("rsyncbin")
	execHook, _ := c.Get("exec")

	pathComp, err := pathsec.NormalizePathComponent(hostname + "/" + rpath)
	if err != nil {
		fail("could not normalize path component for %q: %s", b.Val, err)
	}
	if len(errAcc) > 0 {
		return endpoint.Endpoint{}, errors.New(strings.Join(errAcc, "; "))
	}

	return endpoint.Endpoint{
		RUser:      ruser,
		Hostname:   hostname,
		RPath:      rpath,
		Root:       root[0],
		Path:       path.Join(root[0], pathComp),
		CreateRoot: createRoot,
		SharedGID:  sharedGID,
		UID:        uid,
		GID:        gid,
		Intervals:  ivs,
		RsyncBin:   rsyncBin,
		RsyncArgs:  rsyncArgs,
		RsyncExit:  rsyncExit,
		ExecHook:   execHook,
	}, nil
}
