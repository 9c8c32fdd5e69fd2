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
	"path"

	"golang.org/x/sys/unix"

	"github.com/snapsd/snapsd/internal/endpoint"
	"github.com/snapsd/snapsd/internal/log"
	"github.com/snapsd/snapsd/internal/pathsec"
)

// PrepareEndpoints makes sure every endpoint's root dir and snapshot path
// are owned and permissioned the way a chrooted rotator/syncer pair
// expects, creating missing directories or fixing permissions where
// that's recoverable. Endpoints that fail a trust check, or whose root
// is missing without createroot set, are dropped with a warning rather
// than aborting the whole run.
func PrepareEndpoints(ctx context.Context, eps []endpoint.Endpoint) []endpoint.Endpoint {
	logger := log.G(ctx)
	kept := eps[:0]

	for _, ep := range eps {
		if !path.IsAbs(ep.Root) {
			logger.Warnf("%s: root must be set to an absolute path: %q", ep.ID(), ep.Root)
			continue
		}

		var rootRelax pathsec.RelaxMask
		if ep.SharedGID != endpoint.UnsharedGID {
			rootRelax = pathsec.RelaxGroupRead | pathsec.RelaxGroupExec
		}

		rootTrust, err := pathsec.TrustedPath(ep.Root, rootRelax, ep.SharedGID)
		if err != nil {
			logger.WithError(err).Errorf("%s: trustedpath %s", ep.ID(), ep.Root)
			continue
		}
		if !rootTrust.Trusted {
			wantMode := "0700"
			if ep.SharedGID != endpoint.UnsharedGID {
				wantMode = "0750"
			}
			logger.Warnf("%s: %s is untrusted; every component must be owned by the "+
				"superuser and none writable by the group or others, and the last "+
				"component must have mode %s", ep.ID(), ep.Root, wantMode)
			continue
		}
		if !rootTrust.Exists && !ep.CreateRoot {
			logger.Warnf("%s: make sure the root %q exists or set createroot to \"yes\"", ep.ID(), ep.Root)
			continue
		}

		rootMode := uint32(unix.S_IRWXU)
		if ep.SharedGID != endpoint.UnsharedGID {
			rootMode |= unix.S_IRGRP | unix.S_IXGRP
		}
		rootUpdated, err := pathsec.SecureEnsureDir(ep.Root, rootMode, ep.SharedGID)
		if err != nil {
			logger.WithError(err).Errorf("%s: secureensuredir %s", ep.ID(), ep.Root)
			continue
		}
		if rootUpdated {
			logger.Infof("%s: updated ownership and permissions of %q", ep.ID(), ep.Root)
		}

		pathRelax := pathsec.RelaxGroupExec | pathsec.RelaxOtherExec
		if ep.SharedGID != endpoint.UnsharedGID {
			pathRelax |= pathsec.RelaxGroupRead
		}

		pathTrust, err := pathsec.TrustedPath(ep.Path, pathRelax, ep.SharedGID)
		if err != nil {
			logger.WithError(err).Errorf("%s: trustedpath %s", ep.ID(), ep.Path)
			continue
		}
		if !pathTrust.Trusted {
			if ep.SharedGID == endpoint.UnsharedGID {
				logger.Warnf("%s: insecure mode: %s must be owned by the superuser and "+
					"must not be readable or writable by the group or others", ep.ID(), ep.Path)
			} else {
				logger.Warnf("%s: insecure mode: %s must be owned by group id %d and "+
					"must not be writable by the group or readable or writable by "+
					"others", ep.ID(), ep.Path, ep.SharedGID)
			}
			continue
		}

		pathMode := uint32(unix.S_IRWXU | unix.S_IXGRP | unix.S_IXOTH)
		if ep.SharedGID != endpoint.UnsharedGID {
			pathMode |= unix.S_IRGRP
		}
		pathUpdated, err := pathsec.SecureEnsureDir(ep.Path, pathMode, ep.SharedGID)
		if err != nil {
			logger.WithError(err).Errorf("%s: secureensuredir %s", ep.ID(), ep.Path)
			continue
		}
		if pathUpdated {
			logger.Infof("%s: updated ownership and permissions of %q", ep.ID(), ep.Path)
		}

		kept = append(kept, ep)
	}

	return kept
}
