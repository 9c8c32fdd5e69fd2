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

// Package syncerproc is the untrusted syncer child: once told to start,
// it builds an rsync invocation against the remote endpoint and execs
// straight into it. rsync itself is trusted to chroot into the
// endpoint's path (via --chroot) and drop to the configured uid (via
// --dropsuper) before it ever touches the remote's bytes; the Go process
// never regains control after the exec.
package syncerproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/snapsd/snapsd/internal/childproc"
	"github.com/snapsd/snapsd/internal/endpoint"
	"github.com/snapsd/snapsd/internal/ipc"
	"github.com/snapsd/snapsd/internal/log"
	"github.com/snapsd/snapsd/internal/snapmodel"
)

// defaultRsyncBin is used when an endpoint does not configure rsyncbin.
// It must support --chroot and --dropsuper (a hardened rsync build); a
// stock rsync will reject those flags.
const defaultRsyncBin = "/usr/local/sbin/prsync"

const syncDirName = ".sync"

// statAt implements snapmodel.Stat against an endpoint root that this
// process has not chrooted into; every snapshot directory is reached
// through an absolute path rather than assumed to be the cwd, since
// privilege separation for this child is entirely rsync's job.
type statAt struct{ root string }

func (s statAt) StatSnapshot(name string) (time.Time, bool, error) {
	st, err := os.Lstat(filepath.Join(s.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return st.ModTime(), true, nil
}

// Run is the syncer's entry point, invoked from the hidden "__sync" CLI
// command. It returns 0 when told to stop and 1 on error; otherwise it
// ends in an exec that never returns to Go.
func Run(ctx context.Context, cmdChan *os.File, cfg childproc.Config) int {
	logger := log.G(ctx).WithField("role", "syncer").WithField("endpoint", cfg.Endpoint.ID())
	ep := cfg.Endpoint

	cmd, err := ipc.ReadCmd(cmdChan)
	if err != nil {
		logger.WithError(err).Error("read start command")
		return 1
	}
	if cmd == ipc.Stop {
		return 0
	}
	if cmd != ipc.Start {
		logger.Errorf("unexpected command %s", cmd)
		return 1
	}

	if ep.UID == 0 || ep.GID == 0 {
		logger.Error("configure a different user than the superuser")
		return 1
	}

	syncDir := filepath.Join(ep.Path, syncDirName)
	if err := os.Chdir(syncDir); err != nil {
		logger.WithError(err).Error("chdir to sync dir")
		return 1
	}

	var linkDest string
	if newest, ok, err := snapmodel.Newest(statAt{root: ep.Path}, ep.Intervals); err != nil {
		logger.WithError(err).Error("find newest snapshot for link-dest")
		return 1
	} else if ok {
		linkDest = "../" + newest.DirName()
	}

	argv := rsyncArgv(ep, linkDest, cfg.Verbose)

	rsyncBin := ep.RsyncBin
	if rsyncBin == "" {
		rsyncBin = defaultRsyncBin
	}
	resolved, err := exec.LookPath(rsyncBin)
	if err != nil {
		logger.WithError(err).Errorf("rsync binary not found: %s", rsyncBin)
		return 1
	}

	logger.Debugf("exec %s %v", resolved, argv)

	if err := unix.Exec(resolved, argv, []string{}); err != nil {
		logger.WithError(err).Error("exec rsync")
		return 1
	}
	return 1
}

// rsyncArgv builds the rsync argument vector the way execrsync does: a
// fixed safety-oriented prefix, an optional --link-dest, verbosity flags
// derived the same way as the rest of the CLI, user-configured extra
// arguments, the remote source and finally the destination (always "."
// — the caller has already chdir'd into the sync dir).
func rsyncArgv(ep endpoint.Endpoint, linkDest string, verbose int) []string {
	rsyncBin := ep.RsyncBin
	if rsyncBin == "" {
		rsyncBin = defaultRsyncBin
	}

	argv := []string{
		filepath.Base(rsyncBin),
		"-az",
		"--delete",
		"--numeric-ids",
		"--no-specials",
		"--no-devices",
		"--chroot", ep.Path,
		"--dropsuper", strconv.Itoa(ep.UID),
	}

	if linkDest != "" {
		argv = append(argv, "--link-dest="+linkDest)
	}

	switch {
	case verbose < 0:
		argv = append(argv, "-q")
	case verbose > 1:
		for i := 1; i < verbose; i++ {
			argv = append(argv, "-v")
		}
	}

	argv = append(argv, ep.RsyncArgs...)

	rpath := ep.RPath
	sep := "/"
	if len(rpath) > 0 && rpath[len(rpath)-1] == '/' {
		sep = ""
	}
	argv = append(argv, fmt.Sprintf("%s@%s:%s%s", ep.RUser, ep.Hostname, rpath, sep))
	argv = append(argv, ".")

	return argv
}
