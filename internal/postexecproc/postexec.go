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

// Package postexecproc is the optional postexec child: after the syncer
// has exited, it drops privileges to the endpoint's configured user and
// execs a site-configured hook, passing the syncer's exit code as its
// sole argument. The hook's own exit code fully replaces the syncer's
// for the rotator's include/cleanup decision.
package postexecproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/snapsd/snapsd/internal/childproc"
	"github.com/snapsd/snapsd/internal/ipc"
	"github.com/snapsd/snapsd/internal/log"
)

const syncDirName = ".sync"

// Run is the postexec's entry point, invoked from the hidden
// "__postexec" CLI command. It returns 0 when told to stop and 1 on error;
// otherwise it ends in an exec that never returns to Go.
func Run(ctx context.Context, cmdChan *os.File, cfg childproc.Config) int {
	logger := log.G(ctx).WithField("role", "postexec").WithField("endpoint", cfg.Endpoint.ID())
	ep := cfg.Endpoint

	cmd, err := ipc.ReadCmd(cmdChan)
	if err != nil {
		logger.WithError(err).Error("read start command")
		return 1
	}
	if cmd == ipc.Stop {
		return 0
	}
	if cmd != ipc.Cust {
		logger.Errorf("unexpected command %s", cmd)
		return 1
	}

	if ep.ExecHook == "" {
		logger.Error("no postexec hook configured")
		return 1
	}

	syncDir := filepath.Join(ep.Path, syncDirName)
	if err := os.Chdir(syncDir); err != nil {
		logger.WithError(err).Error("chdir to sync dir")
		return 1
	}

	if ep.UID == 0 || ep.GID == 0 {
		logger.Error("configure a different user than the superuser")
		return 1
	}

	pwd, _ := user.LookupId(fmt.Sprint(ep.UID))

	if err := unix.Setgroups([]int{ep.GID}); err != nil {
		logger.WithError(err).Error("setgroups")
		return 1
	}
	if err := unix.Setgid(ep.GID); err != nil {
		logger.WithError(err).Error("setgid")
		return 1
	}
	if err := unix.Setuid(ep.UID); err != nil {
		logger.WithError(err).Error("setuid")
		return 1
	}

	exitCode, err := ipc.ReadCustPayload(cmdChan)
	if err != nil {
		logger.WithError(err).Error("read syncer exit code")
		return 1
	}
	cmdChan.Close()

	argv := []string{filepath.Base(ep.ExecHook), fmt.Sprint(exitCode)}

	env := []string{"PATH=/usr/bin:/bin:/usr/sbin:/sbin:/usr/local/bin:/usr/local/sbin"}
	if pwd != nil {
		if pwd.Username != "" {
			env = append(env, "LOGNAME="+pwd.Username, "USER="+pwd.Username)
		}
		if pwd.HomeDir != "" {
			env = append(env, "HOME="+pwd.HomeDir)
		}
	}

	resolved, err := exec.LookPath(ep.ExecHook)
	if err != nil {
		logger.WithError(err).Errorf("postexec hook not found: %s", ep.ExecHook)
		return 1
	}

	logger.Debugf("exec %s %v", resolved, argv)

	if err := unix.Exec(resolved, argv, env); err != nil {
		logger.WithError(err).Error("exec postexec hook")
		return 1
	}
	return 1
}
