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

// Package supervisor is the trusted coordinator: for each configured
// endpoint it spawns a rotator, a syncer and (if configured) a postexec
// hook, then sequences the command channel between them exactly the way
// the original's main() loop does — one endpoint fully through the
// pipeline before the next starts.
package supervisor

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/snapsd/snapsd/internal/childproc"
	"github.com/snapsd/snapsd/internal/endpoint"
	"github.com/snapsd/snapsd/internal/ipc"
	"github.com/snapsd/snapsd/internal/log"
)

// Options controls one supervised pass over a set of endpoints.
type Options struct {
	StartTime time.Time
	Force     bool
	Verbose   int
}

// Run drives every endpoint through rotator/syncer/postexec in turn,
// collecting and returning the first fatal error encountered. A single
// endpoint failing to produce a usable result is logged and does not
// stop the remaining endpoints — only an error setting up the child
// processes themselves (spawn failure, protocol violation) is fatal.
func Run(ctx context.Context, eps []endpoint.Endpoint, opts Options) error {
	for _, ep := range eps {
		if err := runOne(ctx, ep, opts); err != nil {
			return errors.Wrapf(err, "supervisor: %s", ep.ID())
		}
	}
	return nil
}

func runOne(ctx context.Context, ep endpoint.Endpoint, opts Options) error {
	logger := log.G(ctx).WithField("endpoint", ep.ID())
	cfg := childproc.Config{Endpoint: ep, StartTime: opts.StartTime, Force: opts.Force, Verbose: opts.Verbose}

	var postexec *child
	if ep.ExecHook != "" {
		var err error
		postexec, err = spawnChild(ctx, childproc.RolePostexec, cfg)
		if err != nil {
			return errors.Wrap(err, "spawn postexec")
		}
	}

	rotator, err := spawnChild(ctx, childproc.RoleRotate, cfg)
	if err != nil {
		stopIfSpawned(postexec)
		return errors.Wrap(err, "spawn rotator")
	}

	syncer, err := spawnChild(ctx, childproc.RoleSync, cfg)
	if err != nil {
		rotator.stop()
		stopIfSpawned(postexec)
		return errors.Wrap(err, "spawn syncer")
	}

	if err := ipc.WriteCmd(rotator.conn, ipc.Start); err != nil {
		return errors.Wrap(err, "signal rotator start")
	}
	cmd, err := ipc.ReadCmd(rotator.conn)
	if err != nil {
		return errors.Wrap(err, "read rotator signal")
	}
	if cmd != ipc.Closed && cmd != ipc.Ready {
		return errors.Errorf("unexpected signal from rotator: %s", cmd)
	}

	if cmd != ipc.Ready {
		// Rotator decided there is nothing to do this run: tell the
		// syncer and postexec to stand down, then reap the rotator,
		// which has already exited (or is about to).
		if _, err := syncer.stop(); err != nil {
			logger.WithError(err).Warn("stopping syncer")
		}
		if postexec != nil {
			if _, err := postexec.stop(); err != nil {
				logger.WithError(err).Warn("stopping postexec")
			}
		}
		if _, err := rotator.closeAndWait(); err != nil {
			logger.WithError(err).Warn("reaping rotator")
		}
		return nil
	}

	if err := ipc.WriteCmd(syncer.conn, ipc.Start); err != nil {
		return errors.Wrap(err, "signal syncer start")
	}
	syncExit, err := syncer.closeAndWait()
	if err != nil {
		return errors.Wrap(err, "wait for syncer")
	}
	logger.Infof("syncer exited %d", syncExit)

	var poxExit *int
	if postexec != nil {
		if err := ipc.WriteCust(postexec.conn, int32(syncExit)); err != nil {
			return errors.Wrap(err, "signal postexec")
		}
		exit, err := postexec.closeAndWait()
		if err != nil {
			return errors.Wrap(err, "wait for postexec")
		}
		logger.Infof("postexec exited %d", exit)
		poxExit = &exit
	}

	decision := decideRotation(ep, syncExit, poxExit)
	if err := ipc.WriteCmd(rotator.conn, decision); err != nil {
		return errors.Wrap(err, "signal rotator decision")
	}

	rotExit, err := rotator.closeAndWait()
	if err != nil {
		return errors.Wrap(err, "wait for rotator")
	}
	if rotExit != 0 {
		logger.Warnf("rotator exited %d", rotExit)
	}

	return nil
}

func stopIfSpawned(c *child) {
	if c != nil {
		_, _ = c.stop()
	}
}

// decideRotation translates a syncer exit code, and an optional postexec
// exit code, into the command the rotator should receive. When a
// postexec hook ran, its exit code fully replaces the syncer's: a
// postexec exit of 0 means include regardless of what the syncer
// returned, matching the decision recorded for postexec in DESIGN.md.
func decideRotation(ep endpoint.Endpoint, syncExit int, poxExit *int) ipc.Cmd {
	if poxExit != nil {
		if *poxExit == 0 {
			return ipc.RotInclude
		}
		return ipc.RotCleanup
	}
	if ep.AcceptsExit(syncExit) {
		return ipc.RotInclude
	}
	return ipc.RotCleanup
}
