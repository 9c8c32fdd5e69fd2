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

// Package rotatorproc is the trusted rotator child: it chroots into an
// endpoint's snapshot directory, prepares a fresh sync area for the
// syncer to fill in, then either rolls that area into the first
// retention interval or discards it, depending on what the supervisor
// tells it once the syncer has finished.
package rotatorproc

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/snapsd/snapsd/internal/childproc"
	"github.com/snapsd/snapsd/internal/ipc"
	"github.com/snapsd/snapsd/internal/log"
	"github.com/snapsd/snapsd/internal/rotate"
	"github.com/snapsd/snapsd/internal/snapmodel"
)

const (
	syncDirName  = ".sync"
	lockFileName = ".lock"

	// syncDirMode is owner+group rwx, the mode the sync dir is created
	// with so the syncer (running as the endpoint's unprivileged gid)
	// can write into it.
	syncDirMode = unix.S_IRWXU | unix.S_IRWXG
	// allowSyncerMode additionally grants read+traverse to everyone so
	// rsync's --link-dest source (the newest prior snapshot) is
	// readable by the dropped-privilege syncer.
	allowSyncerMode = unix.S_IRWXU | unix.S_IRGRP | unix.S_IXGRP | unix.S_IROTH | unix.S_IXOTH
	// blockSyncerMode revokes group access once the syncer has exited,
	// before the rotator decides what to do with the result; others keep
	// read+traverse.
	blockSyncerMode = unix.S_IRWXU | unix.S_IROTH | unix.S_IXOTH
)

// Run is the rotator's entry point, invoked from the hidden "__rotate"
// CLI command after the process has re-exec'd with cfg.Endpoint as its
// only configuration.
func Run(ctx context.Context, cmdChan *os.File, cfg childproc.Config) int {
	logger := log.G(ctx).WithField("role", "rotator").WithField("endpoint", cfg.Endpoint.ID())
	ep := cfg.Endpoint

	if err := unix.Chroot(ep.Path); err != nil {
		logger.WithError(err).Error("chroot")
		return 1
	}
	if err := os.Chdir("/"); err != nil {
		logger.WithError(err).Error("chdir")
		return 1
	}

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

	if len(ep.Intervals) == 0 {
		logger.Error("no snapshot interval configured")
		return 1
	}

	fs := dirFS{}

	first := snapmodel.Snapshot{Interval: ep.Intervals[0], Number: 1}
	ttl, age, _, err := first.TTL(fs, cfg.StartTime)
	if err != nil {
		logger.WithError(err).Error("first snapshot ttl")
		return 1
	}
	if !cfg.Force && ttl-snapmodel.TimePad > 0 {
		logger.Infof("%s left (%s old)", ttl, age)
		return 0
	}

	lockFd, err := acquireLock()
	if err != nil {
		logger.WithError(err).Error("acquire lock")
		return 1
	}
	defer unix.Close(lockFd)

	if err := cleanupOrphanedSyncDir(fs, logger); err != nil {
		logger.WithError(err).Error("cleanup orphaned sync dir")
		return 1
	}

	if err := newSyncDir(ep.GID); err != nil {
		logger.WithError(err).Error("create sync dir")
		return 1
	}

	newest, haveNewest, err := snapmodel.Newest(fs, ep.Intervals)
	if err != nil {
		logger.WithError(err).Error("find newest snapshot")
		return 1
	}
	if haveNewest {
		if err := os.Chmod(newest.DirName(), allowSyncerMode); err != nil {
			logger.WithError(err).Error("grant syncer access to link-dest snapshot")
			return 1
		}
	}

	if err := ipc.WriteCmd(cmdChan, ipc.Ready); err != nil {
		logger.WithError(err).Error("signal ready")
		return 1
	}

	decision, err := ipc.ReadCmd(cmdChan)
	if err != nil {
		logger.WithError(err).Error("read rotation decision")
		return 1
	}

	if err := os.Chmod(syncDirName, blockSyncerMode); err != nil {
		logger.WithError(err).Error("revoke syncer access to sync dir")
		return 1
	}
	if haveNewest {
		if err := os.Chmod(newest.DirName(), blockSyncerMode); err != nil {
			logger.WithError(err).Error("revoke syncer access to link-dest snapshot")
			return 1
		}
	}
	if err := os.Chtimes(syncDirName, cfg.StartTime, cfg.StartTime); err != nil {
		logger.WithError(err).Error("stamp sync dir time")
		return 1
	}

	switch decision {
	case ipc.RotCleanup:
		logger.Info("discarding sync dir")
		if err := rotate.QueueDelete(fs, syncDirName); err != nil {
			logger.WithError(err).Error("queue sync dir for deletion")
			return 1
		}
	case ipc.RotInclude:
		if err := rotate.MoveIn(fs, syncDirName, ep.Intervals[0], cfg.StartTime, cfg.Force); err != nil {
			logger.WithError(err).Error("move in new snapshot")
			return 1
		}
		if err := rotate.SpreadOut(fs, ep.Intervals, cfg.StartTime); err != nil {
			logger.WithError(err).Error("spread out intervals")
			return 1
		}
	default:
		logger.Errorf("unexpected rotation decision %s", decision)
		return 1
	}

	if err := rotate.PurgeDeleted(fs); err != nil {
		logger.WithError(err).Error("purge deletion area")
		return 1
	}

	if err := os.Remove(lockFileName); err != nil {
		logger.WithError(err).Error("remove lock file")
		return 1
	}

	return 0
}

// acquireLock takes an exclusive, non-blocking advisory lock on
// lockFileName, reporting which process already holds it when contended.
func acquireLock() (fd int, err error) {
	fd, err = unix.Open(lockFileName, unix.O_WRONLY|unix.O_CREAT|unix.O_CLOEXEC, 0600)
	if err != nil {
		return -1, errors.Wrap(err, "open lock file")
	}

	lk := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0, Start: 0, Len: 0}
	if err := unix.FcntlFlock(uintptr(fd), unix.F_SETLK, &lk); err != nil {
		if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EACCES) {
			unix.Close(fd)
			return -1, errors.Wrap(err, "obtain lock")
		}

		info := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0, Start: 0, Len: 0}
		if gerr := unix.FcntlFlock(uintptr(fd), unix.F_GETLK, &info); gerr != nil {
			unix.Close(fd)
			return -1, errors.Wrap(gerr, "obtain lock info")
		}
		unix.Close(fd)
		if info.Type == unix.F_UNLCK {
			return -1, errors.New("lock was contended but is now free, retry next time")
		}
		return -1, errors.Errorf("process %d holds the lock", info.Pid)
	}
	return fd, nil
}

func cleanupOrphanedSyncDir(fs dirFS, logger *logrus.Entry) error {
	st, err := os.Lstat(syncDirName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "stat sync dir")
	}
	if !st.IsDir() {
		return errors.New("sync dir exists but is not a directory")
	}
	logger.Infof("scheduling delete of orphaned sync dir")
	return rotate.QueueDelete(fs, syncDirName)
}

func newSyncDir(gid int) error {
	if err := unix.Mkdir(syncDirName, syncDirMode); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	if err := unix.Chmod(syncDirName, syncDirMode); err != nil {
		return errors.Wrap(err, "chmod")
	}
	if err := unix.Chown(syncDirName, -1, gid); err != nil {
		return errors.Wrap(err, "chown")
	}
	return nil
}
