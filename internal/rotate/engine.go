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

// Package rotate implements the snapshot rotation algorithm: rolling a
// freshly synced backup into an interval's newest slot, cascading
// snapshots that have overflowed their interval's count into the next
// coarser interval, and queuing anything that falls off the end for
// deferred deletion.
package rotate

import (
	"time"

	"github.com/pkg/errors"

	"github.com/snapsd/snapsd/internal/snapmodel"
)

// DelIntervalName is the synthetic interval backing the deletion area: a
// holding pen of directories renamed out of the live namespace, removed
// recursively at the end of a rotation pass. Using rename to get a
// directory out of the way and deferring the (potentially slow) recursive
// delete keeps every visible rename atomic and crash-safe.
const DelIntervalName = ".del"

// maxScanCap bounds the linear probe in MaxBackup against a corrupted or
// adversarial namespace with an unbounded run of numbered snapshots; the
// original algorithm has no such bound. MoveIn's own forward scan is
// capped at the interval's Count+1 instead.
const maxScanCap = 1 << 20

// FS is the filesystem surface the rotation engine needs, scoped to one
// endpoint's root directory. All names are single path components
// ("hourly.3", ".del.1"), never full paths; callers resolve them relative
// to whatever root they represent (ordinarily a chroot).
type FS interface {
	snapmodel.Stat
	// Rename moves oldName to newName, both existing within the same
	// root. newName must not already exist.
	Rename(oldName, newName string) error
	// RemoveTree recursively deletes name and everything under it.
	RemoveTree(name string) error
}

// MaxBackup returns the highest snapshot number that exists contiguously
// from 1 in ivalName ("the backup with the highest number"), or 0 if none
// exist. It stops at the first gap, matching the original's linear probe.
func MaxBackup(fs FS, ivalName string) (int, error) {
	n := 0
	for n < maxScanCap {
		cand := snapmodel.Snapshot{Interval: snapmodel.Interval{Name: ivalName}, Number: n + 1}
		_, exists, err := cand.Time(fs)
		if err != nil {
			return 0, errors.Wrapf(err, "rotate: stat %s", cand.DirName())
		}
		if !exists {
			return n, nil
		}
		n++
	}
	return 0, errors.Errorf("rotate: %s: too many snapshots to scan", ivalName)
}

// QueueDelete renames src (a single path component within the endpoint
// root) into the next free slot of the deletion area.
func QueueDelete(fs FS, src string) error {
	n, err := MaxBackup(fs, DelIntervalName)
	if err != nil {
		return errors.Wrap(err, "rotate: queuedelete: maxbackup")
	}

	dst := snapmodel.Snapshot{Interval: snapmodel.Interval{Name: DelIntervalName}, Number: n + 1}.DirName()
	if err := fs.Rename(src, dst); err != nil {
		return errors.Wrapf(err, "rotate: queuedelete: rename %s -> %s", src, dst)
	}
	return nil
}

// PurgeDeleted recursively removes every entry queued in the deletion
// area, highest-numbered slot first.
func PurgeDeleted(fs FS) error {
	n, err := MaxBackup(fs, DelIntervalName)
	if err != nil {
		return errors.Wrap(err, "rotate: purgedeleted: maxbackup")
	}
	for ; n > 0; n-- {
		name := snapmodel.Snapshot{Interval: snapmodel.Interval{Name: DelIntervalName}, Number: n}.DirName()
		if err := fs.RemoveTree(name); err != nil {
			return errors.Wrapf(err, "rotate: purgedeleted: remove %s", name)
		}
	}
	return nil
}

// oldestNonExpired finds the first snapshot number in iv (starting from 1)
// that either does not exist yet or has not expired, returning its
// number along with that slot's ttl/age. The scan is capped defensively
// at iv.Count+1 iterations.
func oldestNonExpired(fs FS, iv snapmodel.Interval, starttime time.Time) (n int, ttl, age time.Duration, err error) {
	limit := iv.Count + 1
	if limit < 1 {
		limit = 1
	}
	for i := 1; i <= limit; i++ {
		s := snapmodel.Snapshot{Interval: iv, Number: i}
		t, a, ok, err := s.TTL(fs, starttime)
		if err != nil {
			return 0, 0, 0, err
		}
		if !ok {
			return i, 0, 0, nil
		}
		if t-snapmodel.TimePad > 0 {
			return i, t, a, nil
		}
	}
	return 0, 0, 0, errors.Errorf("rotate: %s: no non-expired slot found within %d slots", iv.Name, limit)
}

// MoveIn rolls the snapshot named newName (currently sitting outside any
// interval, typically the freshly synced area) into interval iv, evicting
// or cascading existing snapshots as needed:
//
//   - every already-expired snapshot shifts up by one slot;
//   - if the slot just past the run of expired snapshots holds a
//     non-expired one, the oldest expired snapshot is queued for deletion
//     instead of being shifted onto it;
//   - if slot 1 is still occupied by a non-expired snapshot and force is
//     true, that snapshot is queued for deletion to make room;
//   - if slot 1 is still occupied and force is false, newName itself is
//     queued for deletion instead of displacing a live backup.
func MoveIn(fs FS, newName string, iv snapmodel.Interval, starttime time.Time, force bool) error {
	i, ttl, age, err := oldestNonExpired(fs, iv, starttime)
	if err != nil {
		return errors.Wrap(err, "rotate: movein")
	}

	// i now points one past the oldest expired snapshot.
	i--

	if (ttl != 0 || age != 0) && i > 0 {
		if err := QueueDelete(fs, snapmodel.Snapshot{Interval: iv, Number: i}.DirName()); err != nil {
			return errors.Wrap(err, "rotate: movein: queue oldest expired")
		}
		i--
	}

	for ; i > 0; i-- {
		src := snapmodel.Snapshot{Interval: iv, Number: i}.DirName()
		dst := snapmodel.Snapshot{Interval: iv, Number: i + 1}.DirName()
		if err := fs.Rename(src, dst); err != nil {
			return errors.Wrapf(err, "rotate: movein: shift %s -> %s", src, dst)
		}
	}

	first := snapmodel.Snapshot{Interval: iv, Number: 1}
	fttl, fage, _, err := first.TTL(fs, starttime)
	if err != nil {
		return errors.Wrap(err, "rotate: movein: first slot ttl")
	}
	occupied := fttl != 0 || fage != 0

	if occupied && force {
		if err := QueueDelete(fs, first.DirName()); err != nil {
			return errors.Wrap(err, "rotate: movein: force-evict first slot")
		}
		occupied = false
	}

	if occupied {
		if err := QueueDelete(fs, newName); err != nil {
			return errors.Wrap(err, "rotate: movein: queue incoming snapshot")
		}
		return nil
	}

	if err := fs.Rename(newName, first.DirName()); err != nil {
		return errors.Wrapf(err, "rotate: movein: rename %s -> %s", newName, first.DirName())
	}
	return nil
}

// SpreadOut walks ivs from finest to coarsest, queuing for deletion every
// snapshot beyond an interval's configured count except the single
// newest overflow snapshot, which is cascaded (via MoveIn) into the next
// coarser interval if one exists, or queued for deletion if ivs has no
// next tier.
func SpreadOut(fs FS, ivs snapmodel.Intervals, starttime time.Time) error {
	for idx, iv := range ivs {
		n, err := MaxBackup(fs, iv.Name)
		if err != nil {
			return errors.Wrapf(err, "rotate: spreadout: maxbackup %s", iv.Name)
		}

		for n-1 > iv.Count {
			name := snapmodel.Snapshot{Interval: iv, Number: n}.DirName()
			if err := QueueDelete(fs, name); err != nil {
				return errors.Wrapf(err, "rotate: spreadout: queue excess %s", name)
			}
			n--
		}

		if n > iv.Count {
			name := snapmodel.Snapshot{Interval: iv, Number: n}.DirName()
			if idx+1 >= len(ivs) {
				if err := QueueDelete(fs, name); err != nil {
					return errors.Wrapf(err, "rotate: spreadout: queue overflow %s", name)
				}
			} else {
				next := ivs[idx+1]
				if err := MoveIn(fs, name, next, starttime, false); err != nil {
					return errors.Wrapf(err, "rotate: spreadout: cascade %s into %s", name, next.Name)
				}
			}
		}
	}
	return nil
}
