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

package snapmodel

import (
	"fmt"
	"time"
)

// Snapshot identifies one retention slot: the Number'th-oldest snapshot in
// interval Interval, where Number 1 is the newest. Its age is derived from
// the mtime of its on-disk directory, which is updated only when a new
// backup lands in slot 1 and not touched again as the snapshot ages into
// higher-numbered slots.
type Snapshot struct {
	Interval Interval
	Number   int
}

// DirName is the on-disk directory name for the snapshot, "<interval>.<number>".
func (s Snapshot) DirName() string {
	return fmt.Sprintf("%s.%d", s.Interval.Name, s.Number)
}

// Stat looks up the on-disk existence and modification time of one
// snapshot directory, relative to an endpoint's root. Implemented by
// rotatorproc against its chrooted working directory and by syncerproc
// against the endpoint path.
type Stat interface {
	StatSnapshot(dirName string) (mtime time.Time, exists bool, err error)
}

// Time returns the snapshot directory's modification time, the moment it
// was rolled into its current slot. ok is false if the snapshot does not
// exist on disk.
func (s Snapshot) Time(st Stat) (t time.Time, ok bool, err error) {
	mtime, exists, err := st.StatSnapshot(s.DirName())
	if err != nil {
		return time.Time{}, false, err
	}
	return mtime, exists, nil
}

// TTL computes how much longer the snapshot has to live, and how old it
// currently is, as of now. A snapshot's age is adjusted for its position
// within the interval: slot N is expected to already be (N-1)*Lifetime
// old on top of its own Lifetime, so age is measured back from that
// baseline. ttl is zero once the snapshot has outlived its interval slot;
// it never goes negative. ok is false when the snapshot does not exist,
// in which case both durations are zero.
func (s Snapshot) TTL(st Stat, now time.Time) (ttl, age time.Duration, ok bool, err error) {
	mtime, exists, err := s.Time(st)
	if err != nil {
		return 0, 0, false, err
	}
	if !exists {
		return 0, 0, false, nil
	}

	age = now.Sub(mtime)
	rel := age - time.Duration(s.Number-1)*s.Interval.Lifetime

	if rel < s.Interval.Lifetime {
		ttl = s.Interval.Lifetime - rel
	}
	return ttl, age, true, nil
}

// Expired reports whether the snapshot's TTL, less TimePad grace, has run
// out as of now. A non-existing snapshot is never "expired" by this
// check; callers that need to distinguish missing-vs-expired should use
// TTL directly.
func (s Snapshot) Expired(st Stat, now time.Time) (expired bool, err error) {
	ttl, _, ok, err := s.TTL(st, now)
	if err != nil || !ok {
		return false, err
	}
	return ttl <= TimePad, nil
}

// NewestInInterval returns the lowest-numbered snapshot (1..iv.Count) that
// exists on disk within iv, or ok=false if none do.
func NewestInInterval(st Stat, iv Interval) (s Snapshot, ok bool, err error) {
	for n := 1; n <= iv.Count; n++ {
		cand := Snapshot{Interval: iv, Number: n}
		_, exists, err := cand.Time(st)
		if err != nil {
			return Snapshot{}, false, err
		}
		if exists {
			return cand, true, nil
		}
	}
	return Snapshot{}, false, nil
}

// Newest scans ivs from finest to coarsest and returns the newest snapshot
// found on disk, or ok=false if the endpoint has no snapshots yet.
func Newest(st Stat, ivs Intervals) (s Snapshot, ok bool, err error) {
	for _, iv := range ivs {
		s, ok, err = NewestInInterval(st, iv)
		if err != nil {
			return Snapshot{}, false, err
		}
		if ok {
			return s, true, nil
		}
	}
	return Snapshot{}, false, nil
}
