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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStat map[string]time.Time

func (f fakeStat) StatSnapshot(dir string) (time.Time, bool, error) {
	t, ok := f[dir]
	return t, ok, nil
}

func TestSnapshotTTL(t *testing.T) {
	iv := Interval{Name: "hourly", Count: 6, Lifetime: time.Hour}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	st := fakeStat{
		"hourly.1": now.Add(-10 * time.Minute),
		"hourly.2": now.Add(-70 * time.Minute),
	}

	s1 := Snapshot{Interval: iv, Number: 1}
	ttl, age, ok, err := s1.TTL(st, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, age)
	assert.Equal(t, 50*time.Minute, ttl)

	s2 := Snapshot{Interval: iv, Number: 2}
	ttl2, _, ok, err := s2.TTL(st, now)
	require.NoError(t, err)
	require.True(t, ok)
	// age 70m, minus (2-1)*1h = 10m relative age, ttl = 1h-10m = 50m
	assert.Equal(t, 50*time.Minute, ttl2)

	missing := Snapshot{Interval: iv, Number: 5}
	_, _, ok, err = missing.TTL(st, now)
	require.NoError(t, err)
	assert.False(t, ok, "expected missing snapshot to report ok=false")
}

func TestSnapshotExpired(t *testing.T) {
	iv := Interval{Name: "daily", Count: 7, Lifetime: 24 * time.Hour}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	st := fakeStat{
		"daily.1": now.Add(-25 * time.Hour),
	}
	s := Snapshot{Interval: iv, Number: 1}

	expired, err := s.Expired(st, now)
	require.NoError(t, err)
	assert.True(t, expired, "expected snapshot older than its lifetime to be expired")
}

func TestNewestInInterval(t *testing.T) {
	iv := Interval{Name: "weekly", Count: 4, Lifetime: 7 * 24 * time.Hour}
	now := time.Now()

	st := fakeStat{
		"weekly.2": now,
	}

	s, ok, err := NewestInInterval(st, iv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, s.Number)
}

func TestIntervalsAddOrdersByLifetime(t *testing.T) {
	var ivs Intervals
	ivs.Add(Interval{Name: "daily", Lifetime: 24 * time.Hour})
	ivs.Add(Interval{Name: "hourly", Lifetime: time.Hour})
	ivs.Add(Interval{Name: "weekly", Lifetime: 7 * 24 * time.Hour})

	want := []string{"hourly", "daily", "weekly"}
	for i, name := range want {
		assert.Equal(t, name, ivs[i].Name, "ivs[%d].Name", i)
	}
}
