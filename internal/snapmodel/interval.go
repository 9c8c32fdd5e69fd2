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

// Package snapmodel defines the data types shared by the rotation engine
// and the endpoint configuration layer: named retention intervals and the
// individual snapshot directories that live inside them.
package snapmodel

import "time"

// TimePad is the grace period subtracted from a snapshot's remaining TTL
// before deciding whether it has expired: a snapshot with TimePad or less
// left already counts as expired, so a run that starts slightly early
// because of clock or scheduling jitter still rotates it.
const TimePad = 30 * time.Second

// Interval is one retention tier: up to Count snapshots, each expected to
// be roughly Lifetime apart in age.
type Interval struct {
	Name     string
	Count    int
	Lifetime time.Duration
}

// Intervals is an ordered list of retention tiers, always kept sorted by
// ascending Lifetime (ties keep insertion order), finest-grained first.
type Intervals []Interval

// Add inserts iv into its ascending-lifetime position.
func (ivs *Intervals) Add(iv Interval) {
	list := *ivs
	i := 0
	for i < len(list) && list[i].Lifetime <= iv.Lifetime {
		i++
	}
	list = append(list, Interval{})
	copy(list[i+1:], list[i:])
	list[i] = iv
	*ivs = list
}

// ByName returns the interval named name, or false if none matches.
func (ivs Intervals) ByName(name string) (Interval, bool) {
	for _, iv := range ivs {
		if iv.Name == name {
			return iv, true
		}
	}
	return Interval{}, false
}
