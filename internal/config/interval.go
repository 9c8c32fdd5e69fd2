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
	"time"

	"github.com/snapsd/snapsd/internal/snapmodel"
)

var fixedIntervalLifetime = map[string]time.Duration{
	"hourly": time.Hour,
	"daily":  24 * time.Hour,
	"weekly": 7 * 24 * time.Hour,
}

// daysInMonth returns the number of days (28-31) in the calendar month t
// falls in, used to give "monthly" a lifetime matched to the actual month
// the run started in rather than a fixed 30-day approximation.
func daysInMonth(t time.Time) int {
	firstOfNextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return int(firstOfNextMonth.Sub(firstOfMonth).Hours() / 24)
}

// ParseIntervals resolves the four well-known interval keys (hourly,
// daily, weekly, monthly) into an ordered Intervals list, skipping any
// whose retain count is zero or unset. monthly's lifetime is computed
// from the number of days in the month starttime falls in.
func ParseIntervals(c *Cascade, starttime time.Time) (snapmodel.Intervals, error) {
	var ivs snapmodel.Intervals

	for _, name := range []string{"hourly", "daily", "weekly"} {
		retain, err := c.GetInt(name)
		if err != nil {
			return nil, err
		}
		if retain > 0 {
			ivs.Add(snapmodel.Interval{Name: name, Count: retain, Lifetime: fixedIntervalLifetime[name]})
		}
	}

	retain, err := c.GetInt("monthly")
	if err != nil {
		return nil, err
	}
	if retain > 0 {
		lifetime := time.Duration(daysInMonth(starttime)) * 24 * time.Hour
		ivs.Add(snapmodel.Interval{Name: "monthly", Count: retain, Lifetime: lifetime})
	}

	return ivs, nil
}
