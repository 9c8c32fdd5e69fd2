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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeFallsThroughLayers(t *testing.T) {
	c := NewCascade()

	v, ok := c.Get("ruser")
	require.True(t, ok)
	assert.Equal(t, "root", v)

	require.NoError(t, c.SetGlobal(Entry{Key: "ruser", Val: "backupuser"}))
	v, _ = c.Get("ruser")
	assert.Equal(t, "backupuser", v, "global override not applied")

	require.NoError(t, c.SetEndpoint(Entry{Key: "ruser", Val: "specific"}))
	v, _ = c.Get("ruser")
	assert.Equal(t, "specific", v, "endpoint override not applied")

	c.ResetEndpoint()
	v, _ = c.Get("ruser")
	assert.Equal(t, "backupuser", v, "expected global value after ResetEndpoint")
}

func TestCascadeRejectsUnknownKey(t *testing.T) {
	c := NewCascade()
	assert.Error(t, c.SetGlobal(Entry{Key: "bogus", Val: "x"}), "expected error for unknown global key")
}

func TestCascadeRejectsDuplicateKey(t *testing.T) {
	c := NewCascade()
	require.NoError(t, c.SetGlobal(Entry{Key: "hostname", Val: "a"}))
	assert.Error(t, c.SetGlobal(Entry{Key: "hostname", Val: "b"}), "expected error when setting the same key twice")
}

func TestParseIntervalsSkipsZeroCounts(t *testing.T) {
	c := NewCascade()
	require.NoError(t, c.SetGlobal(Entry{Key: "hourly", Val: "6"}))

	ivs, err := ParseIntervals(c, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, ivs, 1)
	assert.Equal(t, "hourly", ivs[0].Name)
	assert.Equal(t, 6, ivs[0].Count)
}

func TestDaysInMonthFebruaryLeapYear(t *testing.T) {
	assert.Equal(t, 29, daysInMonth(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, daysInMonth(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))
}
