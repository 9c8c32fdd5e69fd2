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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostString(t *testing.T) {
	cases := []struct {
		in   string
		want HostSpec
	}{
		{"host", HostSpec{Hostname: "host"}},
		{"user@host", HostSpec{RUser: "user", Hostname: "host"}},
		{"host:path", HostSpec{Hostname: "host", RPath: "path"}},
		{"user@host:path", HostSpec{RUser: "user", Hostname: "host", RPath: "path"}},
		{":path", HostSpec{RPath: "path"}},
		{"", HostSpec{}},
	}
	for _, c := range cases {
		got, err := ParseHostString(c.in)
		require.NoErrorf(t, err, "ParseHostString(%q)", c.in)
		assert.Equalf(t, c.want, got, "ParseHostString(%q)", c.in)
	}
}

func TestParseHostStringRejectsControlChars(t *testing.T) {
	_, err := ParseHostString("ho\nst")
	assert.Error(t, err, "expected error for control character in host string")
}
