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

package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadCmdRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	for _, c := range []Cmd{Start, Stop, Ready, RotCleanup, RotInclude} {
		require.NoError(t, WriteCmd(&buf, c))
	}
	for _, want := range []Cmd{Start, Stop, Ready, RotCleanup, RotInclude} {
		got, err := ReadCmd(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReadCmdEOFIsClosed(t *testing.T) {
	var buf bytes.Buffer
	cmd, err := ReadCmd(&buf)
	require.NoError(t, err)
	assert.Equal(t, Closed, cmd)
}

func TestWriteCustRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCust(&buf, 17))

	cmd, err := ReadCmd(&buf)
	require.NoError(t, err)
	assert.Equal(t, Cust, cmd)

	code, err := ReadCustPayload(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(17), code)
}
