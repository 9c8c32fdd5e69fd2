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

// Package ipc implements the small fixed-width command protocol the
// supervisor uses to talk to its rotator, syncer and postexec children
// over a socketpair-derived connection.
package ipc

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Cmd is one command in the protocol, sent as a native-width int on the
// wire (four bytes here, matching a 32-bit int).
type Cmd int32

const (
	// Closed is never sent; ReadCmd synthesizes it on EOF.
	Closed Cmd = 0x0000
	// Start tells a waiting child to begin its work.
	Start Cmd = 0x0001
	// Stop tells a waiting child to exit without doing any work.
	Stop Cmd = 0x0002
	// Ready is sent by the rotator once it has prepared a fresh sync
	// area and is waiting for permission to let the syncer run.
	Ready Cmd = 0x0004
	// RotCleanup tells the rotator to discard the sync area without
	// rotating it in, because the syncer did not succeed.
	RotCleanup Cmd = 0x0008
	// RotInclude tells the rotator to roll the synced data into the
	// first interval.
	RotInclude Cmd = 0x000c
	// Cust is followed on the wire by one additional int32: the
	// syncer's exit status, relayed to the postexec hook.
	Cust Cmd = 0x0010
)

func (c Cmd) String() string {
	switch c {
	case Closed:
		return "closed"
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Ready:
		return "ready"
	case RotCleanup:
		return "rot-cleanup"
	case RotInclude:
		return "rot-include"
	case Cust:
		return "cust"
	default:
		return "unknown"
	}
}

// wireOrder matches the host's native int representation; this program
// only runs on little-endian Linux targets, so binary.LittleEndian is the
// faithful equivalent of the original's bare native-int write(2)/read(2).
var wireOrder = binary.LittleEndian

// WriteCmd writes cmd as a 4-byte integer to w.
func WriteCmd(w io.Writer, cmd Cmd) error {
	var buf [4]byte
	wireOrder.PutUint32(buf[:], uint32(cmd))
	n, err := w.Write(buf[:])
	if err != nil {
		return errors.Wrap(err, "ipc: write command")
	}
	if n != len(buf) {
		return errors.Errorf("ipc: short write: %d bytes instead of %d", n, len(buf))
	}
	return nil
}

// WriteCust writes a Cust command followed by the given exit code.
func WriteCust(w io.Writer, exitCode int32) error {
	if err := WriteCmd(w, Cust); err != nil {
		return err
	}
	var buf [4]byte
	wireOrder.PutUint32(buf[:], uint32(exitCode))
	n, err := w.Write(buf[:])
	if err != nil {
		return errors.Wrap(err, "ipc: write cust payload")
	}
	if n != len(buf) {
		return errors.Errorf("ipc: short write: %d bytes instead of %d", n, len(buf))
	}
	return nil
}

// ReadCmd reads one command from r. A clean EOF before any byte is read
// is reported as Closed with a nil error, matching the protocol's
// "parent hung up" convention; a partial read is an error.
func ReadCmd(r io.Reader) (Cmd, error) {
	var buf [4]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return Closed, nil
		}
		return 0, errors.Wrap(err, "ipc: read command")
	}
	return Cmd(wireOrder.Uint32(buf[:])), nil
}

// ReadCustPayload reads the exit-code payload that follows a Cust command.
func ReadCustPayload(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrap(err, "ipc: read cust payload")
	}
	return int32(wireOrder.Uint32(buf[:])), nil
}
