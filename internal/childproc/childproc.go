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

// Package childproc defines the handoff contract between the supervisor
// and the re-exec'd rotator/syncer/postexec children it spawns: the
// hidden CLI role each one is invoked with, and the JSON configuration
// blob and file descriptor numbers they read it from. Go cannot fork(2)
// without exec from a multi-threaded runtime, so where the original
// forks and keeps working in the child's copy of the parent's memory,
// this program re-execs itself and reconstructs just enough state
// (one endpoint, one command channel) from what's passed across the exec.
package childproc

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/snapsd/snapsd/internal/endpoint"
)

// Role identifies which child entry point a re-exec'd process should run.
type Role string

const (
	RoleRotate   Role = "__rotate"
	RoleSync     Role = "__sync"
	RolePostexec Role = "__postexec"
)

// CmdFD and ConfigFD are the fixed file descriptor numbers a child
// expects its command channel and configuration blob on, the first two
// entries of (*exec.Cmd).ExtraFiles translate to fd 3 and 4 in the child.
const (
	CmdFD    = 3
	ConfigFD = 4
)

// Config is everything a child needs to run independently of the
// supervisor's in-memory state: its one endpoint, the run's start time,
// whether a full backup was forced, and the resolved verbosity level.
type Config struct {
	Endpoint  endpoint.Endpoint
	StartTime time.Time
	Force     bool
	Verbose   int
}

// Encode writes cfg to w as JSON.
func Encode(w io.Writer, cfg Config) error {
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		return errors.Wrap(err, "childproc: encode config")
	}
	return nil
}

// Decode reads a Config previously written by Encode.
func Decode(r io.Reader) (Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "childproc: decode config")
	}
	return cfg, nil
}

// Inherited opens the command channel and configuration blob a re-exec'd
// child expects to find at CmdFD/ConfigFD, decoding the configuration.
func Inherited() (cmdChan *os.File, cfg Config, err error) {
	cmdChan = os.NewFile(uintptr(CmdFD), "snapsd-cmd")
	if cmdChan == nil {
		return nil, Config{}, errors.New("childproc: command channel fd not inherited")
	}
	cfgFile := os.NewFile(uintptr(ConfigFD), "snapsd-config")
	if cfgFile == nil {
		return nil, Config{}, errors.New("childproc: config fd not inherited")
	}
	defer cfgFile.Close()

	cfg, err = Decode(cfgFile)
	if err != nil {
		return nil, Config{}, err
	}
	return cmdChan, cfg, nil
}

// Runner is the signature every role entry point implements.
type Runner func(ctx context.Context, cmdChan *os.File, cfg Config) int
