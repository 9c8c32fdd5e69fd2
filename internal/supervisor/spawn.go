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

package supervisor

import (
	"context"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/snapsd/snapsd/internal/childproc"
	"github.com/snapsd/snapsd/internal/ipc"
)

// child is a spawned rotator/syncer/postexec process together with the
// supervisor's end of its command channel.
type child struct {
	cmd  *exec.Cmd
	conn *os.File
}

// spawnChild re-execs the current binary with the given hidden role
// subcommand, handing it a fresh command channel and an encoded copy of
// cfg across inherited file descriptors — this process's analogue of the
// original's fork-and-keep-running-in-the-child step, see the childproc
// package doc comment for why a re-exec is necessary here.
func spawnChild(ctx context.Context, role childproc.Role, cfg childproc.Config) (*child, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: resolve own executable")
	}

	parentChan, childChan, err := ipc.NewChannelPair()
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: command channel")
	}

	cfgRead, cfgWrite, err := os.Pipe()
	if err != nil {
		parentChan.Close()
		childChan.Close()
		return nil, errors.Wrap(err, "supervisor: config pipe")
	}
	if err := childproc.Encode(cfgWrite, cfg); err != nil {
		parentChan.Close()
		childChan.Close()
		cfgRead.Close()
		cfgWrite.Close()
		return nil, err
	}
	if err := cfgWrite.Close(); err != nil {
		parentChan.Close()
		childChan.Close()
		cfgRead.Close()
		return nil, errors.Wrap(err, "supervisor: close config pipe write end")
	}

	cmd := exec.CommandContext(ctx, self, string(role))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{childChan, cfgRead}

	if err := cmd.Start(); err != nil {
		parentChan.Close()
		childChan.Close()
		cfgRead.Close()
		return nil, errors.Wrapf(err, "supervisor: start %s", role)
	}

	childChan.Close()
	cfgRead.Close()

	return &child{cmd: cmd, conn: parentChan}, nil
}

// stop signals the child to exit without doing its work, if it hasn't
// already been otherwise concluded, then reaps it.
func (c *child) stop() (exitCode int, err error) {
	if err := ipc.WriteCmd(c.conn, ipc.Stop); err != nil {
		c.conn.Close()
		_ = c.cmd.Wait()
		return -1, errors.Wrap(err, "supervisor: write stop")
	}
	return c.closeAndWait()
}

// closeAndWait closes the supervisor's end of the command channel and
// waits for the child to exit, returning its exit code.
func (c *child) closeAndWait() (exitCode int, err error) {
	if err := c.conn.Close(); err != nil {
		return -1, errors.Wrap(err, "supervisor: close command channel")
	}
	err = c.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, errors.Wrap(err, "supervisor: wait for child")
}
