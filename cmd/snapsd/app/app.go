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

// Package app wires up the snapsd command line: global flags, the hidden
// re-exec role subcommands that dispatch into the rotator/syncer/postexec
// entry points, and the config subcommand family.
package app

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/snapsd/snapsd/internal/childproc"
	"github.com/snapsd/snapsd/internal/log"
	"github.com/snapsd/snapsd/internal/postexecproc"
	"github.com/snapsd/snapsd/internal/rotatorproc"
	"github.com/snapsd/snapsd/internal/syncerproc"
	"github.com/snapsd/snapsd/version"
)

const defaultConfigPath = "/etc/snaps.conf"

// verbose and quiet are bound to -v/-q's Count in New and read back out in
// runAction and the config-check subcommand once cli/v2 has parsed flags.
var verbose, quiet int

var roleRunners = map[childproc.Role]childproc.Runner{
	childproc.RoleRotate:   rotatorproc.Run,
	childproc.RoleSync:     syncerproc.Run,
	childproc.RolePostexec: postexecproc.Run,
}

// New returns the *cli.App instance run from main.
func New() *cli.App {
	app := cli.NewApp()
	app.Name = "snapsd"
	app.Version = version.Version
	app.Usage = "rsync-based snapshot backup orchestrator"
	app.UsageText = "snapsd [global options]"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "configuration file path",
			Value:   defaultConfigPath,
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "bypass the first-snapshot-not-yet-expired skip, and let roll-in evict an unexpired head",
		},
		&cli.BoolFlag{
			Name:    "check",
			Aliases: []string{"n"},
			Usage:   "parse and validate the configuration, then exit without running",
		},
		&cli.StringSliceFlag{
			Name:    "filter",
			Aliases: []string{"s"},
			Usage:   "only back up endpoints whose hostname:rpath contains this substring (repeatable)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "decrease verbosity (repeatable)",
			Count:   &quiet,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity (repeatable)",
			Count:   &verbose,
		},
		&cli.BoolFlag{
			Name:  "watch-config",
			Usage: "after completing a pass, watch the configuration file and re-validate (not re-run) it on change",
		},
	}

	app.Before = func(cliContext *cli.Context) error {
		log.L.Logger.SetLevel(levelFor(verbose - quiet))
		return nil
	}

	app.Commands = []*cli.Command{
		configCommand,
		roleCommand(childproc.RoleRotate),
		roleCommand(childproc.RoleSync),
		roleCommand(childproc.RolePostexec),
	}

	app.Action = runAction

	return app
}

// levelFor maps the cumulative -q/-v count onto a logrus level, warn at
// the default (0), one step more verbose per level above that, and quiet
// all the way down to only fatal errors below it.
func levelFor(level int) logrus.Level {
	switch {
	case level <= -2:
		return logrus.FatalLevel
	case level == -1:
		return logrus.ErrorLevel
	case level == 0:
		return logrus.WarnLevel
	case level == 1:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// roleCommand returns the hidden subcommand a re-exec'd child is invoked
// with: it reads its command channel and configuration from the fixed
// inherited file descriptors and runs straight into the matching entry
// point, exiting with that entry point's own exit code.
func roleCommand(role childproc.Role) *cli.Command {
	return &cli.Command{
		Name:   string(role),
		Hidden: true,
		Action: func(cliContext *cli.Context) error {
			cmdChan, cfg, err := childproc.Inherited()
			if err != nil {
				return err
			}
			ctx := log.WithLogger(cliContext.Context, log.L)
			os.Exit(roleRunners[role](ctx, cmdChan, cfg))
			return nil
		},
	}
}

func runAction(cliContext *cli.Context) error {
	ctx := log.WithLogger(cliContext.Context, log.L)
	opts := runOptions{
		configPath: cliContext.String("config"),
		force:      cliContext.Bool("force"),
		checkOnly:  cliContext.Bool("check"),
		filters:    cliContext.StringSlice("filter"),
		watch:      cliContext.Bool("watch-config"),
		verbose:    verbose - quiet,
		startTime:  startTime(ctx),
	}
	return run(ctx, opts)
}

// startTime is split out so tests can stub a fixed time; production
// callers always get the wall clock.
var startTime = func(context.Context) time.Time { return time.Now() }
