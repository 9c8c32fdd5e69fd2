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

package app

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/snapsd/snapsd/internal/config"
	"github.com/snapsd/snapsd/internal/config/lex"
	"github.com/snapsd/snapsd/internal/endpoint"
	"github.com/snapsd/snapsd/internal/log"
	"github.com/snapsd/snapsd/internal/pathsec"
	"github.com/snapsd/snapsd/internal/supervisor"
)

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "inspect and validate the snapsd configuration",
	Subcommands: []*cli.Command{
		{
			Name:  "check",
			Usage: "parse and validate the configuration file, reporting every endpoint that would run",
			Action: func(cliContext *cli.Context) error {
				ctx := log.WithLogger(cliContext.Context, log.L)
				opts := runOptions{
					configPath: cliContext.String("config"),
					filters:    cliContext.StringSlice("filter"),
					checkOnly:  true,
					startTime:  startTime(ctx),
				}
				return run(ctx, opts)
			},
		},
	},
}

type runOptions struct {
	configPath string
	force      bool
	checkOnly  bool
	filters    []string
	watch      bool
	verbose    int
	startTime  time.Time
}

// run loads and validates the configuration, then either reports what it
// found (checkOnly) or hands the resulting endpoints to the supervisor
// for one full pass.
func run(ctx context.Context, opts runOptions) error {
	logger := log.G(ctx)

	eps, err := loadEndpoints(ctx, opts.configPath, opts.filters, opts.startTime)
	if err != nil {
		return err
	}

	if opts.checkOnly {
		for _, ep := range eps {
			logger.Infof("%s: ok (root=%s, path=%s)", ep.ID(), ep.Root, ep.Path)
		}
		return nil
	}

	eps = supervisor.PrepareEndpoints(ctx, eps)

	if opts.watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := config.WatchFile(watchCtx, opts.configPath, func() {
			if _, verifyErr := loadEndpoints(ctx, opts.configPath, opts.filters, opts.startTime); verifyErr != nil {
				logger.WithError(verifyErr).Warn("configuration changed and no longer validates")
			} else {
				logger.Info("configuration changed and still validates")
			}
		}); err != nil {
			return err
		}
	}

	return supervisor.Run(ctx, eps, supervisor.Options{
		StartTime: opts.startTime,
		Force:     opts.force,
		Verbose:   opts.verbose,
	})
}

// loadEndpoints reads and trust-checks the config file itself, parses it,
// builds every endpoint, logs (without aborting) any that failed
// validation, and applies the -s substring filters.
func loadEndpoints(ctx context.Context, configPath string, filters []string, at time.Time) ([]endpoint.Endpoint, error) {
	logger := log.G(ctx)

	// Mirrors the original's own config-file check: owned by the
	// superuser and group 0 ("wheel"), group-readable at most.
	trust, err := pathsec.TrustedPath(configPath, pathsec.RelaxGroupRead, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "check trust of %s", configPath)
	}
	if !trust.Trusted || !trust.Exists {
		return nil, errors.Errorf("%s is untrusted: it and every ancestor directory must be owned by the "+
			"superuser, must not be writable by the group or others, and the file itself must not be "+
			"readable or writable by others", configPath)
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", configPath)
	}
	defer f.Close()

	tree, err := lex.Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", configPath)
	}

	eps, errs := config.BuildEndpoints(tree, at)
	for _, e := range errs {
		logger.Warn(e)
	}

	if len(filters) == 0 {
		return eps, nil
	}

	var kept []endpoint.Endpoint
	for _, ep := range eps {
		if matchesAnyFilter(ep, filters) {
			kept = append(kept, ep)
		}
	}
	return kept, nil
}

func matchesAnyFilter(ep endpoint.Endpoint, filters []string) bool {
	for _, f := range filters {
		if strings.Contains(ep.Hostname+":"+ep.RPath, f) {
			return true
		}
	}
	return false
}
