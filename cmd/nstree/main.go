// Copyright 2026 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// nstree maintains a nested set tree stored in a bbolt file, MySQL or
// Postgres, as described by a YAML config file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/dolthub/nestedset/libraries/errhand"
	"github.com/dolthub/nestedset/libraries/nestedset"
	"github.com/dolthub/nestedset/libraries/nestedset/nscfg"
)

const Version = "0.3.0"

var commands = []command{
	nstreeInit,
	nstreeAdd,
	nstreeRemove,
	nstreeMove,
	nstreeGet,
	nstreeShow,
	nstreeCheck,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := kingpin.New("nstree", "Maintain a nested set tree.")
	app.Version(Version)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	app.Terminate(func(status int) {
		panic(terminated(status))
	})

	configPath := app.Flag("config", "path to the YAML config file").Short('c').Envar("NSTREE_CONFIG").String()
	verbose := app.Flag("verbose", "log every mutation and show error causes").Short('v').Bool()

	handlers := make(map[string]handler, len(commands))
	for _, cmd := range commands {
		clause, h := cmd(app)
		handlers[clause.FullCommand()] = h
	}

	input, status, err := parseArgs(app, args)
	if status >= 0 {
		if !noCommand(app, args) {
			return status
		}
		// usage has been printed, but a missing command is still an error
		err = kingpin.ErrCommandNotSpecified
	}
	if err != nil {
		fmt.Fprintln(stderr, errhand.Format(usageError(err), false))
		return 2
	}

	env, err := newEnv(*configPath, *verbose, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, errhand.Format(err, *verbose))
		return errhand.ExitCode(err)
	}
	defer env.close()

	if err := handlers[input](ctx, env); err != nil {
		fmt.Fprintln(stderr, errhand.Format(err, *verbose))
		return errhand.ExitCode(err)
	}
	return 0
}

// terminated carries the status kingpin asks to exit with after printing
// help, the version or the usage.
type terminated int

// parseArgs runs app.Parse, returning the requested exit status instead of
// exiting. The status is -1 when parsing ran to completion.
func parseArgs(app *kingpin.Application, args []string) (input string, status int, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, ok := r.(terminated)
			if !ok {
				panic(r)
			}
			input, status, err = "", int(t), nil
		}
	}()

	input, err = app.Parse(args)
	return input, -1, err
}

// noCommand returns true when |args| name no command and ask for neither
// help nor the version.
func noCommand(app *kingpin.Application, args []string) bool {
	pc, err := app.ParseContext(args)
	if err != nil || pc.SelectedCommand != nil {
		return false
	}
	for _, el := range pc.Elements {
		if f, ok := el.Clause.(*kingpin.FlagClause); ok && (f == app.HelpFlag || f == app.VersionFlag) {
			return false
		}
	}
	return true
}

// env is what every command handler runs against.
type env struct {
	cfg    *nscfg.Config
	logger *logrus.Logger
	store  *nscfg.Store
	svc    *nestedset.Service[nestedset.Fields]
	out    io.Writer

	skipMode nestedset.SkipMode
}

func newEnv(configPath string, verbose bool, stdout, stderr io.Writer) (*env, error) {
	cfg := nscfg.Default()
	if configPath != "" {
		var err error
		cfg, err = nscfg.Load(configPath)
		if err != nil {
			return nil, errhand.BuildDError("error: failed to load config").AddCause(err).SetExitCode(2).Build()
		}
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	level, _ := cfg.Level()
	if verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	store, err := cfg.OpenStore(logger)
	if err != nil {
		return nil, errhand.BuildDError("error: failed to open %s store", cfg.Store.Kind).AddCause(err).Build()
	}

	opts, err := cfg.ServiceOptions(logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	skipMode, _ := nestedset.ParseSkipMode(cfg.SkipMode)

	return &env{
		cfg:    cfg,
		logger: logger,
		store:  store,
		svc:    nestedset.NewService[nestedset.Fields](store, nestedset.FieldsCodec{}, opts...),
		out:    stdout,

		skipMode: skipMode,
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.WithError(err).Warn("closing store")
	}
}
