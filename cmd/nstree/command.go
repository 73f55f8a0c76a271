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

package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/dolthub/nestedset/libraries/errhand"
	"github.com/dolthub/nestedset/libraries/nestedset"
)

type handler func(ctx context.Context, e *env) error

// command registers a subcommand on the app and returns the handler run when
// it is selected.
type command func(app *kingpin.Application) (*kingpin.CmdClause, handler)

// parseFields turns key=value arguments into payload fields. Values that
// parse as integers are stored as integers.
func parseFields(args []string) (nestedset.Fields, error) {
	fields := make(nestedset.Fields, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, errhand.BuildDError("error: invalid field '%s'", arg).
				AddDetails("fields are given as key=value").
				SetExitCode(2).
				Build()
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			fields[k] = n
		} else {
			fields[k] = v
		}
	}
	return fields, nil
}

// label is how a node is shown in listings: its name or title field when it
// has one, otherwise all of its fields.
func label(f nestedset.Fields) string {
	for _, k := range []string{"name", "title"} {
		if v, ok := f[k]; ok {
			return fmt.Sprint(v)
		}
	}
	return formatFields(f)
}

func formatFields(f nestedset.Fields) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, f[k])
	}
	return strings.Join(parts, " ")
}

func usageError(err error) error {
	return errhand.BuildDError("error: %s", err.Error()).
		AddDetails("run 'nstree --help' for usage").
		SetExitCode(2).
		Build()
}

// mutationError describes a failed operation on node |id|.
func mutationError(err error, format string, args ...interface{}) error {
	b := errhand.BuildIf(err, format, args...)
	switch {
	case err == nil:
		return nil
	case nestedset.IsNotFound(err):
		b.AddDetails("%v", err).SetExitCode(3)
	case nestedset.IsLogicError(err):
		b.AddDetails("a node cannot be moved into its own subtree").SetExitCode(2)
	case nestedset.ErrInvalidArgument.Is(err), nestedset.ErrDuplicateID.Is(err):
		b.AddDetails("%v", err).SetExitCode(2)
	case nestedset.ErrLockTimeout.Is(err):
		b.AddDetails("another writer is holding the tree; try again")
	}
	return b.Build()
}
