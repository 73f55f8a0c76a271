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

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/dolthub/nestedset/libraries/errhand"
	"github.com/dolthub/nestedset/libraries/nestedset"
)

func nstreeInit(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("init", "create the tree's storage if it does not exist")
	wait := cmd.Flag("wait", "how long to wait for a database server to come up").Default("0s").Duration()

	return cmd, func(ctx context.Context, e *env) error {
		if err := e.store.WaitReady(ctx, *wait); err != nil {
			return errhand.BuildDError("error: %s store is not reachable", e.store.Kind()).AddCause(err).Build()
		}
		if err := e.store.Init(ctx); err != nil {
			return errhand.BuildDError("error: failed to initialize %s store", e.store.Kind()).AddCause(err).Build()
		}
		fmt.Fprintf(e.out, "initialized %s store, table %s\n", e.store.Kind(), e.cfg.Store.Table)
		return nil
	}
}

func nstreeAdd(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("add", "add a node as the last child of a parent, or as the last root")
	parent := cmd.Flag("parent", "id of the parent node; omit to add a root").Short('p').Default("0").Int64()
	fields := cmd.Arg("fields", "payload fields as key=value; id=N assigns the node id").Strings()

	return cmd, func(ctx context.Context, e *env) error {
		payload, err := parseFields(*fields)
		if err != nil {
			return err
		}

		id, err := e.svc.AddNode(ctx, payload, nestedset.NodeID(*parent))
		if err != nil {
			return mutationError(err, "error: failed to add node")
		}
		fmt.Fprintln(e.out, id)
		return nil
	}
}

func nstreeRemove(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("rm", "remove a node and its whole subtree")
	id := cmd.Arg("id", "id of the node to remove").Required().Int64()

	return cmd, func(ctx context.Context, e *env) error {
		if err := e.svc.RemoveNode(ctx, nestedset.NodeID(*id)); err != nil {
			return mutationError(err, "error: failed to remove node %d", *id)
		}
		return nil
	}
}

func nstreeMove(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("mv", "move a node and its subtree relative to a target node")
	id := cmd.Arg("id", "id of the node to move").Required().Int64()
	target := cmd.Arg("target", "id of the target node").Required().Int64()
	under := cmd.Flag("under", "make the node the first child of the target").Bool()
	before := cmd.Flag("before", "make the node the target's previous sibling").Bool()
	after := cmd.Flag("after", "make the node the target's next sibling").Bool()

	return cmd, func(ctx context.Context, e *env) error {
		var dirs []nestedset.Direction
		if *under {
			dirs = append(dirs, nestedset.Under)
		}
		if *before {
			dirs = append(dirs, nestedset.InFrontOf)
		}
		if *after {
			dirs = append(dirs, nestedset.Behind)
		}
		if len(dirs) != 1 {
			return errhand.BuildDError("error: exactly one of --under, --before or --after is required").SetExitCode(2).Build()
		}

		err := e.svc.MoveNode(ctx, nestedset.NodeID(*id), nestedset.NodeID(*target), dirs[0])
		if err != nil {
			return mutationError(err, "error: failed to move node %d %s node %d", *id, dirs[0], *target)
		}
		return nil
	}
}
