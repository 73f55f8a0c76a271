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
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/xlab/treeprint"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/dolthub/nestedset/libraries/errhand"
	"github.com/dolthub/nestedset/libraries/nestedset"
)

func nstreeGet(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("get", "print a node, its bounds and its path from the root")
	id := cmd.Arg("id", "id of the node").Required().Int64()

	return cmd, func(ctx context.Context, e *env) error {
		snap, err := e.svc.Snapshot(ctx)
		if err != nil {
			return errhand.BuildDError("error: failed to read tree").AddCause(err).Build()
		}

		n, ok := snap.Get(nestedset.NodeID(*id))
		if !ok {
			return mutationError(nestedset.ErrNodeNotFound.New(nestedset.NodeID(*id)), "error: failed to get node %d", *id)
		}

		path := snap.Path(n.ID)
		labels := make([]string, len(path))
		for i, p := range path {
			labels[i] = label(p.Payload)
		}

		fmt.Fprintf(e.out, "%s %d\n", color.YellowString("node"), n.ID)
		fmt.Fprintf(e.out, "lft:    %d\n", n.Lft)
		fmt.Fprintf(e.out, "rgt:    %d\n", n.Rgt)
		fmt.Fprintf(e.out, "level:  %d\n", n.Level)
		fmt.Fprintf(e.out, "fields: %s\n", formatFields(n.Payload))
		fmt.Fprintf(e.out, "path:   %s\n", strings.Join(labels, " > "))
		return nil
	}
}

func nstreeShow(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("show", "print the tree, or the subtree below a node")
	base := cmd.Flag("base", "only show descendants of this node").Short('b').Default("0").Int64()
	depth := cmd.Flag("depth", "number of levels to show; 0 shows all").Short('d').Default("0").Int()

	return cmd, func(ctx context.Context, e *env) error {
		if *depth < 0 {
			return errhand.BuildDError("error: --depth must not be negative").SetExitCode(2).Build()
		}

		snap, err := e.svc.Snapshot(ctx)
		if err != nil {
			return errhand.BuildDError("error: failed to read tree").AddCause(err).Build()
		}

		it, err := nestedset.NewNodeIterator(snap, nestedset.NodeID(*base), *depth, e.skipMode)
		if err != nil {
			return mutationError(err, "error: failed to show tree")
		}

		rootLabel := "."
		if b, ok := snap.Get(nestedset.NodeID(*base)); ok {
			rootLabel = label(b.Payload)
		}

		tree, count := renderTree(rootLabel, it)
		fmt.Fprint(e.out, tree.String())
		fmt.Fprintf(e.out, "%s nodes\n", humanize.Comma(int64(count)))
		return nil
	}
}

// renderTree lays the iterator's nodes out as a treeprint tree. Nodes arrive
// in preorder, so the open ancestors of the current node form a stack.
func renderTree(rootLabel string, it *nestedset.NodeIterator[nestedset.Fields]) (treeprint.Tree, int) {
	tree := treeprint.NewWithRoot(rootLabel)

	type open struct {
		rgt    int64
		branch treeprint.Tree
	}
	var stack []open
	count := 0

	for _, n := range it.All() {
		for len(stack) > 0 && stack[len(stack)-1].rgt < n.Lft {
			stack = stack[:len(stack)-1]
		}
		parent := tree
		if len(stack) > 0 {
			parent = stack[len(stack)-1].branch
		}

		branch := parent.AddMetaBranch(n.ID, label(n.Payload))
		stack = append(stack, open{rgt: n.Rgt, branch: branch})
		count++
	}

	return tree, count
}

func nstreeCheck(app *kingpin.Application) (*kingpin.CmdClause, handler) {
	cmd := app.Command("check", "verify the nested set bounds of the stored tree")

	return cmd, func(ctx context.Context, e *env) error {
		snap, err := e.svc.Snapshot(ctx)
		if err != nil {
			return errhand.BuildDError("error: failed to read tree").AddCause(err).Build()
		}

		if err := snap.Validate(); err != nil {
			return errhand.BuildDError("error: tree is corrupt").AddDetails("%v", err).SetExitCode(4).Build()
		}

		roots := len(snap.Roots())
		var depth int64
		for _, n := range snap.Nodes() {
			if n.Level+1 > depth {
				depth = n.Level + 1
			}
		}

		status := color.GreenString("ok")
		if !snap.IsDense() {
			status = color.YellowString("ok, boundaries are not densely packed")
		}
		fmt.Fprintf(e.out, "%s: %s nodes, %s roots, depth %d\n",
			status, humanize.Comma(int64(snap.Len())), humanize.Comma(int64(roots)), depth)
		return nil
	}
}
