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

// Package nstestutils holds helpers shared by the tests of nestedset stores: a
// pointer based reference model of a forest and a conformance suite every
// Store implementation is expected to pass.
package nstestutils

import (
	"fmt"
	"slices"

	"github.com/dolthub/nestedset/libraries/nestedset"
)

// Forest is a parent/child pointer model of a forest. Tests apply the same
// operations to a Forest and to a Service and compare the results.
type Forest struct {
	roots []*forestNode
	nodes map[nestedset.NodeID]*forestNode
}

type forestNode struct {
	id       nestedset.NodeID
	parent   *forestNode
	children []*forestNode
}

// Visit is a node in expected preorder.
type Visit struct {
	ID    nestedset.NodeID
	Level int64
}

func NewForest() *Forest {
	return &Forest{nodes: make(map[nestedset.NodeID]*forestNode)}
}

func (f *Forest) Len() int {
	return len(f.nodes)
}

// IDs returns every id in the forest in preorder.
func (f *Forest) IDs() []nestedset.NodeID {
	var ids []nestedset.NodeID
	for _, v := range f.Preorder() {
		ids = append(ids, v.ID)
	}
	return ids
}

// Add appends |id| as the last child of |parent|, or as the last root.
func (f *Forest) Add(id, parent nestedset.NodeID) {
	n := &forestNode{id: id}
	f.nodes[id] = n
	if parent == nestedset.NoNode {
		f.roots = append(f.roots, n)
		return
	}

	p := f.mustGet(parent)
	n.parent = p
	p.children = append(p.children, n)
}

// Remove deletes |id| and all of its descendants.
func (f *Forest) Remove(id nestedset.NodeID) {
	n := f.mustGet(id)
	f.detach(n)

	var forget func(*forestNode)
	forget = func(n *forestNode) {
		delete(f.nodes, n.id)
		for _, c := range n.children {
			forget(c)
		}
	}
	forget(n)
}

// Move relocates |id| relative to |target|.
func (f *Forest) Move(id, target nestedset.NodeID, dir nestedset.Direction) {
	n, t := f.mustGet(id), f.mustGet(target)
	f.detach(n)

	switch dir {
	case nestedset.Under:
		n.parent = t
		t.children = slices.Insert(t.children, 0, n)
	case nestedset.InFrontOf, nestedset.Behind:
		n.parent = t.parent
		siblings := f.siblings(t)
		i := slices.Index(*siblings, t)
		if dir == nestedset.Behind {
			i++
		}
		*siblings = slices.Insert(*siblings, i, n)
	}
}

// IsDescendant returns true if |id| lies below |ancestor|.
func (f *Forest) IsDescendant(id, ancestor nestedset.NodeID) bool {
	for p := f.mustGet(id).parent; p != nil; p = p.parent {
		if p.id == ancestor {
			return true
		}
	}
	return false
}

// Preorder returns every node with its depth, parents first.
func (f *Forest) Preorder() []Visit {
	out := make([]Visit, 0, len(f.nodes))
	var walk func(*forestNode, int64)
	walk = func(n *forestNode, level int64) {
		out = append(out, Visit{ID: n.id, Level: level})
		for _, c := range n.children {
			walk(c, level+1)
		}
	}
	for _, r := range f.roots {
		walk(r, 0)
	}
	return out
}

func (f *Forest) detach(n *forestNode) {
	siblings := f.siblings(n)
	*siblings = slices.DeleteFunc(*siblings, func(o *forestNode) bool {
		return o == n
	})
	n.parent = nil
}

func (f *Forest) siblings(n *forestNode) *[]*forestNode {
	if n.parent == nil {
		return &f.roots
	}
	return &n.parent.children
}

func (f *Forest) mustGet(id nestedset.NodeID) *forestNode {
	n, ok := f.nodes[id]
	if !ok {
		panic(fmt.Sprintf("node %d is not in the forest", id))
	}
	return n
}

// SnapshotVisits lists the id and level of every node of |snap| in lft order.
func SnapshotVisits[P any](snap *nestedset.Snapshot[P]) []Visit {
	out := make([]Visit, snap.Len())
	for i := range out {
		n := snap.At(i)
		out[i] = Visit{ID: n.ID, Level: n.Level}
	}
	return out
}
