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

package nestedset

import (
	"iter"
	"strings"
)

// SkipMode selects how a NodeIterator positions itself inside a subtree and
// how it steps over subtrees cut off by the depth limit.
type SkipMode int

const (
	// SkipLegacy derives positions arithmetically from lft and level. It is
	// only correct when the ordering is densely packed from 1, which every
	// Service mutation preserves, and is kept for compatibility.
	SkipLegacy SkipMode = iota

	// SkipWalk seeks by lft with a binary search, so it stays correct for
	// orderings with gaps.
	SkipWalk
)

func (m SkipMode) String() string {
	switch m {
	case SkipLegacy:
		return "legacy"
	case SkipWalk:
		return "walk"
	default:
		return "unknown"
	}
}

// ParseSkipMode is the inverse of SkipMode.String. The empty string selects
// SkipLegacy.
func ParseSkipMode(s string) (SkipMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return SkipLegacy, nil
	case "walk":
		return SkipWalk, nil
	}
	return SkipLegacy, ErrInvalidArgument.New("unknown skip mode '" + s + "'")
}

// NodeIterator walks a Snapshot in preorder, optionally restricted to the
// descendants of a base node and to a maximum depth. It is restartable with
// Rewind and never touches the store.
type NodeIterator[P any] struct {
	snap       *Snapshot[P]
	base       Node[P]
	hasBase    bool
	depthLimit int64
	mode       SkipMode
	pos        int
}

// NewNodeIterator returns an iterator over |snap|, positioned at its first
// node. Pass NoNode as |baseID| to walk the whole forest and a |depthLimit| of
// zero or less for no limit.
func NewNodeIterator[P any](snap *Snapshot[P], baseID NodeID, depthLimit int, mode SkipMode) (*NodeIterator[P], error) {
	it := &NodeIterator[P]{
		snap:       snap,
		depthLimit: int64(depthLimit),
		mode:       mode,
	}

	if baseID != NoNode {
		base, ok := snap.Get(baseID)
		if !ok {
			return nil, ErrInvalidArgument.New("base node " + baseID.String() + " does not exist")
		}
		it.base = base
		it.hasBase = true
	}

	it.Rewind()
	return it, nil
}

// Rewind moves the iterator back to the first node of its range.
func (it *NodeIterator[P]) Rewind() {
	if !it.hasBase {
		it.pos = 0
		return
	}

	switch it.mode {
	case SkipWalk:
		it.pos = it.snap.seekAbove(it.base.Lft)
	default:
		// number of nodes before the base plus one, assuming every value from
		// 1 up to base.Lft is used by exactly one boundary
		it.pos = int((it.base.Lft + it.base.Level + 1) / 2)
	}
	if it.pos < 0 {
		it.pos = 0
	}
}

// Valid returns true while the iterator points at a node of its range.
func (it *NodeIterator[P]) Valid() bool {
	if it.pos >= it.snap.Len() {
		return false
	}
	if it.hasBase {
		return it.snap.At(it.pos).Lft < it.base.Rgt
	}
	return true
}

// Next advances the iterator. A node at the depth limit has its whole subtree
// skipped.
func (it *NodeIterator[P]) Next() {
	if it.pos >= it.snap.Len() {
		return
	}

	cur := it.snap.At(it.pos)
	if it.depthLimit <= 0 || cur.Level != it.maxLevel() || cur.IsLeaf() {
		it.pos++
		return
	}

	switch it.mode {
	case SkipWalk:
		it.pos = it.snap.seekAbove(cur.Rgt)
	default:
		it.pos += int(cur.Descendants()) + 1
	}
}

// Current returns the node the iterator points at. It must only be called
// while Valid returns true.
func (it *NodeIterator[P]) Current() Node[P] {
	return it.snap.At(it.pos)
}

// Key returns the id of the current node.
func (it *NodeIterator[P]) Key() NodeID {
	return it.Current().ID
}

// All rewinds the iterator and yields every node in its range.
func (it *NodeIterator[P]) All() iter.Seq2[NodeID, Node[P]] {
	return func(yield func(NodeID, Node[P]) bool) {
		for it.Rewind(); it.Valid(); it.Next() {
			n := it.Current()
			if !yield(n.ID, n) {
				return
			}
		}
	}
}

// Collect rewinds the iterator and returns every node in its range.
func (it *NodeIterator[P]) Collect() []Node[P] {
	var out []Node[P]
	for _, n := range it.All() {
		out = append(out, n)
	}
	return out
}

func (it *NodeIterator[P]) maxLevel() int64 {
	if it.hasBase {
		return it.base.Level + it.depthLimit
	}
	return it.depthLimit - 1
}
