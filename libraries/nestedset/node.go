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

// Package nestedset stores forests of trees in a flat, lft-ordered table using
// the nested set model. Each node carries a (lft, rgt) boundary pair and a
// level; the descendants of a node are exactly the nodes whose boundaries fall
// strictly inside its own.
package nestedset

import "strconv"

// NodeID identifies a node in a Store. Zero is never a valid id.
type NodeID int64

// NoNode is passed where a node id is optional, e.g. the parent of a root.
const NoNode NodeID = 0

func (id NodeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Node is a single tree node as seen through a Snapshot.
type Node[P any] struct {
	ID      NodeID
	Lft     int64
	Rgt     int64
	Level   int64
	Payload P
}

// IsDescendantOf returns true if |n| lies strictly inside |other|'s range.
func (n Node[P]) IsDescendantOf(other Node[P]) bool {
	return other.Lft < n.Lft && n.Rgt < other.Rgt
}

// IsLeaf returns true when the node has no descendants.
func (n Node[P]) IsLeaf() bool {
	return n.Rgt-n.Lft == 1
}

// Width is the number of boundary values the subtree rooted at |n| occupies.
func (n Node[P]) Width() int64 {
	return n.Rgt - n.Lft + 1
}

// SubtreeSize is the number of nodes in the subtree rooted at |n|, itself
// included.
func (n Node[P]) SubtreeSize() int64 {
	return n.Width() / 2
}

// Descendants is the number of nodes below |n|.
func (n Node[P]) Descendants() int64 {
	return (n.Rgt - n.Lft - 1) / 2
}
