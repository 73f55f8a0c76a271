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
	"fmt"
	"sort"
)

// Snapshot is an immutable, lft-ordered copy of every node in a tree as of a
// single point in time.
type Snapshot[P any] struct {
	nodes   []Node[P]
	index   map[NodeID]int
	version uint64
}

// NewSnapshot builds a Snapshot from |nodes|, sorting them by lft. It does not
// validate that the nodes form a well nested forest.
func NewSnapshot[P any](version uint64, nodes []Node[P]) *Snapshot[P] {
	sorted := make([]Node[P], len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Lft < sorted[j].Lft
	})

	index := make(map[NodeID]int, len(sorted))
	for i, n := range sorted {
		index[n.ID] = i
	}

	return &Snapshot[P]{nodes: sorted, index: index, version: version}
}

// DecodeSnapshot converts store rows into a Snapshot using |codec|.
func DecodeSnapshot[P any](version uint64, rows []Row, codec Codec[P]) (*Snapshot[P], error) {
	nodes := make([]Node[P], len(rows))
	for i, r := range rows {
		p, err := codec.Decode(r.Fields)
		if err != nil {
			return nil, fmt.Errorf("decoding payload of node %d: %w", r.ID, err)
		}
		nodes[i] = Node[P]{ID: r.ID, Lft: r.Lft, Rgt: r.Rgt, Level: r.Level, Payload: p}
	}
	return NewSnapshot(version, nodes), nil
}

// Version is the service version the snapshot was loaded at.
func (s *Snapshot[P]) Version() uint64 {
	return s.version
}

func (s *Snapshot[P]) Len() int {
	return len(s.nodes)
}

// At returns the |i|th node in lft order.
func (s *Snapshot[P]) At(i int) Node[P] {
	return s.nodes[i]
}

// Get returns the node with |id|.
func (s *Snapshot[P]) Get(id NodeID) (Node[P], bool) {
	i, ok := s.index[id]
	if !ok {
		return Node[P]{}, false
	}
	return s.nodes[i], true
}

// IndexOf returns the position of |id| in lft order, or -1.
func (s *Snapshot[P]) IndexOf(id NodeID) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Nodes returns a copy of every node in lft order.
func (s *Snapshot[P]) Nodes() []Node[P] {
	out := make([]Node[P], len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Roots returns the nodes at level 0.
func (s *Snapshot[P]) Roots() []Node[P] {
	var roots []Node[P]
	for i := 0; i < len(s.nodes); i = s.after(i) {
		roots = append(roots, s.nodes[i])
	}
	return roots
}

// Children returns the direct children of |id| in order.
func (s *Snapshot[P]) Children(id NodeID) []Node[P] {
	i, ok := s.index[id]
	if !ok {
		return nil
	}

	parent := s.nodes[i]
	var children []Node[P]
	for j := i + 1; j < len(s.nodes) && s.nodes[j].Lft < parent.Rgt; j = s.after(j) {
		children = append(children, s.nodes[j])
	}
	return children
}

// Parent returns the direct parent of |id|. The boolean is false for roots
// and unknown ids.
func (s *Snapshot[P]) Parent(id NodeID) (Node[P], bool) {
	path := s.Path(id)
	if len(path) < 2 {
		return Node[P]{}, false
	}
	return path[len(path)-2], true
}

// Path returns the ancestors of |id| from its root down to, and including,
// the node itself.
func (s *Snapshot[P]) Path(id NodeID) []Node[P] {
	i, ok := s.index[id]
	if !ok {
		return nil
	}

	n := s.nodes[i]
	var path []Node[P]
	for j := 0; j <= i; j++ {
		if s.nodes[j].Lft <= n.Lft && n.Rgt <= s.nodes[j].Rgt {
			path = append(path, s.nodes[j])
		}
	}
	return path
}

// after returns the index of the first node past the subtree at |i|.
func (s *Snapshot[P]) after(i int) int {
	rgt := s.nodes[i].Rgt
	return i + sort.Search(len(s.nodes)-i, func(k int) bool {
		return s.nodes[i+k].Lft > rgt
	})
}

// seekAbove returns the index of the first node with lft > |lft|.
func (s *Snapshot[P]) seekAbove(lft int64) int {
	return sort.Search(len(s.nodes), func(k int) bool {
		return s.nodes[k].Lft > lft
	})
}
