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
	goerrors "gopkg.in/src-d/go-errors.v1"
)

// ErrCorruptTree is returned by Validate when the stored boundaries do not
// describe a well nested forest.
var ErrCorruptTree = goerrors.NewKind("corrupt tree at node %s: %s")

// Validate checks the nested set invariants of every node in the snapshot:
// lft < rgt, boundaries are unique, ranges either nest or are disjoint, and
// every level is one more than the level of the enclosing node.
func (s *Snapshot[P]) Validate() error {
	seen := make(map[int64]NodeID, 2*len(s.nodes))
	var open []Node[P]

	for _, n := range s.nodes {
		if n.Lft >= n.Rgt {
			return ErrCorruptTree.New(n.ID, "lft is not less than rgt")
		}
		for _, b := range [2]int64{n.Lft, n.Rgt} {
			if other, ok := seen[b]; ok {
				return ErrCorruptTree.New(n.ID, "boundary shared with node "+other.String())
			}
			seen[b] = n.ID
		}

		for len(open) > 0 && open[len(open)-1].Rgt < n.Lft {
			open = open[:len(open)-1]
		}
		if len(open) > 0 && open[len(open)-1].Rgt < n.Rgt {
			return ErrCorruptTree.New(n.ID, "range overlaps node "+open[len(open)-1].ID.String())
		}
		if n.Level != int64(len(open)) {
			return ErrCorruptTree.New(n.ID, "level does not match nesting depth")
		}

		open = append(open, n)
	}

	return nil
}

// IsDense reports whether the boundaries use exactly the values 1..2*Len().
func (s *Snapshot[P]) IsDense() bool {
	used := make([]bool, 2*len(s.nodes)+1)
	for _, n := range s.nodes {
		for _, b := range [2]int64{n.Lft, n.Rgt} {
			if b < 1 || b >= int64(len(used)) || used[b] {
				return false
			}
			used[b] = true
		}
	}
	return true
}
