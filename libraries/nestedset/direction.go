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

import "strings"

// Direction says where MoveNode places a node relative to its target.
type Direction int

const (
	// Under makes the node the first child of the target.
	Under Direction = iota
	// InFrontOf makes the node the previous sibling of the target.
	InFrontOf
	// Behind makes the node the next sibling of the target.
	Behind
)

func (d Direction) String() string {
	switch d {
	case Under:
		return "under"
	case InFrontOf:
		return "in front of"
	case Behind:
		return "behind"
	default:
		return "unknown direction"
	}
}

func (d Direction) valid() bool {
	return d >= Under && d <= Behind
}

// ParseDirection accepts "under", "in_front_of" (or "before") and "behind" (or
// "after"), ignoring case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "under", "child":
		return Under, nil
	case "in_front_of", "in-front-of", "before":
		return InFrontOf, nil
	case "behind", "after":
		return Behind, nil
	}
	return Under, ErrInvalidArgument.New("unknown move direction '" + s + "'")
}
