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

// ErrNodeNotFound is returned when a referenced node, parent or move target
// does not exist. It is always raised before anything is written.
var ErrNodeNotFound = goerrors.NewKind("node %s not found")

// ErrInvalidArgument is returned for malformed parameters, such as moving a
// node relative to itself.
var ErrInvalidArgument = goerrors.NewKind("invalid argument: %s")

// ErrMoveIntoDescendant is returned when a move would place a node under, in
// front of or behind one of its own descendants.
var ErrMoveIntoDescendant = goerrors.NewKind("cannot move a node %s its own descendant (node %s, target %s)")

// ErrLockTimeout is returned by stores that give up waiting for the exclusive
// table lock.
var ErrLockTimeout = goerrors.NewKind("timed out acquiring exclusive lock on %s")

// ErrTxNotLocked is returned by stores when a transaction is used before
// LockExclusive has been called on it.
var ErrTxNotLocked = goerrors.NewKind("transaction on %s used without holding the exclusive lock")

// ErrTxDone is returned by stores when a finished transaction is used.
var ErrTxDone = goerrors.NewKind("transaction on %s has already been committed or rolled back")

// ErrDuplicateID is returned by Insert when a caller-assigned id is taken.
var ErrDuplicateID = goerrors.NewKind("node id %s already exists")

// IsNotFound returns true if |err| is an ErrNodeNotFound.
func IsNotFound(err error) bool {
	return ErrNodeNotFound.Is(err)
}

// IsLogicError returns true if |err| reports an operation that would break the
// shape of the tree.
func IsLogicError(err error) bool {
	return ErrMoveIntoDescendant.Is(err)
}
