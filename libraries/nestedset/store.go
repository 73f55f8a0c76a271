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
	"context"
	"math"
)

// Column names one of the two boundary columns of the nested set table.
type Column string

const (
	ColumnLft Column = "lft"
	ColumnRgt Column = "rgt"
)

// Names of the structural columns that are never selected by a Bound.
const (
	IDColumn    = "id"
	LevelColumn = "level"
)

// Unbounded is used as Bound.Max for ranges that are open on the right.
const Unbounded int64 = math.MaxInt64

// Bound selects the rows whose |Column| value lies in [Min, Max].
type Bound struct {
	Column Column
	Min    int64
	Max    int64
}

// Above selects rows whose |col| is strictly greater than |v|.
func Above(col Column, v int64) Bound {
	return Bound{Column: col, Min: v + 1, Max: Unbounded}
}

// AtLeast selects rows whose |col| is greater than or equal to |v|.
func AtLeast(col Column, v int64) Bound {
	return Bound{Column: col, Min: v, Max: Unbounded}
}

// Between selects rows whose |col| is within [min, max].
func Between(col Column, min, max int64) Bound {
	return Bound{Column: col, Min: min, Max: max}
}

// Contains reports whether |v| satisfies the bound.
func (b Bound) Contains(v int64) bool {
	return v >= b.Min && v <= b.Max
}

// Value returns the bounded column's value for |r|.
func (b Bound) Value(r Row) int64 {
	if b.Column == ColumnRgt {
		return r.Rgt
	}
	return r.Lft
}

// Matches reports whether |r| is selected by the bound.
func (b Bound) Matches(r Row) bool {
	return b.Contains(b.Value(r))
}

// Shift holds the signed deltas a range update applies to each matched row.
type Shift struct {
	Lft   int64
	Rgt   int64
	Level int64
}

// IsZero returns true if applying the shift would change nothing.
func (s Shift) IsZero() bool {
	return s.Lft == 0 && s.Rgt == 0 && s.Level == 0
}

// Apply returns |r| with the deltas added.
func (s Shift) Apply(r Row) Row {
	r.Lft += s.Lft
	r.Rgt += s.Rgt
	r.Level += s.Level
	return r
}

// Row is a single record of the nested set table. Fields holds the payload
// columns and is never interpreted by this package.
type Row struct {
	ID     NodeID
	Lft    int64
	Rgt    int64
	Level  int64
	Fields Fields
}

// Store is the relational table backing a tree. Reads through Store are
// unlocked; every structural change happens inside a StoreTx.
type Store interface {
	// SelectAllOrderedByLft returns every row of the table in ascending lft
	// order. Implementations must never expose a partially applied
	// transaction.
	SelectAllOrderedByLft(ctx context.Context) ([]Row, error)

	// Begin opens a transaction. The transaction holds no lock until
	// LockExclusive is called.
	Begin(ctx context.Context) (StoreTx, error)
}

// StoreTx is a single transaction against a Store. Commit and Rollback both
// release the exclusive lock, if held. After either has been called the
// transaction may not be used again, though calling Rollback after Commit is
// a harmless no-op.
type StoreTx interface {
	// LockExclusive blocks other writers until the transaction ends.
	LockExclusive(ctx context.Context) error

	// SelectForUpdate reads the row with |id|. The boolean is false when no
	// such row exists.
	SelectForUpdate(ctx context.Context, id NodeID) (Row, bool, error)

	// MaxRgt returns the largest rgt in the table, or 0 if it is empty.
	MaxRgt(ctx context.Context) (int64, error)

	// ShiftRange adds |s| to every row matched by |b| and returns the number
	// of rows matched. A zero shift leaves the rows alone but still counts
	// them.
	ShiftRange(ctx context.Context, b Bound, s Shift) (int64, error)

	// DeleteRange deletes every row matched by |b| and returns the number of
	// rows removed.
	DeleteRange(ctx context.Context, b Bound) (int64, error)

	// Insert adds |r| to the table. If r.ID is NoNode the store assigns an id.
	Insert(ctx context.Context, r Row) (NodeID, error)

	Commit() error
	Rollback() error
}
