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

// Package memstore holds a nested set table in process memory. Transactions
// work on a copy-on-write clone of the table which replaces the live table on
// commit, so readers never see a partial mutation.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/btree"
	"golang.org/x/sync/semaphore"

	"github.com/dolthub/nestedset/libraries/nestedset"
)

const btreeDegree = 32

// FaultFunc is consulted before every transaction step. A non-nil error is
// returned from that step in place of performing it.
type FaultFunc func(op string) error

// Store is an in-memory nested set table.
type Store struct {
	name   string
	faults FaultFunc

	// writer is held by the transaction owning the exclusive lock.
	writer *semaphore.Weighted

	mu     sync.RWMutex
	rows   *btree.BTreeG[nestedset.Row]
	lastID nestedset.NodeID
}

var _ nestedset.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithName sets the table name used in errors.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// WithFaults installs |f| to fail chosen transaction steps.
func WithFaults(f FaultFunc) Option {
	return func(s *Store) {
		s.faults = f
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		name:   "memory",
		writer: semaphore.NewWeighted(1),
		rows:   newTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newTable() *btree.BTreeG[nestedset.Row] {
	return btree.NewG[nestedset.Row](btreeDegree, func(a, b nestedset.Row) bool {
		return a.ID < b.ID
	})
}

// Load replaces the contents of the table with |rows| as they are, without
// checking that they form a valid forest.
func (s *Store) Load(rows []nestedset.Row) {
	t := newTable()
	var last nestedset.NodeID
	for _, r := range rows {
		r.Fields = r.Fields.Clone()
		t.ReplaceOrInsert(r)
		if r.ID > last {
			last = r.ID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = t
	s.lastID = last
}

// Len returns the number of rows in the table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows.Len()
}

func (s *Store) SelectAllOrderedByLft(ctx context.Context) ([]nestedset.Row, error) {
	s.mu.RLock()
	rows := make([]nestedset.Row, 0, s.rows.Len())
	s.rows.Ascend(func(r nestedset.Row) bool {
		r.Fields = r.Fields.Clone()
		rows = append(rows, r)
		return true
	})
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Lft < rows[j].Lft
	})
	return rows, nil
}

func (s *Store) Begin(ctx context.Context) (nestedset.StoreTx, error) {
	if err := s.fault("begin"); err != nil {
		return nil, err
	}
	return &tx{store: s}, nil
}

func (s *Store) fault(op string) error {
	if s.faults == nil {
		return nil
	}
	return s.faults(op)
}

type tx struct {
	store  *Store
	locked bool
	done   bool

	rows   *btree.BTreeG[nestedset.Row]
	lastID nestedset.NodeID
}

func (t *tx) LockExclusive(ctx context.Context) error {
	if t.done {
		return nestedset.ErrTxDone.New(t.store.name)
	}
	if t.locked {
		return nil
	}
	if err := t.store.fault("lock"); err != nil {
		return err
	}

	if err := t.store.writer.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nestedset.ErrLockTimeout.Wrap(err, t.store.name)
		}
		return err
	}

	// clone only once the lock is held so no commit can land in between.
	// Clone marks the live tree copy-on-write, so it needs the write lock.
	t.store.mu.Lock()
	t.rows = t.store.rows.Clone()
	t.lastID = t.store.lastID
	t.store.mu.Unlock()

	t.locked = true
	return nil
}

func (t *tx) check(op string) error {
	if t.done {
		return nestedset.ErrTxDone.New(t.store.name)
	}
	if !t.locked {
		return nestedset.ErrTxNotLocked.New(t.store.name)
	}
	return t.store.fault(op)
}

func (t *tx) SelectForUpdate(ctx context.Context, id nestedset.NodeID) (nestedset.Row, bool, error) {
	if err := t.check("select"); err != nil {
		return nestedset.Row{}, false, err
	}
	r, ok := t.rows.Get(nestedset.Row{ID: id})
	return r, ok, nil
}

func (t *tx) MaxRgt(ctx context.Context) (int64, error) {
	if err := t.check("maxrgt"); err != nil {
		return 0, err
	}

	var max int64
	t.rows.Ascend(func(r nestedset.Row) bool {
		if r.Rgt > max {
			max = r.Rgt
		}
		return true
	})
	return max, nil
}

func (t *tx) ShiftRange(ctx context.Context, b nestedset.Bound, s nestedset.Shift) (int64, error) {
	if err := t.check("shift"); err != nil {
		return 0, err
	}

	matched := t.matching(b)
	if s.IsZero() {
		return int64(len(matched)), nil
	}
	for _, r := range matched {
		t.rows.ReplaceOrInsert(s.Apply(r))
	}
	return int64(len(matched)), nil
}

func (t *tx) DeleteRange(ctx context.Context, b nestedset.Bound) (int64, error) {
	if err := t.check("delete"); err != nil {
		return 0, err
	}

	matched := t.matching(b)
	for _, r := range matched {
		t.rows.Delete(r)
	}
	return int64(len(matched)), nil
}

func (t *tx) Insert(ctx context.Context, r nestedset.Row) (nestedset.NodeID, error) {
	if err := t.check("insert"); err != nil {
		return nestedset.NoNode, err
	}

	if r.ID == nestedset.NoNode {
		t.lastID++
		r.ID = t.lastID
	} else if t.rows.Has(r) {
		return nestedset.NoNode, nestedset.ErrDuplicateID.New(r.ID)
	} else if r.ID > t.lastID {
		t.lastID = r.ID
	}

	r.Fields = r.Fields.Clone()
	t.rows.ReplaceOrInsert(r)
	return r.ID, nil
}

func (t *tx) Commit() error {
	if err := t.check("commit"); err != nil {
		if !t.done {
			t.finish()
		}
		return err
	}

	t.store.mu.Lock()
	t.store.rows = t.rows
	t.store.lastID = t.lastID
	t.store.mu.Unlock()

	t.finish()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	if t.locked {
		t.store.writer.Release(1)
	}
	t.done = true
	t.rows = nil
}

func (t *tx) matching(b nestedset.Bound) []nestedset.Row {
	var matched []nestedset.Row
	t.rows.Ascend(func(r nestedset.Row) bool {
		if b.Matches(r) {
			matched = append(matched, r)
		}
		return true
	})
	return matched
}
