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

// Package boltstore keeps a nested set table in a single bbolt file. Each node
// is one key in a bucket named after the table, keyed by its big endian id.
// bbolt allows one writable transaction at a time, which is what provides the
// exclusive table lock.
package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/dolthub/nestedset/libraries/nestedset"
)

const (
	DefaultTable = "nodes"

	openTimeout = 5 * time.Second
)

type record struct {
	Lft    int64            `json:"lft"`
	Rgt    int64            `json:"rgt"`
	Level  int64            `json:"level"`
	Fields nestedset.Fields `json:"fields,omitempty"`
}

// Store is a nested set table in a bbolt database.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

var _ nestedset.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*options)

type options struct {
	table  string
	noSync bool
}

// WithTable sets the bucket the table lives in.
func WithTable(name string) Option {
	return func(o *options) {
		o.table = name
	}
}

// WithNoSync skips fsync on commit. Only suitable for tests and scratch data.
func WithNoSync() Option {
	return func(o *options) {
		o.noSync = true
	}
}

// Open opens, creating if needed, the database file at |path|.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{table: DefaultTable}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.NoSync = o.noSync

	bucket := []byte(o.table)
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: bucket}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) SelectAllOrderedByLft(ctx context.Context) ([]nestedset.Row, error) {
	var rows []nestedset.Row
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			r, err := decodeRow(k, v)
			if err != nil {
				return err
			}
			rows = append(rows, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Lft < rows[j].Lft
	})
	return rows, nil
}

func (s *Store) Begin(ctx context.Context) (nestedset.StoreTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{store: s}, nil
}

type tx struct {
	store *Store
	btx   *bolt.Tx
	done  bool
}

// LockExclusive opens the writable bbolt transaction. bbolt has no way to
// abandon the wait, so |ctx| is only checked before blocking.
func (t *tx) LockExclusive(ctx context.Context) error {
	if t.done {
		return nestedset.ErrTxDone.New(string(t.store.bucket))
	}
	if t.btx != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	btx, err := t.store.db.Begin(true)
	if err != nil {
		return err
	}
	t.btx = btx
	return nil
}

func (t *tx) bucket() (*bolt.Bucket, error) {
	if t.done {
		return nil, nestedset.ErrTxDone.New(string(t.store.bucket))
	}
	if t.btx == nil {
		return nil, nestedset.ErrTxNotLocked.New(string(t.store.bucket))
	}
	return t.btx.Bucket(t.store.bucket), nil
}

func (t *tx) SelectForUpdate(ctx context.Context, id nestedset.NodeID) (nestedset.Row, bool, error) {
	b, err := t.bucket()
	if err != nil {
		return nestedset.Row{}, false, err
	}

	k := encodeKey(id)
	v := b.Get(k)
	if v == nil {
		return nestedset.Row{}, false, nil
	}
	r, err := decodeRow(k, v)
	return r, err == nil, err
}

func (t *tx) MaxRgt(ctx context.Context) (int64, error) {
	rows, err := t.scan(nil)
	if err != nil {
		return 0, err
	}

	var max int64
	for _, r := range rows {
		if r.Rgt > max {
			max = r.Rgt
		}
	}
	return max, nil
}

func (t *tx) ShiftRange(ctx context.Context, bound nestedset.Bound, s nestedset.Shift) (int64, error) {
	rows, err := t.scan(&bound)
	if err != nil {
		return 0, err
	}
	if s.IsZero() {
		return int64(len(rows)), nil
	}

	b, _ := t.bucket()
	for _, r := range rows {
		if err := putRow(b, s.Apply(r)); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

func (t *tx) DeleteRange(ctx context.Context, bound nestedset.Bound) (int64, error) {
	rows, err := t.scan(&bound)
	if err != nil {
		return 0, err
	}

	b, _ := t.bucket()
	for _, r := range rows {
		if err := b.Delete(encodeKey(r.ID)); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

func (t *tx) Insert(ctx context.Context, r nestedset.Row) (nestedset.NodeID, error) {
	b, err := t.bucket()
	if err != nil {
		return nestedset.NoNode, err
	}

	if r.ID == nestedset.NoNode {
		seq, err := b.NextSequence()
		if err != nil {
			return nestedset.NoNode, err
		}
		r.ID = nestedset.NodeID(seq)
	} else {
		if b.Get(encodeKey(r.ID)) != nil {
			return nestedset.NoNode, nestedset.ErrDuplicateID.New(r.ID)
		}
		if uint64(r.ID) > b.Sequence() {
			if err := b.SetSequence(uint64(r.ID)); err != nil {
				return nestedset.NoNode, err
			}
		}
	}

	if err := putRow(b, r); err != nil {
		return nestedset.NoNode, err
	}
	return r.ID, nil
}

func (t *tx) Commit() error {
	if _, err := t.bucket(); err != nil {
		return err
	}
	t.done = true
	return t.btx.Commit()
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if t.btx == nil {
		return nil
	}
	return t.btx.Rollback()
}

// scan returns the rows matched by |bound|, or every row when it is nil. Rows
// are collected first since a bucket may not be written while it is iterated.
func (t *tx) scan(bound *nestedset.Bound) ([]nestedset.Row, error) {
	b, err := t.bucket()
	if err != nil {
		return nil, err
	}

	var rows []nestedset.Row
	err = b.ForEach(func(k, v []byte) error {
		r, err := decodeRow(k, v)
		if err != nil {
			return err
		}
		if bound == nil || bound.Matches(r) {
			rows = append(rows, r)
		}
		return nil
	})
	return rows, err
}

func encodeKey(id nestedset.NodeID) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func putRow(b *bolt.Bucket, r nestedset.Row) error {
	v, err := json.Marshal(record{Lft: r.Lft, Rgt: r.Rgt, Level: r.Level, Fields: r.Fields})
	if err != nil {
		return err
	}
	return b.Put(encodeKey(r.ID), v)
}

func decodeRow(k, v []byte) (nestedset.Row, error) {
	if len(k) != 8 {
		return nestedset.Row{}, fmt.Errorf("malformed key %x", k)
	}

	var rec record
	if err := json.Unmarshal(v, &rec); err != nil {
		return nestedset.Row{}, fmt.Errorf("decoding node %x: %w", k, err)
	}

	return nestedset.Row{
		ID:     nestedset.NodeID(binary.BigEndian.Uint64(k)),
		Lft:    rec.Lft,
		Rgt:    rec.Rgt,
		Level:  rec.Level,
		Fields: rec.Fields,
	}, nil
}
