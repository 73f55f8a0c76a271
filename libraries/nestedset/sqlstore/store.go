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

// Package sqlstore keeps a nested set table in MySQL or Postgres. Range
// updates are issued with dbr builders; reads go through sqlx so payload
// columns can be returned without knowing the table's schema up front.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gocraft/dbr/v2"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/nestedset/libraries/nestedset"
)

const (
	DefaultTable       = "nodes"
	DefaultLockTimeout = 10 * time.Second

	// postgres lock_not_available
	pgLockNotAvailable = "55P03"
)

// Store is a nested set table in a SQL database.
type Store struct {
	db          *sqlx.DB
	dialect     Dialect
	table       string
	lockTimeout time.Duration
	events      dbr.EventReceiver
}

var _ nestedset.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTable sets the table holding the tree.
func WithTable(name string) Option {
	return func(s *Store) {
		s.table = name
	}
}

// WithLockTimeout bounds how long a mutation waits for the exclusive lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// WithLogger reports failing statements, and every statement at trace level,
// to |l|.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		s.events = logReceiver{logger: l}
	}
}

// Open connects to the database at |dsn|.
func Open(d Dialect, dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	return New(db, d, opts...), nil
}

// New returns a Store over an existing connection pool.
func New(db *sqlx.DB, d Dialect, opts ...Option) *Store {
	s := &Store{
		db:          db,
		dialect:     d,
		table:       DefaultTable,
		lockTimeout: DefaultLockTimeout,
		events:      &dbr.NullEventReceiver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WaitReady pings the database until it answers, backing off between
// attempts, for at most |maxWait|.
func (s *Store) WaitReady(ctx context.Context, maxWait time.Duration) error {
	if maxWait <= 0 {
		return s.db.PingContext(ctx)
	}

	params := backoff.NewExponentialBackOff()
	params.InitialInterval = 50 * time.Millisecond
	params.MaxInterval = 2 * time.Second
	params.MaxElapsedTime = maxWait

	return backoff.Retry(func() error {
		err := s.db.PingContext(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(params, ctx))
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTable creates the tree's table with the given payload column
// definitions if it does not already exist.
func (s *Store) CreateTable(ctx context.Context, payload ...string) error {
	for _, stmt := range CreateTableSQL(s.dialect, s.table, payload...) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", s.table, err)
		}
	}
	return nil
}

// DropTable drops the tree's table.
func (s *Store) DropTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, DropTableSQL(s.dialect, s.table))
	return err
}

func (s *Store) quotedTable() string {
	return s.dialect.quote(s.table)
}

func (s *Store) SelectAllOrderedByLft(ctx context.Context) ([]nestedset.Row, error) {
	q := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", s.quotedTable(), s.dialect.quote(string(nestedset.ColumnLft)))
	rows, err := s.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []nestedset.Row
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		r, err := rowFromMap(m)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *Store) Begin(ctx context.Context) (nestedset.StoreTx, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}

	stx, err := conn.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &tx{
		store: s,
		conn:  conn,
		stx:   stx,
		btx:   &dbr.Tx{EventReceiver: s.events, Dialect: s.dialect.builder(), Tx: stx.Tx},
	}, nil
}

// rowFromMap splits a scanned row into its structural columns and payload.
func rowFromMap(m map[string]any) (nestedset.Row, error) {
	var r nestedset.Row
	fields := make(nestedset.Fields, len(m))
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}

		var dst *int64
		switch k {
		case nestedset.IDColumn:
			id, ok := nestedset.AsInt64(v)
			if !ok {
				return nestedset.Row{}, fmt.Errorf("column %s: unexpected value %v", k, v)
			}
			r.ID = nestedset.NodeID(id)
			continue
		case string(nestedset.ColumnLft):
			dst = &r.Lft
		case string(nestedset.ColumnRgt):
			dst = &r.Rgt
		case nestedset.LevelColumn:
			dst = &r.Level
		default:
			fields[k] = v
			continue
		}

		n, ok := nestedset.AsInt64(v)
		if !ok {
			return nestedset.Row{}, fmt.Errorf("column %s of node %d: unexpected value %v", k, r.ID, v)
		}
		*dst = n
	}

	if len(fields) > 0 {
		r.Fields = fields
	}
	return r, nil
}

// lockName is the MySQL advisory lock guarding |table|.
func lockName(table string) string {
	return "nestedset:" + table
}

// lockWait returns how long to wait for a lock, honoring the deadline of
// |ctx| when it is sooner than |limit|.
func lockWait(ctx context.Context, limit time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < limit {
			limit = until
		}
	}
	if limit < time.Millisecond {
		limit = time.Millisecond
	}
	return limit
}

func isLockTimeout(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgLockNotAvailable {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// sortedKeys returns the payload column names in a stable order.
func sortedKeys(f nestedset.Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func waitSeconds(d time.Duration) float64 {
	return math.Ceil(d.Seconds()*1000) / 1000
}
