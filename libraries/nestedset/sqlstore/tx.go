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

package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/gocraft/dbr/v2"
	"github.com/jmoiron/sqlx"

	"github.com/dolthub/nestedset/libraries/nestedset"
)

type tx struct {
	store *Store
	conn  *sqlx.Conn
	stx   *sqlx.Tx
	btx   *dbr.Tx

	locked bool
	done   bool
}

func (t *tx) LockExclusive(ctx context.Context) error {
	if t.done {
		return nestedset.ErrTxDone.New(t.store.table)
	}
	if t.locked {
		return nil
	}

	wait := lockWait(ctx, t.store.lockTimeout)
	var err error
	switch t.store.dialect {
	case Postgres:
		err = t.lockPostgres(ctx, wait)
	default:
		err = t.lockMySQL(ctx, wait)
	}
	if err != nil {
		if nestedset.ErrLockTimeout.Is(err) {
			return err
		}
		if isLockTimeout(err) {
			return nestedset.ErrLockTimeout.Wrap(err, t.store.table)
		}
		return err
	}

	t.locked = true
	return nil
}

// lockMySQL takes a named advisory lock. It belongs to the connection rather
// than the transaction, so it is released explicitly once the transaction
// ends.
func (t *tx) lockMySQL(ctx context.Context, wait time.Duration) error {
	var got sql.NullInt64
	err := t.stx.GetContext(ctx, &got, "SELECT GET_LOCK(?, ?)", lockName(t.store.table), waitSeconds(wait))
	if err != nil {
		return err
	}
	if !got.Valid || got.Int64 != 1 {
		return nestedset.ErrLockTimeout.New(t.store.table)
	}
	return nil
}

// lockPostgres locks the table for the rest of the transaction. EXCLUSIVE
// mode still admits plain reads.
func (t *tx) lockPostgres(ctx context.Context, wait time.Duration) error {
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", wait.Milliseconds())
	if _, err := t.stx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	_, err := t.stx.ExecContext(ctx, fmt.Sprintf("LOCK TABLE %s IN EXCLUSIVE MODE", t.store.quotedTable()))
	return err
}

func (t *tx) check() error {
	if t.done {
		return nestedset.ErrTxDone.New(t.store.table)
	}
	if !t.locked {
		return nestedset.ErrTxNotLocked.New(t.store.table)
	}
	return nil
}

func (t *tx) SelectForUpdate(ctx context.Context, id nestedset.NodeID) (nestedset.Row, bool, error) {
	if err := t.check(); err != nil {
		return nestedset.Row{}, false, err
	}

	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? FOR UPDATE", t.store.quotedTable(), t.store.dialect.quote(nestedset.IDColumn))
	m := make(map[string]any)
	err := t.stx.QueryRowxContext(ctx, t.stx.Rebind(q), int64(id)).MapScan(m)
	if errors.Is(err, sql.ErrNoRows) {
		return nestedset.Row{}, false, nil
	} else if err != nil {
		return nestedset.Row{}, false, err
	}

	r, err := rowFromMap(m)
	if err != nil {
		return nestedset.Row{}, false, err
	}
	return r, true, nil
}

func (t *tx) MaxRgt(ctx context.Context) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}

	var max int64
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", t.store.dialect.quote(string(nestedset.ColumnRgt)), t.store.quotedTable())
	if err := t.stx.GetContext(ctx, &max, q); err != nil {
		return 0, err
	}
	return max, nil
}

func (t *tx) ShiftRange(ctx context.Context, b nestedset.Bound, s nestedset.Shift) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	if s.IsZero() {
		var n int64
		_, err := t.btx.Select("COUNT(*)").From(t.store.table).Where(boundCond(b)).LoadContext(ctx, &n)
		return n, err
	}

	stmt := t.btx.Update(t.store.table)
	for _, d := range []struct {
		col   string
		delta int64
	}{
		{string(nestedset.ColumnLft), s.Lft},
		{string(nestedset.ColumnRgt), s.Rgt},
		{nestedset.LevelColumn, s.Level},
	} {
		if d.delta != 0 {
			stmt = stmt.Set(d.col, dbr.Expr(t.store.dialect.quote(d.col)+" + ?", d.delta))
		}
	}

	res, err := stmt.Where(boundCond(b)).ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *tx) DeleteRange(ctx context.Context, b nestedset.Bound) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}

	res, err := t.btx.DeleteFrom(t.store.table).Where(boundCond(b)).ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *tx) Insert(ctx context.Context, r nestedset.Row) (nestedset.NodeID, error) {
	if err := t.check(); err != nil {
		return nestedset.NoNode, err
	}

	cols := []string{string(nestedset.ColumnLft), string(nestedset.ColumnRgt), nestedset.LevelColumn}
	vals := []any{r.Lft, r.Rgt, r.Level}
	if r.ID != nestedset.NoNode {
		_, exists, err := t.SelectForUpdate(ctx, r.ID)
		if err != nil {
			return nestedset.NoNode, err
		}
		if exists {
			return nestedset.NoNode, nestedset.ErrDuplicateID.New(r.ID)
		}
		cols = append(cols, nestedset.IDColumn)
		vals = append(vals, int64(r.ID))
	}
	for _, k := range sortedKeys(r.Fields) {
		cols = append(cols, k)
		vals = append(vals, r.Fields[k])
	}

	stmt := t.btx.InsertInto(t.store.table).Columns(cols...).Values(vals...)

	if t.store.dialect == Postgres {
		var id int64
		if err := stmt.Returning(nestedset.IDColumn).LoadContext(ctx, &id); err != nil {
			return nestedset.NoNode, err
		}
		if r.ID != nestedset.NoNode {
			if err := t.advanceSequence(ctx); err != nil {
				return nestedset.NoNode, err
			}
		}
		return nestedset.NodeID(id), nil
	}

	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return nestedset.NoNode, err
	}
	if r.ID != nestedset.NoNode {
		return r.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nestedset.NoNode, err
	}
	return nestedset.NodeID(id), nil
}

// advanceSequence moves the postgres id sequence past caller assigned ids.
func (t *tx) advanceSequence(ctx context.Context) error {
	id := t.store.dialect.quote(nestedset.IDColumn)
	q := fmt.Sprintf("SELECT setval(pg_get_serial_sequence($1, $2), (SELECT MAX(%s) FROM %s))", id, t.store.quotedTable())
	var v int64
	return t.stx.GetContext(ctx, &v, q, t.store.table, nestedset.IDColumn)
}

func (t *tx) Commit() error {
	if err := t.check(); err != nil {
		return err
	}
	err := t.stx.Commit()
	t.finish()
	return err
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	err := t.stx.Rollback()
	t.finish()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// finish releases the advisory lock, if one is held, and hands the connection
// back to the pool.
func (t *tx) finish() {
	t.done = true
	defer t.conn.Close()

	if t.locked && t.store.dialect == MySQL {
		var released sql.NullInt64
		err := t.conn.QueryRowxContext(context.Background(), "SELECT RELEASE_LOCK(?)", lockName(t.store.table)).Scan(&released)
		if err != nil {
			// closing a connection also drops its locks
			t.conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}
}

// boundCond renders |b| as a WHERE condition.
func boundCond(b nestedset.Bound) dbr.Builder {
	col := string(b.Column)
	if b.Max == nestedset.Unbounded {
		return dbr.Gte(col, b.Min)
	}
	return dbr.And(dbr.Gte(col, b.Min), dbr.Lte(col, b.Max))
}
