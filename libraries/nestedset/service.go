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
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/dolthub/nestedset/libraries/nestedset")

// Option configures a Service.
type Option func(*serviceOpts)

type serviceOpts struct {
	logger   logrus.FieldLogger
	metrics  *Metrics
	skipMode SkipMode
}

// WithLogger sets the logger mutations are reported to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *serviceOpts) {
		o.logger = l
	}
}

// WithMetrics records Service activity in |m|.
func WithMetrics(m *Metrics) Option {
	return func(o *serviceOpts) {
		o.metrics = m
	}
}

// WithSkipMode selects the traversal arithmetic used by iterators.
func WithSkipMode(m SkipMode) Option {
	return func(o *serviceOpts) {
		o.skipMode = m
	}
}

// Service maintains a nested set tree in a Store. Mutations go straight to the
// store under its exclusive lock; reads are served from a cached Snapshot that
// is reloaded whenever a mutation has been committed since it was loaded.
//
// A Service is safe for concurrent use, but it offers no way to make a read
// and a following mutation atomic.
type Service[P any] struct {
	store    Store
	codec    Codec[P]
	logger   logrus.FieldLogger
	metrics  *Metrics
	skipMode SkipMode

	// version is bumped after every committed mutation.
	version atomic.Uint64

	mu   sync.Mutex
	snap *Snapshot[P]
}

// NewService returns a Service over |store| whose payloads are converted by
// |codec|.
func NewService[P any](store Store, codec Codec[P], opts ...Option) *Service[P] {
	o := serviceOpts{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service[P]{
		store:    store,
		codec:    codec,
		logger:   o.logger,
		metrics:  o.metrics,
		skipMode: o.skipMode,
	}
	s.version.Store(1)
	return s
}

// Invalidate marks the cached snapshot as stale. It only needs to be called
// when something other than this Service writes to the store.
func (s *Service[P]) Invalidate() {
	s.version.Add(1)
}

// Snapshot returns a snapshot no older than the last mutation committed
// through this Service.
func (s *Service[P]) Snapshot(ctx context.Context) (*Snapshot[P], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.version.Load()
	if s.snap != nil && s.snap.Version() == v {
		return s.snap, nil
	}

	ctx, span := tracer.Start(ctx, "nestedset.loadSnapshot")
	defer span.End()

	rows, err := s.store.SelectAllOrderedByLft(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	snap, err := DecodeSnapshot(v, rows, s.codec)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("rows", len(rows)))
	s.metrics.observeSnapshot(len(rows))
	s.snap = snap
	return snap, nil
}

// GetNode returns the node with |id|.
func (s *Service[P]) GetNode(ctx context.Context, id NodeID) (Node[P], error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Node[P]{}, err
	}

	n, ok := snap.Get(id)
	if !ok {
		return Node[P]{}, ErrNodeNotFound.New(id)
	}
	return n, nil
}

// Iterator returns a preorder iterator over the current snapshot. Pass NoNode
// as |baseID| to walk the whole forest, otherwise only the descendants of
// |baseID| are visited. A |depthLimit| of zero or less means no limit.
func (s *Service[P]) Iterator(ctx context.Context, baseID NodeID, depthLimit int) (*NodeIterator[P], error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return NewNodeIterator(snap, baseID, depthLimit, s.skipMode)
}

// AddNode inserts a node holding |payload|. With |parentID| set to NoNode the
// node becomes a new root after every existing tree, otherwise it becomes the
// last child of |parentID|. A payload field named "id" is used as the new
// node's id instead of letting the store assign one.
func (s *Service[P]) AddNode(ctx context.Context, payload P, parentID NodeID) (NodeID, error) {
	if parentID < NoNode {
		return NoNode, ErrInvalidArgument.New("negative parent id " + parentID.String())
	}

	fields, err := s.codec.Encode(payload)
	if err != nil {
		return NoNode, ErrInvalidArgument.Wrap(err, "payload could not be encoded")
	}

	row := Row{Fields: fields}
	if v, ok := fields[IDColumn]; ok {
		id, ok := AsInt64(v)
		if !ok || id <= 0 {
			return NoNode, ErrInvalidArgument.New("payload id must be a positive integer")
		}
		row.ID = NodeID(id)
		row.Fields = fields.Clone()
		delete(row.Fields, IDColumn)
	}

	var newID NodeID
	err = s.mutate(ctx, "add", logrus.Fields{"parent": parentID}, func(ctx context.Context, tx StoreTx) error {
		if parentID == NoNode {
			maxRgt, err := tx.MaxRgt(ctx)
			if err != nil {
				return err
			}
			row.Lft, row.Rgt, row.Level = maxRgt+1, maxRgt+2, 0
		} else {
			parent, ok, err := tx.SelectForUpdate(ctx, parentID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNodeNotFound.New(parentID)
			}

			if _, err := tx.ShiftRange(ctx, Above(ColumnLft, parent.Rgt), Shift{Lft: 2}); err != nil {
				return err
			}
			if _, err := tx.ShiftRange(ctx, AtLeast(ColumnRgt, parent.Rgt), Shift{Rgt: 2}); err != nil {
				return err
			}
			row.Lft, row.Rgt, row.Level = parent.Rgt, parent.Rgt+1, parent.Level+1
		}

		id, err := tx.Insert(ctx, row)
		if err != nil {
			return err
		}
		newID = id
		return nil
	})
	if err != nil {
		return NoNode, err
	}
	return newID, nil
}

// RemoveNode deletes |id| together with its whole subtree.
func (s *Service[P]) RemoveNode(ctx context.Context, id NodeID) error {
	return s.mutate(ctx, "remove", logrus.Fields{"id": id}, func(ctx context.Context, tx StoreTx) error {
		node, ok, err := tx.SelectForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNodeNotFound.New(id)
		}

		width := node.Rgt - node.Lft + 1
		if _, err := tx.DeleteRange(ctx, Between(ColumnLft, node.Lft, node.Rgt)); err != nil {
			return err
		}
		if _, err := tx.ShiftRange(ctx, Above(ColumnLft, node.Rgt), Shift{Lft: -width}); err != nil {
			return err
		}
		_, err = tx.ShiftRange(ctx, Above(ColumnRgt, node.Rgt), Shift{Rgt: -width})
		return err
	})
}

// MoveNode relocates |id| and its subtree relative to |targetID|. The target
// may not be |id| itself or any of its descendants.
func (s *Service[P]) MoveNode(ctx context.Context, id, targetID NodeID, dir Direction) error {
	if id == targetID {
		return ErrInvalidArgument.New("cannot move node " + id.String() + " relative to itself")
	}
	if !dir.valid() {
		return ErrInvalidArgument.New("unknown move direction")
	}

	fields := logrus.Fields{"id": id, "target": targetID, "direction": dir.String()}
	return s.mutate(ctx, "move", fields, func(ctx context.Context, tx StoreTx) error {
		node, ok, err := tx.SelectForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNodeNotFound.New(id)
		}

		target, ok, err := tx.SelectForUpdate(ctx, targetID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNodeNotFound.New(targetID)
		}

		if node.Lft < target.Lft && target.Rgt < node.Rgt {
			return ErrMoveIntoDescendant.New(dir, id, targetID)
		}

		width := node.Rgt - node.Lft + 1
		levelDelta := target.Level - node.Level

		// the moved subtree ends up at [mv+1, mv+width]
		var mv int64
		switch dir {
		case InFrontOf:
			mv = target.Lft - 1
		case Behind:
			mv = target.Rgt
		case Under:
			mv = target.Lft
			levelDelta++
		}

		if _, err := tx.ShiftRange(ctx, Above(ColumnLft, mv), Shift{Lft: width}); err != nil {
			return err
		}
		if _, err := tx.ShiftRange(ctx, Above(ColumnRgt, mv), Shift{Rgt: width}); err != nil {
			return err
		}

		lft, rgt := node.Lft, node.Rgt
		if lft > mv {
			lft, rgt = lft+width, rgt+width
		}

		offset := mv + 1 - lft
		if _, err := tx.ShiftRange(ctx, Between(ColumnLft, lft, rgt), Shift{Lft: offset, Rgt: offset, Level: levelDelta}); err != nil {
			return err
		}

		if _, err := tx.ShiftRange(ctx, Above(ColumnLft, rgt), Shift{Lft: -width}); err != nil {
			return err
		}
		_, err = tx.ShiftRange(ctx, Above(ColumnRgt, rgt), Shift{Rgt: -width})
		return err
	})
}

// mutate runs |fn| in a locked store transaction. The transaction is rolled
// back, releasing the lock, if anything fails before commit.
func (s *Service[P]) mutate(ctx context.Context, op string, fields logrus.Fields, fn func(context.Context, StoreTx) error) (err error) {
	ctx, span := tracer.Start(ctx, "nestedset."+op, trace.WithAttributes(attribute.String("op", op)))
	start := time.Now()
	defer func() {
		s.metrics.observeMutation(op, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}

	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithFields(fields).WithError(rbErr).Warnf("%s: rollback failed", op)
		}
	}()

	if err = tx.LockExclusive(ctx); err != nil {
		return err
	}
	if err = fn(ctx, tx); err != nil {
		return err
	}

	done = true
	err = tx.Commit()
	s.Invalidate()
	if err != nil {
		return err
	}

	s.logger.WithFields(fields).Debugf("%s: committed", op)
	return nil
}
