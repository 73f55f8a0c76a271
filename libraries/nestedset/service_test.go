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

package nestedset_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/nestedset/libraries/nestedset"
	"github.com/dolthub/nestedset/libraries/nestedset/memstore"
	"github.com/dolthub/nestedset/libraries/nestedset/nstestutils"
)

var errInjected = errors.New("injected store failure")

// countingStore counts full table reads.
type countingStore struct {
	nestedset.Store
	loads atomic.Int32
}

func (s *countingStore) SelectAllOrderedByLft(ctx context.Context) ([]nestedset.Row, error) {
	s.loads.Add(1)
	return s.Store.SelectAllOrderedByLft(ctx)
}

func newFieldsService(store nestedset.Store, opts ...nestedset.Option) *nestedset.Service[nestedset.Fields] {
	return nestedset.NewService[nestedset.Fields](store, nestedset.FieldsCodec{}, opts...)
}

func TestSnapshotIsCachedUntilMutation(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memstore.New()}
	svc := newFieldsService(store)

	root, err := svc.AddNode(ctx, nestedset.Fields{"name": "root"}, nestedset.NoNode)
	require.NoError(t, err)

	_, err = svc.GetNode(ctx, root)
	require.NoError(t, err)
	_, err = svc.Iterator(ctx, nestedset.NoNode, 0)
	require.NoError(t, err)
	snap1, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.loads.Load())

	_, err = svc.AddNode(ctx, nestedset.Fields{"name": "child"}, root)
	require.NoError(t, err)
	snap2, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.loads.Load())
	assert.Greater(t, snap2.Version(), snap1.Version())

	// the old snapshot is never patched
	assert.Equal(t, 1, snap1.Len())
	assert.Equal(t, 2, snap2.Len())

	svc.Invalidate()
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), store.loads.Load())
}

func TestFailedMutationLeavesNoTrace(t *testing.T) {
	ctx := context.Background()

	type mutation struct {
		name  string
		steps []string
		run   func(svc *nestedset.Service[nestedset.Fields], x, y nestedset.NodeID) error
	}
	mutations := []mutation{
		{"add", []string{"begin", "lock", "select", "shift", "insert", "commit"}, func(svc *nestedset.Service[nestedset.Fields], x, y nestedset.NodeID) error {
			_, err := svc.AddNode(ctx, nestedset.Fields{}, x)
			return err
		}},
		{"remove", []string{"begin", "lock", "select", "delete", "shift", "commit"}, func(svc *nestedset.Service[nestedset.Fields], x, y nestedset.NodeID) error {
			return svc.RemoveNode(ctx, x)
		}},
		{"move", []string{"begin", "lock", "select", "shift", "commit"}, func(svc *nestedset.Service[nestedset.Fields], x, y nestedset.NodeID) error {
			return svc.MoveNode(ctx, y, x, nestedset.Under)
		}},
	}

	for _, m := range mutations {
		for _, step := range m.steps {
			t.Run(m.name+"/"+step, func(t *testing.T) {
				var failing atomic.Bool
				store := memstore.New(memstore.WithFaults(func(op string) error {
					if failing.Load() && op == step {
						return errInjected
					}
					return nil
				}))
				svc := newFieldsService(store)
				model := nstestutils.NewForest()

				add := func(parent nestedset.NodeID) nestedset.NodeID {
					id, err := svc.AddNode(ctx, nestedset.Fields{}, parent)
					require.NoError(t, err)
					model.Add(id, parent)
					return id
				}
				r := add(nestedset.NoNode)
				x := add(r)
				y := add(r)
				add(x)

				failing.Store(true)
				err := m.run(svc, x, y)
				require.Error(t, err)
				assert.ErrorIs(t, err, errInjected)

				svc.Invalidate()
				nstestutils.RequireMatchesModel(t, svc, model)

				// the failed attempt released the lock
				failing.Store(false)
				lockCtx, cancel := context.WithTimeout(ctx, time.Second)
				defer cancel()
				id, err := svc.AddNode(lockCtx, nestedset.Fields{}, y)
				require.NoError(t, err)
				model.Add(id, y)
				nstestutils.RequireMatchesModel(t, svc, model)
			})
		}
	}
}

func TestLockTimeout(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newFieldsService(store)

	holder, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, holder.LockExclusive(ctx))

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = svc.AddNode(waitCtx, nestedset.Fields{}, nestedset.NoNode)
	require.Error(t, err)
	assert.True(t, nestedset.ErrLockTimeout.Is(err), "unexpected error: %v", err)

	require.NoError(t, holder.Rollback())
	_, err = svc.AddNode(ctx, nestedset.Fields{}, nestedset.NoNode)
	require.NoError(t, err)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := nestedset.NewMetrics(reg, prometheus.Labels{"tree": "test"})
	require.NoError(t, err)

	svc := newFieldsService(memstore.New(), nestedset.WithMetrics(m))

	root, err := svc.AddNode(ctx, nestedset.Fields{}, nestedset.NoNode)
	require.NoError(t, err)
	_, err = svc.AddNode(ctx, nestedset.Fields{}, root)
	require.NoError(t, err)
	require.Error(t, svc.RemoveNode(ctx, 99))
	require.Error(t, svc.MoveNode(ctx, root, root, nestedset.Under))
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "nestedset_mutations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// registering twice fails
	_, err = nestedset.NewMetrics(reg, prometheus.Labels{"tree": "test"})
	assert.Error(t, err)
}

func TestMutationsAreLogged(t *testing.T) {
	ctx := context.Background()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	svc := newFieldsService(memstore.New(), nestedset.WithLogger(logger))
	root, err := svc.AddNode(ctx, nestedset.Fields{}, nestedset.NoNode)
	require.NoError(t, err)
	child, err := svc.AddNode(ctx, nestedset.Fields{}, root)
	require.NoError(t, err)
	require.NoError(t, svc.MoveNode(ctx, child, root, nestedset.Behind))

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	last := hook.LastEntry()
	assert.Equal(t, logrus.DebugLevel, last.Level)
	assert.Equal(t, child, last.Data["id"])
	assert.Equal(t, root, last.Data["target"])
	assert.Equal(t, "behind", last.Data["direction"])
}

type page struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

func TestJSONCodecPayloads(t *testing.T) {
	ctx := context.Background()
	svc := nestedset.NewService[page](memstore.New(), nestedset.JSONCodec[page]{})

	home, err := svc.AddNode(ctx, page{Title: "Home", Slug: "/"}, nestedset.NoNode)
	require.NoError(t, err)
	about, err := svc.AddNode(ctx, page{Title: "About", Slug: "/about"}, home)
	require.NoError(t, err)

	n, err := svc.GetNode(ctx, about)
	require.NoError(t, err)
	assert.Equal(t, page{Title: "About", Slug: "/about"}, n.Payload)
	assert.Equal(t, int64(1), n.Level)

	it, err := svc.Iterator(ctx, home, 0)
	require.NoError(t, err)
	var titles []string
	for _, n := range it.All() {
		titles = append(titles, n.Payload.Title)
	}
	assert.Equal(t, []string{"About"}, titles)
}

func TestDecodeFailureIsReported(t *testing.T) {
	ctx := context.Background()
	codec := nestedset.FuncCodec[string]{
		EncodeFn: func(s string) (nestedset.Fields, error) {
			return nestedset.Fields{"name": s}, nil
		},
		DecodeFn: func(f nestedset.Fields) (string, error) {
			name, ok := f["name"].(string)
			if !ok || name == "" {
				return "", errors.New("missing name")
			}
			return name, nil
		},
	}
	svc := nestedset.NewService[string](memstore.New(), codec)

	id, err := svc.AddNode(ctx, "ok", nestedset.NoNode)
	require.NoError(t, err)
	n, err := svc.GetNode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ok", n.Payload)

	_, err = svc.AddNode(ctx, "", nestedset.NoNode)
	require.NoError(t, err)
	_, err = svc.GetNode(ctx, id)
	assert.ErrorContains(t, err, "missing name")
}

func TestAddNodeArgumentErrors(t *testing.T) {
	ctx := context.Background()
	svc := newFieldsService(memstore.New())

	_, err := svc.AddNode(ctx, nestedset.Fields{}, -1)
	assert.True(t, nestedset.ErrInvalidArgument.Is(err))

	_, err = svc.AddNode(ctx, nestedset.Fields{"id": "abc"}, nestedset.NoNode)
	assert.True(t, nestedset.ErrInvalidArgument.Is(err))

	_, err = svc.AddNode(ctx, nestedset.Fields{"id": 5}, nestedset.NoNode)
	require.NoError(t, err)
	_, err = svc.AddNode(ctx, nestedset.Fields{"id": 5}, nestedset.NoNode)
	assert.True(t, nestedset.ErrDuplicateID.Is(err))

	// store assigned ids continue after caller assigned ones
	id, err := svc.AddNode(ctx, nestedset.Fields{}, nestedset.NoNode)
	require.NoError(t, err)
	assert.Equal(t, nestedset.NodeID(6), id)

	_, err = svc.Iterator(ctx, 99, 0)
	assert.True(t, nestedset.ErrInvalidArgument.Is(err))
}

func TestParseDirection(t *testing.T) {
	for in, expected := range map[string]nestedset.Direction{
		"under":       nestedset.Under,
		"UNDER":       nestedset.Under,
		"in_front_of": nestedset.InFrontOf,
		"before":      nestedset.InFrontOf,
		"behind":      nestedset.Behind,
		" after ":     nestedset.Behind,
	} {
		d, err := nestedset.ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, d, in)
	}

	_, err := nestedset.ParseDirection("sideways")
	assert.True(t, nestedset.ErrInvalidArgument.Is(err))
}
