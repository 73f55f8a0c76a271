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

package nstestutils

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/dolthub/nestedset/libraries/nestedset"
)

// StoreSuite exercises a Store through a Service. Store implementations run it
// from their own tests:
//
//	suite.Run(t, &nstestutils.StoreSuite{NewStore: newTestStore})
//
// Every store handed out by NewStore must be empty, assign ids starting at 1,
// and accept a string payload column named "name".
type StoreSuite struct {
	suite.Suite

	NewStore func(t *testing.T) nestedset.Store

	// Iterations bounds the randomized mutation test. Zero means 150.
	Iterations int

	ctx   context.Context
	store nestedset.Store
	svc   *nestedset.Service[nestedset.Fields]
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
	s.svc = nestedset.NewService[nestedset.Fields](s.store, nestedset.FieldsCodec{})
}

func (s *StoreSuite) add(name string, parent nestedset.NodeID) nestedset.NodeID {
	id, err := s.svc.AddNode(s.ctx, nestedset.Fields{"name": name}, parent)
	s.Require().NoError(err)
	return id
}

func (s *StoreSuite) node(id nestedset.NodeID) nestedset.Node[nestedset.Fields] {
	n, err := s.svc.GetNode(s.ctx, id)
	s.Require().NoError(err)
	return n
}

func (s *StoreSuite) requireBounds(id nestedset.NodeID, lft, rgt, level int64) {
	n := s.node(id)
	s.Require().Equal([3]int64{lft, rgt, level}, [3]int64{n.Lft, n.Rgt, n.Level}, "bounds of node %d", id)
}

func (s *StoreSuite) snapshot() *nestedset.Snapshot[nestedset.Fields] {
	snap, err := s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	return snap
}

func (s *StoreSuite) requireValid() *nestedset.Snapshot[nestedset.Fields] {
	snap := s.snapshot()
	s.Require().NoError(snap.Validate())
	s.Require().True(snap.IsDense(), "boundaries are not densely packed")
	return snap
}

func (s *StoreSuite) TestAddRootAndChild() {
	a := s.add("A", nestedset.NoNode)
	s.Equal(nestedset.NodeID(1), a)
	s.requireBounds(a, 1, 2, 0)

	b := s.add("B", a)
	s.Equal(nestedset.NodeID(2), b)
	s.requireBounds(b, 2, 3, 1)
	s.requireBounds(a, 1, 4, 0)

	s.Equal("B", s.node(b).Payload["name"])
	s.requireValid()
}

func (s *StoreSuite) TestAddChildAppendsLast() {
	root := s.add("root", nestedset.NoNode)
	first := s.add("first", root)
	second := s.add("second", root)
	other := s.add("other", nestedset.NoNode)

	s.requireBounds(root, 1, 6, 0)
	s.requireBounds(first, 2, 3, 1)
	s.requireBounds(second, 4, 5, 1)
	s.requireBounds(other, 7, 8, 0)

	grandchild := s.add("grandchild", first)
	s.requireBounds(grandchild, 3, 4, 2)
	s.requireBounds(first, 2, 5, 1)
	s.requireBounds(second, 6, 7, 1)
	s.requireBounds(root, 1, 8, 0)
	s.requireBounds(other, 9, 10, 0)
	s.requireValid()
}

func (s *StoreSuite) TestAddUnderMissingParent() {
	s.add("A", nestedset.NoNode)
	before := s.snapshot().Nodes()

	_, err := s.svc.AddNode(s.ctx, nestedset.Fields{"name": "orphan"}, 99)
	s.Require().Error(err)
	s.True(nestedset.IsNotFound(err), "unexpected error: %v", err)

	s.svc.Invalidate()
	s.Equal(before, s.snapshot().Nodes())
}

func (s *StoreSuite) TestMoveRootBehind() {
	a := s.add("A", nestedset.NoNode)
	b := s.add("B", nestedset.NoNode)
	c := s.add("C", nestedset.NoNode)

	s.Require().NoError(s.svc.MoveNode(s.ctx, a, c, nestedset.Behind))

	s.requireBounds(b, 1, 2, 0)
	s.requireBounds(c, 3, 4, 0)
	s.requireBounds(a, 5, 6, 0)
	s.requireValid()
}

func (s *StoreSuite) TestMoveInFrontOfAndUnder() {
	a := s.add("A", nestedset.NoNode)
	b := s.add("B", nestedset.NoNode)
	c := s.add("C", nestedset.NoNode)

	s.Require().NoError(s.svc.MoveNode(s.ctx, c, a, nestedset.InFrontOf))
	s.requireBounds(c, 1, 2, 0)
	s.requireBounds(a, 3, 4, 0)
	s.requireBounds(b, 5, 6, 0)

	s.Require().NoError(s.svc.MoveNode(s.ctx, b, a, nestedset.Under))
	s.requireBounds(c, 1, 2, 0)
	s.requireBounds(a, 3, 6, 0)
	s.requireBounds(b, 4, 5, 1)

	// moving a subtree carries its descendants and re-levels them
	s.Require().NoError(s.svc.MoveNode(s.ctx, a, c, nestedset.Under))
	s.requireBounds(c, 1, 6, 0)
	s.requireBounds(a, 2, 5, 1)
	s.requireBounds(b, 3, 4, 2)

	// and back out behind its former parent
	s.Require().NoError(s.svc.MoveNode(s.ctx, b, c, nestedset.Behind))
	s.requireBounds(c, 1, 4, 0)
	s.requireBounds(a, 2, 3, 1)
	s.requireBounds(b, 5, 6, 0)
	s.requireValid()
}

func (s *StoreSuite) TestRemoveSubtree() {
	a := s.add("A", nestedset.NoNode)
	b := s.add("B", nestedset.NoNode)
	s.add("B1", b)
	s.add("B2", b)
	c := s.add("C", nestedset.NoNode)
	c1 := s.add("C1", c)

	s.requireBounds(b, 3, 8, 0)
	s.requireBounds(c, 9, 12, 0)

	s.Require().NoError(s.svc.RemoveNode(s.ctx, b))

	snap := s.requireValid()
	s.Equal(3, snap.Len())
	s.requireBounds(a, 1, 2, 0)
	s.requireBounds(c, 3, 6, 0)
	s.requireBounds(c1, 4, 5, 1)
}

func (s *StoreSuite) TestRemoveMissing() {
	err := s.svc.RemoveNode(s.ctx, 7)
	s.Require().Error(err)
	s.True(nestedset.IsNotFound(err))
}

func (s *StoreSuite) TestMoveUnderDescendantFails() {
	a := s.add("A", nestedset.NoNode)
	a1 := s.add("A1", a)
	a2 := s.add("A2", a1)
	s.add("B", nestedset.NoNode)

	before := s.snapshot().Nodes()

	for _, dir := range []nestedset.Direction{nestedset.Under, nestedset.InFrontOf, nestedset.Behind} {
		err := s.svc.MoveNode(s.ctx, a, a2, dir)
		s.Require().Error(err)
		s.True(nestedset.IsLogicError(err), "unexpected error: %v", err)
	}

	s.svc.Invalidate()
	s.Equal(before, s.snapshot().Nodes())
}

func (s *StoreSuite) TestMoveArgumentErrors() {
	a := s.add("A", nestedset.NoNode)

	err := s.svc.MoveNode(s.ctx, a, a, nestedset.Under)
	s.True(nestedset.ErrInvalidArgument.Is(err), "unexpected error: %v", err)

	err = s.svc.MoveNode(s.ctx, a, 42, nestedset.Behind)
	s.True(nestedset.IsNotFound(err), "unexpected error: %v", err)

	err = s.svc.MoveNode(s.ctx, 42, a, nestedset.Behind)
	s.True(nestedset.IsNotFound(err), "unexpected error: %v", err)
}

func (s *StoreSuite) TestAddRemoveRoundTrip() {
	a := s.add("A", nestedset.NoNode)
	b := s.add("B", a)
	s.add("C", b)
	s.add("D", nestedset.NoNode)
	before := s.snapshot().Nodes()

	id := s.add("temp", b)
	s.Require().NoError(s.svc.RemoveNode(s.ctx, id))

	s.Equal(before, s.snapshot().Nodes())
}

func (s *StoreSuite) TestCallerAssignedID() {
	id, err := s.svc.AddNode(s.ctx, nestedset.Fields{"id": int64(40), "name": "fixed"}, nestedset.NoNode)
	s.Require().NoError(err)
	s.Equal(nestedset.NodeID(40), id)

	n := s.node(40)
	s.Equal("fixed", n.Payload["name"])
	s.NotContains(n.Payload, "id")
}

func (s *StoreSuite) TestShiftRangeCountsMatchedRows() {
	a := s.add("A", nestedset.NoNode)
	s.add("A1", a)
	s.add("B", nestedset.NoNode)

	tx, err := s.store.Begin(s.ctx)
	s.Require().NoError(err)
	defer tx.Rollback()
	s.Require().NoError(tx.LockExclusive(s.ctx))

	// A(1,4) A1(2,3) B(5,6)
	n, err := tx.ShiftRange(s.ctx, nestedset.AtLeast(nestedset.ColumnRgt, 4), nestedset.Shift{})
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = tx.ShiftRange(s.ctx, nestedset.Between(nestedset.ColumnLft, 2, 5), nestedset.Shift{})
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = tx.ShiftRange(s.ctx, nestedset.AtLeast(nestedset.ColumnRgt, 4), nestedset.Shift{Rgt: 2})
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = tx.ShiftRange(s.ctx, nestedset.Above(nestedset.ColumnLft, 100), nestedset.Shift{})
	s.Require().NoError(err)
	s.Zero(n)

	s.Require().NoError(tx.Rollback())
	s.requireBounds(a, 1, 4, 0)
}

func (s *StoreSuite) TestIterationIsIdempotent() {
	a := s.add("A", nestedset.NoNode)
	s.add("A1", a)
	s.add("B", nestedset.NoNode)

	it1, err := s.svc.Iterator(s.ctx, nestedset.NoNode, 0)
	s.Require().NoError(err)
	it2, err := s.svc.Iterator(s.ctx, nestedset.NoNode, 0)
	s.Require().NoError(err)

	first := it1.Collect()
	s.Len(first, 3)
	s.Equal(first, it2.Collect())
	s.Equal(first, it1.Collect())
}

func (s *StoreSuite) TestRandomMutationsMatchModel() {
	iterations := s.Iterations
	if iterations == 0 {
		iterations = 150
	}

	rnd := rand.New(rand.NewSource(7))
	model := NewForest()
	var ids []nestedset.NodeID

	pick := func() nestedset.NodeID {
		return ids[rnd.Intn(len(ids))]
	}

	for i := 0; i < iterations; i++ {
		op := rnd.Intn(10)
		switch {
		case len(ids) < 3 || op < 2:
			id := s.add("root", nestedset.NoNode)
			model.Add(id, nestedset.NoNode)
		case op < 5:
			parent := pick()
			id := s.add("child", parent)
			model.Add(id, parent)
		case op < 7:
			id := pick()
			s.Require().NoError(s.svc.RemoveNode(s.ctx, id))
			model.Remove(id)
		default:
			id, target := pick(), pick()
			dir := nestedset.Direction(rnd.Intn(3))
			err := s.svc.MoveNode(s.ctx, id, target, dir)
			switch {
			case id == target:
				s.Require().True(nestedset.ErrInvalidArgument.Is(err), "step %d: %v", i, err)
			case model.IsDescendant(target, id):
				s.Require().True(nestedset.IsLogicError(err), "step %d: %v", i, err)
			default:
				s.Require().NoError(err, "step %d", i)
				model.Move(id, target, dir)
			}
		}

		ids = model.IDs()
		snap := s.requireValid()
		s.Require().Equal(model.Preorder(), SnapshotVisits(snap), "step %d", i)
	}
}

func (s *StoreSuite) TestConcurrentAdds() {
	root := s.add("root", nestedset.NoNode)

	const writers, perWriter = 4, 10
	eg, ctx := errgroup.WithContext(s.ctx)
	for w := 0; w < writers; w++ {
		eg.Go(func() error {
			for i := 0; i < perWriter; i++ {
				if _, err := s.svc.AddNode(ctx, nestedset.Fields{"name": "leaf"}, root); err != nil {
					return err
				}
			}
			return nil
		})
	}
	s.Require().NoError(eg.Wait())

	snap := s.requireValid()
	s.Equal(writers*perWriter+1, snap.Len())
	s.requireBounds(root, 1, 2*int64(writers*perWriter+1), 0)
}

// RequireMatchesModel fails |t| unless the snapshot of |svc| has the shape of
// |model|.
func RequireMatchesModel[P any](t *testing.T, svc *nestedset.Service[P], model *Forest) {
	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, snap.Validate())
	require.Equal(t, model.Preorder(), SnapshotVisits(snap))
}
