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

package nscfg

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/nestedset/libraries/nestedset"
	"github.com/dolthub/nestedset/libraries/nestedset/boltstore"
	"github.com/dolthub/nestedset/libraries/nestedset/memstore"
	"github.com/dolthub/nestedset/libraries/nestedset/sqlstore"
)

// Store is an opened nested set store together with the resources it holds.
type Store struct {
	nestedset.Store

	kind   string
	create func(ctx context.Context) error
	ping   func(ctx context.Context, maxWait time.Duration) error
	close  func() error
}

// Kind is the configured store kind.
func (s *Store) Kind() string {
	return s.kind
}

// Init prepares an empty store. It creates the table of a SQL store and is a
// no-op for the others, which create their storage on open.
func (s *Store) Init(ctx context.Context) error {
	if s.create == nil {
		return nil
	}
	return s.create(ctx)
}

// WaitReady blocks until a SQL store's server answers or |maxWait| passes.
// Local stores are always ready.
func (s *Store) WaitReady(ctx context.Context, maxWait time.Duration) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx, maxWait)
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore opens the store described by the config.
func (cfg *Config) OpenStore(logger logrus.FieldLogger) (*Store, error) {
	sc := cfg.Store
	switch sc.Kind {
	case KindMemory:
		return &Store{Store: memstore.New(memstore.WithName(sc.Table)), kind: sc.Kind}, nil

	case KindBolt:
		opts := []boltstore.Option{boltstore.WithTable(sc.Table)}
		if sc.Bolt.NoSync {
			opts = append(opts, boltstore.WithNoSync())
		}
		bs, err := boltstore.Open(sc.Bolt.Path, opts...)
		if err != nil {
			return nil, err
		}
		return &Store{Store: bs, kind: sc.Kind, close: bs.Close}, nil

	case KindMySQL, KindPostgres:
		d, dsn := sqlstore.MySQL, sc.MySQL.DSN()
		if sc.Kind == KindPostgres {
			d, dsn = sqlstore.Postgres, sc.Postgres.DSN
		}

		ss, err := sqlstore.Open(d, dsn,
			sqlstore.WithTable(sc.Table),
			sqlstore.WithLockTimeout(cfg.LockTimeout()),
			sqlstore.WithLogger(logger.WithField("store", sc.Kind)))
		if err != nil {
			return nil, err
		}
		return &Store{
			Store: ss,
			kind:  sc.Kind,
			create: func(ctx context.Context) error {
				return ss.CreateTable(ctx, sc.PayloadColumns...)
			},
			ping:  ss.WaitReady,
			close: ss.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store kind '%s'", sc.Kind)
}
