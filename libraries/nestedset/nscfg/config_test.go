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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/nestedset/libraries/nestedset"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, KindBolt, cfg.Store.Kind)
	assert.Equal(t, "nodes", cfg.Store.Table)
	assert.Equal(t, "nstree.db", cfg.Store.Bolt.Path)
	assert.Equal(t, 10*time.Second, cfg.LockTimeout())
	assert.Equal(t, 3306, cfg.Store.MySQL.Port)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, level)
}

func TestParse(t *testing.T) {
	t.Setenv("NSCFG_TEST_PASSWORD", "s3cret")
	t.Setenv("NSCFG_TEST_EMPTY", "")

	cfg, err := Parse([]byte(`
log_level: debug
skip_mode: walk
store:
  kind: mysql
  table: menu
  lock_timeout_ms: 250
  payload_columns: ["title VARCHAR(255)"]
  mysql:
    host: ${NSCFG_TEST_HOST:-db.internal}
    port: 3307
    user: app
    password: ${NSCFG_TEST_PASSWORD}
    database: ${NSCFG_TEST_EMPTY:-site}
    params:
      charset: utf8mb4
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, KindMySQL, cfg.Store.Kind)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout())
	assert.Equal(t, []string{"title VARCHAR(255)"}, cfg.Store.PayloadColumns)
	assert.Equal(t, "app:s3cret@tcp(db.internal:3307)/site?charset=utf8mb4", cfg.Store.MySQL.DSN())

	// untouched sections keep their defaults
	assert.Equal(t, "nstree.db", cfg.Store.Bolt.Path)

	assert.Contains(t, cfg.String(), "********")
	assert.NotContains(t, cfg.String(), "s3cret")

	opts, err := cfg.ServiceOptions(logrus.New())
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  string
	}{
		{"unknown key", "store:\n  flavor: mysql\n", "flavor"},
		{"unknown kind", "store:\n  kind: sqlite\n", "unknown store kind"},
		{"bad level", "log_level: loud\n", "not a valid logrus Level"},
		{"bad skip mode", "skip_mode: hop\n", "unknown skip mode"},
		{"missing env", "store:\n  table: ${NSCFG_TEST_UNSET_VAR}\n", "NSCFG_TEST_UNSET_VAR"},
		{"empty table", "store:\n  table: \"\"\n", "table"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.err)
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("NSCFG_A", "alpha")
	t.Setenv("NSCFG_B", "")

	tests := []struct {
		in       string
		expected string
	}{
		{"plain", "plain"},
		{"${NSCFG_A}", "alpha"},
		{"x-${NSCFG_A}-y", "x-alpha-y"},
		{"${NSCFG_B:-fallback}", "fallback"},
		{"${NSCFG_UNSET:-${NSCFG_A}}", "alpha"},
		{"${NSCFG_UNSET:-${NSCFG_B:-deep}}/x", "deep/x"},
		{"${NSCFG_UNSET:-a-${NSCFG_A}-b} ${NSCFG_A}", "a-alpha-b alpha"},
		{"${NSCFG_UNSET:-$$}", "$"},
		{"${NSCFG_A}}", "alpha}"},
		{"$$HOME", "$HOME"},
		{"cost: $5", "cost: $5"},
		{"trailing $", "trailing $"},
	}
	for _, test := range tests {
		out, err := expandEnv([]byte(test.in))
		require.NoError(t, err, test.in)
		assert.Equal(t, test.expected, string(out), test.in)
	}

	for _, bad := range []string{"${NSCFG_A", "${NSCFG_UNSET:-${NSCFG_A}", "${}", "${1ABC}", "${NSCFG_B}"} {
		_, err := expandEnv([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestLoadAndOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "nstree.yaml")
	dbPath := filepath.Join(dir, "tree.db")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: bolt\n  bolt:\n    path: "+dbPath+"\n    no_sync: true\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	store, err := cfg.OpenStore(logrus.New())
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, KindBolt, store.Kind())
	require.NoError(t, store.Init(ctx))

	svc := nestedset.NewService[nestedset.Fields](store, nestedset.FieldsCodec{})
	id, err := svc.AddNode(ctx, nestedset.Fields{"name": "root"}, nestedset.NoNode)
	require.NoError(t, err)
	assert.Equal(t, nestedset.NodeID(1), id)
	assert.FileExists(t, dbPath)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestOpenMemoryStore(t *testing.T) {
	cfg := Default()
	cfg.Store.Kind = KindMemory

	store, err := cfg.OpenStore(logrus.New())
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, store.Close())

	cfg.Store.Kind = "tape"
	_, err = cfg.OpenStore(logrus.New())
	assert.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	t.Setenv("NSCFG_TEST_DSN", "postgres://app@db/site")
	path := filepath.Join(t.TempDir(), "nstree.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "warn"

[store]
kind = "postgres"
table = "menu"
payload_columns = ["title TEXT"]

[store.postgres]
dsn = "${NSCFG_TEST_DSN}"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, KindPostgres, cfg.Store.Kind)
	assert.Equal(t, "menu", cfg.Store.Table)
	assert.Equal(t, "postgres://app@db/site", cfg.Store.Postgres.DSN)
	assert.Equal(t, "legacy", cfg.SkipMode)

	_, err = ParseTOML([]byte("[store]\nflavor = \"mysql\"\n"))
	assert.ErrorContains(t, err, "store.flavor")
}
