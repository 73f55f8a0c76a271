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

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/dolthub/nestedset/libraries/errhand"
	"github.com/dolthub/nestedset/libraries/nestedset"
)

func init() {
	color.NoColor = true
}

type cli struct {
	t      *testing.T
	config string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	config := filepath.Join(dir, "nstree.yaml")
	data := "log_level: warn\nstore:\n  kind: bolt\n  table: menu\n  bolt:\n    path: " + filepath.Join(dir, "tree.db") + "\n    no_sync: true\n"
	require.NoError(t, os.WriteFile(config, []byte(data), 0644))
	return &cli{t: t, config: config}
}

func (c *cli) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--config", c.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (c *cli) mustRun(args ...string) string {
	code, out, errOut := c.run(args...)
	require.Equal(c.t, 0, code, "nstree %s: %s", strings.Join(args, " "), errOut)
	return out
}

func TestAddShowAndGet(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, "initialized bolt store, table menu\n", c.mustRun("init"))
	assert.Equal(t, "1\n", c.mustRun("add", "name=Home"))
	assert.Equal(t, "2\n", c.mustRun("add", "-p", "1", "name=About", "order=2"))
	assert.Equal(t, "3\n", c.mustRun("add", "--parent", "1", "name=Blog"))
	assert.Equal(t, "4\n", c.mustRun("add", "name=Footer"))

	out := c.mustRun("show")
	for _, want := range []string{"Home", "About", "Blog", "Footer", "4 nodes"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "About"), strings.Index(out, "Blog"))

	out = c.mustRun("show", "--base", "1")
	assert.Contains(t, out, "2 nodes")
	assert.NotContains(t, out, "Footer")

	out = c.mustRun("show", "--depth", "1")
	assert.Contains(t, out, "2 nodes")
	assert.NotContains(t, out, "About")

	out = c.mustRun("get", "2")
	assert.Contains(t, out, "lft:    2\n")
	assert.Contains(t, out, "level:  1\n")
	assert.Contains(t, out, "fields: name=About order=2\n")
	assert.Contains(t, out, "path:   Home > About\n")

	assert.Equal(t, "ok: 4 nodes, 2 roots, depth 2\n", c.mustRun("check"))
}

func TestMoveAndRemove(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "name=A")
	c.mustRun("add", "name=B")
	c.mustRun("add", "name=C")

	c.mustRun("mv", "1", "3", "--after")
	out := c.mustRun("get", "1")
	assert.Contains(t, out, "lft:    5\n")

	c.mustRun("mv", "2", "3", "--under")
	out = c.mustRun("get", "2")
	assert.Contains(t, out, "path:   C > B\n")

	c.mustRun("rm", "3")
	assert.Equal(t, "ok: 1 nodes, 1 roots, depth 1\n", c.mustRun("check"))
}

func TestErrors(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "name=A")
	c.mustRun("add", "-p", "1", "name=A1")

	tests := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{"no command", nil, 2, "error:"},
		{"unknown command", []string{"frobnicate"}, 2, "nstree --help"},
		{"missing node", []string{"rm", "9"}, 3, "failed to remove node 9"},
		{"missing parent", []string{"add", "-p", "9", "name=x"}, 3, "not found"},
		{"bad field", []string{"add", "oops"}, 2, "key=value"},
		{"no direction", []string{"mv", "2", "1"}, 2, "exactly one of"},
		{"two directions", []string{"mv", "2", "1", "--under", "--after"}, 2, "exactly one of"},
		{"into own subtree", []string{"mv", "1", "2", "--under"}, 2, "own subtree"},
		{"self move", []string{"mv", "1", "1", "--before"}, 2, "failed to move node 1"},
		{"missing get", []string{"get", "42"}, 3, "failed to get node 42"},
		{"unknown base", []string{"show", "--base", "42"}, 2, "failed to show tree"},
		{"negative depth", []string{"show", "--depth=-1"}, 2, "must not be negative"},
		{"duplicate id", []string{"add", "id=1", "name=dup"}, 2, "already exists"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, _, errOut := c.run(test.args...)
			assert.Equal(t, test.code, code, errOut)
			assert.Contains(t, errOut, test.msg)
		})
	}

	// nothing above changed the tree
	assert.Equal(t, "ok: 2 nodes, 1 roots, depth 2\n", c.mustRun("check"))
}

func TestHelpAndVersion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		out  string
	}{
		{"no args", nil, 2, "command not specified"},
		{"help flag", []string{"--help"}, 0, "usage: nstree"},
		{"help command", []string{"help", "mv"}, 0, "--under"},
		{"command help", []string{"show", "--help"}, 0, "--depth"},
		{"version", []string{"--version"}, 0, Version},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), test.args, &stdout, &stderr)
			assert.Equal(t, test.code, code, stderr.String())
			assert.Contains(t, stderr.String(), test.out)
			assert.Empty(t, stdout.String())
		})
	}
}

var errUnreadable = errors.New("table is unreadable")

// unreadableStore fails every read and transaction.
type unreadableStore struct{}

func (unreadableStore) SelectAllOrderedByLft(context.Context) ([]nestedset.Row, error) {
	return nil, errUnreadable
}

func (unreadableStore) Begin(context.Context) (nestedset.StoreTx, error) {
	return nil, errUnreadable
}

func TestReadFailures(t *testing.T) {
	tests := []struct {
		name string
		cmd  command
		args []string
	}{
		{"show", nstreeShow, []string{"show"}},
		{"show with base", nstreeShow, []string{"show", "--base", "1"}},
		{"get", nstreeGet, []string{"get", "1"}},
		{"check", nstreeCheck, []string{"check"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			app := kingpin.New("nstree", "")
			_, h := test.cmd(app)
			_, err := app.Parse(test.args)
			require.NoError(t, err)

			var out bytes.Buffer
			e := &env{
				logger: logrus.New(),
				svc:    nestedset.NewService[nestedset.Fields](unreadableStore{}, nestedset.FieldsCodec{}),
				out:    &out,
			}

			err = h(context.Background(), e)
			require.Error(t, err)
			assert.ErrorIs(t, err, errUnreadable)
			assert.Contains(t, errhand.Format(err, false), "failed to read tree")
			assert.Equal(t, 1, errhand.ExitCode(err))
			assert.Empty(t, out.String())
		})
	}
}

func TestBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: tape\n"), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-c", path, "-v", "check"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "failed to load config")
	assert.Contains(t, stderr.String(), "unknown store kind")
}

func TestParseFields(t *testing.T) {
	f, err := parseFields([]string{"name=Docs", "weight=10", "note=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "Docs", f["name"])
	assert.Equal(t, int64(10), f["weight"])
	assert.Equal(t, "a=b", f["note"])
	assert.Equal(t, "", f["empty"])

	_, err = parseFields([]string{"=x"})
	assert.Error(t, err)
}
