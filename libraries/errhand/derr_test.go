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

package errhand

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestBuildDError(t *testing.T) {
	cause := errors.New("connection refused")
	err := BuildDError("error: unable to open store %s", "menu").
		AddDetails("kind: %s", "mysql").
		AddDetails("check the store section of the config").
		AddCause(cause).
		SetExitCode(2).
		Build()

	assert.Equal(t, "error: unable to open store menu", err.Error())
	assert.Equal(t, 2, err.ExitCode())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "error: unable to open store menu\n"+
		"kind: mysql\n"+
		"check the store section of the config\n"+
		"cause:\n"+
		"\tconnection refused", err.Verbose())
}

func TestBuildIf(t *testing.T) {
	assert.Nil(t, BuildIf(nil, "never").AddDetails("x").Build())

	err := BuildIf(errors.New("boom"), "error: %d failed", 3).Build()
	require.NotNil(t, err)
	assert.Equal(t, "error: 3 failed", err.Error())
	assert.Equal(t, 1, err.ExitCode())
}

func TestNestedVerboseCause(t *testing.T) {
	inner := BuildDError("inner").AddDetails("inner details").Build()
	outer := BuildDError("outer").AddCause(fmt.Errorf("wrapped: %w", inner)).Build()
	assert.Equal(t, "outer\ncause:\n\tinner\n\tinner details", outer.Verbose())
}

func TestFormatAndExitCode(t *testing.T) {
	plain := errors.New("plain failure")
	assert.Equal(t, "plain failure", Format(plain, true))
	assert.Equal(t, 1, ExitCode(plain))
	assert.Equal(t, 0, ExitCode(nil))

	derr := BuildDError("short").AddDetails("more").AddCause(plain).SetExitCode(3).Build()
	assert.Equal(t, "short\nmore", Format(derr, false))
	assert.Contains(t, Format(derr, true), "plain failure")
	assert.Equal(t, 3, ExitCode(fmt.Errorf("context: %w", derr)))
}
