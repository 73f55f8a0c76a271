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

// Package errhand builds errors meant for a person at a terminal: a short
// display message, optional details, and the underlying cause, which is only
// shown in verbose output.
package errhand

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

type VerboseError interface {
	error
	Verbose() string
	ExitCode() int
}

type DErrorBuilder struct {
	dispMsg  string
	details  []string
	cause    error
	exitCode int
}

func BuildDError(dispFmt string, args ...interface{}) *DErrorBuilder {
	return &DErrorBuilder{dispMsg: sprintf(dispFmt, args), exitCode: 1}
}

// BuildIf returns nil when |err| is nil, so the whole builder chain is
// skipped for successful calls.
func BuildIf(err error, dispFmt string, args ...interface{}) *DErrorBuilder {
	if err == nil {
		return nil
	}
	return &DErrorBuilder{dispMsg: sprintf(dispFmt, args), cause: err, exitCode: 1}
}

func (builder *DErrorBuilder) AddDetails(detailsFmt string, args ...interface{}) *DErrorBuilder {
	if builder == nil {
		return nil
	}
	builder.details = append(builder.details, sprintf(detailsFmt, args))
	return builder
}

func (builder *DErrorBuilder) AddCause(cause error) *DErrorBuilder {
	if builder == nil {
		return nil
	}
	builder.cause = cause
	return builder
}

// SetExitCode sets the process exit code reported for the error.
func (builder *DErrorBuilder) SetExitCode(code int) *DErrorBuilder {
	if builder == nil {
		return nil
	}
	builder.exitCode = code
	return builder
}

func (builder *DErrorBuilder) Build() VerboseError {
	if builder == nil {
		return nil
	}
	return &DError{
		DisplayMsg: builder.dispMsg,
		Details:    strings.Join(builder.details, "\n"),
		cause:      builder.cause,
		exitCode:   builder.exitCode,
	}
}

type DError struct {
	DisplayMsg string
	Details    string
	cause      error
	exitCode   int
}

func (derr *DError) Error() string {
	return color.RedString(derr.DisplayMsg)
}

func (derr *DError) Unwrap() error {
	return derr.cause
}

func (derr *DError) ExitCode() int {
	return derr.exitCode
}

func (derr *DError) Verbose() string {
	sections := []string{derr.Error()}
	if derr.Details != "" {
		sections = append(sections, derr.Details)
	}

	if derr.cause != nil {
		causeStr := derr.cause.Error()
		var vCause VerboseError
		if errors.As(derr.cause, &vCause) {
			causeStr = vCause.Verbose()
		}
		sections = append(sections, "cause:", indent(causeStr, "\t"))
	}

	return strings.Join(sections, "\n")
}

// Format renders |err| for display. Details and causes of a VerboseError are
// only included when |verbose| is set.
func Format(err error, verbose bool) string {
	var vErr VerboseError
	if !errors.As(err, &vErr) {
		return color.RedString(err.Error())
	}
	if verbose {
		return vErr.Verbose()
	}

	msg := vErr.Error()
	if d, ok := vErr.(*DError); ok && d.Details != "" {
		msg += "\n" + d.Details
	}
	return msg
}

// ExitCode returns the exit code carried by |err|, 0 for nil and 1 for errors
// that carry none.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var vErr VerboseError
	if errors.As(err, &vErr) {
		return vErr.ExitCode()
	}
	return 1
}

func sprintf(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func indent(str, indentStr string) string {
	lines := strings.Split(str, "\n")
	return indentStr + strings.Join(lines, "\n"+indentStr)
}
