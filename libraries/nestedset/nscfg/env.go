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
	"bytes"
	"fmt"
	"os"
)

// expandEnv replaces ${VAR} and ${VAR:-default} placeholders in a config
// file. ${VAR} fails when VAR is unset or empty, a default is itself
// expanded, and $$ produces a literal '$'. Any other '$' is left alone.
func expandEnv(data []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(data))

	for len(data) > 0 {
		i := bytes.IndexByte(data, '$')
		if i < 0 || i == len(data)-1 {
			out.Write(data)
			break
		}
		out.Write(data[:i])
		data = data[i:]

		switch data[1] {
		case '$':
			out.WriteByte('$')
			data = data[2:]
			continue
		case '{':
		default:
			out.WriteByte('$')
			data = data[1:]
			continue
		}

		end := closingBrace(data)
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder %q", truncate(data, 24))
		}
		val, err := lookupPlaceholder(data[2:end])
		if err != nil {
			return nil, err
		}
		out.Write(val)
		data = data[end+1:]
	}

	return out.Bytes(), nil
}

// closingBrace returns the index of the '}' ending the placeholder that opens
// |data|, skipping over placeholders nested in its default, or -1.
func closingBrace(data []byte) int {
	depth := 0
	for i := 0; i < len(data); i++ {
		switch {
		case data[i] == '$' && i+1 < len(data) && data[i+1] == '$':
			i++
		case data[i] == '$' && i+1 < len(data) && data[i+1] == '{':
			depth++
			i++
		case data[i] == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func lookupPlaceholder(expr []byte) ([]byte, error) {
	name, def, hasDef := bytes.Cut(expr, []byte(":-"))
	if !validEnvName(name) {
		return nil, fmt.Errorf("invalid environment variable name %q", name)
	}

	if v, ok := os.LookupEnv(string(name)); ok && v != "" {
		return []byte(v), nil
	}
	if hasDef {
		return expandEnv(def)
	}
	return nil, fmt.Errorf("environment variable %q is not set", name)
}

func validEnvName(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for i, c := range b {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
