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
	"maps"
	"strconv"

	"github.com/goccy/go-json"
)

// Fields are the payload columns of a row, keyed by column name.
type Fields map[string]any

// Clone returns a shallow copy of |f|.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	return maps.Clone(f)
}

// Codec converts between a typed payload and the payload columns of a row.
type Codec[P any] interface {
	Encode(p P) (Fields, error)
	Decode(f Fields) (P, error)
}

// FieldsCodec passes payload columns through untouched.
type FieldsCodec struct{}

var _ Codec[Fields] = FieldsCodec{}

func (FieldsCodec) Encode(p Fields) (Fields, error) {
	return p.Clone(), nil
}

func (FieldsCodec) Decode(f Fields) (Fields, error) {
	return f.Clone(), nil
}

// JSONCodec maps struct payloads onto payload columns using their json tags.
// Each top level json field becomes one column.
type JSONCodec[P any] struct{}

func (JSONCodec[P]) Encode(p P) (Fields, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (JSONCodec[P]) Decode(f Fields) (P, error) {
	var p P
	data, err := json.Marshal(f)
	if err != nil {
		return p, err
	}
	err = json.Unmarshal(data, &p)
	return p, err
}

// FuncCodec adapts a pair of functions into a Codec. A nil Encode function
// produces rows without payload columns.
type FuncCodec[P any] struct {
	EncodeFn func(P) (Fields, error)
	DecodeFn func(Fields) (P, error)
}

func (c FuncCodec[P]) Encode(p P) (Fields, error) {
	if c.EncodeFn == nil {
		return nil, nil
	}
	return c.EncodeFn(p)
}

func (c FuncCodec[P]) Decode(f Fields) (P, error) {
	return c.DecodeFn(f)
}

// AsInt64 converts the integer-like values produced by database drivers and
// JSON decoding into an int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case NodeID:
		return int64(n), true
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
