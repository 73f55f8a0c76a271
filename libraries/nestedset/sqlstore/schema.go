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

package sqlstore

import (
	"fmt"
	"strings"
)

// CreateTableSQL returns the statements that create a nested set table named
// |table|. Each entry of |payload| is a column definition, e.g.
// "name VARCHAR(255)", appended after the structural columns.
func CreateTableSQL(d Dialect, table string, payload ...string) []string {
	q := d.quote
	cols := []string{
		fmt.Sprintf("%s BIGINT NOT NULL", q("lft")),
		fmt.Sprintf("%s BIGINT NOT NULL", q("rgt")),
		fmt.Sprintf("%s BIGINT NOT NULL DEFAULT 0", q("level")),
	}
	cols = append(cols, payload...)

	switch d {
	case Postgres:
		cols = append([]string{fmt.Sprintf("%s BIGSERIAL PRIMARY KEY", q("id"))}, cols...)
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", q(table), strings.Join(cols, ",\n  ")),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", q(table+"_lft"), q(table), q("lft")),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", q(table+"_rgt"), q(table), q("rgt")),
		}
	default:
		cols = append([]string{fmt.Sprintf("%s BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY", q("id"))}, cols...)
		cols = append(cols,
			fmt.Sprintf("INDEX %s (%s)", q(table+"_lft"), q("lft")),
			fmt.Sprintf("INDEX %s (%s)", q(table+"_rgt"), q("rgt")),
		)
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", q(table), strings.Join(cols, ",\n  ")),
		}
	}
}

// DropTableSQL returns the statement that drops |table| if it exists.
func DropTableSQL(d Dialect, table string) string {
	return "DROP TABLE IF EXISTS " + d.quote(table)
}
