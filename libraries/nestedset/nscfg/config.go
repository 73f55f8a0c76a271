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

// Package nscfg loads the YAML configuration of a nested set tree and opens
// the store it names.
//
// A config file looks like:
//
//	log_level: info
//	skip_mode: legacy
//	store:
//	  kind: mysql
//	  table: menu
//	  lock_timeout_ms: 5000
//	  payload_columns: ["title VARCHAR(255)"]
//	  mysql:
//	    host: ${DB_HOST:-127.0.0.1}
//	    user: app
//	    password: ${DB_PASSWORD}
//	    database: site
//
// The same settings may be given as TOML in a file ending in .toml.
package nscfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/dolthub/nestedset/libraries/nestedset"
)

const (
	KindMemory   = "memory"
	KindBolt     = "bolt"
	KindMySQL    = "mysql"
	KindPostgres = "postgres"
)

type Config struct {
	LogLevel string      `toml:"log_level" yaml:"log_level" default:"info"`
	SkipMode string      `toml:"skip_mode" yaml:"skip_mode" default:"legacy"`
	Store    StoreConfig `toml:"store" yaml:"store"`
}

type StoreConfig struct {
	Kind          string `toml:"kind" yaml:"kind" default:"bolt"`
	Table         string `toml:"table" yaml:"table" default:"nodes"`
	LockTimeoutMs uint64 `toml:"lock_timeout_ms" yaml:"lock_timeout_ms" default:"10000"`

	// PayloadColumns are the column definitions `init` adds to a SQL table
	// after the structural columns.
	PayloadColumns []string `toml:"payload_columns" yaml:"payload_columns,omitempty"`

	Bolt     BoltConfig     `toml:"bolt" yaml:"bolt"`
	MySQL    MySQLConfig    `toml:"mysql" yaml:"mysql"`
	Postgres PostgresConfig `toml:"postgres" yaml:"postgres"`
}

type BoltConfig struct {
	Path   string `toml:"path" yaml:"path" default:"nstree.db"`
	NoSync bool   `toml:"no_sync" yaml:"no_sync,omitempty"`
}

type MySQLConfig struct {
	Host     string            `toml:"host" yaml:"host" default:"127.0.0.1"`
	Port     int               `toml:"port" yaml:"port" default:"3306"`
	User     string            `toml:"user" yaml:"user" default:"root"`
	Password string            `toml:"password" yaml:"password,omitempty"`
	Database string            `toml:"database" yaml:"database" default:"nestedset"`
	Params   map[string]string `toml:"params" yaml:"params,omitempty"`
}

type PostgresConfig struct {
	DSN string `toml:"dsn" yaml:"dsn" default:"postgres://postgres@127.0.0.1:5432/nestedset?sslmode=disable"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// Parse reads a config from YAML, expanding environment placeholders first.
// Keys the config does not define are rejected.
func Parse(data []byte) (*Config, error) {
	data, err := expandEnv(data)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseTOML is Parse for TOML documents.
func ParseTOML(data []byte) (*Config, error) {
	data, err := expandEnv(data)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load parses the config file at |path|. Files ending in .toml are read as
// TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	parse := Parse
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		parse = ParseTOML
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if _, err := cfg.Level(); err != nil {
		return err
	}
	if _, err := nestedset.ParseSkipMode(cfg.SkipMode); err != nil {
		return err
	}

	switch cfg.Store.Kind {
	case KindMemory, KindBolt, KindMySQL, KindPostgres:
	default:
		return fmt.Errorf("unknown store kind '%s'", cfg.Store.Kind)
	}
	if cfg.Store.Table == "" {
		return fmt.Errorf("store table must not be empty")
	}
	return nil
}

// Level is the parsed log_level.
func (cfg *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(cfg.LogLevel)
}

// LockTimeout is how long mutations wait for the table lock.
func (cfg *Config) LockTimeout() time.Duration {
	return time.Duration(cfg.Store.LockTimeoutMs) * time.Millisecond
}

// ServiceOptions returns the Service options the config implies.
func (cfg *Config) ServiceOptions(logger logrus.FieldLogger) ([]nestedset.Option, error) {
	mode, err := nestedset.ParseSkipMode(cfg.SkipMode)
	if err != nil {
		return nil, err
	}
	return []nestedset.Option{nestedset.WithSkipMode(mode), nestedset.WithLogger(logger)}, nil
}

// DSN formats the MySQL settings as a go-sql-driver data source name.
func (c MySQLConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

// String renders the config as YAML with the password masked.
func (cfg *Config) String() string {
	c := *cfg
	if c.Store.MySQL.Password != "" {
		c.Store.MySQL.Password = "********"
	}
	data, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Sprintf("error marshalling config: %v", err)
	}
	return string(data)
}
