// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package config loads a node's JSON configuration file, applying
// ${VAR}-style substitutions from its own environ block before any
// value is read.
package config

import (
	"encoding/json"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/bfix/gospel/logger"
)

// StoreConfig selects and parameterizes the KV persistence backing.
type StoreConfig struct {
	Mode string `json:"mode"` // "", "memory", "redis", "sql"
	DSN  string `json:"dsn"`
}

// SeedConfig describes one DNS TXT seed used to bootstrap the peer book.
type SeedConfig struct {
	Name   string `json:"name"`
	Server string `json:"server"`
}

// Environment settings, substituted into every string field via
// ${NAME} placeholders.
type Environ map[string]string

// NodeConfig is the aggregated configuration for a meshnode instance.
type NodeConfig struct {
	Env Environ `json:"environ"`

	Name string `json:"name"`
	IP   string `json:"ip"`
	Port int    `json:"port"`

	ProtocolVersion int `json:"protocolVersion"`
	ReplayWindow    int `json:"replayWindow"`

	SessionTTLSeconds int `json:"sessionTtlSeconds"`

	Seeds []SeedConfig `json:"seeds"`
	Store StoreConfig  `json:"store"`

	AdminPort int `json:"adminPort"`
}

// Cfg is the process-wide configuration, set by ParseConfig/ParseConfigBytes.
var Cfg *NodeConfig

// ParseConfig reads and parses a JSON configuration file from disk.
func ParseConfig(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}
	return ParseConfigBytes(data, false)
}

// ParseConfigBytes parses a JSON configuration from an in-memory buffer.
// When quiet is true, substitution logging is suppressed (used by tests
// that don't want DBG-level noise).
func ParseConfigBytes(data []byte, quiet bool) error {
	cfg := new(NodeConfig)
	if err := json.Unmarshal(data, cfg); err != nil {
		return err
	}
	applySubstitutions(cfg, cfg.Env, quiet)
	Cfg = cfg
	return nil
}

var rx = regexp.MustCompile(`\$\{([^\}]*)\}`)

// substString replaces every ${NAME} placeholder in s found in env.
func substString(s string, env map[string]string) string {
	matches := rx.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		if len(m[1]) == 0 {
			continue
		}
		subst, ok := env[m[1]]
		if !ok {
			continue
		}
		s = strings.ReplaceAll(s, "${"+m[1]+"}", subst)
	}
	return s
}

// applySubstitutions traverses the configuration data structure and
// applies string substitutions to all string-valued fields.
func applySubstitutions(x interface{}, env map[string]string, quiet bool) {
	var process func(v reflect.Value)
	process = func(v reflect.Value) {
		for i := 0; i < v.NumField(); i++ {
			fld := v.Field(i)
			if !fld.CanSet() {
				continue
			}
			switch fld.Kind() {
			case reflect.String:
				s := fld.Interface().(string)
				for {
					s1 := substString(s, env)
					if s1 == s {
						break
					}
					if !quiet {
						logger.Printf(logger.DBG, "[config] %s --> %s\n", s, s1)
					}
					fld.SetString(s1)
					s = s1
				}
			case reflect.Struct:
				process(fld)
			case reflect.Slice:
				for j := 0; j < fld.Len(); j++ {
					e := fld.Index(j)
					if e.Kind() == reflect.Struct {
						process(e)
					}
				}
			case reflect.Ptr:
				e := fld.Elem()
				if e.IsValid() {
					process(e)
				}
			}
		}
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Ptr:
		e := v.Elem()
		if e.IsValid() {
			process(e)
		}
	case reflect.Struct:
		process(v)
	}
}
