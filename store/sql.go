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

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"meshnode/util"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// SQL is a KV backing over database/sql, selecting its driver from the
// DSN's scheme prefix: "mysql://..." or "sqlite://path.db".
type SQL struct {
	db *sql.DB
}

const createTable = `CREATE TABLE IF NOT EXISTS meshnode_kv (
	k VARCHAR(255) PRIMARY KEY,
	v BLOB,
	expires_at BIGINT
)`

// NewSQL opens a database/sql KV backing for dsn.
func NewSQL(dsn string) (*SQL, error) {
	driver, conn, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		if err := util.EnforceDirExists(filepath.Dir(conn)); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, err
	}
	return &SQL{db: db}, nil
}

func splitDSN(dsn string) (driver, conn string, err error) {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), nil
	default:
		return "", "", errors.New("store: sql DSN must start with mysql:// or sqlite://")
	}
}

func (s *SQL) Put(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`REPLACE INTO meshnode_kv (k, v, expires_at) VALUES (?, ?, ?)`, key, val, expires)
	return err
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	var expires int64
	row := s.db.QueryRowContext(ctx, `SELECT v, expires_at FROM meshnode_kv WHERE k = ?`, key)
	if err := row.Scan(&val, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if expires != 0 && time.Now().UnixNano() > expires {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return val, true, nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM meshnode_kv WHERE k = ?`, key)
	return err
}

func (s *SQL) Close() error {
	return s.db.Close()
}
