// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite has no strict timestamp parser, so the date must survive a
// round-trip through strftime or nothing is inserted.
const sqliteInsertSQL = "INSERT INTO purchases (buyer, item_id, quantity, price, purchase_date) " +
	"SELECT ?1, ?2, ?3, ?4, datetime(?5) " +
	"WHERE strftime('%Y-%m-%dT%H:%M:%S', ?5) = ?5"

func openSQLite(ctx context.Context, dbURL string) (Sink, error) {
	path := sqlitePath(dbURL)
	if path == "" {
		return nil, fmt.Errorf("sqlite URL has no path: %q", dbURL)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &sqlSink{db: db, insertSQL: sqliteInsertSQL, checkAffected: true}, nil
}

// sqlitePath accepts sqlite:///abs/path.db, sqlite://rel/path.db and
// sqlite:path.db. Query parameters are passed to the driver unchanged.
func sqlitePath(dbURL string) string {
	_, rest, _ := strings.Cut(dbURL, ":")
	return strings.TrimPrefix(rest, "//")
}
