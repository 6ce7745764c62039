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

// Package sink writes anonymized purchase records to a relational table.
package sink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/cardinalhq/purchaseloader/internal/purchase"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported database URL scheme")
	ErrUnknownDialect    = errors.New("unknown pgwire dialect")
	// ErrRecordRejected is returned when the database accepted the statement
	// but stored nothing, as the sqlite guard does for a malformed date.
	ErrRecordRejected = errors.New("record rejected by database")
)

// Sink is a long-lived handle on the purchases table.
type Sink interface {
	// Acquire returns a session exclusively owned by the caller until Release.
	Acquire(ctx context.Context) (Session, error)
	Close() error
}

// Session writes records one at a time. Each Insert stands alone; a failed
// insert leaves the session usable for the next one.
type Session interface {
	Insert(ctx context.Context, rec purchase.Record) error
	Release()
}

type options struct {
	dialect Dialect
}

// Option configures Open.
type Option func(*options)

// WithDialect selects the timestamp conversion used by the pgwire sink.
func WithDialect(d Dialect) Option {
	return func(o *options) {
		o.dialect = d
	}
}

// Open connects to the database named by dbURL. The scheme picks the driver:
// postgres and postgresql use pgx, mysql uses go-sql-driver, sqlite uses
// go-sqlite3.
func Open(ctx context.Context, dbURL string, opts ...Option) (Sink, error) {
	o := options{dialect: DialectQuestDB}
	for _, opt := range opts {
		opt(&o)
	}

	scheme, _, ok := strings.Cut(dbURL, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, redact(dbURL))
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return openPostgres(ctx, dbURL, o.dialect)
	case "mysql":
		return openMySQL(ctx, dbURL)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, dbURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// redact drops credentials from a URL so it can be logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
