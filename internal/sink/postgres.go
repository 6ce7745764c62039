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
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"

	"github.com/cardinalhq/purchaseloader/internal/purchase"
)

// Dialect is the flavour of a Postgres-wire server, which decides how the
// purchase_date text is converted.
type Dialect string

const (
	DialectQuestDB  Dialect = "questdb"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) insertSQL() (string, error) {
	switch d {
	case DialectQuestDB, "":
		return "INSERT INTO purchases (buyer, item_id, quantity, price, purchase_date) " +
			"VALUES ($1, $2, $3, $4, to_timestamp($5, 'yyyy-MM-ddTHH:mm:ss'))", nil
	case DialectPostgres:
		return "INSERT INTO purchases (buyer, item_id, quantity, price, purchase_date) " +
			"VALUES ($1, $2, $3, $4, to_timestamp($5, 'YYYY-MM-DD\"T\"HH24:MI:SS'))", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, string(d))
	}
}

type postgresSink struct {
	pool      *pgxpool.Pool
	insertSQL string
}

func openPostgres(ctx context.Context, dbURL string, dialect Dialect) (Sink, error) {
	insertSQL, err := dialect.insertSQL()
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "purchases",
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return &postgresSink{pool: pool, insertSQL: insertSQL}, nil
}

func (s *postgresSink) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &postgresSession{conn: conn, insertSQL: s.insertSQL}, nil
}

func (s *postgresSink) Close() error {
	s.pool.Close()
	return nil
}

type postgresSession struct {
	conn      *pgxpool.Conn
	insertSQL string
}

func (s *postgresSession) Insert(ctx context.Context, rec purchase.Record) error {
	_, err := s.conn.Exec(ctx, s.insertSQL, rec.Buyer, rec.ItemID, rec.Quantity, rec.Price, rec.PurchaseDate)
	return err
}

func (s *postgresSession) Release() {
	s.conn.Release()
}
