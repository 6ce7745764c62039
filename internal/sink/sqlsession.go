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

	"github.com/cardinalhq/purchaseloader/internal/purchase"
)

// sqlSink backs the database/sql drivers.
type sqlSink struct {
	db        *sql.DB
	insertSQL string
	// checkAffected turns a zero-row insert into ErrRecordRejected.
	checkAffected bool
	// args binds a record to insertSQL; nil binds the five columns in order.
	args func(purchase.Record) []any
}

func (s *sqlSink) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	args := s.args
	if args == nil {
		args = columnArgs
	}
	return &sqlSession{conn: conn, insertSQL: s.insertSQL, checkAffected: s.checkAffected, args: args}, nil
}

func (s *sqlSink) Close() error {
	return s.db.Close()
}

type sqlSession struct {
	conn          *sql.Conn
	insertSQL     string
	checkAffected bool
	args          func(purchase.Record) []any
}

func columnArgs(rec purchase.Record) []any {
	return []any{rec.Buyer, rec.ItemID, rec.Quantity, rec.Price, rec.PurchaseDate}
}

func (s *sqlSession) Insert(ctx context.Context, rec purchase.Record) error {
	res, err := s.conn.ExecContext(ctx, s.insertSQL, s.args(rec)...)
	if err != nil {
		return err
	}
	if !s.checkAffected {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: purchase_date %q", ErrRecordRejected, rec.PurchaseDate)
	}
	return nil
}

func (s *sqlSession) Release() {
	_ = s.conn.Close()
}
