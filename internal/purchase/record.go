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

// Package purchase turns purchase CSV content into anonymized records.
package purchase

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Column positions in a purchase row. Files carry no header.
const (
	ColEmail = iota
	ColItemID
	ColQuantity
	ColPrice
	ColPurchaseDate

	NumColumns
)

// TimestampLayout is the text form of purchase_date in source files.
const TimestampLayout = "2006-01-02T15:04:05"

var (
	ErrFieldCount     = errors.New("unexpected number of fields")
	ErrInvalidInteger = errors.New("field is not an integer")
)

// Record is one anonymized purchase. Buyer holds the SHA-1 hex digest of the
// e-mail address; the address itself is never stored.
type Record struct {
	Buyer        string
	ItemID       int64
	Quantity     int64
	Price        int64
	PurchaseDate string
}

// HashBuyer returns the lowercase hex SHA-1 digest of the identifying value.
func HashBuyer(identifier string) string {
	sum := sha1.Sum([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

// FromRow builds a Record from exactly NumColumns positional fields. The
// e-mail field is cleared in fields once hashed.
func FromRow(fields []string) (Record, error) {
	if len(fields) != NumColumns {
		return Record{}, fmt.Errorf("%w: want %d, got %d", ErrFieldCount, NumColumns, len(fields))
	}

	buyer := HashBuyer(fields[ColEmail])
	fields[ColEmail] = ""

	itemID, err := parseInt("item_id", fields[ColItemID])
	if err != nil {
		return Record{}, err
	}
	quantity, err := parseInt("quantity", fields[ColQuantity])
	if err != nil {
		return Record{}, err
	}
	price, err := parseInt("price", fields[ColPrice])
	if err != nil {
		return Record{}, err
	}

	return Record{
		Buyer:        buyer,
		ItemID:       itemID,
		Quantity:     quantity,
		Price:        price,
		PurchaseDate: fields[ColPurchaseDate],
	}, nil
}

func parseInt(column, value string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidInteger, column, value)
	}
	return n, nil
}
