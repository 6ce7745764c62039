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

package generator

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/purchaseloader/internal/purchase"
)

var emailPattern = regexp.MustCompile(`^[a-z]{6,12}@example\.com$`)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestGenerate_Shape(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 27, 0, 0, time.UTC)
	purchases := Generate(Options{Count: 250, Now: now, Rand: seeded()})
	require.Len(t, purchases, 250)

	prices := map[int64]int64{}
	for i, p := range purchases {
		assert.Regexp(t, emailPattern, p.Email)
		assert.GreaterOrEqual(t, p.ItemID, int64(100))
		assert.LessOrEqual(t, p.ItemID, int64(500))
		assert.GreaterOrEqual(t, p.Quantity, int64(1))
		assert.LessOrEqual(t, p.Quantity, int64(10))
		assert.GreaterOrEqual(t, p.Price, int64(1))
		assert.LessOrEqual(t, p.Price, int64(200))
		assert.Equal(t, now.Truncate(time.Hour), p.PurchaseDate.Truncate(time.Hour))
		if i > 0 {
			assert.False(t, p.PurchaseDate.Before(purchases[i-1].PurchaseDate), "rows are sorted by date")
		}
		prices[p.ItemID] = p.Price
	}
	assert.NotEmpty(t, prices)
}

func TestGenerate_DefaultCount(t *testing.T) {
	for range 20 {
		n := len(Generate(Options{Rand: seeded()}))
		assert.GreaterOrEqual(t, n, MinCount)
		assert.LessOrEqual(t, n, MaxCount)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	a := Generate(Options{Count: 10, Now: now, Rand: seeded()})
	b := Generate(Options{Count: 10, Now: now, Rand: seeded()})
	assert.Equal(t, a, b)
}

func TestWrite_RowsParseAsPurchases(t *testing.T) {
	purchases := Generate(Options{Count: 50, Rand: seeded()})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, purchases))
	assert.True(t, strings.HasSuffix(buf.String(), "\r\n"))

	rows := purchase.SplitRows(buf.String())
	require.Len(t, rows, 50)
	for i, row := range rows {
		require.NoError(t, row.Err)
		rec, err := purchase.FromRow(row.Fields)
		require.NoError(t, err)
		assert.Equal(t, purchase.HashBuyer(purchases[i].Email), rec.Buyer)
		assert.Equal(t, purchases[i].ItemID, rec.ItemID)
		_, err = time.Parse(purchase.TimestampLayout, rec.PurchaseDate)
		assert.NoError(t, err)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path, n, err := WriteFile(dir, Options{Count: 7, Rand: seeded()})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Regexp(t, `^[a-z]{12}\.csv$`, filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, purchase.SplitLines(string(data)), 7)
}

func TestRandomName(t *testing.T) {
	r := seeded()
	a := RandomName(r)
	b := RandomName(r)
	assert.Regexp(t, `^[a-z]{12}\.csv$`, a)
	assert.NotEqual(t, a, b)
}
