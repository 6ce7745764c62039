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

// Package generator produces synthetic purchase CSV files.
package generator

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cardinalhq/purchaseloader/internal/purchase"
)

const (
	MinCount = 100
	MaxCount = 500

	letters = "abcdefghijklmnopqrstuvwxyz"
)

// Options controls Generate. Zero values pick a random count in
// [MinCount, MaxCount], the current time and a randomly seeded source.
type Options struct {
	Count int
	Now   time.Time
	Rand  *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Count <= 0 {
		o.Count = MinCount + o.Rand.IntN(MaxCount-MinCount+1)
	}
	return o
}

// Purchase is one generated row, before anonymization.
type Purchase struct {
	Email        string
	ItemID       int64
	Quantity     int64
	Price        int64
	PurchaseDate time.Time
}

// Fields returns the row in file column order.
func (p Purchase) Fields() []string {
	return []string{
		p.Email,
		strconv.FormatInt(p.ItemID, 10),
		strconv.FormatInt(p.Quantity, 10),
		strconv.FormatInt(p.Price, 10),
		p.PurchaseDate.Format(purchase.TimestampLayout),
	}
}

type item struct {
	id    int64
	price int64
}

// Generate returns Count purchases sorted by purchase date. Every purchase
// falls within the hour containing Now. Items come from a pool of Count
// (id, price) pairs so the same item always carries the same price.
func Generate(opts Options) []Purchase {
	opts = opts.withDefaults()
	r := opts.Rand

	items := make([]item, opts.Count)
	for i := range items {
		items[i] = item{
			id:    100 + r.Int64N(401),
			price: 1 + r.Int64N(200),
		}
	}

	hour := opts.Now.Truncate(time.Hour)
	out := make([]Purchase, opts.Count)
	for i := range out {
		it := items[r.IntN(len(items))]
		out[i] = Purchase{
			Email:        randomChars(r, 6+r.IntN(7)) + "@example.com",
			ItemID:       it.id,
			Quantity:     1 + r.Int64N(10),
			Price:        it.price,
			PurchaseDate: hour.Add(time.Duration(r.IntN(60))*time.Minute + time.Duration(r.IntN(60))*time.Second),
		}
	}

	slices.SortStableFunc(out, func(a, b Purchase) int {
		return a.PurchaseDate.Compare(b.PurchaseDate)
	})
	return out
}

// Write emits purchases as header-less CSV with CRLF line endings.
func Write(w io.Writer, purchases []Purchase) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	for _, p := range purchases {
		if err := cw.Write(p.Fields()); err != nil {
			return fmt.Errorf("write purchase row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RandomName returns a file name of twelve random lowercase letters.
func RandomName(r *rand.Rand) string {
	return randomChars(r, 12) + ".csv"
}

// WriteFile generates purchases into a new randomly named file in dir and
// returns its path and row count.
func WriteFile(dir string, opts Options) (string, int, error) {
	opts = opts.withDefaults()
	purchases := Generate(opts)

	path := filepath.Join(dir, RandomName(opts.Rand))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, purchases); err != nil {
		_ = f.Close()
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("close %s: %w", path, err)
	}
	return path, len(purchases), nil
}

func randomChars(r *rand.Rand, n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(letters[r.IntN(len(letters))])
	}
	return b.String()
}
