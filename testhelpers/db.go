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

package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"github.com/orlangure/gnomock"
	"github.com/orlangure/gnomock/preset/postgres"

	"github.com/cardinalhq/purchaseloader/internal/helpers"
)

// PurchasesSchema creates the purchases table on Postgres and SQLite.
const PurchasesSchema = `CREATE TABLE IF NOT EXISTS purchases (
	buyer TEXT NOT NULL,
	item_id INTEGER NOT NULL,
	quantity INTEGER NOT NULL,
	price INTEGER NOT NULL,
	purchase_date TIMESTAMP NOT NULL
)`

// PurchaseRow is one stored purchases row, read back for assertions.
type PurchaseRow struct {
	Buyer        string
	ItemID       int64
	Quantity     int64
	Price        int64
	PurchaseDate string
}

// SetupTestSQLite creates a fresh SQLite file with the purchases table.
// Returns the sink URL for it and an open handle for assertions.
func SetupTestSQLite(t *testing.T) (string, *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "purchases.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	if _, err := db.Exec(PurchasesSchema); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to create purchases table: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return "sqlite://" + path, db
}

// ReadPurchases returns every stored row in insertion order.
func ReadPurchases(t *testing.T, db *sql.DB) []PurchaseRow {
	t.Helper()

	rows, err := db.Query("SELECT buyer, item_id, quantity, price, strftime('%Y-%m-%dT%H:%M:%S', purchase_date) FROM purchases ORDER BY rowid")
	if err != nil {
		t.Fatalf("Failed to query purchases: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PurchaseRow
	for rows.Next() {
		var r PurchaseRow
		if err := rows.Scan(&r.Buyer, &r.ItemID, &r.Quantity, &r.Price, &r.PurchaseDate); err != nil {
			t.Fatalf("Failed to scan purchase row: %v", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Failed to iterate purchases: %v", err)
	}
	return out
}

// SetupTestPostgres returns a URL for a clean Postgres database holding the
// purchases table, plus a pool on it. Skipped unless
// PURCHASELOADER_INTEGRATION=true. With PURCHASES_TEST_HOST set an existing
// server is used; otherwise a container is started with gnomock.
func SetupTestPostgres(t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()

	if !helpers.GetBoolEnv("PURCHASELOADER_INTEGRATION", false) {
		t.Skip("set PURCHASELOADER_INTEGRATION=true to run database integration tests")
	}

	var dbURL string
	if os.Getenv("PURCHASES_TEST_HOST") != "" {
		dbURL = createTestDatabase(t)
	} else {
		dbURL = startPostgresContainer(t)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := pool.Exec(ctx, PurchasesSchema); err != nil {
		pool.Close()
		t.Fatalf("Failed to create purchases table: %v", err)
	}
	t.Cleanup(pool.Close)

	return dbURL, pool
}

func startPostgresContainer(t *testing.T) string {
	t.Helper()

	p := postgres.Preset(
		postgres.WithUser("loader", "loader"),
		postgres.WithDatabase("purchases"),
	)
	container, err := gnomock.Start(p, gnomock.WithTimeout(2*time.Minute))
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := gnomock.Stop(container); err != nil {
			slog.Error("Failed to stop postgres container", slog.Any("error", err))
		}
	})

	return fmt.Sprintf("postgres://loader:loader@%s/purchases?sslmode=disable", container.DefaultAddress())
}

func createTestDatabase(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	dbName := fmt.Sprintf("test_purchases_%d_%d", time.Now().Unix(), rand.Intn(10000))

	host := os.Getenv("PURCHASES_TEST_HOST")
	port := helpers.GetEnvOrDefault("PURCHASES_TEST_PORT", "5432")
	user := helpers.GetEnvOrDefault("PURCHASES_TEST_USER", os.Getenv("USER"))
	baseDB := helpers.GetEnvOrDefault("PURCHASES_TEST_DBNAME", "postgres")
	password := os.Getenv("PURCHASES_TEST_PASSWORD")

	baseConnStr := connString(user, password, host, port, baseDB)
	basePool, err := pgxpool.New(ctx, baseConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	_, err = basePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	t.Cleanup(func() {
		_, err := basePool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName))
		if err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}
		basePool.Close()
	})

	return connString(user, password, host, port, dbName)
}

func connString(user, password, host, port, dbName string) string {
	if password != "" {
		return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbName)
	}
	return fmt.Sprintf("postgresql://%s@%s:%s/%s", user, host, port, dbName)
}
