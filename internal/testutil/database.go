package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"

	infra "storefront/internal/infrastructure/mysql"
)

const defaultTestDSN = "root:@tcp(localhost:3306)/storefront_test"

// SetupTestDB opens the MySQL test database named by STOREFRONT_TEST_DSN and
// applies the schema. The test is skipped when no database answers.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("STOREFRONT_TEST_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("invalid test DSN: %v", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	if err := infra.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	CleanTables(t, db)
	t.Cleanup(func() {
		CleanTables(t, db)
		db.Close()
	})
	return db
}

// CleanTables empties every table, children first.
func CleanTables(t *testing.T, db *sql.DB) {
	t.Helper()

	for _, table := range []string{"OrderItems", "Orders", "Products"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// InsertProduct seeds one catalog row.
func InsertProduct(t *testing.T, db *sql.DB, id, sellerID, name, price string, stock int) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO Products (id, sellerId, name, price, stock, updatedAt) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sellerID, name, price, stock, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("failed to insert product %s: %v", id, err)
	}
}
