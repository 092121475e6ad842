package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomartvn/gomart-backend/pkg/migrate"
)

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_inventory.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS variant_stocks",
		"PRIMARY KEY (variant_id, warehouse_id)",
		"CHECK (quantity >= 0)",
		"CHECK (reserved >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_alerts_open ON stock_alerts(variant_id, warehouse_id) WHERE status = 'open'",
		"DROP TABLE IF EXISTS variant_stocks",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLoyaltyMigrationEnforcesIdempotencyIndex(t *testing.T) {
	content := readMigration(t, "*_create_loyalty.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_point_txn_order_kind ON point_transactions(order_id, kind) WHERE order_id IS NOT NULL",
		"CHECK (balance >= 0)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationIndexesSweepLookup(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	if !strings.Contains(content, "idx_orders_status_delivered_at ON orders(status, delivered_at)") {
		t.Error("missing sweep lookup index on (status, delivered_at)")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matches %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
