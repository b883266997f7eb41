// Package dbtest opens throwaway SQLite databases shaped like the Postgres
// schema so repositories can be exercised without a server.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db"
)

var seq atomic.Int64

// Open returns a fresh in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("file:iliria_%d?mode=memory&cache=shared", seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		SkipDefaultTransaction: true,
		// SQLite compares timestamps as text, so keep every row in one zone.
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	// one connection: transactions serialize instead of hitting table locks
	sqlDB.SetMaxOpenConns(1)
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to apply schema: %v\n%s", err, stmt)
		}
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return conn
}

// OpenClient wraps Open in a db.Client.
func OpenClient(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(Open(t))
}

// Schema mirrors pkg/migrate/migrations. Numeric columns are TEXT so decimal
// values round-trip exactly.
const Schema = `
CREATE TABLE orgs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE org_members (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at DATETIME,
	UNIQUE (org_id, user_id)
);
CREATE TABLE settings (
	org_id TEXT PRIMARY KEY,
	currency TEXT NOT NULL,
	locale TEXT NOT NULL,
	prefix_enabled BOOLEAN NOT NULL DEFAULT 0,
	prefix_text TEXT NOT NULL DEFAULT '',
	prefix_compact BOOLEAN NOT NULL DEFAULT 0,
	category_code_width INTEGER NOT NULL,
	product_code_width INTEGER NOT NULL,
	offer_code_width INTEGER NOT NULL,
	default_vat_percent TEXT NOT NULL,
	company_name TEXT,
	logo_url TEXT,
	updated_at DATETIME
);
CREATE TABLE categories (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	notes TEXT,
	created_at DATETIME,
	updated_at DATETIME,
	CONSTRAINT ux_categories_org_code UNIQUE (org_id, code)
);
CREATE TABLE products (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	code TEXT NOT NULL,
	category_code TEXT,
	name TEXT NOT NULL,
	description TEXT,
	price TEXT NOT NULL,
	stock TEXT NOT NULL,
	low_stock TEXT NOT NULL,
	avg_cost TEXT NOT NULL,
	image_url TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME,
	updated_at DATETIME,
	CONSTRAINT ux_products_org_code UNIQUE (org_id, code)
);
CREATE TABLE txns (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	type TEXT NOT NULL,
	product_code TEXT NOT NULL,
	qty TEXT NOT NULL,
	unit_cost TEXT,
	unit_price TEXT,
	stock_before TEXT NOT NULL,
	stock_after TEXT NOT NULL,
	avg_cost_before TEXT NOT NULL,
	avg_cost_after TEXT NOT NULL,
	note TEXT,
	offer_id TEXT,
	created_by TEXT NOT NULL,
	created_at DATETIME
);
CREATE TABLE offers (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	number INTEGER NOT NULL,
	code TEXT NOT NULL,
	customer_name TEXT,
	customer_email TEXT,
	vat_percent TEXT NOT NULL,
	discount_percent TEXT NOT NULL,
	notes TEXT,
	status TEXT NOT NULL,
	subtotal TEXT NOT NULL,
	discount_amount TEXT NOT NULL,
	after_discount TEXT NOT NULL,
	vat_amount TEXT NOT NULL,
	grand_total TEXT NOT NULL,
	created_by TEXT NOT NULL,
	created_at DATETIME,
	sent_at DATETIME,
	converted_at DATETIME,
	CONSTRAINT ux_offers_org_number UNIQUE (org_id, number),
	CONSTRAINT ux_offers_org_code UNIQUE (org_id, code)
);
CREATE TABLE offer_items (
	id TEXT PRIMARY KEY,
	offer_id TEXT NOT NULL REFERENCES offers(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	product_code TEXT,
	name TEXT NOT NULL,
	description TEXT,
	image_url TEXT,
	qty TEXT NOT NULL,
	unit_price TEXT NOT NULL,
	total TEXT NOT NULL,
	UNIQUE (offer_id, position)
);
CREATE TABLE org_sequences (
	org_id TEXT NOT NULL,
	scope TEXT NOT NULL,
	last_value INTEGER NOT NULL,
	PRIMARY KEY (org_id, scope)
);
CREATE TABLE outbox_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at DATETIME,
	published_at DATETIME,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT
);
CREATE TABLE outbox_dlq (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	payload_json BLOB NOT NULL,
	error_reason TEXT NOT NULL,
	error_message TEXT,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	failed_at DATETIME,
	created_at DATETIME
);
CREATE TABLE notifications (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	event_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	link TEXT,
	read_at DATETIME,
	created_at DATETIME,
	UNIQUE (org_id, event_id)
);
`
