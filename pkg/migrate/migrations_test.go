package migrate_test

import (
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliria/erp-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(migrate.Bundled(), "*_"+suffix+".sql")
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no %s migration bundled", suffix)
	data, err := fs.ReadFile(migrate.Bundled(), matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestBundledMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Bundled()))
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_orgs_table": {
			"CREATE TABLE IF NOT EXISTS orgs",
			"CONSTRAINT ux_org_members_org_user UNIQUE (org_id, user_id)",
			"CHECK (category_code_width BETWEEN 2 AND 6)",
			"DROP TABLE IF EXISTS settings",
		},
		"create_catalog_tables": {
			"CONSTRAINT ux_categories_org_code UNIQUE (org_id, code)",
			"CONSTRAINT ux_products_org_code UNIQUE (org_id, code)",
			"CHECK (stock >= 0)",
			"version int NOT NULL DEFAULT 1",
		},
		"create_txns_table": {
			"CHECK (type IN ('purchase', 'sale', 'adjust'))",
			"REFERENCES products(id) ON DELETE CASCADE",
		},
		"create_offers_tables": {
			"PRIMARY KEY (org_id, scope)",
			"CONSTRAINT ux_offers_org_number UNIQUE (org_id, number)",
			"CONSTRAINT ux_offer_items_offer_position UNIQUE (offer_id, position)",
		},
		"create_outbox_tables": {
			"WHERE published_at IS NULL",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
		},
		"create_notifications_table": {
			"CONSTRAINT ux_notifications_org_event UNIQUE (org_id, event_id)",
			"WHERE read_at IS NULL",
		},
	}

	for suffix, checks := range cases {
		t.Run(suffix, func(t *testing.T) {
			content := readMigration(t, suffix)
			for _, sub := range checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestCreateWritesValidSkeleton(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Offer Status!", now)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "20260201083000_add_offer_status.sql"), path)
	assert.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.Create(dir, "add offer status", now)
	assert.Error(t, err, "same version twice must not overwrite")

	_, err = migrate.Create(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(dir+"/20260101000000_a.sql", body, 0o644))
	require.NoError(t, os.WriteFile(dir+"/20260101000000_b.sql", body, 0o644))

	assert.ErrorContains(t, migrate.Validate(os.DirFS(dir)), "20260101000000")
}
