package postgres

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/freelanceflow/freelanceflow/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_b.up.sql": {Data: []byte("SELECT 2;")},
		"sql/000001_a.up.sql": {Data: []byte("SELECT 1;")},
		"sql/README.md":       {Data: []byte("ignored")},
	}

	got, err := LoadMigrations(fsys, "sql")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "000001_a", got[0].Version)
	assert.Equal(t, "SELECT 1;", got[0].SQL)
	assert.Equal(t, "000002_b", got[1].Version)
}

func TestEmbeddedSchema(t *testing.T) {
	got, err := LoadMigrations(migrations.Postgres, "postgres")
	require.NoError(t, err)
	require.Len(t, got, 4)

	schema := ""
	for _, m := range got {
		schema += m.SQL
	}
	assert.Contains(t, schema, "CONSTRAINT invoices_invoice_number_key UNIQUE (invoice_number)")
	assert.Contains(t, schema, "REFERENCES invoices (id) ON DELETE CASCADE")
	assert.Contains(t, schema, "UNIQUE (invoice_id, sort_order)")
	assert.Contains(t, schema, "CONSTRAINT freelancer_settings_freelancer_id_key UNIQUE (freelancer_id)")
	assert.True(t, strings.Contains(schema, "idx_services_ready_for_billing"))
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{}, "missing")
	assert.Error(t, err)
}
