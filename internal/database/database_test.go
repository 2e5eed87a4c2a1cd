package database_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/database"
	"linkpage/internal/testsupport"
)

func TestMigrateDatabase(t *testing.T) {
	cfg := testsupport.TestConfig()
	cfg.DatabaseName = filepath.Join(t.TempDir(), "linkpage-test.db")

	dm := database.NewDBManager(cfg, testsupport.GetLogger())
	require.NoError(t, dm.Init())
	t.Cleanup(func() {
		if sqlDB, err := dm.GetConnection().DB(); err == nil {
			sqlDB.Close()
		}
	})

	require.NoError(t, dm.MigrateDatabase())
	// Migrations are idempotent.
	require.NoError(t, dm.MigrateDatabase())

	counts, err := dm.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"users":       0,
		"pages":       0,
		"components":  0,
		"page_visits": 0,
		"events":      0,
	}, counts)

	testsupport.CreateTestUser(dm.GetConnection(), "owner@example.com", "password")
	counts, err = dm.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["users"])
}
