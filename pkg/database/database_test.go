package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/free99/config"
)

func TestInitDB_SQLiteMigratesAllTables(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}}
	db, err := InitDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	for _, table := range []string{
		"users", "verification_tokens", "listings", "listing_tags", "claims",
		"listing_events", "threads", "thread_participants", "messages",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("claims", "uq_claim_listing_claimant"))
	assert.True(t, db.Migrator().HasIndex("thread_participants", "uq_thread_user"))
}

func TestDialector_UnknownDriver(t *testing.T) {
	_, err := Dialector("oracle", "x")
	assert.Error(t, err)
}
