package database

import (
	"testing"

	"handyhub-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteDSN(t *testing.T) {
	db, err := Open("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db, true))

	for _, table := range []string{"listings", "bids", "claims", "assignments", "listing_events", "profiles"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&domain.Claim{}, "idx_claims_listing_code"))
}

func TestAutoMigrate_WithoutProfiles(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db, false))
	assert.True(t, db.Migrator().HasTable("listings"))
	assert.False(t, db.Migrator().HasTable("profiles"))
}
