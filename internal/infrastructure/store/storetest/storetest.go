// Package storetest builds in-memory stores and listing fixtures for tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/database"
	"handyhub-backend/internal/infrastructure/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Now is the fixed instant fixtures are built around.
var Now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock returns a func reporting *t, so tests can move time.
func Clock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

// NewStore opens an in-memory sqlite database with every table migrated.
func NewStore(t *testing.T) *store.ListingStore {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, true))
	return store.New(db, store.DefaultMaxAttempts, time.Millisecond)
}

var paris = domain.Location{Lat: 48.8566, Lng: 2.3522, City: "Paris", Country: "FR"}

func base(kind domain.Kind) *domain.Listing {
	start := Now.Add(-time.Hour)
	return &domain.Listing{
		Kind:           kind,
		IssuerID:       uuid.New(),
		Category:       "plumbing",
		Title:          "fixture " + string(kind),
		Location:       paris,
		TargetRadiusKm: 10,
		Status:         domain.InitialStatus(kind),
		AlertStart:     &start,
	}
}

func insert(t *testing.T, s *store.ListingStore, l *domain.Listing) *domain.Listing {
	t.Helper()
	require.NoError(t, s.Insert(context.Background(), l, nil))
	return l
}

// Auction inserts an active auction ending at endsAt.
func Auction(t *testing.T, s *store.ListingStore, minimum int64, endsAt time.Time) *domain.Listing {
	l := base(domain.KindAuction)
	l.EndsAt = &endsAt
	l.AlertEnd = &endsAt
	l.Auction = &domain.AuctionTerms{MinimumBid: decimal.NewFromInt(minimum), CurrentBid: decimal.NewFromInt(minimum)}
	return insert(t, s, l)
}

// Opportunity inserts an active opportunity with qty units.
func Opportunity(t *testing.T, s *store.ListingStore, qty int, endsAt time.Time) *domain.Listing {
	l := base(domain.KindOpportunity)
	l.EndsAt = &endsAt
	l.AlertEnd = &endsAt
	l.Inventory = &domain.InventoryTerms{
		UnitPrice:         decimal.NewFromInt(5),
		OriginalPrice:     decimal.NewFromInt(10),
		TotalQuantity:     qty,
		RemainingQuantity: qty,
	}
	return insert(t, s, l)
}

// Offer inserts an active offer allowing max redemptions.
func Offer(t *testing.T, s *store.ListingStore, max int, endsAt time.Time) *domain.Listing {
	l := base(domain.KindOffer)
	l.EndsAt = &endsAt
	l.AlertEnd = &endsAt
	l.Offer = &domain.OfferTerms{DiscountPercent: decimal.NewFromInt(20), MaxRedemptions: max}
	return insert(t, s, l)
}

// FlashJob inserts an open flash job. mod may adjust the listing before insert.
func FlashJob(t *testing.T, s *store.ListingStore, deadline time.Time, mod func(l *domain.Listing)) *domain.Listing {
	l := base(domain.KindFlashJob)
	l.Deadline = &deadline
	l.FlashJob = &domain.FlashJobTerms{
		RequiredSkills: []string{"plumber"},
		UrgencyTier:    domain.UrgencyNormal,
		Budget:         decimal.NewFromInt(80),
	}
	if mod != nil {
		mod(l)
	}
	return insert(t, s, l)
}

// Events returns the event types recorded for listing id, oldest first.
func Events(t *testing.T, s *store.ListingStore, id uuid.UUID) []string {
	t.Helper()
	var rows []domain.ListingEvent
	require.NoError(t, s.DB.Where("listing_id = ?", id).Order("created_at ASC, rowid ASC").Find(&rows).Error)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.EventType)
	}
	return out
}

// StaleOnce makes the next listing update for id lose its version check, as
// if another writer committed between the read and the write. It returns a
// counter of the injected bumps.
func StaleOnce(t *testing.T, s *store.ListingStore, id uuid.UUID) *int {
	t.Helper()
	bumps := 0
	require.NoError(t, s.DB.Callback().Update().Before("gorm:update").Register("storetest:stale_once", func(tx *gorm.DB) {
		if bumps > 0 || tx.Statement.Table != "listings" {
			return
		}
		bumps++
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE listings SET version = version + 1 WHERE id = ?", id).Error
		if err != nil {
			tx.AddError(err)
		}
	}))
	return &bumps
}
