// Package store is the persistence boundary for listings. Every write goes
// through AtomicUpdate, which evaluates the precondition and writes the
// mutation against the same snapshot, guarded by a version check.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"handyhub-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryBase   = 20 * time.Millisecond
)

// ErrSkip is returned by a Mutation that has nothing to write. AtomicUpdate
// then commits no listing change and reports Changed=false.
var ErrSkip = errors.New("store: nothing to write")

var errVersionMismatch = errors.New("store: version mismatch")

// Precondition inspects the snapshot and returns a domain error to abort.
type Precondition func(l *domain.Listing) error

// Mutation edits a private copy of the snapshot. Child rows (bids, claims,
// assignments, events) must be written through tx so they commit or roll
// back with the listing.
type Mutation func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error

type UpdateResult struct {
	Listing *domain.Listing
	Changed bool
}

type ListingStore struct {
	DB          *gorm.DB
	MaxAttempts int
	RetryBase   time.Duration
}

func New(db *gorm.DB, maxAttempts int, retryBase time.Duration) *ListingStore {
	return &ListingStore{DB: db, MaxAttempts: maxAttempts, RetryBase: retryBase}
}

func (s *ListingStore) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Insert creates the listing and its CREATED event in one transaction.
func (s *ListingStore) Insert(ctx context.Context, l *domain.Listing, eventData map[string]interface{}) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(l).Error; err != nil {
			return fmt.Errorf("Failed to create listing: %w", err)
		}
		issuer := l.IssuerID
		if err := RecordEvent(tx, l.ID, domain.EventCreated, &issuer, eventData); err != nil {
			return fmt.Errorf("Failed to create listing event: %w", err)
		}
		return nil
	})
}

// AtomicUpdate applies mutation to listing id if precondition holds. A
// concurrent writer between read and write makes the version check fail;
// the attempt is rolled back and retried with exponential backoff. After
// MaxAttempts the caller gets domain.ErrConflict.
func (s *ListingStore) AtomicUpdate(ctx context.Context, id uuid.UUID, pre Precondition, mut Mutation) (UpdateResult, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := s.tryUpdate(ctx, id, pre, mut)
		if !errors.Is(err, errVersionMismatch) {
			return res, err
		}
		log.Debug().Str("listing_id", id.String()).Int("attempt", attempt).Msg("listing version conflict")
		if attempt < attempts {
			if err := sleepCtx(ctx, s.backoff(attempt)); err != nil {
				return UpdateResult{}, err
			}
		}
	}
	return UpdateResult{}, domain.ErrConflict
}

func (s *ListingStore) tryUpdate(ctx context.Context, id uuid.UUID, pre Precondition, mut Mutation) (UpdateResult, error) {
	var res UpdateResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snap domain.Listing
		if err := tx.Where("id = ?", id).First(&snap).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if pre != nil {
			if err := pre(&snap); err != nil {
				return err
			}
		}

		next := snap.Clone()
		if err := mut(ctx, tx, &next); err != nil {
			if errors.Is(err, ErrSkip) {
				res = UpdateResult{Listing: &snap}
				return nil
			}
			return err
		}

		next.ID = snap.ID
		next.Version = snap.Version + 1
		result := tx.Model(&next).Where("version = ?", snap.Version).Select("*").Updates(&next)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errVersionMismatch
		}
		res = UpdateResult{Listing: &next, Changed: true}
		return nil
	})
	return res, err
}

func (s *ListingStore) backoff(attempt int) time.Duration {
	base := s.RetryBase
	if base <= 0 {
		base = DefaultRetryBase
	}
	return base * time.Duration(1<<(attempt-1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordEvent appends a listing event through tx.
func RecordEvent(tx *gorm.DB, listingID uuid.UUID, eventType string, actorID *uuid.UUID, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	eventDataBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return tx.Create(&domain.ListingEvent{
		ListingID: listingID,
		EventType: eventType,
		EventData: datatypes.JSON(eventDataBytes),
		ActorID:   actorID,
	}).Error
}
