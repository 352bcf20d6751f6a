package listingevents

import (
	"context"

	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/store"

	"github.com/google/uuid"
)

type Service struct {
	Store *store.ListingStore
}

// GetListingEvents returns the audit trail of one listing, oldest first.
func (s *Service) GetListingEvents(ctx context.Context, listingID uuid.UUID) ([]domain.ListingEvent, error) {
	if listingID == uuid.Nil {
		return nil, domain.NewValidationError("listing_id", "is required")
	}
	if _, err := s.Store.Get(ctx, listingID); err != nil {
		return nil, err
	}
	var events []domain.ListingEvent
	if err := s.Store.DB.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
