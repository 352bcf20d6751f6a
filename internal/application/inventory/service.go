package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/events"
	"handyhub-backend/internal/infrastructure/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxCodeAttempts = 5

var errCodeSpaceExhausted = errors.New("Failed to generate a unique redemption code")

type Service struct {
	Store  *store.ListingStore
	Events events.Publisher
	Now    func() time.Time
	// NewCode generates redemption codes; defaults to NewRedemptionCode.
	NewCode func() (string, error)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newCode() (string, error) {
	if s.NewCode != nil {
		return s.NewCode()
	}
	return NewRedemptionCode()
}

type ClaimResult struct {
	Claim   *domain.Claim   `json:"claim"`
	Listing *domain.Listing `json:"listing"`
}

// Claim reserves quantity units of an opportunity, or one redemption of an
// offer, and issues a redemption code. The listing becomes sold_out when its
// stock or quota reaches the limit.
func (s *Service) Claim(ctx context.Context, listingID, userID uuid.UUID, quantity int) (*ClaimResult, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	now := s.now()

	pre := func(l *domain.Listing) error {
		switch {
		case l.Kind == domain.KindOpportunity && l.Inventory != nil:
		case l.Kind == domain.KindOffer && l.Offer != nil:
			if quantity != 1 {
				return domain.NewValidationError("quantity", "offers are claimed one redemption at a time")
			}
		default:
			return domain.ErrNotFound
		}
		if l.Status == domain.StatusSoldOut {
			return exhaustedErr(l.Kind)
		}
		if l.Status != domain.StatusActive || l.WindowElapsed(now) {
			return domain.ErrExpired
		}
		if l.Kind == domain.KindOpportunity && quantity > l.Inventory.RemainingQuantity {
			return domain.ErrInsufficientQuantity
		}
		if l.Kind == domain.KindOffer && l.Offer.CurrentRedemptions >= l.Offer.MaxRedemptions {
			return domain.ErrRedemptionLimitReached
		}
		return nil
	}

	var claim *domain.Claim
	res, err := s.Store.AtomicUpdate(ctx, listingID, pre, func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error {
		code, err := s.uniqueCode(tx, l.ID)
		if err != nil {
			return err
		}
		claim = &domain.Claim{
			ListingID:      l.ID,
			UserID:         userID,
			Quantity:       quantity,
			RedemptionCode: code,
			Status:         domain.ClaimActive,
			ExpiresAt:      l.ValidUntil(),
			CreatedAt:      now,
		}
		if err := tx.Create(claim).Error; err != nil {
			return fmt.Errorf("Failed to create claim: %w", err)
		}

		exhausted := false
		data := map[string]interface{}{"claim_id": claim.ID, "quantity": quantity}
		if l.Kind == domain.KindOpportunity {
			l.Inventory.RemainingQuantity -= quantity
			exhausted = l.Inventory.RemainingQuantity == 0
			data["remaining_quantity"] = l.Inventory.RemainingQuantity
		} else {
			l.Offer.CurrentRedemptions++
			exhausted = l.Offer.CurrentRedemptions >= l.Offer.MaxRedemptions
			data["current_redemptions"] = l.Offer.CurrentRedemptions
		}

		user := userID
		if err := store.RecordEvent(tx, l.ID, domain.EventClaimed, &user, data); err != nil {
			return err
		}
		if exhausted {
			l.Status = domain.StatusSoldOut
			return store.RecordEvent(tx, l.ID, domain.EventSoldOut, nil, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("listing_id", listingID.String()).
		Str("user_id", userID.String()).
		Int("quantity", quantity).
		Str("status", string(res.Listing.Status)).
		Msg("listing claimed")
	events.Emit(ctx, s.Events, events.NewEnvelope(events.SubjectListingClaimed, listingID, map[string]interface{}{
		"claim_id": claim.ID,
		"user_id":  userID,
		"quantity": quantity,
		"status":   res.Listing.Status,
	}))
	return &ClaimResult{Claim: claim, Listing: res.Listing}, nil
}

func exhaustedErr(k domain.Kind) error {
	if k == domain.KindOffer {
		return domain.ErrRedemptionLimitReached
	}
	return domain.ErrInsufficientQuantity
}

// uniqueCode draws codes until one is unused on the listing.
func (s *Service) uniqueCode(tx *gorm.DB, listingID uuid.UUID) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		var n int64
		if err := tx.Model(&domain.Claim{}).
			Where("listing_id = ? AND redemption_code = ?", listingID, code).
			Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
		log.Warn().Str("listing_id", listingID.String()).Msg("redemption code collision")
	}
	return "", errCodeSpaceExhausted
}

// RedeemClaim marks an active claim redeemed. Redeeming twice returns the
// already-redeemed claim.
func (s *Service) RedeemClaim(ctx context.Context, claimID uuid.UUID) (*domain.Claim, error) {
	var c domain.Claim
	if err := s.Store.DB.WithContext(ctx).Where("id = ?", claimID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClaimNotFound
		}
		return nil, err
	}
	return s.redeem(ctx, &c)
}

// RedeemByCode redeems the claim carrying code on listingID.
func (s *Service) RedeemByCode(ctx context.Context, listingID uuid.UUID, code string) (*domain.Claim, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.NewValidationError("redemption_code", "is required")
	}
	var c domain.Claim
	if err := s.Store.DB.WithContext(ctx).
		Where("listing_id = ? AND redemption_code = ?", listingID, code).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClaimNotFound
		}
		return nil, err
	}
	return s.redeem(ctx, &c)
}

func (s *Service) redeem(ctx context.Context, c *domain.Claim) (*domain.Claim, error) {
	now := s.now()
	switch {
	case c.Status == domain.ClaimRedeemed:
		return c, nil
	case c.Status == domain.ClaimExpired || !now.Before(c.ExpiresAt):
		return nil, domain.ErrExpired
	}

	result := s.Store.DB.WithContext(ctx).Model(&domain.Claim{}).
		Where("id = ? AND status = ? AND expires_at > ?", c.ID, domain.ClaimActive, now).
		Updates(map[string]interface{}{"status": domain.ClaimRedeemed, "redeemed_at": now})
	if result.Error != nil {
		return nil, fmt.Errorf("Failed to redeem claim: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost a race: either redeemed concurrently or expired by the sweeper.
		var cur domain.Claim
		if err := s.Store.DB.WithContext(ctx).Where("id = ?", c.ID).First(&cur).Error; err != nil {
			return nil, err
		}
		if cur.Status == domain.ClaimRedeemed {
			return &cur, nil
		}
		return nil, domain.ErrExpired
	}

	c.Status = domain.ClaimRedeemed
	c.RedeemedAt = &now
	log.Info().Str("claim_id", c.ID.String()).Str("listing_id", c.ListingID.String()).Msg("claim redeemed")
	return c, nil
}

func (s *Service) ListClaims(ctx context.Context, listingID uuid.UUID) ([]domain.Claim, error) {
	if _, err := s.Store.Get(ctx, listingID); err != nil {
		return nil, err
	}
	var claims []domain.Claim
	if err := s.Store.DB.WithContext(ctx).Where("listing_id = ?", listingID).Order("created_at ASC").Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch claims: %w", err)
	}
	return claims, nil
}

func (s *Service) ListUserClaims(ctx context.Context, userID uuid.UUID) ([]domain.Claim, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	var claims []domain.Claim
	if err := s.Store.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch claims: %w", err)
	}
	return claims, nil
}
