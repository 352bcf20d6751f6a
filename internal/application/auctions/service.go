package auctions

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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	Store  *store.ListingStore
	Events events.Publisher
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type PlaceBidResult struct {
	Bid     *domain.Bid     `json:"bid"`
	Auction *domain.Listing `json:"auction"`
}

// PlaceBid accepts amount from bidder if it beats the current bid while the
// auction is still running. The current bid starts at the minimum.
// The new bid becomes the single winning bid.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal) (*PlaceBidResult, error) {
	if bidderID == uuid.Nil {
		return nil, domain.NewValidationError("bidder_id", "is required")
	}
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	now := s.now()

	pre := func(l *domain.Listing) error {
		if l.Kind != domain.KindAuction || l.Auction == nil {
			return domain.ErrNotFound
		}
		if l.Status != domain.StatusActive || l.WindowElapsed(now) {
			return domain.ErrAuctionClosed
		}
		if !amount.GreaterThan(l.Auction.CurrentBid) {
			return domain.ErrBidTooLow
		}
		return nil
	}

	var bid *domain.Bid
	res, err := s.Store.AtomicUpdate(ctx, auctionID, pre, func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error {
		previous := l.Auction.CurrentBid
		if err := tx.Model(&domain.Bid{}).
			Where("auction_id = ? AND is_winning = ?", l.ID, true).
			Update("is_winning", false).Error; err != nil {
			return fmt.Errorf("Failed to update previous winning bid: %w", err)
		}
		var earlier int64
		if err := tx.Model(&domain.Bid{}).
			Where("auction_id = ? AND bidder_id = ?", l.ID, bidderID).
			Count(&earlier).Error; err != nil {
			return err
		}
		bid = &domain.Bid{
			AuctionID: l.ID,
			BidderID:  bidderID,
			Amount:    amount,
			Timestamp: now,
			IsWinning: true,
		}
		if err := tx.Create(bid).Error; err != nil {
			return fmt.Errorf("Failed to create bid: %w", err)
		}

		bidder := bidderID
		l.Auction.CurrentBid = amount
		l.Auction.HighestBidderID = &bidder
		if earlier == 0 {
			l.Auction.BidderCount++
		}
		return store.RecordEvent(tx, l.ID, domain.EventBidPlaced, &bidder, map[string]interface{}{
			"bid_id":       bid.ID,
			"amount":       amount.String(),
			"previous_bid": previous.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", bidderID.String()).
		Str("amount", amount.String()).
		Msg("bid placed")
	events.Emit(ctx, s.Events, events.NewEnvelope(events.SubjectBidPlaced, auctionID, map[string]interface{}{
		"bid_id":       bid.ID,
		"bidder_id":    bidderID,
		"amount":       amount.String(),
		"bidder_count": res.Listing.Auction.BidderCount,
	}))
	return &PlaceBidResult{Bid: bid, Auction: res.Listing}, nil
}

// Finalize closes an auction whose window has elapsed: sold to the winning
// bidder, or ended when nobody bid. Finalizing a closed auction is a no-op
// and reports Changed=false.
func (s *Service) Finalize(ctx context.Context, auctionID uuid.UUID) (store.UpdateResult, error) {
	now := s.now()
	pre := func(l *domain.Listing) error {
		if l.Kind != domain.KindAuction || l.Auction == nil {
			return domain.ErrNotFound
		}
		if !l.Status.IsTerminal() && !l.WindowElapsed(now) {
			return domain.ErrStillRunning
		}
		return nil
	}
	res, err := s.Store.AtomicUpdate(ctx, auctionID, pre, FinalizeMutation(now))
	if err != nil {
		return res, err
	}
	if res.Changed {
		l := res.Listing
		log.Info().Str("auction_id", l.ID.String()).Str("status", string(l.Status)).Msg("auction finalized")
		events.Emit(ctx, s.Events, events.NewEnvelope(events.SubjectListingFinal, l.ID, map[string]interface{}{
			"kind":        l.Kind,
			"status":      l.Status,
			"winner_id":   l.Auction.WinnerID,
			"final_price": l.Auction.FinalPrice,
		}))
	}
	return res, nil
}

// FinalizeMutation moves a non-terminal auction to sold or ended based on its
// winning bid row. Terminal auctions are skipped.
func FinalizeMutation(now time.Time) store.Mutation {
	return func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error {
		if l.Status.IsTerminal() {
			return store.ErrSkip
		}
		finalizedAt := now
		l.Auction.FinalizedAt = &finalizedAt

		var winning domain.Bid
		err := tx.Where("auction_id = ? AND is_winning = ?", l.ID, true).First(&winning).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			l.Status = domain.StatusEnded
			return store.RecordEvent(tx, l.ID, domain.EventEnded, nil, map[string]interface{}{
				"minimum_bid": l.Auction.MinimumBid.String(),
			})
		case err != nil:
			return err
		}

		winner := winning.BidderID
		price := winning.Amount
		l.Status = domain.StatusSold
		l.Auction.WinnerID = &winner
		l.Auction.FinalPrice = &price
		return store.RecordEvent(tx, l.ID, domain.EventSold, nil, map[string]interface{}{
			"winner_id":   winner,
			"final_price": price.String(),
			"bid_id":      winning.ID,
		})
	}
}

// ListBids returns the auction's bids, highest first.
func (s *Service) ListBids(ctx context.Context, auctionID uuid.UUID) ([]domain.Bid, error) {
	l, err := s.Store.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if l.Kind != domain.KindAuction {
		return nil, domain.ErrNotFound
	}
	var bids []domain.Bid
	if err := s.Store.DB.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC, timestamp ASC").
		Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch bids: %w", err)
	}
	return bids, nil
}
