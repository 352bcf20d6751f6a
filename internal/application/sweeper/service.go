// Package sweeper moves every time-bound listing whose window has elapsed to
// its terminal state, exactly once. It is safe to run concurrently with user
// operations and with itself: each transition re-checks the listing inside
// the atomic update and skips anything already moved on.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"handyhub-backend/internal/application/auctions"
	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/events"
	"handyhub-backend/internal/infrastructure/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const defaultBatchSize = 200

var errNoLongerDue = errors.New("listing no longer due for expiry")

type Service struct {
	Store     *store.ListingStore
	Events    events.Publisher
	BatchSize int
}

type Report struct {
	Examined      int   `json:"examined"`
	Finalized     int   `json:"finalized"`
	Skipped       int   `json:"skipped"`
	Failed        int   `json:"failed"`
	ClaimsExpired int64 `json:"claims_expired"`
}

func (s *Service) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return defaultBatchSize
}

// SweepExpired pages through due listings and applies each kind's terminal
// transition, then expires active claims past their expiry. A failure on one
// listing is logged and counted; only cancellation stops the sweep.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (Report, error) {
	now = now.UTC()
	var report Report
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		page, err := s.Store.ListExpiredCandidates(ctx, now, after, s.batchSize())
		if err != nil {
			return report, fmt.Errorf("Failed to fetch expired listings: %w", err)
		}
		for i := range page {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			after = page[i].ID
			report.Examined++
			s.sweepOne(ctx, &page[i], now, &report)
		}
		if len(page) < s.batchSize() {
			break
		}
	}

	n, err := s.expireClaims(ctx, now)
	report.ClaimsExpired = n
	if err != nil {
		return report, err
	}

	if report.Examined > 0 || report.ClaimsExpired > 0 {
		log.Info().
			Int("examined", report.Examined).
			Int("finalized", report.Finalized).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Int64("claims_expired", report.ClaimsExpired).
			Msg("expiry sweep finished")
	}
	return report, nil
}

func (s *Service) sweepOne(ctx context.Context, candidate *domain.Listing, now time.Time, report *Report) {
	logger := log.With().Str("listing_id", candidate.ID.String()).Str("kind", string(candidate.Kind)).Logger()

	pre := func(l *domain.Listing) error {
		if !l.IsActiveLike() || !l.WindowElapsed(now) {
			return errNoLongerDue
		}
		return nil
	}
	res, err := s.Store.AtomicUpdate(ctx, candidate.ID, pre, terminalMutation(candidate.Kind, now))
	switch {
	case errors.Is(err, errNoLongerDue):
		logger.Debug().Msg("sweep skipped, listing changed since read")
		report.Skipped++
		return
	case err != nil:
		logger.Error().Err(err).Msg("sweep failed for listing")
		report.Failed++
		return
	case !res.Changed:
		report.Skipped++
		return
	}

	report.Finalized++
	l := res.Listing
	logger.Info().Str("status", string(l.Status)).Msg("listing closed by sweep")
	data := map[string]interface{}{"kind": l.Kind, "status": l.Status}
	if l.Auction != nil {
		data["winner_id"] = l.Auction.WinnerID
		data["final_price"] = l.Auction.FinalPrice
	}
	events.Emit(ctx, s.Events, events.NewEnvelope(events.SubjectListingFinal, l.ID, data))
}

func terminalMutation(kind domain.Kind, now time.Time) store.Mutation {
	if kind == domain.KindAuction {
		return auctions.FinalizeMutation(now)
	}
	return func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error {
		if l.Status.IsTerminal() {
			return store.ErrSkip
		}
		from := l.Status
		l.Status = domain.StatusExpired
		return store.RecordEvent(tx, l.ID, domain.EventExpired, nil, map[string]interface{}{
			"from_status": from,
			"valid_until": l.ValidUntil(),
		})
	}
}

func (s *Service) expireClaims(ctx context.Context, now time.Time) (int64, error) {
	result := s.Store.DB.WithContext(ctx).Model(&domain.Claim{}).
		Where("status = ? AND expires_at <= ?", domain.ClaimActive, now).
		Update("status", domain.ClaimExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("Failed to expire claims: %w", result.Error)
	}
	return result.RowsAffected, nil
}
