package alerts

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

const defaultLimit = 500

// Filter narrows due alerts by place, category and kind. City and country
// compare case-insensitively; empty fields match everything.
type Filter = store.AlertFilter

type Service struct {
	Store  *store.ListingStore
	Events events.Publisher
	Limit  int
}

func (s *Service) limit() int {
	if s.Limit > 0 {
		return s.Limit
	}
	return defaultLimit
}

// DueForAlert lists open, not yet notified listings whose alert window
// contains now.
func (s *Service) DueForAlert(ctx context.Context, now time.Time, f Filter) ([]domain.Listing, error) {
	if f.Kind != "" && !f.Kind.IsValid() {
		return nil, domain.NewValidationError("kind", "unknown listing kind")
	}
	out, err := s.Store.ListAlertCandidates(ctx, now.UTC(), f, s.limit())
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch due alerts: %w", err)
	}
	return out, nil
}

var errNoLongerDue = errors.New("listing no longer due for alert")

// MarkNotified flips notified on each listing at most once and returns the
// ids flipped by this call. Already-notified and unknown ids are skipped. A
// failure on one id does not stop the rest; failures are returned joined.
func (s *Service) MarkNotified(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	res := s.mark(ctx, ids, nil)
	return res.flipped, errors.Join(res.errs...)
}

type markResult struct {
	flipped []uuid.UUID
	skipped int
	errs    []error
}

func (s *Service) mark(ctx context.Context, ids []uuid.UUID, pre store.Precondition) markResult {
	res := markResult{flipped: []uuid.UUID{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			res.errs = append(res.errs, err)
			return res
		}
		upd, err := s.Store.AtomicUpdate(ctx, id, pre, func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error {
			if l.Notified {
				return store.ErrSkip
			}
			l.Notified = true
			return store.RecordEvent(tx, l.ID, domain.EventNotified, nil, nil)
		})
		switch {
		case errors.Is(err, domain.ErrNotFound):
			log.Debug().Str("listing_id", id.String()).Msg("mark notified: unknown listing")
			res.skipped++
		case errors.Is(err, errNoLongerDue):
			log.Debug().Str("listing_id", id.String()).Msg("mark notified: listing closed since read")
			res.skipped++
		case err != nil:
			log.Error().Err(err).Str("listing_id", id.String()).Msg("mark notified failed")
			res.errs = append(res.errs, fmt.Errorf("listing %s: %w", id, err))
		case upd.Changed:
			res.flipped = append(res.flipped, id)
		default:
			res.skipped++
		}
	}
	return res
}

// Alert is the payload handed to the notification collaborator.
type Alert struct {
	ListingID      uuid.UUID   `json:"listing_id"`
	Kind           domain.Kind `json:"kind"`
	Title          string      `json:"title"`
	Category       string      `json:"category"`
	City           string      `json:"city"`
	Country        string      `json:"country"`
	Lat            float64     `json:"lat"`
	Lng            float64     `json:"lng"`
	TargetRadiusKm float64     `json:"target_radius_km"`
	ValidUntil     time.Time   `json:"valid_until"`
}

type DispatchReport struct {
	Due      int `json:"due"`
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Dispatch marks every due listing notified and publishes one alert per
// listing flipped. Delivery failures are logged; notified stays set.
func (s *Service) Dispatch(ctx context.Context, now time.Time, f Filter) (DispatchReport, error) {
	due, err := s.DueForAlert(ctx, now, f)
	if err != nil {
		return DispatchReport{}, err
	}
	return s.notifyDue(ctx, now, due)
}

// notifyDue marks the listings read by DueForAlert. A listing that closed
// or left its window since that read is skipped, not notified. Per-listing
// failures are counted and the rest still run.
func (s *Service) notifyDue(ctx context.Context, now time.Time, due []domain.Listing) (DispatchReport, error) {
	byID := make(map[uuid.UUID]domain.Listing, len(due))
	ids := make([]uuid.UUID, 0, len(due))
	for _, l := range due {
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}
	stillDue := func(l *domain.Listing) error {
		if !l.IsActiveLike() || l.WindowElapsed(now) {
			return errNoLongerDue
		}
		return nil
	}
	res := s.mark(ctx, ids, stillDue)
	report := DispatchReport{Due: len(due), Notified: len(res.flipped), Skipped: res.skipped, Failed: len(res.errs)}
	for _, id := range res.flipped {
		l := byID[id]
		events.Emit(ctx, s.Events, events.NewEnvelope(events.SubjectAlertDue, id, Alert{
			ListingID:      l.ID,
			Kind:           l.Kind,
			Title:          l.Title,
			Category:       l.Category,
			City:           l.Location.City,
			Country:        l.Location.Country,
			Lat:            l.Location.Lat,
			Lng:            l.Location.Lng,
			TargetRadiusKm: l.TargetRadiusKm,
			ValidUntil:     l.ValidUntil(),
		}))
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if report.Notified > 0 || report.Failed > 0 {
		log.Info().
			Int("due", report.Due).
			Int("notified", report.Notified).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("alerts dispatched")
	}
	return report, nil
}
