package store

import (
	"context"
	"strings"
	"time"

	"handyhub-backend/internal/domain"

	"github.com/google/uuid"
)

var timedKinds = []domain.Kind{domain.KindAuction, domain.KindOpportunity, domain.KindOffer}

// ListExpiredCandidates pages (by id, after `after`) through listings still
// in their open state whose validity window has elapsed at now.
func (s *ListingStore) ListExpiredCandidates(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]domain.Listing, error) {
	q := s.DB.WithContext(ctx).
		Where("((kind IN ? AND status = ? AND ends_at <= ?) OR (kind = ? AND status = ? AND deadline <= ?))",
			timedKinds, domain.StatusActive, now,
			domain.KindFlashJob, domain.StatusOpen, now)
	if after != uuid.Nil {
		q = q.Where("id > ?", after)
	}
	var out []domain.Listing
	if err := q.Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AlertFilter narrows alert candidates; empty fields match everything.
type AlertFilter struct {
	City     string
	Country  string
	Category string
	Kind     domain.Kind
}

// ListAlertCandidates returns un-notified open listings whose alert window
// contains now. Flash jobs stay alertable until their deadline.
func (s *ListingStore) ListAlertCandidates(ctx context.Context, now time.Time, f AlertFilter, limit int) ([]domain.Listing, error) {
	q := s.DB.WithContext(ctx).
		Where("notified = ?", false).
		Where("alert_start <= ?", now).
		Where("((kind IN ? AND status = ? AND alert_end >= ?) OR (kind = ? AND status = ? AND deadline >= ?))",
			timedKinds, domain.StatusActive, now,
			domain.KindFlashJob, domain.StatusOpen, now)
	if f.City != "" {
		q = q.Where("LOWER(city) = ?", strings.ToLower(strings.TrimSpace(f.City)))
	}
	if f.Country != "" {
		q = q.Where("LOWER(country) = ?", strings.ToLower(strings.TrimSpace(f.Country)))
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	var out []domain.Listing
	if err := q.Order("alert_start ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListOpen returns listings of kind still in their initial state with an
// unexpired validity window.
func (s *ListingStore) ListOpen(ctx context.Context, kind domain.Kind, now time.Time, limit int) ([]domain.Listing, error) {
	q := s.DB.WithContext(ctx).Where("kind = ? AND status = ?", kind, domain.InitialStatus(kind))
	if kind == domain.KindFlashJob {
		q = q.Where("deadline > ?", now)
	} else {
		q = q.Where("ends_at > ?", now)
	}
	var out []domain.Listing
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByIssuer returns the issuer's listings, newest first.
func (s *ListingStore) ListByIssuer(ctx context.Context, issuerID uuid.UUID) ([]domain.Listing, error) {
	var out []domain.Listing
	if err := s.DB.WithContext(ctx).Where("issuer_id = ?", issuerID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
