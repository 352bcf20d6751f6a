package listings

import (
	"context"
	"sort"
	"strings"
	"time"

	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/events"
	"handyhub-backend/internal/infrastructure/store"
	"handyhub-backend/internal/pkg/geo"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultNearbyLimit = 500

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

// CommonInput carries the fields every listing kind shares. A missing alert
// window defaults to [creation, end of validity].
type CommonInput struct {
	IssuerID       uuid.UUID
	Category       string
	Title          string
	Location       domain.Location
	TargetRadiusKm float64
	AlertStart     *time.Time
	AlertEnd       *time.Time
}

type CreateAuctionInput struct {
	CommonInput
	EndsAt     time.Time
	MinimumBid decimal.Decimal
}

type CreateOpportunityInput struct {
	CommonInput
	EndsAt        time.Time
	UnitPrice     decimal.Decimal
	OriginalPrice decimal.Decimal
	Quantity      int
}

type CreateOfferInput struct {
	CommonInput
	EndsAt          time.Time
	DiscountPercent decimal.Decimal
	MaxRedemptions  int
}

type CreateFlashJobInput struct {
	CommonInput
	ScheduledFor   *time.Time
	Deadline       time.Time
	RequiredSkills []string
	UrgencyTier    int
	Budget         decimal.Decimal
}

func (s *Service) CreateAuction(ctx context.Context, in CreateAuctionInput) (*domain.Listing, error) {
	now := s.now()
	if err := validateEnd(in.EndsAt, now, "ends_at"); err != nil {
		return nil, err
	}
	if !in.MinimumBid.IsPositive() {
		return nil, domain.NewValidationError("minimum_bid", "must be positive")
	}
	l := newListing(domain.KindAuction, in.CommonInput)
	l.EndsAt = utcPtr(in.EndsAt)
	l.Auction = &domain.AuctionTerms{MinimumBid: in.MinimumBid, CurrentBid: in.MinimumBid}
	return s.create(ctx, l, now, map[string]interface{}{
		"minimum_bid": in.MinimumBid.String(),
		"ends_at":     l.EndsAt,
	})
}

func (s *Service) CreateOpportunity(ctx context.Context, in CreateOpportunityInput) (*domain.Listing, error) {
	now := s.now()
	if err := validateEnd(in.EndsAt, now, "ends_at"); err != nil {
		return nil, err
	}
	if in.Quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	if !in.UnitPrice.IsPositive() {
		return nil, domain.NewValidationError("unit_price", "must be positive")
	}
	if in.OriginalPrice.LessThan(in.UnitPrice) {
		return nil, domain.NewValidationError("original_price", "must not be below unit_price")
	}
	l := newListing(domain.KindOpportunity, in.CommonInput)
	l.EndsAt = utcPtr(in.EndsAt)
	l.Inventory = &domain.InventoryTerms{
		UnitPrice:         in.UnitPrice,
		OriginalPrice:     in.OriginalPrice,
		TotalQuantity:     in.Quantity,
		RemainingQuantity: in.Quantity,
	}
	return s.create(ctx, l, now, map[string]interface{}{
		"unit_price": in.UnitPrice.String(),
		"quantity":   in.Quantity,
	})
}

func (s *Service) CreateOffer(ctx context.Context, in CreateOfferInput) (*domain.Listing, error) {
	now := s.now()
	if err := validateEnd(in.EndsAt, now, "ends_at"); err != nil {
		return nil, err
	}
	if !in.DiscountPercent.IsPositive() || in.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.NewValidationError("discount_percent", "must be within (0, 100]")
	}
	if in.MaxRedemptions < 1 {
		return nil, domain.NewValidationError("max_redemptions", "must be at least 1")
	}
	l := newListing(domain.KindOffer, in.CommonInput)
	l.EndsAt = utcPtr(in.EndsAt)
	l.Offer = &domain.OfferTerms{DiscountPercent: in.DiscountPercent, MaxRedemptions: in.MaxRedemptions}
	return s.create(ctx, l, now, map[string]interface{}{
		"discount_percent": in.DiscountPercent.String(),
		"max_redemptions":  in.MaxRedemptions,
	})
}

func (s *Service) CreateFlashJob(ctx context.Context, in CreateFlashJobInput) (*domain.Listing, error) {
	now := s.now()
	if err := validateEnd(in.Deadline, now, "deadline"); err != nil {
		return nil, err
	}
	if in.ScheduledFor != nil && in.ScheduledFor.After(in.Deadline) {
		return nil, domain.NewValidationError("scheduled_for", "must not be after deadline")
	}
	if in.UrgencyTier < domain.UrgencyLow || in.UrgencyTier > domain.UrgencyEmergency {
		return nil, domain.NewValidationError("urgency_tier", "must be within [0, 3]")
	}
	if in.Budget.IsNegative() {
		return nil, domain.NewValidationError("budget", "must not be negative")
	}
	l := newListing(domain.KindFlashJob, in.CommonInput)
	l.Deadline = utcPtr(in.Deadline)
	if in.ScheduledFor != nil {
		l.ScheduledFor = utcPtr(*in.ScheduledFor)
	}
	l.FlashJob = &domain.FlashJobTerms{
		RequiredSkills: normalizeSkills(in.RequiredSkills),
		UrgencyTier:    in.UrgencyTier,
		Budget:         in.Budget,
	}
	return s.create(ctx, l, now, map[string]interface{}{
		"urgency_tier":    in.UrgencyTier,
		"required_skills": l.FlashJob.RequiredSkills,
	})
}

func (s *Service) create(ctx context.Context, l *domain.Listing, now time.Time, data map[string]interface{}) (*domain.Listing, error) {
	if err := validateCommon(l); err != nil {
		return nil, err
	}
	if l.AlertStart == nil {
		l.AlertStart = utcPtr(now)
	}
	if l.AlertEnd == nil {
		l.AlertEnd = utcPtr(l.ValidUntil())
	}
	if l.AlertEnd.Before(*l.AlertStart) {
		return nil, domain.NewValidationError("alert_end", "must not be before alert_start")
	}
	if err := s.Store.Insert(ctx, l, data); err != nil {
		return nil, err
	}
	log.Info().Str("listing_id", l.ID.String()).Str("kind", string(l.Kind)).Msg("listing created")
	events.Emit(ctx, s.Events, events.NewEnvelope(events.SubjectListingCreated, l.ID, l))
	return l, nil
}

func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("listing_id", "is required")
	}
	return s.Store.Get(ctx, id)
}

func (s *Service) GetIssuerListings(ctx context.Context, issuerID uuid.UUID) ([]domain.Listing, error) {
	if issuerID == uuid.Nil {
		return nil, domain.NewValidationError("issuer_id", "is required")
	}
	return s.Store.ListByIssuer(ctx, issuerID)
}

// NearbyListing is an open listing whose target radius covers the caller.
type NearbyListing struct {
	domain.Listing
	DistanceKm float64 `json:"distance_km"`
}

// Nearby returns open listings of kind (all kinds when empty) whose target
// radius contains origin, closest first.
func (s *Service) Nearby(ctx context.Context, origin geo.Point, kind domain.Kind) ([]NearbyListing, error) {
	if err := geo.Validate(origin); err != nil {
		return nil, err
	}
	kinds := []domain.Kind{domain.KindAuction, domain.KindOpportunity, domain.KindOffer, domain.KindFlashJob}
	if kind != "" {
		if !kind.IsValid() {
			return nil, domain.NewValidationError("kind", "unknown listing kind")
		}
		kinds = []domain.Kind{kind}
	}
	now := s.now()
	out := []NearbyListing{}
	for _, k := range kinds {
		open, err := s.Store.ListOpen(ctx, k, now, defaultNearbyLimit)
		if err != nil {
			return nil, err
		}
		for i := range open {
			if !geo.WithinRadius(origin, &open[i]) {
				continue
			}
			out = append(out, NearbyListing{
				Listing:    open[i],
				DistanceKm: geo.DistanceKm(origin, geo.FromLocation(open[i].Location)),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func newListing(kind domain.Kind, in CommonInput) *domain.Listing {
	l := &domain.Listing{
		Kind:           kind,
		IssuerID:       in.IssuerID,
		Category:       strings.TrimSpace(in.Category),
		Title:          strings.TrimSpace(in.Title),
		Location:       in.Location,
		TargetRadiusKm: in.TargetRadiusKm,
		Status:         domain.InitialStatus(kind),
	}
	if in.AlertStart != nil {
		l.AlertStart = utcPtr(*in.AlertStart)
	}
	if in.AlertEnd != nil {
		l.AlertEnd = utcPtr(*in.AlertEnd)
	}
	return l
}

func validateCommon(l *domain.Listing) error {
	if l.IssuerID == uuid.Nil {
		return domain.NewValidationError("issuer_id", "is required")
	}
	if l.Title == "" {
		return domain.NewValidationError("title", "is required")
	}
	if l.Category == "" {
		return domain.NewValidationError("category", "is required")
	}
	if err := geo.Validate(geo.FromLocation(l.Location)); err != nil {
		return err
	}
	if !(l.TargetRadiusKm > 0) {
		return domain.NewValidationError("target_radius_km", "must be positive")
	}
	return nil
}

func validateEnd(end, now time.Time, field string) error {
	if end.IsZero() {
		return domain.NewValidationError(field, "is required")
	}
	if !end.After(now) {
		return domain.NewValidationError(field, "must be in the future")
	}
	return nil
}

func normalizeSkills(in []string) []string {
	out := make([]string, 0, len(in))
	for _, sk := range in {
		if sk = strings.TrimSpace(sk); sk != "" {
			out = append(out, sk)
		}
	}
	return out
}

func utcPtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
