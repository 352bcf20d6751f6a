package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Kind tags which payload a Listing carries.
type Kind string

const (
	KindAuction     Kind = "auction"
	KindOpportunity Kind = "opportunity"
	KindFlashJob    Kind = "flash_job"
	KindOffer       Kind = "offer"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindAuction, KindOpportunity, KindFlashJob, KindOffer:
		return true
	}
	return false
}

type Status string

const (
	StatusActive     Status = "active"
	StatusOpen       Status = "open"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusSold       Status = "sold"
	StatusEnded      Status = "ended"
	StatusExpired    Status = "expired"
	StatusSoldOut    Status = "sold_out"
	StatusCompleted  Status = "completed"
)

// TerminalStatuses never transition again.
var TerminalStatuses = []Status{StatusSold, StatusEnded, StatusExpired, StatusSoldOut, StatusCompleted}

func (s Status) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// InitialStatus is the open state a freshly issued listing of kind k starts in.
func InitialStatus(k Kind) Status {
	if k == KindFlashJob {
		return StatusOpen
	}
	return StatusActive
}

type Location struct {
	Lat     float64 `gorm:"column:lat;not null" json:"lat"`
	Lng     float64 `gorm:"column:lng;not null" json:"lng"`
	City    string  `gorm:"column:city;index" json:"city"`
	Country string  `gorm:"column:country;index" json:"country"`
}

// AuctionTerms is the payload of a surplus-inventory auction.
// CurrentBid starts at MinimumBid and only moves up.
type AuctionTerms struct {
	MinimumBid      decimal.Decimal  `json:"minimum_bid"`
	CurrentBid      decimal.Decimal  `json:"current_bid"`
	HighestBidderID *uuid.UUID       `json:"highest_bidder_id,omitempty"`
	BidderCount     int              `json:"bidder_count"`
	WinnerID        *uuid.UUID       `json:"winner_id,omitempty"`
	FinalPrice      *decimal.Decimal `json:"final_price,omitempty"`
	FinalizedAt     *time.Time       `json:"finalized_at,omitempty"`
}

// HasBids reports whether at least one bid has been accepted.
func (a *AuctionTerms) HasBids() bool {
	return a.HighestBidderID != nil
}

// InventoryTerms is the payload of a flash liquidation deal (opportunity).
type InventoryTerms struct {
	UnitPrice         decimal.Decimal `json:"unit_price"`
	OriginalPrice     decimal.Decimal `json:"original_price"`
	TotalQuantity     int             `json:"total_quantity"`
	RemainingQuantity int             `json:"remaining_quantity"`
}

// OfferTerms is the payload of a discount-redemption offer.
type OfferTerms struct {
	DiscountPercent    decimal.Decimal `json:"discount_percent"`
	MaxRedemptions     int             `json:"max_redemptions"`
	CurrentRedemptions int             `json:"current_redemptions"`
}

// Urgency tiers for flash jobs, higher is more urgent.
const (
	UrgencyLow       = 0
	UrgencyNormal    = 1
	UrgencyUrgent    = 2
	UrgencyEmergency = 3
)

type FlashJobTerms struct {
	RequiredSkills []string        `json:"required_skills"`
	UrgencyTier    int             `json:"urgency_tier"`
	Budget         decimal.Decimal `json:"budget"`
	AssigneeID     *uuid.UUID      `json:"assignee_id,omitempty"`
	AssignedAt     *time.Time      `json:"assigned_at,omitempty"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Listing is any time-bounded, geo-scoped marketplace offer. Exactly one of
// the kind payloads is set, matching Kind.
type Listing struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Kind           Kind       `gorm:"column:kind;type:varchar(20);not null;index" json:"kind"`
	IssuerID       uuid.UUID  `gorm:"column:issuer_id;type:uuid;not null;index" json:"issuer_id"`
	Category       string     `gorm:"column:category;not null;index" json:"category"`
	Title          string     `gorm:"column:title;not null" json:"title"`
	Location       Location   `gorm:"embedded" json:"location"`
	TargetRadiusKm float64    `gorm:"column:target_radius_km;not null" json:"target_radius_km"`
	Status         Status     `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	EndsAt         *time.Time `gorm:"column:ends_at;index" json:"ends_at,omitempty"`
	ScheduledFor   *time.Time `gorm:"column:scheduled_for" json:"scheduled_for,omitempty"`
	Deadline       *time.Time `gorm:"column:deadline;index" json:"deadline,omitempty"`
	AlertStart     *time.Time `gorm:"column:alert_start" json:"alert_start,omitempty"`
	AlertEnd       *time.Time `gorm:"column:alert_end" json:"alert_end,omitempty"`
	Notified       bool       `gorm:"column:notified;not null" json:"notified"`
	Version        int64      `gorm:"column:version;not null" json:"version"`

	Auction   *AuctionTerms   `gorm:"column:auction;type:jsonb;serializer:json" json:"auction,omitempty"`
	Inventory *InventoryTerms `gorm:"column:inventory;type:jsonb;serializer:json" json:"inventory,omitempty"`
	Offer     *OfferTerms     `gorm:"column:offer;type:jsonb;serializer:json" json:"offer,omitempty"`
	FlashJob  *FlashJobTerms  `gorm:"column:flash_job;type:jsonb;serializer:json" json:"flash_job,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate sets id and the first version if not already set.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Version == 0 {
		l.Version = 1
	}
	return nil
}

// ValidUntil is the instant the validity window closes: EndsAt for auctions,
// opportunities and offers, Deadline for flash jobs.
func (l *Listing) ValidUntil() time.Time {
	if l.Kind == KindFlashJob {
		if l.Deadline != nil {
			return *l.Deadline
		}
		return time.Time{}
	}
	if l.EndsAt != nil {
		return *l.EndsAt
	}
	return time.Time{}
}

// WindowElapsed reports now >= ValidUntil.
func (l *Listing) WindowElapsed(now time.Time) bool {
	return !now.Before(l.ValidUntil())
}

// IsActiveLike reports whether the listing is still in its initial open state.
func (l *Listing) IsActiveLike() bool {
	return l.Status == InitialStatus(l.Kind)
}

// AlertWindowEnd is the upper bound for alert emission. Flash jobs stay
// alertable until their deadline.
func (l *Listing) AlertWindowEnd() *time.Time {
	if l.Kind == KindFlashJob {
		return l.Deadline
	}
	return l.AlertEnd
}

// Clone returns a deep copy so a mutation never writes through to a snapshot.
func (l Listing) Clone() Listing {
	out := l
	out.EndsAt = cloneTime(l.EndsAt)
	out.ScheduledFor = cloneTime(l.ScheduledFor)
	out.Deadline = cloneTime(l.Deadline)
	out.AlertStart = cloneTime(l.AlertStart)
	out.AlertEnd = cloneTime(l.AlertEnd)
	if l.Auction != nil {
		a := *l.Auction
		a.HighestBidderID = cloneUUID(l.Auction.HighestBidderID)
		a.WinnerID = cloneUUID(l.Auction.WinnerID)
		a.FinalizedAt = cloneTime(l.Auction.FinalizedAt)
		if l.Auction.FinalPrice != nil {
			p := *l.Auction.FinalPrice
			a.FinalPrice = &p
		}
		out.Auction = &a
	}
	if l.Inventory != nil {
		inv := *l.Inventory
		out.Inventory = &inv
	}
	if l.Offer != nil {
		o := *l.Offer
		out.Offer = &o
	}
	if l.FlashJob != nil {
		j := *l.FlashJob
		j.RequiredSkills = append([]string(nil), l.FlashJob.RequiredSkills...)
		j.AssigneeID = cloneUUID(l.FlashJob.AssigneeID)
		j.AssignedAt = cloneTime(l.FlashJob.AssignedAt)
		j.StartedAt = cloneTime(l.FlashJob.StartedAt)
		j.CompletedAt = cloneTime(l.FlashJob.CompletedAt)
		out.FlashJob = &j
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
