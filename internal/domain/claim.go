package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimStatus string

const (
	ClaimActive   ClaimStatus = "active"
	ClaimRedeemed ClaimStatus = "redeemed"
	ClaimExpired  ClaimStatus = "expired"
)

// Claim is a user's reservation against an opportunity or an offer.
type Claim struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ListingID      uuid.UUID   `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:idx_claims_listing_code" json:"listing_id"`
	UserID         uuid.UUID   `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Quantity       int         `gorm:"column:quantity;not null" json:"quantity"`
	RedemptionCode string      `gorm:"column:redemption_code;type:varchar(32);not null;uniqueIndex:idx_claims_listing_code" json:"redemption_code"`
	Status         ClaimStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	ExpiresAt      time.Time   `gorm:"column:expires_at;not null;index" json:"expires_at"`
	RedeemedAt     *time.Time  `gorm:"column:redeemed_at" json:"redeemed_at,omitempty"`
	CreatedAt      time.Time   `gorm:"column:created_at" json:"createdAt"`
}

func (Claim) TableName() string {
	return "claims"
}

func (c *Claim) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
