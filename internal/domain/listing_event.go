package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing event types, one per recorded transition.
const (
	EventCreated   = "CREATED"
	EventBidPlaced = "BID_PLACED"
	EventClaimed   = "CLAIMED"
	EventSoldOut   = "SOLD_OUT"
	EventAssigned  = "ASSIGNED"
	EventAccepted  = "ACCEPTED"
	EventCompleted = "COMPLETED"
	EventSold      = "SOLD"
	EventEnded     = "ENDED"
	EventExpired   = "EXPIRED"
	EventNotified  = "NOTIFIED"
)

// ListingEvent is the audit row written in the same transaction as the
// listing change it describes.
type ListingEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	ListingID uuid.UUID      `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	ActorID   *uuid.UUID     `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"createdAt"`
}

func (ListingEvent) TableName() string {
	return "listing_events"
}

func (le *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if le.EventID == uuid.Nil {
		le.EventID = uuid.New()
	}
	return nil
}
