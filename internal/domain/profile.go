package domain

import (
	"github.com/google/uuid"
)

// Profile is the read-only view of a user exposed by the user directory.
// Rows are owned by the profile service; this module never writes them.
type Profile struct {
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname   string    `gorm:"column:fullname" json:"fullname"`
	Role       string    `gorm:"column:role" json:"role"`
	Lat        float64   `gorm:"column:lat" json:"lat"`
	Lng        float64   `gorm:"column:lng" json:"lng"`
	City       string    `gorm:"column:city" json:"city"`
	Country    string    `gorm:"column:country" json:"country"`
	Skills     []string  `gorm:"column:skills;type:jsonb;serializer:json" json:"skills"`
	Categories []string  `gorm:"column:categories;type:jsonb;serializer:json" json:"categories"`
}

func (Profile) TableName() string {
	return "profiles"
}
