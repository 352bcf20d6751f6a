package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentAccepted   AssignmentStatus = "accepted"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// Assignment records which handyman holds a flash job.
type Assignment struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	JobID       uuid.UUID        `gorm:"column:job_id;type:uuid;not null;index" json:"job_id"`
	HandymanID  uuid.UUID        `gorm:"column:handyman_id;type:uuid;not null;index" json:"handyman_id"`
	ClientID    uuid.UUID        `gorm:"column:client_id;type:uuid;not null" json:"client_id"`
	Status      AssignmentStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	AssignedAt  time.Time        `gorm:"column:assigned_at;not null" json:"assigned_at"`
	AcceptedAt  *time.Time       `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	CompletedAt *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
