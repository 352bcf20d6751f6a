package flashjobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/directory"
	"handyhub-backend/internal/infrastructure/events"
	"handyhub-backend/internal/infrastructure/store"
	"handyhub-backend/internal/pkg/geo"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const openJobsLimit = 500

type Service struct {
	Store     *store.ListingStore
	Directory directory.Directory
	Events    events.Publisher
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// MatchNearby returns the open flash jobs the handyman can take, most urgent first.
func (s *Service) MatchNearby(ctx context.Context, handymanID uuid.UUID) ([]Match, error) {
	if handymanID == uuid.Nil {
		return nil, domain.NewValidationError("handyman_id", "is required")
	}
	p, err := s.Directory.Profile(ctx, handymanID)
	if err != nil {
		return nil, err
	}
	candidate := CandidateFromProfile(p)
	if err := geo.Validate(candidate.Location); err != nil {
		return nil, err
	}
	now := s.now()
	jobs, err := s.Store.ListOpen(ctx, domain.KindFlashJob, now, openJobsLimit)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch open jobs: %w", err)
	}
	return MatchCandidates(jobs, candidate, now), nil
}

type AssignResult struct {
	Job        *domain.Listing    `json:"job"`
	Assignment *domain.Assignment `json:"assignment"`
}

// Assign gives an open job to handymanID.
func (s *Service) Assign(ctx context.Context, jobID, handymanID uuid.UUID) (*AssignResult, error) {
	if handymanID == uuid.Nil {
		return nil, domain.NewValidationError("handyman_id", "is required")
	}
	now := s.now()
	pre := func(l *domain.Listing) error {
		if err := checkJob(l); err != nil {
			return err
		}
		if l.Status != domain.StatusOpen {
			return domain.ErrNotOpen
		}
		if l.WindowElapsed(now) {
			return domain.ErrExpired
		}
		return nil
	}

	var asg *domain.Assignment
	res, err := s.Store.AtomicUpdate(ctx, jobID, pre, func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error {
		asg = &domain.Assignment{
			JobID:      l.ID,
			HandymanID: handymanID,
			ClientID:   l.IssuerID,
			Status:     domain.AssignmentAssigned,
			AssignedAt: now,
		}
		if err := tx.Create(asg).Error; err != nil {
			return fmt.Errorf("Failed to create assignment: %w", err)
		}
		assignee := handymanID
		assignedAt := now
		l.Status = domain.StatusAssigned
		l.FlashJob.AssigneeID = &assignee
		l.FlashJob.AssignedAt = &assignedAt
		return store.RecordEvent(tx, l.ID, domain.EventAssigned, &assignee, map[string]interface{}{
			"assignment_id": asg.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("job_id", jobID.String()).Str("handyman_id", handymanID.String()).Msg("flash job assigned")
	events.Emit(ctx, s.Events, events.NewEnvelope(events.SubjectJobAssigned, jobID, map[string]interface{}{
		"assignment_id": asg.ID,
		"handyman_id":   handymanID,
		"client_id":     asg.ClientID,
	}))
	return &AssignResult{Job: res.Listing, Assignment: asg}, nil
}

// Accept is the assigned handyman confirming the job; work starts.
func (s *Service) Accept(ctx context.Context, jobID, handymanID uuid.UUID) (*domain.Listing, error) {
	now := s.now()
	pre := func(l *domain.Listing) error {
		if err := checkJob(l); err != nil {
			return err
		}
		if l.Status != domain.StatusAssigned || !isAssignee(l, handymanID) {
			return domain.ErrNotAssignedToCaller
		}
		return nil
	}
	res, err := s.Store.AtomicUpdate(ctx, jobID, pre, func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error {
		result := tx.Model(&domain.Assignment{}).
			Where("job_id = ? AND handyman_id = ? AND status = ?", l.ID, handymanID, domain.AssignmentAssigned).
			Updates(map[string]interface{}{"status": domain.AssignmentAccepted, "accepted_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotAssignedToCaller
		}
		startedAt := now
		l.Status = domain.StatusInProgress
		l.FlashJob.StartedAt = &startedAt
		actor := handymanID
		return store.RecordEvent(tx, l.ID, domain.EventAccepted, &actor, nil)
	})
	if err != nil {
		return nil, err
	}
	s.statusChanged(ctx, res.Listing, handymanID)
	return res.Listing, nil
}

// Complete is the assignee marking an in-progress job done.
func (s *Service) Complete(ctx context.Context, jobID, handymanID uuid.UUID) (*domain.Listing, error) {
	now := s.now()
	pre := func(l *domain.Listing) error {
		if err := checkJob(l); err != nil {
			return err
		}
		if l.Status != domain.StatusInProgress {
			return domain.ErrNotInProgress
		}
		if !isAssignee(l, handymanID) {
			return domain.ErrNotAssignedToCaller
		}
		return nil
	}
	res, err := s.Store.AtomicUpdate(ctx, jobID, pre, func(ctx context.Context, tx *gorm.DB, l *domain.Listing) error {
		if err := tx.Model(&domain.Assignment{}).
			Where("job_id = ? AND handyman_id = ? AND status = ?", l.ID, handymanID, domain.AssignmentAccepted).
			Updates(map[string]interface{}{"status": domain.AssignmentCompleted, "completed_at": now}).Error; err != nil {
			return err
		}
		completedAt := now
		l.Status = domain.StatusCompleted
		l.FlashJob.CompletedAt = &completedAt
		actor := handymanID
		return store.RecordEvent(tx, l.ID, domain.EventCompleted, &actor, nil)
	})
	if err != nil {
		return nil, err
	}
	s.statusChanged(ctx, res.Listing, handymanID)
	return res.Listing, nil
}

// GetAssignment returns the current assignment of a job.
func (s *Service) GetAssignment(ctx context.Context, jobID uuid.UUID) (*domain.Assignment, error) {
	var a domain.Assignment
	err := s.Store.DB.WithContext(ctx).Where("job_id = ?", jobID).Order("assigned_at DESC").First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Service) statusChanged(ctx context.Context, l *domain.Listing, actor uuid.UUID) {
	log.Info().Str("job_id", l.ID.String()).Str("status", string(l.Status)).Msg("flash job status changed")
	events.Emit(ctx, s.Events, events.NewEnvelope(events.SubjectJobStatus, l.ID, map[string]interface{}{
		"status":   l.Status,
		"actor_id": actor,
	}))
}

func checkJob(l *domain.Listing) error {
	if l.Kind != domain.KindFlashJob || l.FlashJob == nil {
		return domain.ErrNotFound
	}
	return nil
}

func isAssignee(l *domain.Listing, handymanID uuid.UUID) bool {
	return l.FlashJob.AssigneeID != nil && *l.FlashJob.AssigneeID == handymanID
}
