package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"community_activity_backend/internal/domain/activity"

	"github.com/sirupsen/logrus"
)

var ErrInvalidActivity = fmt.Errorf("title, description, place and date are required")

// TaskService is the owner-facing CRUD over activities. Newly created
// activities start in the pending state and become visible to other
// accounts only after admin approval.
type TaskService struct {
	activityRepo activity.Repository
	logger       *logrus.Logger
}

func NewTaskService(ar activity.Repository, logger *logrus.Logger) *TaskService {
	return &TaskService{activityRepo: ar, logger: logger}
}

type ActivityInput struct {
	Title       string
	Description string
	Place       string
	Date        time.Time
}

func (in *ActivityInput) validate() error {
	if strings.TrimSpace(in.Title) == "" ||
		strings.TrimSpace(in.Description) == "" ||
		strings.TrimSpace(in.Place) == "" ||
		in.Date.IsZero() {
		return ErrInvalidActivity
	}
	return nil
}

func (s *TaskService) Create(ctx context.Context, ownerID int64, in ActivityInput) (*activity.Activity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	act := &activity.Activity{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Place:       strings.TrimSpace(in.Place),
		Date:        in.Date,
		OwnerID:     ownerID,
		Status:      activity.StatusPending,
	}
	if err := s.activityRepo.Create(ctx, act); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"activity_id": act.ID, "owner_id": ownerID}).Info("Activity created, pending moderation")
	return act, nil
}

func (s *TaskService) Update(ctx context.Context, id, ownerID int64, in ActivityInput) (*activity.Activity, error) {
	act, err := s.activityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if act.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Title) != "" {
		act.Title = strings.TrimSpace(in.Title)
	}
	if strings.TrimSpace(in.Description) != "" {
		act.Description = strings.TrimSpace(in.Description)
	}
	if strings.TrimSpace(in.Place) != "" {
		act.Place = strings.TrimSpace(in.Place)
	}
	if !in.Date.IsZero() {
		act.Date = in.Date
	}
	if err := s.activityRepo.Update(ctx, act); err != nil {
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}
	return act, nil
}

// Delete removes an activity. Attendance records and notification configs
// cascade with it at the storage layer.
func (s *TaskService) Delete(ctx context.Context, id, ownerID int64) error {
	act, err := s.activityRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if act.OwnerID != ownerID {
		return ErrForbidden
	}
	return s.activityRepo.Delete(ctx, id)
}

func (s *TaskService) Get(ctx context.Context, id int64) (*activity.Activity, error) {
	return s.activityRepo.GetByID(ctx, id)
}

func (s *TaskService) ListOwn(ctx context.Context, ownerID int64) ([]*activity.Activity, error) {
	return s.activityRepo.ListByOwner(ctx, ownerID)
}

// ListOthers returns approved activities created by other accounts.
// accountID may be 0 for anonymous browsing.
func (s *TaskService) ListOthers(ctx context.Context, accountID int64) ([]*activity.Activity, error) {
	return s.activityRepo.ListApprovedExcept(ctx, accountID)
}

func (s *TaskService) ListPromoted(ctx context.Context) ([]*activity.Activity, error) {
	return s.activityRepo.ListPromoted(ctx, time.Now())
}
