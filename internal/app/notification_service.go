package app

import (
	"context"
	"fmt"

	"community_activity_backend/internal/domain/activity"
	"community_activity_backend/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidDaysBefore = fmt.Errorf("daysBefore must be zero or a positive integer")
	ErrInvalidNotifType  = fmt.Errorf("unknown notification type")
)

// NotificationConfigService manages per-(account, activity) reminder
// policies. A user may stack several lead times for one activity; the
// (account, activity, daysBefore) triple is unique.
type NotificationConfigService struct {
	notifRepo    notification.Repository
	activityRepo activity.Repository
	logger       *logrus.Logger
}

func NewNotificationConfigService(nr notification.Repository, ar activity.Repository, logger *logrus.Logger) *NotificationConfigService {
	return &NotificationConfigService{
		notifRepo:    nr,
		activityRepo: ar,
		logger:       logger,
	}
}

// Upsert creates the configuration or updates the one matching the triple.
// Reports whether a new configuration was created (drives 201 vs 200).
func (s *NotificationConfigService) Upsert(ctx context.Context, accountID, activityID int64, daysBefore int, notifType notification.Type) (*notification.Config, bool, error) {
	if daysBefore < 0 {
		return nil, false, ErrInvalidDaysBefore
	}
	if notifType == "" {
		notifType = notification.TypeReminder
	}
	if !notifType.Valid() {
		return nil, false, ErrInvalidNotifType
	}

	// Configuring a reminder for a missing activity is a caller mistake,
	// not something the dispatch engine should discover later.
	if _, err := s.activityRepo.GetByID(ctx, activityID); err != nil {
		return nil, false, err
	}

	cfg := &notification.Config{
		AccountID:  accountID,
		ActivityID: activityID,
		DaysBefore: daysBefore,
		Type:       notifType,
	}
	created, err := s.notifRepo.Upsert(ctx, cfg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert notification config: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"account_id":  accountID,
		"activity_id": activityID,
		"days_before": daysBefore,
		"created":     created,
	}).Debug("Notification config upserted")
	return cfg, created, nil
}

// Delete removes a configuration. Only the owning account may delete it.
func (s *NotificationConfigService) Delete(ctx context.Context, configID, accountID int64) error {
	cfg, err := s.notifRepo.GetByID(ctx, configID)
	if err != nil {
		return err
	}
	if cfg.AccountID != accountID {
		return ErrForbidden
	}
	return s.notifRepo.Delete(ctx, configID)
}

// ListForAccount returns the account's configurations.
func (s *NotificationConfigService) ListForAccount(ctx context.Context, accountID int64) ([]*notification.Config, error) {
	return s.notifRepo.ListByAccount(ctx, accountID)
}
