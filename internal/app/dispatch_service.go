package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"community_activity_backend/internal/domain/account"
	"community_activity_backend/internal/domain/activity"
	"community_activity_backend/internal/domain/attendance"
	"community_activity_backend/internal/domain/channel"
	"community_activity_backend/internal/domain/notification"
	idb "community_activity_backend/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DispatchOptions tune the engine's batching and retry behaviour.
type DispatchOptions struct {
	Location         *time.Location
	BatchSize        int
	BatchPause       time.Duration
	EmailMaxAttempts int
	EmailRetryBase   time.Duration
}

func (o *DispatchOptions) applyDefaults() {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.EmailMaxAttempts <= 0 {
		o.EmailMaxAttempts = 3
	}
	if o.EmailRetryBase <= 0 {
		o.EmailRetryBase = 5 * time.Second
	}
}

// DispatchService is the notification dispatch engine. Each tick scans the
// configuration store for entries due today, re-validates the activity and
// the attendance relationship, claims the daily send slot and fans out
// across the delivery channels.
//
// Email is the mandatory channel: when it fails after all retries the claim
// is rolled back so a later tick retries. Push and realtime failures are
// logged and never roll back the claim.
type DispatchService struct {
	notifRepo      notification.Repository
	activityRepo   activity.Repository
	accountRepo    account.Repository
	attendanceRepo attendance.Repository
	email          channel.EmailSender
	push           channel.PushSender
	realtime       channel.RealtimeSender
	logger         *logrus.Logger
	opts           DispatchOptions

	// Injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

func NewDispatchService(
	nr notification.Repository,
	actr activity.Repository,
	accr account.Repository,
	ar attendance.Repository,
	email channel.EmailSender,
	push channel.PushSender,
	realtime channel.RealtimeSender,
	logger *logrus.Logger,
	opts DispatchOptions,
) *DispatchService {
	opts.applyDefaults()
	return &DispatchService{
		notifRepo:      nr,
		activityRepo:   actr,
		accountRepo:    accr,
		attendanceRepo: ar,
		email:          email,
		push:           push,
		realtime:       realtime,
		logger:         logger,
		opts:           opts,
		now:            time.Now,
		sleep:          time.Sleep,
	}
}

// truncateToDay drops the time-of-day component in the given location.
func truncateToDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// RunTick executes one scan-and-send cycle. Individual configuration
// failures are logged and never abort the rest of the batch.
func (s *DispatchService) RunTick(ctx context.Context) error {
	now := s.now().In(s.opts.Location)
	today := truncateToDay(now, s.opts.Location)

	log := s.logger.WithField("dispatch_run", uuid.NewString()[:8])

	candidates, err := s.notifRepo.ListDue(ctx, today)
	if err != nil {
		return fmt.Errorf("failed to list due notification configs: %w", err)
	}
	if len(candidates) == 0 {
		log.Debug("No notification configs due")
		return nil
	}
	log.WithField("candidates", len(candidates)).Info("Dispatch tick started")

	// Bounded batches with a pause in between keep peak load on the
	// downstream channels in check. Within a batch, configurations are
	// independent: the per-configuration claim is the only coordination.
	for start := 0; start < len(candidates); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var wg sync.WaitGroup
		for _, cfg := range candidates[start:end] {
			wg.Add(1)
			go func(cfg *notification.Config) {
				defer wg.Done()
				if err := s.processConfig(ctx, log, cfg, now, today); err != nil {
					log.WithError(err).WithField("config_id", cfg.ID).Error("Failed to process notification config")
				}
			}(cfg)
		}
		wg.Wait()

		if end < len(candidates) && s.opts.BatchPause > 0 {
			s.sleep(s.opts.BatchPause)
		}
	}

	log.Info("Dispatch tick finished")
	return nil
}

func (s *DispatchService) processConfig(ctx context.Context, log *logrus.Entry, cfg *notification.Config, now, today time.Time) error {
	itemLog := log.WithFields(logrus.Fields{
		"config_id":   cfg.ID,
		"account_id":  cfg.AccountID,
		"activity_id": cfg.ActivityID,
	})

	act, err := s.activityRepo.GetByID(ctx, cfg.ActivityID)
	if err != nil {
		if errors.Is(err, idb.ErrActivityNotFound) {
			itemLog.Warn("Activity missing for notification config, skipping")
			return nil
		}
		return fmt.Errorf("failed to load activity: %w", err)
	}
	acct, err := s.accountRepo.GetByID(ctx, cfg.AccountID)
	if err != nil {
		if errors.Is(err, idb.ErrAccountNotFound) {
			itemLog.Warn("Account missing for notification config, skipping")
			return nil
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if act.Date.IsZero() {
		itemLog.Warn("Activity has no date, skipping")
		return nil
	}

	// A past activity permanently disables the configuration.
	if act.Date.Before(now) {
		itemLog.Info("Activity date passed, deactivating notification config")
		if err := s.notifRepo.Deactivate(ctx, cfg.ID); err != nil {
			return fmt.Errorf("failed to deactivate stale config: %w", err)
		}
		return nil
	}

	// The notification must not outlive the attendance relationship:
	// attendance may have been cancelled after the reminder was set up.
	attending, err := s.attendanceRepo.ExistsForIdentity(ctx, cfg.ActivityID,
		nullAccountID(acct.ID), attendance.NormalizeEmail(acct.Email))
	if err != nil {
		return fmt.Errorf("failed to verify attendance: %w", err)
	}
	if !attending {
		itemLog.Info("Account no longer attending, deactivating notification config")
		if err := s.notifRepo.Deactivate(ctx, cfg.ID); err != nil {
			return fmt.Errorf("failed to deactivate config for non-attendee: %w", err)
		}
		return nil
	}

	due := truncateToDay(act.Date, s.opts.Location).AddDate(0, 0, -cfg.DaysBefore)
	if !due.Equal(today) {
		return nil
	}
	// The candidate list may be stale by the time we get here.
	if cfg.LastSentAt.Valid && !truncateToDay(cfg.LastSentAt.Time, s.opts.Location).Before(today) {
		return nil
	}

	// Mark-then-send: claim the daily slot first so an overlapping tick
	// cannot double-send.
	prevLastSent := cfg.LastSentAt
	claimed, err := s.notifRepo.ClaimSend(ctx, cfg.ID, now, today)
	if err != nil {
		return fmt.Errorf("failed to claim send slot: %w", err)
	}
	if !claimed {
		itemLog.Debug("Send slot already claimed, skipping")
		return nil
	}

	subject, body := s.composeMessage(cfg, act, acct)

	// Mandatory channel. Retry exhaustion rolls the claim back so a later
	// tick tries again.
	emailErr := s.sendEmailWithRetry(ctx, itemLog, channel.EmailMessage{
		To:      attendance.NormalizeEmail(acct.Email),
		Subject: subject,
		Text:    body,
	})
	if emailErr != nil {
		itemLog.WithError(emailErr).Error("Email delivery exhausted retries, releasing claim")
		if rbErr := s.notifRepo.ReleaseClaim(ctx, cfg.ID, prevLastSent); rbErr != nil {
			itemLog.WithError(rbErr).Error("Failed to release dispatch claim")
		}
		return nil
	}

	// Optional channels: failures logged, claim untouched.
	if acct.PushToken.Valid && acct.PushToken.String != "" {
		if err := s.push.Send(ctx, acct.PushToken.String, channel.PushNotification{
			Title: subject,
			Body:  body,
		}); err != nil {
			itemLog.WithError(err).Warn("Push delivery failed")
		}
	}

	delivered := s.realtime.SendToAccount(acct.ID, map[string]any{
		"type":        string(cfg.Type),
		"activityId":  act.ID,
		"title":       subject,
		"message":     body,
		"activityOn":  act.Date.Format(time.RFC3339),
		"generatedAt": now.Format(time.RFC3339),
	})
	itemLog.WithField("realtime_delivered", delivered).Debug("Notification dispatched")
	return nil
}

func (s *DispatchService) composeMessage(cfg *notification.Config, act *activity.Activity, acct *account.Account) (subject, body string) {
	dateStr := act.Date.In(s.opts.Location).Format("2006-01-02")
	switch cfg.Type {
	case notification.TypeConfirmationRequest:
		subject = fmt.Sprintf("Please confirm your attendance: %s", act.Title)
		body = fmt.Sprintf("Hello %s, %q takes place on %s at %s. Please confirm whether you will attend.",
			acct.DisplayName(), act.Title, dateStr, act.Place)
	default:
		subject = fmt.Sprintf("Reminder: %s", act.Title)
		body = fmt.Sprintf("Hello %s, this is a reminder that %q takes place on %s at %s.",
			acct.DisplayName(), act.Title, dateStr, act.Place)
	}
	return subject, body
}

// sendEmailWithRetry attempts delivery with exponential backoff plus a
// little jitter so a provider hiccup does not turn into a synchronized
// retry storm.
func (s *DispatchService) sendEmailWithRetry(ctx context.Context, log *logrus.Entry, msg channel.EmailMessage) error {
	if msg.To == "" {
		return fmt.Errorf("account has no email address")
	}
	var lastErr error
	for attempt := 1; attempt <= s.opts.EmailMaxAttempts; attempt++ {
		if err := s.email.Send(ctx, msg); err == nil {
			return nil
		} else {
			lastErr = err
			log.WithError(err).WithField("attempt", attempt).Warn("Email send attempt failed")
		}
		if attempt < s.opts.EmailMaxAttempts {
			s.sleep(backoffDelay(s.opts.EmailRetryBase, attempt))
		}
	}
	return lastErr
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))
	return delay + jitter
}

func nullAccountID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: true}
}
