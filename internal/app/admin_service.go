package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"community_activity_backend/internal/domain/account"
	"community_activity_backend/internal/domain/activity"
	"community_activity_backend/internal/domain/attendance"
	"community_activity_backend/internal/domain/channel"

	"github.com/sirupsen/logrus"
)

const moderationEmailTimeout = 30 * time.Second

// AdminService covers moderation: approving/rejecting activities,
// promotion windows and ledger-wide attendance oversight. Role gating
// happens at the transport layer; these methods assume an authorized
// caller.
type AdminService struct {
	activityRepo   activity.Repository
	attendanceRepo attendance.Repository
	accountRepo    account.Repository
	email          channel.EmailSender
	realtime       channel.RealtimeSender
	logger         *logrus.Logger
}

func NewAdminService(
	actr activity.Repository,
	ar attendance.Repository,
	accr account.Repository,
	email channel.EmailSender,
	realtime channel.RealtimeSender,
	logger *logrus.Logger,
) *AdminService {
	return &AdminService{
		activityRepo:   actr,
		attendanceRepo: ar,
		accountRepo:    accr,
		email:          email,
		realtime:       realtime,
		logger:         logger,
	}
}

func (s *AdminService) ListActivities(ctx context.Context, status activity.Status) ([]*activity.Activity, error) {
	return s.activityRepo.ListByStatus(ctx, status)
}

// Approve moves an activity to the approved state and notifies the owner
// best-effort via email and the realtime channel.
func (s *AdminService) Approve(ctx context.Context, activityID int64) error {
	return s.moderate(ctx, activityID, activity.StatusApproved, "")
}

// Reject moves an activity to the rejected state. The reason, when given,
// is included in the owner notification.
func (s *AdminService) Reject(ctx context.Context, activityID int64, reason string) error {
	return s.moderate(ctx, activityID, activity.StatusRejected, reason)
}

func (s *AdminService) moderate(ctx context.Context, activityID int64, status activity.Status, reason string) error {
	act, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return err
	}
	if err := s.activityRepo.SetStatus(ctx, activityID, status); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"activity_id": activityID, "status": status}).Info("Activity moderated")

	owner, err := s.accountRepo.GetByID(ctx, act.OwnerID)
	if err != nil {
		s.logger.WithError(err).WithField("owner_id", act.OwnerID).Warn("Could not load owner for moderation notice")
		return nil
	}

	var subject, body string
	if status == activity.StatusApproved {
		subject = fmt.Sprintf("Your activity was approved: %s", act.Title)
		body = fmt.Sprintf("Hello %s, your activity %q has been approved and is now visible to the community.",
			owner.DisplayName(), act.Title)
	} else {
		subject = fmt.Sprintf("Your activity was rejected: %s", act.Title)
		body = fmt.Sprintf("Hello %s, your activity %q was rejected.", owner.DisplayName(), act.Title)
		if reason != "" {
			body += " Reason: " + reason
		}
	}

	// Owner notification is informational; a channel failure never undoes
	// the moderation decision.
	if owner.Email != "" {
		msg := channel.EmailMessage{To: owner.Email, Subject: subject, Text: body}
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), moderationEmailTimeout)
			defer cancel()
			if err := s.email.Send(sendCtx, msg); err != nil {
				s.logger.WithError(err).WithField("to", msg.To).Warn("Moderation email failed")
			}
		}()
	}
	s.realtime.SendToAccount(owner.ID, map[string]any{
		"type":       "moderation",
		"activityId": act.ID,
		"status":     string(status),
		"message":    body,
	})
	return nil
}

// SetPromotion toggles an activity's promotion flag and window.
func (s *AdminService) SetPromotion(ctx context.Context, activityID int64, promoted bool, start, end *time.Time) error {
	var nullStart, nullEnd sql.NullTime
	if start != nil {
		nullStart = sql.NullTime{Time: *start, Valid: true}
	}
	if end != nil {
		nullEnd = sql.NullTime{Time: *end, Valid: true}
	}
	return s.activityRepo.SetPromotion(ctx, activityID, promoted, nullStart, nullEnd)
}

// ActivityAttendance is one row of the attendance overview.
type ActivityAttendance struct {
	Activity  *activity.Activity
	Attendees int
}

// AttendanceOverview reports per-activity attendee counts straight from
// the ledger. When a cached counter has drifted it is rebuilt in passing.
func (s *AdminService) AttendanceOverview(ctx context.Context) ([]ActivityAttendance, error) {
	activities, err := s.activityRepo.ListByStatus(ctx, "")
	if err != nil {
		return nil, err
	}
	overview := make([]ActivityAttendance, 0, len(activities))
	for _, act := range activities {
		count, err := s.attendanceRepo.CountByActivity(ctx, act.ID)
		if err != nil {
			return nil, err
		}
		if count != act.AttendeeCount {
			s.logger.WithFields(logrus.Fields{
				"activity_id": act.ID,
				"cached":      act.AttendeeCount,
				"actual":      count,
			}).Warn("Attendee counter drifted, rebuilding")
			if err := s.attendanceRepo.RebuildAttendeeCount(ctx, act.ID); err != nil {
				s.logger.WithError(err).WithField("activity_id", act.ID).Warn("Attendee count rebuild failed")
			}
		}
		overview = append(overview, ActivityAttendance{Activity: act, Attendees: count})
	}
	return overview, nil
}

// RemoveAttendance deletes any attendance record, regardless of activity
// ownership.
func (s *AdminService) RemoveAttendance(ctx context.Context, recordID int64) error {
	activityID, err := s.attendanceRepo.DeleteByID(ctx, recordID)
	if err != nil {
		return err
	}
	if err := s.attendanceRepo.AdjustAttendeeCount(ctx, activityID, -1); err != nil {
		s.logger.WithError(err).WithField("activity_id", activityID).Warn("Attendee count adjustment failed")
		if err := s.attendanceRepo.RebuildAttendeeCount(ctx, activityID); err != nil {
			s.logger.WithError(err).WithField("activity_id", activityID).Warn("Attendee count rebuild failed")
		}
	}
	return nil
}

// SetAccountActive enables or disables an account.
func (s *AdminService) SetAccountActive(ctx context.Context, accountID int64, active bool) error {
	acct, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	acct.IsActive = active
	return s.accountRepo.Update(ctx, acct)
}
