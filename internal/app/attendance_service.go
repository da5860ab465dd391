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
	idb "community_activity_backend/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// Application-level errors surfaced to the transport layer.
var (
	ErrAlreadyRegistered = fmt.Errorf("already registered for this activity")
	ErrForbidden         = fmt.Errorf("not authorized to perform this action")
	ErrIdentityRequired  = fmt.Errorf("an account or an email is required to identify the attendee")
)

const confirmationEmailTimeout = 30 * time.Second

// AttendanceService owns the attendance ledger: identity resolution,
// uniqueness enforcement, cancellation and owner-side management.
type AttendanceService struct {
	attendanceRepo attendance.Repository
	activityRepo   activity.Repository
	accountRepo    account.Repository
	email          channel.EmailSender
	logger         *logrus.Logger
}

func NewAttendanceService(
	ar attendance.Repository,
	actr activity.Repository,
	accr account.Repository,
	email channel.EmailSender,
	logger *logrus.Logger,
) *AttendanceService {
	return &AttendanceService{
		attendanceRepo: ar,
		activityRepo:   actr,
		accountRepo:    accr,
		email:          email,
		logger:         logger,
	}
}

// ConfirmInput is one attendance confirmation request. AccountID is 0 for
// unauthenticated callers.
type ConfirmInput struct {
	ActivityID int64
	AccountID  int64
	Name       string
	Email      string
}

// ConfirmResult reports the persisted record plus whether a confirmation
// email was queued. Email delivery is best-effort and never fails the
// confirmation.
type ConfirmResult struct {
	Record      *attendance.Record
	EmailQueued bool
	Note        string
}

// Confirm resolves the actor identity, enforces the one-record-per-identity
// invariant and persists the record. The duplicate check and the insert are
// atomic in the repository; a concurrent loser gets ErrAlreadyRegistered.
func (s *AttendanceService) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	act, err := s.activityRepo.GetByID(ctx, in.ActivityID)
	if err != nil {
		return nil, err
	}

	resolveIn := attendance.ResolveInput{
		Authenticated:   in.AccountID != 0,
		AccountID:       in.AccountID,
		ActivityOwnerID: act.OwnerID,
		SuppliedName:    in.Name,
		SuppliedEmail:   in.Email,
	}
	if in.AccountID != 0 {
		acct, err := s.accountRepo.GetByID(ctx, in.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to load confirming account: %w", err)
		}
		resolveIn.AccountName = acct.Username
		resolveIn.AccountEmail = acct.Email
	}

	actor, err := attendance.ResolveActor(resolveIn)
	if err != nil {
		return nil, err
	}

	rec := &attendance.Record{
		ActivityID: in.ActivityID,
		AccountID:  actor.AccountID,
		Name:       actor.Name,
		Email:      actor.Email,
		Confirmed:  true,
	}
	if err := s.attendanceRepo.CreateUnique(ctx, rec); err != nil {
		if err == idb.ErrDuplicateAttendance {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to persist attendance: %w", err)
	}

	result := &ConfirmResult{Record: rec}
	if rec.Email == "" {
		result.Note = "no email on record, confirmation message skipped"
		return result, nil
	}

	// Best-effort confirmation email, off the request path. A channel
	// failure is logged, never rolled back into the attendance record.
	msg := channel.EmailMessage{
		To:      rec.Email,
		Subject: fmt.Sprintf("Attendance confirmed: %s", act.Title),
		Text: fmt.Sprintf("Hello %s, you are confirmed for %q on %s at %s. See you there!",
			rec.Name, act.Title, act.Date.Format("2006-01-02"), act.Place),
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), confirmationEmailTimeout)
		defer cancel()
		if err := s.email.Send(sendCtx, msg); err != nil {
			s.logger.WithError(err).WithField("to", msg.To).Warn("Confirmation email failed")
		}
	}()
	result.EmailQueued = true
	return result, nil
}

// Cancel removes the caller's own attendance, matching by account reference
// or email so an authenticated user who registered as a guest can still
// cancel. The activity's derived attendee counter is reconciled best-effort
// with a recount as the repair pass.
func (s *AttendanceService) Cancel(ctx context.Context, activityID, accountID int64, email string) error {
	accountRef, lookupEmail, err := s.resolveLookupIdentity(ctx, accountID, email)
	if err != nil {
		return err
	}

	rec, err := s.attendanceRepo.FindByIdentity(ctx, activityID, accountRef, lookupEmail)
	if err != nil {
		return err
	}

	deletedFrom, err := s.attendanceRepo.DeleteByID(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to delete attendance record: %w", err)
	}
	s.reconcileAttendeeCount(ctx, deletedFrom)
	return nil
}

// Remove deletes another attendee's record. Only the activity owner may do
// this.
func (s *AttendanceService) Remove(ctx context.Context, recordID, requestingAccountID int64) error {
	rec, err := s.attendanceRepo.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	act, err := s.activityRepo.GetByID(ctx, rec.ActivityID)
	if err != nil {
		return err
	}
	if act.OwnerID != requestingAccountID {
		return ErrForbidden
	}

	deletedFrom, err := s.attendanceRepo.DeleteByID(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to delete attendance record: %w", err)
	}
	s.reconcileAttendeeCount(ctx, deletedFrom)
	return nil
}

// UpdateContact corrects a record's name/email. Only the activity owner may
// do this; empty fields keep their current value.
func (s *AttendanceService) UpdateContact(ctx context.Context, recordID, requestingAccountID int64, name, email string) (*attendance.Record, error) {
	rec, err := s.attendanceRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	act, err := s.activityRepo.GetByID(ctx, rec.ActivityID)
	if err != nil {
		return nil, err
	}
	if act.OwnerID != requestingAccountID {
		return nil, ErrForbidden
	}

	if name == "" {
		name = rec.Name
	}
	if email == "" {
		email = rec.Email
	} else {
		email = attendance.NormalizeEmail(email)
	}
	if err := s.attendanceRepo.UpdateContact(ctx, rec.ID, name, email); err != nil {
		if err == idb.ErrDuplicateAttendance {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to update attendance contact: %w", err)
	}
	rec.Name = name
	rec.Email = email
	return rec, nil
}

// ListAttendees returns all records for an activity. Only the owner may
// list them.
func (s *AttendanceService) ListAttendees(ctx context.Context, activityID, requestingAccountID int64) ([]*attendance.Record, error) {
	act, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if act.OwnerID != requestingAccountID {
		return nil, ErrForbidden
	}
	return s.attendanceRepo.ListByActivity(ctx, activityID)
}

// CheckMembership is the idempotent read used to render attendance state.
// It never mutates anything.
func (s *AttendanceService) CheckMembership(ctx context.Context, activityID, accountID int64, email string) (*attendance.Record, bool, error) {
	accountRef, lookupEmail, err := s.resolveLookupIdentity(ctx, accountID, email)
	if err != nil {
		return nil, false, err
	}
	rec, err := s.attendanceRepo.FindByIdentity(ctx, activityID, accountRef, lookupEmail)
	if err != nil {
		if err == idb.ErrAttendanceNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

// ListForAccount returns every attendance the account holds, matched by
// account reference or by the account's own email.
func (s *AttendanceService) ListForAccount(ctx context.Context, accountID int64) ([]*attendance.Record, error) {
	acct, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.attendanceRepo.ListByIdentity(ctx, acct.ID, attendance.NormalizeEmail(acct.Email))
}

// resolveLookupIdentity builds the (account, email) pair used to locate an
// existing record. For authenticated callers the account's own email joins
// the lookup so guest-style registrations made under it still match.
func (s *AttendanceService) resolveLookupIdentity(ctx context.Context, accountID int64, email string) (sql.NullInt64, string, error) {
	email = attendance.NormalizeEmail(email)
	if accountID == 0 {
		if email == "" {
			return sql.NullInt64{}, "", ErrIdentityRequired
		}
		return sql.NullInt64{}, email, nil
	}
	acct, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return sql.NullInt64{}, "", fmt.Errorf("failed to load account for identity lookup: %w", err)
	}
	if email == "" {
		email = attendance.NormalizeEmail(acct.Email)
	}
	return sql.NullInt64{Int64: acct.ID, Valid: true}, email, nil
}

// reconcileAttendeeCount decrements the derived counter and, if that fails,
// falls back to a full recount. Neither failure is fatal to the caller.
func (s *AttendanceService) reconcileAttendeeCount(ctx context.Context, activityID int64) {
	err := s.attendanceRepo.AdjustAttendeeCount(ctx, activityID, -1)
	if err == nil {
		return
	}
	s.logger.WithError(err).WithField("activity_id", activityID).Warn("Attendee count adjustment failed, attempting rebuild")
	if err := s.attendanceRepo.RebuildAttendeeCount(ctx, activityID); err != nil {
		s.logger.WithError(err).WithField("activity_id", activityID).Warn("Attendee count rebuild failed")
	}
}
