package app

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"community_activity_backend/internal/domain/account"
	"community_activity_backend/internal/domain/activity"
	"community_activity_backend/internal/domain/attendance"
	"community_activity_backend/internal/domain/notification"
)

type dispatchFixture struct {
	svc       *DispatchService
	notifRepo *fakeNotificationRepo
	actRepo   *fakeActivityRepo
	acctRepo  *fakeAccountRepo
	attRepo   *fakeAttendanceRepo
	email     *fakeEmailSender
	push      *fakePushSender
	realtime  *fakeRealtimeSender

	now     time.Time
	sleepMu sync.Mutex
	sleeps  []time.Duration
}

func newDispatchFixture(now time.Time) *dispatchFixture {
	f := &dispatchFixture{
		notifRepo: newFakeNotificationRepo(),
		actRepo:   newFakeActivityRepo(),
		acctRepo:  newFakeAccountRepo(),
		attRepo:   newFakeAttendanceRepo(),
		email:     &fakeEmailSender{},
		push:      &fakePushSender{},
		realtime:  newFakeRealtimeSender(true),
		now:       now,
	}
	f.svc = NewDispatchService(
		f.notifRepo, f.actRepo, f.acctRepo, f.attRepo,
		f.email, f.push, f.realtime, testLogger(),
		DispatchOptions{
			BatchSize:        10,
			EmailMaxAttempts: 3,
			EmailRetryBase:   time.Millisecond,
		})
	f.svc.now = func() time.Time { return f.now }
	f.svc.sleep = func(d time.Duration) {
		f.sleepMu.Lock()
		f.sleeps = append(f.sleeps, d)
		f.sleepMu.Unlock()
	}
	return f
}

func (f *dispatchFixture) sleepCount() int {
	f.sleepMu.Lock()
	defer f.sleepMu.Unlock()
	return len(f.sleeps)
}

// seedReminder wires an account, an activity it attends and a reminder
// configuration daysBefore days ahead of the activity date.
func (f *dispatchFixture) seedReminder(activityDate time.Time, daysBefore int) (*account.Account, *activity.Activity, *notification.Config) {
	acct := f.acctRepo.add(&account.Account{
		Username:  "Pedro",
		Email:     "pedro@example.com",
		Role:      account.RoleUser,
		IsActive:  true,
		PushToken: sql.NullString{String: "device-token", Valid: true},
	})
	act := f.actRepo.add(&activity.Activity{
		Title:   "Neighborhood assembly",
		Place:   "Community hall",
		Date:    activityDate,
		OwnerID: acct.ID + 1000,
		Status:  activity.StatusApproved,
	})
	if err := f.attRepo.CreateUnique(context.Background(), &attendance.Record{
		ActivityID: act.ID,
		AccountID:  sql.NullInt64{Int64: acct.ID, Valid: true},
		Name:       acct.Username,
		Email:      acct.Email,
		Confirmed:  true,
	}); err != nil {
		panic(err)
	}
	cfg := f.notifRepo.add(&notification.Config{
		AccountID:  acct.ID,
		ActivityID: act.ID,
		DaysBefore: daysBefore,
		Type:       notification.TypeReminder,
		Active:     true,
	})
	return acct, act, cfg
}

func TestDispatchSendsWhenDue(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	acct, _, cfg := f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	if got := f.email.sentTo("pedro@example.com"); got != 1 {
		t.Errorf("emails to attendee = %d, want 1", got)
	}
	if got := f.push.sentCount(); got != 1 {
		t.Errorf("push notifications = %d, want 1", got)
	}
	if got := f.realtime.deliveredTo(acct.ID); got != 1 {
		t.Errorf("realtime deliveries = %d, want 1", got)
	}

	after := f.notifRepo.get(cfg.ID)
	if !after.LastSentAt.Valid || !after.LastSentAt.Time.Equal(now) {
		t.Errorf("LastSentAt = %+v, want claim at %v", after.LastSentAt, now)
	}
	if after.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1", after.SentCount)
	}
	if !after.Active {
		t.Error("config must stay active after a send")
	}
}

func TestDispatchIsIdempotentWithinADay(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("first RunTick() error: %v", err)
	}
	f.now = now.Add(4 * time.Hour)
	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("second RunTick() error: %v", err)
	}

	if got := f.email.sentCount(); got != 1 {
		t.Errorf("emails = %d, want exactly 1 per day", got)
	}
}

func TestDispatchSendsOnceAcrossDays(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	_, _, cfg := f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("first RunTick() error: %v", err)
	}
	f.now = now.Add(14 * time.Hour)
	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("second RunTick() error: %v", err)
	}
	// Next day the config is past its due day and must stay quiet.
	f.now = time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("third RunTick() error: %v", err)
	}

	if got := f.email.sentCount(); got != 1 {
		t.Errorf("emails = %d, want exactly 1 across the three ticks", got)
	}
	after := f.notifRepo.get(cfg.ID)
	if !after.LastSentAt.Valid || !after.LastSentAt.Time.Equal(now) {
		t.Errorf("LastSentAt = %+v, want the original send kept", after.LastSentAt)
	}
	if after.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1", after.SentCount)
	}
	if !after.Active {
		t.Error("config must stay active before the activity date")
	}
}

func TestDispatchSkipsWhenNotDue(t *testing.T) {
	// One day early: due is 2025-06-08, today is 2025-06-07.
	now := time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	_, _, cfg := f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	if got := f.email.sentCount(); got != 0 {
		t.Errorf("emails = %d, want 0", got)
	}
	after := f.notifRepo.get(cfg.ID)
	if after.LastSentAt.Valid || after.SentCount != 0 {
		t.Errorf("config was claimed while not due: %+v", after)
	}
	if !after.Active {
		t.Error("config must stay active while waiting for its day")
	}
}

func TestDispatchRollsBackClaimWhenEmailExhausted(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	_, _, cfg := f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)
	f.email.failAll = true

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	if got := f.email.attempts(); got != 3 {
		t.Errorf("email attempts = %d, want all 3 retries", got)
	}
	if got := f.sleepCount(); got != 2 {
		t.Errorf("backoff sleeps = %d, want 2", got)
	}
	if got := f.push.sentCount(); got != 0 {
		t.Error("push must not fire when the mandatory channel failed")
	}

	after := f.notifRepo.get(cfg.ID)
	if after.LastSentAt.Valid {
		t.Errorf("LastSentAt = %+v, want claim released", after.LastSentAt)
	}
	if after.SentCount != 0 {
		t.Errorf("SentCount = %d, want 0 after rollback", after.SentCount)
	}
	if !after.Active {
		t.Error("config must stay active for a later retry")
	}
}

func TestDispatchRecoversAfterTransientEmailFailure(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	_, _, cfg := f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)
	f.email.failFirst = 2

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	if got := f.email.sentCount(); got != 1 {
		t.Errorf("delivered emails = %d, want 1 on the third attempt", got)
	}
	after := f.notifRepo.get(cfg.ID)
	if !after.LastSentAt.Valid || after.SentCount != 1 {
		t.Errorf("claim not held after recovery: %+v", after)
	}
}

func TestDispatchDeactivatesPastActivity(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	_, _, cfg := f.seedReminder(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC), 2)

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	if got := f.email.sentCount(); got != 0 {
		t.Errorf("emails = %d, want 0 for a past activity", got)
	}
	if after := f.notifRepo.get(cfg.ID); after.Active {
		t.Error("config for a past activity must be deactivated")
	}
}

func TestDispatchDeactivatesWhenNoLongerAttending(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	acct, act, cfg := f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)

	// The attendee cancelled after setting up the reminder.
	rec, err := f.attRepo.FindByIdentity(context.Background(), act.ID,
		sql.NullInt64{Int64: acct.ID, Valid: true}, acct.Email)
	if err != nil {
		t.Fatalf("FindByIdentity() error: %v", err)
	}
	if _, err := f.attRepo.DeleteByID(context.Background(), rec.ID); err != nil {
		t.Fatalf("DeleteByID() error: %v", err)
	}

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	if got := f.email.sentCount(); got != 0 {
		t.Errorf("emails = %d, want 0 for a cancelled attendee", got)
	}
	if after := f.notifRepo.get(cfg.ID); after.Active {
		t.Error("config must be deactivated once attendance is gone")
	}
}

func TestDispatchOptionalChannelFailuresKeepTheClaim(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	_, _, cfg := f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)
	f.push.err = context.DeadlineExceeded
	f.realtime.connected = false

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	if got := f.email.sentCount(); got != 1 {
		t.Errorf("emails = %d, want 1", got)
	}
	after := f.notifRepo.get(cfg.ID)
	if !after.LastSentAt.Valid || after.SentCount != 1 {
		t.Errorf("claim lost to an optional channel failure: %+v", after)
	}
}

func TestDispatchSkipsBrokenItemsAndContinues(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)

	// A second config pointing at an activity that no longer exists.
	orphaned := f.notifRepo.add(&notification.Config{
		AccountID:  999,
		ActivityID: 999,
		DaysBefore: 2,
		Type:       notification.TypeReminder,
		Active:     true,
	})

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	if got := f.email.sentCount(); got != 1 {
		t.Errorf("emails = %d, want the healthy config delivered", got)
	}
	if after := f.notifRepo.get(orphaned.ID); after.LastSentAt.Valid {
		t.Error("orphaned config must not be claimed")
	}
}

func TestDispatchConfirmationRequestMessage(t *testing.T) {
	now := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	f := newDispatchFixture(now)
	_, _, cfg := f.seedReminder(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), 2)
	stored := f.notifRepo.get(cfg.ID)
	stored.Type = notification.TypeConfirmationRequest
	f.notifRepo.add(stored)

	if err := f.svc.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick() error: %v", err)
	}

	f.email.mu.Lock()
	defer f.email.mu.Unlock()
	if len(f.email.sent) != 1 {
		t.Fatalf("emails = %d, want 1", len(f.email.sent))
	}
	if subject := f.email.sent[0].Subject; subject != "Please confirm your attendance: Neighborhood assembly" {
		t.Errorf("subject = %q, want confirmation request wording", subject)
	}
}

func TestBackoffDelayGrows(t *testing.T) {
	base := 100 * time.Millisecond
	first := backoffDelay(base, 1)
	second := backoffDelay(base, 2)
	third := backoffDelay(base, 3)

	if first < base || first > base+base/2 {
		t.Errorf("attempt 1 delay = %v, want within [%v, %v]", first, base, base+base/2)
	}
	if second < 2*base || third < 4*base {
		t.Errorf("delays do not grow exponentially: %v, %v, %v", first, second, third)
	}
}
