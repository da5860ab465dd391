package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"community_activity_backend/internal/domain/account"
	"community_activity_backend/internal/domain/activity"
	"community_activity_backend/internal/domain/attendance"
	"community_activity_backend/internal/domain/channel"
	"community_activity_backend/internal/domain/notification"
	idb "community_activity_backend/internal/infra/database"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeAccountRepo is an in-memory account.Repository.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*account.Account
	nextID   int64
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[int64]*account.Account), nextID: 1}
}

func (r *fakeAccountRepo) add(acct *account.Account) *account.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acct.ID == 0 {
		acct.ID = r.nextID
		r.nextID++
	}
	cp := *acct
	r.accounts[acct.ID] = &cp
	return acct
}

func (r *fakeAccountRepo) Create(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == acct.Email {
			return idb.ErrDuplicateEmail
		}
	}
	acct.ID = r.nextID
	r.nextID++
	cp := *acct
	r.accounts[acct.ID] = &cp
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id int64) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return nil, idb.ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (r *fakeAccountRepo) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acct := range r.accounts {
		if acct.Email == email {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, idb.ErrAccountNotFound
}

func (r *fakeAccountRepo) GetByVerificationToken(_ context.Context, token string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acct := range r.accounts {
		if acct.VerificationToken.Valid && acct.VerificationToken.String == token {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, idb.ErrAccountNotFound
}

func (r *fakeAccountRepo) Update(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[acct.ID]; !ok {
		return idb.ErrAccountNotFound
	}
	cp := *acct
	r.accounts[acct.ID] = &cp
	return nil
}

// fakeActivityRepo is an in-memory activity.Repository.
type fakeActivityRepo struct {
	mu         sync.Mutex
	activities map[int64]*activity.Activity
	nextID     int64
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{activities: make(map[int64]*activity.Activity), nextID: 1}
}

func (r *fakeActivityRepo) add(act *activity.Activity) *activity.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if act.ID == 0 {
		act.ID = r.nextID
		r.nextID++
	}
	cp := *act
	r.activities[act.ID] = &cp
	return act
}

func (r *fakeActivityRepo) Create(_ context.Context, act *activity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	act.ID = r.nextID
	r.nextID++
	act.CreatedAt = time.Now()
	cp := *act
	r.activities[act.ID] = &cp
	return nil
}

func (r *fakeActivityRepo) GetByID(_ context.Context, id int64) (*activity.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	act, ok := r.activities[id]
	if !ok {
		return nil, idb.ErrActivityNotFound
	}
	cp := *act
	return &cp, nil
}

func (r *fakeActivityRepo) Update(_ context.Context, act *activity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activities[act.ID]; !ok {
		return idb.ErrActivityNotFound
	}
	cp := *act
	r.activities[act.ID] = &cp
	return nil
}

func (r *fakeActivityRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activities[id]; !ok {
		return idb.ErrActivityNotFound
	}
	delete(r.activities, id)
	return nil
}

func (r *fakeActivityRepo) ListByOwner(_ context.Context, ownerID int64) ([]*activity.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*activity.Activity
	for _, act := range r.activities {
		if act.OwnerID == ownerID {
			cp := *act
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeActivityRepo) ListApprovedExcept(_ context.Context, ownerID int64) ([]*activity.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*activity.Activity
	for _, act := range r.activities {
		if act.Status == activity.StatusApproved && act.OwnerID != ownerID {
			cp := *act
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeActivityRepo) ListPromoted(_ context.Context, now time.Time) ([]*activity.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*activity.Activity
	for _, act := range r.activities {
		if act.Status != activity.StatusApproved || !act.IsPromoted {
			continue
		}
		if act.PromoStart.Valid && now.Before(act.PromoStart.Time) {
			continue
		}
		if act.PromoEnd.Valid && now.After(act.PromoEnd.Time) {
			continue
		}
		cp := *act
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeActivityRepo) ListByStatus(_ context.Context, status activity.Status) ([]*activity.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*activity.Activity
	for _, act := range r.activities {
		if status == "" || act.Status == status {
			cp := *act
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeActivityRepo) SetStatus(_ context.Context, id int64, status activity.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	act, ok := r.activities[id]
	if !ok {
		return idb.ErrActivityNotFound
	}
	act.Status = status
	return nil
}

func (r *fakeActivityRepo) SetPromotion(_ context.Context, id int64, promoted bool, start, end sql.NullTime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	act, ok := r.activities[id]
	if !ok {
		return idb.ErrActivityNotFound
	}
	act.IsPromoted = promoted
	act.PromoStart = start
	act.PromoEnd = end
	return nil
}

// fakeAttendanceRepo is an in-memory attendance.Repository. CreateUnique
// holds one lock across the duplicate check and the insert, mirroring the
// atomicity the real repository gets from its transaction and unique
// indexes.
type fakeAttendanceRepo struct {
	mu        sync.Mutex
	records   map[int64]*attendance.Record
	counts    map[int64]int
	nextID    int64
	adjustErr error
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{
		records: make(map[int64]*attendance.Record),
		counts:  make(map[int64]int),
		nextID:  1,
	}
}

func matchesIdentity(rec *attendance.Record, accountID sql.NullInt64, email string) bool {
	if accountID.Valid && rec.AccountID.Valid && rec.AccountID.Int64 == accountID.Int64 {
		return true
	}
	if email != "" && rec.Email == email {
		return true
	}
	return false
}

func (r *fakeAttendanceRepo) CreateUnique(_ context.Context, rec *attendance.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.ActivityID != rec.ActivityID {
			continue
		}
		if matchesIdentity(existing, rec.AccountID, rec.Email) {
			return idb.ErrDuplicateAttendance
		}
	}
	rec.ID = r.nextID
	r.nextID++
	rec.CreatedAt = time.Now()
	cp := *rec
	r.records[rec.ID] = &cp
	r.counts[rec.ActivityID]++
	return nil
}

func (r *fakeAttendanceRepo) GetByID(_ context.Context, id int64) (*attendance.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, idb.ErrAttendanceNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeAttendanceRepo) FindByIdentity(_ context.Context, activityID int64, accountID sql.NullInt64, email string) (*attendance.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ActivityID == activityID && matchesIdentity(rec, accountID, email) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, idb.ErrAttendanceNotFound
}

func (r *fakeAttendanceRepo) ExistsForIdentity(_ context.Context, activityID int64, accountID sql.NullInt64, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ActivityID == activityID && matchesIdentity(rec, accountID, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAttendanceRepo) ListByActivity(_ context.Context, activityID int64) ([]*attendance.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*attendance.Record
	for _, rec := range r.records {
		if rec.ActivityID == activityID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAttendanceRepo) ListByIdentity(_ context.Context, accountID int64, email string) ([]*attendance.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := sql.NullInt64{Int64: accountID, Valid: accountID != 0}
	var out []*attendance.Record
	for _, rec := range r.records {
		if matchesIdentity(rec, ref, email) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAttendanceRepo) UpdateContact(_ context.Context, id int64, name, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return idb.ErrAttendanceNotFound
	}
	rec.Name = name
	rec.Email = email
	return nil
}

func (r *fakeAttendanceRepo) DeleteByID(_ context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return 0, idb.ErrAttendanceNotFound
	}
	delete(r.records, id)
	return rec.ActivityID, nil
}

func (r *fakeAttendanceRepo) AdjustAttendeeCount(_ context.Context, activityID int64, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adjustErr != nil {
		return r.adjustErr
	}
	r.counts[activityID] += delta
	if r.counts[activityID] < 0 {
		r.counts[activityID] = 0
	}
	return nil
}

func (r *fakeAttendanceRepo) RebuildAttendeeCount(_ context.Context, activityID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.ActivityID == activityID {
			n++
		}
	}
	r.counts[activityID] = n
	return nil
}

func (r *fakeAttendanceRepo) CountByActivity(_ context.Context, activityID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.ActivityID == activityID {
			n++
		}
	}
	return n, nil
}

func (r *fakeAttendanceRepo) cachedCount(activityID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[activityID]
}

// fakeNotificationRepo is an in-memory notification.Repository with the
// same claim semantics as the SQL implementation.
type fakeNotificationRepo struct {
	mu      sync.Mutex
	configs map[int64]*notification.Config
	nextID  int64
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{configs: make(map[int64]*notification.Config), nextID: 1}
}

func (r *fakeNotificationRepo) add(cfg *notification.Config) *notification.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.ID == 0 {
		cfg.ID = r.nextID
		r.nextID++
	}
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return cfg
}

func (r *fakeNotificationRepo) get(id int64) *notification.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil
	}
	cp := *cfg
	return &cp
}

func (r *fakeNotificationRepo) Upsert(_ context.Context, cfg *notification.Config) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.configs {
		if existing.AccountID == cfg.AccountID &&
			existing.ActivityID == cfg.ActivityID &&
			existing.DaysBefore == cfg.DaysBefore {
			existing.Type = cfg.Type
			existing.Active = true
			*cfg = *existing
			return false, nil
		}
	}
	cfg.ID = r.nextID
	r.nextID++
	cfg.Active = true
	cfg.CreatedAt = time.Now()
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return true, nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id int64) (*notification.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil, idb.ErrConfigNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (r *fakeNotificationRepo) ListByAccount(_ context.Context, accountID int64) ([]*notification.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Config
	for _, cfg := range r.configs {
		if cfg.AccountID == accountID {
			cp := *cfg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[id]; !ok {
		return idb.ErrConfigNotFound
	}
	delete(r.configs, id)
	return nil
}

func (r *fakeNotificationRepo) ListDue(_ context.Context, startOfToday time.Time) ([]*notification.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Config
	for _, cfg := range r.configs {
		if !cfg.Active {
			continue
		}
		if cfg.LastSentAt.Valid && !cfg.LastSentAt.Time.Before(startOfToday) {
			continue
		}
		cp := *cfg
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeNotificationRepo) ClaimSend(_ context.Context, id int64, now, startOfToday time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return false, idb.ErrConfigNotFound
	}
	if !cfg.Active {
		return false, nil
	}
	if cfg.LastSentAt.Valid && !cfg.LastSentAt.Time.Before(startOfToday) {
		return false, nil
	}
	cfg.LastSentAt = sql.NullTime{Time: now, Valid: true}
	cfg.SentCount++
	return true, nil
}

func (r *fakeNotificationRepo) ReleaseClaim(_ context.Context, id int64, prevLastSent sql.NullTime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return idb.ErrConfigNotFound
	}
	cfg.LastSentAt = prevLastSent
	if cfg.SentCount > 0 {
		cfg.SentCount--
	}
	return nil
}

func (r *fakeNotificationRepo) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return idb.ErrConfigNotFound
	}
	cfg.Active = false
	return nil
}

// fakeEmailSender records sent messages and can fail the first N sends or
// all of them.
type fakeEmailSender struct {
	mu        sync.Mutex
	sent      []channel.EmailMessage
	failFirst int
	failAll   bool
	calls     int
}

func (f *fakeEmailSender) Send(_ context.Context, msg channel.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll || f.calls <= f.failFirst {
		return fmt.Errorf("smtp unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmailSender) sentTo(email string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, msg := range f.sent {
		if msg.To == email {
			n++
		}
	}
	return n
}

func (f *fakeEmailSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeEmailSender) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePushSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakePushSender) Send(_ context.Context, token string, _ channel.PushNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, token)
	return nil
}

func (f *fakePushSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRealtimeSender struct {
	mu        sync.Mutex
	payloads  map[int64][]any
	connected bool
}

func newFakeRealtimeSender(connected bool) *fakeRealtimeSender {
	return &fakeRealtimeSender{payloads: make(map[int64][]any), connected: connected}
}

func (f *fakeRealtimeSender) SendToAccount(accountID int64, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return false
	}
	f.payloads[accountID] = append(f.payloads[accountID], payload)
	return true
}

func (f *fakeRealtimeSender) deliveredTo(accountID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads[accountID])
}
