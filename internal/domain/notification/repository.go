package notification

import (
	"context"
	"database/sql"
	"time"
)

// Repository defines operations for notification configurations, including
// the conditional-update primitives the dispatch engine relies on for
// at-most-once sends.
type Repository interface {
	// Upsert creates the configuration or, when one already exists for the
	// same (account, activity, daysBefore), updates its type and
	// reactivates it. Reports whether a new row was created.
	Upsert(ctx context.Context, cfg *Config) (created bool, err error)
	GetByID(ctx context.Context, id int64) (*Config, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*Config, error)
	Delete(ctx context.Context, id int64) error

	// ListDue returns active configurations not yet sent today, i.e. with
	// last_sent_at null or before startOfToday.
	ListDue(ctx context.Context, startOfToday time.Time) ([]*Config, error)
	// ClaimSend atomically sets last_sent_at=now and increments sent_count,
	// but only if the configuration is still active and was not already
	// claimed today. Reports whether this caller won the claim.
	ClaimSend(ctx context.Context, id int64, now, startOfToday time.Time) (bool, error)
	// ReleaseClaim undoes a claim after the mandatory channel failed:
	// restores the previous last_sent_at and decrements sent_count.
	ReleaseClaim(ctx context.Context, id int64, prevLastSent sql.NullTime) error
	// Deactivate permanently disables a configuration.
	Deactivate(ctx context.Context, id int64) error
}
