package attendance

import (
	"context"
	"database/sql"
)

// Repository defines operations on the attendance ledger.
//
// CreateUnique must make the duplicate check and the insert atomic: two
// concurrent registrations for the same identity and activity must resolve
// to exactly one record, with the loser observing a duplicate error rather
// than a generic storage error.
type Repository interface {
	CreateUnique(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id int64) (*Record, error)
	// FindByIdentity locates the record for an account reference or an
	// email within one activity. Either accountID or email may be absent;
	// a record matches when either key matches.
	FindByIdentity(ctx context.Context, activityID int64, accountID sql.NullInt64, email string) (*Record, error)
	// ExistsForIdentity is the read-only membership probe. Never mutates.
	ExistsForIdentity(ctx context.Context, activityID int64, accountID sql.NullInt64, email string) (bool, error)
	ListByActivity(ctx context.Context, activityID int64) ([]*Record, error)
	// ListByIdentity returns every record held by an account or its email
	// across all activities.
	ListByIdentity(ctx context.Context, accountID int64, email string) ([]*Record, error)
	UpdateContact(ctx context.Context, id int64, name, email string) error
	// DeleteByID removes a record and reports which activity it belonged to.
	DeleteByID(ctx context.Context, id int64) (activityID int64, err error)

	// AdjustAttendeeCount applies a delta to the activity's derived
	// attendee counter. RebuildAttendeeCount recounts from the ledger and
	// overwrites the counter; it is the repair pass when an adjustment
	// fails or drifts.
	AdjustAttendeeCount(ctx context.Context, activityID int64, delta int) error
	RebuildAttendeeCount(ctx context.Context, activityID int64) error
	CountByActivity(ctx context.Context, activityID int64) (int, error)
}
