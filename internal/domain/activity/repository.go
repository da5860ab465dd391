package activity

import (
	"context"
	"database/sql"
	"time"
)

// Repository defines the operations for persisting and retrieving Activity entities.
type Repository interface {
	Create(ctx context.Context, act *Activity) error
	GetByID(ctx context.Context, id int64) (*Activity, error)
	Update(ctx context.Context, act *Activity) error
	Delete(ctx context.Context, id int64) error
	ListByOwner(ctx context.Context, ownerID int64) ([]*Activity, error)
	// ListApprovedExcept returns approved activities not owned by the
	// given account. ownerID may be 0 for anonymous browsing.
	ListApprovedExcept(ctx context.Context, ownerID int64) ([]*Activity, error)
	// ListPromoted returns approved, promoted activities whose promotion
	// window (when set) contains now.
	ListPromoted(ctx context.Context, now time.Time) ([]*Activity, error)
	// ListByStatus returns all activities in the given moderation state.
	// An empty status lists everything.
	ListByStatus(ctx context.Context, status Status) ([]*Activity, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	SetPromotion(ctx context.Context, id int64, promoted bool, start, end sql.NullTime) error
}
