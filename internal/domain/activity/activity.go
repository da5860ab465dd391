package activity

import (
	"database/sql"
	"time"
)

// Status is the moderation state of an activity. Only approved activities
// are visible to accounts other than the owner.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Activity is a scheduled community event owned by one account.
type Activity struct {
	ID          int64
	Title       string
	Description string
	Place       string
	Date        time.Time
	OwnerID     int64
	Status      Status
	IsPromoted  bool
	PromoStart  sql.NullTime
	PromoEnd    sql.NullTime
	// AttendeeCount is a derived counter maintained by the attendance
	// ledger. It is a cache over attendance_records, never the source
	// of truth, and can be rebuilt by recounting.
	AttendeeCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
