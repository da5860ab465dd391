package notification

import (
	"database/sql"
	"time"
)

// Type distinguishes what kind of message a configuration produces.
type Type string

const (
	TypeReminder            Type = "reminder"
	TypeConfirmationRequest Type = "confirmation_request"
)

// Valid reports whether t is a known configuration type.
func (t Type) Valid() bool {
	return t == TypeReminder || t == TypeConfirmationRequest
}

// Config is a per-account, per-activity reminder policy. A user may stack
// several lead times for one activity but not duplicate one: uniqueness is
// on (account, activity, daysBefore).
//
// LastSentAt and SentCount are the dispatch engine's send state. Active
// turns false permanently once the activity date has passed or the account
// is no longer attending; reactivation requires recreating the config.
type Config struct {
	ID         int64
	AccountID  int64
	ActivityID int64
	DaysBefore int
	Type       Type
	LastSentAt sql.NullTime
	SentCount  int
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
