package attendance

import (
	"database/sql"
	"time"
)

// Record is one identity's commitment to one activity. The identity is
// either an account reference or a bare name/email pair (a guest). For a
// given activity at most one record may exist per account and at most one
// per email.
type Record struct {
	ID         int64
	ActivityID int64
	AccountID  sql.NullInt64 // unset for guest registrations
	Name       string
	Email      string // lower-cased and trimmed; may be empty for account actors without a profile email
	Confirmed  bool
	CreatedAt  time.Time
}
