package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Sentinel errors shared by the Postgres repositories. Application services
// compare against these with errors.Is.
var (
	ErrAccountNotFound    = fmt.Errorf("account not found")
	ErrDuplicateEmail     = fmt.Errorf("account with this email already exists")
	ErrActivityNotFound   = fmt.Errorf("activity not found")
	ErrAttendanceNotFound = fmt.Errorf("attendance record not found")
	// ErrDuplicateAttendance signals the (account, activity) or
	// (email, activity) uniqueness constraint. The loser of a concurrent
	// registration race observes this, not a generic storage error.
	ErrDuplicateAttendance = fmt.Errorf("attendance record already exists for this identity and activity")
	ErrConfigNotFound      = fmt.Errorf("notification configuration not found")
)

// isUniqueViolation reports whether err is a Postgres unique_violation
// (23505), optionally restricted to a named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
