package attendance

import (
	"database/sql"
	"errors"
	"strings"
)

var (
	// ErrSelfRegistration is returned when an activity's owner tries to
	// register attendance for their own activity.
	ErrSelfRegistration = errors.New("activity owner cannot register for their own activity")
	// ErrGuestInfoRequired is returned when an unauthenticated request
	// lacks a name or an email.
	ErrGuestInfoRequired = errors.New("name and email are required for guest registration")
)

// Actor is the resolved attendance identity, ready for the uniqueness check
// and persistence. AccountID is unset for guests and for third parties
// invited by an authenticated account.
type Actor struct {
	AccountID sql.NullInt64
	Name      string
	Email     string
}

// ResolveInput carries everything the resolver needs to decide who is
// actually attending.
type ResolveInput struct {
	Authenticated   bool
	AccountID       int64
	AccountName     string
	AccountEmail    string
	ActivityOwnerID int64
	SuppliedName    string
	SuppliedEmail   string
}

// NormalizeEmail lower-cases and trims an email address. Every email
// comparison and every persisted email goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveActor applies the identity decision table:
//
//   - authenticated, name+email supplied: the account is inviting a third
//     party; the record carries the supplied name/email and no account
//     reference.
//   - authenticated, incomplete supplied info: the account itself attends,
//     with the profile name/email falling back to the supplied values.
//   - the activity owner never attends their own activity.
//   - unauthenticated: both name and email are required.
//
// Resolution happens before the uniqueness check; the returned Actor is a
// candidate, not yet persisted.
func ResolveActor(in ResolveInput) (Actor, error) {
	suppliedName := strings.TrimSpace(in.SuppliedName)
	suppliedEmail := NormalizeEmail(in.SuppliedEmail)

	if !in.Authenticated {
		if suppliedName == "" || suppliedEmail == "" {
			return Actor{}, ErrGuestInfoRequired
		}
		return Actor{Name: suppliedName, Email: suppliedEmail}, nil
	}

	if in.AccountID == in.ActivityOwnerID {
		return Actor{}, ErrSelfRegistration
	}

	if suppliedName != "" && suppliedEmail != "" {
		return Actor{Name: suppliedName, Email: suppliedEmail}, nil
	}

	name := strings.TrimSpace(in.AccountName)
	if name == "" {
		name = suppliedName
	}
	if name == "" {
		name = "Attendee"
	}
	email := NormalizeEmail(in.AccountEmail)
	if email == "" {
		email = suppliedEmail
	}
	return Actor{
		AccountID: sql.NullInt64{Int64: in.AccountID, Valid: true},
		Name:      name,
		Email:     email,
	}, nil
}
