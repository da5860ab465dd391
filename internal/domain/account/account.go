package account

import (
	"database/sql"
	"time"
)

// Role controls what an account may do. Admin routes are gated on it.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Account represents a registered user of the platform.
type Account struct {
	ID                int64
	Username          string
	Email             string // stored lower-cased and trimmed
	PasswordHash      string
	Role              Role
	IsActive          bool
	IsVerified        bool
	VerificationToken sql.NullString // cleared once the email is verified
	PushToken         sql.NullString // FCM device token, set by the client app
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DisplayName returns the name used when addressing the account in
// notifications.
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return a.Username
	}
	return a.Email
}
