package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"community_activity_backend/internal/app"
	"community_activity_backend/internal/domain/account"
	"community_activity_backend/internal/domain/activity"
	"community_activity_backend/internal/domain/attendance"
	"community_activity_backend/internal/domain/notification"
	idb "community_activity_backend/internal/infra/database"
)

// writeError maps service errors onto HTTP statuses. Anything unmapped is
// a 500 with a generic body so internals never leak to clients.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, idb.ErrAccountNotFound),
		errors.Is(err, idb.ErrActivityNotFound),
		errors.Is(err, idb.ErrAttendanceNotFound),
		errors.Is(err, idb.ErrConfigNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrAlreadyRegistered),
		errors.Is(err, idb.ErrDuplicateEmail),
		errors.Is(err, app.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrAccountDisabled),
		errors.Is(err, app.ErrAccountNotVerified):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrSelfRegistration),
		errors.Is(err, attendance.ErrGuestInfoRequired),
		errors.Is(err, app.ErrIdentityRequired),
		errors.Is(err, app.ErrInvalidActivity),
		errors.Is(err, app.ErrInvalidDaysBefore),
		errors.Is(err, app.ErrInvalidNotifType),
		errors.Is(err, app.ErrWeakPassword),
		errors.Is(err, app.ErrInvalidVerifyToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

type activityView struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Place         string     `json:"place"`
	Date          time.Time  `json:"date"`
	OwnerID       int64      `json:"ownerId"`
	Status        string     `json:"status"`
	IsPromoted    bool       `json:"isPromoted"`
	PromoStart    *time.Time `json:"promoStart,omitempty"`
	PromoEnd      *time.Time `json:"promoEnd,omitempty"`
	AttendeeCount int        `json:"attendeeCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func newActivityView(act *activity.Activity) activityView {
	v := activityView{
		ID:            act.ID,
		Title:         act.Title,
		Description:   act.Description,
		Place:         act.Place,
		Date:          act.Date,
		OwnerID:       act.OwnerID,
		Status:        string(act.Status),
		IsPromoted:    act.IsPromoted,
		AttendeeCount: act.AttendeeCount,
		CreatedAt:     act.CreatedAt,
	}
	if act.PromoStart.Valid {
		t := act.PromoStart.Time
		v.PromoStart = &t
	}
	if act.PromoEnd.Valid {
		t := act.PromoEnd.Time
		v.PromoEnd = &t
	}
	return v
}

func newActivityViews(acts []*activity.Activity) []activityView {
	views := make([]activityView, 0, len(acts))
	for _, act := range acts {
		views = append(views, newActivityView(act))
	}
	return views
}

type attendanceView struct {
	ID         int64     `json:"id"`
	ActivityID int64     `json:"activityId"`
	AccountID  *int64    `json:"accountId,omitempty"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Confirmed  bool      `json:"confirmed"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newAttendanceView(rec *attendance.Record) attendanceView {
	v := attendanceView{
		ID:         rec.ID,
		ActivityID: rec.ActivityID,
		Name:       rec.Name,
		Email:      rec.Email,
		Confirmed:  rec.Confirmed,
		CreatedAt:  rec.CreatedAt,
	}
	if rec.AccountID.Valid {
		id := rec.AccountID.Int64
		v.AccountID = &id
	}
	return v
}

func newAttendanceViews(recs []*attendance.Record) []attendanceView {
	views := make([]attendanceView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newAttendanceView(rec))
	}
	return views
}

type configView struct {
	ID         int64      `json:"id"`
	AccountID  int64      `json:"accountId"`
	ActivityID int64      `json:"activityId"`
	DaysBefore int        `json:"daysBefore"`
	Type       string     `json:"type"`
	LastSentAt *time.Time `json:"lastSentAt,omitempty"`
	SentCount  int        `json:"sentCount"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func newConfigView(cfg *notification.Config) configView {
	v := configView{
		ID:         cfg.ID,
		AccountID:  cfg.AccountID,
		ActivityID: cfg.ActivityID,
		DaysBefore: cfg.DaysBefore,
		Type:       string(cfg.Type),
		SentCount:  cfg.SentCount,
		Active:     cfg.Active,
		CreatedAt:  cfg.CreatedAt,
	}
	if cfg.LastSentAt.Valid {
		t := cfg.LastSentAt.Time
		v.LastSentAt = &t
	}
	return v
}

type accountView struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsActive   bool   `json:"isActive"`
	IsVerified bool   `json:"isVerified"`
}

func newAccountView(acct *account.Account) accountView {
	return accountView{
		ID:         acct.ID,
		Username:   acct.Username,
		Email:      acct.Email,
		Role:       string(acct.Role),
		IsActive:   acct.IsActive,
		IsVerified: acct.IsVerified,
	}
}
