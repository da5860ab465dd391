package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"community_activity_backend/internal/domain/activity"
)

type PostgresActivityRepository struct {
	db *sql.DB
}

func NewPostgresActivityRepository(db *sql.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{db: db}
}

const activityColumns = `id, title, description, place, activity_date, owner_id, status, is_promoted, promo_start, promo_end, attendee_count, created_at, updated_at`

func scanActivityRow(scan func(dest ...any) error) (*activity.Activity, error) {
	a := activity.Activity{}
	err := scan(
		&a.ID, &a.Title, &a.Description, &a.Place, &a.Date, &a.OwnerID,
		&a.Status, &a.IsPromoted, &a.PromoStart, &a.PromoEnd, &a.AttendeeCount,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("error scanning activity row: %w", err)
	}
	return &a, nil
}

func (r *PostgresActivityRepository) queryActivities(ctx context.Context, query string, args ...any) ([]*activity.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*activity.Activity, 0)
	for rows.Next() {
		a, err := scanActivityRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return activities, nil
}

func (r *PostgresActivityRepository) Create(ctx context.Context, a *activity.Activity) error {
	query := `INSERT INTO activities (title, description, place, activity_date, owner_id, status, is_promoted, promo_start, promo_end)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               RETURNING id, attendee_count, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		a.Title, a.Description, a.Place, a.Date, a.OwnerID, a.Status, a.IsPromoted, a.PromoStart, a.PromoEnd,
	).Scan(&a.ID, &a.AttendeeCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating activity: %w", err)
	}
	return nil
}

func (r *PostgresActivityRepository) GetByID(ctx context.Context, id int64) (*activity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	return scanActivityRow(r.db.QueryRowContext(ctx, query, id).Scan)
}

func (r *PostgresActivityRepository) Update(ctx context.Context, a *activity.Activity) error {
	query := `UPDATE activities
               SET title = $1, description = $2, place = $3, activity_date = $4, updated_at = NOW()
               WHERE id = $5
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, a.Title, a.Description, a.Place, a.Date, a.ID).Scan(&a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrActivityNotFound
		}
		return fmt.Errorf("error updating activity: %w", err)
	}
	return nil
}

func (r *PostgresActivityRepository) Delete(ctx context.Context, id int64) error {
	// Attendance records and notification configurations go with it via
	// ON DELETE CASCADE.
	res, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting activity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted activity rows: %w", err)
	}
	if affected == 0 {
		return ErrActivityNotFound
	}
	return nil
}

func (r *PostgresActivityRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*activity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE owner_id = $1 ORDER BY activity_date`
	return r.queryActivities(ctx, query, ownerID)
}

func (r *PostgresActivityRepository) ListApprovedExcept(ctx context.Context, ownerID int64) ([]*activity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities
               WHERE status = $1 AND owner_id != $2 ORDER BY activity_date`
	return r.queryActivities(ctx, query, activity.StatusApproved, ownerID)
}

func (r *PostgresActivityRepository) ListPromoted(ctx context.Context, now time.Time) ([]*activity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities
               WHERE status = $1 AND is_promoted = TRUE
                 AND (promo_start IS NULL OR promo_start <= $2)
                 AND (promo_end IS NULL OR promo_end >= $2)
               ORDER BY activity_date`
	return r.queryActivities(ctx, query, activity.StatusApproved, now)
}

func (r *PostgresActivityRepository) ListByStatus(ctx context.Context, status activity.Status) ([]*activity.Activity, error) {
	if status == "" {
		return r.queryActivities(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY created_at DESC`)
	}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE status = $1 ORDER BY created_at DESC`
	return r.queryActivities(ctx, query, status)
}

func (r *PostgresActivityRepository) SetStatus(ctx context.Context, id int64, status activity.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE activities SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error setting activity status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking status update rows: %w", err)
	}
	if affected == 0 {
		return ErrActivityNotFound
	}
	return nil
}

func (r *PostgresActivityRepository) SetPromotion(ctx context.Context, id int64, promoted bool, start, end sql.NullTime) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE activities SET is_promoted = $1, promo_start = $2, promo_end = $3, updated_at = NOW() WHERE id = $4`,
		promoted, start, end, id)
	if err != nil {
		return fmt.Errorf("error setting activity promotion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking promotion update rows: %w", err)
	}
	if affected == 0 {
		return ErrActivityNotFound
	}
	return nil
}
