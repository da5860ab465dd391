package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"community_activity_backend/internal/domain/notification"
)

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

const configColumns = `id, account_id, activity_id, days_before, notif_type, last_sent_at, sent_count, active, created_at, updated_at`

func scanConfigRow(scan func(dest ...any) error) (*notification.Config, error) {
	cfg := notification.Config{}
	err := scan(
		&cfg.ID, &cfg.AccountID, &cfg.ActivityID, &cfg.DaysBefore, &cfg.Type,
		&cfg.LastSentAt, &cfg.SentCount, &cfg.Active, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("error scanning notification config row: %w", err)
	}
	return &cfg, nil
}

// Upsert inserts the configuration or, on a (account, activity, days_before)
// conflict, updates its type and reactivates it. The xmax trick tells an
// insert apart from an update on the returned row.
func (r *PostgresNotificationRepository) Upsert(ctx context.Context, cfg *notification.Config) (bool, error) {
	query := `INSERT INTO notification_configs (account_id, activity_id, days_before, notif_type)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (account_id, activity_id, days_before)
               DO UPDATE SET notif_type = EXCLUDED.notif_type, active = TRUE, updated_at = NOW()
               RETURNING id, last_sent_at, sent_count, active, created_at, updated_at, (xmax = 0) AS inserted`
	var created bool
	err := r.db.QueryRowContext(ctx, query, cfg.AccountID, cfg.ActivityID, cfg.DaysBefore, cfg.Type).Scan(
		&cfg.ID, &cfg.LastSentAt, &cfg.SentCount, &cfg.Active, &cfg.CreatedAt, &cfg.UpdatedAt, &created,
	)
	if err != nil {
		return false, fmt.Errorf("error upserting notification config: %w", err)
	}
	return created, nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id int64) (*notification.Config, error) {
	query := `SELECT ` + configColumns + ` FROM notification_configs WHERE id = $1`
	return scanConfigRow(r.db.QueryRowContext(ctx, query, id).Scan)
}

func (r *PostgresNotificationRepository) ListByAccount(ctx context.Context, accountID int64) ([]*notification.Config, error) {
	query := `SELECT ` + configColumns + ` FROM notification_configs WHERE account_id = $1 ORDER BY activity_id, days_before`
	return r.queryConfigs(ctx, query, accountID)
}

func (r *PostgresNotificationRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting notification config: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted config rows: %w", err)
	}
	if affected == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) ListDue(ctx context.Context, startOfToday time.Time) ([]*notification.Config, error) {
	query := `SELECT ` + configColumns + ` FROM notification_configs
               WHERE active = TRUE AND (last_sent_at IS NULL OR last_sent_at < $1)
               ORDER BY id`
	return r.queryConfigs(ctx, query, startOfToday)
}

func (r *PostgresNotificationRepository) queryConfigs(ctx context.Context, query string, args ...any) ([]*notification.Config, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notification configs: %w", err)
	}
	defer rows.Close()

	configs := make([]*notification.Config, 0)
	for rows.Next() {
		cfg, err := scanConfigRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification config rows: %w", err)
	}
	return configs, nil
}

// ClaimSend is the mark-then-send primitive. The WHERE clause re-checks the
// not-yet-sent-today condition so overlapping ticks, or multiple workers in
// one tick, cannot both claim the same configuration for the same day.
func (r *PostgresNotificationRepository) ClaimSend(ctx context.Context, id int64, now, startOfToday time.Time) (bool, error) {
	query := `UPDATE notification_configs
               SET last_sent_at = $2, sent_count = sent_count + 1, updated_at = NOW()
               WHERE id = $1 AND active = TRUE AND (last_sent_at IS NULL OR last_sent_at < $3)`
	res, err := r.db.ExecContext(ctx, query, id, now, startOfToday)
	if err != nil {
		return false, fmt.Errorf("error claiming notification send: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking claim rows: %w", err)
	}
	return affected == 1, nil
}

func (r *PostgresNotificationRepository) ReleaseClaim(ctx context.Context, id int64, prevLastSent sql.NullTime) error {
	query := `UPDATE notification_configs
               SET last_sent_at = $2, sent_count = GREATEST(sent_count - 1, 0), updated_at = NOW()
               WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, prevLastSent); err != nil {
		return fmt.Errorf("error releasing notification claim: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) Deactivate(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE notification_configs SET active = FALSE, updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error deactivating notification config: %w", err)
	}
	return nil
}
