package database

import (
	"context"
	"database/sql"
	"fmt"

	"community_activity_backend/internal/domain/attendance"
)

type PostgresAttendanceRepository struct {
	db *sql.DB
}

func NewPostgresAttendanceRepository(db *sql.DB) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{db: db}
}

const attendanceColumns = `id, activity_id, account_id, name, email, confirmed, created_at`

func scanRecordRow(scan func(dest ...any) error) (*attendance.Record, error) {
	rec := attendance.Record{}
	err := scan(&rec.ID, &rec.ActivityID, &rec.AccountID, &rec.Name, &rec.Email, &rec.Confirmed, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("error scanning attendance row: %w", err)
	}
	return &rec, nil
}

// identityPredicate matches a record by account reference or by email,
// whichever keys the candidate carries. Placeholders $2 (account id,
// nullable) and $3 (email, possibly empty) are expected.
const identityPredicate = `(($2::bigint IS NOT NULL AND account_id = $2) OR ($3 <> '' AND email = $3))`

// CreateUnique runs the duplicate check and the insert in one transaction.
// The partial unique indexes on (activity_id, account_id) and
// (activity_id, email) are the backstop for races the read misses: a
// constraint violation surfaces as ErrDuplicateAttendance, so concurrent
// confirmations for the same identity resolve to exactly one record.
// The activity's derived attendee counter is bumped in the same transaction.
func (r *PostgresAttendanceRepository) CreateUnique(ctx context.Context, rec *attendance.Record) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin attendance transaction: %w", err)
	}
	defer txn.Rollback()

	var existingID int64
	dupQuery := `SELECT id FROM attendance_records WHERE activity_id = $1 AND ` + identityPredicate + ` LIMIT 1`
	err = txn.QueryRowContext(ctx, dupQuery, rec.ActivityID, rec.AccountID, rec.Email).Scan(&existingID)
	if err == nil {
		return ErrDuplicateAttendance
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("error checking for duplicate attendance: %w", err)
	}

	insertQuery := `INSERT INTO attendance_records (activity_id, account_id, name, email, confirmed)
                     VALUES ($1, $2, $3, $4, $5)
                     RETURNING id, created_at`
	err = txn.QueryRowContext(ctx, insertQuery, rec.ActivityID, rec.AccountID, rec.Name, rec.Email, rec.Confirmed).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicateAttendance
		}
		return fmt.Errorf("error creating attendance record: %w", err)
	}

	_, err = txn.ExecContext(ctx,
		`UPDATE activities SET attendee_count = attendee_count + 1 WHERE id = $1`, rec.ActivityID)
	if err != nil {
		return fmt.Errorf("error incrementing attendee count: %w", err)
	}

	return txn.Commit()
}

func (r *PostgresAttendanceRepository) GetByID(ctx context.Context, id int64) (*attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE id = $1`
	return scanRecordRow(r.db.QueryRowContext(ctx, query, id).Scan)
}

func (r *PostgresAttendanceRepository) FindByIdentity(ctx context.Context, activityID int64, accountID sql.NullInt64, email string) (*attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
               WHERE activity_id = $1 AND ` + identityPredicate + ` LIMIT 1`
	return scanRecordRow(r.db.QueryRowContext(ctx, query, activityID, accountID, email).Scan)
}

func (r *PostgresAttendanceRepository) ExistsForIdentity(ctx context.Context, activityID int64, accountID sql.NullInt64, email string) (bool, error) {
	query := `SELECT EXISTS (
                 SELECT 1 FROM attendance_records
                 WHERE activity_id = $1 AND ` + identityPredicate + `)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, activityID, accountID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking attendance membership: %w", err)
	}
	return exists, nil
}

func (r *PostgresAttendanceRepository) ListByActivity(ctx context.Context, activityID int64) ([]*attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE activity_id = $1 ORDER BY created_at`
	return r.queryRecords(ctx, query, activityID)
}

func (r *PostgresAttendanceRepository) ListByIdentity(ctx context.Context, accountID int64, email string) ([]*attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
               WHERE account_id = $1 OR ($2 <> '' AND email = $2)
               ORDER BY created_at`
	return r.queryRecords(ctx, query, accountID, email)
}

func (r *PostgresAttendanceRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*attendance.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying attendance records: %w", err)
	}
	defer rows.Close()

	records := make([]*attendance.Record, 0)
	for rows.Next() {
		rec, err := scanRecordRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}
	return records, nil
}

func (r *PostgresAttendanceRepository) UpdateContact(ctx context.Context, id int64, name, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE attendance_records SET name = $1, email = $2 WHERE id = $3`, name, email, id)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicateAttendance
		}
		return fmt.Errorf("error updating attendance contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking contact update rows: %w", err)
	}
	if affected == 0 {
		return ErrAttendanceNotFound
	}
	return nil
}

func (r *PostgresAttendanceRepository) DeleteByID(ctx context.Context, id int64) (int64, error) {
	var activityID int64
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM attendance_records WHERE id = $1 RETURNING activity_id`, id).Scan(&activityID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrAttendanceNotFound
		}
		return 0, fmt.Errorf("error deleting attendance record: %w", err)
	}
	return activityID, nil
}

func (r *PostgresAttendanceRepository) AdjustAttendeeCount(ctx context.Context, activityID int64, delta int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE activities SET attendee_count = GREATEST(attendee_count + $1, 0) WHERE id = $2`, delta, activityID)
	if err != nil {
		return fmt.Errorf("error adjusting attendee count: %w", err)
	}
	return nil
}

// RebuildAttendeeCount recounts the ledger and overwrites the cached
// counter. The counter is a cache, never the source of truth.
func (r *PostgresAttendanceRepository) RebuildAttendeeCount(ctx context.Context, activityID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE activities
          SET attendee_count = (SELECT COUNT(*) FROM attendance_records WHERE activity_id = $1)
          WHERE id = $1`, activityID)
	if err != nil {
		return fmt.Errorf("error rebuilding attendee count: %w", err)
	}
	return nil
}

func (r *PostgresAttendanceRepository) CountByActivity(ctx context.Context, activityID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_records WHERE activity_id = $1`, activityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting attendance records: %w", err)
	}
	return count, nil
}
