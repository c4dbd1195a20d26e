// Package archive mirrors accepted attendance writes into Postgres.
// The mirror is best-effort and optional; the cache stays authoritative
// and nothing in the write path waits on it.
package archive

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"prayerlog/internal/model"
)

// Archive wraps the Postgres mirror. A nil *Archive is valid and makes
// every method a no-op, so callers never branch on configuration.
type Archive struct {
	db *sql.DB
}

// Open connects to Postgres with sane pool defaults and ensures the
// records table exists.
func Open(connString string) (*Archive, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	a := &Archive{db: db}
	if err := a.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_records (
			id            TEXT PRIMARY KEY,
			student_id    TEXT NOT NULL,
			student_name  TEXT NOT NULL,
			class_name    TEXT NOT NULL,
			date          TEXT NOT NULL,
			recorded_at   TIMESTAMPTZ NOT NULL,
			operator_name TEXT NOT NULL,
			status        TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying connection.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// SaveRecord upserts one record.
func (a *Archive) SaveRecord(ctx context.Context, rec model.Record) error {
	if a == nil {
		return nil
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, student_name, class_name, date, recorded_at, operator_name, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`, rec.ID, rec.StudentID, rec.StudentName, rec.ClassName, rec.Date, rec.Timestamp, rec.OperatorName, rec.Status)
	return err
}

// UpdateStatus changes a mirrored record's status.
func (a *Archive) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if a == nil {
		return nil
	}
	_, err := a.db.ExecContext(ctx, `UPDATE attendance_records SET status = $2 WHERE id = $1`, id, status)
	return err
}

// DeleteRecord removes a mirrored record.
func (a *Archive) DeleteRecord(ctx context.Context, id string) error {
	if a == nil {
		return nil
	}
	_, err := a.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	return err
}

// ExportCSV streams the full mirror as CSV, newest first.
func (a *Archive) ExportCSV(ctx context.Context, w io.Writer) error {
	if a == nil {
		return sql.ErrConnDone
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, student_id, student_name, class_name, date, recorded_at, operator_name, status
		FROM attendance_records
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "student_id", "student_name", "class_name", "date", "recorded_at", "operator", "status"}); err != nil {
		return err
	}
	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.StudentName, &rec.ClassName, &rec.Date, &rec.Timestamp, &rec.OperatorName, &rec.Status); err != nil {
			return err
		}
		if err := cw.Write([]string{
			rec.ID, rec.StudentID, rec.StudentName, rec.ClassName,
			rec.Date, rec.Timestamp.Format(time.RFC3339), rec.OperatorName, string(rec.Status),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return rows.Err()
}
