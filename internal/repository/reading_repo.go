package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ato_controller/internal/models"
)

const (
	insertReadingSQL = `INSERT INTO temperature_readings (recorded_at, value) VALUES (?, ?)`
	selectReadingSQL = `SELECT recorded_at, value FROM temperature_readings WHERE recorded_at >= ? ORDER BY recorded_at ASC`
	pruneReadingSQL  = `DELETE FROM temperature_readings WHERE recorded_at < ?`
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite { return &ReadingSQLite{db: db} }

var _ ReadingRepo = (*ReadingSQLite)(nil)

// Append stores one sample. A zero timestamp is replaced by the current UTC time.
func (r *ReadingSQLite) Append(ctx context.Context, rd models.TemperatureReading) error {
	at := rd.Timestamp.UTC()
	if rd.Timestamp.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, insertReadingSQL, at.Format(sqliteTimeLayout), rd.Value); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Since returns the samples recorded at or after from, oldest first.
func (r *ReadingSQLite) Since(ctx context.Context, from time.Time) ([]models.TemperatureReading, error) {
	rows, err := r.db.QueryContext(ctx, selectReadingSQL, from.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer rows.Close()

	var out []models.TemperatureReading
	for rows.Next() {
		var rd models.TemperatureReading
		if err := rows.Scan(&rd.Timestamp, &rd.Value); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		rd.Timestamp = rd.Timestamp.UTC()
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PruneBefore deletes samples older than before and reports how many went.
func (r *ReadingSQLite) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, pruneReadingSQL, before.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune readings rows affected: %w", err)
	}
	return n, nil
}
