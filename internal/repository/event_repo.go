package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"ato_controller/internal/models"

	"github.com/google/uuid"
)

// sqliteTimeLayout is the SQLite TIMESTAMP text format.
const sqliteTimeLayout = "2006-01-02 15:04:05"

const (
	insertEventSQL = `INSERT INTO events (id, occurred_at, type, message, meta) VALUES (?, ?, ?, ?, ?)`
	selectEventSQL = `SELECT id, occurred_at, type, message, meta FROM events`
	pruneEventSQL  = `DELETE FROM events WHERE occurred_at < ?`
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append inserts a new event. If EventID or OccurredAt are empty, they're set.
func (r *EventSQLite) Append(ctx context.Context, e models.Event) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.OccurredAt.Format(sqliteTimeLayout),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Description,
		metaPtr,
	)

	return err
}

// List returns the events matching q, oldest first. Bounds are compared as
// text in the layout Append stores. With a Limit the newest rows are
// selected in SQL and flipped back to ascending order.
func (r *EventSQLite) List(ctx context.Context, q EventQuery) ([]models.Event, error) {
	query, args := buildEventQuery(q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Event, 0, 64)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 {
		slices.Reverse(out)
	}
	return out, nil
}

func buildEventQuery(q EventQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !q.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, q.From.UTC().Format(sqliteTimeLayout))
	}
	if !q.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, q.To.UTC().Format(sqliteTimeLayout))
	}
	if typ := strings.ToUpper(strings.TrimSpace(q.Type)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	var b strings.Builder
	b.WriteString(selectEventSQL)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if q.Limit > 0 {
		b.WriteString(" ORDER BY occurred_at DESC LIMIT ?")
		args = append(args, q.Limit)
	} else {
		b.WriteString(" ORDER BY occurred_at ASC")
	}
	return b.String(), args
}

func scanEvent(rows *sql.Rows) (models.Event, error) {
	var (
		ev   models.Event
		meta sql.NullString
	)
	if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.Type, &ev.Description, &meta); err != nil {
		return ev, err
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	if meta.Valid && meta.String != "" {
		var v any
		if err := json.Unmarshal([]byte(meta.String), &v); err == nil {
			ev.Metadata = v
		} else {
			ev.Metadata = meta.String // keep raw if malformed
		}
	}
	return ev, nil
}

// PruneBefore deletes events older than before and reports how many went.
func (r *EventSQLite) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, pruneEventSQL, before.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
