package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cwarden/skuld/internal/calendar"
)

type exceptionRow struct {
	ID            string         `db:"id"`
	EventID       string         `db:"event_id"`
	OriginalStart string         `db:"original_start"`
	Cancelled     bool           `db:"cancelled"`
	Override      sql.NullString `db:"override"`
	OverrideStart sql.NullString `db:"override_start"`
	OverrideEnd   sql.NullString `db:"override_end"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

const exceptionColumns = `id, event_id, original_start, cancelled, override, override_start,
	override_end, created_at, updated_at`

func (s *SQLite) toException(r exceptionRow) (calendar.Exception, error) {
	ex := calendar.Exception{ID: r.ID, EventID: r.EventID, Cancelled: r.Cancelled}
	var err error
	if ex.OriginalStart, err = s.parse(r.OriginalStart); err != nil {
		return ex, fmt.Errorf("exception %s: %w", r.ID, err)
	}
	if ex.CreatedAt, err = s.parse(r.CreatedAt); err != nil {
		return ex, fmt.Errorf("exception %s: %w", r.ID, err)
	}
	if ex.UpdatedAt, err = s.parse(r.UpdatedAt); err != nil {
		return ex, fmt.Errorf("exception %s: %w", r.ID, err)
	}
	if r.Override.Valid && r.Override.String != "" {
		ex.Override = &calendar.Override{}
		if err := json.Unmarshal([]byte(r.Override.String), ex.Override); err != nil {
			return ex, fmt.Errorf("exception %s override: %w", r.ID, err)
		}
		for _, t := range []*time.Time{ex.Override.Start, ex.Override.End} {
			if t != nil {
				*t = t.In(s.loc)
			}
		}
	}
	return ex, nil
}

// setOverride encodes the override and the time span it moves the
// occurrence to, used by range queries. dur is the series duration.
func setOverride(r *exceptionRow, o *calendar.Override, originalStart time.Time, dur time.Duration) error {
	r.Override, r.OverrideStart, r.OverrideEnd = sql.NullString{}, sql.NullString{}, sql.NullString{}
	if o.IsEmpty() {
		return nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode override: %w", err)
	}
	r.Override = sql.NullString{String: string(b), Valid: true}
	if o.Start == nil && o.End == nil {
		return nil
	}
	start, end := originalStart, originalStart.Add(dur)
	if o.Start != nil {
		start, end = *o.Start, o.Start.Add(dur)
	}
	if o.End != nil {
		end = *o.End
	}
	r.OverrideStart = sql.NullString{String: formatTime(start), Valid: true}
	r.OverrideEnd = sql.NullString{String: formatTime(end), Valid: true}
	return nil
}

func (s *SQLite) selectExceptions(ctx context.Context, query string, args []any) ([]calendar.Exception, error) {
	var rows []exceptionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]calendar.Exception, 0, len(rows))
	for _, r := range rows {
		ex, err := s.toException(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

func (s *SQLite) ListExceptionsInRange(ctx context.Context, start, end time.Time, eventIDs []string) ([]calendar.Exception, error) {
	query := `SELECT ` + exceptionColumns + ` FROM event_exceptions
		WHERE ((original_start >= ? AND original_start < ?)
			OR (override_start IS NOT NULL AND override_start < ? AND override_end > ?))`
	s0, e0 := formatTime(start), formatTime(end)
	query, args, err := inClause(query, "event_id", eventIDs, []any{s0, e0, e0, s0})
	if err != nil {
		return nil, err
	}
	exs, err := s.selectExceptions(ctx, query+` ORDER BY original_start, id`, args)
	if err != nil {
		return nil, fmt.Errorf("list exceptions in range: %w", err)
	}
	return exs, nil
}

func (s *SQLite) ListExceptions(ctx context.Context, eventIDs []string) ([]calendar.Exception, error) {
	query, args, err := inClause(`SELECT `+exceptionColumns+` FROM event_exceptions WHERE 1 = 1`, "event_id", eventIDs, nil)
	if err != nil {
		return nil, err
	}
	exs, err := s.selectExceptions(ctx, query+` ORDER BY original_start, id`, args)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	return exs, nil
}

func (s *SQLite) FindException(ctx context.Context, eventID string, originalStart time.Time) (*calendar.Exception, error) {
	return s.findException(ctx, s.db, `event_id = ? AND original_start = ?`, eventID, formatTime(originalStart))
}

func (s *SQLite) findException(ctx context.Context, q sqlx.QueryerContext, where string, args ...any) (*calendar.Exception, error) {
	var r exceptionRow
	err := sqlx.GetContext(ctx, q, &r, `SELECT `+exceptionColumns+` FROM event_exceptions WHERE `+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exception: %w", err)
	}
	ex, err := s.toException(r)
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (s *SQLite) CreateException(ctx context.Context, in calendar.ExceptionInput) (calendar.Exception, error) {
	if err := in.Validate(); err != nil {
		return calendar.Exception{}, err
	}
	var out calendar.Exception
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		ev, err := s.getEvent(ctx, tx, in.EventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return &calendar.ValidationError{Field: "eventId", Reason: fmt.Sprintf("event %s does not exist", in.EventID)}
		}
		dup, err := s.findException(ctx, tx, `event_id = ? AND original_start = ?`, in.EventID, formatTime(in.OriginalStart))
		if err != nil {
			return err
		}
		if dup != nil {
			return fmt.Errorf("exception for %s at %s: %w", in.EventID, formatTime(in.OriginalStart), ErrConflict)
		}

		now := s.stamp()
		r := exceptionRow{
			ID:            s.newID(),
			EventID:       in.EventID,
			OriginalStart: formatTime(in.OriginalStart),
			Cancelled:     in.Cancelled,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := setOverride(&r, in.Override, in.OriginalStart, ev.Duration()); err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO event_exceptions (`+exceptionColumns+`)
			VALUES (:id, :event_id, :original_start, :cancelled, :override, :override_start,
				:override_end, :created_at, :updated_at)`, r)
		if err != nil {
			return fmt.Errorf("insert exception: %w", err)
		}
		out, err = s.toException(r)
		return err
	})
	return out, err
}

func (s *SQLite) UpdateException(ctx context.Context, id string, patch calendar.ExceptionPatch) (*calendar.Exception, error) {
	var out *calendar.Exception
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.findException(ctx, tx, `id = ?`, id)
		if err != nil || cur == nil {
			return err
		}
		next, err := patch.Apply(*cur)
		if err != nil {
			return err
		}
		ev, err := s.getEvent(ctx, tx, cur.EventID)
		if err != nil {
			return err
		}
		var dur time.Duration
		if ev != nil {
			dur = ev.Duration()
		}
		r := exceptionRow{ID: id, Cancelled: next.Cancelled, UpdatedAt: s.stamp()}
		if err := setOverride(&r, next.Override, cur.OriginalStart, dur); err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx, `UPDATE event_exceptions SET
			cancelled = :cancelled, override = :override, override_start = :override_start,
			override_end = :override_end, updated_at = :updated_at
			WHERE id = :id`, r)
		if err != nil {
			return fmt.Errorf("update exception %s: %w", id, err)
		}
		out, err = s.findException(ctx, tx, `id = ?`, id)
		return err
	})
	return out, err
}

func (s *SQLite) DeleteException(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM event_exceptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete exception %s: %w", id, err)
	}
	return nil
}
