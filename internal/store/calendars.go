package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/calendar"
)

type calendarRow struct {
	ID         string `db:"id"`
	Title      string `db:"title"`
	Color      string `db:"color"`
	Visibility string `db:"visibility"`
	IsPrimary  bool   `db:"is_primary"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

const calendarColumns = `id, title, color, visibility, is_primary, created_at, updated_at`

func (s *SQLite) toCalendar(r calendarRow) (calendar.Calendar, error) {
	created, err := s.parse(r.CreatedAt)
	if err != nil {
		return calendar.Calendar{}, fmt.Errorf("calendar %s created_at: %w", r.ID, err)
	}
	updated, err := s.parse(r.UpdatedAt)
	if err != nil {
		return calendar.Calendar{}, fmt.Errorf("calendar %s updated_at: %w", r.ID, err)
	}
	return calendar.Calendar{
		ID:         r.ID,
		Title:      r.Title,
		Color:      r.Color,
		Visibility: calendar.Visibility(r.Visibility),
		IsPrimary:  r.IsPrimary,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

func (s *SQLite) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	var rows []calendarRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+calendarColumns+` FROM calendars ORDER BY is_primary DESC, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	out := make([]calendar.Calendar, 0, len(rows))
	for _, r := range rows {
		c, err := s.toCalendar(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLite) getCalendar(ctx context.Context, q sqlx.QueryerContext, id string) (*calendar.Calendar, error) {
	var r calendarRow
	err := sqlx.GetContext(ctx, q, &r, `SELECT `+calendarColumns+` FROM calendars WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar %s: %w", id, err)
	}
	c, err := s.toCalendar(r)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLite) EnsureDefaultCalendar(ctx context.Context) (calendar.Calendar, error) {
	var out calendar.Calendar
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var r calendarRow
		err := tx.GetContext(ctx, &r,
			`SELECT `+calendarColumns+` FROM calendars ORDER BY is_primary DESC, created_at, id LIMIT 1`)
		switch {
		case err == nil:
			if !r.IsPrimary {
				// Repair a store written without the invariant.
				if err := s.promote(ctx, tx, r.ID); err != nil {
					return err
				}
				r.IsPrimary = true
			}
			out, err = s.toCalendar(r)
			return err
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find primary calendar: %w", err)
		}

		c, err := s.insertCalendar(ctx, tx, calendar.CalendarInput{
			Title:      DefaultCalendarTitle,
			Visibility: calendar.VisibilityDefault,
			IsPrimary:  true,
		})
		if err != nil {
			return err
		}
		s.logger.Info("created default calendar", zap.String("id", c.ID))
		out = c
		return nil
	})
	return out, err
}

func (s *SQLite) CreateCalendar(ctx context.Context, in calendar.CalendarInput) (calendar.Calendar, error) {
	if err := in.Validate(); err != nil {
		return calendar.Calendar{}, err
	}
	var out calendar.Calendar
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM calendars`); err != nil {
			return fmt.Errorf("count calendars: %w", err)
		}
		if n == 0 {
			in.IsPrimary = true
		}
		if in.IsPrimary {
			if _, err := tx.ExecContext(ctx, `UPDATE calendars SET is_primary = 0 WHERE is_primary = 1`); err != nil {
				return fmt.Errorf("clear primary: %w", err)
			}
		}
		c, err := s.insertCalendar(ctx, tx, in)
		out = c
		return err
	})
	return out, err
}

func (s *SQLite) insertCalendar(ctx context.Context, tx *sqlx.Tx, in calendar.CalendarInput) (calendar.Calendar, error) {
	if in.Visibility == "" {
		in.Visibility = calendar.VisibilityDefault
	}
	now := s.stamp()
	r := calendarRow{
		ID:         s.newID(),
		Title:      trimmed(in.Title),
		Color:      in.Color,
		Visibility: string(in.Visibility),
		IsPrimary:  in.IsPrimary,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO calendars (`+calendarColumns+`)
		VALUES (:id, :title, :color, :visibility, :is_primary, :created_at, :updated_at)`, r)
	if err != nil {
		return calendar.Calendar{}, fmt.Errorf("insert calendar: %w", err)
	}
	return s.toCalendar(r)
}

func (s *SQLite) UpdateCalendar(ctx context.Context, id string, patch calendar.CalendarPatch) (*calendar.Calendar, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var out *calendar.Calendar
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.getCalendar(ctx, tx, id)
		if err != nil || cur == nil {
			return err
		}
		if patch.Title != nil {
			cur.Title = trimmed(*patch.Title)
		}
		if patch.Color != nil {
			cur.Color = *patch.Color
		}
		if patch.Visibility != nil {
			cur.Visibility = *patch.Visibility
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE calendars SET title = ?, color = ?, visibility = ?, updated_at = ? WHERE id = ?`,
			cur.Title, cur.Color, string(cur.Visibility), s.stamp(), id)
		if err != nil {
			return fmt.Errorf("update calendar %s: %w", id, err)
		}

		if patch.IsPrimary != nil && *patch.IsPrimary != cur.IsPrimary {
			if *patch.IsPrimary {
				err = s.promote(ctx, tx, id)
			} else {
				// Demoting hands primary to the oldest other calendar. The
				// only calendar stays primary.
				err = s.promoteOldest(ctx, tx, id)
			}
			if err != nil {
				return err
			}
		}
		out, err = s.getCalendar(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *SQLite) DeleteCalendar(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.getCalendar(ctx, tx, id)
		if err != nil || cur == nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM calendars WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete calendar %s: %w", id, err)
		}
		if cur.IsPrimary {
			return s.promoteOldest(ctx, tx, "")
		}
		return nil
	})
}

// promote makes id the only primary calendar.
func (s *SQLite) promote(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE calendars SET is_primary = 0 WHERE is_primary = 1`); err != nil {
		return fmt.Errorf("clear primary: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE calendars SET is_primary = 1, updated_at = ? WHERE id = ?`, s.stamp(), id); err != nil {
		return fmt.Errorf("promote calendar %s: %w", id, err)
	}
	return nil
}

// promoteOldest makes the oldest calendar other than except primary. It
// does nothing when no such calendar exists.
func (s *SQLite) promoteOldest(ctx context.Context, tx *sqlx.Tx, except string) error {
	var id string
	err := tx.GetContext(ctx, &id,
		`SELECT id FROM calendars WHERE id != ? ORDER BY created_at, id LIMIT 1`, except)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find calendar to promote: %w", err)
	}
	s.logger.Debug("promoting calendar to primary", zap.String("id", id))
	return s.promote(ctx, tx, id)
}
