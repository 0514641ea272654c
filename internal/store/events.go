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

type eventRow struct {
	ID           string         `db:"id"`
	CalendarID   string         `db:"calendar_id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Location     string         `db:"location"`
	StartAt      string         `db:"start_at"`
	EndAt        string         `db:"end_at"`
	AllDay       bool           `db:"all_day"`
	Timezone     string         `db:"timezone"`
	Status       string         `db:"status"`
	Visibility   string         `db:"visibility"`
	Transparency string         `db:"transparency"`
	Color        string         `db:"color"`
	Recurrence   sql.NullString `db:"recurrence"`
	Attendees    string         `db:"attendees"`
	MeetingURL   string         `db:"meeting_url"`
	Reminders    string         `db:"reminders"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

const eventColumns = `id, calendar_id, title, description, location, start_at, end_at, all_day,
	timezone, status, visibility, transparency, color, recurrence, attendees, meeting_url,
	reminders, created_at, updated_at`

func (s *SQLite) toEvent(r eventRow) (calendar.Event, error) {
	ev := calendar.Event{
		ID:           r.ID,
		CalendarID:   r.CalendarID,
		Title:        r.Title,
		Description:  r.Description,
		Location:     r.Location,
		AllDay:       r.AllDay,
		Timezone:     r.Timezone,
		Status:       calendar.Status(r.Status),
		Visibility:   calendar.Visibility(r.Visibility),
		Transparency: calendar.Transparency(r.Transparency),
		Color:        r.Color,
		MeetingURL:   r.MeetingURL,
	}
	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&ev.Start, r.StartAt},
		{&ev.End, r.EndAt},
		{&ev.CreatedAt, r.CreatedAt},
		{&ev.UpdatedAt, r.UpdatedAt},
	} {
		if *f.dst, err = s.parse(f.src); err != nil {
			return ev, fmt.Errorf("event %s: %w", r.ID, err)
		}
	}
	if r.Recurrence.Valid && r.Recurrence.String != "" {
		ev.Recurrence = &calendar.RecurrenceRule{}
		if err := json.Unmarshal([]byte(r.Recurrence.String), ev.Recurrence); err != nil {
			return ev, fmt.Errorf("event %s recurrence: %w", r.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(r.Attendees), &ev.Attendees); err != nil {
		return ev, fmt.Errorf("event %s attendees: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Reminders), &ev.Reminders); err != nil {
		return ev, fmt.Errorf("event %s reminders: %w", r.ID, err)
	}
	return ev, nil
}

func (s *SQLite) fromInput(id string, in calendar.EventInput) (eventRow, error) {
	r := eventRow{
		ID:           id,
		CalendarID:   in.CalendarID,
		Title:        trimmed(in.Title),
		Description:  in.Description,
		Location:     in.Location,
		StartAt:      formatTime(in.Start),
		EndAt:        formatTime(in.End),
		AllDay:       in.AllDay,
		Timezone:     in.Timezone,
		Status:       string(in.Status),
		Visibility:   string(in.Visibility),
		Transparency: string(in.Transparency),
		Color:        in.Color,
		MeetingURL:   in.MeetingURL,
		Attendees:    "[]",
		Reminders:    "[]",
	}
	if in.Recurrence != nil {
		b, err := json.Marshal(in.Recurrence)
		if err != nil {
			return r, fmt.Errorf("encode recurrence: %w", err)
		}
		r.Recurrence = sql.NullString{String: string(b), Valid: true}
	}
	if len(in.Attendees) > 0 {
		b, err := json.Marshal(in.Attendees)
		if err != nil {
			return r, fmt.Errorf("encode attendees: %w", err)
		}
		r.Attendees = string(b)
	}
	if len(in.Reminders) > 0 {
		b, err := json.Marshal(in.Reminders)
		if err != nil {
			return r, fmt.Errorf("encode reminders: %w", err)
		}
		r.Reminders = string(b)
	}
	return r, nil
}

func (s *SQLite) selectEvents(ctx context.Context, query string, args []any) ([]calendar.Event, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]calendar.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := s.toEvent(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *SQLite) ListEventsInRange(ctx context.Context, start, end time.Time, calendarIDs []string) ([]calendar.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE (recurrence IS NOT NULL OR (start_at < ? AND end_at > ?))`
	query, args, err := inClause(query, "calendar_id", calendarIDs, []any{formatTime(end), formatTime(start)})
	if err != nil {
		return nil, err
	}
	events, err := s.selectEvents(ctx, query+` ORDER BY start_at, id`, args)
	if err != nil {
		return nil, fmt.Errorf("list events in range: %w", err)
	}
	return events, nil
}

func (s *SQLite) ListEvents(ctx context.Context, calendarIDs []string) ([]calendar.Event, error) {
	query, args, err := inClause(`SELECT `+eventColumns+` FROM events WHERE 1 = 1`, "calendar_id", calendarIDs, nil)
	if err != nil {
		return nil, err
	}
	events, err := s.selectEvents(ctx, query+` ORDER BY start_at, id`, args)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *SQLite) GetEvent(ctx context.Context, id string) (*calendar.Event, error) {
	return s.getEvent(ctx, s.db, id)
}

func (s *SQLite) getEvent(ctx context.Context, q sqlx.QueryerContext, id string) (*calendar.Event, error) {
	var r eventRow
	err := sqlx.GetContext(ctx, q, &r, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	ev, err := s.toEvent(r)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

const insertEvent = `INSERT INTO events (` + eventColumns + `) VALUES (
	:id, :calendar_id, :title, :description, :location, :start_at, :end_at, :all_day,
	:timezone, :status, :visibility, :transparency, :color, :recurrence, :attendees, :meeting_url,
	:reminders, :created_at, :updated_at)`

func (s *SQLite) CreateEvent(ctx context.Context, in calendar.EventInput) (calendar.Event, error) {
	if err := in.Validate(); err != nil {
		return calendar.Event{}, err
	}
	in = in.Normalize()
	r, err := s.fromInput(s.newID(), in)
	if err != nil {
		return calendar.Event{}, err
	}
	r.CreatedAt = s.stamp()
	r.UpdatedAt = r.CreatedAt

	var out calendar.Event
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		cal, err := s.getCalendar(ctx, tx, in.CalendarID)
		if err != nil {
			return err
		}
		if cal == nil {
			return &calendar.ValidationError{Field: "calendarId", Reason: fmt.Sprintf("calendar %s does not exist", in.CalendarID)}
		}
		if _, err := tx.NamedExecContext(ctx, insertEvent, r); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		out, err = s.toEvent(r)
		return err
	})
	return out, err
}

func (s *SQLite) UpdateEvent(ctx context.Context, id string, patch calendar.EventPatch) (*calendar.Event, error) {
	var out *calendar.Event
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.getEvent(ctx, tx, id)
		if err != nil || cur == nil {
			return err
		}
		in := patch.Apply(cur.ToInput())
		if err := in.Validate(); err != nil {
			return err
		}
		in = in.Normalize()
		if in.CalendarID != cur.CalendarID {
			cal, err := s.getCalendar(ctx, tx, in.CalendarID)
			if err != nil {
				return err
			}
			if cal == nil {
				return &calendar.ValidationError{Field: "calendarId", Reason: fmt.Sprintf("calendar %s does not exist", in.CalendarID)}
			}
		}
		r, err := s.fromInput(id, in)
		if err != nil {
			return err
		}
		r.CreatedAt = formatTime(cur.CreatedAt)
		r.UpdatedAt = s.stamp()
		_, err = tx.NamedExecContext(ctx, `UPDATE events SET
			calendar_id = :calendar_id, title = :title, description = :description,
			location = :location, start_at = :start_at, end_at = :end_at, all_day = :all_day,
			timezone = :timezone, status = :status, visibility = :visibility,
			transparency = :transparency, color = :color, recurrence = :recurrence,
			attendees = :attendees, meeting_url = :meeting_url, reminders = :reminders,
			updated_at = :updated_at
			WHERE id = :id`, r)
		if err != nil {
			return fmt.Errorf("update event %s: %w", id, err)
		}
		if cur.IsRecurring() && in.Recurrence == nil {
			// A series turned single has no occurrences left to except.
			if _, err := tx.ExecContext(ctx, `DELETE FROM event_exceptions WHERE event_id = ?`, id); err != nil {
				return fmt.Errorf("drop exceptions of %s: %w", id, err)
			}
		}
		ev, err := s.toEvent(r)
		out = &ev
		return err
	})
	return out, err
}

func (s *SQLite) DeleteEvent(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}
