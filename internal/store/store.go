// Package store persists calendars, events and exceptions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cwarden/skuld/internal/calendar"
)

// ErrConflict is returned when an exception already exists for the same
// (event, original start).
var ErrConflict = errors.New("conflict")

// Store is the persistence boundary. Updates of a missing id return
// (nil, nil); deletes of a missing id return nil.
type Store interface {
	ListCalendars(ctx context.Context) ([]calendar.Calendar, error)
	// EnsureDefaultCalendar creates a primary "Personal" calendar when none
	// exist and returns the primary calendar.
	EnsureDefaultCalendar(ctx context.Context) (calendar.Calendar, error)
	CreateCalendar(ctx context.Context, in calendar.CalendarInput) (calendar.Calendar, error)
	UpdateCalendar(ctx context.Context, id string, patch calendar.CalendarPatch) (*calendar.Calendar, error)
	// DeleteCalendar removes a calendar with its events. Deleting the primary
	// promotes the oldest remaining calendar.
	DeleteCalendar(ctx context.Context, id string) error

	// ListEventsInRange returns the single events overlapping [start, end)
	// and every recurring event. Empty calendarIDs means all calendars.
	ListEventsInRange(ctx context.Context, start, end time.Time, calendarIDs []string) ([]calendar.Event, error)
	ListEvents(ctx context.Context, calendarIDs []string) ([]calendar.Event, error)
	GetEvent(ctx context.Context, id string) (*calendar.Event, error)
	CreateEvent(ctx context.Context, in calendar.EventInput) (calendar.Event, error)
	UpdateEvent(ctx context.Context, id string, patch calendar.EventPatch) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	// ListExceptionsInRange returns exceptions whose original start falls in
	// [start, end) or whose overridden time overlaps it. Empty eventIDs
	// means all events.
	ListExceptionsInRange(ctx context.Context, start, end time.Time, eventIDs []string) ([]calendar.Exception, error)
	ListExceptions(ctx context.Context, eventIDs []string) ([]calendar.Exception, error)
	FindException(ctx context.Context, eventID string, originalStart time.Time) (*calendar.Exception, error)
	CreateException(ctx context.Context, in calendar.ExceptionInput) (calendar.Exception, error)
	UpdateException(ctx context.Context, id string, patch calendar.ExceptionPatch) (*calendar.Exception, error)
	DeleteException(ctx context.Context, id string) error

	Close() error
}

// DefaultCalendarTitle names the calendar seeded into an empty store.
const DefaultCalendarTitle = "Personal"

// Timestamps are stored as fixed-width UTC text so they sort and compare
// as strings.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}
