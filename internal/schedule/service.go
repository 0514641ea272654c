// Package schedule sits between the UI and the store: it loads expanded
// instances for a range and turns gesture intents into mutations.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/gesture"
	"github.com/cwarden/skuld/internal/store"
)

// DefaultTitle names events created by drawing on the grid.
const DefaultTitle = "New event"

// Request identifies a range load.
type Request struct {
	Start       time.Time
	End         time.Time
	CalendarIDs []string
}

// Snapshot is the result of one range load.
type Snapshot struct {
	Request
	Calendars []calendar.Calendar
	Events    []calendar.Event
	Instances []calendar.Instance
}

// Event returns the series master of an instance in the snapshot.
func (s Snapshot) Event(id string) (calendar.Event, bool) {
	for _, ev := range s.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return calendar.Event{}, false
}

// Service runs loads and mutations one at a time, so a reload issued after
// a mutation always observes it.
type Service struct {
	store    store.Store
	expander *calendar.Expander
	logger   *zap.Logger

	mu sync.Mutex
}

func NewService(st store.Store, expander *calendar.Expander, logger *zap.Logger) *Service {
	if expander == nil {
		expander = &calendar.Expander{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if expander.Logger == nil {
		expander.Logger = logger
	}
	return &Service{store: st, expander: expander, logger: logger}
}

// Load fetches and expands everything overlapping the request range.
func (s *Service) Load(ctx context.Context, req Request) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, req)
}

func (s *Service) load(ctx context.Context, req Request) (Snapshot, error) {
	snap := Snapshot{Request: req}
	cals, err := s.store.ListCalendars(ctx)
	if err != nil {
		return snap, fmt.Errorf("load calendars: %w", err)
	}
	snap.Calendars = cals

	events, err := s.store.ListEventsInRange(ctx, req.Start, req.End, req.CalendarIDs)
	if err != nil {
		return snap, fmt.Errorf("load events: %w", err)
	}
	snap.Events = events

	var exceptions []calendar.Exception
	if len(events) > 0 {
		ids := make([]string, 0, len(events))
		var pad time.Duration
		for _, ev := range events {
			ids = append(ids, ev.ID)
			if d := ev.Duration(); d > pad {
				pad = d
			}
		}
		// An occurrence that started before the range can still run into it,
		// and stored override spans assume the duration at write time.
		pad += 24 * time.Hour
		exceptions, err = s.store.ListExceptionsInRange(ctx, req.Start.Add(-pad), req.End.Add(pad), ids)
		if err != nil {
			return snap, fmt.Errorf("load exceptions: %w", err)
		}
	}

	snap.Instances = s.expander.Expand(events, exceptions, req.Start, req.End)
	s.logger.Debug("loaded range",
		zap.Time("start", req.Start),
		zap.Time("end", req.End),
		zap.Int("events", len(events)),
		zap.Int("exceptions", len(exceptions)),
		zap.Int("instances", len(snap.Instances)),
	)
	return snap, nil
}

// Calendars ensures a default calendar exists and returns them all.
func (s *Service) Calendars(ctx context.Context) ([]calendar.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.store.EnsureDefaultCalendar(ctx); err != nil {
		return nil, fmt.Errorf("ensure default calendar: %w", err)
	}
	return s.store.ListCalendars(ctx)
}

// CreateRange creates an event for a drawn range. An empty calendarID
// means the primary calendar; an empty title means DefaultTitle.
func (s *Service) CreateRange(ctx context.Context, r gesture.CreateRange, calendarID, title string) (calendar.Event, error) {
	return s.CreateEvent(ctx, calendar.EventInput{
		CalendarID: calendarID,
		Title:      title,
		Start:      r.Start,
		End:        r.End,
	})
}

// CreateEvent creates an event, filling in the primary calendar and the
// default title when they are empty.
func (s *Service) CreateEvent(ctx context.Context, in calendar.EventInput) (calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.CalendarID == "" {
		primary, err := s.store.EnsureDefaultCalendar(ctx)
		if err != nil {
			return calendar.Event{}, fmt.Errorf("ensure default calendar: %w", err)
		}
		in.CalendarID = primary.ID
	}
	if in.Title == "" {
		in.Title = DefaultTitle
	}
	ev, err := s.store.CreateEvent(ctx, in)
	if err != nil {
		return ev, err
	}
	s.logger.Info("created event", zap.String("id", ev.ID), zap.Time("start", ev.Start))
	return ev, nil
}

// Move reschedules the grabbed occurrence. A single event is updated in
// place; an occurrence of a series gets an override on its exception. It
// returns false when the event no longer exists or nothing changed.
func (s *Service) Move(ctx context.Context, m gesture.MoveEvent) (bool, error) {
	if !m.End.After(m.Start) {
		return false, &calendar.ValidationError{Field: "end", Reason: "must be after start"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.store.GetEvent(ctx, m.EventID)
	if err != nil {
		return false, err
	}
	if ev == nil {
		s.logger.Debug("move: event gone", zap.String("id", m.EventID))
		return false, nil
	}

	if !ev.IsRecurring() {
		if ev.Start.Equal(m.Start) && ev.End.Equal(m.End) {
			return false, nil
		}
		updated, err := s.store.UpdateEvent(ctx, ev.ID, calendar.EventPatch{Start: &m.Start, End: &m.End})
		if err != nil {
			return false, err
		}
		return updated != nil, nil
	}
	return s.moveOccurrence(ctx, *ev, m)
}

func (s *Service) moveOccurrence(ctx context.Context, ev calendar.Event, m gesture.MoveEvent) (bool, error) {
	orig := m.OriginalStart
	if orig.IsZero() {
		return false, &calendar.ValidationError{Field: "originalStart", Reason: "required to move an occurrence"}
	}
	ex, err := s.store.FindException(ctx, ev.ID, orig)
	if err != nil {
		return false, err
	}

	var o calendar.Override
	if ex != nil && ex.Override != nil {
		o = *ex.Override
	}
	start, end := m.Start, m.End
	o.Start, o.End = &start, &end
	// Moving back onto the series slot drops the time override.
	if start.Equal(orig) && end.Equal(orig.Add(ev.Duration())) {
		o.Start, o.End = nil, nil
	}

	switch {
	case ex == nil && o.IsEmpty():
		return false, nil
	case ex == nil:
		created, err := s.store.CreateException(ctx, calendar.ExceptionInput{EventID: ev.ID, OriginalStart: orig, Override: &o})
		if err != nil {
			return false, err
		}
		s.logger.Info("moved occurrence", zap.String("event", ev.ID), zap.String("exception", created.ID))
		return true, nil
	case o.IsEmpty():
		if err := s.store.DeleteException(ctx, ex.ID); err != nil {
			return false, err
		}
		return true, nil
	default:
		no := false
		updated, err := s.store.UpdateException(ctx, ex.ID, calendar.ExceptionPatch{Cancelled: &no, Override: &o})
		if err != nil {
			return false, err
		}
		return updated != nil, nil
	}
}

// CancelOccurrence suppresses one occurrence of a series. For a single
// event it deletes the event.
func (s *Service) CancelOccurrence(ctx context.Context, eventID string, originalStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil || ev == nil {
		return err
	}
	if !ev.IsRecurring() {
		return s.store.DeleteEvent(ctx, eventID)
	}
	ex, err := s.store.FindException(ctx, eventID, originalStart)
	if err != nil {
		return err
	}
	yes := true
	if ex != nil {
		_, err = s.store.UpdateException(ctx, ex.ID, calendar.ExceptionPatch{Cancelled: &yes})
		return err
	}
	_, err = s.store.CreateException(ctx, calendar.ExceptionInput{EventID: eventID, OriginalStart: originalStart, Cancelled: true})
	return err
}

// UpdateEvent patches a series master or single event.
func (s *Service) UpdateEvent(ctx context.Context, id string, patch calendar.EventPatch) (*calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.UpdateEvent(ctx, id, patch)
}

func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted event", zap.String("id", id))
	return nil
}

// Then runs mutate and, if it succeeds, reloads req. The reload is not
// issued until the mutation has returned.
func (s *Service) Then(ctx context.Context, mutate func(context.Context) error, req Request) (Snapshot, error) {
	if err := mutate(ctx); err != nil {
		return Snapshot{Request: req}, err
	}
	return s.Load(ctx, req)
}
