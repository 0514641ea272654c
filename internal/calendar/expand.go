package calendar

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxOccurrences = 5000

// instanceNamespace seeds the deterministic instance ids.
var instanceNamespace = uuid.MustParse("8f0c6f0e-4f4b-4d38-9a51-2f2b7c3d9e11")

// InstanceID derives the stable id of the occurrence of eventID that
// originally started at originalStart.
func InstanceID(eventID string, originalStart time.Time) string {
	key := eventID + "|" + originalStart.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(instanceNamespace, []byte(key)).String()
}

// Expander materializes instances for a time range.
type Expander struct {
	// Location is the wall clock recurrences step in. Nil means time.Local.
	Location *time.Location
	// MaxOccurrences caps the occurrences emitted per event and range.
	// Zero means 5000.
	MaxOccurrences int
	Logger         *zap.Logger
}

// Expand uses a default Expander.
func Expand(events []Event, exceptions []Exception, rangeStart, rangeEnd time.Time) []Instance {
	return (&Expander{}).Expand(events, exceptions, rangeStart, rangeEnd)
}

type exceptionKey struct {
	eventID string
	start   int64
}

func keyOf(eventID string, t time.Time) exceptionKey {
	return exceptionKey{eventID: eventID, start: t.UnixNano()}
}

// Expand returns every instance overlapping [rangeStart, rangeEnd), sorted
// by start, then title, then instance id.
func (x *Expander) Expand(events []Event, exceptions []Exception, rangeStart, rangeEnd time.Time) []Instance {
	if !rangeEnd.After(rangeStart) {
		return nil
	}
	loc := x.Location
	if loc == nil {
		loc = time.Local
	}
	limit := x.MaxOccurrences
	if limit <= 0 {
		limit = defaultMaxOccurrences
	}
	logger := x.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	byKey := make(map[exceptionKey]Exception, len(exceptions))
	byEvent := make(map[string][]Exception)
	for _, ex := range exceptions {
		byKey[keyOf(ex.EventID, ex.OriginalStart)] = ex
		byEvent[ex.EventID] = append(byEvent[ex.EventID], ex)
	}

	var out []Instance
	for _, ev := range events {
		if !ev.End.After(ev.Start) {
			continue
		}
		if !ev.IsRecurring() {
			if inst, ok := x.single(ev, byKey, rangeStart, rangeEnd, loc); ok {
				out = append(out, inst)
			}
			continue
		}
		insts, err := x.recurring(ev, byKey, byEvent[ev.ID], rangeStart, rangeEnd, loc, limit)
		if errors.Is(err, errTruncated) {
			logger.Warn("expand: truncated occurrences",
				zap.String("event", ev.ID),
				zap.Int("cap", limit),
			)
		} else if err != nil {
			// Rules are validated on write; a failure here means the row was
			// edited behind our back.
			logger.Error("expand: bad recurrence", zap.Error(err), zap.String("event", ev.ID))
			continue
		}
		out = append(out, insts...)
	}

	SortInstances(out)
	return out
}

// SortInstances orders instances by start, then title, then id.
func SortInstances(insts []Instance) {
	sort.SliceStable(insts, func(i, j int) bool {
		a, b := insts[i], insts[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.InstanceID < b.InstanceID
	})
}

func overlaps(start, end, rangeStart, rangeEnd time.Time) bool {
	return start.Before(rangeEnd) && end.After(rangeStart)
}

func (x *Expander) single(ev Event, byKey map[exceptionKey]Exception, rangeStart, rangeEnd time.Time, loc *time.Location) (Instance, bool) {
	inst := newInstance(ev, ev.Start.In(loc), ev.End.In(loc), false)
	if ex, ok := byKey[keyOf(ev.ID, ev.Start)]; ok {
		if ex.Cancelled {
			return Instance{}, false
		}
		inst = applyOverride(inst, ex.Override)
	}
	if !overlaps(inst.Start, inst.End, rangeStart, rangeEnd) {
		return Instance{}, false
	}
	return inst, true
}

var errTruncated = errors.New("occurrence cap reached")

func (x *Expander) recurring(ev Event, byKey map[exceptionKey]Exception, evExceptions []Exception,
	rangeStart, rangeEnd time.Time, loc *time.Location, limit int) ([]Instance, error) {
	seriesStart := ev.Start.In(loc)
	rr, err := ev.Recurrence.Compile(seriesStart)
	if err != nil {
		return nil, err
	}

	endOf := occurrenceEnd(ev)
	var (
		out      []Instance
		seen     = make(map[exceptionKey]bool)
		truncErr error
	)
	next := rr.Iterator()
	for {
		s, ok := next()
		if !ok || !s.Before(rangeEnd) {
			break
		}
		e := endOf(s)
		if !e.After(rangeStart) {
			continue
		}
		if len(out) >= limit {
			truncErr = errTruncated
			break
		}
		k := keyOf(ev.ID, s)
		seen[k] = true
		inst := newInstance(ev, s, e, true)
		if ex, ok := byKey[k]; ok {
			if ex.Cancelled {
				continue
			}
			inst = applyOverride(inst, ex.Override)
			if !overlaps(inst.Start, inst.End, rangeStart, rangeEnd) {
				continue
			}
		}
		out = append(out, inst)
	}

	// Overrides can pull an occurrence into the range from outside it.
	for _, ex := range evExceptions {
		k := keyOf(ev.ID, ex.OriginalStart)
		if ex.Cancelled || ex.Override.IsEmpty() || seen[k] {
			continue
		}
		orig := ex.OriginalStart.In(loc)
		if len(rr.Between(orig, orig, true)) == 0 {
			continue
		}
		inst := applyOverride(newInstance(ev, orig, endOf(orig), true), ex.Override)
		if overlaps(inst.Start, inst.End, rangeStart, rangeEnd) {
			out = append(out, inst)
		}
	}
	return out, truncErr
}

// occurrenceEnd returns the end function for occurrences of ev. All-day
// occurrences keep their day count across DST changes; timed ones keep
// their duration.
func occurrenceEnd(ev Event) func(time.Time) time.Time {
	if ev.AllDay {
		days := int(ev.End.Sub(ev.Start).Round(24*time.Hour) / (24 * time.Hour))
		if days < 1 {
			days = 1
		}
		return func(s time.Time) time.Time {
			return StartOfDay(s).AddDate(0, 0, days)
		}
	}
	dur := ev.End.Sub(ev.Start)
	return func(s time.Time) time.Time { return s.Add(dur) }
}

func newInstance(ev Event, start, end time.Time, recurring bool) Instance {
	inst := Instance{
		InstanceID:   InstanceID(ev.ID, start),
		EventID:      ev.ID,
		CalendarID:   ev.CalendarID,
		Title:        ev.Title,
		Description:  ev.Description,
		Location:     ev.Location,
		Start:        start,
		End:          end,
		AllDay:       ev.AllDay,
		Status:       ev.Status,
		Visibility:   ev.Visibility,
		Transparency: ev.Transparency,
		Color:        ev.Color,
		MeetingURL:   ev.MeetingURL,
		Reminders:    ev.Reminders,
		IsRecurring:  recurring,
	}
	if recurring {
		orig := start
		inst.OriginalStart = &orig
	}
	return inst
}

// applyOverride replaces the overridden fields. A start without an end
// keeps the occurrence duration.
func applyOverride(inst Instance, o *Override) Instance {
	if o.IsEmpty() {
		return inst
	}
	inst.IsException = true
	if o.Title != nil {
		inst.Title = *o.Title
	}
	if o.Description != nil {
		inst.Description = *o.Description
	}
	if o.Location != nil {
		inst.Location = *o.Location
	}
	if o.Color != nil {
		inst.Color = *o.Color
	}
	if o.Status != nil {
		inst.Status = *o.Status
	}
	dur := inst.Duration()
	switch {
	case o.Start != nil && o.End != nil:
		inst.Start, inst.End = *o.Start, *o.End
	case o.Start != nil:
		inst.Start, inst.End = *o.Start, o.Start.Add(dur)
	case o.End != nil && o.End.After(inst.Start):
		inst.End = *o.End
	}
	return inst
}
