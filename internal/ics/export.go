// Package ics converts between stored events and iCalendar files.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/cwarden/skuld/internal/calendar"
)

const (
	utcLayout  = "20060102T150405Z"
	dateLayout = "20060102"
)

var statusToICal = map[calendar.Status]ical.ObjectStatus{
	calendar.StatusConfirmed: ical.ObjectStatusConfirmed,
	calendar.StatusTentative: ical.ObjectStatusTentative,
	calendar.StatusCancelled: ical.ObjectStatusCancelled,
}

var visibilityToClass = map[calendar.Visibility]ical.Classification{
	calendar.VisibilityPublic:  ical.ClassificationPublic,
	calendar.VisibilityPrivate: ical.ClassificationPrivate,
}

// Export writes events as one VCALENDAR. Each event keeps its id as UID.
// Cancelled occurrences become EXDATEs and overridden ones become extra
// VEVENTs carrying a RECURRENCE-ID.
func Export(w io.Writer, name string, events []calendar.Event, exceptions []calendar.Exception) error {
	cal := ical.NewCalendarFor("skuld")
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	byEvent := make(map[string][]calendar.Exception)
	for _, ex := range exceptions {
		byEvent[ex.EventID] = append(byEvent[ex.EventID], ex)
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		writeEvent(ve, ev)
		if ev.Recurrence != nil {
			rule, err := calendar.RuleString(*ev.Recurrence)
			if err != nil {
				return fmt.Errorf("event %s: %w", ev.ID, err)
			}
			ve.AddRrule(rule)
		}
		for _, ex := range byEvent[ev.ID] {
			if ex.Cancelled {
				value, params := occurrenceValue(ev, ex.OriginalStart)
				ve.AddExdate(value, params...)
				continue
			}
			ov := cal.AddEvent(ev.ID)
			writeEvent(ov, overridden(ev, ex))
			value, params := occurrenceValue(ev, ex.OriginalStart)
			ov.SetProperty(ical.ComponentPropertyRecurrenceId, value, params...)
		}
	}
	return cal.SerializeTo(w)
}

func writeEvent(ve *ical.VEvent, ev calendar.Event) {
	stamp := ev.UpdatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	ve.SetDtStampTime(stamp)
	if !ev.CreatedAt.IsZero() {
		ve.SetCreatedTime(ev.CreatedAt)
	}
	if !ev.UpdatedAt.IsZero() {
		ve.SetModifiedAt(ev.UpdatedAt)
	}
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	if ev.AllDay {
		ve.SetAllDayStartAt(ev.Start)
		ve.SetAllDayEndAt(ev.End)
	} else {
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
	}
	if s, ok := statusToICal[ev.Status]; ok {
		ve.SetStatus(s)
	}
	if c, ok := visibilityToClass[ev.Visibility]; ok {
		ve.SetClass(c)
	}
	if ev.Transparency == calendar.TransparencyTransparent {
		ve.SetTimeTransparency(ical.TransparencyTransparent)
	}
	if ev.Color != "" {
		ve.SetColor(ev.Color)
	}
	if ev.MeetingURL != "" {
		ve.SetURL(ev.MeetingURL)
	}
	for _, a := range ev.Attendees {
		var params []ical.PropertyParameter
		if a.Name != "" {
			params = append(params, ical.WithCN(a.Name))
		}
		if a.Status != "" {
			params = append(params, ical.ParticipationStatus(strings.ToUpper(a.Status)))
		}
		ve.AddAttendee("mailto:"+a.Email, params...)
	}
	for _, r := range ev.Reminders {
		alarm := ve.AddAlarm()
		if r.Method == calendar.ReminderEmail {
			alarm.SetAction(ical.ActionEmail)
		} else {
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetProperty(ical.ComponentPropertyDescription, ev.Title)
		}
		alarm.SetTrigger(trigger(r.MinutesBefore))
	}
}

// occurrenceValue formats an occurrence start the way DTSTART is written
// for the event: a date for all-day events, UTC otherwise.
func occurrenceValue(ev calendar.Event, t time.Time) (string, []ical.PropertyParameter) {
	if ev.AllDay {
		return t.Format(dateLayout), []ical.PropertyParameter{ical.WithValue(string(ical.ValueDataTypeDate))}
	}
	return t.UTC().Format(utcLayout), nil
}

// overridden returns the occurrence of ev at ex.OriginalStart with the
// override applied, as a standalone event.
func overridden(ev calendar.Event, ex calendar.Exception) calendar.Event {
	occ := ev
	occ.Recurrence = nil
	dur := ev.Duration()
	occ.Start, occ.End = ex.OriginalStart, ex.OriginalStart.Add(dur)
	occ.UpdatedAt = ex.UpdatedAt
	o := ex.Override
	if o == nil {
		return occ
	}
	if o.Title != nil {
		occ.Title = *o.Title
	}
	if o.Description != nil {
		occ.Description = *o.Description
	}
	if o.Location != nil {
		occ.Location = *o.Location
	}
	if o.Color != nil {
		occ.Color = *o.Color
	}
	if o.Status != nil {
		occ.Status = *o.Status
	}
	if o.Start != nil {
		occ.Start, occ.End = *o.Start, o.Start.Add(dur)
	}
	if o.End != nil {
		occ.End = *o.End
	}
	return occ
}

// trigger renders minutes before start as a negative duration.
func trigger(minutes int) string {
	switch {
	case minutes == 0:
		return "PT0M"
	case minutes%(24*60) == 0:
		return fmt.Sprintf("-P%dD", minutes/(24*60))
	case minutes%60 == 0:
		return fmt.Sprintf("-PT%dH", minutes/60)
	default:
		return fmt.Sprintf("-PT%dM", minutes)
	}
}
