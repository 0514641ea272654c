package ics

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarden/skuld/internal/calendar"
)

func at(day, hour, min int) time.Time {
	return time.Date(2025, 3, day, hour, min, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func TestExportImportRoundTrip(t *testing.T) {
	moved := at(6, 11, 0)
	events := []calendar.Event{
		{
			ID:          "standup",
			CalendarID:  "cal",
			Title:       "Standup; daily, short",
			Description: "Line one\nLine two",
			Start:       at(3, 9, 0),
			End:         at(3, 9, 15),
			Status:      calendar.StatusConfirmed,
			Visibility:  calendar.VisibilityPrivate,
			Color:       "#336699",
			Recurrence: &calendar.RecurrenceRule{
				Freq:      calendar.FreqWeekly,
				Interval:  1,
				ByWeekday: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
				Count:     10,
			},
			Attendees: []calendar.Attendee{{Email: "ann@example.com", Name: "Ann", Status: "accepted"}},
			Reminders: []calendar.Reminder{{Method: calendar.ReminderPopup, MinutesBefore: 10}},
		},
		{
			ID:         "holiday",
			CalendarID: "cal",
			Title:      "Holiday",
			Start:      time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			End:        time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
			AllDay:     true,
			Status:     calendar.StatusTentative,
		},
	}
	exceptions := []calendar.Exception{
		{EventID: "standup", OriginalStart: at(5, 9, 0), Cancelled: true},
		{EventID: "standup", OriginalStart: at(7, 9, 0), Override: &calendar.Override{Start: &moved, Title: strPtr("Late standup")}},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "Work", events, exceptions))
	out := buf.String()
	assert.Contains(t, out, "X-WR-CALNAME:Work")
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY")
	assert.Contains(t, out, "EXDATE:20250305T090000Z")
	assert.Contains(t, out, "RECURRENCE-ID:20250307T090000Z")
	assert.Contains(t, out, "TRIGGER:-PT10M")

	res, err := Import(strings.NewReader(out), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Events, 2)

	standup := res.Events[0]
	assert.Equal(t, "standup", standup.UID)
	assert.Equal(t, "Standup; daily, short", standup.Event.Title)
	assert.Equal(t, "Line one\nLine two", standup.Event.Description)
	assert.True(t, standup.Event.Start.Equal(at(3, 9, 0)))
	assert.True(t, standup.Event.End.Equal(at(3, 9, 15)))
	assert.Equal(t, calendar.VisibilityPrivate, standup.Event.Visibility)
	assert.Equal(t, "#336699", standup.Event.Color)
	require.NotNil(t, standup.Event.Recurrence)
	assert.Equal(t, calendar.FreqWeekly, standup.Event.Recurrence.Freq)
	assert.Equal(t, 10, standup.Event.Recurrence.Count)
	assert.ElementsMatch(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, standup.Event.Recurrence.ByWeekday)
	assert.Equal(t, []calendar.Attendee{{Email: "ann@example.com", Name: "Ann", Status: "accepted"}}, standup.Event.Attendees)
	assert.Equal(t, []calendar.Reminder{{Method: calendar.ReminderPopup, MinutesBefore: 10}}, standup.Event.Reminders)

	require.Len(t, standup.Exceptions, 2)
	assert.True(t, standup.Exceptions[0].Cancelled)
	assert.True(t, standup.Exceptions[0].OriginalStart.Equal(at(5, 9, 0)))
	over := standup.Exceptions[1]
	assert.True(t, over.OriginalStart.Equal(at(7, 9, 0)))
	require.NotNil(t, over.Override)
	assert.Equal(t, "Late standup", *over.Override.Title)
	assert.True(t, over.Override.Start.Equal(moved))

	holiday := res.Events[1]
	assert.True(t, holiday.Event.AllDay)
	assert.Equal(t, calendar.StatusTentative, holiday.Event.Status)
	assert.True(t, holiday.Event.Start.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)))
	assert.True(t, holiday.Event.End.Equal(time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)))
}

const foreign = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example//EN
BEGIN:VEVENT
UID:last-friday
DTSTAMP:20250101T000000Z
SUMMARY:Last Friday
DTSTART:20250131T170000Z
DTEND:20250131T180000Z
RRULE:FREQ=MONTHLY;BYDAY=FR;BYSETPOS=-1
END:VEVENT
BEGIN:VEVENT
UID:orphan
DTSTAMP:20250101T000000Z
SUMMARY:Orphan override
RECURRENCE-ID:20250110T090000Z
DTSTART:20250110T100000Z
DTEND:20250110T110000Z
END:VEVENT
BEGIN:VEVENT
UID:lunch
DTSTAMP:20250101T000000Z
SUMMARY:Lunch
DTSTART;TZID=Europe/Berlin:20250110T120000
COLOR:tomato
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER:-PT1H
END:VALARM
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER;VALUE=DATE-TIME:20250110T100000Z
END:VALARM
END:VEVENT
BEGIN:VEVENT
UID:daily
DTSTAMP:20250101T000000Z
SUMMARY:Daily
DTSTART:20250106T080000Z
DTEND:20250106T083000Z
RRULE:FREQ=DAILY;UNTIL=20250112T080000Z
EXDATE:20250107T080000Z,20250108T080000Z
END:VEVENT
BEGIN:VEVENT
UID:daily
DTSTAMP:20250101T000000Z
SUMMARY:Daily
RECURRENCE-ID:20250109T080000Z
STATUS:CANCELLED
DTSTART:20250109T080000Z
DTEND:20250109T083000Z
END:VEVENT
END:VCALENDAR
`

func TestImportForeignFile(t *testing.T) {
	res, err := Import(strings.NewReader(strings.ReplaceAll(foreign, "\n", "\r\n")), time.UTC)
	require.NoError(t, err)

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "last-friday", res.Skipped[0].UID)
	assert.True(t, errors.Is(res.Skipped[0].Err, calendar.ErrUnsupportedRule))
	assert.Equal(t, "orphan", res.Skipped[1].UID)

	require.Len(t, res.Events, 2)
	lunch := res.Events[0]
	assert.Equal(t, "Europe/Berlin", lunch.Event.Timezone)
	assert.True(t, lunch.Event.Start.Equal(time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, lunch.Event.End.Sub(lunch.Event.Start))
	assert.Empty(t, lunch.Event.Color)
	assert.Equal(t, []calendar.Reminder{{Method: calendar.ReminderPopup, MinutesBefore: 60}}, lunch.Event.Reminders)

	daily := res.Events[1]
	require.NotNil(t, daily.Event.Recurrence)
	require.NotNil(t, daily.Event.Recurrence.Until)
	assert.True(t, daily.Event.Recurrence.Until.Equal(time.Date(2025, 1, 12, 8, 0, 0, 0, time.UTC)))
	require.Len(t, daily.Exceptions, 3)
	for _, ex := range daily.Exceptions {
		assert.True(t, ex.Cancelled)
	}
	assert.True(t, daily.Exceptions[2].OriginalStart.Equal(time.Date(2025, 1, 9, 8, 0, 0, 0, time.UTC)))
}

func TestImportRejectsGarbage(t *testing.T) {
	_, err := Import(strings.NewReader("not a calendar"), time.UTC)
	assert.Error(t, err)
}

func TestTrigger(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "PT0M"},
		{15, "-PT15M"},
		{120, "-PT2H"},
		{2 * 24 * 60, "-P2D"},
	}
	for _, tt := range tests {
		if got := trigger(tt.minutes); got != tt.want {
			t.Errorf("trigger(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}
