package calendar

import (
	"time"
)

type Visibility string

const (
	VisibilityDefault Visibility = "default"
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusTentative Status = "tentative"
	StatusCancelled Status = "cancelled"
)

// Transparency is informational only; busy events are not checked for conflicts.
type Transparency string

const (
	TransparencyOpaque      Transparency = "opaque"
	TransparencyTransparent Transparency = "transparent"
)

type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

type ReminderMethod string

const (
	ReminderPopup ReminderMethod = "popup"
	ReminderEmail ReminderMethod = "email"
)

// Calendar is a named bucket of events.
type Calendar struct {
	ID         string
	Title      string
	Color      string // "#rrggbb", empty for the default palette
	Visibility Visibility
	IsPrimary  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecurrenceRule describes how an event repeats. Count and Until are
// alternative terminators; when both are set the first one reached wins.
type RecurrenceRule struct {
	Freq       Frequency      `json:"freq"`
	Interval   int            `json:"interval,omitempty"`
	ByWeekday  []time.Weekday `json:"byWeekday,omitempty"`
	ByMonthDay []int          `json:"byMonthDay,omitempty"`
	ByMonth    []time.Month   `json:"byMonth,omitempty"`
	Count      int            `json:"count,omitempty"`
	Until      *time.Time     `json:"until,omitempty"`
}

type Attendee struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

type Reminder struct {
	Method        ReminderMethod `json:"method"`
	MinutesBefore int            `json:"minutesBefore"`
}

// Event is the stored series master. A nil Recurrence means a single
// occurrence spanning [Start, End).
type Event struct {
	ID           string
	CalendarID   string
	Title        string
	Description  string
	Location     string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Timezone     string
	Status       Status
	Visibility   Visibility
	Transparency Transparency
	Color        string
	Recurrence   *RecurrenceRule
	Attendees    []Attendee
	MeetingURL   string
	Reminders    []Reminder
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (e Event) IsRecurring() bool {
	return e.Recurrence != nil
}

func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Override replaces fields of one occurrence. Nil fields keep the series value.
type Override struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Status      *Status    `json:"status,omitempty"`
}

func (o *Override) IsEmpty() bool {
	return o == nil || (o.Title == nil && o.Description == nil && o.Location == nil &&
		o.Start == nil && o.End == nil && o.Color == nil && o.Status == nil)
}

// Exception cancels or overrides the occurrence of EventID that originally
// started at OriginalStart. At most one exists per (EventID, OriginalStart).
type Exception struct {
	ID            string
	EventID       string
	OriginalStart time.Time
	Cancelled     bool
	Override      *Override
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Instance is one materialized occurrence. Instances are derived on every
// expansion and never persisted.
type Instance struct {
	InstanceID   string
	EventID      string
	CalendarID   string
	Title        string
	Description  string
	Location     string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Status       Status
	Visibility   Visibility
	Transparency Transparency
	Color        string
	MeetingURL   string
	Reminders    []Reminder
	IsRecurring  bool
	// OriginalStart is the un-overridden start, set for recurring occurrences.
	OriginalStart *time.Time
	// IsException reports whether an override was applied.
	IsException bool
}

func (i Instance) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// ExceptionKey returns the start used for exception lookups.
func (i Instance) ExceptionKey() time.Time {
	if i.OriginalStart != nil {
		return *i.OriginalStart
	}
	return i.Start
}

type CalendarInput struct {
	Title      string
	Color      string
	Visibility Visibility
	IsPrimary  bool
}

type CalendarPatch struct {
	Title      *string
	Color      *string
	Visibility *Visibility
	IsPrimary  *bool
}

type EventInput struct {
	CalendarID   string
	Title        string
	Description  string
	Location     string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Timezone     string
	Status       Status
	Visibility   Visibility
	Transparency Transparency
	Color        string
	Recurrence   *RecurrenceRule
	Attendees    []Attendee
	MeetingURL   string
	Reminders    []Reminder
}

// EventPatch updates an event. ClearRecurrence removes the rule, which
// Recurrence == nil alone cannot express.
type EventPatch struct {
	CalendarID      *string
	Title           *string
	Description     *string
	Location        *string
	Start           *time.Time
	End             *time.Time
	AllDay          *bool
	Timezone        *string
	Status          *Status
	Visibility      *Visibility
	Transparency    *Transparency
	Color           *string
	Recurrence      *RecurrenceRule
	ClearRecurrence bool
	Attendees       *[]Attendee
	MeetingURL      *string
	Reminders       *[]Reminder
}

type ExceptionInput struct {
	EventID       string
	OriginalStart time.Time
	Cancelled     bool
	Override      *Override
}

type ExceptionPatch struct {
	Cancelled *bool
	Override  *Override
}
