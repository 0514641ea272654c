package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrValidation is wrapped by every rejected mutation.
	ErrValidation = errors.New("validation failed")
	// ErrUnsupportedRule marks recurrence combinations whose semantics are
	// not decided yet (byWeekday together with byMonthDay).
	ErrUnsupportedRule = fmt.Errorf("%w: unsupported recurrence rule", ErrValidation)
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.err != nil {
		return e.err
	}
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

var colorRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// IsHexColor reports whether c is a "#rgb" or "#rrggbb" color.
func IsHexColor(c string) bool {
	return colorRe.MatchString(c)
}

func validateColor(field, c string) error {
	if c == "" || IsHexColor(c) {
		return nil
	}
	return invalid(field, "%q is not a hex color", c)
}

func (in CalendarInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "required")
	}
	if err := validateVisibility(in.Visibility); err != nil {
		return err
	}
	return validateColor("color", in.Color)
}

func (p CalendarPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return invalid("title", "required")
	}
	if p.Visibility != nil {
		if err := validateVisibility(*p.Visibility); err != nil {
			return err
		}
	}
	if p.Color != nil {
		return validateColor("color", *p.Color)
	}
	return nil
}

func validateVisibility(v Visibility) error {
	switch v {
	case "", VisibilityDefault, VisibilityPublic, VisibilityPrivate:
		return nil
	}
	return invalid("visibility", "unknown value %q", v)
}

func validateStatus(s Status) error {
	switch s {
	case "", StatusConfirmed, StatusTentative, StatusCancelled:
		return nil
	}
	return invalid("status", "unknown value %q", s)
}

func validateTransparency(t Transparency) error {
	switch t {
	case "", TransparencyOpaque, TransparencyTransparent:
		return nil
	}
	return invalid("transparency", "unknown value %q", t)
}

// Validate checks a rule against the series start it will be anchored to.
func (r *RecurrenceRule) Validate(seriesStart time.Time) error {
	if r == nil {
		return nil
	}
	switch r.Freq {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
	case "":
		return invalid("recurrence.freq", "required")
	default:
		return invalid("recurrence.freq", "unknown frequency %q", r.Freq)
	}
	if r.Interval < 0 {
		return invalid("recurrence.interval", "must not be negative")
	}
	if r.Count < 0 {
		return invalid("recurrence.count", "must not be negative")
	}
	for _, wd := range r.ByWeekday {
		if wd < time.Sunday || wd > time.Saturday {
			return invalid("recurrence.byWeekday", "%d is not a weekday", wd)
		}
	}
	for _, d := range r.ByMonthDay {
		if d == 0 || d < -31 || d > 31 {
			return invalid("recurrence.byMonthDay", "%d is out of range", d)
		}
	}
	for _, m := range r.ByMonth {
		if m < time.January || m > time.December {
			return invalid("recurrence.byMonth", "%d is not a month", m)
		}
	}
	if len(r.ByWeekday) > 0 && len(r.ByMonthDay) > 0 {
		return &ValidationError{
			Field:  "recurrence",
			Reason: "byWeekday combined with byMonthDay is not supported",
			err:    ErrUnsupportedRule,
		}
	}
	if len(r.ByMonth) > 0 && len(r.ByMonthDay) > 0 && !monthsHaveDay(r.ByMonth, r.ByMonthDay) {
		return invalid("recurrence.byMonthDay", "no month in byMonth has any of these days")
	}
	if r.Until != nil && r.Until.Before(seriesStart) {
		return invalid("recurrence.until", "before the series start")
	}
	return nil
}

// monthsHaveDay reports whether some month has some day; negative days
// count from the end of the month. February counts 29 days.
func monthsHaveDay(months []time.Month, days []int) bool {
	for _, m := range months {
		n := 31
		switch m {
		case time.February:
			n = 29
		case time.April, time.June, time.September, time.November:
			n = 30
		}
		for _, d := range days {
			if d <= n && d >= -n {
				return true
			}
		}
	}
	return false
}

// EffectiveInterval returns the interval with the default of 1 applied.
func (r *RecurrenceRule) EffectiveInterval() int {
	if r == nil || r.Interval <= 0 {
		return 1
	}
	return r.Interval
}

func (in EventInput) Validate() error {
	if strings.TrimSpace(in.CalendarID) == "" {
		return invalid("calendarId", "required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "required")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return invalid("start", "start and end are required")
	}
	if !in.End.After(in.Start) {
		return invalid("end", "must be after start")
	}
	if err := validateStatus(in.Status); err != nil {
		return err
	}
	if err := validateVisibility(in.Visibility); err != nil {
		return err
	}
	if err := validateTransparency(in.Transparency); err != nil {
		return err
	}
	if err := validateColor("color", in.Color); err != nil {
		return err
	}
	for _, rm := range in.Reminders {
		if rm.MinutesBefore < 0 {
			return invalid("reminders", "minutesBefore must not be negative")
		}
		switch rm.Method {
		case ReminderPopup, ReminderEmail:
		default:
			return invalid("reminders", "unknown method %q", rm.Method)
		}
	}
	for _, a := range in.Attendees {
		if strings.TrimSpace(a.Email) == "" {
			return invalid("attendees", "email required")
		}
	}
	return in.Recurrence.Validate(in.Start)
}

// Normalize fills defaults and snaps all-day events to whole local days.
func (in EventInput) Normalize() EventInput {
	if in.Status == "" {
		in.Status = StatusConfirmed
	}
	if in.Visibility == "" {
		in.Visibility = VisibilityDefault
	}
	if in.Transparency == "" {
		in.Transparency = TransparencyOpaque
	}
	if in.AllDay {
		in.Start, in.End = AllDaySpan(in.Start, in.End)
	}
	if in.Recurrence != nil && in.Recurrence.Interval == 0 {
		rule := *in.Recurrence
		rule.Interval = 1
		in.Recurrence = &rule
	}
	return in
}

func (in ExceptionInput) Validate() error {
	if strings.TrimSpace(in.EventID) == "" {
		return invalid("eventId", "required")
	}
	if in.OriginalStart.IsZero() {
		return invalid("originalStart", "required")
	}
	return validateException(in.Cancelled, in.Override)
}

func validateException(cancelled bool, o *Override) error {
	if cancelled && !o.IsEmpty() {
		return invalid("override", "a cancelled occurrence cannot carry an override")
	}
	if !cancelled && o.IsEmpty() {
		return invalid("override", "exception must cancel or override the occurrence")
	}
	if o == nil {
		return nil
	}
	if o.Title != nil && strings.TrimSpace(*o.Title) == "" {
		return invalid("override.title", "must not be blank")
	}
	if o.Start != nil && o.End != nil && !o.End.After(*o.Start) {
		return invalid("override.end", "must be after start")
	}
	if o.Status != nil {
		if err := validateStatus(*o.Status); err != nil {
			return err
		}
	}
	if o.Color != nil {
		return validateColor("override.color", *o.Color)
	}
	return nil
}

// ToInput converts an event back into an input, used when applying patches.
func (e Event) ToInput() EventInput {
	return EventInput{
		CalendarID:   e.CalendarID,
		Title:        e.Title,
		Description:  e.Description,
		Location:     e.Location,
		Start:        e.Start,
		End:          e.End,
		AllDay:       e.AllDay,
		Timezone:     e.Timezone,
		Status:       e.Status,
		Visibility:   e.Visibility,
		Transparency: e.Transparency,
		Color:        e.Color,
		Recurrence:   e.Recurrence,
		Attendees:    e.Attendees,
		MeetingURL:   e.MeetingURL,
		Reminders:    e.Reminders,
	}
}

// Apply returns the input with the patch applied. The result still needs
// Validate.
func (p EventPatch) Apply(in EventInput) EventInput {
	if p.CalendarID != nil {
		in.CalendarID = *p.CalendarID
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Location != nil {
		in.Location = *p.Location
	}
	if p.Start != nil {
		in.Start = *p.Start
	}
	if p.End != nil {
		in.End = *p.End
	}
	if p.AllDay != nil {
		in.AllDay = *p.AllDay
	}
	if p.Timezone != nil {
		in.Timezone = *p.Timezone
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.Visibility != nil {
		in.Visibility = *p.Visibility
	}
	if p.Transparency != nil {
		in.Transparency = *p.Transparency
	}
	if p.Color != nil {
		in.Color = *p.Color
	}
	if p.ClearRecurrence {
		in.Recurrence = nil
	} else if p.Recurrence != nil {
		in.Recurrence = p.Recurrence
	}
	if p.Attendees != nil {
		in.Attendees = *p.Attendees
	}
	if p.MeetingURL != nil {
		in.MeetingURL = *p.MeetingURL
	}
	if p.Reminders != nil {
		in.Reminders = *p.Reminders
	}
	return in
}

// Apply returns the exception with the patch applied, validated.
func (p ExceptionPatch) Apply(ex Exception) (Exception, error) {
	if p.Cancelled != nil {
		ex.Cancelled = *p.Cancelled
		if ex.Cancelled {
			ex.Override = nil
		}
	}
	if p.Override != nil {
		ex.Override = p.Override
	}
	if err := validateException(ex.Cancelled, ex.Override); err != nil {
		return ex, err
	}
	return ex, nil
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AllDayBounds returns [local midnight, next local midnight) for date.
func AllDayBounds(date time.Time) (time.Time, time.Time) {
	start := StartOfDay(date)
	return start, start.AddDate(0, 0, 1)
}

// AllDaySpan widens [start, end) to whole local days; end stays exclusive.
func AllDaySpan(start, end time.Time) (time.Time, time.Time) {
	s := StartOfDay(start)
	e := StartOfDay(end)
	if e.Before(end) || !e.After(s) {
		e = e.AddDate(0, 0, 1)
	}
	if !e.After(s) {
		e = s.AddDate(0, 0, 1)
	}
	return s, e
}
