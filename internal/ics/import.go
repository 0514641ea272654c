package ics

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/cwarden/skuld/internal/calendar"
)

// Imported is one series (or single event) read from a file. Exceptions
// have no EventID until the event is stored.
type Imported struct {
	UID        string
	Event      calendar.EventInput
	Exceptions []calendar.ExceptionInput
}

// Skipped records a VEVENT that could not be represented.
type Skipped struct {
	UID     string
	Summary string
	Err     error
}

func (s Skipped) Error() string {
	return fmt.Sprintf("%s (%s): %v", s.Summary, s.UID, s.Err)
}

type Result struct {
	Events  []Imported
	Skipped []Skipped
}

var statusFromICal = map[string]calendar.Status{
	string(ical.ObjectStatusConfirmed): calendar.StatusConfirmed,
	string(ical.ObjectStatusTentative): calendar.StatusTentative,
	string(ical.ObjectStatusCancelled): calendar.StatusCancelled,
}

// Import reads every VEVENT in r. Times are converted to loc. Events whose
// recurrence the model cannot express are skipped and reported rather
// than imported with a different meaning.
func Import(r io.Reader, loc *time.Location) (Result, error) {
	var res Result
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return res, fmt.Errorf("parse calendar: %w", err)
	}

	masters := make(map[string]int)
	var overrides []*ical.VEvent
	for _, ve := range cal.Events() {
		if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
			overrides = append(overrides, ve)
			continue
		}
		imp, err := readEvent(ve, loc)
		if err != nil {
			res.Skipped = append(res.Skipped, skipped(ve, err))
			continue
		}
		if _, dup := masters[imp.UID]; dup {
			res.Skipped = append(res.Skipped, skipped(ve, errors.New("duplicate UID")))
			continue
		}
		masters[imp.UID] = len(res.Events)
		res.Events = append(res.Events, imp)
	}

	for _, ve := range overrides {
		i, ok := masters[ve.Id()]
		if !ok {
			res.Skipped = append(res.Skipped, skipped(ve, errors.New("override without its series")))
			continue
		}
		ex, err := readOverride(ve, res.Events[i].Event, loc)
		if err != nil {
			res.Skipped = append(res.Skipped, skipped(ve, err))
			continue
		}
		res.Events[i].Exceptions = append(res.Events[i].Exceptions, ex)
	}
	for i := range res.Events {
		exs := res.Events[i].Exceptions
		sort.SliceStable(exs, func(a, b int) bool { return exs[a].OriginalStart.Before(exs[b].OriginalStart) })
	}
	return res, nil
}

func skipped(ve *ical.VEvent, err error) Skipped {
	return Skipped{UID: ve.Id(), Summary: text(ve, ical.ComponentPropertySummary), Err: err}
}

func text(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return ical.FromText(prop.Value)
	}
	return ""
}

func isAllDay(prop *ical.IANAProperty) bool {
	if prop == nil {
		return false
	}
	if vs := prop.ICalParameters[string(ical.ParameterValue)]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

// bounds reads DTSTART/DTEND. A missing DTEND means one day for all-day
// events and one hour otherwise.
func bounds(ve *ical.VEvent, loc *time.Location) (start, end time.Time, allDay bool, err error) {
	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return start, end, false, errors.New("missing DTSTART")
	}
	allDay = isAllDay(startProp)
	if allDay {
		if start, err = ve.GetAllDayStartAt(); err != nil {
			return
		}
		start = dateIn(start, loc)
		if end, err = ve.GetAllDayEndAt(); err != nil {
			end, err = start.AddDate(0, 0, 1), nil
		} else {
			end = dateIn(end, loc)
		}
		return
	}
	if start, err = ve.GetStartAt(); err != nil {
		return
	}
	start = start.In(loc)
	if end, err = ve.GetEndAt(); err != nil {
		end, err = start.Add(time.Hour), nil
	} else {
		end = end.In(loc)
	}
	return
}

// dateIn keeps the calendar date of t but places it at midnight in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func readEvent(ve *ical.VEvent, loc *time.Location) (Imported, error) {
	imp := Imported{UID: ve.Id()}
	if imp.UID == "" {
		return imp, errors.New("missing UID")
	}
	start, end, allDay, err := bounds(ve, loc)
	if err != nil {
		return imp, err
	}
	in := calendar.EventInput{
		Title:       text(ve, ical.ComponentPropertySummary),
		Description: text(ve, ical.ComponentPropertyDescription),
		Location:    text(ve, ical.ComponentPropertyLocation),
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Color:       text(ve, ical.ComponentPropertyColor),
		MeetingURL:  text(ve, ical.ComponentPropertyUrl),
	}
	if strings.TrimSpace(in.Title) == "" {
		in.Title = "(untitled)"
	}
	// COLOR may be a CSS color name.
	if !calendar.IsHexColor(in.Color) {
		in.Color = ""
	}
	if s, ok := statusFromICal[strings.ToUpper(text(ve, ical.ComponentPropertyStatus))]; ok {
		in.Status = s
	}
	switch strings.ToUpper(text(ve, ical.ComponentPropertyClass)) {
	case string(ical.ClassificationPublic):
		in.Visibility = calendar.VisibilityPublic
	case string(ical.ClassificationPrivate), string(ical.ClassificationConfidential):
		in.Visibility = calendar.VisibilityPrivate
	}
	if strings.EqualFold(text(ve, ical.ComponentPropertyTransp), string(ical.TransparencyTransparent)) {
		in.Transparency = calendar.TransparencyTransparent
	}
	if tz := startTZ(ve); tz != "" {
		in.Timezone = tz
	}
	for _, a := range ve.Attendees() {
		att := calendar.Attendee{Email: a.Email(), Status: strings.ToLower(string(a.ParticipationStatus()))}
		if cn := a.ICalParameters[string(ical.ParameterCn)]; len(cn) > 0 {
			att.Name = cn[0]
		}
		in.Attendees = append(in.Attendees, att)
	}
	for _, alarm := range ve.Alarms() {
		r, ok := readAlarm(alarm)
		if ok {
			in.Reminders = append(in.Reminders, r)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rule, err := calendar.ParseRule(p.Value)
		if err != nil {
			return imp, err
		}
		in.Recurrence = rule
		for _, ex := range ve.GetProperties(ical.ComponentPropertyExdate) {
			times, err := propTimes(ex, allDay, loc)
			if err != nil {
				return imp, fmt.Errorf("EXDATE: %w", err)
			}
			for _, t := range times {
				imp.Exceptions = append(imp.Exceptions, calendar.ExceptionInput{OriginalStart: t, Cancelled: true})
			}
		}
	}
	// The calendar is chosen at store time; check the rest now so one bad
	// event is skipped instead of failing the whole import.
	probe := in
	probe.CalendarID = "import"
	if err := probe.Validate(); err != nil {
		return imp, err
	}
	imp.Event = in
	return imp, nil
}

func startTZ(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if tz := p.ICalParameters[string(ical.ParameterTzid)]; len(tz) > 0 {
			return tz[0]
		}
	}
	return ""
}

func readOverride(ve *ical.VEvent, series calendar.EventInput, loc *time.Location) (calendar.ExceptionInput, error) {
	ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId)
	rids, err := propTimes(ridProp, series.AllDay, loc)
	if err != nil || len(rids) != 1 {
		return calendar.ExceptionInput{}, fmt.Errorf("bad RECURRENCE-ID %q", ridProp.Value)
	}
	ex := calendar.ExceptionInput{OriginalStart: rids[0]}
	if strings.EqualFold(text(ve, ical.ComponentPropertyStatus), string(ical.ObjectStatusCancelled)) {
		ex.Cancelled = true
		return ex, nil
	}

	o := &calendar.Override{}
	if v := text(ve, ical.ComponentPropertySummary); v != "" && v != series.Title {
		o.Title = &v
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		if v := ical.FromText(p.Value); v != series.Description {
			o.Description = &v
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		if v := ical.FromText(p.Value); v != series.Location {
			o.Location = &v
		}
	}
	start, end, _, err := bounds(ve, loc)
	if err != nil {
		return ex, err
	}
	if !start.Equal(ex.OriginalStart) {
		o.Start = &start
	}
	if end.Sub(start) != series.End.Sub(series.Start) || o.Start != nil {
		o.End = &end
	}
	if o.IsEmpty() {
		// An override identical to the series still marks the occurrence.
		o.Title = &series.Title
	}
	ex.Override = o
	return ex, nil
}

// propTimes reads a DATE or DATE-TIME list property (EXDATE,
// RECURRENCE-ID), honouring TZID.
func propTimes(p *ical.IANAProperty, allDay bool, loc *time.Location) ([]time.Time, error) {
	if p == nil {
		return nil, errors.New("missing")
	}
	src := time.Local
	if tz := p.ICalParameters[string(ical.ParameterTzid)]; len(tz) > 0 {
		l, err := time.LoadLocation(tz[0])
		if err != nil {
			return nil, err
		}
		src = l
	}
	var out []time.Time
	for _, part := range strings.Split(p.Value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var (
			t   time.Time
			err error
		)
		switch {
		case strings.HasSuffix(part, "Z"):
			t, err = time.Parse(utcLayout, part)
		case strings.Contains(part, "T"):
			t, err = time.ParseInLocation("20060102T150405", part, src)
		default:
			t, err = time.ParseInLocation(dateLayout, part, loc)
		}
		if err != nil {
			return nil, err
		}
		if allDay {
			t = dateIn(t, loc)
		} else {
			t = t.In(loc)
		}
		out = append(out, t)
	}
	return out, nil
}

var triggerPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// readAlarm maps a VALARM with a relative trigger before the start.
// Absolute and after-start triggers have no Reminder equivalent.
func readAlarm(a *ical.VAlarm) (calendar.Reminder, bool) {
	p := a.GetProperty(ical.ComponentPropertyTrigger)
	if p == nil {
		return calendar.Reminder{}, false
	}
	if rel := p.ICalParameters["RELATED"]; len(rel) > 0 && strings.EqualFold(rel[0], "END") {
		return calendar.Reminder{}, false
	}
	m := triggerPattern.FindStringSubmatch(strings.TrimSpace(p.Value))
	if m == nil {
		return calendar.Reminder{}, false
	}
	num := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	minutes := num(m[2])*7*24*60 + num(m[3])*24*60 + num(m[4])*60 + num(m[5]) + num(m[6])/60
	if m[1] != "-" && minutes != 0 {
		return calendar.Reminder{}, false
	}
	method := calendar.ReminderPopup
	if act := a.GetProperty(ical.ComponentPropertyAction); act != nil && strings.EqualFold(act.Value, string(ical.ActionEmail)) {
		method = calendar.ReminderEmail
	}
	return calendar.Reminder{Method: method, MinutesBefore: minutes}, true
}
