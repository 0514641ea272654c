// Package parser turns quick-add text such as "tomorrow 2pm-3pm dentist"
// into a draft event.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cwarden/skuld/internal/calendar"
)

// Draft is the result of parsing quick-add text. Times are minutes of Date.
type Draft struct {
	Date     time.Time
	HasTime  bool
	StartMin int
	// EndMin is set when the text names an end or a duration. It may exceed
	// a day for "11pm for 2h".
	HasEnd bool
	EndMin int
	Title  string
}

// Bounds returns the draft as [start, end). Without a time the draft is an
// all-day event; without an end it lasts def.
func (d *Draft) Bounds(def time.Duration) (start, end time.Time, allDay bool) {
	if !d.HasTime {
		start, end = calendar.AllDayBounds(d.Date)
		return start, end, true
	}
	y, m, day := d.Date.Date()
	start = time.Date(y, m, day, 0, 0, 0, 0, d.Date.Location()).Add(time.Duration(d.StartMin) * time.Minute)
	if d.HasEnd {
		end = start.Add(time.Duration(d.EndMin-d.StartMin) * time.Minute)
	} else {
		end = start.Add(def)
	}
	return start, end, false
}

// Input converts the draft into an event on calendarID, using fallback
// when the text named no title.
func (d *Draft) Input(calendarID, fallback string, def time.Duration) calendar.EventInput {
	start, end, allDay := d.Bounds(def)
	title := d.Title
	if title == "" {
		title = fallback
	}
	return calendar.EventInput{
		CalendarID: calendarID,
		Title:      title,
		Start:      start,
		End:        end,
		AllDay:     allDay,
	}
}

var ErrEmpty = errors.New("empty input")

type TimeParser struct {
	now      func() time.Time
	location *time.Location
}

func NewTimeParser() *TimeParser {
	return &TimeParser{
		now:      time.Now,
		location: time.Local,
	}
}

func (p *TimeParser) SetNow(now time.Time) {
	p.now = func() time.Time { return now }
	p.location = now.Location()
}

var (
	weekdayRe   = regexp.MustCompile(`^(?:(next|this|on)\s+)?(mon|monday|tue|tues|tuesday|wed|wednesday|thu|thur|thursday|fri|friday|sat|saturday|sun|sunday)\b`)
	inRe        = regexp.MustCompile(`^in\s+(\d+)\s+(day|days|week|weeks|month|months)\b`)
	fromNowRe   = regexp.MustCompile(`^(\d+)\s+(day|days|week|weeks|month|months)\s+from\s+(?:now|today)\b`)
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	longDateRe  = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	shortDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})\b`)
	monthNameRe = regexp.MustCompile(`^(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)

	clock     = `(\d{1,2})(?::(\d{2}))?\s*(am|pm|a|p)?`
	rangeRe   = regexp.MustCompile(`^(?:from\s+)?` + clock + `\s*(?:-|–|to|until)\s*` + clock + `\b`)
	timeRe    = regexp.MustCompile(`^` + clock + `\b`)
	forRe     = regexp.MustCompile(`^for\s+(\d+)\s*(m|min|mins|minutes?|h|hr|hrs|hours?)\b`)
	namedTime = []struct {
		name string
		hour int
	}{
		{"noon", 12},
		{"midnight", 0},
		{"morning", 9},
		{"afternoon", 14},
		{"evening", 18},
		{"tonight", 20},
		{"night", 21},
	}
)

// Parse reads an optional date and an optional time or time range, in
// either order, from the front of input. Whatever follows is the title.
func (p *TimeParser) Parse(input string) (*Draft, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmpty
	}

	draft := &Draft{Date: p.today()}
	remaining := input
	var haveDate bool

	for range 2 {
		if !haveDate {
			date, text, ok, err := p.parseDate(remaining)
			if err != nil {
				return nil, err
			}
			if ok {
				draft.Date, remaining, haveDate = date, text, true
				continue
			}
		}
		if !draft.HasTime {
			ok, text, err := p.parseTime(remaining, draft)
			if err != nil {
				return nil, err
			}
			if ok {
				remaining = text
				continue
			}
		}
		break
	}

	draft.Title = strings.TrimSpace(remaining)
	return draft, nil
}

func (p *TimeParser) parseDate(input string) (time.Time, string, bool, error) {
	lower := strings.ToLower(input)
	today := p.today()

	switch {
	case hasWord(lower, "today"):
		return today, rest(input, 5), true, nil
	case hasWord(lower, "tomorrow"):
		return today.AddDate(0, 0, 1), rest(input, 8), true, nil
	case hasWord(lower, "tmrw"):
		return today.AddDate(0, 0, 1), rest(input, 4), true, nil
	case hasWord(lower, "yesterday"):
		return today.AddDate(0, 0, -1), rest(input, 9), true, nil
	}

	if m := weekdayRe.FindStringSubmatch(lower); m != nil {
		return p.findNextWeekday(parseWeekday(m[2]), m[1] == "next"), rest(input, len(m[0])), true, nil
	}

	for _, re := range []*regexp.Regexp{inRe, fromNowRe} {
		if m := re.FindStringSubmatch(lower); m != nil {
			n, _ := strconv.Atoi(m[1])
			return addUnits(today, n, m[2]), rest(input, len(m[0])), true, nil
		}
	}

	if m := isoDateRe.FindStringSubmatch(input); m != nil {
		date, err := p.date(atoi(m[1]), atoi(m[2]), atoi(m[3]))
		return date, rest(input, len(m[0])), err == nil, err
	}
	if m := longDateRe.FindStringSubmatch(input); m != nil {
		date, err := p.date(atoi(m[3]), atoi(m[1]), atoi(m[2]))
		return date, rest(input, len(m[0])), err == nil, err
	}
	if m := shortDateRe.FindStringSubmatch(input); m != nil {
		date, err := p.date(today.Year(), atoi(m[1]), atoi(m[2]))
		return date, rest(input, len(m[0])), err == nil, err
	}
	if m := monthNameRe.FindStringSubmatch(lower); m != nil {
		year := today.Year()
		if m[3] != "" {
			year = atoi(m[3])
		}
		date, err := p.date(year, int(parseMonth(m[1])), atoi(m[2]))
		return date, rest(input, len(m[0])), err == nil, err
	}

	return time.Time{}, input, false, nil
}

// date builds a date, rejecting values time.Date would normalize.
func (p *TimeParser) date(year, month, day int) (time.Time, error) {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.location)
	if d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return d, nil
}

func (p *TimeParser) parseTime(input string, draft *Draft) (bool, string, error) {
	original := input
	lower := strings.ToLower(input)
	at := hasWord(lower, "at")
	if at {
		input = rest(input, 2)
		lower = strings.ToLower(input)
	}

	// A bare "1-2" needs "from" before it counts as a range.
	if m := rangeRe.FindStringSubmatch(lower); m != nil && (m[2]+m[3]+m[5]+m[6] != "" || strings.HasPrefix(lower, "from ")) {
		start, err := clockMinutes(m[1], m[2], m[3])
		if err != nil {
			return false, input, err
		}
		end, err := clockMinutes(m[4], m[5], m[6])
		if err != nil {
			return false, input, err
		}
		// "2-4pm" and "11-1pm": the start borrows the end's meridiem, then
		// an end before the start is read as afternoon.
		if m[3] == "" && m[6] != "" && isPM(m[6]) && start < 12*60 && start+12*60 < end {
			start += 12 * 60
		}
		if end <= start && m[6] == "" && end < 12*60 {
			end += 12 * 60
		}
		if end <= start {
			return false, input, fmt.Errorf("end %s is not after start %s", formatMinutes(end), formatMinutes(start))
		}
		draft.HasTime, draft.StartMin = true, start
		draft.HasEnd, draft.EndMin = true, end
		return true, rest(input, len(m[0])), nil
	}

	if m := timeRe.FindStringSubmatch(lower); m != nil && (m[2] != "" || m[3] != "" || at) {
		start, err := clockMinutes(m[1], m[2], m[3])
		if err != nil {
			return false, input, err
		}
		draft.HasTime, draft.StartMin = true, start
		return true, p.parseFor(rest(input, len(m[0])), draft), nil
	}

	for _, nt := range namedTime {
		if hasWord(lower, nt.name) {
			draft.HasTime, draft.StartMin = true, nt.hour*60
			return true, p.parseFor(rest(input, len(nt.name)), draft), nil
		}
	}

	return false, original, nil
}

// parseFor reads an optional "for 30m" after a start time.
func (p *TimeParser) parseFor(input string, draft *Draft) string {
	m := forRe.FindStringSubmatch(strings.ToLower(input))
	if m == nil {
		return input
	}
	n := atoi(m[1])
	if strings.HasPrefix(m[2], "h") {
		n *= 60
	}
	if n <= 0 {
		return input
	}
	draft.HasEnd, draft.EndMin = true, draft.StartMin+n
	return rest(input, len(m[0]))
}

func clockMinutes(hour, minute, meridiem string) (int, error) {
	h := atoi(hour)
	min := 0
	if minute != "" {
		min = atoi(minute)
	}
	if min > 59 {
		return 0, fmt.Errorf("invalid minute %q", minute)
	}
	switch {
	case meridiem == "":
		if h > 23 {
			return 0, fmt.Errorf("invalid hour %q", hour)
		}
	case h < 1 || h > 12:
		return 0, fmt.Errorf("invalid hour %q for %s", hour, meridiem)
	case isPM(meridiem) && h < 12:
		h += 12
	case !isPM(meridiem) && h == 12:
		h = 0
	}
	return h*60 + min, nil
}

func isPM(meridiem string) bool {
	return strings.HasPrefix(meridiem, "p")
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func addUnits(date time.Time, n int, unit string) time.Time {
	switch {
	case strings.HasPrefix(unit, "week"):
		return date.AddDate(0, 0, n*7)
	case strings.HasPrefix(unit, "month"):
		return date.AddDate(0, n, 0)
	default:
		return date.AddDate(0, 0, n)
	}
}

func parseWeekday(s string) time.Weekday {
	switch s[:3] {
	case "mon":
		return time.Monday
	case "tue":
		return time.Tuesday
	case "wed":
		return time.Wednesday
	case "thu":
		return time.Thursday
	case "fri":
		return time.Friday
	case "sat":
		return time.Saturday
	default:
		return time.Sunday
	}
}

func parseMonth(s string) time.Month {
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), s[:3]) {
			return m
		}
	}
	return time.January
}

// findNextWeekday returns the next target day after today. "next" skips
// the coming one when it falls in the current week.
func (p *TimeParser) findNextWeekday(target time.Weekday, skipThisWeek bool) time.Time {
	date := p.today()
	days := int(target - date.Weekday())
	if days <= 0 {
		days += 7
	}
	if skipThisWeek && days < 7 && int(date.Weekday())+days < 7 {
		days += 7
	}
	return date.AddDate(0, 0, days)
}

func (p *TimeParser) today() time.Time {
	y, m, d := p.now().In(p.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.location)
}

// hasWord reports whether s starts with word followed by a boundary.
func hasWord(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	return len(s) == len(word) || !isWordByte(s[len(word)])
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func rest(s string, n int) string {
	return strings.TrimSpace(s[n:])
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
