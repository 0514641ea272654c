package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var freqToRRule = map[Frequency]rrule.Frequency{
	FreqDaily:   rrule.DAILY,
	FreqWeekly:  rrule.WEEKLY,
	FreqMonthly: rrule.MONTHLY,
	FreqYearly:  rrule.YEARLY,
}

// rrule-go numbers weekdays from Monday.
var weekdayToRRule = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Option converts the rule into rrule-go options anchored at dtstart.
// A zero dtstart leaves the anchor unset.
func (r RecurrenceRule) Option(dtstart time.Time) (rrule.ROption, error) {
	freq, ok := freqToRRule[r.Freq]
	if !ok {
		return rrule.ROption{}, invalid("recurrence.freq", "unknown frequency %q", r.Freq)
	}
	opt := rrule.ROption{
		Freq:     freq,
		Dtstart:  dtstart,
		Interval: r.EffectiveInterval(),
		Count:    r.Count,
	}
	if r.Until != nil {
		opt.Until = r.Until.In(locationOf(dtstart))
	}
	for _, wd := range r.ByWeekday {
		opt.Byweekday = append(opt.Byweekday, weekdayToRRule[wd])
	}
	opt.Bymonthday = append(opt.Bymonthday, r.ByMonthDay...)
	for _, m := range r.ByMonth {
		opt.Bymonth = append(opt.Bymonth, int(m))
	}
	return opt, nil
}

// Compile builds an iterator-ready rule for a series starting at dtstart.
func (r RecurrenceRule) Compile(dtstart time.Time) (*rrule.RRule, error) {
	opt, err := r.Option(dtstart)
	if err != nil {
		return nil, err
	}
	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("compile recurrence: %w", err)
	}
	return rr, nil
}

// RuleString renders the rule as an RRULE value ("FREQ=WEEKLY;BYDAY=MO").
func RuleString(r RecurrenceRule) (string, error) {
	opt, err := r.Option(time.Time{})
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// ParseRule reads an RRULE value. Parts the model cannot represent
// (BYSETPOS, BYYEARDAY, BYHOUR, ...) are rejected rather than dropped.
func ParseRule(s string) (*RecurrenceRule, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return nil, &ValidationError{Field: "recurrence", Reason: err.Error()}
	}
	if len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return nil, &ValidationError{Field: "recurrence", Reason: fmt.Sprintf("%q uses unsupported parts", s), err: ErrUnsupportedRule}
	}

	rule := &RecurrenceRule{Interval: opt.Interval, Count: opt.Count}
	for f, rf := range freqToRRule {
		if rf == opt.Freq {
			rule.Freq = f
		}
	}
	if rule.Freq == "" {
		return nil, &ValidationError{Field: "recurrence.freq", Reason: fmt.Sprintf("%q has an unsupported frequency", s), err: ErrUnsupportedRule}
	}
	if rule.Interval <= 1 {
		rule.Interval = 1
	}
	for _, wd := range opt.Byweekday {
		if wd.N() != 0 {
			return nil, &ValidationError{Field: "recurrence.byWeekday", Reason: "ordinal weekdays are not supported", err: ErrUnsupportedRule}
		}
		for w, rw := range weekdayToRRule {
			if rw.Day() == wd.Day() {
				rule.ByWeekday = append(rule.ByWeekday, w)
			}
		}
	}
	rule.ByMonthDay = append(rule.ByMonthDay, opt.Bymonthday...)
	for _, m := range opt.Bymonth {
		rule.ByMonth = append(rule.ByMonth, time.Month(m))
	}
	if !opt.Until.IsZero() {
		until := opt.Until
		rule.Until = &until
	}
	return rule, nil
}

func locationOf(t time.Time) *time.Location {
	if t.IsZero() {
		return time.UTC
	}
	return t.Location()
}
