package calendar

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRuleStringRoundTrip(t *testing.T) {
	until := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	tests := []struct {
		name string
		rule RecurrenceRule
		want string
	}{
		{
			name: "daily",
			rule: RecurrenceRule{Freq: FreqDaily, Interval: 1},
			want: "FREQ=DAILY;INTERVAL=1",
		},
		{
			name: "weekly with days and count",
			rule: RecurrenceRule{Freq: FreqWeekly, Interval: 2, Count: 10, ByWeekday: []time.Weekday{time.Monday, time.Thursday}},
			want: "FREQ=WEEKLY;INTERVAL=2;COUNT=10;BYDAY=MO,TH",
		},
		{
			name: "monthly until",
			rule: RecurrenceRule{Freq: FreqMonthly, Interval: 1, ByMonthDay: []int{15}, Until: &until},
			want: "FREQ=MONTHLY;INTERVAL=1;UNTIL=20250630T235959Z;BYMONTHDAY=15",
		},
		{
			name: "yearly by month",
			rule: RecurrenceRule{Freq: FreqYearly, Interval: 1, ByMonth: []time.Month{time.March}},
			want: "FREQ=YEARLY;INTERVAL=1;BYMONTH=3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RuleString(tt.rule)
			if err != nil {
				t.Fatalf("RuleString: %v", err)
			}
			if got != tt.want {
				t.Errorf("RuleString = %q, want %q", got, tt.want)
			}
			parsed, err := ParseRule(got)
			if err != nil {
				t.Fatalf("ParseRule(%q): %v", got, err)
			}
			if parsed.Until != nil && tt.rule.Until != nil {
				if !parsed.Until.Equal(*tt.rule.Until) {
					t.Errorf("until %v, want %v", parsed.Until, tt.rule.Until)
				}
				parsed.Until = tt.rule.Until
			}
			if !reflect.DeepEqual(*parsed, tt.rule) {
				t.Errorf("ParseRule = %+v, want %+v", *parsed, tt.rule)
			}
		})
	}
}

func TestParseRuleRejectsUnsupported(t *testing.T) {
	tests := []string{
		"FREQ=MONTHLY;BYDAY=2TU",
		"FREQ=MONTHLY;BYSETPOS=-1;BYDAY=MO,TU,WE,TH,FR",
		"FREQ=HOURLY",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, err := ParseRule(s)
			if !errors.Is(err, ErrUnsupportedRule) {
				t.Errorf("ParseRule(%q) = %v, want ErrUnsupportedRule", s, err)
			}
		})
	}
}

func TestParseRuleGarbage(t *testing.T) {
	if _, err := ParseRule("FREQ=SOMETIMES"); !errors.Is(err, ErrValidation) {
		t.Errorf("got %v, want a validation error", err)
	}
}
