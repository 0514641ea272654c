package parser

import (
	"errors"
	"testing"
	"time"
)

func newParser() *TimeParser {
	parser := NewTimeParser()
	// Friday
	parser.SetNow(time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local))
	return parser
}

func TestParseRelativeDates(t *testing.T) {
	parser := newParser()

	tests := []struct {
		input        string
		expectedDate time.Time
		expectedText string
		hasTime      bool
	}{
		{
			input:        "today meeting with team",
			expectedDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local),
			expectedText: "meeting with team",
		},
		{
			input:        "tomorrow 2pm dentist appointment",
			expectedDate: time.Date(2024, 3, 16, 0, 0, 0, 0, time.Local),
			expectedText: "dentist appointment",
			hasTime:      true,
		},
		{
			input:        "next monday submit report",
			expectedDate: time.Date(2024, 3, 18, 0, 0, 0, 0, time.Local),
			expectedText: "submit report",
		},
		{
			input:        "friday retro",
			expectedDate: time.Date(2024, 3, 22, 0, 0, 0, 0, time.Local),
			expectedText: "retro",
		},
		{
			input:        "in 3 days project deadline",
			expectedDate: time.Date(2024, 3, 18, 0, 0, 0, 0, time.Local),
			expectedText: "project deadline",
		},
		{
			input:        "2 weeks from now vacation starts",
			expectedDate: time.Date(2024, 3, 29, 0, 0, 0, 0, time.Local),
			expectedText: "vacation starts",
		},
		{
			input:        "todays plan",
			expectedDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local),
			expectedText: "todays plan",
		},
		{
			input:        "wedding rehearsal",
			expectedDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local),
			expectedText: "wedding rehearsal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if !sameDate(result.Date, tt.expectedDate) {
				t.Errorf("Date mismatch: got %v, want %v", result.Date, tt.expectedDate)
			}

			if result.Title != tt.expectedText {
				t.Errorf("Title mismatch: got %q, want %q", result.Title, tt.expectedText)
			}

			if result.HasTime != tt.hasTime {
				t.Errorf("HasTime mismatch: got %v, want %v", result.HasTime, tt.hasTime)
			}
		})
	}
}

func TestParseAbsoluteDates(t *testing.T) {
	parser := newParser()

	tests := []struct {
		input        string
		expectedDate time.Time
		expectedText string
	}{
		{
			input:        "3/25/2024 birthday party",
			expectedDate: time.Date(2024, 3, 25, 0, 0, 0, 0, time.Local),
			expectedText: "birthday party",
		},
		{
			input:        "12-31-2024 new year's eve",
			expectedDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.Local),
			expectedText: "new year's eve",
		},
		{
			input:        "2024-07-04 fireworks",
			expectedDate: time.Date(2024, 7, 4, 0, 0, 0, 0, time.Local),
			expectedText: "fireworks",
		},
		{
			input:        "4/1 april fools",
			expectedDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local),
			expectedText: "april fools",
		},
		{
			input:        "May 15, 2024 conference",
			expectedDate: time.Date(2024, 5, 15, 0, 0, 0, 0, time.Local),
			expectedText: "conference",
		},
		{
			input:        "december 25th christmas",
			expectedDate: time.Date(2024, 12, 25, 0, 0, 0, 0, time.Local),
			expectedText: "christmas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if !sameDate(result.Date, tt.expectedDate) {
				t.Errorf("Date mismatch: got %v, want %v", result.Date, tt.expectedDate)
			}

			if result.Title != tt.expectedText {
				t.Errorf("Title mismatch: got %q, want %q", result.Title, tt.expectedText)
			}
		})
	}
}

func TestParseTimes(t *testing.T) {
	parser := newParser()

	tests := []struct {
		input        string
		expectedHour int
		expectedMin  int
		expectedText string
	}{
		{"2pm meeting", 14, 0, "meeting"},
		{"14:30 conference call", 14, 30, "conference call"},
		{"at 9am standup", 9, 0, "standup"},
		{"at 9 standup", 9, 0, "standup"},
		{"12am backup", 0, 0, "backup"},
		{"12pm lunch", 12, 0, "lunch"},
		{"noon lunch", 12, 0, "lunch"},
		{"at noon lunch", 12, 0, "lunch"},
		{"midnight deadline", 0, 0, "deadline"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if !result.HasTime {
				t.Fatal("Expected time to be parsed")
			}

			if result.StartMin != tt.expectedHour*60+tt.expectedMin {
				t.Errorf("Start mismatch: got %d, want %02d:%02d", result.StartMin, tt.expectedHour, tt.expectedMin)
			}

			if result.HasEnd {
				t.Error("Single time should not set an end")
			}

			if result.Title != tt.expectedText {
				t.Errorf("Title mismatch: got %q, want %q", result.Title, tt.expectedText)
			}
		})
	}
}

func TestParseTimeRanges(t *testing.T) {
	parser := newParser()

	tests := []struct {
		input            string
		expectedStart    int
		expectedDuration time.Duration
		expectedText     string
	}{
		{"2pm-4pm workshop", 14 * 60, 2 * time.Hour, "workshop"},
		{"9:00-10:30 meeting", 9 * 60, 90 * time.Minute, "meeting"},
		{"1pm to 2pm lunch break", 13 * 60, time.Hour, "lunch break"},
		{"2-4pm review", 14 * 60, 2 * time.Hour, "review"},
		{"11-1pm brunch", 11 * 60, 2 * time.Hour, "brunch"},
		{"from 9-5 offsite", 9 * 60, 8 * time.Hour, "offsite"},
		{"3pm for 45m call", 15 * 60, 45 * time.Minute, "call"},
		{"at 10:15 for 2h planning", 10*60 + 15, 2 * time.Hour, "planning"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if !result.HasTime || !result.HasEnd {
				t.Fatal("Expected a time range to be parsed")
			}

			if result.StartMin != tt.expectedStart {
				t.Errorf("Start mismatch: got %d, want %d", result.StartMin, tt.expectedStart)
			}

			if got := time.Duration(result.EndMin-result.StartMin) * time.Minute; got != tt.expectedDuration {
				t.Errorf("Duration mismatch: got %v, want %v", got, tt.expectedDuration)
			}

			if result.Title != tt.expectedText {
				t.Errorf("Title mismatch: got %q, want %q", result.Title, tt.expectedText)
			}
		})
	}
}

func TestParseCombinations(t *testing.T) {
	parser := newParser()

	tests := []struct {
		input        string
		expectedDate time.Time
		expectedHour int
		expectedText string
	}{
		{
			input:        "tomorrow at 3pm doctor appointment",
			expectedDate: time.Date(2024, 3, 16, 0, 0, 0, 0, time.Local),
			expectedHour: 15,
			expectedText: "doctor appointment",
		},
		{
			input:        "next friday 2:30pm team meeting",
			expectedDate: time.Date(2024, 3, 22, 0, 0, 0, 0, time.Local),
			expectedHour: 14,
			expectedText: "team meeting",
		},
		{
			input:        "May 20, 2024 at noon graduation",
			expectedDate: time.Date(2024, 5, 20, 0, 0, 0, 0, time.Local),
			expectedHour: 12,
			expectedText: "graduation",
		},
		{
			input:        "3pm tomorrow haircut",
			expectedDate: time.Date(2024, 3, 16, 0, 0, 0, 0, time.Local),
			expectedHour: 15,
			expectedText: "haircut",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if !sameDate(result.Date, tt.expectedDate) {
				t.Errorf("Date mismatch: got %v, want %v", result.Date, tt.expectedDate)
			}

			if !result.HasTime {
				t.Fatal("Expected time to be parsed")
			}

			if result.StartMin/60 != tt.expectedHour {
				t.Errorf("Hour mismatch: got %d, want %d", result.StartMin/60, tt.expectedHour)
			}

			if result.Title != tt.expectedText {
				t.Errorf("Title mismatch: got %q, want %q", result.Title, tt.expectedText)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	parser := newParser()

	tests := []string{
		"2/30/2024 impossible",
		"25:00 late",
		"13pm typo",
		"4pm-2pm backwards",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := parser.Parse(input); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}

	if _, err := parser.Parse("   "); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
}

func TestDraftBounds(t *testing.T) {
	parser := newParser()

	draft, err := parser.Parse("tomorrow 2pm dentist")
	if err != nil {
		t.Fatal(err)
	}
	start, end, allDay := draft.Bounds(30 * time.Minute)
	if allDay {
		t.Error("Timed draft should not be all-day")
	}
	if want := time.Date(2024, 3, 16, 14, 0, 0, 0, time.Local); !start.Equal(want) {
		t.Errorf("Start mismatch: got %v, want %v", start, want)
	}
	if end.Sub(start) != 30*time.Minute {
		t.Errorf("Default duration not applied: %v", end.Sub(start))
	}

	draft, err = parser.Parse("tomorrow holiday")
	if err != nil {
		t.Fatal(err)
	}
	start, end, allDay = draft.Bounds(time.Hour)
	if !allDay {
		t.Error("Draft without a time should be all-day")
	}
	if !start.Equal(time.Date(2024, 3, 16, 0, 0, 0, 0, time.Local)) || !end.Equal(time.Date(2024, 3, 17, 0, 0, 0, 0, time.Local)) {
		t.Errorf("Wrong all-day bounds: %v - %v", start, end)
	}

	draft, err = parser.Parse("11pm for 2h deploy")
	if err != nil {
		t.Fatal(err)
	}
	start, end, _ = draft.Bounds(time.Hour)
	if want := time.Date(2024, 3, 16, 1, 0, 0, 0, time.Local); !end.Equal(want) {
		t.Errorf("End should cross midnight: got %v, want %v", end, want)
	}

	in := draft.Input("cal", "New event", time.Hour)
	if in.Title != "deploy" || in.CalendarID != "cal" || !in.Start.Equal(start) {
		t.Errorf("Wrong input: %+v", in)
	}
	if err := in.Validate(); err != nil {
		t.Errorf("Input should validate: %v", err)
	}

	draft, err = parser.Parse("tomorrow 9am")
	if err != nil {
		t.Fatal(err)
	}
	if in := draft.Input("cal", "New event", time.Hour); in.Title != "New event" {
		t.Errorf("Fallback title not used: %q", in.Title)
	}
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
