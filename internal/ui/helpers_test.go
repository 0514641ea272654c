package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/stretchr/testify/assert"

	"github.com/cwarden/skuld/internal/calendar"
)

func TestFit(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 4, "abc…"},
		{"abcd", 4, "abcd"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		got := fit(tt.in, tt.width)
		if got != tt.want {
			t.Errorf("fit(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
		if tt.width > 0 && lipgloss.Width(got) != tt.width {
			t.Errorf("fit(%q, %d) is %d wide", tt.in, tt.width, lipgloss.Width(got))
		}
	}
}

func TestWrapLines(t *testing.T) {
	lines := wrapLines("weekly planning meeting\n@ Room 4", 10, 3)
	assert.Equal(t, []string{"weekly    ", "planning  ", "meeting   "}, lines)

	assert.Nil(t, wrapLines("x", 0, 3))
	assert.Len(t, wrapLines("a\nb", 5, 5), 2)
}

func TestTextColorOn(t *testing.T) {
	assert.Equal(t, lipgloss.Color("#000000"), textColorOn("#ffcc00"))
	assert.Equal(t, lipgloss.Color("#ffffff"), textColorOn("#1a237e"))
	assert.Equal(t, lipgloss.Color("#ffffff"), textColorOn("not a color"))
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, lipgloss.ANSIColor(1), parseColor("red"))
	assert.Equal(t, lipgloss.ANSIColor(8), parseColor("Grey"))
	assert.Equal(t, lipgloss.Color("#4a90d9"), parseColor("#4a90d9"))
	assert.Equal(t, lipgloss.Color("39"), parseColor("39"))
}

func TestDescribeRule(t *testing.T) {
	until := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		rule calendar.RecurrenceRule
		want string
	}{
		{calendar.RecurrenceRule{Freq: calendar.FreqDaily}, "every day"},
		{
			calendar.RecurrenceRule{Freq: calendar.FreqWeekly, Interval: 2, ByWeekday: []time.Weekday{time.Monday, time.Wednesday}},
			"every 2 weeks on Mon, Wed",
		},
		{calendar.RecurrenceRule{Freq: calendar.FreqMonthly, ByMonthDay: []int{1, 15}, Count: 6}, "every month on day 1, 15, 6 times"},
		{calendar.RecurrenceRule{Freq: calendar.FreqYearly, ByMonth: []time.Month{time.March}, Until: &until}, "every year in Mar, until 2025-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, describeRule(tt.rule))
		})
	}
}

func TestTimeRange(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		inst calendar.Instance
		want string
	}{
		{calendar.Instance{Start: at(11, 9, 0), End: at(11, 10, 30)}, "09:00-10:30"},
		{calendar.Instance{Start: at(11, 23, 0), End: at(12, 0, 0)}, "23:00-00:00"},
		{calendar.Instance{Start: at(11, 22, 0), End: at(12, 2, 0)}, "22:00-Jun 12 02:00"},
		{calendar.Instance{Start: at(11, 0, 0), End: at(12, 0, 0), AllDay: true}, "all day"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.m.timeRange(tt.inst))
	}
}

func TestMonthCounts(t *testing.T) {
	insts := []calendar.Instance{
		{Title: "a", Start: at(11, 9, 0), End: at(11, 10, 0)},
		{Title: "b", Start: at(11, 11, 0), End: at(11, 12, 0)},
		{Title: "c", Start: at(30, 9, 0), End: at(30, 10, 0)},
		// Shown in the grid but outside June.
		{Title: "d", Start: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)},
	}
	counts := monthCounts(at(1, 0, 0), time.Monday, insts)
	assert.Equal(t, map[int]int{11: 2, 30: 1}, counts)
}

func TestMiniCalendarStartsOnWeekStart(t *testing.T) {
	h := newHarness(t)
	cal := strings.Split(h.m.renderMiniCalendar(at(1, 0, 0), nil), "\n")
	assert.Contains(t, cal[0], "June 2025")
	assert.Contains(t, cal[1], "Mo Tu We Th Fr Sa Su")

	h.m.config.WeekStartDay = time.Sunday
	cal = strings.Split(h.m.renderMiniCalendar(at(1, 0, 0), nil), "\n")
	assert.Contains(t, cal[1], "Su Mo Tu We Th Fr Sa")
}

func TestEventStyleByStatus(t *testing.T) {
	h := newHarness(t)
	tentative := h.m.eventStyle(calendar.Instance{Status: calendar.StatusTentative})
	assert.True(t, tentative.GetItalic())
	cancelled := h.m.eventStyle(calendar.Instance{Status: calendar.StatusCancelled})
	assert.True(t, cancelled.GetStrikethrough())
	own := calendar.Instance{Color: "#00ff00"}
	assert.Equal(t, "#00ff00", h.m.eventColor(own))
	assert.Equal(t, h.m.config.Colors["event"], h.m.eventColor(calendar.Instance{}))
}
