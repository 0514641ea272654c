package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/view"
)

func TestColumnAt(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		x    float64
		col  int
		ok   bool
		name string
	}{
		{0, 0, false, "gutter"},
		{gutterWidth, 0, true, "first column"},
		{wedX, 2, true, "wednesday"},
		{gutterWidth + 7*16 - 1, 6, true, "last cell"},
		{gutterWidth + 7*16, 0, false, "past the grid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, ok := h.m.ColumnAt(tt.x)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.col, col)
			}
		})
	}

	h.m.mode = view.ModeDay
	col, ok := h.m.ColumnAt(thuX)
	require.True(t, ok)
	assert.Equal(t, 0, col)
	assert.True(t, h.m.DayOf(col).Equal(at(11, 0, 0)))
}

func TestDayOfWeekColumns(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.m.DayOf(0).Equal(at(9, 0, 0)))
	assert.True(t, h.m.DayOf(6).Equal(at(15, 0, 0)))
}

func TestBlockAtFollowsScroll(t *testing.T) {
	h := newHarness(t)
	h.add(t, "Standup", at(11, 9, 0), at(11, 10, 0))
	h.reload(t)

	_, ok := h.m.BlockAt(2, wedX, 3)
	assert.False(t, ok, "08:45 is free")

	g, ok := h.m.BlockAt(2, wedX, 4)
	require.True(t, ok)
	assert.True(t, g.Start.Equal(at(11, 9, 0)))
	assert.True(t, g.OriginalStart.Equal(at(11, 9, 0)))

	h.m.scroll = 4
	g, ok = h.m.BlockAt(2, wedX, 0)
	require.True(t, ok)
	assert.Equal(t, "Standup", h.m.loaded.Instances()[0].Title)
	assert.Equal(t, h.m.loaded.Instances()[0].InstanceID, g.InstanceID)

	_, ok = h.m.BlockAt(3, thuX, 0)
	assert.False(t, ok)
}

func TestSideBySideBlocks(t *testing.T) {
	h := newHarness(t)
	left := h.add(t, "Left", at(11, 9, 0), at(11, 10, 0))
	right := h.add(t, "Right", at(11, 9, 0), at(11, 10, 0))
	h.reload(t)

	colStart := float64(gutterWidth + 2*16)
	a, ok := h.m.BlockAt(2, colStart+2, 4)
	require.True(t, ok)
	b, ok := h.m.BlockAt(2, colStart+10, 4)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{left.ID, right.ID}, []string{a.EventID, b.EventID})
	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestRenderWeek(t *testing.T) {
	h := newHarness(t)
	h.add(t, "Standup", at(11, 9, 0), at(11, 10, 0))
	_, err := h.svc.CreateEvent(t.Context(), calendar.EventInput{Title: "Holiday", Start: at(13, 0, 0), End: at(14, 0, 0), AllDay: true})
	require.NoError(t, err)
	h.reload(t)

	screen := h.screen()
	lines := strings.Split(screen, "\n")
	assert.Contains(t, screen, "09:00 Standup")
	assert.Contains(t, screen, "Holiday")
	assert.Contains(t, screen, "08:00")
	assert.Contains(t, lines[1], "Wed 11")
	assert.Contains(t, screen, "week │ Jun 9, 2025 - Jun 15, 2025")
}

func TestRenderSelectionPreview(t *testing.T) {
	h := newHarness(t)
	h.reload(t)
	h.mouse(t, tea.MouseActionPress, tea.MouseButtonLeft, wedX, rowOf(9, 0))
	h.mouse(t, tea.MouseActionMotion, tea.MouseButtonLeft, wedX, rowOf(10, 30))
	assert.Contains(t, h.screen(), "09:00-10:30")
}

func TestRenderDayHasSidebar(t *testing.T) {
	h := newHarness(t)
	h.add(t, "Standup", at(11, 9, 0), at(11, 10, 0))
	h.key(t, "1")
	screen := h.screen()
	assert.Contains(t, screen, "June 2025")
	assert.GreaterOrEqual(t, strings.Count(screen, "Standup"), 2, "block and sidebar list")
}

func TestRenderMonthOverflow(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 8; i++ {
		h.add(t, "Busy", at(11, 9+i, 0), at(11, 9+i, 30))
	}
	h.key(t, "3")
	screen := h.screen()
	assert.Contains(t, screen, "June 2025")
	assert.Contains(t, screen, "more")
}

func TestRenderAgenda(t *testing.T) {
	h := newHarness(t)
	h.key(t, "4")
	assert.Contains(t, h.screen(), "No events")

	h.add(t, "Standup", at(12, 9, 0), at(12, 9, 30))
	h.key(t, "r")
	screen := h.screen()
	assert.Contains(t, screen, "Thu Jun 12, 2025")
	assert.Contains(t, screen, "09:00-09:30")
	assert.Contains(t, screen, "Standup")
}

func TestRenderYear(t *testing.T) {
	h := newHarness(t)
	h.key(t, "5")
	screen := h.screen()
	for _, month := range []string{"January 2025", "June 2025", "December 2025"} {
		assert.Contains(t, screen, month)
	}
}

func TestRenderHelpAndEditor(t *testing.T) {
	h := newHarness(t)
	h.key(t, "?")
	assert.Contains(t, h.screen(), "Skuld Help")
	h.key(t, "x")
	assert.Equal(t, overlayNone, h.m.overlay)

	h.key(t, "n")
	h.key(t, "3pm")
	assert.Contains(t, h.screen(), "(untitled)")
}

func TestClockLabel(t *testing.T) {
	assert.Equal(t, "09:30", clock(570))
	assert.Equal(t, "24:00", clock(24*60))
	assert.Equal(t, "22:30", clock(-90))
}
