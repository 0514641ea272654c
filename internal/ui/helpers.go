package ui

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/config"
	"github.com/cwarden/skuld/internal/view"
)

type Styles struct {
	Normal   lipgloss.Style
	Dim      lipgloss.Style
	Selected lipgloss.Style
	Today    lipgloss.Style
	Weekend  lipgloss.Style
	Header   lipgloss.Style
	Event    lipgloss.Style
	Help     lipgloss.Style
	Message  lipgloss.Style
	Error    lipgloss.Style
	Status   lipgloss.Style
	Border   lipgloss.Style
}

// basicColors maps the names accepted in "color" lines to ANSI colors.
var basicColors = map[string]int{
	"black": 0, "red": 1, "green": 2, "yellow": 3,
	"blue": 4, "magenta": 5, "cyan": 6, "white": 7,
	"gray": 8, "grey": 8,
}

// parseColor accepts a hex value, an ANSI number or a basic color name.
func parseColor(s string) color.Color {
	if n, ok := basicColors[strings.ToLower(s)]; ok {
		return lipgloss.ANSIColor(n)
	}
	return lipgloss.Color(s)
}

func newStyles(cfg *config.Config) Styles {
	c := func(name, fallback string) color.Color {
		if v, ok := cfg.Colors[name]; ok && v != "" {
			return parseColor(v)
		}
		return parseColor(fallback)
	}
	return Styles{
		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(c("selected", "220")).
			Bold(true),
		Today: lipgloss.NewStyle().
			Foreground(c("today", "220")).
			Bold(true),
		Weekend: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),
		Header: lipgloss.NewStyle().
			Foreground(c("header", "220")).
			Bold(true),
		Event: lipgloss.NewStyle().
			Foreground(c("event", "40")).
			Bold(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Message: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		Error: lipgloss.NewStyle().
			Foreground(c("error", "196")).
			Bold(true),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(c("status", "238")),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
	}
}

// eventColor returns the display color of an instance as a hex string.
func (m *Model) eventColor(inst calendar.Instance) string {
	return view.ColorFor(inst, m.calendars, m.config.Colors["event"])
}

// eventStyle paints a block in the instance's color with readable text.
func (m *Model) eventStyle(inst calendar.Instance) lipgloss.Style {
	bg := m.eventColor(inst)
	style := lipgloss.NewStyle().
		Background(parseColor(bg)).
		Foreground(textColorOn(bg))
	switch inst.Status {
	case calendar.StatusTentative:
		style = style.Italic(true)
	case calendar.StatusCancelled:
		style = style.Strikethrough(true)
	}
	return style
}

// textColorOn picks black or white text for a hex background.
func textColorOn(bg string) color.Color {
	c, err := colorful.Hex(bg)
	if err != nil {
		return lipgloss.Color("#ffffff")
	}
	if l, _, _ := c.Lab(); l > 0.6 {
		return lipgloss.Color("#000000")
	}
	return lipgloss.Color("#ffffff")
}

// fit truncates s to width cells and pads it to exactly width.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) > width {
		s = truncate.StringWithTail(s, uint(width), "…")
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// wrapLines word-wraps s into at most height lines of width cells.
func wrapLines(s string, width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		lines = append(lines, strings.Split(wordwrap.String(para, width), "\n")...)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = fit(l, width)
	}
	return lines
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// timeRange formats an instance's time for lists and details.
func (m *Model) timeRange(inst calendar.Instance) string {
	if inst.AllDay {
		return "all day"
	}
	tf := m.config.TimeFormat
	if sameDay(inst.Start, inst.End) || inst.End.Equal(calendar.StartOfDay(inst.Start).AddDate(0, 0, 1)) {
		return fmt.Sprintf("%s-%s", inst.Start.Format(tf), inst.End.Format(tf))
	}
	return fmt.Sprintf("%s-%s", inst.Start.Format(tf), inst.End.Format("Jan 2 "+tf))
}

// renderMiniCalendar renders month with days that have instances
// highlighted. counts maps day of month to instance count.
func (m *Model) renderMiniCalendar(month time.Time, counts map[int]int) string {
	var lines []string

	lines = append(lines, m.styles.Header.Render(fit(month.Format("January 2006"), 20)))

	start := view.MonthGridStart(month, m.config.WeekStartDay)
	var names []string
	for i := 0; i < 7; i++ {
		names = append(names, start.AddDate(0, 0, i).Format("Mon")[:2])
	}
	lines = append(lines, m.styles.Dim.Render(strings.Join(names, " ")))

	today := m.now()
	day := start
	for week := 0; week < 6; week++ {
		var cells []string
		for weekday := 0; weekday < 7; weekday++ {
			dayStr := fmt.Sprintf("%2d", day.Day())

			switch {
			case day.Month() != month.Month():
				dayStr = m.styles.Dim.Render(dayStr)
			case sameDay(day, m.anchor):
				dayStr = m.styles.Selected.Render(dayStr)
			case sameDay(day, today):
				dayStr = m.styles.Today.Render(dayStr)
			case counts[day.Day()] > 0:
				dayStr = m.styles.Event.Render(dayStr)
			case day.Weekday() == time.Saturday || day.Weekday() == time.Sunday:
				dayStr = m.styles.Weekend.Render(dayStr)
			default:
				dayStr = m.styles.Normal.Render(dayStr)
			}
			cells = append(cells, dayStr)
			day = day.AddDate(0, 0, 1)
		}
		lines = append(lines, strings.Join(cells, " "))

		if day.Month() != month.Month() && week >= 3 {
			break
		}
	}

	return strings.Join(lines, "\n")
}

// monthCounts maps each day of month's month to its instance count.
func monthCounts(month time.Time, weekStart time.Weekday, instances []calendar.Instance) map[int]int {
	counts := make(map[int]int)
	for _, week := range view.Month(month, weekStart, instances).Weeks {
		for _, cell := range week {
			if cell.InMonth && len(cell.Instances) > 0 {
				counts[cell.Date.Day()] = len(cell.Instances)
			}
		}
	}
	return counts
}
