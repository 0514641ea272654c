package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/v2"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/view"
)

func (m *Model) viewHelp() string {
	help := []string{
		m.styles.Header.Render("Skuld Help"),
		"",
		m.styles.Normal.Render("Navigation:"),
		m.styles.Help.Render("  j/↓ k/↑   - Scroll the time grid (next/previous week or day elsewhere)"),
		m.styles.Help.Render("  h/← l/→   - Previous/next day"),
		m.styles.Help.Render("  K J       - Previous/next week"),
		m.styles.Help.Render("  { }       - Previous/next month"),
		m.styles.Help.Render("  o         - Go to today"),
		m.styles.Help.Render("  1-5       - Day, week, month, agenda, year view"),
		"",
		m.styles.Normal.Render("Events:"),
		m.styles.Help.Render("  n         - New event (e.g. 'tomorrow 2-3pm dentist')"),
		m.styles.Help.Render("  tab       - Select next event, enter shows details"),
		m.styles.Help.Render("  e         - Edit selected event in $EDITOR"),
		m.styles.Help.Render("  d         - Delete selected event (whole series)"),
		m.styles.Help.Render("  x         - Cancel selected occurrence"),
		"",
		m.styles.Normal.Render("Mouse:"),
		m.styles.Help.Render("  drag      - Draw a new event on an empty slot"),
		m.styles.Help.Render("  drag      - Move an event; click to open it"),
		m.styles.Help.Render("  right/esc - Cancel the gesture"),
		"",
		m.styles.Normal.Render("Other:"),
		m.styles.Help.Render("  z         - Zoom (snap 60/30/15 minutes)"),
		m.styles.Help.Render("  r         - Refresh"),
		m.styles.Help.Render("  ?         - Toggle help"),
		m.styles.Help.Render("  q         - Quit"),
		"",
		m.styles.Help.Render("Press any key to return..."),
	}

	return lipgloss.JoinVertical(lipgloss.Left, help...)
}

func (m *Model) viewEventEditor() string {
	var sections []string

	sections = append(sections, m.styles.Header.Render("New Event"), "")
	sections = append(sections, m.styles.Normal.Render("Enter event (e.g., 'tomorrow 2pm Meeting with team'):"))

	// Show input with cursor
	input := m.inputBuffer
	if r := []rune(input); m.cursorPos < len(r) {
		input = string(r[:m.cursorPos]) + "█" + string(r[m.cursorPos:])
	} else {
		input = input + "█"
	}
	sections = append(sections, m.styles.Selected.Render(input), "")

	if draft, err := m.parser.Parse(m.inputBuffer); err == nil {
		start, end, allDay := draft.Bounds(m.config.DefaultDuration)
		when := start.Format("Mon " + m.config.DateFormat)
		if allDay {
			when += ", all day"
		} else {
			when += fmt.Sprintf(", %s-%s", start.Format(m.config.TimeFormat), end.Format(m.config.TimeFormat))
		}
		title := draft.Title
		if title == "" {
			title = "(untitled)"
		}
		sections = append(sections, m.styles.Event.Render("→ "+when+"  "+title))
	} else {
		sections = append(sections, m.styles.Dim.Render("→ "+err.Error()))
	}

	sections = append(sections, "", m.styles.Help.Render("Press Enter to save, Esc to cancel"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderMonth draws a six week grid of day cells.
func (m *Model) renderMonth() string {
	month := view.Month(m.anchor, m.config.WeekStartDay, m.loaded.Instances())
	layers := []*lipgloss.Layer{m.titleLayer(m.anchor.Format("January 2006"))}

	cellW := max(4, m.width/7)
	cellH := max(2, (m.height-2-statusRows)/6)
	for i := 0; i < 7; i++ {
		name := fit(month.Weeks[0][i].Date.Format("Monday"), cellW-1)
		layers = append(layers, lipgloss.NewLayer(m.styles.Dim.Render(name)).X(i*cellW).Y(1))
	}

	today := m.now()
	for w, week := range month.Weeks {
		for d, cell := range week {
			numStyle := m.styles.Normal
			switch {
			case sameDay(cell.Date, m.anchor):
				numStyle = m.styles.Selected
			case sameDay(cell.Date, today):
				numStyle = m.styles.Today
			case !cell.InMonth:
				numStyle = m.styles.Dim
			}
			lines := []string{numStyle.Render(fit(fmt.Sprintf("%2d", cell.Date.Day()), cellW-1))}

			shown := cell.Instances
			if room := cellH - 1; len(shown) > room {
				shown = shown[:max(room-1, 0)]
			}
			for _, inst := range shown {
				label := inst.Title
				if !inst.AllDay {
					label = inst.Start.Format(m.config.TimeFormat) + " " + label
				}
				style := m.eventStyle(inst)
				if inst.InstanceID == m.selected {
					style = style.Reverse(true)
				}
				lines = append(lines, style.Render(fit(label, cellW-1)))
			}
			if hidden := len(cell.Instances) - len(shown); hidden > 0 {
				lines = append(lines, m.styles.Dim.Render(fit(fmt.Sprintf("+%d more", hidden), cellW-1)))
			}

			layers = append(layers, lipgloss.NewLayer(strings.Join(lines, "\n")).X(d*cellW).Y(2+w*cellH))
		}
	}
	return m.frame(layers)
}

// renderAgenda lists the coming days' instances.
func (m *Model) renderAgenda() string {
	days := view.Agenda(m.anchor, m.config.AgendaDays, m.loaded.Instances())
	title := fmt.Sprintf("Agenda from %s", m.anchor.Format(m.config.DateFormat))
	layers := []*lipgloss.Layer{m.titleLayer(title)}

	var lines []string
	for _, day := range days {
		if len(day.Instances) == 0 {
			continue
		}
		style := m.styles.Header
		if sameDay(day.Date, m.now()) {
			style = m.styles.Today
		}
		lines = append(lines, style.Render(day.Date.Format("Mon "+m.config.DateFormat)))
		for _, inst := range day.Instances {
			bullet := lipgloss.NewStyle().Foreground(parseColor(m.eventColor(inst))).Render("●")
			text := fmt.Sprintf("%-13s %s", m.timeRange(inst), inst.Title)
			if inst.Location != "" {
				text += " @ " + inst.Location
			}
			if inst.IsRecurring {
				text += " ↻"
			}
			text = fit(text, max(1, m.width-4))
			if inst.InstanceID == m.selected {
				text = m.styles.Selected.Render(text)
			}
			lines = append(lines, "  "+bullet+" "+text)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.Dim.Render("No events"))
	}
	if room := m.height - 1 - statusRows; len(lines) > room {
		lines = lines[:max(room, 0)]
	}
	layers = append(layers, lipgloss.NewLayer(strings.Join(lines, "\n")).X(0).Y(1))
	return m.frame(layers)
}

// renderYear draws the twelve months of the anchor's year.
func (m *Model) renderYear() string {
	year := view.Year(m.anchor.Year(), m.anchor.Location(), m.loaded.Instances())
	layers := []*lipgloss.Layer{m.titleLayer(m.anchor.Format("2006"))}

	const monthW, monthH = 22, 9
	perRow := max(1, min(4, m.width/monthW))
	for i, ym := range year {
		x := (i % perRow) * monthW
		y := 1 + (i/perRow)*monthH
		layers = append(layers, lipgloss.NewLayer(m.renderMiniCalendar(ym.Month, ym.Counts)).X(x).Y(y))
	}
	return m.frame(layers)
}

// detailLayer pops up the selected instance's details.
func (m *Model) detailLayer() *lipgloss.Layer {
	inst, ok := m.selectedInstance()
	if !ok {
		return nil
	}
	width := min(60, max(20, m.width-8))

	lines := []string{
		m.styles.Header.Render(inst.Title),
		inst.Start.Format("Monday, "+m.config.DateFormat) + "  " + m.timeRange(inst),
	}
	if cal, ok := m.calendars[inst.CalendarID]; ok {
		lines = append(lines, "Calendar: "+cal.Title)
	}
	if inst.Location != "" {
		lines = append(lines, "Location: "+inst.Location)
	}
	if inst.MeetingURL != "" {
		lines = append(lines, "Meeting:  "+inst.MeetingURL)
	}
	if ev, ok := m.loaded.Snapshot().Event(inst.EventID); ok && ev.Recurrence != nil {
		repeat := "Repeats " + describeRule(*ev.Recurrence)
		if inst.IsException {
			repeat += " (changed)"
		}
		lines = append(lines, repeat)
	}
	if inst.Status != "" && inst.Status != calendar.StatusConfirmed {
		lines = append(lines, "Status: "+string(inst.Status))
	}
	for _, r := range inst.Reminders {
		lines = append(lines, fmt.Sprintf("Reminder: %d min before (%s)", r.MinutesBefore, r.Method))
	}
	if inst.Description != "" {
		lines = append(lines, "")
		lines = append(lines, wrapLines(inst.Description, width, 10)...)
	}
	lines = append(lines, "", m.styles.Help.Render("e:edit d:delete x:cancel esc:close"))

	box := m.styles.Border.Width(width + 4).Render(strings.Join(lines, "\n"))
	x := max(0, (m.width-lipgloss.Width(box))/2)
	return lipgloss.NewLayer(box).X(x).Y(gridTop).Z(30)
}

var freqUnits = map[calendar.Frequency]string{
	calendar.FreqDaily:   "day",
	calendar.FreqWeekly:  "week",
	calendar.FreqMonthly: "month",
	calendar.FreqYearly:  "year",
}

// describeRule renders a rule for people: "every 2 weeks on Mon, Wed".
func describeRule(r calendar.RecurrenceRule) string {
	unit := freqUnits[r.Freq]
	s := "every " + unit
	if n := r.EffectiveInterval(); n > 1 {
		s = fmt.Sprintf("every %d %ss", n, unit)
	}
	if len(r.ByWeekday) > 0 {
		var days []string
		for _, wd := range r.ByWeekday {
			days = append(days, wd.String()[:3])
		}
		s += " on " + strings.Join(days, ", ")
	}
	if len(r.ByMonthDay) > 0 {
		var days []string
		for _, d := range r.ByMonthDay {
			days = append(days, fmt.Sprint(d))
		}
		s += " on day " + strings.Join(days, ", ")
	}
	if len(r.ByMonth) > 0 {
		var months []string
		for _, mo := range r.ByMonth {
			months = append(months, mo.String()[:3])
		}
		s += " in " + strings.Join(months, ", ")
	}
	switch {
	case r.Count > 0:
		s += fmt.Sprintf(", %d times", r.Count)
	case r.Until != nil:
		s += ", until " + r.Until.Format(time.DateOnly)
	}
	return s
}
