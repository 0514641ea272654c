package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/v2"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/gesture"
	"github.com/cwarden/skuld/internal/grid"
	"github.com/cwarden/skuld/internal/view"
)

const (
	gutterWidth = 6 // "HH:MM "
	// gridTop is the screen row of the first grid row, below the title,
	// the day headers and the all-day row.
	gridTop         = 3
	statusRows      = 2
	sidebarMinWidth = 80
)

func (m *Model) columnCount() int {
	if m.mode == view.ModeWeek {
		return 7
	}
	return 1
}

// gridWidth is the width of all day columns together.
func (m *Model) gridWidth() int {
	w := m.width - gutterWidth
	if m.hasSidebar() {
		w = w * 2 / 3
	}
	return max(w, m.columnCount())
}

func (m *Model) hasSidebar() bool {
	return m.mode == view.ModeDay && m.width >= sidebarMinWidth
}

func (m *Model) columnWidth() int {
	return max(1, m.gridWidth()/m.columnCount())
}

func (m *Model) gridRows() int {
	return max(1, m.height-gridTop-statusRows)
}

// ColumnAt returns the day column under screen column x.
func (m *Model) ColumnAt(x float64) (int, bool) {
	rel := int(math.Floor(x)) - gutterWidth
	if rel < 0 {
		return 0, false
	}
	col := rel / m.columnWidth()
	if col >= m.columnCount() {
		return 0, false
	}
	return col, true
}

// DayOf returns local midnight of day column col.
func (m *Model) DayOf(col int) time.Time {
	if m.mode == view.ModeWeek {
		return view.StartOfWeek(m.anchor, m.config.WeekStartDay).AddDate(0, 0, col)
	}
	return calendar.StartOfDay(m.anchor)
}

// BlockAt returns the event block under the pointer. y is in grid rows
// from the top of the visible grid.
func (m *Model) BlockAt(col int, x, y float64) (gesture.Grab, bool) {
	w := float64(m.columnWidth())
	frac := (x - float64(gutterWidth) - float64(col)*w) / w
	minute := int(math.Floor(m.geo.RawMinutesFromPointerY(math.Floor(y), m.scroll)))
	b, ok := m.dayColumn(col).BlockAt(minute, frac)
	if !ok {
		return gesture.Grab{}, false
	}
	inst := b.Instance
	return gesture.Grab{
		EventID:       inst.EventID,
		InstanceID:    inst.InstanceID,
		OriginalStart: inst.ExceptionKey(),
		Start:         inst.Start,
		End:           inst.End,
	}, true
}

func (m *Model) ScrollOffset() float64 { return m.scroll }

func (m *Model) dayColumn(col int) view.DayColumn {
	return view.Day(m.DayOf(col), m.loaded.Instances(), m.geo)
}

// renderTimeGrid renders the Day and Week views using a lipgloss Canvas.
func (m *Model) renderTimeGrid() string {
	var layers []*lipgloss.Layer

	layers = append(layers, m.titleLayer(m.gridTitle()))
	layers = append(layers, m.timeColumnLayers()...)
	for col := 0; col < m.columnCount(); col++ {
		layers = append(layers, m.columnLayers(col, m.dayColumn(col))...)
	}
	layers = append(layers, m.previewLayers()...)
	if m.hasSidebar() {
		layers = append(layers, m.sidebarLayer())
	}

	return m.frame(layers)
}

// frame adds the detail popup and the status bar and renders the canvas.
func (m *Model) frame(layers []*lipgloss.Layer) string {
	if m.overlay == overlayDetail {
		if l := m.detailLayer(); l != nil {
			layers = append(layers, l)
		}
	}
	layers = append(layers, m.statusBarLayers()...)
	return lipgloss.NewCanvas(layers...).Render()
}

func (m *Model) gridTitle() string {
	if m.mode == view.ModeWeek {
		start := view.StartOfWeek(m.anchor, m.config.WeekStartDay)
		return fmt.Sprintf("Week of %s", start.Format(m.config.DateFormat))
	}
	return m.anchor.Format("Monday, " + m.config.DateFormat)
}

func (m *Model) titleLayer(title string) *lipgloss.Layer {
	return lipgloss.NewLayer(m.styles.Header.Render(fit(title, m.width))).X(0).Y(0).Z(0)
}

// timeColumnLayers creates the time labels down the left gutter.
func (m *Model) timeColumnLayers() []*lipgloss.Layer {
	var layers []*lipgloss.Layer
	now := m.now()
	nowMin := grid.MinuteOfDay(now)
	todayShown := false
	for col := 0; col < m.columnCount(); col++ {
		if sameDay(m.DayOf(col), now) {
			todayShown = true
		}
	}
	rowMinutes := 60 / m.geo.HourHeight

	for r := 0; r < m.gridRows(); r++ {
		raw := m.geo.RawMinutesFromPointerY(float64(r), m.scroll)
		minute := int(math.Round(raw))
		if minute >= m.geo.LastMinute() {
			break
		}
		if minute%m.geo.SnapMinutes != 0 || math.Abs(raw-float64(minute)) > 1e-6 {
			continue
		}

		style := m.styles.Dim
		if minute%60 == 0 {
			style = m.styles.Normal
		}
		if todayShown && float64(nowMin) >= raw && float64(nowMin) < raw+rowMinutes {
			style = m.styles.Today
		}
		label := fmt.Sprintf("%02d:%02d", minute/60, minute%60)
		layers = append(layers, lipgloss.NewLayer(style.Render(label)).X(0).Y(gridTop+r).Z(0))
	}
	return layers
}

// clipRows fits a block starting at grid row top with height rows into
// the visible grid.
func clipRows(top, height, rows int) (int, int, bool) {
	if top < 0 {
		height += top
		top = 0
	}
	if top+height > rows {
		height = rows - top
	}
	return top, height, height > 0
}

// blockRows converts a block's top and height into visible grid rows.
func (m *Model) blockRows(top, height float64) (int, int, bool) {
	t := int(math.Round(top - m.scroll))
	h := max(1, int(math.Round(height)))
	return clipRows(t, h, m.gridRows())
}

// columnLayers creates the header, all-day row, separator and event blocks
// of one day column.
func (m *Model) columnLayers(col int, day view.DayColumn) []*lipgloss.Layer {
	var layers []*lipgloss.Layer
	w := m.columnWidth()
	x0 := gutterWidth + col*w
	rows := m.gridRows()

	header := day.Date.Format("Mon 02")
	if m.columnCount() == 1 {
		header = day.Date.Format("Monday")
	}
	headerStyle := m.styles.Normal
	switch {
	case sameDay(day.Date, m.anchor) && m.columnCount() > 1:
		headerStyle = m.styles.Selected
	case sameDay(day.Date, m.now()):
		headerStyle = m.styles.Today
	case day.Date.Weekday() == time.Saturday || day.Date.Weekday() == time.Sunday:
		headerStyle = m.styles.Weekend
	}
	layers = append(layers, lipgloss.NewLayer(headerStyle.Render(fit(header, w-1))).X(x0).Y(1).Z(0))

	if len(day.AllDay) > 0 {
		var titles []string
		for _, inst := range day.AllDay {
			titles = append(titles, inst.Title)
		}
		style := m.eventStyle(day.AllDay[0])
		for _, inst := range day.AllDay {
			if inst.InstanceID == m.selected {
				style = style.Reverse(true)
			}
		}
		layers = append(layers, lipgloss.NewLayer(style.Render(fit(strings.Join(titles, ", "), w-1))).X(x0).Y(2).Z(1))
	}

	sep := strings.TrimSuffix(strings.Repeat("│\n", rows), "\n")
	layers = append(layers, lipgloss.NewLayer(m.styles.Dim.Render(sep)).X(x0+w-1).Y(gridTop).Z(0))

	if now := m.now(); sameDay(day.Date, now) {
		nowMin := grid.MinuteOfDay(now)
		if nowMin >= m.geo.FirstMinute() && nowMin < m.geo.LastMinute() {
			if top, _, ok := m.blockRows(math.Floor(m.geo.TopOffset(nowMin)), 1); ok {
				line := strings.Repeat("─", max(1, w-1))
				layers = append(layers, lipgloss.NewLayer(m.styles.Today.Render(line)).X(x0).Y(gridTop+top).Z(0))
			}
		}
	}

	grabbed := ""
	if p, ok := m.gestures.Preview(); ok && p.Grab != nil && p.Moved {
		grabbed = p.Grab.InstanceID
	}

	for _, b := range day.Blocks {
		top, height, ok := m.blockRows(b.Top, b.Height)
		if !ok {
			continue
		}
		bx0 := x0 + b.Column*w/b.Columns
		bx1 := x0 + (b.Column+1)*w/b.Columns
		bw := max(1, bx1-bx0-1)

		style := m.eventStyle(b.Instance)
		if b.Instance.InstanceID == m.selected {
			style = style.Reverse(true)
		}
		if b.Instance.InstanceID == grabbed {
			style = style.Faint(true)
		}
		content := strings.Join(m.blockLines(b, bw, height), "\n")
		layers = append(layers, lipgloss.NewLayer(style.Render(content)).X(bx0).Y(gridTop+top).Z(1+b.Column))
	}
	return layers
}

// blockLines is the text of an event block, exactly height lines of width.
func (m *Model) blockLines(b view.Block, width, height int) []string {
	inst := b.Instance
	text := inst.Start.Format(m.config.TimeFormat) + " " + inst.Title
	if b.ContinuedBefore {
		text = "↑ " + inst.Title
	}
	if inst.Location != "" {
		text += "\n@ " + inst.Location
	}
	lines := wrapLines(text, width, height)
	for len(lines) < height {
		lines = append(lines, fit("", width))
	}
	if b.ContinuesAfter && height > 1 {
		lines[height-1] = fit("↓", width)
	}
	return lines
}

// previewLayers draws the selection rectangle or the drag ghost.
func (m *Model) previewLayers() []*lipgloss.Layer {
	p, ok := m.gestures.Preview()
	if !ok {
		return nil
	}
	if p.State == gesture.Dragging && !p.Moved {
		return nil
	}

	start, end := p.StartMin, p.EndMin
	if end-start < m.geo.SnapMinutes {
		end = start + m.geo.SnapMinutes
	}
	top, height, ok := m.blockRows(m.geo.TopOffset(start), m.geo.BlockHeight(start, end))
	if !ok {
		return nil
	}
	w := m.columnWidth()
	label := fmt.Sprintf("%s-%s", clock(start), clock(end))
	if p.Grab != nil {
		label = "→ " + clock(start)
	}
	lines := wrapLines(label, w-1, height)
	for len(lines) < height {
		lines = append(lines, fit("", w-1))
	}
	content := m.styles.Selected.Render(strings.Join(lines, "\n"))
	return []*lipgloss.Layer{
		lipgloss.NewLayer(content).X(gutterWidth + p.Column*w).Y(gridTop + top).Z(20),
	}
}

func clock(minute int) string {
	// Ghosts of blocks started the day before.
	for minute < 0 {
		minute += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// sidebarLayer shows a mini calendar and the day's events next to the
// day view.
func (m *Model) sidebarLayer() *lipgloss.Layer {
	x := gutterWidth + m.gridWidth() + 1
	width := m.width - x
	sections := []string{m.renderMiniCalendar(m.anchor, monthCounts(m.anchor, m.config.WeekStartDay, m.loaded.Instances())), ""}

	day := view.Agenda(m.anchor, 1, m.loaded.Instances())
	if len(day) == 0 || len(day[0].Instances) == 0 {
		sections = append(sections, m.styles.Dim.Render("No events"))
	} else {
		for _, inst := range day[0].Instances {
			line := fit(m.timeRange(inst)+" "+inst.Title, width-2)
			bullet := lipgloss.NewStyle().Foreground(parseColor(m.eventColor(inst))).Render("●")
			if inst.InstanceID == m.selected {
				line = m.styles.Selected.Render(line)
			}
			sections = append(sections, bullet+" "+line)
		}
	}
	return lipgloss.NewLayer(strings.Join(sections, "\n")).X(x).Y(1).Z(0)
}

// statusBarLayers creates the two status rows at the bottom.
func (m *Model) statusBarLayers() []*lipgloss.Layer {
	req := m.request()
	status := fmt.Sprintf(" %s │ %s - %s │ snap %dm │ %d events",
		m.mode, req.Start.Format(m.config.DateFormat), req.End.AddDate(0, 0, -1).Format(m.config.DateFormat),
		m.geo.SnapMinutes, len(m.visibleInstances()))
	if m.loaded.Err() != nil {
		status += " │ load failed"
	}
	line := m.styles.Status.Render(fit(status, m.width))

	var bottom string
	switch {
	case m.overlay == overlayConfirm:
		bottom = m.styles.Message.Render(m.confirmPrompt)
	case m.message != "" && m.isError:
		bottom = m.styles.Error.Render(fit(m.message, m.width))
	case m.message != "":
		bottom = m.styles.Message.Render(m.message)
	default:
		bottom = m.styles.Help.Render(fit("?:help n:new e:edit d:delete x:cancel z:zoom tab:next 1-5:views q:quit", m.width))
	}

	y := max(m.height-statusRows, gridTop)
	return []*lipgloss.Layer{
		lipgloss.NewLayer(line).X(0).Y(y).Z(0),
		lipgloss.NewLayer(bottom).X(0).Y(y + 1).Z(0),
	}
}
