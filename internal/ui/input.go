package ui

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/gesture"
	"github.com/cwarden/skuld/internal/grid"
	"github.com/cwarden/skuld/internal/schedule"
	"github.com/cwarden/skuld/internal/view"
)

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.overlay {
	case overlayEditor:
		return m.handleEditorKeys(msg)
	case overlayConfirm:
		cmd := m.confirmCmd
		m.overlay, m.confirmCmd, m.confirmPrompt = overlayNone, nil, ""
		if msg.String() == "y" || msg.String() == "Y" {
			return m, cmd
		}
		return m, m.showMessage("Cancelled")
	case overlayHelp:
		m.overlay = overlayNone
		return m, nil
	}

	if msg.Type == tea.KeyEsc {
		m.gestures.Reset()
		m.overlay = overlayNone
		return m, nil
	}
	if msg.Type == tea.KeyEnter && m.selected != "" {
		m.overlay = overlayDetail
		return m, nil
	}

	action := m.config.Action(msg.String())
	switch action {
	case "quit":
		return m, tea.Quit

	case "help":
		m.overlay = overlayHelp
		return m, nil

	case "today":
		now := m.now()
		m.anchor = calendar.StartOfDay(now)
		m.scrollTo(grid.MinuteOfDay(now) - 60)
		return m, m.ensureLoaded()

	case "refresh":
		return m, tea.Batch(m.load(), m.showMessage("Refreshed"))

	case "new_event":
		m.overlay = overlayEditor
		m.inputBuffer = m.anchor.Format("2006-01-02") + " "
		m.cursorPos = utf8.RuneCountInString(m.inputBuffer)
		return m, nil

	case "edit_event":
		inst, ok := m.selectedInstance()
		if !ok {
			return m, m.showMessage("No event selected")
		}
		return m, m.editCmd(inst)

	case "delete_event":
		inst, ok := m.selectedInstance()
		if !ok {
			return m, m.showMessage("No event selected")
		}
		return m.confirm(fmt.Sprintf("Delete %q", inst.Title), m.deleteCmd(inst))

	case "cancel_occurrence":
		inst, ok := m.selectedInstance()
		if !ok {
			return m, m.showMessage("No event selected")
		}
		return m.confirm(fmt.Sprintf("Cancel %q on %s", inst.Title, inst.Start.Format(m.config.DateFormat)), m.cancelCmd(inst))

	case "next_event":
		m.selectNext()
		return m, nil

	case "zoom":
		m.zoom()
		return m, m.showMessage(fmt.Sprintf("Snap %d minutes", m.geo.SnapMinutes))

	case "next_day":
		m.anchor = m.anchor.AddDate(0, 0, 1)
	case "prev_day":
		m.anchor = m.anchor.AddDate(0, 0, -1)
	case "next_week":
		m.anchor = m.anchor.AddDate(0, 0, 7)
	case "prev_week":
		m.anchor = m.anchor.AddDate(0, 0, -7)
	case "next_month":
		m.anchor = m.anchor.AddDate(0, 1, 0)
	case "prev_month":
		m.anchor = m.anchor.AddDate(0, -1, 0)

	case "scroll_down", "scroll_up":
		step := 1
		if action == "scroll_up" {
			step = -1
		}
		m.step(step)

	case "day_view":
		m.mode = view.ModeDay
	case "week_view":
		m.mode = view.ModeWeek
	case "month_view":
		m.mode = view.ModeMonth
	case "agenda_view":
		m.mode = view.ModeAgenda
	case "year_view":
		m.mode = view.ModeYear

	default:
		return m, nil
	}

	m.overlay = overlayNone
	m.gestures.Reset()
	return m, m.ensureLoaded()
}

// step moves down (1) or up (-1): one snap row on the time grid, otherwise
// the natural unit of the view.
func (m *Model) step(dir int) {
	switch m.mode {
	case view.ModeDay, view.ModeWeek:
		m.scroll += float64(dir) * m.rowsPerSnap()
		m.clampScroll()
	case view.ModeMonth:
		m.anchor = m.anchor.AddDate(0, 0, 7*dir)
	case view.ModeYear:
		m.anchor = m.anchor.AddDate(0, dir, 0)
	default:
		m.anchor = m.anchor.AddDate(0, 0, dir)
	}
}

func (m *Model) confirm(prompt string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if !m.config.ConfirmDelete {
		return m, cmd
	}
	m.overlay = overlayConfirm
	m.confirmPrompt = prompt + "? (y/n)"
	m.confirmCmd = cmd
	return m, nil
}

func (m *Model) deleteCmd(inst calendar.Instance) tea.Cmd {
	service := m.service
	return m.mutate(fmt.Sprintf("Deleted %q", inst.Title), func(ctx context.Context) (string, error) {
		return "", service.DeleteEvent(ctx, inst.EventID)
	})
}

func (m *Model) cancelCmd(inst calendar.Instance) tea.Cmd {
	service := m.service
	return m.mutate(fmt.Sprintf("Cancelled %q", inst.Title), func(ctx context.Context) (string, error) {
		return "", service.CancelOccurrence(ctx, inst.EventID, inst.ExceptionKey())
	})
}

// selectNext cycles the selection through the instances on screen.
func (m *Model) selectNext() {
	insts := m.visibleInstances()
	if len(insts) == 0 {
		m.selected = ""
		return
	}
	next := 0
	for i, inst := range insts {
		if inst.InstanceID == m.selected {
			next = (i + 1) % len(insts)
			break
		}
	}
	m.selected = insts[next].InstanceID
	if inst := insts[next]; !inst.AllDay && (m.mode == view.ModeDay || m.mode == view.ModeWeek) {
		m.revealMinute(grid.MinuteOfDay(inst.Start))
	}
}

// visibleInstances are the loaded instances inside the current range.
func (m *Model) visibleInstances() []calendar.Instance {
	req := m.request()
	var out []calendar.Instance
	for _, inst := range m.loaded.Instances() {
		if inst.Start.Before(req.End) && inst.End.After(req.Start) {
			out = append(out, inst)
		}
	}
	return out
}

// zoom cycles the snap size, keeping the minute at the top of the grid.
func (m *Model) zoom() {
	top := m.geo.RawMinutesFromPointerY(0, m.scroll)
	next := zoomLevels[0]
	for i, snap := range zoomLevels {
		if snap == m.geo.SnapMinutes {
			next = zoomLevels[(i+1)%len(zoomLevels)]
			break
		}
	}
	m.geo.SnapMinutes = next
	m.geo.HourHeight = float64(60 / next)
	m.gestures.SetGeometry(m.geo)
	m.scrollTo(int(math.Round(top)))
}

func (m *Model) handleEditorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.overlay = overlayNone
		return m, nil

	case tea.KeyEnter:
		m.overlay = overlayNone
		draft, err := m.parser.Parse(m.inputBuffer)
		if err != nil {
			return m, m.showError(fmt.Errorf("parse error: %w", err))
		}
		// The service fills in the primary calendar.
		in := draft.Input("", schedule.DefaultTitle, m.config.DefaultDuration)
		service := m.service
		return m, m.mutate(fmt.Sprintf("Added %q", in.Title), func(ctx context.Context) (string, error) {
			ev, err := service.CreateEvent(ctx, in)
			return ev.ID, err
		})

	case tea.KeyBackspace:
		if m.cursorPos > 0 {
			r := []rune(m.inputBuffer)
			m.inputBuffer = string(r[:m.cursorPos-1]) + string(r[m.cursorPos:])
			m.cursorPos--
		}

	case tea.KeyLeft:
		if m.cursorPos > 0 {
			m.cursorPos--
		}

	case tea.KeyRight:
		if m.cursorPos < utf8.RuneCountInString(m.inputBuffer) {
			m.cursorPos++
		}

	case tea.KeySpace:
		m.insert(" ")

	case tea.KeyRunes:
		m.insert(string(msg.Runes))
	}

	return m, nil
}

func (m *Model) insert(s string) {
	r := []rune(m.inputBuffer)
	m.inputBuffer = string(r[:m.cursorPos]) + s + string(r[m.cursorPos:])
	m.cursorPos += utf8.RuneCountInString(s)
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if tea.MouseEvent(msg).IsWheel() {
		switch msg.Button {
		case tea.MouseButtonWheelDown:
			m.step(1)
		case tea.MouseButtonWheelUp:
			m.step(-1)
		}
		return m, m.ensureLoaded()
	}
	if m.mode != view.ModeDay && m.mode != view.ModeWeek {
		return m, nil
	}

	y := float64(msg.Y - gridTop)
	x := float64(msg.X)
	var in gesture.Input
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonRight {
			m.gestures.Handle(gesture.Input{Kind: gesture.Cancel})
			return m, nil
		}
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		if m.overlay == overlayDetail {
			m.overlay = overlayNone
		}
		if y < 0 {
			return m.clickHeader(msg.X)
		}
		if y >= float64(m.gridRows()) {
			return m, nil
		}
		in = gesture.Input{Kind: gesture.Down, X: x, Y: y}
	case tea.MouseActionMotion:
		if m.gestures.State() == gesture.Idle {
			return m, nil
		}
		in = gesture.Input{Kind: gesture.Move, X: x, Y: y}
	case tea.MouseActionRelease:
		if m.gestures.State() == gesture.Idle {
			return m, nil
		}
		in = gesture.Input{Kind: gesture.Up, X: x, Y: y}
	default:
		return m, nil
	}

	return m, m.handleIntent(m.gestures.Handle(in))
}

// clickHeader opens the day view of a clicked day header.
func (m *Model) clickHeader(x int) (tea.Model, tea.Cmd) {
	col, ok := m.ColumnAt(float64(x))
	if !ok || m.mode != view.ModeWeek {
		return m, nil
	}
	m.anchor = m.DayOf(col)
	m.mode = view.ModeDay
	return m, m.ensureLoaded()
}

func (m *Model) handleIntent(intent gesture.Intent) tea.Cmd {
	service := m.service
	switch it := intent.(type) {
	case gesture.CreateRange:
		return m.mutate("Created event", func(ctx context.Context) (string, error) {
			ev, err := service.CreateRange(ctx, it, "", "")
			return ev.ID, err
		})
	case gesture.MoveEvent:
		m.selected = ""
		return m.mutate(fmt.Sprintf("Moved to %s", it.Start.Format("Mon "+m.config.TimeFormat)), func(ctx context.Context) (string, error) {
			changed, err := service.Move(ctx, it)
			if err != nil || !changed {
				return "", err
			}
			return it.EventID, nil
		})
	case gesture.OpenEvent:
		m.selected = it.InstanceID
		m.overlay = overlayDetail
	}
	return nil
}

// revealMinute scrolls so minute is on screen.
func (m *Model) revealMinute(minute int) {
	row := m.geo.TopOffset(m.geo.Clamp(minute))
	rows := float64(m.gridRows())
	switch {
	case row < m.scroll:
		m.scroll = math.Floor(row)
	case row >= m.scroll+rows:
		m.scroll = math.Ceil(row - rows + 1)
	}
	m.clampScroll()
}

// scrollTo puts minute at the top of the grid.
func (m *Model) scrollTo(minute int) {
	m.scroll = math.Floor(m.geo.TopOffset(m.geo.Clamp(minute)))
	m.clampScroll()
}

func (m *Model) clampScroll() {
	maxScroll := math.Ceil(m.geo.Height()) - float64(m.gridRows())
	if m.scroll > maxScroll {
		m.scroll = maxScroll
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
}

func (m *Model) rowsPerSnap() float64 {
	return math.Max(1, m.geo.HourHeight*float64(m.geo.SnapMinutes)/60)
}
