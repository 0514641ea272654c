package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/config"
	"github.com/cwarden/skuld/internal/gesture"
	"github.com/cwarden/skuld/internal/grid"
	"github.com/cwarden/skuld/internal/notify"
	"github.com/cwarden/skuld/internal/parser"
	"github.com/cwarden/skuld/internal/schedule"
	"github.com/cwarden/skuld/internal/view"
)

type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlayEditor
	overlayDetail
	overlayConfirm
)

const requestTimeout = 10 * time.Second

var messageTimeout = 3 * time.Second

// zoomLevels are the snap sizes z cycles through; the grid shows one row
// per snap.
var zoomLevels = []int{60, 30, 15}

type Model struct {
	// Core components
	config  *config.Config
	service *schedule.Service
	parser  *parser.TimeParser
	logger  *zap.Logger
	now     func() time.Time

	// View state
	mode      view.Mode
	anchor    time.Time
	geo       grid.Geometry
	scroll    float64 // rows scrolled below the first visible hour
	gestures  *gesture.Controller
	loaded    *schedule.View
	calendars map[string]calendar.Calendar
	selected  string // instance id

	// UI state
	width     int
	height    int
	overlay   overlay
	message   string
	isError   bool
	messageID int

	// Editor state
	inputBuffer string
	cursorPos   int // in runes

	// Pending confirmation
	confirmPrompt string
	confirmCmd    tea.Cmd

	styles Styles
}

func NewModel(cfg *config.Config, service *schedule.Service, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode, err := view.ParseMode(cfg.StartupView)
	if err != nil {
		mode = view.ModeWeek
	}
	now := time.Now()

	m := &Model{
		config:    cfg,
		service:   service,
		parser:    parser.NewTimeParser(),
		logger:    logger,
		now:       time.Now,
		mode:      mode,
		anchor:    calendar.StartOfDay(now),
		geo:       cfg.Geometry(),
		loaded:    &schedule.View{},
		calendars: map[string]calendar.Calendar{},
		styles:    newStyles(cfg),
	}
	m.gestures = gesture.NewController(m.geo, cfg.DefaultDuration, m)
	m.scrollTo(grid.MinuteOfDay(now) - 60)
	return m
}

// StoreChangedMsg tells the model another writer changed the database.
type StoreChangedMsg struct {
	Path string
}

// ReminderMsg delivers a reminder that came due.
type ReminderMsg struct {
	Due notify.Due
}

type tickMsg struct{}

type messageTimeoutMsg struct {
	id int
}

type loadedMsg struct {
	token schedule.Token
	snap  schedule.Snapshot
	err   error
}

type mutatedMsg struct {
	token     schedule.Token
	done      string
	selectEv  string
	snap      schedule.Snapshot
	mutateErr error
	err       error
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.firstLoad(), m.tickCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tickMsg:
		if !m.config.AutoRefresh {
			return m, nil
		}
		return m, tea.Batch(m.load(), m.tickCmd())

	case StoreChangedMsg:
		m.logger.Debug("store changed", zap.String("path", msg.Path))
		return m, m.load()

	case ReminderMsg:
		inst := msg.Due.Instance
		return m, m.showMessage(fmt.Sprintf("Reminder: %s at %s", inst.Title, inst.Start.Format(m.config.TimeFormat)))

	case loadedMsg:
		if !m.loaded.Apply(msg.token, msg.snap, msg.err) {
			m.logger.Debug("dropped stale load", zap.Uint64("token", uint64(msg.token)))
			return m, nil
		}
		if msg.err != nil {
			m.logger.Error("load failed", zap.Error(msg.err))
			return m, m.showError(msg.err)
		}
		m.afterLoad()
		return m, nil

	case mutatedMsg:
		return m.handleMutated(msg)

	case editorFinishedMsg:
		return m.handleEditorFinished(msg)

	case messageTimeoutMsg:
		if msg.id == m.messageID {
			m.message = ""
			m.isError = false
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	switch m.overlay {
	case overlayHelp:
		return m.viewHelp()
	case overlayEditor:
		return m.viewEventEditor()
	}

	switch m.mode {
	case view.ModeDay, view.ModeWeek:
		return m.renderTimeGrid()
	case view.ModeMonth:
		return m.renderMonth()
	case view.ModeAgenda:
		return m.renderAgenda()
	default:
		return m.renderYear()
	}
}

// request is the range the current mode shows.
func (m *Model) request() schedule.Request {
	start, end := view.Range(m.mode, m.anchor, m.config.WeekStartDay, m.config.AgendaDays)
	return schedule.Request{Start: start, End: end}
}

// load starts a range load. Only the latest load's result is applied.
func (m *Model) load() tea.Cmd {
	return m.loadAfter(nil)
}

// firstLoad creates the default calendar of an empty database before
// loading.
func (m *Model) firstLoad() tea.Cmd {
	service := m.service
	return m.loadAfter(func(ctx context.Context) error {
		_, err := service.Calendars(ctx)
		return err
	})
}

func (m *Model) loadAfter(prepare func(context.Context) error) tea.Cmd {
	token := m.loaded.Begin()
	req := m.request()
	service := m.service
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if prepare != nil {
			if err := prepare(ctx); err != nil {
				return loadedMsg{token: token, err: err}
			}
		}
		snap, err := service.Load(ctx, req)
		return loadedMsg{token: token, snap: snap, err: err}
	}
}

// ensureLoaded loads the current range unless it is already on screen.
func (m *Model) ensureLoaded() tea.Cmd {
	req := m.request()
	shown := m.loaded.Snapshot().Request
	if m.loaded.Loaded() && shown.Start.Equal(req.Start) && shown.End.Equal(req.End) {
		return nil
	}
	return m.load()
}

// mutate runs fn and then reloads the current range. fn returns the id of
// an event to select afterwards, or "".
func (m *Model) mutate(done string, fn func(context.Context) (string, error)) tea.Cmd {
	token := m.loaded.Begin()
	req := m.request()
	service := m.service
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		var (
			selectEv  string
			mutateErr error
		)
		snap, err := service.Then(ctx, func(ctx context.Context) error {
			selectEv, mutateErr = fn(ctx)
			return mutateErr
		}, req)
		return mutatedMsg{token: token, done: done, selectEv: selectEv, snap: snap, mutateErr: mutateErr, err: err}
	}
}

func (m *Model) handleMutated(msg mutatedMsg) (tea.Model, tea.Cmd) {
	if msg.mutateErr != nil {
		m.logger.Error("change failed", zap.Error(msg.mutateErr))
		// Nothing was reloaded; resync with the store.
		return m, tea.Batch(m.showError(msg.mutateErr), m.load())
	}
	if !m.loaded.Apply(msg.token, msg.snap, msg.err) {
		return m, m.showMessage(msg.done)
	}
	if msg.err != nil {
		return m, m.showError(msg.err)
	}
	m.afterLoad()
	if msg.selectEv != "" {
		for _, inst := range m.loaded.Instances() {
			if inst.EventID == msg.selectEv {
				m.selected = inst.InstanceID
				break
			}
		}
	}
	return m, m.showMessage(msg.done)
}

func (m *Model) afterLoad() {
	m.calendars = view.CalendarIndex(m.loaded.Snapshot().Calendars)
	if _, ok := m.selectedInstance(); !ok {
		m.selected = ""
		if m.overlay == overlayDetail {
			m.overlay = overlayNone
		}
	}
}

func (m *Model) selectedInstance() (calendar.Instance, bool) {
	if m.selected == "" {
		return calendar.Instance{}, false
	}
	for _, inst := range m.loaded.Instances() {
		if inst.InstanceID == m.selected {
			return inst, true
		}
	}
	return calendar.Instance{}, false
}

func (m *Model) showMessage(msg string) tea.Cmd {
	m.message = msg
	m.isError = false
	return m.expireMessage()
}

func (m *Model) showError(err error) tea.Cmd {
	m.message = err.Error()
	m.isError = true
	return m.expireMessage()
}

func (m *Model) expireMessage() tea.Cmd {
	m.messageID++
	id := m.messageID
	return tea.Tick(messageTimeout, func(time.Time) tea.Msg {
		return messageTimeoutMsg{id: id}
	})
}

func (m *Model) tickCmd() tea.Cmd {
	if !m.config.AutoRefresh || m.config.RefreshRate <= 0 {
		return nil
	}
	return tea.Tick(m.config.RefreshRate, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
