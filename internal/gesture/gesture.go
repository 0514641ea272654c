// Package gesture turns pointer input over day columns into calendar
// intents: drawing a new range, moving an event, or opening one.
package gesture

import (
	"context"
	"math"
	"time"

	"github.com/cwarden/skuld/internal/grid"
)

type State int

const (
	Idle State = iota
	Selecting
	Dragging
)

func (s State) String() string {
	switch s {
	case Selecting:
		return "selecting"
	case Dragging:
		return "dragging"
	default:
		return "idle"
	}
}

type Kind int

const (
	Down Kind = iota
	Move
	Up
	Cancel
)

// Input is one pointer event. X selects the column; Y is measured from the
// top of the visible grid, before scrolling.
type Input struct {
	Kind Kind
	X, Y float64
}

// Grab identifies the block under the pointer.
type Grab struct {
	EventID       string
	InstanceID    string
	OriginalStart time.Time
	Start         time.Time
	End           time.Time
}

// Surface is the host the controller reads layout from.
type Surface interface {
	// ColumnAt returns the day column under x.
	ColumnAt(x float64) (int, bool)
	// DayOf returns local midnight of column col.
	DayOf(col int) time.Time
	// BlockAt returns the block under the pointer, if any.
	BlockAt(col int, x, y float64) (Grab, bool)
	ScrollOffset() float64
}

// Intent is what a finished gesture asks for.
type Intent interface {
	isIntent()
}

// CreateRange asks for a new event over [Start, End).
type CreateRange struct {
	Start, End time.Time
}

// MoveEvent reschedules one occurrence, keeping its duration.
type MoveEvent struct {
	EventID       string
	InstanceID    string
	OriginalStart time.Time
	Start, End    time.Time
}

// OpenEvent asks for the detail of an occurrence.
type OpenEvent struct {
	EventID    string
	InstanceID string
}

func (CreateRange) isIntent() {}
func (MoveEvent) isIntent()   {}
func (OpenEvent) isIntent()   {}

// Preview is the live feedback for the gesture in progress: the selection
// rectangle or the drag ghost, in minutes of the day in Column.
type Preview struct {
	State    State
	Column   int
	StartMin int
	EndMin   int
	Grab     *Grab
	Moved    bool
}

type selection struct {
	column  int
	anchor  int
	current int
}

type drag struct {
	grab      *Grab
	column    int
	grabCol   int
	origMin   float64 // grabbed start in wall-clock minutes of the grab column's day
	duration  int
	offset    float64
	pointer   float64
	candidate int
	moved     bool
}

// Controller is the gesture state machine for a set of day columns.
type Controller struct {
	geo             grid.Geometry
	defaultDuration time.Duration
	surface         Surface

	state State
	sel   selection
	drag  drag
}

func NewController(geo grid.Geometry, defaultDuration time.Duration, surface Surface) *Controller {
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	return &Controller{geo: geo, defaultDuration: defaultDuration, surface: surface}
}

func (c *Controller) State() State { return c.state }

// SetGeometry changes the geometry used by later gestures.
func (c *Controller) SetGeometry(geo grid.Geometry) {
	c.geo = geo
	c.Reset()
}

func (c *Controller) Reset() {
	c.state = Idle
	c.sel = selection{}
	c.drag = drag{}
}

// Handle advances the state machine. It returns the finished gesture's
// intent, or nil.
func (c *Controller) Handle(in Input) Intent {
	switch in.Kind {
	case Cancel:
		c.Reset()
		return nil
	case Down:
		c.Reset()
		c.down(in)
		return nil
	}

	switch c.state {
	case Selecting:
		c.sel.current = c.geo.MinutesFromPointerY(in.Y, c.surface.ScrollOffset())
		if in.Kind == Up {
			return c.finishSelection()
		}
		return nil
	case Dragging:
		if c.drag.grab == nil {
			c.Reset()
			return nil
		}
		c.dragTo(in)
		if in.Kind == Up {
			return c.finishDrag()
		}
		return nil
	}
	// Moves and releases without a press are ignored.
	return nil
}

func (c *Controller) down(in Input) {
	col, ok := c.surface.ColumnAt(in.X)
	if !ok {
		return
	}
	scroll := c.surface.ScrollOffset()
	if g, ok := c.surface.BlockAt(col, in.X, in.Y); ok {
		day := c.surface.DayOf(col)
		raw := c.geo.RawMinutesFromPointerY(in.Y, scroll)
		orig := float64(wallMinute(g.Start, day))
		c.state = Dragging
		c.drag = drag{
			grab:      &g,
			column:    col,
			grabCol:   col,
			origMin:   orig,
			duration:  int(math.Round(g.End.Sub(g.Start).Minutes())),
			offset:    raw - orig,
			pointer:   raw,
			candidate: int(math.Round(orig)),
		}
		return
	}
	m := c.geo.MinutesFromPointerY(in.Y, scroll)
	c.state = Selecting
	c.sel = selection{column: col, anchor: m, current: m}
}

func (c *Controller) dragTo(in Input) {
	d := &c.drag
	if col, ok := c.surface.ColumnAt(in.X); ok {
		d.column = col
	}
	raw := c.geo.RawMinutesFromPointerY(in.Y, c.surface.ScrollOffset())
	if math.Abs(raw-d.pointer) >= float64(c.geo.SnapMinutes) || d.column != d.grabCol {
		d.moved = true
	}
	if !d.moved {
		return
	}
	candidate := c.geo.Snap(int(math.Round(raw - d.offset)))
	// A block that already starts outside the visible hours is held at its
	// own start instead.
	orig := int(math.Round(d.origMin))
	earliest := min(c.geo.FirstMinute(), orig)
	latest := max(c.geo.LastMinute()-d.duration, c.geo.FirstMinute(), orig)
	if candidate > latest {
		candidate = latest
	}
	if candidate < earliest {
		candidate = earliest
	}
	d.candidate = candidate
}

// wallMinute is t's wall-clock minute counted from midnight of day, so a
// start on the previous day is negative. It stays a clock reading across
// daylight saving changes, matching grid.AtMinute.
func wallMinute(t, day time.Time) int {
	t = t.In(day.Location())
	ty, tm, td := t.Date()
	dy, dm, dd := day.Date()
	days := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC).Sub(time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)) / (24 * time.Hour)
	return int(days)*24*60 + grid.MinuteOfDay(t)
}

func (c *Controller) finishSelection() Intent {
	s := c.sel
	c.Reset()
	day := c.surface.DayOf(s.column)
	lo, hi := s.anchor, s.current
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi-lo < 2*c.geo.SnapMinutes {
		start := grid.AtMinute(day, s.anchor)
		return CreateRange{Start: start, End: start.Add(c.defaultDuration)}
	}
	return CreateRange{Start: grid.AtMinute(day, lo), End: grid.AtMinute(day, hi)}
}

func (c *Controller) finishDrag() Intent {
	d := c.drag
	c.Reset()
	g := d.grab
	if !d.moved {
		return OpenEvent{EventID: g.EventID, InstanceID: g.InstanceID}
	}
	start := grid.AtMinute(c.surface.DayOf(d.column), d.candidate)
	return MoveEvent{
		EventID:       g.EventID,
		InstanceID:    g.InstanceID,
		OriginalStart: g.OriginalStart,
		Start:         start,
		End:           start.Add(g.End.Sub(g.Start)),
	}
}

// Preview reports the gesture in progress. ok is false when idle.
func (c *Controller) Preview() (p Preview, ok bool) {
	switch c.state {
	case Selecting:
		lo, hi := c.sel.anchor, c.sel.current
		if hi < lo {
			lo, hi = hi, lo
		}
		return Preview{State: Selecting, Column: c.sel.column, StartMin: lo, EndMin: hi}, true
	case Dragging:
		if c.drag.grab == nil {
			return Preview{}, false
		}
		g := *c.drag.grab
		return Preview{
			State:    Dragging,
			Column:   c.drag.column,
			StartMin: c.drag.candidate,
			EndMin:   c.drag.candidate + c.drag.duration,
			Grab:     &g,
			Moved:    c.drag.moved,
		}, true
	}
	return Preview{}, false
}

// Run feeds inputs to the controller until ctx is done or inputs is
// closed, passing every finished intent to emit.
func (c *Controller) Run(ctx context.Context, inputs <-chan Input, emit func(Intent)) error {
	for {
		select {
		case <-ctx.Done():
			c.Reset()
			return ctx.Err()
		case in, ok := <-inputs:
			if !ok {
				c.Reset()
				return nil
			}
			if intent := c.Handle(in); intent != nil {
				emit(intent)
			}
		}
	}
}
