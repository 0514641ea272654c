// Package grid maps between a scrollable day column and minutes of the day,
// and packs overlapping items into side-by-side columns.
package grid

import (
	"fmt"
	"math"
	"time"
)

const MinutesPerDay = 24 * 60

// Geometry describes a day column. HourHeight is in whatever unit the
// caller measures pointer positions in: pixels for images, rows in the
// terminal.
type Geometry struct {
	HourHeight     float64
	StartHour      int
	EndHour        int
	SnapMinutes    int
	MinBlockHeight float64
}

// DefaultGeometry is a full day at 48px per hour with 15 minute snapping.
func DefaultGeometry() Geometry {
	return Geometry{
		HourHeight:     48,
		StartHour:      0,
		EndHour:        24,
		SnapMinutes:    15,
		MinBlockHeight: 18,
	}
}

func (g Geometry) Validate() error {
	if g.HourHeight <= 0 {
		return fmt.Errorf("hour height must be positive, got %v", g.HourHeight)
	}
	if g.StartHour < 0 || g.EndHour > 24 || g.StartHour >= g.EndHour {
		return fmt.Errorf("invalid hour range %d-%d", g.StartHour, g.EndHour)
	}
	if g.SnapMinutes <= 0 || 60%g.SnapMinutes != 0 {
		return fmt.Errorf("snap minutes must divide 60, got %d", g.SnapMinutes)
	}
	if g.MinBlockHeight < 0 {
		return fmt.Errorf("minimum block height must not be negative, got %v", g.MinBlockHeight)
	}
	return nil
}

func (g Geometry) FirstMinute() int { return g.StartHour * 60 }

func (g Geometry) LastMinute() int { return g.EndHour * 60 }

// VisibleMinutes is the length of the visible range.
func (g Geometry) VisibleMinutes() int { return g.LastMinute() - g.FirstMinute() }

// Height is the full column height.
func (g Geometry) Height() float64 {
	return float64(g.EndHour-g.StartHour) * g.HourHeight
}

// MinutesFromPointerY converts a pointer offset inside the column into a
// snapped minute of the day within the visible range.
func (g Geometry) MinutesFromPointerY(pointerY, scrollOffset float64) int {
	return g.Clamp(g.snapFloat(g.RawMinutesFromPointerY(pointerY, scrollOffset)))
}

// RawMinutesFromPointerY is MinutesFromPointerY without snapping.
func (g Geometry) RawMinutesFromPointerY(pointerY, scrollOffset float64) float64 {
	return float64(g.FirstMinute()) + (pointerY+scrollOffset)/g.HourHeight*60
}

// TopOffset is the offset of minute from the top of the column.
func (g Geometry) TopOffset(minute int) float64 {
	return float64(minute-g.FirstMinute()) / 60 * g.HourHeight
}

// BlockHeight is the rendered height of [startMin, endMin), never less than
// MinBlockHeight so short items stay clickable.
func (g Geometry) BlockHeight(startMin, endMin int) float64 {
	return math.Max(g.MinBlockHeight, float64(endMin-startMin)/60*g.HourHeight)
}

// Snap rounds minute to the nearest snap boundary.
func (g Geometry) Snap(minute int) int {
	return g.snapFloat(float64(minute))
}

func (g Geometry) snapFloat(minute float64) int {
	snap := float64(g.SnapMinutes)
	return int(math.Round(minute/snap) * snap)
}

// Clamp limits minute to the visible range.
func (g Geometry) Clamp(minute int) int {
	if minute < g.FirstMinute() {
		return g.FirstMinute()
	}
	if minute > g.LastMinute() {
		return g.LastMinute()
	}
	return minute
}

// WithSnap returns a copy with a different snap granularity.
func (g Geometry) WithSnap(minutes int) Geometry {
	g.SnapMinutes = minutes
	return g
}

// MinuteOfDay returns the minutes since local midnight of t's day.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// AtMinute returns the wall-clock time minute minutes into day.
func AtMinute(day time.Time, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, day.Location())
}

// ClipToDay clips [start, end) to day and returns it in minutes of the day.
// ok is false when nothing of the span falls on day.
func ClipToDay(start, end, day time.Time) (startMin, endMin int, ok bool) {
	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	if !start.Before(dayEnd) || !end.After(dayStart) || !end.After(start) {
		return 0, 0, false
	}
	startMin = 0
	if start.After(dayStart) {
		startMin = MinuteOfDay(start.In(day.Location()))
	}
	endMin = MinutesPerDay
	if end.Before(dayEnd) {
		endMin = MinuteOfDay(end.In(day.Location()))
	}
	if endMin <= startMin {
		return 0, 0, false
	}
	return startMin, endMin, true
}
