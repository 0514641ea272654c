// Package view composes expanded instances into Day, Week, Month, Agenda
// and Year view models. Everything here is pure: callers render the result.
package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/grid"
)

type Mode int

const (
	ModeDay Mode = iota
	ModeWeek
	ModeMonth
	ModeAgenda
	ModeYear
)

var modeNames = []string{"day", "week", "month", "agenda", "year"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return ModeDay, fmt.Errorf("unknown view %q", s)
}

// Block is a timed instance positioned in a day column.
type Block struct {
	Instance calendar.Instance
	// StartMin and EndMin are the instance clipped to the column's day.
	StartMin int
	EndMin   int
	Top      float64
	Height   float64
	Column   int
	Columns  int
	// ContinuedBefore and ContinuesAfter mark instances cut at midnight.
	ContinuedBefore bool
	ContinuesAfter  bool
}

type DayColumn struct {
	Date   time.Time
	AllDay []calendar.Instance
	Blocks []Block
}

// BlockAt returns the topmost block covering minute whose column span
// contains frac, a horizontal position in [0, 1) across the day column.
func (d DayColumn) BlockAt(minute int, frac float64) (Block, bool) {
	for i := len(d.Blocks) - 1; i >= 0; i-- {
		b := d.Blocks[i]
		if minute < b.StartMin || minute >= b.EndMin {
			continue
		}
		lo := float64(b.Column) / float64(b.Columns)
		hi := float64(b.Column+1) / float64(b.Columns)
		if frac >= lo && frac < hi {
			return b, true
		}
	}
	return Block{}, false
}

func dayBounds(date time.Time) (time.Time, time.Time) {
	return calendar.AllDayBounds(date)
}

func overlapsDay(inst calendar.Instance, date time.Time) bool {
	start, end := dayBounds(date)
	return inst.Start.Before(end) && inst.End.After(start)
}

// Day lays out the instances that fall on date. Zero-length instances are
// dropped; timed instances spanning midnight are clipped to the day.
func Day(date time.Time, instances []calendar.Instance, geo grid.Geometry) DayColumn {
	day, _ := dayBounds(date)
	col := DayColumn{Date: day}

	var (
		items []grid.Item
		byID  = make(map[string]calendar.Instance)
	)
	for _, inst := range instances {
		if !inst.End.After(inst.Start) || !overlapsDay(inst, day) {
			continue
		}
		if inst.AllDay {
			col.AllDay = append(col.AllDay, inst)
			continue
		}
		s, e, ok := grid.ClipToDay(inst.Start, inst.End, day)
		if !ok {
			continue
		}
		items = append(items, grid.Item{ID: inst.InstanceID, Start: s, End: e})
		byID[inst.InstanceID] = inst
	}

	dayStart, dayEnd := dayBounds(day)
	for _, p := range grid.Layout(items) {
		visStart := max(p.Start, geo.FirstMinute())
		visEnd := min(p.End, geo.LastMinute())
		if visEnd <= visStart {
			continue
		}
		inst := byID[p.ID]
		col.Blocks = append(col.Blocks, Block{
			Instance:        inst,
			StartMin:        p.Start,
			EndMin:          p.End,
			Top:             geo.TopOffset(visStart),
			Height:          geo.BlockHeight(visStart, visEnd),
			Column:          p.Column,
			Columns:         p.Columns,
			ContinuedBefore: inst.Start.Before(dayStart),
			ContinuesAfter:  inst.End.After(dayEnd),
		})
	}
	return col
}

// StartOfWeek returns local midnight of the first day of t's week.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := calendar.StartOfDay(t)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

type WeekView struct {
	Start time.Time
	Days  []DayColumn
}

// Week lays out the seven days of anchor's week.
func Week(anchor time.Time, weekStart time.Weekday, instances []calendar.Instance, geo grid.Geometry) WeekView {
	start := StartOfWeek(anchor, weekStart)
	w := WeekView{Start: start, Days: make([]DayColumn, 7)}
	for i := range w.Days {
		w.Days[i] = Day(start.AddDate(0, 0, i), instances, geo)
	}
	return w
}

type MonthCell struct {
	Date      time.Time
	InMonth   bool
	Instances []calendar.Instance
}

type MonthView struct {
	Month time.Time // first of the month
	Weeks [6][7]MonthCell
}

// MonthGridStart returns the first day shown in the month grid.
func MonthGridStart(anchor time.Time, weekStart time.Weekday) time.Time {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	return StartOfWeek(first, weekStart)
}

// Month fills a six week grid around anchor's month. Each cell lists the
// instances touching that day, all-day ones first.
func Month(anchor time.Time, weekStart time.Weekday, instances []calendar.Instance) MonthView {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	mv := MonthView{Month: first}
	day := MonthGridStart(anchor, weekStart)
	for w := range mv.Weeks {
		for d := range mv.Weeks[w] {
			mv.Weeks[w][d] = MonthCell{
				Date:      day,
				InMonth:   day.Month() == first.Month(),
				Instances: onDay(day, instances),
			}
			day = day.AddDate(0, 0, 1)
		}
	}
	return mv
}

func onDay(day time.Time, instances []calendar.Instance) []calendar.Instance {
	var out []calendar.Instance
	for _, inst := range instances {
		if inst.End.After(inst.Start) && overlapsDay(inst, day) {
			out = append(out, inst)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AllDay && !out[j].AllDay
	})
	return out
}

type AgendaDay struct {
	Date      time.Time
	Instances []calendar.Instance
}

// Agenda lists days from `from` onwards that have instances.
func Agenda(from time.Time, days int, instances []calendar.Instance) []AgendaDay {
	var out []AgendaDay
	day := calendar.StartOfDay(from)
	for i := 0; i < days; i++ {
		if insts := onDay(day, instances); len(insts) > 0 {
			out = append(out, AgendaDay{Date: day, Instances: insts})
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

type YearMonth struct {
	Month time.Time // first of the month
	// Counts maps day of month to the number of instances on it.
	Counts map[int]int
}

// Year counts instances per day for each month of year.
func Year(year int, loc *time.Location, instances []calendar.Instance) []YearMonth {
	out := make([]YearMonth, 12)
	for i := range out {
		first := time.Date(year, time.Month(i+1), 1, 0, 0, 0, 0, loc)
		ym := YearMonth{Month: first, Counts: make(map[int]int)}
		for day := first; day.Month() == first.Month(); day = day.AddDate(0, 0, 1) {
			if n := len(onDay(day, instances)); n > 0 {
				ym.Counts[day.Day()] = n
			}
		}
		out[i] = ym
	}
	return out
}

// Range returns the [start, end) a view needs loaded.
func Range(mode Mode, anchor time.Time, weekStart time.Weekday, agendaDays int) (time.Time, time.Time) {
	switch mode {
	case ModeWeek:
		start := StartOfWeek(anchor, weekStart)
		return start, start.AddDate(0, 0, 7)
	case ModeMonth:
		start := MonthGridStart(anchor, weekStart)
		return start, start.AddDate(0, 0, 42)
	case ModeAgenda:
		if agendaDays <= 0 {
			agendaDays = 14
		}
		start := calendar.StartOfDay(anchor)
		return start, start.AddDate(0, 0, agendaDays)
	case ModeYear:
		start := time.Date(anchor.Year(), time.January, 1, 0, 0, 0, 0, anchor.Location())
		return start, start.AddDate(1, 0, 0)
	default:
		return dayBounds(anchor)
	}
}

// ColorFor resolves an instance's display color: its own, else its
// calendar's, else fallback. Calendars are looked up at render time so a
// renamed or recolored calendar shows up without touching its events.
func ColorFor(inst calendar.Instance, calendars map[string]calendar.Calendar, fallback string) string {
	if inst.Color != "" {
		return inst.Color
	}
	if cal, ok := calendars[inst.CalendarID]; ok && cal.Color != "" {
		return cal.Color
	}
	return fallback
}

// CalendarIndex builds the lookup ColorFor expects.
func CalendarIndex(cals []calendar.Calendar) map[string]calendar.Calendar {
	m := make(map[string]calendar.Calendar, len(cals))
	for _, c := range cals {
		m[c.ID] = c
	}
	return m
}
