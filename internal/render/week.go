// Package render draws a week view as a PNG image.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/basicfont"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/grid"
	"github.com/cwarden/skuld/internal/view"
)

const (
	titleHeight     = 28
	dayHeaderHeight = 24
	allDayRowHeight = 18
	leftLabelsWidth = 52
	bottomPadding   = 8
	dayPaddingX     = 3
	blockRadius     = 4.0
	shadowOffset    = 2.0
	textInset       = 4.0
	lineHeight      = 14.0

	defaultDayWidth = 160
	defaultColor    = "#4a90d9"
)

var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 255}
	hourLabelColor   = color.RGBA{110, 115, 120, 255}
	hourLineColor    = color.NRGBA{200, 200, 200, 255}
	halfHourColor    = color.NRGBA{225, 225, 225, 255}
	todayBgColor     = color.NRGBA{255, 236, 230, 255}
	evenDayColor     = color.NRGBA{255, 255, 255, 255}
	oddDayColor      = color.NRGBA{248, 248, 248, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 220}
	blockTextColor   = color.RGBA{255, 255, 255, 255}
	blockShadowColor = color.RGBA{0, 0, 0, 24}
	tentativeAlpha   = uint8(150)
)

type Options struct {
	// Title is drawn above the grid. Empty means the week's date range.
	Title string
	// DayWidth is the width of one day column in pixels.
	DayWidth int
	// Calendars resolves colors for instances without their own.
	Calendars map[string]calendar.Calendar
	// Now draws the current-time line when it falls inside the week.
	Now time.Time
}

// layout holds the pixel offsets shared by the draw helpers.
type layout struct {
	geo      grid.Geometry
	dayWidth float64
	gridTop  float64
	allDayY  float64
	allDay   int
}

// Week draws week into an image. geo must be the pixel geometry the week
// was laid out with.
func Week(week view.WeekView, geo grid.Geometry, opts Options) image.Image {
	return drawWeek(week, geo, opts).Image()
}

// WeekPNG writes the week as a PNG.
func WeekPNG(w io.Writer, week view.WeekView, geo grid.Geometry, opts Options) error {
	if err := geo.Validate(); err != nil {
		return err
	}
	if len(week.Days) == 0 {
		return fmt.Errorf("render: empty week")
	}
	return drawWeek(week, geo, opts).EncodePNG(w)
}

func drawWeek(week view.WeekView, geo grid.Geometry, opts Options) *gg.Context {
	if opts.DayWidth <= 0 {
		opts.DayWidth = defaultDayWidth
	}
	rows := 0
	for _, d := range week.Days {
		rows = max(rows, len(d.AllDay))
	}
	l := layout{
		geo:      geo,
		dayWidth: float64(opts.DayWidth),
		allDayY:  titleHeight + dayHeaderHeight,
		allDay:   rows,
	}
	l.gridTop = l.allDayY + float64(rows*allDayRowHeight)

	width := leftLabelsWidth + opts.DayWidth*len(week.Days)
	height := int(l.gridTop+geo.Height()) + bottomPadding

	dc := createCanvas(width, height)
	drawHeader(dc, week, opts.Title)
	drawHourLabels(dc, l)
	for i, day := range week.Days {
		x := leftLabelsWidth + float64(i)*l.dayWidth
		isToday := !opts.Now.IsZero() && day.Date.Equal(calendar.StartOfDay(opts.Now.In(day.Date.Location())))
		drawDayBackground(dc, l, x, i, isToday)
		drawDayHeader(dc, day.Date, x, l.dayWidth)
		drawHourLines(dc, l, x)
		for row, inst := range day.AllDay {
			drawAllDay(dc, inst, x, l.allDayY+float64(row*allDayRowHeight), l.dayWidth, opts.Calendars)
		}
		for _, b := range day.Blocks {
			drawBlock(dc, b, x, l, opts.Calendars)
		}
		if isToday {
			drawCurrentTimeLine(dc, l, x, opts.Now)
		}
	}
	return dc
}

func createCanvas(width, height int) *gg.Context {
	dc := gg.NewContext(width, height)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	return dc
}

func drawHeader(dc *gg.Context, week view.WeekView, title string) {
	if title == "" {
		first := week.Days[0].Date
		last := week.Days[len(week.Days)-1].Date
		title = fmt.Sprintf("%s - %s", first.Format("Jan 2"), last.Format("Jan 2, 2006"))
	}
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(dc.Width())/2, titleHeight/2, 0.5, 0.5)
}

func drawHourLabels(dc *gg.Context, l layout) {
	dc.SetColor(hourLabelColor)
	for h := l.geo.StartHour; h < l.geo.EndHour; h++ {
		y := l.gridTop + l.geo.TopOffset(h*60)
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", h), leftLabelsWidth-6, y+2, 1, 1)
	}
}

func drawDayBackground(dc *gg.Context, l layout, x float64, dayIndex int, isToday bool) {
	bg := evenDayColor
	if dayIndex%2 == 1 {
		bg = oddDayColor
	}
	if isToday {
		bg = todayBgColor
	}
	dc.SetColor(bg)
	dc.DrawRectangle(x, titleHeight, l.dayWidth, float64(dc.Height())-titleHeight-bottomPadding)
	dc.Fill()

	dc.SetColor(hourLineColor)
	dc.SetLineWidth(1)
	dc.DrawLine(x, titleHeight, x, float64(dc.Height())-bottomPadding)
	dc.Stroke()
}

func drawDayHeader(dc *gg.Context, date time.Time, x, dayWidth float64) {
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("Mon Jan 2"), x+dayWidth/2, titleHeight+dayHeaderHeight/2, 0.5, 0.5)
}

func drawHourLines(dc *gg.Context, l layout, x float64) {
	dc.SetLineWidth(1)
	for h := l.geo.StartHour; h <= l.geo.EndHour; h++ {
		y := l.gridTop + l.geo.TopOffset(h*60)
		dc.SetColor(hourLineColor)
		dc.DrawLine(x, y, x+l.dayWidth, y)
		dc.Stroke()
		if h < l.geo.EndHour && l.geo.HourHeight >= 24 {
			y += l.geo.HourHeight / 2
			dc.SetColor(halfHourColor)
			dc.DrawLine(x, y, x+l.dayWidth, y)
			dc.Stroke()
		}
	}
}

func drawAllDay(dc *gg.Context, inst calendar.Instance, x, y, dayWidth float64, cals map[string]calendar.Calendar) {
	fill := instanceColor(inst, cals)
	w := dayWidth - 2*dayPaddingX
	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x+dayPaddingX, y+1, w, allDayRowHeight-2, blockRadius)
	dc.Fill()
	drawClippedText(dc, inst.Title, x+dayPaddingX+textInset, y+allDayRowHeight/2, w-2*textInset, 0.5)
}

func drawBlock(dc *gg.Context, b view.Block, x float64, l layout, cals map[string]calendar.Calendar) {
	colWidth := (l.dayWidth - 2*dayPaddingX) / float64(max(b.Columns, 1))
	bx := x + dayPaddingX + float64(b.Column)*colWidth
	by := l.gridTop + b.Top
	bw := colWidth - 1
	bh := b.Height - 1

	fill := instanceColor(b.Instance, cals)

	dc.SetColor(blockShadowColor)
	dc.DrawRoundedRectangle(bx+shadowOffset, by+shadowOffset, bw, bh, blockRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(bx, by, bw, bh, blockRadius)
	dc.Fill()

	dc.SetColor(darkenColor(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(bx, by, bw, bh, blockRadius)
	dc.Stroke()

	title := b.Instance.Title
	if b.Instance.Status == calendar.StatusCancelled {
		title = "(cancelled) " + title
	}
	textW := bw - 2*textInset
	drawClippedText(dc, b.Instance.Start.Format("15:04"), bx+textInset, by+textInset, textW, 1)
	if bh >= 2*lineHeight+textInset {
		drawClippedText(dc, title, bx+textInset, by+textInset+lineHeight, textW, 1)
	}
}

// drawClippedText draws s left-aligned at x, shortened to fit width. ay
// anchors it vertically as in DrawStringAnchored.
func drawClippedText(dc *gg.Context, s string, x, y, width, ay float64) {
	if width <= 0 {
		return
	}
	runes := []rune(s)
	for len(runes) > 0 {
		w, _ := dc.MeasureString(string(runes))
		if w <= width {
			break
		}
		runes = runes[:len(runes)-1]
	}
	if len(runes) == 0 {
		return
	}
	dc.SetColor(blockTextColor)
	dc.DrawStringAnchored(string(runes), x, y, 0, ay)
}

func drawCurrentTimeLine(dc *gg.Context, l layout, x float64, now time.Time) {
	minute := grid.MinuteOfDay(now)
	if minute < l.geo.FirstMinute() || minute >= l.geo.LastMinute() {
		return
	}
	y := l.gridTop + l.geo.TopOffset(minute)
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2)
	dc.DrawLine(x, y, x+l.dayWidth, y)
	dc.Stroke()
	dc.DrawCircle(x+3, y, 3)
	dc.Fill()
}

func instanceColor(inst calendar.Instance, cals map[string]calendar.Calendar) color.NRGBA {
	c := hexColor(view.ColorFor(inst, cals, defaultColor))
	if inst.Status == calendar.StatusTentative || inst.Status == calendar.StatusCancelled {
		c.A = tentativeAlpha
	}
	return c
}

// hexColor parses a "#rgb" or "#rrggbb" color, falling back to the
// default for anything else.
func hexColor(s string) color.NRGBA {
	c, err := colorful.Hex(s)
	if err != nil {
		c, _ = colorful.Hex(defaultColor)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{r, g, b, 255}
}

func darkenColor(c color.NRGBA, factor float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}
