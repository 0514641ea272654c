package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/grid"
	"github.com/cwarden/skuld/internal/view"
)

func testGeometry() grid.Geometry {
	return grid.Geometry{HourHeight: 40, StartHour: 8, EndHour: 18, SnapMinutes: 15, MinBlockHeight: 10}
}

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

func rgba(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestWeekPNG(t *testing.T) {
	geo := testGeometry()
	instances := []calendar.Instance{
		{InstanceID: "review", CalendarID: "work", Title: "Review", Start: at(10, 10), End: at(10, 12), Color: "#ff0000", Status: calendar.StatusConfirmed},
		{InstanceID: "gym", CalendarID: "home", Title: "Gym", Start: at(11, 10), End: at(11, 12), Status: calendar.StatusConfirmed},
		{InstanceID: "trip", CalendarID: "home", Title: "Trip", Start: at(12, 0), End: at(13, 0), AllDay: true},
	}
	week := view.Week(at(12, 9), time.Monday, instances, geo)
	cals := view.CalendarIndex([]calendar.Calendar{{ID: "home", Color: "#00ff00"}})

	var buf bytes.Buffer
	require.NoError(t, WeekPNG(&buf, week, geo, Options{DayWidth: 100, Calendars: cals}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, leftLabelsWidth+7*100, bounds.Dx())
	gridTop := titleHeight + dayHeaderHeight + allDayRowHeight
	assert.Equal(t, gridTop+400+bottomPadding, bounds.Dy())

	// Below the text lines of the 10:00 blocks.
	y := gridTop + 140
	red := rgba(img, leftLabelsWidth+50, y)
	assert.Greater(t, red.R, uint8(240))
	assert.Less(t, red.G, uint8(15))

	green := rgba(img, leftLabelsWidth+150, y)
	assert.Greater(t, green.G, uint8(240))
	assert.Less(t, green.R, uint8(15))

	// An empty stretch of Thursday keeps the day background.
	assert.Equal(t, color.RGBA{248, 248, 248, 255}, rgba(img, leftLabelsWidth+350, gridTop+310))
}

func TestWeekSideBySide(t *testing.T) {
	geo := testGeometry()
	instances := []calendar.Instance{
		{InstanceID: "a", Title: "A", Start: at(10, 9), End: at(10, 11), Color: "#ff0000"},
		{InstanceID: "b", Title: "B", Start: at(10, 10), End: at(10, 12), Color: "#0000ff"},
	}
	week := view.Week(at(10, 9), time.Monday, instances, geo)
	img := Week(week, geo, Options{DayWidth: 200})

	gridTop := titleHeight + dayHeaderHeight
	y := gridTop + 100 // 10:30
	left := rgba(img, leftLabelsWidth+60, y)
	right := rgba(img, leftLabelsWidth+160, y)
	assert.Greater(t, left.R, uint8(240))
	assert.Greater(t, right.B, uint8(240))
}

func TestWeekPNGRejects(t *testing.T) {
	var buf bytes.Buffer
	week := view.Week(at(10, 9), time.Monday, nil, testGeometry())
	assert.Error(t, WeekPNG(&buf, week, grid.Geometry{}, Options{}))
	assert.Error(t, WeekPNG(&buf, view.WeekView{}, testGeometry(), Options{}))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, color.NRGBA{0x33, 0x66, 0x99, 255}, hexColor("#369"))
	assert.Equal(t, color.NRGBA{0x12, 0x34, 0x56, 255}, hexColor("#123456"))
	assert.Equal(t, hexColor(defaultColor), hexColor("tomato"))
}
