package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/grid"
	"github.com/cwarden/skuld/internal/ics"
	"github.com/cwarden/skuld/internal/render"
	"github.com/cwarden/skuld/internal/schedule"
	"github.com/cwarden/skuld/internal/view"
)

var (
	exportWeek     string
	exportDayWidth int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the calendar to another format",
}

var exportICSCmd = &cobra.Command{
	Use:   "ics FILE",
	Short: "Write every event as an iCalendar file (- for stdout)",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportICS,
}

var exportPNGCmd = &cobra.Command{
	Use:   "png FILE",
	Short: "Draw a week as a PNG image (- for stdout)",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportPNG,
}

func init() {
	exportPNGCmd.Flags().StringVar(&exportWeek, "week", "", "Any day of the week to draw, as YYYY-MM-DD (default this week)")
	exportPNGCmd.Flags().IntVar(&exportDayWidth, "day-width", 0, "Width of a day column in pixels")
	exportCmd.AddCommand(exportICSCmd, exportPNGCmd)
	rootCmd.AddCommand(exportCmd)
}

// create opens path for writing; "-" is stdout.
func create(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func runExportICS(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	events, err := b.store.ListEvents(ctx, nil)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	var exceptions []calendar.Exception
	if len(ids) > 0 {
		if exceptions, err = b.store.ListExceptions(ctx, ids); err != nil {
			return err
		}
	}

	w, err := create(cmd, args[0])
	if err != nil {
		return err
	}
	if err := ics.Export(w, "Skuld", events, exceptions); err != nil {
		w.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	b.logger.Info("exported calendar", zap.String("file", args[0]), zap.Int("events", len(events)))
	return nil
}

func runExportPNG(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	anchor := calendar.StartOfDay(time.Now())
	if exportWeek != "" {
		var err error
		if anchor, err = time.ParseInLocation(time.DateOnly, exportWeek, time.Local); err != nil {
			return fmt.Errorf("--week: %w", err)
		}
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	start, end := view.Range(view.ModeWeek, anchor, cfg.WeekStartDay, cfg.AgendaDays)
	snap, err := b.service.Load(ctx, schedule.Request{Start: start, End: end})
	if err != nil {
		return err
	}

	// Same hours as the terminal grid, in pixels.
	geo := grid.DefaultGeometry()
	geo.StartHour, geo.EndHour = cfg.StartHour, cfg.EndHour
	week := view.Week(anchor, cfg.WeekStartDay, snap.Instances, geo)

	w, err := create(cmd, args[0])
	if err != nil {
		return err
	}
	opts := render.Options{
		DayWidth:  exportDayWidth,
		Calendars: view.CalendarIndex(snap.Calendars),
		Now:       time.Now(),
	}
	if err := render.WeekPNG(w, week, geo, opts); err != nil {
		w.Close()
		return fmt.Errorf("render: %w", err)
	}
	return w.Close()
}
