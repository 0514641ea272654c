package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/schedule"
	"github.com/cwarden/skuld/internal/view"
)

var (
	listDays int
	listFrom string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List upcoming events and exit",
	Long:  `List the events of today, or of --days days from --from, in a simple text format and exit.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVarP(&listDays, "days", "d", 1, "Number of days to list")
	listCmd.Flags().StringVar(&listFrom, "from", "", "First day to list, as YYYY-MM-DD (default today)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	from := calendar.StartOfDay(time.Now())
	if listFrom != "" {
		var err error
		if from, err = time.ParseInLocation(time.DateOnly, listFrom, time.Local); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	if listDays < 1 {
		return fmt.Errorf("--days must be at least 1, got %d", listDays)
	}

	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	snap, err := b.service.Load(cmd.Context(), schedule.Request{Start: from, End: from.AddDate(0, 0, listDays)})
	if err != nil {
		return fmt.Errorf("error getting events: %w", err)
	}
	printAgenda(cmd.OutOrStdout(), view.Agenda(from, listDays, snap.Instances))
	return nil
}

func printAgenda(w io.Writer, days []view.AgendaDay) {
	for i, day := range days {
		if len(days) > 1 && i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Events for %s:\n", day.Date.Format(cfg.DateFormat))
		if len(day.Instances) == 0 {
			fmt.Fprintln(w, "  No events found.")
			continue
		}

		for _, inst := range day.Instances {
			timeStr := "All day"
			if !inst.AllDay {
				timeStr = inst.Start.Format(cfg.TimeFormat) + "-" + inst.End.Format(cfg.TimeFormat)
			}
			marker := ""
			switch {
			case inst.Status == calendar.StatusTentative:
				marker = " (tentative)"
			case inst.IsRecurring:
				marker = " (repeats)"
			}
			fmt.Fprintf(w, "  %s - %s%s\n", timeStr, inst.Title, marker)
			if inst.Location != "" {
				fmt.Fprintf(w, "    @ %s\n", inst.Location)
			}
			if inst.Description != "" {
				fmt.Fprintln(w, indent.String(wordwrap.String(inst.Description, 72), 4))
			}
		}
	}
}
