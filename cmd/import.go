package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/ics"
)

var importCalendar string

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import events from an iCalendar file (- for stdin)",
	Long: `Import the VEVENTs of an iCalendar file into a calendar. Recurrence
overrides and cancelled occurrences come along with their series; events
that cannot be represented are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importCalendar, "calendar", "", "Calendar id to import into (default the primary calendar)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	result, err := ics.Import(r, time.Local)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	calID := importCalendar
	if calID == "" {
		primary, err := b.store.EnsureDefaultCalendar(ctx)
		if err != nil {
			return err
		}
		calID = primary.ID
	}

	out := cmd.OutOrStdout()
	imported := 0
	for _, item := range result.Events {
		in := item.Event
		in.CalendarID = calID
		ev, err := b.store.CreateEvent(ctx, in)
		if err != nil {
			fmt.Fprintf(out, "skipped %s (%s): %v\n", in.Title, item.UID, err)
			continue
		}
		for _, ex := range item.Exceptions {
			ex.EventID = ev.ID
			if _, err := b.store.CreateException(ctx, ex); err != nil {
				b.logger.Warn("dropping occurrence change",
					zap.String("uid", item.UID),
					zap.Time("originalStart", ex.OriginalStart),
					zap.Error(err),
				)
			}
		}
		imported++
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(out, "skipped %s\n", s.Error())
	}
	fmt.Fprintf(out, "Imported %d events, skipped %d\n", imported, len(result.Events)-imported+len(result.Skipped))
	return nil
}
