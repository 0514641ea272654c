package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/calendar"
	"github.com/cwarden/skuld/internal/config"
	"github.com/cwarden/skuld/internal/logging"
	"github.com/cwarden/skuld/internal/notify"
	"github.com/cwarden/skuld/internal/schedule"
	"github.com/cwarden/skuld/internal/store"
	"github.com/cwarden/skuld/internal/ui"
)

var (
	cfgFile  string
	database string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "skuld",
	Short: "A terminal calendar with a mouse-driven time grid",
	Long: `Skuld is a terminal calendar. Draw events on the day and week grid with
the mouse, drag them to reschedule, and browse month, agenda and year views.
Events are kept in a local SQLite database.`,
	PersistentPreRunE: initConfig,
	RunE:              runTUI,
	SilenceUsage:      true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: $SKULD_CONFIG, ~/.config/skuld/skuldrc or ~/.skuldrc)")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "SQLite database file (overrides the config)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if database != "" {
		cfg.Database = database
	}
	return nil
}

// backend is everything a command needs to reach the calendar.
type backend struct {
	logger  *zap.Logger
	store   *store.SQLite
	service *schedule.Service
}

func (b *backend) Close() {
	b.store.Close()
	b.logger.Sync()
}

func openBackend(ctx context.Context) (*backend, error) {
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Database, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	svc := schedule.NewService(st, &calendar.Expander{Location: time.Local}, logger.Named("schedule"))
	logger.Info("opened calendar", zap.String("database", cfg.Database))
	return &backend{logger: logger, store: st, service: svc}, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	model := ui.NewModel(cfg, b.service, b.logger.Named("ui"))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	watcher, err := store.NewWatcher(b.store.Path(), func(path string) {
		p.Send(ui.StoreChangedMsg{Path: path})
	}, b.logger.Named("watcher"))
	if err != nil {
		// Still usable; changes by other processes show up on refresh.
		b.logger.Warn("watching database failed", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	if cfg.Reminders {
		load := func(ctx context.Context, start, end time.Time) ([]calendar.Instance, error) {
			snap, err := b.service.Load(ctx, schedule.Request{Start: start, End: end})
			return snap.Instances, err
		}
		scheduler := notify.NewScheduler(load, func(d notify.Due) {
			p.Send(ui.ReminderMsg{Due: d})
		}, b.logger.Named("notify"))
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start reminders: %w", err)
		}
		defer scheduler.Stop()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
