package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cwarden/skuld/internal/grid"
	"github.com/cwarden/skuld/internal/view"
)

type Config struct {
	// File settings
	Database string
	LogFile  string
	LogLevel string
	Editor   string

	// Display settings
	WeekStartDay time.Weekday
	TimeFormat   string
	DateFormat   string
	StartupView  string
	AgendaDays   int

	// Time grid, in terminal rows per hour
	StartHour      int
	EndHour        int
	HourHeight     float64
	SnapMinutes    int
	MinBlockHeight float64

	// UI settings
	Colors      map[string]string
	KeyBindings map[string]string

	// Behavior settings
	DefaultDuration time.Duration
	AutoRefresh     bool
	RefreshRate     time.Duration
	ConfirmDelete   bool
	Reminders       bool
}

var (
	setRe   = regexp.MustCompile(`^set\s+(\w+)\s+(.+)$`)
	bindRe  = regexp.MustCompile(`^bind\s+(\S+)\s+(\S+)$`)
	colorRe = regexp.MustCompile(`^color\s+(\w+)\s+(.+)$`)
)

func DefaultConfig() *Config {
	return &Config{
		Database: filepath.Join(dataDir(), "skuld.db"),
		LogFile:  filepath.Join(stateDir(), "skuld.log"),
		LogLevel: "info",
		Editor:   getDefaultEditor(),

		WeekStartDay: time.Monday,
		TimeFormat:   "15:04",
		DateFormat:   "Jan 2, 2006",
		StartupView:  "week",
		AgendaDays:   14,

		StartHour:      0,
		EndHour:        24,
		HourHeight:     4,
		SnapMinutes:    15,
		MinBlockHeight: 1,

		Colors: map[string]string{
			"header":   "#7d56f4",
			"today":    "#f25d94",
			"selected": "#ffcc00",
			"event":    "#4a90d9",
			"status":   "#626262",
			"error":    "#ff5f87",
		},

		KeyBindings: map[string]string{
			"q":      "quit",
			"ctrl+c": "quit",
			"?":      "help",
			"o":      "today",
			"r":      "refresh",
			"n":      "new_event",
			"e":      "edit_event",
			"d":      "delete_event",
			"x":      "cancel_occurrence",
			"z":      "zoom",
			"l":      "next_day",
			"h":      "prev_day",
			"right":  "next_day",
			"left":   "prev_day",
			"j":      "scroll_down",
			"k":      "scroll_up",
			"down":   "scroll_down",
			"up":     "scroll_up",
			"J":      "next_week",
			"K":      "prev_week",
			"}":      "next_month",
			"{":      "prev_month",
			"tab":    "next_event",
			"1":      "day_view",
			"2":      "week_view",
			"3":      "month_view",
			"4":      "agenda_view",
			"5":      "year_view",
		},

		DefaultDuration: time.Hour,
		AutoRefresh:     true,
		RefreshRate:     30 * time.Second,
		ConfirmDelete:   true,
		Reminders:       true,
	}
}

// LoadConfig reads the rc file at path, or the first one found in the
// usual locations when path is empty, then applies the optional .env file
// next to it and SKULD_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if err := config.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("error loading config from %s: %w", path, err)
		}
	} else {
		for _, candidate := range configPaths() {
			if candidate == "" {
				continue
			}
			if _, err := os.Stat(candidate); err == nil {
				if err := config.loadFromFile(candidate); err != nil {
					return nil, fmt.Errorf("error loading config from %s: %w", candidate, err)
				}
				path = candidate
				break
			}
		}
	}

	envDir := configDir()
	if path != "" {
		envDir = filepath.Dir(path)
	}
	if err := loadDotEnv(filepath.Join(envDir, ".env")); err != nil {
		return nil, err
	}
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func configPaths() []string {
	home, _ := os.UserHomeDir()
	paths := []string{os.Getenv("SKULD_CONFIG")}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "skuld", "skuldrc"))
	}
	return append(paths,
		filepath.Join(home, ".config", "skuld", "skuldrc"),
		filepath.Join(home, ".skuldrc"),
	)
}

// loadDotEnv exports the variables in path that are not already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SKULD_DATABASE"); v != "" {
		c.Database = expandHome(v)
	}
	if v := os.Getenv("SKULD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SKULD_LOG_FILE"); v != "" {
		c.LogFile = expandHome(v)
	}
}

// Validate checks settings that only make sense together.
func (c *Config) Validate() error {
	if err := c.Geometry().Validate(); err != nil {
		return err
	}
	if _, err := view.ParseMode(c.StartupView); err != nil {
		return fmt.Errorf("invalid startup_view: %w", err)
	}
	if c.DefaultDuration < time.Minute {
		return fmt.Errorf("default_duration must be at least a minute, got %v", c.DefaultDuration)
	}
	return nil
}

// Geometry is the terminal time grid described by the config.
func (c *Config) Geometry() grid.Geometry {
	return grid.Geometry{
		HourHeight:     c.HourHeight,
		StartHour:      c.StartHour,
		EndHour:        c.EndHour,
		SnapMinutes:    c.SnapMinutes,
		MinBlockHeight: c.MinBlockHeight,
	}
}

// Action returns the action bound to key, if any.
func (c *Config) Action(key string) string {
	return c.KeyBindings[key]
}

func (c *Config) loadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if err := c.parseLine(scanner.Text()); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	return scanner.Err()
}

func (c *Config) parseLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	if matches := setRe.FindStringSubmatch(line); matches != nil {
		return c.setVariable(matches[1], matches[2])
	}

	// bind key action
	if matches := bindRe.FindStringSubmatch(line); matches != nil {
		c.KeyBindings[matches[1]] = matches[2]
		return nil
	}

	if matches := colorRe.FindStringSubmatch(line); matches != nil {
		c.Colors[matches[1]] = strings.Trim(matches[2], `"'`)
		return nil
	}

	return fmt.Errorf("unknown config line: %s", line)
}

func (c *Config) setVariable(name, value string) error {
	// Remove quotes if present
	value = strings.Trim(value, `"'`)

	switch name {
	case "database":
		c.Database = expandHome(value)

	case "log_file":
		c.LogFile = expandHome(value)

	case "log_level":
		c.LogLevel = strings.ToLower(value)

	case "editor":
		c.Editor = value

	case "week_start_day":
		switch strings.ToLower(value) {
		case "sunday", "sun", "0":
			c.WeekStartDay = time.Sunday
		case "monday", "mon", "1":
			c.WeekStartDay = time.Monday
		case "saturday", "sat", "6":
			c.WeekStartDay = time.Saturday
		default:
			return fmt.Errorf("invalid week_start_day: %s", value)
		}

	case "time_format":
		c.TimeFormat = value

	case "date_format":
		c.DateFormat = value

	case "startup_view":
		if _, err := view.ParseMode(value); err != nil {
			return fmt.Errorf("invalid startup_view: %s", value)
		}
		c.StartupView = strings.ToLower(value)

	case "agenda_days":
		return setInt(&c.AgendaDays, name, value, 1, 366)

	case "start_hour":
		return setInt(&c.StartHour, name, value, 0, 23)

	case "end_hour":
		return setInt(&c.EndHour, name, value, 1, 24)

	case "snap_minutes":
		if err := setInt(&c.SnapMinutes, name, value, 1, 60); err != nil {
			return err
		}
		if 60%c.SnapMinutes != 0 {
			return fmt.Errorf("invalid snap_minutes: %s does not divide 60", value)
		}

	case "hour_height":
		h, err := strconv.ParseFloat(value, 64)
		if err != nil || h <= 0 {
			return fmt.Errorf("invalid hour_height: %s", value)
		}
		c.HourHeight = h

	case "min_block_height":
		h, err := strconv.ParseFloat(value, 64)
		if err != nil || h < 0 {
			return fmt.Errorf("invalid min_block_height: %s", value)
		}
		c.MinBlockHeight = h

	case "default_duration":
		d, err := parseMinutes(value)
		if err != nil {
			return fmt.Errorf("invalid default_duration: %s", value)
		}
		c.DefaultDuration = d

	case "auto_refresh":
		c.AutoRefresh = parseBool(value)

	case "refresh_rate":
		rate, err := time.ParseDuration(value)
		if err != nil {
			// Try parsing as seconds
			if seconds, err2 := strconv.Atoi(value); err2 == nil {
				rate = time.Duration(seconds) * time.Second
			} else {
				return fmt.Errorf("invalid refresh_rate: %s", value)
			}
		}
		c.RefreshRate = rate

	case "confirm_delete":
		c.ConfirmDelete = parseBool(value)

	case "reminders":
		c.Reminders = parseBool(value)

	default:
		return fmt.Errorf("unknown config variable: %s", name)
	}

	return nil
}

func setInt(dst *int, name, value string, lo, hi int) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < lo || n > hi {
		return fmt.Errorf("invalid %s: %s", name, value)
	}
	*dst = n
	return nil
}

// parseMinutes accepts a Go duration or a bare number of minutes.
func parseMinutes(value string) (time.Duration, error) {
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	return time.ParseDuration(value)
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "skuld")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "skuld")
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "skuld")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "skuld")
}

func stateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "skuld")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "skuld")
}

func getDefaultEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if editor := os.Getenv("VISUAL"); editor != "" {
		return editor
	}
	return "vi"
}
