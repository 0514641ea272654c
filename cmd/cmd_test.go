package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:review
DTSTAMP:20250101T000000Z
SUMMARY:Design review
LOCATION:Room 4
DTSTART:20250106T120000Z
DTEND:20250106T130000Z
END:VEVENT
BEGIN:VEVENT
UID:daily
DTSTAMP:20250101T000000Z
SUMMARY:Daily
DTSTART:20250106T110000Z
DTEND:20250106T113000Z
RRULE:FREQ=DAILY;COUNT=3
END:VEVENT
END:VCALENDAR
`

type env struct {
	dir    string
	config string
	db     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{dir: dir, config: filepath.Join(dir, "skuldrc"), db: filepath.Join(dir, "skuld.db")}
	require.NoError(t, os.WriteFile(e.config, []byte("set log_level debug\n"), 0o644))
	t.Setenv("SKULD_LOG_FILE", filepath.Join(dir, "skuld.log"))
	return e
}

func (e *env) run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", e.config, "--database", e.db}, args...))
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func (e *env) importSample(t *testing.T) {
	t.Helper()
	path := filepath.Join(e.dir, "sample.ics")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	out := e.run(t, "import", path)
	assert.Contains(t, out, "Imported 2 events, skipped 0")
}

func TestImportAndList(t *testing.T) {
	e := newEnv(t)
	e.importSample(t)

	out := e.run(t, "list", "--from", "2025-01-06", "--days", "2")
	assert.Contains(t, out, "Events for Jan 6, 2025:")
	assert.Contains(t, out, "Events for Jan 7, 2025:")
	assert.Contains(t, out, "Design review")
	assert.Contains(t, out, "@ Room 4")
	assert.Equal(t, 2, strings.Count(out, "Daily (repeats)"))

	out = e.run(t, "list", "--from", "2025-02-01", "--days", "1")
	assert.Contains(t, out, "No events found.")
}

func TestListRejectsBadFlags(t *testing.T) {
	e := newEnv(t)
	rootCmd.SetArgs([]string{"--config", e.config, "--database", e.db, "list", "--from", "yesterday", "--days", "1"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	assert.Error(t, rootCmd.Execute())
}

func TestExportICS(t *testing.T) {
	e := newEnv(t)
	e.importSample(t)

	path := filepath.Join(e.dir, "out.ics")
	e.run(t, "export", "ics", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "BEGIN:VCALENDAR")
	assert.Contains(t, text, "SUMMARY:Design review")
	assert.Contains(t, text, "FREQ=DAILY")
	assert.Contains(t, text, "COUNT=3")

	// The exported file imports again.
	e2 := newEnv(t)
	out := e2.run(t, "import", path)
	assert.Contains(t, out, "Imported 2 events")
}

func TestExportPNG(t *testing.T) {
	e := newEnv(t)
	e.importSample(t)

	path := filepath.Join(e.dir, "week.png")
	e.run(t, "export", "png", path, "--week", "2025-01-08", "--day-width", "120")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")), "not a PNG")
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "Skuld dev\n", out.String())
}
