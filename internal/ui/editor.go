package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/calendar"
)

const (
	editDateTime = "2006-01-02 15:04"
	editDate     = "2006-01-02"
)

type editorFinishedMsg struct {
	path  string
	event calendar.Event
	err   error
}

// editCmd opens the selected event's series in the user's editor.
func (m *Model) editCmd(inst calendar.Instance) tea.Cmd {
	ev, ok := m.loaded.Snapshot().Event(inst.EventID)
	if !ok {
		return m.showMessage("Event no longer exists")
	}

	f, err := os.CreateTemp("", "skuld-*.txt")
	if err != nil {
		return m.showError(err)
	}
	_, err = f.WriteString(formatEditable(ev))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return m.showError(err)
	}

	args := strings.Fields(m.config.Editor)
	if len(args) == 0 {
		args = []string{"vi"}
	}
	c := exec.Command(args[0], append(args[1:], f.Name())...)
	path := f.Name()
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return editorFinishedMsg{path: path, event: ev, err: err}
	})
}

func (m *Model) handleEditorFinished(msg editorFinishedMsg) (tea.Model, tea.Cmd) {
	defer os.Remove(msg.path)
	if msg.err != nil {
		return m, m.showError(fmt.Errorf("editor: %w", msg.err))
	}

	f, err := os.Open(msg.path)
	if err != nil {
		return m, m.showError(err)
	}
	patch, err := parseEditable(f, msg.event)
	f.Close()
	if err != nil {
		return m, m.showError(err)
	}
	if patch == (calendar.EventPatch{}) {
		return m, m.showMessage("No changes")
	}

	m.logger.Debug("editing event", zap.String("id", msg.event.ID))
	service := m.service
	id := msg.event.ID
	return m, m.mutate("Saved", func(ctx context.Context) (string, error) {
		updated, err := service.UpdateEvent(ctx, id, patch)
		if err != nil {
			return "", err
		}
		if updated == nil {
			return "", errors.New("event no longer exists")
		}
		return id, nil
	})
}

// formatEditable writes the editable fields of ev, then a blank line, then
// the description. All-day events show their last day inclusively.
func formatEditable(ev calendar.Event) string {
	var b strings.Builder
	start := ev.Start.Format(editDateTime)
	end := ev.End.Format(editDateTime)
	if ev.AllDay {
		start = ev.Start.Format(editDate)
		end = ev.End.AddDate(0, 0, -1).Format(editDate)
	}
	fmt.Fprintf(&b, "Title: %s\n", ev.Title)
	fmt.Fprintf(&b, "Start: %s\n", start)
	fmt.Fprintf(&b, "End: %s\n", end)
	fmt.Fprintf(&b, "Location: %s\n", ev.Location)
	fmt.Fprintf(&b, "Meeting: %s\n", ev.MeetingURL)
	fmt.Fprintf(&b, "Color: %s\n", ev.Color)
	if ev.IsRecurring() {
		b.WriteString("# Changes apply to every occurrence.\n")
	}
	b.WriteString("\n")
	b.WriteString(ev.Description)
	if ev.Description != "" && !strings.HasSuffix(ev.Description, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// parseEditable reads text written by formatEditable and returns a patch
// with only the fields that differ from ev.
func parseEditable(r io.Reader, ev calendar.Event) (calendar.EventPatch, error) {
	var patch calendar.EventPatch
	scanner := bufio.NewScanner(r)
	fields := make(map[string]string)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return patch, fmt.Errorf("bad line %q", line)
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	var desc []string
	for scanner.Scan() {
		desc = append(desc, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return patch, err
	}

	text := func(key, current string, dst **string) {
		if v, ok := fields[key]; ok && v != current {
			*dst = &v
		}
	}
	text("title", ev.Title, &patch.Title)
	text("location", ev.Location, &patch.Location)
	text("meeting", ev.MeetingURL, &patch.MeetingURL)
	text("color", ev.Color, &patch.Color)
	if d := strings.TrimRight(strings.Join(desc, "\n"), "\n"); d != strings.TrimRight(ev.Description, "\n") {
		patch.Description = &d
	}

	loc := ev.Start.Location()
	start, end := ev.Start, ev.End
	var err error
	if v, ok := fields["start"]; ok {
		if start, err = parseEditTime(v, ev.AllDay, loc); err != nil {
			return patch, fmt.Errorf("start: %w", err)
		}
	}
	if v, ok := fields["end"]; ok {
		if end, err = parseEditTime(v, ev.AllDay, loc); err != nil {
			return patch, fmt.Errorf("end: %w", err)
		}
		if ev.AllDay {
			end = end.AddDate(0, 0, 1)
		}
	}
	if !start.Equal(ev.Start) {
		patch.Start = &start
	}
	if !end.Equal(ev.End) {
		patch.End = &end
	}
	return patch, nil
}

func parseEditTime(v string, allDay bool, loc *time.Location) (time.Time, error) {
	layout := editDateTime
	if allDay {
		layout = editDate
	}
	return time.ParseInLocation(layout, v, loc)
}
