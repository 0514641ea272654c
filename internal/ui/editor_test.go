package ui

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarden/skuld/internal/calendar"
)

func TestFormatEditable(t *testing.T) {
	ev := calendar.Event{
		Title:       "Review",
		Start:       at(11, 9, 0),
		End:         at(11, 10, 30),
		Location:    "Room 4",
		Description: "Bring notes",
		Recurrence:  &calendar.RecurrenceRule{Freq: calendar.FreqWeekly},
	}
	want := "Title: Review\n" +
		"Start: 2025-06-11 09:00\n" +
		"End: 2025-06-11 10:30\n" +
		"Location: Room 4\n" +
		"Meeting: \n" +
		"Color: \n" +
		"# Changes apply to every occurrence.\n" +
		"\n" +
		"Bring notes\n"
	assert.Equal(t, want, formatEditable(ev))
}

func TestParseEditableUnchanged(t *testing.T) {
	ev := calendar.Event{Title: "Review", Start: at(11, 9, 0), End: at(11, 10, 0), Description: "a\nb"}
	patch, err := parseEditable(strings.NewReader(formatEditable(ev)), ev)
	require.NoError(t, err)
	assert.Equal(t, calendar.EventPatch{}, patch)
}

func TestParseEditableChanges(t *testing.T) {
	ev := calendar.Event{Title: "Review", Start: at(11, 9, 0), End: at(11, 10, 0), Location: "Room 4"}
	text := `Title: Design review
Start: 2025-06-11 09:30
End: 2025-06-11 10:00
Location: Room 4
Color: #ff0000

New agenda
second line
`
	patch, err := parseEditable(strings.NewReader(text), ev)
	require.NoError(t, err)

	require.NotNil(t, patch.Title)
	assert.Equal(t, "Design review", *patch.Title)
	require.NotNil(t, patch.Start)
	assert.True(t, patch.Start.Equal(at(11, 9, 30)))
	assert.Nil(t, patch.End)
	assert.Nil(t, patch.Location)
	assert.Nil(t, patch.MeetingURL)
	require.NotNil(t, patch.Color)
	assert.Equal(t, "#ff0000", *patch.Color)
	require.NotNil(t, patch.Description)
	assert.Equal(t, "New agenda\nsecond line", *patch.Description)
}

func TestParseEditableAllDay(t *testing.T) {
	ev := calendar.Event{Title: "Offsite", Start: at(11, 0, 0), End: at(13, 0, 0), AllDay: true}
	text := formatEditable(ev)
	assert.Contains(t, text, "End: 2025-06-12\n")

	text = strings.Replace(text, "End: 2025-06-12", "End: 2025-06-13", 1)
	patch, err := parseEditable(strings.NewReader(text), ev)
	require.NoError(t, err)
	require.NotNil(t, patch.End)
	assert.True(t, patch.End.Equal(at(14, 0, 0)))
	assert.Nil(t, patch.Start)
}

func TestParseEditableErrors(t *testing.T) {
	ev := calendar.Event{Title: "Review", Start: at(11, 9, 0), End: at(11, 10, 0)}
	tests := map[string]string{
		"no colon":   "Title Review\n",
		"bad start":  "Start: tomorrow\n",
		"bad end":    "End: 2025-06-11\n",
		"bad format": "Start: 11/06/2025 09:00\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseEditable(strings.NewReader(text), ev)
			assert.Error(t, err)
		})
	}
}

func TestEditorFinishedSaves(t *testing.T) {
	h := newHarness(t)
	ev := h.add(t, "Review", at(11, 9, 0), at(11, 10, 0))
	h.reload(t)

	f, err := os.CreateTemp(t.TempDir(), "edit-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString(strings.Replace(formatEditable(ev), "Title: Review", "Title: Design review", 1))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, cmd := h.m.Update(editorFinishedMsg{path: f.Name(), event: ev})
	h.drain(t, cmd)

	assert.Equal(t, "Saved", h.m.message)
	assert.Equal(t, []string{"Design review"}, titles(h.m.loaded.Instances()))
	assert.Equal(t, h.m.loaded.Instances()[0].InstanceID, h.m.selected)
	_, err = os.Stat(f.Name())
	assert.True(t, os.IsNotExist(err), "temp file kept")
}

func TestEditorFinishedNoChanges(t *testing.T) {
	h := newHarness(t)
	ev := h.add(t, "Review", at(11, 9, 0), at(11, 10, 0))

	f, err := os.CreateTemp(t.TempDir(), "edit-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString(formatEditable(ev))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, cmd := h.m.Update(editorFinishedMsg{path: f.Name(), event: ev})
	h.drain(t, cmd)
	assert.Equal(t, "No changes", h.m.message)
}

func TestEditorFinishedEventGone(t *testing.T) {
	h := newHarness(t)
	ev := h.add(t, "Review", at(11, 9, 0), at(11, 10, 0))
	require.NoError(t, h.svc.DeleteEvent(context.Background(), ev.ID))

	f, err := os.CreateTemp(t.TempDir(), "edit-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString(strings.Replace(formatEditable(ev), "10:00", "11:00", 1))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, cmd := h.m.Update(editorFinishedMsg{path: f.Name(), event: ev})
	h.drain(t, cmd)
	assert.True(t, h.m.isError)
	assert.Equal(t, "event no longer exists", h.m.message)
}

func TestEditRequiresSelection(t *testing.T) {
	h := newHarness(t)
	h.key(t, "e")
	assert.Equal(t, "No event selected", h.m.message)
}

func TestParseEditTime(t *testing.T) {
	got, err := parseEditTime("2025-06-11 14:05", false, time.UTC)
	require.NoError(t, err)
	assert.True(t, got.Equal(at(11, 14, 5)))

	got, err = parseEditTime("2025-06-11", true, time.UTC)
	require.NoError(t, err)
	assert.True(t, got.Equal(at(11, 0, 0)))
}
