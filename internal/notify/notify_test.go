package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/calendar"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func inst(id string, start time.Time, reminders ...calendar.Reminder) calendar.Instance {
	return calendar.Instance{
		InstanceID: id,
		EventID:    id,
		Title:      id,
		Start:      start,
		End:        start.Add(time.Hour),
		Status:     calendar.StatusConfirmed,
		Reminders:  reminders,
	}
}

func popup(min int) calendar.Reminder {
	return calendar.Reminder{Method: calendar.ReminderPopup, MinutesBefore: min}
}

func TestDueBetween(t *testing.T) {
	cancelled := inst("cancelled", at(10, 0), popup(0))
	cancelled.Status = calendar.StatusCancelled
	instances := []calendar.Instance{
		inst("a", at(10, 0), popup(15), popup(60)),
		inst("b", at(9, 50), popup(0)),
		inst("mail", at(10, 0), calendar.Reminder{Method: calendar.ReminderEmail, MinutesBefore: 10}),
		cancelled,
	}

	tests := []struct {
		name     string
		from, to time.Time
		want     []time.Time
	}{
		{"window includes end", at(9, 44), at(9, 45), []time.Time{at(9, 45)}},
		{"window excludes start", at(9, 45), at(9, 46), nil},
		{"several ordered", at(8, 0), at(10, 0), []time.Time{at(9, 0), at(9, 45), at(9, 50)}},
		{"nothing", at(11, 0), at(12, 0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []time.Time
			for _, d := range DueBetween(instances, tt.from, tt.to) {
				got = append(got, d.At)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestTickDeliversOnce(t *testing.T) {
	clock := &fakeClock{t: at(9, 40)}
	instances := []calendar.Instance{inst("standup", at(10, 0), popup(15))}
	var loads int
	load := func(ctx context.Context, start, end time.Time) ([]calendar.Instance, error) {
		loads++
		return instances, nil
	}
	var got []Due
	s := NewScheduler(load, func(d Due) { got = append(got, d) }, zap.NewNop(), WithClock(clock.now))

	assert.Equal(t, 0, s.Tick(context.Background()))

	clock.t = at(9, 45)
	assert.Equal(t, 1, s.Tick(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, "standup", got[0].Instance.Title)
	assert.True(t, got[0].At.Equal(at(9, 45)))

	// A slow tick that reuses an overlapping window does not repeat it.
	s.last = at(9, 40)
	clock.t = at(9, 46)
	assert.Equal(t, 0, s.Tick(context.Background()))
	assert.Len(t, got, 1)
	assert.Equal(t, 3, loads)
}

func TestTickRetriesAfterLoadFailure(t *testing.T) {
	clock := &fakeClock{t: at(9, 44)}
	fail := true
	load := func(ctx context.Context, start, end time.Time) ([]calendar.Instance, error) {
		if fail {
			return nil, errors.New("store unavailable")
		}
		return []calendar.Instance{inst("standup", at(10, 0), popup(15))}, nil
	}
	var got []Due
	s := NewScheduler(load, func(d Due) { got = append(got, d) }, zap.NewNop(), WithClock(clock.now))

	clock.t = at(9, 45)
	assert.Equal(t, 0, s.Tick(context.Background()))

	fail = false
	clock.t = at(9, 46)
	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.Len(t, got, 1)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil, nil, zap.NewNop(), WithSpec("every now and then"))
	assert.Error(t, s.Start())
	s.Stop()
}

func TestStartStop(t *testing.T) {
	load := func(ctx context.Context, start, end time.Time) ([]calendar.Instance, error) { return nil, nil }
	s := NewScheduler(load, nil, zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop()
}
