// Package notify fires event reminders.
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cwarden/skuld/internal/calendar"
)

// Due is a reminder whose time has come.
type Due struct {
	Instance calendar.Instance
	Reminder calendar.Reminder
	At       time.Time
}

func (d Due) key() string {
	return fmt.Sprintf("%s|%d", d.Instance.InstanceID, d.Reminder.MinutesBefore)
}

// DueBetween returns the popup reminders firing in (from, to], ordered by
// firing time. Email reminders have no transport here and are skipped, as
// are cancelled instances.
func DueBetween(instances []calendar.Instance, from, to time.Time) []Due {
	var out []Due
	for _, inst := range instances {
		if inst.Status == calendar.StatusCancelled {
			continue
		}
		for _, r := range inst.Reminders {
			if r.Method != calendar.ReminderPopup {
				continue
			}
			at := inst.Start.Add(-time.Duration(r.MinutesBefore) * time.Minute)
			if at.After(from) && !at.After(to) {
				out = append(out, Due{Instance: inst, Reminder: r, At: at})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Loader returns the instances overlapping [start, end).
type Loader func(ctx context.Context, start, end time.Time) ([]calendar.Instance, error)

const (
	defaultSpec    = "@every 1m"
	defaultHorizon = 7 * 24 * time.Hour
)

// Scheduler checks for due reminders on a cron schedule and hands each one
// to the sink once.
type Scheduler struct {
	load    Loader
	sink    func(Due)
	logger  *zap.Logger
	spec    string
	horizon time.Duration
	now     func() time.Time

	cron *cron.Cron

	mu   sync.Mutex
	last time.Time
	sent map[string]time.Time
}

type Option func(*Scheduler)

// WithSpec sets the cron spec of the check. The default is every minute.
func WithSpec(spec string) Option {
	return func(s *Scheduler) { s.spec = spec }
}

// WithHorizon sets how far ahead instances are loaded. Reminders set
// further before their event than this are missed.
func WithHorizon(d time.Duration) Option {
	return func(s *Scheduler) { s.horizon = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(load Loader, sink func(Due), logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		load:    load,
		sink:    sink,
		logger:  logger,
		spec:    defaultSpec,
		horizon: defaultHorizon,
		now:     time.Now,
		sent:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.last = s.now().Add(-time.Minute)
	return s
}

// Start runs the check on its schedule until Stop.
func (s *Scheduler) Start() error {
	clog := cronLogger{s.logger.Sugar()}
	s.cron = cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("schedule reminders %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Debug("reminder scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the schedule and waits for a running check.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Tick delivers the reminders that came due since the previous tick and
// returns how many it delivered.
func (s *Scheduler) Tick(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	from := s.last
	instances, err := s.load(ctx, from, now.Add(s.horizon))
	if err != nil {
		// Keep the window open so the next tick retries it.
		s.logger.Error("load reminders", zap.Error(err))
		return 0
	}
	s.last = now

	n := 0
	for _, d := range DueBetween(instances, from, now) {
		k := d.key()
		if _, ok := s.sent[k]; ok {
			continue
		}
		s.sent[k] = d.At
		s.logger.Info("reminder due",
			zap.String("event", d.Instance.EventID),
			zap.String("title", d.Instance.Title),
			zap.Time("start", d.Instance.Start),
		)
		if s.sink != nil {
			s.sink(d)
		}
		n++
	}
	for k, at := range s.sent {
		if now.Sub(at) > 24*time.Hour {
			delete(s.sent, k)
		}
	}
	return n
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
