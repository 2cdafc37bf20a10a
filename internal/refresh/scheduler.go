// Package refresh reloads the collection mirrors on a cron schedule while a
// session is signed in.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/presensia/presensia-core/internal/logging"
)

// DefaultSchedule runs every five minutes. Schedules take a seconds field.
const DefaultSchedule = "0 */5 * * * *"

// Task reloads one mirror.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Gate reports whether refreshing is allowed right now.
type Gate interface {
	IsAuthenticated() bool
}

type Option func(*Scheduler)

func WithLogger(l logging.Sink) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithTimeout bounds one run of all tasks.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

type Scheduler struct {
	cron    *cron.Cron
	gate    Gate
	tasks   []Task
	log     logging.Sink
	timeout time.Duration
}

// NewScheduler registers one cron entry running every task on schedule.
func NewScheduler(schedule string, gate Gate, tasks []Task, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		gate:    gate,
		tasks:   tasks,
		log:     logging.Nop(),
		timeout: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info(logging.TagRefresh, "refresh scheduler started", "tasks", len(s.tasks))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running tick to finish or ctx to
// end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info(logging.TagRefresh, "refresh scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_ = s.RunOnce(ctx)
}

// ErrSkipped is returned by RunOnce when the gate is closed.
var ErrSkipped = errors.New("refresh: not authenticated")

// RunOnce runs every task concurrently and returns the first failure. Each
// task's failure is logged on its own.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.gate != nil && !s.gate.IsAuthenticated() {
		s.log.Debug(logging.TagRefresh, "refresh skipped, no session")
		return ErrSkipped
	}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		t := t
		g.Go(func() error {
			if err := t.Run(gctx); err != nil {
				s.log.Error(logging.TagRefresh, "refresh task failed", "task", t.Name, logging.Err(err))
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Info(logging.TagRefresh, "mirrors refreshed", "tasks", len(s.tasks), "took", time.Since(start))
	return nil
}
