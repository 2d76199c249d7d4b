// Package scheduler runs the periodic edition jobs: closing production at
// the closing time and reminding claimants before it.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	defaultInterval = time.Minute
	jobTimeout      = 30 * time.Second
)

// Jobs is the work performed on every tick.
type Jobs interface {
	CloseDueProduction(ctx context.Context) (bool, error)
	SendClosingReminders(ctx context.Context) (int, error)
}

type Config struct {
	Interval time.Duration
	Location *time.Location
}

type Scheduler struct {
	jobs      Jobs
	scheduler gocron.Scheduler
}

func New(jobs Jobs, cfg Config) (*Scheduler, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	sched := &Scheduler{jobs: jobs, scheduler: s}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sched.tick),
		gocron.WithName("edition-jobs"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}
	return sched, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	RunOnce(ctx, s.jobs)
}

// RunOnce performs both jobs, reminders first. Errors are logged.
func RunOnce(ctx context.Context, jobs Jobs) {
	sent, err := jobs.SendClosingReminders(ctx)
	if err != nil {
		log.Printf("scheduler reminders error: %v", err)
	} else if sent > 0 {
		log.Printf("scheduler reminders sent=%d", sent)
	}

	if _, err := jobs.CloseDueProduction(ctx); err != nil {
		log.Printf("scheduler close production error: %v", err)
	}
}
