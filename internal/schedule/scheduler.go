package schedule

import (
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler manages recurring maintenance jobs (nightly embedding backfill).
type Scheduler struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s}
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop halts scheduling. Jobs already running finish on their own.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleCron registers a job under tag on a cron expression.
func (s *Scheduler) ScheduleCron(tag, cronExpr string, job func() error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(job)
	return err
}

// ScheduleInterval registers a job under tag at a fixed interval.
func (s *Scheduler) ScheduleInterval(tag string, every time.Duration, job func() error) error {
	_, err := s.scheduler.Every(every).Tag(tag).Do(job)
	return err
}

// RemoveJob unregisters a job by tag.
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}
