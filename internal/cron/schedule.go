package cron

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Job is one housekeeping task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type slot struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Schedule tracks when each job last ran. A job with a zero period runs on
// every tick; a job that has never run is always due.
type Schedule struct {
	mu    sync.Mutex
	slots []*slot
}

func NewSchedule() *Schedule { return &Schedule{} }

// Every adds job with the given period. Nil jobs are dropped so optional
// jobs can be passed straight from their constructors.
func (s *Schedule) Every(every time.Duration, job Job) *Schedule {
	if job == nil {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = append(s.slots, &slot{job: job, every: every})
	return s
}

// Due returns the jobs whose period has elapsed at now, in the order they
// were added.
func (s *Schedule) Due(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Job
	for _, sl := range s.slots {
		if sl.lastRun.IsZero() || now.Sub(sl.lastRun) >= sl.every {
			due = append(due, sl.job)
		}
	}
	return due
}

// MarkRan records a run attempt, failed or not.
func (s *Schedule) MarkRan(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl.job.Name() == name {
			sl.lastRun = at
		}
	}
}

// Names lists the scheduled jobs alphabetically.
func (s *Schedule) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.slots))
	for _, sl := range s.slots {
		names = append(names, sl.job.Name())
	}
	sort.Strings(names)
	return names
}
