package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger computes when a job fires next. Implementations must be safe for
// concurrent use; the scheduler calls Next from its tick loop only, but
// Status may describe the trigger from any goroutine.
type Trigger interface {
	// Next returns the first fire time strictly after t.
	Next(t time.Time) time.Time
	// Description is a human-readable form for the status surface.
	Description() string
}

// IntervalTrigger fires on a fixed period.
type IntervalTrigger struct {
	Every time.Duration
}

func (it IntervalTrigger) Next(t time.Time) time.Time {
	return t.Add(it.Every)
}

func (it IntervalTrigger) Description() string {
	return fmt.Sprintf("every %s", it.Every)
}

// CronTrigger fires on a standard 5-field cron expression, evaluated in UTC.
type CronTrigger struct {
	Spec     string
	schedule cron.Schedule
}

// NewCronTrigger parses a standard cron spec ("0 6 * * *").
func NewCronTrigger(spec string) (*CronTrigger, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return &CronTrigger{Spec: spec, schedule: schedule}, nil
}

func (ct *CronTrigger) Next(t time.Time) time.Time {
	return ct.schedule.Next(t.UTC())
}

func (ct *CronTrigger) Description() string {
	return fmt.Sprintf("cron %q", ct.Spec)
}
