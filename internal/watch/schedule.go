package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultSchedule = "30s"

// ParseSchedule accepts either a plain interval ("30s", "2m") or a cron
// expression ("*/1 * * * *", "@every 45s") and returns the resulting
// schedule.
func ParseSchedule(raw string) (cron.Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = defaultSchedule
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d < time.Second {
			return nil, fmt.Errorf("watch.schedule: interval %q below 1s", raw)
		}
		return cron.Every(d), nil
	}

	sched, err := cron.ParseStandard(s)
	if err != nil {
		return nil, fmt.Errorf("watch.schedule: %q is neither a duration nor a cron expression: %w", raw, err)
	}
	return sched, nil
}

// scheduleInterval estimates the gap between consecutive fires; the
// coalescing guard uses it as the nominal poll interval.
func scheduleInterval(sched cron.Schedule) time.Duration {
	n1 := sched.Next(time.Now())
	n2 := sched.Next(n1)
	return n2.Sub(n1)
}
