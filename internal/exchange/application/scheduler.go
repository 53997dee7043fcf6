package application

import (
	"context"
	"log"
	"time"
)

// Scheduler triggers a full exchange run once per day at a configured
// wall-clock time.
type Scheduler struct {
	coordinator *Coordinator
	dailyAt     string
	logger      *log.Logger
	lastRunDay  string
}

// NewScheduler constructs a Scheduler.
func NewScheduler(coordinator *Coordinator, dailyAt string, logger *log.Logger) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		dailyAt:     dailyAt,
		logger:      logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.coordinator == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.lastRunDay = now.UTC().Format("2006-01-02")
			if err := s.coordinator.Run(ctx); err != nil && s.logger != nil {
				s.logger.Printf("event=schedule_run_failed error=%v", err)
			}
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	if now.Hour() != hour || now.Minute() != minute {
		return false
	}
	// One run per day even if several ticks land in the same minute.
	return s.lastRunDay != now.Format("2006-01-02")
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
