/*
trigger.go - In-process daily trigger

PURPOSE:
  Fires RunDailyCycle once per calendar day at RunAt in Location. Meant for
  single-binary deployments; the Temporal workflow in trigger/ is the
  durable alternative.

DESIGN:
  - Background goroutine polling every CheckInterval (default 1 minute)
  - Fires when the local time is past RunAt and today has not fired yet
  - Starting after RunAt fires immediately for today (catch-up)
  - A missed day is NOT replayed; the cycle window covers one missed day

USAGE:
  trig := scheduler.NewDailyTrigger(sched, "06:00", tokyo)
  trig.Start()
  defer trig.Stop()

SEE ALSO:
  - cycle.go: RunDailyCycle
*/
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/standing-orders/recurring"
)

// CycleRunner is implemented by *Scheduler.
type CycleRunner interface {
	RunDailyCycle(ctx context.Context, today recurring.Date) (CycleReport, error)
}

// DailyTrigger runs the daily cycle at a fixed time of day.
type DailyTrigger struct {
	Runner        CycleRunner
	RunAt         string
	Location      *time.Location
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker    *time.Ticker
	stop      chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	lastFired recurring.Date
}

// NewDailyTrigger creates an enabled trigger.
func NewDailyTrigger(runner CycleRunner, runAt string, loc *time.Location) *DailyTrigger {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyTrigger{
		Runner:        runner,
		RunAt:         runAt,
		Location:      loc,
		CheckInterval: time.Minute,
		Enabled:       true,
		Now:           time.Now,
	}
}

// ParseRunAt parses "HH:MM".
func ParseRunAt(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid run_at %q (want HH:MM): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Start begins the trigger.
func (dt *DailyTrigger) Start() error {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if !dt.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return nil
	}
	if _, _, err := ParseRunAt(dt.RunAt); err != nil {
		return err
	}
	if dt.ticker != nil {
		return errors.New("daily trigger already started")
	}

	dt.stop = make(chan struct{})
	dt.ticker = time.NewTicker(dt.CheckInterval)
	dt.wg.Add(1)

	go dt.run(dt.ticker, dt.stop)

	log.Printf("[Scheduler] Started: daily cycle at %s %s, checking every %v", dt.RunAt, dt.Location, dt.CheckInterval)
	return nil
}

// Stop stops the trigger and waits for an in-flight cycle to return.
func (dt *DailyTrigger) Stop() {
	dt.mu.Lock()
	ticker, stop := dt.ticker, dt.stop
	dt.ticker, dt.stop = nil, nil
	dt.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		dt.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (dt *DailyTrigger) run(ticker *time.Ticker, stop chan struct{}) {
	defer dt.wg.Done()

	// Check immediately on start
	dt.Check(context.Background())

	for {
		select {
		case <-ticker.C:
			dt.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check fires the cycle if it is due. It reports whether a cycle ran.
func (dt *DailyTrigger) Check(ctx context.Context) bool {
	now := dt.now().In(dt.location())
	today := recurring.DateOf(now)

	hour, minute, err := ParseRunAt(dt.RunAt)
	if err != nil {
		log.Printf("[Scheduler] %v", err)
		return false
	}
	fireAt := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(fireAt) {
		return false
	}

	dt.mu.Lock()
	if dt.lastFired.Equal(today) {
		dt.mu.Unlock()
		return false
	}
	dt.lastFired = today
	dt.mu.Unlock()

	log.Printf("[Scheduler] Running daily cycle for %s", today)
	report, err := dt.Runner.RunDailyCycle(ctx, today)
	if err != nil {
		log.Printf("[Scheduler] Daily cycle for %s failed: %v", today, err)
		return true
	}
	log.Printf("[Scheduler] Completed %s: %d executed, %d skipped, %d failed",
		today, report.Executed, report.Skipped, len(report.Failures))
	return true
}

// RunNow runs the cycle for today regardless of RunAt (for admin use).
func (dt *DailyTrigger) RunNow(ctx context.Context) (CycleReport, error) {
	today := recurring.DateOf(dt.now().In(dt.location()))
	return dt.Runner.RunDailyCycle(ctx, today)
}

// NextRunTime returns when the next cycle will fire.
func (dt *DailyTrigger) NextRunTime() time.Time {
	now := dt.now().In(dt.location())
	hour, minute, err := ParseRunAt(dt.RunAt)
	if err != nil {
		return time.Time{}
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())

	dt.mu.Lock()
	firedToday := dt.lastFired.Equal(recurring.DateOf(now))
	dt.mu.Unlock()

	switch {
	case firedToday:
		return next.AddDate(0, 0, 1)
	case next.Before(now):
		// Overdue; the next check fires it.
		return now
	}
	return next
}

func (dt *DailyTrigger) now() time.Time {
	if dt.Now == nil {
		return time.Now()
	}
	return dt.Now()
}

func (dt *DailyTrigger) location() *time.Location {
	if dt.Location == nil {
		return time.UTC
	}
	return dt.Location
}
