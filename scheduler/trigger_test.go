package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/standing-orders/recurring"
	"github.com/warp/standing-orders/scheduler"
)

type recordingRunner struct {
	mu   sync.Mutex
	days []string
}

func (r *recordingRunner) RunDailyCycle(_ context.Context, today recurring.Date) (scheduler.CycleReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days = append(r.days, today.String())
	return scheduler.CycleReport{Today: today}, nil
}

func (r *recordingRunner) fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.days...)
}

func newTestTrigger(t *testing.T, now *time.Time) (*scheduler.DailyTrigger, *recordingRunner) {
	t.Helper()
	tokyo := time.FixedZone("JST", 9*60*60)
	runner := &recordingRunner{}
	trig := scheduler.NewDailyTrigger(runner, "06:00", tokyo)
	trig.Now = func() time.Time { return *now }
	return trig, runner
}

func TestDailyTrigger_FiresOncePerDayAfterRunAt(t *testing.T) {
	// GIVEN: A trigger at 06:00 JST
	// WHEN: Checked at 05:59, 06:00, 06:30 and the next morning
	// THEN: The cycle runs once per calendar day in JST

	now := time.Date(2025, 3, 2, 20, 59, 0, 0, time.UTC) // 05:59 JST Mar 3
	trig, runner := newTestTrigger(t, &now)
	ctx := context.Background()

	assert.False(t, trig.Check(ctx), "before run_at")

	now = now.Add(time.Minute)
	assert.True(t, trig.Check(ctx), "at run_at")

	now = now.Add(30 * time.Minute)
	assert.False(t, trig.Check(ctx), "already fired today")

	now = now.Add(24 * time.Hour)
	assert.True(t, trig.Check(ctx), "next day")

	assert.Equal(t, []string{"2025-03-03", "2025-03-04"}, runner.fired())
}

func TestDailyTrigger_CatchesUpWhenStartedLate(t *testing.T) {
	now := time.Date(2025, 3, 3, 3, 0, 0, 0, time.UTC) // 12:00 JST
	trig, runner := newTestTrigger(t, &now)
	trig.CheckInterval = time.Hour

	require.NoError(t, trig.Start())
	require.Eventually(t, func() bool { return len(runner.fired()) == 1 }, time.Second, 5*time.Millisecond)
	trig.Stop()

	assert.Equal(t, []string{"2025-03-03"}, runner.fired())
}

func TestDailyTrigger_NextRunTime(t *testing.T) {
	now := time.Date(2025, 3, 2, 20, 0, 0, 0, time.UTC) // 05:00 JST Mar 3
	trig, _ := newTestTrigger(t, &now)

	next := trig.NextRunTime()
	assert.Equal(t, time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC), next.UTC())

	now = now.Add(2 * time.Hour)
	trig.Check(context.Background())
	next = trig.NextRunTime()
	assert.Equal(t, time.Date(2025, 3, 3, 21, 0, 0, 0, time.UTC), next.UTC())
}

func TestDailyTrigger_DisabledDoesNotStart(t *testing.T) {
	now := time.Date(2025, 3, 3, 3, 0, 0, 0, time.UTC)
	trig, runner := newTestTrigger(t, &now)
	trig.Enabled = false

	require.NoError(t, trig.Start())
	trig.Stop()
	assert.Empty(t, runner.fired())
}

func TestParseRunAt(t *testing.T) {
	h, m, err := scheduler.ParseRunAt("07:45")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 45, m)

	_, _, err = scheduler.ParseRunAt("7pm")
	assert.Error(t, err)
}
