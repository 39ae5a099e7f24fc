/*
Package trigger runs the daily cycle from a Temporal cron workflow.

PURPOSE:
  An alternative to the in-process scheduler.DailyTrigger for deployments
  that already run Temporal: the cron schedule survives restarts and the
  run history is visible in the Temporal UI.

RETRIES:
  The cycle activity runs with MaximumAttempts = 1. Re-running a cycle is
  the next day's job; a Temporal retry would change which templates get a
  second chance and is deliberately not used.

USAGE:
  worker:  trigger.Register(w, &trigger.Activities{Cycle: sched})
  starter: trigger.StartCron(ctx, c, trigger.CronOptions{...})

SEE ALSO:
  - scheduler/cycle.go: RunDailyCycle
  - cli/temporal.go: worker and schedule commands
*/
package trigger

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	WorkflowName     = "DailyCycleWorkflow"
	ActivityName     = "RunDailyCycle"
	DefaultTaskQueue = "standing-orders"
	DefaultCron      = "0 6 * * *"
)

// CycleInput parameterizes one workflow run.
type CycleInput struct {
	// Timezone decides which calendar day "today" is.
	Timezone string
	// Today overrides the day (YYYY-MM-DD); empty means the run's start time.
	Today string
	// Timeout bounds the whole cycle.
	Timeout time.Duration
}

// CycleRequest is the activity argument.
type CycleRequest struct {
	At       time.Time
	Timezone string
	Today    string
}

// CycleSummary is the workflow result.
type CycleSummary struct {
	RunID     string
	Today     string
	Evaluated int
	Executed  int
	Skipped   int
	Failed    int
}

// DailyCycleWorkflow runs one daily cycle.
func DailyCycleWorkflow(ctx workflow.Context, in CycleInput) (CycleSummary, error) {
	logger := workflow.GetLogger(ctx)

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	req := CycleRequest{
		At:       workflow.Now(ctx),
		Timezone: in.Timezone,
		Today:    in.Today,
	}

	var summary CycleSummary
	if err := workflow.ExecuteActivity(ctx, ActivityName, req).Get(ctx, &summary); err != nil {
		logger.Error("Daily cycle failed", "error", err)
		return summary, err
	}

	logger.Info("Daily cycle completed",
		"today", summary.Today,
		"executed", summary.Executed,
		"failed", summary.Failed)
	return summary, nil
}
