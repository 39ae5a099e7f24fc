package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/warp/standing-orders/recurring"
	"github.com/warp/standing-orders/scheduler"
)

// Activities hosts the cycle activity on a worker.
type Activities struct {
	Cycle scheduler.CycleRunner
}

// RunDailyCycle resolves today and runs the cycle.
func (a *Activities) RunDailyCycle(ctx context.Context, req CycleRequest) (CycleSummary, error) {
	logger := activity.GetLogger(ctx)

	today, err := resolveToday(req)
	if err != nil {
		return CycleSummary{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidInput", err)
	}
	logger.Info("Running daily cycle", "today", today.String())

	report, err := a.Cycle.RunDailyCycle(ctx, today)
	if err != nil {
		return CycleSummary{}, err
	}
	return CycleSummary{
		RunID:     report.RunID,
		Today:     today.String(),
		Evaluated: report.Evaluated,
		Executed:  report.Executed,
		Skipped:   report.Skipped,
		Failed:    len(report.Failures),
	}, nil
}

func resolveToday(req CycleRequest) (recurring.Date, error) {
	if req.Today != "" {
		return recurring.ParseDate(req.Today)
	}
	loc := time.UTC
	if req.Timezone != "" {
		l, err := time.LoadLocation(req.Timezone)
		if err != nil {
			return recurring.Date{}, fmt.Errorf("unknown timezone %q: %w", req.Timezone, err)
		}
		loc = l
	}
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	return recurring.DateOf(at.In(loc)), nil
}

// Register adds the workflow and activity to a worker.
func Register(w worker.Registry, a *Activities) {
	w.RegisterWorkflowWithOptions(DailyCycleWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(a.RunDailyCycle, activity.RegisterOptions{Name: ActivityName})
}

// CronOptions configures the scheduled workflow.
type CronOptions struct {
	WorkflowID string
	TaskQueue  string
	Cron       string
	Input      CycleInput
}

// StartCron starts (or attaches to) the cron workflow.
func StartCron(ctx context.Context, c client.Client, opts CronOptions) (client.WorkflowRun, error) {
	if opts.WorkflowID == "" {
		opts.WorkflowID = "standing-orders-daily-cycle"
	}
	if opts.TaskQueue == "" {
		opts.TaskQueue = DefaultTaskQueue
	}
	if opts.Cron == "" {
		opts.Cron = DefaultCron
	}
	// Temporal evaluates cron schedules in UTC unless told otherwise.
	if opts.Input.Timezone != "" && !strings.HasPrefix(opts.Cron, "CRON_TZ=") {
		opts.Cron = "CRON_TZ=" + opts.Input.Timezone + " " + opts.Cron
	}
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           opts.WorkflowID,
		TaskQueue:    opts.TaskQueue,
		CronSchedule: opts.Cron,
	}, WorkflowName, opts.Input)
}
