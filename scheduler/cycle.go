/*
cycle.go - The daily execution cycle

PURPOSE:
  RunDailyCycle is the single entry point that turns due templates into
  orders. It is invoked once a day by a trigger (DailyTrigger, the Temporal
  workflow in trigger/, the CLI, or the API).

WINDOW:
  A template fires when its next shipping date is 6 or 7 days after today
  and it has not already fired today:

      diffDays = NextShippingDate - today
      execute iff 6 <= diffDays <= 7 && LastExecutedDate != today

  The two-day window absorbs a late or early trigger; once a template fires
  its shipping date moves a whole interval ahead, so it leaves the window.

FAILURE BOUNDARY:
  Each template runs under its own timeout with panic recovery. A failure
  is logged and recorded in the report, and the cycle moves on. A failed
  template is NOT advanced.

  Once the ledger rows are written the template must be advanced, or the
  next trigger inside the window writes the order again. Advance therefore
  runs on a fresh context bounded by AdvanceTimeout, not on what is left of
  the template timeout.

  A template row that cannot be decoded is recorded as a "load" failure
  under its row key. The other templates still run.

RETRY STARVATION:
  Nothing retries a failed template. The window is relative to today, so a
  template that fails on both of its window days drifts out of the window
  and never fires for that cycle. This is kept as-is; the cycle logs a
  warning whenever a failure happens on the last window day.

SEE ALSO:
  - ledger/materialize.go: Materialize
  - recurring/store.go: Advance
  - runs.go: cycle run records
*/
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/warp/standing-orders/ledger"
	"github.com/warp/standing-orders/recurring"
)

const (
	WindowMin = 6
	WindowMax = 7

	DefaultTemplateTimeout = 2 * time.Minute
	AdvanceTimeout         = 10 * time.Second
)

// ErrCycleInProgress is returned when a cycle is started while another one
// on the same Scheduler is still running.
var ErrCycleInProgress = errors.New("daily cycle already in progress")

// Failure stages.
const (
	StageLoad        = "load"
	StageMaterialize = "materialize"
	StageAdvance     = "advance"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// TemplateStore is the part of recurring.Store the cycle needs.
//
// Active may return a *recurring.CorruptRowsError together with the
// templates that did decode.
type TemplateStore interface {
	Active(ctx context.Context) ([]*recurring.Template, error)
	Advance(ctx context.Context, id recurring.TemplateID, executedOn recurring.Date) (*recurring.Template, error)
}

// Materializer is implemented by *ledger.Materializer.
type Materializer interface {
	Materialize(ctx context.Context, t *recurring.Template, executedOn recurring.Date) (*ledger.MaterializedOrder, error)
}

// =============================================================================
// REPORT
// =============================================================================

// Failure is one template that did not execute.
type Failure struct {
	TemplateID recurring.TemplateID `json:"template_id"`
	Stage      string               `json:"stage"`
	Error      string               `json:"error"`
	// Final is set when today was the template's last window day.
	Final bool `json:"final"`
}

// CycleReport summarizes one RunDailyCycle call.
type CycleReport struct {
	RunID       string                 `json:"run_id"`
	Today       recurring.Date         `json:"today"`
	Evaluated   int                    `json:"evaluated"`
	Executed    int                    `json:"executed"`
	Skipped     int                    `json:"skipped"`
	Failures    []Failure              `json:"failures"`
	Orders      []string               `json:"orders"`
	SideEffects int                    `json:"side_effect_failures"`
	Executions  []recurring.TemplateID `json:"executed_templates"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler runs daily cycles.
type Scheduler struct {
	Templates    TemplateStore
	Materializer Materializer

	// Runs receives one cycle_runs row per cycle. Optional.
	Runs recurring.TabularStore

	IDs             recurring.IDGenerator
	TemplateTimeout time.Duration
	Logger          *slog.Logger
	Now             func() time.Time

	running atomic.Bool
}

// New creates a Scheduler with default timeout and ids.
func New(templates TemplateStore, m Materializer, runs recurring.TabularStore) *Scheduler {
	return &Scheduler{
		Templates:       templates,
		Materializer:    m,
		Runs:            runs,
		IDs:             recurring.UUIDv7Generator{},
		TemplateTimeout: DefaultTemplateTimeout,
		Now:             time.Now,
	}
}

// Due reports whether t fires on today.
func Due(t *recurring.Template, today recurring.Date) bool {
	if t.Status != recurring.StatusActive || t.ExecutedOn(today) {
		return false
	}
	diff := recurring.DaysBetween(today, t.NextShippingDate)
	return diff >= WindowMin && diff <= WindowMax
}

// RunDailyCycle executes every due active template once.
//
// The returned error is non-nil only when the cycle could not run at all
// (overlap, listing failure, cancelled ctx). Per-template failures are in
// the report.
func (s *Scheduler) RunDailyCycle(ctx context.Context, today recurring.Date) (CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	report := CycleReport{
		RunID:     s.ids().NewID(),
		Today:     today,
		StartedAt: s.now(),
	}
	logger := s.logger().With("run_id", report.RunID, "today", today.String())
	logger.Info("daily cycle started")

	templates, err := s.Templates.Active(ctx)
	var corrupt *recurring.CorruptRowsError
	if errors.As(err, &corrupt) {
		for _, row := range corrupt.Rows {
			report.Failures = append(report.Failures, Failure{
				TemplateID: recurring.TemplateID(row.Key),
				Stage:      StageLoad,
				Error:      row.Error(),
			})
			logger.Error("template row skipped", "template_id", row.Key, "error", row.Err)
		}
	} else if err != nil {
		err = fmt.Errorf("failed to list active templates: %w", err)
		s.finish(ctx, logger, &report, err)
		return report, err
	}

	for _, t := range templates {
		if err := ctx.Err(); err != nil {
			s.finish(ctx, logger, &report, err)
			return report, err
		}
		report.Evaluated++
		if !Due(t, today) {
			report.Skipped++
			continue
		}

		tlog := logger.With("template_id", string(t.ID))
		order, stage, err := s.execute(ctx, t, today)
		if err != nil {
			f := Failure{
				TemplateID: t.ID,
				Stage:      stage,
				Error:      err.Error(),
				Final:      recurring.DaysBetween(today, t.NextShippingDate) == WindowMin,
			}
			report.Failures = append(report.Failures, f)
			tlog.Error("template execution failed", "stage", stage, "error", err)
			if f.Final {
				tlog.Warn("template failed on its last window day and will not be retried",
					"next_shipping_date", t.NextShippingDate.String())
			}
			continue
		}

		report.Executed++
		report.Executions = append(report.Executions, t.ID)
		report.Orders = append(report.Orders, order.OrderID)
		report.SideEffects += len(order.SideEffects)
		tlog.Info("template executed", "order_id", order.OrderID, "rows", len(order.Rows))
	}

	s.finish(ctx, logger, &report, nil)
	return report, nil
}

// Running reports whether a cycle is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// execute materializes and advances one template inside its failure
// boundary.
func (s *Scheduler) execute(parent context.Context, t *recurring.Template, today recurring.Date) (order *ledger.MaterializedOrder, stage string, err error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout())
	defer cancel()

	stage = StageMaterialize
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	order, err = s.materialize(ctx, t, today)
	if err != nil {
		return nil, stage, err
	}

	stage = StageAdvance
	advCtx, advCancel := context.WithTimeout(context.WithoutCancel(parent), AdvanceTimeout)
	defer advCancel()
	if _, err := s.Templates.Advance(advCtx, t.ID, today); err != nil {
		return order, stage, err
	}
	return order, stage, nil
}

// materialize returns at the template deadline even when the materializer
// is stuck in a call that ignores ctx.
func (s *Scheduler) materialize(ctx context.Context, t *recurring.Template, today recurring.Date) (*ledger.MaterializedOrder, error) {
	type result struct {
		order *ledger.MaterializedOrder
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		o, err := s.Materializer.Materialize(ctx, t, today)
		done <- result{order: o, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.order == nil {
			return nil, errors.New("materializer returned no order")
		}
		return res.order, res.err
	case <-ctx.Done():
		// The materializer may have finished just as the deadline passed.
		select {
		case res := <-done:
			if res.err == nil && res.order != nil {
				return res.order, nil
			}
		default:
		}
		return nil, fmt.Errorf("template %s timed out after %s: %w", t.ID, s.timeout(), ctx.Err())
	}
}

func (s *Scheduler) finish(ctx context.Context, logger *slog.Logger, report *CycleReport, cycleErr error) {
	report.FinishedAt = s.now()
	if report.Failures == nil {
		report.Failures = []Failure{}
	}
	if s.Runs != nil {
		// The run record must be written even when ctx was cancelled.
		if err := s.Runs.AppendRow(context.WithoutCancel(ctx), recurring.TableCycleRuns, encodeRun(*report, cycleErr)); err != nil {
			logger.Error("failed to record cycle run", "error", err)
		}
	}
	if cycleErr != nil {
		logger.Error("daily cycle aborted", "error", cycleErr, "evaluated", report.Evaluated, "executed", report.Executed)
		return
	}
	logger.Info("daily cycle completed",
		"evaluated", report.Evaluated,
		"executed", report.Executed,
		"skipped", report.Skipped,
		"failed", len(report.Failures))
}

func (s *Scheduler) timeout() time.Duration {
	if s.TemplateTimeout <= 0 {
		return DefaultTemplateTimeout
	}
	return s.TemplateTimeout
}

func (s *Scheduler) ids() recurring.IDGenerator {
	if s.IDs == nil {
		return recurring.UUIDv7Generator{}
	}
	return s.IDs
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
