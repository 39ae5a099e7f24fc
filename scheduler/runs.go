package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/warp/standing-orders/recurring"
)

// Run statuses.
const (
	RunCompleted = "completed"
	RunAborted   = "aborted"
)

// RunRecord is a stored cycle run, for audit and display.
type RunRecord struct {
	RunID      string         `json:"run_id"`
	Today      recurring.Date `json:"today"`
	Status     string         `json:"status"`
	Evaluated  int            `json:"evaluated"`
	Executed   int            `json:"executed"`
	Skipped    int            `json:"skipped"`
	Failures   []Failure      `json:"failures"`
	Orders     []string       `json:"orders"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

func encodeRun(r CycleReport, cycleErr error) recurring.Row {
	status, errText := RunCompleted, ""
	if cycleErr != nil {
		status, errText = RunAborted, cycleErr.Error()
	}
	failures, _ := json.Marshal(r.Failures)
	orders, _ := json.Marshal(r.Orders)
	return recurring.Row{
		"run_id":      r.RunID,
		"today":       r.Today.String(),
		"status":      status,
		"evaluated":   strconv.Itoa(r.Evaluated),
		"executed":    strconv.Itoa(r.Executed),
		"skipped":     strconv.Itoa(r.Skipped),
		"failures":    string(failures),
		"orders":      string(orders),
		"error":       errText,
		"started_at":  r.StartedAt.UTC().Format(time.RFC3339),
		"finished_at": r.FinishedAt.UTC().Format(time.RFC3339),
	}
}

func decodeRun(row recurring.Row) (RunRecord, error) {
	rec := RunRecord{
		RunID:  row["run_id"],
		Status: row["status"],
		Error:  row["error"],
	}
	var err error
	if rec.Today, err = recurring.ParseDate(row["today"]); err != nil {
		return rec, fmt.Errorf("today: %w", err)
	}
	rec.Evaluated, _ = strconv.Atoi(row["evaluated"])
	rec.Executed, _ = strconv.Atoi(row["executed"])
	rec.Skipped, _ = strconv.Atoi(row["skipped"])
	if s := row["failures"]; s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &rec.Failures); err != nil {
			return rec, fmt.Errorf("failures: %w", err)
		}
	}
	if s := row["orders"]; s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &rec.Orders); err != nil {
			return rec, fmt.Errorf("orders: %w", err)
		}
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339, row["started_at"])
	rec.FinishedAt, _ = time.Parse(time.RFC3339, row["finished_at"])
	return rec, nil
}

// ListRuns returns stored cycle runs, most recent first.
func ListRuns(ctx context.Context, tables recurring.TabularStore) ([]RunRecord, error) {
	rows, err := tables.ReadAll(ctx, recurring.TableCycleRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to read cycle runs: %w", err)
	}
	out := make([]RunRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		rec, err := decodeRun(rows[i])
		if err != nil {
			return nil, fmt.Errorf("cycle run %s: %w", rows[i]["run_id"], err)
		}
		out = append(out, rec)
	}
	return out, nil
}
