package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/warp/standing-orders/config"
	"github.com/warp/standing-orders/trigger"
)

func dialTemporal(cfg config.Config) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return c, nil
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker for the daily cycle",
		Long: `Host the daily cycle workflow and activity on temporal.task_queue.
Use "schedule" once to start the cron workflow the worker executes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := dialTemporal(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
				Identity: "standing-orders-worker-" + hostname(),
				// One cycle at a time; the scheduler rejects overlaps anyway.
				MaxConcurrentActivityExecutionSize: 1,
			})
			trigger.Register(w, &trigger.Activities{Cycle: a.sched})

			log.Println("Worker starting on task queue:", cfg.Temporal.TaskQueue)
			if err := w.Run(worker.InterruptCh()); err != nil {
				return fmt.Errorf("unable to start worker: %w", err)
			}
			return nil
		},
	}
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	var workflowID string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Start the Temporal cron workflow for the daily cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config

			c, err := dialTemporal(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			run, err := trigger.StartCron(cmd.Context(), c, trigger.CronOptions{
				WorkflowID: workflowID,
				TaskQueue:  cfg.Temporal.TaskQueue,
				Cron:       cfg.Temporal.Cron,
				Input:      trigger.CycleInput{Timezone: cfg.Scheduler.Timezone},
			})
			if err != nil {
				return fmt.Errorf("unable to start cron workflow: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Scheduled %s (run %s) with cron %q\n", run.GetID(), run.GetRunID(), cfg.Temporal.Cron)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow id (default standing-orders-daily-cycle)")
	return cmd
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
