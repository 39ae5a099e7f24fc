/*
serve.go - HTTP server with the in-process daily trigger

STARTUP SEQUENCE:
  1. Open SQLite store and seed master data
  2. Wire template store, materializer and scheduler
  3. Start the daily trigger (unless scheduler.enabled is false)
  4. Configure HTTP router
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the daily trigger (waits for a running cycle)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
*/
package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/standing-orders/api"
	"github.com/warp/standing-orders/scheduler"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily trigger",
		Long: `Start the HTTP API. Unless disabled in the config, the daily cycle also
runs once per day at scheduler.run_at in scheduler.timezone.

Example:
  standing-orders serve --db ./orders.db --port 3000
  standing-orders serve --config ./config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "HTTP server port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg := opts.Config
	if opts.Port != 0 {
		cfg.HTTP.Port = opts.Port
	}

	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.NewHandler(a.db, a.templates, a.sched, a.carriers, a.clock)

	trig := scheduler.NewDailyTrigger(a.sched, cfg.Scheduler.RunAt, cfg.Location())
	trig.Enabled = cfg.Scheduler.Enabled
	if err := trig.Start(); err != nil {
		return err
	}
	defer trig.Stop()
	handler.Trigger = trig

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.NewRouter(handler, cfg.HTTP.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Scheduler.TemplateTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.HTTP.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Println("Shutting down server...")
	trig.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
