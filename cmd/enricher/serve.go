package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"enricher/internal/server"
	"enricher/pkg/logger"
	"enricher/pkg/pipeline"
	"enricher/pkg/ui"
)

var (
	serveHost    string
	servePort    int
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP job service",
	Long: `Serve the job-control API used by the dashboard. Every stage can be started
as a background job, polled for status and results, and cancelled.

SIGINT or SIGTERM stops accepting requests, cancels running jobs and waits
up to server.shutdown_timeout for them to finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "jobs that may run at once")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"host":    serveHost,
		"port":    servePort,
		"workers": serveWorkers,
	})
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	srv := server.New(cfg, pipeline.New(cfg, pipeline.WithLogger(log)), log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if !quiet {
			ui.PrintInfo("Listening on", "http://"+srv.Addr())
		}
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
