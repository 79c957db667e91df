package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docchat/internal/bootstrap"
	"docchat/internal/logging"
	httptransport "docchat/internal/transport/http"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(rt *cliState) *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the embedding provisioning worker",
		Long: `Start the HTTP API.

Uploads enqueue an embedding provisioning job on RabbitMQ. Unless
--no-worker is given, this process also consumes those jobs, so a single
instance is a complete deployment.

Examples:
  docchat serve
  docchat serve --config configs/prod.toml --no-worker`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, rt.log)

			a, err := bootstrap.New(ctx, rt.cfg, rt.log, bootstrap.Options{
				Messaging:   true,
				StartWorker: !noWorker,
			})
			if err != nil {
				return fmt.Errorf("serve: bootstrap failed: %w", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					rt.log.Error("close resources failed", "error", err)
				}
			}()

			router, stopRouter := httptransport.NewRouter(a)
			defer stopRouter()

			server := &http.Server{
				Addr:              rt.cfg.HTTPAddr(),
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				rt.log.Info("server starting", "addr", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				return fmt.Errorf("serve: %w", err)
			case <-ctx.Done():
			}
			return shutdown(server, rt)
		},
	}

	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Do not consume provisioning jobs in this process")
	return cmd
}

func shutdown(server *http.Server, rt *cliState) error {
	rt.log.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
