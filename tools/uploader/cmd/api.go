package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/tools/uploader/pkg/api"
)

var apiPort int

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the API server that accepts upload jobs over HTTP.

POST /v1/uploads starts a job, GET /v1/uploads/{id} reports on it and
DELETE /v1/uploads/{id} aborts it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctx, a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		port := a.cfg.API.Port
		if cmd.Flags().Changed("port") {
			port = apiPort
		}
		server := api.NewServer(port, a.cfg.API.RequestsPerMinute, a.uploader)

		metricsServer := startMetricsServer(ctx)

		serverErrChan := make(chan error, 1)
		go func() {
			if err := server.Start(ctx); err != nil {
				serverErrChan <- err
			}
		}()

		select {
		case <-ctx.Done():
			log.FromCtx(ctx).Info("Received shutdown signal, shutting down gracefully...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.FromCtx(ctx).Error("Error shutting down API server", zap.Error(err))
			}
			if metricsServer != nil {
				if err := metricsServer.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
					log.FromCtx(ctx).Error("Error shutting down metrics server", zap.Error(err))
				}
			}
			return nil
		case err := <-serverErrChan:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().IntVarP(&apiPort, "port", "p", 8000, "Port to listen on (overrides api.port)")
}
