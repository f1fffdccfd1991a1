package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
)

const metricsAddr = ":9090"

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Start metrics server",
	Long:  `Start an HTTP server to expose Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := telemetry.Init(ctx); err != nil {
			return err
		}
		if err := telemetry.InitMetrics(); err != nil {
			return err
		}

		server := startMetricsServer(ctx)
		if server == nil {
			return eris.New("Prometheus registry not initialized")
		}

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return telemetry.Shutdown(shutdownCtx)
	},
}

// startMetricsServer serves /metrics when the Prometheus exporter is active.
func startMetricsServer(ctx context.Context) *http.Server {
	reg := telemetry.GetPrometheusRegistry()
	if reg == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.FromCtx(ctx).Error("Metrics server error", zap.Error(err))
		}
	}()
	log.FromCtx(ctx).Info("Metrics server started", zap.String("addr", metricsAddr))
	return server
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
