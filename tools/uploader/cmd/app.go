package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/config"
	"github.com/TrevorEdris/transfer-utils/pkg/journal"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/provision"
	"github.com/TrevorEdris/transfer-utils/pkg/session"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
	"github.com/TrevorEdris/transfer-utils/tools/uploader/pkg/uploader"
)

// app is what every command that talks to a remote needs.
type app struct {
	cfg      *config.Config
	uploader uploader.Uploader
	closers  []func()
}

func newApp(ctx context.Context) (context.Context, *app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return ctx, nil, err
	}

	logger, err := log.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return ctx, nil, err
	}
	log.SetDefault(logger)
	ctx = log.ToCtx(ctx, logger)

	a := &app{cfg: cfg}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	err = telemetry.Init(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize telemetry: %v\n", err)
		// Continue without telemetry
	} else {
		err = telemetry.InitMetrics()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize metrics: %v\n", err)
		}
		a.closers = append(a.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "Error shutting down telemetry: %v\n", err)
			}
		})
	}

	if cfg.Engine.ExternalClient && cfg.Engine.AutoProvisionEnabled() {
		if _, err := provision.Init(ctx, cfg.Engine.Provision()); err != nil {
			a.close()
			return ctx, nil, err
		}
		a.closers = append(a.closers, provision.Teardown)
	}

	j, err := journal.New(ctx, cfg.Journal, cfg.AWS.Options())
	if err != nil {
		a.close()
		return ctx, nil, err
	}
	if cfg.Journal.Enabled {
		log.FromCtx(ctx).Debug("Journaling transfers", zap.String("table", cfg.Journal.TableName))
	}

	opener := session.NewOpener(cfg, cfg.Engine.Session())
	a.uploader = uploader.New(opener, j)
	return ctx, a, nil
}

// close runs the closers in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
