package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graf/internal/api"
	"graf/internal/bands"
	"graf/internal/cfg"
	"graf/internal/db"
	"graf/internal/logging"
	"graf/internal/metrics"
	"graf/internal/ops"
)

const (
	shutdownTimeout = 30 * time.Second
	pruneInterval   = time.Hour
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := flags.load()
			if err != nil {
				return err
			}
			if listen != "" {
				config.Listen = listen
			}

			logger, err := logging.New(config.LogLevel, config.Debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return serve(cmd.Context(), config, flags.configPath, logger)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default: :8080)")
	return cmd
}

func serve(ctx context.Context, config *cfg.Config, configPath string, logger *zap.Logger) error {
	picker := bands.NewPicker(config.Bands, config.DefaultBand)

	logger.Info("grafd starting",
		zap.String("listen", config.Listen),
		zap.String("version", config.Version),
		zap.Bool("debug", config.Debug),
		zap.Strings("bands", picker.Names()),
		zap.String("default_band", picker.DefaultName()),
	)

	database, err := db.Open(config.DBURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	logger.Info("database opened", zap.Stringer("driver", database.Driver()))

	dispatcher := ops.NewDispatcher(database, config, picker, logger, metrics.New(prometheus.DefaultRegisterer))
	handler := api.NewHandler(database, config, dispatcher, picker, logger, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:         config.Listen,
		Handler:      api.WithDefaults(api.NewRouter(handler), logger, config),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reloadBandsOnHangup(ctx, configPath, picker, logger)
	go pruneAuditLoop(ctx, database, config.AuditRetention, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", config.Listen))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("grafd stopped")
	return nil
}

// pruneAuditLoop removes expired audit entries every hour until ctx is done.
func pruneAuditLoop(ctx context.Context, database *db.DB, retention time.Duration, logger *zap.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pruneAudit(ctx, database, retention, logger)
		case <-ctx.Done():
			return
		}
	}
}

func pruneAudit(ctx context.Context, database *db.DB, retention time.Duration, logger *zap.Logger) {
	n, err := database.PruneAudit(ctx, time.Now().Add(-retention))
	if err != nil {
		logger.Error("pruning audit entries", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("pruned audit entries", zap.Int64("count", n))
	}
}

// reloadBandsOnHangup re-reads the config file on SIGHUP and swaps in its
// bands. Other settings need a restart.
func reloadBandsOnHangup(ctx context.Context, configPath string, picker *bands.Picker, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			if err := reloadBands(configPath, picker); err != nil {
				logger.Error("reloading bands", zap.Error(err))
				continue
			}
			logger.Info("bands reloaded", zap.Strings("bands", picker.Names()))
		case <-ctx.Done():
			return
		}
	}
}

func reloadBands(configPath string, picker *bands.Picker) error {
	config, err := cfg.Load(configPath)
	if err != nil {
		return err
	}
	if config.DefaultBand != picker.DefaultName() {
		return fmt.Errorf("default band changed from %q to %q; restart to apply", picker.DefaultName(), config.DefaultBand)
	}
	picker.Update(config.Bands)
	return nil
}
