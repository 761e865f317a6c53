// Command termserver serves the five terminology operations ($lookup,
// $validate-code, $expand, $subsumes, $translate) plus the read-only
// resource endpoints over HTTP, backed by whichever provider families
// and FHIR packages are configured at startup.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/expansion"
	"github.com/gofhir/termserver/pkg/expcache"
	"github.com/gofhir/termserver/registry"
	"github.com/gofhir/termserver/service"
	"github.com/gofhir/termserver/worker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "termserver",
		Short: "FHIR terminology server",
	}

	var cfgFile string
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a termserver.yaml config file")

	rootCmd.AddCommand(serveCmd(&cfgFile))
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the terminology server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgFile)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func runServer(cfg *Config) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	reg := registry.NewProviders()

	ctx := context.Background()
	if err := reg.RegisterBuiltins(ctx, registry.BuiltinConfig{
		SNOMEDVersion:     cfg.SNOMEDVersion,
		SNOMEDWildcardCap: cfg.WildcardCap,
		LOINCDSN:          cfg.LOINCDSN,
		RxNormDSN:         cfg.RxNormDSN,
		NDCDSN:            cfg.NDCDSN,
		OMOPDSN:           cfg.OMOPDSN,
		CPTVersion:        cfg.CPTVersion,
		UCUMVersion:       cfg.UCUMVersion,
		HGVSValidateURL:   cfg.HGVSValidateURL,
		HGVSVersion:       cfg.HGVSVersion,
		BCP47Version:      cfg.BCP47Version,
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to register builtin provider families")
	}

	loader := registry.NewPackageLoader(reg)
	for _, dir := range cfg.PackageDir {
		stats, err := loader.LoadPackage(dir)
		if err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("failed to load package")
		}
		logger.Info().
			Str("dir", dir).
			Int64("codeSystems", stats.CodeSystems).
			Int64("valueSets", stats.ValueSets).
			Int64("conceptMaps", stats.ConceptMaps).
			Int64("errors", stats.Errors).
			Msg("loaded package")
	}

	opts := termserver.DefaultOptions()
	if cfg.MaxExpansionSize > 0 {
		opts.MaxExpansionSize = cfg.MaxExpansionSize
	}
	if cfg.OperationTimeout > 0 {
		opts.OperationTimeout = cfg.OperationTimeout
	}
	if cfg.WorkerCount > 0 {
		opts.WorkerCount = cfg.WorkerCount
	}

	metrics := termserver.NewMetrics()

	cache := expcache.New(opts.ExpansionCacheSize, opts.ExpansionCacheTTL)
	expander := expansion.New(reg, cache).WithMetrics(metrics)
	dispatcher := service.NewDispatcher(reg, expander, opts).WithMetrics(metrics)

	pool := worker.NewPool(dispatcher, opts.WorkerCount)
	defer pool.Close()
	rt := newRouter(pool)

	stopMaintenance := startMaintenance(cfg.MaintenanceInterval, cfg.MemPressureBytes, cfg.ResourceMaxAge, cache, dispatcher, logger)
	defer stopMaintenance()

	srv := newServer(reg, rt, metrics, logger)

	go func() {
		if err := srv.echo.Start(cfg.Addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()
	logger.Info().Str("addr", cfg.Addr).Msg("termserver listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("stopped")
	return nil
}
