package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"optionflow/config"
	"optionflow/flow"
	"optionflow/internal/cache"
	"optionflow/internal/market"
	"optionflow/internal/throttle"
	"optionflow/logger"
	"optionflow/reader/yahoo"
	"optionflow/server"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	symbolsPath := flag.String("symbols", "config/symbols.yml", "Path to symbol universe file")

	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath, "config/config.yml"))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Optionflow.Name,
		"version":     cfg.Optionflow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting optionflow")

	universes, err := config.LoadSymbols(*symbolsPath)
	if err != nil {
		log.WithError(err).Error("failed to load symbol universes")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	clock, err := market.NewClock(cfg.Market.Timezone)
	if err != nil {
		log.WithError(err).Error("failed to initialise market clock")
		os.Exit(1)
	}

	viewCache := cache.New(cfg.Cache.MarketOpenTTL(), cfg.Cache.ClosedMarketTTL())
	viewCache.StartSweeper(ctx, cfg.Cache.SweepInterval())

	gate := throttle.NewGate(cfg.Cooldowns.Operations(), cfg.Cooldowns.Default())
	source := yahoo.NewClient(cfg.Fetch, cfg.Source.Yahoo)
	service := flow.NewService(cfg, universes, source, viewCache, gate, clock)

	srv := server.New(cfg, universes, service)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("http server failed")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown timeout exceeded")
	} else {
		log.Info("graceful shutdown completed")
	}

	log.Info("optionflow stopped")
}
