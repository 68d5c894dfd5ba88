// Package main runs the standing auditor: it sweeps stored recipes,
// repairs what it can and files repair crawls for the rest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"recipeharvest/internal/app"
	"recipeharvest/internal/auditor"
	"recipeharvest/internal/config"
	"recipeharvest/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, "auditor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init failed", zap.Error(err))
		os.Exit(1)
	}
	defer application.Close()

	auditCfg := auditor.Config{
		BatchSize:           cfg.Auditor.BatchSize,
		PollInterval:        time.Duration(cfg.Auditor.PollIntervalSec) * time.Second,
		ErrorBackoff:        time.Duration(cfg.Auditor.ErrorBackoffSec) * time.Second,
		QuarantineThreshold: cfg.Quality.QuarantineThreshold,
		RepairCap:           cfg.Auditor.RepairCap,
		ImageCheckTimeout:   time.Duration(cfg.Auditor.ImageCheckTimeoutSec) * time.Second,
	}

	var lookup auditor.NutritionLookup
	if application.Nutrition != nil {
		lookup = application.Nutrition
	}

	logger.Info("auditor started")
	auditor.New(application.Recipes, application.Jobs, lookup, application.Clock, auditCfg, logger).Run(ctx)
	logger.Info("shutdown complete")
}
