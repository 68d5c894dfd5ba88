// Package main runs the crawl worker: it polls the job store and runs
// one crawl session at a time.
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
	"recipeharvest/internal/config"
	"recipeharvest/internal/logging"
	"recipeharvest/internal/session"
	"recipeharvest/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, "worker")
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

	sessionCfg := session.DefaultConfig()
	sessionCfg.UserAgent = cfg.Crawler.UserAgent
	sessionCfg.MaxPages = cfg.Crawler.MaxPages
	sessionCfg.IngestThreshold = cfg.Quality.IngestThreshold
	sessionCfg.BaseDelay = time.Duration(cfg.Crawler.BaseDelayMs) * time.Millisecond
	sessionCfg.RandomDelay = time.Duration(cfg.Crawler.RandomDelayMs) * time.Millisecond
	sessionCfg.RetryExtraDelay = time.Duration(cfg.Crawler.RetryExtraDelayMs) * time.Millisecond
	sessionCfg.Parallelism = cfg.Crawler.Parallelism
	sessionCfg.RetryParallelism = cfg.Crawler.RetryParallelism
	sessionCfg.RequestTimeout = time.Duration(cfg.Crawler.RequestTimeoutSec) * time.Second
	sessionCfg.CooldownStep = time.Duration(cfg.Crawler.CooldownHours) * time.Hour
	sessionCfg.EventTopic = cfg.PubSub.TopicName
	sessionCfg.RespectRobots = cfg.Crawler.RespectRobots

	runner := session.NewRunner(sessionCfg, session.Deps{
		Jobs:      application.Jobs,
		Recipes:   application.Recipes,
		Snapshots: application.Snapshots,
		Events:    application.Events,
		Clock:     application.Clock,
		Logger:    logger.Named("session"),
	})

	workerCfg := worker.Config{
		IdleBase:       time.Duration(cfg.Worker.IdleBaseSec) * time.Second,
		IdleMultiplier: cfg.Worker.IdleMultiplier,
		IdleMax:        time.Duration(cfg.Worker.IdleMaxSec) * time.Second,
		JitterMax:      time.Duration(cfg.Worker.JitterMaxMs) * time.Millisecond,
	}

	logger.Info("worker started")
	worker.New(application.Jobs, runner, application.Clock, workerCfg, logger).Run(ctx)
	logger.Info("shutdown complete")
}
