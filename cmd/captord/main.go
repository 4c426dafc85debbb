package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"captor/internal/analytics"
	"captor/internal/calendar"
	"captor/internal/classify"
	"captor/internal/config"
	"captor/internal/daemon"
	"captor/internal/logging"
	"captor/internal/pipeline"
	"captor/internal/queue"
	"captor/internal/store"
	"captor/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if _, err := cfg.EnsureDeviceID(); err != nil {
		log.Fatalf("ensure device id: %v", err)
	}

	entityStore, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("open entity store: %v", err)
	}
	defer entityStore.Close()

	queueStore, err := queue.Open(cfg)
	if err != nil {
		log.Fatalf("open queue store: %v", err)
	}
	defer queueStore.Close()

	tracker := analytics.NewTracker(cfg.Analytics, logger)
	var calendarService *calendar.Service
	if cfg.Calendar.Enabled {
		calendarService = calendar.NewService(entityStore, calendar.NewHTTPClient(cfg.Calendar), cfg.Calendar, logger,
			calendar.WithTracker(tracker))
	}
	classifier := classify.NewHTTPClient(classify.Config{
		BaseURL:        cfg.Classifier.BaseURL,
		APIKey:         cfg.Classifier.APIKey,
		TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
	})

	applier := pipeline.NewApplier(entityStore, calendarService, tracker, logger)
	processor := worker.NewProcessor(entityStore, queueStore, classifier, applier, cfg, logger,
		worker.WithTracker(tracker))

	d, err := daemon.New(cfg, entityStore, queueStore, processor, calendarService, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("captord shutting down")
	d.Stop()
}
