/**
 * @description
 * Entry point for the maintenance scheduler. It runs the cron jobs that close
 * past events and expire abandoned donations by calling the giving-service's
 * internal endpoints.
 */
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/app"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/config"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/logging"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/givingclient"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("level=warn component=bootstrap msg=\".env file could not be loaded\" err=%v", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"failed to load configuration\" err=%v", err)
	}
	logger := logging.New("scheduler", cfg.LogDebug, os.Stdout)

	if cfg.InternalAPIKey == "" {
		logger.Warn("INTERNAL_API_KEY not set; maintenance calls are sent unauthenticated")
	}

	client := givingclient.NewClient(cfg.GivingServiceURL, cfg.InternalAPIKey)
	jobs := app.NewJobs(client, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg)

	if scheduler.Start() == 0 {
		logger.Error("no jobs scheduled; check EVENT_SWEEP_SCHEDULE and DONATION_SWEEP_SCHEDULE")
		os.Exit(1)
	}
	logger.Info("scheduler started", "giving_service", cfg.GivingServiceURL, "timezone", cfg.BusinessTimezone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, waiting for running jobs")
	<-scheduler.Stop().Done()
	logger.Info("scheduler stopped")
}
