// Package main implements the loadstone ingestion service. It consumes
// bucket notifications from a subscription, fetches the named objects,
// normalizes datetime fields, and appends records to the warehouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/loadstone/loadstone/internal/app"
	"github.com/loadstone/loadstone/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		envFile     string
		mode        string
		showVersion bool
	)

	flag.StringVar(&envFile, "env-file", "", "Path to an env file loaded before the environment")
	flag.StringVar(&mode, "mode", "", "Consumption mode: listen or pull (overrides MODE)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Loadstone - notification-driven object ingestion\n\n")
		fmt.Fprintf(os.Stderr, "Usage: loadstone [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loadstone --env-file /etc/loadstone/.env\n")
		fmt.Fprintf(os.Stderr, "  loadstone --mode pull\n")
		fmt.Fprintf(os.Stderr, "\nKey Environment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MODE                    listen or pull\n")
		fmt.Fprintf(os.Stderr, "  GCP_PROJECT_ID          Cloud project\n")
		fmt.Fprintf(os.Stderr, "  PUBSUB_SUBSCRIPTION_ID  Subscription to consume\n")
		fmt.Fprintf(os.Stderr, "  GCS_BUCKET_NAME         Bucket holding the objects\n")
		fmt.Fprintf(os.Stderr, "  BQ_DATASET_ID/BQ_TABLE_ID  Destination table\n")
		fmt.Fprintf(os.Stderr, "  TARGET_TIMEZONE         Zone for datetime normalization\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("loadstone version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}

	log := app.NewLogger(cfg.LogLevel)
	log.Info().Str("version", version).Str("mode", string(cfg.Mode)).
		Msg("starting loadstone")

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error().Err(err).Msg("service failed")
		os.Exit(1)
	}
	log.Info().Msg("loadstone stopped")
}
