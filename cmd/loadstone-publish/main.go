// Package main implements loadstone-publish, a helper that publishes
// object-key notifications to the ingestion topic. It either publishes
// the keys given as arguments or lists a bucket prefix and publishes
// every object found, which is how backfills are kicked off.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/loadstone/loadstone/internal/app"
	"github.com/loadstone/loadstone/internal/broker"
	"github.com/loadstone/loadstone/internal/config"
	"github.com/loadstone/loadstone/internal/storage"
)

func main() {
	var (
		envFile string
		prefix  string
	)

	flag.StringVar(&envFile, "env-file", "", "Path to an env file loaded before the environment")
	flag.StringVar(&prefix, "prefix", "", "Publish every object under this bucket prefix")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "loadstone-publish - send object-key notifications\n\n")
		fmt.Fprintf(os.Stderr, "Usage: loadstone-publish [options] [key ...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loadstone-publish incoming/events.json\n")
		fmt.Fprintf(os.Stderr, "  loadstone-publish --prefix 2024/01/\n")
	}

	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg.LogLevel)

	if cfg.TopicID == "" {
		log.Error().Msg("PUBSUB_TOPIC_ID must be set")
		os.Exit(1)
	}

	ctx := context.Background()
	keys := flag.Args()

	if prefix != "" {
		store, err := newStore(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize blob store")
			os.Exit(1)
		}
		listed, err := store.List(ctx, prefix)
		if err != nil {
			log.Error().Err(err).Str("prefix", prefix).Msg("failed to list objects")
			os.Exit(1)
		}
		keys = append(keys, listed...)
	}

	if len(keys) == 0 {
		log.Error().Msg("nothing to publish: pass keys or --prefix")
		os.Exit(1)
	}

	pub, err := broker.NewPubSubPublisher(ctx, cfg.ProjectID, cfg.TopicID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create publisher")
		os.Exit(1)
	}
	defer pub.Close()

	var failed int
	for _, key := range keys {
		id, err := pub.Publish(ctx, []byte(key), map[string]string{"origin": "loadstone-publish"})
		if err != nil {
			log.Error().Err(err).Str("object", key).Msg("publish failed")
			failed++
			continue
		}
		log.Info().Str("object", key).Str("message_id", id).Msg("notification published")
	}

	if failed > 0 {
		log.Error().Int("failed", failed).Int("total", len(keys)).Msg("some publishes failed")
		os.Exit(1)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		return storage.NewGCSStorage(ctx, cfg.Storage.Bucket, cfg.Storage.MaxObjectBytes)
	case config.StorageS3:
		return storage.NewS3Storage(ctx, cfg.Storage.S3Bucket, cfg.Storage.MaxObjectBytes, storage.S3Config{
			Region:       cfg.Storage.S3Region,
			Endpoint:     cfg.Storage.S3Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		})
	case config.StorageLocal:
		return storage.NewLocalStorage(cfg.Storage.LocalPath, cfg.Storage.MaxObjectBytes)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}
