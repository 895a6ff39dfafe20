// Package app wires the Loadstone components together and manages the
// process lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/loadstone/loadstone/internal/broker"
	"github.com/loadstone/loadstone/internal/catalog"
	"github.com/loadstone/loadstone/internal/config"
	"github.com/loadstone/loadstone/internal/deadletter"
	"github.com/loadstone/loadstone/internal/notify"
	"github.com/loadstone/loadstone/internal/observability"
	"github.com/loadstone/loadstone/internal/pipeline"
	"github.com/loadstone/loadstone/internal/server"
	"github.com/loadstone/loadstone/internal/storage"
	"github.com/loadstone/loadstone/internal/timeconv"
	"github.com/loadstone/loadstone/internal/warehouse"
	"github.com/loadstone/loadstone/pkg/types"
)

// App owns the assembled pipeline and its lifecycle.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	schema     types.Schema
	store      storage.BlobStore
	writer     *warehouse.Writer
	controller *pipeline.Controller
	metrics    *observability.Metrics
	shutdown   *server.ShutdownManager
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// New validates the configuration and constructs all components.
// Construction failures are startup-fatal; nothing is retried here.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		metrics:  observability.NewMetrics(),
		shutdown: server.NewShutdownManager(server.ShutdownConfig{}),
	}

	schema, err := catalog.Load(cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	a.schema = schema
	log.Info().Str("file", cfg.SchemaFile).Int("fields", len(schema.Fields)).
		Msg("table schema loaded")

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initWriter(ctx); err != nil {
		return nil, err
	}

	var publisher deadletter.Publisher
	if cfg.DeadLetterTopicID != "" {
		pub, err := broker.NewPubSubPublisher(ctx, cfg.ProjectID, cfg.DeadLetterTopicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create dead-letter publisher: %w", err)
		}
		a.shutdown.RegisterCloser(pub)
		publisher = pub
		log.Info().Str("topic", cfg.DeadLetterTopicID).Msg("dead-letter topic configured")
	} else {
		log.Warn().Msg("no dead-letter topic configured, failures rely on broker redelivery")
	}

	a.controller = pipeline.NewController(
		notify.NewDecoder(),
		a.store,
		a.writer,
		deadletter.NewRouter(publisher, log),
		a.shutdown,
		a.metrics,
		log,
	)
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		store, err := storage.NewGCSStorage(ctx, cfg.Storage.Bucket, cfg.Storage.MaxObjectBytes)
		if err != nil {
			return fmt.Errorf("failed to initialize GCS storage: %w", err)
		}
		a.shutdown.RegisterCloser(store)
		a.store = store
	case config.StorageS3:
		store, err := storage.NewS3Storage(ctx, cfg.Storage.S3Bucket, cfg.Storage.MaxObjectBytes, storage.S3Config{
			Region:       cfg.Storage.S3Region,
			Endpoint:     cfg.Storage.S3Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		a.store = store
	case config.StorageLocal:
		store, err := storage.NewLocalStorage(cfg.Storage.LocalPath, cfg.Storage.MaxObjectBytes)
		if err != nil {
			return fmt.Errorf("failed to initialize local storage: %w", err)
		}
		a.store = store
	default:
		return fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
	a.log.Info().Str("backend", cfg.Storage.Backend).Msg("blob store initialized")
	return nil
}

func (a *App) initWriter(ctx context.Context) error {
	cfg := a.cfg

	var sink warehouse.TableSink
	switch cfg.Warehouse.Backend {
	case config.SinkBigQuery:
		bq, err := warehouse.NewBigQuerySink(ctx, cfg.ProjectID, cfg.Warehouse.DatasetID, cfg.Warehouse.TableID)
		if err != nil {
			return fmt.Errorf("failed to initialize BigQuery sink: %w", err)
		}
		a.shutdown.RegisterCloser(bq)
		sink = bq
	case config.SinkSQLite:
		sq, err := warehouse.NewSQLiteSink(cfg.Warehouse.SQLitePath, cfg.Warehouse.TableID)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite sink: %w", err)
		}
		a.shutdown.RegisterCloser(sq)
		sink = sq
	default:
		return fmt.Errorf("unsupported sink backend: %s", cfg.Warehouse.Backend)
	}
	a.log.Info().Str("backend", cfg.Warehouse.Backend).Msg("table sink initialized")

	conv := timeconv.New(cfg.Location(), a.log)
	a.writer = warehouse.NewWriter(sink, conv, a.schema.DatetimeFields(), a.log)

	if err := a.writer.EnsureTable(ctx, a.schema); err != nil {
		return err
	}
	return nil
}

// Run executes the configured mode until completion or shutdown.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.HTTPAddr != "" {
		hs := server.NewHealthServer(a.cfg.HTTPAddr, a.metrics.Handler(), a.shutdown)
		go func() {
			if err := hs.ListenAndServe(); err != nil {
				a.log.Error().Err(err).Msg("health server failed")
			}
		}()
		a.log.Info().Str("addr", a.cfg.HTTPAddr).Msg("health and metrics endpoint started")
	}

	switch a.cfg.Mode {
	case config.ModeListen:
		return a.runListen(ctx)
	case config.ModePull:
		return a.runPull(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", a.cfg.Mode)
	}
}

// runListen blocks consuming the subscription until a termination signal
// arrives, then drains in-flight messages before returning.
func (a *App) runListen(ctx context.Context) error {
	listener, err := broker.NewPubSubListener(ctx, a.cfg.ProjectID, a.cfg.SubscriptionID,
		a.cfg.MaxMessages, a.cfg.AckDeadline, a.log)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	a.shutdown.RegisterCloser(listener)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.controller.Run(ctx, listener)
	}()

	sigCh := make(chan error, 1)
	go func() {
		sigCh <- a.shutdown.ListenForSignals(ctx)
	}()

	select {
	case err := <-errCh:
		// The listener stopped on its own; release everything else.
		if serr := a.shutdown.Shutdown(context.Background()); serr != nil {
			a.log.Error().Err(serr).Msg("shutdown completed with errors")
		}
		return err
	case err := <-sigCh:
		if err != nil {
			a.log.Error().Err(err).Msg("shutdown completed with errors")
		}
		if err := <-errCh; err != nil {
			return err
		}
		a.log.Info().Msg("listener stopped")
		return nil
	}
}

// runPull performs one bounded pull, processes it, and shuts down.
func (a *App) runPull(ctx context.Context) error {
	puller, err := broker.NewPubSubPuller(ctx, a.cfg.ProjectID, a.cfg.SubscriptionID, a.log)
	if err != nil {
		return fmt.Errorf("failed to create puller: %w", err)
	}
	a.shutdown.RegisterCloser(puller)

	n, err := a.controller.PullOnce(ctx, puller, a.cfg.MaxMessages)
	if err != nil {
		a.shutdown.Shutdown(context.Background())
		return err
	}
	a.log.Info().Int("messages", n).Msg("pull batch complete")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.shutdown.Shutdown(shutdownCtx)
}
