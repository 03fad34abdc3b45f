// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package harvest wires the crawler, document loader, embedding batcher,
// search index, job orchestrator, retrieval engine and chat loop into one
// application.
//
//	cfg, err := config.Load("harvest.yaml")
//	app, err := harvest.Open(ctx, cfg)
//	defer app.Close()
//
//	id, err := app.Orchestrator().CreateJob(ctx, "alice", "https://example.com/", core.SingleConfig{})
//	err = app.Orchestrator().StartJob(ctx, id)
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/poiesic/harvest/ai"
	"github.com/poiesic/harvest/ai/openai"
	"github.com/poiesic/harvest/api"
	"github.com/poiesic/harvest/chat"
	"github.com/poiesic/harvest/config"
	"github.com/poiesic/harvest/crawler"
	"github.com/poiesic/harvest/embedding"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/index/local"
	"github.com/poiesic/harvest/ingestion"
	"github.com/poiesic/harvest/loader"
	"github.com/poiesic/harvest/search"
	"github.com/poiesic/harvest/snapshot"
	"github.com/poiesic/harvest/storage"
	"github.com/poiesic/harvest/storage/badger"
	"github.com/poiesic/harvest/storage/postgres"
)

// App owns every long-lived component. Close releases them.
type App struct {
	config       *config.Config
	store        storage.Store
	backend      *local.Backend
	provider     ai.AIProvider
	executor     *ingestion.PoolExecutor
	orchestrator *ingestion.Orchestrator
	searcher     *search.Searcher
	chat         *chat.Service
	watchdog     *ingestion.Watchdog
	logger       *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider ai.AIProvider
	fetcher  crawler.Fetcher
	logger   *slog.Logger
}

// WithProvider replaces the OpenAI-compatible provider built from the config.
// The App closes it.
func WithProvider(p ai.AIProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithFetcher replaces the HTTP page fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open builds the application described by cfg. On error every component
// opened so far is closed again.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	app := &App{config: cfg, logger: o.logger.With("component", "harvest")}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if app.store, err = openStore(ctx, cfg, o.logger); err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	snapshots, err := snapshot.NewStore(cfg.SnapshotDir())
	if err != nil {
		return nil, err
	}
	files, err := loader.NewFileStore(cfg.UploadDir())
	if err != nil {
		return nil, err
	}

	app.backend, err = local.Open(cfg.IndexDir(),
		local.WithMaxIndexes(cfg.Index.MaxIndexes),
		local.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	indexes, err := index.NewManager(app.backend, app.store.Databases(),
		index.WithPrefix(cfg.Index.Prefix),
		index.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	app.provider = o.provider
	if app.provider == nil {
		if app.provider, err = openai.NewProvider(cfg.ProviderConfig(), openai.WithLogger(o.logger)); err != nil {
			return nil, fmt.Errorf("create ai provider: %w", err)
		}
	}
	batcher, err := embedding.NewBatcher(app.provider.Embedder(),
		embedding.WithBatchSize(cfg.AI.EmbedBatchSize),
		embedding.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fopts := []crawler.FetcherOption{
			crawler.WithHTTPClient(&http.Client{Timeout: cfg.Crawler.Timeout}),
			crawler.WithMaxBodySize(cfg.Crawler.MaxBodyBytes),
		}
		if cfg.Crawler.UserAgent != "" {
			fopts = append(fopts, crawler.WithUserAgent(cfg.Crawler.UserAgent))
		}
		fetcher = crawler.NewHTTPFetcher(fopts...)
	}
	crawl, err := crawler.New(fetcher, crawler.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	execOpts := []ingestion.ExecutorOption{
		ingestion.WithJobTimeout(cfg.Ingestion.JobTimeout),
		ingestion.WithExecutorLogger(o.logger),
	}
	if cfg.Ingestion.Workers > 0 {
		execOpts = append(execOpts, ingestion.WithPoolSize(cfg.Ingestion.Workers))
	}
	if app.executor, err = ingestion.NewPoolExecutor(execOpts...); err != nil {
		return nil, err
	}

	app.orchestrator, err = ingestion.NewOrchestrator(ingestion.Dependencies{
		Store:     app.store,
		Snapshots: snapshots,
		Files:     files,
		Crawler:   crawl,
		Embedder:  batcher,
		Indexes:   indexes,
		Executor:  app.executor,
	},
		ingestion.WithChunking(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap),
		ingestion.WithUploadBatchSize(cfg.Ingestion.UploadBatchSize),
		ingestion.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	app.watchdog, err = ingestion.NewWatchdog(app.orchestrator,
		ingestion.WithStaleAfter(cfg.Ingestion.StaleAfter),
		ingestion.WithSweepInterval(cfg.Ingestion.SweepInterval),
		ingestion.WithWatchdogLogger(o.logger))
	if err != nil {
		return nil, err
	}

	if app.searcher, err = search.NewSearcher(app.store.Databases(), indexes, batcher, search.WithLogger(o.logger)); err != nil {
		return nil, err
	}
	if app.chat, err = chat.NewService(app.searcher, app.provider.Generator(),
		chat.WithSessionStore(app.store.ChatSessions(), app.store.Databases()),
		chat.WithLogger(o.logger)); err != nil {
		return nil, err
	}
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		return postgres.Open(ctx, cfg.Storage.PostgresURL)
	}
	return badger.NewStore(cfg.StorageDir(), logger)
}

func (a *App) Config() *config.Config                { return a.config }
func (a *App) Orchestrator() *ingestion.Orchestrator { return a.orchestrator }
func (a *App) Searcher() *search.Searcher            { return a.searcher }
func (a *App) Chat() *chat.Service                   { return a.chat }
func (a *App) Watchdog() *ingestion.Watchdog         { return a.watchdog }

// NewServer returns an HTTP server over the application's services.
func (a *App) NewServer(opts ...api.Option) (*api.Server, error) {
	opts = append([]api.Option{api.WithLogger(a.logger)}, opts...)
	return api.NewServer(a.orchestrator, a.searcher, a.chat, opts...)
}

// Serve reclaims orphaned indexes, starts the watchdog and serves HTTP on
// the configured address until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if report, err := a.orchestrator.ReclaimOrphans(ctx); err != nil {
		a.logger.Warn("startup reclaim failed", "error", err)
	} else if report.Deleted > 0 {
		a.logger.Info("reclaimed orphaned indexes", "deleted", report.Deleted)
	}

	srv, err := a.NewServer()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.watchdog.Run(ctx)
	}()
	err = srv.ListenAndServe(ctx, a.config.Listen)
	cancel()
	<-done
	return err
}

// Close stops the executor, waiting for running jobs, and then closes the
// provider, the index and the store.
func (a *App) Close() error {
	var errs []error
	if a.executor != nil {
		if err := a.executor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close executor: %w", err))
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Error("error closing AI provider", "err", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
