// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog wires the marketplace statistics service: the snapshot
// store, rebuild sources, the rebuild controller with its scheduler and
// file watcher, and the HTTP router.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/handlers"
	"github.com/AleutianAI/AleutianMarket/services/catalog/observability"
	"github.com/AleutianAI/AleutianMarket/services/catalog/rebuild"
	"github.com/AleutianAI/AleutianMarket/services/catalog/routes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/snapshot"
	"github.com/AleutianAI/AleutianMarket/services/catalog/source"
	"github.com/AleutianAI/AleutianMarket/services/catalog/stats"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the running catalog statistics server.
//
// # Thread Safety
//
// Run blocks and must be called once. Router and Controller are safe for
// concurrent use.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the listener fails, then
	// shuts down gracefully and stops background rebuild triggers.
	Run(ctx context.Context) error

	// Router returns the configured gin engine.
	Router() *gin.Engine

	// Controller returns the rebuild controller.
	Controller() rebuild.Controller

	// Store returns the snapshot store.
	Store() *snapshot.Store

	// DefaultSource returns the resolved default rebuild selector.
	DefaultSource() string

	// Close releases sources and background goroutines. Run calls it on
	// return.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// FileSourceConfig enables the "file" source.
type FileSourceConfig struct {
	Path     string
	Watch    bool
	Debounce time.Duration
}

// HTTPSourceConfig enables the "http" source.
type HTTPSourceConfig struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// GCSSourceConfig enables the "gcs" source.
type GCSSourceConfig struct {
	Bucket          string
	Object          string
	CredentialsFile string
	Endpoint        string
}

// MockSourceConfig enables the "mock" source.
type MockSourceConfig struct {
	Enabled bool
	Apps    int
	Seed    int64
}

// Config holds service settings. A source is registered when its
// identifying field (path, URL, bucket, or Enabled) is set.
//
// # Fields
//
//   - Addr: Listen address. Default ":12310".
//   - GinMode: "debug", "release" or "test". Empty leaves gin's default.
//   - DefaultSource: Selector for startup, periodic and bodiless rebuilds.
//     Defaults to the first registered source.
//   - RebuildOnStart: Request a rebuild as soon as the service starts.
//   - RebuildInterval: Periodic rebuild interval. Zero disables.
//   - RebuildTimeout: Optional upper bound on one rebuild. Zero, the
//     default, lets a run go to completion.
//   - RebuildRate, RebuildBurst: Token bucket for POST /v1/rebuild. A
//     non-positive rate disables throttling.
//   - DecodeConcurrency: Parallel record decoders. Zero means GOMAXPROCS.
//   - CacheEntries: Aggregation result cache size.
//   - DefaultBuckets: Frequency n when a query omits it.
//   - MaxListing: Cap on listing responses without a limit. Zero means none.
//   - ShutdownTimeout: Grace period for in-flight requests.
type Config struct {
	Addr              string
	GinMode           string
	DefaultSource     string
	RebuildOnStart    bool
	RebuildInterval   time.Duration
	RebuildTimeout    time.Duration
	RebuildRate       float64
	RebuildBurst      int
	DecodeConcurrency int
	CacheEntries      int
	DefaultBuckets    int
	MaxListing        int
	ShutdownTimeout   time.Duration

	File FileSourceConfig
	HTTP HTTPSourceConfig
	GCS  GCSSourceConfig
	Mock MockSourceConfig
}

// DefaultConfig returns a config serving a 200-app mock catalog.
func DefaultConfig() Config {
	return Config{
		Addr:            ":12310",
		RebuildOnStart:  true,
		RebuildRate:     0.2,
		RebuildBurst:    2,
		CacheEntries:    stats.DefaultCacheEntries,
		DefaultBuckets:  10,
		ShutdownTimeout: 10 * time.Second,
		Mock:            MockSourceConfig{Enabled: true, Apps: 200},
	}
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config     Config
	logger     *slog.Logger
	store      *snapshot.Store
	sources    *source.Registry
	controller rebuild.Controller
	scheduler  rebuild.Scheduler
	watcher    *rebuild.Watcher
	metrics    *observability.QueryMetrics
	router     *gin.Engine
	closers    []func() error
}

// New builds a Service.
//
// # Description
//
// Registers the configured sources, creates the controller with an
// OnFinish hook that refreshes the snapshot gauges, and builds the router
// with otelgin tracing. No rebuild starts and no goroutines run until Run.
//
// # Inputs
//
//   - cfg: Zero-valued fields take DefaultConfig values, except sources.
//   - logger: Defaults to slog.Default().
//   - metrics: Query metrics. Nil uses observability.InitMetrics().
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: No source configured, a source is invalid, or DefaultSource
//     names an unregistered source.
func New(cfg Config, logger *slog.Logger, metrics *observability.QueryMetrics) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.InitMetrics()
	}
	s := &service{
		config:  applyConfigDefaults(cfg),
		logger:  logger,
		store:   snapshot.NewStore(),
		metrics: metrics,
	}

	if err := s.initSources(); err != nil {
		_ = s.Close()
		return nil, err
	}

	ctrlCfg := rebuild.DefaultControllerConfig()
	ctrlCfg.RunTimeout = s.config.RebuildTimeout
	ctrlCfg.Logger = logger
	ctrlCfg.OnFinish = func(state rebuild.JobState) {
		snap := s.store.Current()
		s.metrics.RecordSnapshot(snap.Version, snap.Catalog.Len())
	}
	s.controller = rebuild.NewController(s.sources, s.store, ctrlCfg)

	schedCfg := rebuild.DefaultSchedulerConfig()
	schedCfg.Interval = s.config.RebuildInterval
	schedCfg.Source = s.config.DefaultSource
	schedCfg.RunOnStart = s.config.RebuildOnStart
	s.scheduler = rebuild.NewScheduler(s.controller, schedCfg, logger)

	if s.config.File.Path != "" && s.config.File.Watch {
		opts := rebuild.DefaultWatcherOptions()
		if s.config.File.Debounce > 0 {
			opts.Debounce = s.config.File.Debounce
		}
		opts.Logger = logger
		w, err := rebuild.NewWatcher(s.config.File.Path, s.controller, opts)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("create file watcher: %w", err)
		}
		s.watcher = w
	}

	s.initRouter()
	s.metrics.RecordSnapshot(0, 0)
	return s, nil
}

// Run starts background triggers and the HTTP server.
func (s *service) Run(ctx context.Context) error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Warn("service close", "error", err)
		}
	}()

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	// The scheduler only fires RunOnStart from its loop.
	if s.config.RebuildOnStart && s.config.RebuildInterval <= 0 {
		if _, _, err := s.controller.Start(s.config.DefaultSource); err != nil {
			s.logger.Error("startup rebuild rejected", "source", s.config.DefaultSource, "error", err)
		}
	}
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			return fmt.Errorf("start file watcher: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting marketstats server",
			"addr", s.config.Addr,
			"sources", s.sources.Names(),
			"default_source", s.config.DefaultSource,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down marketstats server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *service) Router() *gin.Engine            { return s.router }
func (s *service) Controller() rebuild.Controller { return s.controller }
func (s *service) Store() *snapshot.Store         { return s.store }
func (s *service) DefaultSource() string          { return s.config.DefaultSource }

// Close stops the scheduler and watcher and closes sources that hold
// clients. A rebuild already running finishes in the background.
func (s *service) Close() error {
	var errs []error
	if s.scheduler != nil {
		errs = append(errs, s.scheduler.Stop())
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

func applyConfigDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.CacheEntries <= 0 {
		cfg.CacheEntries = def.CacheEntries
	}
	if cfg.DefaultBuckets <= 0 {
		cfg.DefaultBuckets = def.DefaultBuckets
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.RebuildBurst <= 0 {
		cfg.RebuildBurst = 1
	}
	return cfg
}

// initSources registers every configured source and resolves the default
// selector.
func (s *service) initSources() error {
	decode := datatypes.DecodeOptions{Concurrency: s.config.DecodeConcurrency}
	reg, err := source.NewRegistry()
	if err != nil {
		return err
	}
	s.sources = reg

	if p := s.config.File.Path; p != "" {
		if err := reg.Register(source.NewFileSource("file", p, decode)); err != nil {
			return err
		}
	}
	if u := s.config.HTTP.URL; u != "" {
		src, err := source.NewHTTPSource(source.HTTPOptions{
			URL:       u,
			Timeout:   s.config.HTTP.Timeout,
			UserAgent: s.config.HTTP.UserAgent,
			Decode:    decode,
		})
		if err != nil {
			return fmt.Errorf("http source: %w", err)
		}
		if err := reg.Register(src); err != nil {
			return err
		}
	}
	if b := s.config.GCS.Bucket; b != "" {
		src, err := source.NewGCSSource(source.GCSOptions{
			Bucket:          b,
			Object:          s.config.GCS.Object,
			CredentialsFile: s.config.GCS.CredentialsFile,
			Endpoint:        s.config.GCS.Endpoint,
			Decode:          decode,
		})
		if err != nil {
			return fmt.Errorf("gcs source: %w", err)
		}
		if err := reg.Register(src); err != nil {
			return err
		}
		s.closers = append(s.closers, src.Close)
	}
	if s.config.Mock.Enabled {
		src := source.NewMockSource(source.MockOptions{
			Apps:   s.config.Mock.Apps,
			Seed:   s.config.Mock.Seed,
			Decode: decode,
		})
		if err := reg.Register(src); err != nil {
			return err
		}
	}

	names := reg.Names()
	if len(names) == 0 {
		return errors.New("no catalog source configured")
	}
	if s.config.DefaultSource == "" {
		s.config.DefaultSource = names[0]
	}
	if _, err := reg.Get(s.config.DefaultSource); err != nil {
		return fmt.Errorf("default source: %w", err)
	}
	return nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), otelgin.Middleware("marketstats"))

	var limiter *rate.Limiter
	if s.config.RebuildRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.config.RebuildRate), s.config.RebuildBurst)
	}

	routes.SetupRoutes(s.router, &handlers.Deps{
		Store:          s.store,
		Graphs:         stats.DefaultRegistry(time.Now),
		Cache:          stats.NewResultCache(s.config.CacheEntries),
		Rebuild:        s.controller,
		Limiter:        limiter,
		Metrics:        s.metrics,
		SourceNames:    s.sources.Names,
		DefaultBuckets: s.config.DefaultBuckets,
		DefaultSource:  s.config.DefaultSource,
		MaxListing:     s.config.MaxListing,
	})
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
