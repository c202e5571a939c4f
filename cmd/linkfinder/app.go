package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/qepting91/linkfinder/internal/cache"
	"github.com/qepting91/linkfinder/internal/collector"
	"github.com/qepting91/linkfinder/internal/config"
	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/feedback"
	"github.com/qepting91/linkfinder/internal/ingest"
	"github.com/qepting91/linkfinder/internal/metrics"
	"github.com/qepting91/linkfinder/internal/pipeline"
	"github.com/qepting91/linkfinder/internal/ranking"
	"github.com/qepting91/linkfinder/internal/shopping"
	"github.com/qepting91/linkfinder/internal/storage"
)

// app holds the process-wide components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	collector domain.Collector
	cache     *cache.Store
	feedback  *feedback.Store
	targets   []domain.Target
	service   *pipeline.Service

	conversions chan domain.Conversion
	writerWg    sync.WaitGroup
}

func newApp(logger *slog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	coll, err := collector.NewCollector(cfg, m, logger)
	if err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}
	logger.Info("collector initialized", "mode", cfg.CollectorMode, "oauth", cfg.HasCredentials(), "read_only", cfg.ReadOnly)

	store := cache.New(cache.Options{Path: cfg.CacheFile, TTL: cfg.CacheTTL, Logger: logger})
	if err := store.Load(); err != nil {
		logger.Info("starting with an empty cache", "path", cfg.CacheFile)
	}

	fb := feedback.Open(feedback.Options{
		Path:       cfg.FeedbackFile,
		FlushEvery: cfg.FeedbackFlushEvery,
		Logger:     logger,
	})

	a := &app{
		cfg:         cfg,
		logger:      logger,
		registry:    reg,
		metrics:     m,
		collector:   coll,
		cache:       store,
		feedback:    fb,
		targets:     loadTargets(cfg, logger),
		conversions: pipeline.NewConversionChannel(),
	}

	aff := shopping.DefaultAffiliate()
	if cfg.AffiliateBaseURL != "" {
		aff.BaseURL = cfg.AffiliateBaseURL
	}
	if cfg.AffiliateRef != "" {
		aff.Ref = cfg.AffiliateRef
	}

	a.service = pipeline.New(pipeline.Deps{
		Collector:   coll,
		Cache:       store,
		Boosts:      fb,
		Converter:   shopping.NewConverter(nil, aff),
		Vocabulary:  ranking.NewVocabulary(loadVocabulary(cfg, logger)...),
		Targets:     a.targets,
		ReadOnly:    cfg.ReadOnly,
		Metrics:     m,
		Logger:      logger,
		Conversions: a.conversions,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.ConversionLog), 0o755); err != nil {
		logger.Warn("conversion log directory unavailable", "path", cfg.ConversionLog, "err", err)
	}
	writer := &storage.WriterService{FilePath: cfg.ConversionLog, Logger: logger}
	a.writerWg.Add(1)
	go writer.Start(&a.writerWg, a.conversions)

	return a, nil
}

// loadTargets prefers SOURCES_FILE, which also carries per-source score
// floors, over DEFAULT_SOURCES.
func loadTargets(cfg *config.Config, logger *slog.Logger) []domain.Target {
	if cfg.SourcesFile != "" {
		targets, err := ingest.LoadTargets(cfg.SourcesFile)
		if err == nil && len(targets) > 0 {
			logger.Info("sources loaded", "path", cfg.SourcesFile, "count", len(targets))
			return targets
		}
		logger.Warn("sources file unusable, using DEFAULT_SOURCES", "path", cfg.SourcesFile, "err", err)
	}
	targets := make([]domain.Target, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		targets = append(targets, domain.Target{Source: s})
	}
	return targets
}

func loadVocabulary(cfg *config.Config, logger *slog.Logger) []string {
	if cfg.VocabFile == "" {
		return nil
	}
	terms, err := ingest.LoadKeywords(cfg.VocabFile)
	if err != nil {
		logger.Warn("vocabulary file unusable", "path", cfg.VocabFile, "err", err)
		return nil
	}
	logger.Info("vocabulary loaded", "path", cfg.VocabFile, "terms", len(terms))
	return terms
}

func (a *app) refresher() *cache.Refresher {
	return &cache.Refresher{
		Store:     a.cache,
		Collector: a.collector,
		Sources:   ingest.Names(a.targets),
		Metrics:   a.metrics,
		Logger:    a.logger,
	}
}

// close drains the conversion log and flushes the feedback store.
func (a *app) close() {
	a.service.StopConversions()
	close(a.conversions)
	a.writerWg.Wait()
	if err := a.feedback.Close(); err != nil {
		a.logger.Warn("feedback flush failed", "err", err)
	}
}
