// Package pipeline answers search and extract requests: it fans out to the
// collector, falls back to the cache, scores, filters and deduplicates.
package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/qepting91/linkfinder/internal/cache"
	"github.com/qepting91/linkfinder/internal/collector"
	"github.com/qepting91/linkfinder/internal/config"
	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/links"
	"github.com/qepting91/linkfinder/internal/metrics"
	"github.com/qepting91/linkfinder/internal/ranking"
	"github.com/qepting91/linkfinder/internal/shopping"
)

const conversionBuffer = 256

// Deps are the collaborators of a Service. Only Collector is required.
type Deps struct {
	Collector  domain.Collector
	Cache      *cache.Store
	Boosts     ranking.Boosts
	Converter  *shopping.Converter
	Vocabulary *ranking.Vocabulary
	Targets    []domain.Target
	ReadOnly   bool
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Now        func() time.Time

	// Conversions receives every affiliate rewrite. Sends never block;
	// a full channel drops the record.
	Conversions chan<- domain.Conversion
}

type Service struct {
	collector domain.Collector
	cache     *cache.Store
	scorer    *ranking.Scorer
	converter *shopping.Converter
	extractor *links.Extractor
	titles    *shopping.Phrases
	tagger    *shopping.Phrases
	sources   []string
	floors    map[string]int
	readOnly  bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	emitMu      sync.RWMutex
	conversions chan<- domain.Conversion
}

func New(d Deps) *Service {
	s := &Service{
		collector:   d.Collector,
		cache:       d.Cache,
		converter:   d.Converter,
		readOnly:    d.ReadOnly,
		metrics:     d.Metrics,
		logger:      d.Logger,
		now:         d.Now,
		conversions: d.Conversions,
		titles:      shopping.NewTitleFilter(),
		tagger:      shopping.NewLinkTagger(),
		floors:      make(map[string]int, len(d.Targets)),
	}
	if s.cache == nil {
		s.cache = cache.New(cache.Options{})
	}
	if s.converter == nil {
		s.converter = shopping.NewConverter(nil, shopping.DefaultAffiliate())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	m := s.metrics
	s.extractor = &links.Extractor{Rejected: func(f domain.Format, err error) {
		m.RejectedLink(string(f))
	}}
	s.scorer = ranking.NewScorer(ranking.Options{
		Boosts:     d.Boosts,
		Converter:  s.converter,
		Extractor:  s.extractor,
		Vocabulary: d.Vocabulary,
		Now:        s.now,
	})

	for _, t := range d.Targets {
		s.sources = append(s.sources, t.Source)
		s.floors[t.Source] = t.MinScore
	}
	return s
}

// Sources are the configured source keys, used when a search names none.
func (s *Service) Sources() []string {
	if len(s.sources) == 0 {
		return config.DefaultSources
	}
	return s.sources
}

// StopConversions detaches the conversion channel. After it returns the
// owner may close the channel.
func (s *Service) StopConversions() {
	s.emitMu.Lock()
	s.conversions = nil
	s.emitMu.Unlock()
}

// NewConversionChannel returns a channel sized for bursty searches.
func NewConversionChannel() chan domain.Conversion {
	return make(chan domain.Conversion, conversionBuffer)
}

func (s *Service) emit(convs []domain.Conversion) {
	if len(convs) == 0 {
		return
	}
	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	for _, c := range convs {
		s.logger.Debug("affiliate conversion", "origin", c.Origin, "platform", c.Platform, "id", c.ItemID, "affiliate", c.AffiliateURL)
		if s.conversions == nil {
			continue
		}
		select {
		case s.conversions <- c:
		default:
			s.logger.Warn("conversion log backlog, record dropped", "platform", c.Platform, "id", c.ItemID)
		}
	}
}

// Status describes credentials and cache freshness per source.
type Status struct {
	Auth       collector.AuthStatus `json:"auth"`
	ReadOnly   bool                 `json:"readOnly"`
	CacheTTLMs int64                `json:"cacheTtlMs"`
	Sources    []cache.SourceStatus `json:"sources"`
}

func (s *Service) Status() Status {
	st := Status{
		ReadOnly:   s.readOnly,
		CacheTTLMs: s.cache.TTL().Milliseconds(),
		Sources:    s.cache.Status(s.Sources()),
	}
	if ar, ok := s.collector.(collector.AuthReporter); ok {
		st.Auth = ar.AuthStatus()
	}
	return st
}
