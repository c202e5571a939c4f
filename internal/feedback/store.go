// Package feedback keeps the interaction counters and rating averages that
// nudge ranking over time.
package feedback

import (
	"errors"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/storage"
)

// Action is a user interaction with a result.
type Action string

const (
	ActionImpression Action = "impression"
	ActionClick      Action = "click"
	ActionBookmark   Action = "bookmark"
	ActionExtract    Action = "extract_links"
	ActionModalOpen  Action = "modal_open"
)

// Positive reports whether a reinforces the query tokens that led to it.
func (a Action) Positive() bool {
	return a == ActionClick || a == ActionBookmark || a == ActionExtract
}

// Tuning constants.
const (
	DefaultFlushEvery = 10
	Retention         = 30 * 24 * time.Hour
	CleanupInterval   = 24 * time.Hour

	maxRatings    = 50
	ratingDecay   = 0.95
	maxRating     = 5.0
	successStep   = 0.05
	boostStep     = 0.02
	maxBoost      = 2.0
	maxCTRBoost   = 2.0
	maxQuality    = 1.5
	clickWeight   = 0.5
	engageWeight  = 0.8
	subredditGain = 0.1
	authorGain    = 0.05
	minTokenLen   = 3
)

// Interaction is one recorded event in a session history.
type Interaction struct {
	Timestamp int64             `json:"timestamp"`
	Query     string            `json:"query"`
	ResultID  string            `json:"resultId"`
	Action    Action            `json:"action"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Pattern aggregates outcomes for one query token.
type Pattern struct {
	Boost       float64  `json:"boost"`
	Keywords    []string `json:"keywords"`
	Frequency   int      `json:"frequency"`
	SuccessRate float64  `json:"successRate"`
}

// CTR counts events for one query and result pair.
type CTR struct {
	Impressions int `json:"impressions"`
	Clicks      int `json:"clicks"`
	Bookmarks   int `json:"bookmarks"`
	Extractions int `json:"extractions"`
}

// Quality holds the most recent ratings for a subreddit or author.
type Quality struct {
	Ratings       []float64 `json:"ratings"`
	AverageRating float64   `json:"averageRating"`
	TotalFeedback int       `json:"totalFeedback"`
}

// Options configures a Store. Zero values pick defaults; an empty Path keeps
// the store in memory only.
type Options struct {
	Path       string
	FlushEvery int
	Logger     *slog.Logger
	Now        func() time.Time
}

// Store is safe for concurrent use. Disk writes happen outside the lock on
// a copy of the maps.
type Store struct {
	mu           sync.Mutex
	writeMu      sync.Mutex
	path         string
	flushEvery   int
	logger       *slog.Logger
	now          func() time.Time
	interactions map[string][]Interaction
	patterns     map[string]*Pattern
	ctr          map[string]*CTR
	quality      map[string]*Quality
	total        int
}

// New returns an empty store seeded with the cold-start patterns.
func New(opts Options) *Store {
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		path:       opts.Path,
		flushEvery: opts.FlushEvery,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	s.reset()
	s.seedDefaults()
	return s
}

// Open builds a store and loads opts.Path. A missing or unreadable snapshot
// leaves the cold-start state in place.
func Open(opts Options) *Store {
	s := New(opts)
	if s.path == "" {
		return s
	}
	if err := s.Load(); err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			s.logger.Info("no feedback snapshot, starting fresh", "path", s.path)
		} else {
			s.logger.Warn("feedback snapshot unreadable, starting fresh", "path", s.path, "err", err)
		}
	}
	return s
}

func (s *Store) reset() {
	s.interactions = make(map[string][]Interaction)
	s.patterns = make(map[string]*Pattern)
	s.ctr = make(map[string]*CTR)
	s.quality = make(map[string]*Quality)
	s.total = 0
}

func (s *Store) seedDefaults() {
	defaults := []struct {
		token    string
		boost    float64
		keywords []string
	}{
		{"jordan", 1.2, []string{"sneakers", "shoes", "basketball"}},
		{"yeezy", 1.3, []string{"adidas", "kanye", "boost"}},
		{"supreme", 1.1, []string{"streetwear", "box logo", "drop"}},
		{"qc", 1.4, []string{"quality", "check", "review"}},
		{"w2c", 1.5, []string{"where", "cop", "buy", "link"}},
	}
	for _, d := range defaults {
		s.patterns[d.token] = &Pattern{
			Boost:       d.boost,
			Keywords:    d.keywords,
			Frequency:   1,
			SuccessRate: 0.7,
		}
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func tokens(q string) []string {
	var out []string
	for _, w := range strings.Fields(normalizeQuery(q)) {
		if len(w) >= minTokenLen {
			out = append(out, w)
		}
	}
	return out
}

func ctrKey(query, resultID string) string {
	return normalizeQuery(query) + ":" + resultID
}

// RecordInteraction appends to the session history and updates the token
// patterns and the CTR counters for query and resultID. Every flushEvery-th
// interaction triggers a save.
func (s *Store) RecordInteraction(session, query, resultID string, action Action, meta map[string]string) error {
	if session == "" || strings.TrimSpace(query) == "" || resultID == "" || action == "" {
		return &domain.ValidationError{Field: "interaction", Reason: "session, query, resultId and action are required"}
	}

	s.mu.Lock()
	s.interactions[session] = append(s.interactions[session], Interaction{
		Timestamp: s.now().UnixMilli(),
		Query:     normalizeQuery(query),
		ResultID:  resultID,
		Action:    action,
		Metadata:  meta,
	})
	s.total++

	for _, tok := range tokens(query) {
		p, ok := s.patterns[tok]
		if !ok {
			p = &Pattern{Boost: 1.0, SuccessRate: 0.5}
			s.patterns[tok] = p
		}
		p.Frequency++
		if action.Positive() {
			p.SuccessRate = math.Min(1.0, p.SuccessRate+successStep)
			p.Boost = math.Min(maxBoost, p.Boost+boostStep)
		}
		if sub := meta["subreddit"]; sub != "" && !slices.Contains(p.Keywords, sub) {
			p.Keywords = append(p.Keywords, sub)
		}
	}

	key := ctrKey(query, resultID)
	c, ok := s.ctr[key]
	if !ok {
		c = &CTR{}
		s.ctr[key] = c
	}
	c.Impressions++
	switch action {
	case ActionClick:
		c.Clicks++
	case ActionBookmark:
		c.Bookmarks++
	case ActionExtract:
		c.Extractions++
	}

	var snap *snapshot
	if s.path != "" && s.total%s.flushEvery == 0 {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if snap != nil {
		if err := s.write(snap); err != nil {
			s.logger.Warn("feedback flush failed", "err", err)
		}
	}
	return nil
}

// RecordQualityFeedback adds a rating in [0,5] for kind:id.
func (s *Store) RecordQualityFeedback(kind, id string, rating float64) error {
	if kind == "" || id == "" {
		return &domain.ValidationError{Field: "feedback", Reason: "type and identifier are required"}
	}
	if math.IsNaN(rating) || rating < 0 || rating > maxRating {
		return &domain.ValidationError{Field: "rating", Reason: "must be between 0 and 5"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := kind + ":" + id
	q, ok := s.quality[key]
	if !ok {
		q = &Quality{}
		s.quality[key] = q
	}
	q.Ratings = append(q.Ratings, rating)
	q.TotalFeedback++
	if len(q.Ratings) > maxRatings {
		q.Ratings = append([]float64(nil), q.Ratings[len(q.Ratings)-maxRatings:]...)
	}
	q.AverageRating = decayedMean(q.Ratings)
	return nil
}

// decayedMean weights the newest rating 1 and each older one by a further
// factor of ratingDecay.
func decayedMean(ratings []float64) float64 {
	var sum, weights float64
	n := len(ratings)
	for i, r := range ratings {
		w := math.Pow(ratingDecay, float64(n-1-i))
		sum += r * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// QueryBoost is 1 plus the mean success-weighted boost excess of the query
// tokens with history. Unknown queries score 1.
func (s *Store) QueryBoost(query string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var excess float64
	matched := 0
	for _, tok := range tokens(query) {
		if p, ok := s.patterns[tok]; ok {
			excess += (p.Boost - 1.0) * p.SuccessRate
			matched++
		}
	}
	if matched == 0 {
		return 1.0
	}
	return 1.0 + excess/float64(matched)
}

// CTRBoost rewards results that were clicked or engaged with for this query.
func (s *Store) CTRBoost(query, resultID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.ctr[ctrKey(query, resultID)]
	if !ok || c.Impressions == 0 {
		return 1.0
	}
	imp := float64(c.Impressions)
	clickRate := float64(c.Clicks) / imp
	engagement := float64(c.Bookmarks+c.Extractions) / imp
	return math.Min(maxCTRBoost, 1.0+clickRate*clickWeight+engagement*engageWeight)
}

// QualityBoost derives a multiplier from the ratings of the post's
// subreddit and author.
func (s *Store) QualityBoost(subreddit, author string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	boost := 1.0
	if q, ok := s.quality["subreddit:"+subreddit]; ok {
		boost += q.AverageRating * subredditGain
	}
	if q, ok := s.quality["author:"+author]; ok {
		boost += q.AverageRating * authorGain
	}
	return math.Min(maxQuality, boost)
}

// Cleanup drops interactions older than the retention window and removes
// sessions left empty. Aggregates are never evicted.
func (s *Store) Cleanup() int {
	cutoff := s.now().Add(-Retention).UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for session, list := range s.interactions {
		kept := list[:0]
		for _, it := range list {
			if it.Timestamp > cutoff {
				kept = append(kept, it)
			}
		}
		removed += len(list) - len(kept)
		if len(kept) == 0 {
			delete(s.interactions, session)
			continue
		}
		s.interactions[session] = kept
	}
	s.total -= removed
	s.logger.Info("feedback cleanup completed", "removed", removed, "sessions", len(s.interactions))
	return removed
}

// TopQuery is one row of Stats.TopQueries.
type TopQuery struct {
	Query       string  `json:"query"`
	Frequency   int     `json:"frequency"`
	SuccessRate float64 `json:"successRate"`
	Boost       float64 `json:"boost"`
}

// Health summarises how much the store has learned.
type Health struct {
	Status         string  `json:"status"`
	Confidence     float64 `json:"confidence"`
	AvgSuccessRate float64 `json:"avgSuccessRate"`
}

// Stats is the read-only summary served to operators.
type Stats struct {
	TotalInteractions    int        `json:"totalInteractions"`
	UniqueQueries        int        `json:"uniqueQueries"`
	TrackedResults       int        `json:"trackedResults"`
	QualityFeedbackItems int        `json:"qualityFeedbackItems"`
	TopQueries           []TopQuery `json:"topQueries"`
	SystemHealth         Health     `json:"systemHealth"`
}

// Stats reports totals, the five most frequent tokens and the health block.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		TotalInteractions:    s.total,
		UniqueQueries:        len(s.patterns),
		TrackedResults:       len(s.ctr),
		QualityFeedbackItems: len(s.quality),
		TopQueries:           s.topQueriesLocked(5),
	}

	avg := 0.5
	if len(s.patterns) > 0 {
		keys := make([]string, 0, len(s.patterns))
		for k := range s.patterns {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sum float64
		for _, k := range keys {
			sum += s.patterns[k].SuccessRate
		}
		avg = sum / float64(len(s.patterns))
	}
	status := "learning"
	if s.total > 100 {
		status = "healthy"
	}
	st.SystemHealth = Health{
		Status:         status,
		Confidence:     math.Min(1.0, float64(s.total)/1000),
		AvgSuccessRate: avg,
	}
	return st
}

func (s *Store) topQueriesLocked(limit int) []TopQuery {
	out := make([]TopQuery, 0, len(s.patterns))
	for q, p := range s.patterns {
		out = append(out, TopQuery{Query: q, Frequency: p.Frequency, SuccessRate: p.SuccessRate, Boost: p.Boost})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopTokens returns up to limit query tokens by frequency.
func (s *Store) TopTokens(limit int) []TopQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topQueriesLocked(limit)
}
