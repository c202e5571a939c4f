package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/qepting91/linkfinder/internal/domain"
)

// Search defaults and bounds.
const (
	DefaultSort        = "relevance"
	DefaultTime        = "all"
	DefaultLimit       = 50
	MaxLimit           = 100
	DefaultThreshold   = 0.45
	DefaultBestLimit   = 12
	MaxBestLimit       = 50
	cacheThresholdDrop = 0.1
	cacheThresholdMin  = 0.3
)

// Response sources.
const (
	SourceLive  = "live"
	SourceCache = "cache"
	SourceEmpty = "empty"
)

// Warnings shown when every source failed.
const (
	WarnRateLimited = "Upstream rate limit reached. Try again later."
	WarnRestricted  = "Upstream access is restricted for the requested sources."
	WarnUnavailable = "Unable to fetch results from the upstream right now."
)

// Content types accepted by Options.Type.
const (
	TypeAll   = "all"
	TypeImage = "image"
	TypeText  = "text"
	TypeLink  = "link"
)

type Options struct {
	Sources  []string
	Sort     string
	Time     string
	Limit    int
	Type     string
	MinScore int
	// Threshold is the minimum quality score; nil means DefaultThreshold.
	Threshold *float64
	BestLimit int
}

func (o Options) withDefaults(fallback []string) Options {
	if len(o.Sources) == 0 {
		o.Sources = fallback
	}
	if o.Sort == "" {
		o.Sort = DefaultSort
	}
	if o.Time == "" {
		o.Time = DefaultTime
	}
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultLimit
	case o.Limit > MaxLimit:
		o.Limit = MaxLimit
	}
	switch o.Type {
	case TypeImage, TypeText, TypeLink:
	default:
		o.Type = TypeAll
	}
	t := DefaultThreshold
	if o.Threshold != nil {
		t = min(max(*o.Threshold, 0), 1)
	}
	o.Threshold = &t
	switch {
	case o.BestLimit <= 0:
		o.BestLimit = DefaultBestLimit
	case o.BestLimit > MaxBestLimit:
		o.BestLimit = MaxBestLimit
	}
	o.MinScore = max(o.MinScore, 0)
	return o
}

// SourceFailure is one source that could not be fetched live.
type SourceFailure struct {
	Source string `json:"source"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error"`
}

type Response struct {
	RequestID string                `json:"request_id"`
	Query     string                `json:"query"`
	Sources   []string              `json:"subreddits"`
	Sort      string                `json:"sort"`
	Time      string                `json:"t"`
	Count     int                   `json:"count"`
	Threshold float64               `json:"quality_threshold"`
	BestLimit int                   `json:"best_limit"`
	Results   []domain.RankedResult `json:"results"`
	Best      []domain.RankedResult `json:"best"`
	Warning   string                `json:"warning,omitempty"`
	Details   string                `json:"details,omitempty"`
	Source    string                `json:"source"`
	Failures  []SourceFailure       `json:"failures,omitempty"`
}

// Search runs query against every requested source. Upstream failures never
// produce an error: the response falls back to the cache, then to an empty
// result carrying a warning.
func (s *Service) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.ValidationError{Field: "q", Reason: "query is required"}
	}
	start := s.now()
	opts = opts.withDefaults(s.Sources())

	resp := &Response{
		RequestID: uuid.NewString(),
		Query:     query,
		Sources:   opts.Sources,
		Sort:      opts.Sort,
		Time:      opts.Time,
		Threshold: *opts.Threshold,
		BestLimit: opts.BestLimit,
		Results:   []domain.RankedResult{},
		Best:      []domain.RankedResult{},
		Source:    SourceLive,
	}
	defer func() { s.metrics.Search(resp.Source, s.now().Sub(start)) }()

	posts, failures := s.fanOut(ctx, query, opts)
	resp.Failures = failures

	if len(posts) == 0 && len(failures) > 0 {
		resp.Warning, resp.Details = diagnose(failures)
		posts = s.fromCache(opts.Sources)
		if len(posts) == 0 {
			resp.Source = SourceEmpty
			s.logger.Warn("search degraded to empty result", "query", query, "failed", len(failures), "request_id", resp.RequestID)
			return resp, nil
		}
		resp.Source = SourceCache
		s.logger.Info("search served from cache", "query", query, "posts", len(posts), "request_id", resp.RequestID)
	}

	threshold := *opts.Threshold
	if resp.Source == SourceCache {
		threshold = max(cacheThresholdMin, threshold-cacheThresholdDrop)
	}

	results := make([]domain.RankedResult, 0, len(posts))
	for _, p := range posts {
		if p.Score < max(opts.MinScore, s.floors[p.Source]) {
			continue
		}
		if s.titles.Any(p.Title) {
			continue
		}
		r := s.scorer.Score(p, query)
		if !r.HasShopping || !matchesType(r.Post, opts.Type) || r.QualityScore < threshold {
			continue
		}
		results = append(results, r)
	}

	sortResults(results, opts.Sort)
	results = dedupe(results)

	best := make([]domain.RankedResult, len(results))
	copy(best, results)
	sort.SliceStable(best, func(i, j int) bool { return best[i].RankScore > best[j].RankScore })
	if len(best) > opts.BestLimit {
		best = best[:opts.BestLimit]
	}

	resp.Results = results
	resp.Best = best
	resp.Count = len(results)

	s.emit(s.conversionsFor(results, query))
	s.logger.Info("search complete", "query", query, "results", resp.Count, "source", resp.Source, "request_id", resp.RequestID)
	return resp, nil
}

// fanOut queries every source concurrently. Results keep source order.
func (s *Service) fanOut(ctx context.Context, query string, opts Options) ([]domain.Post, []SourceFailure) {
	type outcome struct {
		posts []domain.Post
		err   error
	}
	outcomes := make([]outcome, len(opts.Sources))
	search := domain.SearchOptions{Sort: opts.Sort, Time: opts.Time, Limit: opts.Limit}

	var wg sync.WaitGroup
	for i, src := range opts.Sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			posts, err := s.collector.SearchPosts(ctx, src, query, search)
			outcomes[i] = outcome{posts: posts, err: err}
		}()
	}
	wg.Wait()

	var posts []domain.Post
	var failures []SourceFailure
	for i, o := range outcomes {
		src := opts.Sources[i]
		if o.err != nil {
			s.logger.Warn("source search failed", "source", src, "query", query, "err", o.err)
			f := SourceFailure{Source: src, Error: o.err.Error()}
			var ue *domain.UpstreamError
			if errors.As(o.err, &ue) {
				f.Status = ue.Status
			}
			failures = append(failures, f)
			continue
		}
		for _, p := range o.posts {
			p.Source = src
			posts = append(posts, p)
		}
	}
	return posts, failures
}

// diagnose picks the warning for a search in which every source failed.
func diagnose(failures []SourceFailure) (string, string) {
	warning := WarnUnavailable
	for _, f := range failures {
		if f.Status == http.StatusTooManyRequests {
			warning = WarnRateLimited
			break
		}
		if f.Status == http.StatusForbidden {
			warning = WarnRestricted
		}
	}
	details := failures[0].Error
	for _, f := range failures {
		if f.Status != 0 {
			details = f.Error
			break
		}
	}
	return warning, details
}

func (s *Service) fromCache(sources []string) []domain.Post {
	var posts []domain.Post
	for _, src := range sources {
		e, ok := s.cache.Fresh(src)
		if !ok {
			continue
		}
		for _, p := range e.Posts {
			p.Source = src
			posts = append(posts, p)
		}
	}
	return posts
}

func matchesType(p domain.Post, t string) bool {
	switch t {
	case TypeImage:
		return p.IsImage
	case TypeText:
		return p.IsText()
	case TypeLink:
		return p.IsLink()
	}
	return true
}

func sortResults(results []domain.RankedResult, key string) {
	var less func(a, b domain.RankedResult) bool
	switch key {
	case "top":
		less = func(a, b domain.RankedResult) bool { return a.Score > b.Score }
	case "new":
		less = func(a, b domain.RankedResult) bool { return a.CreatedUTC > b.CreatedUTC }
	case "comments":
		less = func(a, b domain.RankedResult) bool { return a.CommentCount > b.CommentCount }
	default:
		less = func(a, b domain.RankedResult) bool { return a.RankScore > b.RankScore }
	}
	sort.SliceStable(results, func(i, j int) bool { return less(results[i], results[j]) })
}

// dedupe keeps the first result that mentions each product. Later results
// lose the matches already seen and are dropped when none remain.
func dedupe(results []domain.RankedResult) []domain.RankedResult {
	seen := make(map[string]bool)
	out := results[:0]
	for _, r := range results {
		kept := make([]domain.ShoppingMatch, 0, len(r.ShoppingLinks))
		for _, m := range r.ShoppingLinks {
			if seen[m.CanonicalID] {
				continue
			}
			seen[m.CanonicalID] = true
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			continue
		}
		r.ShoppingLinks = kept
		out = append(out, r)
	}
	return out
}

func (s *Service) conversionsFor(results []domain.RankedResult, query string) []domain.Conversion {
	at := s.now()
	var out []domain.Conversion
	for _, r := range results {
		for _, m := range r.ShoppingLinks {
			if c, ok := s.converter.Conversion(m, "search", query, r.ID, at); ok {
				out = append(out, c)
			}
		}
	}
	return out
}
