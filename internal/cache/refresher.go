package cache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/metrics"
)

// RefreshLimit is the listing size fetched per source.
const RefreshLimit = 100

// Refresher repopulates the Store from the newest listing of each source.
type Refresher struct {
	Store     *Store
	Collector domain.Collector
	Sources   []string
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// RefreshAll refreshes every source and saves the snapshot once. A source
// that fails keeps its previous entry. It returns how many sources were
// refreshed.
func (r *Refresher) RefreshAll(ctx context.Context) int {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var ok atomic.Int32
	var g errgroup.Group
	for _, src := range r.Sources {
		g.Go(func() error {
			posts, err := r.Collector.FetchNewPosts(ctx, src, RefreshLimit)
			r.Metrics.CacheRefresh(err == nil)
			if err != nil {
				logger.Warn("cache refresh failed", "source", src, "err", err)
				return nil
			}
			for i := range posts {
				posts[i].Source = src
			}
			r.Store.Put(src, posts)
			ok.Add(1)
			logger.Debug("cache refreshed", "source", src, "posts", len(posts))
			return nil
		})
	}
	_ = g.Wait()

	n := int(ok.Load())
	if n > 0 {
		if err := r.Store.Save(); err != nil {
			logger.Error("cache save failed", "err", err)
		}
	}
	logger.Info("cache refresh cycle complete", "refreshed", n, "sources", len(r.Sources))
	return n
}

// Run adapts RefreshAll to a scheduler job.
func (r *Refresher) Run(ctx context.Context) { r.RefreshAll(ctx) }
