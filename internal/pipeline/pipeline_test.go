package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/linkfinder/internal/cache"
	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/metrics"
	"github.com/qepting91/linkfinder/internal/pipeline"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type fakeCollector struct {
	posts   map[string][]domain.Post
	errs    map[string]error
	post    domain.Post
	postErr error
}

func (f *fakeCollector) FetchNewPosts(ctx context.Context, source string, limit int) ([]domain.Post, error) {
	return f.SearchPosts(ctx, source, "", domain.SearchOptions{Limit: limit})
}

func (f *fakeCollector) SearchPosts(_ context.Context, source, _ string, _ domain.SearchOptions) ([]domain.Post, error) {
	if err := f.errs[source]; err != nil {
		return nil, err
	}
	return append([]domain.Post(nil), f.posts[source]...), nil
}

func (f *fakeCollector) FetchPost(context.Context, domain.PostRef) (domain.Post, error) {
	return f.post, f.postErr
}

func post(id, title, body string) domain.Post {
	return domain.Post{
		ID:           id,
		Title:        title,
		Body:         body,
		Author:       "finder",
		Subreddit:    "Reps",
		Permalink:    "/r/Reps/comments/" + id + "/x/",
		Score:        120,
		CommentCount: 14,
		CreatedUTC:   float64(now.Add(-5 * time.Hour).Unix()),
		IsSelf:       true,
	}
}

func newService(t *testing.T, c domain.Collector, store *cache.Store) (*pipeline.Service, chan domain.Conversion, *metrics.Metrics) {
	t.Helper()
	if store == nil {
		store = cache.New(cache.Options{Now: clock})
	}
	ch := pipeline.NewConversionChannel()
	m := metrics.New(prometheus.NewRegistry())
	svc := pipeline.New(pipeline.Deps{
		Collector:   c,
		Cache:       store,
		Targets:     []domain.Target{{Source: "A"}, {Source: "B"}},
		Metrics:     m,
		Now:         clock,
		Conversions: ch,
	})
	return svc, ch, m
}

func upstream(status int, src string) error {
	return &domain.UpstreamError{Status: status, Source: src, Rung: "alt-public"}
}

func TestSearch_WeidianEndToEnd(t *testing.T) {
	c := &fakeCollector{posts: map[string][]domain.Post{
		"A": {post("p1", "Found these", "check https://weidian.com/?itemID=999 cool shoes")},
	}}
	svc, ch, m := newService(t, c, nil)

	resp, err := svc.Search(context.Background(), "shoes", pipeline.Options{Sources: []string{"A"}})
	require.NoError(t, err)
	assert.Equal(t, pipeline.SourceLive, resp.Source)
	assert.NotEmpty(t, resp.RequestID)
	require.Equal(t, 1, resp.Count)

	r := resp.Results[0]
	require.Len(t, r.ShoppingLinks, 1)
	assert.Equal(t, "weidian", r.ShoppingLinks[0].Platform)
	assert.Equal(t, "999", r.ShoppingLinks[0].ItemID)
	assert.Contains(t, r.ShoppingLinks[0].AffiliateURL, "id=999")
	assert.Equal(t, "A", r.Source)
	assert.Len(t, resp.Best, 1)

	select {
	case conv := <-ch:
		assert.Equal(t, "search", conv.Origin)
		assert.Equal(t, "p1", conv.PostID)
		assert.Equal(t, "999", conv.ItemID)
	default:
		t.Fatal("no conversion recorded")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("live")))
}

func TestSearch_AllRateLimitedWithEmptyCache(t *testing.T) {
	c := &fakeCollector{errs: map[string]error{
		"A": upstream(429, "A"),
		"B": upstream(403, "B"),
	}}
	svc, _, _ := newService(t, c, nil)

	resp, err := svc.Search(context.Background(), "shoes", pipeline.Options{})
	require.NoError(t, err)
	assert.Equal(t, pipeline.SourceEmpty, resp.Source)
	assert.Equal(t, pipeline.WarnRateLimited, resp.Warning)
	assert.NotEmpty(t, resp.Details)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Len(t, resp.Failures, 2)
	assert.Equal(t, []string{"A", "B"}, resp.Sources)
}

func TestSearch_RestrictedWarning(t *testing.T) {
	c := &fakeCollector{errs: map[string]error{"A": upstream(403, "A"), "B": errors.New("dial tcp: refused")}}
	svc, _, _ := newService(t, c, nil)

	resp, err := svc.Search(context.Background(), "shoes", pipeline.Options{})
	require.NoError(t, err)
	assert.Equal(t, pipeline.WarnRestricted, resp.Warning)
}

func TestSearch_FallsBackToFreshCache(t *testing.T) {
	store := cache.New(cache.Options{Now: clock})
	store.Put("A", []domain.Post{post("c1", "Cached", "shoes https://item.taobao.com/item.htm?id=77")})
	c := &fakeCollector{errs: map[string]error{"A": upstream(500, "A"), "B": upstream(500, "B")}}
	svc, _, _ := newService(t, c, store)

	resp, err := svc.Search(context.Background(), "shoes", pipeline.Options{})
	require.NoError(t, err)
	assert.Equal(t, pipeline.SourceCache, resp.Source)
	assert.Equal(t, pipeline.WarnUnavailable, resp.Warning)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "taobao:77", resp.Results[0].ShoppingLinks[0].CanonicalID)
	assert.Equal(t, "A", resp.Results[0].Source)
}

func TestSearch_SameProductCollapses(t *testing.T) {
	hot := post("hot", "Shoes", "shoes https://weidian.com/?itemID=5")
	hot.Score = 5000
	cold := post("cold", "Shoes", "shoes https://weidian.com/item.html?itemID=5&spm=abc")
	c := &fakeCollector{posts: map[string][]domain.Post{"A": {cold}, "B": {hot}}}
	svc, _, _ := newService(t, c, nil)

	resp, err := svc.Search(context.Background(), "shoes", pipeline.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "hot", resp.Results[0].ID)
}

func TestSearch_FiltersAndPartialFailure(t *testing.T) {
	lowScore := post("low", "Shoes", "shoes https://weidian.com/?itemID=1")
	lowScore.Score = 2
	weekly := post("weekly", "Weekly Thread: shoes", "shoes https://weidian.com/?itemID=2")
	noShop := post("noshop", "Shoes", "shoes https://example.com/shoes")
	good := post("good", "Shoes", "shoes https://weidian.com/?itemID=3")
	c := &fakeCollector{
		posts: map[string][]domain.Post{"A": {lowScore, weekly, noShop, good}},
		errs:  map[string]error{"B": upstream(429, "B")},
	}
	svc, _, _ := newService(t, c, nil)

	resp, err := svc.Search(context.Background(), "shoes", pipeline.Options{MinScore: 10})
	require.NoError(t, err)
	assert.Equal(t, pipeline.SourceLive, resp.Source)
	assert.Empty(t, resp.Warning)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, 429, resp.Failures[0].Status)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "good", resp.Results[0].ID)

	resp, err = svc.Search(context.Background(), "shoes", pipeline.Options{Sources: []string{"A"}, Type: pipeline.TypeImage})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Count)
}

func TestSearch_SortAndBestLimit(t *testing.T) {
	older := post("older", "Shoes", "shoes https://weidian.com/?itemID=10")
	older.CreatedUTC = float64(now.Add(-48 * time.Hour).Unix())
	older.Score = 900
	newer := post("newer", "Shoes", "shoes https://weidian.com/?itemID=11")
	c := &fakeCollector{posts: map[string][]domain.Post{"A": {older, newer}}}
	svc, _, _ := newService(t, c, nil)

	resp, err := svc.Search(context.Background(), "shoes", pipeline.Options{Sources: []string{"A"}, Sort: "new", BestLimit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "newer", resp.Results[0].ID)
	require.Len(t, resp.Best, 1)
	assert.GreaterOrEqual(t, resp.Best[0].RankScore, resp.Results[0].RankScore)
	assert.GreaterOrEqual(t, resp.Best[0].RankScore, resp.Results[1].RankScore)
}

func TestSearch_ThresholdClamped(t *testing.T) {
	c := &fakeCollector{posts: map[string][]domain.Post{"A": {post("p", "Shoes", "shoes https://weidian.com/?itemID=1")}}}
	svc, _, _ := newService(t, c, nil)

	high := 7.0
	resp, err := svc.Search(context.Background(), "shoes", pipeline.Options{Sources: []string{"A"}, Threshold: &high})
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.Threshold)

	low := -3.0
	resp, err = svc.Search(context.Background(), "shoes", pipeline.Options{Sources: []string{"A"}, Threshold: &low})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Threshold)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, pipeline.DefaultBestLimit, resp.BestLimit)
}

func TestSearch_RequiresQuery(t *testing.T) {
	svc, _, _ := newService(t, &fakeCollector{}, nil)
	_, err := svc.Search(context.Background(), "  ", pipeline.Options{})
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestExtract_Live(t *testing.T) {
	p := post("e1", "Haul", "shoes https://weidian.com/?itemID=42 and https://example.com/blog also https://item.taobao.com/item.htm?id=8 shoes")
	svc, ch, _ := newService(t, &fakeCollector{post: p}, nil)

	resp, err := svc.Extract(context.Background(), pipeline.Ref{ID: "e1"}, "shoes")
	require.NoError(t, err)
	assert.Equal(t, pipeline.SourceLive, resp.Source)
	require.Len(t, resp.Links, 2)
	assert.Equal(t, "weidian", resp.Links[0].Platform)
	assert.Contains(t, resp.Links[0].Keywords, "weidian")
	assert.Equal(t, "post", resp.Links[0].Origin)
	assert.Equal(t, pipeline.ExtractStats{TotalLinks: 2, FromPost: 2, WithKeywords: 2, Domains: 2}, resp.Stats)
	assert.Len(t, resp.ConvertedLinks, 2)
	assert.Equal(t, "Haul", resp.Post.Title)
	assert.Len(t, ch, 2)
}

func TestExtract_Errors(t *testing.T) {
	svc, _, _ := newService(t, &fakeCollector{postErr: domain.ErrPostNotFound}, nil)
	_, err := svc.Extract(context.Background(), pipeline.Ref{ID: "x"}, "")
	assert.ErrorIs(t, err, domain.ErrPostNotFound)

	svc, _, _ = newService(t, &fakeCollector{postErr: upstream(429, "x")}, nil)
	_, err = svc.Extract(context.Background(), pipeline.Ref{ID: "x"}, "")
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.True(t, ue.RateLimited())

	_, err = svc.Extract(context.Background(), pipeline.Ref{URL: "https://example.com/r/x"}, "")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Extract(context.Background(), pipeline.Ref{}, "")
	assert.ErrorAs(t, err, &ve)
}

func TestExtract_FallsBackToCache(t *testing.T) {
	store := cache.New(cache.Options{Now: clock})
	store.Put("A", []domain.Post{post("abc12", "Cached haul", "https://weidian.com/?itemID=7")})

	svc, _, _ := newService(t, &fakeCollector{postErr: upstream(502, "x")}, store)
	resp, err := svc.Extract(context.Background(), pipeline.Ref{Permalink: "https://www.reddit.com/r/A/comments/abc12/title/"}, "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.SourceCache, resp.Source)
	require.Len(t, resp.Links, 1)
	assert.Equal(t, "weidian:7", resp.Links[0].CanonicalID)

	resp, err = svc.Extract(context.Background(), pipeline.Ref{ID: "missing"}, "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.SourceEmpty, resp.Source)
	assert.NotEmpty(t, resp.Warning)
	assert.Empty(t, resp.Links)
}

func TestStatus(t *testing.T) {
	store := cache.New(cache.Options{Now: clock})
	store.Put("A", []domain.Post{{ID: "1"}})
	svc, _, _ := newService(t, &fakeCollector{}, store)

	st := svc.Status()
	assert.False(t, st.Auth.UseOAuth)
	require.Len(t, st.Sources, 2)
	assert.True(t, st.Sources[0].Fresh)
	assert.False(t, st.Sources[1].Cached)
	assert.Equal(t, (24 * time.Hour).Milliseconds(), st.CacheTTLMs)
}
