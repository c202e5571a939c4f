package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/qepting91/linkfinder/internal/domain"
)

// Listing limits accepted by the upstream.
const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var (
	rePostID     = regexp.MustCompile(`^[a-z0-9]+$`)
	reRedditHost = regexp.MustCompile(`^https?://(?:[a-z0-9-]+\.)*reddit\.com`)
)

// RedditClient is the default collector. Every request goes through the
// Fetcher ladder.
type RedditClient struct {
	fetcher *Fetcher
}

func NewRedditClient(f *Fetcher) *RedditClient {
	return &RedditClient{fetcher: f}
}

func (rc *RedditClient) Fetcher() *Fetcher { return rc.fetcher }

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

func listingPath(source string, limit int) string {
	return fmt.Sprintf("/r/%s/new.json?limit=%d", url.PathEscape(source), clampLimit(limit))
}

func (rc *RedditClient) FetchNewPosts(ctx context.Context, source string, limit int) ([]domain.Post, error) {
	resp, err := rc.fetcher.Fetch(ctx, Request{SourceKey: source, Path: listingPath(source, limit)})
	if err != nil {
		return nil, err
	}
	return decodeListing(resp.Body, source)
}

// SearchPosts queries one source. If search is refused the newest listing
// is returned unfiltered; relevance is decided by the caller.
func (rc *RedditClient) SearchPosts(ctx context.Context, source, query string, opts domain.SearchOptions) ([]domain.Post, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("restrict_sr", "1")
	q.Set("limit", fmt.Sprint(clampLimit(opts.Limit)))
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Time != "" {
		q.Set("t", opts.Time)
	}

	req := Request{
		SourceKey: source,
		Path:      fmt.Sprintf("/r/%s/search.json?%s", url.PathEscape(source), q.Encode()),
		AltPath:   listingPath(source, opts.Limit),
	}
	resp, err := rc.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeListing(resp.Body, source)
}

// ThreadPath resolves a reference to the JSON path of its comments page.
func ThreadPath(ref domain.PostRef) (string, error) {
	if ref.Permalink != "" {
		p := reRedditHost.ReplaceAllString(strings.TrimSpace(ref.Permalink), "")
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		p = strings.TrimRight(p, "/")
		if !strings.HasPrefix(p, "/") {
			return "", &domain.ValidationError{Field: "permalink", Value: ref.Permalink, Reason: "not a post path"}
		}
		return p + ".json", nil
	}
	id := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ref.ID)), "t3_")
	if !rePostID.MatchString(id) {
		return "", &domain.ValidationError{Field: "id", Value: ref.ID, Reason: "not a post id"}
	}
	return "/comments/" + id + ".json", nil
}

// FetchPost reads a single post. A 404 from the upstream, or a thread
// without a post, is domain.ErrPostNotFound.
func (rc *RedditClient) FetchPost(ctx context.Context, ref domain.PostRef) (domain.Post, error) {
	path, err := ThreadPath(ref)
	if err != nil {
		return domain.Post{}, err
	}
	resp, err := rc.fetcher.Fetch(ctx, Request{SourceKey: path, Path: path})
	if err != nil {
		var ue *domain.UpstreamError
		if errors.As(err, &ue) && ue.Status == http.StatusNotFound {
			return domain.Post{}, domain.ErrPostNotFound
		}
		return domain.Post{}, err
	}
	p, ok, err := decodeThread(resp.Body, "")
	if err != nil {
		return domain.Post{}, err
	}
	if !ok {
		return domain.Post{}, domain.ErrPostNotFound
	}
	return p, nil
}
