package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"github.com/qepting91/linkfinder/internal/domain"
)

// APIClient is the SDK-backed collector. It has no fallback ladder; the
// upstream status is carried in the returned UpstreamError.
type APIClient struct {
	client  *reddit.Client
	limiter *rate.Limiter
}

func NewAPIClient(creds Credentials, userAgent string) (*APIClient, error) {
	rc := reddit.Credentials{
		ID:       creds.ClientID,
		Secret:   creds.ClientSecret,
		Username: creds.Username,
		Password: creds.Password,
	}

	client, err := reddit.NewClient(rc, reddit.WithUserAgent(userAgent))
	if err != nil {
		return nil, err
	}

	// API Rate Limit: ~60 reqs/min (safe buffer)
	limiter := rate.NewLimiter(rate.Every(1*time.Second), 1)

	return &APIClient{client: client, limiter: limiter}, nil
}

func (ac *APIClient) FetchNewPosts(ctx context.Context, source string, limit int) ([]domain.Post, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	posts, _, err := ac.client.Subreddit.NewPosts(ctx, source, &reddit.ListOptions{Limit: clampLimit(limit)})
	if err != nil {
		return nil, upstreamError(source, err)
	}
	return convertPosts(posts, source), nil
}

func (ac *APIClient) SearchPosts(ctx context.Context, source, query string, opts domain.SearchOptions) ([]domain.Post, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	search := &reddit.ListPostSearchOptions{
		ListPostOptions: reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: clampLimit(opts.Limit)},
			Time:        opts.Time,
		},
		Sort: opts.Sort,
	}
	posts, _, err := ac.client.Subreddit.SearchPosts(ctx, query, source, search)
	if err != nil {
		return nil, upstreamError(source, err)
	}
	return convertPosts(posts, source), nil
}

func (ac *APIClient) FetchPost(ctx context.Context, ref domain.PostRef) (domain.Post, error) {
	id := ref.ID
	if id == "" {
		id = postIDFromPermalink(ref.Permalink)
	}
	if id == "" {
		return domain.Post{}, &domain.ValidationError{Field: "permalink", Value: ref.Permalink, Reason: "no post id"}
	}
	if err := ac.limiter.Wait(ctx); err != nil {
		return domain.Post{}, err
	}

	pc, _, err := ac.client.Post.Get(ctx, id)
	if err != nil {
		err = upstreamError(id, err)
		var ue *domain.UpstreamError
		if errors.As(err, &ue) && ue.Status == http.StatusNotFound {
			return domain.Post{}, domain.ErrPostNotFound
		}
		return domain.Post{}, err
	}
	if pc == nil || pc.Post == nil {
		return domain.Post{}, domain.ErrPostNotFound
	}
	return convertPost(pc.Post, pc.Post.SubredditName), nil
}

// postIDFromPermalink returns the segment after "comments" in a post path.
func postIDFromPermalink(permalink string) string {
	parts := strings.Split(strings.Trim(permalink, "/"), "/")
	for i, p := range parts {
		if p == "comments" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func upstreamError(source string, err error) error {
	status := 0
	var er *reddit.ErrorResponse
	var rl *reddit.RateLimitError
	switch {
	case errors.As(err, &rl):
		status = http.StatusTooManyRequests
	case errors.As(err, &er) && er.Response != nil:
		status = er.Response.StatusCode
	}
	return &domain.UpstreamError{Status: status, Source: source, Rung: "sdk", Err: fmt.Errorf("authenticated api error: %w", err)}
}

func convertPosts(posts []*reddit.Post, source string) []domain.Post {
	result := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		result = append(result, convertPost(p, source))
	}
	return result
}

func convertPost(p *reddit.Post, source string) domain.Post {
	var created float64
	if p.Created != nil {
		created = float64(p.Created.Time.Unix())
	}
	return domain.Post{
		ID:           p.ID,
		Title:        p.Title,
		Body:         p.Body,
		Author:       p.Author,
		Subreddit:    p.SubredditName,
		Source:       source,
		Permalink:    p.Permalink,
		URL:          p.URL,
		Score:        p.Score,
		CommentCount: p.NumberOfComments,
		CreatedUTC:   created,
		IsSelf:       p.IsSelfPost,
		IsImage:      imageExt.MatchString(p.URL),
	}
}
