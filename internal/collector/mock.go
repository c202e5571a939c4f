package collector

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/qepting91/linkfinder/internal/domain"
)

var mockItems = []string{
	"https://weidian.com/item.html?itemID=%d",
	"https://item.taobao.com/item.htm?id=%d",
	"https://detail.1688.com/offer/%d.html",
}

// MockClient implements domain.Collector but returns fake data
type MockClient struct {
	now func() time.Time
}

func NewMockClient() *MockClient {
	return &MockClient{now: time.Now}
}

func (mc *MockClient) FetchNewPosts(ctx context.Context, source string, limit int) ([]domain.Post, error) {
	return mc.generate(ctx, source, "", clampLimit(limit))
}

func (mc *MockClient) SearchPosts(ctx context.Context, source, query string, opts domain.SearchOptions) ([]domain.Post, error) {
	return mc.generate(ctx, source, query, clampLimit(opts.Limit))
}

func (mc *MockClient) FetchPost(ctx context.Context, ref domain.PostRef) (domain.Post, error) {
	id := ref.ID
	if id == "" {
		id = postIDFromPermalink(ref.Permalink)
	}
	if id == "" {
		return domain.Post{}, domain.ErrPostNotFound
	}
	posts, err := mc.generate(ctx, "mock", "", 1)
	if err != nil {
		return domain.Post{}, err
	}
	p := posts[0]
	p.ID = id
	return p, nil
}

func (mc *MockClient) generate(ctx context.Context, source, query string, limit int) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(query)
	if topic == "" {
		topic = "haul"
	}

	posts := make([]domain.Post, 0, limit)
	for i := 0; i < limit; i++ {
		// Generate random "fake" posts
		link := fmt.Sprintf(mockItems[i%len(mockItems)], 1000+i)
		posts = append(posts, domain.Post{
			ID:           fmt.Sprintf("mock%s%d", strings.ToLower(source), i),
			Title:        fmt.Sprintf("[W2C] %s find #%d", topic, i),
			Body:         fmt.Sprintf("Great %s batch, link: %s", topic, link),
			Subreddit:    source,
			Source:       source,
			Author:       "simulated_user",
			Permalink:    fmt.Sprintf("/r/%s/comments/mock%d/", source, i),
			URL:          "http://localhost/mock-url",
			Score:        rand.Intn(500),
			CommentCount: rand.Intn(50),
			CreatedUTC:   float64(mc.now().Add(-time.Duration(i) * time.Hour).Unix()),
			IsSelf:       true,
		})
	}
	return posts, nil
}
