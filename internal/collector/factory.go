package collector

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/qepting91/linkfinder/internal/config"
	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/metrics"
)

// AuthReporter is implemented by collectors that can describe their
// credential state.
type AuthReporter interface {
	AuthStatus() AuthStatus
}

func (rc *RedditClient) AuthStatus() AuthStatus { return rc.fetcher.AuthStatus() }

// NewCollector selects the correct implementation based on the MODE
func NewCollector(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (domain.Collector, error) {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	creds := Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Username:     cfg.Username,
		Password:     cfg.Password,
	}

	switch cfg.CollectorMode {
	case config.ModeFetcher, "":
		client := &http.Client{Timeout: cfg.HTTPTimeout}
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		f := NewFetcher(FetcherConfig{
			OAuthBase:  cfg.OAuthBase,
			PublicBase: cfg.PublicBase,
			UserAgent:  userAgent,
			Client:     client,
			Tokens:     NewTokenSource(creds, tokenURL, userAgent, client),
			Gate:       NewGate(cfg.MaxConcurrent, cfg.RPS),
			Metrics:    m,
			Logger:     logger,
		})
		return NewRedditClient(f), nil
	case config.ModeSDK:
		if !creds.Complete() {
			return nil, fmt.Errorf("COLLECTOR_MODE=sdk requires REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USERNAME and REDDIT_PASSWORD")
		}
		return NewAPIClient(creds, userAgent)
	case config.ModeMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'fetcher', 'sdk', or 'mock')", cfg.CollectorMode)
	}
}
