// Package config loads and validates environment variables at startup.
// Fail-fast: a malformed number stops the process instead of being ignored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultSources are searched when a request names none.
var DefaultSources = []string{"weidianwarriors", "1688Reps", "RepsneakersDogs", "DesignerReps", "QualityReps"}

// Collector modes.
const (
	ModeFetcher = "fetcher"
	ModeSDK     = "sdk"
	ModeMock    = "mock"
)

// Config holds all runtime configuration.
type Config struct {
	Port          string
	CollectorMode string

	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string

	OAuthBase  string
	PublicBase string
	TokenURL   string

	MaxConcurrent int
	RPS           float64
	HTTPTimeout   time.Duration

	CacheRefresh time.Duration
	CacheTTL     time.Duration
	CacheFile    string

	FeedbackFile       string
	FeedbackFlushEvery int
	ConversionLog      string

	Sources     []string
	SourcesFile string
	VocabFile   string

	AffiliateBaseURL string
	AffiliateRef     string

	// ReadOnly is set on serverless hosts: files live in the temp dir and
	// no background jobs are scheduled.
	ReadOnly bool
}

// HasCredentials reports whether all four OAuth values are present.
func (c *Config) HasCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	mode := strings.ToLower(env("COLLECTOR_MODE", ModeFetcher))
	switch mode {
	case ModeFetcher, ModeSDK, ModeMock:
	default:
		return nil, fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'fetcher', 'sdk', or 'mock')", mode)
	}

	maxConc, err := positiveInt("MAX_CONCURRENT_REDDIT", 4)
	if err != nil {
		return nil, err
	}
	flushEvery, err := positiveInt("FEEDBACK_FLUSH_EVERY", 10)
	if err != nil {
		return nil, err
	}
	timeout, err := millis("HTTP_TIMEOUT_MS", 10*time.Second)
	if err != nil {
		return nil, err
	}
	refresh, err := millis("CACHE_REFRESH_MS", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	ttl, err := millis("CACHE_TTL_MS", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	rps := 0.0
	if s := os.Getenv("REDDIT_RPS"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("REDDIT_RPS must be a non-negative number, got %q", s)
		}
		rps = v
	}

	readOnly := os.Getenv("NETLIFY") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
	dataDir := "data"
	if readOnly {
		dataDir = os.Getenv("TMPDIR")
		if dataDir == "" {
			dataDir = "/tmp"
		}
	}

	sources := DefaultSources
	if s := os.Getenv("DEFAULT_SOURCES"); s != "" {
		sources = SplitList(s)
	}

	return &Config{
		Port:               env("PORT", "8080"),
		CollectorMode:      mode,
		ClientID:           os.Getenv("REDDIT_CLIENT_ID"),
		ClientSecret:       os.Getenv("REDDIT_CLIENT_SECRET"),
		Username:           os.Getenv("REDDIT_USERNAME"),
		Password:           os.Getenv("REDDIT_PASSWORD"),
		UserAgent:          os.Getenv("REDDIT_USER_AGENT"),
		OAuthBase:          os.Getenv("REDDIT_OAUTH_BASE"),
		PublicBase:         os.Getenv("REDDIT_PUBLIC_BASE"),
		TokenURL:           os.Getenv("REDDIT_TOKEN_URL"),
		MaxConcurrent:      maxConc,
		RPS:                rps,
		HTTPTimeout:        timeout,
		CacheRefresh:       refresh,
		CacheTTL:           ttl,
		CacheFile:          fileIn(dataDir, "CACHE_FILE", "cache.json", readOnly),
		FeedbackFile:       fileIn(dataDir, "FEEDBACK_FILE", "ml-data.json", readOnly),
		FeedbackFlushEvery: flushEvery,
		ConversionLog:      fileIn(dataDir, "CONVERSION_LOG", "conversions.ndjson", readOnly),
		Sources:            sources,
		SourcesFile:        os.Getenv("SOURCES_FILE"),
		VocabFile:          os.Getenv("VOCAB_FILE"),
		AffiliateBaseURL:   os.Getenv("AFFILIATE_BASE_URL"),
		AffiliateRef:       os.Getenv("AFFILIATE_REF"),
		ReadOnly:           readOnly,
	}, nil
}

// SplitList splits a comma separated list and drops empty items.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func millis(key string, def time.Duration) (time.Duration, error) {
	v, err := positiveInt(key, int(def/time.Millisecond))
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Millisecond, nil
}

// fileIn resolves a snapshot path. On read-only hosts an explicit path is
// reduced to its base name inside dir.
func fileIn(dir, key, name string, readOnly bool) string {
	if p := os.Getenv(key); p != "" {
		if readOnly {
			return filepath.Join(dir, filepath.Base(p))
		}
		return p
	}
	return filepath.Join(dir, name)
}
