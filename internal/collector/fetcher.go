package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/metrics"
)

// Upstream endpoints.
const (
	DefaultOAuthBase  = "https://oauth.reddit.com"
	DefaultPublicBase = "https://www.reddit.com"
	DefaultTokenURL   = "https://www.reddit.com/api/v1/access_token"
	DefaultUserAgent  = "linkfinder/1.3 (+https://localhost)"
)

// Ladder rungs, in the order they can be reached.
const (
	RungAuth      = "auth"
	RungPublic    = "public"
	RungAlt       = "alt"
	RungAltPublic = "alt-public"
)

const maxBodyBytes = 8 << 20

// Request names one upstream read. AltPath, when set, is a listing that
// replaces Path if the upstream refuses it with 403 or 429.
type Request struct {
	SourceKey string
	Path      string
	AltPath   string
}

// Response is a successful upstream read and the rung that produced it.
type Response struct {
	Status int
	Body   []byte
	Rung   string
}

type FetcherConfig struct {
	OAuthBase  string
	PublicBase string
	UserAgent  string
	Client     *http.Client
	Tokens     *TokenSource
	Gate       *Gate
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Fetcher walks the fallback ladder for every request: authenticated, then
// public, then the alternate listing on both endpoints.
type Fetcher struct {
	oauthBase  string
	publicBase string
	userAgent  string
	client     *http.Client
	tokens     *TokenSource
	gate       *Gate
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		oauthBase:  cfg.OAuthBase,
		publicBase: cfg.PublicBase,
		userAgent:  cfg.UserAgent,
		client:     cfg.Client,
		tokens:     cfg.Tokens,
		gate:       cfg.Gate,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
	if f.oauthBase == "" {
		f.oauthBase = DefaultOAuthBase
	}
	if f.publicBase == "" {
		f.publicBase = DefaultPublicBase
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 10 * time.Second}
	}
	if f.gate == nil {
		f.gate = NewGate(4, 0)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// AuthStatus reports whether authenticated access is configured and a
// token is cached.
func (f *Fetcher) AuthStatus() AuthStatus { return f.tokens.Status() }

type state int

const (
	stateAuthPending state = iota
	stateRequesting
	stateRetrying
	stateFallback
	stateDone
	stateFailed
)

// phase is one path and the pair of rungs that serve it.
type phase struct {
	path       string
	authRung   string
	publicRung string
	alt        bool
}

type run struct {
	req      Request
	phase    phase
	st       state
	token    string
	tried    map[string]bool
	noAuth   bool
	reauthed bool

	resp   *Response
	status int
	rung   string
	err    error
}

// Fetch returns the first 2xx response along the ladder. When every rung
// fails it returns *domain.UpstreamError carrying the last status seen.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	r := &run{
		req:   req,
		phase: phase{path: req.Path, authRung: RungAuth, publicRung: RungPublic},
		tried: make(map[string]bool, 4),
	}
	r.st = stateAuthPending

	for r.st != stateDone && r.st != stateFailed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch r.st {
		case stateAuthPending:
			f.authenticate(ctx, r)
		case stateRequesting, stateRetrying:
			f.requestAuthenticated(ctx, r)
		case stateFallback:
			f.requestPublic(ctx, r)
		}
	}

	if r.st == stateDone {
		return r.resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.metrics.LadderFailure(r.status)
	f.logger.Warn("upstream ladder exhausted", "source", req.SourceKey, "status", r.status, "rung", r.rung)
	return nil, &domain.UpstreamError{Status: r.status, Source: req.SourceKey, Rung: r.rung, Err: r.err}
}

func (f *Fetcher) authenticate(ctx context.Context, r *run) {
	if f.tokens == nil || r.noAuth {
		r.st = stateFallback
		return
	}
	tok, err := f.tokens.Token(ctx)
	if err != nil {
		f.logger.Warn("token exchange failed, using public endpoint", "source", r.req.SourceKey, "err", err)
		r.err = err
		r.noAuth = true
		r.st = stateFallback
		return
	}
	r.token = tok
	r.st = stateRequesting
}

func (f *Fetcher) requestAuthenticated(ctx context.Context, r *run) {
	rung := r.phase.authRung
	r.tried[rung] = true
	resp, err := f.do(ctx, rung, f.oauthBase+r.phase.path, r.token)
	if f.finished(r, rung, resp, err) {
		return
	}
	if err != nil {
		r.st = stateFallback
		return
	}

	// One re-authentication per Fetch, whichever phase sees the 401.
	if resp.Status == http.StatusUnauthorized {
		if !r.reauthed {
			r.reauthed = true
			f.tokens.Invalidate()
			tok, terr := f.tokens.Token(ctx)
			if terr != nil {
				r.err = terr
				r.noAuth = true
				r.st = stateFallback
				return
			}
			r.token = tok
			r.st = stateRetrying
			return
		}
		r.st = stateFallback
		return
	}

	// A refusal of the authenticated primary path goes straight to the
	// alternate listing when there is one, otherwise to the public rung.
	// The alternate listing always gets a public try.
	if r.phase.alt || (refused(resp.Status) && r.req.AltPath == "") {
		r.st = stateFallback
		return
	}
	f.escalate(r)
}

func (f *Fetcher) requestPublic(ctx context.Context, r *run) {
	rung := r.phase.publicRung
	if r.tried[rung] {
		f.escalate(r)
		return
	}
	r.tried[rung] = true
	resp, err := f.do(ctx, rung, f.publicBase+r.phase.path, "")
	if f.finished(r, rung, resp, err) {
		return
	}
	f.escalate(r)
}

// finished records the attempt and reports whether it ended the run.
func (f *Fetcher) finished(r *run, rung string, resp *Response, err error) bool {
	r.rung = rung
	if err != nil {
		r.status = 0
		r.err = err
		return false
	}
	r.status = resp.Status
	if resp.Status >= 200 && resp.Status < 300 {
		r.resp = resp
		r.st = stateDone
		return true
	}
	r.err = fmt.Errorf("%s %s returned %d", rung, r.phase.path, resp.Status)
	return false
}

// escalate moves to the alternate listing when the upstream refused the
// primary path and one is available, otherwise the run fails.
func (f *Fetcher) escalate(r *run) {
	if !r.phase.alt && refused(r.status) && r.req.AltPath != "" {
		f.logger.Debug("switching to alternate listing", "source", r.req.SourceKey, "status", r.status)
		r.phase = phase{path: r.req.AltPath, authRung: RungAlt, publicRung: RungAltPublic, alt: true}
		r.st = stateAuthPending
		return
	}
	r.st = stateFailed
}

func refused(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}

func (f *Fetcher) do(ctx context.Context, rung, url, token string) (*Response, error) {
	release, err := f.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.FetchAttempt(rung, 0)
		f.logger.Debug("upstream transport error", "rung", rung, "err", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.metrics.FetchAttempt(rung, 0)
		return nil, err
	}
	f.metrics.FetchAttempt(rung, resp.StatusCode)
	return &Response{Status: resp.StatusCode, Body: body, Rung: rung}, nil
}
