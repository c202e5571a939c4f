package collector

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/qepting91/linkfinder/internal/domain"
)

// Token lifetime handling.
const (
	tokenEarlyRefresh   = 60 * time.Second
	defaultTokenExpires = time.Hour
)

// Credentials are the script-app credentials for the password grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Complete reports whether every field is set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

// userAgentTransport stamps every outbound request with the User-Agent the
// upstream requires.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// TokenSource exchanges credentials for a bearer token and caches it until
// shortly before it expires.
type TokenSource struct {
	cfg    oauth2.Config
	creds  Credentials
	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource returns nil when creds are incomplete, which the fetcher
// treats as unauthenticated mode.
func NewTokenSource(creds Credentials, tokenURL, userAgent string, client *http.Client) *TokenSource {
	if !creds.Complete() {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	withUA := *client
	withUA.Transport = &userAgentTransport{base: client.Transport, userAgent: userAgent}

	return &TokenSource{
		cfg: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		creds:  creds,
		client: &withUA,
		now:    time.Now,
	}
}

// Token returns a cached token or performs the password grant. Failures are
// *domain.AuthError.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	if ts.token != "" && now.Before(ts.expiry.Add(-tokenEarlyRefresh)) {
		return ts.token, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, ts.client)
	tok, err := ts.cfg.PasswordCredentialsToken(ctx, ts.creds.Username, ts.creds.Password)
	if err != nil {
		ts.token = ""
		return "", &domain.AuthError{Err: err}
	}
	if tok.AccessToken == "" {
		ts.token = ""
		return "", &domain.AuthError{Err: errors.New("empty access token")}
	}

	ts.token = tok.AccessToken
	if tok.Expiry.IsZero() {
		ts.expiry = now.Add(defaultTokenExpires)
	} else {
		ts.expiry = tok.Expiry
	}
	return ts.token, nil
}

// Invalidate forces the next Token call to re-authenticate.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expiry = time.Time{}
	ts.mu.Unlock()
}

// AuthStatus describes the token cache for operators.
type AuthStatus struct {
	UseOAuth  bool      `json:"useOAuth"`
	HasToken  bool      `json:"hasToken"`
	ExpiresAt time.Time `json:"tokenExpiresAt,omitempty"`
}

// Status is safe on a nil TokenSource.
func (ts *TokenSource) Status() AuthStatus {
	if ts == nil {
		return AuthStatus{}
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return AuthStatus{UseOAuth: true, HasToken: ts.token != "", ExpiresAt: ts.expiry}
}
