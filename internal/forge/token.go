// Package forge proxies OAuth client-credential tokens from an upstream auth
// service, caching each token until shortly before it expires.
package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expirySafetyMargin is subtracted from the upstream expires_in so a token is
// refreshed before it actually lapses.
const expirySafetyMargin = 60 * time.Second

// Config holds the upstream auth endpoint and client credentials.
type Config struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	GrantType    string // defaults to client_credentials
	Scope        string
}

// Validate reports every missing required key at once.
func (c Config) Validate() error {
	var missing []string
	if c.AuthURL == "" {
		missing = append(missing, "auth URL")
	}
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if c.Scope == "" {
		missing = append(missing, "scope")
	}
	if len(missing) > 0 {
		return fmt.Errorf("forge config missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// HTTPDoer is the client surface the cache needs. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenCache fetches and caches upstream tokens. The cached document is
// returned verbatim to callers; only expires_in is interpreted.
type TokenCache struct {
	cfg    Config
	client HTTPDoer
	now    func() time.Time

	mu     sync.Mutex
	cached json.RawMessage
	expiry time.Time
}

// Option customizes TokenCache construction.
type Option func(*TokenCache)

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(c HTTPDoer) Option {
	return func(t *TokenCache) {
		if c != nil {
			t.client = c
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) Option {
	return func(t *TokenCache) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokenCache validates the config and constructs an empty cache.
func NewTokenCache(cfg Config, opts ...Option) (*TokenCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.GrantType == "" {
		cfg.GrantType = "client_credentials"
	}
	t := &TokenCache{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Get returns the cached token document, fetching a fresh one when the cache
// is empty or within the safety margin of expiry.
func (t *TokenCache) Get(ctx context.Context) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached != nil && t.now().Before(t.expiry) {
		return append(json.RawMessage(nil), t.cached...), nil
	}
	raw, expiresIn, err := t.fetch(ctx)
	if err != nil {
		return nil, err
	}
	t.cached = raw
	t.expiry = t.now().Add(time.Duration(expiresIn)*time.Second - expirySafetyMargin)
	return append(json.RawMessage(nil), raw...), nil
}

func (t *TokenCache) fetch(ctx context.Context) (json.RawMessage, int64, error) {
	form := url.Values{}
	form.Set("grant_type", t.cfg.GrantType)
	form.Set("scope", t.cfg.Scope)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.cfg.ClientID, t.cfg.ClientSecret)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}
	var decoded struct {
		ExpiresIn int64 `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, 0, fmt.Errorf("decode token response: %w", err)
	}
	if decoded.ExpiresIn <= 0 {
		return nil, 0, fmt.Errorf("token response missing expires_in")
	}
	return json.RawMessage(body), decoded.ExpiresIn, nil
}
