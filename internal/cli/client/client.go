// Package client talks to an AuthCenter server on behalf of one stored
// session. Authenticated calls carry the access token as a bearer credential;
// a 401 triggers at most one refresh followed by at most one retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/authcenter/authctl/internal/cli/auth"
	"github.com/authcenter/authctl/internal/cli/config"
)

const (
	// DefaultTimeout bounds every HTTP round trip
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries a ULID per outgoing request
	RequestIDHeader = "X-Request-ID"

	loginEndpoint    = "/auth/login"
	registerEndpoint = "/auth/register"
	refreshEndpoint  = "/auth/refresh"
	verifyEndpoint   = "/auth/verify"
	logoutEndpoint   = "/auth/logout"

	// An authenticated call is re-issued at most this many times after a refresh
	maxRetries = 1
)

var (
	ErrTransport        = errors.New("request failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrSessionExpired   = errors.New("session expired")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrMalformedTokens  = errors.New("response did not contain access token, refresh token and user id")
)

// Client is an AuthCenter API client bound to one TokenStore.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiPrefix  string
	timeout    time.Duration
	httpClient *http.Client
	store      *auth.TokenStore
	logger     zerolog.Logger
	validate   *validator.Validate

	refreshGroup singleflight.Group

	mu    sync.RWMutex
	state State
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. WithTimeout does not apply to it.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for request and state transition logs
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAPIPrefix sets the path prefix placed before every endpoint
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) {
		server := config.Server{APIPrefix: prefix}
		c.apiPrefix = server.Prefix()
	}
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// New creates a client for the server at baseURL using store for the session
func New(baseURL string, store *auth.TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiPrefix: config.DefaultAPIPrefix,
		timeout:   DefaultTimeout,
		store:     store,
		logger:    zerolog.Nop(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	c.logger = c.logger.With().Str("component", "session_client").Str("server", c.baseURL).Logger()

	c.state = StateUnauthenticated
	if store.Session().AccessToken != "" {
		c.state = StateAuthenticated
	}

	return c
}

// Store returns the session store backing this client
func (c *Client) Store() *auth.TokenStore {
	return c.store
}

// Request performs a call against endpoint. When requiresAuth is set the
// current access token is attached, and a 401 on any endpoint other than
// refresh and verify runs one refresh. If the refresh succeeds the call is
// re-issued once with the new token and the retried response is returned;
// otherwise the original 401 is returned.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, requiresAuth bool) (*Response, error) {
	var payload []byte
	if body != nil && hasBody(method) {
		data, err := jsonBody(body)
		if err != nil {
			return c.invalid(err)
		}
		payload = data
	}

	for attempt := 0; ; attempt++ {
		token := ""
		if requiresAuth {
			token = c.store.Session().AccessToken
		}

		resp, err := c.send(ctx, method, endpoint, payload, token)
		if err != nil {
			return resp, err
		}
		if attempt >= maxRetries || !needsRefresh(endpoint, resp, requiresAuth) {
			return resp, nil
		}

		// Another caller already rotated the token while this one was in flight
		if current := c.store.Session().AccessToken; current != "" && current != token {
			continue
		}

		c.logger.Debug().Str("endpoint", endpoint).Msg("Access token rejected, refreshing session")
		if _, err := c.RefreshSession(ctx); err != nil {
			c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Session refresh failed, returning original response")
			// Expired and missing sessions are already cleared; transport failures keep it
			if errors.Is(err, ErrRefreshFailed) || errors.Is(err, ErrMalformedTokens) {
				c.fail(ctx)
			}
			return resp, nil
		}
	}
}

func needsRefresh(endpoint string, resp *Response, requiresAuth bool) bool {
	if !requiresAuth || resp.Status != http.StatusUnauthorized {
		return false
	}
	path, _, _ := strings.Cut(endpoint, "?")
	return path != refreshEndpoint && path != verifyEndpoint
}

func jsonBody(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// send performs exactly one HTTP round trip. A nil error means the backend answered.
func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, token string) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return c.invalid(fmt.Errorf("failed to create request: %w", err))
	}

	requestID := ulid.Make().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("endpoint", endpoint).Str("request_id", requestID).Msg("Request failed")
		return transportFailure(err), fmt.Errorf("%w: %s %s: %w", ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(err), fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Bool("authenticated", token != "").
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	return &Response{Status: resp.StatusCode, Data: normalizeBody(data)}, nil
}

func (c *Client) url(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + c.apiPrefix + endpoint
}

func (c *Client) invalid(err error) (*Response, error) {
	return synthesized(http.StatusBadRequest, "invalid request", err), fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}
