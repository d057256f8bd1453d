package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/authcenter/authctl/internal/cli/auth"
)

// State is the client's view of its session
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateRefreshing
	// StateFailed is held only while a rejected session is being cleared
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// State returns the current session state
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

func (c *Client) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	if prev != next {
		c.logger.Debug().Stringer("from", prev).Stringer("to", next).Msg("Session state changed")
	}
}

// settle moves back to whatever the stored session supports
func (c *Client) settle() {
	if c.store.Session().AccessToken != "" {
		c.setState(StateAuthenticated)
		return
	}
	c.setState(StateUnauthenticated)
}

// fail clears the stored session after it was rejected
func (c *Client) fail(ctx context.Context) {
	c.setState(StateFailed)
	c.clearSession(ctx)
}

func (c *Client) clearSession(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear stored session")
	}
	c.setState(StateUnauthenticated)
}

// LoginType selects which identifier field the backend matches
type LoginType string

const (
	LoginEmail    LoginType = "email"
	LoginUsername LoginType = "username"
	LoginPhone    LoginType = "phone"
	LoginAuto     LoginType = "auto"
)

// LoginRequest holds credentials for Login. For phone logins Password
// carries the verification code.
type LoginRequest struct {
	Identifier string    `validate:"required"`
	Password   string    `validate:"required"`
	Type       LoginType `validate:"oneof=email username phone auto"`
}

func (r LoginRequest) body() map[string]string {
	switch r.Type {
	case LoginEmail:
		return map[string]string{"email": r.Identifier, "password": r.Password, "type": string(r.Type)}
	case LoginPhone:
		return map[string]string{"phone": r.Identifier, "code": r.Password, "type": string(r.Type)}
	default:
		return map[string]string{"username": r.Identifier, "password": r.Password, "type": string(r.Type)}
	}
}

// Login authenticates against the backend and stores the issued tokens.
// Non-200 replies are returned unchanged and leave the session untouched.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Response, error) {
	if req.Type == "" {
		req.Type = LoginEmail
	}
	if err := c.validate.Struct(req); err != nil {
		return c.invalid(err)
	}
	if req.Type == LoginEmail {
		if err := c.validate.Var(req.Identifier, "email"); err != nil {
			return c.invalid(fmt.Errorf("identifier is not an email address: %w", err))
		}
	}

	resp, err := c.Request(ctx, http.MethodPost, loginEndpoint, req.body(), false)
	if err != nil || !resp.OK() {
		return resp, err
	}

	session, ok := parseTokens(resp.Data)
	if !ok {
		return resp, ErrMalformedTokens
	}
	c.save(ctx, session)
	c.setState(StateAuthenticated)

	c.logger.Info().Str("user_id", session.UserID).Str("type", string(req.Type)).Msg("Logged in")
	return resp, nil
}

// RegisterRequest holds the fields for a new account
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password" validate:"required"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Response, error) {
	if err := c.validate.Struct(req); err != nil {
		return c.invalid(err)
	}
	return c.Request(ctx, http.MethodPost, registerEndpoint, req, false)
}

// Verify asks the backend whether the current access token is valid. The
// status is returned verbatim; Verify never refreshes.
func (c *Client) Verify(ctx context.Context) (*Response, error) {
	token := c.store.Session().AccessToken
	if token == "" {
		return notAuthenticated("no access token available"), ErrNotAuthenticated
	}

	payload, err := jsonBody(map[string]string{"token": token})
	if err != nil {
		return c.invalid(err)
	}
	return c.send(ctx, http.MethodPost, verifyEndpoint, payload, token)
}

// RefreshSession exchanges the refresh token for a new token triple.
// Without a refresh token the session is cleared and no call is made.
// A 401 clears the session; other failures leave it in place.
// Concurrent callers share a single in-flight refresh.
func (c *Client) RefreshSession(ctx context.Context) (*Response, error) {
	// The shared refresh outlives any single caller; each caller still
	// stops waiting when its own context ends.
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().Msg("Joined in-flight session refresh")
		}
		return res.Val.(*Response), res.Err
	case <-ctx.Done():
		err := ctx.Err()
		return transportFailure(err), fmt.Errorf("%w: %s: %w", ErrTransport, refreshEndpoint, err)
	}
}

func (c *Client) refresh(ctx context.Context) (*Response, error) {
	refreshToken := c.store.Load(ctx).RefreshToken
	if refreshToken == "" {
		c.fail(ctx)
		return notAuthenticated("no refresh token available"), ErrNotAuthenticated
	}

	c.setState(StateRefreshing)

	payload, err := jsonBody(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		c.settle()
		return c.invalid(err)
	}

	resp, err := c.send(ctx, http.MethodPost, refreshEndpoint, payload, "")
	if err != nil {
		c.settle()
		return resp, err
	}

	switch resp.Status {
	case http.StatusOK:
		session, ok := parseTokens(resp.Data)
		if !ok {
			c.settle()
			return resp, ErrMalformedTokens
		}
		c.save(ctx, session)
		c.setState(StateAuthenticated)
		c.logger.Debug().Str("user_id", session.UserID).Msg("Session refreshed")
		return resp, nil

	case http.StatusUnauthorized:
		c.fail(ctx)
		return resp, ErrSessionExpired

	default:
		c.settle()
		return resp, fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.Status)
	}
}

// save persists a new session. The in-memory copy is always updated, so a
// storage failure only costs persistence across processes.
func (c *Client) save(ctx context.Context, session auth.Session) {
	if err := c.store.Save(ctx, session); err != nil {
		c.logger.Warn().Err(err).Msg("Session kept in memory only")
	}
}

// Logout tells the backend to end the session and then clears the local
// session regardless of the outcome.
func (c *Client) Logout(ctx context.Context) (*Response, error) {
	defer c.clearSession(ctx)

	token := c.store.Session().AccessToken
	if token == "" {
		return notAuthenticated("no access token available"), ErrNotAuthenticated
	}

	resp, err := c.send(ctx, http.MethodPost, logoutEndpoint, nil, token)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Logout request failed, clearing local session anyway")
	}
	return resp, err
}

// CheckSession verifies the access token and falls back to a refresh. A
// session that can be neither verified nor refreshed is cleared. Transport
// failures leave the session in place and are returned.
func (c *Client) CheckSession(ctx context.Context) (bool, error) {
	session := c.store.Load(ctx)
	if session.AccessToken == "" {
		c.setState(StateUnauthenticated)
		return false, nil
	}

	resp, err := c.Verify(ctx)
	switch {
	case errors.Is(err, ErrTransport):
		return false, err
	case err == nil && resp.OK():
		c.setState(StateAuthenticated)
		return true, nil
	}

	if session.RefreshToken != "" {
		_, err := c.RefreshSession(ctx)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, ErrTransport):
			return false, err
		}
		c.logger.Debug().Err(err).Msg("Session could not be refreshed")
	}

	c.fail(ctx)
	return false, nil
}

// HasToken reports whether an access token is stored
func (c *Client) HasToken(ctx context.Context) bool {
	return c.store.HasToken(ctx)
}

// UserID returns the cached user id. It is informational only.
func (c *Client) UserID() string {
	return c.store.Session().UserID
}
