package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded, unverified payload of an access token
type Claims struct {
	Subject   string    `json:"subject"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token's expiry lies before now. Tokens
// without an expiry never expire.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

type accessClaims struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"sid"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a JWT without checking its signature. The result is
// for display only and must never be used for authorization.
func ParseClaims(token string) (*Claims, error) {
	var raw accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}

	claims := &Claims{
		Subject:   raw.Subject,
		UserID:    raw.UserID,
		Username:  raw.Username,
		Roles:     raw.Roles,
		SessionID: raw.SessionID,
		Issuer:    raw.Issuer,
	}
	if claims.UserID == "" {
		claims.UserID = raw.Subject
	}
	if raw.IssuedAt != nil {
		claims.IssuedAt = raw.IssuedAt.Time
	}
	if raw.ExpiresAt != nil {
		claims.ExpiresAt = raw.ExpiresAt.Time
	}
	return claims, nil
}

// Claims decodes the stored access token
func (c *Client) Claims() (*Claims, error) {
	token := c.store.Session().AccessToken
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return ParseClaims(token)
}
