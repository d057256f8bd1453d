package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the typ claim
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// JWTClaims represents the JWT token claims
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	SessionID string   `json:"sid"`
	Type      string   `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is what a token pair is issued for
type Identity struct {
	UserID    string
	Username  string
	Roles     []string
	SessionID string
}

// TokenPair is an issued access/refresh token pair
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer signs and validates HS256 tokens
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an issuer for the given secret and token lifetimes
func NewIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// RefreshTTL returns the refresh token lifetime, which is also the session lifetime
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// Issue creates a new access/refresh token pair for id
func (i *Issuer) Issue(id Identity) (*TokenPair, error) {
	now := i.now()
	pair := &TokenPair{
		AccessExpiresAt:  now.Add(i.accessTTL),
		RefreshExpiresAt: now.Add(i.refreshTTL),
	}

	var err error
	pair.AccessToken, err = i.sign(id, TypeAccess, now, pair.AccessExpiresAt)
	if err != nil {
		return nil, err
	}
	// The refresh token only needs to identify the session
	pair.RefreshToken, err = i.sign(Identity{UserID: id.UserID, SessionID: id.SessionID}, TypeRefresh, now, pair.RefreshExpiresAt)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (i *Issuer) sign(id Identity, typ string, now, expiresAt time.Time) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("JWT secret not initialized")
	}

	claims := JWTClaims{
		UserID:    id.UserID,
		Username:  id.Username,
		Roles:     id.Roles,
		SessionID: id.SessionID,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses a token, checks its signature, expiry and type, and returns the claims
func (i *Issuer) Validate(tokenString, typ string) (*JWTClaims, error) {
	if len(i.secret) == 0 {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.Type, typ)
	}
	if claims.SessionID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing session", ErrInvalidToken)
	}
	return claims, nil
}
