package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/authcenter/authctl/internal/auth"
	"github.com/authcenter/authctl/internal/models"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrSessionRevoked    = errors.New("session revoked or expired")
	ErrUserInactive      = errors.New("user is not active")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// authenticate resolves an access token to its live session
func authenticate(db *gorm.DB, issuer *auth.Issuer, token string) (*auth.SessionData, error) {
	claims, err := issuer.Validate(token, auth.TypeAccess)
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := db.Preload("User").Where("id = ?", claims.SessionID).First(&session).Error; err != nil {
		return nil, ErrSessionRevoked
	}
	if !session.Active(time.Now()) || session.UserID != claims.UserID {
		return nil, ErrSessionRevoked
	}
	if session.User.Status != models.UserActive {
		return nil, ErrUserInactive
	}

	return &auth.SessionData{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Roles:     claims.Roles,
		SessionID: claims.SessionID,
	}, nil
}

// JWTAuthMiddleware rejects requests without a valid access token for a live session
func JWTAuthMiddleware(db *gorm.DB, issuer *auth.Issuer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected request without bearer token")
			respondError(c, http.StatusUnauthorized, "Unauthorized", err)
			return
		}

		sessionData, err := authenticate(db, issuer, token)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected access token")
			respondError(c, http.StatusUnauthorized, "Invalid or expired token", err)
			return
		}

		setSession(c, sessionData)
		c.Next()
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Msg("HTTP request")
	}
}
