package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/authcenter/authctl/internal/auth"
	"github.com/authcenter/authctl/internal/models"
)

// RegisterRequest represents an account registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone" binding:"omitempty,e164"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents a login request. Which identifier field is used
// depends on Type; phone logins carry the code instead of a password.
type LoginRequest struct {
	Type     string `json:"type" binding:"omitempty,oneof=email username phone auto"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// RefreshRequest carries the refresh token to exchange
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// VerifyRequest carries the access token to check
type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenResponse is the data returned by login and refresh
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
}

// VerifyResponse is the data returned for a valid token
type VerifyResponse struct {
	Valid    bool     `json:"valid"`
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

var errInvalidCredentials = errors.New("invalid credentials")

func roleNames(roles []models.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return names
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	var count int64
	query := s.db.Model(&models.User{}).Where("username = ?", req.Username)
	if req.Email != "" {
		query = query.Or("email = ?", req.Email)
	}
	if req.Phone != "" {
		query = query.Or("phone = ?", req.Phone)
	}
	if err := query.Count(&count).Error; err != nil {
		s.internalError(c, err, "Failed to check existing users")
		return
	}
	if count > 0 {
		respondError(c, http.StatusConflict, "User already exists", nil)
		return
	}

	// Hash password
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(c, err, "Failed to create user")
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strPtr(req.Email),
		Phone:        strPtr(req.Phone),
		PasswordHash: passwordHash,
		Status:       models.UserActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		// New accounts get the default role when it exists
		var role models.Role
		if err := tx.Where("name = ?", auth.RoleUser).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Model(user).Association("Roles").Append(&role); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.internalError(c, err, "Failed to create user")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	respondOK(c, user)
}

// findLoginUser resolves the identifier of a login request to a user and the
// secret to check against its password hash
func (s *Server) findLoginUser(req LoginRequest) (*models.User, string, error) {
	query := s.db.Preload("Roles")
	secret := req.Password

	switch req.Type {
	case "", "email":
		if req.Email == "" {
			return nil, "", errInvalidCredentials
		}
		query = query.Where("email = ?", req.Email)
	case "username":
		if req.Username == "" {
			return nil, "", errInvalidCredentials
		}
		query = query.Where("username = ?", req.Username)
	case "phone":
		// The dev server has no SMS gateway: the code is checked as the password
		if req.Phone == "" {
			return nil, "", errInvalidCredentials
		}
		query = query.Where("phone = ?", req.Phone)
		secret = req.Code
	case "auto":
		if req.Username == "" {
			return nil, "", errInvalidCredentials
		}
		query = query.Where("username = ? OR email = ? OR phone = ?", req.Username, req.Username, req.Username)
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errInvalidCredentials
		}
		return nil, "", err
	}
	return &user, secret, nil
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	user, secret, err := s.findLoginUser(req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		s.internalError(c, err, "Failed to find user")
		return
	}

	// Verify password
	if err := auth.VerifyPassword(secret, user.PasswordHash); err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if user.Status != models.UserActive {
		respondError(c, http.StatusForbidden, "Account is "+user.Status, nil)
		return
	}

	tokens, err := s.startSession(s.db, user)
	if err != nil {
		s.internalError(c, err, "Failed to create session")
		return
	}

	now := time.Now()
	if err := s.db.Model(user).Update("last_login_at", &now).Error; err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login")
	}

	s.logger.Info().Str("user_id", user.ID).Str("type", req.Type).Msg("User logged in")
	respondOK(c, tokens)
}

// startSession creates a session row for user and issues its token pair
func (s *Server) startSession(tx *gorm.DB, user *models.User) (*TokenResponse, error) {
	session := &models.Session{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.issuer.RefreshTTL()),
	}
	if err := tx.Create(session).Error; err != nil {
		return nil, err
	}

	pair, err := s.issuer.Issue(auth.Identity{
		UserID:    user.ID,
		Username:  user.Username,
		Roles:     roleNames(user.Roles),
		SessionID: session.ID,
	})
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(time.Until(pair.AccessExpiresAt).Seconds()),
		TokenType:    "Bearer",
		ExpiresAt:    pair.AccessExpiresAt,
		UserID:       user.ID,
	}, nil
}

func (s *Server) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Refresh token is required", err)
		return
	}

	claims, err := s.issuer.Validate(req.RefreshToken, auth.TypeRefresh)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid or expired refresh token", err)
		return
	}

	var tokens *TokenResponse
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Revoke the old session first so a refresh token works at most once
		now := time.Now()
		result := tx.Model(&models.Session{}).
			Where("id = ? AND user_id = ? AND revoked_at IS NULL AND expires_at > ?", claims.SessionID, claims.UserID, now).
			Update("revoked_at", &now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSessionRevoked
		}

		var user models.User
		if err := tx.Preload("Roles").Where("id = ?", claims.UserID).First(&user).Error; err != nil {
			return err
		}
		if user.Status != models.UserActive {
			return ErrUserInactive
		}

		issued, err := s.startSession(tx, &user)
		tokens = issued
		return err
	})
	switch {
	case errors.Is(err, ErrSessionRevoked), errors.Is(err, ErrUserInactive), errors.Is(err, gorm.ErrRecordNotFound):
		respondError(c, http.StatusUnauthorized, "Invalid or expired refresh token", err)
		return
	case err != nil:
		s.internalError(c, err, "Failed to refresh session")
		return
	}

	s.logger.Debug().Str("user_id", claims.UserID).Str("old_session", claims.SessionID).Msg("Session refreshed")
	respondOK(c, tokens)
}

func (s *Server) verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Token is required", err)
		return
	}

	sessionData, err := authenticate(s.db, s.issuer, req.Token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid or expired token", err)
		return
	}

	respondOK(c, VerifyResponse{
		Valid:    true,
		UserID:   sessionData.UserID,
		Username: sessionData.Username,
		Roles:    sessionData.Roles,
	})
}

func (s *Server) logout(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	now := time.Now()
	if err := s.db.Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionData.SessionID).
		Update("revoked_at", &now).Error; err != nil {
		s.internalError(c, err, "Failed to end session")
		return
	}

	s.logger.Info().Str("user_id", sessionData.UserID).Msg("User logged out")
	respondOK(c, nil)
}
