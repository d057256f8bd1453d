package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/authcenter/authctl/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// UpdateUserRequest holds the user fields to change. Empty fields are left as they are.
type UpdateUserRequest struct {
	Username string `json:"username" binding:"omitempty,min=3,max=64"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone" binding:"omitempty,e164"`
	Status   string `json:"status" binding:"omitempty,oneof=active inactive locked"`
}

// AssignRoleRequest names the role to grant
type AssignRoleRequest struct {
	RoleID string `json:"role_id" binding:"required"`
}

// pagination reads page and limit query parameters, clamped to sane values
func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func paginate[T any](db *gorm.DB, c *gin.Context, preloads ...string) (*PageResult[T], error) {
	page, limit := pagination(c)

	result := &PageResult[T]{Items: []T{}, Page: page, Limit: limit}
	if err := db.Model(new(T)).Count(&result.Total).Error; err != nil {
		return nil, err
	}

	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	if err := query.Order("created_at ASC").Offset((page - 1) * limit).Limit(limit).Find(&result.Items).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// findOr404 loads a record by id, replying 404 or 500 itself when it cannot
func findOr404[T any](s *Server, c *gin.Context, id, what string, preloads ...string) (*T, bool) {
	var model T
	if err := models.FindByIDWithPreload(s.db, id, &model, preloads...); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, what+" not found", nil)
			return nil, false
		}
		s.internalError(c, err, "Failed to load "+what)
		return nil, false
	}
	return &model, true
}

func (s *Server) listUsers(c *gin.Context) {
	result, err := paginate[models.User](s.db, c, "Roles")
	if err != nil {
		s.internalError(c, err, "Failed to list users")
		return
	}
	respondOK(c, result)
}

func (s *Server) getUser(c *gin.Context) {
	user, ok := findOr404[models.User](s, c, c.Param("id"), "User", "Roles")
	if !ok {
		return
	}
	respondOK(c, user)
}

func (s *Server) updateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	user, ok := findOr404[models.User](s, c, c.Param("id"), "User")
	if !ok {
		return
	}

	updates := map[string]any{}
	if req.Username != "" {
		updates["username"] = req.Username
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if len(updates) == 0 {
		respondError(c, http.StatusBadRequest, "Nothing to update", nil)
		return
	}

	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		s.internalError(c, err, "Failed to update user")
		return
	}

	sessionData, _ := GetSessionData(c)
	s.logger.Info().Str("user_id", user.ID).Str("updated_by", sessionData.UserID).Msg("User updated")

	updated, ok := findOr404[models.User](s, c, user.ID, "User", "Roles")
	if !ok {
		return
	}
	respondOK(c, updated)
}

func (s *Server) deleteUser(c *gin.Context) {
	userID := c.Param("id")
	sessionData, _ := GetSessionData(c)

	// Prevent deleting self
	if userID == sessionData.UserID {
		respondError(c, http.StatusBadRequest, "Cannot delete yourself", nil)
		return
	}

	user, ok := findOr404[models.User](s, c, userID, "User")
	if !ok {
		return
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Association("Roles").Clear(); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		s.internalError(c, err, "Failed to delete user")
		return
	}

	s.logger.Info().Str("user_id", userID).Str("deleted_by", sessionData.UserID).Msg("User deleted")
	respondOK(c, nil)
}

func (s *Server) assignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	user, ok := findOr404[models.User](s, c, c.Param("id"), "User")
	if !ok {
		return
	}
	role, ok := findOr404[models.Role](s, c, req.RoleID, "Role")
	if !ok {
		return
	}

	if err := s.db.Model(user).Association("Roles").Append(role); err != nil {
		s.internalError(c, err, "Failed to assign role")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", role.Name).Msg("Role assigned")
	respondOK(c, nil)
}

func (s *Server) removeRole(c *gin.Context) {
	user, ok := findOr404[models.User](s, c, c.Param("id"), "User")
	if !ok {
		return
	}
	role, ok := findOr404[models.Role](s, c, c.Param("roleId"), "Role")
	if !ok {
		return
	}

	if err := s.db.Model(user).Association("Roles").Delete(role); err != nil {
		s.internalError(c, err, "Failed to remove role")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", role.Name).Msg("Role removed")
	respondOK(c, nil)
}

func (s *Server) getUserPermissions(c *gin.Context) {
	user, ok := findOr404[models.User](s, c, c.Param("id"), "User", "Roles.Permissions")
	if !ok {
		return
	}

	seen := map[string]bool{}
	permissions := []models.Permission{}
	for _, role := range user.Roles {
		for _, p := range role.Permissions {
			if !seen[p.ID] {
				seen[p.ID] = true
				permissions = append(permissions, p)
			}
		}
	}
	respondOK(c, permissions)
}
