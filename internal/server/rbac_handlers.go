package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/authcenter/authctl/internal/auth"
	"github.com/authcenter/authctl/internal/models"
)

// RoleRequest is the body for creating or updating a role
type RoleRequest struct {
	Name        string `json:"name" binding:"required,max=64"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// PermissionRequest is the body for creating or updating a permission
type PermissionRequest struct {
	Name        string `json:"name" binding:"required,max=64"`
	Resource    string `json:"resource" binding:"required"`
	Action      string `json:"action" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// AssignPermissionRequest names the permission to add to a role
type AssignPermissionRequest struct {
	PermissionID string `json:"permission_id" binding:"required"`
}

// nameTaken reports whether another row of T already uses name
func nameTaken[T any](db *gorm.DB, name, exceptID string) (bool, error) {
	var count int64
	err := db.Model(new(T)).Where("name = ? AND id <> ?", name, exceptID).Count(&count).Error
	return count > 0, err
}

func (s *Server) listRoles(c *gin.Context) {
	result, err := paginate[models.Role](s.db, c, "Permissions")
	if err != nil {
		s.internalError(c, err, "Failed to list roles")
		return
	}
	respondOK(c, result)
}

func (s *Server) createRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	taken, err := nameTaken[models.Role](s.db, req.Name, "")
	if err != nil {
		s.internalError(c, err, "Failed to create role")
		return
	}
	if taken {
		respondError(c, http.StatusConflict, "Role already exists", nil)
		return
	}

	role := &models.Role{Name: req.Name, DisplayName: req.DisplayName, Description: req.Description}
	if err := s.db.Create(role).Error; err != nil {
		s.internalError(c, err, "Failed to create role")
		return
	}

	s.logger.Info().Str("role_id", role.ID).Str("name", role.Name).Msg("Role created")
	respondOK(c, role)
}

func (s *Server) getRole(c *gin.Context) {
	role, ok := findOr404[models.Role](s, c, c.Param("id"), "Role", "Permissions")
	if !ok {
		return
	}
	respondOK(c, role)
}

func (s *Server) updateRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	role, ok := findOr404[models.Role](s, c, c.Param("id"), "Role")
	if !ok {
		return
	}

	taken, err := nameTaken[models.Role](s.db, req.Name, role.ID)
	if err != nil {
		s.internalError(c, err, "Failed to update role")
		return
	}
	if taken {
		respondError(c, http.StatusConflict, "Role name already in use", nil)
		return
	}

	role.Name = req.Name
	role.DisplayName = req.DisplayName
	role.Description = req.Description
	if err := s.db.Model(role).Select("name", "display_name", "description").Updates(role).Error; err != nil {
		s.internalError(c, err, "Failed to update role")
		return
	}
	respondOK(c, role)
}

func (s *Server) deleteRole(c *gin.Context) {
	role, ok := findOr404[models.Role](s, c, c.Param("id"), "Role")
	if !ok {
		return
	}
	if role.Name == auth.RoleAdmin {
		respondError(c, http.StatusBadRequest, "Cannot delete the Admin role", nil)
		return
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(role).Association("Permissions").Clear(); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_roles WHERE role_id = ?", role.ID).Error; err != nil {
			return err
		}
		return tx.Delete(role).Error
	})
	if err != nil {
		s.internalError(c, err, "Failed to delete role")
		return
	}

	s.logger.Info().Str("role_id", role.ID).Str("name", role.Name).Msg("Role deleted")
	respondOK(c, nil)
}

func (s *Server) assignPermission(c *gin.Context) {
	var req AssignPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	role, ok := findOr404[models.Role](s, c, c.Param("id"), "Role")
	if !ok {
		return
	}
	permission, ok := findOr404[models.Permission](s, c, req.PermissionID, "Permission")
	if !ok {
		return
	}

	if err := s.db.Model(role).Association("Permissions").Append(permission); err != nil {
		s.internalError(c, err, "Failed to assign permission")
		return
	}
	respondOK(c, nil)
}

func (s *Server) removePermission(c *gin.Context) {
	role, ok := findOr404[models.Role](s, c, c.Param("id"), "Role")
	if !ok {
		return
	}
	permission, ok := findOr404[models.Permission](s, c, c.Param("permissionId"), "Permission")
	if !ok {
		return
	}

	if err := s.db.Model(role).Association("Permissions").Delete(permission); err != nil {
		s.internalError(c, err, "Failed to remove permission")
		return
	}
	respondOK(c, nil)
}

func (s *Server) listPermissions(c *gin.Context) {
	var permissions []models.Permission
	if err := s.db.Order("category ASC, name ASC").Find(&permissions).Error; err != nil {
		s.internalError(c, err, "Failed to list permissions")
		return
	}
	respondOK(c, permissions)
}

func (s *Server) createPermission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	taken, err := nameTaken[models.Permission](s.db, req.Name, "")
	if err != nil {
		s.internalError(c, err, "Failed to create permission")
		return
	}
	if taken {
		respondError(c, http.StatusConflict, "Permission already exists", nil)
		return
	}

	permission := &models.Permission{
		Name:        req.Name,
		Resource:    req.Resource,
		Action:      req.Action,
		Description: req.Description,
		Category:    req.Category,
	}
	if err := s.db.Create(permission).Error; err != nil {
		s.internalError(c, err, "Failed to create permission")
		return
	}

	s.logger.Info().Str("permission_id", permission.ID).Str("name", permission.Name).Msg("Permission created")
	respondOK(c, permission)
}

func (s *Server) getPermission(c *gin.Context) {
	permission, ok := findOr404[models.Permission](s, c, c.Param("id"), "Permission")
	if !ok {
		return
	}
	respondOK(c, permission)
}

func (s *Server) updatePermission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}

	permission, ok := findOr404[models.Permission](s, c, c.Param("id"), "Permission")
	if !ok {
		return
	}

	taken, err := nameTaken[models.Permission](s.db, req.Name, permission.ID)
	if err != nil {
		s.internalError(c, err, "Failed to update permission")
		return
	}
	if taken {
		respondError(c, http.StatusConflict, "Permission name already in use", nil)
		return
	}

	permission.Name = req.Name
	permission.Resource = req.Resource
	permission.Action = req.Action
	permission.Description = req.Description
	permission.Category = req.Category
	if err := s.db.Model(permission).Select("name", "resource", "action", "description", "category").Updates(permission).Error; err != nil {
		s.internalError(c, err, "Failed to update permission")
		return
	}
	respondOK(c, permission)
}

func (s *Server) deletePermission(c *gin.Context) {
	permission, ok := findOr404[models.Permission](s, c, c.Param("id"), "Permission")
	if !ok {
		return
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM role_permissions WHERE permission_id = ?", permission.ID).Error; err != nil {
			return err
		}
		return tx.Delete(permission).Error
	})
	if err != nil {
		s.internalError(c, err, "Failed to delete permission")
		return
	}

	s.logger.Info().Str("permission_id", permission.ID).Str("name", permission.Name).Msg("Permission deleted")
	respondOK(c, nil)
}
