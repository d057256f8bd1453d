package server

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/authcenter/authctl/internal/auth"
	"github.com/authcenter/authctl/internal/models"
)

var defaultPermissions = []models.Permission{
	{Name: "KNOWLEDGE_READ", Resource: "knowledge", Action: "READ", Description: "View knowledge base documents", Category: "knowledge_content"},
	{Name: "KNOWLEDGE_CREATE", Resource: "knowledge", Action: "CREATE", Description: "Create knowledge base documents", Category: "knowledge_content"},
	{Name: "KNOWLEDGE_UPDATE", Resource: "knowledge", Action: "UPDATE", Description: "Edit knowledge base documents", Category: "knowledge_content"},
	{Name: "KNOWLEDGE_DELETE", Resource: "knowledge", Action: "DELETE", Description: "Delete knowledge base documents", Category: "knowledge_content"},
	{Name: "KNOWLEDGE_PUBLISH", Resource: "knowledge", Action: "PUBLISH", Description: "Publish knowledge base documents", Category: "knowledge_content"},
	{Name: "KNOWLEDGE_APPROVE", Resource: "knowledge", Action: "APPROVE", Description: "Review knowledge base content", Category: "knowledge_content"},
	{Name: "USER_MANAGE", Resource: "user", Action: "MANAGE", Description: "Manage users", Category: "system_management"},
	{Name: "ROLE_MANAGE", Resource: "role", Action: "MANAGE", Description: "Manage roles", Category: "system_management"},
	{Name: "CATEGORY_MANAGE", Resource: "category", Action: "MANAGE", Description: "Manage categories", Category: "system_management"},
	{Name: "TAG_CREATE", Resource: "tag", Action: "CREATE", Description: "Create tags", Category: "content_organization"},
	{Name: "TAG_MANAGE", Resource: "tag", Action: "MANAGE", Description: "Edit and delete tags", Category: "content_organization"},
	{Name: "SYSTEM_CONFIG", Resource: "system", Action: "CONFIG", Description: "Configure the system", Category: "system_management"},
	{Name: "COMMENT", Resource: "knowledge", Action: "COMMENT", Description: "Comment on documents", Category: "interaction"},
	{Name: "FAVORITE", Resource: "knowledge", Action: "FAVORITE", Description: "Favorite documents", Category: "interaction"},
	{Name: "SEARCH", Resource: "knowledge", Action: "SEARCH", Description: "Search documents", Category: "interaction"},
	{Name: "AI_ASSISTANT", Resource: "ai", Action: "USE", Description: "Use the AI assistant", Category: "interaction"},
}

type roleSeed struct {
	role        models.Role
	permissions []string // nil means all
}

var defaultRoles = []roleSeed{
	{
		role: models.Role{Name: auth.RoleAdmin, DisplayName: "Administrator", Description: "Full access to every system function"},
	},
	{
		role: models.Role{Name: "Editor", DisplayName: "Content manager", Description: "Manages all knowledge base content"},
		permissions: []string{
			"KNOWLEDGE_READ", "KNOWLEDGE_CREATE", "KNOWLEDGE_UPDATE", "KNOWLEDGE_DELETE",
			"KNOWLEDGE_PUBLISH", "CATEGORY_MANAGE", "TAG_CREATE",
			"COMMENT", "FAVORITE", "SEARCH", "AI_ASSISTANT",
		},
	},
	{
		role: models.Role{Name: "Author", DisplayName: "Content author", Description: "Creates and edits knowledge base content"},
		permissions: []string{
			"KNOWLEDGE_READ", "KNOWLEDGE_CREATE", "KNOWLEDGE_UPDATE", "TAG_CREATE",
			"COMMENT", "FAVORITE", "SEARCH", "AI_ASSISTANT",
		},
	},
	{
		role:        models.Role{Name: auth.RoleUser, DisplayName: "User", Description: "Everyday knowledge base reader"},
		permissions: []string{"KNOWLEDGE_READ", "COMMENT", "FAVORITE", "SEARCH", "AI_ASSISTANT"},
	},
}

// Seed creates the default permissions and roles. Each table is only seeded
// when it is empty, so running it again is a no-op.
func Seed(db *gorm.DB, logger zerolog.Logger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var permCount int64
		if err := tx.Model(&models.Permission{}).Count(&permCount).Error; err != nil {
			return fmt.Errorf("failed to count permissions: %w", err)
		}
		if permCount > 0 {
			logger.Debug().Int64("count", permCount).Msg("Permissions already present, skipping seed")
		} else {
			permissions := make([]models.Permission, len(defaultPermissions))
			copy(permissions, defaultPermissions)
			if err := tx.Create(&permissions).Error; err != nil {
				return fmt.Errorf("failed to seed permissions: %w", err)
			}
			logger.Info().Int("count", len(permissions)).Msg("Seeded permissions")
		}

		var roleCount int64
		if err := tx.Model(&models.Role{}).Count(&roleCount).Error; err != nil {
			return fmt.Errorf("failed to count roles: %w", err)
		}
		if roleCount > 0 {
			logger.Debug().Int64("count", roleCount).Msg("Roles already present, skipping seed")
			return nil
		}

		var all []models.Permission
		if err := tx.Find(&all).Error; err != nil {
			return fmt.Errorf("failed to load permissions: %w", err)
		}
		byName := make(map[string]models.Permission, len(all))
		for _, p := range all {
			byName[p.Name] = p
		}

		for _, seed := range defaultRoles {
			role := seed.role
			if seed.permissions == nil {
				role.Permissions = all
			} else {
				for _, name := range seed.permissions {
					// Permissions renamed or removed since the first seed are skipped
					if p, ok := byName[name]; ok {
						role.Permissions = append(role.Permissions, p)
					}
				}
			}
			if err := tx.Create(&role).Error; err != nil {
				return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
			}
		}
		logger.Info().Int("count", len(defaultRoles)).Msg("Seeded roles")
		return nil
	})
}
