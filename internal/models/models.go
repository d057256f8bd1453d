package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User statuses
const (
	UserActive   = "active"
	UserInactive = "inactive"
	UserLocked   = "locked"
)

// User represents an account that can log in
type User struct {
	BaseModel
	Username     string     `json:"username" gorm:"unique;not null"`
	Email        *string    `json:"email,omitempty" gorm:"unique"`
	Phone        *string    `json:"phone,omitempty" gorm:"unique"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Status       string     `json:"status" gorm:"not null;default:active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	// Relationships
	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;constraint:OnDelete:CASCADE"`
}

// Role groups permissions
type Role struct {
	BaseModel
	Name        string `json:"name" gorm:"unique;not null"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`

	// Relationships
	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions;constraint:OnDelete:CASCADE"`
}

// Permission is a named action on a resource, e.g. user:READ
type Permission struct {
	BaseModel
	Name        string `json:"name" gorm:"unique;not null"`
	Resource    string `json:"resource" gorm:"not null"`
	Action      string `json:"action" gorm:"not null"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Session is one login. Refreshing rotates it: the old row is revoked and a
// new one issued, so a refresh token works at most once.
type Session struct {
	BaseModel
	UserID    string     `json:"user_id" gorm:"not null;index"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`

	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Active reports whether the session can still be used at now
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	// Collect all models
	models := []interface{}{
		&User{}, &Role{}, &Permission{}, &Session{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
