package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteBackend is a gorm backed durable store for session fields.
type SQLiteBackend struct {
	db        *gorm.DB
	namespace string
}

// credential is a single persisted session field
type credential struct {
	Namespace string `gorm:"primaryKey"`
	Name      string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (credential) TableName() string {
	return "credentials"
}

// OpenSQLiteBackend opens (or creates) the sqlite database at path.
// If the credentials table doesn't exist it is created.
func OpenSQLiteBackend(path, namespace string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	return NewSQLiteBackend(db, namespace)
}

// NewSQLiteBackend wraps an existing gorm connection
func NewSQLiteBackend(db *gorm.DB, namespace string) (*SQLiteBackend, error) {
	if err := db.AutoMigrate(&credential{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}
	return &SQLiteBackend{db: db, namespace: namespace}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var cred credential
	tx := s.db.WithContext(ctx).
		Where("namespace = ? AND name = ?", s.namespace, key).
		Limit(1).
		Find(&cred)
	if tx.Error != nil {
		return "", false, fmt.Errorf("failed to load %s: %w", key, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return "", false, nil
	}
	return cred.Value, true, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	cred := credential{Namespace: s.namespace, Name: key, Value: value}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&cred)
	if tx.Error != nil {
		return fmt.Errorf("failed to save %s: %w", key, tx.Error)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	tx := s.db.WithContext(ctx).Delete(&credential{}, "namespace = ? AND name = ?", s.namespace, key)
	if tx.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", key, tx.Error)
	}
	return nil
}

// Close releases the underlying database connection
func (s *SQLiteBackend) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
