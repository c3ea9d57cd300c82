// Package keystore is the durable credential store backing the session
// manager. Entries are single-key string values persisted in a local
// SQLite database restricted to the owning user.
package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Credential is one stored key/value entry.
type Credential struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// Store is a key-value credential store. Writes are atomic per key; there
// is no multi-key transaction, matching the storage contract callers rely on.
type Store struct {
	db *gorm.DB
}

// Open creates or opens a credential store at path. Parent directories are
// created as needed and the database file is readable only by its owner.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("keystore: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("keystore: create %s: %w", dir, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, fmt.Errorf("keystore: migrate: %w", err)
	}
	os.Chmod(path, 0o600)
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store, used by tests.
func OpenInMemory() (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: open in-memory: %w", err)
	}
	// A pooled second connection would see a fresh empty database.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, fmt.Errorf("keystore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the stored value for key. The second return is false when
// the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	var cred Credential
	err := s.db.First(&cred, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keystore: get %s: %w", key, err)
	}
	return cred.Value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	cred := Credential{Key: key, Value: value}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&cred)
	if result.Error != nil {
		return fmt.Errorf("keystore: set %s: %w", key, result.Error)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete(&Credential{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("keystore: delete %s: %w", key, err)
	}
	return nil
}
