package devserver

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Account is a login identity. Doc holds the directory user document
// (id, names, role) that item relations expand to.
type Account struct {
	ID           string `gorm:"primaryKey;size:36"`
	MobileNumber string `gorm:"uniqueIndex;size:32"`
	PasswordHash string `gorm:"size:80"`
	Doc          string
}

// Item is one document in a collection. Relations are stored as ids and
// expanded at read time.
type Item struct {
	ID         int    `gorm:"primaryKey;autoIncrement"`
	Collection string `gorm:"index;size:64"`
	Doc        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RefreshToken is an opaque, single-use refresh token. Each exchange
// rotates it.
type RefreshToken struct {
	Token     string `gorm:"primaryKey;size:64"`
	AccountID string `gorm:"index;size:36"`
	ExpiresAt time.Time
}

// StoredFile records an uploaded attachment.
type StoredFile struct {
	ID        string `gorm:"primaryKey;size:36"`
	Filename  string `gorm:"size:255"`
	Size      int64
	CreatedAt time.Time
}

// Open connects to the backing database. Supported drivers are "sqlite"
// (default) and "mysql".
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		db, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("devserver: open sqlite %s: %w", dsn, err)
		}
		// In-memory databases exist per connection; keep the pool at one
		// so every query sees the same data.
		if strings.Contains(dsn, ":memory:") {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("devserver: open mysql: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("devserver: unsupported driver %q", driver)
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Account{}, &Item{}, &RefreshToken{}, &StoredFile{}); err != nil {
		return fmt.Errorf("devserver: auto-migrate: %w", err)
	}
	return nil
}

// SeedPassword is the password every seeded account accepts.
const SeedPassword = "password123"

// Seed inserts fixture accounts, profiles and services so a fresh server
// is immediately usable. Running it twice is a no-op.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Account{}).Count(&count).Error; err != nil {
		return fmt.Errorf("devserver: seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("devserver: seed: hash password: %w", err)
	}

	type seedUser struct {
		mobile, first, last, role, unit, profileType string
	}
	users := []seedUser{
		{"0501111111", "Nadia", "Hassan", "customer", "B-12", "customer"},
		{"0502222222", "Omar", "Khalil", "technician", "", "technician"},
		{"0503333333", "Huda", "Saleh", "supervisor", "", "supervisor"},
	}

	for _, u := range users {
		id := uuid.NewString()
		userDoc, _ := json.Marshal(map[string]any{
			"id":         id,
			"first_name": u.first,
			"last_name":  u.last,
			"email":      fmt.Sprintf("%s@fieldops.local", u.first),
			"role":       map[string]any{"name": u.role},
		})
		acct := Account{
			ID:           id,
			MobileNumber: u.mobile,
			PasswordHash: string(hash),
			Doc:          string(userDoc),
		}
		if err := db.Create(&acct).Error; err != nil {
			return fmt.Errorf("devserver: seed account %s: %w", u.mobile, err)
		}

		profileDoc, _ := json.Marshal(map[string]any{
			"profile_type":  u.profileType,
			"unit":          u.unit,
			"mobile_number": u.mobile,
			"user":          id,
		})
		profile := Item{Collection: "profile", Doc: string(profileDoc)}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("devserver: seed profile for %s: %w", u.mobile, err)
		}
	}

	for _, title := range []string{"Plumbing", "Electrical", "AC Maintenance"} {
		doc, _ := json.Marshal(map[string]any{"title": title})
		if err := db.Create(&Item{Collection: "service", Doc: string(doc)}).Error; err != nil {
			return fmt.Errorf("devserver: seed service %s: %w", title, err)
		}
	}

	return nil
}
