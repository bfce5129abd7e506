// Package authstore is the durable store for the orchestrator's auth
// side-concern: a single admin User and a set of long-lived API keys.
// Unlike job/checkpoint state (spec.md §4.A's plain JSON files), auth
// records have the incremental-update, queryable-by-key shape GORM is
// built for, so this package is the one place in the module backed by a
// real database rather than the file layout — grounded on the teacher's
// internal/database/database.go.
package authstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"joborchestrator/pkg/logger"
)

// User is the single operator account the orchestrator authenticates
// against. There is no self-service signup; spec.md has no concept of
// multi-tenant users, so unlike the teacher's User table this one is
// expected to hold at most one row.
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Username  string    `gorm:"uniqueIndex;not null;type:varchar(50)"`
	Password  string    `gorm:"not null;type:varchar(255)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// APIKey is a long-lived bearer credential for non-interactive clients
// (SPEC_FULL.md §7's api-keys endpoints).
type APIKey struct {
	ID          uint       `gorm:"primaryKey"`
	Key         string     `gorm:"uniqueIndex;not null;type:varchar(255)"`
	Name        string     `gorm:"not null;type:varchar(100)"`
	Description string     `gorm:"type:text"`
	IsActive    bool       `gorm:"not null;default:true"`
	LastUsed    *time.Time `gorm:""`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// BeforeCreate assigns a random key if the caller didn't set one,
// mirroring the teacher's models.APIKey.BeforeCreate.
func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.Key == "" {
		k.Key = uuid.New().String()
	}
	return nil
}

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("authstore: not found")

// Store wraps the sqlite-backed GORM connection.
type Store struct {
	db *gorm.DB
}

// Open connects to (creating if necessary) a WAL-mode sqlite database at
// dbPath, tuned the same way the teacher's database.Initialize does:
// foreign keys on, WAL journaling, a relaxed synchronous mode appropriate
// for a single-host daemon, and a bounded connection pool.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("authstore: create db dir: %w", err)
	}

	dsn := fmt.Sprintf("%s?"+
		"_pragma=foreign_keys(1)&"+
		"_pragma=journal_mode(WAL)&"+
		"_pragma=synchronous(NORMAL)&"+
		"_pragma=cache_size(-64000)&"+
		"_pragma=temp_store(MEMORY)&"+
		"_timeout=30000",
		dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("authstore: open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("authstore: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.AutoMigrate(&User{}, &APIKey{}); err != nil {
		return nil, fmt.Errorf("authstore: auto migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// EnsureAdminUser creates the single admin user with the given username
// and already-hashed password if no user row exists yet. It is a no-op
// (returning the existing user) if one does.
func (s *Store) EnsureAdminUser(username, hashedPassword string) (User, error) {
	var existing User
	err := s.db.First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, err
	}

	u := User{Username: username, Password: hashedPassword}
	if err := s.db.Create(&u).Error; err != nil {
		return User{}, err
	}
	logger.Info("authstore: created admin user", "username", username)
	return u, nil
}

// FindUserByUsername looks up the admin user by username.
func (s *Store) FindUserByUsername(username string) (User, error) {
	var u User
	err := s.db.Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	return u, err
}

// FindUserByID looks up the admin user by ID.
func (s *Store) FindUserByID(id uint) (User, error) {
	var u User
	err := s.db.First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	return u, err
}

// UpdatePassword overwrites a user's hashed password.
func (s *Store) UpdatePassword(userID uint, hashedPassword string) error {
	return s.db.Model(&User{}).Where("id = ?", userID).Update("password", hashedPassword).Error
}

// CreateAPIKey creates and persists a new API key with a random value.
func (s *Store) CreateAPIKey(name, description string) (APIKey, error) {
	k := APIKey{Name: name, Description: description, IsActive: true}
	if err := s.db.Create(&k).Error; err != nil {
		return APIKey{}, err
	}
	return k, nil
}

// ListAPIKeys returns all keys, newest first.
func (s *Store) ListAPIKeys() ([]APIKey, error) {
	var keys []APIKey
	err := s.db.Order("created_at desc").Find(&keys).Error
	return keys, err
}

// DeleteAPIKey removes a key by ID.
func (s *Store) DeleteAPIKey(id uint) error {
	return s.db.Delete(&APIKey{}, id).Error
}

// ValidateAPIKey reports whether key is an active API key, touching its
// LastUsed timestamp as a side effect (teacher: validateAPIKey in
// pkg/middleware/auth.go).
func (s *Store) ValidateAPIKey(key string) bool {
	var k APIKey
	if err := s.db.Where("key = ? AND is_active = ?", key, true).First(&k).Error; err != nil {
		return false
	}
	now := time.Now()
	k.LastUsed = &now
	s.db.Save(&k)
	return true
}
