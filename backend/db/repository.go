package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vitiko98/mopidy-qobuz/backend"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Repository provides access to the session database.
type Repository struct {
	db *gorm.DB
}

var _ backend.SessionRepository = (*Repository)(nil)

// NewSQLiteRepository creates a repository backed by SQLite.
func NewSQLiteRepository(dsn string, gormLogger logger.Interface) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn required")
	}

	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		dbDir := filepath.Dir(dsn)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	if err := applySQLitePragmas(db); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&SessionModel{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Repository{db: db}, nil
}

// ConfigurePool updates the database connection pool settings.
func (r *Repository) ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if maxOpen >= 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime >= 0 {
		sqlDB.SetConnMaxLifetime(maxLifetime)
	}
	return nil
}

// LoadSession returns the stored session, or backend.ErrSessionNotFound.
func (r *Repository) LoadSession(ctx context.Context, service, username string) (*backend.Session, error) {
	var model SessionModel
	err := r.db.WithContext(ctx).
		Where("service = ? AND username = ?", service, username).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sessionToInternal(model), nil
}

// SaveSession inserts or replaces the session for (service, username).
func (r *Repository) SaveSession(ctx context.Context, session *backend.Session) error {
	if session == nil {
		return errors.New("session required")
	}
	if strings.TrimSpace(session.Service) == "" || strings.TrimSpace(session.Username) == "" {
		return errors.New("session service and username required")
	}
	model := SessionModel{
		Service:    session.Service,
		Username:   session.Username,
		AuthToken:  session.AuthToken,
		Membership: session.Membership,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service"}, {Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"auth_token", "membership", "updated_at", "deleted_at"}),
	}).Create(&model).Error
}

// DeleteSession removes a stored session. Missing sessions are not an error.
func (r *Repository) DeleteSession(ctx context.Context, service, username string) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("service = ? AND username = ?", service, username).
		Delete(&SessionModel{}).Error
}

// CountSessions returns the number of stored sessions.
func (r *Repository) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&SessionModel{}).Count(&count).Error
	return count, err
}

func applySQLitePragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, stmt := range pragmas {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
