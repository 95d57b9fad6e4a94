// Package gormstore implements goGuard.UserStore and goGuard.RefreshTokenStore
// on gorm, against Postgres or SQLite.
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

var (
	_ goGuard.UserStore         = (*Store)(nil)
	_ goGuard.RefreshTokenStore = (*Store)(nil)
	_ goGuard.Pinger            = (*Store)(nil)
)

// Open connects to url and migrates the schema. postgres:// and
// postgresql:// URLs use the pgx-backed Postgres driver; sqlite://path,
// file: URLs and ":memory:" use the pure-Go SQLite driver.
func Open(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, errors.New("gormstore: empty database url")
	}

	dialector, isSQLite, err := dialectorFor(url)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gormstore: sql handle: %w", err)
	}
	if isSQLite {
		// One writer; also keeps ":memory:" on a single database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		configurePool(sqlDB)
	}

	s := New(db)
	if err := s.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm handle. Call Migrate before first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userModel{}, &refreshTokenModel{}); err != nil {
		return fmt.Errorf("gormstore: migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, role goGuard.Role) (*goGuard.User, error) {
	m := userModel{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         string(role),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return nil, goGuard.ErrUsernameTaken
		}
		return nil, err
	}
	return m.toUser(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*goGuard.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return nil, notFound(err, goGuard.ErrUserNotFound)
	}
	return m.toUser(), nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*goGuard.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, goGuard.ErrUserNotFound)
	}
	return m.toUser(), nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	res := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return goGuard.ErrUserNotFound
	}
	return nil
}

// SetRole changes a user's role. Used by the promote command; the engine
// never changes roles itself.
func (s *Store) SetRole(ctx context.Context, username string, role goGuard.Role) error {
	res := s.db.WithContext(ctx).Model(&userModel{}).Where("username = ?", username).Update("role", string(role))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return goGuard.ErrUserNotFound
	}
	return nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, record goGuard.RefreshTokenRecord) error {
	m := refreshModel(record)
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) GetRefreshToken(ctx context.Context, jti string) (*goGuard.RefreshTokenRecord, error) {
	var m refreshTokenModel
	if err := s.db.WithContext(ctx).Where("jti = ?", jti).First(&m).Error; err != nil {
		return nil, notFound(err, goGuard.ErrRevokedOrUnknown)
	}
	return m.toRecord(), nil
}

// RotateRefreshToken retires oldJTI with a conditional update and inserts
// next in the same transaction.
func (s *Store) RotateRefreshToken(ctx context.Context, oldJTI string, next goGuard.RefreshTokenRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&refreshTokenModel{}).
			Where("jti = ? AND revoked = ?", oldJTI, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return goGuard.ErrRevokedOrUnknown
		}

		m := refreshModel(next)
		return tx.Create(&m).Error
	})
}

func (s *Store) RevokeRefreshToken(ctx context.Context, jti string) error {
	return s.db.WithContext(ctx).Model(&refreshTokenModel{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Update("revoked", true).Error
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&refreshTokenModel{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	return res.RowsAffected, res.Error
}

func dialectorFor(url string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), false, nil
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://")), true, nil
	case url == ":memory:", strings.HasPrefix(url, "file:"):
		return sqlite.Open(url), true, nil
	default:
		return nil, false, fmt.Errorf("gormstore: unsupported database url scheme in %q", redact(url))
	}
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i+3] + "..."
	}
	return "..."
}
