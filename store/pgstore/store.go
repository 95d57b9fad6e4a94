// Package pgstore implements goGuard.UserStore and goGuard.RefreshTokenStore
// on database/sql with the pgx driver. Queries are built with squirrel.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type Store struct {
	db *sql.DB
}

var (
	_ goGuard.UserStore         = (*Store)(nil)
	_ goGuard.RefreshTokenStore = (*Store)(nil)
	_ goGuard.Pinger            = (*Store)(nil)
)

// Open connects with the pgx driver, pings and runs the embedded migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := New(db)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgstore: %w", err)
	}
	return s, nil
}

// New wraps db without migrating it.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, role goGuard.Role) (*goGuard.User, error) {
	query, args, err := insertUserQuery(username, passwordHash, role).ToSql()
	if err != nil {
		return nil, err
	}

	u := goGuard.User{Username: username, PasswordHash: passwordHash, Role: role}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, goGuard.ErrUsernameTaken
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*goGuard.User, error) {
	return s.getUser(ctx, squirrel.Eq{"username": username})
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*goGuard.User, error) {
	return s.getUser(ctx, squirrel.Eq{"id": id})
}

func (s *Store) getUser(ctx context.Context, where squirrel.Eq) (*goGuard.User, error) {
	query, args, err := selectUserQuery(where).ToSql()
	if err != nil {
		return nil, err
	}

	var (
		u    goGuard.User
		role string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goGuard.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = goGuard.Role(role)
	return &u, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	query, args, err := psql.Update("users").
		Set("password_hash", passwordHash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goGuard.ErrUserNotFound
	}
	return nil
}

// SetRole changes a user's role by username.
func (s *Store) SetRole(ctx context.Context, username string, role goGuard.Role) error {
	query, args, err := psql.Update("users").
		Set("role", string(role)).
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goGuard.ErrUserNotFound
	}
	return nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, record goGuard.RefreshTokenRecord) error {
	query, args, err := insertRefreshQuery(record).ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) GetRefreshToken(ctx context.Context, jti string) (*goGuard.RefreshTokenRecord, error) {
	query, args, err := psql.Select("jti", "user_id", "expires_at", "revoked", "created_at").
		From("refresh_tokens").
		Where(squirrel.Eq{"jti": jti}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var r goGuard.RefreshTokenRecord
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&r.JTI, &r.UserID, &r.ExpiresAt, &r.Revoked, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goGuard.ErrRevokedOrUnknown
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RotateRefreshToken revokes oldJTI only if it is still live and inserts
// next in the same transaction.
func (s *Store) RotateRefreshToken(ctx context.Context, oldJTI string, next goGuard.RefreshTokenRecord) (err error) {
	revoke, revokeArgs, err := revokeQuery(squirrel.Eq{"jti": oldJTI}).ToSql()
	if err != nil {
		return err
	}
	insert, insertArgs, err := insertRefreshQuery(next).ToSql()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, revoke, revokeArgs...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return goGuard.ErrRevokedOrUnknown
	}
	if _, err = tx.ExecContext(ctx, insert, insertArgs...); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RevokeRefreshToken(ctx context.Context, jti string) error {
	query, args, err := revokeQuery(squirrel.Eq{"jti": jti}).ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	query, args, err := revokeQuery(squirrel.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func insertUserQuery(username, passwordHash string, role goGuard.Role) squirrel.InsertBuilder {
	return psql.Insert("users").
		Columns("username", "password_hash", "role").
		Values(username, passwordHash, string(role)).
		Suffix("RETURNING id, created_at")
}

func selectUserQuery(where squirrel.Eq) squirrel.SelectBuilder {
	return psql.Select("id", "username", "password_hash", "role", "created_at").
		From("users").
		Where(where)
}

func insertRefreshQuery(r goGuard.RefreshTokenRecord) squirrel.InsertBuilder {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return psql.Insert("refresh_tokens").
		Columns("jti", "user_id", "expires_at", "revoked", "created_at").
		Values(r.JTI, r.UserID, r.ExpiresAt.UTC(), r.Revoked, created.UTC())
}

// revokeQuery flips revoked for live rows only, so RowsAffected counts
// actual transitions.
func revokeQuery(where squirrel.Eq) squirrel.UpdateBuilder {
	return psql.Update("refresh_tokens").
		Set("revoked", true).
		Where(where).
		Where(squirrel.Eq{"revoked": false})
}
