package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kube-rca/auth-api/internal/model"
)

const pgUniqueViolation = "23505"

type PostgresUserStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{Pool: pool}
}

func (db *PostgresUserStore) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			password_salt TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *PostgresUserStore) Insert(ctx context.Context, user model.User) (string, error) {
	query := `
		INSERT INTO users (id, email, password_hash, password_salt, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	id := uuid.NewString()
	_, err := db.Pool.Exec(ctx, query, id, user.Email, user.PasswordHash, user.PasswordSalt, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateEmail
		}
		return "", err
	}
	return id, nil
}

func (db *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id::text, email, password_hash, password_salt, created_at
		FROM users
		WHERE email = $1
	`
	return db.scanUser(db.Pool.QueryRow(ctx, query, email))
}

func (db *PostgresUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	query := `
		SELECT id::text, email, password_hash, password_salt, created_at
		FROM users
		WHERE id = $1
	`
	return db.scanUser(db.Pool.QueryRow(ctx, query, id))
}

func (db *PostgresUserStore) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *PostgresUserStore) scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
