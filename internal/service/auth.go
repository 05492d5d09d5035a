package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kube-rca/auth-api/internal/db"
	"github.com/kube-rca/auth-api/internal/model"
)

const defaultPasswordMinLength = 8

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrMisconfigured = errors.New("auth config invalid")
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Insert(ctx context.Context, user model.User) (string, error)
	Ping(ctx context.Context) error
}

type AuthService struct {
	users             UserStore
	hasher            *PasswordHasher
	tokens            *TokenService
	passwordMinLength int

	// random pair verified against when the email is unknown
	dummySalt string
	dummyHash string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(users UserStore, hasher *PasswordHasher, tokens *TokenService, passwordMinLength int) (*AuthService, error) {
	if passwordMinLength <= 0 {
		passwordMinLength = defaultPasswordMinLength
	}
	dummySalt, err := randomHex(passwordSaltBytes)
	if err != nil {
		return nil, fmt.Errorf("generate dummy salt: %w", err)
	}
	dummyHash, err := randomHex(passwordKeyLength)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &AuthService{
		users:             users,
		hasher:            hasher,
		tokens:            tokens,
		passwordMinLength: passwordMinLength,
		dummySalt:         dummySalt,
		dummyHash:         dummyHash,
	}, nil
}

func (s *AuthService) PasswordMinLength() int {
	return s.passwordMinLength
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || !IsValidEmail(email) {
		return nil, invalid("Valid email is required")
	}
	if !IsStrongPassword(password, s.passwordMinLength) {
		return nil, invalid("Password must be at least %d chars and include upper/lower/number/symbol", s.passwordMinLength)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, db.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	salt, hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := s.users.Insert(ctx, user)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.ID = id

	return s.issue(&user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || !IsValidEmail(email) {
		return nil, invalid("Valid email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		// Burn the same derivation cost as a real check.
		if _, err := s.hasher.Verify(ctx, password, s.dummySalt, s.dummyHash); err != nil {
			return nil, err
		}
		return nil, ErrUnauthorized
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordSalt, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnauthorized
	}
	if user.ID == "" {
		return nil, errors.New("user record is missing an id")
	}

	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, claims *model.AuthClaims) (*model.User, error) {
	if claims == nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("user record is missing an id")
	}
	return user, nil
}

func (s *AuthService) ParseAccessToken(token string) (*model.AuthClaims, error) {
	return s.tokens.Verify(token)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(model.AuthClaims{Subject: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}
