package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/sync/semaphore"
)

// randReader is the entropy source for salts.
var randReader io.Reader = rand.Reader

const (
	passwordSaltBytes = 32
	passwordKeyLength = 64
)

// ScryptParams are the cost parameters shared by Hash and Verify. Changing
// them invalidates every stored credential.
type ScryptParams struct {
	N int
	R int
	P int
}

// DefaultScryptParams matches the parameters existing records were written with.
var DefaultScryptParams = ScryptParams{N: 16384, R: 8, P: 1}

type PasswordHasher struct {
	params ScryptParams
	sem    *semaphore.Weighted
}

type HasherOption func(*PasswordHasher)

func WithScryptParams(p ScryptParams) HasherOption {
	return func(h *PasswordHasher) {
		h.params = p
	}
}

// NewPasswordHasher bounds the number of concurrent derivations to
// maxConcurrent (NumCPU when <= 0).
func NewPasswordHasher(maxConcurrent int, opts ...HasherOption) *PasswordHasher {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	h := &PasswordHasher{
		params: DefaultScryptParams,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns a fresh hex salt and the hex-encoded derived key.
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, string, error) {
	salt, err := randomHex(passwordSaltBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	key, err := h.derive(ctx, password, salt)
	if err != nil {
		return "", "", err
	}
	return salt, hex.EncodeToString(key), nil
}

// Verify reports whether password matches the stored pair. A wrong password,
// an undecodable hash or a length mismatch is false with a nil error.
func (h *PasswordHasher) Verify(ctx context.Context, password, salt, expectedHash string) (bool, error) {
	key, err := h.derive(ctx, password, salt)
	if err != nil {
		return false, err
	}

	expected, err := hex.DecodeString(expectedHash)
	if err != nil {
		return false, nil
	}
	if len(expected) != len(key) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(expected, key) == 1, nil
}

// derive feeds the salt's hex text to scrypt, not the decoded bytes.
func (h *PasswordHasher) derive(ctx context.Context, password, salt string) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.sem.Release(1)

	key, err := scrypt.Key([]byte(password), []byte(salt), h.params.N, h.params.R, h.params.P, passwordKeyLength)
	if err != nil {
		return nil, fmt.Errorf("derive password key: %w", err)
	}
	return key, nil
}

func randomHex(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := io.ReadFull(randReader, raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
