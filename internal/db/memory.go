package db

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kube-rca/auth-api/internal/model"
)

// MemoryUserStore keeps users in process memory. Data is lost on restart.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := *s.byID[id]
	return &user, nil
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := *stored
	return &user, nil
}

func (s *MemoryUserStore) Insert(ctx context.Context, user model.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return "", ErrDuplicateEmail
	}
	user.ID = uuid.NewString()
	s.byID[user.ID] = &user
	s.byEmail[user.Email] = user.ID
	return user.ID, nil
}

func (s *MemoryUserStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
