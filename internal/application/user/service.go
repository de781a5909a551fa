package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-otp-auth/internal/domain"
	"github.com/go-otp-auth/internal/pkg/id"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, userID string) error
}

type service struct {
	repo userStore
}

type ServiceDeps struct {
	UserRepo userStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo}
}

// Get returns domain.ErrNotFound for ids that could never have been issued,
// without a round trip to the store.
func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	if !id.Valid(userID) {
		return nil, fmt.Errorf("user %q: %w", userID, domain.ErrNotFound)
	}
	return s.repo.Get(ctx, userID)
}

// List returns every stored user. An empty store is reported as
// domain.ErrNotFound.
func (s *service) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("no users: %w", domain.ErrNotFound)
	}
	return users, nil
}

func (s *service) Delete(ctx context.Context, userID string) error {
	if !id.Valid(userID) {
		return fmt.Errorf("user %q: %w", userID, domain.ErrNotFound)
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	slog.Info("user removed", "user_id", userID)
	return nil
}
