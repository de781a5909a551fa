package http

import (
	"context"

	"github.com/go-otp-auth/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
// Both the DynamoDB and MongoDB stores satisfy it.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetToken(ctx context.Context, userID, token string) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
	Delete(ctx context.Context, userID string) error
}

// OTPRepository is the minimal interface the router requires from an OTP store.
type OTPRepository interface {
	Upsert(ctx context.Context, o *domain.OTP) error
	Get(ctx context.Context, email string) (*domain.OTP, error)
	Delete(ctx context.Context, email string) error
}

// TokenSigner issues the login token for a user id.
type TokenSigner interface {
	Sign(userID string) (string, error)
}
