package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-otp-auth/internal/domain"
	"github.com/go-otp-auth/internal/pkg/otp"
	"github.com/go-otp-auth/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpSubject = "OTP for verification"
	otpBody    = "Your OTP is "
)

// LoginResult is what a successful login hands back to the caller.
type LoginResult struct {
	Token string
	User  *domain.User
}

type Service interface {
	SendOTP(ctx context.Context, email string) error
	CheckOTP(ctx context.Context, email, code string) error
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	SetToken(ctx context.Context, userID, token string) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

type otpStore interface {
	Upsert(ctx context.Context, o *domain.OTP) error
	Get(ctx context.Context, email string) (*domain.OTP, error)
	Delete(ctx context.Context, email string) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type tokenSigner interface {
	Sign(userID string) (string, error)
}

type service struct {
	userRepo    userStore
	otpRepo     otpStore
	mailer      mailer
	jwtProvider tokenSigner
	bcryptCost  int
	otpTTL      time.Duration
	genCode     func() (int, error)
	now         func() time.Time
}

type ServiceDeps struct {
	UserRepo    userStore
	OTPRepo     otpStore
	Mailer      mailer
	JWTProvider tokenSigner
	BcryptCost  int
	// OTPTTL of zero disables expiry; a code then lives until used or replaced.
	OTPTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{
		userRepo:    deps.UserRepo,
		otpRepo:     deps.OTPRepo,
		mailer:      deps.Mailer,
		jwtProvider: deps.JWTProvider,
		bcryptCost:  cost,
		otpTTL:      deps.OTPTTL,
		genCode:     otp.Generate,
		now:         time.Now,
	}
}

// normalizeEmail is applied on the OTP flow only; register, login and
// password reset look users up by the email exactly as given.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) SendOTP(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrMissingField)
	}
	email = normalizeEmail(email)

	if err := s.ensureNoUser(ctx, email); err != nil {
		return err
	}

	code, err := s.genCode()
	if err != nil {
		return err
	}
	if err := s.otpRepo.Upsert(ctx, &domain.OTP{Email: email, Code: code, CreatedAt: s.now().UTC()}); err != nil {
		return err
	}
	slog.Info("otp issued", "email", email)

	// Delivery is best effort: the code is already stored and the caller is
	// told it was sent either way.
	if err := s.mailer.SendEmail(email, otpSubject, otpBody+strconv.Itoa(code)); err != nil {
		slog.Error("failed to send otp email", "email", email, "err", err)
	}
	return nil
}

func (s *service) CheckOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}

	rec, err := s.otpRepo.Get(ctx, email)
	if err != nil {
		return err
	}
	if s.otpTTL > 0 && s.now().Sub(rec.CreatedAt) > s.otpTTL {
		return fmt.Errorf("otp expired: %w", domain.ErrNotFound)
	}

	submitted, ok := otp.Parse(code)
	if !ok || submitted != rec.Code {
		return fmt.Errorf("incorrect otp: %w", domain.ErrMismatch)
	}

	if err := s.otpRepo.Delete(ctx, email); err != nil {
		return err
	}
	slog.Info("email verified", "email", email)
	return nil
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if err := validate.Struct(&req); err != nil {
		if validate.Missing(err) {
			return nil, fmt.Errorf("%v: %w", err, domain.ErrMissingField)
		}
		return nil, err
	}
	if err := s.ensureNoUser(ctx, req.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		Email:            req.Email,
		PasswordHash:     string(hash),
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", u.UserID)
	return u, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	u, err := s.findUser(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("password does not match: %w", domain.ErrInvalidCredentials)
	}

	token, err := s.jwtProvider.Sign(u.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetToken(ctx, u.UserID, token); err != nil {
		return nil, err
	}
	u.Token = token
	return &LoginResult{Token: token, User: u}, nil
}

func (s *service) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) error {
	u, err := s.findUser(ctx, req.Email)
	if err != nil {
		return err
	}
	if u.SecurityQuestion != req.SecurityQuestion || !strings.EqualFold(u.SecurityAnswer, req.SecurityAnswer) {
		return fmt.Errorf("security details do not match: %w", domain.ErrSecurityMismatch)
	}
	if req.Password == "" {
		return fmt.Errorf("password is required: %w", domain.ErrMissingField)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.SetPasswordHash(ctx, u.UserID, string(hash)); err != nil {
		return err
	}
	slog.Info("password changed", "user_id", u.UserID)
	return nil
}

// ensureNoUser returns domain.ErrConflict when a user is stored under email.
func (s *service) ensureNoUser(ctx context.Context, email string) error {
	_, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return fmt.Errorf("user already exists: %w", domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *service) findUser(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return s.userRepo.GetByEmail(ctx, email)
}
