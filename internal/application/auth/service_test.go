package auth

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-otp-auth/internal/config"
	"github.com/go-otp-auth/internal/domain"
	jwtinfra "github.com/go-otp-auth/internal/infrastructure/jwt"
	"github.com/go-otp-auth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	restore := testutil.SilenceDefaultLogger()
	code := m.Run()
	restore()
	os.Exit(code)
}

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) SetToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}
func (m *mockUserStore) SetPasswordHash(ctx context.Context, userID, hash string) error {
	return m.Called(ctx, userID, hash).Error(0)
}

type mockOTPStore struct{ mock.Mock }

func (m *mockOTPStore) Upsert(ctx context.Context, o *domain.OTP) error {
	return m.Called(ctx, o).Error(0)
}
func (m *mockOTPStore) Get(ctx context.Context, email string) (*domain.OTP, error) {
	args := m.Called(ctx, email)
	if o, _ := args.Get(0).(*domain.OTP); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPStore) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

// --- in-memory stores for multi-step flows ---

type memOTPs struct{ byEmail map[string]domain.OTP }

func newMemOTPs() *memOTPs { return &memOTPs{byEmail: map[string]domain.OTP{}} }

func (s *memOTPs) Upsert(_ context.Context, o *domain.OTP) error {
	s.byEmail[o.Email] = *o
	return nil
}
func (s *memOTPs) Get(_ context.Context, email string) (*domain.OTP, error) {
	o, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}
func (s *memOTPs) Delete(_ context.Context, email string) error {
	delete(s.byEmail, email)
	return nil
}

type memUsers struct{ byID map[string]*domain.User }

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*domain.User{}} }

func (s *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (s *memUsers) Create(_ context.Context, u *domain.User) error {
	u.UserID = "u" + strconv.Itoa(len(s.byID)+1)
	cp := *u
	s.byID[u.UserID] = &cp
	return nil
}
func (s *memUsers) SetToken(_ context.Context, userID, token string) error {
	s.byID[userID].Token = token
	return nil
}
func (s *memUsers) SetPasswordHash(_ context.Context, userID, hash string) error {
	s.byID[userID].PasswordHash = hash
	return nil
}

// --- builders ---

func newService(us userStore, otpRepo otpStore, ml mailer, jwt tokenSigner) *service {
	return NewService(ServiceDeps{
		UserRepo:    us,
		OTPRepo:     otpRepo,
		Mailer:      ml,
		JWTProvider: jwt,
		BcryptCost:  bcrypt.MinCost,
	}).(*service)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func okMailer() *mockMailer {
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return ml
}

// --- SendOTP ---

func TestSendOTP_MissingEmail(t *testing.T) {
	svc := newService(nil, nil, nil, nil)
	err := svc.SendOTP(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingField)
}

func TestSendOTP_UserExists(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(&domain.User{UserID: "u1"}, nil)

	svc := newService(us, nil, nil, nil)
	err := svc.SendOTP(context.Background(), "a@x.com")

	assert.ErrorIs(t, err, domain.ErrConflict)
	us.AssertExpectations(t)
}

func TestSendOTP_LookupFailureIsNotConflict(t *testing.T) {
	us := &mockUserStore{}
	boom := errors.New("store down")
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, boom)

	svc := newService(us, nil, nil, nil)
	err := svc.SendOTP(context.Background(), "a@x.com")

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}

func TestSendOTP_HappyPath_NormalizesAndMails(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPStore{}
	ml := &mockMailer{}

	us.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	var stored *domain.OTP
	otps.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.OTP")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.OTP) }).
		Return(nil).Once()
	ml.On("SendEmail", "a@x.com", "OTP for verification", mock.MatchedBy(func(body string) bool {
		return stored != nil && body == "Your OTP is "+strconv.Itoa(stored.Code)
	})).Return(nil).Once()

	svc := newService(us, otps, ml, nil)
	require.NoError(t, svc.SendOTP(context.Background(), "  A@X.com "))

	require.NotNil(t, stored)
	assert.Equal(t, "a@x.com", stored.Email)
	assert.GreaterOrEqual(t, stored.Code, domain.OTPMin)
	assert.LessOrEqual(t, stored.Code, domain.OTPMax)
	assert.False(t, stored.CreatedAt.IsZero())
	us.AssertExpectations(t)
	otps.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestSendOTP_MailFailureIsSwallowed(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPStore{}
	ml := &mockMailer{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	otps.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := newService(us, otps, ml, nil)
	assert.NoError(t, svc.SendOTP(context.Background(), "a@x.com"))
	otps.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestSendOTP_StoreFailureSkipsMail(t *testing.T) {
	us := &mockUserStore{}
	otps := &mockOTPStore{}
	ml := &mockMailer{}
	boom := errors.New("write failed")
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	otps.On("Upsert", mock.Anything, mock.Anything).Return(boom)

	svc := newService(us, otps, ml, nil)
	assert.ErrorIs(t, svc.SendOTP(context.Background(), "a@x.com"), boom)
	ml.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

// --- CheckOTP ---

func TestCheckOTP_NotFound(t *testing.T) {
	otps := &mockOTPStore{}
	otps.On("Get", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)

	svc := newService(nil, otps, nil, nil)
	err := svc.CheckOTP(context.Background(), "A@x.com", "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckOTP_EmptyEmailIsNotFound(t *testing.T) {
	svc := newService(nil, &mockOTPStore{}, nil, nil)
	err := svc.CheckOTP(context.Background(), "   ", "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckOTP_Mismatch_KeepsRecord(t *testing.T) {
	for _, submitted := range []string{"111111", "abc", "", "12345"} {
		t.Run(submitted, func(t *testing.T) {
			otps := &mockOTPStore{}
			otps.On("Get", mock.Anything, "a@x.com").Return(&domain.OTP{Email: "a@x.com", Code: 123456}, nil)

			svc := newService(nil, otps, nil, nil)
			err := svc.CheckOTP(context.Background(), "a@x.com", submitted)

			assert.ErrorIs(t, err, domain.ErrMismatch)
			otps.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckOTP_Match_Deletes(t *testing.T) {
	otps := &mockOTPStore{}
	otps.On("Get", mock.Anything, "a@x.com").Return(&domain.OTP{Email: "a@x.com", Code: 123456}, nil)
	otps.On("Delete", mock.Anything, "a@x.com").Return(nil).Once()

	svc := newService(nil, otps, nil, nil)
	require.NoError(t, svc.CheckOTP(context.Background(), "a@x.com", " 123456"))
	otps.AssertExpectations(t)
}

func TestCheckOTP_TTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	otps := &mockOTPStore{}
	otps.On("Get", mock.Anything, "a@x.com").Return(&domain.OTP{Code: 123456, CreatedAt: now.Add(-11 * time.Minute)}, nil)

	svc := newService(nil, otps, nil, nil)
	svc.now = func() time.Time { return now }

	svc.otpTTL = 10 * time.Minute
	assert.ErrorIs(t, svc.CheckOTP(context.Background(), "a@x.com", "123456"), domain.ErrNotFound)

	otps.On("Delete", mock.Anything, "a@x.com").Return(nil)
	svc.otpTTL = 0
	assert.NoError(t, svc.CheckOTP(context.Background(), "a@x.com", "123456"), "zero TTL never expires")
}

func TestOTPFlow_ResendOverwritesAndSuccessConsumes(t *testing.T) {
	otps := newMemOTPs()
	svc := newService(newMemUsers(), otps, okMailer(), nil)
	codes := []int{111111, 222222}
	svc.genCode = func() (int, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	ctx := context.Background()

	require.NoError(t, svc.SendOTP(ctx, "a@x.com"))
	require.NoError(t, svc.SendOTP(ctx, "a@x.com"))
	assert.Len(t, otps.byEmail, 1)

	assert.ErrorIs(t, svc.CheckOTP(ctx, "a@x.com", "111111"), domain.ErrMismatch)
	require.NoError(t, svc.CheckOTP(ctx, "a@x.com", "222222"))
	assert.Empty(t, otps.byEmail)
	assert.ErrorIs(t, svc.CheckOTP(ctx, "a@x.com", "222222"), domain.ErrNotFound)
}

// --- Register ---

func validRegister() domain.RegisterRequest {
	return domain.RegisterRequest{
		Email:            "a@x.com",
		Password:         "secret",
		SecurityQuestion: "First pet?",
		SecurityAnswer:   "Rex",
	}
}

func TestRegister_MissingFields(t *testing.T) {
	cases := map[string]func(r *domain.RegisterRequest){
		"email":            func(r *domain.RegisterRequest) { r.Email = "" },
		"password":         func(r *domain.RegisterRequest) { r.Password = "" },
		"securityQuestion": func(r *domain.RegisterRequest) { r.SecurityQuestion = "" },
		"securityAnswer":   func(r *domain.RegisterRequest) { r.SecurityAnswer = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRegister()
			mutate(&req)
			svc := newService(&mockUserStore{}, nil, nil, nil)
			_, err := svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrMissingField)
		})
	}
}

func TestRegister_Conflict(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(&domain.User{UserID: "u1"}, nil)

	svc := newService(us, nil, nil, nil)
	_, err := svc.Register(context.Background(), validRegister())

	assert.ErrorIs(t, err, domain.ErrConflict)
	us.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_HappyPath_HashesPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)
	var created *domain.User
	us.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.User)
			created.UserID = "u1"
		}).Return(nil)

	svc := newService(us, nil, nil, nil)
	u, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	assert.Equal(t, "u1", u.UserID)
	require.NotNil(t, created)
	assert.NotEqual(t, "secret", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret")))
	assert.Equal(t, "First pet?", created.SecurityQuestion)
	assert.Equal(t, "Rex", created.SecurityAnswer)
	assert.Empty(t, created.Token)
}

func TestRegister_Twice_Conflicts(t *testing.T) {
	svc := newService(newMemUsers(), nil, nil, nil)
	_, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validRegister())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// --- Login ---

func TestLogin_UnknownUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)

	svc := newService(us, nil, nil, nil)
	_, err := svc.Login(context.Background(), domain.LoginRequest{Email: "a@x.com", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLogin_EmailIsNotNormalized(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "A@x.com").Return(nil, domain.ErrNotFound).Once()

	svc := newService(us, nil, nil, nil)
	_, err := svc.Login(context.Background(), domain.LoginRequest{Email: "A@x.com", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	us.AssertExpectations(t)
}

func TestLogin_WrongPassword_DoesNotTouchToken(t *testing.T) {
	us := &mockUserStore{}
	jwt := &mockJWTSigner{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(&domain.User{UserID: "u1", PasswordHash: hashOf(t, "right"), Token: "old"}, nil)

	svc := newService(us, nil, nil, jwt)
	_, err := svc.Login(context.Background(), domain.LoginRequest{Email: "a@x.com", Password: "wrong"})

	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	us.AssertNotCalled(t, "SetToken", mock.Anything, mock.Anything, mock.Anything)
	jwt.AssertNotCalled(t, "Sign", mock.Anything)
}

func TestLogin_HappyPath_PersistsToken(t *testing.T) {
	us := &mockUserStore{}
	jwt := &mockJWTSigner{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(&domain.User{UserID: "u1", PasswordHash: hashOf(t, "right")}, nil)
	jwt.On("Sign", "u1").Return("signed-token", nil)
	us.On("SetToken", mock.Anything, "u1", "signed-token").Return(nil).Once()

	svc := newService(us, nil, nil, jwt)
	res, err := svc.Login(context.Background(), domain.LoginRequest{Email: "a@x.com", Password: "right"})
	require.NoError(t, err)

	assert.Equal(t, "signed-token", res.Token)
	assert.Equal(t, "signed-token", res.User.Token)
	us.AssertExpectations(t)
}

func TestLogin_SignFailure(t *testing.T) {
	us := &mockUserStore{}
	jwt := &mockJWTSigner{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(&domain.User{UserID: "u1", PasswordHash: hashOf(t, "right")}, nil)
	jwt.On("Sign", "u1").Return("", errors.New("sign failed"))

	svc := newService(us, nil, nil, jwt)
	_, err := svc.Login(context.Background(), domain.LoginRequest{Email: "a@x.com", Password: "right"})
	require.Error(t, err)
	us.AssertNotCalled(t, "SetToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_TokenCarriesUserIDForOneHour(t *testing.T) {
	provider, err := jwtinfra.NewProvider(&config.Config{JWTSecret: "passwordkey", JWTExpiry: time.Hour})
	require.NoError(t, err)
	users := newMemUsers()
	svc := newService(users, nil, nil, provider)

	u, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	res, err := svc.Login(context.Background(), domain.LoginRequest{Email: "a@x.com", Password: "secret"})
	require.NoError(t, err)

	claims, err := provider.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, claims.UserID)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	assert.Equal(t, res.Token, users.byID[u.UserID].Token)
}

// --- ChangePassword ---

func storedUser(t *testing.T) *domain.User {
	return &domain.User{
		UserID:           "u1",
		Email:            "a@x.com",
		PasswordHash:     hashOf(t, "old"),
		SecurityQuestion: "First pet?",
		SecurityAnswer:   "Rex",
		Token:            "tok",
	}
}

func TestChangePassword_UnknownUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)

	svc := newService(us, nil, nil, nil)
	err := svc.ChangePassword(context.Background(), domain.ChangePasswordRequest{Email: "a@x.com", Password: "new"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChangePassword_SecurityMismatch_LeavesHash(t *testing.T) {
	cases := map[string]domain.ChangePasswordRequest{
		"wrong answer":          {SecurityQuestion: "First pet?", SecurityAnswer: "Max"},
		"question differs":      {SecurityQuestion: "first pet?", SecurityAnswer: "Rex"},
		"answer missing":        {SecurityQuestion: "First pet?"},
		"wrong answer any case": {SecurityQuestion: "First pet?", SecurityAnswer: "MAX"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			us := &mockUserStore{}
			us.On("GetByEmail", mock.Anything, "a@x.com").Return(storedUser(t), nil)

			req.Email, req.Password = "a@x.com", "new"
			svc := newService(us, nil, nil, nil)
			err := svc.ChangePassword(context.Background(), req)

			assert.ErrorIs(t, err, domain.ErrSecurityMismatch)
			us.AssertNotCalled(t, "SetPasswordHash", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestChangePassword_AnswerCaseInsensitive(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(storedUser(t), nil)
	us.On("SetPasswordHash", mock.Anything, "u1", mock.MatchedBy(func(h string) bool {
		return bcrypt.CompareHashAndPassword([]byte(h), []byte("new")) == nil
	})).Return(nil).Once()

	svc := newService(us, nil, nil, nil)
	err := svc.ChangePassword(context.Background(), domain.ChangePasswordRequest{
		Email: "a@x.com", Password: "new", SecurityQuestion: "First pet?", SecurityAnswer: "rEX",
	})
	require.NoError(t, err)
	us.AssertExpectations(t)
}

func TestChangePassword_EmptyPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(storedUser(t), nil)

	svc := newService(us, nil, nil, nil)
	err := svc.ChangePassword(context.Background(), domain.ChangePasswordRequest{
		Email: "a@x.com", SecurityQuestion: "First pet?", SecurityAnswer: "Rex",
	})
	assert.ErrorIs(t, err, domain.ErrMissingField)
	us.AssertNotCalled(t, "SetPasswordHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_KeepsToken(t *testing.T) {
	users := newMemUsers()
	svc := newService(users, nil, nil, nil)
	u := storedUser(t)
	users.byID[u.UserID] = u

	err := svc.ChangePassword(context.Background(), domain.ChangePasswordRequest{
		Email: "a@x.com", Password: "new", SecurityQuestion: "First pet?", SecurityAnswer: "rex",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", users.byID["u1"].Token)
	assert.True(t, strings.HasPrefix(users.byID["u1"].PasswordHash, "$2"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.byID["u1"].PasswordHash), []byte("new")))
}
