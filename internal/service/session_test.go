package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/auth"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/domain"
	apperrors "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/errors"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// --- Fake Token Store ---

// fakeTokenStore is an in-memory TokenStore with the same single-use
// semantics as the redis implementation.
type fakeTokenStore struct {
	refresh   map[string]map[string]bool
	blacklist map[string]time.Duration
	reset     map[string]string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{
		refresh:   make(map[string]map[string]bool),
		blacklist: make(map[string]time.Duration),
		reset:     make(map[string]string),
	}
}

func (s *fakeTokenStore) AllowRefresh(_ context.Context, userID, token string, _ time.Duration) error {
	if s.refresh[userID] == nil {
		s.refresh[userID] = make(map[string]bool)
	}
	s.refresh[userID][token] = true
	return nil
}

func (s *fakeTokenStore) ConsumeRefresh(_ context.Context, userID, token string) (bool, error) {
	if !s.refresh[userID][token] {
		return false, nil
	}
	delete(s.refresh[userID], token)
	return true, nil
}

func (s *fakeTokenStore) RevokeRefresh(_ context.Context, userID, token string) error {
	delete(s.refresh[userID], token)
	return nil
}

func (s *fakeTokenStore) RevokeAllRefresh(_ context.Context, userID string) (int, error) {
	n := len(s.refresh[userID])
	delete(s.refresh, userID)
	return n, nil
}

func (s *fakeTokenStore) BlacklistAccess(_ context.Context, token string, ttl time.Duration) error {
	s.blacklist[token] = ttl
	return nil
}

func (s *fakeTokenStore) IsAccessBlacklisted(_ context.Context, token string) (bool, error) {
	_, ok := s.blacklist[token]
	return ok, nil
}

func (s *fakeTokenStore) StoreResetToken(_ context.Context, token, userID string, _ time.Duration) error {
	s.reset[token] = userID
	return nil
}

func (s *fakeTokenStore) ConsumeResetToken(_ context.Context, token string) (string, error) {
	userID := s.reset[token]
	delete(s.reset, token)
	return userID, nil
}

func (s *fakeTokenStore) allowedCount(userID string) int {
	return len(s.refresh[userID])
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJWTManager() *auth.JWTManager {
	return auth.NewJWTManager("test-access-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

// fakeEventPublisher records published events in memory so tests stay fast
// and never dial a broker.
type fakeEventPublisher struct {
	events []string
	err    error
}

func (p *fakeEventPublisher) PublishUserRegistered(_ context.Context, user *domain.User) error {
	p.events = append(p.events, "user.registered:"+user.ID)
	return p.err
}

func (p *fakeEventPublisher) PublishPasswordResetRequested(_ context.Context, userID, _, _, _ string) error {
	p.events = append(p.events, "user.password_reset_requested:"+userID)
	return p.err
}

func (p *fakeEventPublisher) PublishPasswordChanged(_ context.Context, userID string) error {
	p.events = append(p.events, "user.password_changed:"+userID)
	return p.err
}

func newTestService(userRepo *mockUserRepository, store *fakeTokenStore) *SessionService {
	svc, _ := newTestServiceWithEvents(userRepo, store)
	return svc
}

func newTestServiceWithEvents(userRepo *mockUserRepository, store *fakeTokenStore) (*SessionService, *fakeEventPublisher) {
	publisher := &fakeEventPublisher{}
	svc := NewSessionService(
		userRepo,
		store,
		newTestJWTManager(),
		publisher,
		newTestLogger(),
		bcrypt.MinCost,
		time.Hour,
	)
	return svc, publisher
}

// hashForTest creates a bcrypt hash with minimum cost for fast tests.
func hashForTest(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeUser(t *testing.T, password string) *domain.User {
	t.Helper()
	return &domain.User{
		ID:                "u-1",
		Email:             "meera@example.com",
		PhoneNumber:       "+919876543210",
		PasswordHash:      hashForTest(t, password),
		FullName:          "Meera Rao",
		Role:              domain.RoleCustomer,
		PreferredLanguage: "en",
		IsActive:          true,
		CreatedAt:         time.Now().UTC(),
	}
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Email:       "meera@example.com",
		PhoneNumber: "+919876543210",
		Password:    "Str0ng!Pass",
		FullName:    "Meera Rao",
		Role:        domain.RoleCustomer,
	}
}

// --- Register ---

func TestRegister(t *testing.T) {
	t.Run("creates user and issues allow-listed token pair", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		var created *domain.User
		userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
			Return(nil)

		user, tokens, err := svc.Register(context.Background(), validRegisterInput())
		require.NoError(t, err)
		require.NotNil(t, created)

		assert.Equal(t, "meera@example.com", user.Email)
		assert.Equal(t, domain.RoleCustomer, user.Role)
		assert.Equal(t, domain.DefaultLanguage, user.PreferredLanguage)
		assert.True(t, user.IsActive)
		assert.NotEmpty(t, user.ID)
		assert.NotEqual(t, "Str0ng!Pass", created.PasswordHash)

		require.NotEmpty(t, tokens.AccessToken)
		require.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, 1, store.allowedCount(user.ID))

		userRepo.AssertExpectations(t)
	})

	t.Run("lowercases email before storing", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		svc := newTestService(userRepo, newFakeTokenStore())

		userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

		input := validRegisterInput()
		input.Email = "  Meera@Example.COM "
		user, _, err := svc.Register(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, "meera@example.com", user.Email)
	})

	t.Run("keeps explicit preferred language", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		svc := newTestService(userRepo, newFakeTokenStore())

		userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

		input := validRegisterInput()
		input.PreferredLanguage = "hi"
		user, _, err := svc.Register(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, "hi", user.PreferredLanguage)
	})

	t.Run("rejects admin self-registration", func(t *testing.T) {
		svc := newTestService(new(mockUserRepository), newFakeTokenStore())

		input := validRegisterInput()
		input.Role = domain.RoleAdmin
		_, _, err := svc.Register(context.Background(), input)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		svc := newTestService(new(mockUserRepository), newFakeTokenStore())

		input := validRegisterInput()
		input.Role = "wholesaler"
		_, _, err := svc.Register(context.Background(), input)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
	})

	t.Run("propagates duplicate email as conflict", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		svc := newTestService(userRepo, newFakeTokenStore())

		userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
			Return(apperrors.Conflict("user", "email"))

		_, _, err := svc.Register(context.Background(), validRegisterInput())
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
		assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		svc := newTestService(new(mockUserRepository), newFakeTokenStore())

		for name, mutate := range map[string]func(*RegisterInput){
			"email": func(in *RegisterInput) { in.Email = "" },
			"phone": func(in *RegisterInput) { in.PhoneNumber = "" },
			"name":  func(in *RegisterInput) { in.FullName = "" },
		} {
			input := validRegisterInput()
			mutate(&input)
			_, _, err := svc.Register(context.Background(), input)
			require.Error(t, err, name)
			assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err), name)
		}
	})
}

// --- Event publishing ---

func TestEventPublishing(t *testing.T) {
	t.Run("register publishes user.registered", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		svc, publisher := newTestServiceWithEvents(userRepo, newFakeTokenStore())

		userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

		user, _, err := svc.Register(context.Background(), validRegisterInput())
		require.NoError(t, err)
		require.Len(t, publisher.events, 1)
		assert.Equal(t, "user.registered:"+user.ID, publisher.events[0])
	})

	t.Run("publish failure does not fail registration", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc, publisher := newTestServiceWithEvents(userRepo, store)
		publisher.err = errors.New("broker unreachable")

		userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

		user, tokens, err := svc.Register(context.Background(), validRegisterInput())
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.Equal(t, 1, store.allowedCount(user.ID))
	})

	t.Run("forgot password publishes reset request", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		svc, publisher := newTestServiceWithEvents(userRepo, newFakeTokenStore())

		user := activeUser(t, "Str0ng!Pass")
		userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

		_, err := svc.ForgotPassword(context.Background(), user.Email)
		require.NoError(t, err)
		require.Len(t, publisher.events, 1)
		assert.Equal(t, "user.password_reset_requested:"+user.ID, publisher.events[0])
	})

	t.Run("reset password publishes password change", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc, publisher := newTestServiceWithEvents(userRepo, store)

		require.NoError(t, store.StoreResetToken(context.Background(), "tok-1", "u-1", time.Hour))
		userRepo.On("UpdatePassword", mock.Anything, "u-1", mock.AnythingOfType("string")).Return(nil)

		require.NoError(t, svc.ResetPassword(context.Background(), "tok-1", "N3w!Passw0rd"))
		require.Len(t, publisher.events, 1)
		assert.Equal(t, "user.password_changed:u-1", publisher.events[0])
	})
}

// --- Password policy ---

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantMsg  string
	}{
		{"valid", "Str0ng!Pass", ""},
		{"too short", "Aa1!x", "password must be at least 8 characters"},
		{"no uppercase", "weakpass1!", "password must contain at least one uppercase letter"},
		{"no digit", "Weakpass!!", "password must contain at least one digit"},
		{"no special", "Weakpass11", "password must contain at least one special character"},
		// Rules are checked in order: a short password missing everything
		// reports only the length rule.
		{"length checked first", "abc", "password must be at least 8 characters"},
		{"uppercase checked before digit", "weakpass", "password must contain at least one uppercase letter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantMsg, appErr.Message)
			assert.Equal(t, http.StatusBadRequest, appErr.Status)
		})
	}
}

// --- Login ---

func TestLogin(t *testing.T) {
	t.Run("succeeds with correct credentials", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		user := activeUser(t, "Str0ng!Pass")
		userRepo.On("GetByEmail", mock.Anything, "meera@example.com").Return(user, nil)

		got, tokens, err := svc.Login(context.Background(), LoginInput{Email: "meera@example.com", Password: "Str0ng!Pass"})
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.Equal(t, 1, store.allowedCount(user.ID))
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		svc := newTestService(userRepo, newFakeTokenStore())

		userRepo.On("GetByEmail", mock.Anything, "ghost@example.com").
			Return(nil, apperrors.NotFound("user", "ghost@example.com"))
		userRepo.On("GetByEmail", mock.Anything, "meera@example.com").
			Return(activeUser(t, "Str0ng!Pass"), nil)

		_, _, errUnknown := svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "whatever1!A"})
		_, _, errWrongPw := svc.Login(context.Background(), LoginInput{Email: "meera@example.com", Password: "Wr0ng!Pass"})

		require.Error(t, errUnknown)
		require.Error(t, errWrongPw)

		var appUnknown, appWrongPw *apperrors.AppError
		require.True(t, errors.As(errUnknown, &appUnknown))
		require.True(t, errors.As(errWrongPw, &appWrongPw))
		assert.Equal(t, appWrongPw.Message, appUnknown.Message)
		assert.Equal(t, http.StatusUnauthorized, appUnknown.Status)
		assert.Equal(t, http.StatusUnauthorized, appWrongPw.Status)
	})

	t.Run("rejects deactivated account", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		svc := newTestService(userRepo, newFakeTokenStore())

		user := activeUser(t, "Str0ng!Pass")
		user.IsActive = false
		userRepo.On("GetByEmail", mock.Anything, "meera@example.com").Return(user, nil)

		_, _, err := svc.Login(context.Background(), LoginInput{Email: "meera@example.com", Password: "Str0ng!Pass"})
		require.Error(t, err)
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "account is deactivated", appErr.Message)
		assert.Equal(t, http.StatusUnauthorized, appErr.Status)
	})
}

// --- Refresh rotation ---

func TestRefresh(t *testing.T) {
	login := func(t *testing.T, userRepo *mockUserRepository, store *fakeTokenStore, svc *SessionService) (*domain.User, *domain.TokenPair) {
		t.Helper()
		user := activeUser(t, "Str0ng!Pass")
		userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		_, tokens, err := svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "Str0ng!Pass"})
		require.NoError(t, err)
		return user, tokens
	}

	t.Run("rotates to a fresh pair", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		user, tokens := login(t, userRepo, store, svc)
		userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		rotated, err := svc.Refresh(context.Background(), tokens.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, rotated.AccessToken)
		assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

		// Only the new refresh token is allow-listed.
		assert.Equal(t, 1, store.allowedCount(user.ID))
	})

	t.Run("a rotated token is single-use", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		user, tokens := login(t, userRepo, store, svc)
		userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		_, err := svc.Refresh(context.Background(), tokens.RefreshToken)
		require.NoError(t, err)

		_, err = svc.Refresh(context.Background(), tokens.RefreshToken)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
	})

	t.Run("rejects missing token", func(t *testing.T) {
		svc := newTestService(new(mockUserRepository), newFakeTokenStore())

		_, err := svc.Refresh(context.Background(), "")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
	})

	t.Run("rejects an access token", func(t *testing.T) {
		svc := newTestService(new(mockUserRepository), newFakeTokenStore())

		accessToken, err := newTestJWTManager().GenerateAccessToken("u-1", "meera@example.com", domain.RoleCustomer)
		require.NoError(t, err)

		_, err = svc.Refresh(context.Background(), accessToken)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
	})

	t.Run("rejects a valid token that was never allow-listed", func(t *testing.T) {
		svc := newTestService(new(mockUserRepository), newFakeTokenStore())

		refreshToken, err := newTestJWTManager().GenerateRefreshToken("u-1")
		require.NoError(t, err)

		_, err = svc.Refresh(context.Background(), refreshToken)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
	})

	t.Run("rejects refresh for a deactivated account", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		user, tokens := login(t, userRepo, store, svc)
		user.IsActive = false
		userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		_, err := svc.Refresh(context.Background(), tokens.RefreshToken)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
	})
}

// --- Logout ---

func TestLogout(t *testing.T) {
	t.Run("blacklists access token and revokes refresh token", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		user := activeUser(t, "Str0ng!Pass")
		userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		_, tokens, err := svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "Str0ng!Pass"})
		require.NoError(t, err)

		svc.Logout(context.Background(), LogoutInput{
			UserID:       user.ID,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		})

		blacklisted, err := store.IsAccessBlacklisted(context.Background(), tokens.AccessToken)
		require.NoError(t, err)
		assert.True(t, blacklisted)
		// Blacklist TTL tracks the token's remaining lifetime, not forever.
		assert.LessOrEqual(t, store.blacklist[tokens.AccessToken], 15*time.Minute)
		assert.Equal(t, 0, store.allowedCount(user.ID))
	})

	t.Run("is idempotent with missing tokens", func(t *testing.T) {
		store := newFakeTokenStore()
		svc := newTestService(new(mockUserRepository), store)

		svc.Logout(context.Background(), LogoutInput{UserID: "u-1"})
		svc.Logout(context.Background(), LogoutInput{})
		assert.Empty(t, store.blacklist)
	})

	t.Run("ignores a garbage access token", func(t *testing.T) {
		store := newFakeTokenStore()
		svc := newTestService(new(mockUserRepository), store)

		svc.Logout(context.Background(), LogoutInput{UserID: "u-1", AccessToken: "not-a-jwt"})
		assert.Empty(t, store.blacklist)
	})
}

func TestLogoutAll(t *testing.T) {
	userRepo := new(mockUserRepository)
	store := newFakeTokenStore()
	svc := newTestService(userRepo, store)

	user := activeUser(t, "Str0ng!Pass")
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	for range 3 {
		_, _, err := svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "Str0ng!Pass"})
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.allowedCount(user.ID))

	require.NoError(t, svc.LogoutAll(context.Background(), user.ID))
	assert.Equal(t, 0, store.allowedCount(user.ID))
}

// --- Password reset flow ---

func TestForgotPassword(t *testing.T) {
	t.Run("stores a reset token for a known email", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		user := activeUser(t, "Str0ng!Pass")
		userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

		msg, err := svc.ForgotPassword(context.Background(), user.Email)
		require.NoError(t, err)
		assert.Equal(t, forgotPasswordMessage, msg)
		require.Len(t, store.reset, 1)
		for token, ownerID := range store.reset {
			assert.Len(t, token, 2*resetTokenBytes)
			assert.Equal(t, user.ID, ownerID)
		}
	})

	t.Run("returns the same message for an unknown email", func(t *testing.T) {
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		userRepo.On("GetByEmail", mock.Anything, "ghost@example.com").
			Return(nil, apperrors.NotFound("user", "ghost@example.com"))

		msg, err := svc.ForgotPassword(context.Background(), "ghost@example.com")
		require.NoError(t, err)
		assert.Equal(t, forgotPasswordMessage, msg)
		assert.Empty(t, store.reset)
	})
}

func TestResetPassword(t *testing.T) {
	setup := func(t *testing.T) (*mockUserRepository, *fakeTokenStore, *SessionService, *domain.User, string) {
		t.Helper()
		userRepo := new(mockUserRepository)
		store := newFakeTokenStore()
		svc := newTestService(userRepo, store)

		user := activeUser(t, "Str0ng!Pass")
		userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

		_, err := svc.ForgotPassword(context.Background(), user.Email)
		require.NoError(t, err)
		var token string
		for k := range store.reset {
			token = k
		}
		require.NotEmpty(t, token)
		return userRepo, store, svc, user, token
	}

	t.Run("updates the hash and revokes every session", func(t *testing.T) {
		userRepo, store, svc, user, token := setup(t)

		// Two live sessions before the reset.
		for range 2 {
			_, _, err := svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "Str0ng!Pass"})
			require.NoError(t, err)
		}
		require.Equal(t, 2, store.allowedCount(user.ID))

		userRepo.On("UpdatePassword", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil)

		require.NoError(t, svc.ResetPassword(context.Background(), token, "N3w!Passw0rd"))

		userRepo.AssertCalled(t, "UpdatePassword", mock.Anything, user.ID, mock.AnythingOfType("string"))
		assert.Equal(t, 0, store.allowedCount(user.ID))
	})

	t.Run("a reset token is one-time", func(t *testing.T) {
		userRepo, _, svc, user, token := setup(t)
		userRepo.On("UpdatePassword", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil)

		require.NoError(t, svc.ResetPassword(context.Background(), token, "N3w!Passw0rd"))

		err := svc.ResetPassword(context.Background(), token, "N3w!Passw0rd")
		require.Error(t, err)
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "invalid or expired reset token", appErr.Message)
		assert.Equal(t, http.StatusBadRequest, appErr.Status)
	})

	t.Run("rejects an unknown token", func(t *testing.T) {
		svc := newTestService(new(mockUserRepository), newFakeTokenStore())

		err := svc.ResetPassword(context.Background(), "deadbeef", "N3w!Passw0rd")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
	})

	t.Run("rejects a weak password before touching the token", func(t *testing.T) {
		_, store, svc, _, token := setup(t)

		err := svc.ResetPassword(context.Background(), token, "short")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
		// Policy failure must not consume the token.
		assert.Len(t, store.reset, 1)
	})
}

func TestGetProfile(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestService(userRepo, newFakeTokenStore())

	user := activeUser(t, "Str0ng!Pass")
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	got, err := svc.GetProfile(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	userRepo.On("GetByID", mock.Anything, "missing").
		Return(nil, apperrors.NotFound("user", "missing"))
	_, err = svc.GetProfile(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
}
