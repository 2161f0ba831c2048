// Package service implements the session manager: registration, login,
// refresh rotation, logout, and the password reset flow, composed from the
// credential store, token state store, and token codec.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/auth"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/domain"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/repository"
	apperrors "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// resetTokenBytes is the entropy of an opaque password-reset token.
const resetTokenBytes = 32

// passwordSpecialChars is the punctuation set accepted by the password policy.
const passwordSpecialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"

// forgotPasswordMessage is returned for every forgot-password request, found
// or not, so the endpoint cannot be used to enumerate accounts.
const forgotPasswordMessage = "if an account with that email exists, a password reset link has been sent"

// EventPublisher publishes auth lifecycle events for downstream services.
// event.Producer is the Kafka-backed implementation.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishPasswordResetRequested(ctx context.Context, userID, email, resetToken, expiresIn string) error
	PublishPasswordChanged(ctx context.Context, userID string) error
}

// SessionService implements the business logic for auth and session operations.
type SessionService struct {
	userRepo      repository.UserRepository
	tokenStore    repository.TokenStore
	jwtManager    *auth.JWTManager
	producer      EventPublisher
	logger        *slog.Logger
	bcryptCost    int
	resetTokenTTL time.Duration
}

// NewSessionService creates a new session service.
func NewSessionService(
	userRepo repository.UserRepository,
	tokenStore repository.TokenStore,
	jwtManager *auth.JWTManager,
	producer EventPublisher,
	logger *slog.Logger,
	bcryptCost int,
	resetTokenTTL time.Duration,
) *SessionService {
	return &SessionService{
		userRepo:      userRepo,
		tokenStore:    tokenStore,
		jwtManager:    jwtManager,
		producer:      producer,
		logger:        logger,
		bcryptCost:    bcryptCost,
		resetTokenTTL: resetTokenTTL,
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email             string
	PhoneNumber       string
	Password          string
	FullName          string
	Role              string
	PreferredLanguage string
}

// LoginInput holds the parameters for login.
type LoginInput struct {
	Email    string
	Password string
}

// LogoutInput carries the caller's tokens for best-effort revocation. Either
// token may be empty.
type LogoutInput struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// --- Operations ---

// Register creates a new account with its role-specific profile, issues a
// token pair, and allow-lists the refresh token.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.PhoneNumber == "" {
		return nil, nil, apperrors.InvalidInput("phone number is required")
	}
	if input.FullName == "" {
		return nil, nil, apperrors.InvalidInput("full name is required")
	}
	if !domain.IsValidRole(input.Role) {
		return nil, nil, apperrors.InvalidInput("user type must be customer or seller")
	}
	if !domain.CanSelfRegister(input.Role) {
		return nil, nil, apperrors.InvalidInput("user type must be customer or seller")
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	language := input.PreferredLanguage
	if language == "" {
		language = domain.DefaultLanguage
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:                uuid.New().String(),
		Email:             strings.ToLower(strings.TrimSpace(input.Email)),
		PhoneNumber:       input.PhoneNumber,
		PasswordHash:      string(hashedPassword),
		FullName:          input.FullName,
		Role:              input.Role,
		PreferredLanguage: language,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("user_type", user.Role),
	)

	return user, tokens, nil
}

// Login authenticates a user with email and password, returning a token pair.
// A missing account and a wrong password produce the same error so the
// endpoint cannot be used to discover which emails exist.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if !user.IsActive {
		return nil, nil, apperrors.Unauthorized("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// Logout revokes the caller's tokens: the access token goes on the blacklist
// for its remaining lifetime and the refresh token's allowlist entry is
// removed. Cleanup is best-effort — missing or already-revoked tokens do not
// fail the operation, so logout is idempotent.
func (s *SessionService) Logout(ctx context.Context, input LogoutInput) {
	if input.AccessToken != "" {
		if ttl := s.remainingLifetime(input.AccessToken); ttl > 0 {
			if err := s.tokenStore.BlacklistAccess(ctx, input.AccessToken, ttl); err != nil {
				s.logger.ErrorContext(ctx, "failed to blacklist access token",
					slog.String("user_id", input.UserID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if input.RefreshToken != "" && input.UserID != "" {
		if err := s.tokenStore.RevokeRefresh(ctx, input.UserID, input.RefreshToken); err != nil {
			s.logger.ErrorContext(ctx, "failed to revoke refresh token",
				slog.String("user_id", input.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", input.UserID),
	)
}

// LogoutAll revokes every refresh token for the user. Other devices keep
// their cookies but their next refresh attempt fails, forcing re-login.
func (s *SessionService) LogoutAll(ctx context.Context, userID string) error {
	revoked, err := s.tokenStore.RevokeAllRefresh(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out from all devices",
		slog.String("user_id", userID),
		slog.Int("sessions_revoked", revoked),
	)

	return nil
}

// Refresh rotates a refresh token: the presented token is consumed (checked
// against the allowlist and removed in one atomic step) and a brand-new pair
// is issued. Each refresh token is therefore single-use; presenting an
// already-rotated token fails the allowlist check, which is the replay
// detection signal.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.Unauthorized("refresh token is required")
	}

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	live, err := s.tokenStore.ConsumeRefresh(ctx, claims.UserID, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	if !live {
		s.logger.WarnContext(ctx, "refresh attempted with revoked token",
			slog.String("user_id", claims.UserID),
		)
		return nil, apperrors.Unauthorized("refresh token has been revoked")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID),
	)

	return tokens, nil
}

// ForgotPassword starts the password reset flow. The returned message is
// identical whether or not the email exists. When the account does exist, an
// opaque one-time token is stored and handed to the notification pipeline.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", apperrors.InvalidInput("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset requested for unknown email")
		return forgotPasswordMessage, nil
	}

	token, err := generateResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	if err := s.tokenStore.StoreResetToken(ctx, token, user.ID, s.resetTokenTTL); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	if err := s.producer.PublishPasswordResetRequested(ctx, user.ID, user.Email, token, s.resetTokenTTL.String()); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password reset event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
	)

	return forgotPasswordMessage, nil
}

// ResetPassword completes the reset flow: the token is consumed (one-time),
// the password hash replaced, and every refresh token for the user revoked so
// all existing sessions must log in again.
func (s *SessionService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.InvalidInput("reset token is required")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	userID, err := s.tokenStore.ConsumeResetToken(ctx, token)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if userID == "" {
		return apperrors.InvalidInput("invalid or expired reset token")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, string(hashedPassword)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if _, err := s.tokenStore.RevokeAllRefresh(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh tokens after password reset",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishPasswordChanged(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password changed event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", userID),
	)

	return nil
}

// GetProfile retrieves the authenticated user's public profile.
func (s *SessionService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// --- Helpers ---

// issueTokenPair creates an access/refresh token pair and allow-lists the
// refresh token for its full lifetime.
func (s *SessionService) issueTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.AllowRefresh(ctx, user.ID, refreshToken, s.jwtManager.RefreshExpiry()); err != nil {
		return nil, fmt.Errorf("allowlist refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// remainingLifetime computes how long an access token would still be valid,
// from its exp claim. Blacklisting for longer than that would pin dead tokens
// in the store. Returns zero for tokens that fail validation.
func (s *SessionService) remainingLifetime(accessToken string) time.Duration {
	claims, err := s.jwtManager.ValidateAccessToken(accessToken)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}

// generateResetToken returns a random 64-char hex token. Opaque, not signed;
// possession alone is the capability.
func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ValidatePassword checks the password policy, reporting the first rule that
// fails: length, then uppercase, then digit, then special character. Shared
// by registration and reset-password so the two can never drift.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsDigit(ch):
			hasDigit = true
		case strings.ContainsRune(passwordSpecialChars, ch):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return apperrors.InvalidInput("password must contain at least one uppercase letter")
	}
	if !hasDigit {
		return apperrors.InvalidInput("password must contain at least one digit")
	}
	if !hasSpecial {
		return apperrors.InvalidInput("password must contain at least one special character")
	}

	return nil
}
