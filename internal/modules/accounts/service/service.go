package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"weatherstation-server/internal/mailer"
	"weatherstation-server/internal/modules/accounts/repository"
	"weatherstation-server/internal/modules/accounts/types"
)

const (
	minPasswordLen = 8
	tokenBytes     = 32
)

var (
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailTaken         = repository.ErrEmailTaken
)

// ValidationError carries a user-facing message for a 400 response.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

type Service struct {
	repo     repository.AccountsRepository
	mail     mailer.Mailer
	logger   *slog.Logger
	tokenTTL time.Duration
}

func NewService(repo repository.AccountsRepository, mail mailer.Mailer, logger *slog.Logger, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, mail: mail, logger: logger, tokenTTL: tokenTTL}
}

type RegisterInput struct {
	Email      string
	Password   string
	RePassword string
	Name       string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*types.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "this field is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ValidationError{Field: "email", Message: "enter a valid email address"}
	}
	if len(in.Password) < minPasswordLen {
		return nil, &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", minPasswordLen),
		}
	}
	if in.Password != in.RePassword {
		return nil, &ValidationError{Field: "re_password", Message: "passwords do not match"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	// Best effort; registration must not fail on mail trouble.
	if err := s.mail.Send(user.Email, "Welcome to the weather station",
		"Your account has been created. You can now register sensors and push measurements.",
	); err != nil {
		s.logger.Warn("welcome mail failed", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// Authenticate checks email+password and returns the user. Inactive users
// authenticate like unknown ones.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*types.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		// Burn a comparison so unknown emails take as long as bad passwords.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IssueAuthToken creates a login token and returns the plaintext exactly once.
func (s *Service) IssueAuthToken(ctx context.Context, user *types.User) (string, *types.AuthToken, error) {
	plaintext, digest, err := newSecret()
	if err != nil {
		return "", nil, err
	}
	token := &types.AuthToken{
		UserID:    user.ID,
		Digest:    digest,
		ExpiresAt: time.Now().UTC().Add(s.tokenTTL),
	}
	if err := s.repo.CreateAuthToken(ctx, token); err != nil {
		return "", nil, err
	}
	return plaintext, token, nil
}

// AuthenticateToken resolves a presented login token to its user.
// Expired tokens are deleted on sight.
func (s *Service) AuthenticateToken(ctx context.Context, plaintext string) (*types.User, *types.AuthToken, error) {
	token, err := s.repo.GetAuthTokenByDigest(ctx, digestOf(plaintext))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	if time.Now().After(token.ExpiresAt) {
		if err := s.repo.DeleteAuthToken(ctx, token.ID); err != nil {
			s.logger.Warn("delete expired token failed", "token_id", token.ID, "error", err)
		}
		return nil, nil, ErrInvalidToken
	}
	user, err := s.repo.GetUserByID(ctx, token.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrInvalidToken
	}
	return user, token, nil
}

func (s *Service) Logout(ctx context.Context, tokenID uint) error {
	return s.repo.DeleteAuthToken(ctx, tokenID)
}

func (s *Service) LogoutAll(ctx context.Context, userID uint) error {
	return s.repo.DeleteAuthTokensForUser(ctx, userID)
}

// IssueAPIKey rotates the user's ingest key and returns the new plaintext.
func (s *Service) IssueAPIKey(ctx context.Context, user *types.User) (string, error) {
	plaintext, digest, err := newSecret()
	if err != nil {
		return "", err
	}
	if err := s.repo.ReplaceAPIKey(ctx, user.ID, digest); err != nil {
		return "", err
	}
	return plaintext, nil
}

// AuthenticateAPIKey resolves an ingest key to its user.
func (s *Service) AuthenticateAPIKey(ctx context.Context, plaintext string) (*types.User, error) {
	key, err := s.repo.GetAPIKeyByDigest(ctx, digestOf(plaintext))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, key.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}

type UpdateInput struct {
	Email    *string
	Name     *string
	Password *string
}

// Update applies a partial (PATCH) or full (PUT handled by the controller)
// update to the user's own profile.
func (s *Service) Update(ctx context.Context, user *types.User, in UpdateInput) (*types.User, error) {
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, &ValidationError{Field: "email", Message: "enter a valid email address"}
		}
		user.Email = email
	}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLen {
			return nil, &ValidationError{
				Field:   "password",
				Message: fmt.Sprintf("password must be at least %d characters", minPasswordLen),
			}
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func newSecret() (plaintext, digest string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, digestOf(plaintext), nil
}

func digestOf(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
