package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"weatherstation-server/internal/modules/accounts/types"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

type AccountsRepository interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUserByID(ctx context.Context, id uint) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	UpdateUser(ctx context.Context, user *types.User) error

	CreateAuthToken(ctx context.Context, token *types.AuthToken) error
	GetAuthTokenByDigest(ctx context.Context, digest string) (*types.AuthToken, error)
	DeleteAuthToken(ctx context.Context, id uint) error
	DeleteAuthTokensForUser(ctx context.Context, userID uint) error
	DeleteExpiredAuthTokens(ctx context.Context, now time.Time) (int64, error)

	ReplaceAPIKey(ctx context.Context, userID uint, digest string) error
	GetAPIKeyByDigest(ctx context.Context, digest string) (*types.APIKey, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) AccountsRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) CreateUser(ctx context.Context, user *types.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetUserByID(ctx context.Context, id uint) (*types.User, error) {
	var user types.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

func (r *repositoryImpl) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	var user types.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

func (r *repositoryImpl) UpdateUser(ctx context.Context, user *types.User) error {
	err := r.db.WithContext(ctx).Save(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("update user %d: %w", user.ID, err)
	}
	return nil
}

func (r *repositoryImpl) CreateAuthToken(ctx context.Context, token *types.AuthToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("create auth token: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetAuthTokenByDigest(ctx context.Context, digest string) (*types.AuthToken, error) {
	var token types.AuthToken
	err := r.db.WithContext(ctx).Where("digest = ?", digest).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auth token: %w", err)
	}
	return &token, nil
}

func (r *repositoryImpl) DeleteAuthToken(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&types.AuthToken{}, id).Error; err != nil {
		return fmt.Errorf("delete auth token %d: %w", id, err)
	}
	return nil
}

func (r *repositoryImpl) DeleteAuthTokensForUser(ctx context.Context, userID uint) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&types.AuthToken{}).Error
	if err != nil {
		return fmt.Errorf("delete auth tokens for user %d: %w", userID, err)
	}
	return nil
}

func (r *repositoryImpl) DeleteExpiredAuthTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&types.AuthToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired auth tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ReplaceAPIKey rotates the user's ingest key: at most one key per user.
func (r *repositoryImpl) ReplaceAPIKey(ctx context.Context, userID uint, digest string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&types.APIKey{}).Error; err != nil {
			return fmt.Errorf("delete old api key: %w", err)
		}
		key := types.APIKey{UserID: userID, Digest: digest}
		if err := tx.Create(&key).Error; err != nil {
			return fmt.Errorf("create api key: %w", err)
		}
		return nil
	})
}

func (r *repositoryImpl) GetAPIKeyByDigest(ctx context.Context, digest string) (*types.APIKey, error) {
	var key types.APIKey
	err := r.db.WithContext(ctx).Where("digest = ?", digest).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}
