package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/free99/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	MarkVerified(ctx context.Context, id string) error

	CreateVerificationToken(ctx context.Context, t *model.VerificationToken) error
	LatestVerificationToken(ctx context.Context, userID string) (*model.VerificationToken, error)
	IncrementTokenAttempts(ctx context.Context, tokenID int64) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

// Create 写入用户；邮箱重复返回 ErrDuplicateEmail
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetByIDs 批量查询；缺失的 id 直接跳过
func (r *userRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	var res []*model.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error
	return res, err
}

func (r *userRepository) MarkVerified(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("is_verified", true).Error
}

func (r *userRepository) CreateVerificationToken(ctx context.Context, t *model.VerificationToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *userRepository) LatestVerificationToken(ctx context.Context, userID string) (*model.VerificationToken, error) {
	var t model.VerificationToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *userRepository) IncrementTokenAttempts(ctx context.Context, tokenID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.VerificationToken{}).
		Where("id = ?", tokenID).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}
