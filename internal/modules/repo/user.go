package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/aiwendy/roundtable/internal/modules/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo interface {
	Create(ctx context.Context, u *model.User) error
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetBySecretKeyHMAC(ctx context.Context, hmac string) (*model.User, error)
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) GetByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where(&model.User{Identifier: identifier}).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetBySecretKeyHMAC(ctx context.Context, hmac string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where(&model.User{SecretKeyHMAC: hmac}).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
