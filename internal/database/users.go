package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/emilythestrangee/kaen/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts user; a taken username or email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return classify("create user", r.db.WithContext(ctx).Create(user).Error)
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, classify("get user", err)
	}
	return &user, nil
}

func (r *UserRepository) ByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, classify("get user", err)
	}
	return &user, nil
}

// UpdateProfile changes display fields only. Comments keep the name and
// avatar they were created with.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"display_name": req.DisplayName,
		"bio":          req.Bio,
		"avatar":       req.Avatar,
	}).Error
	if err != nil {
		return nil, classify("update user", err)
	}
	return r.ByID(ctx, id)
}
