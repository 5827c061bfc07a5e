package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

type CommunityRepository struct {
	db *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

func (r *CommunityRepository) List(ctx context.Context) ([]models.Community, error) {
	communities := []models.Community{}
	if err := r.db.WithContext(ctx).Order("name asc").Find(&communities).Error; err != nil {
		return nil, store.Transport("list communities", err)
	}
	return communities, nil
}

func (r *CommunityRepository) Create(ctx context.Context, community *models.Community) error {
	return classify("create community", r.db.WithContext(ctx).Create(community).Error)
}
