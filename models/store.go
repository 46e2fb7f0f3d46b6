package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/google/uuid"
)

// Store is the tenancy root: every shift, pack and ticket sale is scoped to one store.
type Store struct {
	ID        uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Timezone  string    `gorm:"size:64;default:'UTC'" json:"timezone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStore struct {
	Name     string `json:"name" validate:"required"`
	Timezone string `json:"timezone"`
}

func CreateStore(ctx context.Context, input *NewStore) (*Store, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	store := Store{
		ID:       uuid.New(),
		Name:     input.Name,
		Timezone: input.Timezone,
	}
	if store.Timezone == "" {
		store.Timezone = "UTC"
	}
	if err := db.WithContext(ctx).Create(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// GetStore reads through the redis cache; stores change rarely, so a stale
// entry within the cache lifespan is acceptable.
func GetStore(ctx context.Context, id string) (*Store, error) {
	if cached, err := utils.RetrieveRedis[Store](id); err == nil && cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var result Store
	err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, utils.NewNotFoundError("store", id)
	}
	if err := utils.StoreRedis[Store](&result, id); err != nil {
		config.GetLogger().WithField("store_id", id).Warn("failed to cache store: " + err.Error())
	}
	return &result, nil
}
