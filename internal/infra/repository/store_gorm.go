package repository

import (
	"context"
	"errors"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"

	"gorm.io/gorm"
)

type StoreGormRepository struct {
	db *gorm.DB
}

func NewStoreGormRepository(db *gorm.DB) *StoreGormRepository {
	return &StoreGormRepository{db: db}
}

func (r *StoreGormRepository) FindByID(ctx context.Context, id int64) (model.Store, error) {
	var s model.Store
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Store{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Store{}, err
	}
	return s, nil
}

func (r *StoreGormRepository) FindByEmail(ctx context.Context, email string) (model.Store, error) {
	var s model.Store
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Store{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Store{}, err
	}
	return s, nil
}

func (r *StoreGormRepository) ListActive(ctx context.Context) ([]model.Store, error) {
	var stores []model.Store
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id asc").
		Find(&stores).Error; err != nil {
		return []model.Store{}, err
	}
	return stores, nil
}

// メール重複は ErrDuplicate
func (r *StoreGormRepository) Create(ctx context.Context, s model.Store) (model.Store, error) {
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.Store{}, repo.ErrDuplicate
		}
		return model.Store{}, err
	}
	return s, nil
}
