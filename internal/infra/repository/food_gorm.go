package repository

import (
	"context"
	"errors"
	"time"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"

	"gorm.io/gorm"
)

type FoodGormRepository struct {
	db *gorm.DB
}

func NewFoodGormRepository(db *gorm.DB) *FoodGormRepository {
	return &FoodGormRepository{db: db}
}

func (r *FoodGormRepository) FindByID(ctx context.Context, id int64) (model.FoodItem, error) {
	var f model.FoodItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.FoodItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.FoodItem{}, err
	}
	return f, nil
}

// 店舗のメニュー一覧
func (r *FoodGormRepository) ListByStoreID(ctx context.Context, storeID int64, onlyAvailable bool) ([]model.FoodItem, error) {
	q := r.db.WithContext(ctx).Where("store_id = ?", storeID)
	if onlyAvailable {
		q = q.Where("available = ?", true)
	}

	var items []model.FoodItem
	if err := q.Order("category asc, id asc").Find(&items).Error; err != nil {
		return []model.FoodItem{}, err
	}
	return items, nil
}

func (r *FoodGormRepository) Create(ctx context.Context, f model.FoodItem) (model.FoodItem, error) {
	available := f.Available
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&f).Error; err != nil {
			return err
		}
		// default:true のため false はゼロ値扱いで無視される。作成後に明示的に落とす
		if !available {
			if err := tx.Model(&model.FoodItem{}).Where("id = ?", f.ID).Update("available", false).Error; err != nil {
				return err
			}
			f.Available = false
		}
		return nil
	})
	if err != nil {
		return model.FoodItem{}, err
	}
	return f, nil
}

func (r *FoodGormRepository) UpdateAvailability(ctx context.Context, id int64, available bool) error {
	res := r.db.WithContext(ctx).Model(&model.FoodItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"available":  available,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *FoodGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.FoodItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
