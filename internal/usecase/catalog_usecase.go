package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"foodorder/internal/domain/model"
	repo "foodorder/internal/repository"
)

// 店舗とメニューの参照、店舗自身によるメニュー管理
type CatalogUsecase struct {
	foods  repo.FoodRepository
	stores repo.StoreRepository
	log    *slog.Logger
}

// DI
func NewCatalogUsecase(foods repo.FoodRepository, stores repo.StoreRepository, log *slog.Logger) *CatalogUsecase {
	return &CatalogUsecase{foods: foods, stores: stores, log: log}
}

type StoreMenuOutput struct {
	Store model.Store      `json:"store"`
	Foods []model.FoodItem `json:"foods"`
}

func (u *CatalogUsecase) GetFoodByID(ctx context.Context, foodID int64) (model.FoodItem, error) {
	if foodID <= 0 {
		return model.FoodItem{}, ValidationError("invalid food id")
	}
	f, err := u.foods.FindByID(ctx, foodID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.FoodItem{}, NotFound("food item not found")
	}
	if err != nil {
		u.log.ErrorContext(ctx, "find food failed", "food_id", foodID, "err", err)
		return model.FoodItem{}, Internal()
	}
	return f, nil
}

func (u *CatalogUsecase) GetStoreByID(ctx context.Context, storeID int64) (model.Store, error) {
	if storeID <= 0 {
		return model.Store{}, ValidationError("invalid store id")
	}
	s, err := u.stores.FindByID(ctx, storeID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Store{}, NotFound("store not found")
	}
	if err != nil {
		u.log.ErrorContext(ctx, "find store failed", "store_id", storeID, "err", err)
		return model.Store{}, Internal()
	}
	return s, nil
}

func (u *CatalogUsecase) ListStores(ctx context.Context) ([]model.Store, error) {
	stores, err := u.stores.ListActive(ctx)
	if err != nil {
		u.log.ErrorContext(ctx, "list stores failed", "err", err)
		return []model.Store{}, Internal()
	}
	return stores, nil
}

// 公開メニュー。無効化された店舗は存在しない扱い
func (u *CatalogUsecase) ListFoodsByStore(ctx context.Context, storeID int64) (StoreMenuOutput, error) {
	s, err := u.GetStoreByID(ctx, storeID)
	if err != nil {
		return StoreMenuOutput{}, err
	}
	if !s.IsActive {
		return StoreMenuOutput{}, NotFound("store not found")
	}

	foods, err := u.foods.ListByStoreID(ctx, storeID, true)
	if err != nil {
		u.log.ErrorContext(ctx, "list foods failed", "store_id", storeID, "err", err)
		return StoreMenuOutput{}, Internal()
	}
	return StoreMenuOutput{Store: s, Foods: foods}, nil
}

type AddFoodInput struct {
	Name        string
	Description string
	PriceCents  int64
	Image       string
	Category    string
	Available   *bool
}

// 店舗がメニューを追加
func (u *CatalogUsecase) AddFood(ctx context.Context, storeID int64, in AddFoodInput) (model.FoodItem, error) {
	if storeID <= 0 {
		return model.FoodItem{}, Unauthorized("unauthorized")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.FoodItem{}, ValidationError("name is required")
	}
	if in.PriceCents <= 0 {
		return model.FoodItem{}, ValidationError("price must be > 0")
	}

	available := true
	if in.Available != nil {
		available = *in.Available
	}

	f, err := u.foods.Create(ctx, model.FoodItem{
		StoreID:     storeID,
		Name:        name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Image:       in.Image,
		Category:    strings.TrimSpace(in.Category),
		Available:   available,
	})
	if err != nil {
		u.log.ErrorContext(ctx, "create food failed", "store_id", storeID, "err", err)
		return model.FoodItem{}, Internal()
	}
	return f, nil
}

// 自分の店舗の商品だけ削除できる
func (u *CatalogUsecase) DeleteFood(ctx context.Context, storeID int64, foodID int64) error {
	if _, err := u.ownedFood(ctx, storeID, foodID); err != nil {
		return err
	}
	if err := u.foods.Delete(ctx, foodID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFound("food item not found")
		}
		u.log.ErrorContext(ctx, "delete food failed", "food_id", foodID, "err", err)
		return Internal()
	}
	return nil
}

func (u *CatalogUsecase) SetFoodAvailability(ctx context.Context, storeID int64, foodID int64, available bool) (model.FoodItem, error) {
	f, err := u.ownedFood(ctx, storeID, foodID)
	if err != nil {
		return model.FoodItem{}, err
	}
	if err := u.foods.UpdateAvailability(ctx, foodID, available); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.FoodItem{}, NotFound("food item not found")
		}
		u.log.ErrorContext(ctx, "update availability failed", "food_id", foodID, "err", err)
		return model.FoodItem{}, Internal()
	}
	f.Available = available
	return f, nil
}

// 所有チェック（他店舗の商品なら403）
func (u *CatalogUsecase) ownedFood(ctx context.Context, storeID int64, foodID int64) (model.FoodItem, error) {
	if storeID <= 0 {
		return model.FoodItem{}, Unauthorized("unauthorized")
	}
	f, err := u.GetFoodByID(ctx, foodID)
	if err != nil {
		return model.FoodItem{}, err
	}
	if f.StoreID != storeID {
		return model.FoodItem{}, Forbidden("food item belongs to another store")
	}
	return f, nil
}
