package handler

import (
	"net/http"

	"foodorder/internal/config"
	"foodorder/internal/domain/model"
	"foodorder/internal/middleware"
	"foodorder/internal/repository"
	"foodorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 店舗・メニューの公開APIと、店舗によるメニュー管理
type CatalogHandler struct {
	uc *usecase.CatalogUsecase
}

// DI
func NewCatalogHandler(uc *usecase.CatalogUsecase) *CatalogHandler {
	return &CatalogHandler{uc: uc}
}

// 価格はセント単位
type AddFoodRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price" validate:"gt=0"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Available   *bool  `json:"available"`
}

type AvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

func (h *CatalogHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, stores repository.StoreRepository) {
	e.GET("/stores", h.listStores)
	e.GET("/stores/:id", h.getStore)
	e.GET("/stores/:id/foods", h.listFoods)
	e.GET("/foods/:id", h.getFood)

	g := e.Group("/store/foods")
	g.Use(middleware.AuthJWT(cfg.JWTSecret))
	g.Use(middleware.RequireActor(model.ActorStore))
	g.Use(middleware.StoreExistsGuard(stores))

	g.POST("", h.addFood)
	g.DELETE("/:id", h.deleteFood)
	g.PATCH("/:id/availability", h.setAvailability)
}

func (h *CatalogHandler) listStores(c echo.Context) error {
	out, err := h.uc.ListStores(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) getStore(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetStoreByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) listFoods(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.ListFoodsByStore(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) getFood(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetFoodByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) addFood(c echo.Context) error {
	storeID, _ := actorID(c)

	var req AddFoodRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.AddFood(c.Request().Context(), storeID, usecase.AddFoodInput{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.Price,
		Image:       req.Image,
		Category:    req.Category,
		Available:   req.Available,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CatalogHandler) deleteFood(c echo.Context) error {
	storeID, _ := actorID(c)
	foodID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.DeleteFood(c.Request().Context(), storeID, foodID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *CatalogHandler) setAvailability(c echo.Context) error {
	storeID, _ := actorID(c)
	foodID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req AvailabilityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.SetFoodAvailability(c.Request().Context(), storeID, foodID, *req.Available)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
