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

// /store/orders（店舗側の注文管理）
type StoreOrderHandler struct {
	uc *usecase.StoreOrderUsecase
}

func NewStoreOrderHandler(uc *usecase.StoreOrderUsecase) *StoreOrderHandler {
	return &StoreOrderHandler{uc: uc}
}

type OrderStatusUpdateRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes"`
	// 分単位
	EstimatedDeliveryTime *int `json:"estimatedDeliveryTime"`
}

func (h *StoreOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, stores repository.StoreRepository) {
	g := e.Group("/store/orders")
	g.Use(middleware.AuthJWT(cfg.JWTSecret))
	g.Use(middleware.RequireActor(model.ActorStore))
	g.Use(middleware.StoreExistsGuard(stores))

	g.GET("", h.list)
	g.GET("/stats", h.stats)
	g.PATCH("/:id/status", h.updateStatus)
}

func (h *StoreOrderHandler) list(c echo.Context) error {
	storeID, _ := actorID(c)

	page, ok := queryInt(c, "page")
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return badRequest(c, "invalid limit")
	}

	out, err := h.uc.ListOrders(c.Request().Context(), storeID, usecase.StoreOrderListInput{
		Status: c.QueryParam("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StoreOrderHandler) stats(c echo.Context) error {
	storeID, _ := actorID(c)

	out, err := h.uc.Stats(c.Request().Context(), storeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StoreOrderHandler) updateStatus(c echo.Context) error {
	storeID, _ := actorID(c)

	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateStatus(c.Request().Context(), storeID, orderID, usecase.UpdateOrderStatusInput{
		Status:                   req.Status,
		Notes:                    req.Notes,
		EstimatedDeliveryMinutes: req.EstimatedDeliveryTime,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
