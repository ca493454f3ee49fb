package handler

import (
	"net/http"

	"foodorder/internal/config"
	"foodorder/internal/domain/model"
	"foodorder/internal/middleware"
	"foodorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartRequest struct {
	FoodID int64 `json:"foodId" validate:"required"`
	// 省略時は1
	Quantity *int64 `json:"quantity"`
}

// /cart, /cart/items を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/cart")
	g.Use(middleware.AuthJWT(cfg.JWTSecret))
	g.Use(middleware.RequireActor(model.ActorCustomer))

	g.GET("", h.getCart)
	g.POST("/items", h.addItem)
	g.POST("/items/:foodId/decrease", h.decreaseItem)
	g.DELETE("/items/:foodId", h.removeItem)
}

func (h *CartHandler) getCart(c echo.Context) error {
	customerID, _ := actorID(c)

	out, err := h.uc.GetCart(c.Request().Context(), customerID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addItem(c echo.Context) error {
	customerID, _ := actorID(c)

	var req AddCartRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.AddItem(c.Request().Context(), customerID, usecase.AddCartItemInput{
		FoodID:   req.FoodID,
		Quantity: req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) decreaseItem(c echo.Context) error {
	customerID, _ := actorID(c)

	foodID, ok := pathID(c, "foodId")
	if !ok {
		return badRequest(c, "invalid food id")
	}

	out, err := h.uc.DecreaseItem(c.Request().Context(), customerID, foodID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) removeItem(c echo.Context) error {
	customerID, _ := actorID(c)

	foodID, ok := pathID(c, "foodId")
	if !ok {
		return badRequest(c, "invalid food id")
	}

	out, err := h.uc.RemoveItem(c.Request().Context(), customerID, foodID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
