package handler

import (
	"net/http"

	"foodorder/internal/config"
	"foodorder/internal/domain/model"
	"foodorder/internal/middleware"
	"foodorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /orders（顧客側）
type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderItemRequest struct {
	FoodID   int64  `json:"foodId" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Price    int64  `json:"price" validate:"gt=0"`
	Quantity int64  `json:"quantity" validate:"min=1"`
	Image    string `json:"image"`
}

type AddressRequest struct {
	Name    string `json:"name" validate:"required"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
}

type PlaceOrderRequest struct {
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Address       AddressRequest     `json:"address"`
	PaymentMethod string             `json:"paymentMethod" validate:"required,oneof=card cash upi"`
	// クライアント計算の合計（参考値）
	Amount *int64 `json:"amount"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg.JWTSecret))
	g.Use(middleware.RequireActor(model.ActorCustomer))

	g.POST("", h.place)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

func (h *OrderHandler) place(c echo.Context) error {
	customerID, _ := actorID(c)

	var req PlaceOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	items := make([]usecase.PlaceOrderItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.PlaceOrderItemInput{
			FoodID:     it.FoodID,
			Name:       it.Name,
			PriceCents: it.Price,
			Quantity:   it.Quantity,
			Image:      it.Image,
		})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), customerID, usecase.PlaceOrderInput{
		Items: items,
		Address: usecase.AddressInput{
			Name:    req.Address.Name,
			Street:  req.Address.Street,
			City:    req.Address.City,
			State:   req.Address.State,
			ZipCode: req.Address.ZipCode,
			Phone:   req.Address.Phone,
		},
		PaymentMethod:     req.PaymentMethod,
		ClientAmountCents: req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	customerID, _ := actorID(c)

	page, ok := queryInt(c, "page")
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return badRequest(c, "invalid limit")
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), customerID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	customerID, _ := actorID(c)

	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), customerID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
