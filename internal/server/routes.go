package server

import (
	"net/http"

	"foodorder/internal/config"
	"foodorder/internal/handler"
	"foodorder/internal/repository"

	"github.com/labstack/echo/v4"
)

// Handlers はサーバーに載せるハンドラ一式
type Handlers struct {
	Account    *handler.AccountHandler
	Catalog    *handler.CatalogHandler
	Cart       *handler.CartHandler
	Order      *handler.OrderHandler
	Payment    *handler.PaymentHandler
	StoreOrder *handler.StoreOrderHandler
	// 店舗ガードが使う
	Stores repository.StoreRepository
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Account.RegisterRoutes(e)
	h.Catalog.RegisterRoutes(e, cfg, h.Stores)
	h.Cart.RegisterRoutes(e, cfg)
	h.Payment.RegisterRoutes(e, cfg)
	h.Order.RegisterRoutes(e, cfg)
	h.StoreOrder.RegisterRoutes(e, cfg, h.Stores)
}
