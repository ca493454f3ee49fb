package handler

import (
	"net/http"

	"foodorder/internal/domain/model"
	"foodorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /auth/customers, /auth/stores のHTTP
type AccountHandler struct {
	uc *usecase.AccountUsecase
}

// DI
func NewAccountHandler(uc *usecase.AccountUsecase) *AccountHandler {
	return &AccountHandler{uc: uc}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	// 店舗のみ
	Category string `json:"category"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AccountHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth")
	g.POST("/customers/register", h.register(model.ActorCustomer))
	g.POST("/customers/login", h.login(model.ActorCustomer))
	g.POST("/stores/register", h.register(model.ActorStore))
	g.POST("/stores/login", h.login(model.ActorStore))
}

func (h *AccountHandler) register(actor model.ActorType) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req RegisterRequest
		if err := bindAndValidate(c, &req); err != nil {
			return writeError(c, err)
		}

		out, err := h.uc.Register(c.Request().Context(), actor, usecase.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Category: req.Category,
			Address:  req.Address,
			Phone:    req.Phone,
		})
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(http.StatusCreated, out)
	}
}

func (h *AccountHandler) login(actor model.ActorType) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req LoginRequest
		if err := bindAndValidate(c, &req); err != nil {
			return writeError(c, err)
		}

		out, err := h.uc.Login(c.Request().Context(), actor, usecase.LoginInput{
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(http.StatusOK, out)
	}
}
