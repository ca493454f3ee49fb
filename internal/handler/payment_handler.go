package handler

import (
	"io"
	"net/http"

	"foodorder/internal/config"
	"foodorder/internal/domain/model"
	"foodorder/internal/middleware"
	"foodorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

// webhookのbody上限
const maxWebhookBody = 64 << 10

// 決済確認（/orders/verify）とwebhook（/webhooks/stripe）
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type VerifyPaymentRequest struct {
	OrderID   int64  `json:"orderId" validate:"required"`
	SessionID string `json:"sessionId"`
}

// 未払いのときの402レスポンス（注文の状態も返す）
type verifyDeclinedResponse struct {
	ErrorResponse
	usecase.VerifyPaymentOutput
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.POST("/orders/verify", h.verify,
		middleware.AuthJWT(cfg.JWTSecret),
		middleware.RequireActor(model.ActorCustomer),
	)

	//署名で認証する（JWTなし）
	e.POST("/webhooks/stripe", h.webhook)
}

func (h *PaymentHandler) verify(c echo.Context) error {
	customerID, _ := actorID(c)

	var req VerifyPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.VerifyPayment(c.Request().Context(), customerID, usecase.VerifyPaymentInput{
		OrderID:   req.OrderID,
		SessionID: req.SessionID,
	})
	if err != nil {
		return writeError(c, err)
	}

	if out.Result == usecase.VerifyDeclined {
		return c.JSON(http.StatusPaymentRequired, verifyDeclinedResponse{
			ErrorResponse:       ErrorResponse{Error: "payment was not completed", Code: string(usecase.KindPaymentDeclined)},
			VerifyPaymentOutput: out,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) webhook(c echo.Context) error {
	//署名検証は生のbodyで行う
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.HandleWebhook(c.Request().Context(), body, c.Request().Header.Get("Stripe-Signature")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
