package middleware

import (
	"foodorder/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// contextに入っているactorの種類を確認します。
func RequireActor(want model.ActorType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return unauthorized(c)
			}

			//customerのトークンで店舗APIは叩けない（逆も）
			if actor.Type != want {
				return forbidden(c, string(want)+" only")
			}

			return next(c)
		}
	}
}
