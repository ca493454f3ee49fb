package middleware

import (
	"errors"
	"net/http"

	"foodorder/internal/repository"

	"github.com/labstack/echo/v4"
)

// 店舗トークンの店舗がDBに存在し、有効か確認。
func StoreExistsGuard(stores repository.StoreRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok || !actor.IsStore() {
				return unauthorized(c)
			}

			//DBから最新のstoreを取得する
			s, err := stores.FindByID(c.Request().Context(), actor.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return unauthorized(c)
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
			}

			//無効化された店舗は操作できない
			if !s.IsActive {
				return forbidden(c, "store is inactive")
			}

			return next(c)
		}
	}
}
