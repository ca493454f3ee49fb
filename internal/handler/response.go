package handler

import (
	"net/http"
	"strconv"

	"foodorder/internal/middleware"
	"foodorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Code: string(he.Kind)})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: string(usecase.KindInternal)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: string(usecase.KindValidation)})
}

// bodyを読んでvalidateタグを検証する（エラーはwriteErrorに渡す）
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return usecase.ValidationError("invalid body")
	}
	return c.Validate(req)
}

// AuthJWTが入れたIDを取得（RequireActorの後で使う）
func actorID(c echo.Context) (int64, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return 0, false
	}
	return a.ID, true
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 数値のクエリ（空なら0）
func queryInt(c echo.Context, name string) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, true
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}
