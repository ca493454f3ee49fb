package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"foodorder/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const CtxActorKey = "actor" // model.Actor

// bearerAuth用のJWT検証ミドルウェア。
// sub と actor から model.Actor を作って context に入れる
func AuthJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return unauthorized(c)
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return unauthorized(c)
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return unauthorized(c)
			}

			//JWTをパースして検証する
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || token == nil || !token.Valid {
				return unauthorized(c)
			}

			//claimsを取り出す
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c)
			}

			id, err := parseID(claims["sub"])
			if err != nil || id <= 0 {
				return unauthorized(c)
			}

			//actorを取り出す（customer/store）
			rawActor, _ := claims["actor"].(string)
			actor := model.ActorType(rawActor)
			if !actor.Valid() {
				return unauthorized(c)
			}

			//contextへ保存
			c.Set(CtxActorKey, model.Actor{Type: actor, ID: id})

			return next(c)
		}
	}
}

// ActorFrom はAuthJWTが入れたActorを取り出す
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(CtxActorKey).(model.Actor)
	if !ok || a.ID <= 0 {
		return model.Actor{}, false
	}
	return a, true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: "unauthorized"})
}

func forbidden(c echo.Context, msg string) error {
	return c.JSON(http.StatusForbidden, errorResponse{Error: msg, Code: "forbidden"})
}

// subをint64に変換する
func parseID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}
