package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーの種類。レスポンスの code にそのまま入る
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindPreconditionFailed ErrorKind = "precondition_failed"
	KindPaymentDeclined    ErrorKind = "payment_declined"
	KindGatewayTimeout     ErrorKind = "gateway_timeout"
	KindGatewayError       ErrorKind = "gateway_error"
	KindInternal           ErrorKind = "internal"
)

var kindStatus = map[ErrorKind]int{
	KindValidation:         http.StatusBadRequest,
	KindUnauthorized:       http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindNotFound:           http.StatusNotFound,
	KindConflict:           http.StatusConflict,
	KindPreconditionFailed: http.StatusPreconditionFailed,
	KindPaymentDeclined:    http.StatusPaymentRequired,
	KindGatewayTimeout:     http.StatusGatewayTimeout,
	KindGatewayError:       http.StatusBadGateway,
	KindInternal:           http.StatusInternalServerError,
}

type HTTPError struct {
	Status  int
	Kind    ErrorKind
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Kind:    kindOfStatus(status),
		Message: message,
	}
}

func newKindError(kind ErrorKind, message string) error {
	return &HTTPError{
		Status:  kindStatus[kind],
		Kind:    kind,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func ValidationError(format string, args ...any) error {
	return newKindError(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(message string) error {
	return newKindError(KindNotFound, message)
}

func Forbidden(message string) error {
	return newKindError(KindForbidden, message)
}

func Conflict(message string) error {
	return newKindError(KindConflict, message)
}

func PreconditionFailed(message string) error {
	return newKindError(KindPreconditionFailed, message)
}

func Unauthorized(message string) error {
	return newKindError(KindUnauthorized, message)
}

func GatewayError(message string) error {
	return newKindError(KindGatewayError, message)
}

func GatewayTimeout(message string) error {
	return newKindError(KindGatewayTimeout, message)
}

// 中身はログにだけ出す。クライアントには固定文言
func Internal() error {
	return newKindError(KindInternal, "internal error")
}

func kindOfStatus(status int) ErrorKind {
	for k, s := range kindStatus {
		if s == status {
			return k
		}
	}
	if status >= 500 {
		return KindInternal
	}
	return KindValidation
}
