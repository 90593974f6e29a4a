package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"bookstore/internal/domain/orderflow"
)

// エラーの種類（呼び出し側はKindで分岐する）
type ErrorKind string

const (
	KindValidation     ErrorKind = "VALIDATION_ERROR"
	KindNotFound       ErrorKind = "NOT_FOUND"
	KindUnauthorized   ErrorKind = "UNAUTHORIZED"
	KindForbidden      ErrorKind = "FORBIDDEN"
	KindOutOfStock     ErrorKind = "OUT_OF_STOCK"
	KindNotEnoughStock ErrorKind = "NOT_ENOUGH_STOCK"
	KindCartFull       ErrorKind = "CART_FULL"
	KindCart           ErrorKind = "CART_ERROR"
	KindOrder          ErrorKind = "ORDER_ERROR"
	KindInternal       ErrorKind = "INTERNAL"
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPステータスへの対応
func (e *AppError) Status() int {
	switch e.Kind {
	case KindValidation, KindCart:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindOutOfStock, KindNotEnoughStock, KindCartFull, KindOrder:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func newError(kind ErrorKind, format string, args ...any) error {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

func notFound(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

func forbidden(format string, args ...any) error {
	return newError(KindForbidden, format, args...)
}

func orderError(format string, args ...any) error {
	return newError(KindOrder, format, args...)
}

// DBなど想定外のエラー（中身はログ用に保持する）
func internalError(err error) error {
	return &AppError{Kind: KindInternal, Message: "internal error", Err: err}
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

// 遷移表のエラーをusecaseのエラーへ
func fromRule(err error) error {
	var re *orderflow.RuleError
	if errors.As(err, &re) {
		return orderError("%s", re.Message)
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	return internalError(err)
}

// AppErrorはそのまま、それ以外はinternal
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	return internalError(err)
}
