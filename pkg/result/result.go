// Package result provides the tagged success/failure value returned at the
// service boundary: either {OK, Value} or {Kind, Code, Message}.
package result

import "mobile-money-ledger/pkg/apperror"

// Result is the outcome of an operation. Exactly one of Value or the
// failure fields is meaningful, selected by OK.
type Result[T any] struct {
	OK      bool          `json:"ok"`
	Value   T             `json:"value,omitempty"`
	Kind    apperror.Kind `json:"kind,omitempty"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
	Status  int           `json:"-"`
}

// Success wraps v as a successful result.
func Success[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

// Failure converts err into a failed result. Non-application errors are
// reported as PERSISTENCE.
func Failure[T any](err error) Result[T] {
	appErr := apperror.From(err)
	return Result[T]{
		Kind:    appErr.Kind,
		Code:    appErr.Code,
		Message: appErr.Message,
		Status:  appErr.HTTPStatus,
	}
}

// Of builds a result from a conventional (value, error) pair.
func Of[T any](v T, err error) Result[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// Err turns a failed result back into an *apperror.AppError, or nil.
func (r Result[T]) Err() error {
	if r.OK {
		return nil
	}
	return &apperror.AppError{Kind: r.Kind, Code: r.Code, Message: r.Message, HTTPStatus: r.Status}
}
