// Package apperr classifies failures raised by remote data sources and the
// financing simulator into a small, stable taxonomy.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrTransport means the remote endpoint could not be reached.
	ErrTransport = errors.New("transport failure")
	// ErrResponse means the remote endpoint answered with a non-2xx status.
	ErrResponse = errors.New("response failure")
	// ErrParse means the body was not valid JSON or lacked the data envelope.
	ErrParse = errors.New("parse failure")
	// ErrValidation means simulator input is outside its domain.
	ErrValidation = errors.New("validation failure")
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	case errors.Is(err, ErrTransport):
		return "transport"

	case errors.Is(err, ErrResponse):
		return "response"

	case errors.Is(err, ErrParse):
		return "parse"

	case errors.Is(err, ErrValidation):
		return "validation"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	case errors.Is(err, ErrTransport),
		errors.Is(err, ErrResponse),
		errors.Is(err, ErrParse):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
