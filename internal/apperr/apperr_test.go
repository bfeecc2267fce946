package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"transport", fmt.Errorf("get /api/cobros: %w", ErrTransport), "transport"},
		{"response", fmt.Errorf("status 500: %w", ErrResponse), "response"},
		{"parse", fmt.Errorf("decode: %w", ErrParse), "parse"},
		{"validation", fmt.Errorf("termMonths: %w", ErrValidation), "validation"},
		{"not found", ErrNotFound, "not_found"},
		{"timeout wins over transport", fmt.Errorf("%w: %w", ErrTransport, context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"unknown", errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", fmt.Errorf("x: %w", ErrValidation), http.StatusUnprocessableEntity},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusBadRequest},
		{"upstream transport", ErrTransport, http.StatusBadGateway},
		{"upstream response", ErrResponse, http.StatusBadGateway},
		{"upstream parse", ErrParse, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
