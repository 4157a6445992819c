package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/registry"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotConfigured indicates the server was started without a collaborator
// the endpoint needs.
type ErrNotConfigured struct {
	Feature string
}

func (e *ErrNotConfigured) Error() string {
	return fmt.Sprintf("%s is not configured", e.Feature)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation    *ErrValidation
		notConfigured *ErrNotConfigured
		detect        *registry.DetectError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, contact.ErrUnknownSupplier):
		return http.StatusBadRequest
	case errors.As(err, &detect):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
