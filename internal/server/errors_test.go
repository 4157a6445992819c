package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/registry"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &ErrValidation{Field: "records", Message: "required"}, want: http.StatusBadRequest},
		{name: "wrapped validation", err: fmt.Errorf("decode: %w", &ErrValidation{Field: "body"}), want: http.StatusBadRequest},
		{name: "unknown supplier", err: fmt.Errorf("%w: acme", contact.ErrUnknownSupplier), want: http.StatusBadRequest},
		{name: "rejected dataset", err: fmt.Errorf("schema detection failed: %w", &registry.DetectError{Cause: registry.ErrUnrecognizedSource}), want: http.StatusUnprocessableEntity},
		{name: "not configured", err: &ErrNotConfigured{Feature: "contact resolution"}, want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "validation error: email - required", (&ErrValidation{Field: "email", Message: "required"}).Error())
	assert.Equal(t, "charge guard is not configured", (&ErrNotConfigured{Feature: "charge guard"}).Error())
}
