package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/fetch"
)

// VerifierConfig describes an HTTP email verifier.
type VerifierConfig struct {
	URL     string        `json:"url" validate:"required,url"`
	APIKey  string        `json:"-"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// HTTPVerifier re-checks an email against a JSON endpoint that answers
// {"status": "valid" | "invalid" | ...}.
type HTTPVerifier struct {
	url  string
	opts *fetch.Options
}

// NewHTTPVerifier builds a verifier. client may be nil.
func NewHTTPVerifier(cfg VerifierConfig, client *http.Client) (*HTTPVerifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("verifier url is required")
	}
	return &HTTPVerifier{
		url:  cfg.URL,
		opts: requestOptions("verifier", cfg.APIKey, cfg.Timeout, client),
	}, nil
}

type verifyResponse struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

// Verify returns the verification status of email. Statuses other than
// valid and invalid (catch-all, risky, accept_all) map to unknown.
func (v *HTTPVerifier) Verify(ctx context.Context, email string) (contact.VerifyStatus, error) {
	var resp verifyResponse
	if _, err := fetch.JSON(ctx, http.MethodPost, v.url, map[string]string{"email": email}, &resp, v.opts); err != nil {
		return contact.VerifyUnknown, fmt.Errorf("failed to verify email: %w", err)
	}

	switch strings.ToLower(firstNonEmpty(resp.Status, resp.Result)) {
	case "valid", "deliverable", "ok":
		return contact.VerifyValid, nil
	case "invalid", "undeliverable", "bounce":
		return contact.VerifyInvalid, nil
	default:
		return contact.VerifyUnknown, nil
	}
}
