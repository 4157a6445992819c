// Package providers implements contact providers and verifiers that the
// resolver drives: JSON-over-HTTP clients and a static in-memory provider.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"

	"github.com/saadbelcaidx/connector-os/internal/fetch"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// DefaultContactPath locates the contact object in a lookup response.
const DefaultContactPath = "contact"

// Config describes one HTTP contact provider.
type Config struct {
	Name   string `json:"name" validate:"required"`
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"-"`
	// ContactPath is a JMESPath expression selecting the contact object in
	// the response body. Defaults to DefaultContactPath.
	ContactPath string        `json:"contact_path,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// lookupRequest is the body POSTed to a provider.
type lookupRequest struct {
	Domain string   `json:"domain"`
	Titles []string `json:"titles,omitempty"`
	Name   string   `json:"name,omitempty"`
	Title  string   `json:"title,omitempty"`
}

// wireContact accepts the common spellings providers use for contact fields.
type wireContact struct {
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Title       string  `json:"title"`
	Position    string  `json:"position"`
	LinkedIn    string  `json:"linkedin"`
	LinkedInURL string  `json:"linkedin_url"`
	Company     string  `json:"company"`
	Domain      string  `json:"domain"`
	Confidence  float64 `json:"confidence"`
}

func (w wireContact) record() *types.ContactRecord {
	name := firstNonEmpty(w.Name, w.FullName, strings.TrimSpace(w.FirstName+" "+w.LastName))
	return &types.ContactRecord{
		Name:       name,
		Email:      strings.TrimSpace(w.Email),
		Title:      firstNonEmpty(w.Title, w.Position),
		LinkedIn:   firstNonEmpty(w.LinkedIn, w.LinkedInURL),
		Company:    w.Company,
		Domain:     w.Domain,
		Confidence: w.Confidence,
	}
}

// HTTPProvider looks contacts up from a JSON endpoint.
type HTTPProvider struct {
	name string
	url  string
	path *jmespath.JMESPath
	opts *fetch.Options
}

// NewHTTPProvider builds a provider from cfg. client may be nil.
func NewHTTPProvider(cfg Config, client *http.Client) (*HTTPProvider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("provider %s: url is required", cfg.Name)
	}
	contactPath := cfg.ContactPath
	if contactPath == "" {
		contactPath = DefaultContactPath
	}
	compiled, err := jmespath.Compile(contactPath)
	if err != nil {
		return nil, fmt.Errorf("provider %s: invalid contact path %q: %w", cfg.Name, contactPath, err)
	}

	return &HTTPProvider{
		name: cfg.Name,
		url:  cfg.URL,
		path: compiled,
		opts: requestOptions(cfg.Name, cfg.APIKey, cfg.Timeout, client),
	}, nil
}

// Name returns the provider name.
func (p *HTTPProvider) Name() string { return p.name }

// Lookup asks the provider for a contact at domain. A 404 or an empty
// contact is a miss, not an error.
func (p *HTTPProvider) Lookup(ctx context.Context, domain string, titles []string, hint *types.ContactRecord) (*types.ContactRecord, error) {
	req := lookupRequest{Domain: domain, Titles: titles}
	if hint != nil {
		req.Name = hint.Name
		req.Title = hint.Title
	}

	var body any
	if _, err := fetch.JSON(ctx, http.MethodPost, p.url, req, &body, p.opts); err != nil {
		if fetch.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up contact with %s: %w", p.name, err)
	}

	rec, err := p.extract(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", p.name, err)
	}
	return rec, nil
}

func (p *HTTPProvider) extract(body any) (*types.ContactRecord, error) {
	if body == nil {
		return nil, nil
	}
	selected, err := p.path.Search(body)
	if err != nil {
		return nil, err
	}
	if list, ok := selected.([]any); ok {
		if len(list) == 0 {
			return nil, nil
		}
		selected = list[0]
	}
	if _, ok := selected.(map[string]any); !ok {
		return nil, nil
	}

	raw, err := json.Marshal(selected)
	if err != nil {
		return nil, err
	}
	var w wireContact
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	rec := w.record()
	if rec.Name == "" && rec.Email == "" {
		return nil, nil
	}
	return rec, nil
}

func requestOptions(label, apiKey string, timeout time.Duration, client *http.Client) *fetch.Options {
	opts := fetch.DefaultOptions()
	opts.Label = label
	opts.Client = client
	if timeout > 0 {
		opts.Timeout = timeout
	}
	if apiKey != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + apiKey}
	}
	return opts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
