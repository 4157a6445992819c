package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Compile-time interface checks.
var (
	_ contact.Provider = (*HTTPProvider)(nil)
	_ contact.Provider = (*Static)(nil)
	_ contact.Verifier = (*HTTPVerifier)(nil)
)

func TestHTTPProvider_Lookup(t *testing.T) {
	var got lookupRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"contact":{"first_name":"Ada","last_name":"Lovelace","email":"ada@acme.com","position":"CTO","linkedin_url":"https://linkedin.com/in/ada","domain":"acme.com","confidence":0.92}}`))
	}))
	defer server.Close()

	p, err := NewHTTPProvider(Config{Name: "primary", URL: server.URL, APIKey: "key-1"}, server.Client())
	require.NoError(t, err)

	rec, err := p.Lookup(context.Background(), "acme.com", []string{"CTO", "VP Engineering"}, &types.ContactRecord{Name: "Ada Lovelace"})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "acme.com", got.Domain)
	assert.Equal(t, []string{"CTO", "VP Engineering"}, got.Titles)
	assert.Equal(t, "Ada Lovelace", got.Name)

	assert.Equal(t, "Ada Lovelace", rec.Name)
	assert.Equal(t, "ada@acme.com", rec.Email)
	assert.Equal(t, "CTO", rec.Title)
	assert.Equal(t, "https://linkedin.com/in/ada", rec.LinkedIn)
	assert.InDelta(t, 0.92, rec.Confidence, 0.0001)
}

func TestHTTPProvider_Misses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found status", http.StatusNotFound, ``},
		{"null contact", http.StatusOK, `{"contact":null}`},
		{"empty list", http.StatusOK, `{"contact":[]}`},
		{"empty object", http.StatusOK, `{"contact":{}}`},
		{"no body", http.StatusNoContent, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, err := NewHTTPProvider(Config{Name: "primary", URL: server.URL}, server.Client())
			require.NoError(t, err)

			rec, err := p.Lookup(context.Background(), "acme.com", nil, nil)
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestHTTPProvider_ServerErrorIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p, err := NewHTTPProvider(Config{Name: "primary", URL: server.URL}, server.Client())
	require.NoError(t, err)

	_, err = p.Lookup(context.Background(), "acme.com", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
}

func TestHTTPProvider_ContactPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"people":[{"name":"Grace","email":"grace@acme.com"},{"name":"Bob"}]}}`))
	}))
	defer server.Close()

	p, err := NewHTTPProvider(Config{Name: "fallback", URL: server.URL, ContactPath: "data.people"}, server.Client())
	require.NoError(t, err)

	rec, err := p.Lookup(context.Background(), "acme.com", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "grace@acme.com", rec.Email)
}

func TestNewHTTPProvider_Validation(t *testing.T) {
	_, err := NewHTTPProvider(Config{URL: "http://x"}, nil)
	assert.Error(t, err)
	_, err = NewHTTPProvider(Config{Name: "p"}, nil)
	assert.Error(t, err)
	_, err = NewHTTPProvider(Config{Name: "p", URL: "http://x", ContactPath: "a.["}, nil)
	assert.Error(t, err)
}

func TestHTTPVerifier(t *testing.T) {
	tests := []struct {
		body string
		want contact.VerifyStatus
	}{
		{`{"status":"valid"}`, contact.VerifyValid},
		{`{"result":"deliverable"}`, contact.VerifyValid},
		{`{"status":"invalid"}`, contact.VerifyInvalid},
		{`{"status":"accept_all"}`, contact.VerifyUnknown},
		{`{}`, contact.VerifyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var in map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
				assert.Equal(t, "ada@acme.com", in["email"])
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			v, err := NewHTTPVerifier(VerifierConfig{URL: server.URL}, server.Client())
			require.NoError(t, err)

			status, err := v.Verify(context.Background(), "ada@acme.com")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestHTTPVerifier_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v, err := NewHTTPVerifier(VerifierConfig{URL: server.URL}, server.Client())
	require.NoError(t, err)

	status, err := v.Verify(context.Background(), "ada@acme.com")
	require.Error(t, err)
	assert.Equal(t, contact.VerifyUnknown, status)
}

func TestStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Ada","email":"ada@acme.com","domain":"Acme.com"}]`), 0o644))

	s, err := LoadStatic("static", path)
	require.NoError(t, err)
	assert.Equal(t, "static", s.Name())

	rec, err := s.Lookup(context.Background(), "acme.com", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ada@acme.com", rec.Email)

	rec, err = s.Lookup(context.Background(), "acme.com", nil, &types.ContactRecord{Name: "Grace"})
	require.NoError(t, err)
	assert.Nil(t, rec, "hint names someone else")

	rec, err = s.Lookup(context.Background(), "beta.io", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Lookup(ctx, "acme.com", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = LoadStatic("static", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
