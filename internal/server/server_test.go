package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadbelcaidx/connector-os/internal/config"
	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/pipeline"
	"github.com/saadbelcaidx/connector-os/internal/providers"
	"github.com/saadbelcaidx/connector-os/internal/registry"
	"github.com/saadbelcaidx/connector-os/internal/server/ratelimit"
	"github.com/saadbelcaidx/connector-os/internal/store"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

var testPostings = []types.RawRecord{
	{"job_title": "CTO", "company_name": "Acme Cloud", "company_domain": "acme.io", "companyIndustry": "SaaS", "companySize": "120"},
	{"job_title": "Staff Engineer", "company_name": "Acme Cloud", "company_domain": "acme.io", "companyIndustry": "SaaS", "companySize": "120"},
	{"job_title": "Cashier", "company_name": "Dune Retail", "company_domain": "dune.com", "companyIndustry": "Retail", "companySize": "3000"},
}

var testProfile = &types.CapabilityProfile{
	OperatorID: "op-default",
	Roles:      []string{"CTO"},
	Industries: []string{"SaaS"},
	SizeRange:  types.SizeBucketMid,
}

type testEnv struct {
	server *Server
	guard  *store.MemoryChargeGuard
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()

	guard := store.NewMemoryChargeGuard(time.Hour, nil)
	resolver, err := contact.NewResolver(contact.Deps{
		Cache:       store.NewMemoryCache(),
		ChargeGuard: guard,
		Providers: []contact.Provider{
			providers.NewStatic("static", []types.ContactRecord{
				{Name: "Ada Lovelace", Email: "ada@acme.io", Title: "CTO", Domain: "acme.io"},
			}),
		},
	}, contact.Options{})
	require.NoError(t, err)

	deps := Deps{
		Registry:  registry.MustDefault(),
		Resolver:  resolver,
		Charges:   guard,
		RateLimit: &ratelimit.Config{Enabled: false},
	}
	if mutate != nil {
		mutate(&deps)
	}

	s, err := New(Config{ResolveTop: 5}, deps)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return &testEnv{server: s, guard: guard}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)

	_, err = New(Config{}, Deps{Registry: registry.MustDefault(), Profile: &types.CapabilityProfile{SizeRange: "huge"}})
	assert.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])

	w = env.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "connector_api_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodOptions, "/score", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestDetect(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantSchema string
	}{
		{name: "job postings", body: DetectRequest{Records: testPostings}, wantStatus: http.StatusOK, wantSchema: "job_postings"},
		{name: "unknown shape", body: DetectRequest{Records: []types.RawRecord{{"foo": "bar"}}}, wantStatus: http.StatusUnprocessableEntity},
		{name: "empty dataset", body: DetectRequest{}, wantStatus: http.StatusUnprocessableEntity},
		{name: "malformed body", body: "{not json", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/detect", tt.body, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantSchema != "" {
				resp := decode[DetectResponse](t, w)
				assert.Equal(t, tt.wantSchema, resp.SchemaID)
				assert.Equal(t, types.SignalTypeHiring, resp.SignalType)
				assert.Equal(t, len(testPostings), resp.Records)
			} else {
				assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
			}
		})
	}
}

func TestScore(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/score", ScoreRequest{Records: testPostings, Profile: testProfile, ResolveTop: 1}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode[pipeline.Output](t, w)
	assert.Equal(t, "job_postings", out.SchemaID)
	assert.Equal(t, 2, out.Entities)
	require.Len(t, out.Results.Results, 2)
	assert.Equal(t, "acme.io", out.Results.Results[0].Entity.Domain)
	assert.GreaterOrEqual(t, out.Results.Results[0].Score, 80)

	require.Len(t, out.Contacts, 1)
	assert.Equal(t, contact.OutcomeFound, out.Contacts[0].Outcome)
	require.Len(t, out.Intros, 1)
	assert.Equal(t, "Ada Lovelace", out.Intros[0].ContactName)
}

func TestScore_Threshold(t *testing.T) {
	env := newTestEnv(t, nil)
	threshold := 50

	w := env.do(t, http.MethodPost, "/score", ScoreRequest{Records: testPostings, Profile: testProfile, Threshold: &threshold}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[pipeline.Output](t, w)
	assert.Len(t, out.Results.Results, 1)
}

func TestScore_Errors(t *testing.T) {
	tooHigh := 101

	tests := []struct {
		name       string
		deps       func(*Deps)
		body       any
		wantStatus int
	}{
		{name: "no profile", body: ScoreRequest{Records: testPostings}, wantStatus: http.StatusBadRequest},
		{name: "invalid profile", body: ScoreRequest{Records: testPostings, Profile: &types.CapabilityProfile{SizeRange: "huge"}}, wantStatus: http.StatusBadRequest},
		{name: "threshold out of range", body: ScoreRequest{Records: testPostings, Profile: testProfile, Threshold: &tooHigh}, wantStatus: http.StatusBadRequest},
		{name: "unknown shape", body: ScoreRequest{Records: []types.RawRecord{{"foo": "bar"}}, Profile: testProfile}, wantStatus: http.StatusUnprocessableEntity},
		{
			name:       "resolution not configured",
			deps:       func(d *Deps) { d.Resolver = nil },
			body:       ScoreRequest{Records: testPostings, Profile: testProfile, ResolveTop: 3},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.deps)
			w := env.do(t, http.MethodPost, "/score", tt.body, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestScore_DefaultProfile(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Profile = testProfile })
	w := env.do(t, http.MethodPost, "/score", ScoreRequest{Records: testPostings}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScoreStream(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/score/stream", ScoreRequest{Records: testPostings, Profile: testProfile}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "id: 1\nevent: step\n"), body)
	assert.Contains(t, body, "event: result\n")
	assert.Contains(t, body, "event: complete\n")
	assert.Less(t, strings.Index(body, "event: step"), strings.Index(body, "event: result"))
}

func TestScoreStream_ErrorEvent(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/score/stream", ScoreRequest{Records: []types.RawRecord{{"foo": "bar"}}, Profile: testProfile}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event: error\n")
	assert.NotContains(t, w.Body.String(), "event: complete")
}

func TestResolve(t *testing.T) {
	acme := &types.Entity{RecordKey: "job_postings:acme", Company: "Acme Cloud", Domain: "acme.io", DomainSource: types.DomainSourceExplicit}

	tests := []struct {
		name        string
		deps        func(*Deps)
		body        any
		wantStatus  int
		wantOutcome contact.Outcome
	}{
		{name: "found", body: ResolveRequest{Entity: acme}, wantStatus: http.StatusOK, wantOutcome: contact.OutcomeFound},
		{name: "named supplier", body: ResolveRequest{Entity: acme, Supplier: "STATIC"}, wantStatus: http.StatusOK, wantOutcome: contact.OutcomeFound},
		{
			name:        "no domain is skipped",
			body:        ResolveRequest{Entity: &types.Entity{RecordKey: "k", Company: "Nowhere", DomainSource: types.DomainSourceNone}},
			wantStatus:  http.StatusOK,
			wantOutcome: contact.OutcomeSkipped,
		},
		{name: "unknown supplier", body: ResolveRequest{Entity: acme, Supplier: "nobody"}, wantStatus: http.StatusBadRequest},
		{name: "missing entity", body: ResolveRequest{}, wantStatus: http.StatusBadRequest},
		{name: "not configured", deps: func(d *Deps) { d.Resolver = nil }, body: ResolveRequest{Entity: acme}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.deps)
			w := env.do(t, http.MethodPost, "/resolve", tt.body, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantOutcome != "" {
				res := decode[contact.Result](t, w)
				assert.Equal(t, tt.wantOutcome, res.Outcome)
			}
		})
	}
}

func TestRecordCharge(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/charges", ChargeRequest{Email: " Ada@Acme.io "}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, ChargeResponse{Email: "ada@acme.io", Recorded: true}, decode[ChargeResponse](t, w))

	charged, err := env.guard.Check(context.Background(), "ada@acme.io")
	require.NoError(t, err)
	assert.False(t, charged, "a recorded charge blocks a second one inside the window")

	w = env.do(t, http.MethodPost, "/charges", ChargeRequest{Email: "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env = newTestEnv(t, func(d *Deps) { d.Charges = nil })
	w = env.do(t, http.MethodPost, "/charges", ChargeRequest{Email: "ada@acme.io"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuth(t *testing.T) {
	jwtCfg := &config.JWTConfig{Secret: "test-secret-key-for-jwt-signing-minimum-32-bytes", Issuer: config.DefaultJWTIssuer, ExpirationHours: 1}
	env := newTestEnv(t, func(d *Deps) { d.JWT = jwtCfg })
	token, err := NewJWTService(jwtCfg).GenerateToken("op-1")
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/detect", DetectRequest{Records: testPostings}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/detect", DetectRequest{Records: testPostings}, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code, "health is public")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.RateLimit = &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Path: "/resolve", Method: "POST", Tier: ratelimit.TierResolve, Limit: 1, Window: time.Minute, Burst: 1},
			},
		}
	})
	body := ResolveRequest{Entity: &types.Entity{RecordKey: "k", Domain: "acme.io"}}

	w := env.do(t, http.MethodPost, "/resolve", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = env.do(t, http.MethodPost, "/resolve", body, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	resp := decode[map[string]any](t, w)
	assert.Equal(t, "rate_limit_exceeded", resp["error"])
	assert.Equal(t, ratelimit.TierResolve, resp["tier"])

	w = env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
