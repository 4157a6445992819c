package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/db"
	"github.com/saadbelcaidx/connector-os/internal/events"
	"github.com/saadbelcaidx/connector-os/internal/pipeline/steps"
	"github.com/saadbelcaidx/connector-os/internal/providers"
	"github.com/saadbelcaidx/connector-os/internal/registry"
	"github.com/saadbelcaidx/connector-os/internal/store"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

type company struct {
	name, domain, industry, size string
	titles                       []string
}

var companies = []company{
	{"Acme Cloud", "acme.io", "SaaS", "120", []string{"CTO", "Staff Engineer", "Product Designer"}},
	{"Cargo Freight", "cargo.com", "Logistics", "5000", []string{"Warehouse Associate", "Forklift Operator"}},
	{"Bolt Software", "bolt.io", "SaaS", "80", []string{"Chief Technology Officer", "Backend Engineer"}},
	{"Dune Retail", "dune.com", "Retail", "3000", []string{"Store Manager", "Cashier"}},
	{"Echo Apps", "echo.io", "SaaS", "500", []string{"Backend Engineer", "QA Analyst"}},
}

// jobPostings returns 50 postings spread across the five companies.
func jobPostings() []types.RawRecord {
	records := make([]types.RawRecord, 0, 50)
	for i := range 50 {
		c := companies[i%len(companies)]
		records = append(records, types.RawRecord{
			"job_id":          fmt.Sprintf("job-%02d", i),
			"job_title":       c.titles[(i/len(companies))%len(c.titles)],
			"company_name":    c.name,
			"company_domain":  c.domain,
			"companyIndustry": c.industry,
			"companySize":     c.size,
		})
	}
	return records
}

func testProfile() *types.CapabilityProfile {
	return &types.CapabilityProfile{
		OperatorID: "op-1",
		Roles:      []string{"CTO"},
		Industries: []string{"SaaS"},
		SizeRange:  types.SizeBucketMid,
	}
}

func testResolver(t *testing.T) *contact.Resolver {
	t.Helper()
	static := providers.NewStatic("static", []types.ContactRecord{
		{Name: "Ada Lovelace", Email: "Ada@Acme.io", Title: "CTO", Domain: "acme.io"},
		{Name: "Grace Hopper", Email: "grace@bolt.io", Title: "CTO", Domain: "bolt.io"},
	})
	r, err := contact.NewResolver(contact.Deps{
		Cache:       store.NewMemoryCache(),
		ChargeGuard: store.NewMemoryChargeGuard(30*24*time.Hour, nil),
		Providers:   []contact.Provider{static},
		Idempotency: store.NewMemoryIdempotency(0, 0, nil),
	}, contact.Options{Concurrency: 2})
	require.NoError(t, err)
	return r
}

type fakeStore struct {
	mu        sync.Mutex
	runID     uuid.UUID
	steps     map[string]string
	saved     int
	status    string
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{runID: uuid.New(), steps: make(map[string]string)}
}

func (s *fakeStore) CreateRun(context.Context, string, string) (uuid.UUID, error) {
	if s.createErr != nil {
		return uuid.Nil, s.createErr
	}
	return s.runID, nil
}

func (s *fakeStore) StartRunStep(_ context.Context, runID uuid.UUID, step string) (*db.RunStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[step] = db.StepStatusInProgress
	return &db.RunStep{RunID: runID, Step: step, Status: db.StepStatusInProgress}, nil
}

func (s *fakeStore) FinishRunStep(_ context.Context, _ uuid.UUID, step, status, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[step] = status
	return nil
}

func (s *fakeStore) SaveResults(_ context.Context, _ uuid.UUID, results []types.MatchResult) error {
	s.saved = len(results)
	return nil
}

func (s *fakeStore) CompleteRun(_ context.Context, _ uuid.UUID, status string, _ *types.MatchResults, _ string) error {
	s.status = status
	return nil
}

type fakePublisher struct {
	events.Nop
	matches, contacts int
}

func (p *fakePublisher) PublishMatches(_ context.Context, _ string, results []types.MatchResult) error {
	p.matches += len(results)
	return nil
}

func (p *fakePublisher) PublishContacts(_ context.Context, _ string, results []*contact.Result) error {
	for _, r := range results {
		if r.Found() {
			p.contacts++
		}
	}
	return nil
}

func TestRun_EndToEnd(t *testing.T) {
	var progress []ProgressEvent
	out, err := Run(context.Background(), RunOptions{
		Records:    jobPostings(),
		Profile:    testProfile(),
		OnProgress: func(ev ProgressEvent) { progress = append(progress, ev) },
	})
	require.NoError(t, err)

	assert.Equal(t, "job_postings", out.SchemaID)
	assert.Equal(t, 5, out.Entities, "postings are grouped by company domain")
	require.Len(t, out.Results.Results, 5)

	byDomain := make(map[string]types.MatchResult)
	for _, r := range out.Results.Results {
		byDomain[r.Entity.Domain] = r
		assert.Equal(t, out.Results.WindowStatus, r.WindowStatus)
	}

	for _, d := range []string{"acme.io", "bolt.io"} {
		assert.GreaterOrEqual(t, byDomain[d].Score, 80, d)
	}
	for _, d := range []string{"cargo.com", "dune.com", "echo.io"} {
		assert.Less(t, byDomain[d].Score, 80, d)
	}
	assert.Equal(t, 0, byDomain["cargo.com"].Score)
	assert.Equal(t, 0, byDomain["dune.com"].Score)

	// Full matches rank above matches on nothing.
	position := make(map[string]int)
	for i, r := range out.Results.Results {
		position[r.Entity.Domain] = i
	}
	for _, full := range []string{"acme.io", "bolt.io"} {
		for _, none := range []string{"cargo.com", "dune.com"} {
			assert.Less(t, position[full], position[none], "%s should rank above %s", full, none)
		}
	}

	acme := byDomain["acme.io"].Entity
	assert.ElementsMatch(t, []string{"CTO", "Staff Engineer", "Product Designer"}, acme.Roles)
	assert.True(t, strings.HasPrefix(acme.SignalMeta.Label, "Hiring "), acme.SignalMeta.Label)

	require.NotEmpty(t, progress)
	assert.Equal(t, steps.Detect, progress[0].Step)
	assert.Contains(t, progress[0].Message, "Step 1/")
	assert.Nil(t, out.Contacts, "no resolver configured")
}

func TestRun_ResolvesTopMatches(t *testing.T) {
	st := newFakeStore()
	pub := &fakePublisher{}

	out, err := Run(context.Background(), RunOptions{
		Records:    jobPostings(),
		Profile:    testProfile(),
		Threshold:  50,
		Resolver:   testResolver(t),
		ResolveTop: 5,
		Store:      st,
		Publisher:  pub,
	})
	require.NoError(t, err)

	require.Len(t, out.Results.Results, 2, "threshold drops partial and zero matches")
	require.Len(t, out.Contacts, 2)
	for _, c := range out.Contacts {
		assert.Equal(t, contact.OutcomeFound, c.Outcome)
		assert.True(t, c.Charged)
	}

	require.Len(t, out.Intros, 2)
	for _, intro := range out.Intros {
		assert.NotEmpty(t, intro.ContactName)
		assert.Contains(t, []string{"ada@acme.io", "grace@bolt.io"}, intro.ContactEmail)
		assert.NotEmpty(t, intro.Reasons)
	}
	assert.Equal(t, out.Results.Results[0].Entity.SignalMeta.Label, out.Intros[0].SignalLabel)

	assert.Equal(t, st.runID.String(), out.RunID)
	assert.Equal(t, db.RunStatusCompleted, st.status)
	assert.Equal(t, 2, st.saved)
	assert.Equal(t, db.StepStatusCompleted, st.steps[steps.Resolve])
	assert.Equal(t, db.StepStatusCompleted, st.steps[steps.Publish])
	assert.Equal(t, db.StepStatusCompleted, st.steps[steps.Group])

	assert.Equal(t, 2, pub.matches)
	assert.Equal(t, 2, pub.contacts)
}

func TestRun_StoreFailureDoesNotFailRun(t *testing.T) {
	st := newFakeStore()
	st.createErr = errors.New("db down")

	out, err := Run(context.Background(), RunOptions{Records: jobPostings(), Profile: testProfile(), Store: st})
	require.NoError(t, err)
	assert.Empty(t, out.RunID)
	assert.Empty(t, st.steps)
}

func TestRun_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		opts    RunOptions
		wantErr string
	}{
		{name: "no profile", opts: RunOptions{Records: jobPostings()}, wantErr: "profile is required"},
		{name: "invalid profile", opts: RunOptions{Records: jobPostings(), Profile: &types.CapabilityProfile{SizeRange: "huge"}}, wantErr: "SizeRange"},
		{name: "empty dataset", opts: RunOptions{Profile: testProfile()}, wantErr: "dataset is empty"},
		{name: "unknown shape", opts: RunOptions{Records: []types.RawRecord{{"foo": "bar"}}, Profile: testProfile()}, wantErr: "unrecognized"},
		{name: "bad threshold", opts: RunOptions{Records: jobPostings(), Profile: testProfile(), Threshold: 101}, wantErr: "threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Run(context.Background(), tt.opts)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_UnknownShapeIsADetectError(t *testing.T) {
	_, err := Run(context.Background(), RunOptions{Records: []types.RawRecord{{"foo": "bar"}}, Profile: testProfile()})
	assert.ErrorIs(t, err, registry.ErrUnrecognizedSource)
}

func TestRun_NoGroupKeepsPostings(t *testing.T) {
	out, err := Run(context.Background(), RunOptions{Records: jobPostings(), Profile: testProfile(), NoGroup: true})
	require.NoError(t, err)
	assert.Equal(t, 50, out.Entities)
}

func TestRun_Cancelled(t *testing.T) {
	st := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, RunOptions{Records: jobPostings(), Profile: testProfile(), Store: st})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, db.RunStatusCancelled, st.status)
}

func TestBuildIntroFacts(t *testing.T) {
	results := []types.MatchResult{
		{Entity: types.Entity{RecordKey: "a", Domain: "a.io", SignalMeta: types.SignalMeta{Label: "Hiring CTO +2 more"}}, Score: 90, Reasons: []string{"Role match: CTO"}},
		{Entity: types.Entity{RecordKey: "b", Domain: "b.io", Company: "Beta"}, Score: 70},
	}
	contacts := []*contact.Result{
		{RecordKey: "a", Outcome: contact.OutcomeFound, Contact: &types.ContactRecord{Name: "Ada", Email: "ada@a.io", Company: "Alpha"}},
		{RecordKey: "b", Outcome: contact.OutcomeNotFound},
	}

	facts := BuildIntroFacts(results, contacts)
	require.Len(t, facts, 1)
	assert.Equal(t, "Hiring CTO +2 more", facts[0].SignalLabel)
	assert.Equal(t, "Alpha", facts[0].Company, "falls back to the contact's company")
	assert.Equal(t, "Ada", facts[0].ContactName)
	assert.Equal(t, []string{"Role match: CTO"}, facts[0].Reasons)
}
