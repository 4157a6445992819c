// Package normalize converts raw records of a detected schema into canonical entities.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/saadbelcaidx/connector-os/internal/registry"
	"github.com/saadbelcaidx/connector-os/internal/signal"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Canonical field names shared by every schema's field table.
const (
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldFullName        = "full_name"
	FieldEmail           = "email"
	FieldTitle           = "title"
	FieldLinkedIn        = "linkedin"
	FieldCompany         = "company"
	FieldDomain          = "domain"
	FieldIndustry        = "industry"
	FieldSize            = "size"
	FieldFundingAmount   = "funding_amount"
	FieldFundingType     = "funding_type"
	FieldRevenue         = "revenue"
	FieldFoundedYear     = "founded_year"
	FieldDescription     = "description"
	FieldDescriptionHTML = "description_html"
	FieldCity            = "city"
	FieldState           = "state"
	FieldCountry         = "country"
	FieldSignal          = "signal"
)

// signalOverrideKeys are raw columns that assert a signal regardless of schema.
var signalOverrideKeys = []string{"Signal", "signal", "SIGNAL"}

// Normalize converts one raw record into an Entity. It never fails: missing
// or malformed fields resolve to zero values. The raw map is kept by
// reference and is not modified.
func Normalize(raw types.RawRecord, schema *registry.Schema) types.Entity {
	r := resolver{raw: raw, schema: schema}

	e := types.Entity{
		FirstName:   r.str(FieldFirstName),
		LastName:    r.str(FieldLastName),
		FullName:    r.str(FieldFullName),
		Title:       r.str(FieldTitle),
		LinkedIn:    r.str(FieldLinkedIn),
		Company:     r.str(FieldCompany),
		Industry:    r.str(FieldIndustry),
		Size:        r.str(FieldSize),
		FundingType: r.str(FieldFundingType),
		Revenue:     r.str(FieldRevenue),
		City:        r.str(FieldCity),
		State:       r.str(FieldState),
		Country:     r.str(FieldCountry),
		SignalType:  schema.SignalType,
		SchemaID:    schema.ID,
		Raw:         raw,
	}

	if v, ok := r.value(FieldFundingAmount); ok {
		e.FundingAmount = asAmount(v)
	}
	if v, ok := r.value(FieldFoundedYear); ok {
		e.FoundedYear = asYear(v)
	}
	if email := r.str(FieldEmail); strings.Contains(email, "@") {
		email = strings.ToLower(email)
		e.Email = &email
	}

	fillNames(&e)
	e.Description = description(&r)
	if e.Title != "" {
		e.Roles = []string{e.Title}
	}

	e.Domain, e.DomainSource = resolveDomain(&r)
	e.RecordKey = recordKey(&r, &e)

	if e.DisplayName() == "" && e.Company == "" {
		e.SkipEnrichment = true
		e.Domain = ""
		e.DomainSource = types.DomainSourceNone
	}

	e.SignalMeta = signal.Classify(signal.Input{
		SignalType:    schema.SignalType,
		Title:         e.Title,
		Company:       e.Company,
		FullName:      e.DisplayName(),
		FundingAmount: e.FundingAmount,
		FundingType:   e.FundingType,
		Override:      signalOverride(&r),
	})

	return e
}

// NormalizeAll normalizes a batch. Records are independent, so the work is
// spread across goroutines; output order matches input order.
func NormalizeAll(ctx context.Context, records []types.RawRecord, schema *registry.Schema) ([]types.Entity, error) {
	out := make([]types.Entity, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Normalize(records[i], schema)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolver looks canonical fields up in a raw record: schema path first,
// then aliases, then a case-insensitive match on either.
type resolver struct {
	raw    types.RawRecord
	schema *registry.Schema
}

func (r *resolver) value(field string) (any, bool) {
	if path, ok := r.schema.Fields[field]; ok && path != "" {
		if v, ok := registry.Lookup(r.raw, path); ok && registry.Plausible(v) {
			return v, true
		}
	}
	aliases := r.schema.Aliases[field]
	for _, alias := range aliases {
		if v, ok := r.raw[alias]; ok && registry.Plausible(v) {
			return v, true
		}
	}

	// Header casing varies between exports ("company name", "COMPANY NAME").
	candidates := aliases
	if path, ok := r.schema.Fields[field]; ok && path != "" {
		candidates = append([]string{path}, aliases...)
	}
	keys := make([]string, 0, len(r.raw))
	for key := range r.raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, c := range candidates {
		for _, key := range keys {
			if v := r.raw[key]; strings.EqualFold(key, c) && registry.Plausible(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func (r *resolver) str(field string) string {
	v, ok := r.value(field)
	if !ok {
		return ""
	}
	return asString(v)
}

// resolveDomain establishes the entity's domain and its provenance. The
// company name is never consulted.
func resolveDomain(r *resolver) (string, types.DomainSource) {
	if v, ok := r.value(FieldDomain); ok {
		if d := CleanDomain(asString(v)); d != "" {
			return d, types.DomainSourceExplicit
		}
	}
	if r.schema.TrustedWebsite != "" {
		if v, ok := registry.Lookup(r.raw, r.schema.TrustedWebsite); ok {
			if d := CleanDomain(asString(v)); d != "" {
				return d, types.DomainSourceTrustedInferred
			}
		}
	}
	return "", types.DomainSourceNone
}

// recordKey prefers the provider-native id. Otherwise it hashes the stable
// human fields; the domain is never part of the key.
func recordKey(r *resolver, e *types.Entity) string {
	if r.schema.IDField != "" {
		if v, ok := registry.Lookup(r.raw, r.schema.IDField); ok {
			if id := asString(v); id != "" {
				return r.schema.ID + ":" + id
			}
		}
	}

	parts := []string{
		strings.ToLower(strings.TrimSpace(e.DisplayName())),
		strings.ToLower(strings.TrimSpace(e.Company)),
	}
	if e.SignalType == types.SignalTypeHiring {
		parts = append(parts, strings.ToLower(e.Title))
	}
	b, _ := json.Marshal(parts)
	sum := sha256.Sum256(b)
	return r.schema.ID + ":" + hex.EncodeToString(sum[:])[:16]
}

func fillNames(e *types.Entity) {
	if e.FullName == "" && (e.FirstName != "" || e.LastName != "") {
		e.FullName = strings.TrimSpace(e.FirstName + " " + e.LastName)
	}
	if e.FullName != "" && e.FirstName == "" && e.LastName == "" {
		first, last, _ := strings.Cut(e.FullName, " ")
		e.FirstName = first
		e.LastName = strings.TrimSpace(last)
	}
}

func description(r *resolver) string {
	text := r.str(FieldDescription)
	if text == "" {
		if html := r.str(FieldDescriptionHTML); html != "" {
			return htmlToText(html)
		}
		return ""
	}
	if looksLikeHTML(text) {
		return htmlToText(text)
	}
	return text
}

func signalOverride(r *resolver) string {
	if s := r.str(FieldSignal); s != "" {
		return s
	}
	for _, k := range signalOverrideKeys {
		if v, ok := r.raw[k]; ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}
