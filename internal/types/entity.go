// Package types provides type definitions for structured data used throughout the connector pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// RawRecord is one untyped record as scraped from a third-party data source.
type RawRecord = map[string]any

// SignalType is the broad shape family a schema belongs to.
type SignalType string

const (
	SignalTypeHiring  SignalType = "hiring"
	SignalTypePerson  SignalType = "person"
	SignalTypeCompany SignalType = "company"
	SignalTypeContact SignalType = "contact"
)

// Side says which side of a match a schema may populate.
type Side string

const (
	SideDemand Side = "demand"
	SideSupply Side = "supply"
)

// DomainSource records how an entity's domain was obtained.
type DomainSource string

const (
	// DomainSourceExplicit means the domain was read verbatim from a known domain field.
	DomainSourceExplicit DomainSource = "explicit"
	// DomainSourceTrustedInferred means the domain came from the schema's trusted website field.
	DomainSourceTrustedInferred DomainSource = "trusted_inferred"
	// DomainSourceNone means no domain could be established.
	DomainSourceNone DomainSource = "none"
)

// Entity is the canonical, schema-independent record produced by normalization.
type Entity struct {
	RecordKey string `json:"record_key"`

	// Contact
	FirstName string  `json:"first_name,omitempty"`
	LastName  string  `json:"last_name,omitempty"`
	FullName  string  `json:"full_name,omitempty"`
	Email     *string `json:"email"`
	Title     string  `json:"title,omitempty"`
	LinkedIn  string  `json:"linkedin,omitempty"`

	// Company
	Company       string       `json:"company,omitempty"`
	Domain        string       `json:"domain"`
	DomainSource  DomainSource `json:"domain_source"`
	Industry      string       `json:"industry,omitempty"`
	Size          string       `json:"size,omitempty"`
	FundingAmount float64      `json:"funding_amount,omitempty"`
	FundingType   string       `json:"funding_type,omitempty"`
	Revenue       string       `json:"revenue,omitempty"`
	FoundedYear   int          `json:"founded_year,omitempty"`
	Description   string       `json:"description,omitempty"`

	// Location
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`

	SignalType SignalType `json:"signal_type"`
	SignalMeta SignalMeta `json:"signal_meta"`
	SchemaID   string     `json:"schema_id"`

	// Roles is the role/title set associated with the entity. For grouped
	// hiring entities it holds every distinct posted title.
	Roles []string `json:"roles,omitempty"`

	// SkipEnrichment marks records with no identifiable name or company.
	// They are kept for visibility but never sent to contact resolution.
	SkipEnrichment bool `json:"skip_enrichment,omitempty"`

	// SignalQuality is an opaque freshness/density figure supplied upstream.
	SignalQuality float64 `json:"signal_quality,omitempty"`

	Raw RawRecord `json:"raw"`
}

// HasDomain reports whether the entity carries a usable domain.
func (e *Entity) HasDomain() bool {
	return e.Domain != "" && e.DomainSource != DomainSourceNone
}

// DisplayName returns the best available person name for the entity.
func (e *Entity) DisplayName() string {
	if e.FullName != "" {
		return e.FullName
	}
	if e.FirstName != "" || e.LastName != "" {
		if e.LastName == "" {
			return e.FirstName
		}
		if e.FirstName == "" {
			return e.LastName
		}
		return e.FirstName + " " + e.LastName
	}
	return ""
}
