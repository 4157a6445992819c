// Package registry holds the known raw data shapes and detects which one a dataset matches.
package registry

import (
	"embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

//go:embed config/schemas.yaml
var schemasYAML embed.FS

// HostEvidence names a URL-bearing field and the host substrings that
// identify the source. A match is stronger evidence than field presence.
type HostEvidence struct {
	Field    string   `yaml:"field"`
	Hosts    []string `yaml:"hosts"`
	Required bool     `yaml:"required,omitempty"`
}

// Schema describes one known raw-data shape. Schemas are defined once and
// must not be mutated after loading.
type Schema struct {
	ID         string           `yaml:"id"`
	Name       string           `yaml:"name"`
	SignalType types.SignalType `yaml:"signal_type"`
	Priority   int              `yaml:"priority"`
	Sides      []types.Side     `yaml:"sides"`

	// Fingerprint lists the paths that must all hold plausible values.
	// An entry may offer alternatives separated by "|".
	Fingerprint  []string      `yaml:"fingerprint"`
	HostEvidence *HostEvidence `yaml:"host_evidence,omitempty"`

	// Fields maps canonical field names to source paths (JMESPath).
	Fields map[string]string `yaml:"fields"`
	// Aliases lists alternative raw keys per canonical field, tried after Fields.
	Aliases map[string][]string `yaml:"aliases,omitempty"`

	// IDField is the path of a provider-native record id, if any.
	IDField string `yaml:"id_field,omitempty"`
	// TrustedWebsite is the single structured website field trusted for a domain.
	TrustedWebsite string `yaml:"trusted_website,omitempty"`
}

// Populates reports whether the schema may populate the given side.
func (s *Schema) Populates(side types.Side) bool {
	for _, sd := range s.Sides {
		if sd == side {
			return true
		}
	}
	return false
}

// Registry is an ordered, read-only set of schemas.
type Registry struct {
	schemas []Schema
	byID    map[string]int
}

type registryFile struct {
	Schemas []Schema `yaml:"schemas"`
}

// Default loads the embedded schema set.
func Default() (*Registry, error) {
	data, err := schemasYAML.ReadFile("config/schemas.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schemas: %w", err)
	}
	return Parse(data)
}

// MustDefault is Default for package-level initialisation and tests.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadFile loads a schema set from a YAML file on disk. Environment
// variables in the file are expanded.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse builds a registry from YAML content.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schemas YAML: %w", err)
	}
	return New(file.Schemas...)
}

// New builds a registry from schema values, ordering them by priority.
func New(schemas ...Schema) (*Registry, error) {
	r := &Registry{
		schemas: make([]Schema, 0, len(schemas)),
		byID:    make(map[string]int, len(schemas)),
	}

	for _, s := range schemas {
		if s.ID == "" {
			return nil, fmt.Errorf("schema with empty id")
		}
		if len(s.Fingerprint) == 0 {
			return nil, fmt.Errorf("schema %s: fingerprint is empty", s.ID)
		}
		switch s.SignalType {
		case types.SignalTypeHiring, types.SignalTypePerson, types.SignalTypeCompany, types.SignalTypeContact:
		default:
			return nil, fmt.Errorf("schema %s: unknown signal type %q", s.ID, s.SignalType)
		}
		for field, path := range s.Fields {
			if _, err := compilePath(path); err != nil {
				return nil, fmt.Errorf("schema %s field %s: %w", s.ID, field, err)
			}
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate schema id %s", s.ID)
		}
		r.byID[s.ID] = -1
		r.schemas = append(r.schemas, s)
	}

	sort.SliceStable(r.schemas, func(i, j int) bool {
		return r.schemas[i].Priority < r.schemas[j].Priority
	})
	for i, s := range r.schemas {
		r.byID[s.ID] = i
	}

	return r, nil
}

// Get returns the schema with the given id.
func (r *Registry) Get(id string) (*Schema, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return &r.schemas[i], true
}

// Schemas returns the schemas in detection order.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, len(r.schemas))
	copy(out, r.schemas)
	return out
}
