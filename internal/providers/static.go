package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Static serves contacts from a fixed table keyed by domain. It backs
// offline CLI runs and tests.
type Static struct {
	name     string
	contacts map[string]types.ContactRecord
}

// NewStatic creates a provider over contacts. Each record is keyed by its
// Domain field.
func NewStatic(name string, contacts []types.ContactRecord) *Static {
	m := make(map[string]types.ContactRecord, len(contacts))
	for _, c := range contacts {
		m[strings.ToLower(strings.TrimSpace(c.Domain))] = c
	}
	return &Static{name: name, contacts: m}
}

// LoadStatic reads a JSON array of contact records from path.
func LoadStatic(name, path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts file: %w", err)
	}
	var contacts []types.ContactRecord
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("failed to parse contacts file: %w", err)
	}
	return NewStatic(name, contacts), nil
}

// Name returns the provider name.
func (s *Static) Name() string { return s.name }

// Lookup returns a copy of the contact for domain. When hint names a
// person, only a record for that person matches.
func (s *Static) Lookup(ctx context.Context, domain string, _ []string, hint *types.ContactRecord) (*types.ContactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.contacts[strings.ToLower(strings.TrimSpace(domain))]
	if !ok {
		return nil, nil
	}
	if hint != nil && hint.Name != "" && rec.Name != "" && !strings.EqualFold(hint.Name, rec.Name) {
		return nil, nil
	}
	return &rec, nil
}
