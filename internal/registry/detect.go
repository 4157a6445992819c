package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// ErrUnrecognizedSource is returned when no schema matches a dataset.
var ErrUnrecognizedSource = errors.New("unrecognized data source")

// ErrEmptyDataset is returned when detection is asked to classify nothing.
var ErrEmptyDataset = errors.New("dataset is empty")

// DetectError describes a rejected dataset.
type DetectError struct {
	Keys  []string
	Cause error
}

func (e *DetectError) Error() string {
	if len(e.Keys) == 0 {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s (fields: %s)", e.Cause.Error(), strings.Join(e.Keys, ", "))
}

func (e *DetectError) Unwrap() error {
	return e.Cause
}

// Detect returns the first schema, in priority order, whose fingerprint the
// sample satisfies. Schemas whose host evidence also matches are preferred
// over presence-only matches. Detect is pure.
func (r *Registry) Detect(sample types.RawRecord) (*Schema, error) {
	if len(sample) == 0 {
		return nil, &DetectError{Cause: ErrUnrecognizedSource}
	}

	var weak *Schema
	for i := range r.schemas {
		s := &r.schemas[i]
		if !fingerprintMatches(s, sample) {
			continue
		}

		evidence := hostEvidenceMatches(s, sample)
		if evidence {
			return s, nil
		}
		if s.HostEvidence != nil && s.HostEvidence.Required {
			continue
		}
		if weak == nil {
			weak = s
		}
	}

	if weak != nil {
		return weak, nil
	}
	return nil, &DetectError{Keys: sortedKeys(sample), Cause: ErrUnrecognizedSource}
}

// DetectDataset classifies a whole dataset from its first record. The whole
// dataset is rejected when that record matches no schema.
func (r *Registry) DetectDataset(records []types.RawRecord) (*Schema, error) {
	if len(records) == 0 {
		return nil, &DetectError{Cause: ErrEmptyDataset}
	}
	return r.Detect(records[0])
}

func fingerprintMatches(s *Schema, sample types.RawRecord) bool {
	for _, entry := range s.Fingerprint {
		alternatives := strings.Split(entry, "|")
		found := false
		for _, alt := range alternatives {
			if v, ok := Lookup(sample, strings.TrimSpace(alt)); ok && Plausible(v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hostEvidenceMatches(s *Schema, sample types.RawRecord) bool {
	if s.HostEvidence == nil {
		return false
	}
	v, ok := Lookup(sample, s.HostEvidence.Field)
	if !ok {
		return false
	}
	str, ok := v.(string)
	if !ok {
		return false
	}
	str = strings.ToLower(str)
	for _, host := range s.HostEvidence.Hosts {
		if strings.Contains(str, strings.ToLower(host)) {
			return true
		}
	}
	return false
}

func sortedKeys(m types.RawRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
