// Package schemas embeds the JSON Schema documents for the connector's
// structured artifacts.
package schemas

import "embed"

// Names of the embedded schema documents.
const (
	CapabilityProfile = "capability_profile.schema.json"
	MatchResults      = "match_results.schema.json"
)

// FS holds every *.schema.json document in this directory.
//
//go:embed *.schema.json
var FS embed.FS
