// Package types provides type definitions for structured data used throughout the connector pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "github.com/go-playground/validator/v10"

// Size buckets accepted by CapabilityProfile.SizeRange.
const (
	SizeBucketSmall      = "1-50"
	SizeBucketMid        = "50-200"
	SizeBucketLarge      = "200-1000"
	SizeBucketEnterprise = "1000+"
)

// CapabilityProfile describes what an operator solves for. It is supplied
// externally and treated as read-only.
type CapabilityProfile struct {
	OperatorID  string   `json:"operator_id,omitempty"`
	Roles       []string `json:"roles" validate:"dive,required"`
	Industries  []string `json:"industries,omitempty" validate:"dive,required"`
	SizeRange   string   `json:"size_range,omitempty" validate:"omitempty,oneof=1-50 50-200 200-1000 1000+"`
	PainPoints  []string `json:"pain_points,omitempty" validate:"dive,required"`
	Geographies []string `json:"geographies,omitempty" validate:"dive,required"`
}

// Validate validates the CapabilityProfile using the validator.
func (p *CapabilityProfile) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}
