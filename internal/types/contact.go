// Package types provides type definitions for structured data used throughout the connector pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// ContactRecord is a resolved contact channel for an entity's domain.
type ContactRecord struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Title      string    `json:"title,omitempty"`
	LinkedIn   string    `json:"linkedin,omitempty"`
	Company    string    `json:"company,omitempty"`
	Domain     string    `json:"domain"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CachedAt   time.Time `json:"cached_at,omitzero"`
}

// HasEmail reports whether the record carries a usable email address.
func (c *ContactRecord) HasEmail() bool {
	return c != nil && c.Email != ""
}

// CacheEntry is one row of the charge-guard ledger.
type CacheEntry struct {
	Domain     string    `json:"domain"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
	Status     string    `json:"status"`
}
