// Package types provides type definitions for structured data used throughout the connector pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// SignalKind is the typed category of a signal label.
type SignalKind string

const (
	SignalKindHiringRole  SignalKind = "HIRING_ROLE"
	SignalKindPersonRole  SignalKind = "PERSON_ROLE"
	SignalKindFunding     SignalKind = "FUNDING"
	SignalKindAcquisition SignalKind = "ACQUISITION"
	SignalKindContactRole SignalKind = "CONTACT_ROLE"
	SignalKindGrowth      SignalKind = "GROWTH"
	SignalKindUnknown     SignalKind = "UNKNOWN"
)

// SignalMeta is the human-meaningful signal attached to an entity.
// Label is final: consumers render it verbatim.
type SignalMeta struct {
	Kind   SignalKind `json:"kind"`
	Label  string     `json:"label"`
	Source string     `json:"source"`
}

// WindowStatus is the dataset-wide timing tier derived from signal strength.
type WindowStatus string

const (
	WindowEarly    WindowStatus = "EARLY"
	WindowBuilding WindowStatus = "BUILDING"
	WindowWatch    WindowStatus = "WATCH"
	WindowOpen     WindowStatus = "OPEN"
)
