package signal

import "github.com/saadbelcaidx/connector-os/internal/types"

// painPoints maps a signal kind to the pain-point tags it implies.
var painPoints = map[types.SignalKind][]string{
	types.SignalKindHiringRole: {
		"hiring bottlenecks",
		"team velocity",
		"ops scaling",
		"delivery pressure",
	},
	types.SignalKindFunding: {
		"scaling after funding",
		"go-to-market expansion",
		"hiring bottlenecks",
		"process maturity",
	},
	types.SignalKindAcquisition: {
		"post-merger integration",
		"systems consolidation",
		"team restructuring",
	},
	types.SignalKindGrowth: {
		"ops scaling",
		"go-to-market expansion",
		"process maturity",
	},
	types.SignalKindPersonRole: {
		"leadership bandwidth",
		"team building",
		"strategic execution",
	},
	types.SignalKindContactRole: {
		"pipeline generation",
		"outbound capacity",
	},
}

// PainPoints returns the pain-point tags implied by a signal kind. The
// returned slice must not be modified.
func PainPoints(kind types.SignalKind) []string {
	return painPoints[kind]
}
