package normalize

import (
	"sort"
	"strconv"
	"strings"

	"github.com/saadbelcaidx/connector-os/internal/signal"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// GroupByDomain collapses per-posting hiring entities into one entity per
// company. Entities are keyed by domain and by the normalized company name,
// so postings of one company group together whether or not each carries a
// website. The name key is only used for grouping and never becomes a
// domain. Non-hiring entities pass through unchanged.
//
// The first entity seen for a company is the base of the group. Its
// distinct titles are collected into Roles and the label is rebuilt from the
// aggregated set.
func GroupByDomain(entities []types.Entity) []types.Entity {
	out := make([]types.Entity, 0, len(entities))
	index := make(map[string]int)
	roleSets := make(map[int]map[string]string)

	for _, e := range entities {
		if e.SignalType != types.SignalTypeHiring {
			out = append(out, e)
			continue
		}

		domainKey, nameKey := groupKeys(&e)
		if domainKey == "" && nameKey == "" {
			out = append(out, e)
			continue
		}

		i, seen := findGroup(index, out, domainKey, nameKey)
		if !seen {
			i = len(out)
			roleSets[i] = make(map[string]string)
			out = append(out, e)
		} else {
			mergeInto(&out[i], &e)
		}
		if domainKey != "" {
			index[domainKey] = i
		}
		if _, taken := index[nameKey]; nameKey != "" && !taken {
			index[nameKey] = i
		}
		for _, role := range e.Roles {
			norm := strings.ToLower(strings.TrimSpace(role))
			if _, dup := roleSets[i][norm]; !dup && norm != "" {
				roleSets[i][norm] = strings.TrimSpace(role)
			}
		}
	}

	for i, set := range roleSets {
		roles := make([]string, 0, len(set))
		for _, r := range set {
			roles = append(roles, r)
		}
		sort.Strings(roles)
		out[i].Roles = roles
		out[i].SignalMeta = groupedSignal(&out[i])
	}
	return out
}

func groupKeys(e *types.Entity) (domainKey, nameKey string) {
	if e.HasDomain() {
		domainKey = "d:" + e.Domain
	}
	if name := strings.ToLower(strings.Join(strings.Fields(e.Company), " ")); name != "" {
		nameKey = "c:" + name
	}
	return domainKey, nameKey
}

// findGroup returns the group an entity joins. A posting with a domain joins
// its domain group, or adopts a domainless group of the same company. A
// posting without a domain joins any group of the same company.
func findGroup(index map[string]int, out []types.Entity, domainKey, nameKey string) (int, bool) {
	if domainKey == "" {
		i, ok := index[nameKey]
		return i, ok
	}
	if i, ok := index[domainKey]; ok {
		return i, true
	}
	if i, ok := index[nameKey]; ok && !out[i].HasDomain() {
		return i, true
	}
	return 0, false
}

// mergeInto fills empty company fields of the group base from a later posting.
func mergeInto(base, e *types.Entity) {
	if !base.HasDomain() && e.HasDomain() {
		base.Domain, base.DomainSource = e.Domain, e.DomainSource
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&base.Company, e.Company)
	fill(&base.Industry, e.Industry)
	fill(&base.Size, e.Size)
	fill(&base.City, e.City)
	fill(&base.State, e.State)
	fill(&base.Country, e.Country)
	fill(&base.LinkedIn, e.LinkedIn)
	if e.SignalQuality > base.SignalQuality {
		base.SignalQuality = e.SignalQuality
	}
}

// groupedSignal keeps an explicit override label; otherwise it labels the
// group by its first role and the number of open roles.
func groupedSignal(e *types.Entity) types.SignalMeta {
	if e.SignalMeta.Source == signal.SourceOverride {
		return e.SignalMeta
	}
	switch len(e.Roles) {
	case 0:
		return e.SignalMeta
	case 1:
		return signal.Classify(signal.Input{SignalType: types.SignalTypeHiring, Title: e.Roles[0]})
	default:
		meta := signal.Classify(signal.Input{SignalType: types.SignalTypeHiring, Title: e.Roles[0]})
		meta.Label = meta.Label + " +" + strconv.Itoa(len(e.Roles)-1) + " more"
		return meta
	}
}
