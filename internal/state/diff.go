package state

import "github.com/five82/tabtime/internal/tracker"

// CoreField names a core field that affects rendering.
type CoreField int

const (
	FieldFocusMode CoreField = iota
	FieldIsTracking
	FieldCurrentDomain
)

// DefaultCoreFields is the allowlist used when none is given.
var DefaultCoreFields = []CoreField{FieldFocusMode, FieldIsTracking, FieldCurrentDomain}

func (f CoreField) String() string {
	switch f {
	case FieldFocusMode:
		return "focusMode"
	case FieldIsTracking:
		return "isTracking"
	case FieldCurrentDomain:
		return "currentDomain"
	default:
		return "unknown"
	}
}

// CoreChanged reports whether next differs from prev in any allowlisted
// field. A nil prev always counts as a change.
func CoreChanged(next tracker.CoreState, prev *tracker.CoreState, fields ...CoreField) bool {
	if prev == nil {
		return true
	}
	if len(fields) == 0 {
		fields = DefaultCoreFields
	}
	for _, f := range fields {
		switch f {
		case FieldFocusMode:
			if next.FocusMode != prev.FocusMode {
				return true
			}
		case FieldIsTracking:
			if next.IsTracking != prev.IsTracking {
				return true
			}
		case FieldCurrentDomain:
			if next.CurrentDomain != prev.CurrentDomain {
				return true
			}
		}
	}
	return false
}

// SitesChanged compares two site lists by domain membership and the fields
// a site row renders. Order is ignored.
func SitesChanged(next, prev []tracker.SiteUsage) bool {
	if len(next) != len(prev) {
		return true
	}
	byDomain := make(map[string]tracker.SiteUsage, len(prev))
	for _, site := range prev {
		byDomain[site.Domain] = site
	}
	if len(byDomain) != len(prev) || hasDuplicateDomain(next) {
		// Duplicate domains on either side; fall back to positional comparison.
		for i := range next {
			if next[i] != prev[i] {
				return true
			}
		}
		return false
	}
	for _, site := range next {
		old, ok := byDomain[site.Domain]
		if !ok {
			return true
		}
		if old.TimeSpent != site.TimeSpent || old.Visits != site.Visits {
			return true
		}
	}
	return false
}

func hasDuplicateDomain(sites []tracker.SiteUsage) bool {
	seen := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		if _, ok := seen[site.Domain]; ok {
			return true
		}
		seen[site.Domain] = struct{}{}
	}
	return false
}

// StatsChanged reports whether the rendered statistics differ.
func StatsChanged(next tracker.Stats, prev *tracker.Stats) bool {
	if prev == nil {
		return true
	}
	if next.TotalTime != prev.TotalTime ||
		next.SitesVisited != prev.SitesVisited ||
		next.ProductivityScore != prev.ProductivityScore {
		return true
	}
	return SitesChanged(next.Sites, prev.Sites)
}

// UserChanged reports whether the rendered user label differs.
func UserChanged(next tracker.UserInfo, prev *tracker.UserInfo) bool {
	if prev == nil {
		return true
	}
	return next.Label() != prev.Label() || next.SignedIn != prev.SignedIn
}

// FocusChanged reports whether the deep focus totals differ.
func FocusChanged(next tracker.FocusStats, prev *tracker.FocusStats) bool {
	if prev == nil {
		return true
	}
	return next.Minutes != prev.Minutes || next.Sessions != prev.Sessions
}
