package planning

import (
	"sort"

	apperrors "insight-agents/internal/common/errors"
)

// Allowlist is a read-only set of permitted metric and dimension names. Build it
// once at startup and pass it to the agents that need it.
type Allowlist struct {
	metrics    map[string]struct{}
	dimensions map[string]struct{}
}

func NewAllowlist(metrics, dimensions []string) *Allowlist {
	return &Allowlist{metrics: toSet(metrics), dimensions: toSet(dimensions)}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (a *Allowlist) Metrics() []string    { return sortedKeys(a.metrics) }
func (a *Allowlist) Dimensions() []string { return sortedKeys(a.dimensions) }

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CheckMetrics rejects the first metric outside the allowlist.
func (a *Allowlist) CheckMetrics(names []string) error {
	return check(names, a.metrics, "metric")
}

// CheckDimensions rejects the first dimension outside the allowlist.
func (a *Allowlist) CheckDimensions(names []string) error {
	return check(names, a.dimensions, "dimension")
}

func check(names []string, allowed map[string]struct{}, kind string) error {
	for _, n := range names {
		if _, ok := allowed[n]; !ok {
			return apperrors.NewValidationError(n, kind, sortedKeys(allowed))
		}
	}
	return nil
}
