package domain

import "regexp"

// ScopeAny matches every preset id or platform in a playbook scope list.
const ScopeAny = "*"

// FailurePlaybook maps a failure symptom class to operator remediation steps.
// Catalog entries are static and immutable; matching is advisory only and
// never influences control flow.
type FailurePlaybook struct {
	ID          string
	Title       string
	Presets     []string // preset ids, or ScopeAny
	Platforms   []string // GOOS values, or ScopeAny
	Symptoms    []*regexp.Regexp
	Explanation string
	Steps       []string
	Link        string
}

// AppliesTo reports whether the playbook's preset and platform scopes cover
// the given identifiers. Empty scope lists never match.
func (p *FailurePlaybook) AppliesTo(presetID, platform string) bool {
	return scopeContains(p.Presets, presetID) && scopeContains(p.Platforms, platform)
}

func scopeContains(scope []string, v string) bool {
	for _, s := range scope {
		if s == ScopeAny || s == v {
			return true
		}
	}
	return false
}
