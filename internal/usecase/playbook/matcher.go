package playbook

import (
	"strings"

	"appboot/internal/domain"
)

// Matcher matches failure messages against a playbook catalog.
type Matcher struct {
	playbooks []domain.FailurePlaybook
}

// NewMatcher creates a Matcher over the built-in catalog.
func NewMatcher() *Matcher {
	return &Matcher{playbooks: Catalog()}
}

// NewMatcherWith creates a Matcher over a custom catalog (tests, embedders).
func NewMatcherWith(playbooks []domain.FailurePlaybook) *Matcher {
	return &Matcher{playbooks: playbooks}
}

// Match returns every playbook whose preset scope covers presetID, whose
// platform scope covers platform, and whose symptom regexes match message
// case-insensitively, in catalog order. Empty presetID or platform only
// match wildcard-scoped playbooks. Pure function over the static catalog.
func (m *Matcher) Match(message, presetID, platform string) []domain.FailurePlaybook {
	if message == "" {
		return nil
	}
	lower := strings.ToLower(message)

	var out []domain.FailurePlaybook
	for _, p := range m.playbooks {
		if !p.AppliesTo(presetID, platform) {
			continue
		}
		for _, re := range p.Symptoms {
			// Symptom patterns are compiled case-insensitive; lower is
			// passed anyway so plain-text patterns behave predictably.
			if re.MatchString(lower) || re.MatchString(message) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
