package preset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"appboot/internal/domain"
)

// presetFile is the YAML document shape for user-supplied preset files.
type presetFile struct {
	Presets []domain.LaunchPreset `yaml:"presets"`
}

// LoadFile reads extra presets from a YAML file and registers each one.
// It returns the number of presets registered. Validation problems in any
// entry abort the whole load so a partially-registered file never exists.
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read presets file: %w", err)
	}

	var doc presetFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parse presets file: %w", err)
	}

	for i := range doc.Presets {
		if err := validatePreset(&doc.Presets[i]); err != nil {
			return 0, domain.WrapOp(fmt.Sprintf("presets file entry %d", i), err)
		}
	}
	for i := range doc.Presets {
		if err := r.Register(&doc.Presets[i]); err != nil {
			return 0, err
		}
	}
	if r.logger != nil {
		r.logger.Info("presets loaded", "path", path, "count", len(doc.Presets))
	}
	return len(doc.Presets), nil
}

// validatePreset checks structural requirements common to file-loaded and
// programmatic presets.
func validatePreset(p *domain.LaunchPreset) error {
	if p.ID == "" {
		return domain.NewDomainError("validatePreset", domain.ErrInvalidInput, "preset id is required")
	}
	switch p.Mode {
	case domain.ModeLaunch:
		if p.Launch == nil || p.Launch.Command == "" {
			return domain.NewDomainError("validatePreset", domain.ErrInvalidInput,
				fmt.Sprintf("preset %q: launch mode requires launch.command", p.ID))
		}
	case domain.ModeAttach:
		if p.Attach == nil || (p.Attach.Endpoint == "" && p.Attach.Port <= 0) {
			return domain.NewDomainError("validatePreset", domain.ErrInvalidInput,
				fmt.Sprintf("preset %q: attach mode requires attach.endpoint or attach.port", p.ID))
		}
	default:
		return domain.NewDomainError("validatePreset", domain.ErrInvalidInput,
			fmt.Sprintf("preset %q: unknown mode %q", p.ID, p.Mode))
	}
	for i, s := range p.Signals {
		switch s.Kind {
		case domain.SignalProcessStable, domain.SignalDevServerReady,
			domain.SignalWindowCreated, domain.SignalRendererReady, domain.SignalAppMarkerReady:
		default:
			return domain.NewDomainError("validatePreset", domain.ErrInvalidInput,
				fmt.Sprintf("preset %q: signal %d has unknown kind %q", p.ID, i, s.Kind))
		}
		if s.TimeoutMs <= 0 {
			return domain.NewDomainError("validatePreset", domain.ErrInvalidInput,
				fmt.Sprintf("preset %q: signal %d (%s) needs timeout_ms > 0", p.ID, i, s.Kind))
		}
	}
	return nil
}
