package preset

import "appboot/internal/domain"

// Compose merges caller overrides over a preset and returns a new preset
// value. Inputs are never mutated: args are concatenated (preset first),
// env maps are unioned with override values winning per key, and scalar
// fields replace only when the override supplies them.
func Compose(p *domain.LaunchPreset, ov *domain.LaunchOverrides) *domain.LaunchPreset {
	out := p.Clone()
	if ov == nil {
		return out
	}

	if out.Launch == nil && (ov.Command != "" || len(ov.Args) > 0 || len(ov.Env) > 0 || ov.Dir != "") {
		out.Launch = &domain.ProcessLaunchConfig{}
	}
	if out.Launch != nil {
		if ov.Command != "" {
			out.Launch.Command = ov.Command
		}
		if ov.Dir != "" {
			out.Launch.Dir = ov.Dir
		}
		out.Launch.Args = append(out.Launch.Args, ov.Args...)
		out.Launch.Env = mergeEnv(out.Launch.Env, ov.Env)
	}

	if ov.AttachEndpoint != "" || ov.AttachPort > 0 {
		if out.Attach == nil {
			out.Attach = &domain.AttachConfig{}
		}
		if ov.AttachEndpoint != "" {
			out.Attach.Endpoint = ov.AttachEndpoint
		}
		if ov.AttachPort > 0 {
			out.Attach.Port = ov.AttachPort
		}
	}

	if ov.FallbackEndpoint != "" {
		out.AttachFallback.EndpointOverride = ov.FallbackEndpoint
	}

	return out
}

// mergeEnv unions two env maps into a fresh map; values in over win.
func mergeEnv(base, over map[string]string) map[string]string {
	if base == nil && over == nil {
		return nil
	}
	merged := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}
