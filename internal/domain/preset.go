package domain

// LaunchMode selects how a preset brings the application up.
type LaunchMode string

const (
	// ModeLaunch spawns a new application process.
	ModeLaunch LaunchMode = "launch"
	// ModeAttach connects to an already-running instance via its
	// remote-debugging protocol endpoint.
	ModeAttach LaunchMode = "attach"
)

// SignalKind identifies one of the built-in readiness signal factories.
type SignalKind string

const (
	SignalProcessStable  SignalKind = "processStable"
	SignalDevServerReady SignalKind = "devServerReady"
	SignalWindowCreated  SignalKind = "windowCreated"
	SignalRendererReady  SignalKind = "rendererReady"
	SignalAppMarkerReady SignalKind = "appMarkerReady"
)

// RetryPolicy bounds the polling loop for a single readiness signal.
type RetryPolicy struct {
	IntervalMs  int `yaml:"interval_ms" json:"intervalMs"`
	MaxAttempts int `yaml:"max_attempts" json:"maxAttempts"`
}

// ReadinessSignalSpec declares one readiness gate in a preset's chain.
// Param carries kind-specific configuration: the stability window in
// milliseconds for processStable, the marker expression for appMarkerReady.
type ReadinessSignalSpec struct {
	Kind      SignalKind   `yaml:"kind" json:"kind"`
	TimeoutMs int          `yaml:"timeout_ms" json:"timeoutMs"`
	Retry     *RetryPolicy `yaml:"retry,omitempty" json:"retry,omitempty"`
	Optional  bool         `yaml:"optional,omitempty" json:"optional,omitempty"`
	Param     string       `yaml:"param,omitempty" json:"param,omitempty"`
}

// DevServerConfig describes a managed dev-server child process plus the
// readiness gate that guards it. ReadyPattern and ProbeURL are both
// optional; when neither is set the gate is a no-op.
type DevServerConfig struct {
	Command      string            `yaml:"command" json:"command"`
	Args         []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Dir          string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env          map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	ReadyPattern string            `yaml:"ready_pattern,omitempty" json:"readyPattern,omitempty"`
	ProbeURL     string            `yaml:"probe_url,omitempty" json:"probeUrl,omitempty"`
	TimeoutMs    int               `yaml:"timeout_ms,omitempty" json:"timeoutMs,omitempty"`
}

// ProcessLaunchConfig describes how the application process is spawned.
type ProcessLaunchConfig struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// AttachConfig locates the remote-debugging endpoint for attach mode.
// Either Endpoint (a full ws:// or http:// URL) or Port must be set.
type AttachConfig struct {
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
}

// AttachFallbackConfig controls the attach-on-failure path taken when a
// direct launch fails.
type AttachFallbackConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	EndpointOverride string `yaml:"endpoint_override,omitempty" json:"endpointOverride,omitempty"`
	TimeoutMs        int    `yaml:"timeout_ms,omitempty" json:"timeoutMs,omitempty"`
}

// DiagnosticsConfig caps the per-attempt diagnostics buffers.
type DiagnosticsConfig struct {
	OutputLines int `yaml:"output_lines" json:"outputLines"` // per-stream ring capacity
	EventLogCap int `yaml:"event_log_cap" json:"eventLogCap"`
}

// LaunchPreset is a versioned, declarative bundle describing how to start or
// attach to a specific application/toolchain combination. Presets are value
// objects: the registry never hands out a shared instance, and nothing
// mutates a preset after registration.
type LaunchPreset struct {
	ID             string                `yaml:"id" json:"id"`
	Version        string                `yaml:"version" json:"version"`
	Mode           LaunchMode            `yaml:"mode" json:"mode"`
	DevServer      *DevServerConfig      `yaml:"dev_server,omitempty" json:"devServer,omitempty"`
	Launch         *ProcessLaunchConfig  `yaml:"launch,omitempty" json:"launch,omitempty"`
	Attach         *AttachConfig         `yaml:"attach,omitempty" json:"attach,omitempty"`
	Signals        []ReadinessSignalSpec `yaml:"signals" json:"signals"`
	Diagnostics    DiagnosticsConfig     `yaml:"diagnostics" json:"diagnostics"`
	AttachFallback AttachFallbackConfig  `yaml:"attach_fallback" json:"attachFallback"`
	Hints          []string              `yaml:"hints,omitempty" json:"hints,omitempty"`
}

// Clone returns a deep copy of the preset. The registry resolves via Clone so
// callers can never mutate catalog entries.
func (p *LaunchPreset) Clone() *LaunchPreset {
	cp := *p
	if p.DevServer != nil {
		ds := *p.DevServer
		ds.Args = cloneStrings(p.DevServer.Args)
		ds.Env = cloneStringMap(p.DevServer.Env)
		cp.DevServer = &ds
	}
	if p.Launch != nil {
		lc := *p.Launch
		lc.Args = cloneStrings(p.Launch.Args)
		lc.Env = cloneStringMap(p.Launch.Env)
		cp.Launch = &lc
	}
	if p.Attach != nil {
		ac := *p.Attach
		cp.Attach = &ac
	}
	cp.Signals = make([]ReadinessSignalSpec, len(p.Signals))
	for i, s := range p.Signals {
		cp.Signals[i] = s
		if s.Retry != nil {
			r := *s.Retry
			cp.Signals[i].Retry = &r
		}
	}
	cp.Hints = cloneStrings(p.Hints)
	return &cp
}

// LaunchOverrides are caller-supplied adjustments merged over a preset's
// launch config. Args are appended, env is unioned with caller values
// winning per key; scalar fields replace only when present.
type LaunchOverrides struct {
	Args             []string          `json:"args,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	Dir              string            `json:"dir,omitempty"`
	Command          string            `json:"command,omitempty"`
	AttachEndpoint   string            `json:"attachEndpoint,omitempty"`
	AttachPort       int               `json:"attachPort,omitempty"`
	FallbackEndpoint string            `json:"fallbackEndpoint,omitempty"`
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
