package domain

// SessionOrigin records which configuration shape produced a session.
type SessionOrigin string

const (
	OriginPreset   SessionOrigin = "preset"
	OriginCustom   SessionOrigin = "custom"
	OriginAttached SessionOrigin = "attached"
)

// LaunchPath records the path by which a session reached readiness.
type LaunchPath string

const (
	PathDirectLaunch   LaunchPath = "launch"
	PathAttach         LaunchPath = "attach"
	PathFallbackAttach LaunchPath = "fallback-attach"
)

// Metadata keys written by the orchestrator onto a returned session.
const (
	MetaLaunchPath           = "launchPath"
	MetaCompletedSignals     = "readinessCompletedSignals"
	MetaReadinessTimeline    = "readinessTimeline"
	MetaDevServerPID         = "devServerPid"
	MetaLaunchFallbackReason = "launchFallbackReason"
)

// Window is the driver's view of one application window (a CDP page target
// for Electron-class applications).
type Window struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	DevTools bool   `json:"devtools,omitempty"`
}

// DriverSession is the handle produced by the automation driver and handed
// back to the caller. This subsystem only annotates Metadata before
// returning it; lifecycle beyond a successful launch belongs downstream.
type DriverSession struct {
	ID         string         `json:"id"`
	LaunchMode SessionOrigin  `json:"launchMode"`
	Metadata   map[string]any `json:"metadata"`
}

// SetMeta writes a metadata entry, allocating the bag on first use.
func (s *DriverSession) SetMeta(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
}
