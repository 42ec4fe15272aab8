package readiness

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"appboot/internal/domain"
)

// ProcessStableConfig configures the processStable signal.
type ProcessStableConfig struct {
	TimeoutMs   int
	StableForMs int
	Retry       *domain.RetryPolicy
	GetPid      func() int           // <= 0 means no pid yet
	IsAlive     func(pid int) bool   // defaults to DefaultIsAlive
	Now         func() time.Time     // defaults to time.Now
}

// ProcessStable is ready once the application pid has been continuously
// alive for at least StableForMs. The alive-since mark resets to now
// whenever the pid is missing or reported dead, so a crash-and-respawn
// restarts the stability window.
func ProcessStable(cfg ProcessStableConfig) domain.ReadinessSignal {
	if cfg.IsAlive == nil {
		cfg.IsAlive = DefaultIsAlive
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	stableFor := time.Duration(cfg.StableForMs) * time.Millisecond

	var aliveSince time.Time

	return domain.ReadinessSignal{
		Name:      string(domain.SignalProcessStable),
		TimeoutMs: cfg.TimeoutMs,
		Retry:     cfg.Retry,
		Payload:   map[string]string{"stableForMs": strconv.Itoa(cfg.StableForMs)},
		Check: func(ctx context.Context) (domain.CheckResult, error) {
			now := cfg.Now()
			pid := cfg.GetPid()
			if pid <= 0 || !cfg.IsAlive(pid) {
				aliveSince = time.Time{}
				return domain.CheckResult{Detail: fmt.Sprintf("process not alive (pid=%d)", pid)}, nil
			}
			if aliveSince.IsZero() {
				aliveSince = now
			}
			alive := now.Sub(aliveSince)
			if alive >= stableFor {
				return domain.CheckResult{
					Ready:  true,
					Detail: fmt.Sprintf("pid %d stable for %dms", pid, alive.Milliseconds()),
				}, nil
			}
			return domain.CheckResult{
				Detail: fmt.Sprintf("pid %d alive for %dms of %dms", pid, alive.Milliseconds(), cfg.StableForMs),
			}, nil
		},
	}
}

// DevServerReadyConfig configures the devServerReady signal.
type DevServerReadyConfig struct {
	TimeoutMs    int
	Retry        *domain.RetryPolicy
	ReadyPattern string // regex over captured stdout+stderr; optional
	ProbeURL     string // HTTP GET probe; optional
	GetStdout    func() string
	GetStderr    func() string
	HTTPClient   *http.Client // defaults to a 2s-timeout client
}

// DevServerReady is ready when the ready pattern matches the captured
// output, or an HTTP GET of the probe URL returns a non-error status. With
// neither configured the signal is a no-op gate that reports ready
// immediately. A failed HTTP probe is a not-ready attempt, never an error.
func DevServerReady(cfg DevServerReadyConfig) (domain.ReadinessSignal, error) {
	var re *regexp.Regexp
	if cfg.ReadyPattern != "" {
		var err error
		re, err = regexp.Compile(cfg.ReadyPattern)
		if err != nil {
			return domain.ReadinessSignal{}, fmt.Errorf("devServerReady: compile ready pattern: %w", err)
		}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}

	return domain.ReadinessSignal{
		Name:      string(domain.SignalDevServerReady),
		TimeoutMs: cfg.TimeoutMs,
		Retry:     cfg.Retry,
		Payload:   map[string]string{"pattern": cfg.ReadyPattern, "probeUrl": cfg.ProbeURL},
		Check: func(ctx context.Context) (domain.CheckResult, error) {
			if re == nil && cfg.ProbeURL == "" {
				return domain.CheckResult{Ready: true, Detail: "no readiness gate configured"}, nil
			}

			if re != nil {
				var output string
				if cfg.GetStdout != nil {
					output = cfg.GetStdout()
				}
				if cfg.GetStderr != nil {
					output += cfg.GetStderr()
				}
				if m := re.FindString(output); m != "" {
					return domain.CheckResult{Ready: true, Detail: "output matched: " + m}, nil
				}
			}

			if cfg.ProbeURL != "" {
				if detail, ok := probeHTTP(ctx, client, cfg.ProbeURL); ok {
					return domain.CheckResult{Ready: true, Detail: detail}, nil
				}
			}

			return domain.CheckResult{Detail: "dev server not ready"}, nil
		},
	}, nil
}

func probeHTTP(ctx context.Context, client *http.Client, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return fmt.Sprintf("probe %s -> %d", url, resp.StatusCode), true
	}
	return "", false
}

// WindowCreatedConfig configures the windowCreated signal.
type WindowCreatedConfig struct {
	TimeoutMs  int
	Retry      *domain.RetryPolicy
	GetWindows func(ctx context.Context) ([]domain.Window, error)
}

// WindowCreated is ready once at least one non-devtools window exists.
func WindowCreated(cfg WindowCreatedConfig) domain.ReadinessSignal {
	return domain.ReadinessSignal{
		Name:      string(domain.SignalWindowCreated),
		TimeoutMs: cfg.TimeoutMs,
		Retry:     cfg.Retry,
		Check: func(ctx context.Context) (domain.CheckResult, error) {
			windows, err := cfg.GetWindows(ctx)
			if err != nil {
				return domain.CheckResult{}, fmt.Errorf("list windows: %w", err)
			}
			app := appWindows(windows)
			if len(app) == 0 {
				return domain.CheckResult{Detail: fmt.Sprintf("no application windows (%d total)", len(windows))}, nil
			}
			return domain.CheckResult{
				Ready:  true,
				Detail: fmt.Sprintf("%d application window(s)", len(app)),
			}, nil
		},
	}
}

// RendererReadyConfig configures the rendererReady signal.
type RendererReadyConfig struct {
	TimeoutMs     int
	Retry         *domain.RetryPolicy
	GetWindows    func(ctx context.Context) ([]domain.Window, error)
	CheckDOMReady func(ctx context.Context, w domain.Window) (bool, error) // optional
}

// RendererReady is ready once a non-devtools window reports a non-blank URL
// (neither empty nor about:blank), or — when a DOM probe is supplied — once
// that probe succeeds for any non-devtools window.
func RendererReady(cfg RendererReadyConfig) domain.ReadinessSignal {
	return domain.ReadinessSignal{
		Name:      string(domain.SignalRendererReady),
		TimeoutMs: cfg.TimeoutMs,
		Retry:     cfg.Retry,
		Check: func(ctx context.Context) (domain.CheckResult, error) {
			windows, err := cfg.GetWindows(ctx)
			if err != nil {
				return domain.CheckResult{}, fmt.Errorf("list windows: %w", err)
			}
			app := appWindows(windows)
			if len(app) == 0 {
				return domain.CheckResult{Detail: "no application windows"}, nil
			}

			if cfg.CheckDOMReady != nil {
				for _, w := range app {
					ok, err := cfg.CheckDOMReady(ctx, w)
					if err != nil {
						return domain.CheckResult{}, fmt.Errorf("dom probe window %s: %w", w.ID, err)
					}
					if ok {
						return domain.CheckResult{Ready: true, Detail: "dom ready in window " + w.ID}, nil
					}
				}
				return domain.CheckResult{Detail: "dom not ready in any window"}, nil
			}

			for _, w := range app {
				if w.URL != "" && w.URL != "about:blank" {
					return domain.CheckResult{Ready: true, Detail: "renderer loaded " + w.URL}, nil
				}
			}
			return domain.CheckResult{Detail: "all renderer URLs blank"}, nil
		},
	}
}

// AppMarkerReadyConfig configures the appMarkerReady signal.
type AppMarkerReadyConfig struct {
	TimeoutMs   int
	Retry       *domain.RetryPolicy
	Marker      string
	CheckMarker func(ctx context.Context, marker string) (bool, error)
}

// AppMarkerReady is ready once the caller-supplied predicate reports the
// application marker visible.
func AppMarkerReady(cfg AppMarkerReadyConfig) domain.ReadinessSignal {
	return domain.ReadinessSignal{
		Name:      string(domain.SignalAppMarkerReady),
		TimeoutMs: cfg.TimeoutMs,
		Retry:     cfg.Retry,
		Payload:   map[string]string{"marker": cfg.Marker},
		Check: func(ctx context.Context) (domain.CheckResult, error) {
			ok, err := cfg.CheckMarker(ctx, cfg.Marker)
			if err != nil {
				return domain.CheckResult{}, fmt.Errorf("check marker %q: %w", cfg.Marker, err)
			}
			if !ok {
				return domain.CheckResult{Detail: fmt.Sprintf("marker %q not visible", cfg.Marker)}, nil
			}
			return domain.CheckResult{Ready: true, Detail: fmt.Sprintf("marker %q visible", cfg.Marker)}, nil
		},
	}
}

// appWindows filters out devtools windows.
func appWindows(windows []domain.Window) []domain.Window {
	var out []domain.Window
	for _, w := range windows {
		if w.DevTools {
			continue
		}
		out = append(out, w)
	}
	return out
}
