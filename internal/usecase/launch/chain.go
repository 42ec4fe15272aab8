package launch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"appboot/internal/domain"
	"appboot/internal/usecase/readiness"
)

// defaultStableForMs is used when a processStable spec carries no window.
const defaultStableForMs = 750

// chainHandles are the live runtime hooks a launch attempt binds its
// readiness signals to.
type chainHandles struct {
	getPid     func() int
	getWindows func(ctx context.Context) ([]domain.Window, error)
	evaluate   func(ctx context.Context, windowID, expr string) (string, error) // nil when unsupported
	getStdout  func() string
	getStderr  func() string
	httpClient *http.Client
}

// buildSignals instantiates live signals for the given specs. A spec whose
// required handle is missing fails the build unless it is marked optional or
// skipUnsupported is set; the fallback-attach path sets it so only the
// signals an attached session can still answer are re-run.
func buildSignals(specs []domain.ReadinessSignalSpec, h chainHandles, skipUnsupported bool) ([]domain.ReadinessSignal, error) {
	signals := make([]domain.ReadinessSignal, 0, len(specs))

	for i, spec := range specs {
		switch spec.Kind {
		case domain.SignalProcessStable:
			if h.getPid == nil {
				if spec.Optional || skipUnsupported {
					continue
				}
				return nil, fmt.Errorf("signal %d (%s): no pid source", i, spec.Kind)
			}
			signals = append(signals, readiness.ProcessStable(readiness.ProcessStableConfig{
				TimeoutMs:   spec.TimeoutMs,
				StableForMs: stableFor(spec.Param),
				Retry:       spec.Retry,
				GetPid:      h.getPid,
			}))

		case domain.SignalDevServerReady:
			if spec.Param != "" && h.getStdout == nil && h.getStderr == nil {
				if spec.Optional || skipUnsupported {
					continue
				}
				return nil, fmt.Errorf("signal %d (%s): no output capture for ready pattern", i, spec.Kind)
			}
			sig, err := readiness.DevServerReady(readiness.DevServerReadyConfig{
				TimeoutMs:    spec.TimeoutMs,
				Retry:        spec.Retry,
				ReadyPattern: spec.Param,
				GetStdout:    h.getStdout,
				GetStderr:    h.getStderr,
				HTTPClient:   h.httpClient,
			})
			if err != nil {
				return nil, err
			}
			signals = append(signals, sig)

		case domain.SignalWindowCreated:
			if h.getWindows == nil {
				if spec.Optional || skipUnsupported {
					continue
				}
				return nil, fmt.Errorf("signal %d (%s): no window source", i, spec.Kind)
			}
			signals = append(signals, readiness.WindowCreated(readiness.WindowCreatedConfig{
				TimeoutMs:  spec.TimeoutMs,
				Retry:      spec.Retry,
				GetWindows: h.getWindows,
			}))

		case domain.SignalRendererReady:
			if h.getWindows == nil {
				if spec.Optional || skipUnsupported {
					continue
				}
				return nil, fmt.Errorf("signal %d (%s): no window source", i, spec.Kind)
			}
			signals = append(signals, readiness.RendererReady(readiness.RendererReadyConfig{
				TimeoutMs:     spec.TimeoutMs,
				Retry:         spec.Retry,
				GetWindows:    h.getWindows,
				CheckDOMReady: domReadyProbe(h.evaluate),
			}))

		case domain.SignalAppMarkerReady:
			if h.evaluate == nil {
				if spec.Optional || skipUnsupported {
					continue
				}
				return nil, fmt.Errorf("signal %d (%s): no evaluate capability", i, spec.Kind)
			}
			signals = append(signals, readiness.AppMarkerReady(readiness.AppMarkerReadyConfig{
				TimeoutMs:   spec.TimeoutMs,
				Retry:       spec.Retry,
				Marker:      spec.Param,
				CheckMarker: markerProbe(h),
			}))

		default:
			return nil, fmt.Errorf("signal %d: unknown kind %q", i, spec.Kind)
		}
	}
	return signals, nil
}

func stableFor(param string) int {
	if n, err := strconv.Atoi(param); err == nil && n > 0 {
		return n
	}
	return defaultStableForMs
}

// domReadyProbe adapts the driver's evaluate into a per-window DOM probe.
// Returns nil when evaluation is unsupported so rendererReady falls back to
// the URL heuristic.
func domReadyProbe(evaluate func(ctx context.Context, windowID, expr string) (string, error)) func(context.Context, domain.Window) (bool, error) {
	if evaluate == nil {
		return nil
	}
	return func(ctx context.Context, w domain.Window) (bool, error) {
		state, err := evaluate(ctx, w.ID, "document.readyState")
		if err != nil {
			return false, err
		}
		return state == "complete" || state == "interactive", nil
	}
}

// markerProbe checks a CSS selector for a visible element in any
// non-devtools window.
func markerProbe(h chainHandles) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, marker string) (bool, error) {
		windows, err := h.getWindows(ctx)
		if err != nil {
			return false, err
		}
		expr := fmt.Sprintf(
			"(() => { const el = document.querySelector(%q); return !!el && el.getClientRects().length > 0; })()",
			marker)
		for _, w := range windows {
			if w.DevTools {
				continue
			}
			res, err := h.evaluate(ctx, w.ID, expr)
			if err != nil {
				return false, err
			}
			if strings.EqualFold(res, "true") {
				return true, nil
			}
		}
		return false, nil
	}
}
