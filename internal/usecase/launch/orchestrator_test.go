package launch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appboot/internal/adapter/driver"
	"appboot/internal/domain"
	"appboot/internal/infra/config"
	"appboot/internal/usecase/playbook"
	"appboot/internal/usecase/preset"
	"appboot/internal/usecase/readiness"
)

// fakeDriver is a scriptable Driver for orchestrator tests.
type fakeDriver struct {
	mu sync.Mutex

	launchErr    error
	launchBanner string // written to spec.Stdout on Launch
	attachErr    error
	connectErr   error
	windows      []domain.Window
	windowsErr   error
	evalResult   string

	launches  int
	attached  []string
	connected []string
	closed    []string
}

func (f *fakeDriver) Launch(_ context.Context, spec driver.LaunchSpec) (*driver.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	if f.launchBanner != "" && spec.Stdout != nil {
		spec.Stdout.Write([]byte(f.launchBanner))
	}
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	return &driver.Session{ID: "sess-launch", PID: 4242}, nil
}

func (f *fakeDriver) Attach(_ context.Context, endpoint string) (*driver.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, endpoint)
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	return &driver.Session{ID: "sess-attach", Endpoint: endpoint}, nil
}

func (f *fakeDriver) Connect(_ context.Context, _ *driver.Session, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, endpoint)
	return f.connectErr
}

func (f *fakeDriver) Windows(context.Context, *driver.Session) ([]domain.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows, f.windowsErr
}

func (f *fakeDriver) Evaluate(context.Context, *driver.Session, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evalResult, nil
}

func (f *fakeDriver) Close(s *driver.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, s.ID)
	return nil
}

func (f *fakeDriver) closedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

func quickRetry() *domain.RetryPolicy {
	return &domain.RetryPolicy{IntervalMs: 10, MaxAttempts: 5}
}

func testPreset() *domain.LaunchPreset {
	return &domain.LaunchPreset{
		ID:      "test-app",
		Version: "0.0.1",
		Mode:    domain.ModeLaunch,
		Launch: &domain.ProcessLaunchConfig{
			Command: "./fake-app",
			Args:    []string{".", "--remote-debugging-port=9555"},
		},
		Signals: []domain.ReadinessSignalSpec{
			{Kind: domain.SignalWindowCreated, TimeoutMs: 2000, Retry: quickRetry()},
			{Kind: domain.SignalRendererReady, TimeoutMs: 2000, Retry: quickRetry()},
		},
		AttachFallback: domain.AttachFallbackConfig{Enabled: true},
		Hints:          []string{"check that the app builds before launching"},
	}
}

func newTestOrchestrator(t *testing.T, drv driver.Driver) *Orchestrator {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := preset.NewRegistry(log)
	require.NoError(t, registry.Register(testPreset()))
	return NewOrchestrator(registry, drv, readiness.NewEngine(log), playbook.NewMatcher(), config.Default(), log)
}

func TestLaunchHappyPath(t *testing.T) {
	drv := &fakeDriver{
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:5173/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	session, err := o.Launch(context.Background(), Request{PresetID: "test-app"})
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, "sess-launch", session.ID)
	assert.Equal(t, domain.OriginPreset, session.LaunchMode)
	assert.Equal(t, string(domain.PathDirectLaunch), session.Metadata[domain.MetaLaunchPath])

	completed, ok := session.Metadata[domain.MetaCompletedSignals].([]string)
	require.True(t, ok, "completed signals metadata missing")
	assert.Equal(t, []string{"windowCreated", "rendererReady"}, completed)

	assert.NotContains(t, session.Metadata, domain.MetaDevServerPID)
	assert.Empty(t, drv.closedSessions(), "successful session must stay open")

	// The lazy connection derives the endpoint from the port arg.
	require.NotEmpty(t, drv.connected)
	assert.Equal(t, "http://127.0.0.1:9555", drv.connected[0])
}

func TestLaunchReadinessFailure(t *testing.T) {
	drv := &fakeDriver{windows: nil} // no window ever appears
	o := newTestOrchestrator(t, drv)

	_, err := o.Launch(context.Background(), Request{PresetID: "test-app"})
	require.Error(t, err)

	var le *domain.LaunchError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, domain.CodeLaunchFailed, le.Code)
	assert.True(t, le.Retriable, "launch failures are always retriable")
	assert.Equal(t, "test-app", le.Preset)
	assert.Equal(t, "0.0.1", le.PresetVersion)
	assert.Contains(t, le.Message, "windowCreated")
	assert.Contains(t, le.Hints, "check that the app builds before launching")

	require.NotNil(t, le.Diagnostics)
	assert.NotEmpty(t, le.Diagnostics.SignalTimeline)
	assert.NotEmpty(t, le.Diagnostics.EventLog)

	// The failed session must be torn down.
	assert.Contains(t, drv.closedSessions(), "sess-launch")
}

func TestLaunchFallbackAttach(t *testing.T) {
	launchErr := errors.New(`exec "./fake-app": executable file not found in $PATH`)
	drv := &fakeDriver{
		launchErr:  launchErr,
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:5173/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	session, err := o.Launch(context.Background(), Request{PresetID: "test-app"})
	require.NoError(t, err, "fallback attach should rescue the failed launch")

	assert.Equal(t, "sess-attach", session.ID)
	assert.Equal(t, string(domain.PathFallbackAttach), session.Metadata[domain.MetaLaunchPath])
	// The fallback reason must be the original launch error, verbatim.
	assert.Equal(t, launchErr.Error(), session.Metadata[domain.MetaLaunchFallbackReason])

	require.Len(t, drv.attached, 1)
	assert.Equal(t, "http://127.0.0.1:9555", drv.attached[0])
}

func TestLaunchFallbackAfterReadinessFailure(t *testing.T) {
	// The process launches but its debug endpoint never accepts a
	// connection, so the readiness chain fails; the fallback attach must
	// still run and rescue the attempt.
	drv := &fakeDriver{
		connectErr: errors.New("connection refused"),
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:5173/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	session, err := o.Launch(context.Background(), Request{PresetID: "test-app"})
	require.NoError(t, err, "fallback attach should rescue the failed chain")

	assert.Equal(t, "sess-attach", session.ID)
	assert.Equal(t, string(domain.PathFallbackAttach), session.Metadata[domain.MetaLaunchPath])
	reason, _ := session.Metadata[domain.MetaLaunchFallbackReason].(string)
	assert.Contains(t, reason, "windowCreated")

	require.Len(t, drv.attached, 1)
	assert.Equal(t, "http://127.0.0.1:9555", drv.attached[0])
	// The launched session whose chain failed must be torn down.
	assert.Contains(t, drv.closedSessions(), "sess-launch")
}

func TestLaunchFallbackSkipsUnsupportedSignals(t *testing.T) {
	// Builtin-shaped preset: a non-optional processStable signal. The
	// attached session has no pid to watch, so the fallback chain must skip
	// it instead of failing the signal build.
	drv := &fakeDriver{
		launchErr:  errors.New("spawn failed"),
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:5173/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	p := testPreset()
	p.ID = "with-process-stable"
	p.Signals = append([]domain.ReadinessSignalSpec{
		{Kind: domain.SignalProcessStable, TimeoutMs: 2000, Param: "500", Retry: quickRetry()},
	}, p.Signals...)
	require.NoError(t, o.registry.Register(p))

	session, err := o.Launch(context.Background(), Request{PresetID: "with-process-stable"})
	require.NoError(t, err, "fallback must skip the pid-less signal, not fail the build")

	assert.Equal(t, string(domain.PathFallbackAttach), session.Metadata[domain.MetaLaunchPath])
	completed, ok := session.Metadata[domain.MetaCompletedSignals].([]string)
	require.True(t, ok, "completed signals metadata missing")
	assert.Equal(t, []string{"windowCreated", "rendererReady"}, completed)
	assert.Empty(t, drv.closedSessions(), "the attached session must stay open")
}

func TestLaunchFallbackAfterDevServerGateFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("dev server test uses sh")
	}
	drv := &fakeDriver{
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:5173/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	p := testPreset()
	p.ID = "gate-then-fallback"
	p.DevServer = &domain.DevServerConfig{
		Command:      "sh",
		Args:         []string{"-c", "echo compiling; sleep 30"},
		ReadyPattern: `never matches`,
		TimeoutMs:    150,
	}
	require.NoError(t, o.registry.Register(p))

	session, err := o.Launch(context.Background(), Request{PresetID: "gate-then-fallback"})
	require.NoError(t, err, "fallback attach should rescue the failed gate")

	assert.Equal(t, string(domain.PathFallbackAttach), session.Metadata[domain.MetaLaunchPath])
	reason, _ := session.Metadata[domain.MetaLaunchFallbackReason].(string)
	assert.Contains(t, reason, "dev server did not become ready")
	assert.Zero(t, drv.launches, "the app must not launch when the gate fails")
	// The stuck dev server was abandoned before the fallback ran.
	assert.NotContains(t, session.Metadata, domain.MetaDevServerPID)
}

func TestLaunchFallbackDisabled(t *testing.T) {
	launchErr := errors.New(`exec "./fake-app": executable file not found in $PATH`)
	drv := &fakeDriver{launchErr: launchErr}
	o := newTestOrchestrator(t, drv)

	p := testPreset()
	p.ID = "no-fallback"
	p.AttachFallback = domain.AttachFallbackConfig{}
	require.NoError(t, o.registry.Register(p))

	_, err := o.Launch(context.Background(), Request{PresetID: "no-fallback", Platform: "linux"})
	var le *domain.LaunchError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, le.Cause, launchErr)
	assert.Empty(t, drv.attached, "fallback must not run when disabled")

	// The missing-binary playbook matches the cause text.
	found := false
	for _, pb := range le.Playbooks {
		if pb.ID == "launch-binary-missing" {
			found = true
		}
	}
	assert.True(t, found, "expected launch-binary-missing playbook, got %+v", le.Playbooks)
}

func TestAttachMode(t *testing.T) {
	drv := &fakeDriver{
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:3000/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	session, err := o.Launch(context.Background(), Request{PresetID: "electron-attach"})
	require.NoError(t, err)

	assert.Equal(t, domain.OriginAttached, session.LaunchMode)
	assert.Equal(t, string(domain.PathAttach), session.Metadata[domain.MetaLaunchPath])
	require.Len(t, drv.attached, 1)
	assert.Equal(t, "http://127.0.0.1:9222", drv.attached[0])
}

func TestAttachModeWithDevServerGate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("dev server test uses sh")
	}
	drv := &fakeDriver{
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:3000/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	p := &domain.LaunchPreset{
		ID:      "attach-with-dev-server",
		Version: "0.0.1",
		Mode:    domain.ModeAttach,
		Attach:  &domain.AttachConfig{Port: 9777},
		DevServer: &domain.DevServerConfig{
			Command:      "sh",
			Args:         []string{"-c", "echo 'ready in 5ms'; sleep 30"},
			ReadyPattern: `ready in \d+ms`,
			TimeoutMs:    5000,
		},
		Signals: []domain.ReadinessSignalSpec{
			{Kind: domain.SignalWindowCreated, TimeoutMs: 2000, Retry: quickRetry()},
			{Kind: domain.SignalRendererReady, TimeoutMs: 2000, Retry: quickRetry()},
		},
	}
	require.NoError(t, o.registry.Register(p))

	session, err := o.Launch(context.Background(), Request{PresetID: "attach-with-dev-server"})
	require.NoError(t, err)

	assert.Equal(t, domain.OriginAttached, session.LaunchMode)
	require.Len(t, drv.attached, 1)
	assert.Equal(t, "http://127.0.0.1:9777", drv.attached[0])

	// The dev server declared by an attach preset is spawned, gated, and
	// handed over with the session.
	pid, ok := session.Metadata[domain.MetaDevServerPID].(int)
	require.True(t, ok, "dev server pid metadata missing")
	assert.Greater(t, pid, 0)

	require.NoError(t, o.Release(session.ID))
}

func TestAttachFailureMatchesCDPPlaybook(t *testing.T) {
	drv := &fakeDriver{attachErr: errors.New("connection refused")}
	o := newTestOrchestrator(t, drv)

	_, err := o.Launch(context.Background(), Request{PresetID: "electron-attach"})
	var le *domain.LaunchError
	require.ErrorAs(t, err, &le)

	found := false
	for _, pb := range le.Playbooks {
		if pb.ID == "cdp-endpoint-unavailable" {
			found = true
		}
	}
	assert.True(t, found, "expected cdp-endpoint-unavailable playbook, got %+v", le.Playbooks)
}

func TestLaunchUnknownPreset(t *testing.T) {
	o := newTestOrchestrator(t, &fakeDriver{})

	_, err := o.Launch(context.Background(), Request{PresetID: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	var le *domain.LaunchError
	assert.False(t, errors.As(err, &le), "input errors must not be LaunchErrors")
}

func TestDiagnosticsAndRelease(t *testing.T) {
	drv := &fakeDriver{
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:5173/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	session, err := o.Launch(context.Background(), Request{PresetID: "test-app"})
	require.NoError(t, err)

	bundle, err := o.Diagnostics(session.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, bundle.EventLog)
	assert.NotEmpty(t, bundle.SignalTimeline)

	require.NoError(t, o.Release(session.ID))
	assert.Contains(t, drv.closedSessions(), session.ID)

	// Released sessions are gone.
	_, err = o.Diagnostics(session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, o.Release(session.ID), domain.ErrNotFound)
}

func TestLaunchWithDevServerGate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("dev server test uses sh")
	}
	drv := &fakeDriver{
		windows:    []domain.Window{{ID: "w1", URL: "http://localhost:5173/"}},
		evalResult: "complete",
	}
	o := newTestOrchestrator(t, drv)

	p := testPreset()
	p.ID = "with-dev-server"
	p.DevServer = &domain.DevServerConfig{
		Command:      "sh",
		Args:         []string{"-c", "echo 'ready in 5ms'; sleep 30"},
		ReadyPattern: `ready in \d+ms`,
		TimeoutMs:    5000,
	}
	require.NoError(t, o.registry.Register(p))

	session, err := o.Launch(context.Background(), Request{PresetID: "with-dev-server"})
	require.NoError(t, err)

	pid, ok := session.Metadata[domain.MetaDevServerPID].(int)
	require.True(t, ok, "dev server pid metadata missing")
	assert.Greater(t, pid, 0)

	// Release must reap the dev server.
	require.NoError(t, o.Release(session.ID))
}

func TestLaunchDevServerGateTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("dev server test uses sh")
	}
	drv := &fakeDriver{}
	o := newTestOrchestrator(t, drv)

	p := testPreset()
	p.ID = "stuck-dev-server"
	p.AttachFallback = domain.AttachFallbackConfig{}
	p.DevServer = &domain.DevServerConfig{
		Command:      "sh",
		Args:         []string{"-c", "echo compiling; sleep 30"},
		ReadyPattern: `never matches`,
		TimeoutMs:    150,
	}
	require.NoError(t, o.registry.Register(p))

	_, err := o.Launch(context.Background(), Request{PresetID: "stuck-dev-server"})
	var le *domain.LaunchError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Message, "dev server did not become ready")
	assert.Zero(t, drv.launches, "the app must not launch when the gate fails")

	// The captured dev-server output rides along in the bundle.
	require.NotNil(t, le.Diagnostics)
	require.NotEmpty(t, le.Diagnostics.ProcessOutput)
	assert.Equal(t, "dev-server", le.Diagnostics.ProcessOutput[0].Name)
}
