// Package launch orchestrates bringing an application to a verified
// interaction-ready state: preset composition, dev-server management, the
// direct-launch and attach paths, the readiness signal chain, and the
// attach-on-failure fallback. Every terminal failure carries the full
// diagnostics bundle plus matched remediation playbooks.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"appboot/internal/adapter/driver"
	"appboot/internal/domain"
	"appboot/internal/infra/config"
	"appboot/internal/infra/tracer"
	"appboot/internal/usecase/diagnostics"
	"appboot/internal/usecase/playbook"
	"appboot/internal/usecase/preset"
	"appboot/internal/usecase/readiness"
)

// Diagnostic stream names used for child process output.
const (
	streamDevServer = "dev-server"
	streamApp       = "app"
)

// defaultDevServerGateTimeoutMs bounds the dev-server readiness gate when
// the preset does not set one.
const defaultDevServerGateTimeoutMs = 60_000

// Request asks the orchestrator to bring one application to readiness.
type Request struct {
	PresetID  string
	Overrides *domain.LaunchOverrides
	Platform  string // defaults to runtime.GOOS; used for playbook scoping
}

// attempt holds the per-session state retained after a successful launch so
// diagnostics stay queryable and Release can tear everything down.
type attempt struct {
	session   *driver.Session
	collector *diagnostics.Collector
	devServer *devServer
}

// Orchestrator executes launch requests. Safe for concurrent use.
type Orchestrator struct {
	registry *preset.Registry
	driver   driver.Driver
	engine   *readiness.Engine
	matcher  *playbook.Matcher
	cfg      *config.Config
	logger   *slog.Logger

	mu       sync.Mutex
	attempts map[string]*attempt // keyed by session id
	entropy  *ulid.MonotonicEntropy
}

// NewOrchestrator wires an Orchestrator from its collaborators.
func NewOrchestrator(reg *preset.Registry, drv driver.Driver, eng *readiness.Engine, m *playbook.Matcher, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Orchestrator{
		registry: reg,
		driver:   drv,
		engine:   eng,
		matcher:  m,
		cfg:      cfg,
		logger:   logger,
		attempts: make(map[string]*attempt),
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Launch resolves the preset, composes overrides, and walks the full launch
// or attach path to a verified-ready session. On failure it returns a
// *domain.LaunchError carrying diagnostics, hints, and matched playbooks;
// resolution and override errors surface as INVALID_INPUT before any
// process is spawned.
func (o *Orchestrator) Launch(ctx context.Context, req Request) (*domain.DriverSession, error) {
	ctx, span := tracer.StartSpan(ctx, "launch.Orchestrator.Launch")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("preset.id", req.PresetID))

	p, err := o.registry.Resolve(req.PresetID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	composed := preset.Compose(p, req.Overrides)
	span.SetAttributes(tracer.IntAttr("preset.signals", len(composed.Signals)))
	platform := req.Platform
	if platform == "" {
		platform = runtime.GOOS
	}

	attemptID := o.newAttemptID()
	collector := diagnostics.NewCollector(diagnostics.CollectorConfig{
		OutputLines: o.outputLines(composed),
		EventLogCap: o.eventLogCap(composed),
		EnvAllow:    o.cfg.Diagnostics.EnvAllow,
	}, o.logger)

	log := o.logger.With("attempt", attemptID, "preset", composed.ID, "mode", string(composed.Mode))
	log.Info("launch requested", "platform", platform)
	collector.Event(domain.EventLaunch, "launch requested", map[string]string{
		"attempt": attemptID,
		"preset":  composed.ID,
		"version": composed.Version,
		"mode":    string(composed.Mode),
	})

	run := &launchRun{
		o:         o,
		preset:    composed,
		platform:  platform,
		collector: collector,
		logger:    log,
	}

	var session *domain.DriverSession
	if composed.Mode == domain.ModeAttach {
		session, err = run.attach(ctx)
	} else {
		session, err = run.launch(ctx)
	}
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return session, nil
}

// Diagnostics returns the current diagnostics bundle of a live session.
func (o *Orchestrator) Diagnostics(sessionID string) (*domain.DiagnosticsBundle, error) {
	o.mu.Lock()
	at, ok := o.attempts[sessionID]
	o.mu.Unlock()
	if !ok {
		return nil, domain.NewDomainError("launch.Orchestrator.Diagnostics", domain.ErrNotFound,
			fmt.Sprintf("unknown session %q", sessionID))
	}
	return at.collector.Snapshot(), nil
}

// Release tears down a previously returned session: the protocol
// connection, the launched process if any, and the managed dev server.
func (o *Orchestrator) Release(sessionID string) error {
	o.mu.Lock()
	at, ok := o.attempts[sessionID]
	delete(o.attempts, sessionID)
	o.mu.Unlock()
	if !ok {
		return domain.NewDomainError("launch.Orchestrator.Release", domain.ErrNotFound,
			fmt.Sprintf("unknown session %q", sessionID))
	}
	if at.devServer != nil {
		at.devServer.Terminate()
	}
	return o.driver.Close(at.session)
}

func (o *Orchestrator) newAttemptID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), o.entropy).String()
}

func (o *Orchestrator) outputLines(p *domain.LaunchPreset) int {
	if p.Diagnostics.OutputLines > 0 {
		return p.Diagnostics.OutputLines
	}
	return o.cfg.Diagnostics.OutputLines
}

func (o *Orchestrator) eventLogCap(p *domain.LaunchPreset) int {
	if p.Diagnostics.EventLogCap > 0 {
		return p.Diagnostics.EventLogCap
	}
	return o.cfg.Diagnostics.EventLogCap
}

// launchRun carries the state of a single launch attempt through its steps.
type launchRun struct {
	o         *Orchestrator
	preset    *domain.LaunchPreset
	platform  string
	collector *diagnostics.Collector
	logger    *slog.Logger

	devServer *devServer
}

// stepFailure is a terminal failure of one orchestration step, held apart
// from the final LaunchError so the attach fallback can still run before the
// failure is sealed with diagnostics and playbooks.
type stepFailure struct {
	message string
	cause   error
}

// reason is the text recorded as fallback metadata when a later attach
// rescues the attempt. Launch and configuration errors carry the interesting
// text in the cause; timeouts carry it in the message.
func (f *stepFailure) reason() string {
	if f.cause != nil && !errors.Is(f.cause, domain.ErrTimeout) {
		return f.cause.Error()
	}
	return f.message
}

// launch walks the direct-launch path: dev server, application process,
// readiness chain. Any terminal step failure routes through the attach
// fallback before it becomes the attempt's error.
func (r *launchRun) launch(ctx context.Context) (*domain.DriverSession, error) {
	if r.preset.Launch == nil {
		return nil, domain.NewDomainError("launch.Orchestrator.Launch", domain.ErrInvalidInput,
			fmt.Sprintf("preset %q has mode launch but no launch config", r.preset.ID))
	}

	if r.preset.DevServer != nil {
		if sf := r.startDevServerGated(ctx); sf != nil {
			return r.fallbackAttach(ctx, sf)
		}
	}

	stdout, stderr := r.collector.Stream(streamApp)
	spec := driver.LaunchSpec{
		Command: r.preset.Launch.Command,
		Args:    r.preset.Launch.Args,
		Dir:     r.preset.Launch.Dir,
		Env:     r.preset.Launch.Env,
		Stdout:  stdout,
		Stderr:  stderr,
	}

	sess, launchErr := r.o.driver.Launch(ctx, spec)
	if launchErr != nil {
		r.collector.Event(domain.EventProcess, "application launch failed", map[string]string{
			"command": spec.Command,
			"error":   launchErr.Error(),
		})
		return r.fallbackAttach(ctx, &stepFailure{message: "application launch failed", cause: launchErr})
	}

	r.collector.DescribeStream(streamApp, spec.Command, sess.PID)
	r.collector.Event(domain.EventProcess, "application launched", map[string]string{
		"command": spec.Command,
		"pid":     fmt.Sprintf("%d", sess.PID),
	})
	r.logger.Info("application launched", "pid", sess.PID)

	ds, sf := r.runChain(ctx, sess, r.launchHandles(sess), false)
	if sf != nil {
		r.abandon(sess)
		return r.fallbackAttach(ctx, sf)
	}
	ds.LaunchMode = domain.OriginPreset
	ds.SetMeta(domain.MetaLaunchPath, string(domain.PathDirectLaunch))
	return r.finish(sess, ds), nil
}

// attach walks the attach path against an already-running instance. A dev
// server declared by the preset is still spawned and gated first; only the
// application process itself is external.
func (r *launchRun) attach(ctx context.Context) (*domain.DriverSession, error) {
	endpoint, err := attachEndpoint(r.preset.Attach)
	if err != nil {
		return nil, err
	}

	if r.preset.DevServer != nil {
		if sf := r.startDevServerGated(ctx); sf != nil {
			return nil, r.fail(sf.message, sf.cause)
		}
	}

	r.collector.Event(domain.EventAttach, "attaching", map[string]string{"endpoint": endpoint})

	sess, err := r.o.driver.Attach(ctx, endpoint)
	if err != nil {
		return nil, r.fail("failed to attach to electron via cdp", err)
	}
	r.logger.Info("attached", "endpoint", endpoint)

	ds, sf := r.runChain(ctx, sess, r.attachHandles(sess), false)
	if sf != nil {
		r.abandon(sess)
		return nil, r.fail(sf.message, sf.cause)
	}
	ds.LaunchMode = domain.OriginAttached
	ds.SetMeta(domain.MetaLaunchPath, string(domain.PathAttach))
	return r.finish(sess, ds), nil
}

// startDevServerGated spawns the dev server and polls its readiness gate to
// resolution. The gate is synthesized from the dev-server config itself;
// with neither a ready pattern nor a probe URL it passes immediately. A
// failed gate terminates the dev server before returning: the child is
// abandoned even when an attach fallback rescues the attempt afterwards.
func (r *launchRun) startDevServerGated(ctx context.Context) *stepFailure {
	stdout, stderr := r.collector.Stream(streamDevServer)
	srv, err := startDevServer(r.preset.DevServer, stdout, stderr, r.logger)
	if err != nil {
		return &stepFailure{message: "failed to start dev server", cause: err}
	}
	r.devServer = srv
	r.collector.DescribeStream(streamDevServer, r.preset.DevServer.Command, srv.PID())
	r.collector.Event(domain.EventProcess, "dev server started", map[string]string{
		"command": r.preset.DevServer.Command,
		"pid":     fmt.Sprintf("%d", srv.PID()),
	})

	timeoutMs := r.preset.DevServer.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultDevServerGateTimeoutMs
	}
	gate, err := readiness.DevServerReady(readiness.DevServerReadyConfig{
		TimeoutMs:    timeoutMs,
		ReadyPattern: r.preset.DevServer.ReadyPattern,
		ProbeURL:     r.preset.DevServer.ProbeURL,
		GetStdout:    func() string { return r.collector.StdoutText(streamDevServer) },
		GetStderr:    func() string { return r.collector.StderrText(streamDevServer) },
		HTTPClient:   r.httpClient(),
	})
	if err != nil {
		srv.Terminate()
		r.devServer = nil
		return &stepFailure{message: "invalid dev server ready pattern", cause: err}
	}

	result := r.o.engine.Run(ctx, []domain.ReadinessSignal{gate})
	r.collector.AttachTimeline(result.Diagnostics.Timeline)
	if !result.OK {
		srv.Terminate()
		r.devServer = nil
		return &stepFailure{
			message: fmt.Sprintf("dev server did not become ready: %s", result.FailedSignal.Detail),
			cause:   domain.ErrTimeout,
		}
	}
	r.collector.Event(domain.EventSignal, "dev server ready", nil)
	return nil
}

// fallbackAttach attempts the attach-on-failure path after a terminal step
// failure of the direct-launch path: dev-server gate, process launch, or
// readiness chain. The original failure stays the terminal error when the
// fallback cannot proceed, and is recorded as session metadata when it can.
func (r *launchRun) fallbackAttach(ctx context.Context, sf *stepFailure) (*domain.DriverSession, error) {
	fb := r.preset.AttachFallback
	if !fb.Enabled {
		return nil, r.fail(sf.message, sf.cause)
	}

	var args []string
	if r.preset.Launch != nil {
		args = r.preset.Launch.Args
	}
	endpoint, ok := DeriveEndpoint(fb.EndpointOverride, args, r.collector.Output(streamApp))
	if !ok {
		r.collector.Event(domain.EventAttach, "fallback attach skipped: no endpoint derivable", nil)
		return nil, r.fail(sf.message, sf.cause)
	}

	r.collector.Event(domain.EventAttach, "attempting fallback attach", map[string]string{
		"endpoint": endpoint,
	})
	r.logger.Warn("attempting fallback attach",
		"endpoint", endpoint, "failure", sf.message)

	timeout := time.Duration(fb.TimeoutMs) * time.Millisecond
	if err := VerifyEndpoint(ctx, endpoint, timeout); err != nil {
		r.collector.Event(domain.EventAttach, "fallback endpoint unreachable", map[string]string{
			"error": err.Error(),
		})
		return nil, r.fail(sf.message, sf.cause)
	}

	sess, err := r.o.driver.Attach(ctx, endpoint)
	if err != nil {
		// The original failure is terminal; the fallback failure is logged
		// but never masks it.
		r.collector.Event(domain.EventAttach, "fallback attach failed", map[string]string{
			"error": err.Error(),
		})
		return nil, r.fail(sf.message, sf.cause)
	}

	// Re-run only the signals an attached session can answer; processStable
	// has no pid to watch here and is skipped even when not optional.
	ds, csf := r.runChain(ctx, sess, r.attachHandles(sess), true)
	if csf != nil {
		r.abandon(sess)
		r.collector.Event(domain.EventAttach, "fallback attach did not reach readiness", map[string]string{
			"detail": csf.message,
		})
		return nil, r.fail(sf.message, sf.cause)
	}
	ds.LaunchMode = domain.OriginPreset
	ds.SetMeta(domain.MetaLaunchPath, string(domain.PathFallbackAttach))
	ds.SetMeta(domain.MetaLaunchFallbackReason, sf.reason())
	return r.finish(sess, ds), nil
}

// runChain builds and executes the preset's readiness chain and assembles
// the session skeleton on success.
func (r *launchRun) runChain(ctx context.Context, sess *driver.Session, h chainHandles, skipUnsupported bool) (*domain.DriverSession, *stepFailure) {
	signals, err := buildSignals(r.preset.Signals, h, skipUnsupported)
	if err != nil {
		return nil, &stepFailure{message: "invalid readiness signal configuration", cause: err}
	}

	result := r.o.engine.Run(ctx, signals)
	r.collector.AttachTimeline(result.Diagnostics.Timeline)
	if !result.OK {
		fs := result.FailedSignal
		r.collector.Event(domain.EventSignal, "readiness signal failed", map[string]string{
			"signal":   fs.Name,
			"detail":   fs.Detail,
			"timedOut": fmt.Sprintf("%t", fs.TimedOut),
		})
		return nil, &stepFailure{
			message: fmt.Sprintf("readiness signal %s failed after %d attempt(s): %s", fs.Name, fs.Attempts, fs.Detail),
			cause:   domain.ErrTimeout,
		}
	}

	r.collector.Event(domain.EventSignal, "all readiness signals passed", map[string]string{
		"completed": strings.Join(result.CompletedSignals, ","),
	})
	ds := &domain.DriverSession{ID: sess.ID}
	ds.SetMeta(domain.MetaCompletedSignals, result.CompletedSignals)
	ds.SetMeta(domain.MetaReadinessTimeline, r.collector.Timeline())
	return ds, nil
}

// launchHandles binds signals to a launched session. The protocol
// connection is established lazily: the debug endpoint only appears in the
// child's output once the process is up, so window probes derive and
// connect on each poll until one succeeds.
func (r *launchRun) launchHandles(sess *driver.Session) chainHandles {
	ensure := func(ctx context.Context) error {
		var args []string
		if r.preset.Launch != nil {
			args = r.preset.Launch.Args
		}
		endpoint, ok := DeriveEndpoint("", args, r.collector.Output(streamApp))
		if !ok {
			return fmt.Errorf("debug endpoint not derivable yet")
		}
		return r.o.driver.Connect(ctx, sess, endpoint)
	}
	return chainHandles{
		getPid: func() int { return sess.PID },
		getWindows: func(ctx context.Context) ([]domain.Window, error) {
			if err := ensure(ctx); err != nil {
				return nil, err
			}
			return r.o.driver.Windows(ctx, sess)
		},
		evaluate: func(ctx context.Context, windowID, expr string) (string, error) {
			if err := ensure(ctx); err != nil {
				return "", err
			}
			return r.o.driver.Evaluate(ctx, sess, windowID, expr)
		},
		getStdout:  func() string { return r.collector.StdoutText(streamDevServer) },
		getStderr:  func() string { return r.collector.StderrText(streamDevServer) },
		httpClient: r.httpClient(),
	}
}

// attachHandles binds signals to an already-connected session. There is no
// pid to watch: processStable specs must be optional on the plain attach
// path, and are skipped outright on the fallback path.
func (r *launchRun) attachHandles(sess *driver.Session) chainHandles {
	return chainHandles{
		getWindows: func(ctx context.Context) ([]domain.Window, error) {
			return r.o.driver.Windows(ctx, sess)
		},
		evaluate: func(ctx context.Context, windowID, expr string) (string, error) {
			return r.o.driver.Evaluate(ctx, sess, windowID, expr)
		},
		httpClient: r.httpClient(),
	}
}

// finish registers the successful attempt and annotates shared metadata.
func (r *launchRun) finish(sess *driver.Session, ds *domain.DriverSession) *domain.DriverSession {
	if r.devServer != nil {
		ds.SetMeta(domain.MetaDevServerPID, r.devServer.PID())
	}
	r.collector.Event(domain.EventLaunch, "session ready", map[string]string{"session": ds.ID})
	r.logger.Info("session ready", "session", ds.ID)

	r.o.mu.Lock()
	r.o.attempts[ds.ID] = &attempt{
		session:   sess,
		collector: r.collector,
		devServer: r.devServer,
	}
	r.o.mu.Unlock()
	return ds
}

// abandon tears down a session whose readiness chain failed.
func (r *launchRun) abandon(sess *driver.Session) {
	if err := r.o.driver.Close(sess); err != nil {
		r.logger.Warn("close failed session", "error", err)
	}
}

// fail assembles the terminal LaunchError: diagnostics snapshot, preset
// hints, and playbooks matched against the failure text plus captured
// output. It also terminates the dev server so no failed attempt leaks one.
func (r *launchRun) fail(message string, cause error) error {
	if r.devServer != nil {
		r.devServer.Terminate()
		r.devServer = nil
	}

	symptoms := message
	if cause != nil {
		symptoms += "\n" + cause.Error()
	}
	symptoms += "\n" + r.collector.Output(streamDevServer) + "\n" + r.collector.Output(streamApp)

	matched := r.o.matcher.Match(symptoms, r.preset.ID, r.platform)

	le := domain.NewLaunchError(message, cause)
	le.Preset = r.preset.ID
	le.PresetVersion = r.preset.Version
	le.Hints = append(le.Hints, r.preset.Hints...)
	for _, pb := range matched {
		le.Hints = append(le.Hints, pb.Title)
	}
	le.Playbooks = matched
	le.Diagnostics = r.collector.Snapshot()

	r.logger.Error("launch failed",
		"message", message, "cause", cause, "playbooks", len(matched))
	return le
}

func (r *launchRun) httpClient() *http.Client {
	if r.o.cfg.Probe.HTTPTimeout > 0 {
		return &http.Client{Timeout: r.o.cfg.Probe.HTTPTimeout}
	}
	return nil
}

// attachEndpoint resolves the attach target from an AttachConfig.
func attachEndpoint(ac *domain.AttachConfig) (string, error) {
	if ac == nil {
		return "", domain.NewDomainError("launch.Orchestrator.Attach", domain.ErrInvalidInput,
			"attach mode requires an attach config")
	}
	if ac.Endpoint != "" {
		return ac.Endpoint, nil
	}
	if ac.Port > 0 {
		return fmt.Sprintf("http://127.0.0.1:%d", ac.Port), nil
	}
	return "", domain.NewDomainError("launch.Orchestrator.Attach", domain.ErrInvalidInput,
		"attach config needs an endpoint or a port")
}
