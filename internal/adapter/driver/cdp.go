package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/oklog/ulid/v2"

	"appboot/internal/domain"
)

// CDPConfig holds configuration for the CDP driver.
type CDPConfig struct {
	// ConnectTimeout bounds establishing a CDP session against an endpoint.
	ConnectTimeout time.Duration
	// HTTPTimeout bounds the /json/version endpoint resolution request.
	HTTPTimeout time.Duration
}

// cdpSession holds the runtime state of one driver session.
type cdpSession struct {
	sess          *Session
	cmd           *exec.Cmd
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	connected     bool
}

// CDPDriver implements Driver over the Chrome DevTools Protocol using
// chromedp. Launched processes are spawned directly so the caller gets a
// real pid and captured output; the protocol connection is established
// lazily on the first window query, since the debug endpoint usually comes
// up well after the process does.
type CDPDriver struct {
	mu       sync.Mutex
	cfg      CDPConfig
	sessions map[string]*cdpSession
	logger   *slog.Logger
}

// NewCDPDriver creates a CDP driver.
func NewCDPDriver(cfg CDPConfig, logger *slog.Logger) *CDPDriver {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 2 * time.Second
	}
	return &CDPDriver{
		cfg:      cfg,
		sessions: make(map[string]*cdpSession),
		logger:   logger,
	}
}

// Launch spawns the application process with output wired to the spec's
// writers. The session's Endpoint stays empty until the CDP connection is
// resolved; --remote-debugging-port in the args is picked up lazily.
func (d *CDPDriver) Launch(ctx context.Context, spec LaunchSpec) (*Session, error) {
	// Detached context: the process must outlive the launch request.
	cmd := exec.CommandContext(context.Background(), spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range spec.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", spec.Command, err)
	}
	// Reap the child when it exits so failed launches don't leave zombies.
	go cmd.Wait()

	sess := &Session{ID: d.newID(), PID: cmd.Process.Pid}

	d.mu.Lock()
	d.sessions[sess.ID] = &cdpSession{sess: sess, cmd: cmd}
	d.mu.Unlock()

	d.logger.Info("process launched", "session_id", sess.ID, "command", spec.Command, "pid", sess.PID)
	return sess, nil
}

// Attach connects to an already-running instance.
func (d *CDPDriver) Attach(ctx context.Context, endpoint string) (*Session, error) {
	wsURL, err := d.resolveWebSocketURL(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}

	sess := &Session{ID: d.newID(), Endpoint: wsURL}
	cs := &cdpSession{sess: sess}
	if err := d.connect(cs, wsURL); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}

	d.mu.Lock()
	d.sessions[sess.ID] = cs
	d.mu.Unlock()

	d.logger.Info("attached", "session_id", sess.ID, "endpoint", wsURL)
	return sess, nil
}

// Connect binds a launched session to a CDP endpoint, used by the
// orchestrator once it has derived the endpoint from launch args or output.
// Safe to call repeatedly; an already-connected session is a no-op.
func (d *CDPDriver) Connect(ctx context.Context, s *Session, endpoint string) error {
	cs, err := d.entry(s)
	if err != nil {
		return err
	}
	if cs.connected {
		return nil
	}

	wsURL, err := d.resolveWebSocketURL(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := d.connect(cs, wsURL); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.Endpoint = wsURL
	cs.sess.Endpoint = wsURL
	return nil
}

// connect establishes the chromedp session against a ws endpoint.
func (d *CDPDriver) connect(cs *cdpSession, wsURL string) error {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), wsURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the session by running an empty action. The CDP session is
	// bound to browserCtx itself, so the timeout is enforced with a
	// select rather than a derived context.
	startDone := make(chan error, 1)
	go func() { startDone <- chromedp.Run(browserCtx) }()
	select {
	case err := <-startDone:
		if err != nil {
			browserCancel()
			allocCancel()
			return fmt.Errorf("start cdp session: %w", err)
		}
	case <-time.After(d.cfg.ConnectTimeout):
		browserCancel()
		allocCancel()
		return fmt.Errorf("start cdp session: timed out after %v", d.cfg.ConnectTimeout)
	}

	cs.allocCancel = allocCancel
	cs.browserCtx = browserCtx
	cs.browserCancel = browserCancel
	cs.connected = true
	return nil
}

// versionInfo is the subset of /json/version we need.
type versionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// resolveWebSocketURL turns an endpoint into a ws:// debugger URL. ws://
// endpoints pass through; http(s):// endpoints are resolved via
// /json/version the way DevTools clients do.
func (d *CDPDriver) resolveWebSocketURL(ctx context.Context, endpoint string) (string, error) {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return endpoint, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "", fmt.Errorf("endpoint %q is neither ws nor http", endpoint)
	}

	url := strings.TrimSuffix(endpoint, "/") + "/json/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: d.cfg.HTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve debugger url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve debugger url: %s returned %d", url, resp.StatusCode)
	}

	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("resolve debugger url: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("resolve debugger url: %s has no webSocketDebuggerUrl", url)
	}
	return info.WebSocketDebuggerURL, nil
}

// Windows enumerates page targets as windows. DevTools windows are flagged,
// not hidden; readiness signals filter them.
func (d *CDPDriver) Windows(ctx context.Context, s *Session) ([]domain.Window, error) {
	cs, err := d.entry(s)
	if err != nil {
		return nil, err
	}
	if !cs.connected {
		return nil, fmt.Errorf("session %s: cdp not connected", s.ID)
	}

	targets, err := chromedp.Targets(cs.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	var windows []domain.Window
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		windows = append(windows, domain.Window{
			ID:       string(t.TargetID),
			Title:    t.Title,
			URL:      t.URL,
			DevTools: strings.HasPrefix(t.URL, "devtools://"),
		})
	}
	return windows, nil
}

// Evaluate runs an expression in the given window's page context.
func (d *CDPDriver) Evaluate(ctx context.Context, s *Session, windowID, expression string) (string, error) {
	cs, err := d.entry(s)
	if err != nil {
		return "", err
	}
	if !cs.connected {
		return "", fmt.Errorf("session %s: cdp not connected", s.ID)
	}

	targetCtx, cancel := chromedp.NewContext(cs.browserCtx,
		chromedp.WithTargetID(target.ID(windowID)))
	defer cancel()

	var result interface{}
	if err := chromedp.Run(targetCtx, chromedp.Evaluate(expression, &result)); err != nil {
		return "", domain.WrapOp("evaluate", err)
	}

	switch v := result.(type) {
	case string:
		return v, nil
	case nil:
		return "undefined", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), nil
		}
		return string(data), nil
	}
}

// Close disconnects the CDP session and terminates a launched process.
// Attached sessions only disconnect; the process belongs to someone else.
func (d *CDPDriver) Close(s *Session) error {
	d.mu.Lock()
	cs, ok := d.sessions[s.ID]
	if ok {
		delete(d.sessions, s.ID)
	}
	d.mu.Unlock()
	if !ok {
		return domain.NewDomainError("CDPDriver.Close", domain.ErrNotFound, s.ID)
	}

	if cs.browserCancel != nil {
		cs.browserCancel()
	}
	if cs.allocCancel != nil {
		cs.allocCancel()
	}
	if cs.cmd != nil && cs.cmd.Process != nil {
		// Best effort; the process may already have exited.
		_ = cs.cmd.Process.Kill()
	}
	d.logger.Info("session closed", "session_id", s.ID)
	return nil
}

func (d *CDPDriver) entry(s *Session) (*cdpSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cs, ok := d.sessions[s.ID]
	if !ok {
		return nil, domain.NewDomainError("CDPDriver", domain.ErrNotFound, "session "+s.ID)
	}
	return cs, nil
}

func (d *CDPDriver) newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
