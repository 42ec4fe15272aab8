// Package diagnostics captures bounded process output, an append-only launch
// event log, and a sanitized environment snapshot for one launch attempt.
package diagnostics

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"appboot/internal/domain"
)

// CollectorConfig caps the collector's buffers.
type CollectorConfig struct {
	OutputLines int      // per-stream line ring capacity
	EventLogCap int      // max retained events
	EnvAllow    []string // exact env keys or "PREFIX*" additionally included
}

// stream pairs the stdout/stderr buffers of one named child process.
type stream struct {
	name    string
	command string
	pid     int
	stdout  *lineBuffer
	stderr  *lineBuffer
}

// Collector owns the diagnostics state of a single launch attempt. It is
// safe for concurrent use; process output writers and the orchestrator's
// event appends run on different goroutines.
type Collector struct {
	mu       sync.Mutex
	cfg      CollectorConfig
	streams  map[string]*stream
	order    []string // stream registration order
	events   []domain.LaunchDiagnosticEvent
	timeline []domain.ReadinessTimelineEntry
	logger   *slog.Logger
}

// NewCollector creates a Collector with the given caps.
func NewCollector(cfg CollectorConfig, logger *slog.Logger) *Collector {
	if cfg.OutputLines <= 0 {
		cfg.OutputLines = 400
	}
	if cfg.EventLogCap <= 0 {
		cfg.EventLogCap = 500
	}
	return &Collector{
		cfg:     cfg,
		streams: make(map[string]*stream),
		logger:  logger,
	}
}

// Stream registers (or returns) the named output stream pair and hands back
// writers suitable for exec.Cmd Stdout/Stderr.
func (c *Collector) Stream(name string) (stdout, stderr io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.ensureStream(name)
	return s.stdout, s.stderr
}

// DescribeStream attaches command/pid metadata to a registered stream.
func (c *Collector) DescribeStream(name, command string, pid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.ensureStream(name)
	s.command = command
	s.pid = pid
}

// ensureStream assumes c.mu is held.
func (c *Collector) ensureStream(name string) *stream {
	if s, ok := c.streams[name]; ok {
		return s
	}
	s := &stream{
		name:   name,
		stdout: newLineBuffer(c.cfg.OutputLines),
		stderr: newLineBuffer(c.cfg.OutputLines),
	}
	c.streams[name] = s
	c.order = append(c.order, name)
	return s
}

// Output returns the current combined stdout+stderr text of the named
// stream, for regex scanning. Unknown names yield an empty string.
func (c *Collector) Output(name string) string {
	c.mu.Lock()
	s, ok := c.streams[name]
	c.mu.Unlock()
	if !ok {
		return ""
	}
	return s.stdout.String() + s.stderr.String()
}

// StdoutText returns the current stdout text of the named stream.
func (c *Collector) StdoutText(name string) string {
	c.mu.Lock()
	s, ok := c.streams[name]
	c.mu.Unlock()
	if !ok {
		return ""
	}
	return s.stdout.String()
}

// StderrText returns the current stderr text of the named stream.
func (c *Collector) StderrText(name string) string {
	c.mu.Lock()
	s, ok := c.streams[name]
	c.mu.Unlock()
	if !ok {
		return ""
	}
	return s.stderr.String()
}

// Event appends one entry to the capped event log.
func (c *Collector) Event(typ domain.EventType, message string, data map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, domain.LaunchDiagnosticEvent{
		Timestamp: time.Now(),
		Type:      typ,
		Message:   message,
		Data:      data,
	})
	if len(c.events) > c.cfg.EventLogCap {
		c.events = c.events[len(c.events)-c.cfg.EventLogCap:]
	}

	if c.logger != nil {
		c.logger.Debug("launch event", "type", string(typ), "message", message)
	}
}

// AttachTimeline appends readiness timeline entries from a finished chain.
func (c *Collector) AttachTimeline(entries []domain.ReadinessTimelineEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeline = append(c.timeline, entries...)
}

// Timeline returns a copy of the accumulated readiness timeline.
func (c *Collector) Timeline() []domain.ReadinessTimelineEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ReadinessTimelineEntry, len(c.timeline))
	copy(out, c.timeline)
	return out
}

// Snapshot assembles the combined diagnostics bundle: process output
// snapshots in registration order, the readiness timeline, the event log,
// and a sanitized environment.
func (c *Collector) Snapshot() *domain.DiagnosticsBundle {
	c.mu.Lock()
	defer c.mu.Unlock()

	bundle := &domain.DiagnosticsBundle{
		SignalTimeline: append([]domain.ReadinessTimelineEntry(nil), c.timeline...),
		EventLog:       append([]domain.LaunchDiagnosticEvent(nil), c.events...),
		Environment:    SanitizeEnvironment(osEnviron(), c.cfg.EnvAllow),
	}
	for _, name := range c.order {
		s := c.streams[name]
		bundle.ProcessOutput = append(bundle.ProcessOutput, domain.ProcessOutputSnapshot{
			Name:          s.name,
			Command:       s.command,
			PID:           s.pid,
			Stdout:        s.stdout.Lines(),
			Stderr:        s.stderr.Lines(),
			StdoutPartial: s.stdout.Partial(),
			StderrPartial: s.stderr.Partial(),
		})
	}
	return bundle
}
