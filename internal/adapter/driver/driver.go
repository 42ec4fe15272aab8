// Package driver abstracts the automation driver that owns the actual
// launch/attach syscalls, window enumeration, and scripted evaluation. The
// orchestrator depends only on the Driver interface; the CDP implementation
// below talks to Electron-class applications over the Chrome DevTools
// Protocol.
package driver

import (
	"context"
	"io"

	"appboot/internal/domain"
)

// LaunchSpec is the fully composed process-launch request handed to the
// driver. Stdout/Stderr, when set, receive the child's output (the
// orchestrator wires them to its diagnostics collector).
type LaunchSpec struct {
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Session is the driver's handle on one launched or attached application.
type Session struct {
	ID       string
	PID      int    // 0 for attached sessions
	Endpoint string // resolved CDP websocket endpoint, when known
}

// Driver performs launches, attaches, and per-session queries.
type Driver interface {
	// Launch spawns the application process. The CDP connection may be
	// established lazily; a Launch error means the process itself could not
	// be started.
	Launch(ctx context.Context, spec LaunchSpec) (*Session, error)

	// Attach connects to an already-running instance. endpoint is either a
	// ws:// debugger URL or an http(s):// base whose /json/version resolves
	// one.
	Attach(ctx context.Context, endpoint string) (*Session, error)

	// Connect establishes the protocol session for a launched Session once
	// its endpoint is known. Idempotent.
	Connect(ctx context.Context, s *Session, endpoint string) error

	// Windows enumerates the session's application windows.
	Windows(ctx context.Context, s *Session) ([]domain.Window, error)

	// Evaluate runs a script expression in the given window and returns the
	// result rendered as a string.
	Evaluate(ctx context.Context, s *Session, windowID, expression string) (string, error)

	// Close disconnects and, for launched sessions, terminates the process.
	Close(s *Session) error
}
