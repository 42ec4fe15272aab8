package launch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"appboot/internal/domain"
)

// devServer owns a spawned dev-server child process for one launch attempt.
// Exactly one owner may terminate it: the orchestrator on failure paths, or
// the downstream session manager after the pid is handed over on success.
type devServer struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// startDevServer spawns the configured dev server with output wired to the
// given writers.
func startDevServer(cfg *domain.DevServerConfig, stdout, stderr io.Writer, logger *slog.Logger) (*devServer, error) {
	// Detached context: the server must outlive the launch request; the
	// cancel func is the termination handle.
	cmdCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(cmdCtx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start dev server %s: %w", cfg.Command, err)
	}

	ds := &devServer{
		cmd:    cmd,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}
	go func() {
		err := cmd.Wait()
		close(ds.done)
		logger.Info("dev server exited", "pid", cmd.Process.Pid, "error", err)
	}()

	logger.Info("dev server started", "command", cfg.Command, "pid", cmd.Process.Pid)
	return ds, nil
}

// PID returns the dev server's process id.
func (d *devServer) PID() int {
	if d.cmd.Process == nil {
		return 0
	}
	return d.cmd.Process.Pid
}

// Exited reports whether the child has already finished.
func (d *devServer) Exited() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Terminate kills the child and waits briefly for it to be reaped.
// Idempotent; called on every abandon-on-failure path so failed attempts
// never leak a dev server.
func (d *devServer) Terminate() {
	d.cancel()
	select {
	case <-d.done:
	case <-time.After(5 * time.Second):
		d.logger.Warn("dev server did not exit after kill", "pid", d.PID())
	}
}
