package domain

import (
	"context"
	"time"
)

// CheckResult is the outcome of a single readiness probe attempt.
type CheckResult struct {
	Ready  bool
	Detail string
}

// CheckFunc is a readiness predicate. Probes may run more than once per
// signal; implementations must tolerate being re-invoked after a previous
// attempt returned an error.
type CheckFunc func(ctx context.Context) (CheckResult, error)

// ReadinessSignal is a live, named readiness gate bound to the handles of a
// single launch attempt. Instances are constructed fresh per attempt and
// discarded once the chain resolves.
type ReadinessSignal struct {
	Name      string
	TimeoutMs int
	Retry     *RetryPolicy
	Check     CheckFunc
	Payload   map[string]string // optional diagnostic payload, copied into timeline entries
}

// ReadinessTimelineEntry records one polling attempt. Entries are append-only.
type ReadinessTimelineEntry struct {
	SignalName string    `json:"signalName"`
	Attempt    int       `json:"attempt"` // 1-based
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	DurationMs int64     `json:"durationMs"`
	Ready      bool      `json:"ready"`
	TimedOut   bool      `json:"timedOut"`
	Detail     string    `json:"detail,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// FailedSignal identifies the signal that terminated a chain.
type FailedSignal struct {
	Name     string `json:"name"`
	Detail   string `json:"detail,omitempty"`
	TimedOut bool   `json:"timedOut"`
	Attempts int    `json:"attempts"`
}

// ChainDiagnostics captures the timing and full attempt timeline of one chain run.
type ChainDiagnostics struct {
	StartedAt  time.Time                `json:"startedAt"`
	FinishedAt time.Time                `json:"finishedAt"`
	Timeline   []ReadinessTimelineEntry `json:"timeline"`
}

// ReadinessChainResult is the outcome of running an ordered signal chain.
// CompletedSignals is always a strict prefix of the attempted sequence, and
// FailedSignal is non-nil exactly when OK is false.
type ReadinessChainResult struct {
	OK               bool             `json:"ok"`
	CompletedSignals []string         `json:"completedSignals"`
	FailedSignal     *FailedSignal    `json:"failedSignal,omitempty"`
	Diagnostics      ChainDiagnostics `json:"diagnostics"`
}
