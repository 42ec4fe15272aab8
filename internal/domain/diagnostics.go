package domain

import "time"

// EventType classifies launch diagnostic events.
type EventType string

const (
	EventLaunch  EventType = "launch"
	EventProcess EventType = "process"
	EventSignal  EventType = "signal"
	EventWindow  EventType = "window"
	EventTarget  EventType = "target"
	EventAttach  EventType = "attach"
)

// LaunchDiagnosticEvent is one entry in the append-only launch event log.
type LaunchDiagnosticEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
}

// ProcessOutputSnapshot is the bounded captured output of one child process
// stream pair. Stdout/Stderr hold only the most recent complete lines; any
// trailing partial line is exposed separately rather than dropped.
type ProcessOutputSnapshot struct {
	Name          string   `json:"name"`
	Command       string   `json:"command,omitempty"`
	PID           int      `json:"pid,omitempty"`
	Stdout        []string `json:"stdout"`
	Stderr        []string `json:"stderr"`
	StdoutPartial string   `json:"stdoutPartial,omitempty"`
	StderrPartial string   `json:"stderrPartial,omitempty"`
}

// DiagnosticsBundle is the combined snapshot attached to terminal launch
// errors and exposed for post-mortem reporting.
type DiagnosticsBundle struct {
	ProcessOutput  []ProcessOutputSnapshot  `json:"processOutput"`
	SignalTimeline []ReadinessTimelineEntry `json:"signalTimeline"`
	EventLog       []LaunchDiagnosticEvent  `json:"eventLog"`
	Environment    map[string]string        `json:"environment"`
}
