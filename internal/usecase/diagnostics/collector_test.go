package diagnostics

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"appboot/internal/domain"
)

func testCollector(cfg CollectorConfig) *Collector {
	return NewCollector(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCollectorStreamsAndSnapshot(t *testing.T) {
	c := testCollector(CollectorConfig{OutputLines: 10, EventLogCap: 10})

	stdout, stderr := c.Stream("dev-server")
	fmt.Fprintln(stdout, "VITE ready in 250ms")
	fmt.Fprintln(stderr, "some warning")
	c.DescribeStream("dev-server", "npm run dev", 4242)

	appOut, _ := c.Stream("app")
	fmt.Fprintln(appOut, "app starting")

	bundle := c.Snapshot()

	if len(bundle.ProcessOutput) != 2 {
		t.Fatalf("ProcessOutput length = %d, want 2", len(bundle.ProcessOutput))
	}
	// Registration order must be preserved.
	if bundle.ProcessOutput[0].Name != "dev-server" || bundle.ProcessOutput[1].Name != "app" {
		t.Errorf("stream order = %s, %s", bundle.ProcessOutput[0].Name, bundle.ProcessOutput[1].Name)
	}
	ds := bundle.ProcessOutput[0]
	if ds.Command != "npm run dev" || ds.PID != 4242 {
		t.Errorf("DescribeStream metadata lost: %+v", ds)
	}
	if len(ds.Stdout) != 1 || ds.Stdout[0] != "VITE ready in 250ms" {
		t.Errorf("stdout = %v", ds.Stdout)
	}
	if len(ds.Stderr) != 1 || ds.Stderr[0] != "some warning" {
		t.Errorf("stderr = %v", ds.Stderr)
	}
}

func TestCollectorOutputCombinesStreams(t *testing.T) {
	c := testCollector(CollectorConfig{})

	stdout, stderr := c.Stream("app")
	stdout.Write([]byte("out line\n"))
	stderr.Write([]byte("err line\n"))

	got := c.Output("app")
	if got != "out line\nerr line\n" {
		t.Errorf("Output = %q", got)
	}
	if c.Output("missing") != "" {
		t.Error("unknown stream must yield empty output")
	}
}

func TestCollectorEventLogCapped(t *testing.T) {
	c := testCollector(CollectorConfig{EventLogCap: 3})

	for i := 1; i <= 5; i++ {
		c.Event(domain.EventLaunch, fmt.Sprintf("event %d", i), nil)
	}

	bundle := c.Snapshot()
	if len(bundle.EventLog) != 3 {
		t.Fatalf("EventLog length = %d, want 3", len(bundle.EventLog))
	}
	if bundle.EventLog[0].Message != "event 3" {
		t.Errorf("oldest retained = %q, want %q", bundle.EventLog[0].Message, "event 3")
	}
}

func TestCollectorTimeline(t *testing.T) {
	c := testCollector(CollectorConfig{})

	c.AttachTimeline([]domain.ReadinessTimelineEntry{
		{SignalName: "windowCreated", Attempt: 1},
	})
	c.AttachTimeline([]domain.ReadinessTimelineEntry{
		{SignalName: "rendererReady", Attempt: 1},
	})

	timeline := c.Timeline()
	if len(timeline) != 2 {
		t.Fatalf("timeline length = %d, want 2", len(timeline))
	}
	if timeline[0].SignalName != "windowCreated" {
		t.Errorf("timeline[0] = %q", timeline[0].SignalName)
	}

	bundle := c.Snapshot()
	if len(bundle.SignalTimeline) != 2 {
		t.Errorf("bundle timeline length = %d", len(bundle.SignalTimeline))
	}
}

func TestCollectorEnvironmentSanitized(t *testing.T) {
	orig := osEnviron
	osEnviron = func() []string {
		return []string{"NPM_TOKEN=secret", "HOME=/home/dev"}
	}
	defer func() { osEnviron = orig }()

	c := testCollector(CollectorConfig{})
	bundle := c.Snapshot()

	if bundle.Environment["NPM_TOKEN"] != redacted {
		t.Errorf("NPM_TOKEN = %q, want redacted", bundle.Environment["NPM_TOKEN"])
	}
	if bundle.Environment["HOME"] != "/home/dev" {
		t.Errorf("HOME = %q", bundle.Environment["HOME"])
	}
}
