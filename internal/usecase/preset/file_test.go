package preset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"appboot/internal/domain"
)

func writePresetsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileRegistersPresets(t *testing.T) {
	r := testRegistry()
	path := writePresetsFile(t, `
presets:
  - id: my-app
    version: 0.1.0
    mode: launch
    launch:
      command: ./my-app
      args: ["--remote-debugging-port=9250"]
    signals:
      - kind: processStable
        timeout_ms: 5000
      - kind: windowCreated
        timeout_ms: 10000
        retry:
          interval_ms: 200
          max_attempts: 50
`)

	n, err := r.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 1 {
		t.Fatalf("registered %d presets, want 1", n)
	}

	p, err := r.Resolve("my-app")
	if err != nil {
		t.Fatal(err)
	}
	if p.Launch.Command != "./my-app" {
		t.Errorf("command = %q", p.Launch.Command)
	}
	if len(p.Signals) != 2 || p.Signals[1].Kind != domain.SignalWindowCreated {
		t.Errorf("signals = %+v", p.Signals)
	}
	if p.Signals[1].Retry == nil || p.Signals[1].Retry.MaxAttempts != 50 {
		t.Errorf("retry = %+v", p.Signals[1].Retry)
	}
}

func TestLoadFileAllOrNothing(t *testing.T) {
	r := testRegistry()
	// Second entry is invalid (launch mode without command); the first must
	// not be registered either.
	path := writePresetsFile(t, `
presets:
  - id: good-one
    version: 0.1.0
    mode: launch
    launch:
      command: ./ok
  - id: bad-one
    version: 0.1.0
    mode: launch
`)

	_, err := r.LoadFile(path)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("LoadFile: got %v, want ErrInvalidInput", err)
	}
	if _, err := r.Resolve("good-one"); err == nil {
		t.Error("partial registration leaked from a failed load")
	}
}

func TestLoadFileRejectsUnknownSignalKind(t *testing.T) {
	r := testRegistry()
	path := writePresetsFile(t, `
presets:
  - id: odd
    version: 0.1.0
    mode: launch
    launch:
      command: ./odd
    signals:
      - kind: quantumReady
        timeout_ms: 1000
`)

	if _, err := r.LoadFile(path); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown kind: got %v, want ErrInvalidInput", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	r := testRegistry()
	if _, err := r.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
