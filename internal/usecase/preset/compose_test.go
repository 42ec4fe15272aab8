package preset

import (
	"testing"

	"appboot/internal/domain"
)

func basePreset() *domain.LaunchPreset {
	return &domain.LaunchPreset{
		ID:      "base",
		Version: "1.0.0",
		Mode:    domain.ModeLaunch,
		Launch: &domain.ProcessLaunchConfig{
			Command: "npx",
			Args:    []string{"electron", "."},
			Dir:     "/srv/app",
			Env:     map[string]string{"NODE_ENV": "development", "KEEP": "preset"},
		},
	}
}

func TestComposeNilOverrides(t *testing.T) {
	p := basePreset()
	out := Compose(p, nil)

	if out == p {
		t.Fatal("Compose must return a new value even without overrides")
	}
	if out.Launch.Command != "npx" || len(out.Launch.Args) != 2 {
		t.Errorf("preset changed without overrides: %+v", out.Launch)
	}
}

func TestComposeAppendsArgsAndMergesEnv(t *testing.T) {
	p := basePreset()
	out := Compose(p, &domain.LaunchOverrides{
		Args: []string{"--inspect"},
		Env:  map[string]string{"NODE_ENV": "test", "EXTRA": "override"},
	})

	wantArgs := []string{"electron", ".", "--inspect"}
	if len(out.Launch.Args) != len(wantArgs) {
		t.Fatalf("args = %v, want %v", out.Launch.Args, wantArgs)
	}
	for i := range wantArgs {
		if out.Launch.Args[i] != wantArgs[i] {
			t.Errorf("args[%d] = %q, want %q", i, out.Launch.Args[i], wantArgs[i])
		}
	}

	if out.Launch.Env["NODE_ENV"] != "test" {
		t.Error("override env must win per key")
	}
	if out.Launch.Env["KEEP"] != "preset" {
		t.Error("preset env must survive the union")
	}
	if out.Launch.Env["EXTRA"] != "override" {
		t.Error("new override keys must be added")
	}

	// The input preset must be untouched.
	if len(p.Launch.Args) != 2 || p.Launch.Env["NODE_ENV"] != "development" {
		t.Error("Compose mutated its input")
	}
}

func TestComposeScalarReplacement(t *testing.T) {
	p := basePreset()

	out := Compose(p, &domain.LaunchOverrides{Command: "./custom", Dir: "/tmp/x"})
	if out.Launch.Command != "./custom" || out.Launch.Dir != "/tmp/x" {
		t.Errorf("scalars not replaced: %+v", out.Launch)
	}

	// Absent scalars keep the preset values.
	out = Compose(p, &domain.LaunchOverrides{Args: []string{"--x"}})
	if out.Launch.Command != "npx" || out.Launch.Dir != "/srv/app" {
		t.Errorf("absent scalars must not reset: %+v", out.Launch)
	}
}

func TestComposeAttachOverrides(t *testing.T) {
	p := &domain.LaunchPreset{
		ID:     "att",
		Mode:   domain.ModeAttach,
		Attach: &domain.AttachConfig{Port: 9222},
	}

	out := Compose(p, &domain.LaunchOverrides{AttachEndpoint: "ws://10.0.0.5:9229/devtools/browser/x"})
	if out.Attach.Endpoint != "ws://10.0.0.5:9229/devtools/browser/x" {
		t.Errorf("attach endpoint = %q", out.Attach.Endpoint)
	}
	if out.Attach.Port != 9222 {
		t.Errorf("unrelated attach field changed: %d", out.Attach.Port)
	}

	out = Compose(p, &domain.LaunchOverrides{AttachPort: 9333})
	if out.Attach.Port != 9333 {
		t.Errorf("attach port = %d, want 9333", out.Attach.Port)
	}
}

func TestComposeFallbackEndpoint(t *testing.T) {
	p := basePreset()
	out := Compose(p, &domain.LaunchOverrides{FallbackEndpoint: "http://127.0.0.1:9222"})

	if out.AttachFallback.EndpointOverride != "http://127.0.0.1:9222" {
		t.Errorf("fallback override = %q", out.AttachFallback.EndpointOverride)
	}
}
