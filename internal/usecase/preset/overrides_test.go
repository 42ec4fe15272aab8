package preset

import (
	"errors"
	"testing"

	"appboot/internal/domain"
)

func TestParseOverridesValid(t *testing.T) {
	ov, err := ParseOverrides([]byte(`{
		"args": ["--inspect"],
		"env": {"NODE_ENV": "test"},
		"attachPort": 9333
	}`))
	if err != nil {
		t.Fatalf("ParseOverrides: %v", err)
	}
	if len(ov.Args) != 1 || ov.Args[0] != "--inspect" {
		t.Errorf("args = %v", ov.Args)
	}
	if ov.Env["NODE_ENV"] != "test" {
		t.Errorf("env = %v", ov.Env)
	}
	if ov.AttachPort != 9333 {
		t.Errorf("attachPort = %d", ov.AttachPort)
	}
}

func TestParseOverridesEmpty(t *testing.T) {
	ov, err := ParseOverrides(nil)
	if err != nil {
		t.Fatalf("ParseOverrides(nil): %v", err)
	}
	if ov != nil {
		t.Errorf("expected nil overrides for empty input, got %+v", ov)
	}
}

func TestParseOverridesUnknownField(t *testing.T) {
	_, err := ParseOverrides([]byte(`{"agrs": ["--typo"]}`))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown field: got %v, want ErrInvalidInput", err)
	}
}

func TestParseOverridesBadPort(t *testing.T) {
	_, err := ParseOverrides([]byte(`{"attachPort": 0}`))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("port 0: got %v, want ErrInvalidInput", err)
	}
	_, err = ParseOverrides([]byte(`{"attachPort": 70000}`))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("port 70000: got %v, want ErrInvalidInput", err)
	}
}

func TestParseOverridesNotJSON(t *testing.T) {
	_, err := ParseOverrides([]byte(`--inspect`))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("non-JSON: got %v, want ErrInvalidInput", err)
	}
}
