package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"appboot/internal/adapter/driver"
	"appboot/internal/domain"
	"appboot/internal/infra/config"
	"appboot/internal/infra/logger"
	"appboot/internal/infra/tracer"
	"appboot/internal/usecase/launch"
	"appboot/internal/usecase/playbook"
	"appboot/internal/usecase/preset"
	"appboot/internal/usecase/readiness"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "--help", "-h", "help":
		showUsage()
		return
	}

	switch os.Args[1] {
	case "launch":
		if err := runLaunch(); err != nil {
			exitErr(err)
		}
	case "attach":
		if err := runAttach(); err != nil {
			exitErr(err)
		}
	case "presets":
		if err := runPresets(); err != nil {
			exitErr(err)
		}
	case "playbooks":
		if err := runPlaybooks(); err != nil {
			exitErr(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'appboot --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

// exitErr prints launch failures with their remediation playbooks before
// exiting; everything else gets the plain fatal line.
func exitErr(err error) {
	var le *domain.LaunchError
	if errors.As(err, &le) {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", le)
		for _, hint := range le.Hints {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
		for _, pb := range le.Playbooks {
			fmt.Fprintf(os.Stderr, "  playbook %s: %s\n", pb.ID, pb.Explanation)
			for _, step := range pb.Steps {
				fmt.Fprintf(os.Stderr, "    - %s\n", step)
			}
		}
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	os.Exit(1)
}

func showUsage() {
	fmt.Println(`appboot - bring desktop applications to a verified interaction-ready state

USAGE:
    appboot COMMAND [FLAGS]

COMMANDS:
    launch PRESET     Launch an application via a named preset and wait
                      for its readiness signal chain
    attach ENDPOINT   Attach to an already-running instance by debugger
                      endpoint (ws:// URL, http:// base, or port)
    presets           List registered launch presets
    playbooks [MSG]   List known failure playbooks, or dry-run the matcher
                      against a failure message

FLAGS:
    -h, --help          Show this help message
    --config PATH       Config file path (default: ./appboot.yaml if present)
    --overrides JSON    Launch overrides as a JSON object
    --platform NAME     Platform for playbook scoping (default: current OS)
    --preset ID         Preset scope for 'playbooks MSG'

CONFIGURATION:
    Config file: ./appboot.yaml
    Environment: APPBOOT_* variables override config

EXAMPLES:
    appboot launch electron-vite
    appboot launch electron-vite --overrides '{"args":["--inspect"]}'
    appboot attach ws://127.0.0.1:9222/devtools/browser/abc
    appboot presets`)
}

// cliFlags holds the optional flags shared by launch and attach.
type cliFlags struct {
	ConfigPath string
	Overrides  string
	Platform   string
	Preset     string
}

// parseFlags extracts --config, --overrides, --platform, --preset from os.Args.
func parseFlags() cliFlags {
	var flags cliFlags
	for i := 2; i < len(os.Args); i++ {
		switch {
		case os.Args[i] == "--config" && i+1 < len(os.Args):
			flags.ConfigPath = os.Args[i+1]
			i++
		case strings.HasPrefix(os.Args[i], "--config="):
			flags.ConfigPath = strings.TrimPrefix(os.Args[i], "--config=")
		case os.Args[i] == "--overrides" && i+1 < len(os.Args):
			flags.Overrides = os.Args[i+1]
			i++
		case strings.HasPrefix(os.Args[i], "--overrides="):
			flags.Overrides = strings.TrimPrefix(os.Args[i], "--overrides=")
		case os.Args[i] == "--platform" && i+1 < len(os.Args):
			flags.Platform = os.Args[i+1]
			i++
		case strings.HasPrefix(os.Args[i], "--platform="):
			flags.Platform = strings.TrimPrefix(os.Args[i], "--platform=")
		case os.Args[i] == "--preset" && i+1 < len(os.Args):
			flags.Preset = os.Args[i+1]
			i++
		case strings.HasPrefix(os.Args[i], "--preset="):
			flags.Preset = strings.TrimPrefix(os.Args[i], "--preset=")
		}
	}
	return flags
}

// firstArg returns the first non-flag argument after the command.
func firstArg() string {
	for i := 2; i < len(os.Args); i++ {
		if strings.HasPrefix(os.Args[i], "-") {
			if !strings.Contains(os.Args[i], "=") && i+1 < len(os.Args) {
				i++
			}
			continue
		}
		return os.Args[i]
	}
	return ""
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat("appboot.yaml"); err == nil {
			path = "appboot.yaml"
		} else {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

// buildStack wires the full orchestrator from config.
func buildStack(cfg *config.Config) (*launch.Orchestrator, func(), error) {
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		logCloser()
		return nil, nil, fmt.Errorf("tracer: %w", err)
	}

	registry := preset.NewRegistry(log)
	if cfg.PresetsFile != "" {
		n, err := registry.LoadFile(cfg.PresetsFile)
		if err != nil {
			tracerShutdown(ctx)
			logCloser()
			return nil, nil, fmt.Errorf("presets file: %w", err)
		}
		log.Info("loaded presets file", "path", cfg.PresetsFile, "count", n)
	}

	orch := launch.NewOrchestrator(
		registry,
		driver.NewCDPDriver(driver.CDPConfig{HTTPTimeout: cfg.Probe.HTTPTimeout}, log),
		readiness.NewEngine(log),
		playbook.NewMatcher(),
		cfg,
		log,
	)
	cleanup := func() {
		tracerShutdown(ctx)
		logCloser()
	}
	return orch, cleanup, nil
}

func runLaunch() error {
	presetID := firstArg()
	if presetID == "" {
		return fmt.Errorf("usage: appboot launch PRESET [FLAGS]")
	}
	flags := parseFlags()

	cfg, err := loadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	orch, cleanup, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var overrides *domain.LaunchOverrides
	if flags.Overrides != "" {
		overrides, err = preset.ParseOverrides([]byte(flags.Overrides))
		if err != nil {
			return err
		}
	}

	session, err := orch.Launch(context.Background(), launch.Request{
		PresetID:  presetID,
		Overrides: overrides,
		Platform:  flags.Platform,
	})
	if err != nil {
		return err
	}
	return printJSON(session)
}

func runAttach() error {
	endpoint := firstArg()
	if endpoint == "" {
		return fmt.Errorf("usage: appboot attach ENDPOINT [FLAGS]")
	}
	flags := parseFlags()

	cfg, err := loadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	orch, cleanup, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	session, err := orch.Launch(context.Background(), launch.Request{
		PresetID:  "electron-attach",
		Overrides: &domain.LaunchOverrides{AttachEndpoint: endpoint},
		Platform:  flags.Platform,
	})
	if err != nil {
		return err
	}
	return printJSON(session)
}

func runPresets() error {
	flags := parseFlags()
	cfg, err := loadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	registry := preset.NewRegistry(log)
	if cfg.PresetsFile != "" {
		if _, err := registry.LoadFile(cfg.PresetsFile); err != nil {
			return fmt.Errorf("presets file: %w", err)
		}
	}
	for _, p := range registry.List() {
		fmt.Printf("%-24s v%-8s %s\n", p.ID, p.Version, p.Mode)
	}
	return nil
}

// runPlaybooks lists the catalog, or with a message argument dry-runs the
// matcher the way the orchestrator would on that failure text.
func runPlaybooks() error {
	message := firstArg()
	if message == "" {
		for _, pb := range playbook.Catalog() {
			fmt.Printf("%-28s %s\n", pb.ID, pb.Title)
			fmt.Printf("%28s   presets=%s platforms=%s\n", "",
				strings.Join(pb.Presets, ","), strings.Join(pb.Platforms, ","))
		}
		return nil
	}

	flags := parseFlags()
	platform := flags.Platform
	if platform == "" {
		platform = runtime.GOOS
	}
	matches := playbook.NewMatcher().Match(message, flags.Preset, platform)
	if len(matches) == 0 {
		fmt.Println("no playbooks match")
		return nil
	}
	for _, pb := range matches {
		fmt.Printf("%s: %s\n", pb.ID, pb.Title)
		fmt.Printf("  %s\n", pb.Explanation)
		for _, step := range pb.Steps {
			fmt.Printf("  - %s\n", step)
		}
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
