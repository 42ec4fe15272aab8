package preset

import "appboot/internal/domain"

// builtinPresets constructs the built-in catalog. Called once per Registry;
// every call builds fresh values so registries never share preset state.
func builtinPresets() []*domain.LaunchPreset {
	return []*domain.LaunchPreset{
		electronVite(),
		electronForgeWebpack(),
		electronBuilder(),
		electronAttach(),
	}
}

func defaultDiagnostics() domain.DiagnosticsConfig {
	return domain.DiagnosticsConfig{OutputLines: 400, EventLogCap: 500}
}

// electronVite: electron-vite dev toolchain. The vite dev server owns the
// renderer; Electron is launched by the same command, so the process launch
// runs the toolchain binary directly.
func electronVite() *domain.LaunchPreset {
	return &domain.LaunchPreset{
		ID:      "electron-vite",
		Version: "1.2.0",
		Mode:    domain.ModeLaunch,
		DevServer: &domain.DevServerConfig{
			Command:      "npm",
			Args:         []string{"run", "dev", "--", "--noSandbox"},
			ReadyPattern: `(?i)ready in \d+ms`,
			TimeoutMs:    60000,
		},
		Launch: &domain.ProcessLaunchConfig{
			Command: "npx",
			Args:    []string{"electron", ".", "--remote-debugging-port=9222"},
			Env:     map[string]string{"NODE_ENV": "development"},
		},
		Signals: []domain.ReadinessSignalSpec{
			{Kind: domain.SignalProcessStable, TimeoutMs: 15000, Param: "750",
				Retry: &domain.RetryPolicy{IntervalMs: 250}},
			{Kind: domain.SignalWindowCreated, TimeoutMs: 30000,
				Retry: &domain.RetryPolicy{IntervalMs: 500}},
			{Kind: domain.SignalRendererReady, TimeoutMs: 30000,
				Retry: &domain.RetryPolicy{IntervalMs: 500}},
		},
		Diagnostics:    defaultDiagnostics(),
		AttachFallback: domain.AttachFallbackConfig{Enabled: true, TimeoutMs: 10000},
		Hints: []string{
			"Ensure `npm install` has completed before launching",
			"On macOS the first window can lag several seconds behind app start; prefer raising windowCreated timeout over retrying",
			"Vite prints `ready in Nms` when compilation finishes; a missing banner usually means a compile error above it",
		},
	}
}

// electronForgeWebpack: Electron Forge with the webpack plugin. Forge owns
// both the bundler and the Electron process.
func electronForgeWebpack() *domain.LaunchPreset {
	return &domain.LaunchPreset{
		ID:      "electron-forge-webpack",
		Version: "1.1.0",
		Mode:    domain.ModeLaunch,
		DevServer: &domain.DevServerConfig{
			Command:      "npm",
			Args:         []string{"run", "start"},
			ReadyPattern: `(?i)compiled successfully`,
			ProbeURL:     "http://localhost:3000",
			TimeoutMs:    90000,
		},
		Launch: &domain.ProcessLaunchConfig{
			Command: "npx",
			Args:    []string{"electron-forge", "start", "--", "--remote-debugging-port=9223"},
		},
		Signals: []domain.ReadinessSignalSpec{
			{Kind: domain.SignalProcessStable, TimeoutMs: 20000, Param: "1000",
				Retry: &domain.RetryPolicy{IntervalMs: 250}},
			{Kind: domain.SignalWindowCreated, TimeoutMs: 45000,
				Retry: &domain.RetryPolicy{IntervalMs: 500}},
			{Kind: domain.SignalRendererReady, TimeoutMs: 45000,
				Retry: &domain.RetryPolicy{IntervalMs: 500}},
		},
		Diagnostics:    defaultDiagnostics(),
		AttachFallback: domain.AttachFallbackConfig{Enabled: true, TimeoutMs: 10000},
		Hints: []string{
			"Webpack first builds can exceed a minute; raise devServerReady timeout on cold caches",
			"Forge restarts Electron on main-process recompiles; a flapping pid resets the processStable window",
		},
	}
}

// electronBuilder: packaged-app smoke launches, no dev server.
func electronBuilder() *domain.LaunchPreset {
	return &domain.LaunchPreset{
		ID:      "electron-builder",
		Version: "1.0.1",
		Mode:    domain.ModeLaunch,
		Launch: &domain.ProcessLaunchConfig{
			Command: "./dist/app",
			Args:    []string{"--remote-debugging-port=9224"},
		},
		Signals: []domain.ReadinessSignalSpec{
			{Kind: domain.SignalProcessStable, TimeoutMs: 10000, Param: "500",
				Retry: &domain.RetryPolicy{IntervalMs: 250}},
			{Kind: domain.SignalWindowCreated, TimeoutMs: 20000,
				Retry: &domain.RetryPolicy{IntervalMs: 500}},
			{Kind: domain.SignalRendererReady, TimeoutMs: 20000,
				Retry: &domain.RetryPolicy{IntervalMs: 500}},
		},
		Diagnostics:    defaultDiagnostics(),
		AttachFallback: domain.AttachFallbackConfig{Enabled: true, TimeoutMs: 8000},
		Hints: []string{
			"Point launch.command at the unpacked binary, not the installer artifact",
			"A stale singleton lock from a previous run makes the new process exit immediately",
		},
	}
}

// electronAttach: connect to an already-running instance over CDP.
func electronAttach() *domain.LaunchPreset {
	return &domain.LaunchPreset{
		ID:      "electron-attach",
		Version: "1.0.0",
		Mode:    domain.ModeAttach,
		Attach:  &domain.AttachConfig{Port: 9222},
		Signals: []domain.ReadinessSignalSpec{
			{Kind: domain.SignalWindowCreated, TimeoutMs: 10000,
				Retry: &domain.RetryPolicy{IntervalMs: 500}},
			{Kind: domain.SignalRendererReady, TimeoutMs: 10000,
				Retry: &domain.RetryPolicy{IntervalMs: 500}},
		},
		Diagnostics: defaultDiagnostics(),
		Hints: []string{
			"The target must have been started with --remote-debugging-port",
			"Check that nothing else is already attached; Electron allows one debugger client per target",
		},
	}
}
