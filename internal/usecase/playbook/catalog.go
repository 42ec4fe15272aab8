// Package playbook maps failure symptoms to operator remediation steps.
// The catalog is static and matching is advisory: playbooks are attached to
// terminal errors but never influence control flow.
package playbook

import (
	"regexp"

	"appboot/internal/domain"
)

var anyScope = []string{domain.ScopeAny}

// catalog is the built-in knowledge base, ordered by usefulness: when
// several playbooks match, earlier entries surface first.
var catalog = []domain.FailurePlaybook{
	{
		ID:        "cdp-endpoint-unavailable",
		Title:     "CDP endpoint unavailable",
		Presets:   anyScope,
		Platforms: anyScope,
		Symptoms: []*regexp.Regexp{
			regexp.MustCompile(`(?i)failed to attach to electron via cdp`),
			regexp.MustCompile(`(?i)connection refused.*:9\d{3}`),
			regexp.MustCompile(`(?i)websocket.*(handshake|dial).*failed`),
		},
		Explanation: "The app is running but its remote-debugging endpoint is not reachable, " +
			"usually because it was started without --remote-debugging-port or another client holds the connection.",
		Steps: []string{
			"Confirm the app was launched with --remote-debugging-port=<port>",
			"Check http://127.0.0.1:<port>/json/version responds with a webSocketDebuggerUrl",
			"Disconnect other DevTools/automation clients attached to the same target",
		},
		Link: "https://chromedevtools.github.io/devtools-protocol/",
	},
	{
		ID:        "vite-first-window-macos",
		Title:     "First window delayed on macOS under electron-vite",
		Presets:   []string{"electron-vite"},
		Platforms: []string{"darwin"},
		Symptoms: []*regexp.Regexp{
			regexp.MustCompile(`(?i)windowCreated`),
			regexp.MustCompile(`(?i)no application windows`),
		},
		Explanation: "electron-vite on macOS frequently shows the first BrowserWindow several seconds after " +
			"the main process starts, especially on cold Vite caches; the window signal times out before it appears.",
		Steps: []string{
			"Raise the windowCreated timeout to 45-60s for cold starts",
			"Warm the Vite cache with a plain `npm run dev` once before automating",
			"Verify the main process actually calls createWindow() on app.whenReady()",
		},
	},
	{
		ID:        "dev-server-port-in-use",
		Title:     "Dev server port already in use",
		Presets:   anyScope,
		Platforms: anyScope,
		Symptoms: []*regexp.Regexp{
			regexp.MustCompile(`(?i)EADDRINUSE`),
			regexp.MustCompile(`(?i)port \d+ is (already )?in use`),
			regexp.MustCompile(`(?i)address already in use`),
		},
		Explanation: "A previous dev server instance is still bound to the configured port, so the new one exits or silently picks another port the probe never reaches.",
		Steps: []string{
			"Kill the stale process holding the port (lsof -i :<port>)",
			"Or configure the toolchain to use a free port and update probe_url",
		},
	},
	{
		ID:        "dev-server-compile-failed",
		Title:     "Dev server build failed",
		Presets:   anyScope,
		Platforms: anyScope,
		Symptoms: []*regexp.Regexp{
			regexp.MustCompile(`(?i)devServerReady`),
			regexp.MustCompile(`(?i)(compile|build) (error|failed)`),
			regexp.MustCompile(`(?i)module not found`),
		},
		Explanation: "The toolchain never printed its ready banner, which almost always means the bundle failed to compile; the real error is in the captured dev-server output above the timeout.",
		Steps: []string{
			"Read the captured dev-server stderr in the diagnostics bundle for the compile error",
			"Run the dev command manually and fix the first reported error",
		},
	},
	{
		ID:        "launch-binary-missing",
		Title:     "Launch command not found",
		Presets:   anyScope,
		Platforms: anyScope,
		Symptoms: []*regexp.Regexp{
			regexp.MustCompile(`(?i)executable file not found`),
			regexp.MustCompile(`(?i)no such file or directory`),
			regexp.MustCompile(`(?i)ENOENT`),
		},
		Explanation: "The configured launch command does not resolve to an executable in the launch environment.",
		Steps: []string{
			"Check launch.command against the project layout (is the app built?)",
			"Ensure PATH inside the launch env includes the toolchain bin directory",
		},
	},
	{
		ID:        "renderer-blank-page",
		Title:     "Renderer stuck on blank page",
		Presets:   anyScope,
		Platforms: anyScope,
		Symptoms: []*regexp.Regexp{
			regexp.MustCompile(`(?i)rendererReady`),
			regexp.MustCompile(`(?i)about:blank`),
			regexp.MustCompile(`(?i)renderer URLs blank`),
		},
		Explanation: "A window exists but never navigated off about:blank, typically a failed loadURL to the dev server or a renderer crash on first paint.",
		Steps: []string{
			"Confirm the dev server URL the main process loads matches the running server",
			"Look for renderer crash lines (Renderer process crashed) in captured output",
		},
	},
	{
		ID:        "stale-singleton-lock",
		Title:     "Stale single-instance lock",
		Presets:   []string{"electron-builder", "electron-vite", "electron-forge-webpack"},
		Platforms: anyScope,
		Symptoms: []*regexp.Regexp{
			regexp.MustCompile(`(?i)process not alive`),
			regexp.MustCompile(`(?i)second instance`),
		},
		Explanation: "Apps using requestSingleInstanceLock exit immediately when a previous instance (or its stale lock) is present, which shows up as a pid that dies right after spawn.",
		Steps: []string{
			"Quit any running instance of the app before launching",
			"Remove the stale lock under the app's userData directory",
		},
	},
}

// Catalog returns the built-in playbooks in match-priority order.
func Catalog() []domain.FailurePlaybook {
	out := make([]domain.FailurePlaybook, len(catalog))
	copy(out, catalog)
	return out
}
