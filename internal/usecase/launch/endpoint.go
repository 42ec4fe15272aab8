package launch

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

// devtoolsBannerRe matches the banner Chromium-family processes print when
// remote debugging is enabled. Scanning raw output for it is a known
// fragility: an echoed URL in unrelated log lines also matches. The last
// match wins, on the assumption the most recent banner belongs to the
// current process.
var devtoolsBannerRe = regexp.MustCompile(`DevTools listening on (ws://\S+)`)

// remoteDebuggingPortRe extracts the port from a launch argument.
var remoteDebuggingPortRe = regexp.MustCompile(`^--remote-debugging-port=(\d+)$`)

// DeriveEndpoint determines the protocol endpoint for an attach fallback,
// in priority order: an explicit override, a --remote-debugging-port launch
// argument, a DevTools banner in the captured output. Pure function.
func DeriveEndpoint(override string, args []string, output string) (string, bool) {
	if override != "" {
		return override, true
	}

	for _, arg := range args {
		if m := remoteDebuggingPortRe.FindStringSubmatch(arg); m != nil {
			port, err := strconv.Atoi(m[1])
			if err == nil && port > 0 {
				return fmt.Sprintf("http://127.0.0.1:%d", port), true
			}
		}
	}

	if matches := devtoolsBannerRe.FindAllStringSubmatch(output, -1); len(matches) > 0 {
		return matches[len(matches)-1][1], true
	}

	return "", false
}

// VerifyEndpoint checks that a derived ws:// endpoint accepts a websocket
// handshake before the driver commits to attaching, so a bogus
// regex-derived URL fails fast with a useful error. Non-websocket endpoints
// (http bases resolved later via /json/version) are not probed here.
func VerifyEndpoint(ctx context.Context, endpoint string, timeout time.Duration) error {
	if !strings.HasPrefix(endpoint, "ws://") && !strings.HasPrefix(endpoint, "wss://") {
		return nil
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("verify endpoint %s: %w", endpoint, err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
	return nil
}
