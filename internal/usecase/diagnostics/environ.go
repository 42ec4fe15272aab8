package diagnostics

import (
	"os"
	"regexp"
	"strings"
)

const redacted = "[redacted]"

// denyPatterns match environment keys that are always redacted, regardless
// of any caller allowlist.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)token`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)passw(or)?d`),
	regexp.MustCompile(`(?i)credential`),
	regexp.MustCompile(`(?i)(api|private|access|session)[_-]?key`),
	regexp.MustCompile(`(?i)auth`),
	regexp.MustCompile(`(?i)cookie`),
	regexp.MustCompile(`(?i)^aws_`),
}

// defaultAllow are non-sensitive keys always worth having in a bundle.
var defaultAllow = []string{
	"PATH", "HOME", "SHELL", "TERM", "USER", "LANG", "PWD",
	"DISPLAY", "WAYLAND_DISPLAY", "XDG_SESSION_TYPE",
	"NODE_ENV", "ELECTRON_*", "npm_lifecycle_event",
	"CI", "GOOS", "TMPDIR",
}

// SanitizeEnvironment reduces a raw environ (KEY=VALUE strings) to a map
// safe to embed in diagnostics. Keys matching a deny pattern appear with a
// redacted value; keys covered by the default or caller allowlists keep
// their values; everything else is omitted entirely. Deny always wins:
// an allowlisted key that looks secret-like is still redacted.
func SanitizeEnvironment(environ []string, allow []string) map[string]string {
	out := make(map[string]string)
	allowAll := append(append([]string(nil), defaultAllow...), allow...)

	for _, kv := range environ {
		eq := strings.IndexByte(kv, '=')
		if eq <= 0 {
			continue
		}
		key, val := kv[:eq], kv[eq+1:]

		if keyDenied(key) {
			out[key] = redacted
			continue
		}
		if keyAllowed(key, allowAll) {
			out[key] = val
		}
	}
	return out
}

func keyDenied(key string) bool {
	for _, re := range denyPatterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// keyAllowed matches exact keys and "PREFIX*" entries.
func keyAllowed(key string, allow []string) bool {
	for _, a := range allow {
		if prefix, ok := strings.CutSuffix(a, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
			continue
		}
		if key == a {
			return true
		}
	}
	return false
}

// osEnviron indirection for tests.
var osEnviron = os.Environ
