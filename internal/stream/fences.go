// Package stream implements the SSE wire format for verification events:
// frame encoding, chunk-boundary-safe decoding with code-fence stripping,
// and the relay hop that re-streams events between processes.
package stream

import "strings"

// StripFences removes a wrapping triple-backtick code fence from payload.
// Providers sometimes fence JSON responses; the inner payload is returned
// with surrounding whitespace removed. A payload that is not fenced is
// returned unchanged, which makes stripping idempotent.
func StripFences(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "```") {
		return payload
	}

	body := strings.TrimPrefix(trimmed, "```")
	// Drop the language tag on the opening fence line, if present.
	if idx := strings.IndexByte(body, '\n'); idx >= 0 && isFenceTag(body[:idx]) {
		body = body[idx+1:]
	} else if isFenceTag(body) {
		// Opening fence with tag and nothing else.
		return ""
	}
	body = strings.TrimSuffix(strings.TrimRight(body, " \t\n"), "```")
	return strings.TrimSpace(body)
}

// isFenceTag reports whether s looks like a fence language tag ("json",
// "go", "") rather than payload content.
func isFenceTag(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) > 16 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
