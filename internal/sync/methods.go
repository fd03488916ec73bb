package sync

import "strings"

// Notification methods carrying incremental item deltas arrive in bursts and
// use the short debounce tier.
func isDeltaMethod(method string) bool {
	return strings.Contains(strings.ToLower(method), "/delta")
}

// Server-initiated request methods the engine acknowledges. Anything else is
// rejected.
var knownRequestMethods = map[string]struct{}{
	"client/ping":         {},
	"client/capabilities": {},
}

func isKnownRequestMethod(method string) bool {
	_, ok := knownRequestMethods[strings.TrimSpace(method)]
	return ok
}
