// ABOUTME: Route-prefix allow-list for screens reachable without a session
// ABOUTME: Layered above the per-screen guard, not a replacement for it

package guard

import "strings"

// AllowList holds route prefixes that skip authentication and onboarding checks
type AllowList []string

// DefaultAllowList covers the entry screens
var DefaultAllowList = AllowList{"/onboarding", "/auth", "/splash", "/start"}

// Public reports whether path falls under one of the prefixes. Matching is on
// whole path segments: "/auth" covers "/auth/login" but not "/author".
func (a AllowList) Public(path string) bool {
	for _, prefix := range a {
		prefix = strings.TrimRight(prefix, "/")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
