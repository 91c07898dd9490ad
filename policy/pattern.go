// Package policy implements the payment admission subsystem: glob pattern
// matching, sliding-window rate and spending ledgers, the shared state
// registry, the priority-ordered evaluation engine, and the static policy
// set validator.
package policy

import "strings"

// Match reports whether value matches a glob-style pattern. A pattern
// without "*" is literal equality; "*" alone matches anything, including the
// empty string. "prefix*" is a prefix test and "*suffix" a suffix test. A
// single interior "*" requires both ends and at least one character between
// them, so "ab" does not match "a*b". Patterns with several "*"s split into
// segments that must appear in order, the first anchored at the start unless
// the pattern begins with "*", the last anchored at the end unless it ends
// with "*".
func Match(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return pattern == value
	}

	segments := strings.Split(pattern, "*")

	// Single interior star: prefix*suffix.
	if len(segments) == 2 && segments[0] != "" && segments[1] != "" {
		prefix, suffix := segments[0], segments[1]
		return len(value) > len(prefix)+len(suffix) &&
			strings.HasPrefix(value, prefix) &&
			strings.HasSuffix(value, suffix)
	}

	pos := 0
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		switch {
		case i == 0:
			if !strings.HasPrefix(value, seg) {
				return false
			}
			pos = len(seg)
		case i == len(segments)-1:
			start := len(value) - len(seg)
			if start < pos || !strings.HasSuffix(value, seg) {
				return false
			}
			pos = len(value)
		default:
			idx := strings.Index(value[pos:], seg)
			if idx < 0 {
				return false
			}
			pos += idx + len(seg)
		}
	}
	return true
}

// MatchAny reports whether value matches any of the patterns. An empty
// pattern list matches everything.
func MatchAny(patterns []string, value string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if Match(p, value) {
			return true
		}
	}
	return false
}
