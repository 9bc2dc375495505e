package core

import "regexp"

// identifierPattern matches the catalog identifier shape: a UUID-style
// 8-4-4-4-12 hex body followed by an 8-hex suffix group, case-insensitive.
var identifierPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}-[0-9a-f]{8}$`)

// ValidateIdentifier reports whether raw is a structurally valid record
// identifier. Pure check, no side effects; callers reject with a client error
// before any store lookup when it fails.
func ValidateIdentifier(raw string) bool {
	return identifierPattern.MatchString(raw)
}
