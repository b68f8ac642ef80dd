// Package middleware provides HTTP middleware for the service layer.
package middleware

import (
	"regexp"
)

// Common validation patterns used when a caller-supplied identifier needs a
// format check before it is looked up (hex owner addresses, UUID instance
// ids) rather than a full round-trip to find out it was never valid.
var (
	UUIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	HexRegex  = regexp.MustCompile(`^(0x)?[0-9a-fA-F]+$`)
)

// IsValidUUID checks if the input is a valid UUID.
func IsValidUUID(uuid string) bool {
	return UUIDRegex.MatchString(uuid)
}

// IsValidHex checks if the input is valid hexadecimal.
func IsValidHex(hex string) bool {
	return HexRegex.MatchString(hex)
}
