// Package validator holds the pure input checks used by the dialogue engine.
package validator

import (
	"regexp"
	"strings"
)

var (
	emailPattern   = regexp.MustCompile(`(?i)^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	addressPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{40}$`)
	listSeparators = regexp.MustCompile(`[\s,;]+`)
)

// IsValidEmail performs a syntax-only check: local@domain with a dotted domain
// and no whitespace. Surrounding spaces are ignored.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsValidAddress reports whether s is "0x" followed by exactly 40 hex digits.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddress trims and lower-cases an address.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseAddressList splits raw on commas, semicolons and whitespace and
// partitions the tokens into valid and invalid entries, deduplicated
// case-insensitively. Valid entries are lower-cased; invalid ones keep the
// spelling they were typed with. Both slices keep first-seen order.
func ParseAddressList(raw string) (valid, invalid []string) {
	seen := make(map[string]bool)
	for _, part := range listSeparators.Split(raw, -1) {
		token := strings.TrimSpace(part)
		key := strings.ToLower(token)
		if token == "" || seen[key] {
			continue
		}
		seen[key] = true
		if IsValidAddress(key) {
			valid = append(valid, key)
		} else {
			invalid = append(invalid, token)
		}
	}
	return valid, invalid
}
