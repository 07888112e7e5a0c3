package authz

import "strings"

// Canonical returns the canonical form of an entity or action identifier:
// lowercase with hyphens folded to underscores. Every write and every
// lookup goes through this single function so that "voucher-details" and
// "voucher_details" always address the same catalog key.
func Canonical(identifier string) string {
	s := strings.ToLower(strings.TrimSpace(identifier))
	return strings.ReplaceAll(s, "-", "_")
}
