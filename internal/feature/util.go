package feature

import "sort"

// sortedStrings returns ss sorted, so JSON array serialization (spec §6.1)
// is deterministic and round-trips byte-identically.
func sortedStrings(ss []string) []string {
	sort.Strings(ss)
	return ss
}
