// Package discovery implements the campaign-level discovery loop of spec
// §4.8 and the subsumption cache of §4.9.
package discovery

import (
	"sort"

	"anica/internal/abstraction"
)

// Cache is the discovery loop's subsumption set from spec §4.9: accepted
// abstract blocks indexed by length, so a query only has to scan blocks of
// the same length as the candidate.
type Cache struct {
	byLength map[int][]*abstraction.Block
}

// NewCache returns an empty subsumption cache.
func NewCache() *Cache {
	return &Cache{byLength: make(map[int][]*abstraction.Block)}
}

// Add accepts ab into the cache, updating the set immediately so later
// queries in the same batch see it (spec §5: "acceptance of a new
// discovery updates the subsumption set immediately so later blocks in the
// same batch see it").
func (c *Cache) Add(ab *abstraction.Block) {
	c.byLength[ab.Len()] = append(c.byLength[ab.Len()], ab)
}

// Len returns the number of accepted discoveries across all lengths.
func (c *Cache) Len() int {
	n := 0
	for _, blocks := range c.byLength {
		n += len(blocks)
	}
	return n
}

// Discoveries returns every accepted discovery, in acceptance order within
// each length group (length groups are visited in ascending order).
func (c *Cache) Discoveries() []*abstraction.Block {
	var out []*abstraction.Block
	lengths := make([]int, 0, len(c.byLength))
	for n := range c.byLength {
		lengths = append(lengths, n)
	}
	sort.Ints(lengths)
	for _, n := range lengths {
		out = append(out, c.byLength[n]...)
	}
	return out
}

// SubsumedByConcrete reports whether any cached discovery of ab's length
// subsumes ab, the most precise abstract lift of a concrete block (every
// feature a singleton, every aliasing pair must/must-not, as
// abstraction.FromConcrete builds it; the caller does the lifting) — spec
// §4.9's concrete-in-abstract point-check, expressed as ordinary abstract
// subsumption, which is pointwise per feature and per aliasing pair by
// construction.
func (c *Cache) SubsumedByConcrete(ab *abstraction.Block) bool {
	for _, discovery := range c.byLength[ab.Len()] {
		if discovery.Subsumes(ab) {
			return true
		}
	}
	return false
}

// SubsumedByAny reports whether any cached discovery subsumes candidate —
// spec §4.9's abstract-in-abstract pointwise subsumption, used when
// importing prior discoveries.
func (c *Cache) SubsumedByAny(candidate *abstraction.Block) bool {
	for _, discovery := range c.byLength[candidate.Len()] {
		if discovery.Subsumes(candidate) {
			return true
		}
	}
	return false
}
