// Package index manages the reserved alphabet of index symbols used in
// indicial (Einstein-summation) expressions.
//
// Index symbols are drawn from a fixed, finite, ordered alphabet. The order
// defines allocation priority: Allocate scans the alphabet left to right and
// returns the first symbol not already in use. Compositions of derivative
// entities allocate fresh symbols through this package to avoid index
// capture; running out of symbols is a hard resource limit, never a silent
// wraparound.
package index

import (
	"errors"
	"fmt"
)

// Index is an atomic index symbol from the reserved alphabet.
type Index string

// Alphabet is the fixed, ordered set of reserved index symbols. Symbols that
// commonly name variables, functions or literals (x, y, z, f, g, o) are
// deliberately excluded so generated code never shadows them.
var Alphabet = []Index{
	"i", "j", "k", "l", "m", "n",
	"p", "q", "r", "s", "t", "u", "v", "w",
	"a", "b", "c", "d", "e",
}

// ErrAlphabetExhausted is returned when an allocation cannot be satisfied
// because every alphabet symbol at or after the requested position is taken.
var ErrAlphabetExhausted = errors.New("index: alphabet exhausted")

// Set is a collision set of index symbols.
type Set map[Index]struct{}

// NewSet builds a Set from the given symbols.
func NewSet(indices ...Index) Set {
	s := make(Set, len(indices))
	for _, ix := range indices {
		s[ix] = struct{}{}
	}
	return s
}

// Has reports whether ix is in the set.
func (s Set) Has(ix Index) bool {
	_, ok := s[ix]
	return ok
}

// Add inserts the given symbols.
func (s Set) Add(indices ...Index) {
	for _, ix := range indices {
		s[ix] = struct{}{}
	}
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for ix := range s {
		c[ix] = struct{}{}
	}
	return c
}

// Position returns the alphabet position of ix, or -1 if ix is not a
// reserved symbol.
func Position(ix Index) int {
	for i, a := range Alphabet {
		if a == ix {
			return i
		}
	}
	return -1
}

// Less orders index symbols: alphabet members first in alphabet order, then
// everything else lexicographically. Gives canonical forms a stable layout.
func Less(a, b Index) bool {
	pa, pb := Position(a), Position(b)
	switch {
	case pa >= 0 && pb >= 0:
		return pa < pb
	case pa >= 0:
		return true
	case pb >= 0:
		return false
	default:
		return a < b
	}
}

// Allocate returns the first alphabet symbol at or after startPos that is
// absent from existing, together with the position to resume scanning from.
//
// The result is deterministic for identical inputs. When every symbol from
// startPos onward is in existing, Allocate fails with ErrAlphabetExhausted.
func Allocate(existing Set, startPos int) (Index, int, error) {
	if startPos < 0 {
		startPos = 0
	}
	for pos := startPos; pos < len(Alphabet); pos++ {
		if !existing.Has(Alphabet[pos]) {
			return Alphabet[pos], pos + 1, nil
		}
	}
	return "", startPos, fmt.Errorf("%w: no free symbol at or after position %d (alphabet size %d)",
		ErrAlphabetExhausted, startPos, len(Alphabet))
}

// AllocateMany allocates count symbols, threading the scan position forward
// so the results are pairwise distinct. Symbols are returned in allocation
// order along with the position to resume from.
func AllocateMany(existing Set, startPos, count int) ([]Index, int, error) {
	out := make([]Index, 0, count)
	pos := startPos
	for k := 0; k < count; k++ {
		ix, next, err := Allocate(existing, pos)
		if err != nil {
			return nil, pos, err
		}
		out = append(out, ix)
		pos = next
	}
	return out, pos, nil
}

// ReplacementsFor builds a renaming for candidates that collide with
// existing. Each colliding candidate maps to a freshly allocated symbol that
// is absent from existing, from every candidate, and from every replacement
// chosen earlier in the same call. Candidates without a collision get no
// entry (they keep their name), and a produced replacement is never the
// candidate itself.
func ReplacementsFor(existing Set, candidates []Index) (map[Index]Index, error) {
	pool := existing.Clone()
	pool.Add(candidates...)

	repl := make(map[Index]Index)
	pos := 0
	for _, c := range candidates {
		if _, done := repl[c]; done {
			continue
		}
		if !existing.Has(c) {
			continue
		}
		fresh, next, err := Allocate(pool, pos)
		if err != nil {
			return nil, fmt.Errorf("replacing index %q: %w", c, err)
		}
		pos = next
		pool.Add(fresh)
		repl[c] = fresh
	}
	return repl, nil
}
