// Copyright 2025 The Einsgrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package index provides the public API for tensor index symbols.
//
// Index symbols are the single-letter subscripts of indicial notation, drawn
// from a fixed ordered alphabet. The allocator hands out fresh symbols
// deterministically, which keeps derivative expressions reproducible across
// runs.
//
// Example:
//
//	existing := index.NewSet("i", "j")
//	fresh, _, _ := index.Allocate(existing, 0) // "k"
package index

import (
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// Index is a single tensor index symbol such as "i" or "j".
type Index = index.Index

// Set is an unordered collection of index symbols.
type Set = index.Set

// Alphabet is the ordered pool of symbols the allocator draws from.
var Alphabet = index.Alphabet

// ErrAlphabetExhausted is returned when no unused symbol remains.
var ErrAlphabetExhausted = index.ErrAlphabetExhausted

// NewSet builds a set from the given symbols.
func NewSet(indices ...Index) Set {
	return index.NewSet(indices...)
}

// Position returns ix's position in the alphabet, or -1 when it is not an
// alphabet symbol.
func Position(ix Index) int {
	return index.Position(ix)
}

// Less orders symbols by alphabet position, with non-alphabet symbols after
// all alphabet ones in lexicographic order.
func Less(a, b Index) bool {
	return index.Less(a, b)
}

// Allocate returns the first alphabet symbol at or after startPos that is
// not in existing, along with the position to resume scanning from.
func Allocate(existing Set, startPos int) (Index, int, error) {
	return index.Allocate(existing, startPos)
}

// AllocateMany allocates count pairwise-distinct fresh symbols.
func AllocateMany(existing Set, startPos, count int) ([]Index, int, error) {
	return index.AllocateMany(existing, startPos, count)
}

// ReplacementsFor maps each candidate that collides with existing to a fresh
// symbol. Replacements avoid existing, the candidates themselves, and each
// other, and a symbol is never mapped to itself.
func ReplacementsFor(existing Set, candidates []Index) (map[Index]Index, error) {
	return index.ReplacementsFor(existing, candidates)
}
