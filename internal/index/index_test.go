package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateSkipsExisting(t *testing.T) {
	existing := NewSet("i", "j", "l")

	ix, next, err := Allocate(existing, 0)
	require.NoError(t, err)
	assert.Equal(t, Index("k"), ix)
	assert.Equal(t, 3, next)

	// Resuming from next must not hand out the same symbol again.
	ix2, _, err := Allocate(existing, next)
	require.NoError(t, err)
	assert.Equal(t, Index("m"), ix2)
}

func TestAllocateDeterministic(t *testing.T) {
	existing := NewSet("i", "k", "p")
	a, posA, errA := Allocate(existing, 0)
	b, posB, errB := Allocate(existing, 0)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
	assert.Equal(t, posA, posB)
}

func TestAllocateExhaustion(t *testing.T) {
	existing := NewSet(Alphabet...)
	_, _, err := Allocate(existing, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlphabetExhausted))

	// Exhaustion also hits when the start position is past the end.
	_, _, err = Allocate(NewSet(), len(Alphabet))
	assert.True(t, errors.Is(err, ErrAlphabetExhausted))
}

func TestAllocateManyPairwiseDistinct(t *testing.T) {
	existing := NewSet("i", "j")
	got, next, err := AllocateMany(existing, 0, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []Index{"k", "l", "m", "n"}, got)
	assert.Equal(t, 6, next)

	seen := NewSet()
	for _, ix := range got {
		assert.False(t, existing.Has(ix), "allocated symbol %q present in existing set", ix)
		assert.False(t, seen.Has(ix), "symbol %q allocated twice", ix)
		seen.Add(ix)
	}
}

func TestAllocateManyExhaustion(t *testing.T) {
	_, _, err := AllocateMany(NewSet(), 0, len(Alphabet)+1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlphabetExhausted))
}

func TestReplacementsForCollisionsOnly(t *testing.T) {
	existing := NewSet("i", "j", "k")
	repl, err := ReplacementsFor(existing, []Index{"j", "q"})
	require.NoError(t, err)

	// q does not collide, so it keeps its name.
	_, ok := repl["q"]
	assert.False(t, ok)

	fresh, ok := repl["j"]
	require.True(t, ok)
	assert.NotEqual(t, Index("j"), fresh)
	assert.False(t, existing.Has(fresh))
	assert.NotEqual(t, Index("q"), fresh, "replacement must avoid other candidates")
}

func TestReplacementsForNeverSelfMaps(t *testing.T) {
	existing := NewSet(Alphabet[:6]...) // i..n
	repl, err := ReplacementsFor(existing, []Index{"i", "j", "k"})
	require.NoError(t, err)
	require.Len(t, repl, 3)

	chosen := NewSet()
	for from, to := range repl {
		assert.NotEqual(t, from, to)
		assert.False(t, existing.Has(to))
		assert.False(t, chosen.Has(to), "replacement %q chosen twice", to)
		chosen.Add(to)
	}
}

func TestReplacementsForDeterministic(t *testing.T) {
	existing := NewSet("i", "p")
	candidates := []Index{"i", "p", "w"}
	a, err := ReplacementsFor(existing, candidates)
	require.NoError(t, err)
	b, err := ReplacementsFor(existing, candidates)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPosition(t *testing.T) {
	assert.Equal(t, 0, Position("i"))
	assert.Equal(t, len(Alphabet)-1, Position("e"))
	assert.Equal(t, -1, Position("x"))
}
