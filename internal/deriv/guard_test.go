package deriv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/einsgrad-ml/einsgrad/internal/index"
)

func TestReduceEqualitiesSubstitutesFreeSymbols(t *testing.T) {
	pairs := []Guard{{"i", "p"}, {"p", "q"}}
	subst, residual := ReduceEqualities(pairs, index.NewSet("i"))

	assert.Empty(t, residual)
	assert.Equal(t, map[index.Index]index.Index{"p": "i", "q": "i"}, subst)
}

func TestReduceEqualitiesKeepsProtectedPairs(t *testing.T) {
	pairs := []Guard{{"i", "j"}}
	subst, residual := ReduceEqualities(pairs, index.NewSet("i", "j"))

	assert.Empty(t, subst)
	assert.Equal(t, []Guard{{"i", "j"}}, residual)
}

func TestReduceEqualitiesMixedClass(t *testing.T) {
	// i = p and p = j with i, j protected: p folds onto i, and the i = j
	// equality must survive as a residual guard.
	pairs := []Guard{{"i", "p"}, {"p", "j"}}
	subst, residual := ReduceEqualities(pairs, index.NewSet("i", "j"))

	assert.Equal(t, map[index.Index]index.Index{"p": "i"}, subst)
	assert.Equal(t, []Guard{{"i", "j"}}, residual)
}

func TestReduceEqualitiesIdempotent(t *testing.T) {
	pairs := []Guard{{"i", "p"}, {"p", "j"}, {"k", "q"}}
	protected := index.NewSet("i", "j", "k")

	subst, residual := ReduceEqualities(pairs, protected)

	// Reapplying to the residual is a no-op.
	again, residual2 := ReduceEqualities(residual, protected)
	assert.Empty(t, again)
	assert.Equal(t, residual, residual2)

	// The substitution resolves every original pair: after substitution a
	// pair is either trivial or one of the residual guards.
	apply := func(ix index.Index) index.Index {
		if to, ok := subst[ix]; ok {
			return to
		}
		return ix
	}
	inResidual := func(g Guard) bool {
		for _, r := range residual {
			if r == g || (r.L == g.R && r.R == g.L) {
				return true
			}
		}
		return false
	}
	for _, p := range pairs {
		got := Guard{L: apply(p.L), R: apply(p.R)}
		assert.True(t, got.L == got.R || inResidual(got),
			"pair %v reduced to %v, neither trivial nor residual", p, got)
	}
}

func TestReduceEqualitiesDeduplicates(t *testing.T) {
	pairs := []Guard{{"i", "j"}, {"j", "i"}, {"i", "j"}}
	_, residual := ReduceEqualities(pairs, index.NewSet("i", "j"))
	assert.Equal(t, []Guard{{"i", "j"}}, residual)
}

func TestGuardExpr(t *testing.T) {
	g := Guard{L: "i", R: "j"}
	assert.Equal(t, "delta[i, j]", g.String())
}
