package deriv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

func matvecDeriv(t *testing.T) *TensorDeriv {
	t.Helper()
	return New(
		expr.NewVar("z", "i"),
		expr.NewVar("x", "j"),
		expr.NewVar("w", "i", "j"),
	)
}

func TestAccessors(t *testing.T) {
	d := New(
		expr.NewVar("z", "i"),
		expr.NewVar("x", "j", "k"),
		expr.NewCall("mul", expr.NewVar("w", "i", "p"), expr.NewVar("u", "p", "j", "k")),
		Guard{"i", "j"},
	)

	assert.Equal(t, []index.Index{"i"}, d.NumIndices())
	assert.Equal(t, []index.Index{"j", "k"}, d.DenIndices())
	assert.Equal(t, []index.Index{"i", "j", "k"}, d.BoundIndices())
	assert.Equal(t, []index.Index{"p"}, d.FreeIndices())
	assert.Equal(t, []index.Index{"i", "j", "k", "p"}, d.AllIndices())
}

func TestAccessorCopiesDoNotAlias(t *testing.T) {
	d := matvecDeriv(t)

	num := d.Num()
	num.Name = "mangled"
	num.Indices[0] = "q"
	body := d.Body().(*expr.Var)
	body.Indices[0] = "q"

	assert.Equal(t, "z", d.Num().Name)
	assert.Equal(t, []index.Index{"i"}, d.NumIndices())
	assert.Equal(t, "w[i, j]", d.Body().String())
}

func TestStringAndFlatten(t *testing.T) {
	d := New(
		expr.NewVar("z", "i"),
		expr.NewVar("x", "j"),
		expr.NewLit(1),
		Guard{"i", "j"},
	)

	assert.Equal(t, "dz[i]/dx[j] = delta[i, j]", d.String())

	flat := d.Flatten()
	assert.Equal(t, "dz_dx", flat.Name)
	assert.Equal(t, []index.Index{"i", "j"}, flat.Indices)
	assert.Equal(t, "dz_dx[i, j] = delta[i, j]", d.FlatEquation().String())
}

func TestEquationRoundTrip(t *testing.T) {
	for _, d := range []*TensorDeriv{
		matvecDeriv(t),
		New(expr.NewVar("z", "i"), expr.NewVar("x", "j"), expr.NewLit(1), Guard{"i", "j"}),
		New(expr.NewVar("z", "i"), expr.NewVar("x", "j"),
			expr.NewCall("mul", expr.NewLit(2), expr.NewVar("w", "i", "j")),
			Guard{"i", "j"}),
		New(expr.NewVar("s"), expr.NewVar("x"), expr.NewLit(1)),
	} {
		got, err := FromEquation(d.Equation())
		require.NoError(t, err, d.String())
		assert.True(t, d.Equal(got), "round trip of %s gave %s", d, got)
	}
}

func TestFromEquationViaParser(t *testing.T) {
	eq, err := expr.ParseEquation("div(dz[i], dx[j]) = mul(w[i, j], delta[i, j])")
	require.NoError(t, err)

	d, err := FromEquation(eq)
	require.NoError(t, err)
	assert.Equal(t, "z", d.Num().Name)
	assert.Equal(t, "x", d.Den().Name)
	assert.Equal(t, "w[i, j]", d.Body().String())
	assert.Equal(t, []Guard{{"i", "j"}}, d.Guards())
}

func TestFromEquationMalformed(t *testing.T) {
	for _, src := range []string{
		"dz[i] = w[i, j]",                    // left side is not a quotient
		"div(dz[i], 2) = w[i, j]",            // denominator is not a variable
		"div(z[i], dx[j]) = w[i, j]",         // missing derivative prefix
		"div(d, dx[j]) = w[i, j]",            // prefix with empty name
		"div(dz[i], dx[j], dy[k]) = w[i, j]", // quotient with three parts
	} {
		eq, err := expr.ParseEquation(src)
		require.NoError(t, err, src)
		_, err = FromEquation(eq)
		assert.ErrorIs(t, err, ErrMalformedEquation, src)
	}
}

func TestNormalizeSubstitutesEliminableSymbols(t *testing.T) {
	// Guard p = j ties a body symbol to a bound index; normalization folds
	// it into the body and drops the guard.
	d := New(
		expr.NewVar("z", "i"),
		expr.NewVar("x", "j"),
		expr.NewVar("w", "i", "p"),
		Guard{"j", "p"},
	)
	n := d.Normalize()

	assert.Equal(t, "w[i, j]", n.Body().String())
	assert.Empty(t, n.Guards())
	assert.Equal(t, "dz[i]/dx[j] = w[i, j]", n.String())

	// The original is untouched.
	assert.Equal(t, "w[i, p]", d.Body().String())
	assert.Len(t, d.Guards(), 1)
}

func TestNormalizeKeepsBoundEqualities(t *testing.T) {
	d := New(
		expr.NewVar("z", "i"),
		expr.NewVar("x", "j"),
		expr.NewLit(1),
		Guard{"i", "j"},
	)
	n := d.Normalize()

	assert.Equal(t, []Guard{{"i", "j"}}, n.Guards())
	assert.Equal(t, "1", n.Body().String())
}

func TestNormalizeIdempotent(t *testing.T) {
	d := New(
		expr.NewVar("z", "i"),
		expr.NewVar("x", "j"),
		expr.NewCall("mul", expr.NewVar("a", "p"), expr.NewVar("b", "q")),
		Guard{"i", "p"}, Guard{"p", "j"}, Guard{"q", "q"},
	)
	once := d.Normalize()
	twice := once.Normalize()
	assert.True(t, once.Equal(twice), "normalize must be idempotent: %s vs %s", once, twice)
}
