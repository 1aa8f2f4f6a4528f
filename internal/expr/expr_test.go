package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einsgrad-ml/einsgrad/internal/index"
)

func TestStringRendering(t *testing.T) {
	e := NewCall("mul", NewVar("w", "i", "j"), NewVar("x", "j"))
	assert.Equal(t, "mul(w[i, j], x[j])", e.String())

	eq := NewEq(NewVar("z", "i"), e)
	assert.Equal(t, "z[i] = mul(w[i, j], x[j])", eq.String())

	assert.Equal(t, "0.5", NewLit(0.5).String())
	assert.Equal(t, "-1", NewLit(-1).String())
	assert.Equal(t, "b", NewVar("b").String())
}

func TestEqual(t *testing.T) {
	a := NewCall("add", NewVar("x", "i"), NewLit(2))
	b := NewCall("add", NewVar("x", "i"), NewLit(2))
	c := NewCall("add", NewVar("x", "j"), NewLit(2))

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, NewVar("x", "i")))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}

func TestIndicesFirstAppearanceOrder(t *testing.T) {
	e := NewCall("mul", NewVar("w", "i", "j"), NewVar("x", "j", "k"), Delta("i", "l"))
	assert.Equal(t, []index.Index{"i", "j", "k", "l"}, Indices(e))
	assert.Empty(t, Indices(NewLit(3)))
}

func TestSubstituteIndicesDoesNotMutate(t *testing.T) {
	orig := NewCall("mul", NewVar("w", "i", "j"), NewVar("x", "j"))
	got := SubstituteIndices(orig, map[index.Index]index.Index{"j": "q"})

	assert.Equal(t, "mul(w[i, q], x[q])", got.String())
	assert.Equal(t, "mul(w[i, j], x[j])", orig.String(), "input must stay untouched")
}

func TestMulSimplification(t *testing.T) {
	x := NewVar("x", "i")
	y := NewVar("y", "i")

	assert.Equal(t, "mul(x[i], y[i])", Mul(x, y).String())
	assert.Equal(t, "x[i]", Mul(NewLit(1), x).String())
	assert.Equal(t, "0", Mul(x, NewLit(0), y).String())
	assert.Equal(t, "1", Mul().String())

	// Nested products are spliced, with literals folded to the front.
	nested := Mul(Mul(NewLit(2), x), NewLit(3), y)
	assert.Equal(t, "mul(6, x[i], y[i])", nested.String())
}

func TestAddSimplification(t *testing.T) {
	x := NewVar("x", "i")
	y := NewVar("y", "i")

	assert.Equal(t, "add(x[i], y[i])", Add(x, y).String())
	assert.Equal(t, "x[i]", Add(NewLit(0), x).String())
	assert.Equal(t, "0", Add().String())
	assert.Equal(t, "add(x[i], y[i], x[i])", Add(Add(x, y), x).String())
}

func TestMatchBarePlaceholder(t *testing.T) {
	pattern := NewCall("neg", NewVar("?a0"))
	subject := NewCall("neg", NewCall("mul", NewVar("x", "i"), NewVar("y", "i")))

	b, ok := Match(pattern, subject)
	require.True(t, ok)
	assert.True(t, Equal(b.Exprs["?a0"], subject.Args[0]))
}

func TestMatchIndexedPlaceholderAlphaRenaming(t *testing.T) {
	// Pattern recorded from a call written with i, j, k.
	pattern := NewCall("mul",
		NewVar("?a0", "i", "j"),
		NewVar("?a1", "j", "k"),
	)
	// Same shape written with a different alphabet.
	subject := NewCall("mul",
		NewVar("w", "p", "q"),
		NewVar("x", "q", "r"),
	)

	b, ok := Match(pattern, subject)
	require.True(t, ok)
	assert.Equal(t, index.Index("p"), b.Indices["i"])
	assert.Equal(t, index.Index("q"), b.Indices["j"])
	assert.Equal(t, index.Index("r"), b.Indices["k"])

	bound := b.Exprs["?a0"].(*Var)
	assert.Equal(t, "w", bound.Name)
}

func TestMatchRejectsDifferentIndexStructure(t *testing.T) {
	// i and j are distinct in the pattern; a subject reusing one symbol for
	// both positions is a different contraction shape.
	pattern := NewCall("mul", NewVar("?a0", "i", "j"), NewVar("?a1", "j", "k"))
	subject := NewCall("mul", NewVar("w", "p", "p"), NewVar("x", "p", "r"))

	_, ok := Match(pattern, subject)
	assert.False(t, ok)
}

func TestMatchLiteralAndArity(t *testing.T) {
	pattern := NewCall("pow", NewVar("?a0", "i"), NewLit(2))

	_, ok := Match(pattern, NewCall("pow", NewVar("x", "p"), NewLit(2)))
	assert.True(t, ok)

	_, ok = Match(pattern, NewCall("pow", NewVar("x", "p"), NewLit(3)))
	assert.False(t, ok)

	_, ok = Match(pattern, NewCall("pow", NewVar("x", "p", "q"), NewLit(2)))
	assert.False(t, ok, "indexed placeholder must respect arity")
}

func TestInstantiate(t *testing.T) {
	b := NewBindings()
	require.True(t, b.BindExpr("?a0", NewVar("w", "p", "q")))
	require.True(t, b.BindIndex("i", "p"))
	require.True(t, b.BindIndex("j", "q"))
	require.True(t, b.BindIndex("j2", "t"))

	tpl := NewCall("mul", NewVar("?a0", "i", "j"), Delta("j", "j2"))
	got, err := Instantiate(tpl, b)
	require.NoError(t, err)
	assert.Equal(t, "mul(w[p, q], delta[q, t])", got.String())
}

func TestInstantiateUnboundPlaceholder(t *testing.T) {
	_, err := Instantiate(NewVar("?r"), NewBindings())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnboundPlaceholder)
}

func TestParseRoundTrip(t *testing.T) {
	for _, src := range []string{
		"z[i] = mul(w[i, j], x[j])",
		"y = add(x, -2.5)",
		"g[i, j] = mul(dy_dx[i, j], delta[i, j2])",
		"s = exp(neg(t))",
	} {
		eq, err := ParseEquation(src)
		require.NoError(t, err, src)
		assert.Equal(t, src, eq.String())
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"mul(x,",
		"x[1]",
		"x[i] y",
		"= x",
		"x ] y",
	} {
		_, err := Parse(src)
		require.Error(t, err, "input %q", src)
		assert.ErrorIs(t, err, ErrSyntax, "input %q", src)
	}

	_, err := ParseEquation("mul(x, y)")
	assert.ErrorIs(t, err, ErrSyntax)
}
