package grad

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
	"github.com/einsgrad-ml/einsgrad/internal/rules"
)

func mustEquation(t *testing.T, src string) *expr.Eq {
	t.Helper()
	eq, err := expr.ParseEquation(src)
	require.NoError(t, err)
	return eq
}

func TestDifferentiateElementwiseAdd(t *testing.T) {
	e := NewEngine(Config{})
	eq := mustEquation(t, "z[i] = add(x[i], y[i])")

	d, err := e.Differentiate(eq, "x")
	require.NoError(t, err)

	// The derivative is the multiplicative identity gated by a guard tying
	// the numerator index to the denominator index.
	assert.Equal(t, "z", d.Num().Name)
	assert.Equal(t, "x", d.Den().Name)
	assert.Equal(t, "1", d.Body().String())
	require.Len(t, d.Guards(), 1)
	g := d.Guards()[0]
	assert.Equal(t, index.Index("i"), g.L)
	assert.Equal(t, d.DenIndices()[0], g.R)
	assert.Equal(t, "dz[i]/dx[j] = delta[i, j]", d.String())
}

func TestDifferentiateMatvec(t *testing.T) {
	e := NewEngine(Config{})
	eq := mustEquation(t, "z[i] = mul(w[i, j], x[j])")

	dx, err := e.Differentiate(eq, "x")
	require.NoError(t, err)
	assert.Equal(t, "dz[i]/dx[k] = w[i, k]", dx.String())

	dw, err := e.Differentiate(eq, "w")
	require.NoError(t, err)
	assert.Equal(t, "dz[i]/dw[k, l] = mul(x[l], delta[i, k])", dw.String())
}

func TestDifferentiateDivQuotientRule(t *testing.T) {
	e := NewEngine(Config{})
	eq := mustEquation(t, "z[i] = div(x[i], y[i])")

	dy, err := e.Differentiate(eq, "y")
	require.NoError(t, err)
	assert.Equal(t,
		"dz[i]/dy[j] = mul(neg(div(x[i], mul(y[i], y[i]))), delta[i, j])",
		dy.String())
}

func TestDifferentiatePowLiteralExponent(t *testing.T) {
	e := NewEngine(Config{})
	eq := mustEquation(t, "z[i] = pow(x[i], 3)")

	d, err := e.Differentiate(eq, "x")
	require.NoError(t, err)
	assert.Equal(t, "dz[i]/dx[j] = mul(3, pow(x[i], 2), delta[i, j])", d.String())
}

func TestDifferentiateArgNotFound(t *testing.T) {
	e := NewEngine(Config{})
	eq := mustEquation(t, "z[i] = add(x[i], y[i])")

	_, err := e.Differentiate(eq, "q")
	assert.ErrorIs(t, err, ErrArgNotFound)

	_, err = e.DifferentiatePos(eq, 5)
	assert.ErrorIs(t, err, ErrArgNotFound)
}

func TestDifferentiateBadEquation(t *testing.T) {
	e := NewEngine(Config{})

	_, err := e.Differentiate(mustEquation(t, "z[i] = x[i]"), "x")
	assert.ErrorIs(t, err, ErrBadEquation)

	_, err = e.Differentiate(expr.NewEq(expr.NewLit(1), expr.NewCall("neg", expr.NewVar("x"))), "x")
	assert.ErrorIs(t, err, ErrBadEquation)
}

func TestDifferentiateUnknownOperator(t *testing.T) {
	e := NewEngine(Config{})
	eq := mustEquation(t, "z[i] = softmax(x[i])")

	_, err := e.Differentiate(eq, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, rules.ErrNoScalarRule)
}

func TestPromotionCachesPerShape(t *testing.T) {
	e := NewEngine(Config{})
	eq := mustEquation(t, "z[i] = add(x[i], y[i])")

	for n := 0; n < 3; n++ {
		_, err := e.Differentiate(eq, "x")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, e.Registry().Size(), "repeated identical shapes must reuse the cached rule")

	// An alpha-renamed copy of the same shape rehits the cache.
	renamed := mustEquation(t, "c[p] = add(a[p], b[p])")
	d, err := e.Differentiate(renamed, "a")
	require.NoError(t, err)
	assert.Equal(t, "dc[p]/da[j] = delta[p, j]", d.String())
	assert.Equal(t, 1, e.Registry().Size())

	// The other position is its own key.
	_, err = e.Differentiate(eq, "y")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Registry().Size())

	// A genuinely different index structure promotes again.
	diag, err := e.Differentiate(mustEquation(t, "z[i] = add(x[i], y[i, i])"), "x")
	require.NoError(t, err)
	assert.NotNil(t, diag)
	assert.Equal(t, 3, e.Registry().Size())
}

func TestConcurrentPromotionCollapses(t *testing.T) {
	e := NewEngine(Config{})
	eq := mustEquation(t, "z[i] = mul(x[i], y[i])")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Differentiate(eq, "x"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, e.Registry().Size(), "concurrent first misses must share one promotion")
}

func TestCustomScalarSource(t *testing.T) {
	src := rules.DefaultSource()
	src.Register(&rules.ScalarRule{
		Op: "square", Arity: 1, Pos: 0,
		Template: expr.NewCall("mul", expr.NewLit(2), expr.NewVar(rules.ArgPlaceholder(0))),
	})
	e := NewEngine(Config{Source: src})

	d, err := e.Differentiate(mustEquation(t, "z[i] = square(x[i])"), "x")
	require.NoError(t, err)
	assert.Equal(t, "dz[i]/dx[j] = mul(2, x[i], delta[i, j])", d.String())
}
