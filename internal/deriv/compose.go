package deriv

import (
	"fmt"

	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// ReindexToMatch prepares d2 for chain composition after d1. The
// precondition is that d1's denominator variable is d2's numerator variable.
// d2's numerator indices are identified position-for-position with d1's
// denominator indices, so the shared contraction is written with one set of
// symbols, and every other index of d2 is renamed away from all of d1's
// indices. Returns d1 untouched alongside the renamed d2.
func ReindexToMatch(d1, d2 *TensorDeriv) (*TensorDeriv, *TensorDeriv, error) {
	if d1.den.Name != d2.num.Name {
		return nil, nil, fmt.Errorf("%w: denominator %q does not feed numerator %q",
			ErrNotChainable, d1.den.Name, d2.num.Name)
	}
	if len(d1.den.Indices) != len(d2.num.Indices) {
		return nil, nil, fmt.Errorf("%w: denominator %s and numerator %s differ in arity",
			ErrNotChainable, d1.den, d2.num)
	}

	repl := make(map[index.Index]index.Index, len(d2.num.Indices))
	for p, from := range d2.num.Indices {
		to := d1.den.Indices[p]
		if prev, ok := repl[from]; ok && prev != to {
			return nil, nil, fmt.Errorf("%w: numerator index %q would be identified with both %q and %q",
				ErrNotChainable, from, prev, to)
		}
		repl[from] = to
	}

	existing := d1.IndexSet()
	var candidates []index.Index
	for _, ix := range d2.AllIndices() {
		if _, mapped := repl[ix]; !mapped {
			candidates = append(candidates, ix)
		}
	}
	fresh, err := index.ReplacementsFor(existing, candidates)
	if err != nil {
		return nil, nil, fmt.Errorf("reindexing %s after %s: %w", d2, d1, err)
	}
	for from, to := range fresh {
		repl[from] = to
	}
	return d1, d2.substitute(repl), nil
}

// Chain composes two derivatives by the chain rule: for d = dA/dB and
// other = dB/dC the result is dA/dC, with the contraction over B's indices
// left implicit through the repeated-index convention. The denominator of d
// must be the numerator variable of other.
func (d *TensorDeriv) Chain(other *TensorDeriv) (*TensorDeriv, error) {
	_, renamed, err := ReindexToMatch(d, other)
	if err != nil {
		return nil, err
	}
	body := expr.Mul(d.paddedBody(), renamed.paddedBody())
	guards := append(d.Guards(), renamed.guards...)
	return New(d.num, renamed.den, body, guards...).Normalize(), nil
}

// paddedBody returns the body extended with an all-ones factor over every
// bound index that neither the body nor the guards mention. Without the
// factor, a body that collapses to a literal would hide the summation that
// the repeated-index convention is supposed to carry.
func (d *TensorDeriv) paddedBody() expr.Expr {
	present := expr.IndexSet(d.body)
	for _, g := range d.guards {
		present.Add(g.L, g.R)
	}
	var missing []index.Index
	for _, ix := range d.BoundIndices() {
		if !present.Has(ix) {
			missing = append(missing, ix)
		}
	}
	if len(missing) == 0 {
		return d.Body()
	}
	return expr.Mul(d.Body(), expr.Ones(missing...))
}

// Sum composes two derivatives of the same quotient by the sum rule, adding
// the contributions that reach the denominator along different paths. Both
// entities must share numerator and denominator variable names and arities;
// other is aligned positionally onto d's bound indices first, and its
// remaining indices are renamed away from d's.
func (d *TensorDeriv) Sum(other *TensorDeriv) (*TensorDeriv, error) {
	if d.num.Name != other.num.Name || d.den.Name != other.den.Name {
		return nil, fmt.Errorf("%w: %s and %s are derivatives of different quotients",
			ErrNotSummable, d, other)
	}
	if len(d.num.Indices) != len(other.num.Indices) || len(d.den.Indices) != len(other.den.Indices) {
		return nil, fmt.Errorf("%w: %s and %s differ in arity", ErrNotSummable, d, other)
	}

	repl := make(map[index.Index]index.Index)
	align := func(from, to []index.Index) error {
		for p := range from {
			if prev, ok := repl[from[p]]; ok && prev != to[p] {
				return fmt.Errorf("%w: index %q would be aligned with both %q and %q",
					ErrNotSummable, from[p], prev, to[p])
			}
			repl[from[p]] = to[p]
		}
		return nil
	}
	if err := align(other.num.Indices, d.num.Indices); err != nil {
		return nil, err
	}
	if err := align(other.den.Indices, d.den.Indices); err != nil {
		return nil, err
	}

	existing := d.IndexSet()
	var candidates []index.Index
	for _, ix := range other.AllIndices() {
		if _, mapped := repl[ix]; !mapped {
			candidates = append(candidates, ix)
		}
	}
	fresh, err := index.ReplacementsFor(existing, candidates)
	if err != nil {
		return nil, fmt.Errorf("aligning %s with %s: %w", other, d, err)
	}
	for from, to := range fresh {
		repl[from] = to
	}

	aligned := other.substitute(repl)
	body := expr.Add(d.Body(), aligned.body)
	guards := append(d.Guards(), aligned.guards...)
	return New(d.num, aligned.den, body, guards...).Normalize(), nil
}
