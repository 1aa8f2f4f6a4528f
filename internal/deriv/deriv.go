// Package deriv implements the differential entity: a partial derivative of
// one indexed tensor variable with respect to another, written in indicial
// (Einstein-summation) form.
//
// An entity holds a numerator variable, a denominator variable, a body
// expression and a set of Kronecker guards. Semantically it states
//
//	d<num>[...] / d<den>[...] = body * delta[g.L, g.R] * ...
//
// with every body index outside the numerator and denominator implicitly
// summed. Entities are immutable values: constructors copy their inputs,
// accessors copy their outputs and every operation returns a new entity.
package deriv

import (
	"fmt"
	"strings"

	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// derivPrefix marks quotient variables in serialized derivative equations:
// the entity for dz/dx serializes with variables named dz and dx.
const derivPrefix = "d"

// TensorDeriv is a partial derivative in indicial notation.
type TensorDeriv struct {
	num    *expr.Var
	den    *expr.Var
	body   expr.Expr
	guards []Guard
}

// New builds an entity from its parts. Inputs are copied and must be
// non-nil; guards may be empty. The entity is recorded as given, without
// normalization, so templates whose numerator indices are not yet known keep
// their guards intact.
func New(num, den *expr.Var, body expr.Expr, guards ...Guard) *TensorDeriv {
	return &TensorDeriv{
		num:    expr.Clone(num).(*expr.Var),
		den:    expr.Clone(den).(*expr.Var),
		body:   expr.Clone(body),
		guards: append([]Guard(nil), guards...),
	}
}

// FromEquation reconstructs an entity from a derivative equation of the
// shape produced by Equation: the left side divides two derivative-prefixed
// variables and every top-level delta factor on the right side is recorded
// as a guard, the remaining factors forming the body.
func FromEquation(eq *expr.Eq) (*TensorDeriv, error) {
	if eq == nil {
		return nil, fmt.Errorf("%w: nil equation", ErrMalformedEquation)
	}
	quot, ok := eq.LHS.(*expr.Call)
	if !ok || quot.Op != "div" || len(quot.Args) != 2 {
		return nil, fmt.Errorf("%w: left side %s is not a quotient", ErrMalformedEquation, eq.LHS)
	}
	num, err := stripDerivPrefix(quot.Args[0])
	if err != nil {
		return nil, err
	}
	den, err := stripDerivPrefix(quot.Args[1])
	if err != nil {
		return nil, err
	}

	body, guards := splitGuards(eq.RHS)
	return New(num, den, body, guards...), nil
}

func stripDerivPrefix(e expr.Expr) (*expr.Var, error) {
	v, ok := e.(*expr.Var)
	if !ok {
		return nil, fmt.Errorf("%w: quotient part %s is not a variable", ErrMalformedEquation, e)
	}
	if len(v.Name) < 2 || !strings.HasPrefix(v.Name, derivPrefix) {
		return nil, fmt.Errorf("%w: variable %q lacks the %q derivative prefix", ErrMalformedEquation, v.Name, derivPrefix)
	}
	return expr.NewVar(strings.TrimPrefix(v.Name, derivPrefix), v.Indices...), nil
}

// splitGuards partitions the right side of a derivative equation into body
// factors and guard deltas. Only top-level multiplicands are inspected.
func splitGuards(rhs expr.Expr) (expr.Expr, []Guard) {
	factors := []expr.Expr{rhs}
	if mul, ok := rhs.(*expr.Call); ok && mul.Op == "mul" {
		factors = mul.Args
	}

	var body []expr.Expr
	var guards []Guard
	for _, f := range factors {
		if v, ok := f.(*expr.Var); ok && v.Name == expr.DeltaName && len(v.Indices) == 2 {
			guards = append(guards, Guard{L: v.Indices[0], R: v.Indices[1]})
			continue
		}
		body = append(body, f)
	}
	return expr.Mul(body...), guards
}

// Num returns a copy of the numerator variable.
func (d *TensorDeriv) Num() *expr.Var { return expr.Clone(d.num).(*expr.Var) }

// Den returns a copy of the denominator variable.
func (d *TensorDeriv) Den() *expr.Var { return expr.Clone(d.den).(*expr.Var) }

// Body returns a copy of the body expression.
func (d *TensorDeriv) Body() expr.Expr { return expr.Clone(d.body) }

// Guards returns a copy of the guard set.
func (d *TensorDeriv) Guards() []Guard { return append([]Guard(nil), d.guards...) }

// NumIndices returns the numerator's index sequence.
func (d *TensorDeriv) NumIndices() []index.Index {
	return append([]index.Index(nil), d.num.Indices...)
}

// DenIndices returns the denominator's index sequence.
func (d *TensorDeriv) DenIndices() []index.Index {
	return append([]index.Index(nil), d.den.Indices...)
}

// BoundIndices returns the union of numerator and denominator indices, in
// first-appearance order. These name the derivative's components and are
// never summed or renamed.
func (d *TensorDeriv) BoundIndices() []index.Index {
	var out []index.Index
	seen := index.NewSet()
	for _, ix := range d.num.Indices {
		if !seen.Has(ix) {
			seen.Add(ix)
			out = append(out, ix)
		}
	}
	for _, ix := range d.den.Indices {
		if !seen.Has(ix) {
			seen.Add(ix)
			out = append(out, ix)
		}
	}
	return out
}

// FreeIndices returns the body indices outside the bound set. Under the
// summation convention these are the contraction indices, and they are the
// ones renamed during composition to avoid capture.
func (d *TensorDeriv) FreeIndices() []index.Index {
	bound := index.NewSet(d.BoundIndices()...)
	var out []index.Index
	for _, ix := range expr.Indices(d.body) {
		if !bound.Has(ix) {
			out = append(out, ix)
		}
	}
	return out
}

// AllIndices returns every index mentioned by the entity: numerator,
// denominator, body, then guards, in first-appearance order.
func (d *TensorDeriv) AllIndices() []index.Index {
	var out []index.Index
	seen := index.NewSet()
	add := func(ixs []index.Index) {
		for _, ix := range ixs {
			if !seen.Has(ix) {
				seen.Add(ix)
				out = append(out, ix)
			}
		}
	}
	add(d.num.Indices)
	add(d.den.Indices)
	add(expr.Indices(d.body))
	for _, g := range d.guards {
		add([]index.Index{g.L, g.R})
	}
	return out
}

// IndexSet returns AllIndices as a collision set.
func (d *TensorDeriv) IndexSet() index.Set {
	return index.NewSet(d.AllIndices()...)
}

// rhs rebuilds the right side of the derivative equation, guards rendered as
// trailing delta factors.
func (d *TensorDeriv) rhs() expr.Expr {
	factors := make([]expr.Expr, 0, 1+len(d.guards))
	factors = append(factors, d.body)
	for _, g := range d.guards {
		factors = append(factors, g.Expr())
	}
	return expr.Mul(factors...)
}

// Equation serializes the entity to its derivative-equation tree, the
// syntactic inverse of FromEquation.
func (d *TensorDeriv) Equation() *expr.Eq {
	return expr.NewEq(
		expr.NewCall("div",
			expr.NewVar(derivPrefix+d.num.Name, d.num.Indices...),
			expr.NewVar(derivPrefix+d.den.Name, d.den.Indices...),
		),
		d.rhs(),
	)
}

// Flatten renders the quotient as a single composite variable, named after
// the serialized numerator and denominator and indexed by their concatenated
// index sequences. The result embeds into ordinary, non-quotient expressions
// such as generated gradient assignments.
func (d *TensorDeriv) Flatten() *expr.Var {
	ixs := make([]index.Index, 0, len(d.num.Indices)+len(d.den.Indices))
	ixs = append(ixs, d.num.Indices...)
	ixs = append(ixs, d.den.Indices...)
	return expr.NewVar(derivPrefix+d.num.Name+"_"+derivPrefix+d.den.Name, ixs...)
}

// FlatEquation renders the entity as an ordinary assignment to its flattened
// variable, e.g. "dz_dx[i, j] = delta[i, j]".
func (d *TensorDeriv) FlatEquation() *expr.Eq {
	return expr.NewEq(d.Flatten(), d.rhs())
}

func (d *TensorDeriv) String() string {
	return fmt.Sprintf("%s%s/%s%s = %s",
		derivPrefix, d.num, derivPrefix, d.den, d.rhs())
}

// Equal reports structural equality of two entities, including guard order.
// Normalize both sides first for an order-insensitive comparison.
func (d *TensorDeriv) Equal(other *TensorDeriv) bool {
	if other == nil {
		return false
	}
	if !expr.Equal(d.num, other.num) || !expr.Equal(d.den, other.den) || !expr.Equal(d.body, other.body) {
		return false
	}
	if len(d.guards) != len(other.guards) {
		return false
	}
	for i := range d.guards {
		if d.guards[i] != other.guards[i] {
			return false
		}
	}
	return true
}

// Normalize rewrites the entity into canonical form. Guard equalities are
// reduced with the bound indices protected: every eliminable symbol is
// substituted into the body and only equalities between distinct bound
// indices remain as guards, in canonical order. Called after every
// composition so guards never accumulate.
func (d *TensorDeriv) Normalize() *TensorDeriv {
	protected := index.NewSet(d.BoundIndices()...)
	subst, residual := ReduceEqualities(d.guards, protected)
	return &TensorDeriv{
		num:    expr.Clone(d.num).(*expr.Var),
		den:    expr.Clone(d.den).(*expr.Var),
		body:   expr.SubstituteIndices(d.body, subst),
		guards: residual,
	}
}

// substitute rewrites every index occurrence through repl, including the
// numerator and denominator. Used by composition, where whole entities move
// into a new index frame.
func (d *TensorDeriv) substitute(repl map[index.Index]index.Index) *TensorDeriv {
	guards := make([]Guard, len(d.guards))
	for i, g := range d.guards {
		guards[i] = Guard{L: substIndex(g.L, repl), R: substIndex(g.R, repl)}
	}
	return &TensorDeriv{
		num:    expr.SubstituteIndices(d.num, repl).(*expr.Var),
		den:    expr.SubstituteIndices(d.den, repl).(*expr.Var),
		body:   expr.SubstituteIndices(d.body, repl),
		guards: guards,
	}
}

func substIndex(ix index.Index, repl map[index.Index]index.Index) index.Index {
	if to, ok := repl[ix]; ok {
		return to
	}
	return ix
}
