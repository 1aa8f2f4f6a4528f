// Copyright 2025 The Einsgrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package expr provides the public API for tensor expressions in indicial
// notation.
//
// An expression is a literal, an indexed variable, an operator call, or an
// equation. Variables whose names begin with '?' are placeholders used by
// the rules engine to match call shapes and instantiate derivative
// templates.
//
// Example:
//
//	eq, _ := expr.ParseEquation("z[i] = mul(w[i, j], x[j])")
//	fmt.Println(eq.RHS.Kind()) // call
package expr

import (
	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// Expr is a tensor expression node.
type Expr = expr.Expr

// Kind discriminates the expression variants.
type Kind = expr.Kind

// Expression kinds.
const (
	KindLit  Kind = expr.KindLit
	KindVar  Kind = expr.KindVar
	KindCall Kind = expr.KindCall
	KindEq   Kind = expr.KindEq
)

// Lit is a numeric literal.
type Lit = expr.Lit

// Var is a named tensor with an ordered index list.
type Var = expr.Var

// Call applies a scalar operator elementwise to its arguments.
type Call = expr.Call

// Eq is an assignment of a right-hand expression to a left-hand variable.
type Eq = expr.Eq

// Bindings accumulates the placeholder and index assignments produced by a
// pattern match.
type Bindings = expr.Bindings

// Reserved tensor names.
const (
	// DeltaName is the Kronecker delta: 1 where both indices agree, else 0.
	DeltaName = expr.DeltaName
	// OnesName is an all-ones tensor that keeps reduction indices visible.
	OnesName = expr.OnesName
)

// ErrSyntax is returned by the parser for malformed input.
var ErrSyntax = expr.ErrSyntax

// ErrUnboundPlaceholder is returned by Instantiate when a template mentions
// a placeholder the bindings do not cover.
var ErrUnboundPlaceholder = expr.ErrUnboundPlaceholder

// NewLit builds a literal.
func NewLit(v float64) *Lit { return expr.NewLit(v) }

// NewVar builds an indexed variable.
func NewVar(name string, indices ...index.Index) *Var {
	return expr.NewVar(name, indices...)
}

// NewCall builds an operator call.
func NewCall(op string, args ...Expr) *Call {
	return expr.NewCall(op, args...)
}

// NewEq builds an equation.
func NewEq(lhs, rhs Expr) *Eq { return expr.NewEq(lhs, rhs) }

// IsPlaceholder reports whether name denotes a pattern placeholder.
func IsPlaceholder(name string) bool { return expr.IsPlaceholder(name) }

// Parse parses a single expression.
func Parse(src string) (Expr, error) { return expr.Parse(src) }

// ParseEquation parses a "lhs = rhs" line.
func ParseEquation(src string) (*Eq, error) { return expr.ParseEquation(src) }

// Delta builds the Kronecker delta over two indices.
func Delta(l, r index.Index) *Var { return expr.Delta(l, r) }

// Ones builds an all-ones tensor over the given indices.
func Ones(indices ...index.Index) *Var { return expr.Ones(indices...) }

// Mul multiplies factors, splicing nested products and folding literals.
// Zero annihilates and the empty product is 1.
func Mul(args ...Expr) Expr { return expr.Mul(args...) }

// Add sums terms, splicing nested sums and folding literals. The empty sum
// is 0.
func Add(args ...Expr) Expr { return expr.Add(args...) }

// Fold evaluates subtrees whose operands are all literals.
func Fold(e Expr) Expr { return expr.Fold(e) }

// Equal reports structural equality.
func Equal(a, b Expr) bool { return expr.Equal(a, b) }

// Indices returns e's index symbols in first-appearance order.
func Indices(e Expr) []index.Index { return expr.Indices(e) }

// IndexSet returns e's index symbols as a set.
func IndexSet(e Expr) index.Set { return expr.IndexSet(e) }

// SubstituteIndices rebuilds e with every index mapped through repl.
func SubstituteIndices(e Expr, repl map[index.Index]index.Index) Expr {
	return expr.SubstituteIndices(e, repl)
}

// Clone deep-copies e.
func Clone(e Expr) Expr { return expr.Clone(e) }

// NewBindings returns an empty binding environment.
func NewBindings() *Bindings { return expr.NewBindings() }

// Match attempts to bind pattern's placeholders against subject.
func Match(pattern, subject Expr) (*Bindings, bool) {
	return expr.Match(pattern, subject)
}

// MatchInto is Match accumulating into an existing environment.
func MatchInto(pattern, subject Expr, b *Bindings) bool {
	return expr.MatchInto(pattern, subject, b)
}

// Instantiate rebuilds template with placeholders replaced by their bound
// expressions and indices mapped through the binding environment.
func Instantiate(template Expr, b *Bindings) (Expr, error) {
	return expr.Instantiate(template, b)
}
