// Copyright 2025 The Einsgrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package deriv provides the public API for tensor derivative entities.
//
// A TensorDeriv is a partial derivative of one indexed variable with respect
// to another: a numerator, a denominator, a body expression, and a list of
// Kronecker guards gating where the derivative is nonzero. Entities compose
// by Chain (the tensor chain rule, contracting over the shared variable) and
// Sum (adding contributions that flow through different paths).
//
// Example:
//
//	eq, _ := expr.ParseEquation("div(dz[i], dx[j]) = w[i, j]")
//	d, _ := deriv.FromEquation(eq)
//	fmt.Println(d) // dz[i]/dx[j] = w[i, j]
package deriv

import (
	"github.com/einsgrad-ml/einsgrad/internal/deriv"
	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// TensorDeriv is a partial derivative entity.
type TensorDeriv = deriv.TensorDeriv

// Guard is a Kronecker equality constraint between two index symbols.
type Guard = deriv.Guard

// ErrMalformedEquation is returned by FromEquation for equations that do not
// encode a derivative entity.
var ErrMalformedEquation = deriv.ErrMalformedEquation

// ErrNotChainable is returned by Chain when the inner variables disagree.
var ErrNotChainable = deriv.ErrNotChainable

// ErrNotSummable is returned by Sum when the quotients disagree.
var ErrNotSummable = deriv.ErrNotSummable

// New builds a derivative entity from its parts. The inputs are cloned.
func New(num, den *expr.Var, body expr.Expr, guards ...Guard) *TensorDeriv {
	return deriv.New(num, den, body, guards...)
}

// FromEquation parses a derivative entity from its equation form,
// div(dNUM[...], dDEN[...]) = body, splitting top-level delta factors into
// guards.
func FromEquation(eq *expr.Eq) (*TensorDeriv, error) {
	return deriv.FromEquation(eq)
}

// ReduceEqualities resolves index-equality pairs against a protected symbol
// set, returning a substitution for eliminable symbols and the residual
// guards between protected ones.
func ReduceEqualities(pairs []Guard, protected index.Set) (map[index.Index]index.Index, []Guard) {
	return deriv.ReduceEqualities(pairs, protected)
}

// ReindexToMatch renames d2 so its numerator indices positionally match
// d1's denominator indices and none of its other symbols collide with d1's.
func ReindexToMatch(d1, d2 *TensorDeriv) (*TensorDeriv, *TensorDeriv, error) {
	return deriv.ReindexToMatch(d1, d2)
}
