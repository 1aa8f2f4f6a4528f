// Copyright 2025 The Einsgrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package rules provides the public API for derivative rules.
//
// Scalar rules state the pointwise derivative of an operator with respect to
// one argument position. Tensor rules pair a call-shape pattern with a
// derivative template; they are synthesized from scalar rules on demand
// (promotion) and cached in a Registry keyed by operator and position.
//
// Example:
//
//	src := rules.DefaultSource()
//	sc, _ := src.ScalarRule("mul", 2, 0)
//	fmt.Println(sc.Template) // ?a1
package rules

import (
	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/rules"
)

// ScalarRule is the pointwise derivative of an operator with respect to one
// argument position.
type ScalarRule = rules.ScalarRule

// Source supplies scalar rules by operator, arity, and position.
type Source = rules.Source

// TableSource is an in-memory, concurrency-safe Source.
type TableSource = rules.TableSource

// TensorRule pairs a call-shape pattern with a derivative template.
type TensorRule = rules.TensorRule

// Key identifies a registry bucket by operator and argument position.
type Key = rules.Key

// Registry is a concurrency-safe cache of tensor rules.
type Registry = rules.Registry

// ResultPlaceholder is the template placeholder bound to the equation's
// left-hand side during instantiation.
const ResultPlaceholder = rules.ResultPlaceholder

// ErrNoScalarRule is returned when a source has no rule for the requested
// operator signature.
var ErrNoScalarRule = rules.ErrNoScalarRule

// ArgPlaceholder returns the placeholder name for argument position k.
func ArgPlaceholder(k int) string { return rules.ArgPlaceholder(k) }

// NewTableSource returns an empty scalar-rule table.
func NewTableSource() *TableSource { return rules.NewTableSource() }

// DefaultSource returns a table covering the built-in scalar operators.
func DefaultSource() *TableSource { return rules.DefaultSource() }

// NewRegistry returns an empty tensor-rule registry.
func NewRegistry() *Registry { return rules.NewRegistry() }

// Promote synthesizes the tensor rule for call's concrete shape from the
// scalar rule sc.
func Promote(sc *ScalarRule, call *expr.Call) (*TensorRule, error) {
	return rules.Promote(sc, call)
}
