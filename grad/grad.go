// Copyright 2025 The Einsgrad Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package grad provides the public API for symbolic differentiation.
//
// An Engine differentiates flat tensor assignments, promoting scalar rules
// to tensor rules on first use and caching them per call shape. A Program is
// a straight-line sequence of such assignments; Gradient runs reverse-mode
// accumulation over it, producing one derivative entity per variable the
// output depends on.
//
// Example:
//
//	e := grad.NewEngine(grad.Config{})
//	p, _ := grad.ParseProgram("h[i] = mul(w[i, j], x[j])\nz[i] = tanh(h[i])")
//	grads, _ := e.Gradient(p, "z")
//	for _, line := range grad.EmitGradient(p, grads) {
//	    fmt.Println(line)
//	}
package grad

import (
	"github.com/einsgrad-ml/einsgrad/internal/deriv"
	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/grad"
)

// Config carries the collaborators of an Engine. Zero fields get defaults:
// a fresh registry, the built-in scalar rules, and a discarding logger.
type Config = grad.Config

// Engine is the differentiation driver. It is safe for concurrent use.
type Engine = grad.Engine

// Program is a validated straight-line sequence of flat tensor assignments.
type Program = grad.Program

// Differentiation errors.
var (
	// ErrBadEquation rejects equations that are not variable = call.
	ErrBadEquation = grad.ErrBadEquation
	// ErrArgNotFound reports a differentiation target absent from the call.
	ErrArgNotFound = grad.ErrArgNotFound
	// ErrRuleLookup reports a rule lookup that failed after promotion.
	ErrRuleLookup = grad.ErrRuleLookup
	// ErrBadProgram rejects assignment sequences that are not in flat form.
	ErrBadProgram = grad.ErrBadProgram
	// ErrUnknownVariable reports a gradient output the program never defines.
	ErrUnknownVariable = grad.ErrUnknownVariable
)

// NewEngine builds an engine from cfg, filling defaults for zero fields.
func NewEngine(cfg Config) *Engine { return grad.NewEngine(cfg) }

// NewProgram validates and assembles a program from assignments.
func NewProgram(eqs ...*expr.Eq) (*Program, error) {
	return grad.NewProgram(eqs...)
}

// ParseProgram parses one assignment per line. Blank lines and lines
// starting with '#' are skipped.
func ParseProgram(src string) (*Program, error) {
	return grad.ParseProgram(src)
}

// EmitGradient renders gradient entities as flattened assignment lines in
// reverse dependency order.
func EmitGradient(p *Program, grads map[string]*deriv.TensorDeriv) []string {
	return grad.EmitGradient(p, grads)
}
