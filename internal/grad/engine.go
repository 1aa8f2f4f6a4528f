// Package grad drives symbolic differentiation: it resolves which operand an
// equation is differentiated against, looks up or promotes the matching
// tensor rule, and instantiates it into a concrete derivative entity. On top
// of the single-equation driver it builds reverse-mode gradients of whole
// assignment programs.
package grad

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/einsgrad-ml/einsgrad/internal/deriv"
	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
	"github.com/einsgrad-ml/einsgrad/internal/rules"
)

// Config collects the engine's collaborators. Zero fields are filled with
// defaults by NewEngine.
type Config struct {
	// Registry caches promoted tensor rules. Defaults to a fresh registry
	// owned by the engine.
	Registry *rules.Registry
	// Source supplies scalar derivative rules on registry misses. Defaults
	// to the standard elementwise table.
	Source rules.Source
	// Logger receives promotion and gradient traces. Defaults to a silent
	// logger.
	Logger *slog.Logger
}

// Engine is the differentiation driver. It is safe for concurrent use: the
// registry is internally synchronized and concurrent first misses on the
// same call shape are collapsed into a single promotion.
type Engine struct {
	reg    *rules.Registry
	src    rules.Source
	log    *slog.Logger
	flight singleflight.Group
}

// NewEngine builds an engine from cfg, filling defaults for zero fields.
func NewEngine(cfg Config) *Engine {
	if cfg.Registry == nil {
		cfg.Registry = rules.NewRegistry()
	}
	if cfg.Source == nil {
		cfg.Source = rules.DefaultSource()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{reg: cfg.Registry, src: cfg.Source, log: cfg.Logger}
}

// Registry exposes the engine's rule cache, mainly for inspection.
func (e *Engine) Registry() *rules.Registry { return e.reg }

// Differentiate computes the derivative of eq's result with respect to the
// named operand. When the name occurs at several positions, the first one is
// used; Gradient sums over all occurrences instead.
func (e *Engine) Differentiate(eq *expr.Eq, arg string) (*deriv.TensorDeriv, error) {
	_, call, err := splitEquation(eq)
	if err != nil {
		return nil, err
	}
	for pos, operand := range call.Args {
		if v, ok := operand.(*expr.Var); ok && v.Name == arg {
			return e.DifferentiatePos(eq, pos)
		}
	}
	return nil, fmt.Errorf("%w: %q does not occur in %s", ErrArgNotFound, arg, call)
}

// DifferentiatePos computes the derivative of eq's result with respect to
// the operand at the given position.
//
// The lookup path is promote-on-miss: if no cached rule matches the call
// shape, the scalar rule for (operator, position) is fetched, promoted to a
// tensor rule, registered, and the lookup retried exactly once. A second
// miss is reported as ErrRuleLookup.
func (e *Engine) DifferentiatePos(eq *expr.Eq, pos int) (*deriv.TensorDeriv, error) {
	lhs, call, err := splitEquation(eq)
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= len(call.Args) {
		return nil, fmt.Errorf("%w: position %d of %s", ErrArgNotFound, pos, call)
	}

	rule, b, ok := e.reg.Match(call, pos)
	if !ok {
		if err := e.promote(call, pos); err != nil {
			return nil, err
		}
		rule, b, ok = e.reg.Match(call, pos)
		if !ok {
			return nil, fmt.Errorf("%w: %s position %d", ErrRuleLookup, call, pos)
		}
	}
	return e.instantiate(rule, b, lhs, call)
}

// promote synthesizes and registers the tensor rule for call's shape at pos.
// Concurrent callers promoting the same shape share one synthesis.
func (e *Engine) promote(call *expr.Call, pos int) error {
	key := shapeKey(call, pos)
	_, err, _ := e.flight.Do(key, func() (any, error) {
		if _, _, ok := e.reg.Match(call, pos); ok {
			return nil, nil // another caller won the race
		}
		sc, err := e.src.ScalarRule(call.Op, len(call.Args), pos)
		if err != nil {
			return nil, fmt.Errorf("differentiating %s at position %d: %w", call, pos, err)
		}
		rule, err := rules.Promote(sc, call)
		if err != nil {
			return nil, err
		}
		e.reg.Register(rule)
		e.log.Debug("promoted scalar rule",
			"op", call.Op, "pos", pos, "pattern", rule.Pattern.String())
		return nil, nil
	})
	return err
}

// instantiate specializes a matched rule's template to the concrete
// equation: the result placeholder binds to the equation's left side,
// template indices the pattern did not bind are freshened against the
// equation's index universe, and the rebuilt entity is normalized.
func (e *Engine) instantiate(rule *rules.TensorRule, b *expr.Bindings, lhs *expr.Var, call *expr.Call) (*deriv.TensorDeriv, error) {
	if !b.BindExpr(rules.ResultPlaceholder, lhs) {
		return nil, fmt.Errorf("%w: result placeholder already bound for %s", ErrRuleLookup, call)
	}

	tpl := rule.Template
	var unbound []index.Index
	for _, ix := range tpl.AllIndices() {
		if _, ok := b.Indices[ix]; !ok {
			unbound = append(unbound, ix)
		}
	}
	existing := expr.IndexSet(lhs)
	existing.Add(expr.Indices(call)...)
	for _, img := range b.Indices {
		existing.Add(img)
	}
	repl, err := index.ReplacementsFor(existing, unbound)
	if err != nil {
		return nil, fmt.Errorf("instantiating rule for %s: %w", call, err)
	}
	for from, to := range repl {
		if !b.BindIndex(from, to) {
			return nil, fmt.Errorf("%w: fresh index %q collides instantiating %s", ErrRuleLookup, to, call)
		}
	}

	num, err := instantiateVar(tpl.Num(), b)
	if err != nil {
		return nil, err
	}
	den, err := instantiateVar(tpl.Den(), b)
	if err != nil {
		return nil, err
	}
	body, err := expr.Instantiate(tpl.Body(), b)
	if err != nil {
		return nil, err
	}
	guards := make([]deriv.Guard, 0, len(tpl.Guards()))
	for _, g := range tpl.Guards() {
		guards = append(guards, deriv.Guard{L: b.MapIndex(g.L), R: b.MapIndex(g.R)})
	}
	return deriv.New(num, den, body, guards...).Normalize(), nil
}

func instantiateVar(v *expr.Var, b *expr.Bindings) (*expr.Var, error) {
	e, err := expr.Instantiate(v, b)
	if err != nil {
		return nil, err
	}
	out, ok := e.(*expr.Var)
	if !ok {
		return nil, fmt.Errorf("%w: template part %s instantiated to a %s, want a variable",
			ErrRuleLookup, v, e.Kind())
	}
	return out, nil
}

func splitEquation(eq *expr.Eq) (*expr.Var, *expr.Call, error) {
	if eq == nil {
		return nil, nil, fmt.Errorf("%w: nil equation", ErrBadEquation)
	}
	lhs, ok := eq.LHS.(*expr.Var)
	if !ok {
		return nil, nil, fmt.Errorf("%w: left side %s is not a variable", ErrBadEquation, eq.LHS)
	}
	call, ok := eq.RHS.(*expr.Call)
	if !ok {
		return nil, nil, fmt.Errorf("%w: right side %s is not an operator call", ErrBadEquation, eq.RHS)
	}
	return lhs, call, nil
}

// shapeKey fingerprints a call's structure for promotion deduplication:
// operator, position, and per-operand index patterns with symbols
// alpha-normalized, so renamed copies of one shape share a key.
func shapeKey(call *expr.Call, pos int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%d", call.Op, pos)
	norm := make(map[index.Index]int)
	for _, arg := range call.Args {
		switch v := arg.(type) {
		case *expr.Var:
			sb.WriteString("|v")
			for _, ix := range v.Indices {
				n, ok := norm[ix]
				if !ok {
					n = len(norm)
					norm[ix] = n
				}
				fmt.Fprintf(&sb, ".%d", n)
			}
		case *expr.Lit:
			fmt.Fprintf(&sb, "|l%g", v.Value)
		default:
			fmt.Fprintf(&sb, "|x%s", arg)
		}
	}
	return sb.String()
}
