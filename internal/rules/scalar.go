// Package rules holds the differentiation rule machinery: scalar
// (per-element) derivative rules, their promotion to indexed tensor rules,
// and the registry that caches promoted rules per operator and operand
// position.
package rules

import (
	"errors"
	"fmt"
	"sync"

	"github.com/einsgrad-ml/einsgrad/internal/expr"
)

// ErrNoScalarRule is returned when a source has no scalar derivative rule
// for the requested operator signature and position.
var ErrNoScalarRule = errors.New("rules: no scalar derivative rule")

// ResultPlaceholder binds the left side of the equation being
// differentiated when a tensor rule template is instantiated.
const ResultPlaceholder = "?r"

// ArgPlaceholder names the placeholder standing for operand k.
func ArgPlaceholder(k int) string { return fmt.Sprintf("?a%d", k) }

// ScalarRule is the per-element derivative of an operator with respect to
// one operand: for Op applied to Arity scalar arguments, Template is
// d Op(...)/d arg[Pos], written over the argument placeholders ?a0..?aN.
type ScalarRule struct {
	Op       string
	Arity    int
	Pos      int
	Template expr.Expr
}

// Source supplies scalar derivative rules, keyed by operator, operand
// signature and position. The driver fetches from a Source on the first
// registry miss for a call shape.
type Source interface {
	ScalarRule(op string, arity, pos int) (*ScalarRule, error)
}

type sigKey struct {
	op    string
	arity int
	pos   int
}

// TableSource is an in-memory Source backed by a mutable table. The zero
// value is not usable; construct with NewTableSource or DefaultSource.
type TableSource struct {
	mu    sync.RWMutex
	table map[sigKey]*ScalarRule
}

// NewTableSource returns an empty table.
func NewTableSource() *TableSource {
	return &TableSource{table: make(map[sigKey]*ScalarRule)}
}

// Register adds r to the table, replacing any rule with the same operator,
// arity and position.
func (s *TableSource) Register(r *ScalarRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[sigKey{r.Op, r.Arity, r.Pos}] = r
}

// ScalarRule implements Source.
func (s *TableSource) ScalarRule(op string, arity, pos int) (*ScalarRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.table[sigKey{op, arity, pos}]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s/%d position %d", ErrNoScalarRule, op, arity, pos)
}

// DefaultSource returns a table preloaded with the standard elementwise
// operators. Callers can register further rules on top.
func DefaultSource() *TableSource {
	a0 := expr.NewVar(ArgPlaceholder(0))
	a1 := expr.NewVar(ArgPlaceholder(1))
	one := expr.NewLit(1)

	s := NewTableSource()
	for _, r := range []*ScalarRule{
		{Op: "add", Arity: 2, Pos: 0, Template: one},
		{Op: "add", Arity: 2, Pos: 1, Template: one},
		{Op: "sub", Arity: 2, Pos: 0, Template: one},
		{Op: "sub", Arity: 2, Pos: 1, Template: expr.NewLit(-1)},
		{Op: "mul", Arity: 2, Pos: 0, Template: a1},
		{Op: "mul", Arity: 2, Pos: 1, Template: a0},
		{Op: "div", Arity: 2, Pos: 0, Template: expr.NewCall("div", one, a1)},
		{Op: "div", Arity: 2, Pos: 1, Template: expr.NewCall("neg",
			expr.NewCall("div", a0, expr.NewCall("mul", a1, a1)))},
		{Op: "neg", Arity: 1, Pos: 0, Template: expr.NewLit(-1)},
		{Op: "exp", Arity: 1, Pos: 0, Template: expr.NewCall("exp", a0)},
		{Op: "log", Arity: 1, Pos: 0, Template: expr.NewCall("div", one, a0)},
		{Op: "sqrt", Arity: 1, Pos: 0, Template: expr.NewCall("div", one,
			expr.NewCall("mul", expr.NewLit(2), expr.NewCall("sqrt", a0)))},
		{Op: "tanh", Arity: 1, Pos: 0, Template: expr.NewCall("sub", one,
			expr.NewCall("mul", expr.NewCall("tanh", a0), expr.NewCall("tanh", a0)))},
		{Op: "sigmoid", Arity: 1, Pos: 0, Template: expr.NewCall("mul",
			expr.NewCall("sigmoid", a0),
			expr.NewCall("sub", one, expr.NewCall("sigmoid", a0)))},
		{Op: "relu", Arity: 1, Pos: 0, Template: expr.NewCall("step", a0)},
		{Op: "pow", Arity: 2, Pos: 0, Template: expr.NewCall("mul", a1,
			expr.NewCall("pow", a0, expr.NewCall("sub", a1, one)))},
		{Op: "pow", Arity: 2, Pos: 1, Template: expr.NewCall("mul",
			expr.NewCall("pow", a0, a1), expr.NewCall("log", a0))},
	} {
		s.Register(r)
	}
	return s
}
