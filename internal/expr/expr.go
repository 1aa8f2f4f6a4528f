// Package expr implements the symbolic expression algebra that derivative
// entities are built from.
//
// Expressions are immutable trees over four variants: literals, indexed
// variables, operator calls and equations. Every transformation rebuilds the
// nodes it touches and leaves its input untouched, so expressions can be
// shared freely across goroutines once constructed.
//
// Variable names beginning with '?' are pattern placeholders. They never
// appear in user-facing expressions; the rules engine uses them to match
// call shapes and to instantiate derivative templates (see Match and
// Instantiate).
package expr

import (
	"strconv"
	"strings"

	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// Kind discriminates the expression variants.
type Kind int

const (
	KindLit Kind = iota
	KindVar
	KindCall
	KindEq
)

func (k Kind) String() string {
	switch k {
	case KindLit:
		return "lit"
	case KindVar:
		return "var"
	case KindCall:
		return "call"
	case KindEq:
		return "eq"
	default:
		return "unknown"
	}
}

// Expr is a node in an expression tree.
type Expr interface {
	Kind() Kind
	String() string
	isExpr()
}

// Lit is a numeric literal.
type Lit struct {
	Value float64
}

// Var is a named tensor with zero or more index symbols. A Var with no
// indices is a scalar.
type Var struct {
	Name    string
	Indices []index.Index
}

// Call applies a named operator to argument expressions.
type Call struct {
	Op   string
	Args []Expr
}

// Eq equates two expressions, conventionally definition on the left.
type Eq struct {
	LHS Expr
	RHS Expr
}

func (*Lit) isExpr()  {}
func (*Var) isExpr()  {}
func (*Call) isExpr() {}
func (*Eq) isExpr()   {}

func (*Lit) Kind() Kind  { return KindLit }
func (*Var) Kind() Kind  { return KindVar }
func (*Call) Kind() Kind { return KindCall }
func (*Eq) Kind() Kind   { return KindEq }

// NewLit builds a literal.
func NewLit(v float64) *Lit { return &Lit{Value: v} }

// NewVar builds an indexed variable.
func NewVar(name string, indices ...index.Index) *Var {
	return &Var{Name: name, Indices: append([]index.Index(nil), indices...)}
}

// NewCall builds an operator application.
func NewCall(op string, args ...Expr) *Call {
	return &Call{Op: op, Args: append([]Expr(nil), args...)}
}

// NewEq builds an equation.
func NewEq(lhs, rhs Expr) *Eq { return &Eq{LHS: lhs, RHS: rhs} }

// IsPlaceholder reports whether name is a pattern placeholder.
func IsPlaceholder(name string) bool { return strings.HasPrefix(name, "?") }

func (l *Lit) String() string {
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

func (v *Var) String() string {
	if len(v.Indices) == 0 {
		return v.Name
	}
	var b strings.Builder
	b.WriteString(v.Name)
	b.WriteByte('[')
	for i, ix := range v.Indices {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(ix))
	}
	b.WriteByte(']')
	return b.String()
}

func (c *Call) String() string {
	var b strings.Builder
	b.WriteString(c.Op)
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (e *Eq) String() string {
	return e.LHS.String() + " = " + e.RHS.String()
}

// Equal reports deep structural equality. Literals compare by value,
// variables by name and index sequence, calls by operator and argument list.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Lit:
		y, ok := b.(*Lit)
		return ok && x.Value == y.Value
	case *Var:
		y, ok := b.(*Var)
		if !ok || x.Name != y.Name || len(x.Indices) != len(y.Indices) {
			return false
		}
		for i := range x.Indices {
			if x.Indices[i] != y.Indices[i] {
				return false
			}
		}
		return true
	case *Call:
		y, ok := b.(*Call)
		if !ok || x.Op != y.Op || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case *Eq:
		y, ok := b.(*Eq)
		return ok && Equal(x.LHS, y.LHS) && Equal(x.RHS, y.RHS)
	default:
		return false
	}
}

// Indices returns every index symbol occurring in e, in first-appearance
// order and without duplicates.
func Indices(e Expr) []index.Index {
	var out []index.Index
	seen := index.NewSet()
	collectIndices(e, seen, &out)
	return out
}

func collectIndices(e Expr, seen index.Set, out *[]index.Index) {
	switch x := e.(type) {
	case *Var:
		for _, ix := range x.Indices {
			if !seen.Has(ix) {
				seen.Add(ix)
				*out = append(*out, ix)
			}
		}
	case *Call:
		for _, a := range x.Args {
			collectIndices(a, seen, out)
		}
	case *Eq:
		collectIndices(x.LHS, seen, out)
		collectIndices(x.RHS, seen, out)
	}
}

// IndexSet returns the indices of e as a collision set.
func IndexSet(e Expr) index.Set {
	return index.NewSet(Indices(e)...)
}

// SubstituteIndices rebuilds e with every index symbol mapped through repl.
// Symbols absent from repl are kept. The input is not modified.
func SubstituteIndices(e Expr, repl map[index.Index]index.Index) Expr {
	if len(repl) == 0 {
		return Clone(e)
	}
	switch x := e.(type) {
	case *Lit:
		return &Lit{Value: x.Value}
	case *Var:
		ixs := make([]index.Index, len(x.Indices))
		for i, ix := range x.Indices {
			if to, ok := repl[ix]; ok {
				ixs[i] = to
			} else {
				ixs[i] = ix
			}
		}
		return &Var{Name: x.Name, Indices: ixs}
	case *Call:
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = SubstituteIndices(a, repl)
		}
		return &Call{Op: x.Op, Args: args}
	case *Eq:
		return &Eq{LHS: SubstituteIndices(x.LHS, repl), RHS: SubstituteIndices(x.RHS, repl)}
	default:
		return e
	}
}

// Clone returns an independent deep copy of e.
func Clone(e Expr) Expr {
	switch x := e.(type) {
	case *Lit:
		return &Lit{Value: x.Value}
	case *Var:
		return &Var{Name: x.Name, Indices: append([]index.Index(nil), x.Indices...)}
	case *Call:
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = Clone(a)
		}
		return &Call{Op: x.Op, Args: args}
	case *Eq:
		return &Eq{LHS: Clone(x.LHS), RHS: Clone(x.RHS)}
	default:
		return e
	}
}
