package expr

import (
	"errors"
	"fmt"

	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// ErrUnboundPlaceholder is returned by Instantiate when a template references
// a placeholder that the bindings do not cover.
var ErrUnboundPlaceholder = errors.New("expr: unbound placeholder")

// Bindings accumulates the result of matching a pattern against a subject:
// placeholder names map to the expressions they captured, and pattern index
// symbols map to the subject symbols they were identified with.
type Bindings struct {
	Exprs   map[string]Expr
	Indices map[index.Index]index.Index
}

// NewBindings returns an empty binding environment.
func NewBindings() *Bindings {
	return &Bindings{
		Exprs:   make(map[string]Expr),
		Indices: make(map[index.Index]index.Index),
	}
}

// BindExpr records name capturing e. Rebinding the same name succeeds only
// when the captures are structurally equal.
func (b *Bindings) BindExpr(name string, e Expr) bool {
	if prev, ok := b.Exprs[name]; ok {
		return Equal(prev, e)
	}
	b.Exprs[name] = e
	return true
}

// BindIndex identifies pattern symbol from with subject symbol to. The
// mapping is kept injective: a pattern symbol has one image and two pattern
// symbols never share one, so alpha-renamed shapes match while genuinely
// different index structures do not.
func (b *Bindings) BindIndex(from, to index.Index) bool {
	if prev, ok := b.Indices[from]; ok {
		return prev == to
	}
	for _, img := range b.Indices {
		if img == to {
			return false
		}
	}
	b.Indices[from] = to
	return true
}

// MapIndex returns the image of ix, or ix itself when unbound.
func (b *Bindings) MapIndex(ix index.Index) index.Index {
	if to, ok := b.Indices[ix]; ok {
		return to
	}
	return ix
}

// Match matches pattern against subject and returns the resulting bindings.
//
// A placeholder variable without indices captures any expression. A
// placeholder with indices captures only a variable of the same arity and
// additionally identifies the pattern's index symbols with the subject's.
// Concrete variables require an equal name and arity but their indices are
// identified rather than compared, so a pattern written with one alphabet
// matches subjects written with another.
func Match(pattern, subject Expr) (*Bindings, bool) {
	b := NewBindings()
	if !MatchInto(pattern, subject, b) {
		return nil, false
	}
	return b, true
}

// MatchInto matches pattern against subject, extending b. On failure b may
// hold partial bindings and must be discarded.
func MatchInto(pattern, subject Expr, b *Bindings) bool {
	switch p := pattern.(type) {
	case *Lit:
		s, ok := subject.(*Lit)
		return ok && p.Value == s.Value
	case *Var:
		if IsPlaceholder(p.Name) && len(p.Indices) == 0 {
			return b.BindExpr(p.Name, subject)
		}
		s, ok := subject.(*Var)
		if !ok || len(p.Indices) != len(s.Indices) {
			return false
		}
		if IsPlaceholder(p.Name) {
			if !b.BindExpr(p.Name, s) {
				return false
			}
		} else if p.Name != s.Name {
			return false
		}
		for i := range p.Indices {
			if !b.BindIndex(p.Indices[i], s.Indices[i]) {
				return false
			}
		}
		return true
	case *Call:
		s, ok := subject.(*Call)
		if !ok || p.Op != s.Op || len(p.Args) != len(s.Args) {
			return false
		}
		for i := range p.Args {
			if !MatchInto(p.Args[i], s.Args[i], b) {
				return false
			}
		}
		return true
	case *Eq:
		s, ok := subject.(*Eq)
		return ok && MatchInto(p.LHS, s.LHS, b) && MatchInto(p.RHS, s.RHS, b)
	default:
		return false
	}
}

// Instantiate rebuilds template in the subject's terms: placeholders are
// replaced by their captured expressions and template index symbols are
// mapped through the bindings, unbound symbols passing through unchanged.
// Captured expressions are inserted as-is since they already live in the
// subject's index space.
func Instantiate(template Expr, b *Bindings) (Expr, error) {
	switch t := template.(type) {
	case *Lit:
		return &Lit{Value: t.Value}, nil
	case *Var:
		if IsPlaceholder(t.Name) {
			bound, ok := b.Exprs[t.Name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnboundPlaceholder, t.Name)
			}
			if len(t.Indices) == 0 {
				return Clone(bound), nil
			}
			bv, ok := bound.(*Var)
			if !ok {
				return nil, fmt.Errorf("%w: %s is bound to a %s, want a variable",
					ErrUnboundPlaceholder, t.Name, bound.Kind())
			}
			ixs := make([]index.Index, len(t.Indices))
			for i, ix := range t.Indices {
				ixs[i] = b.MapIndex(ix)
			}
			return &Var{Name: bv.Name, Indices: ixs}, nil
		}
		ixs := make([]index.Index, len(t.Indices))
		for i, ix := range t.Indices {
			ixs[i] = b.MapIndex(ix)
		}
		return &Var{Name: t.Name, Indices: ixs}, nil
	case *Call:
		args := make([]Expr, len(t.Args))
		for i, a := range t.Args {
			arg, err := Instantiate(a, b)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return &Call{Op: t.Op, Args: args}, nil
	case *Eq:
		lhs, err := Instantiate(t.LHS, b)
		if err != nil {
			return nil, err
		}
		rhs, err := Instantiate(t.RHS, b)
		if err != nil {
			return nil, err
		}
		return &Eq{LHS: lhs, RHS: rhs}, nil
	default:
		return nil, fmt.Errorf("expr: cannot instantiate %T", template)
	}
}
