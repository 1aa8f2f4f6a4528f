package expr

import (
	"math"

	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// Reserved variable names with built-in meaning to the derivative algebra.
const (
	// DeltaName is the Kronecker delta: 1 where both indices agree, else 0.
	DeltaName = "delta"
	// OnesName is an all-ones tensor, used to keep reduction indices visible
	// when a derivative body collapses to a literal.
	OnesName = "ones"
)

// Delta builds the Kronecker delta over two index symbols.
func Delta(l, r index.Index) *Var {
	return &Var{Name: DeltaName, Indices: []index.Index{l, r}}
}

// Ones builds an all-ones tensor over the given indices.
func Ones(indices ...index.Index) *Var {
	return &Var{Name: OnesName, Indices: append([]index.Index(nil), indices...)}
}

// Mul returns the product of args with light simplification: nested products
// are spliced in, literal factors are folded together, a factor of one is
// dropped and a factor of zero annihilates the product. Argument order is
// otherwise preserved; no distribution is performed.
func Mul(args ...Expr) Expr {
	factors := make([]Expr, 0, len(args))
	lit := 1.0
	for _, a := range args {
		switch x := a.(type) {
		case *Lit:
			lit *= x.Value
		case *Call:
			if x.Op == "mul" {
				for _, inner := range x.Args {
					if l, ok := inner.(*Lit); ok {
						lit *= l.Value
					} else {
						factors = append(factors, inner)
					}
				}
			} else {
				factors = append(factors, x)
			}
		default:
			factors = append(factors, a)
		}
	}
	if lit == 0 {
		return &Lit{Value: 0}
	}
	if lit != 1 {
		factors = append([]Expr{&Lit{Value: lit}}, factors...)
	}
	switch len(factors) {
	case 0:
		return &Lit{Value: 1}
	case 1:
		return factors[0]
	default:
		return &Call{Op: "mul", Args: factors}
	}
}

// Add returns the sum of args: nested sums are spliced in, literal terms are
// folded together and a literal zero is dropped. An empty sum is the literal
// zero.
func Add(args ...Expr) Expr {
	terms := make([]Expr, 0, len(args))
	lit := 0.0
	for _, a := range args {
		switch x := a.(type) {
		case *Lit:
			lit += x.Value
		case *Call:
			if x.Op == "add" {
				for _, inner := range x.Args {
					if l, ok := inner.(*Lit); ok {
						lit += l.Value
					} else {
						terms = append(terms, inner)
					}
				}
			} else {
				terms = append(terms, x)
			}
		default:
			terms = append(terms, a)
		}
	}
	if lit != 0 {
		terms = append(terms, &Lit{Value: lit})
	}
	switch len(terms) {
	case 0:
		return &Lit{Value: 0}
	case 1:
		return terms[0]
	default:
		return &Call{Op: "add", Args: terms}
	}
}

// Fold evaluates arithmetic calls whose arguments are all literal, bottom-up,
// leaving every other node structurally intact. Rule templates instantiated
// against literal operands produce subtrees like sub(2, 1); folding keeps the
// emitted derivatives readable.
func Fold(e Expr) Expr {
	switch x := e.(type) {
	case *Call:
		args := make([]Expr, len(x.Args))
		lits := make([]float64, 0, len(x.Args))
		for i, a := range x.Args {
			args[i] = Fold(a)
			if l, ok := args[i].(*Lit); ok {
				lits = append(lits, l.Value)
			}
		}
		if len(lits) == len(args) {
			if v, ok := evalLits(x.Op, lits); ok {
				return &Lit{Value: v}
			}
		}
		return &Call{Op: x.Op, Args: args}
	case *Eq:
		return &Eq{LHS: Fold(x.LHS), RHS: Fold(x.RHS)}
	default:
		return Clone(e)
	}
}

func evalLits(op string, args []float64) (float64, bool) {
	switch op {
	case "neg":
		if len(args) == 1 {
			return -args[0], true
		}
	case "add":
		sum := 0.0
		for _, v := range args {
			sum += v
		}
		return sum, true
	case "mul":
		prod := 1.0
		for _, v := range args {
			prod *= v
		}
		return prod, true
	case "sub":
		if len(args) == 2 {
			return args[0] - args[1], true
		}
	case "div":
		if len(args) == 2 && args[1] != 0 {
			return args[0] / args[1], true
		}
	case "pow":
		if len(args) == 2 {
			return math.Pow(args[0], args[1]), true
		}
	}
	return 0, false
}
