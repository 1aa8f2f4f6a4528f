package grad

import (
	"fmt"
	"strings"

	"github.com/einsgrad-ml/einsgrad/internal/deriv"
	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// Program is an ordered sequence of assignments in single-assignment,
// three-address form: every line defines one fresh variable as a literal, an
// alias of another variable, or a flat operator call whose operands are
// variables or literals.
type Program struct {
	assigns []*expr.Eq
	defs    map[string]int
	shapes  map[string]*expr.Var
	order   []string
}

// NewProgram validates the assignments and builds a program. Variables may
// be defined once; operands must be defined earlier or stand for program
// inputs.
func NewProgram(eqs ...*expr.Eq) (*Program, error) {
	p := &Program{
		defs:   make(map[string]int),
		shapes: make(map[string]*expr.Var),
	}
	for i, eq := range eqs {
		lhs, ok := eq.LHS.(*expr.Var)
		if !ok {
			return nil, fmt.Errorf("%w: assignment %d defines %s, want a variable", ErrBadProgram, i+1, eq.LHS)
		}
		if prev, dup := p.defs[lhs.Name]; dup {
			return nil, fmt.Errorf("%w: %q is defined by assignments %d and %d", ErrBadProgram, lhs.Name, prev+1, i+1)
		}
		p.defs[lhs.Name] = i
	}

	for i, eq := range eqs {
		lhs := eq.LHS.(*expr.Var)

		switch rhs := eq.RHS.(type) {
		case *expr.Lit, *expr.Var:
		case *expr.Call:
			for k, arg := range rhs.Args {
				switch arg.(type) {
				case *expr.Var, *expr.Lit:
				default:
					return nil, fmt.Errorf("%w: assignment %d operand %d is a nested expression; flatten it into its own assignment",
						ErrBadProgram, i+1, k)
				}
			}
		default:
			return nil, fmt.Errorf("%w: assignment %d has unsupported right side %s", ErrBadProgram, i+1, eq.RHS)
		}

		// Inputs are free; defined variables must precede their uses.
		for _, v := range operandVars(eq.RHS) {
			if di, defined := p.defs[v.Name]; defined && di >= i {
				return nil, fmt.Errorf("%w: assignment %d uses %q before assignment %d defines it",
					ErrBadProgram, i+1, v.Name, di+1)
			}
		}

		p.assigns = append(p.assigns, eq)
		p.note(lhs)
		for _, v := range operandVars(eq.RHS) {
			p.note(v)
		}
	}
	return p, nil
}

// ParseProgram reads one assignment per line. Blank lines and lines starting
// with '#' are skipped.
func ParseProgram(src string) (*Program, error) {
	var eqs []*expr.Eq
	for n, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq, err := expr.ParseEquation(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		eqs = append(eqs, eq)
	}
	return NewProgram(eqs...)
}

func (p *Program) note(v *expr.Var) {
	if _, ok := p.shapes[v.Name]; !ok {
		p.shapes[v.Name] = expr.Clone(v).(*expr.Var)
		p.order = append(p.order, v.Name)
	}
}

func operandVars(e expr.Expr) []*expr.Var {
	switch x := e.(type) {
	case *expr.Var:
		return []*expr.Var{x}
	case *expr.Call:
		var out []*expr.Var
		for _, a := range x.Args {
			if v, ok := a.(*expr.Var); ok {
				out = append(out, v)
			}
		}
		return out
	default:
		return nil
	}
}

// Assignments returns the program's assignments in order.
func (p *Program) Assignments() []*expr.Eq {
	return append([]*expr.Eq(nil), p.assigns...)
}

// Defines reports whether the program assigns to name.
func (p *Program) Defines(name string) bool {
	_, ok := p.defs[name]
	return ok
}

// Shape returns the indexed form under which name first appears.
func (p *Program) Shape(name string) (*expr.Var, bool) {
	v, ok := p.shapes[name]
	if !ok {
		return nil, false
	}
	return expr.Clone(v).(*expr.Var), true
}

// Vars lists every program variable in first-appearance order.
func (p *Program) Vars() []string {
	return append([]string(nil), p.order...)
}

func (p *Program) String() string {
	lines := make([]string, len(p.assigns))
	for i, eq := range p.assigns {
		lines[i] = eq.String()
	}
	return strings.Join(lines, "\n")
}

// Gradient differentiates output with respect to every variable it depends
// on, by reverse accumulation: the adjoint of output is seeded as the
// delta-guarded identity, then each assignment, walked in reverse, chains
// the adjoint of its result onto the local derivative of every variable
// operand and sums the contributions per variable. The returned map holds
// the complete adjoint entity for each reached variable, output included.
func (e *Engine) Gradient(p *Program, output string) (map[string]*deriv.TensorDeriv, error) {
	di, ok := p.defs[output]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, output)
	}
	outVar := p.shapes[output]

	seed, err := aliasDeriv(outVar, outVar)
	if err != nil {
		return nil, fmt.Errorf("seeding d%s/d%s: %w", output, output, err)
	}
	adj := map[string]*deriv.TensorDeriv{output: seed}

	accumulate := func(name string, contrib *deriv.TensorDeriv) error {
		prev, ok := adj[name]
		if !ok {
			adj[name] = contrib
			return nil
		}
		merged, err := prev.Sum(contrib)
		if err != nil {
			return fmt.Errorf("summing contributions to d%s/d%s: %w", output, name, err)
		}
		adj[name] = merged
		return nil
	}

	for i := di; i >= 0; i-- {
		eq := p.assigns[i]
		lhs := eq.LHS.(*expr.Var)
		a, reached := adj[lhs.Name]
		if !reached {
			continue
		}

		switch rhs := eq.RHS.(type) {
		case *expr.Call:
			for pos, operand := range rhs.Args {
				v, ok := operand.(*expr.Var)
				if !ok {
					continue
				}
				local, err := e.DifferentiatePos(eq, pos)
				if err != nil {
					return nil, err
				}
				contrib, err := a.Chain(local)
				if err != nil {
					return nil, fmt.Errorf("chaining through %s: %w", eq, err)
				}
				if err := accumulate(v.Name, contrib); err != nil {
					return nil, err
				}
			}
		case *expr.Var:
			local, err := aliasDeriv(lhs, rhs)
			if err != nil {
				return nil, err
			}
			contrib, err := a.Chain(local)
			if err != nil {
				return nil, fmt.Errorf("chaining through %s: %w", eq, err)
			}
			if err := accumulate(rhs.Name, contrib); err != nil {
				return nil, err
			}
		case *expr.Lit:
			// Constants carry no gradient.
		}
	}

	e.log.Debug("computed gradient", "output", output, "variables", len(adj), "rules", e.reg.Size())
	return adj, nil
}

// aliasDeriv is the derivative of lhs = rhs for plain variable aliasing: an
// identity body with one guard per denominator index. Permuted index orders
// fall out naturally, so a transpose alias yields the transposed identity.
func aliasDeriv(lhs, rhs *expr.Var) (*deriv.TensorDeriv, error) {
	existing := index.NewSet(lhs.Indices...)
	existing.Add(rhs.Indices...)
	fresh, _, err := index.AllocateMany(existing, 0, len(rhs.Indices))
	if err != nil {
		return nil, err
	}
	guards := make([]deriv.Guard, len(rhs.Indices))
	for k, ix := range rhs.Indices {
		guards[k] = deriv.Guard{L: ix, R: fresh[k]}
	}
	return deriv.New(lhs, expr.NewVar(rhs.Name, fresh...), expr.NewLit(1), guards...).Normalize(), nil
}

// EmitGradient renders the gradient entities as flattened assignment lines,
// ordered from the output backwards so each line only uses derivatives
// defined above it.
func EmitGradient(p *Program, grads map[string]*deriv.TensorDeriv) []string {
	var lines []string
	for i := len(p.order) - 1; i >= 0; i-- {
		if d, ok := grads[p.order[i]]; ok {
			lines = append(lines, d.FlatEquation().String())
		}
	}
	return lines
}
