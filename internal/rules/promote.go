package rules

import (
	"fmt"

	"github.com/einsgrad-ml/einsgrad/internal/deriv"
	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// Promote synthesizes a tensor rule from a scalar rule and the concrete call
// that triggered the miss.
//
// The call supplies the operand index shapes: every variable operand becomes
// an indexed placeholder carrying that operand's index symbols, while
// literal operands stay literal, so the pattern matches exactly the call
// shapes that are alpha-renamings of this one. The scalar template is
// instantiated over those placeholders to form the tensor body. The
// denominator gets fresh indices the scalar rule cannot know about, tied to
// the target operand's indices by equality guards: elementwise operators
// differentiate to delta-gated identities.
//
// The returned template is deliberately not normalized. Its numerator is the
// bare result placeholder with no indices yet, so normalizing here would
// treat the operand-side guard symbols as eliminable and fold the guards
// away before instantiation can protect them.
func Promote(sc *ScalarRule, call *expr.Call) (*TensorRule, error) {
	if call.Op != sc.Op || len(call.Args) != sc.Arity {
		return nil, fmt.Errorf("rules: promote %s/%d: call %s does not match the scalar signature",
			sc.Op, sc.Arity, call)
	}
	if sc.Pos < 0 || sc.Pos >= len(call.Args) {
		return nil, fmt.Errorf("rules: promote %s: position %d out of range", sc.Op, sc.Pos)
	}

	b := expr.NewBindings()
	pargs := make([]expr.Expr, len(call.Args))
	for k, arg := range call.Args {
		switch v := arg.(type) {
		case *expr.Var:
			pargs[k] = expr.NewVar(ArgPlaceholder(k), v.Indices...)
		case *expr.Lit:
			pargs[k] = expr.NewLit(v.Value)
		default:
			return nil, fmt.Errorf("rules: promote %s: operand %d is a nested %s, want a variable or literal",
				sc.Op, k, arg.Kind())
		}
		b.BindExpr(ArgPlaceholder(k), pargs[k])
	}

	target, ok := pargs[sc.Pos].(*expr.Var)
	if !ok {
		return nil, fmt.Errorf("rules: promote %s: cannot differentiate with respect to literal operand %d",
			sc.Op, sc.Pos)
	}

	body, err := expr.Instantiate(sc.Template, b)
	if err != nil {
		return nil, fmt.Errorf("rules: promote %s: %w", sc.Op, err)
	}
	body = expr.Fold(body)

	pattern := expr.NewCall(call.Op, pargs...)
	existing := expr.IndexSet(pattern)
	existing.Add(expr.Indices(body)...)
	fresh, _, err := index.AllocateMany(existing, 0, len(target.Indices))
	if err != nil {
		return nil, fmt.Errorf("rules: promote %s: %w", sc.Op, err)
	}

	guards := make([]deriv.Guard, len(target.Indices))
	for k, ix := range target.Indices {
		guards[k] = deriv.Guard{L: ix, R: fresh[k]}
	}

	template := deriv.New(
		expr.NewVar(ResultPlaceholder),
		expr.NewVar(ArgPlaceholder(sc.Pos), fresh...),
		body,
		guards...,
	)
	return &TensorRule{Pos: sc.Pos, Pattern: pattern, Template: template}, nil
}
