package rules

import (
	"sync"

	"github.com/einsgrad-ml/einsgrad/internal/deriv"
	"github.com/einsgrad-ml/einsgrad/internal/expr"
)

// TensorRule is a promoted, fully indexed differentiation rule. Pattern is
// the call shape it applies to, with operand placeholders carrying the index
// structure; Template is the derivative entity over the same placeholders,
// its numerator left as the bare result placeholder.
type TensorRule struct {
	Pos      int
	Pattern  *expr.Call
	Template *deriv.TensorDeriv
}

// Key addresses a rule list in the registry.
type Key struct {
	Op  string
	Pos int
}

// Registry caches tensor rules per (operator, position). Registration only
// ever appends, and matching scans a key's list in registration order, so
// earlier rules take precedence. There is no process-wide instance: every
// driver owns its own registry, and all methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[Key][]*TensorRule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[Key][]*TensorRule)}
}

// Register appends rule to its key's list. Existing rules are never
// replaced.
func (r *Registry) Register(rule *TensorRule) {
	key := Key{Op: rule.Pattern.Op, Pos: rule.Pos}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[key] = append(r.rules[key], rule)
}

// Match returns the first registered rule for the call's operator and the
// given position whose pattern matches the call, along with the bindings
// produced by the match.
func (r *Registry) Match(call *expr.Call, pos int) (*TensorRule, *expr.Bindings, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules[Key{Op: call.Op, Pos: pos}] {
		if b, ok := expr.Match(rule.Pattern, call); ok {
			return rule, b, true
		}
	}
	return nil, nil, false
}

// Rules returns a copy of the rule list for a key, in registration order.
func (r *Registry) Rules(op string, pos int) []*TensorRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*TensorRule(nil), r.rules[Key{Op: op, Pos: pos}]...)
}

// Size reports the total number of registered rules.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.rules {
		n += len(list)
	}
	return n
}
