package deriv

import (
	"sort"

	"github.com/einsgrad-ml/einsgrad/internal/expr"
	"github.com/einsgrad-ml/einsgrad/internal/index"
)

// Guard is a Kronecker equality constraint between two index symbols. A
// derivative component exists only where every guard's symbols take equal
// values, so a guard multiplies the body by delta[L, R].
type Guard struct {
	L, R index.Index
}

// Expr renders the guard as its delta factor.
func (g Guard) Expr() *expr.Var { return expr.Delta(g.L, g.R) }

func (g Guard) String() string { return g.Expr().String() }

// guardIndices returns every symbol mentioned by the guards.
func guardIndices(guards []Guard) index.Set {
	s := index.NewSet()
	for _, g := range guards {
		s.Add(g.L, g.R)
	}
	return s
}

// ReduceEqualities resolves a set of index-equality pairs against a protected
// symbol set. The pairs induce equivalence classes; within each class a
// protected member becomes the representative when one exists. The returned
// substitution maps every non-representative member to its representative.
// Equalities between two distinct protected symbols cannot be substituted
// away and come back as residual guards in canonical order.
//
// The operation is idempotent: feeding the residual back in yields an empty
// substitution and the same residual.
func ReduceEqualities(pairs []Guard, protected index.Set) (map[index.Index]index.Index, []Guard) {
	uf := newUnionFind()
	for _, g := range pairs {
		uf.union(g.L, g.R)
	}

	// Gather classes with deterministically ordered members.
	classes := make(map[index.Index][]index.Index)
	for _, sym := range uf.symbols() {
		root := uf.find(sym)
		classes[root] = append(classes[root], sym)
	}

	subst := make(map[index.Index]index.Index)
	var residual []Guard
	for _, members := range classes {
		sort.Slice(members, func(i, j int) bool { return index.Less(members[i], members[j]) })

		var prot, free []index.Index
		for _, m := range members {
			if protected.Has(m) {
				prot = append(prot, m)
			} else {
				free = append(free, m)
			}
		}

		switch {
		case len(prot) == 0:
			for _, m := range free[1:] {
				subst[m] = free[0]
			}
		default:
			for _, m := range free {
				subst[m] = prot[0]
			}
			for _, m := range prot[1:] {
				residual = append(residual, Guard{L: prot[0], R: m})
			}
		}
	}

	sort.Slice(residual, func(i, j int) bool {
		if residual[i].L != residual[j].L {
			return index.Less(residual[i].L, residual[j].L)
		}
		return index.Less(residual[i].R, residual[j].R)
	})
	return subst, dedupeGuards(residual)
}

func dedupeGuards(guards []Guard) []Guard {
	out := guards[:0]
	var prev Guard
	for i, g := range guards {
		if i > 0 && g == prev {
			continue
		}
		out = append(out, g)
		prev = g
	}
	return out
}

// unionFind is a tiny disjoint-set forest over index symbols.
type unionFind struct {
	parent map[index.Index]index.Index
	order  []index.Index
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[index.Index]index.Index)}
}

func (u *unionFind) add(x index.Index) {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		u.order = append(u.order, x)
	}
}

func (u *unionFind) find(x index.Index) index.Index {
	u.add(x)
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b index.Index) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// symbols returns every symbol seen, in first-appearance order.
func (u *unionFind) symbols() []index.Index { return u.order }
