// Copyright 2026 nestopt Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rewrite

import (
	"fmt"
	"sort"

	"github.com/nestopt/go-nestopt/nest/analysis"
	"github.com/nestopt/go-nestopt/nest/ast"
)

// hoister implements loop-invariant code motion for one statement. A
// subexpression whose dimension set passes the caller's predicate is moved
// out of the loops it does not depend on: the temporary's evaluation is
// wrapped in fresh loops over the dimensions it keeps, placed right before
// the first nest loop it escapes.
type hoister struct {
	rw *Rewriter
}

// licm repeatedly extracts maximal matching subexpressions until fixpoint
// (or a single sweep when the caller asked for non-iterative hoisting).
func (h *hoister) licm(pred func(analysis.DimSet) bool, o *options) {
	if o.lookAhead {
		lda := o.lda
		if lda == nil {
			lda = analysis.LoopDeps(h.rw.Header)
		}
		h.rw.extracted = make(map[*ast.Node]analysis.DimSet)
		for _, c := range h.candidates(pred, lda) {
			h.rw.extracted[c] = analysis.ExprDeps(c, lda)
		}
		return
	}
	for {
		lda := o.lda
		if lda == nil {
			lda = analysis.LoopDeps(h.rw.Header)
		}
		cands := h.candidates(pred, lda)
		if o.maxSharing {
			cands = dropShared(cands)
		}
		changed := false
		for _, c := range cands {
			if h.hoist(c, pred, lda, o) {
				changed = true
			}
		}
		if !changed || o.nonIterative {
			return
		}
	}
}

// candidates returns the maximal operation subtrees of the statement's
// expression whose dependence set satisfies pred. Bare symbols and
// literals are never candidates: moving them saves nothing.
func (h *hoister) candidates(pred func(analysis.DimSet) bool, lda analysis.DepMap) []*ast.Node {
	var out []*ast.Node
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if ast.IsExprOp(n) && pred(analysis.ExprDeps(n, lda)) {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(h.rw.Stmt.RValue())
	return out
}

// dropShared removes candidates whose symbol set appears under more than
// one candidate, keeping those subexpressions available for factorization.
func dropShared(cands []*ast.Node) []*ast.Node {
	sets := make(map[string][]*ast.Node)
	keyOf := func(n *ast.Node) string {
		var keys []string
		for _, s := range ast.Symbols(n) {
			keys = append(keys, s.Key())
		}
		sort.Strings(keys)
		return fmt.Sprint(keys)
	}
	for _, c := range cands {
		k := keyOf(c)
		sets[k] = append(sets[k], c)
	}
	var out []*ast.Node
	for _, c := range cands {
		if len(sets[keyOf(c)]) == 1 {
			out = append(out, c)
		}
	}
	return out
}

// hoist moves one candidate out of the nest. It reports whether the tree
// changed.
func (h *hoister) hoist(c *ast.Node, pred func(analysis.DimSet) bool,
	lda analysis.DepMap, o *options) bool {
	rw := h.rw
	if c.Parent == nil {
		// Already detached by an earlier hoist in this sweep.
		return false
	}
	d := analysis.ExprDeps(c, lda)
	if !pred(d) {
		return false
	}

	nest := rw.Info.Nest
	if len(nest) == 0 {
		return false
	}
	escape := -1
	for i, lp := range nest {
		if !d.Has(lp.Loop.Dim) {
			escape = i
			break
		}
	}
	if escape < 0 {
		if !o.promotion {
			return false
		}
		escape = 0
	}
	insertParent := nest[escape].Parent
	insertRef := nest[escape].Loop

	// Dimensions the temporary must still iterate over: nest dimensions at
	// or below the escape point that the candidate depends on.
	var wrapDims []string
	var wrapSizes []int
	for _, lp := range nest[escape:] {
		if d.Has(lp.Loop.Dim) {
			wrapDims = append(wrapDims, lp.Loop.Dim)
			wrapSizes = append(wrapSizes, lp.Loop.Size)
		}
	}

	if o.globalCSE {
		if name, ok := h.reusable(c, wrapDims); ok {
			ast.ReplaceChild(c.Parent, c, ast.NewSym(name, wrapDims...))
			lda[name] = analysis.NewDimSet(wrapDims...)
			return true
		}
	}

	name := rw.Hoisted.NextName()
	site := c.Parent
	ref := ast.NewSym(name, wrapDims...)
	ast.ReplaceChild(site, c, ref)

	stmt := ast.NewAssign(ast.NewSym(name, wrapDims...), c)
	body := stmt
	var hoistLoop *ast.Node
	for i := len(wrapDims) - 1; i >= 0; i-- {
		body = ast.NewFor(wrapDims[i], wrapSizes[i], body)
		hoistLoop = body
	}
	decl := ast.NewDecl(rw.Info.Type, name, wrapSizes, nil)

	ast.InsertBefore(insertParent, insertRef, decl)
	ast.InsertBefore(insertParent, insertRef, body)
	if rw.Decls != nil {
		rw.Decls[name] = decl
	}
	rw.Hoisted.Add(name, Hoisted{Decl: decl, Loop: hoistLoop, Stmt: stmt})
	// Keep the analysis current for later sweeps sharing the same map.
	lda[name] = analysis.NewDimSet(wrapDims...)
	if rw.Graph != nil {
		rw.Graph.Record(stmt)
	}
	return true
}

// reusable looks for an already-hoisted statement computing a structurally
// identical expression with the same rank. The symbol dependency graph, when
// present, vetoes reuse that would create a cycle.
func (h *hoister) reusable(c *ast.Node, wrapDims []string) (string, bool) {
	for _, name := range h.rw.Hoisted.Names() {
		entry, _ := h.rw.Hoisted.Get(name)
		if entry.Stmt == nil || !ast.Equal(entry.Stmt.RValue(), c) {
			continue
		}
		if len(entry.Stmt.LValue().Rank) != len(wrapDims) {
			continue
		}
		if h.rw.Graph != nil {
			cycle := false
			for _, s := range ast.Symbols(c) {
				if h.rw.Graph.DependsOn(s.Name, name) {
					cycle = true
					break
				}
			}
			if cycle {
				continue
			}
		}
		return name, true
	}
	return "", false
}

// reductions pulls the innermost reduction loop out of the nest when every
// factor that varies over it can be accumulated separately. The canonical
// shape is
//
//	for i { for j { a[j] += b[j]*c[i] } }
//
// which becomes
//
//	for i { ct += c[i] }
//	for j { a[j] += b[j]*ct }
func (h *hoister) reductions(o *options) {
	rw := h.rw
	cands := rw.Info.ReductionLoops()
	if len(cands) == 0 {
		return
	}
	cand := cands[len(cands)-1]
	if cand.Loop.Size == 1 {
		// Hoisting a trip-count-1 reduction only adds operations.
		return
	}

	rw.Expand("all")
	lda := analysis.LoopDeps(rw.Header)
	nonCand := analysis.DimSet{}
	for _, lp := range cands[:len(cands)-1] {
		nonCand.Add(lp.Loop.Dim)
	}
	// Operands entangled with outer reduction dimensions first, so the
	// candidate-only factors end up adjacent and extractable.
	rw.Reassociate(func(a, b *ast.Node) bool {
		ka := 0
		if len(lda.Get(a).Intersect(nonCand)) == 0 {
			ka = 1
		}
		kb := 0
		if len(lda.Get(b).Intersect(nonCand)) == 0 {
			kb = 1
		}
		if ka != kb {
			return ka < kb
		}
		return a.Key() < b.Key()
	})

	if !ast.IsWriter(rw.Stmt) || rw.Stmt.Kind == ast.KindAssign {
		return
	}
	linear := rw.Info.LinearDimSet()
	changed := false
	for _, term := range ast.Summands(rw.Stmt.RValue()) {
		if h.accumulate(term, cand, linear, lda) {
			changed = true
		}
	}
	if changed {
		h.trim(cand)
	}
}

// accumulate extracts, from one additive term, the maximal factor group
// that varies over the reduction dimension but over no linear dimension,
// and replaces it with a scalar accumulated in a dedicated loop before the
// nest.
func (h *hoister) accumulate(term *ast.Node, cand ast.LoopParent,
	linear analysis.DimSet, lda analysis.DepMap) bool {
	rw := h.rw
	factors := []*ast.Node{term}
	if term.Kind == ast.KindProd {
		factors = ast.Operands(term)
	}
	var group, rest []*ast.Node
	groupDeps := analysis.DimSet{}
	for _, f := range factors {
		d := analysis.ExprDeps(f, lda)
		if d.Has(cand.Loop.Dim) && len(d.Intersect(linear)) == 0 {
			group = append(group, f)
			groupDeps = groupDeps.Union(d)
		} else {
			rest = append(rest, f)
		}
	}
	if len(group) == 0 {
		return false
	}
	// Only the candidate dimension may remain; other reduction dimensions
	// would need a ranked accumulator and a different legality argument.
	if !groupDeps.Equal(analysis.NewDimSet(cand.Loop.Dim)) {
		return false
	}

	outermost := rw.Info.Nest[0]
	name := rw.Hoisted.NextName()
	decl := ast.NewDecl(rw.Info.Type, name, nil, ast.NewNum(0))
	var expr *ast.Node
	if len(group) == 1 {
		expr = ast.Copy(group[0])
	} else {
		copies := make([]*ast.Node, len(group))
		for i, g := range group {
			copies[i] = ast.Copy(g)
		}
		expr = ast.MakeExpr(ast.KindProd, copies, false)
	}
	accum := ast.NewIncr(ast.NewSym(name), expr)
	loop := ast.NewFor(cand.Loop.Dim, cand.Loop.Size, accum)
	ast.InsertBefore(outermost.Parent, outermost.Loop, decl)
	ast.InsertBefore(outermost.Parent, outermost.Loop, loop)
	if rw.Decls != nil {
		rw.Decls[name] = decl
	}
	rw.Hoisted.Add(name, Hoisted{Decl: decl, Loop: loop, Stmt: accum})

	// Splice the accumulator into the term in place of the group.
	replacement := ast.NewSym(name)
	if term.Kind != ast.KindProd {
		ast.ReplaceChild(term.Parent, term, replacement)
		return true
	}
	rebuilt := ast.MakeExpr(ast.KindProd, append(rest, replacement), false)
	ast.ReplaceChild(term.Parent, term, rebuilt)
	return true
}

// trim removes the reduction loop from around the statement once nothing
// under it still varies over its dimension.
func (h *hoister) trim(cand ast.LoopParent) {
	for _, s := range ast.Symbols(cand.Loop) {
		for _, r := range s.Rank {
			if r == cand.Loop.Dim {
				return
			}
		}
	}
	parent := cand.Parent
	idx := -1
	for i, c := range parent.Children {
		if c == cand.Loop {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	body := cand.Loop.Children
	rest := append([]*ast.Node(nil), parent.Children[idx+1:]...)
	parent.Children = append(parent.Children[:idx], body...)
	parent.Children = append(parent.Children, rest...)
	for _, c := range body {
		c.Parent = parent
	}
	h.rw.Info.DropLoop(cand.Loop)
}
