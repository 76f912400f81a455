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

package cse

import (
	"sort"

	"github.com/nestopt/go-nestopt/nest/analysis"
	"github.com/nestopt/go-nestopt/nest/ast"
	"github.com/nestopt/go-nestopt/nest/rewrite"
)

// Unpicker analyzes the loops of a kernel in which temporaries are computed
// and, applying the cost model, decides per loop whether to leave each
// temporary intact or inline it into its readers, creating factorization
// and code motion opportunities across dependency levels.
type Unpicker struct {
	Exprs   map[*ast.Node]*analysis.MetaExpr
	Header  *ast.Node
	Hoisted *rewrite.StmtTracker
	Decls   map[string]*ast.Node
	Graph   *analysis.ExprGraph
}

// NewUnpicker wires an unpicker over the kernel's main expressions. All
// expressions must share element type and linear dimensions.
func NewUnpicker(exprs map[*ast.Node]*analysis.MetaExpr, header *ast.Node,
	hoisted *rewrite.StmtTracker, decls map[string]*ast.Node,
	graph *analysis.ExprGraph) *Unpicker {
	if hoisted == nil {
		hoisted = rewrite.NewStmtTracker()
	}
	return &Unpicker{
		Exprs:   exprs,
		Header:  header,
		Hoisted: hoisted,
		Decls:   decls,
		Graph:   graph,
	}
}

func (u *Unpicker) kernelType() string {
	for _, info := range u.Exprs {
		return info.Type
	}
	return ""
}

func (u *Unpicker) linearDims() []string {
	for _, info := range u.Exprs {
		return info.LinearDims
	}
	return nil
}

// Unpick runs the analysis and applies the cheapest plan to every linear
// loop of the kernel.
func (u *Unpicker) Unpick() error {
	lda := analysis.LoopDeps(u.Header)
	ra := analysis.Reachability(u.Header, u.Decls)
	linear := analysis.NewDimSet(u.linearDims()...)

	// A linear loop may sit on several chains; the chain recorded last wins,
	// the analysis order is first appearance.
	var order []*ast.Node
	nestOf := make(map[*ast.Node][]ast.LoopParent)
	for _, nest := range ast.LoopNests(u.Header) {
		for _, lp := range nest {
			if linear.Has(lp.Loop.Dim) {
				if _, ok := nestOf[lp.Loop]; !ok {
					order = append(order, lp.Loop)
				}
				nestOf[lp.Loop] = nest
			}
		}
	}

	globalTrace := NewTrace()
	var traces []*Trace
	for _, loop := range order {
		trace := u.analyzeLoop(loop, nestOf[loop], lda, globalTrace)
		if trace.Len() > 0 {
			traces = append(traces, trace)
			globalTrace.Update(trace)
		}
	}

	for _, trace := range traces {
		levels := groupByLevel(trace)
		minLevel, maxLevel := levelBounds(levels)

		best := plan{lo: minLevel, hi: minLevel, cost: costCSE(levels, minLevel, maxLevel)}
		keys := make([]int, 0, len(levels))
		for l := range levels {
			keys = append(keys, l)
		}
		sort.Ints(keys)
		for _, l := range keys {
			if local := costFact(trace, levels, l, maxLevel); local.cost < best.cost {
				best = local
			}
		}

		for i := best.lo + 1; i <= best.hi; i++ {
			u.pushTemporaries(levels[i-1], trace, globalTrace, ra)
			if err := u.transformTemporaries(levels[i]); err != nil {
				return err
			}
		}
	}

	// Loops fully emptied by pushing disappear, innermost first.
	for i := len(order) - 1; i >= 0; i-- {
		for _, lp := range nestOf[order[i]] {
			if lp.Loop == order[i] && len(lp.Loop.Children) == 0 {
				ast.Remove(lp.Parent, lp.Loop)
			}
		}
	}
	return nil
}

// pushTemporaries inlines one level of temporaries into the statements
// reading them, removing definitions that are no longer needed anywhere.
func (u *Unpicker) pushTemporaries(temporaries []*Temporary, trace, globalTrace *Trace,
	ra map[*ast.Node]map[*ast.Node]bool) {

	pushable := func(t *Temporary) bool {
		if !t.IsSSA() || len(t.ReadBy) == 0 || t.IsStaticInit() {
			return false
		}
		// Every read of t must be visible in the loops t is pushed into.
		pushedIn := make(map[*ast.Node]bool)
		for _, rb := range t.ReadBy {
			if g := globalTrace.Get(rb.Key()); g != nil {
				pushedIn[g.MainLoop] = true
			}
		}
		for _, s := range t.Reads {
			if g := globalTrace.Get(s.Key()); g != nil && g.Pushed {
				continue
			}
			decl, ok := u.Decls[s.Name]
			if !ok {
				return false
			}
			for l := range pushedIn {
				if !ra[decl][l] {
					return false
				}
			}
		}
		return true
	}

	toReplace := make(map[string]*ast.Node)
	replaced := make(map[string]bool)
	modified := NewTrace()
	for _, t := range temporaries {
		if !pushable(t) {
			continue
		}
		sub := t.Expr()
		if sub == nil {
			sub = t.Symbol()
		}
		toReplace[t.Symbol().Key()] = sub
		replaced[t.Symbol().Key()] = true
		for _, rb := range t.ReadBy {
			key := rb.Key()
			if m := trace.Get(key); m != nil {
				modified.Put(key, m)
			} else {
				modified.Put(key, globalTrace.Get(key))
			}
		}
		// Drop the definition unless a later loop still reads it.
		inBody := false
		for _, c := range t.MainLoop.Children {
			if c == t.Node {
				inBody = true
				break
			}
		}
		local := true
		for _, rb := range t.ReadBy {
			if !trace.Has(rb.Key()) {
				local = false
				break
			}
		}
		if inBody && local {
			globalTrace.Get(t.Key()).Pushed = true
			ast.Remove(t.MainLoop, t.Node)
			delete(u.Decls, t.Name())
		}
	}

	// Replacement happens in the order the temporaries were first traced.
	mods := modified.Values()
	sort.SliceStable(mods, func(i, j int) bool {
		return globalTrace.Index(mods[i].Key()) < globalTrace.Index(mods[j].Key())
	})
	for _, m := range mods {
		ast.ReplaceSyms(m.Node, toReplace, true)
	}

	// Rewire the read sets: a read of a pushed temporary becomes reads of
	// that temporary's own reads, at the combined projection cost.
	for _, m := range mods {
		for _, rc := range append([]ReadCost(nil), m.LinearReadsCosts...) {
			if !replaced[rc.Key] {
				continue
			}
			m.removeEntry(rc)
			inherited := globalTrace.Get(rc.Key).LinearReadsCosts
			if len(inherited) == 0 {
				inherited = []ReadCost{{Sym: rc.Sym, Key: rc.Key}}
			}
			for _, p := range inherited {
				m.setEntry(p.Sym, p.Key, rc.Cost+p.Cost)
			}
		}
	}
}

// transformTemporaries rewrites one level of temporaries: reciprocal
// divisions, expansion, factorization around the linear reads, and hoisting
// of what the factorization left invariant.
func (u *Unpicker) transformTemporaries(temporaries []*Temporary) error {
	linear := analysis.NewDimSet(u.linearDims()...)
	ldaSym := analysis.LoopDepsBySymbol(u.Header)

	var rewriters []*rewrite.Rewriter
	for _, t := range temporaries {
		// The main expressions have their own rewriting schedule.
		if _, ok := u.Exprs[t.Node]; ok {
			continue
		}
		var linearDims []string
		for _, l := range t.Loops() {
			if linear.Has(l.Dim) {
				linearDims = append(linearDims, l.Dim)
			}
		}
		info := &analysis.MetaExpr{Type: u.kernelType(), Nest: t.Nest, LinearDims: linearDims}
		rw := rewrite.New(t.Node, info, u.Decls, u.Header, u.Hoisted)
		rw.Graph = u.Graph

		adhoc := make(map[string][]string)
		for _, key := range t.LinearReads() {
			adhoc[key] = nil
		}
		rw.ReplaceDiv()
		rw.Expand("all", rewrite.WithLDA(ldaSym))
		rw.Factorize("adhoc", rewrite.WithAdhoc(adhoc), rewrite.WithLDA(ldaSym))
		rw.Factorize("heuristic")
		rewriters = append(rewriters, rw)
	}

	lda := analysis.LoopDeps(u.Header)
	for _, rw := range rewriters {
		rw.Licm("only_outlinear", rewrite.WithLDA(lda), rewrite.WithGlobalCSE())
		if err := rw.Err(); err != nil {
			return err
		}
	}
	return nil
}
