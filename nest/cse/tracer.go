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
	"github.com/nestopt/go-nestopt/nest/analysis"
	"github.com/nestopt/go-nestopt/nest/ast"
)

// analyzeExpr collects the declared symbols an expression reads and, for
// those varying over a linear dimension, the number of products and
// divisions each occurrence sits under. That count is the per-occurrence
// cost of projecting the read's definition into this expression.
func (u *Unpicker) analyzeExpr(expr *ast.Node, lda analysis.DepMap) ([]*ast.Node, []ReadCost) {
	var reads []*ast.Node
	for _, s := range ast.Symbols(expr) {
		if _, ok := u.Decls[s.Name]; ok {
			reads = append(reads, s)
		}
	}
	linear := analysis.NewDimSet(u.linearDims()...)
	isLinearRead := make(map[*ast.Node]bool)
	for _, s := range reads {
		if len(lda.Get(s).Intersect(linear)) > 0 {
			isLinearRead[s] = true
		}
	}

	var costs []ReadCost
	var walk func(n *ast.Node, found int)
	walk = func(n *ast.Node, found int) {
		switch n.Kind {
		case ast.KindSymbol:
			if isLinearRead[n] {
				costs = append(costs, ReadCost{Sym: n, Key: n.Key(), Cost: found})
			}
			return
		case ast.KindEmpty, ast.KindArrayInit:
			return
		case ast.KindProd, ast.KindDiv:
			found++
		}
		for _, op := range ast.Operands(n) {
			walk(op, found)
		}
	}
	walk(expr, 0)

	return reads, costs
}

// analyzeLoop traces one loop body in program order, assigning each written
// temporary a dependency level: one more than the deepest level among its
// linear reads, with reads defined in earlier loops re-entering at level -1
// and plain tensors at -2.
func (u *Unpicker) analyzeLoop(loop *ast.Node, nest []ast.LoopParent,
	lda analysis.DepMap, globalTrace *Trace) *Trace {
	trace := NewTrace()

	for _, node := range loop.Children {
		if !ast.IsWriter(node) {
			// A non-writer statement embedding a write, e.g. a nested block,
			// breaks the single-assignment property of anything it touches.
			for _, w := range ast.WrittenSyms(node) {
				if t := trace.Get(w.Key()); t != nil {
					t.ReadBy = append(t.ReadBy, t.Symbol())
				}
			}
			continue
		}
		reads, costs := u.analyzeExpr(node.RValue(), lda)
		for _, rc := range costs {
			if g := globalTrace.Get(rc.Key); g != nil {
				g.ReadBy = append(g.ReadBy, node.LValue())
				recon := g.Reconstruct()
				recon.Level = -1
				trace.Put(rc.Key, recon)
				continue
			}
			t := trace.Setdefault(rc.Key, NewTemporary(rc.Sym, loop, nest, nil, nil))
			t.ReadBy = append(t.ReadBy, node.LValue())
		}
		t := NewTemporary(node, loop, nest, reads, costs)
		level := -2
		for _, key := range t.LinearReads() {
			if d := trace.Get(key); d != nil && d.Level > level {
				level = d.Level
			}
		}
		t.Level = level + 1
		trace.Put(node.LValue().Key(), t)
	}

	return trace
}
