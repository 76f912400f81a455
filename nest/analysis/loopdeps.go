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

package analysis

import "github.com/nestopt/go-nestopt/nest/ast"

// DepMap maps a symbol (by canonical Key or by bare name) to the set of
// enclosing loop dimensions it varies over.
type DepMap map[string]DimSet

// Get returns the dependence set for a symbol occurrence, trying the
// canonical key first and falling back to the bare name.
func (m DepMap) Get(n *ast.Node) DimSet {
	if d, ok := m[n.Key()]; ok {
		return d
	}
	if d, ok := m[n.Name]; ok {
		return d
	}
	return DimSet{}
}

// LoopDeps walks the kernel and records, per canonical symbol key, which
// enclosing loop dimensions the symbol varies over: the rank entries bound
// by enclosing loops, plus, for symbols written inside a loop, every loop
// enclosing the write site (a scalar assigned inside a loop changes per
// iteration even though its rank is empty). A symbol indexed only by
// constants and never written maps to the empty set.
func LoopDeps(root *ast.Node) DepMap {
	return loopDeps(root, func(n *ast.Node) string { return n.Key() })
}

// LoopDepsBySymbol is LoopDeps keyed by bare symbol name, unioning over all
// occurrences. Useful when rank tuples differ across uses of one array.
func LoopDepsBySymbol(root *ast.Node) DepMap {
	return loopDeps(root, func(n *ast.Node) string { return n.Name })
}

func loopDeps(root *ast.Node, key func(*ast.Node) string) DepMap {
	deps := DepMap{}
	record := func(n *ast.Node, enclosing DimSet, written bool) {
		k := key(n)
		d, ok := deps[k]
		if !ok {
			d = DimSet{}
			deps[k] = d
		}
		for _, r := range n.Rank {
			if enclosing.Has(r) {
				d.Add(r)
			}
		}
		if written {
			for dim := range enclosing {
				d.Add(dim)
			}
		}
	}
	var walk func(n *ast.Node, enclosing DimSet)
	walk = func(n *ast.Node, enclosing DimSet) {
		switch n.Kind {
		case ast.KindSymbol:
			if n.Num {
				return
			}
			record(n, enclosing, false)
		case ast.KindFor:
			inner := enclosing.Union(NewDimSet(n.Dim))
			for _, c := range n.Children {
				walk(c, inner)
			}
		default:
			if ast.IsWriter(n) {
				record(n.LValue(), enclosing, true)
				walk(n.RValue(), enclosing)
				return
			}
			for _, c := range n.Children {
				walk(c, enclosing)
			}
		}
	}
	walk(root, DimSet{})
	return deps
}

// ExprDeps returns the union of dependence sets over all symbols in expr.
func ExprDeps(expr *ast.Node, lda DepMap) DimSet {
	out := DimSet{}
	for _, s := range ast.Symbols(expr) {
		out = out.Union(lda.Get(s))
	}
	return out
}
