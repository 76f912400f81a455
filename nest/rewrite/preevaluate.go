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

	"github.com/nestopt/go-nestopt/nest/analysis"
	"github.com/nestopt/go-nestopt/nest/ast"
	"github.com/nestopt/go-nestopt/nest/eval"
)

// Preevaluate folds subexpressions whose values are compile-time constants.
// When a reduction accumulates only hoisted tables, the reduction loop itself
// is removed: the hoisted assignments become accumulations over the reduced
// dimension, and the resulting tables are evaluated into constant array
// initializers, with structurally identical tables shared under one
// declaration. The statement must be an accumulation over a perfect
// reduction nest; anything else is left alone.
func (rw *Rewriter) Preevaluate() *Rewriter {
	if rw.err != nil {
		return rw
	}
	switch rw.Stmt.Kind {
	case ast.KindIncr, ast.KindDecr, ast.KindIMul, ast.KindIDiv:
	default:
		return rw
	}
	reduction := rw.Info.ReductionLoops()
	for _, lp := range reduction {
		if !ast.IsPerfectLoop(lp.Loop) {
			return rw
		}
	}
	if !rw.hoistedDimsKnown() {
		return rw
	}

	exprSyms := ast.Symbols(rw.Stmt.RValue())
	allDims := rw.Info.Dims()
	nloops := len(rw.Info.Nest)
	for _, lp := range reduction {
		lda := analysis.LoopDeps(lp.Loop)
		for _, s := range exprSyms {
			d := lda.Get(s)
			if len(d) == 0 {
				continue
			}
			// Safe only when every varying symbol assumes a distinct value
			// at each point of the whole iteration space.
			if !d.Equal(allDims) || len(s.Rank) != nloops {
				return rw
			}
		}
		reducible := make(map[string]bool)
		for _, s := range exprSyms {
			if s.Num || allConstRank(s) {
				continue
			}
			if !rw.Hoisted.Contains(s.Name) {
				return rw
			}
			reducible[s.Name] = true
		}
		rw.reduceHoisted(reducible)
		for _, s := range exprSyms {
			if reducible[s.Name] {
				s.Rank = append([]string(nil), rw.Info.LinearDims...)
			}
		}
		spliceLoop(lp)
		rw.Info.DropLoop(lp.Loop)
	}

	rw.foldTables()
	return rw
}

// hoistedDimsKnown checks that every dimension indexing a hoisted statement
// is either constant or one of the expression's loop dimensions. A foreign
// dimension means the table's extent is unknown and evaluation is unsafe.
func (rw *Rewriter) hoistedDimsKnown() bool {
	dims := rw.Info.Dims()
	for _, stmt := range rw.Hoisted.AllStmts() {
		if stmt == nil {
			continue
		}
		for _, s := range ast.Symbols(stmt) {
			for _, r := range s.Rank {
				if !ast.IsConstDim(r) && !dims.Has(r) {
					return false
				}
			}
		}
	}
	return true
}

func allConstRank(s *ast.Node) bool {
	for _, r := range s.Rank {
		if !ast.IsConstDim(r) {
			return false
		}
	}
	return true
}

// reduceHoisted turns the hoisted assignments feeding the reduction into
// accumulations, dropping the reduced dimension from their ranks and shapes.
func (rw *Rewriter) reduceHoisted(reducible map[string]bool) {
	linear := append([]string(nil), rw.Info.LinearDims...)
	for _, loop := range rw.Hoisted.AllLoops() {
		for _, assign := range ast.FindKind(loop, ast.KindAssign) {
			lv := assign.LValue()
			if !reducible[lv.Name] {
				continue
			}
			entry, ok := rw.Hoisted.Get(lv.Name)
			if !ok {
				continue
			}
			incr := ast.NewIncr(ast.NewSym(lv.Name, linear...), assign.RValue())
			ast.ReplaceChild(assign.Parent, assign, incr)
			entry.Stmt = incr
			rw.Hoisted.Add(lv.Name, entry)
			if entry.Decl != nil && len(entry.Decl.Shape) > 0 {
				entry.Decl.Shape = entry.Decl.Shape[1:]
			}
		}
	}
}

// spliceLoop replaces a loop with its body in the enclosing block.
func spliceLoop(lp ast.LoopParent) {
	parent, loop := lp.Parent, lp.Loop
	idx := -1
	for i, c := range parent.Children {
		if c == loop {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	body := loop.Children
	rest := append([]*ast.Node(nil), parent.Children[idx+1:]...)
	parent.Children = append(parent.Children[:idx], body...)
	parent.Children = append(parent.Children, rest...)
	for _, c := range body {
		c.Parent = parent
	}
}

// foldTables evaluates each hoisted loop into constant data, shares
// identical tables, and rewrites the surviving declarations into static
// const initializers at the top of the kernel.
func (rw *Rewriter) foldTables() {
	for _, loop := range rw.Hoisted.AllLoops() {
		tables, err := eval.Tables(loop, rw.Decls)
		if err != nil {
			// Not compile-time constant after all; leave the loop in place.
			continue
		}

		names := make([]string, 0, len(tables))
		for _, n := range rw.Hoisted.Names() {
			if _, ok := tables[n]; ok {
				names = append(names, n)
			}
		}
		byData := make(map[string][]string)
		var dataOrder []string
		for _, n := range names {
			key := fmt.Sprint(tables[n].Data)
			if _, ok := byData[key]; !ok {
				dataOrder = append(dataOrder, key)
			}
			byData[key] = append(byData[key], n)
		}

		for _, key := range dataOrder {
			group := byData[key]
			canonical := group[0]
			for _, dup := range group[1:] {
				renameSyms(rw.Stmt, dup, canonical)
				if entry, ok := rw.Hoisted.Get(dup); ok && entry.Decl != nil {
					ast.Remove(rw.Header, entry.Decl)
				}
				rw.Hoisted.Remove(dup)
				delete(rw.Decls, dup)
				delete(tables, dup)
			}
		}

		for name, table := range tables {
			entry, ok := rw.Hoisted.Get(name)
			if !ok || entry.Decl == nil {
				continue
			}
			decl := entry.Decl
			init := ast.NewArrayInit(table.Data)
			init.Parent = decl
			decl.Children = []*ast.Node{init}
			decl.Qualifiers = []string{"static", "const"}
			ast.Remove(rw.Header, decl)
			ast.Prepend(rw.Header, decl)
			rw.Hoisted.Remove(name)
		}
		ast.Remove(rw.Header, loop)
	}
}

func renameSyms(root *ast.Node, from, to string) {
	for _, s := range ast.Symbols(root) {
		if s.Name == from {
			s.Name = to
		}
	}
}
