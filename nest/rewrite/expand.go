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

import "github.com/nestopt/go-nestopt/nest/ast"

// expander distributes products over sums, bottom-up. A product is only
// distributed when it involves a symbol the caller's predicate selects;
// everything else keeps its shape, so expansion stays targeted at the
// dimensions the follow-up factorization wants to regroup.
type expander struct {
	rw *Rewriter
}

func (e *expander) expand(should func(*ast.Node) bool) {
	rv := e.rw.Stmt.RValue()
	out := e.node(rv, should)
	if out != rv {
		if !ast.ReplaceChild(e.rw.Stmt, rv, out) {
			e.rw.fail("rewrite: expanded expression is not a child of its statement")
		}
	}
}

// node returns the expansion of n, sharing n itself when nothing changed.
func (e *expander) node(n *ast.Node, should func(*ast.Node) bool) *ast.Node {
	switch n.Kind {
	case ast.KindSymbol:
		return n
	case ast.KindSum, ast.KindSub, ast.KindCall:
		// Subtractions and calls are not distributed over, but their
		// operands may themselves contain expandable products.
		e.children(n, should)
		return n
	case ast.KindDiv:
		// The denominator is a barrier: distributing into it would change
		// the value.
		num := n.Children[0]
		if out := e.node(num, should); out != num {
			ast.ReplaceChild(n, num, out)
		}
		return n
	case ast.KindProd:
		e.children(n, should)
		return e.distribute(n, should)
	default:
		return n
	}
}

func (e *expander) children(n *ast.Node, should func(*ast.Node) bool) {
	for _, c := range append([]*ast.Node(nil), n.Children...) {
		if out := e.node(c, should); out != c {
			ast.ReplaceChild(n, c, out)
		}
	}
}

// distribute turns a product with sum operands into a sum of products,
// taking the cartesian product of every operand's summands. Factors are
// deep-copied so no two terms alias a node.
func (e *expander) distribute(prod *ast.Node, should func(*ast.Node) bool) *ast.Node {
	ops := ast.Operands(prod)
	hasSum := false
	for _, op := range ops {
		if op.Kind == ast.KindSum {
			hasSum = true
			break
		}
	}
	if !hasSum {
		return prod
	}
	selected := false
	for _, s := range ast.Symbols(prod) {
		if should(s) {
			selected = true
			break
		}
	}
	if !selected {
		return prod
	}

	terms := [][]*ast.Node{nil}
	for _, op := range ops {
		summands := []*ast.Node{op}
		if op.Kind == ast.KindSum {
			summands = ast.Summands(op)
		}
		next := make([][]*ast.Node, 0, len(terms)*len(summands))
		for _, t := range terms {
			for _, s := range summands {
				factors := make([]*ast.Node, len(t), len(t)+1)
				copy(factors, t)
				next = append(next, append(factors, s))
			}
		}
		terms = next
	}

	sums := make([]*ast.Node, len(terms))
	for i, factors := range terms {
		copies := make([]*ast.Node, len(factors))
		for j, f := range factors {
			copies[j] = ast.Copy(f)
		}
		sums[i] = ast.MakeExpr(ast.KindProd, copies, false)
	}
	return ast.MakeExpr(ast.KindSum, sums, true)
}
