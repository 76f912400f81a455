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

// factorizer collects common symbol factors out of sums: a*b + a*c becomes
// a*(b+c). Pivots are chosen by the caller's predicate, or by occurrence
// count in heuristic mode. The result is deterministic: pivots are tried in
// first-seen order and a pivot needs at least two matched terms.
type factorizer struct {
	rw *Rewriter
}

func (f *factorizer) factorize(should func(*ast.Node) bool, o *options) {
	f.walk(f.rw.Stmt.RValue(), f.rw.Stmt, should, o)
}

func (f *factorizer) walk(n, parent *ast.Node, should func(*ast.Node) bool, o *options) {
	switch n.Kind {
	case ast.KindSymbol:
		return
	case ast.KindProd, ast.KindSub, ast.KindCall:
		for _, c := range append([]*ast.Node(nil), n.Children...) {
			f.walk(c, n, should, o)
		}
	case ast.KindDiv:
		f.walk(n.Children[0], n, should, o)
	case ast.KindSum:
		terms := ast.Summands(n)
		for _, t := range terms {
			if t.Kind != ast.KindSymbol {
				f.walk(t, t.Parent, should, o)
			}
		}
		// Re-collect: walking nested sums may have reshaped the chain.
		terms = ast.Summands(n)
		grouped, changed := f.group(terms, should, o)
		if !changed {
			return
		}
		rebuilt := ast.MakeExpr(ast.KindSum, grouped, true)
		if !ast.ReplaceChild(parent, n, rebuilt) {
			f.rw.fail("rewrite: factorized sum is not a child of its parent")
		}
	}
}

// group repeatedly extracts one pivot until no pivot matches two terms.
// Every round strictly shrinks the term list, so this terminates.
func (f *factorizer) group(terms []*ast.Node, should func(*ast.Node) bool, o *options) ([]*ast.Node, bool) {
	changed := false
	for {
		key, matched := f.pick(terms, should, o)
		if key == "" {
			return terms, changed
		}
		terms = f.extract(terms, key, matched, should, o)
		changed = true
	}
}

// pick selects the next pivot key and the indices of the terms it divides.
// In predicate mode the first key (in term order) with two or more matches
// wins; in heuristic mode the most frequent key wins, first seen breaking
// ties.
func (f *factorizer) pick(terms []*ast.Node, should func(*ast.Node) bool, o *options) (string, []int) {
	counts := make(map[string][]int)
	var order []string
	for i, t := range terms {
		seen := make(map[string]bool)
		for _, fac := range termFactors(t) {
			if fac.Kind != ast.KindSymbol || fac.Num {
				continue
			}
			if !o.heuristic && !should(fac) {
				continue
			}
			key := fac.Key()
			if seen[key] || !f.admits(t, key, o) {
				continue
			}
			seen[key] = true
			if _, ok := counts[key]; !ok {
				order = append(order, key)
			}
			counts[key] = append(counts[key], i)
		}
	}
	if o.heuristic {
		best := ""
		for _, k := range order {
			if len(counts[k]) < 2 {
				continue
			}
			if best == "" || len(counts[k]) > len(counts[best]) {
				best = k
			}
		}
		if best == "" {
			return "", nil
		}
		return best, counts[best]
	}
	for _, k := range order {
		if len(counts[k]) >= 2 {
			return k, counts[k]
		}
	}
	return "", nil
}

// admits applies the adhoc restriction: when the pivot maps to a non-empty
// list, every other symbol in the term must be on it.
func (f *factorizer) admits(t *ast.Node, key string, o *options) bool {
	allowed := o.adhoc[key]
	if len(allowed) == 0 {
		return true
	}
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	for _, s := range ast.Symbols(t) {
		if s.Key() == key {
			continue
		}
		if !ok[s.Key()] {
			return false
		}
	}
	return true
}

// extract rewrites terms so that the matched ones collapse into a single
// pivot*(sum of cofactors) term at the first matched position.
func (f *factorizer) extract(terms []*ast.Node, key string, matched []int,
	should func(*ast.Node) bool, o *options) []*ast.Node {
	isMatch := make(map[int]bool, len(matched))
	for _, i := range matched {
		isMatch[i] = true
	}
	var pivot *ast.Node
	cofactors := make([]*ast.Node, 0, len(matched))
	for _, i := range matched {
		p, rest := splitPivot(terms[i], key)
		if pivot == nil {
			pivot = ast.Copy(p)
		}
		cofactors = append(cofactors, rest)
	}
	if o.heuristic {
		cofactors, _ = f.group(cofactors, should, o)
	}
	grouped := ast.NewProd(pivot, ast.MakeExpr(ast.KindSum, cofactors, true))

	out := make([]*ast.Node, 0, len(terms)-len(matched)+1)
	for i, t := range terms {
		if i == matched[0] {
			out = append(out, grouped)
			continue
		}
		if isMatch[i] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// splitPivot removes one occurrence of the pivot from a term's factors,
// returning the pivot instance and the residual cofactor. A term that is
// nothing but the pivot leaves a cofactor of 1.
func splitPivot(term *ast.Node, key string) (pivot, cofactor *ast.Node) {
	factors := termFactors(term)
	rest := make([]*ast.Node, 0, len(factors)-1)
	for _, fac := range factors {
		if pivot == nil && fac.Kind == ast.KindSymbol && !fac.Num && fac.Key() == key {
			pivot = fac
			continue
		}
		rest = append(rest, fac)
	}
	if len(rest) == 0 {
		return pivot, ast.NewNum(1)
	}
	return pivot, ast.MakeExpr(ast.KindProd, rest, false)
}

func termFactors(term *ast.Node) []*ast.Node {
	if term.Kind == ast.KindProd {
		return ast.Operands(term)
	}
	return []*ast.Node{term}
}
