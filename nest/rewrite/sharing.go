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

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/nestopt/go-nestopt/nest/analysis"
	"github.com/nestopt/go-nestopt/nest/ast"
	"github.com/nestopt/go-nestopt/nest/ilp"
)

// sgNode is one vertex of the sharing graph: a linear symbol occurrence
// class, identified by name and rank.
type sgNode struct {
	key  string
	rank []string
}

// SharingGraphRewrite picks the cheapest factorization order by modeling
// which linear symbols share additive terms. Two symbols appearing in the
// same term are connected; a minimum set of vertices touching every edge is
// the minimal set of factorization pivots. The selection is delegated to
// the configured covering solver; when a constrained re-solve over the
// outer reduction dimensions stays optimal it is preferred, since it leaves
// more reductions exposed for later passes.
func (rw *Rewriter) SharingGraphRewrite() *Rewriter {
	if rw.err != nil {
		return rw
	}
	linear := rw.Info.LinearDimSet()
	otherDims := rw.Info.OutLinearDims()

	// Maximize visibility of linear symbols.
	rw.Expand("all")

	// Potential reductions must not hide behind operand order: constants
	// first, then out-linear symbols, then the rest.
	lda := analysis.LoopDeps(rw.Header)
	outLinear := analysis.NewDimSet(otherDims...)
	score := func(n *ast.Node) int {
		s := 0
		d := lda.Get(n)
		if len(d) == 0 {
			s++
		}
		if d.Subset(outLinear) {
			s++
		}
		return s
	}
	rw.Reassociate(func(a, b *ast.Node) bool { return score(a) < score(b) })

	nodes, edges := rw.sharingGraph(lda, linear)

	g := simple.NewUndirectedGraph()
	for _, e := range edges {
		if e[0] == e[1] {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(e[0]), T: simple.Node(e[1])})
	}

	allPivots := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		allPivots[n.key] = nil
	}

	// Vertices outside the graph have no sharing ambiguity; factor them
	// directly and hoist what comes loose.
	connected := nodes[:0:0]
	for i, n := range nodes {
		if g.Node(int64(i)) == nil {
			rw.Factorize("adhoc", WithAdhoc(allPivots))
			rw.Licm("only_const")
			rw.Licm("only_outlinear")
		} else {
			connected = append(connected, n)
		}
	}
	if len(connected) == 0 {
		rw.Factorize("heuristic")
		rw.Licm("only_const")
		rw.Licm("only_outlinear")
		return rw
	}

	prob := ilp.Problem{NumVars: len(nodes), Edges: edges}
	sol, err := rw.Solver.Solve(prob)
	if err != nil {
		// No cover satisfies the constraints; the per-subtree heuristic is
		// always applicable.
		rw.Factorize("heuristic")
		rw.Licm("only_const")
		rw.Licm("only_outlinear")
		return rw
	}

	// With several reduction dimensions, prefer an equally minimal cover
	// that avoids pivots free of the outer reduction dimensions.
	if len(otherDims) > 1 {
		outer := analysis.NewDimSet(otherDims[:len(otherDims)-1]...)
		var forced []int
		for i, n := range nodes {
			if len(analysis.NewDimSet(n.rank...).Intersect(outer)) == 0 {
				forced = append(forced, i)
			}
		}
		alt, altErr := rw.Solver.Solve(ilp.Problem{
			NumVars:    len(nodes),
			Edges:      edges,
			ForcedZero: forced,
		})
		if altErr == nil && len(alt.Selected) == len(sol.Selected) {
			sol = alt
		}
	}

	isSelected := make(map[int]bool, len(sol.Selected))
	for _, v := range sol.Selected {
		isSelected[v] = true
	}
	var pivots, rest []sgNode
	for i, n := range nodes {
		if g.Node(int64(i)) == nil {
			continue
		}
		if isSelected[i] {
			pivots = append(pivots, n)
		} else {
			rest = append(rest, n)
		}
	}
	// Selected pivots apply first, outer ranks first; local sorting keeps
	// the output deterministic.
	sort.Slice(pivots, func(i, j int) bool {
		return fmt.Sprint(pivots[i].rank) < fmt.Sprint(pivots[j].rank)
	})
	sort.Slice(rest, func(i, j int) bool { return rest[i].key < rest[j].key })
	for _, n := range append(pivots, rest...) {
		rw.Factorize("adhoc", WithAdhoc(map[string][]string{n.key: nil}))
	}

	opts := []Option{}
	if len(otherDims) > 1 {
		opts = append(opts, WithPromotion())
	}
	rw.Licm("incremental", opts...)
	return rw
}

// sharingGraph collects the linear symbols of each additive term and the
// pairwise sharing edges between them. Vertex order is first appearance.
func (rw *Rewriter) sharingGraph(lda analysis.DepMap, linear analysis.DimSet) ([]sgNode, [][2]int) {
	var nodes []sgNode
	index := make(map[string]int)
	var edges [][2]int
	for _, term := range ast.Summands(rw.Stmt.RValue()) {
		var idxs []int
		for _, fac := range termFactors(term) {
			if fac.Kind != ast.KindSymbol || fac.Num {
				continue
			}
			if len(lda.Get(fac).Intersect(linear)) == 0 {
				continue
			}
			key := fac.Key()
			i, ok := index[key]
			if !ok {
				i = len(nodes)
				index[key] = i
				nodes = append(nodes, sgNode{key: key, rank: append([]string(nil), fac.Rank...)})
			}
			idxs = append(idxs, i)
		}
		if len(idxs) >= 2 {
			for _, pair := range combin.Combinations(len(idxs), 2) {
				edges = append(edges, [2]int{idxs[pair[0]], idxs[pair[1]]})
			}
		}
	}
	return nodes, edges
}
