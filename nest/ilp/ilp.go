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

// Package ilp solves the 0/1 covering programs the factorization selector
// emits: minimize the number of selected binary variables subject to every
// edge having at least one selected endpoint, with some variables
// optionally pinned to zero. Solvers are injected as an interface so tests
// and callers can substitute a heuristic.
package ilp

import (
	"errors"
	"sort"
)

// ErrInfeasible is returned when the constraints admit no assignment, for
// example when both endpoints of an edge are forced to zero. Callers treat
// it as a status, not a failure.
var ErrInfeasible = errors.New("ilp: problem is infeasible")

// Problem is a minimum-cardinality binary covering problem over variables
// 0..NumVars-1.
type Problem struct {
	NumVars    int
	Edges      [][2]int // each edge needs at least one selected endpoint
	ForcedZero []int    // variables constrained to zero
}

// Solution is the selected variable set of a solved problem.
type Solution struct {
	Selected []int // ascending variable indices
	Optimal  bool  // proved minimal by the solver
}

// Solver finds a selection for a covering problem.
type Solver interface {
	Solve(p Problem) (Solution, error)
}

// Exact is a branch-and-bound solver. It always returns a proved-optimal
// selection for feasible problems; the graphs produced by one expression
// are small, so exhaustive search with pruning is more than fast enough.
type Exact struct{}

func (Exact) Solve(p Problem) (Solution, error) {
	forced := make([]bool, p.NumVars)
	for _, v := range p.ForcedZero {
		if v >= 0 && v < p.NumVars {
			forced[v] = true
		}
	}
	for _, e := range p.Edges {
		if forced[e[0]] && forced[e[1]] {
			return Solution{}, ErrInfeasible
		}
	}

	best := make([]bool, p.NumVars)
	for i := range best {
		best[i] = !forced[i]
	}
	bestCount := count(best)

	cur := make([]bool, p.NumVars)
	var search func(edge, selected int)
	search = func(edge, selected int) {
		if selected >= bestCount {
			return
		}
		// Skip edges already covered by the current selection.
		for edge < len(p.Edges) && (cur[p.Edges[edge][0]] || cur[p.Edges[edge][1]]) {
			edge++
		}
		if edge == len(p.Edges) {
			copy(best, cur)
			bestCount = selected
			return
		}
		for _, v := range p.Edges[edge] {
			if forced[v] {
				continue
			}
			cur[v] = true
			search(edge+1, selected+1)
			cur[v] = false
		}
	}
	search(0, 0)

	return Solution{Selected: selection(best), Optimal: true}, nil
}

// Greedy repeatedly selects the admissible variable covering the most
// uncovered edges. It is fast and feasible but not necessarily minimal.
type Greedy struct{}

func (Greedy) Solve(p Problem) (Solution, error) {
	forced := make([]bool, p.NumVars)
	for _, v := range p.ForcedZero {
		if v >= 0 && v < p.NumVars {
			forced[v] = true
		}
	}
	for _, e := range p.Edges {
		if forced[e[0]] && forced[e[1]] {
			return Solution{}, ErrInfeasible
		}
	}

	selected := make([]bool, p.NumVars)
	covered := make([]bool, len(p.Edges))
	remaining := len(p.Edges)
	for remaining > 0 {
		degree := make([]int, p.NumVars)
		for i, e := range p.Edges {
			if covered[i] {
				continue
			}
			degree[e[0]]++
			degree[e[1]]++
		}
		bestVar, bestDeg := -1, 0
		for v := 0; v < p.NumVars; v++ {
			if forced[v] || selected[v] {
				continue
			}
			if degree[v] > bestDeg {
				bestVar, bestDeg = v, degree[v]
			}
		}
		if bestVar < 0 {
			return Solution{}, ErrInfeasible
		}
		selected[bestVar] = true
		for i, e := range p.Edges {
			if !covered[i] && (e[0] == bestVar || e[1] == bestVar) {
				covered[i] = true
				remaining--
			}
		}
	}
	return Solution{Selected: selection(selected), Optimal: false}, nil
}

func count(sel []bool) int {
	n := 0
	for _, on := range sel {
		if on {
			n++
		}
	}
	return n
}

func selection(sel []bool) []int {
	var out []int
	for v, on := range sel {
		if on {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
