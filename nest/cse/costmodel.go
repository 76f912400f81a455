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

import "math"

// plan is one unpicking alternative: inline levels (lo, hi] into their
// readers, at the given total operation count.
type plan struct {
	lo, hi int
	cost   int
}

// groupByLevel buckets a trace's temporaries by dependency level, keeping
// trace order within each bucket.
func groupByLevel(trace *Trace) map[int][]*Temporary {
	levels := make(map[int][]*Temporary)
	for _, t := range trace.Values() {
		levels[t.Level] = append(levels[t.Level], t)
	}
	return levels
}

func levelBounds(levels map[int][]*Temporary) (lo, hi int) {
	first := true
	for l := range levels {
		if first || l < lo {
			lo = l
		}
		if first || l > hi {
			hi = l
		}
		first = false
	}
	return lo, hi
}

// costCSE is the operation count of leaving the temporaries of levels
// lo..hi materialized: each statement's flops scaled by its iteration
// space.
func costCSE(levels map[int][]*Temporary, lo, hi int) int {
	cost := 0
	for l := lo; l <= hi; l++ {
		for _, t := range levels[l] {
			cost += t.Flops * t.NIters()
		}
	}
	return cost
}

// costFact evaluates the hypothetical cost of inlining levels (lo, hi] one
// level at a time, assuming each inlined statement is then factorized and
// its invariant part hoisted. It returns the cheapest stopping level; the
// first minimum encountered wins ties.
//
// Per temporary with n distinct reads after inlining, the in-loop count is
// 2n-1 (n products, n-1 sums); duplicate reads killed by factorization and
// the projected definitions surviving outside the loop are charged to the
// hoisted part.
func costFact(trace *Trace, levels map[int][]*Temporary, lo, hi int) plan {
	minLevel, _ := levelBounds(levels)
	cseCost := costCSE(levels, minLevel, lo)

	// Cost evaluation mutates read sets; work on copies.
	newTrace := trace.Reconstruct()

	best := plan{lo: lo, hi: lo, cost: math.MaxInt}
	totalOutloop := 0
	for level := lo + 1; level <= hi; level++ {
		temps, ok := levels[level]
		if !ok {
			continue
		}
		levelInloop := 0
		for _, t := range temps {
			tOutloop := 0

			// The reads t would have after pushing its dependencies into it.
			var linearReads []string
			for _, rc := range t.LinearReadsCosts {
				nt := newTrace.Get(rc.Key)
				if nt == nil {
					linearReads = append(linearReads, rc.Key)
					continue
				}
				if lrs := nt.LinearReads(); len(lrs) > 0 {
					linearReads = append(linearReads, lrs...)
				} else {
					linearReads = append(linearReads, rc.Key)
				}
				tOutloop += nt.Project() * rc.Cost
			}

			// Factorization kills duplicates in the loop and moves the
			// corresponding sums outside it.
			factSyms := dedup(linearReads)
			tOutloop += len(linearReads) - len(factSyms)
			tInloop := 2*len(factSyms) - 1

			totalOutloop += tOutloop * t.NItersAfterLICM()
			levelInloop += tInloop * t.NIters()

			projected := make([]ReadCost, len(factSyms))
			for i, s := range factSyms {
				projected[i] = ReadCost{Key: s, Cost: 1}
			}
			newTrace.Get(t.Key()).LinearReadsCosts = projected
		}

		// Temporaries below this level that are still read elsewhere, in a
		// later loop or beyond this level, must stay materialized.
		for j := 0; j < level; j++ {
			for _, t := range levels[j] {
				if readBeyond(t, newTrace, level) {
					levelInloop += t.Flops * t.NIters()
				}
			}
		}

		cost := cseCost + totalOutloop + levelInloop + costCSE(levels, level+1, hi)
		if cost < best.cost {
			best = plan{lo: lo, hi: level, cost: cost}
		}
	}
	return best
}

func readBeyond(t *Temporary, newTrace *Trace, level int) bool {
	for _, rb := range t.ReadBy {
		nt := newTrace.Get(rb.Key())
		if nt == nil || nt.Level > level {
			return true
		}
	}
	return false
}

func dedup(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
