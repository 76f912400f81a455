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

// ExprGraph records which symbols each written symbol reads. It is used for
// legality checks only, such as refusing to merge hoisted expressions whose
// inputs were redefined in between.
type ExprGraph struct {
	reads map[string]map[string]bool
}

// NewExprGraph builds the graph from every writer statement under root.
func NewExprGraph(root *ast.Node) *ExprGraph {
	g := &ExprGraph{reads: make(map[string]map[string]bool)}
	for _, w := range ast.Find(root, ast.IsWriter) {
		g.Record(w)
	}
	return g
}

// Record adds the read set of one writer statement.
func (g *ExprGraph) Record(w *ast.Node) {
	name := w.LValue().Name
	set, ok := g.reads[name]
	if !ok {
		set = make(map[string]bool)
		g.reads[name] = set
	}
	for _, s := range ast.Symbols(w.RValue()) {
		set[s.Name] = true
	}
}

// DependsOn reports whether a transitively reads b.
func (g *ExprGraph) DependsOn(a, b string) bool {
	seen := make(map[string]bool)
	var visit func(n string) bool
	visit = func(n string) bool {
		if n == b {
			return true
		}
		if seen[n] {
			return false
		}
		seen[n] = true
		for r := range g.reads[n] {
			if visit(r) {
				return true
			}
		}
		return false
	}
	for r := range g.reads[a] {
		if visit(r) {
			return true
		}
	}
	return false
}
