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

// MetaExpr describes one expression statement for the rewriter: its
// enclosing loop nest and which of those dimensions are linear. It is
// supplied by the front-end (or built with Describe) and treated as
// read-only by every transformation.
type MetaExpr struct {
	Type       string // element type of the kernel, e.g. "double"
	Nest       []ast.LoopParent
	LinearDims []string // declared linear dimensions, outermost first
}

// Dims returns the set of all nest dimensions.
func (m *MetaExpr) Dims() DimSet {
	s := DimSet{}
	for _, lp := range m.Nest {
		s.Add(lp.Loop.Dim)
	}
	return s
}

// LinearDimSet returns the linear dimensions as a set.
func (m *MetaExpr) LinearDimSet() DimSet {
	return NewDimSet(m.LinearDims...)
}

// OutLinearDims returns the nest dimensions that are not linear, outermost
// first. For an integration kernel these are the reduction dimensions.
func (m *MetaExpr) OutLinearDims() []string {
	linear := m.LinearDimSet()
	var out []string
	for _, lp := range m.Nest {
		if !linear.Has(lp.Loop.Dim) {
			out = append(out, lp.Loop.Dim)
		}
	}
	return out
}

// OutLinearDimSet returns OutLinearDims as a set.
func (m *MetaExpr) OutLinearDimSet() DimSet {
	return NewDimSet(m.OutLinearDims()...)
}

// Dimension is the number of linear dimensions: the rank of the temporary
// the statement computes.
func (m *MetaExpr) Dimension() int { return len(m.LinearDims) }

// Loops returns the nest loops, outermost first.
func (m *MetaExpr) Loops() []*ast.Node {
	out := make([]*ast.Node, len(m.Nest))
	for i, lp := range m.Nest {
		out[i] = lp.Loop
	}
	return out
}

// LinearLoops returns the nest loops over linear dimensions.
func (m *MetaExpr) LinearLoops() []*ast.Node {
	linear := m.LinearDimSet()
	var out []*ast.Node
	for _, lp := range m.Nest {
		if linear.Has(lp.Loop.Dim) {
			out = append(out, lp.Loop)
		}
	}
	return out
}

// ReductionLoops returns the out-linear loops with their parents, outermost
// first. These are the loops a reduction can potentially be pulled out of.
func (m *MetaExpr) ReductionLoops() []ast.LoopParent {
	linear := m.LinearDimSet()
	var out []ast.LoopParent
	for _, lp := range m.Nest {
		if !linear.Has(lp.Loop.Dim) {
			out = append(out, lp)
		}
	}
	return out
}

// OutermostLoop returns the outermost nest loop, or nil for a loop-free
// statement.
func (m *MetaExpr) OutermostLoop() *ast.Node {
	if len(m.Nest) == 0 {
		return nil
	}
	return m.Nest[0].Loop
}

// LoopFor returns the nest loop iterating dim, or nil.
func (m *MetaExpr) LoopFor(dim string) *ast.Node {
	for _, lp := range m.Nest {
		if lp.Loop.Dim == dim {
			return lp.Loop
		}
	}
	return nil
}

// DropLoop removes a loop from the nest after it has been eliminated from
// the tree.
func (m *MetaExpr) DropLoop(loop *ast.Node) {
	for i, lp := range m.Nest {
		if lp.Loop == loop {
			m.Nest = append(m.Nest[:i], m.Nest[i+1:]...)
			return
		}
	}
}

// Describe builds a MetaExpr for stmt by walking its parents up to the
// kernel root.
func Describe(stmt *ast.Node, typ string, linearDims []string) *MetaExpr {
	return &MetaExpr{
		Type:       typ,
		Nest:       ast.EnclosingLoops(stmt),
		LinearDims: linearDims,
	}
}
