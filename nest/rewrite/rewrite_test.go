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
	"testing"

	"github.com/nestopt/go-nestopt/nest/analysis"
	"github.com/nestopt/go-nestopt/nest/ast"
	"github.com/nestopt/go-nestopt/nest/eval"
)

// runKernel interprets a kernel and returns the environment. All test data
// is small-integer valued, so results compare exactly.
func runKernel(t *testing.T, kernel *ast.Node) *eval.Env {
	t.Helper()
	env := eval.NewEnv()
	if err := eval.Run(kernel, env); err != nil {
		t.Fatalf("eval: %v", err)
	}
	return env
}

func sameArray(t *testing.T, name string, before, after *eval.Env) {
	t.Helper()
	b, a := before.Arrays[name], after.Arrays[name]
	if b == nil || a == nil {
		t.Fatalf("%s missing from an environment", name)
	}
	for i := range b.Data {
		if b.Data[i] != a.Data[i] {
			t.Errorf("%s flat[%d]: %v before, %v after", name, i, b.Data[i], a.Data[i])
		}
	}
}

func TestLicmNormalHoistsInvariantProduct(t *testing.T) {
	// for i { for j { A[i][j] = B[j]*C[j] + D[i] } }: B*C is j-only.
	stmt := ast.NewAssign(ast.NewSym("A", "i", "j"),
		ast.NewSum(
			ast.NewProd(ast.NewSym("B", "j"), ast.NewSym("C", "j")),
			ast.NewSym("D", "i")))
	kernel := ast.NewBlock(
		ast.NewDecl("double", "A", []int{3, 3}, nil),
		ast.NewDecl("double", "B", []int{3}, ast.NewArrayInit([]float64{1, 2, 3})),
		ast.NewDecl("double", "C", []int{3}, ast.NewArrayInit([]float64{4, 5, 6})),
		ast.NewDecl("double", "D", []int{3}, ast.NewArrayInit([]float64{7, 8, 9})),
		ast.NewFor("i", 3, ast.NewFor("j", 3, stmt)),
	)
	original := ast.Copy(kernel)

	info := analysis.Describe(stmt, "double", []string{"i", "j"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)
	if err := rw.Licm("normal").Err(); err != nil {
		t.Fatal(err)
	}

	if !rw.Hoisted.Contains("ct0") {
		t.Fatal("no temporary was hoisted")
	}
	h, _ := rw.Hoisted.Get("ct0")
	if h.Loop == nil || h.Loop.Dim != "j" {
		t.Errorf("hoist loop = %v, want a j loop", h.Loop)
	}
	sameArray(t, "A", runKernel(t, original), runKernel(t, kernel))
}

func TestLicmNormalSplitsRankedAndScalarHoists(t *testing.T) {
	// for i { for j { for k { a[j][k] += (b[i][j]+c[i][j])*(d[i][k]+e[i][k]) } } }:
	// the k-varying sum escapes the j loop as a table over k, while the
	// j-varying sum stays inside j as a scalar.
	stmt := ast.NewIncr(ast.NewSym("a", "j", "k"),
		ast.NewProd(
			ast.NewSum(ast.NewSym("b", "i", "j"), ast.NewSym("c", "i", "j")),
			ast.NewSum(ast.NewSym("d", "i", "k"), ast.NewSym("e", "i", "k"))))
	kernel := ast.NewBlock(
		ast.NewDecl("double", "a", []int{3, 3}, nil),
		ast.NewDecl("double", "b", []int{2, 3}, ast.NewArrayInit([]float64{1, 2, 3, 4, 5, 6})),
		ast.NewDecl("double", "c", []int{2, 3}, ast.NewArrayInit([]float64{2, 0, 1, 3, 1, 2})),
		ast.NewDecl("double", "d", []int{2, 3}, ast.NewArrayInit([]float64{5, 1, 4, 2, 2, 1})),
		ast.NewDecl("double", "e", []int{2, 3}, ast.NewArrayInit([]float64{1, 1, 2, 0, 3, 1})),
		ast.NewFor("i", 2, ast.NewFor("j", 3, ast.NewFor("k", 3, stmt))),
	)
	original := ast.Copy(kernel)

	info := analysis.Describe(stmt, "double", []string{"j", "k"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)
	if err := rw.Licm("normal").Err(); err != nil {
		t.Fatal(err)
	}

	scalar, ok := rw.Hoisted.Get("ct0")
	if !ok {
		t.Fatal("the j-varying sum was not hoisted")
	}
	if len(scalar.Stmt.LValue().Rank) != 0 {
		t.Errorf("ct0 rank = %v, want a scalar", scalar.Stmt.LValue().Rank)
	}
	if loops := ast.EnclosingLoops(scalar.Stmt); len(loops) != 2 || loops[1].Loop.Dim != "j" {
		t.Errorf("ct0 defined under %d loops, want i and j", len(loops))
	}

	table, ok := rw.Hoisted.Get("ct1")
	if !ok {
		t.Fatal("the k-varying sum was not hoisted")
	}
	if table.Loop == nil || table.Loop.Dim != "k" {
		t.Errorf("ct1 wrap loop = %v, want a k loop", table.Loop)
	}
	if rank := table.Stmt.LValue().Rank; len(rank) != 1 || rank[0] != "k" {
		t.Errorf("ct1 rank = %v, want [k]", rank)
	}
	if loops := ast.EnclosingLoops(table.Stmt); len(loops) != 2 || loops[0].Loop.Dim != "i" {
		t.Errorf("ct1 evaluated under %d loops, want its own k loop in the i body", len(loops))
	}
	sameArray(t, "a", runKernel(t, original), runKernel(t, kernel))
}

func TestLicmReductionsPullsLoopOut(t *testing.T) {
	// for i { for j { a[j] += b[j]*c[i] } } becomes an accumulation of c
	// followed by a pure j loop.
	stmt := ast.NewIncr(ast.NewSym("a", "j"),
		ast.NewProd(ast.NewSym("b", "j"), ast.NewSym("c", "i")))
	kernel := ast.NewBlock(
		ast.NewDecl("double", "a", []int{3}, nil),
		ast.NewDecl("double", "b", []int{3}, ast.NewArrayInit([]float64{1, 2, 3})),
		ast.NewDecl("double", "c", []int{4}, ast.NewArrayInit([]float64{1, 2, 3, 4})),
		ast.NewFor("i", 4, ast.NewFor("j", 3, stmt)),
	)
	original := ast.Copy(kernel)

	info := analysis.Describe(stmt, "double", []string{"j"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)
	if err := rw.Licm("reductions").Err(); err != nil {
		t.Fatal(err)
	}

	loops := ast.EnclosingLoops(stmt)
	if len(loops) != 1 || loops[0].Loop.Dim != "j" {
		t.Fatalf("statement still nested in %d loops", len(loops))
	}
	if !rw.Hoisted.Contains("ct0") {
		t.Error("no accumulator was introduced")
	}
	sameArray(t, "a", runKernel(t, original), runKernel(t, kernel))
}

func TestExpandDistributesThenFactorizeRegroups(t *testing.T) {
	// (b+c)*d expands to b*d + c*d; the heuristic factorizer then picks d,
	// the most frequent factor, as the pivot.
	stmt := ast.NewAssign(ast.NewSym("A", "j"),
		ast.NewProd(
			ast.NewSum(ast.NewSym("b", "j"), ast.NewSym("c", "j")),
			ast.NewSym("d", "j")))
	kernel := ast.NewBlock(
		ast.NewDecl("double", "A", []int{3}, nil),
		ast.NewDecl("double", "b", []int{3}, ast.NewArrayInit([]float64{1, 2, 3})),
		ast.NewDecl("double", "c", []int{3}, ast.NewArrayInit([]float64{4, 5, 6})),
		ast.NewDecl("double", "d", []int{3}, ast.NewArrayInit([]float64{7, 8, 9})),
		ast.NewFor("j", 3, stmt),
	)
	original := ast.Copy(kernel)
	info := analysis.Describe(stmt, "double", []string{"j"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)

	rw.Expand("all")
	if err := rw.Err(); err != nil {
		t.Fatal(err)
	}
	if n := len(ast.Summands(stmt.RValue())); n != 2 {
		t.Fatalf("expansion produced %d terms, want 2", n)
	}

	rw.Factorize("heuristic")
	if err := rw.Err(); err != nil {
		t.Fatal(err)
	}
	rv := stmt.RValue()
	if rv.Kind != ast.KindProd || rv.Children[0].Key() != "d(j)" {
		t.Errorf("factorized form = %s, want d as pivot", rv)
	}
	sameArray(t, "A", runKernel(t, original), runKernel(t, kernel))
}

func TestFactorizeHeuristicIdempotent(t *testing.T) {
	// a*x + a*y + b*x groups to a*(x+y) + b*x; a second pass finds no pivot
	// dividing two terms and leaves the tree alone.
	stmt := ast.NewAssign(ast.NewSym("A", "j"),
		ast.NewSum(
			ast.NewSum(
				ast.NewProd(ast.NewSym("a", "j"), ast.NewSym("x", "j")),
				ast.NewProd(ast.NewSym("a", "j"), ast.NewSym("y", "j"))),
			ast.NewProd(ast.NewSym("b", "j"), ast.NewSym("x", "j"))))
	kernel := ast.NewBlock(ast.NewDecl("double", "A", []int{3}, nil), ast.NewFor("j", 3, stmt))
	info := analysis.Describe(stmt, "double", []string{"j"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)

	if err := rw.Factorize("heuristic").Err(); err != nil {
		t.Fatal(err)
	}
	snapshot := ast.Copy(kernel)
	if err := rw.Factorize("heuristic").Err(); err != nil {
		t.Fatal(err)
	}
	if !ast.Equal(kernel, snapshot) {
		t.Error("second factorization changed an already grouped expression")
	}
}

func TestExpandThenFactorizeDimensionsRestoresCount(t *testing.T) {
	// Expanding over j and regrouping over the same dimension is
	// operation-neutral: (b+c)*d costs two flops either way.
	stmt := ast.NewAssign(ast.NewSym("A", "j"),
		ast.NewProd(
			ast.NewSum(ast.NewSym("b", "j"), ast.NewSym("c", "j")),
			ast.NewSym("d", "j")))
	kernel := ast.NewBlock(
		ast.NewDecl("double", "A", []int{3}, nil),
		ast.NewDecl("double", "b", []int{3}, ast.NewArrayInit([]float64{1, 2, 3})),
		ast.NewDecl("double", "c", []int{3}, ast.NewArrayInit([]float64{4, 5, 6})),
		ast.NewDecl("double", "d", []int{3}, ast.NewArrayInit([]float64{7, 8, 9})),
		ast.NewFor("j", 3, stmt),
	)
	original := ast.Copy(kernel)
	before := ast.EstimateFlops(stmt)

	info := analysis.Describe(stmt, "double", []string{"j"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)
	rw.Expand("dimensions", WithDimensions("j"))
	if err := rw.Err(); err != nil {
		t.Fatal(err)
	}
	if mid := ast.EstimateFlops(stmt); mid <= before {
		t.Fatalf("expansion did not distribute: %d flops", mid)
	}
	rw.Factorize("dimensions", WithDimensions("j"))
	if err := rw.Err(); err != nil {
		t.Fatal(err)
	}
	if after := ast.EstimateFlops(stmt); after != before {
		t.Errorf("round trip flops = %d, want %d", after, before)
	}
	sameArray(t, "A", runKernel(t, original), runKernel(t, kernel))
}

func TestFactorizeAdhocRestrictsPivots(t *testing.T) {
	// a*x + a*y + b*x: only a is an allowed pivot, so b*x stays alone.
	stmt := ast.NewAssign(ast.NewSym("A", "j"),
		ast.NewSum(
			ast.NewSum(
				ast.NewProd(ast.NewSym("a", "j"), ast.NewSym("x", "j")),
				ast.NewProd(ast.NewSym("a", "j"), ast.NewSym("y", "j"))),
			ast.NewProd(ast.NewSym("b", "j"), ast.NewSym("x", "j"))))
	kernel := ast.NewBlock(ast.NewDecl("double", "A", []int{3}, nil), ast.NewFor("j", 3, stmt))
	info := analysis.Describe(stmt, "double", []string{"j"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)

	rw.Factorize("adhoc", WithAdhoc(map[string][]string{"a(j)": nil}))
	if err := rw.Err(); err != nil {
		t.Fatal(err)
	}
	terms := ast.Summands(stmt.RValue())
	if len(terms) != 2 {
		t.Fatalf("got %d terms, want 2", len(terms))
	}
	var grouped *ast.Node
	for _, term := range terms {
		if term.Kind == ast.KindProd && term.Children[0].Key() == "a(j)" {
			grouped = term
		}
	}
	if grouped == nil {
		t.Fatal("a was not extracted as a pivot")
	}
	if grouped.Children[1].Kind != ast.KindSum {
		t.Errorf("cofactor of a = %s, want a sum", grouped.Children[1])
	}
}

func TestReassociateSortsSymbolOperands(t *testing.T) {
	prod := ast.NewProd(ast.NewProd(ast.NewSym("c"), ast.NewSym("b")), ast.NewSym("a"))
	stmt := ast.NewAssign(ast.NewSym("x"), prod)
	rw := New(stmt, &analysis.MetaExpr{}, nil, nil, nil)
	if err := rw.Reassociate(nil).Err(); err != nil {
		t.Fatal(err)
	}
	ops := ast.Operands(stmt.RValue())
	if ops[0].Name != "a" || ops[1].Name != "b" || ops[2].Name != "c" {
		t.Errorf("operand order = %s %s %s", ops[0].Name, ops[1].Name, ops[2].Name)
	}
}

func TestReassociateOrdersByRankFirst(t *testing.T) {
	// z(j) sorts before a(k): rank tuple outranks name.
	stmt := ast.NewAssign(ast.NewSym("x"),
		ast.NewProd(ast.NewSym("a", "k"), ast.NewSym("z", "j")))
	rw := New(stmt, &analysis.MetaExpr{}, nil, nil, nil)
	if err := rw.Reassociate(nil).Err(); err != nil {
		t.Fatal(err)
	}
	ops := ast.Operands(stmt.RValue())
	if ops[0].Name != "z" || ops[1].Name != "a" {
		t.Errorf("operand order = %s %s, want z a", ops[0].Name, ops[1].Name)
	}
}

func TestReassociateAppliedTwiceKeepsOrder(t *testing.T) {
	stmt := ast.NewAssign(ast.NewSym("x"),
		ast.NewProd(
			ast.NewProd(ast.NewSym("c"),
				ast.NewProd(ast.NewSym("b", "k"), ast.NewSym("b", "j"))),
			ast.NewSym("a")))
	rw := New(stmt, &analysis.MetaExpr{}, nil, nil, nil)
	if err := rw.Reassociate(nil).Err(); err != nil {
		t.Fatal(err)
	}
	snapshot := ast.Copy(stmt)
	if err := rw.Reassociate(nil).Err(); err != nil {
		t.Fatal(err)
	}
	if !ast.Equal(stmt, snapshot) {
		t.Error("second reassociation reordered operands")
	}
	ops := ast.Operands(stmt.RValue())
	want := []string{"a", "c", "b(j)", "b(k)"}
	for i, w := range want {
		if ops[i].Key() != w {
			t.Errorf("operand %d = %s, want %s", i, ops[i].Key(), w)
		}
	}
}

func TestReplaceDivFoldsConstantDivisor(t *testing.T) {
	stmt := ast.NewAssign(ast.NewSym("x"),
		ast.NewSum(
			ast.NewDiv(ast.NewSym("a"), ast.NewNum(4)),
			ast.NewDiv(ast.NewSym("b"), ast.NewSym("c"))))
	rw := New(stmt, &analysis.MetaExpr{}, nil, nil, nil)
	if err := rw.ReplaceDiv().Err(); err != nil {
		t.Fatal(err)
	}

	env := eval.NewEnv()
	env.Scalars["a"] = 8
	env.Scalars["b"] = 6
	env.Scalars["c"] = 2
	got, err := eval.Expr(stmt.RValue(), env)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("rewritten expression = %v, want 5", got)
	}
	// The constant division folded into a literal multiply; the symbolic one
	// became a reciprocal product.
	for _, term := range ast.Summands(stmt.RValue()) {
		if term.Kind == ast.KindDiv {
			t.Errorf("division survived: %s", term)
		}
	}
}

func TestSharingGraphRewriteReducesOperations(t *testing.T) {
	// a*c + a*d + b*c: the minimum cover {a, c} factors a out of two terms.
	stmt := ast.NewIncr(ast.NewSym("A", "j", "k"),
		ast.NewSum(
			ast.NewSum(
				ast.NewProd(ast.NewSym("a", "j"), ast.NewSym("c", "k")),
				ast.NewProd(ast.NewSym("a", "j"), ast.NewSym("d", "k"))),
			ast.NewProd(ast.NewSym("b", "j"), ast.NewSym("c", "k"))))
	kernel := ast.NewBlock(
		ast.NewDecl("double", "A", []int{3, 3}, nil),
		ast.NewDecl("double", "a", []int{3}, ast.NewArrayInit([]float64{1, 2, 3})),
		ast.NewDecl("double", "b", []int{3}, ast.NewArrayInit([]float64{4, 5, 6})),
		ast.NewDecl("double", "c", []int{3}, ast.NewArrayInit([]float64{7, 8, 9})),
		ast.NewDecl("double", "d", []int{3}, ast.NewArrayInit([]float64{2, 4, 6})),
		ast.NewFor("j", 3, ast.NewFor("k", 3, stmt)),
	)
	original := ast.Copy(kernel)
	before := ast.EstimateFlops(kernel)

	info := analysis.Describe(stmt, "double", []string{"j", "k"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)
	if err := rw.SharingGraphRewrite().Err(); err != nil {
		t.Fatal(err)
	}

	if after := ast.EstimateFlops(kernel); after >= before {
		t.Errorf("flops %d -> %d, want a reduction", before, after)
	}
	sameArray(t, "A", runKernel(t, original), runKernel(t, kernel))
}

func TestPreevaluateFoldsReduction(t *testing.T) {
	// The hoisted table T depends only on the constant inputs W and M, so
	// the q reduction folds into a static const table.
	declW := ast.NewDecl("double", "W", []int{4}, ast.NewArrayInit([]float64{1, 2, 3, 4}))
	declM := ast.NewDecl("double", "M", []int{4, 3},
		ast.NewArrayInit([]float64{1, 0, 2, 0, 1, 0, 3, 0, 1, 1, 1, 1}))
	declT := ast.NewDecl("double", "T", []int{4, 3}, nil)
	assign := ast.NewAssign(ast.NewSym("T", "q", "j"),
		ast.NewProd(ast.NewSym("W", "q"), ast.NewSym("M", "q", "j")))
	hoistLoop := ast.NewFor("q", 4, ast.NewFor("j", 3, assign))

	stmt := ast.NewIncr(ast.NewSym("A", "j"), ast.NewSym("T", "q", "j"))
	mainLoop := ast.NewFor("q", 4, ast.NewFor("j", 3, stmt))

	kernel := ast.NewBlock(
		ast.NewDecl("double", "A", []int{3}, nil),
		declW, declM, declT, hoistLoop, mainLoop,
	)
	original := ast.Copy(kernel)

	decls := map[string]*ast.Node{"W": declW, "M": declM, "T": declT}
	hoisted := NewStmtTracker()
	hoisted.Add("T", Hoisted{Decl: declT, Loop: hoistLoop, Stmt: assign})

	info := analysis.Describe(stmt, "double", []string{"j"})
	rw := New(stmt, info, decls, kernel, hoisted)
	if err := rw.Preevaluate().Err(); err != nil {
		t.Fatal(err)
	}

	loops := ast.EnclosingLoops(stmt)
	if len(loops) != 1 || loops[0].Loop.Dim != "j" {
		t.Fatalf("reduction loop survived: %d enclosing loops", len(loops))
	}
	if len(declT.Qualifiers) != 2 || declT.Qualifiers[0] != "static" {
		t.Errorf("T qualifiers = %v, want static const", declT.Qualifiers)
	}
	if len(declT.Shape) != 1 || declT.Shape[0] != 3 {
		t.Errorf("T shape = %v, want [3]", declT.Shape)
	}
	if len(declT.Children) != 1 || declT.Children[0].Kind != ast.KindArrayInit {
		t.Fatal("T was not given a constant initializer")
	}
	// T[j] = sum over q of W[q]*M[q][j].
	want := []float64{1*1 + 2*0 + 3*3 + 4*1, 1*0 + 2*1 + 3*0 + 4*1, 1*2 + 2*0 + 3*1 + 4*1}
	for i, w := range want {
		if got := declT.Children[0].Values[i]; got != w {
			t.Errorf("T[%d] = %v, want %v", i, got, w)
		}
	}
	sameArray(t, "A", runKernel(t, original), runKernel(t, kernel))
}

func TestLicmLookAheadDoesNotMutate(t *testing.T) {
	stmt := ast.NewAssign(ast.NewSym("A", "i", "j"),
		ast.NewProd(ast.NewSym("B", "j"), ast.NewSym("C", "j")))
	kernel := ast.NewBlock(
		ast.NewDecl("double", "A", []int{3, 3}, nil),
		ast.NewFor("i", 3, ast.NewFor("j", 3, stmt)),
	)
	snapshot := ast.Copy(kernel)

	info := analysis.Describe(stmt, "double", []string{"i", "j"})
	rw := New(stmt, info, map[string]*ast.Node{}, kernel, nil)
	rw.Licm("normal", LookAhead())
	if err := rw.Err(); err != nil {
		t.Fatal(err)
	}
	if len(rw.Extracted()) != 1 {
		t.Errorf("Extracted has %d entries, want 1", len(rw.Extracted()))
	}
	if !ast.Equal(kernel, snapshot) {
		t.Error("look-ahead modified the tree")
	}
	if rw.Hoisted.Contains("ct0") {
		t.Error("look-ahead registered a temporary")
	}
}

func TestStmtTrackerOrderAndRemoval(t *testing.T) {
	tr := NewStmtTracker()
	if n := tr.NextName(); n != "ct0" {
		t.Errorf("first name = %q", n)
	}
	tr.Add("ct0", Hoisted{})
	tr.Add("ct1", Hoisted{})
	tr.Remove("ct0")
	if tr.Contains("ct0") || !tr.Contains("ct1") {
		t.Error("removal state wrong")
	}
	if names := tr.Names(); len(names) != 1 || names[0] != "ct1" {
		t.Errorf("Names = %v", names)
	}
	// A reserved name is never reused, even after removal.
	if n := tr.NextName(); n != "ct2" {
		t.Errorf("next name = %q", n)
	}
}
