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

package ast

import "testing"

func TestKeyIncludesRank(t *testing.T) {
	tests := []struct {
		name string
		sym  *Node
		want string
	}{
		{"scalar", NewSym("det"), "det"},
		{"vector", NewSym("t0", "j"), "t0(j)"},
		{"matrix", NewSym("A", "j", "k"), "A(j,k)"},
		{"const index", NewSym("B", "q", "0"), "B(q,0)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sym.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructorsSetParents(t *testing.T) {
	a, b := NewSym("a"), NewSym("b")
	p := NewProd(a, b)
	if a.Parent != p || b.Parent != p {
		t.Fatal("NewProd did not set operand parents")
	}
	assign := NewAssign(NewSym("x"), p)
	if p.Parent != assign {
		t.Fatal("NewAssign did not adopt the rvalue")
	}
}

func TestReplaceChildFixesParents(t *testing.T) {
	a, b, c := NewSym("a"), NewSym("b"), NewSym("c")
	p := NewProd(a, b)
	if !ReplaceChild(p, b, c) {
		t.Fatal("ReplaceChild did not find b")
	}
	if c.Parent != p {
		t.Error("replacement parent not set")
	}
	if b.Parent != nil {
		t.Error("old child parent not cleared")
	}
	if ReplaceChild(p, b, NewSym("d")) {
		t.Error("ReplaceChild found a detached node")
	}
}

func TestInsertBeforePlacesNode(t *testing.T) {
	s1, s2 := NewAssign(NewSym("a"), NewNum(1)), NewAssign(NewSym("b"), NewNum(2))
	blk := NewBlock(s1, s2)
	d := NewDecl("double", "t", nil, nil)
	InsertBefore(blk, s2, d)
	if blk.Children[1] != d || d.Parent != blk {
		t.Fatalf("InsertBefore misplaced node: %v", blk.Children)
	}
}

func TestCopyIsDeepAndReparented(t *testing.T) {
	orig := NewProd(NewSym("a", "i"), NewSum(NewSym("b"), NewNum(2)))
	cp := Copy(orig)
	if !Equal(orig, cp) {
		t.Fatal("copy not structurally equal")
	}
	if cp.Parent != nil {
		t.Error("copy should be detached")
	}
	cp.Children[0].Name = "z"
	if orig.Children[0].Name != "a" {
		t.Error("copy aliases the original")
	}
	var check func(n *Node)
	check = func(n *Node) {
		for _, c := range n.Children {
			if c.Parent != n {
				t.Fatalf("stale parent under copy at %s", c)
			}
			check(c)
		}
	}
	check(cp)
}

func TestReplaceSymsCopiesPerSite(t *testing.T) {
	expr := NewSum(NewSym("t", "j"), NewSym("t", "j"))
	stmt := NewAssign(NewSym("out"), expr)
	repl := map[string]*Node{"t(j)": NewProd(NewSym("b", "j"), NewSym("c"))}
	if n := ReplaceSyms(stmt, repl, true); n != 2 {
		t.Fatalf("replaced %d sites, want 2", n)
	}
	left, right := expr.Children[0], expr.Children[1]
	if left == right {
		t.Fatal("both sites alias one node")
	}
	if !Equal(left, right) {
		t.Fatal("replacements differ structurally")
	}
	if left.Parent != expr || right.Parent != expr {
		t.Fatal("replacement parents not fixed")
	}
}

func TestReplaceSymsSkipsLiterals(t *testing.T) {
	stmt := NewAssign(NewSym("out"), NewNum(3))
	if n := ReplaceSyms(stmt, map[string]*Node{"3": NewSym("x")}, true); n != 0 {
		t.Errorf("replaced a numeric literal %d times", n)
	}
}

func TestOperandsFlattensChains(t *testing.T) {
	a, b, c := NewSym("a"), NewSym("b"), NewSym("c")
	chain := NewProd(NewProd(a, b), c)
	ops := Operands(chain)
	if len(ops) != 3 {
		t.Fatalf("got %d operands, want 3", len(ops))
	}
	if ops[0] != a || ops[1] != b || ops[2] != c {
		t.Error("operand order not preserved")
	}
}

func TestSummandsOfNonSum(t *testing.T) {
	p := NewProd(NewSym("a"), NewSym("b"))
	if s := Summands(p); len(s) != 1 || s[0] != p {
		t.Errorf("Summands(prod) = %v", s)
	}
}

func TestMakeExprShapes(t *testing.T) {
	syms := func(n int) []*Node {
		out := make([]*Node, n)
		for i := range out {
			out[i] = NewSym(string(rune('a' + i)))
		}
		return out
	}
	if MakeExpr(KindSum, nil, true) != nil {
		t.Error("empty operand list should yield nil")
	}
	one := syms(1)
	if MakeExpr(KindSum, one, true) != one[0] {
		t.Error("single operand should be returned unchanged")
	}
	left := MakeExpr(KindSum, syms(4), false)
	// Left-leaning: ((a+b)+c)+d.
	if left.Children[0].Kind != KindSum || left.Children[1].Kind != KindSymbol {
		t.Errorf("left-assoc chain has wrong shape: %s", left)
	}
	bal := MakeExpr(KindSum, syms(4), true)
	if bal.Children[0].Kind != KindSum || bal.Children[1].Kind != KindSum {
		t.Errorf("balanced tree has wrong shape: %s", bal)
	}
	if len(Operands(bal)) != 4 {
		t.Error("balancing lost operands")
	}
}

func TestEstimateFlops(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want int
	}{
		{"product pair", NewProd(NewSym("a"), NewSym("b")), 1},
		{"three-term sum", NewSum(NewSum(NewSym("a"), NewSym("b")), NewSym("c")), 2},
		{"call", NewCall("sqrt", NewSym("a")), 1},
		{
			"incr a*b",
			NewIncr(NewSym("x"), NewProd(NewSym("a"), NewSym("b"))),
			2,
		},
		{
			"loop scales body",
			NewFor("i", 4, NewIncr(NewSym("x"), NewProd(NewSym("a"), NewSym("b")))),
			8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateFlops(tt.node); got != tt.want {
				t.Errorf("EstimateFlops = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsPerfectLoop(t *testing.T) {
	inner := NewFor("j", 3, NewIncr(NewSym("x"), NewSym("a")))
	perfect := NewFor("i", 2, inner)
	if !IsPerfectLoop(perfect) {
		t.Error("single-child chain should be perfect")
	}
	mixed := NewFor("i", 2,
		NewAssign(NewSym("t"), NewNum(0)),
		NewFor("j", 3, NewIncr(NewSym("x"), NewSym("a"))),
	)
	if IsPerfectLoop(mixed) {
		t.Error("loop with statement sibling should not be perfect")
	}
}

func TestLoopNestsReturnsMaximalChains(t *testing.T) {
	j1 := NewFor("j", 4)
	l := NewFor("l", 2)
	k := NewFor("k", 6, l)
	i := NewFor("i", 10, j1, k)
	root := NewBlock(i)

	nests := LoopNests(root)
	if len(nests) != 2 {
		t.Fatalf("got %d nests, want 2", len(nests))
	}
	if nests[0][0].Loop != i || nests[0][1].Loop != j1 || len(nests[0]) != 2 {
		t.Errorf("first chain wrong: %v", nests[0])
	}
	if nests[1][0].Loop != i || nests[1][1].Loop != k || nests[1][2].Loop != l {
		t.Errorf("second chain wrong: %v", nests[1])
	}
	if nests[1][1].Parent != i {
		t.Error("parent of k should be i")
	}
}

func TestEnclosingLoopsOrder(t *testing.T) {
	stmt := NewIncr(NewSym("A", "j", "k"), NewSym("a"))
	k := NewFor("k", 3, stmt)
	j := NewFor("j", 3, k)
	q := NewFor("q", 4, j)
	NewBlock(q)

	loops := EnclosingLoops(stmt)
	if len(loops) != 3 {
		t.Fatalf("got %d loops, want 3", len(loops))
	}
	if loops[0].Loop != q || loops[1].Loop != j || loops[2].Loop != k {
		t.Error("loops not ordered outermost first")
	}
}
