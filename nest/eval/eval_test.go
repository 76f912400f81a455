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

package eval

import (
	"math"
	"testing"

	"github.com/nestopt/go-nestopt/nest/ast"
)

func TestExprArithmetic(t *testing.T) {
	env := NewEnv()
	env.Scalars["a"] = 6
	env.Scalars["b"] = 2

	tests := []struct {
		name string
		expr *ast.Node
		want float64
	}{
		{"prod", ast.NewProd(ast.NewSym("a"), ast.NewSym("b")), 12},
		{"sum", ast.NewSum(ast.NewSym("a"), ast.NewSym("b")), 8},
		{"sub", ast.NewSub(ast.NewSym("a"), ast.NewSym("b")), 4},
		{"div", ast.NewDiv(ast.NewSym("a"), ast.NewSym("b")), 3},
		{"literal", ast.NewNum(2.5), 2.5},
		{"call", ast.NewCall("sqrt", ast.NewSym("a")), math.Sqrt(6)},
		{"pow", ast.NewCall("pow", ast.NewSym("b"), ast.NewNum(3)), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expr(tt.expr, env)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Expr = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExprUnboundSymbol(t *testing.T) {
	if _, err := Expr(ast.NewSym("nowhere"), NewEnv()); err == nil {
		t.Error("expected an error for an unbound symbol")
	}
}

func TestRunLoopAccumulates(t *testing.T) {
	// s = 0; for i(4) { s += x[i] }
	kernel := ast.NewBlock(
		ast.NewDecl("double", "x", []int{4}, ast.NewArrayInit([]float64{1, 2, 3, 4})),
		ast.NewDecl("double", "s", nil, nil),
		ast.NewFor("i", 4, ast.NewIncr(ast.NewSym("s"), ast.NewSym("x", "i"))),
	)
	env := NewEnv()
	if err := Run(kernel, env); err != nil {
		t.Fatal(err)
	}
	if env.Scalars["s"] != 10 {
		t.Errorf("s = %v, want 10", env.Scalars["s"])
	}
}

func TestRunNestedArrayWrite(t *testing.T) {
	// for i(2) { for j(3) { A[i][j] = i*3 + j } } via loop-index symbols.
	kernel := ast.NewBlock(
		ast.NewDecl("double", "A", []int{2, 3}, nil),
		ast.NewFor("i", 2, ast.NewFor("j", 3,
			ast.NewAssign(ast.NewSym("A", "i", "j"),
				ast.NewSum(ast.NewProd(ast.NewSym("i"), ast.NewNum(3)), ast.NewSym("j"))))),
	)
	env := NewEnv()
	if err := Run(kernel, env); err != nil {
		t.Fatal(err)
	}
	arr := env.Arrays["A"]
	for i, want := range []float64{0, 1, 2, 3, 4, 5} {
		if arr.Data[i] != want {
			t.Errorf("A flat[%d] = %v, want %v", i, arr.Data[i], want)
		}
	}
}

func TestRunCompoundWriters(t *testing.T) {
	kernel := ast.NewBlock(
		ast.NewDecl("double", "x", nil, ast.NewNum(12)),
		ast.NewDecr(ast.NewSym("x"), ast.NewNum(2)),
		ast.NewIMul(ast.NewSym("x"), ast.NewNum(3)),
		ast.NewIDiv(ast.NewSym("x"), ast.NewNum(5)),
	)
	env := NewEnv()
	if err := Run(kernel, env); err != nil {
		t.Fatal(err)
	}
	if env.Scalars["x"] != 6 {
		t.Errorf("x = %v, want 6", env.Scalars["x"])
	}
}

func TestRunOutOfRangeIndex(t *testing.T) {
	kernel := ast.NewBlock(
		ast.NewDecl("double", "x", []int{2}, nil),
		ast.NewFor("i", 3, ast.NewAssign(ast.NewSym("x", "i"), ast.NewNum(1))),
	)
	if err := Run(kernel, NewEnv()); err == nil {
		t.Error("expected an out-of-range error")
	}
}

func TestTablesFoldsConstantLoop(t *testing.T) {
	declW := ast.NewDecl("double", "w", []int{3}, ast.NewArrayInit([]float64{2, 4, 6}))
	declT := ast.NewDecl("double", "tab", []int{3}, nil)
	loop := ast.NewFor("i", 3,
		ast.NewAssign(ast.NewSym("tab", "i"), ast.NewProd(ast.NewSym("w", "i"), ast.NewNum(0.5))))

	out, err := Tables(loop, map[string]*ast.Node{"w": declW, "tab": declT})
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := out["tab"]
	if !ok {
		t.Fatal("tab not in the result set")
	}
	for i, want := range []float64{1, 2, 3} {
		if arr.Data[i] != want {
			t.Errorf("tab[%d] = %v, want %v", i, arr.Data[i], want)
		}
	}
}

func TestTablesRejectsNonConstantInput(t *testing.T) {
	declT := ast.NewDecl("double", "tab", []int{3}, nil)
	loop := ast.NewFor("i", 3,
		ast.NewAssign(ast.NewSym("tab", "i"), ast.NewSym("runtime", "i")))
	if _, err := Tables(loop, map[string]*ast.Node{"tab": declT}); err == nil {
		t.Error("expected an error for a loop reading runtime data")
	}
}
