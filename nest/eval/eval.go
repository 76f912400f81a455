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

// Package eval interprets kernels numerically. The rewriter uses it to fold
// hoisted tables whose inputs are compile-time constants, and tests use it
// to check that a transformed kernel computes the same values as the
// original.
package eval

import (
	"fmt"
	"math"

	"github.com/nestopt/go-nestopt/nest/ast"
)

// Array is a dense row-major float64 tensor.
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray allocates a zeroed array.
func NewArray(shape ...int) *Array {
	size := 1
	for _, s := range shape {
		size *= s
	}
	return &Array{Shape: shape, Data: make([]float64, size)}
}

func (a *Array) offset(idx []int) (int, error) {
	if len(idx) != len(a.Shape) {
		return 0, fmt.Errorf("eval: rank mismatch: %d indices for shape %v", len(idx), a.Shape)
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= a.Shape[i] {
			return 0, fmt.Errorf("eval: index %d out of range [0,%d)", x, a.Shape[i])
		}
		off = off*a.Shape[i] + x
	}
	return off, nil
}

// Env holds the execution state: scalars, arrays, and live loop indices.
type Env struct {
	Scalars map[string]float64
	Arrays  map[string]*Array
	loops   map[string]int
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{
		Scalars: make(map[string]float64),
		Arrays:  make(map[string]*Array),
		loops:   make(map[string]int),
	}
}

// Run executes a statement subtree. Declarations allocate; loops iterate;
// writer statements update scalars or array cells. An unknown node kind is
// an error, never a panic.
func Run(n *ast.Node, env *Env) error {
	switch n.Kind {
	case ast.KindBlock:
		for _, c := range n.Children {
			if err := Run(c, env); err != nil {
				return err
			}
		}
		return nil
	case ast.KindFor:
		prev, had := env.loops[n.Dim]
		for i := 0; i < n.Size; i++ {
			env.loops[n.Dim] = i
			for _, c := range n.Children {
				if err := Run(c, env); err != nil {
					return err
				}
			}
		}
		if had {
			env.loops[n.Dim] = prev
		} else {
			delete(env.loops, n.Dim)
		}
		return nil
	case ast.KindDecl:
		return runDecl(n, env)
	case ast.KindAssign, ast.KindIncr, ast.KindDecr, ast.KindIMul, ast.KindIDiv:
		return runWrite(n, env)
	case ast.KindEmpty:
		return nil
	default:
		return fmt.Errorf("eval: cannot execute %s node as a statement", n.Kind)
	}
}

func runDecl(n *ast.Node, env *Env) error {
	if len(n.Shape) == 0 {
		v := 0.0
		if len(n.Children) == 1 {
			var err error
			v, err = Expr(n.Children[0], env)
			if err != nil {
				return err
			}
		}
		env.Scalars[n.Name] = v
		return nil
	}
	arr := NewArray(n.Shape...)
	if len(n.Children) == 1 {
		init := n.Children[0]
		if init.Kind != ast.KindArrayInit {
			return fmt.Errorf("eval: array %s initialized with %s", n.Name, init.Kind)
		}
		if len(init.Values) != len(arr.Data) {
			return fmt.Errorf("eval: array %s has %d cells, initializer has %d",
				n.Name, len(arr.Data), len(init.Values))
		}
		copy(arr.Data, init.Values)
	}
	env.Arrays[n.Name] = arr
	return nil
}

func runWrite(n *ast.Node, env *Env) error {
	rv, err := Expr(n.RValue(), env)
	if err != nil {
		return err
	}
	lv := n.LValue()
	old := 0.0
	if n.Kind != ast.KindAssign {
		old, err = Expr(lv, env)
		if err != nil {
			return err
		}
	}
	var v float64
	switch n.Kind {
	case ast.KindAssign:
		v = rv
	case ast.KindIncr:
		v = old + rv
	case ast.KindDecr:
		v = old - rv
	case ast.KindIMul:
		v = old * rv
	case ast.KindIDiv:
		v = old / rv
	}
	return store(lv, v, env)
}

func store(lv *ast.Node, v float64, env *Env) error {
	if len(lv.Rank) == 0 {
		env.Scalars[lv.Name] = v
		return nil
	}
	arr, ok := env.Arrays[lv.Name]
	if !ok {
		return fmt.Errorf("eval: write to undeclared array %s", lv.Name)
	}
	idx, err := resolveRank(lv.Rank, env)
	if err != nil {
		return err
	}
	off, err := arr.offset(idx)
	if err != nil {
		return err
	}
	arr.Data[off] = v
	return nil
}

func resolveRank(rank []string, env *Env) ([]int, error) {
	idx := make([]int, len(rank))
	for i, r := range rank {
		if ast.IsConstDim(r) {
			fmt.Sscanf(r, "%d", &idx[i])
			continue
		}
		x, ok := env.loops[r]
		if !ok {
			return nil, fmt.Errorf("eval: unbound dimension %q", r)
		}
		idx[i] = x
	}
	return idx, nil
}

// Expr evaluates an expression in the environment.
func Expr(n *ast.Node, env *Env) (float64, error) {
	switch n.Kind {
	case ast.KindSymbol:
		if n.Num {
			return n.Val, nil
		}
		if len(n.Rank) == 0 {
			if v, ok := env.loops[n.Name]; ok {
				return float64(v), nil
			}
			if v, ok := env.Scalars[n.Name]; ok {
				return v, nil
			}
			return 0, fmt.Errorf("eval: unbound symbol %s", n.Name)
		}
		arr, ok := env.Arrays[n.Name]
		if !ok {
			return 0, fmt.Errorf("eval: unbound array %s", n.Name)
		}
		idx, err := resolveRank(n.Rank, env)
		if err != nil {
			return 0, err
		}
		off, err := arr.offset(idx)
		if err != nil {
			return 0, err
		}
		return arr.Data[off], nil
	case ast.KindProd, ast.KindSum, ast.KindSub, ast.KindDiv:
		acc, err := Expr(n.Children[0], env)
		if err != nil {
			return 0, err
		}
		for _, c := range n.Children[1:] {
			v, err := Expr(c, env)
			if err != nil {
				return 0, err
			}
			switch n.Kind {
			case ast.KindProd:
				acc *= v
			case ast.KindSum:
				acc += v
			case ast.KindSub:
				acc -= v
			case ast.KindDiv:
				acc /= v
			}
		}
		return acc, nil
	case ast.KindCall:
		return call(n, env)
	default:
		return 0, fmt.Errorf("eval: cannot evaluate %s node as an expression", n.Kind)
	}
}

func call(n *ast.Node, env *Env) (float64, error) {
	args := make([]float64, len(n.Children))
	for i, c := range n.Children {
		v, err := Expr(c, env)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	switch n.Name {
	case "sqrt":
		return math.Sqrt(args[0]), nil
	case "fabs":
		return math.Abs(args[0]), nil
	case "exp":
		return math.Exp(args[0]), nil
	case "log":
		return math.Log(args[0]), nil
	case "sin":
		return math.Sin(args[0]), nil
	case "cos":
		return math.Cos(args[0]), nil
	case "pow":
		return math.Pow(args[0], args[1]), nil
	default:
		return 0, fmt.Errorf("eval: unknown function %s", n.Name)
	}
}
