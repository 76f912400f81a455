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

// Package cse decides, per loop, whether temporary variables should stay
// materialized or be inlined back into their consumers to create
// factorization and code motion opportunities. The decision is driven by an
// operation-count cost model over the temporaries' dependency levels.
package cse

import (
	"fmt"
	"strings"

	"github.com/nestopt/go-nestopt/nest/ast"
)

// ReadCost is one entry of a temporary's linear-read cost map: a read
// symbol occurrence and the number of products and divisions it sits under.
// After a hypothetical push the symbol occurrence may be gone; entries then
// carry only the key.
type ReadCost struct {
	Sym  *ast.Node // nil for entries produced by cost projection
	Key  string
	Cost int
}

// Temporary carries the unpicker's metadata for one statement computing a
// variable that is read elsewhere.
type Temporary struct {
	Level  int
	Pushed bool
	ReadBy []*ast.Node

	Node             *ast.Node
	MainLoop         *ast.Node
	Nest             []ast.LoopParent
	Reads            []*ast.Node
	LinearReadsCosts []ReadCost
	Flops            int
}

// NewTemporary builds a Temporary for node, which is either a writer
// statement or a bare symbol read before any local definition.
func NewTemporary(node, mainLoop *ast.Node, nest []ast.LoopParent,
	reads []*ast.Node, costs []ReadCost) *Temporary {
	return &Temporary{
		Level:            -1,
		Node:             node,
		MainLoop:         mainLoop,
		Nest:             nest,
		Reads:            reads,
		LinearReadsCosts: costs,
		Flops:            ast.EstimateFlops(node),
	}
}

// Symbol returns the variable the temporary stands for: the lvalue of a
// writer, or the node itself for a bare symbol.
func (t *Temporary) Symbol() *ast.Node {
	switch {
	case ast.IsWriter(t.Node):
		return t.Node.LValue()
	case t.Node.Kind == ast.KindSymbol:
		return t.Node
	default:
		return nil
	}
}

// Expr returns the defining expression, or nil for a bare symbol.
func (t *Temporary) Expr() *ast.Node {
	if ast.IsWriter(t.Node) {
		return t.Node.RValue()
	}
	return nil
}

// Name returns the variable name, or "" when the temporary has no symbol.
func (t *Temporary) Name() string {
	if s := t.Symbol(); s != nil {
		return s.Name
	}
	return ""
}

// Key identifies the temporary by name and rank.
func (t *Temporary) Key() string {
	if s := t.Symbol(); s != nil {
		return s.Key()
	}
	return ""
}

// LinearReads returns the keys of the linear-read cost map, in insertion
// order.
func (t *Temporary) LinearReads() []string {
	out := make([]string, len(t.LinearReadsCosts))
	for i, rc := range t.LinearReadsCosts {
		out[i] = rc.Key
	}
	return out
}

// Loops returns the nest loops, outermost first.
func (t *Temporary) Loops() []*ast.Node {
	out := make([]*ast.Node, len(t.Nest))
	for i, lp := range t.Nest {
		out[i] = lp.Loop
	}
	return out
}

// NIters is the number of points of the temporary's iteration space.
func (t *Temporary) NIters() int {
	n := 1
	for _, l := range t.Loops() {
		n *= l.Size
	}
	return n
}

// NItersAfterLICM is the iteration count once the defining statement is
// hoisted out of its main loop.
func (t *Temporary) NItersAfterLICM() int {
	n := 1
	for _, l := range t.Loops() {
		if l != t.MainLoop {
			n *= l.Size
		}
	}
	return n
}

// Project is the number of distinct linear reads: the operation count one
// product against this temporary costs after factorization.
func (t *Temporary) Project() int { return len(t.LinearReadsCosts) }

// IsSSA reports whether the temporary is written exactly once. A second
// write records the temporary's own symbol among its readers.
func (t *Temporary) IsSSA() bool {
	sym := t.Symbol()
	for _, rb := range t.ReadBy {
		if rb == sym {
			return false
		}
	}
	return true
}

// IsStaticInit reports whether the defining expression is a constant array
// initializer, which must never be inlined.
func (t *Temporary) IsStaticInit() bool {
	e := t.Expr()
	return e != nil && e.Kind == ast.KindArrayInit
}

// Reconstruct returns a copy sharing the AST nodes but owning its own
// mutable metadata, so hypothetical cost evaluations do not leak into the
// trace.
func (t *Temporary) Reconstruct() *Temporary {
	c := NewTemporary(t.Node, t.MainLoop, t.Nest,
		append([]*ast.Node(nil), t.Reads...),
		append([]ReadCost(nil), t.LinearReadsCosts...))
	c.Level = t.Level
	c.ReadBy = append([]*ast.Node(nil), t.ReadBy...)
	return c
}

func (t *Temporary) String() string {
	return fmt.Sprintf("%s: level=%d, flops/iter=%d, linear_reads=[%s]",
		t.Key(), t.Level, t.Flops, strings.Join(t.LinearReads(), ", "))
}

// removeEntry deletes one cost entry, matched by symbol occurrence when the
// entry has one, by key otherwise.
func (t *Temporary) removeEntry(rc ReadCost) {
	for i, cur := range t.LinearReadsCosts {
		if sameEntry(cur, rc) {
			t.LinearReadsCosts = append(t.LinearReadsCosts[:i], t.LinearReadsCosts[i+1:]...)
			return
		}
	}
}

// setEntry inserts or overwrites the cost entry for one symbol occurrence.
func (t *Temporary) setEntry(sym *ast.Node, key string, cost int) {
	entry := ReadCost{Sym: sym, Key: key, Cost: cost}
	for i, cur := range t.LinearReadsCosts {
		if sameEntry(cur, entry) {
			t.LinearReadsCosts[i] = entry
			return
		}
	}
	t.LinearReadsCosts = append(t.LinearReadsCosts, entry)
}

func sameEntry(a, b ReadCost) bool {
	if a.Sym != nil || b.Sym != nil {
		return a.Sym == b.Sym
	}
	return a.Key == b.Key
}
