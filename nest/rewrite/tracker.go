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

	"github.com/nestopt/go-nestopt/nest/ast"
)

// Hoisted records where one hoisted temporary lives: its declaration, the
// loop nest computing it (nil for loop-free hoists), and the defining
// statement.
type Hoisted struct {
	Decl *ast.Node
	Loop *ast.Node
	Stmt *ast.Node
}

// StmtTracker tracks every temporary hoisted out of a kernel. One tracker
// must be shared by all rewriters operating on the same kernel, otherwise
// two rewriters can emit clashing declarations for the same subexpression.
type StmtTracker struct {
	entries map[string]Hoisted
	order   []string
	nsym    int
}

// NewStmtTracker returns an empty tracker.
func NewStmtTracker() *StmtTracker {
	return &StmtTracker{entries: make(map[string]Hoisted)}
}

// NextName reserves a fresh temporary name.
func (t *StmtTracker) NextName() string {
	name := fmt.Sprintf("ct%d", t.nsym)
	t.nsym++
	return name
}

// Add registers a hoisted temporary under its symbol name.
func (t *StmtTracker) Add(name string, h Hoisted) {
	if _, ok := t.entries[name]; !ok {
		t.order = append(t.order, name)
	}
	t.entries[name] = h
}

// Get returns the entry for a hoisted symbol.
func (t *StmtTracker) Get(name string) (Hoisted, bool) {
	h, ok := t.entries[name]
	return h, ok
}

// Contains reports whether name was produced by hoisting.
func (t *StmtTracker) Contains(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Remove drops a hoisted symbol, e.g. after its declaration was folded away.
func (t *StmtTracker) Remove(name string) {
	if _, ok := t.entries[name]; !ok {
		return
	}
	delete(t.entries, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Names returns hoisted symbol names in hoisting order.
func (t *StmtTracker) Names() []string {
	return append([]string(nil), t.order...)
}

// AllStmts returns the defining statements in hoisting order.
func (t *StmtTracker) AllStmts() []*ast.Node {
	out := make([]*ast.Node, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.entries[n].Stmt)
	}
	return out
}

// AllLoops returns the distinct hoisted loops in hoisting order.
func (t *StmtTracker) AllLoops() []*ast.Node {
	var out []*ast.Node
	seen := make(map[*ast.Node]bool)
	for _, n := range t.order {
		l := t.entries[n].Loop
		if l == nil || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
