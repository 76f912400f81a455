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

// Mutation primitives. All structural edits go through these so that parent
// back-pointers never go stale. Two temporaries must never alias the same
// node through a path these functions did not create.

// ReplaceChild swaps old for new among parent's children and fixes parent
// pointers. It reports whether old was found.
func ReplaceChild(parent, old, new *Node) bool {
	for i, c := range parent.Children {
		if c == old {
			parent.Children[i] = new
			new.Parent = parent
			old.Parent = nil
			return true
		}
	}
	return false
}

// InsertBefore inserts n among parent's children immediately before ref.
// If ref is not a child, n is appended.
func InsertBefore(parent, ref, n *Node) {
	n.Parent = parent
	for i, c := range parent.Children {
		if c == ref {
			parent.Children = append(parent.Children, nil)
			copy(parent.Children[i+1:], parent.Children[i:])
			parent.Children[i] = n
			return
		}
	}
	parent.Children = append(parent.Children, n)
}

// Prepend inserts n as parent's first child.
func Prepend(parent, n *Node) {
	n.Parent = parent
	parent.Children = append([]*Node{n}, parent.Children...)
}

// Append adds n as parent's last child.
func Append(parent, n *Node) {
	n.Parent = parent
	parent.Children = append(parent.Children, n)
}

// Remove deletes n from parent's children. It reports whether n was found.
func Remove(parent, n *Node) bool {
	for i, c := range parent.Children {
		if c == n {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			n.Parent = nil
			return true
		}
	}
	return false
}

// ReplaceSyms substitutes, within root, every symbol whose Key appears in
// repl with the mapped expression. When copy is true a fresh deep copy is
// spliced at each occurrence, so one replacement expression can serve many
// sites without aliasing. Returns the number of replacements.
func ReplaceSyms(root *Node, repl map[string]*Node, copyExpr bool) int {
	count := 0
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if c.Kind == KindSymbol && !c.Num {
				if r, ok := repl[c.Key()]; ok {
					sub := r
					if copyExpr {
						sub = Copy(r)
					}
					ReplaceChild(n, c, sub)
					count++
					continue
				}
			}
			walk(c)
		}
	}
	walk(root)
	return count
}

// ReplaceNodes substitutes exact node instances within root. The mapped
// replacement is spliced as-is (callers copy if they reuse expressions).
func ReplaceNodes(root *Node, repl map[*Node]*Node) int {
	count := 0
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if r, ok := repl[c]; ok {
				ReplaceChild(n, c, r)
				count++
				walk(r)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	return count
}

// MakeExpr builds an associative chain of kind k over operands. With balance
// set, the tree is depth-balanced, which keeps round-off behavior and
// per-node operand order deterministic; otherwise the chain leans left.
// A single operand is returned unchanged; an empty list yields nil.
func MakeExpr(k Kind, operands []*Node, balance bool) *Node {
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	if balance {
		mid := len(operands) / 2
		l := MakeExpr(k, operands[:mid], true)
		r := MakeExpr(k, operands[mid:], true)
		return newOp(k, l, r)
	}
	expr := operands[0]
	for _, o := range operands[1:] {
		expr = newOp(k, expr, o)
	}
	return expr
}
