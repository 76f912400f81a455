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

import "strconv"

// Find returns, in preorder, every node under root satisfying pred.
// root itself is included.
func Find(root *Node, pred func(*Node) bool) []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if pred(n) {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// FindKind returns every node of the given kind under root, in preorder.
func FindKind(root *Node, k Kind) []*Node {
	return Find(root, func(n *Node) bool { return n.Kind == k })
}

// Symbols returns every non-literal symbol occurrence under root.
func Symbols(root *Node) []*Node {
	return Find(root, func(n *Node) bool { return n.Kind == KindSymbol && !n.Num })
}

// Operands flattens the associative chain rooted at n: for a Prod of Prods
// it returns the leaf factors, for a Sum of Sums the leaf addends. For any
// other kind it returns n's children (or n itself for leaves).
func Operands(n *Node) []*Node {
	switch n.Kind {
	case KindProd, KindSum:
		var out []*Node
		for _, c := range n.Children {
			if c.Kind == n.Kind {
				out = append(out, Operands(c)...)
			} else {
				out = append(out, c)
			}
		}
		return out
	case KindSymbol, KindArrayInit, KindEmpty:
		return []*Node{n}
	default:
		return n.Children
	}
}

// Summands returns the top-level additive terms of an expression: the
// flattened Sum chain, or the expression itself if it is not a Sum.
func Summands(n *Node) []*Node {
	if n.Kind != KindSum {
		return []*Node{n}
	}
	return Operands(n)
}

// WrittenSyms returns the lvalues of all writer statements under root.
func WrittenSyms(root *Node) []*Node {
	var out []*Node
	for _, w := range Find(root, IsWriter) {
		out = append(out, w.LValue())
	}
	return out
}

// IsConstDim reports whether a rank entry is a compile-time constant index
// rather than a loop dimension.
func IsConstDim(r string) bool {
	_, err := strconv.Atoi(r)
	return err == nil
}

// IsPerfectLoop reports whether the nest rooted at loop is perfect: every
// loop except the innermost has a single child, itself a loop.
func IsPerfectLoop(loop *Node) bool {
	n := loop
	for {
		if len(n.Children) == 1 && n.Children[0].Kind == KindFor {
			n = n.Children[0]
			continue
		}
		for _, c := range n.Children {
			if c.Kind == KindFor {
				return false
			}
		}
		return true
	}
}

// LoopNests returns every maximal loop chain under root, outermost first,
// as (loop, parent) pairs. A loop with two inner loops contributes two
// chains, both starting at the shared outer loops.
func LoopNests(root *Node) [][]LoopParent {
	var nests [][]LoopParent
	var descend func(n *Node, cur []LoopParent) bool
	descend = func(n *Node, cur []LoopParent) bool {
		found := false
		for _, c := range n.Children {
			if c.Kind == KindFor {
				found = true
				chain := append(append([]LoopParent(nil), cur...), LoopParent{Loop: c, Parent: n})
				if !descend(c, chain) {
					nests = append(nests, chain)
				}
			} else if descend(c, cur) {
				found = true
			}
		}
		return found
	}
	descend(root, nil)
	return nests
}

// LoopParent pairs a loop with its parent node.
type LoopParent struct {
	Loop   *Node
	Parent *Node
}

// EnclosingLoops returns the loops around n, outer to inner, stopping at
// the kernel root.
func EnclosingLoops(n *Node) []LoopParent {
	var rev []LoopParent
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Kind == KindFor {
			parent := p.Parent
			rev = append(rev, LoopParent{Loop: p, Parent: parent})
		}
	}
	out := make([]LoopParent, len(rev))
	for i, lp := range rev {
		out[len(rev)-1-i] = lp
	}
	return out
}
