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

// Package ast defines the kernel tree the optimizer operates on: a closed
// set of node kinds with parent back-pointers that are maintained only by
// the mutation primitives in this package. The front-end that produces
// kernels is external; this package only represents and rewrites them.
package ast

import "strings"

// Kind discriminates the closed set of node variants.
type Kind int

const (
	KindSymbol Kind = iota // scalar/array reference or numeric literal
	KindProd
	KindSum
	KindSub
	KindDiv
	KindCall
	KindAssign // lvalue = rvalue
	KindIncr   // lvalue += rvalue
	KindDecr   // lvalue -= rvalue
	KindIMul   // lvalue *= rvalue
	KindIDiv   // lvalue /= rvalue
	KindDecl
	KindFor
	KindBlock // kernel root or statement sequence
	KindArrayInit
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindSymbol:
		return "Symbol"
	case KindProd:
		return "Prod"
	case KindSum:
		return "Sum"
	case KindSub:
		return "Sub"
	case KindDiv:
		return "Div"
	case KindCall:
		return "Call"
	case KindAssign:
		return "Assign"
	case KindIncr:
		return "Incr"
	case KindDecr:
		return "Decr"
	case KindIMul:
		return "IMul"
	case KindIDiv:
		return "IDiv"
	case KindDecl:
		return "Decl"
	case KindFor:
		return "For"
	case KindBlock:
		return "Block"
	case KindArrayInit:
		return "ArrayInit"
	case KindEmpty:
		return "Empty"
	default:
		return "Unknown"
	}
}

// Node is the tagged variant for every tree element. Which fields are
// meaningful depends on Kind; Children carries operands for expression
// kinds, [lvalue, rvalue] for writer kinds, the optional initializer for
// Decl, and the statement body for For and Block.
type Node struct {
	Kind     Kind
	Parent   *Node
	Children []*Node

	// Symbol
	Name string   // identifier, or callee name for Call
	Rank []string // index dimensions, possibly constant digit strings
	Num  bool     // numeric literal
	Val  float64  // literal value when Num

	// Decl
	Type       string // element type, e.g. "double"
	Shape      []int  // array extents; empty means scalar
	Qualifiers []string
	External   bool // declared by the caller, outside the kernel

	// For
	Dim  string
	Size int

	// ArrayInit
	Values []float64
}

// writerKinds marks statements that write their first child.
var writerKinds = map[Kind]bool{
	KindAssign: true,
	KindIncr:   true,
	KindDecr:   true,
	KindIMul:   true,
	KindIDiv:   true,
}

// IsWriter reports whether n is a statement that writes a symbol.
func IsWriter(n *Node) bool { return n != nil && writerKinds[n.Kind] }

// IsExprOp reports whether n is an arithmetic operation node.
func IsExprOp(n *Node) bool {
	switch n.Kind {
	case KindProd, KindSum, KindSub, KindDiv, KindCall:
		return true
	}
	return false
}

// LValue returns the written symbol of a writer statement, or nil.
func (n *Node) LValue() *Node {
	if IsWriter(n) {
		return n.Children[0]
	}
	return nil
}

// RValue returns the expression of a writer statement, or nil.
func (n *Node) RValue() *Node {
	if IsWriter(n) {
		return n.Children[1]
	}
	return nil
}

// Body returns the statement list of a For or Block node.
func (n *Node) Body() []*Node { return n.Children }

// Key returns the canonical representation of a symbol: its name plus the
// index tuple. Two occurrences of the same array access share a Key.
func (n *Node) Key() string {
	if n == nil {
		return ""
	}
	if len(n.Rank) == 0 {
		return n.Name
	}
	return n.Name + "(" + strings.Join(n.Rank, ",") + ")"
}

// RankKey returns just the index tuple part of a symbol's Key.
func (n *Node) RankKey() string { return strings.Join(n.Rank, ",") }

// Constructors. Every constructor wires parent pointers for the children it
// receives; callers must not link nodes manually.

// NewSym returns an array or scalar reference.
func NewSym(name string, rank ...string) *Node {
	return &Node{Kind: KindSymbol, Name: name, Rank: rank}
}

// NewNum returns a numeric literal.
func NewNum(v float64) *Node {
	return &Node{Kind: KindSymbol, Num: true, Val: v}
}

func newOp(k Kind, children ...*Node) *Node {
	n := &Node{Kind: k, Children: children}
	for _, c := range children {
		c.Parent = n
	}
	return n
}

func NewProd(l, r *Node) *Node { return newOp(KindProd, l, r) }
func NewSum(l, r *Node) *Node  { return newOp(KindSum, l, r) }
func NewSub(l, r *Node) *Node  { return newOp(KindSub, l, r) }
func NewDiv(l, r *Node) *Node  { return newOp(KindDiv, l, r) }

// NewCall returns a call to a math function such as sqrt.
func NewCall(name string, args ...*Node) *Node {
	n := newOp(KindCall, args...)
	n.Name = name
	return n
}

func NewAssign(lv, rv *Node) *Node { return newOp(KindAssign, lv, rv) }
func NewIncr(lv, rv *Node) *Node   { return newOp(KindIncr, lv, rv) }
func NewDecr(lv, rv *Node) *Node   { return newOp(KindDecr, lv, rv) }
func NewIMul(lv, rv *Node) *Node   { return newOp(KindIMul, lv, rv) }
func NewIDiv(lv, rv *Node) *Node   { return newOp(KindIDiv, lv, rv) }

// NewDecl declares name with the given element type and shape. init may be
// nil, an expression, or an ArrayInit literal.
func NewDecl(typ, name string, shape []int, init *Node) *Node {
	n := &Node{Kind: KindDecl, Type: typ, Name: name, Shape: shape}
	if init != nil {
		n.Children = []*Node{init}
		init.Parent = n
	}
	return n
}

// NewFor returns a loop over dim in [0, size).
func NewFor(dim string, size int, body ...*Node) *Node {
	n := newOp(KindFor, body...)
	n.Dim = dim
	n.Size = size
	return n
}

// NewBlock returns a statement sequence; the kernel root is a Block.
func NewBlock(stmts ...*Node) *Node { return newOp(KindBlock, stmts...) }

// NewArrayInit returns a constant array literal with row-major values.
func NewArrayInit(values []float64) *Node {
	return &Node{Kind: KindArrayInit, Values: values}
}

// NewEmpty returns a no-op statement.
func NewEmpty() *Node { return &Node{Kind: KindEmpty} }

// Copy deep-copies a subtree. The copy's Parent is nil; internal parent
// pointers are rebuilt.
func Copy(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Kind:     n.Kind,
		Name:     n.Name,
		Num:      n.Num,
		Val:      n.Val,
		Type:     n.Type,
		External: n.External,
		Dim:      n.Dim,
		Size:     n.Size,
	}
	c.Rank = append([]string(nil), n.Rank...)
	c.Shape = append([]int(nil), n.Shape...)
	c.Qualifiers = append([]string(nil), n.Qualifiers...)
	c.Values = append([]float64(nil), n.Values...)
	for _, ch := range n.Children {
		cc := Copy(ch)
		cc.Parent = c
		c.Children = append(c.Children, cc)
	}
	return c
}

// Equal reports structural equality of two subtrees.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Name != b.Name || a.Num != b.Num ||
		a.Val != b.Val || a.Dim != b.Dim || a.Size != b.Size {
		return false
	}
	if len(a.Rank) != len(b.Rank) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Rank {
		if a.Rank[i] != b.Rank[i] {
			return false
		}
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
