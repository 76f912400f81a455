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

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders a compact, C-flavored form of the subtree. It exists for
// debugging and test assertions; codegen owns the real emitters.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b, 0)
	return b.String()
}

func (n *Node) write(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Kind {
	case KindSymbol:
		if n.Num {
			b.WriteString(strconv.FormatFloat(n.Val, 'g', -1, 64))
			return
		}
		b.WriteString(n.Name)
		for _, r := range n.Rank {
			fmt.Fprintf(b, "[%s]", r)
		}
	case KindProd, KindSum, KindSub, KindDiv:
		op := map[Kind]string{KindProd: "*", KindSum: " + ", KindSub: " - ", KindDiv: "/"}[n.Kind]
		b.WriteString("(")
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(op)
			}
			c.write(b, depth)
		}
		b.WriteString(")")
	case KindCall:
		b.WriteString(n.Name)
		b.WriteString("(")
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b, depth)
		}
		b.WriteString(")")
	case KindAssign, KindIncr, KindDecr, KindIMul, KindIDiv:
		op := map[Kind]string{
			KindAssign: " = ", KindIncr: " += ", KindDecr: " -= ",
			KindIMul: " *= ", KindIDiv: " /= ",
		}[n.Kind]
		b.WriteString(indent)
		n.Children[0].write(b, depth)
		b.WriteString(op)
		n.Children[1].write(b, depth)
		b.WriteString(";\n")
	case KindDecl:
		b.WriteString(indent)
		if len(n.Qualifiers) > 0 {
			b.WriteString(strings.Join(n.Qualifiers, " "))
			b.WriteString(" ")
		}
		b.WriteString(n.Type)
		b.WriteString(" ")
		b.WriteString(n.Name)
		for _, s := range n.Shape {
			fmt.Fprintf(b, "[%d]", s)
		}
		if len(n.Children) == 1 {
			b.WriteString(" = ")
			n.Children[0].write(b, depth)
		}
		b.WriteString(";\n")
	case KindFor:
		fmt.Fprintf(b, "%sfor (%s = 0; %s < %d; %s++) {\n", indent, n.Dim, n.Dim, n.Size, n.Dim)
		for _, c := range n.Children {
			c.write(b, depth+1)
		}
		b.WriteString(indent)
		b.WriteString("}\n")
	case KindBlock:
		for _, c := range n.Children {
			c.write(b, depth)
		}
	case KindArrayInit:
		b.WriteString("{")
		for i, v := range n.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteString("}")
	case KindEmpty:
		b.WriteString(indent)
		b.WriteString(";\n")
	}
}
