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

// Package codegen renders optimized kernels as compilable source. It only
// prints the tree it is given; no lowering or further optimization happens
// here.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nestopt/go-nestopt/nest/ast"
)

// C renders kernel as a C99 function. Declarations marked external become
// array parameters; everything else is emitted into the function body.
func C(kernel *ast.Node, name string) string {
	var b strings.Builder

	var params []string
	for _, d := range ast.FindKind(kernel, ast.KindDecl) {
		if !d.External {
			continue
		}
		p := d.Type + " " + d.Name
		for _, s := range d.Shape {
			p += fmt.Sprintf("[%d]", s)
		}
		params = append(params, p)
	}
	fmt.Fprintf(&b, "void %s(%s)\n{\n", name, strings.Join(params, ", "))

	for _, stmt := range kernel.Children {
		if stmt.Kind == ast.KindDecl && stmt.External {
			continue
		}
		cStmt(&b, stmt, 1)
	}
	b.WriteString("}\n")
	return b.String()
}

func cStmt(b *strings.Builder, n *ast.Node, depth int) {
	ind := strings.Repeat("  ", depth)
	switch n.Kind {
	case ast.KindDecl:
		b.WriteString(ind)
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
			if n.Children[0].Kind == ast.KindArrayInit {
				cInit(b, n.Children[0].Values, n.Shape)
			} else {
				b.WriteString(cExpr(n.Children[0]))
			}
		} else if len(n.Shape) > 0 {
			b.WriteString(" = {0.0}")
		}
		b.WriteString(";\n")
	case ast.KindFor:
		fmt.Fprintf(b, "%sfor (int %s = 0; %s < %d; %s++) {\n",
			ind, n.Dim, n.Dim, n.Size, n.Dim)
		for _, c := range n.Children {
			cStmt(b, c, depth+1)
		}
		b.WriteString(ind)
		b.WriteString("}\n")
	case ast.KindBlock:
		for _, c := range n.Children {
			cStmt(b, c, depth)
		}
	case ast.KindAssign, ast.KindIncr, ast.KindDecr, ast.KindIMul, ast.KindIDiv:
		ops := map[ast.Kind]string{
			ast.KindAssign: "=", ast.KindIncr: "+=", ast.KindDecr: "-=",
			ast.KindIMul: "*=", ast.KindIDiv: "/=",
		}
		fmt.Fprintf(b, "%s%s %s %s;\n", ind, cExpr(n.LValue()), ops[n.Kind], cExpr(n.RValue()))
	case ast.KindEmpty:
	default:
		fmt.Fprintf(b, "%s/* unprintable %s */\n", ind, n.Kind)
	}
}

// cInit prints a row-major value list with braces nested per shape.
func cInit(b *strings.Builder, values []float64, shape []int) {
	if len(shape) <= 1 {
		b.WriteString("{")
		for i, v := range values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatFloat(v))
		}
		b.WriteString("}")
		return
	}
	stride := len(values) / shape[0]
	b.WriteString("{")
	for i := 0; i < shape[0]; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		cInit(b, values[i*stride:(i+1)*stride], shape[1:])
	}
	b.WriteString("}")
}

func cExpr(n *ast.Node) string {
	switch n.Kind {
	case ast.KindSymbol:
		if n.Num {
			return formatFloat(n.Val)
		}
		s := n.Name
		for _, r := range n.Rank {
			s += "[" + r + "]"
		}
		return s
	case ast.KindProd:
		return cJoin(n, "*")
	case ast.KindSum:
		return cJoin(n, " + ")
	case ast.KindSub:
		return cJoin(n, " - ")
	case ast.KindDiv:
		return cOperand(n.Children[0]) + "/" + cDenominator(n.Children[1])
	case ast.KindCall:
		args := make([]string, len(n.Children))
		for i, c := range n.Children {
			args[i] = cExpr(c)
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	default:
		return fmt.Sprintf("/* %s */", n.Kind)
	}
}

func cJoin(n *ast.Node, op string) string {
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = cOperand(c)
	}
	return strings.Join(parts, op)
}

// cOperand parenthesizes child operators with lower binding than a product.
func cOperand(n *ast.Node) string {
	switch n.Kind {
	case ast.KindSum, ast.KindSub:
		return "(" + cExpr(n) + ")"
	default:
		return cExpr(n)
	}
}

// cDenominator parenthesizes any compound divisor: emitted division is
// left-associative, so only a bare symbol or call keeps the tree's value
// without grouping.
func cDenominator(n *ast.Node) string {
	switch n.Kind {
	case ast.KindSymbol, ast.KindCall:
		return cExpr(n)
	default:
		return "(" + cExpr(n) + ")"
	}
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
