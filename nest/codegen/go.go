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

package codegen

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/tools/imports"

	"github.com/nestopt/go-nestopt/nest/ast"
)

var titler = cases.Title(language.English)

// goCalls maps the C math intrinsics the evaluator knows to their math
// package equivalents. Anything else falls back to title-casing the name.
var goCalls = map[string]string{
	"fabs": "math.Abs",
	"sqrt": "math.Sqrt",
	"exp":  "math.Exp",
	"log":  "math.Log",
	"sin":  "math.Sin",
	"cos":  "math.Cos",
	"pow":  "math.Pow",
}

// Go renders kernel as a Go source file with one exported function and runs
// the result through goimports, which prunes or adds the math import as the
// expression requires.
func Go(kernel *ast.Node, pkg, name string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\nimport \"math\"\n\n", pkg)

	var params []string
	for _, d := range ast.FindKind(kernel, ast.KindDecl) {
		if !d.External {
			continue
		}
		params = append(params, d.Name+" "+goType(d.Shape))
	}
	fmt.Fprintf(&b, "func %s(%s) {\n", titler.String(name), strings.Join(params, ", "))

	for _, stmt := range kernel.Children {
		if stmt.Kind == ast.KindDecl && stmt.External {
			continue
		}
		goStmt(&b, stmt, 1)
	}
	b.WriteString("}\n")

	out, err := imports.Process(name+".go", []byte(b.String()), nil)
	if err != nil {
		return "", fmt.Errorf("codegen: format %s: %w", name, err)
	}
	return string(out), nil
}

func goType(shape []int) string {
	t := "float64"
	for i := len(shape) - 1; i >= 0; i-- {
		t = fmt.Sprintf("[%d]%s", shape[i], t)
	}
	if len(shape) > 0 {
		t = "*" + t
	}
	return t
}

func goStmt(b *strings.Builder, n *ast.Node, depth int) {
	ind := strings.Repeat("\t", depth)
	switch n.Kind {
	case ast.KindDecl:
		b.WriteString(ind)
		if len(n.Children) == 1 && n.Children[0].Kind == ast.KindArrayInit {
			elem := "float64"
			for i := len(n.Shape) - 1; i >= 0; i-- {
				elem = fmt.Sprintf("[%d]%s", n.Shape[i], elem)
			}
			fmt.Fprintf(b, "%s := %s", n.Name, elem)
			goInit(b, n.Children[0].Values, n.Shape)
		} else if len(n.Children) == 1 {
			fmt.Fprintf(b, "%s := %s", n.Name, goExpr(n.Children[0]))
		} else {
			elem := "float64"
			for i := len(n.Shape) - 1; i >= 0; i-- {
				elem = fmt.Sprintf("[%d]%s", n.Shape[i], elem)
			}
			fmt.Fprintf(b, "var %s %s", n.Name, elem)
		}
		b.WriteString("\n")
	case ast.KindFor:
		fmt.Fprintf(b, "%sfor %s := 0; %s < %d; %s++ {\n", ind, n.Dim, n.Dim, n.Size, n.Dim)
		for _, c := range n.Children {
			goStmt(b, c, depth+1)
		}
		b.WriteString(ind)
		b.WriteString("}\n")
	case ast.KindBlock:
		for _, c := range n.Children {
			goStmt(b, c, depth)
		}
	case ast.KindAssign, ast.KindIncr, ast.KindDecr, ast.KindIMul, ast.KindIDiv:
		ops := map[ast.Kind]string{
			ast.KindAssign: "=", ast.KindIncr: "+=", ast.KindDecr: "-=",
			ast.KindIMul: "*=", ast.KindIDiv: "/=",
		}
		fmt.Fprintf(b, "%s%s %s %s\n", ind, goExpr(n.LValue()), ops[n.Kind], goExpr(n.RValue()))
	case ast.KindEmpty:
	default:
		fmt.Fprintf(b, "%s// unprintable %s\n", ind, n.Kind)
	}
}

func goInit(b *strings.Builder, values []float64, shape []int) {
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
		elem := "float64"
		for j := len(shape) - 1; j >= 1; j-- {
			elem = fmt.Sprintf("[%d]%s", shape[j], elem)
		}
		b.WriteString(elem)
		goInit(b, values[i*stride:(i+1)*stride], shape[1:])
	}
	b.WriteString("}")
}

func goExpr(n *ast.Node) string {
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
		return goJoin(n, "*")
	case ast.KindSum:
		return goJoin(n, " + ")
	case ast.KindSub:
		return goJoin(n, " - ")
	case ast.KindDiv:
		return goOperand(n.Children[0]) + "/" + goDenominator(n.Children[1])
	case ast.KindCall:
		fn, ok := goCalls[n.Name]
		if !ok {
			fn = "math." + titler.String(n.Name)
		}
		args := make([]string, len(n.Children))
		for i, c := range n.Children {
			args[i] = goExpr(c)
		}
		return fn + "(" + strings.Join(args, ", ") + ")"
	default:
		return fmt.Sprintf("/* %s */", n.Kind)
	}
}

func goJoin(n *ast.Node, op string) string {
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = goOperand(c)
	}
	return strings.Join(parts, op)
}

func goOperand(n *ast.Node) string {
	switch n.Kind {
	case ast.KindSum, ast.KindSub:
		return "(" + goExpr(n) + ")"
	default:
		return goExpr(n)
	}
}

// goDenominator parenthesizes any compound divisor: emitted division is
// left-associative, so only a bare symbol or call keeps the tree's value
// without grouping.
func goDenominator(n *ast.Node) string {
	switch n.Kind {
	case ast.KindSymbol, ast.KindCall:
		return goExpr(n)
	default:
		return "(" + goExpr(n) + ")"
	}
}
