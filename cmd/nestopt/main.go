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

// Command nestopt optimizes a demo finite-element integration kernel and
// prints the result, together with a static operation-count report.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nestopt/go-nestopt/nest/analysis"
	"github.com/nestopt/go-nestopt/nest/ast"
	"github.com/nestopt/go-nestopt/nest/codegen"
	"github.com/nestopt/go-nestopt/nest/cse"
	"github.com/nestopt/go-nestopt/nest/ilp"
	"github.com/nestopt/go-nestopt/nest/rewrite"
)

func main() {
	var (
		pipeline = flag.String("pipeline", "full", "transformation pipeline: licm, expand, factorize, sharing, unpick, full")
		emit     = flag.String("emit", "c", "output language: c, go, none")
		name     = flag.String("name", "mass_kernel", "emitted function name")
		solver   = flag.String("solver", "exact", "covering solver for the sharing graph: exact, greedy")
		quiet    = flag.Bool("quiet", false, "suppress the flop report")
	)
	flag.Parse()

	kernel, decls, exprs := demoKernel()
	before := ast.EstimateFlops(kernel)

	var slv ilp.Solver
	switch *solver {
	case "exact":
		slv = ilp.Exact{}
	case "greedy":
		slv = ilp.Greedy{}
	default:
		log.Fatalf("nestopt: unknown solver %q", *solver)
	}

	if err := run(*pipeline, kernel, decls, exprs, slv); err != nil {
		log.Fatalf("nestopt: %v", err)
	}

	after := ast.EstimateFlops(kernel)
	if !*quiet {
		fmt.Fprintf(os.Stderr, "flops: %d -> %d (%.1f%%)\n",
			before, after, 100*float64(after)/float64(before))
	}

	switch *emit {
	case "c":
		fmt.Print(codegen.C(kernel, *name))
	case "go":
		src, err := codegen.Go(kernel, "kernels", *name)
		if err != nil {
			log.Fatalf("nestopt: %v", err)
		}
		fmt.Print(src)
	case "none":
	default:
		log.Fatalf("nestopt: unknown output language %q", *emit)
	}
}

func run(pipeline string, kernel *ast.Node, decls map[string]*ast.Node,
	exprs map[*ast.Node]*analysis.MetaExpr, slv ilp.Solver) error {

	hoisted := rewrite.NewStmtTracker()
	graph := analysis.NewExprGraph(kernel)
	rewriter := func(stmt *ast.Node, info *analysis.MetaExpr) *rewrite.Rewriter {
		rw := rewrite.New(stmt, info, decls, kernel, hoisted)
		rw.Graph = graph
		rw.Solver = slv
		return rw
	}

	switch pipeline {
	case "licm":
		for stmt, info := range exprs {
			if err := rewriter(stmt, info).Licm("normal").Err(); err != nil {
				return err
			}
		}
	case "expand":
		for stmt, info := range exprs {
			if err := rewriter(stmt, info).Expand("standard").Err(); err != nil {
				return err
			}
		}
	case "factorize":
		for stmt, info := range exprs {
			if err := rewriter(stmt, info).Factorize("standard").Err(); err != nil {
				return err
			}
		}
	case "sharing":
		for stmt, info := range exprs {
			if err := rewriter(stmt, info).SharingGraphRewrite().Err(); err != nil {
				return err
			}
		}
	case "unpick":
		return cse.NewUnpicker(exprs, kernel, hoisted, decls, graph).Unpick()
	case "full":
		if err := cse.NewUnpicker(exprs, kernel, hoisted, decls, graph).Unpick(); err != nil {
			return err
		}
		for stmt, info := range exprs {
			if err := rewriter(stmt, info).SharingGraphRewrite().Err(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown pipeline %q", pipeline)
	}
	return nil
}

// demoKernel builds a mass-matrix assembly nest for a p2 element: a
// quadrature loop computing per-point temporaries, then a linear test/trial
// nest consuming them. The two products share the B factors once the
// temporaries are inlined, which is exactly the case the unpicker wins.
//
//	for q {
//	  for j { t0[j] = B[q][j]*G0[q]; t2[j] = B[q][j]*G1[q] }
//	  for k { t1[k] = B[q][k]*det }
//	  for j { for k { A[j][k] += t0[j]*t1[k] + t2[j]*t1[k] } }
//	}
func demoKernel() (*ast.Node, map[string]*ast.Node, map[*ast.Node]*analysis.MetaExpr) {
	declA := ast.NewDecl("double", "A", []int{8, 8}, nil)
	declB := ast.NewDecl("double", "B", []int{4, 8}, nil)
	declG0 := ast.NewDecl("double", "G0", []int{4}, nil)
	declG1 := ast.NewDecl("double", "G1", []int{4}, nil)
	declDet := ast.NewDecl("double", "det", nil, nil)
	for _, d := range []*ast.Node{declA, declB, declG0, declG1, declDet} {
		d.External = true
	}
	declT0 := ast.NewDecl("double", "t0", []int{8}, nil)
	declT1 := ast.NewDecl("double", "t1", []int{8}, nil)
	declT2 := ast.NewDecl("double", "t2", []int{8}, nil)

	main := ast.NewIncr(
		ast.NewSym("A", "j", "k"),
		ast.NewSum(
			ast.NewProd(ast.NewSym("t0", "j"), ast.NewSym("t1", "k")),
			ast.NewProd(ast.NewSym("t2", "j"), ast.NewSym("t1", "k")),
		),
	)
	kernel := ast.NewBlock(
		declA, declB, declG0, declG1, declDet, declT0, declT1, declT2,
		ast.NewFor("q", 4,
			ast.NewFor("j", 8,
				ast.NewAssign(ast.NewSym("t0", "j"),
					ast.NewProd(ast.NewSym("B", "q", "j"), ast.NewSym("G0", "q"))),
				ast.NewAssign(ast.NewSym("t2", "j"),
					ast.NewProd(ast.NewSym("B", "q", "j"), ast.NewSym("G1", "q"))),
			),
			ast.NewFor("k", 8,
				ast.NewAssign(ast.NewSym("t1", "k"),
					ast.NewProd(ast.NewSym("B", "q", "k"), ast.NewSym("det"))),
			),
			ast.NewFor("j", 8,
				ast.NewFor("k", 8, main),
			),
		),
	)

	decls := map[string]*ast.Node{
		"A": declA, "B": declB, "G0": declG0, "G1": declG1, "det": declDet,
		"t0": declT0, "t1": declT1, "t2": declT2,
	}
	exprs := map[*ast.Node]*analysis.MetaExpr{
		main: analysis.Describe(main, "double", []string{"j", "k"}),
	}
	return kernel, decls, exprs
}
