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

package analysis

import "github.com/nestopt/go-nestopt/nest/ast"

// Reachability maps each declaration to the set of loops in which the
// declared symbol is visible: every loop that starts after the declaration
// point in the same scope, plus all loops nested inside those. External
// declarations are visible everywhere.
func Reachability(root *ast.Node, decls map[string]*ast.Node) map[*ast.Node]map[*ast.Node]bool {
	ra := make(map[*ast.Node]map[*ast.Node]bool)
	for _, d := range decls {
		ra[d] = make(map[*ast.Node]bool)
	}

	var allLoops []*ast.Node
	var collect func(n *ast.Node)
	collect = func(n *ast.Node) {
		for _, c := range n.Children {
			if c.Kind == ast.KindFor {
				allLoops = append(allLoops, c)
			}
			collect(c)
		}
	}
	collect(root)

	for _, d := range decls {
		if d.External {
			for _, l := range allLoops {
				ra[d][l] = true
			}
		}
	}

	// markInside marks every loop at or under n as reachable for d.
	var markInside func(d, n *ast.Node)
	markInside = func(d, n *ast.Node) {
		if n.Kind == ast.KindFor {
			ra[d][n] = true
		}
		for _, c := range n.Children {
			markInside(d, c)
		}
	}

	var walk func(n *ast.Node, visible []*ast.Node)
	walk = func(n *ast.Node, visible []*ast.Node) {
		open := append([]*ast.Node(nil), visible...)
		for _, c := range n.Children {
			switch c.Kind {
			case ast.KindDecl:
				if _, ok := ra[c]; ok {
					open = append(open, c)
				}
			case ast.KindFor:
				for _, d := range open {
					markInside(d, c)
				}
				walk(c, open)
			default:
				walk(c, open)
			}
		}
	}
	walk(root, nil)
	return ra
}
