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

package eval

import (
	"fmt"

	"github.com/nestopt/go-nestopt/nest/ast"
)

// Tables executes one hoisted loop in an environment seeded from the given
// declarations and returns the arrays it writes, keyed by symbol name. Only
// constant initializers participate; if the loop reads anything that is not
// compile-time constant the evaluation fails and the caller gives up on
// pre-evaluation.
func Tables(loop *ast.Node, decls map[string]*ast.Node) (map[string]*Array, error) {
	env := NewEnv()
	for _, d := range decls {
		if len(d.Children) == 1 && d.Children[0].Kind != ast.KindArrayInit {
			// Initializer is an expression; seed only if it folds to a
			// constant on its own.
			if v, err := Expr(d.Children[0], env); err == nil && len(d.Shape) == 0 {
				env.Scalars[d.Name] = v
			}
			continue
		}
		if err := runDecl(d, env); err != nil {
			return nil, err
		}
	}
	if err := Run(loop, env); err != nil {
		return nil, err
	}
	out := make(map[string]*Array)
	for _, s := range ast.WrittenSyms(loop) {
		if arr, ok := env.Arrays[s.Name]; ok {
			out[s.Name] = arr
			continue
		}
		if v, ok := env.Scalars[s.Name]; ok {
			out[s.Name] = &Array{Shape: nil, Data: []float64{v}}
			continue
		}
		return nil, fmt.Errorf("eval: loop wrote undeclared symbol %s", s.Name)
	}
	return out, nil
}
