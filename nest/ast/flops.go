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

// EstimateFlops statically counts arithmetic operations in a subtree. Each
// Prod/Sum/Sub/Div node is one operation per operand pair; accumulating
// writers add one for the update itself; loops multiply their body count by
// the trip count. Calls count as a single operation regardless of callee.
func EstimateFlops(n *Node) int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case KindSymbol, KindArrayInit, KindEmpty, KindDecl:
		if n.Kind == KindDecl && len(n.Children) == 1 && n.Children[0].Kind != KindArrayInit {
			return EstimateFlops(n.Children[0])
		}
		return 0
	case KindProd, KindSum, KindSub, KindDiv:
		ops := len(n.Children) - 1
		for _, c := range n.Children {
			ops += EstimateFlops(c)
		}
		return ops
	case KindCall:
		ops := 1
		for _, c := range n.Children {
			ops += EstimateFlops(c)
		}
		return ops
	case KindAssign:
		return EstimateFlops(n.RValue())
	case KindIncr, KindDecr, KindIMul, KindIDiv:
		return 1 + EstimateFlops(n.RValue())
	case KindFor:
		body := 0
		for _, c := range n.Children {
			body += EstimateFlops(c)
		}
		return n.Size * body
	case KindBlock:
		total := 0
		for _, c := range n.Children {
			total += EstimateFlops(c)
		}
		return total
	default:
		return 0
	}
}
