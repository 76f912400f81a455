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

// Package rewrite implements the expression rewriter: loop-invariant code
// motion, expansion, factorization, reassociation, division replacement,
// pre-evaluation, and the sharing-graph factorization selector. Operations
// chain; unknown strategy names log a warning and leave the tree untouched,
// while internal invariant violations stop the offending operation and are
// reported through Err.
package rewrite

import (
	"fmt"
	"log"

	"github.com/nestopt/go-nestopt/nest/analysis"
	"github.com/nestopt/go-nestopt/nest/ast"
	"github.com/nestopt/go-nestopt/nest/ilp"
)

// Rewriter rewrites the expression of one statement in place.
type Rewriter struct {
	Stmt    *ast.Node
	Info    *analysis.MetaExpr
	Decls   map[string]*ast.Node
	Header  *ast.Node
	Hoisted *StmtTracker
	Graph   *analysis.ExprGraph
	Solver  ilp.Solver

	err       error
	extracted map[*ast.Node]analysis.DimSet
}

// New builds a rewriter for stmt. hoisted may be shared with other
// rewriters on the same kernel and must be when they hoist into the same
// scope; a nil tracker gets a private one.
func New(stmt *ast.Node, info *analysis.MetaExpr, decls map[string]*ast.Node,
	header *ast.Node, hoisted *StmtTracker) *Rewriter {
	if hoisted == nil {
		hoisted = NewStmtTracker()
	}
	return &Rewriter{
		Stmt:    stmt,
		Info:    info,
		Decls:   decls,
		Header:  header,
		Hoisted: hoisted,
		Solver:  ilp.Exact{},
	}
}

// Err returns the first invariant violation hit by any operation since the
// rewriter was built. Transformations after a failure are no-ops.
func (rw *Rewriter) Err() error { return rw.err }

func (rw *Rewriter) fail(format string, args ...interface{}) {
	if rw.err == nil {
		rw.err = fmt.Errorf(format, args...)
	}
}

// options collects the cross-operation knobs. Zero value means: iterative
// hoisting, no promotion, no global CSE, fresh loop-dependence analysis.
type options struct {
	lda          analysis.DepMap
	dimensions   []string
	adhoc        map[string][]string
	nonIterative bool
	promotion    bool
	globalCSE    bool
	lookAhead    bool
	maxSharing   bool
	heuristic    bool
}

// Option tunes one rewriter operation.
type Option func(*options)

// WithLDA supplies an up-to-date loop-dependence analysis so the operation
// does not recompute it.
func WithLDA(lda analysis.DepMap) Option { return func(o *options) { o.lda = lda } }

// WithDimensions selects the dimensions for the "dimensions" modes.
func WithDimensions(dims ...string) Option {
	return func(o *options) { o.dimensions = dims }
}

// WithAdhoc restricts factorization to the given pivot symbols; each maps
// to the symbols allowed in its group (empty list means no restriction).
func WithAdhoc(adhoc map[string][]string) Option {
	return func(o *options) { o.adhoc = adhoc }
}

// NonIterative hoists only the smallest matching subexpressions instead of
// sweeping to a fixpoint.
func NonIterative() Option { return func(o *options) { o.nonIterative = true } }

// WithPromotion hoists subexpressions even when doing so needs clone loops
// and does not by itself reduce the operation count.
func WithPromotion() Option { return func(o *options) { o.promotion = true } }

// WithGlobalCSE reuses structurally identical, already-hoisted expressions
// instead of hoisting again. No dependence analysis is performed; the
// caller vouches that the hoisted values are still current.
func WithGlobalCSE() Option { return func(o *options) { o.globalCSE = true } }

// LookAhead computes the hoistable subexpressions without mutating the
// tree; the projection is available through Extracted.
func LookAhead() Option { return func(o *options) { o.lookAhead = true } }

// MaxSharing skips hoisting when the same symbol set appears in several
// hoistable subexpressions, preserving factorization opportunities.
func MaxSharing() Option { return func(o *options) { o.maxSharing = true } }

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Extracted returns the projection captured by the last look-ahead hoist.
func (rw *Rewriter) Extracted() map[*ast.Node]analysis.DimSet { return rw.extracted }

// Licm hoists dimension-invariant subexpressions. Modes:
//
//   - "normal": subexpressions that do not depend on the full dimension set
//   - "aggressive": any invariant subset; may introduce higher-rank
//     temporaries
//   - "incremental": const-only, then outer-linear-only, then one sweep per
//     linear dimension with increasing strictness
//   - "only_const", "only_linear", "only_outlinear": predicate-selected
//   - "reductions": pull a reduction loop out of the nest when legal;
//     skipped when the candidate loop has trip count 1, since that would
//     increase the operation count
func (rw *Rewriter) Licm(mode string, opts ...Option) *Rewriter {
	if rw.err != nil {
		return rw
	}
	o := buildOptions(opts)
	h := &hoister{rw: rw}

	dims := rw.Info.Dims()
	linear := rw.Info.LinearDimSet()
	outLinear := rw.Info.OutLinearDimSet()

	switch mode {
	case "normal":
		h.licm(func(d analysis.DimSet) bool { return !d.Equal(dims) }, o)
	case "aggressive":
		rw.Reassociate(nil)
		o.promotion = true
		h.licm(func(d analysis.DimSet) bool { return true }, o)
	case "incremental":
		if o.lda == nil {
			o.lda = analysis.LoopDeps(rw.Header)
		}
		h.licm(func(d analysis.DimSet) bool { return !(len(d) > 0 && d.Subset(dims)) }, o)
		h.licm(func(d analysis.DimSet) bool { return d.Subset(outLinear) }, o)
		for i := 1; i < rw.Info.Dimension(); i++ {
			bound := i
			h.licm(func(d analysis.DimSet) bool {
				return len(d.Intersect(linear)) <= bound
			}, o)
		}
	case "only_const":
		h.licm(func(d analysis.DimSet) bool { return !(len(d) > 0 && d.Subset(dims)) }, o)
	case "only_outlinear":
		h.licm(func(d analysis.DimSet) bool { return d.Subset(outLinear) }, o)
	case "only_linear":
		h.licm(func(d analysis.DimSet) bool {
			return !d.Subset(outLinear) && !d.Equal(linear)
		}, o)
	case "reductions":
		h.reductions(o)
	default:
		log.Printf("rewrite: skipping unknown licm strategy %q", mode)
	}
	return rw
}

// Expand distributes products over sums, e.g. (a+b)*c into a*c + b*c.
// Modes: "standard" (most frequent dimension tuple, preferring out-linear
// dimensions), "dimensions", "all", "linear", "outlinear".
func (rw *Rewriter) Expand(mode string, opts ...Option) *Rewriter {
	if rw.err != nil {
		return rw
	}
	o := buildOptions(opts)
	should, ok := rw.expandPredicate(mode, o)
	if !ok {
		return rw
	}
	if should == nil {
		// Mode resolved to "nothing to do", e.g. no occurrences.
		return rw
	}
	(&expander{rw: rw}).expand(should)
	return rw
}

func (rw *Rewriter) expandPredicate(mode string, o *options) (func(*ast.Node) bool, bool) {
	switch mode {
	case "standard":
		target := rw.dominantDimensions()
		if target == nil {
			return nil, true
		}
		want := analysis.NewDimSet(target...)
		return func(n *ast.Node) bool {
			return want.Subset(analysis.NewDimSet(n.Rank...))
		}, true
	case "dimensions":
		want := analysis.NewDimSet(o.dimensions...)
		return func(n *ast.Node) bool {
			return want.Subset(analysis.NewDimSet(n.Rank...))
		}, true
	case "all", "linear", "outlinear":
		lda := o.lda
		if lda == nil {
			lda = analysis.LoopDepsBySymbol(rw.scopeRoot())
		}
		dims := rw.Info.Dims()
		linear := rw.Info.LinearDimSet()
		switch mode {
		case "all":
			return func(n *ast.Node) bool {
				d := lda.Get(n)
				return len(d) > 0 && len(d.Intersect(dims)) > 0
			}, true
		case "linear":
			return func(n *ast.Node) bool {
				d := lda.Get(n)
				return len(d) > 0 && len(d.Intersect(linear)) > 0
			}, true
		default: // outlinear
			return func(n *ast.Node) bool {
				d := lda.Get(n)
				return len(d) > 0 && !d.Subset(linear)
			}, true
		}
	default:
		log.Printf("rewrite: skipping unknown expansion strategy %q", mode)
		return nil, false
	}
}

// Factorize is the inverse of Expand: a*b + a*c into a*(b+c). Modes are
// those of Expand plus "constants", "adhoc" (pivots restricted to an
// explicit map) and "heuristic" (per additive subtree, factor the most
// frequent symbol).
func (rw *Rewriter) Factorize(mode string, opts ...Option) *Rewriter {
	if rw.err != nil {
		return rw
	}
	o := buildOptions(opts)
	var should func(*ast.Node) bool
	switch mode {
	case "standard":
		target := rw.dominantDimensions()
		if target == nil {
			return rw
		}
		want := analysis.NewDimSet(target...)
		should = func(n *ast.Node) bool {
			return want.Subset(analysis.NewDimSet(n.Rank...))
		}
	case "dimensions":
		want := analysis.NewDimSet(o.dimensions...)
		should = func(n *ast.Node) bool {
			return want.Subset(analysis.NewDimSet(n.Rank...))
		}
	case "adhoc":
		if len(o.adhoc) == 0 {
			return rw
		}
		should = func(n *ast.Node) bool {
			_, ok := o.adhoc[n.Key()]
			return ok
		}
	case "heuristic":
		o.heuristic = true
		should = func(n *ast.Node) bool { return false }
	case "all", "linear", "outlinear", "constants":
		lda := o.lda
		if lda == nil {
			lda = analysis.LoopDepsBySymbol(rw.scopeRoot())
		}
		dims := rw.Info.Dims()
		linear := rw.Info.LinearDimSet()
		switch mode {
		case "all":
			should = func(n *ast.Node) bool {
				d := lda.Get(n)
				return len(d) > 0 && len(d.Intersect(dims)) > 0
			}
		case "linear":
			should = func(n *ast.Node) bool {
				d := lda.Get(n)
				return len(d) > 0 && len(d.Intersect(linear)) > 0
			}
		case "outlinear":
			should = func(n *ast.Node) bool {
				d := lda.Get(n)
				return len(d) > 0 && !d.Subset(linear)
			}
		default: // constants
			should = func(n *ast.Node) bool { return len(lda.Get(n)) == 0 }
		}
	default:
		log.Printf("rewrite: skipping unknown factorization strategy %q", mode)
		return rw
	}
	(&factorizer{rw: rw}).factorize(should, o)
	return rw
}

// dominantDimensions implements the "standard" heuristic shared by Expand
// and Factorize: the dimension tuple occurring most often across symbol
// ranks, restricted to out-linear dimensions when the expression is
// low-rank, otherwise to linear ones. First-seen wins ties.
func (rw *Rewriter) dominantDimensions() []string {
	dims := rw.Info.OutLinearDims()
	if len(dims) == 0 || rw.Info.Dimension() >= 2 {
		dims = rw.Info.LinearDims
	}
	allowed := analysis.NewDimSet(dims...)

	counts := make(map[string]int)
	tuples := make(map[string][]string)
	var order []string
	for _, s := range ast.Symbols(rw.Stmt.RValue()) {
		var tuple []string
		for _, r := range s.Rank {
			if allowed.Has(r) {
				tuple = append(tuple, r)
			}
		}
		if len(tuple) == 0 {
			continue
		}
		key := fmt.Sprint(tuple)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
			tuples[key] = tuple
		}
		counts[key]++
	}
	if len(order) == 0 {
		return nil
	}
	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return tuples[best]
}

// scopeRoot is where dependence analysis starts when none is supplied: the
// outermost enclosing loop, or the whole kernel for loop-free statements.
func (rw *Rewriter) scopeRoot() *ast.Node {
	if l := rw.Info.OutermostLoop(); l != nil {
		return l
	}
	return rw.Header
}

// Reassociate reorders the operands of associative products so that later
// grouping by dimension is deterministic. Symbol operands are sorted with
// less (default: by rank tuple, then name) and moved after any non-symbol
// operands, which are reassociated recursively.
func (rw *Rewriter) Reassociate(less func(a, b *ast.Node) bool) *Rewriter {
	if rw.err != nil {
		return rw
	}
	if less == nil {
		less = func(a, b *ast.Node) bool {
			ka, kb := a.RankKey(), b.RankKey()
			if ka != kb {
				return ka < kb
			}
			return a.Name < b.Name
		}
	}
	rw.reassociate(rw.Stmt.RValue(), rw.Stmt, less)
	return rw
}

func (rw *Rewriter) reassociate(n, parent *ast.Node, less func(a, b *ast.Node) bool) {
	if rw.err != nil {
		return
	}
	switch n.Kind {
	case ast.KindSymbol, ast.KindDiv:
		return
	case ast.KindSum, ast.KindSub, ast.KindCall:
		for _, c := range n.Children {
			rw.reassociate(c, n, less)
		}
	case ast.KindProd:
		ops := ast.Operands(n)
		var syms, other []*ast.Node
		for _, op := range ops {
			if op.Kind == ast.KindSymbol {
				syms = append(syms, op)
			} else {
				other = append(other, op)
			}
		}
		for _, op := range other {
			rw.reassociate(op, n, less)
		}
		stableSort(syms, less)
		rebuilt := ast.MakeExpr(ast.KindProd, append(other, syms...), false)
		if !ast.ReplaceChild(parent, n, rebuilt) {
			rw.fail("rewrite: reassociated node is not a child of its parent")
		}
	default:
		rw.fail("rewrite: unexpected %s node while reassociating", n.Kind)
	}
}

func stableSort(nodes []*ast.Node, less func(a, b *ast.Node) bool) {
	// Insertion sort keeps equal elements in input order without pulling in
	// sort.SliceStable's interface churn for tiny operand lists.
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && less(nodes[j], nodes[j-1]); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

// ReplaceDiv rewrites division by a constant into multiplication by its
// reciprocal. Numeric divisors fold to a literal; symbolic divisors become
// a multiply by a reciprocal expression.
func (rw *Rewriter) ReplaceDiv() *Rewriter {
	if rw.err != nil {
		return rw
	}
	repl := make(map[*ast.Node]*ast.Node)
	for _, div := range ast.FindKind(rw.Stmt.RValue(), ast.KindDiv) {
		left, right := div.Children[0], div.Children[1]
		if right.Kind != ast.KindSymbol {
			continue
		}
		if right.Num {
			if right.Val == 0 {
				continue
			}
			repl[div] = ast.NewProd(left, ast.NewNum(1/right.Val))
		} else {
			repl[div] = ast.NewProd(left, ast.NewDiv(ast.NewNum(1), right))
		}
	}
	if len(repl) > 0 {
		ast.ReplaceNodes(rw.Stmt, repl)
	}
	return rw
}
