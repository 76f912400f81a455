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

// Package analysis provides the whole-kernel dataflow facts the optimizer
// consumes: which loop dimensions a symbol varies over, where declarations
// are visible, and per-statement expression metadata.
package analysis

import (
	"sort"
	"strings"
)

// DimSet is a set of loop dimension names.
type DimSet map[string]struct{}

// NewDimSet builds a set from dims.
func NewDimSet(dims ...string) DimSet {
	s := make(DimSet, len(dims))
	for _, d := range dims {
		s[d] = struct{}{}
	}
	return s
}

func (s DimSet) Has(d string) bool {
	_, ok := s[d]
	return ok
}

func (s DimSet) Add(d string) { s[d] = struct{}{} }

// Subset reports whether s ⊆ o. The empty set is a subset of everything.
func (s DimSet) Subset(o DimSet) bool {
	for d := range s {
		if !o.Has(d) {
			return false
		}
	}
	return true
}

func (s DimSet) Equal(o DimSet) bool {
	return len(s) == len(o) && s.Subset(o)
}

func (s DimSet) Intersect(o DimSet) DimSet {
	out := DimSet{}
	for d := range s {
		if o.Has(d) {
			out.Add(d)
		}
	}
	return out
}

func (s DimSet) Union(o DimSet) DimSet {
	out := DimSet{}
	for d := range s {
		out.Add(d)
	}
	for d := range o {
		out.Add(d)
	}
	return out
}

// Sorted returns the dimensions in lexicographic order.
func (s DimSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (s DimSet) String() string {
	return "{" + strings.Join(s.Sorted(), ",") + "}"
}
