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

package cse

// Trace is an ordered map from temporary keys to Temporaries. Order is the
// order in which the tracer encountered each key; the cost model and the
// push step both rely on it.
type Trace struct {
	entries map[string]*Temporary
	order   []string
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{entries: make(map[string]*Temporary)}
}

// Get returns the temporary for key, or nil.
func (tr *Trace) Get(key string) *Temporary { return tr.entries[key] }

// Has reports whether key is traced.
func (tr *Trace) Has(key string) bool {
	_, ok := tr.entries[key]
	return ok
}

// Put stores t under key, keeping the key's original position when it is
// already present.
func (tr *Trace) Put(key string, t *Temporary) {
	if _, ok := tr.entries[key]; !ok {
		tr.order = append(tr.order, key)
	}
	tr.entries[key] = t
}

// Setdefault returns the temporary for key, storing t first if the key is
// absent.
func (tr *Trace) Setdefault(key string, t *Temporary) *Temporary {
	if cur, ok := tr.entries[key]; ok {
		return cur
	}
	tr.Put(key, t)
	return t
}

// Index returns key's insertion position, or -1.
func (tr *Trace) Index(key string) int {
	for i, k := range tr.order {
		if k == key {
			return i
		}
	}
	return -1
}

// Len returns the number of traced temporaries.
func (tr *Trace) Len() int { return len(tr.order) }

// Keys returns the keys in insertion order.
func (tr *Trace) Keys() []string { return append([]string(nil), tr.order...) }

// Values returns the temporaries in insertion order.
func (tr *Trace) Values() []*Temporary {
	out := make([]*Temporary, 0, len(tr.order))
	for _, k := range tr.order {
		out = append(out, tr.entries[k])
	}
	return out
}

// Update merges other into tr, preserving both orders.
func (tr *Trace) Update(other *Trace) {
	for _, k := range other.order {
		tr.Put(k, other.entries[k])
	}
}

// Reconstruct returns a trace of reconstructed temporaries, for hypothetical
// cost evaluations.
func (tr *Trace) Reconstruct() *Trace {
	out := NewTrace()
	for _, k := range tr.order {
		out.Put(k, tr.entries[k].Reconstruct())
	}
	return out
}
