// Copyright 2011 Google Inc. All Rights Reserved.
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

package nin

import (
	"math"
	"time"
)

// FileSystem is the filesystem accessor the core expects from its
// environment: "stat a path and return last-modification time or
// absent". Errors other than not-found are fatal per spec.md section 6.
type FileSystem interface {
	Stat(path string) (mtime time.Time, exists bool, err error)
}

type mtimeState int

const (
	mtimeMissing mtimeState = iota
	mtimeKnown
	mtimeBuiltNow
)

type storeEntry struct {
	state mtimeState
	nanos int64
}

// Store is the mutable map from PathKey to "last-known mtime" described by
// spec.md section 3: missing, a real stat result, or the built-now
// sentinel the Rebuilder writes after a successful edge. Each physical
// path is stat'd at most once per build; the Scheduler is the only
// caller, but it drives command execution from multiple worker
// goroutines, so every Store access is reached through the Scheduler's
// own mutex (spec section 5, "Shared resources") rather than from here.
type Store struct {
	fs       FileSystem
	interner *pathInterner
	entries  map[PathKey]storeEntry
}

// NewStore creates an empty Store backed by fs.
func NewStore(fs FileSystem, interner *pathInterner) *Store {
	return &Store{fs: fs, interner: interner, entries: map[PathKey]storeEntry{}}
}

func (s *Store) path(k PathKey) string { return s.interner.Path(k) }

func (s *Store) stat(k PathKey) (storeEntry, error) {
	if e, ok := s.entries[k]; ok {
		return e, nil
	}
	t, exists, err := s.fs.Stat(s.path(k))
	if err != nil {
		return storeEntry{}, &IOError{Path: s.path(k), Err: err}
	}
	e := storeEntry{state: mtimeMissing}
	if exists {
		e = storeEntry{state: mtimeKnown, nanos: t.UnixNano()}
	}
	s.entries[k] = e
	return e, nil
}

// MarkBuilt records the built-now sentinel for k: a timestamp that
// compares strictly greater than any real mtime, so every key
// downstream of a key rebuilt this session is correctly seen as dirty by
// a later, mtime-based comparison without needing to re-stat anything.
func (s *Store) MarkBuilt(k PathKey) {
	s.entries[k] = storeEntry{state: mtimeBuiltNow, nanos: math.MaxInt64}
}

// Rebuilder decides clean vs. dirty for a PathKey using the Store and the
// Graph, per spec.md section 4.5. It must be driven in an order where
// every key's dependencies have already been classified (and, if dirty,
// rebuilt) -- the Scheduler's reverse-post-order traversal guarantees
// this. Classify does call itself on a key's inputs, but for inputs
// produced by an edge that verdict is already cached by then.
//
// Classify and Complete both mutate unsynchronized maps (dirty and the
// Store's entries) and must only ever be called with the Scheduler's
// mutex held; Rebuilder itself does no locking.
type Rebuilder struct {
	graph *Graph
	store *Store
	dirty map[PathKey]bool
}

// NewRebuilder creates a Rebuilder over graph, reading/writing store.
func NewRebuilder(graph *Graph, store *Store) *Rebuilder {
	return &Rebuilder{graph: graph, store: store, dirty: map[PathKey]bool{}}
}

// Classify reports whether k is dirty, caching the verdict so that a
// later phony edge depending on k can look it up without re-deriving it.
// A multi-output edge is classified once; the verdict is cached against
// every one of its outputs so a second call naming a different output of
// the same edge never re-derives (and, worse, re-derives a different
// answer from) a verdict that a build in between may have invalidated.
func (r *Rebuilder) Classify(k PathKey) (bool, error) {
	if d, ok := r.dirty[k]; ok {
		return d, nil
	}
	d, err := r.classify(k)
	if err != nil {
		return false, err
	}
	r.dirty[k] = d
	if e := r.graph.EdgeFor(k); e != nil {
		for _, out := range e.AllOutputs() {
			r.dirty[out] = d
		}
	}
	return d, nil
}

func (r *Rebuilder) classify(k PathKey) (bool, error) {
	e := r.graph.EdgeFor(k)
	if e == nil {
		return r.classifySource(k)
	}
	if e.IsPhony() {
		return r.classifyPhony(e)
	}
	return r.classifyBuilt(e)
}

// classifySource handles a key with no defining edge: it is dirty iff
// missing, and a missing source that something depends on is always an
// error, since Classify is only ever invoked on a key reachable from a
// requested target (i.e. it is, transitively, required by a dependent).
func (r *Rebuilder) classifySource(k PathKey) (bool, error) {
	st, err := r.store.stat(k)
	if err != nil {
		return false, err
	}
	if st.state == mtimeMissing {
		return false, &SemanticError{Message: r.store.path(k) + ": no rule to build it, and it is missing"}
	}
	return false, nil
}

// classifyPhony implements spec.md section 4.5 points 2 and 3: a phony
// edge with no inputs is dirty iff its output is missing; one with inputs
// is dirty iff any input is dirty, propagated structurally with no disk
// access at all.
func (r *Rebuilder) classifyPhony(e *Edge) (bool, error) {
	ins := append(append([]PathKey{}, e.ExplicitIns...), e.ImplicitIns...)
	if len(ins) == 0 {
		if len(e.AllOutputs()) == 0 {
			return false, nil
		}
		st, err := r.store.stat(e.AllOutputs()[0])
		if err != nil {
			return false, err
		}
		return st.state == mtimeMissing, nil
	}
	dirty := false
	for _, in := range ins {
		d, err := r.Classify(in)
		if err != nil {
			return false, err
		}
		if d {
			dirty = true
		}
	}
	return dirty, nil
}

// classifyBuilt implements spec.md section 4.5 point 4: the min mtime
// across all (atomically rebuilt) outputs is compared against every
// explicit/implicit input's mtime, including the built-now sentinel a
// rebuilt dependency leaves behind. Order-only inputs are excluded from
// the comparison; their mere existence is still validated (a missing
// order-only source with no producing edge is a SemanticError) by
// routing every input through Classify rather than a raw stat, which is
// also what lets a phony input (no file of its own) participate by its
// propagated dirty verdict instead of a meaningless mtime.
func (r *Rebuilder) classifyBuilt(e *Edge) (bool, error) {
	if len(e.AllOutputs()) == 0 {
		return false, nil
	}
	var outMin int64
	for i, out := range e.AllOutputs() {
		st, err := r.store.stat(out)
		if err != nil {
			return false, err
		}
		if st.state == mtimeMissing {
			return true, nil
		}
		if i == 0 || st.nanos < outMin {
			outMin = st.nanos
		}
	}
	dirty := false
	check := func(in PathKey) error {
		d, err := r.Classify(in)
		if err != nil {
			return err
		}
		if d {
			dirty = true
		}
		if r.graph.EdgeFor(in) != nil && r.graph.EdgeFor(in).IsPhony() {
			// A phony node has no file of its own; its dirtiness has
			// already been folded into d above, there is no mtime to
			// compare.
			return nil
		}
		st, err := r.store.stat(in)
		if err != nil {
			return err
		}
		if st.state == mtimeMissing || st.nanos > outMin {
			dirty = true
		}
		return nil
	}
	for _, in := range e.ExplicitIns {
		if err := check(in); err != nil {
			return false, err
		}
	}
	for _, in := range e.ImplicitIns {
		if err := check(in); err != nil {
			return false, err
		}
	}
	for _, oo := range e.OrderOnlyIns {
		if _, err := r.Classify(oo); err != nil {
			return false, err
		}
	}
	return dirty, nil
}

// Complete writes the built-now marker into the Store for every output of
// e, called by the Scheduler once e's command has exited successfully.
func (r *Rebuilder) Complete(e *Edge) {
	for _, out := range e.AllOutputs() {
		r.store.MarkBuilt(out)
	}
}
