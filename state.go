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

import "strings"

// Pool is a named resource bucket a rule may opt into via the "pool"
// binding. Its declaration is tracked (name, depth) but, per SPEC_FULL's
// supplemented-features notes, depth is never enforced by the Scheduler: job
// weighting/pools are explicitly out of spec.md's scope. Declaring one is
// still accepted so real-world build files that use them still parse.
type Pool struct {
	Name  string
	Depth int
}

// Edge is one declared recipe: a rule invocation producing one or more
// outputs from explicit, implicit, and order-only inputs.
type Edge struct {
	id   int
	Rule *Rule
	Pool *Pool

	// Env is the BindingEnv active in the file at the point this build
	// block was parsed: the enclosing scope for both LocalBindings lookups
	// that miss and for evaluating the rule's own deferred bindings.
	Env *BindingEnv

	// LocalBindings is edge_env: the indented "key = value" lines under
	// this build block, already expanded against Env at parse time.
	LocalBindings map[string]string

	ExplicitOuts []PathKey
	ImplicitOuts []PathKey
	ExplicitIns  []PathKey
	ImplicitIns  []PathKey
	OrderOnlyIns []PathKey

	interner *pathInterner
}

// AllOutputs returns every output of e, explicit and implicit: the full
// set of paths this edge is responsible for producing atomically.
func (e *Edge) AllOutputs() []PathKey {
	all := make([]PathKey, 0, len(e.ExplicitOuts)+len(e.ImplicitOuts))
	all = append(all, e.ExplicitOuts...)
	all = append(all, e.ImplicitOuts...)
	return all
}

// ID uniquely identifies this edge within the BuildDescription it came
// from; the scheduler uses it to dedupe multi-output edges.
func (e *Edge) ID() int { return e.id }

func (e *Edge) pathsJoined(keys []PathKey, sep string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = e.interner.Path(k)
	}
	return strings.Join(parts, sep)
}

func (e *Edge) explicitInputsJoined(sep string) string { return e.pathsJoined(e.ExplicitIns, sep) }

// outputsJoined renders $out: the explicit outputs only, matching the
// convention that implicit outputs participate in dirtiness but never in
// the command line.
func (e *Edge) outputsJoined(sep string) string { return e.pathsJoined(e.ExplicitOuts, sep) }

// IsPhony reports whether this edge uses the built-in no-op rule.
func (e *Edge) IsPhony() bool { return e.Rule == phonyRule }

// Command materializes the rule's command Expression against this edge,
// per the three-level lookup edge_env -> rule bindings -> file env.
func (e *Edge) Command() string { return e.GetBinding("command") }

// Description is the human-readable progress line for this edge, or ""
// if the rule didn't set one.
func (e *Edge) Description() string { return e.GetBinding("description") }

// State is the Representation builder: it interns path strings into
// PathKeys, detects duplicate outputs, records per-edge commands, and
// ultimately produces an immutable BuildDescription.
type State struct {
	Interner *pathInterner
	Root     *BindingEnv
	Pools    map[string]*Pool

	edges      []*Edge
	outputEdge map[PathKey]*Edge
	defaults   []PathKey
}

// NewState creates an empty representation builder with just the
// implicit "phony" rule and the "console" pool registered.
func NewState() *State {
	s := &State{
		Interner:   newPathInterner(),
		Pools:      map[string]*Pool{},
		outputEdge: map[PathKey]*Edge{},
	}
	s.Root = NewBindingEnv(nil)
	s.Pools["console"] = &Pool{Name: "console", Depth: 1}
	return s
}

// AddPool registers a declared pool. Returns false if name is already
// taken (a duplicate "pool" statement).
func (s *State) AddPool(name string, depth int) bool {
	if _, ok := s.Pools[name]; ok {
		return false
	}
	s.Pools[name] = &Pool{Name: name, Depth: depth}
	return true
}

// AddEdge starts a new build edge invoking rule, scoped to env (the file
// environment active where the "build" block appears).
func (s *State) AddEdge(rule *Rule, env *BindingEnv) *Edge {
	e := &Edge{
		id:            len(s.edges),
		Rule:          rule,
		Env:           env,
		LocalBindings: map[string]string{},
		interner:      s.Interner,
	}
	s.edges = append(s.edges, e)
	return e
}

// AddOutput interns path and attaches it to e as an output (explicit or
// implicit, per the "| implicit-outs" build-line syntax). It reports a
// SemanticError if another edge already claims the same canonical path:
// the set of outputs across all edges must be a strict partition.
func (s *State) AddOutput(e *Edge, path string, implicit bool, pos Position) (PathKey, error) {
	k := s.Interner.Intern(path)
	if other, dup := s.outputEdge[k]; dup && other != e {
		return 0, &SemanticError{Pos: pos, Message: "multiple rules generate " + s.Interner.Path(k)}
	}
	if implicit {
		e.ImplicitOuts = append(e.ImplicitOuts, k)
	} else {
		e.ExplicitOuts = append(e.ExplicitOuts, k)
	}
	s.outputEdge[k] = e
	return k, nil
}

// AddExplicitInput interns path and attaches it to e as an explicit
// input (contributes to $in and to dirtiness).
func (s *State) AddExplicitInput(e *Edge, path string) PathKey {
	k := s.Interner.Intern(path)
	e.ExplicitIns = append(e.ExplicitIns, k)
	return k
}

// AddImplicitInput interns path and attaches it to e as an implicit
// input (contributes to dirtiness but not to $in).
func (s *State) AddImplicitInput(e *Edge, path string) PathKey {
	k := s.Interner.Intern(path)
	e.ImplicitIns = append(e.ImplicitIns, k)
	return k
}

// AddOrderOnlyInput interns path and attaches it to e as an order-only
// input: must exist before the edge runs, never triggers a rebuild.
func (s *State) AddOrderOnlyInput(e *Edge, path string) PathKey {
	k := s.Interner.Intern(path)
	e.OrderOnlyIns = append(e.OrderOnlyIns, k)
	return k
}

// AddDefault records path as one of the description's default targets.
// The path must already name a known node (an output of some edge, or an
// input referenced by one); referencing a target nobody ever declared is
// a SemanticError.
func (s *State) AddDefault(path string, pos Position) error {
	k, ok := s.Interner.Lookup(path)
	if !ok {
		msg := "unknown target '" + CanonicalizePath(path) + "'"
		if suggestion := spellcheck(CanonicalizePath(path), s.Interner.Paths()); suggestion != "" {
			msg += ", did you mean '" + suggestion + "'?"
		}
		return &SemanticError{Pos: pos, Message: msg}
	}
	s.defaults = append(s.defaults, k)
	return nil
}

// Freeze produces the immutable BuildDescription: from this point on the
// State is shared read-only, safe for concurrent graph traversal.
func (s *State) Freeze() *BuildDescription {
	return &BuildDescription{
		Interner:   s.Interner,
		Edges:      s.edges,
		OutputEdge: s.outputEdge,
		Defaults:   s.defaults,
	}
}
