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

// Env is anything an EvalString can look a variable up against.
type Env interface {
	LookupVariable(name string) string
}

// Evaluate expands e against env, substituting every VarRef segment with
// env.LookupVariable. Evaluating an already-expanded EvalString (one with
// no Special segments) is the identity, since there's nothing left to
// substitute.
func (e EvalString) Evaluate(env Env) string {
	if len(e.Parsed) == 1 && !e.Parsed[0].Special {
		return e.Parsed[0].Text
	}
	var b strings.Builder
	for _, t := range e.Parsed {
		if t.Special {
			b.WriteString(env.LookupVariable(t.Text))
		} else {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// reservedBindings are the rule-level bindings the parser recognizes by
// name; anything else in a rule block is rejected with a ParseError.
var reservedBindings = map[string]bool{
	"command":         true,
	"description":     true,
	"depfile":         true,
	"deps":            true,
	"generator":       true,
	"pool":            true,
	"restat":          true,
	"rspfile":         true,
	"rspfile_content": true,
}

// IsReservedBinding reports whether name is a rule binding the core
// understands, rather than an arbitrary user variable.
func IsReservedBinding(name string) bool { return reservedBindings[name] }

// Rule is a named template of bindings, re-used by edges. Bindings are
// always stored as unevaluated Expressions and are only expanded when a
// referencing edge's command is materialized, against an environment
// rooted at that edge.
type Rule struct {
	Name     string
	Bindings map[string]*EvalString
}

// NewRule creates an empty rule template.
func NewRule(name string) *Rule {
	return &Rule{Name: name, Bindings: map[string]*EvalString{}}
}

// Binding looks up a rule-level binding by name, or nil if unset.
func (r *Rule) Binding(name string) *EvalString { return r.Bindings[name] }

// phonyRule is the built-in rule with no command, used to group
// dependencies under an alias without running anything.
var phonyRule = &Rule{Name: "phony", Bindings: map[string]*EvalString{}}

// BindingEnv is one frame of the environment chain: a name to
// already-expanded value mapping, the rules defined in this scope, and a
// link to the enclosing scope. Only rule bindings stay deferred, and
// those live on Rule, not here.
//
// Distinct instances exist for the top-level file, for each subninja'd
// file (forked as a child that cannot write back to its parent), and for
// each build edge that has its own indented bindings (a shallow, eager
// frame captured at parse time).
type BindingEnv struct {
	Bindings map[string]string
	Rules    map[string]*Rule
	Parent   *BindingEnv
}

// NewBindingEnv creates a fresh frame, optionally chained to parent. A
// nil parent is valid only for the top-level file scope.
func NewBindingEnv(parent *BindingEnv) *BindingEnv {
	env := &BindingEnv{
		Bindings: map[string]string{},
		Rules:    map[string]*Rule{},
		Parent:   parent,
	}
	if parent == nil {
		env.Rules["phony"] = phonyRule
	}
	return env
}

// LookupVariable walks the chain from innermost to outermost, returning
// "" if name is bound nowhere: an unknown variable is not an error and
// expands to empty. No warning is emitted for it.
func (b *BindingEnv) LookupVariable(name string) string {
	for e := b; e != nil; e = e.Parent {
		if v, ok := e.Bindings[name]; ok {
			return v
		}
	}
	return ""
}

// AddBinding records an already-expanded top-level or edge-level value.
func (b *BindingEnv) AddBinding(name, value string) { b.Bindings[name] = value }

// LookupRuleCurrentScope looks up name only in this frame, not its
// ancestors: used to detect same-file rule redefinition.
func (b *BindingEnv) LookupRuleCurrentScope(name string) *Rule { return b.Rules[name] }

// LookupRule walks the chain looking for a rule by name.
func (b *BindingEnv) LookupRule(name string) *Rule {
	for e := b; e != nil; e = e.Parent {
		if r, ok := e.Rules[name]; ok {
			return r
		}
	}
	return nil
}

// AddRule records rule in this frame. Callers must have already checked
// LookupRuleCurrentScope.
func (b *BindingEnv) AddRule(r *Rule) { b.Rules[r.Name] = r }

// RuleNames returns every rule name visible from this scope, innermost
// frame first, for diagnostics such as spelling suggestions.
func (b *BindingEnv) RuleNames() []string {
	var names []string
	for e := b; e != nil; e = e.Parent {
		for name := range e.Rules {
			names = append(names, name)
		}
	}
	return names
}

// edgeEnv implements Env for expanding a rule's deferred bindings
// (command, description, ...) at execution time. Its innermost frame is
// the edge's own eagerly-expanded bindings (edge_env); failing that, it
// falls back to the rule's binding of the same name (evaluated lazily
// against this same edgeEnv, so it can itself reference $in, $out and
// edge-local bindings); failing that, the file
// environment itself. This is the three-level lookup spec.md section 4.2
// describes for command materialization.
type edgeEnv struct {
	edge *Edge
	file Env
}

func newEdgeEnv(e *Edge, file Env) *edgeEnv { return &edgeEnv{edge: e, file: file} }

func (e *edgeEnv) LookupVariable(name string) string {
	switch name {
	case "in":
		return e.edge.explicitInputsJoined(" ")
	case "in_newline":
		return e.edge.explicitInputsJoined("\n")
	case "out":
		return e.edge.outputsJoined(" ")
	}
	if v, ok := e.edge.LocalBindings[name]; ok {
		return v
	}
	if e.edge.Rule != nil {
		if expr := e.edge.Rule.Binding(name); expr != nil {
			return expr.Evaluate(e)
		}
	}
	return e.file.LookupVariable(name)
}

// GetBinding evaluates a named rule/edge binding (command, description,
// depfile, ...) against e's edge, honoring the edge_env -> rule ->
// file-env fallback chain. This is how the scheduler materializes the
// command string and the front end reads the description.
func (e *Edge) GetBinding(name string) string {
	env := newEdgeEnv(e, e.Env)
	if v, ok := e.LocalBindings[name]; ok {
		return v
	}
	if e.Rule != nil {
		if expr := e.Rule.Binding(name); expr != nil {
			return expr.Evaluate(env)
		}
	}
	if e.Env != nil {
		return e.Env.LookupVariable(name)
	}
	return ""
}

// GetBindingBool is a convenience for boolean-flavored rule bindings like
// "generator" and "restat": any non-empty value is true.
func (e *Edge) GetBindingBool(name string) bool { return e.GetBinding(name) != "" }
