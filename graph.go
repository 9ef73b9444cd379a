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

// BuildDescription is the immutable result of parsing: every edge, the
// output-to-edge index used to detect duplicates and drive the Graph, and
// the declared default targets.
type BuildDescription struct {
	Interner   *pathInterner
	Edges      []*Edge
	OutputEdge map[PathKey]*Edge
	Defaults   []PathKey
}

// DefaultTargets returns the build's default target keys, falling back to
// every root node (a node with no incoming arcs, i.e. nothing depends on it)
// when no "default" statement was ever parsed.
func (b *BuildDescription) DefaultTargets() []PathKey {
	if len(b.Defaults) > 0 {
		return b.Defaults
	}
	return b.RootNodes()
}

// SpellcheckTarget suggests the closest known path to an unrecognized
// target name, for a friendlier "unknown target" diagnostic.
func (b *BuildDescription) SpellcheckTarget(path string) string {
	return spellcheck(CanonicalizePath(path), b.Interner.Paths())
}

// RootNodes returns every output key that is not, itself, an input of any
// edge: the natural "build everything" target set.
func (b *BuildDescription) RootNodes() []PathKey {
	hasDependent := map[PathKey]bool{}
	for _, e := range b.Edges {
		for _, ins := range [][]PathKey{e.ExplicitIns, e.ImplicitIns, e.OrderOnlyIns} {
			for _, k := range ins {
				hasDependent[k] = true
			}
		}
	}
	var roots []PathKey
	for _, e := range b.Edges {
		for _, out := range e.AllOutputs() {
			if !hasDependent[out] {
				roots = append(roots, out)
			}
		}
	}
	return roots
}

// Graph is the directed graph of PathKeys described by spec.md section
// 4.4: one arc per (output, input) pair, chosen output -> input so that a
// single post-order DFS both determines build order and restricts to the
// reachable subgraph without ever needing to reverse anything.
type Graph struct {
	desc *BuildDescription
}

// NewGraph builds the dependency graph view over an already-frozen
// BuildDescription. Construction is O(1): the arcs are read directly off
// each edge's input lists on demand rather than materialized into a
// separate adjacency structure.
func NewGraph(desc *BuildDescription) *Graph { return &Graph{desc: desc} }

// EdgeFor returns the edge that produces k, or nil if k is a source node
// (a leaf with no defining edge).
func (g *Graph) EdgeFor(k PathKey) *Edge { return g.desc.OutputEdge[k] }

// Inputs returns every key the edge producing k depends on (explicit,
// implicit, and order-only, in that order), or nil if k is a source.
func (g *Graph) Inputs(k PathKey) []PathKey {
	e := g.EdgeFor(k)
	if e == nil {
		return nil
	}
	all := make([]PathKey, 0, len(e.ExplicitIns)+len(e.ImplicitIns)+len(e.OrderOnlyIns))
	all = append(all, e.ExplicitIns...)
	all = append(all, e.ImplicitIns...)
	all = append(all, e.OrderOnlyIns...)
	return all
}

// dfsColor marks iterative-DFS node state for cycle detection: white
// (unvisited), grey (on the current path), black (finished).
type dfsColor int

const (
	white dfsColor = iota
	grey
	black
)

type dfsFrame struct {
	key    PathKey
	inputs []PathKey
	idx    int
}

// ReachableBuildOrder computes the post-order traversal of the subgraph
// reachable from requested: every key's inputs appear before the key
// itself, which is exactly the order in which the Scheduler can consider
// edges for execution. The DFS is iterative (the graph may be deeper than
// the process stack allows) and detects cycles via grey/black coloring,
// reporting one as a SemanticError naming the cycle.
func (g *Graph) ReachableBuildOrder(requested []PathKey) ([]PathKey, error) {
	color := make(map[PathKey]dfsColor, len(requested)*4)
	order := make([]PathKey, 0, len(requested)*4)

	for _, root := range requested {
		if color[root] == black {
			continue
		}
		if err := g.dfsFrom(root, color, &order); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (g *Graph) dfsFrom(root PathKey, color map[PathKey]dfsColor, order *[]PathKey) error {
	stack := []dfsFrame{{key: root, inputs: g.Inputs(root)}}
	color[root] = grey
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.idx < len(top.inputs) {
			next := top.inputs[top.idx]
			top.idx++
			switch color[next] {
			case black:
				continue
			case grey:
				return g.cycleError(stack, next)
			default:
				color[next] = grey
				stack = append(stack, dfsFrame{key: next, inputs: g.Inputs(next)})
			}
		} else {
			color[top.key] = black
			*order = append(*order, top.key)
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

func (g *Graph) cycleError(stack []dfsFrame, repeated PathKey) error {
	start := 0
	for i, f := range stack {
		if f.key == repeated {
			start = i
			break
		}
	}
	names := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		names = append(names, g.desc.Interner.Path(f.key))
	}
	names = append(names, g.desc.Interner.Path(repeated))
	return &SemanticError{Message: "dependency cycle: " + strings.Join(names, " -> ")}
}
