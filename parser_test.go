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
	"fmt"
	"testing"
)

// fakeFileReader serves a fixed in-memory set of files, keyed by path, for
// include/subninja tests that never touch disk.
type fakeFileReader map[string]string

func (f fakeFileReader) ReadFile(path string) ([]byte, error) {
	content, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return []byte(content), nil
}

func edgeFor(t *testing.T, state *State, output string) *Edge {
	t.Helper()
	k, ok := state.Interner.Lookup(output)
	if !ok {
		t.Fatalf("no such output interned: %s", output)
	}
	e, ok := state.outputEdge[k]
	if !ok {
		t.Fatalf("no edge produces %s", output)
	}
	return e
}

// TestImmediateExpansionAcrossInclude mirrors spec section 8 scenario 1.
func TestImmediateExpansionAcrossInclude(t *testing.T) {
	top := "rule echo\n  command = echo $buildvar\na = 2\ninclude t2.ninja\na = 3\nbuild bar: echo\n  buildvar = $a\n"
	included := "b = $a\nbuild foo: echo\n  buildvar = $b\n"

	state := NewState()
	p := NewManifestParser(state, fakeFileReader{"t2.ninja": included})
	if err := p.ParseFile("trial.ninja", []byte(top)); err != nil {
		t.Fatal(err)
	}

	foo := edgeFor(t, state, "foo")
	if got := foo.LocalBindings["buildvar"]; got != "2" {
		t.Errorf("foo buildvar = %q, want %q", got, "2")
	}
	bar := edgeFor(t, state, "bar")
	if got := bar.LocalBindings["buildvar"]; got != "3" {
		t.Errorf("bar buildvar = %q, want %q", got, "3")
	}
}

// TestSubninjaScoping mirrors spec section 8 scenario 6: a rule redefined
// inside a subninja doesn't conflict with the parent's rule of the same
// name, and each scope's edges bind to their own rule.
func TestSubninjaScoping(t *testing.T) {
	top := "rule r\n  command = parent-command\nsubninja child.ninja\nbuild parent.out: r\n"
	child := "rule r\n  command = child-command\nbuild child.out: r\n"

	state := NewState()
	p := NewManifestParser(state, fakeFileReader{"child.ninja": child})
	if err := p.ParseFile("top.ninja", []byte(top)); err != nil {
		t.Fatal(err)
	}

	parentEdge := edgeFor(t, state, "parent.out")
	if got := parentEdge.Command(); got != "parent-command" {
		t.Errorf("parent.out command = %q, want %q", got, "parent-command")
	}
	childEdge := edgeFor(t, state, "child.out")
	if got := childEdge.Command(); got != "child-command" {
		t.Errorf("child.out command = %q, want %q", got, "child-command")
	}
}

// TestDuplicateOutputRejection mirrors spec section 8 scenario 4.
func TestDuplicateOutputRejection(t *testing.T) {
	input := "rule cc\n  command = cc\nbuild a.o: cc x.c\nbuild a.o: cc y.c\n"
	state := NewState()
	p := NewManifestParser(state, fakeFileReader{})
	err := p.ParseFile("build.ninja", []byte(input))
	if err == nil {
		t.Fatal("expected a duplicate-output error, got nil")
	}
	if _, ok := err.(*SemanticError); !ok {
		t.Errorf("error = %T, want *SemanticError", err)
	}
}

func TestUnknownRuleSuggestsClosest(t *testing.T) {
	input := "rule compile\n  command = cc\nbuild a.o: compil a.c\n"
	state := NewState()
	p := NewManifestParser(state, fakeFileReader{})
	err := p.ParseFile("build.ninja", []byte(input))
	if err == nil {
		t.Fatal("expected an unknown-rule error")
	}
	want := "unknown build rule 'compil', did you mean 'compile'?"
	if got := err.(*SemanticError).Message; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestValidationsFoldIntoOrderOnly(t *testing.T) {
	input := "rule cc\n  command = cc\nbuild a.o: cc a.c || gen.h |@ check.py\n"
	state := NewState()
	p := NewManifestParser(state, fakeFileReader{})
	if err := p.ParseFile("build.ninja", []byte(input)); err != nil {
		t.Fatal(err)
	}
	edge := edgeFor(t, state, "a.o")
	if len(edge.OrderOnlyIns) != 2 {
		t.Fatalf("OrderOnlyIns = %d entries, want 2 (gen.h + check.py)", len(edge.OrderOnlyIns))
	}
}

func TestImplicitOutputsDoNotAppearInDollarOut(t *testing.T) {
	input := "rule cc\n  command = cc -o $out\nbuild a.o | a.o.extra: cc a.c\n"
	state := NewState()
	p := NewManifestParser(state, fakeFileReader{})
	if err := p.ParseFile("build.ninja", []byte(input)); err != nil {
		t.Fatal(err)
	}
	edge := edgeFor(t, state, "a.o")
	if got := edge.Command(); got != "cc -o a.o" {
		t.Errorf("Command() = %q, want %q (implicit output must not appear)", got, "cc -o a.o")
	}
	if len(edge.AllOutputs()) != 2 {
		t.Errorf("AllOutputs() has %d entries, want 2", len(edge.AllOutputs()))
	}
}
