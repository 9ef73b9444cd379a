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
	"context"
	"sync"
	"testing"
	"time"
)

// recordingExecutor runs no real process: it records every command it was
// asked to run and always reports success, unless failOn names a command
// that should fail instead.
type recordingExecutor struct {
	mu     sync.Mutex
	ran    []string
	failOn string
}

func (r *recordingExecutor) Run(ctx context.Context, command string, useConsole bool) (CommandResult, error) {
	r.mu.Lock()
	r.ran = append(r.ran, command)
	r.mu.Unlock()
	if command == r.failOn {
		return CommandResult{ExitCode: 1}, nil
	}
	return CommandResult{ExitCode: 0}, nil
}

func (r *recordingExecutor) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

// TestSchedulerRunsOnlyDirtyEdge mirrors spec section 8 scenario 3: the
// phony alias "all" runs no command of its own; the single dirty "cc"
// edge producing out.o runs exactly once.
func TestSchedulerRunsOnlyDirtyEdge(t *testing.T) {
	input := "rule cc\n  command = cc -c in.c -o out.o\n" +
		"build all: phony out.o\n" +
		"build out.o: cc in.c\n"
	now := time.Unix(1000, 0)
	fs := fakeFileSystem{
		"in.c":  now.Add(time.Hour),
		"out.o": now,
	}
	desc := mustParse(t, input)
	graph := NewGraph(desc)
	store := NewStore(fs, desc.Interner)
	rebuilder := NewRebuilder(graph, store)
	exec := &recordingExecutor{}
	sched := NewScheduler(graph, rebuilder, exec, 2)

	target, _ := desc.Interner.Lookup("all")
	if err := sched.Build(context.Background(), []PathKey{target}); err != nil {
		t.Fatal(err)
	}

	ran := exec.commands()
	if len(ran) != 1 {
		t.Fatalf("ran %d commands, want 1: %v", len(ran), ran)
	}
	if ran[0] != "cc -c in.c -o out.o" {
		t.Errorf("ran %q, want the cc command", ran[0])
	}
}

// TestSchedulerSkipsCleanEdge builds the same graph with out.o already
// newer than in.c: no command should run at all.
func TestSchedulerSkipsCleanEdge(t *testing.T) {
	input := "rule cc\n  command = cc -c in.c -o out.o\n" + "build out.o: cc in.c\n"
	now := time.Unix(1000, 0)
	fs := fakeFileSystem{
		"in.c":  now.Add(-time.Hour),
		"out.o": now,
	}
	desc := mustParse(t, input)
	graph := NewGraph(desc)
	store := NewStore(fs, desc.Interner)
	rebuilder := NewRebuilder(graph, store)
	exec := &recordingExecutor{}
	sched := NewScheduler(graph, rebuilder, exec, 1)

	target, _ := desc.Interner.Lookup("out.o")
	if err := sched.Build(context.Background(), []PathKey{target}); err != nil {
		t.Fatal(err)
	}
	if ran := exec.commands(); len(ran) != 0 {
		t.Errorf("ran %v, want no commands", ran)
	}
}

// TestSchedulerRunsDependenciesBeforeDependent builds a diamond graph and
// checks that all three edges ran and that the dependent edge ran last.
func TestSchedulerRunsDependenciesBeforeDependent(t *testing.T) {
	input := "rule cc\n  command = cc ${in} -o ${out}\n" +
		"build a.o: cc a.c\n" +
		"build b.o: cc b.c\n" +
		"build out: cc a.o b.o\n"
	now := time.Unix(1000, 0)
	fs := fakeFileSystem{
		"a.c": now.Add(time.Hour),
		"b.c": now.Add(time.Hour),
	}
	desc := mustParse(t, input)
	graph := NewGraph(desc)
	store := NewStore(fs, desc.Interner)
	rebuilder := NewRebuilder(graph, store)
	exec := &recordingExecutor{}
	sched := NewScheduler(graph, rebuilder, exec, 4)

	target, _ := desc.Interner.Lookup("out")
	if err := sched.Build(context.Background(), []PathKey{target}); err != nil {
		t.Fatal(err)
	}
	ran := exec.commands()
	if len(ran) != 3 {
		t.Fatalf("ran %d commands, want 3: %v", len(ran), ran)
	}
	if ran[2] != "cc a.o b.o -o out" {
		t.Errorf("last command = %q, want the dependent edge %q: %v", ran[2], "cc a.o b.o -o out", ran)
	}
}

// TestSchedulerFailurePropagates confirms a failing command surfaces as
// the Build error and no further-downstream edge is allowed to start.
func TestSchedulerFailurePropagates(t *testing.T) {
	input := "rule cc\n  command = cc ${in} -o ${out}\n" +
		"build a.o: cc a.c\n" +
		"build out: cc a.o\n"
	now := time.Unix(1000, 0)
	fs := fakeFileSystem{"a.c": now.Add(time.Hour)}
	desc := mustParse(t, input)
	graph := NewGraph(desc)
	store := NewStore(fs, desc.Interner)
	rebuilder := NewRebuilder(graph, store)
	exec := &recordingExecutor{failOn: "cc a.c -o a.o"}
	sched := NewScheduler(graph, rebuilder, exec, 2)

	target, _ := desc.Interner.Lookup("out")
	err := sched.Build(context.Background(), []PathKey{target})
	if err == nil {
		t.Fatal("expected the failing edge's error to propagate")
	}
	ran := exec.commands()
	for _, c := range ran {
		if c == "cc a.o -o out" {
			t.Error("downstream edge must not run after its dependency failed")
		}
	}
}
