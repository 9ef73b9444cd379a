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
	"fmt"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

func errExitStatus(code int, output string) error {
	if output != "" {
		return fmt.Errorf("exit status %d\n%s", code, output)
	}
	return fmt.Errorf("exit status %d", code)
}

// Progress is notified as each command-bearing edge finishes, for a
// front end to print "[n/total] description" lines.
type Progress func(built, total int, e *Edge)

// Scheduler drives the edges reachable from a set of requested targets to
// completion, in dependency order, running up to jobs commands
// concurrently. It implements the Pending -> Ready -> Running ->
// {Done, Failed} state machine of spec.md section 4.7 on top of
// errgroup/semaphore rather than the teacher's hand-rolled Plan/want_
// bookkeeping (build.go), since Go's standard concurrency primitives
// already give us cancellation-on-first-error and bounded parallelism
// for free.
// Every call into rebuilder and its Store happens under a single mutex
// shared by all worker goroutines (see runOne); only the command exec
// itself runs with that lock released.
type Scheduler struct {
	graph      *Graph
	rebuilder  *Rebuilder
	exec       Executor
	jobs       int
	OnProgress Progress
}

// NewScheduler creates a Scheduler that runs up to jobs commands at once
// (at least 1).
func NewScheduler(graph *Graph, rebuilder *Rebuilder, exec Executor, jobs int) *Scheduler {
	if jobs <= 0 {
		jobs = 1
	}
	return &Scheduler{graph: graph, rebuilder: rebuilder, exec: exec, jobs: jobs}
}

// Build brings every edge reachable from targets up to date. It returns
// the first command failure encountered; edges already running when that
// happens are allowed to finish (drain), but no edge not yet started is
// dispatched afterwards.
func (s *Scheduler) Build(ctx context.Context, targets []PathKey) error {
	order, err := s.graph.ReachableBuildOrder(targets)
	if err != nil {
		return err
	}

	edges, indegree, dependents := s.plan(order)
	total := 0
	for _, e := range edges {
		if !e.IsPhony() {
			total++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(s.jobs))

	var (
		mu      sync.Mutex
		built   int
		aborted bool
	)

	var dispatch func(e *Edge)
	dispatch = func(e *Edge) {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			mu.Lock()
			skip := aborted
			mu.Unlock()
			if skip {
				return nil
			}

			runErr := s.runOne(ctx, e, &mu, &built, total)
			if runErr != nil {
				mu.Lock()
				aborted = true
				mu.Unlock()
				return runErr
			}

			for _, dep := range s.finish(e, indegree, dependents, &mu) {
				dispatch(dep)
			}
			return nil
		})
	}

	var ready []*Edge
	for _, e := range edges {
		if indegree[e.ID()] == 0 {
			ready = append(ready, e)
		}
	}
	for _, e := range ready {
		dispatch(e)
	}

	return g.Wait()
}

// runOne classifies e and, if dirty, runs its command. It is called once
// per edge, with every one of e's dependency edges already classified
// (and, if dirty, completed), which the edge's zero indegree guarantees.
//
// Classify and Complete mutate the Rebuilder's verdict cache and the
// Store's entries map, both of which spec.md section 5 reserves for
// single-threaded access from the scheduler loop; since runOne itself
// executes concurrently across worker goroutines, every call into the
// rebuilder is serialized through mu so those maps only ever see one
// writer at a time. Only the command execution below runs unlocked.
func (s *Scheduler) runOne(ctx context.Context, e *Edge, mu *sync.Mutex, built *int, total int) error {
	if len(e.AllOutputs()) == 0 {
		return nil
	}
	mu.Lock()
	dirty, err := s.rebuilder.Classify(e.AllOutputs()[0])
	mu.Unlock()
	if err != nil {
		return err
	}
	if !dirty || e.IsPhony() {
		glog.V(1).Infof("clean: %s", e.outputsJoined(" "))
		return nil
	}

	useConsole := e.Pool != nil && e.Pool.Name == "console"
	command := e.Command()
	glog.V(1).Infof("running: %s", command)
	res, err := s.exec.Run(ctx, command, useConsole)
	if err != nil {
		return &ExecError{Edge: e.outputsJoined(" "), Command: command, Err: err}
	}
	if res.ExitCode != 0 {
		return &ExecError{Edge: e.outputsJoined(" "), Command: command, Err: errExitStatus(res.ExitCode, res.Output)}
	}

	mu.Lock()
	s.rebuilder.Complete(e)
	*built++
	n := *built
	mu.Unlock()
	if s.OnProgress != nil {
		s.OnProgress(n, total, e)
	}
	return nil
}

// plan dedupes order (one entry per distinct PathKey) down into its
// edges, deduplicated by edge ID since a multi-output edge appears once
// per output, and computes each edge's indegree (count of distinct
// reachable dependency edges) plus its dependents, for Kahn-style
// dispatch.
func (s *Scheduler) plan(order []PathKey) (edges []*Edge, indegree map[int]int, dependents map[int][]*Edge) {
	seen := map[int]bool{}
	for _, k := range order {
		e := s.graph.EdgeFor(k)
		if e == nil || seen[e.ID()] {
			continue
		}
		seen[e.ID()] = true
		edges = append(edges, e)
	}

	indegree = make(map[int]int, len(edges))
	dependents = make(map[int][]*Edge, len(edges))
	for _, e := range edges {
		deps := map[int]*Edge{}
		for _, in := range s.graph.Inputs(e.AllOutputs()[0]) {
			if d := s.graph.EdgeFor(in); d != nil {
				deps[d.ID()] = d
			}
		}
		indegree[e.ID()] = len(deps)
		for _, d := range deps {
			dependents[d.ID()] = append(dependents[d.ID()], e)
		}
	}
	return edges, indegree, dependents
}

// finish decrements the indegree of every dependent of e, returning those
// that just became ready (indegree reached zero).
func (s *Scheduler) finish(e *Edge, indegree map[int]int, dependents map[int][]*Edge, mu *sync.Mutex) []*Edge {
	mu.Lock()
	defer mu.Unlock()
	var ready []*Edge
	for _, dep := range dependents[e.ID()] {
		indegree[dep.ID()]--
		if indegree[dep.ID()] == 0 {
			ready = append(ready, dep)
		}
	}
	return ready
}
