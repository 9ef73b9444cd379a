// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/nikhilm/nin"
)

// fatalf logs an unrecoverable error and exits, mirroring the diagnostics
// of the teacher's cmd/nin front end.
func fatalf(msg string, args ...interface{}) {
	fmt.Fprint(os.Stderr, "nin: fatal: ")
	fmt.Fprintf(os.Stderr, msg, args...)
	fmt.Fprint(os.Stderr, "\n")
	os.Exit(1)
}

func errorf(msg string, args ...interface{}) {
	fmt.Fprint(os.Stderr, "nin: error: ")
	fmt.Fprintf(os.Stderr, msg, args...)
	fmt.Fprint(os.Stderr, "\n")
}

func infof(msg string, args ...interface{}) {
	fmt.Fprint(os.Stdout, "nin: ")
	fmt.Fprintf(os.Stdout, msg, args...)
	fmt.Fprint(os.Stdout, "\n")
}

func main() {
	os.Exit(run())
}

func run() int {
	glog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	var (
		workingDir = pflag.StringP("directory", "C", "", "change to this directory before doing anything else")
		inputFile  = pflag.StringP("file", "f", "build.ninja", "specify input build file")
		jobs       = pflag.IntP("jobs", "j", runtime.NumCPU(), "run N jobs in parallel")
		verbose    = pflag.BoolP("verbose", "v", false, "show all command lines while building")
	)
	pflag.Parse()
	defer glog.Flush()

	if *workingDir != "" {
		infof("entering directory '%s'", *workingDir)
		if err := os.Chdir(*workingDir); err != nil {
			fatalf("chdir to '%s': %s", *workingDir, err)
		}
	}

	input, err := os.ReadFile(*inputFile)
	if err != nil {
		fatalf("%s", err)
	}

	state := nin.NewState()
	parser := nin.NewManifestParser(state, nin.RealFileReader{})
	if err := parser.ParseFile(*inputFile, input); err != nil {
		fatalf("%s", err)
	}

	desc := state.Freeze()
	graph := nin.NewGraph(desc)
	store := nin.NewStore(nin.RealFileSystem{}, desc.Interner)
	rebuilder := nin.NewRebuilder(graph, store)
	scheduler := nin.NewScheduler(graph, rebuilder, nin.RealExecutor{}, *jobs)

	targets := pflag.Args()
	var requested []nin.PathKey
	if len(targets) == 0 {
		requested = desc.DefaultTargets()
	} else {
		for _, t := range targets {
			k, ok := desc.Interner.Lookup(t)
			if !ok {
				if suggestion := desc.SpellcheckTarget(t); suggestion != "" {
					fatalf("unknown target '%s', did you mean '%s'?", t, suggestion)
				}
				fatalf("unknown target '%s'", t)
			}
			requested = append(requested, k)
		}
	}

	scheduler.OnProgress = func(built, n int, e *nin.Edge) {
		if *verbose {
			infof("[%d/%d] %s", built, n, e.Command())
			return
		}
		desc := e.Description()
		if desc == "" {
			desc = e.Command()
		}
		infof("[%d/%d] %s", built, n, desc)
	}

	if err := scheduler.Build(context.Background(), requested); err != nil {
		errorf("%s", err)
		return 1
	}
	return 0
}
