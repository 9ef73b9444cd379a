// Copyright 2012 Google Inc. All Rights Reserved.
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
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
)

// CommandResult is what running an edge's command produced: its combined
// stdout/stderr and exit status, per spec.md section 6's executor
// contract.
type CommandResult struct {
	Output   string
	ExitCode int
}

// Executor runs an edge's command line asynchronously, honoring ctx
// cancellation so the Scheduler can implement drain-on-first-failure
// without killing already-running work it isn't told to kill.
type Executor interface {
	Run(ctx context.Context, command string, useConsole bool) (CommandResult, error)
}

// RealExecutor runs commands through the platform shell, mirroring the
// teacher's SubprocessSetGeneric.Add/createCmd but driven by
// context.Context instead of a hand-rolled running/finished queue, since
// the Scheduler already supplies the concurrency.
type RealExecutor struct{}

func createCmd(ctx context.Context, command string) *exec.Cmd {
	shell, flag := "/bin/sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd.exe", "/c"
	}
	return exec.CommandContext(ctx, shell, flag, command)
}

// Run executes command via the shell, capturing combined output unless
// useConsole requests direct passthrough to the controlling terminal (the
// "console" pool, per spec.md's pool semantics).
func (RealExecutor) Run(ctx context.Context, command string, useConsole bool) (CommandResult, error) {
	cmd := createCmd(ctx, command)
	var buf bytes.Buffer
	if useConsole {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}

	runErr := cmd.Run()
	res := CommandResult{Output: buf.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		// Not a plain non-zero exit: the shell never started, or ctx was
		// cancelled out from under it. Either way the caller should see
		// an error rather than an ExitCode to interpret.
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, runErr
	}
	return res, nil
}
