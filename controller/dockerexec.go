/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DockerExec runs commands inside the node's container via `docker exec`.
// This is the transport used against the standard compose-based cluster,
// where node names are container names.
type DockerExec struct{}

func (DockerExec) Execute(node string, command string, timeout time.Duration) Result {
	cmd := exec.Command("docker", "exec", node, "bash", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		// docker missing or not runnable counts as a connection-level failure.
		return Result{Success: false, Error: err.Error()}
	}

	// Send an INT signal to the process after the timeout.
	// If that does not stop the process, send KILL after another timeout.
	timerInt := time.AfterFunc(timeout, func() {
		_ = cmd.Process.Signal(os.Interrupt)
	})
	timerKill := time.AfterFunc(2*timeout, func() {
		_ = cmd.Process.Kill()
	})

	err := cmd.Wait()
	interrupted := !timerInt.Stop()
	timerKill.Stop()

	if interrupted {
		return Result{Success: false, Error: ErrTimeout}
	}

	result := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if err == nil {
		result.Success = true
	} else if _, exited := err.(*exec.ExitError); exited {
		// Non-zero remote exit. Distinct from a timeout by contract.
		result.Error = err.Error()
	} else {
		// Transport failure (unknown node, daemon unreachable, ...).
		result.Error = err.Error()
	}

	return result
}
