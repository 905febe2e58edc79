/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package controller executes shell commands on the nodes under test
// through a pluggable transport and turns their output into structured
// results. It is the only package that interprets command output;
// everything above it consumes typed outcomes.
package controller

import (
	"fmt"
	"time"

	logger "github.com/rs/zerolog/log"

	"github.com/zenith-project/nemesis/membership"
)

// Error string reported for commands that did not return within their timeout.
const ErrTimeout = "timeout"

// Result is the structured outcome of a single remote command.
// A failed command never surfaces as a Go error; transport-level
// failures are captured in the Error field instead.
type Result struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TimedOut reports whether the command was abandoned after its timeout.
func (r Result) TimedOut() bool {
	return r.Error == ErrTimeout
}

// Transport dispatches a shell command on a named node. Concrete
// realizations (container exec, SSH, agent RPC) are interchangeable;
// the harness only relies on this contract.
type Transport interface {
	Execute(node string, command string, timeout time.Duration) Result
}

// Controller runs commands on cluster nodes. It holds no mutable state
// besides the transport handle and is safe for concurrent use.
type Controller struct {
	topology    *membership.Topology
	transport   Transport
	execTimeout time.Duration

	// Issue a best-effort kill for commands abandoned after a timeout.
	// Without it an abandoned command may keep running on the node.
	killAbandoned bool
}

func New(topology *membership.Topology, transport Transport, execTimeout time.Duration) *Controller {
	return &Controller{
		topology:    topology,
		transport:   transport,
		execTimeout: execTimeout,
	}
}

// SetKillAbandoned enables killing of remote commands that outlive their timeout.
func (c *Controller) SetKillAbandoned(kill bool) {
	c.killAbandoned = kill
}

// Topology returns the cluster view this controller operates on.
func (c *Controller) Topology() *membership.Topology {
	return c.topology
}

// Execute runs command on node, returning within the controller's
// configured timeout.
func (c *Controller) Execute(node string, command string) Result {
	return c.ExecuteTimeout(node, command, c.execTimeout)
}

// ExecuteTimeout runs command on node with an explicit timeout.
func (c *Controller) ExecuteTimeout(node string, command string, timeout time.Duration) Result {
	result := c.transport.Execute(node, command, timeout)

	if result.TimedOut() {
		logger.Warn().
			Str("node", node).
			Str("command", command).
			Dur("timeout", timeout).
			Msg("Remote command timed out.")
		if c.killAbandoned {
			c.killRemote(node, command)
		}
	} else if !result.Success {
		logger.Debug().
			Str("node", node).
			Str("command", command).
			Str("error", result.Error).
			Str("stderr", result.Stderr).
			Msg("Remote command failed.")
	}

	return result
}

// killRemote makes a best-effort attempt to terminate an abandoned command.
// The outcome is only logged; the original command already counts as failed.
func (c *Controller) killRemote(node string, command string) {
	kill := fmt.Sprintf("pkill -f %q 2>/dev/null || true", command)
	result := c.transport.Execute(node, kill, c.execTimeout)
	logger.Debug().
		Str("node", node).
		Bool("delivered", result.Success).
		Msg("Issued kill for abandoned command.")
}
