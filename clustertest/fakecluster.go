/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package clustertest provides an in-memory stand-in for a real cluster,
// implementing the command-execution transport against a model of node
// reachability, firewall rules and a shared data log. It exists for tests;
// no production code depends on it.
package clustertest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zenith-project/nemesis/controller"
	"github.com/zenith-project/nemesis/membership"
)

// TransportFunc adapts a function to the transport contract.
type TransportFunc func(node string, command string, timeout time.Duration) controller.Result

func (f TransportFunc) Execute(node string, command string, timeout time.Duration) controller.Result {
	return f(node, command, timeout)
}

type fakeRule struct {
	chain string // OUTPUT or INPUT
	addr  string
}

// FakeCluster interprets the harness's shell commands against an
// in-memory cluster whose data log behaves like a single replicated
// store. Safe for concurrent use.
type FakeCluster struct {
	mu         sync.Mutex
	topology   *membership.Topology
	addrToNode map[string]string
	rules      map[string][]fakeRule // per node, in installation order
	dataLog    []string              // shared, append-only k=v lines
	commands   []string              // every executed command, per call order

	// Nodes whose commands fail at the transport level or time out.
	downNodes    map[string]bool
	timeoutNodes map[string]bool

	// failFlush makes rule flushes fail while leaving the rules in place.
	failFlush bool

	// ExecDelay is applied to every command, to widen operation windows.
	ExecDelay time.Duration
}

func NewFakeCluster(topology *membership.Topology) *FakeCluster {
	addrToNode := make(map[string]string)
	for _, name := range topology.NodeNames() {
		addr, _ := topology.Address(name)
		addrToNode[addr] = name
	}

	return &FakeCluster{
		topology:     topology,
		addrToNode:   addrToNode,
		rules:        make(map[string][]fakeRule),
		downNodes:    make(map[string]bool),
		timeoutNodes: make(map[string]bool),
	}
}

// SetDown makes every command on the node fail with a connection error.
func (c *FakeCluster) SetDown(node string, down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downNodes[node] = down
}

// SetTimeout makes every command on the node report a timeout.
func (c *FakeCluster) SetTimeout(node string, timeout bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeoutNodes[node] = timeout
}

// SetFailFlush makes iptables flushes fail without removing any rules,
// simulating a heal that never takes effect.
func (c *FakeCluster) SetFailFlush(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failFlush = fail
}

// Commands returns every command executed so far, in call order.
func (c *FakeCluster) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]string, len(c.commands))
	copy(cp, c.commands)
	return cp
}

// RuleCount returns the number of firewall rules installed on the node.
func (c *FakeCluster) RuleCount(node string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rules[node])
}

// DataLog returns a copy of the shared data log.
func (c *FakeCluster) DataLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]string, len(c.dataLog))
	copy(cp, c.dataLog)
	return cp
}

func (c *FakeCluster) Execute(node string, command string, timeout time.Duration) controller.Result {
	if c.ExecDelay > 0 {
		time.Sleep(c.ExecDelay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands = append(c.commands, node+": "+command)

	if c.downNodes[node] {
		return controller.Result{Success: false, Error: fmt.Sprintf("no such container: %s", node)}
	}
	if c.timeoutNodes[node] {
		return controller.Result{Success: false, Error: controller.ErrTimeout}
	}

	switch {
	case command == "echo ready":
		return ok("ready")

	case strings.HasPrefix(command, "ping "):
		return c.ping(node, command)

	case strings.HasPrefix(command, "iptables -A "):
		return c.addRule(node, command)

	case command == "iptables -F":
		if c.failFlush {
			return controller.Result{Success: false, Stderr: "iptables: permission denied", Error: "exit status 3"}
		}
		c.rules[node] = nil
		return ok("")

	case strings.HasPrefix(command, "echo \""):
		return c.appendKV(command)

	case strings.HasPrefix(command, "grep \"^"):
		return c.lastKV(command)

	case strings.HasPrefix(command, "pkill "):
		return ok("")
	}

	return controller.Result{Success: false, Error: fmt.Sprintf("unhandled command: %s", command)}
}

func ok(stdout string) controller.Result {
	return controller.Result{Success: true, Stdout: stdout}
}

// ping resolves the probed address and answers with the command's own
// success or fallback sentinel, depending on modeled reachability.
func (c *FakeCluster) ping(src string, command string) controller.Result {
	fields := strings.Fields(command)
	// ping -c N -W S <addr> ...
	addr := fields[5]
	fallback := fields[len(fields)-1] // FAIL or BLOCKED

	dst, known := c.addrToNode[addr]
	if known && c.reachable(src, dst) {
		return ok("OK")
	}
	return ok(fallback)
}

// reachable models symmetric ICMP blocking: the request must leave src and
// enter dst, the reply must make it back.
func (c *FakeCluster) reachable(src string, dst string) bool {
	srcAddr, _ := c.topology.Address(src)
	dstAddr, _ := c.topology.Address(dst)

	for _, r := range c.rules[src] {
		if (r.chain == "OUTPUT" && r.addr == dstAddr) || (r.chain == "INPUT" && r.addr == dstAddr) {
			return false
		}
	}
	for _, r := range c.rules[dst] {
		if (r.chain == "INPUT" && r.addr == srcAddr) || (r.chain == "OUTPUT" && r.addr == srcAddr) {
			return false
		}
	}
	return true
}

func (c *FakeCluster) addRule(node string, command string) controller.Result {
	fields := strings.Fields(command)
	// iptables -A <chain> <-d|-s> <addr> -j DROP ...
	c.rules[node] = append(c.rules[node], fakeRule{chain: fields[2], addr: fields[4]})
	return ok("")
}

func (c *FakeCluster) appendKV(command string) controller.Result {
	// echo "k=v" >> <path> && echo OK
	start := strings.Index(command, "\"")
	end := strings.Index(command[start+1:], "\"")
	c.dataLog = append(c.dataLog, command[start+1:start+1+end])
	return ok("OK")
}

func (c *FakeCluster) lastKV(command string) controller.Result {
	// grep "^k=" <path> 2>/dev/null | tail -1 || echo ""
	start := strings.Index(command, "^")
	end := strings.Index(command[start:], "\"")
	prefix := command[start+1 : start+end]

	for i := len(c.dataLog) - 1; i >= 0; i-- {
		if strings.HasPrefix(c.dataLog[i], prefix) {
			return ok(c.dataLog[i])
		}
	}
	return ok("")
}
