/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"fmt"
	"strings"
)

// Direction of a firewall drop rule relative to the node it is installed on.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Sentinels echoed by the probe commands. Matching on them happens
// exclusively in this file.
const (
	markOK      = "OK"
	markBlocked = "BLOCKED"
	markReady   = "ready"
)

// Ping reports whether target is reachable from node. Probes send two
// packets with a two second wait, matching the connectivity contract of
// the cluster's health checks.
func (c *Controller) Ping(node string, target string) bool {
	addr, ok := c.topology.Address(target)
	if !ok {
		return false
	}
	cmd := fmt.Sprintf("ping -c 2 -W 2 %s > /dev/null 2>&1 && echo OK || echo FAIL", addr)
	result := c.Execute(node, cmd)
	return result.Success && result.Stdout == markOK
}

// ProbeBlocked reports whether traffic from node to target is cut off.
// It uses a single short-wait packet so that partition verification stays
// fast; any outcome other than a clean OK counts as blocked.
func (c *Controller) ProbeBlocked(node string, target string) bool {
	addr, ok := c.topology.Address(target)
	if !ok {
		return true
	}
	cmd := fmt.Sprintf("ping -c 1 -W 1 %s > /dev/null 2>&1 && echo OK || echo BLOCKED", addr)
	result := c.Execute(node, cmd)
	return result.Stdout != markOK
}

// Echo verifies that the transport can reach the node at all.
func (c *Controller) Echo(node string) bool {
	result := c.Execute(node, "echo ready")
	return result.Success && result.Stdout == markReady
}

// PutKV appends a key=value record to the node's data log. The returned
// result's Success field already reflects the write acknowledgement.
func (c *Controller) PutKV(node string, key string, value string, dataLog string) Result {
	cmd := fmt.Sprintf("echo \"%s=%s\" >> %s && echo OK", key, value, dataLog)
	result := c.Execute(node, cmd)
	result.Success = result.Success && result.Stdout == markOK
	return result
}

// GetKV reads the latest value recorded for key in the node's data log.
// A key that was never written yields an empty value with Success true.
func (c *Controller) GetKV(node string, key string, dataLog string) (string, Result) {
	cmd := fmt.Sprintf("grep \"^%s=\" %s 2>/dev/null | tail -1 || echo \"\"", key, dataLog)
	result := c.Execute(node, cmd)
	if !result.Success {
		return "", result
	}

	value := ""
	if strings.HasPrefix(result.Stdout, key+"=") {
		value = strings.TrimPrefix(result.Stdout, key+"=")
	}
	return value, result
}

// DropRule installs a firewall rule on node dropping traffic to or from
// target, depending on direction. Re-adding an existing rule is harmless;
// iptables keeps appending, and rules are only ever removed via FlushRules.
func (c *Controller) DropRule(node string, direction Direction, target string) Result {
	addr, ok := c.topology.Address(target)
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown node %q", target)}
	}

	var cmd string
	switch direction {
	case Outbound:
		cmd = fmt.Sprintf("iptables -A OUTPUT -d %s -j DROP 2>/dev/null || true", addr)
	case Inbound:
		cmd = fmt.Sprintf("iptables -A INPUT -s %s -j DROP 2>/dev/null || true", addr)
	default:
		return Result{Success: false, Error: fmt.Sprintf("unknown direction %q", direction)}
	}

	return c.Execute(node, cmd)
}

// FlushRules removes every firewall rule from the node.
func (c *Controller) FlushRules(node string) Result {
	return c.Execute(node, "iptables -F")
}
