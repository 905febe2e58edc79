/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller_test

import (
	"strings"
	"testing"
	"time"

	"github.com/zenith-project/nemesis/clustertest"
	"github.com/zenith-project/nemesis/controller"
	"github.com/zenith-project/nemesis/membership"
)

var testTopology = membership.NewTopology(map[string]string{
	"n1": "10.10.0.1",
	"n2": "10.10.0.2",
})

func scripted(result controller.Result, lastCmd *string) controller.Transport {
	return clustertest.TransportFunc(func(node string, command string, timeout time.Duration) controller.Result {
		if lastCmd != nil {
			*lastCmd = command
		}
		return result
	})
}

func TestTimeoutIsDistinguished(t *testing.T) {
	ctl := controller.New(testTopology, scripted(controller.Result{Success: false, Error: controller.ErrTimeout}, nil), time.Second)

	result := ctl.Execute("n1", "sleep 100")
	if result.Success {
		t.Error("timed-out command reported success")
	}
	if !result.TimedOut() {
		t.Errorf("expected timeout outcome, got error %q", result.Error)
	}
}

func TestTransportFailureNeverPanics(t *testing.T) {
	ctl := controller.New(testTopology, scripted(controller.Result{Success: false, Error: "no such container: n1"}, nil), time.Second)

	result := ctl.Execute("n1", "echo hi")
	if result.Success || result.Error == "" {
		t.Errorf("transport failure not surfaced: %+v", result)
	}
	if result.TimedOut() {
		t.Error("connection error conflated with timeout")
	}
}

func TestPingCommandAndParsing(t *testing.T) {
	var cmd string
	ctl := controller.New(testTopology, scripted(controller.Result{Success: true, Stdout: "OK"}, &cmd), time.Second)

	if !ctl.Ping("n1", "n2") {
		t.Error("OK probe parsed as unreachable")
	}
	if !strings.Contains(cmd, "ping -c 2 -W 2 10.10.0.2") {
		t.Errorf("unexpected probe command: %s", cmd)
	}

	ctl = controller.New(testTopology, scripted(controller.Result{Success: true, Stdout: "FAIL"}, nil), time.Second)
	if ctl.Ping("n1", "n2") {
		t.Error("FAIL probe parsed as reachable")
	}

	if ctl.Ping("n1", "nonexistent") {
		t.Error("probe of unknown node reported reachable")
	}
}

func TestProbeBlocked(t *testing.T) {
	for stdout, blocked := range map[string]bool{
		"OK":      false,
		"BLOCKED": true,
	} {
		ctl := controller.New(testTopology, scripted(controller.Result{Success: true, Stdout: stdout}, nil), time.Second)
		if got := ctl.ProbeBlocked("n1", "n2"); got != blocked {
			t.Errorf("stdout %q: ProbeBlocked = %v, expected %v", stdout, got, blocked)
		}
	}

	// A probe that cannot run at all does not prove reachability.
	ctl := controller.New(testTopology, scripted(controller.Result{Success: false, Error: controller.ErrTimeout}, nil), time.Second)
	if !ctl.ProbeBlocked("n1", "n2") {
		t.Error("failed probe parsed as reachable")
	}
}

func TestPutKVRefinesSuccess(t *testing.T) {
	var cmd string
	ctl := controller.New(testTopology, scripted(controller.Result{Success: true, Stdout: "OK"}, &cmd), time.Second)

	result := ctl.PutKV("n1", "key_0", "value_0", "/tmp/data.log")
	if !result.Success {
		t.Error("acknowledged write reported failure")
	}
	if !strings.Contains(cmd, `echo "key_0=value_0" >> /tmp/data.log && echo OK`) {
		t.Errorf("unexpected write command: %s", cmd)
	}

	// Command ran but the acknowledgement is missing.
	ctl = controller.New(testTopology, scripted(controller.Result{Success: true, Stdout: ""}, nil), time.Second)
	if ctl.PutKV("n1", "k", "v", "/tmp/data.log").Success {
		t.Error("unacknowledged write reported success")
	}
}

func TestGetKVParsing(t *testing.T) {
	ctl := controller.New(testTopology, scripted(controller.Result{Success: true, Stdout: "key_0=value_7"}, nil), time.Second)
	value, result := ctl.GetKV("n1", "key_0", "/tmp/data.log")
	if !result.Success || value != "value_7" {
		t.Errorf("GetKV = %q (%+v)", value, result)
	}

	// Empty grep output means the key was never written.
	ctl = controller.New(testTopology, scripted(controller.Result{Success: true, Stdout: ""}, nil), time.Second)
	value, result = ctl.GetKV("n1", "key_0", "/tmp/data.log")
	if !result.Success || value != "" {
		t.Errorf("missing key: GetKV = %q (%+v)", value, result)
	}

	// Stray output that does not match the key yields no value.
	ctl = controller.New(testTopology, scripted(controller.Result{Success: true, Stdout: "other=1"}, nil), time.Second)
	if value, _ = ctl.GetKV("n1", "key_0", "/tmp/data.log"); value != "" {
		t.Errorf("mismatched line parsed as value %q", value)
	}
}

func TestDropRuleCommands(t *testing.T) {
	var cmd string
	ctl := controller.New(testTopology, scripted(controller.Result{Success: true}, &cmd), time.Second)

	ctl.DropRule("n1", controller.Outbound, "n2")
	if !strings.Contains(cmd, "iptables -A OUTPUT -d 10.10.0.2 -j DROP") {
		t.Errorf("unexpected outbound rule command: %s", cmd)
	}

	ctl.DropRule("n1", controller.Inbound, "n2")
	if !strings.Contains(cmd, "iptables -A INPUT -s 10.10.0.2 -j DROP") {
		t.Errorf("unexpected inbound rule command: %s", cmd)
	}

	if result := ctl.DropRule("n1", controller.Outbound, "n9"); result.Success {
		t.Error("rule against unknown node reported success")
	}
}

func TestKillAbandonedIssuesPkill(t *testing.T) {
	commands := []string{}
	transport := clustertest.TransportFunc(func(node string, command string, timeout time.Duration) controller.Result {
		commands = append(commands, command)
		if strings.HasPrefix(command, "pkill") {
			return controller.Result{Success: true}
		}
		return controller.Result{Success: false, Error: controller.ErrTimeout}
	})

	ctl := controller.New(testTopology, transport, time.Second)
	ctl.SetKillAbandoned(true)

	ctl.Execute("n1", "sleep 100")
	if len(commands) != 2 || !strings.HasPrefix(commands[1], "pkill -f") {
		t.Errorf("expected a follow-up pkill, got %v", commands)
	}
}
