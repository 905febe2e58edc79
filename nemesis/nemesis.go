/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package nemesis injects network faults into the cluster under test.
// Rule installation is best-effort; whether a partition or a heal actually
// took effect is established by connectivity probes, never assumed from
// the firewall commands having succeeded.
package nemesis

import (
	"sort"
	"time"

	logger "github.com/rs/zerolog/log"

	"github.com/zenith-project/nemesis/controller"
)

// FaultRule describes one installed drop rule. The action is always drop.
type FaultRule struct {
	Node      string               `json:"node"`
	Target    string               `json:"target"`
	Direction controller.Direction `json:"direction"`
}

// Nemesis creates and removes network partitions. It owns the set of
// installed fault rules for the duration of a run. Not safe for concurrent
// use; the harness drives it from a single control goroutine.
type Nemesis struct {
	ctl   *controller.Controller
	rules map[FaultRule]struct{}

	settleDelay  time.Duration
	healRetries  int
	healInterval time.Duration
}

func New(ctl *controller.Controller, settleDelay time.Duration, healRetries int, healInterval time.Duration) *Nemesis {
	return &Nemesis{
		ctl:          ctl,
		rules:        make(map[FaultRule]struct{}),
		settleDelay:  settleDelay,
		healRetries:  healRetries,
		healInterval: healInterval,
	}
}

// Partition cuts the isolated node off from every peer by installing
// outbound and inbound drop rules on it. Installing a rule that already
// exists is a no-op. Returns true only if, after the rules settle, every
// peer probes as unreachable from the isolated node.
func (n *Nemesis) Partition(isolated string, peers []string) bool {
	logger.Info().
		Str("isolated", isolated).
		Int("numPeers", len(peers)).
		Msg("Partitioning node from cluster.")

	for _, peer := range peers {
		n.installRule(FaultRule{Node: isolated, Target: peer, Direction: controller.Outbound})
		n.installRule(FaultRule{Node: isolated, Target: peer, Direction: controller.Inbound})
	}

	// Let the partition take effect before verifying it.
	time.Sleep(n.settleDelay)

	confirmed := true
	for _, peer := range peers {
		blocked := n.ctl.ProbeBlocked(isolated, peer)
		logger.Info().
			Str("isolated", isolated).
			Str("peer", peer).
			Bool("blocked", blocked).
			Msg("Partition probe.")
		confirmed = confirmed && blocked
	}

	return confirmed
}

func (n *Nemesis) installRule(rule FaultRule) {
	if _, exists := n.rules[rule]; exists {
		return
	}

	result := n.ctl.DropRule(rule.Node, rule.Direction, rule.Target)
	if !result.Success {
		// Recorded but not fatal; the verification probes decide.
		logger.Warn().
			Str("node", rule.Node).
			Str("target", rule.Target).
			Str("direction", string(rule.Direction)).
			Str("error", result.Error).
			Msg("Fault rule apply failure.")
	}

	n.rules[rule] = struct{}{}
}

// Heal flushes all fault rules previously installed on the isolated node
// and polls connectivity to every peer until all are reachable again or
// the retry bound is exhausted.
func (n *Nemesis) Heal(isolated string) bool {
	logger.Info().Str("isolated", isolated).Msg("Healing network partition.")

	result := n.ctl.FlushRules(isolated)
	if !result.Success {
		logger.Warn().
			Str("node", isolated).
			Str("error", result.Error).
			Msg("Flushing fault rules failed.")
	}

	peers := make([]string, 0, len(n.rules))
	seen := make(map[string]struct{})
	for rule := range n.rules {
		if rule.Node != isolated {
			continue
		}
		if _, dup := seen[rule.Target]; !dup {
			seen[rule.Target] = struct{}{}
			peers = append(peers, rule.Target)
		}
	}
	sort.Strings(peers)

	for rule := range n.rules {
		if rule.Node == isolated {
			delete(n.rules, rule)
		}
	}

	for attempt := 0; attempt < n.healRetries; attempt++ {
		time.Sleep(n.healInterval)

		recovered := true
		for _, peer := range peers {
			reachable := n.ctl.Ping(isolated, peer)
			logger.Info().
				Str("isolated", isolated).
				Str("peer", peer).
				Bool("reachable", reachable).
				Int("attempt", attempt).
				Msg("Recovery probe.")
			recovered = recovered && reachable
		}

		if recovered {
			return true
		}
	}

	return false
}

// Rules returns a sorted copy of the currently installed fault rules.
func (n *Nemesis) Rules() []FaultRule {
	rules := make([]FaultRule, 0, len(n.rules))
	for rule := range n.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Node != rules[j].Node {
			return rules[i].Node < rules[j].Node
		}
		if rules[i].Target != rules[j].Target {
			return rules[i].Target < rules[j].Target
		}
		return rules[i].Direction < rules[j].Direction
	})
	return rules
}
