/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package checker evaluates the consistency properties of a run: cluster
// connectivity, partition and recovery effects, workload success, and a
// single-key linearizability condition over the recorded history.
package checker

import (
	"fmt"
	"sort"
	"time"

	logger "github.com/rs/zerolog/log"

	"github.com/zenith-project/nemesis/history"
	"github.com/zenith-project/nemesis/membership"
)

// Phase names, in execution order.
const (
	PhaseConnectivity    = "connectivity"
	PhasePartition       = "network_partition"
	PhaseRecovery        = "recovery"
	PhaseConcurrentOps   = "concurrent_operations"
	PhaseLinearizability = "linearizability"
)

// PhaseResult is the immutable outcome of one harness phase.
type PhaseResult struct {
	Phase   string `json:"phase"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// Prober is the connectivity view the checker needs; satisfied by
// controller.Controller.
type Prober interface {
	Ping(node string, target string) bool
}

// Checker evaluates phase properties. Probe-based checks go through the
// prober; history-based checks work on recorder snapshots only.
type Checker struct {
	prober    Prober
	threshold float64
}

func New(prober Prober, successThreshold float64) *Checker {
	return &Checker{
		prober:    prober,
		threshold: successThreshold,
	}
}

// CheckConnectivity probes every ordered node pair and passes iff all of
// them are reachable.
func (c *Checker) CheckConnectivity(topology *membership.Topology) PhaseResult {
	total := 0
	reachable := 0

	for _, src := range topology.NodeNames() {
		for _, dst := range topology.NodeNames() {
			if src == dst {
				continue
			}
			total++
			ok := c.prober.Ping(src, dst)
			logger.Info().
				Str("src", src).
				Str("dst", dst).
				Bool("reachable", ok).
				Msg("Connectivity probe.")
			if ok {
				reachable++
			}
		}
	}

	return PhaseResult{
		Phase:   PhaseConnectivity,
		Passed:  reachable == total,
		Details: fmt.Sprintf("%d/%d connections reachable", reachable, total),
	}
}

// CheckPartitionEffect passes iff the partition was confirmed by the
// nemesis probes AND every pair of non-isolated peers can still talk to
// each other during the partition window.
func (c *Checker) CheckPartitionEffect(isolated string, peers []string, partitionConfirmed bool) PhaseResult {
	healthy := true
	for _, src := range peers {
		for _, dst := range peers {
			if src == dst {
				continue
			}
			ok := c.prober.Ping(src, dst)
			logger.Info().
				Str("src", src).
				Str("dst", dst).
				Bool("reachable", ok).
				Msg("Healthy-side probe during partition.")
			healthy = healthy && ok
		}
	}

	details := fmt.Sprintf("node %s isolated, healthy peers communicating", isolated)
	if !partitionConfirmed {
		details = fmt.Sprintf("node %s still reachable after fault injection", isolated)
	} else if !healthy {
		details = "partition leaked into the healthy side of the cluster"
	}

	return PhaseResult{
		Phase:   PhasePartition,
		Passed:  partitionConfirmed && healthy,
		Details: details,
	}
}

// CheckRecovery passes iff the heal was confirmed within its retry bound.
func (c *Checker) CheckRecovery(isolated string, peers []string, recoveryConfirmed bool) PhaseResult {
	details := fmt.Sprintf("node %s reconnected to %d peer(s)", isolated, len(peers))
	if !recoveryConfirmed {
		details = fmt.Sprintf("node %s did not recover within the retry bound", isolated)
	}

	return PhaseResult{
		Phase:   PhaseRecovery,
		Passed:  recoveryConfirmed,
		Details: details,
	}
}

// CheckConcurrentOps passes iff the fraction of successful operations in
// the history meets the configured threshold.
func (c *Checker) CheckConcurrentOps(ops []history.Operation) PhaseResult {
	successful := 0
	for _, op := range ops {
		if op.Success {
			successful++
		}
	}

	passed := len(ops) > 0 && float64(successful) >= c.threshold*float64(len(ops))

	return PhaseResult{
		Phase:   PhaseConcurrentOps,
		Passed:  passed,
		Details: fmt.Sprintf("%d/%d operations successful", successful, len(ops)),
	}
}

// CheckLinearizability examines all operations on a single key. Each read
// must observe the value of its visible write: the successful write with
// the greatest completion time at or before the read's invocation. A read
// that overlaps an in-flight write is ambiguous rather than failed; only
// definitive mismatches fail the phase.
func (c *Checker) CheckLinearizability(ops []history.Operation, key string) PhaseResult {
	writes := make([]history.Operation, 0, len(ops))
	attempts := make([]history.Operation, 0, len(ops))
	reads := make([]history.Operation, 0, len(ops))
	for _, op := range ops {
		if op.Key != key {
			continue
		}
		switch {
		case op.Kind == history.Write:
			// Only successful writes can be visible, but even a failed or
			// timed-out write may have landed remotely, so all attempts
			// count when deciding whether a read is ambiguous.
			attempts = append(attempts, op)
			if op.Success {
				writes = append(writes, op)
			}
		case op.Kind == history.Read && op.Success:
			reads = append(reads, op)
		}
	}

	sort.Slice(writes, func(i, j int) bool {
		return writes[i].InvokedAt.Before(writes[j].InvokedAt)
	})

	consistent := 0
	ambiguous := 0
	violations := 0

	for _, read := range reads {
		expected := ""
		var visibleAt time.Time
		for _, write := range writes {
			// Greatest completion time at or before the read's invocation.
			if write.CompletedAt.After(read.InvokedAt) {
				continue
			}
			if write.CompletedAt.After(visibleAt) {
				expected = write.Value
				visibleAt = write.CompletedAt
			}
		}

		if read.ObservedValue == expected {
			consistent++
			continue
		}

		overlapping := false
		for _, write := range attempts {
			if read.Overlaps(write) {
				overlapping = true
				break
			}
		}

		if overlapping {
			ambiguous++
			logger.Warn().
				Uint64("opId", read.ID).
				Str("node", read.Node).
				Str("observed", read.ObservedValue).
				Str("expected", expected).
				Msg("Ambiguous read overlaps an in-flight write.")
		} else {
			violations++
			logger.Error().
				Uint64("opId", read.ID).
				Str("node", read.Node).
				Str("observed", read.ObservedValue).
				Str("expected", expected).
				Msg("Consistency violation.")
		}
	}

	return PhaseResult{
		Phase:  PhaseLinearizability,
		Passed: violations == 0,
		Details: fmt.Sprintf("%d read(s): %d consistent, %d ambiguous, %d violation(s)",
			len(reads), consistent, ambiguous, violations),
	}
}
