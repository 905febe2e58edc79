/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package harness

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	logger "github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

// PreflightError is the only fatal harness error: without transport access
// to every node, no phase can produce a meaningful result.
type PreflightError struct {
	Failures []string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight failed: %s", strings.Join(e.Failures, "; "))
}

// Preflight verifies, before any phase runs, that every node answers a
// transport echo and accepts a connection on its data-plane engine port.
// All nodes are probed so the error names every unreachable one.
func (h *Harness) Preflight() error {
	failures := []string{}

	for _, node := range h.topology.NodeNames() {
		if !h.ctl.Echo(node) {
			logger.Error().Str("node", node).Msg("Transport unreachable during preflight.")
			failures = append(failures, fmt.Sprintf("%s: transport unreachable", node))
			continue
		}

		addr, _ := h.topology.Address(node)
		target := net.JoinHostPort(addr, strconv.Itoa(h.params.EnginePort))

		dial := h.params.EngineDial
		if dial == nil {
			dial = dialEngine
		}
		if err := dial(target, h.params.PreflightTimeout); err != nil {
			logger.Error().Err(err).Str("node", node).Str("target", target).Msg("Engine unreachable during preflight.")
			failures = append(failures, fmt.Sprintf("%s: %s", node, err))
			continue
		}

		logger.Info().Str("node", node).Msg("Preflight probe succeeded.")
	}

	if len(failures) > 0 {
		return &PreflightError{Failures: failures}
	}
	return nil
}

// dialEngine performs a blocking gRPC dial against the engine endpoint.
// The engine's API surface is not used beyond accepting the connection.
func dialEngine(addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dialOpts := []grpc.DialOption{
		grpc.WithBlock(),
		grpc.WithInsecure(),
	}

	conn, err := grpc.DialContext(ctx, addr, dialOpts...)
	if err != nil {
		return errors.WithMessagef(err, "could not connect to engine at %s", addr)
	}
	return conn.Close()
}
