/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package membership holds the static view of the cluster under test.
// The topology is fixed for the lifetime of a run and shared read-only
// by all harness components.
package membership

import (
	"sort"
)

// Topology is an immutable mapping of node name to network address.
type Topology struct {
	addresses map[string]string
	names     []string
}

// NewTopology copies the given node table. Later changes to the input map
// do not affect the returned value.
func NewTopology(nodes map[string]string) *Topology {
	t := &Topology{
		addresses: make(map[string]string, len(nodes)),
		names:     make([]string, 0, len(nodes)),
	}
	for name, addr := range nodes {
		t.addresses[name] = addr
		t.names = append(t.names, name)
	}

	// Sort node names, such that every component has a consistent view of them.
	sort.Strings(t.names)

	return t
}

// NodeNames returns an ordered list of all node names.
func (t *Topology) NodeNames() []string {
	// Return a copy of the data, so the caller cannot change the ordering.
	c := make([]string, len(t.names))
	copy(c, t.names)
	return c
}

// Address returns the network address of the named node.
func (t *Topology) Address(name string) (string, bool) {
	addr, ok := t.addresses[name]
	return addr, ok
}

// Peers returns the ordered names of all nodes except the excluded one.
func (t *Topology) Peers(exclude string) []string {
	peers := make([]string, 0, len(t.names))
	for _, name := range t.names {
		if name != exclude {
			peers = append(peers, name)
		}
	}
	return peers
}

// NumNodes returns the total number of nodes.
func (t *Topology) NumNodes() int {
	return len(t.addresses)
}
