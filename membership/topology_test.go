/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package membership

import (
	"testing"
)

func testNodes() map[string]string {
	return map[string]string{
		"zenith-node-2": "172.28.0.12",
		"zenith-node-1": "172.28.0.11",
		"zenith-node-3": "172.28.0.13",
	}
}

func TestNodeNamesSorted(t *testing.T) {
	topo := NewTopology(testNodes())

	names := topo.NodeNames()
	expected := []string{"zenith-node-1", "zenith-node-2", "zenith-node-3"}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("names[%d] = %s, expected %s", i, names[i], name)
		}
	}
}

func TestTopologyImmutable(t *testing.T) {
	input := testNodes()
	topo := NewTopology(input)

	// Mutating the input after construction must not be visible.
	input["zenith-node-1"] = "10.0.0.1"
	delete(input, "zenith-node-2")

	if addr, _ := topo.Address("zenith-node-1"); addr != "172.28.0.11" {
		t.Errorf("address changed through input map: %s", addr)
	}
	if topo.NumNodes() != 3 {
		t.Errorf("NumNodes = %d, expected 3", topo.NumNodes())
	}

	// Mutating a returned slice must not affect later calls.
	names := topo.NodeNames()
	names[0] = "bogus"
	if topo.NodeNames()[0] != "zenith-node-1" {
		t.Error("NodeNames aliased internal state")
	}
}

func TestPeers(t *testing.T) {
	topo := NewTopology(testNodes())

	peers := topo.Peers("zenith-node-3")
	if len(peers) != 2 || peers[0] != "zenith-node-1" || peers[1] != "zenith-node-2" {
		t.Errorf("unexpected peers: %v", peers)
	}

	if len(topo.Peers("unknown")) != 3 {
		t.Error("excluding an unknown node should return everyone")
	}
}

func TestAddressUnknownNode(t *testing.T) {
	topo := NewTopology(testNodes())

	if _, ok := topo.Address("zenith-node-9"); ok {
		t.Error("unknown node resolved to an address")
	}
}
