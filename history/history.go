/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package history records the operations a run performs against the
// cluster. The recorder is the single shared sink of the concurrent
// workload; consistency checking works on snapshots of it.
package history

import (
	"sync"
	"sync/atomic"
	"time"
)

type Kind string

const (
	Read  Kind = "read"
	Write Kind = "write"
)

// Operation is one read or write issued against a node. It is created at
// dispatch with InvokedAt set, completed exactly once, and never mutated
// after being appended. Wall-clock timestamps, not insertion order, are
// authoritative for consistency checking.
type Operation struct {
	ID            uint64    `json:"id"`
	Kind          Kind      `json:"kind"`
	Key           string    `json:"key"`
	Value         string    `json:"value,omitempty"`
	Node          string    `json:"node"`
	InvokedAt     time.Time `json:"invokedAt"`
	CompletedAt   time.Time `json:"completedAt"`
	Success       bool      `json:"success"`
	ObservedValue string    `json:"observedValue,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Overlaps reports whether the other operation was in flight at the
// moment this operation was invoked.
func (op Operation) Overlaps(other Operation) bool {
	return !op.InvokedAt.Before(other.InvokedAt) && !op.InvokedAt.After(other.CompletedAt)
}

// Recorder is a thread-safe, append-only store of operations.
type Recorder struct {
	mu     sync.Mutex
	ops    []Operation
	nextID uint64

	log *Log
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// AttachLog tees every appended operation into a durable log.
func (r *Recorder) AttachLog(log *Log) {
	r.log = log
}

// NextID allocates a unique operation ID.
func (r *Recorder) NextID() uint64 {
	return atomic.AddUint64(&r.nextID, 1)
}

// Append adds a completed operation to the history. Safe under concurrent
// calls from the worker pool. The durable log is written outside the
// critical section.
func (r *Recorder) Append(op Operation) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()

	if r.log != nil {
		r.log.Append(op)
	}
}

// Snapshot returns a copy of the history that will not reflect
// subsequent appends.
func (r *Recorder) Snapshot() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := make([]Operation, len(r.ops))
	copy(c, r.ops)
	return c
}

// Len returns the number of recorded operations. It never decreases
// during a run.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}
