/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package history

import (
	"sync"
	"testing"
	"time"
)

func TestConcurrentAppends(t *testing.T) {
	rec := NewRecorder()

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := rec.NextID()
				rec.Append(Operation{
					ID:          id,
					Kind:        Write,
					Key:         "k",
					InvokedAt:   time.Now(),
					CompletedAt: time.Now(),
					Success:     true,
				})
			}
		}()
	}
	wg.Wait()

	if rec.Len() != workers*perWorker {
		t.Errorf("lost operations: %d recorded, expected %d", rec.Len(), workers*perWorker)
	}

	// Every allocated ID must appear exactly once.
	seen := make(map[uint64]bool)
	for _, op := range rec.Snapshot() {
		if seen[op.ID] {
			t.Errorf("duplicate operation id %d", op.ID)
		}
		seen[op.ID] = true
	}
}

func TestLenMonotonic(t *testing.T) {
	rec := NewRecorder()

	stopC := make(chan struct{})
	doneC := make(chan struct{})
	go func() {
		defer close(doneC)
		for i := 0; i < 200; i++ {
			rec.Append(Operation{ID: rec.NextID()})
		}
		close(stopC)
	}()

	prev := 0
	for {
		n := rec.Len()
		if n < prev {
			t.Errorf("history shrank from %d to %d", prev, n)
		}
		prev = n

		select {
		case <-stopC:
			<-doneC
			return
		default:
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	rec := NewRecorder()
	rec.Append(Operation{ID: 1, Kind: Read})

	snap := rec.Snapshot()
	rec.Append(Operation{ID: 2, Kind: Write})

	if len(snap) != 1 {
		t.Errorf("snapshot reflects later appends: %d entries", len(snap))
	}

	snap[0].ID = 99
	if rec.Snapshot()[0].ID != 1 {
		t.Error("snapshot aliases recorder state")
	}
}

func TestOverlaps(t *testing.T) {
	base := time.Now()
	write := Operation{InvokedAt: base, CompletedAt: base.Add(100 * time.Millisecond)}

	during := Operation{InvokedAt: base.Add(50 * time.Millisecond)}
	if !during.Overlaps(write) {
		t.Error("read invoked mid-write not detected as overlapping")
	}

	after := Operation{InvokedAt: base.Add(200 * time.Millisecond)}
	if after.Overlaps(write) {
		t.Error("read invoked after completion detected as overlapping")
	}

	before := Operation{InvokedAt: base.Add(-time.Millisecond)}
	if before.Overlaps(write) {
		t.Error("read invoked before the write detected as overlapping")
	}
}
