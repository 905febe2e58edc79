/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package workload drives concurrent read and write operations against
// the cluster through a bounded worker pool.
package workload

import (
	"math/rand"
	"sync"
	"time"

	logger "github.com/rs/zerolog/log"

	"github.com/zenith-project/nemesis/controller"
	"github.com/zenith-project/nemesis/history"
	"github.com/zenith-project/nemesis/membership"
)

// KeyFunc produces the key for the i-th operation of a batch.
type KeyFunc func(i int) string

// ValueFunc produces the value for the i-th write of a batch.
type ValueFunc func(i int) string

// NodeSelector picks the target node for the i-th operation of a batch.
type NodeSelector func(i int) string

// UniformSelector picks nodes uniformly at random from the topology.
func UniformSelector(topology *membership.Topology) NodeSelector {
	names := topology.NodeNames()
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func(int) string {
		mu.Lock()
		defer mu.Unlock()
		return names[rng.Intn(len(names))]
	}
}

// Generator schedules operations over a fixed-capacity pool of workers.
// Tasks are independent except for the shared history sink; a failed or
// timed-out operation is recorded as unsuccessful and never cancels its
// siblings.
type Generator struct {
	ctl      *controller.Controller
	recorder *history.Recorder
	dataLog  string
	poolSize int
}

func NewGenerator(ctl *controller.Controller, recorder *history.Recorder, dataLog string, poolSize int) *Generator {
	return &Generator{
		ctl:      ctl,
		recorder: recorder,
		dataLog:  dataLog,
		poolSize: poolSize,
	}
}

// RunWrites schedules n concurrent writes and blocks until all of them
// have completed and been recorded. The operations of this batch are
// returned in completion order.
func (g *Generator) RunWrites(n int, key KeyFunc, value ValueFunc, pick NodeSelector) []history.Operation {
	return g.run(n, func(i int) history.Operation {
		return g.executeWrite(pick(i), key(i), value(i))
	})
}

// RunReads schedules n concurrent reads, recording the observed value of
// each. A read of a never-written key succeeds with an empty observation.
func (g *Generator) RunReads(n int, key KeyFunc, pick NodeSelector) []history.Operation {
	return g.run(n, func(i int) history.Operation {
		return g.executeRead(pick(i), key(i))
	})
}

// WriteSync performs a single write on the calling goroutine; used for
// strictly sequential schedules.
func (g *Generator) WriteSync(node string, key string, value string) history.Operation {
	op := g.executeWrite(node, key, value)
	g.recorder.Append(op)
	return op
}

// ReadSync performs a single read on the calling goroutine.
func (g *Generator) ReadSync(node string, key string) history.Operation {
	op := g.executeRead(node, key)
	g.recorder.Append(op)
	return op
}

func (g *Generator) executeWrite(node string, key string, value string) history.Operation {
	op := history.Operation{
		ID:        g.recorder.NextID(),
		Kind:      history.Write,
		Key:       key,
		Value:     value,
		Node:      node,
		InvokedAt: time.Now(),
	}

	result := g.ctl.PutKV(op.Node, op.Key, op.Value, g.dataLog)

	op.CompletedAt = time.Now()
	op.Success = result.Success
	op.Error = result.Error

	logger.Info().
		Str("kind", "write").
		Str("node", op.Node).
		Str("key", op.Key).
		Str("value", op.Value).
		Bool("success", op.Success).
		Msg("Operation completed.")

	return op
}

func (g *Generator) executeRead(node string, key string) history.Operation {
	op := history.Operation{
		ID:        g.recorder.NextID(),
		Kind:      history.Read,
		Key:       key,
		Node:      node,
		InvokedAt: time.Now(),
	}

	observed, result := g.ctl.GetKV(op.Node, op.Key, g.dataLog)

	op.CompletedAt = time.Now()
	op.Success = result.Success
	op.ObservedValue = observed
	op.Error = result.Error

	logger.Info().
		Str("kind", "read").
		Str("node", op.Node).
		Str("key", op.Key).
		Str("observed", op.ObservedValue).
		Bool("success", op.Success).
		Msg("Operation completed.")

	return op
}

// run fans n tasks out over the worker pool and joins all of them before
// returning. No locks are held while a task is executing its command.
func (g *Generator) run(n int, task func(i int) history.Operation) []history.Operation {
	var (
		mu  sync.Mutex
		ops = make([]history.Operation, 0, n)
		wg  sync.WaitGroup
		sem = make(chan struct{}, g.poolSize)
	)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			op := task(i)
			g.recorder.Append(op)

			mu.Lock()
			ops = append(ops, op)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	return ops
}
