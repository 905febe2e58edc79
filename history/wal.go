/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package history

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	logger "github.com/rs/zerolog/log"
	"github.com/tidwall/wal"
)

// Log is a durable append-only operation log backed by a write-ahead log
// file. It survives the run so that histcat can replay what happened.
// Entries are JSON-encoded operations; their order is completion order,
// which may differ from invocation order under concurrency.
type Log struct {
	mu        sync.Mutex
	log       *wal.Log
	nextIndex uint64
}

// OpenLog opens (or creates) the operation log at path. Appends continue
// after any entries already present.
func OpenLog(path string) (*Log, error) {
	log, err := wal.Open(path, &wal.Options{
		NoSync: true,
		NoCopy: true,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "could not open operation log")
	}

	lastIndex, err := log.LastIndex()
	if err != nil {
		log.Close()
		return nil, errors.WithMessage(err, "could not read last index")
	}

	return &Log{
		log:       log,
		nextIndex: lastIndex + 1,
	}, nil
}

// Append writes the operation to the log. Failures are logged and
// swallowed; losing a durable copy must not fail the run itself.
func (l *Log) Append(op Operation) {
	data, err := json.Marshal(op)
	if err != nil {
		logger.Error().Err(err).Uint64("opId", op.ID).Msg("Could not encode operation.")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.log.Write(l.nextIndex, data); err != nil {
		logger.Error().Err(err).Uint64("index", l.nextIndex).Msg("Could not append operation to log.")
		return
	}
	l.nextIndex++
}

// LoadAll reads every operation in the log, oldest first.
func (l *Log) LoadAll() ([]Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	firstIndex, err := l.log.FirstIndex()
	if err != nil {
		return nil, errors.WithMessage(err, "could not read first index")
	}
	lastIndex, err := l.log.LastIndex()
	if err != nil {
		return nil, errors.WithMessage(err, "could not read last index")
	}

	if lastIndex == 0 {
		return nil, nil
	}

	ops := make([]Operation, 0, lastIndex-firstIndex+1)
	for i := firstIndex; i <= lastIndex; i++ {
		data, err := l.log.Read(i)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "could not read index %d", i)
		}

		op := Operation{}
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, errors.WithMessagef(err, "error decoding entry %d, is the log corrupt?", i)
		}
		ops = append(ops, op)
	}

	return ops, nil
}

// Sync flushes pending writes to stable storage.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.log.Sync()
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.log.Close()
}
