/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
)

// Store archives run reports in a badger database keyed by run timestamp,
// so that successive runs against the same cluster can be compared later.
type Store struct {
	db *badger.DB
}

// OpenStore opens the archive at dirPath. An empty path yields an
// in-memory archive, useful in tests.
func OpenStore(dirPath string) (*Store, error) {
	var badgerOpts badger.Options
	if dirPath == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(dirPath).WithSyncWrites(false).WithTruncate(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, errors.WithMessage(err, "could not open backing db")
	}

	return &Store{db: db}, nil
}

func key(r Report) []byte {
	return []byte(r.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"))
}

// Put archives the report under its timestamp.
func (s *Store) Put(r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.WithMessage(err, "could not encode report")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(r), data)
	})
}

// Get returns the archived report stored under runKey.
func (s *Store) Get(runKey string) (Report, error) {
	r := Report{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runKey))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})

	return r, err
}

// List returns the keys of all archived runs, oldest first.
func (s *Store) List() ([]string, error) {
	keys := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})

	return keys, err
}

func (s *Store) Sync() error {
	return s.db.Sync()
}

func (s *Store) Close() {
	s.db.Close()
}
