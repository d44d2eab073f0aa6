/*
 * Copyright 2026 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package storage implements a simple key-value storage based on leveldb.
//
// Reads are safe for concurrent use. Writes that must be observed together go
// through a Batch, which leveldb applies atomically.
package storage

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrStorageClosed indicates use of a closed storage.
var ErrStorageClosed = errors.New("storage closed")

// Storage represents a key-value storage.
type Storage struct {
	db     *leveldb.DB
	closed uint32
}

// KV represents a key-value pair.
type KV struct {
	Key   []byte
	Value []byte
}

// OpenStorage opens or creates a leveldb database at path.
func OpenStorage(path string) (st *Storage, err error) {
	var db *leveldb.DB
	if db, err = leveldb.OpenFile(path, nil); err != nil {
		err = errors.Wrapf(err, "open database %s failed", path)
		return
	}
	st = &Storage{db: db}
	return
}

// NewMemStorage returns a storage kept entirely in memory.
func NewMemStorage() (st *Storage, err error) {
	var db *leveldb.DB
	if db, err = leveldb.Open(lstorage.NewMemStorage(), nil); err != nil {
		err = errors.Wrap(err, "open memory database failed")
		return
	}
	st = &Storage{db: db}
	return
}

func (s *Storage) check() error {
	if atomic.LoadUint32(&s.closed) == 1 {
		return ErrStorageClosed
	}
	return nil
}

// SetValue sets or replace the value to key.
func (s *Storage) SetValue(key []byte, value []byte) (err error) {
	if err = s.check(); err != nil {
		return
	}
	return errors.Wrap(s.db.Put(key, value, &opt.WriteOptions{Sync: true}), "put value failed")
}

// DelValue deletes the value of key.
func (s *Storage) DelValue(key []byte) (err error) {
	if err = s.check(); err != nil {
		return
	}
	return errors.Wrap(s.db.Delete(key, &opt.WriteOptions{Sync: true}), "delete value failed")
}

// GetValue fetches the value of key, nil without error if the key is absent.
func (s *Storage) GetValue(key []byte) (value []byte, err error) {
	if err = s.check(); err != nil {
		return
	}
	if value, err = s.db.Get(key, nil); err == leveldb.ErrNotFound {
		value, err = nil, nil
	}
	err = errors.Wrap(err, "get value failed")
	return
}

// HasValue reports whether key exists.
func (s *Storage) HasValue(key []byte) (ok bool, err error) {
	if err = s.check(); err != nil {
		return
	}
	ok, err = s.db.Has(key, nil)
	err = errors.Wrap(err, "check value failed")
	return
}

// SetValues sets or replaces the key-value pairs in kvs atomically.
func (s *Storage) SetValues(kvs []KV) (err error) {
	b := s.NewBatch()
	for _, kv := range kvs {
		b.Put(kv.Key, kv.Value)
	}
	return b.Write()
}

// Scan calls fn with every pair whose key starts with prefix, in key order.
// Key and value are copies. Returning an error from fn stops the scan.
func (s *Storage) Scan(prefix []byte, fn func(key, value []byte) error) (err error) {
	if err = s.check(); err != nil {
		return
	}
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		key := append([]byte(nil), it.Key()...)
		value := append([]byte(nil), it.Value()...)
		if err = fn(key, value); err != nil {
			return
		}
	}
	return errors.Wrap(it.Error(), "iterate storage failed")
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return nil
	}
	return errors.Wrap(s.db.Close(), "close database failed")
}

// Batch collects writes to be applied atomically.
type Batch struct {
	s *Storage
	b leveldb.Batch
}

// NewBatch returns an empty batch on s.
func (s *Storage) NewBatch() *Batch {
	return &Batch{s: s}
}

// Put records a put of key.
func (b *Batch) Put(key, value []byte) {
	b.b.Put(key, value)
}

// Delete records a delete of key.
func (b *Batch) Delete(key []byte) {
	b.b.Delete(key)
}

// Len returns the number of recorded writes.
func (b *Batch) Len() int {
	return b.b.Len()
}

// Write applies the batch atomically.
func (b *Batch) Write() (err error) {
	if err = b.s.check(); err != nil {
		return
	}
	return errors.Wrap(b.s.db.Write(&b.b, &opt.WriteOptions{Sync: true}), "write batch failed")
}
