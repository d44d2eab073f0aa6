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

package vault

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/utils"
)

var (
	keyRecordPrefix = []byte("k/")

	errRecordNotFound = errors.New("vault: key record not found")
)

// keyRecord is the at-rest form of a minted key. Allowed lists the reveal
// grantees; the scope ledger grants but never reveals.
type keyRecord struct {
	Handle    proto.KeyHandle `cbor:"1,keyasint"`
	Scope     Scope           `cbor:"2,keyasint"`
	Allowed   []proto.Address `cbor:"3,keyasint"`
	Sealed    []byte          `cbor:"4,keyasint"`
	CreatedAt int64           `cbor:"5,keyasint"`
}

func (r *keyRecord) allows(addr proto.Address) bool {
	for _, a := range r.Allowed {
		if a == addr {
			return true
		}
	}
	return false
}

// store keeps key records in badger.
type store struct {
	db *badger.DB
}

// openStore opens a badger store at dir; an empty dir opens an in-memory
// store.
func openStore(dir string) (s *store, err error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts = opts.WithSyncWrites(true)
	}
	s = &store{}
	if s.db, err = badger.Open(opts); err != nil {
		return nil, errors.Wrapf(err, "open vault store %q failed", dir)
	}
	return
}

func recordKey(h proto.KeyHandle) []byte {
	return utils.ConcatAll(keyRecordPrefix, h[:])
}

func (s *store) put(r *keyRecord) (err error) {
	enc, err := cbor.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode key record failed")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(r.Handle), enc)
	})
}

// insert stores r only if its handle is unused.
func (s *store) insert(r *keyRecord) (err error) {
	enc, err := cbor.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode key record failed")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(r.Handle)
		if _, err := txn.Get(key); err == nil {
			return errors.Errorf("key handle %s already minted", r.Handle.Hex())
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, enc)
	})
}

func (s *store) get(h proto.KeyHandle) (r *keyRecord, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(h))
		if err == badger.ErrKeyNotFound {
			return errRecordNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r = &keyRecord{}
			return cbor.Unmarshal(val, r)
		})
	})
	if err != nil {
		r = nil
	}
	return
}

// count returns the number of stored records.
func (s *store) count() (n int, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyRecordPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return
}

func (s *store) close() error {
	return s.db.Close()
}
