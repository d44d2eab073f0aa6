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

package ledger

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/storage"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
)

var (
	recordKeyPrefix = []byte("r/")
	entryKeyPrefix  = []byte("e/")
	countKeyPrefix  = []byte("c/")
	nonceKeyPrefix  = []byte("n/")
	txKeyPrefix     = []byte("t/")
	separator       = []byte("/")
)

func uint64ToBytes(v uint64) (b []byte) {
	b = make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return
}

func bytesToUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func recordKey(owner proto.Address) []byte {
	return utils.ConcatAll(recordKeyPrefix, owner[:])
}

func entryOwnerPrefix(owner proto.Address) []byte {
	return utils.ConcatAll(entryKeyPrefix, owner[:], separator)
}

func entryKey(owner proto.Address, index uint64) []byte {
	return utils.ConcatAll(entryOwnerPrefix(owner), uint64ToBytes(index))
}

func countKey(owner proto.Address) []byte {
	return utils.ConcatAll(countKeyPrefix, owner[:])
}

func nonceKey(owner proto.Address) []byte {
	return utils.ConcatAll(nonceKeyPrefix, owner[:])
}

func txKey(t types.Transaction) []byte {
	h := t.Hash()
	return utils.ConcatAll(txKeyPrefix, t.GetTransactionType().Bytes(), separator, h[:])
}

// storageProcedure records writes into a batch.
type storageProcedure func(b *storage.Batch) error

// storageCallback applies a committed batch to the in-memory state.
type storageCallback func()

// store writes sps in one batch and then invokes cb. cb runs only if the
// batch is durable and MUST NOT fail.
func store(st *storage.Storage, sps []storageProcedure, cb storageCallback) (err error) {
	b := st.NewBatch()
	for _, sp := range sps {
		if err = sp(b); err != nil {
			return
		}
	}
	if err = b.Write(); err != nil {
		return
	}
	log.Debugf("committed ledger batch of %d writes", b.Len())
	if cb != nil {
		cb()
	}
	return
}

func errPass(err error) storageProcedure {
	return func(_ *storage.Batch) error {
		return err
	}
}

func encodeProcedure(key []byte, v interface{}) storageProcedure {
	enc, err := utils.EncodeMsgPack(v)
	if err != nil {
		return errPass(errors.Wrap(err, "encode ledger value failed"))
	}
	return func(b *storage.Batch) error {
		b.Put(key, enc.Bytes())
		return nil
	}
}

func putRecord(r *types.KeyRecord) storageProcedure {
	return encodeProcedure(recordKey(r.Owner), r)
}

func putEntry(owner proto.Address, e *types.Entry) storageProcedure {
	return encodeProcedure(entryKey(owner, e.Index), e)
}

func putCount(owner proto.Address, count uint64) storageProcedure {
	return func(b *storage.Batch) error {
		b.Put(countKey(owner), uint64ToBytes(count))
		return nil
	}
}

func putNonce(owner proto.Address, next types.AccountNonce) storageProcedure {
	return func(b *storage.Batch) error {
		b.Put(nonceKey(owner), uint64ToBytes(uint64(next)))
		return nil
	}
}

func putTx(t types.Transaction) storageProcedure {
	enc, err := types.EncodeTransaction(t)
	if err != nil {
		return errPass(err)
	}
	return func(b *storage.Batch) error {
		b.Put(txKey(t), enc)
		return nil
	}
}

func ownerFromKey(prefix, key []byte) (owner proto.Address, err error) {
	if len(key) < len(prefix)+proto.AddressLength {
		err = errors.Errorf("corrupted ledger key %x", key)
		return
	}
	copy(owner[:], key[len(prefix):len(prefix)+proto.AddressLength])
	return
}

// loadState reads every record, entry and nonce of st into s.
func loadState(st *storage.Storage, s *state) (err error) {
	if err = st.Scan(recordKeyPrefix, func(key, value []byte) (err error) {
		var r types.KeyRecord
		if err = utils.DecodeMsgPack(value, &r); err != nil {
			return errors.Wrapf(err, "decode record %x failed", key)
		}
		s.records[r.Owner] = &r
		return
	}); err != nil {
		return
	}

	if err = st.Scan(entryKeyPrefix, func(key, value []byte) (err error) {
		var (
			owner proto.Address
			e     types.Entry
		)
		if owner, err = ownerFromKey(entryKeyPrefix, key); err != nil {
			return
		}
		if err = utils.DecodeMsgPack(value, &e); err != nil {
			return errors.Wrapf(err, "decode entry %x failed", key)
		}
		if e.Index != uint64(len(s.entries[owner])) {
			return errors.Errorf("entry %d of %s out of order", e.Index, owner)
		}
		s.entries[owner] = append(s.entries[owner], &e)
		return
	}); err != nil {
		return
	}

	if err = st.Scan(countKeyPrefix, func(key, value []byte) (err error) {
		var owner proto.Address
		if owner, err = ownerFromKey(countKeyPrefix, key); err != nil {
			return
		}
		if count := bytesToUint64(value); count != uint64(len(s.entries[owner])) {
			return errors.Errorf("entry count of %s is %d, found %d entries",
				owner, count, len(s.entries[owner]))
		}
		return
	}); err != nil {
		return
	}

	return st.Scan(nonceKeyPrefix, func(key, value []byte) (err error) {
		var owner proto.Address
		if owner, err = ownerFromKey(nonceKeyPrefix, key); err != nil {
			return
		}
		s.nonces[owner] = types.AccountNonce(bytesToUint64(value))
		return
	})
}
