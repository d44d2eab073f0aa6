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

package types

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/CovenantSQL/SecretLedger/crypto/hash"
	"github.com/CovenantSQL/SecretLedger/crypto/verifier"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/utils"
)

// AccountNonce is the per-owner counter of committed transactions.
type AccountNonce uint64

// TransactionType tags the concrete transaction of an envelope.
type TransactionType uint32

const (
	// TransactionTypeCreateLedger creates the owner's ledger and first key.
	TransactionTypeCreateLedger TransactionType = iota + 1
	// TransactionTypeRotateLedgerKey replaces the owner's key handle.
	TransactionTypeRotateLedgerKey
	// TransactionTypeAppendEntry appends one ciphertext entry.
	TransactionTypeAppendEntry
	// TransactionTypeNumber is the upper bound of valid types.
	TransactionTypeNumber
)

// Bytes returns the big endian form of t.
func (t TransactionType) Bytes() (b []byte) {
	b = make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(t))
	return
}

// FromBytes is the inverse of TransactionType.Bytes.
func FromBytes(b []byte) TransactionType {
	return TransactionType(binary.BigEndian.Uint32(b))
}

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeCreateLedger:
		return "CreateLedger"
	case TransactionTypeRotateLedgerKey:
		return "RotateLedgerKey"
	case TransactionTypeAppendEntry:
		return "AppendEntry"
	case TransactionTypeNumber:
		return "Number"
	default:
		return "Unknown#" + strconv.Itoa(int(t))
	}
}

// Transaction is the interface implemented by an object that can be verified
// and applied by a ledger.
type Transaction interface {
	GetAccountAddress() proto.Address
	GetAccountNonce() AccountNonce
	GetLedgerID() proto.LedgerID
	GetTransactionType() TransactionType
	GetTimestamp() time.Time
	Hash() hash.Hash
	Sign(verifier.Signer) error
	Verify() error
}

// TransactionTypeMixin provide type heuristic features to transaction wrapper.
type TransactionTypeMixin struct {
	TxType    TransactionType
	Timestamp time.Time
}

// NewTransactionTypeMixin returns new instance.
func NewTransactionTypeMixin(txType TransactionType) *TransactionTypeMixin {
	return &TransactionTypeMixin{
		TxType:    txType,
		Timestamp: utils.NormalizeTime(time.Now()),
	}
}

// ContainsTransactionTypeMixin interface defines interface to detect transaction type mixin.
type ContainsTransactionTypeMixin interface {
	SetTransactionType(TransactionType)
}

// GetTransactionType implements Transaction.GetTransactionType.
func (m *TransactionTypeMixin) GetTransactionType() TransactionType {
	return m.TxType
}

// SetTransactionType is a helper function for derived types.
func (m *TransactionTypeMixin) SetTransactionType(t TransactionType) {
	m.TxType = t
}

// GetTimestamp implements Transaction.GetTimestamp.
func (m *TransactionTypeMixin) GetTimestamp() time.Time {
	return m.Timestamp
}

// SetTimestamp is a helper function for derived types.
func (m *TransactionTypeMixin) SetTimestamp(t time.Time) {
	m.Timestamp = t
}

// OwnerHeader is the part shared by every transaction header.
type OwnerHeader struct {
	Owner  proto.Address
	Ledger proto.LedgerID
	Nonce  AccountNonce
}

// GetAccountAddress implements Transaction.GetAccountAddress.
func (h *OwnerHeader) GetAccountAddress() proto.Address {
	return h.Owner
}

// GetAccountNonce implements Transaction.GetAccountNonce.
func (h *OwnerHeader) GetAccountNonce() AccountNonce {
	return h.Nonce
}

// GetLedgerID implements Transaction.GetLedgerID.
func (h *OwnerHeader) GetLedgerID() proto.LedgerID {
	return h.Ledger
}

// marshalHash stably encodes a header for hashing.
func marshalHash(header interface{}) ([]byte, error) {
	buf, err := utils.EncodeMsgPack(header)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// verifySender checks the signature of a header and that the recovered
// signer is the owner.
func verifySender(hsv *verifier.DefaultHashSignVerifierImpl, mh verifier.MarshalHasher, owner proto.Address) (err error) {
	if err = hsv.Verify(mh); err != nil {
		return
	}
	signer, err := hsv.Signer()
	if err != nil {
		return
	}
	if signer != owner {
		return ErrInvalidSender
	}
	return
}
