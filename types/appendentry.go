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
	"github.com/CovenantSQL/SecretLedger/crypto/verifier"
	"github.com/CovenantSQL/SecretLedger/proto"
)

// AppendEntryHeader defines the append entry transaction header.
type AppendEntryHeader struct {
	OwnerHeader
	Ciphertext string
}

// MarshalHash implements verifier.MarshalHasher.
func (h *AppendEntryHeader) MarshalHash() ([]byte, error) {
	return marshalHash(h)
}

// AppendEntry appends one opaque ciphertext to the owner's ledger.
type AppendEntry struct {
	AppendEntryHeader
	TransactionTypeMixin
	verifier.DefaultHashSignVerifierImpl
}

// NewAppendEntry returns new instance.
func NewAppendEntry(owner proto.Address, ledger proto.LedgerID, nonce AccountNonce, ciphertext string) *AppendEntry {
	return &AppendEntry{
		AppendEntryHeader: AppendEntryHeader{
			OwnerHeader: OwnerHeader{Owner: owner, Ledger: ledger, Nonce: nonce},
			Ciphertext:  ciphertext,
		},
		TransactionTypeMixin: *NewTransactionTypeMixin(TransactionTypeAppendEntry),
	}
}

// Sign implements Transaction.Sign.
func (t *AppendEntry) Sign(signer verifier.Signer) (err error) {
	return t.DefaultHashSignVerifierImpl.Sign(&t.AppendEntryHeader, signer)
}

// Verify implements Transaction.Verify.
func (t *AppendEntry) Verify() (err error) {
	if t.Owner.IsZero() {
		return ErrInvalidTransaction
	}
	return verifySender(&t.DefaultHashSignVerifierImpl, &t.AppendEntryHeader, t.Owner)
}

func init() {
	RegisterTransaction(TransactionTypeAppendEntry, (*AppendEntry)(nil))
}
