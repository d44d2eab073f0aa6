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

// KeyMaterialHeader carries a freshly generated pouch key sealed to the vault
// input key, and the owner's proof binding it to (ledger, owner).
type KeyMaterialHeader struct {
	OwnerHeader
	EncryptedKey []byte
	Proof        []byte
}

// MarshalHash implements verifier.MarshalHasher.
func (h *KeyMaterialHeader) MarshalHash() ([]byte, error) {
	return marshalHash(h)
}

func (h *KeyMaterialHeader) validate() error {
	if h.Owner.IsZero() || len(h.EncryptedKey) == 0 || len(h.Proof) == 0 {
		return ErrInvalidTransaction
	}
	return nil
}

// CreateLedger creates the owner's ledger and mints its first key handle.
type CreateLedger struct {
	KeyMaterialHeader
	TransactionTypeMixin
	verifier.DefaultHashSignVerifierImpl
}

// NewCreateLedger returns new instance.
func NewCreateLedger(owner proto.Address, ledger proto.LedgerID, nonce AccountNonce, encryptedKey, proof []byte) *CreateLedger {
	return &CreateLedger{
		KeyMaterialHeader: KeyMaterialHeader{
			OwnerHeader:  OwnerHeader{Owner: owner, Ledger: ledger, Nonce: nonce},
			EncryptedKey: encryptedKey,
			Proof:        proof,
		},
		TransactionTypeMixin: *NewTransactionTypeMixin(TransactionTypeCreateLedger),
	}
}

// Sign implements Transaction.Sign.
func (t *CreateLedger) Sign(signer verifier.Signer) (err error) {
	return t.DefaultHashSignVerifierImpl.Sign(&t.KeyMaterialHeader, signer)
}

// Verify implements Transaction.Verify.
func (t *CreateLedger) Verify() (err error) {
	if err = t.validate(); err != nil {
		return
	}
	return verifySender(&t.DefaultHashSignVerifierImpl, &t.KeyMaterialHeader, t.Owner)
}

// RotateLedgerKey replaces the owner's key handle with a freshly minted one.
type RotateLedgerKey struct {
	KeyMaterialHeader
	TransactionTypeMixin
	verifier.DefaultHashSignVerifierImpl
}

// NewRotateLedgerKey returns new instance.
func NewRotateLedgerKey(owner proto.Address, ledger proto.LedgerID, nonce AccountNonce, encryptedKey, proof []byte) *RotateLedgerKey {
	return &RotateLedgerKey{
		KeyMaterialHeader: KeyMaterialHeader{
			OwnerHeader:  OwnerHeader{Owner: owner, Ledger: ledger, Nonce: nonce},
			EncryptedKey: encryptedKey,
			Proof:        proof,
		},
		TransactionTypeMixin: *NewTransactionTypeMixin(TransactionTypeRotateLedgerKey),
	}
}

// Sign implements Transaction.Sign.
func (t *RotateLedgerKey) Sign(signer verifier.Signer) (err error) {
	return t.DefaultHashSignVerifierImpl.Sign(&t.KeyMaterialHeader, signer)
}

// Verify implements Transaction.Verify.
func (t *RotateLedgerKey) Verify() (err error) {
	if err = t.validate(); err != nil {
		return
	}
	return verifySender(&t.DefaultHashSignVerifierImpl, &t.KeyMaterialHeader, t.Owner)
}

func init() {
	RegisterTransaction(TransactionTypeCreateLedger, (*CreateLedger)(nil))
	RegisterTransaction(TransactionTypeRotateLedgerKey, (*RotateLedgerKey)(nil))
}
