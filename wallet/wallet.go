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

// Package wallet is the signing capability of a pouch owner.
package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/eip712"
	"github.com/CovenantSQL/SecretLedger/crypto/kms"
	"github.com/CovenantSQL/SecretLedger/crypto/verifier"
	"github.com/CovenantSQL/SecretLedger/proto"
)

// ErrSignatureDeclined indicates the owner refused to sign.
var ErrSignatureDeclined = errors.New("wallet: signature declined")

// RequestKind tells a confirmation prompt what is being signed.
type RequestKind int

const (
	// KindTransaction is a ledger transaction or input proof digest.
	KindTransaction RequestKind = iota
	// KindTypedData is an EIP-712 reveal assertion.
	KindTypedData
)

// Request is shown to a ConfirmFunc before signing.
type Request struct {
	Kind      RequestKind
	Digest    []byte
	TypedData *apitypes.TypedData
}

// ConfirmFunc asks the owner to approve a signature. It may block until the
// owner answers or ctx is done.
type ConfirmFunc func(ctx context.Context, req *Request) (bool, error)

// Wallet signs on behalf of one owner.
type Wallet interface {
	Address() proto.Address
	SignHash(ctx context.Context, digest []byte) (ca.Signature, error)
	SignTypedData(ctx context.Context, td apitypes.TypedData) (ca.Signature, error)
}

// Signer adapts w to a verifier.Signer bound to ctx.
func Signer(ctx context.Context, w Wallet) verifier.Signer {
	return verifier.SignerFunc(func(digest []byte) (ca.Signature, error) {
		return w.SignHash(ctx, digest)
	})
}

// Local is a Wallet holding the private key in process.
type Local struct {
	key     *ca.PrivateKey
	confirm ConfirmFunc
}

// NewLocal returns a wallet of key. A nil confirm approves every request.
func NewLocal(key *ca.PrivateKey, confirm ConfirmFunc) *Local {
	return &Local{key: key, confirm: confirm}
}

// OpenKeyFile loads an encrypted key file into a Local wallet.
func OpenKeyFile(path string, password []byte, confirm ConfirmFunc) (w *Local, err error) {
	key, err := kms.LoadPrivateKey(path, password)
	if err != nil {
		return
	}
	return NewLocal(key, confirm), nil
}

// Address implements Wallet.Address.
func (w *Local) Address() proto.Address {
	return w.key.Address()
}

func (w *Local) approve(ctx context.Context, req *Request) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	if w.confirm == nil {
		return
	}
	ok, err := w.confirm(ctx, req)
	if err != nil {
		return
	}
	if !ok {
		return ErrSignatureDeclined
	}
	return ctx.Err()
}

// SignHash implements Wallet.SignHash.
func (w *Local) SignHash(ctx context.Context, digest []byte) (sig ca.Signature, err error) {
	if err = w.approve(ctx, &Request{Kind: KindTransaction, Digest: digest}); err != nil {
		return
	}
	return w.key.Sign(digest)
}

// SignTypedData implements Wallet.SignTypedData.
func (w *Local) SignTypedData(ctx context.Context, td apitypes.TypedData) (sig ca.Signature, err error) {
	digest, err := eip712.Hash(td)
	if err != nil {
		return
	}
	if err = w.approve(ctx, &Request{Kind: KindTypedData, Digest: digest, TypedData: &td}); err != nil {
		return
	}
	return w.key.Sign(digest)
}
