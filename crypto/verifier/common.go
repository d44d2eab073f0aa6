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

// Package verifier provides the hash-sign-verify part embedded in every
// ledger transaction. The signer is never stored; it is recovered from the
// signature.
package verifier

import (
	"github.com/pkg/errors"

	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/hash"
	"github.com/CovenantSQL/SecretLedger/proto"
)

var (
	// ErrHashValueNotMatch indicates the stored digest differs from the content.
	ErrHashValueNotMatch = errors.New("hash value not match")
	// ErrSignatureNotMatch indicates no signer can be recovered from the signature.
	ErrSignatureNotMatch = errors.New("signature not match")
)

// MarshalHasher is implemented by headers with a stable hashing encoding.
type MarshalHasher interface {
	MarshalHash() ([]byte, error)
}

// Signer produces a recoverable signature of a 32-byte digest.
type Signer interface {
	Sign(hash []byte) (ca.Signature, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(hash []byte) (ca.Signature, error)

// Sign implements Signer.Sign.
func (f SignerFunc) Sign(hash []byte) (ca.Signature, error) {
	return f(hash)
}

// DefaultHashSignVerifierImpl holds the keccak256 digest of a header and the
// owner's signature over it.
type DefaultHashSignVerifierImpl struct {
	DataHash  hash.Hash
	Signature ca.Signature
}

func digest(mh MarshalHasher) (h hash.Hash, err error) {
	enc, err := mh.MarshalHash()
	if err != nil {
		return
	}
	return hash.Keccak256H(enc), nil
}

// Hash returns the signed digest.
func (i *DefaultHashSignVerifierImpl) Hash() hash.Hash {
	return i.DataHash
}

// Sign digests mh and signs the digest with signer.
func (i *DefaultHashSignVerifierImpl) Sign(mh MarshalHasher, signer Signer) (err error) {
	if i.DataHash, err = digest(mh); err != nil {
		return
	}
	i.Signature, err = signer.Sign(i.DataHash[:])
	return
}

// Verify checks that the digest matches mh and that a signer is recoverable.
func (i *DefaultHashSignVerifierImpl) Verify(mh MarshalHasher) (err error) {
	h, err := digest(mh)
	if err != nil {
		return
	}
	if h != i.DataHash {
		return errors.WithStack(ErrHashValueNotMatch)
	}
	_, err = i.Signer()
	return
}

// Signer recovers the address that signed the digest.
func (i *DefaultHashSignVerifierImpl) Signer() (addr proto.Address, err error) {
	if addr, err = i.Signature.RecoverAddress(i.DataHash[:]); err != nil {
		err = errors.Wrap(ErrSignatureNotMatch, err.Error())
	}
	return
}
