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

package asymmetric

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/proto"
)

// SignatureLength is the length of a recoverable signature.
const SignatureLength = crypto.SignatureLength

// ErrInvalidSignature indicates a signature that is malformed or does not
// recover to a public key.
var ErrInvalidSignature = errors.New("invalid signature")

// Signature is a recoverable secp256k1 signature in [R || S || V] form.
type Signature []byte

// Sign produces a recoverable signature of the 32-byte digest hash.
func (p *PrivateKey) Sign(hash []byte) (sig Signature, err error) {
	var raw []byte
	if raw, err = crypto.Sign(hash, p.ToECDSA()); err != nil {
		err = errors.Wrap(err, "sign digest failed")
		return
	}
	sig = Signature(raw)
	return
}

// RecoverPubKey returns the public key that produced s over hash.
func (s Signature) RecoverPubKey(hash []byte) (pub *PublicKey, err error) {
	if len(s) != SignatureLength {
		err = errors.Wrapf(ErrInvalidSignature, "unexpected length %d", len(s))
		return
	}
	raw := normalizeV(s)
	k, err := crypto.SigToPub(hash, raw)
	if err != nil {
		err = errors.Wrap(ErrInvalidSignature, err.Error())
		return
	}
	pub = (*PublicKey)(k)
	return
}

// RecoverAddress returns the address of the key that produced s over hash.
func (s Signature) RecoverAddress(hash []byte) (addr proto.Address, err error) {
	var pub *PublicKey
	if pub, err = s.RecoverPubKey(hash); err != nil {
		return
	}
	addr = pub.Address()
	return
}

// Verify reports whether s is a valid signature of hash by signee.
func (s Signature) Verify(hash []byte, signee *PublicKey) bool {
	pub, err := s.RecoverPubKey(hash)
	if err != nil {
		return false
	}
	return pub.IsEqual(signee)
}

// IsEqual returns true if two signatures are byte-identical.
func (s Signature) IsEqual(o Signature) bool {
	return bytes.Equal(s, o)
}

// normalizeV accepts both the {0, 1} and the {27, 28} V conventions.
func normalizeV(s Signature) []byte {
	raw := make([]byte, len(s))
	copy(raw, s)
	if raw[crypto.RecoveryIDOffset] >= 27 {
		raw[crypto.RecoveryIDOffset] -= 27
	}
	return raw
}
