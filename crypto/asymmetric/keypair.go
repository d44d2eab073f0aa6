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
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/proto"
)

const (
	// PrivateKeyBytesLen defines the length in bytes of a serialized private key.
	PrivateKeyBytesLen = 32
	// PublicKeyBytesLen defines the length in bytes of an uncompressed public key.
	PublicKeyBytesLen = 65
	// PublicKeyCompressedLen defines the length in bytes of a compressed public key.
	PublicKeyCompressedLen = 33
)

var (
	// ErrInvalidPrivateKey indicates the private key bytes are not a valid secp256k1 scalar.
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrInvalidPublicKey indicates the public key bytes are not a valid curve point.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// PrivateKey wraps an ecdsa.PrivateKey on secp256k1.
type PrivateKey ecdsa.PrivateKey

// PublicKey wraps an ecdsa.PublicKey on secp256k1.
type PublicKey ecdsa.PublicKey

// GenSecp256k1KeyPair generates a new random key pair.
func GenSecp256k1KeyPair() (privateKey *PrivateKey, publicKey *PublicKey, err error) {
	var key *ecdsa.PrivateKey
	if key, err = crypto.GenerateKey(); err != nil {
		err = errors.Wrap(err, "generate secp256k1 key failed")
		return
	}
	privateKey = (*PrivateKey)(key)
	publicKey = privateKey.PubKey()
	return
}

// PrivKeyFromBytes returns the private key and its public key for the given
// 32-byte scalar.
func PrivKeyFromBytes(pk []byte) (privateKey *PrivateKey, publicKey *PublicKey, err error) {
	var key *ecdsa.PrivateKey
	if key, err = crypto.ToECDSA(pk); err != nil {
		err = errors.Wrap(ErrInvalidPrivateKey, err.Error())
		return
	}
	privateKey = (*PrivateKey)(key)
	publicKey = privateKey.PubKey()
	return
}

// ParsePubKey parses an uncompressed (65 bytes) or compressed (33 bytes)
// public key.
func ParsePubKey(raw []byte) (publicKey *PublicKey, err error) {
	var key *ecdsa.PublicKey
	switch len(raw) {
	case PublicKeyBytesLen:
		key, err = crypto.UnmarshalPubkey(raw)
	case PublicKeyCompressedLen:
		key, err = crypto.DecompressPubkey(raw)
	default:
		err = errors.Errorf("unexpected length %d", len(raw))
	}
	if err != nil {
		err = errors.Wrap(ErrInvalidPublicKey, err.Error())
		return
	}
	publicKey = (*PublicKey)(key)
	return
}

// ToECDSA returns the underlying ecdsa key.
func (p *PrivateKey) ToECDSA() *ecdsa.PrivateKey {
	return (*ecdsa.PrivateKey)(p)
}

// PubKey returns the public key of p.
func (p *PrivateKey) PubKey() *PublicKey {
	return (*PublicKey)(&p.PublicKey)
}

// Address returns the owner address of p.
func (p *PrivateKey) Address() proto.Address {
	return p.PubKey().Address()
}

// Serialize returns the 32-byte big-endian scalar of p.
func (p *PrivateKey) Serialize() []byte {
	return crypto.FromECDSA(p.ToECDSA())
}

// ToECDSA returns the underlying ecdsa key.
func (k *PublicKey) ToECDSA() *ecdsa.PublicKey {
	return (*ecdsa.PublicKey)(k)
}

// Serialize returns the 65-byte uncompressed form of k.
func (k *PublicKey) Serialize() []byte {
	return crypto.FromECDSAPub(k.ToECDSA())
}

// SerializeCompressed returns the 33-byte compressed form of k.
func (k *PublicKey) SerializeCompressed() []byte {
	return crypto.CompressPubkey(k.ToECDSA())
}

// Address returns the last 20 bytes of keccak256 over the uncompressed key.
func (k *PublicKey) Address() proto.Address {
	return proto.AddressFromCommon(crypto.PubkeyToAddress(*k.ToECDSA()))
}

// IsEqual reports whether two public keys are the same point.
func (k *PublicKey) IsEqual(o *PublicKey) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.X.Cmp(o.X) == 0 && k.Y.Cmp(o.Y) == 0
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (k *PublicKey) MarshalBinary() ([]byte, error) {
	return k.Serialize(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (k *PublicKey) UnmarshalBinary(raw []byte) (err error) {
	var pub *PublicKey
	if pub, err = ParsePubKey(raw); err != nil {
		return
	}
	*k = *pub
	return
}
