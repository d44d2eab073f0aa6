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
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/utils"
)

const sealerInfo = "SecretLedger vault sealing key"

// errUnseal is returned for every unseal failure.
var errUnseal = errors.New("vault: unseal failed")

// sealer protects key material at rest with XChaCha20-Poly1305 under a key
// derived from the vault private key. The handle is bound as associated data
// so sealed blobs cannot be swapped between records.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(key *ca.PrivateKey) (s *sealer, err error) {
	secret := key.Serialize()
	defer utils.ZeroBytes(secret)
	sk := make([]byte, chacha20poly1305.KeySize)
	defer utils.ZeroBytes(sk)
	if _, err = io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealerInfo)), sk); err != nil {
		return nil, errors.Wrap(err, "derive sealing key failed")
	}
	s = &sealer{}
	if s.aead, err = chacha20poly1305.NewX(sk); err != nil {
		return nil, errors.Wrap(err, "create sealing aead failed")
	}
	return
}

// seal returns nonce||ciphertext.
func (s *sealer) seal(ad, plaintext []byte) (sealed []byte, err error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err = rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "generate sealing nonce failed")
	}
	return s.aead.Seal(nonce, nonce, plaintext, ad), nil
}

func (s *sealer) open(ad, sealed []byte) (plaintext []byte, err error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return nil, errUnseal
	}
	if plaintext, err = s.aead.Open(nil, sealed[:ns], sealed[ns:], ad); err != nil {
		return nil, errUnseal
	}
	return
}
