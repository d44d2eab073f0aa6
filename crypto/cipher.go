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

// Package crypto implements the public key envelope used to move key material
// between wallets, pouch clients and the vault.
package crypto

import (
	"crypto/rand"

	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
)

// ErrDecryptFailed indicates an envelope that cannot be opened with the given
// private key.
var ErrDecryptFailed = errors.New("envelope decryption failed")

// EncryptAndSign (inputPublicKey, inData) MAIN PROCEDURE:
//	1. ephemeral key pair on secp256k1
//	2. ECDH(ephemeral, inputPublicKey) expanded by the concat KDF
//	3. OutBytes := ephemeralPubKey + IV + AES-128-CTR(in) + HMAC-SHA-256
func EncryptAndSign(inputPublicKey *asymmetric.PublicKey, inData []byte) ([]byte, error) {
	pub := ecies.ImportECDSAPublic(inputPublicKey.ToECDSA())
	out, err := ecies.Encrypt(rand.Reader, pub, inData, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "ecies encrypt failed")
	}
	return out, nil
}

// DecryptAndCheck (inputPrivateKey, inData) MAIN PROCEDURE:
//	1. Verify the HMAC.
//	2. Decrypt the inData
func DecryptAndCheck(inputPrivateKey *asymmetric.PrivateKey, inData []byte) ([]byte, error) {
	priv := ecies.ImportECDSA(inputPrivateKey.ToECDSA())
	out, err := priv.Decrypt(inData, nil, nil)
	if err != nil {
		return nil, errors.Wrap(ErrDecryptFailed, err.Error())
	}
	return out, nil
}
