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

// Package symmetric implements the sl1 entry cipher: AES-256-GCM under a key
// derived from the unlocked pouch key material.
package symmetric

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/crypto/hash"
	"github.com/CovenantSQL/SecretLedger/utils"
)

const (
	// VersionTag prefixes every sl1 ciphertext.
	VersionTag = "sl1"
	// NonceSize is the GCM nonce length of sl1.
	NonceSize = 12
	// KeySize is the derived AES key length.
	KeySize = hash.HashBSize

	separator = ":"
)

var (
	// ErrUnsupportedFormat indicates a wire string that is not sl1.
	ErrUnsupportedFormat = errors.New("unsupported ciphertext format")
	// ErrDecryptionFailed indicates a sl1 string that cannot be opened with
	// the key. It carries no detail on purpose.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrWiped indicates use of a Cipher after Wipe.
	ErrWiped = errors.New("cipher key wiped")

	b64 = base64.StdEncoding.Strict()
)

// DeriveKey returns sha256(material), the AES-256 key of sl1.
func DeriveKey(material []byte) []byte {
	return hash.HashB(material)
}

// Encrypt seals plaintext under material with a fresh random nonce.
func Encrypt(material []byte, plaintext string) (string, error) {
	c, err := NewCipher(material)
	if err != nil {
		return "", err
	}
	defer c.Wipe()
	return c.Encrypt(plaintext)
}

// Decrypt opens a sl1 string produced under material.
func Decrypt(material []byte, wire string) (string, error) {
	c, err := NewCipher(material)
	if err != nil {
		return "", err
	}
	defer c.Wipe()
	return c.Decrypt(wire)
}

// Cipher holds the derived key of one pouch key material. It is safe for
// concurrent use.
type Cipher struct {
	sync.RWMutex
	key  []byte
	aead cipher.AEAD
}

// NewCipher derives the sl1 key from material. material itself is not
// retained.
func NewCipher(material []byte) (c *Cipher, err error) {
	key := DeriveKey(material)
	block, err := aes.NewCipher(key)
	if err != nil {
		utils.ZeroBytes(key)
		return nil, errors.Wrap(err, "init aes failed")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		utils.ZeroBytes(key)
		return nil, errors.Wrap(err, "init gcm failed")
	}
	return &Cipher{key: key, aead: aead}, nil
}

// Encrypt seals plaintext into "sl1:<b64 nonce>:<b64 ciphertext||tag>".
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	c.RLock()
	defer c.RUnlock()
	if c.aead == nil {
		return "", ErrWiped
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "read nonce failed")
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return strings.Join([]string{
		VersionTag,
		b64.EncodeToString(nonce),
		b64.EncodeToString(sealed),
	}, separator), nil
}

// Decrypt opens a sl1 string.
func (c *Cipher) Decrypt(wire string) (string, error) {
	parts := strings.Split(wire, separator)
	if len(parts) != 3 || parts[0] != VersionTag {
		return "", ErrUnsupportedFormat
	}
	nonce, err := b64.DecodeString(parts[1])
	if err != nil || len(nonce) != NonceSize {
		return "", ErrDecryptionFailed
	}
	sealed, err := b64.DecodeString(parts[2])
	if err != nil {
		return "", ErrDecryptionFailed
	}

	c.RLock()
	defer c.RUnlock()
	if c.aead == nil {
		return "", ErrWiped
	}
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// Wipe zeroes the derived key. The Cipher is unusable afterwards.
func (c *Cipher) Wipe() {
	c.Lock()
	defer c.Unlock()
	utils.ZeroBytes(c.key)
	c.key = nil
	c.aead = nil
}
