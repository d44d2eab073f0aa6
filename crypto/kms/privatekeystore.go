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

package kms

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"

	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/hash"
	"github.com/CovenantSQL/SecretLedger/crypto/symmetric"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
)

const (
	// SaltSize is the PBKDF2 salt length of a key file.
	SaltSize = 16
	// Iterations is the PBKDF2 iteration count of a key file.
	Iterations = 100000
	keyLength  = 32
)

var (
	// ErrNotKeyFile indicates specified key file is empty or malformed.
	ErrNotKeyFile = errors.New("private key file empty")
	// ErrHashNotMatch indicates specified key hash is wrong.
	ErrHashNotMatch = errors.New("private key hash not match")
	// ErrWrongPassword indicates the key file cannot be opened with the password.
	ErrWrongPassword = errors.New("wrong key file password")
)

func deriveMaterial(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, Iterations, keyLength, sha256.New)
}

// LoadPrivateKey loads private key from keyFilePath, and verifies the hash
// head.
func LoadPrivateKey(keyFilePath string, password []byte) (key *ca.PrivateKey, err error) {
	fileContent, err := os.ReadFile(keyFilePath)
	if err != nil {
		log.WithField("path", keyFilePath).WithError(err).Error("read key file failed")
		return nil, errors.Wrap(err, "read key file failed")
	}

	parts := strings.SplitN(strings.TrimSpace(string(fileContent)), ":", 2)
	if len(parts) != 2 {
		return nil, ErrNotKeyFile
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) != SaltSize {
		return nil, ErrNotKeyFile
	}

	material := deriveMaterial(password, salt)
	defer utils.ZeroBytes(material)
	plain, err := symmetric.Decrypt(material, parts[1])
	switch errors.Cause(err) {
	case nil:
	case symmetric.ErrUnsupportedFormat:
		return nil, ErrNotKeyFile
	default:
		return nil, ErrWrongPassword
	}

	decData, err := hex.DecodeString(plain)
	if err != nil || len(decData) != hash.HashBSize+ca.PrivateKeyBytesLen {
		log.Errorf("private key file size should be %d bytes", hash.HashBSize+ca.PrivateKeyBytesLen)
		return nil, ErrNotKeyFile
	}
	defer utils.ZeroBytes(decData)

	computedHash := hash.HashB(decData[hash.HashBSize:])
	if !bytes.Equal(computedHash, decData[:hash.HashBSize]) {
		return nil, ErrHashNotMatch
	}

	key, _, err = ca.PrivKeyFromBytes(decData[hash.HashBSize:])
	return
}

// SavePrivateKey saves private key with its hash on the head to keyFilePath,
// default perm is 0600.
func SavePrivateKey(keyFilePath string, key *ca.PrivateKey, password []byte) (err error) {
	salt := make([]byte, SaltSize)
	if _, err = io.ReadFull(rand.Reader, salt); err != nil {
		return errors.Wrap(err, "read salt failed")
	}

	serializedKey := key.Serialize()
	rawData := utils.ConcatAll(hash.HashB(serializedKey), serializedKey)
	defer utils.ZeroBytes(serializedKey)
	defer utils.ZeroBytes(rawData)

	material := deriveMaterial(password, salt)
	defer utils.ZeroBytes(material)
	encKey, err := symmetric.Encrypt(material, hex.EncodeToString(rawData))
	if err != nil {
		log.WithError(err).Error("encrypt private key failed")
		return
	}

	if err = os.MkdirAll(filepath.Dir(keyFilePath), 0700); err != nil {
		return errors.Wrap(err, "create key file dir failed")
	}
	return errors.Wrap(
		os.WriteFile(keyFilePath, []byte(hex.EncodeToString(salt)+":"+encKey+"\n"), 0600),
		"write key file failed")
}

// GeneratePrivateKey generates a new secp256k1 private key and saves it to
// keyFilePath.
func GeneratePrivateKey(keyFilePath string, password []byte) (key *ca.PrivateKey, err error) {
	if key, _, err = ca.GenSecp256k1KeyPair(); err != nil {
		return
	}
	if err = SavePrivateKey(keyFilePath, key, password); err != nil {
		key = nil
	}
	return
}
