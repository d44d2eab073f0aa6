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

package hash

import (
	"bytes"
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize of array used to store hashes.  See Hash.
const HashSize = 32

// ErrHashStrSize describes an error that indicates the caller specified a hash
// string of the wrong length.
var ErrHashStrSize = errors.Errorf("hash string length should be %v characters", HashSize*2)

// Hash is a 32-byte digest, keccak256 for transactions and proofs.
type Hash [HashSize]byte

// String returns the hexadecimal string of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the hexadecimal string of the first `n` byte(s).
func (h Hash) Short(n int) string {
	var l = HashSize
	if n < l {
		l = n
	}
	return hex.EncodeToString(h[:l])
}

// AsBytes returns internal bytes of hash.
func (h Hash) AsBytes() []byte {
	return h[:]
}

// CloneBytes returns a copy of the bytes which represent the hash as a byte
// slice.
func (h *Hash) CloneBytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, h[:])
	return newHash
}

// IsEqual returns true if target is the same as hash.
func (h *Hash) IsEqual(target *Hash) bool {
	if h == nil && target == nil {
		return true
	}
	if h == nil || target == nil {
		return false
	}
	return bytes.Equal(h[:], target[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(input []byte) (err error) {
	var nh *Hash
	if nh, err = NewHashFromStr(string(input)); err != nil {
		return
	}
	*h = *nh
	return
}

// NewHashFromStr creates a Hash from a hash string.
func NewHashFromStr(s string) (h *Hash, err error) {
	if len(s) != HashSize*2 {
		return nil, ErrHashStrSize
	}
	var raw []byte
	if raw, err = hex.DecodeString(s); err != nil {
		return nil, errors.Wrap(err, "decode hash string failed")
	}
	h = new(Hash)
	copy(h[:], raw)
	return
}
