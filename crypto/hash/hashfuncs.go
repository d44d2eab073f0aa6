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
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/crypto"
)

// HashBSize is the size of HashB.
const HashBSize = sha256.Size

// HashB calculates sha256(b) and returns the resulting bytes.
func HashB(b []byte) []byte {
	hash := sha256.Sum256(b)
	return hash[:]
}

// HashH calculates sha256(b) and returns the resulting bytes as a Hash.
func HashH(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// Keccak256B calculates keccak256 over the concatenation of data.
func Keccak256B(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// Keccak256H calculates keccak256 over the concatenation of data and returns
// it as a Hash.
func Keccak256H(data ...[]byte) Hash {
	return Hash(crypto.Keccak256Hash(data...))
}
