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

// Package proto contains the identifiers shared by every SecretLedger component.
package proto

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

const (
	// AddressLength is the byte length of an Address.
	AddressLength = common.AddressLength
	// KeyHandleLength is the byte length of a KeyHandle.
	KeyHandleLength = 32
)

var (
	// ErrInvalidAddress indicates a malformed hex address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidKeyHandle indicates a malformed hex key handle.
	ErrInvalidKeyHandle = errors.New("invalid key handle")
)

// Address identifies an owner or a ledger: the last 20 bytes of the keccak256
// of a secp256k1 public key, or any address-shaped identifier.
type Address common.Address

// LedgerID is the address-shaped scope identifier of a ledger instance.
type LedgerID = Address

// AddressFromCommon converts a go-ethereum address.
func AddressFromCommon(a common.Address) Address {
	return Address(a)
}

// ParseAddress parses a 0x prefixed hex address.
func ParseAddress(s string) (a Address, err error) {
	if !common.IsHexAddress(s) {
		err = errors.Wrapf(ErrInvalidAddress, "parse %q", s)
		return
	}
	a = Address(common.HexToAddress(s))
	return
}

// Common returns the go-ethereum representation.
func (a Address) Common() common.Address {
	return common.Address(a)
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	return common.Address(a).Bytes()
}

// Hex returns the EIP-55 checksummed hex form.
func (a Address) Hex() string {
	return common.Address(a).Hex()
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return a.Hex()
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Less orders addresses bytewise.
func (a Address) Less(b Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(input []byte) (err error) {
	*a, err = ParseAddress(string(input))
	return
}

// KeyHandle is an opaque reference to key material held by a vault. It never
// carries plaintext.
type KeyHandle [KeyHandleLength]byte

// ParseKeyHandle parses a 0x prefixed hex key handle.
func ParseKeyHandle(s string) (h KeyHandle, err error) {
	var raw []byte
	if raw, err = hexutil.Decode(s); err != nil {
		err = errors.Wrapf(ErrInvalidKeyHandle, "parse %q: %v", s, err)
		return
	}
	if len(raw) != KeyHandleLength {
		err = errors.Wrapf(ErrInvalidKeyHandle, "parse %q: length %d", s, len(raw))
		return
	}
	copy(h[:], raw)
	return
}

// Hex returns the 0x prefixed hex form.
func (h KeyHandle) Hex() string {
	return hexutil.Encode(h[:])
}

// String implements fmt.Stringer.
func (h KeyHandle) String() string {
	return h.Hex()
}

// IsZero reports whether h is the zero handle.
func (h KeyHandle) IsZero() bool {
	return h == KeyHandle{}
}

// MarshalText implements encoding.TextMarshaler.
func (h KeyHandle) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *KeyHandle) UnmarshalText(input []byte) (err error) {
	*h, err = ParseKeyHandle(string(input))
	return
}
