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

// Package eip712 builds the typed-data reveal assertion a wallet signs to let
// the vault release pouch key material to an ephemeral public key.
package eip712

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/proto"
)

const (
	// DomainName is the EIP-712 domain name of reveal assertions.
	DomainName = "SecretLedger Reveal"
	// DomainVersion is the EIP-712 domain version of reveal assertions.
	DomainVersion = "1"
	// PrimaryType is the EIP-712 primary type of reveal assertions.
	PrimaryType = "RevealRequest"
)

// ErrInvalidAssertion indicates an assertion that cannot be encoded.
var ErrInvalidAssertion = errors.New("invalid reveal assertion")

// Domain binds an assertion to one chain and one vault.
type Domain struct {
	ChainID int64         `json:"chainId" yaml:"ChainID"`
	Vault   proto.Address `json:"vault" yaml:"Vault"`
}

// RevealAssertion authorizes the release of key material to PublicKey, for
// the ledgers in Scope, within [ValidFrom, ValidFrom+ValidDuration).
type RevealAssertion struct {
	PublicKey     hexutil.Bytes    `json:"publicKey"`
	Scope         []proto.LedgerID `json:"contractAddresses"`
	ValidFrom     uint64           `json:"startTimestamp"`
	ValidDuration uint64           `json:"durationSeconds"`
}

// NewRevealAssertion returns an assertion for pub starting at now.
func NewRevealAssertion(pub *ca.PublicKey, scope []proto.LedgerID, now time.Time, validity time.Duration) *RevealAssertion {
	return &RevealAssertion{
		PublicKey:     pub.Serialize(),
		Scope:         append([]proto.LedgerID(nil), scope...),
		ValidFrom:     uint64(now.Unix()),
		ValidDuration: uint64(validity / time.Second),
	}
}

// ValidAt reports whether t is inside the validity window.
func (a *RevealAssertion) ValidAt(t time.Time) bool {
	now := t.Unix()
	if now < 0 {
		return false
	}
	return a.ValidFrom <= uint64(now) && uint64(now) < a.ValidFrom+a.ValidDuration
}

// Covers reports whether the assertion scope names ledger.
func (a *RevealAssertion) Covers(ledger proto.LedgerID) bool {
	for _, l := range a.Scope {
		if l == ledger {
			return true
		}
	}
	return false
}

// Types are the EIP-712 type definitions of a reveal assertion.
var Types = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "publicKey", Type: "bytes"},
		{Name: "contractAddresses", Type: "address[]"},
		{Name: "startTimestamp", Type: "uint256"},
		{Name: "durationSeconds", Type: "uint256"},
	},
}

// TypedData returns the EIP-712 typed data of a under domain. Message values
// are strings so the typed data survives a JSON round trip to a wallet.
func TypedData(domain Domain, a *RevealAssertion) apitypes.TypedData {
	scope := make([]interface{}, 0, len(a.Scope))
	for _, l := range a.Scope {
		scope = append(scope, l.Hex())
	}
	return apitypes.TypedData{
		Types:       Types,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           math.NewHexOrDecimal256(domain.ChainID),
			VerifyingContract: domain.Vault.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         a.PublicKey.String(),
			"contractAddresses": scope,
			"startTimestamp":    strconv.FormatUint(a.ValidFrom, 10),
			"durationSeconds":   strconv.FormatUint(a.ValidDuration, 10),
		},
	}
}

// Hash returns the EIP-712 signing digest of typed data.
func Hash(td apitypes.TypedData) (digest []byte, err error) {
	if digest, _, err = apitypes.TypedDataAndHash(td); err != nil {
		err = errors.Wrap(ErrInvalidAssertion, err.Error())
	}
	return
}

// AssertionHash returns the EIP-712 signing digest of a under domain.
func AssertionHash(domain Domain, a *RevealAssertion) ([]byte, error) {
	return Hash(TypedData(domain, a))
}

// Recover returns the address that signed a under domain.
func Recover(domain Domain, a *RevealAssertion, sig ca.Signature) (signer proto.Address, err error) {
	var digest []byte
	if digest, err = AssertionHash(domain, a); err != nil {
		return
	}
	signer, err = sig.RecoverAddress(digest)
	return
}
