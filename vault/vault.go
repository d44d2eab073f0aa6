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

// Package vault implements the confidential key vault: it mints opaque
// handles for sealed pouch keys, tracks which addresses may reveal them, and
// re-encrypts the key to an ephemeral public key when shown a valid signed
// reveal assertion.
package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/eip712"
	"github.com/CovenantSQL/SecretLedger/crypto/hash"
	"github.com/CovenantSQL/SecretLedger/proto"
)

var (
	// ErrUnauthorized indicates a denied Allow or Reveal. It carries no
	// detail about which check failed.
	ErrUnauthorized = errors.New("vault: unauthorized")
	// ErrVaultUnavailable indicates the vault could not be reached. It is
	// retryable.
	ErrVaultUnavailable = errors.New("vault: unavailable")
	// ErrInvalidProof indicates an input proof not signed by the scope owner.
	ErrInvalidProof = errors.New("vault: invalid input proof")
	// ErrInvalidMaterial indicates encrypted material the vault cannot open.
	ErrInvalidMaterial = errors.New("vault: invalid key material")
	// ErrInvalidRequest indicates a malformed request.
	ErrInvalidRequest = errors.New("vault: invalid request")
)

// inputProofDomain separates input proofs from every other signed digest.
const inputProofDomain = "SecretLedger input proof"

// Scope names the owner and the ledger a key is minted for.
type Scope struct {
	Owner  proto.Address  `json:"owner" validate:"required"`
	Ledger proto.LedgerID `json:"ledger" validate:"required"`
}

// RevealRequest asks the vault to release the key of Handle to EphemeralKey.
type RevealRequest struct {
	Handle       proto.KeyHandle         `json:"handle" validate:"required"`
	Assertion    *eip712.RevealAssertion `json:"assertion" validate:"required"`
	Signature    hexutil.Bytes           `json:"signature" validate:"required,len=65"`
	EphemeralKey hexutil.Bytes           `json:"ephemeralKey" validate:"required"`
}

// Vault is the capability set of a confidential key vault.
type Vault interface {
	// PublicKey returns the key material must be encrypted to before Mint.
	PublicKey(ctx context.Context) (*ca.PublicKey, error)
	// Mint stores material encrypted to PublicKey and returns its handle.
	// The scope ledger is allowed on the new handle.
	Mint(ctx context.Context, scope Scope, encryptedMaterial, proof []byte) (proto.KeyHandle, error)
	// Allow lets grantee reveal handle. Only the ledger of the handle's
	// scope may grant, and only to the scope owner.
	Allow(ctx context.Context, handle proto.KeyHandle, caller, grantee proto.Address) error
	// Reveal returns the key material of handle encrypted to the ephemeral
	// public key of req.
	Reveal(ctx context.Context, req *RevealRequest) ([]byte, error)
}

// InputProofHash returns the digest an owner signs to bind encrypted material
// to a ledger: keccak256(domain || ledger || owner || keccak256(material)).
func InputProofHash(scope Scope, encryptedMaterial []byte) []byte {
	return hash.Keccak256B(
		[]byte(inputProofDomain),
		scope.Ledger.Bytes(),
		scope.Owner.Bytes(),
		hash.Keccak256B(encryptedMaterial),
	)
}

// VerifyInputProof checks that proof is the scope owner's signature of the
// input proof digest.
func VerifyInputProof(scope Scope, encryptedMaterial, proof []byte) error {
	signer, err := ca.Signature(proof).RecoverAddress(InputProofHash(scope, encryptedMaterial))
	if err != nil || signer != scope.Owner {
		return ErrInvalidProof
	}
	return nil
}
