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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/CovenantSQL/SecretLedger/crypto"
	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/eip712"
	"github.com/CovenantSQL/SecretLedger/crypto/hash"
	"github.com/CovenantSQL/SecretLedger/metric"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
)

// DefaultMaxRevealValidity bounds the validity window a reveal assertion may
// claim.
const DefaultMaxRevealValidity = 365 * 24 * time.Hour

var (
	vaultMintSucc   = metrics.GetOrRegisterMeter("vault-mint-succ", nil)
	vaultMintFail   = metrics.GetOrRegisterMeter("vault-mint-fail", nil)
	vaultRevealSucc = metrics.GetOrRegisterMeter("vault-reveal-succ", nil)
	vaultRevealFail = metrics.GetOrRegisterMeter("vault-reveal-fail", nil)
)

// LocalConfig configures a LocalVault.
type LocalConfig struct {
	// Key is the vault private key. Material is encrypted to its public key
	// before Mint, and the at-rest sealing key is derived from it.
	Key *ca.PrivateKey
	// ChainID is the EIP-712 domain chain id of reveal assertions.
	ChainID int64
	// Dir is the badger directory; empty keeps records in memory.
	Dir string
	// MaxRevealValidity defaults to DefaultMaxRevealValidity.
	MaxRevealValidity time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// LocalVault is an in-process Vault.
type LocalVault struct {
	mu          sync.Mutex
	key         *ca.PrivateKey
	domain      eip712.Domain
	maxValidity time.Duration
	clock       func() time.Time
	sealer      *sealer
	store       *store
}

// NewLocalVault opens a vault from cfg.
func NewLocalVault(cfg *LocalConfig) (v *LocalVault, err error) {
	if cfg == nil || cfg.Key == nil {
		return nil, errors.New("vault key is required")
	}
	v = &LocalVault{
		key:         cfg.Key,
		domain:      eip712.Domain{ChainID: cfg.ChainID, Vault: cfg.Key.Address()},
		maxValidity: cfg.MaxRevealValidity,
		clock:       cfg.Clock,
	}
	if v.maxValidity <= 0 {
		v.maxValidity = DefaultMaxRevealValidity
	}
	if v.clock == nil {
		v.clock = time.Now
	}
	if v.sealer, err = newSealer(cfg.Key); err != nil {
		return nil, err
	}
	if v.store, err = openStore(cfg.Dir); err != nil {
		return nil, err
	}
	n, _ := v.store.count()
	log.WithFields(log.Fields{
		"vault":   v.domain.Vault.Hex(),
		"chainID": cfg.ChainID,
		"records": n,
	}).Info("vault opened")
	return
}

// Domain returns the EIP-712 domain reveal assertions must be signed under.
func (v *LocalVault) Domain() eip712.Domain {
	return v.domain
}

// Close closes the record store.
func (v *LocalVault) Close() error {
	return v.store.close()
}

// PublicKey implements Vault.PublicKey.
func (v *LocalVault) PublicKey(ctx context.Context) (*ca.PublicKey, error) {
	return v.key.PubKey(), nil
}

// Mint implements Vault.Mint.
func (v *LocalVault) Mint(ctx context.Context, scope Scope, encryptedMaterial, proof []byte) (
	h proto.KeyHandle, err error,
) {
	defer func() {
		metric.VaultOperations.WithLabelValues("mint", metric.Result(err)).Inc()
		if err != nil {
			vaultMintFail.Mark(1)
		} else {
			vaultMintSucc.Mark(1)
		}
	}()

	if scope.Owner.IsZero() || scope.Ledger.IsZero() || len(encryptedMaterial) == 0 {
		err = ErrInvalidRequest
		return
	}
	if err = VerifyInputProof(scope, encryptedMaterial, proof); err != nil {
		return
	}
	material, err := crypto.DecryptAndCheck(v.key, encryptedMaterial)
	if err != nil || len(material) == 0 {
		err = ErrInvalidMaterial
		return
	}
	defer utils.ZeroBytes(material)

	id := uuid.New()
	h = proto.KeyHandle(hash.Keccak256H(scope.Ledger.Bytes(), scope.Owner.Bytes(), id[:]))
	r := &keyRecord{
		Handle:    h,
		Scope:     scope,
		CreatedAt: v.clock().Unix(),
	}
	if r.Sealed, err = v.sealer.seal(h[:], material); err != nil {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err = v.store.insert(r); err != nil {
		err = errors.Wrap(err, "store key record failed")
		return
	}
	log.WithFields(log.Fields{
		"handle": h.Hex(),
		"owner":  scope.Owner.Hex(),
		"ledger": scope.Ledger.Hex(),
	}).Debug("key minted")
	return
}

// Allow implements Vault.Allow.
func (v *LocalVault) Allow(ctx context.Context, h proto.KeyHandle, caller, grantee proto.Address) (err error) {
	defer func() {
		metric.VaultOperations.WithLabelValues("allow", metric.Result(err)).Inc()
	}()

	if grantee.IsZero() {
		return ErrInvalidRequest
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	r, err := v.store.get(h)
	if err == errRecordNotFound {
		return ErrUnauthorized
	} else if err != nil {
		return
	}
	if caller != r.Scope.Ledger || grantee != r.Scope.Owner {
		return ErrUnauthorized
	}
	if r.allows(grantee) {
		return
	}
	r.Allowed = append(r.Allowed, grantee)
	return v.store.put(r)
}

// Reveal implements Vault.Reveal.
func (v *LocalVault) Reveal(ctx context.Context, req *RevealRequest) (out []byte, err error) {
	defer func() {
		metric.VaultOperations.WithLabelValues("reveal", metric.Result(err)).Inc()
		if err != nil {
			vaultRevealFail.Mark(1)
		} else {
			vaultRevealSucc.Mark(1)
		}
	}()

	if req == nil || req.Assertion == nil || len(req.Signature) != ca.SignatureLength {
		err = ErrInvalidRequest
		return
	}
	ephemeral, err := ca.ParsePubKey(req.EphemeralKey)
	if err != nil {
		err = ErrInvalidRequest
		return
	}

	var r *keyRecord
	if r, err = v.store.get(req.Handle); err == errRecordNotFound {
		err = ErrUnauthorized
		return
	} else if err != nil {
		return
	}
	if err = v.authorize(r, req, ephemeral); err != nil {
		log.WithField("handle", req.Handle.Hex()).WithError(err).Debug("reveal denied")
		err = ErrUnauthorized
		return
	}

	material, err := v.sealer.open(req.Handle[:], r.Sealed)
	if err != nil {
		return
	}
	defer utils.ZeroBytes(material)
	return crypto.EncryptAndSign(ephemeral, material)
}

// authorize returns the reason req may not reveal r. The reason is only
// logged; callers see ErrUnauthorized.
func (v *LocalVault) authorize(r *keyRecord, req *RevealRequest, ephemeral *ca.PublicKey) error {
	a := req.Assertion
	signer, err := eip712.Recover(v.domain, a, ca.Signature(req.Signature))
	if err != nil {
		return err
	}
	if signer == r.Scope.Ledger || !r.allows(signer) {
		return errors.Errorf("signer %s not allowed", signer.Hex())
	}
	assertedKey, err := ca.ParsePubKey(a.PublicKey)
	if err != nil || !assertedKey.IsEqual(ephemeral) {
		return errors.New("assertion key does not match ephemeral key")
	}
	if a.ValidDuration > uint64(v.maxValidity/time.Second) {
		return errors.New("assertion validity too long")
	}
	if !a.ValidAt(v.clock()) {
		return errors.New("assertion expired or not yet valid")
	}
	if !a.Covers(r.Scope.Ledger) {
		return errors.New("assertion scope does not cover ledger")
	}
	return nil
}
