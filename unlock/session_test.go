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

package unlock

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/SecretLedger/crypto"
	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/eip712"
	"github.com/CovenantSQL/SecretLedger/crypto/symmetric"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/vault"
	"github.com/CovenantSQL/SecretLedger/wallet"
)

var testLedger = proto.LedgerID{0x1e, 0xd9, 0xe4}

// mintFor mints material for owner on v and allows the owner to reveal it.
func mintFor(v *vault.LocalVault, owner *ca.PrivateKey, material []byte) proto.KeyHandle {
	ctx := context.Background()
	pub, err := v.PublicKey(ctx)
	So(err, ShouldBeNil)
	enc, err := crypto.EncryptAndSign(pub, material)
	So(err, ShouldBeNil)
	scope := vault.Scope{Owner: owner.Address(), Ledger: testLedger}
	proof, err := owner.Sign(vault.InputProofHash(scope, enc))
	So(err, ShouldBeNil)
	h, err := v.Mint(ctx, scope, enc, proof)
	So(err, ShouldBeNil)
	So(v.Allow(ctx, h, testLedger, owner.Address()), ShouldBeNil)
	return h
}

// fakeRevealer returns material encrypted to the requested ephemeral key.
type fakeRevealer struct {
	material []byte
	block    chan struct{}
	err      error
}

func (f *fakeRevealer) Reveal(ctx context.Context, req *vault.RevealRequest) ([]byte, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	pub, err := ca.ParsePubKey(req.EphemeralKey)
	if err != nil {
		return nil, err
	}
	return crypto.EncryptAndSign(pub, f.material)
}

func newOwner() *ca.PrivateKey {
	key, _, err := ca.GenSecp256k1KeyPair()
	So(err, ShouldBeNil)
	return key
}

func TestSessionWithVault(t *testing.T) {
	Convey("Given a vault holding the owner key", t, func() {
		ctx := context.Background()
		vk := newOwner()
		v, err := vault.NewLocalVault(&vault.LocalConfig{Key: vk, ChainID: 1337})
		So(err, ShouldBeNil)
		defer v.Close()
		owner := newOwner()
		material := []byte("0123456789abcdef0123")
		h := mintFor(v, owner, material)

		s := NewSession(&Config{
			Wallet: wallet.NewLocal(owner, nil),
			Vault:  v,
			Domain: v.Domain(),
			Scope:  []proto.LedgerID{testLedger},
		})
		defer s.Close()
		So(s.State(), ShouldEqual, StateLocked)

		Convey("Unlock should make the key usable until Lock", func() {
			So(s.Unlock(ctx, h), ShouldBeNil)
			So(s.State(), ShouldEqual, StateUnlocked)
			So(s.ID(), ShouldNotBeEmpty)
			So(s.ExpiresAt().Sub(time.Now()), ShouldBeGreaterThan, 9*24*time.Hour)

			wire, err := s.Encrypt("hello")
			So(err, ShouldBeNil)
			plain, err := symmetric.Decrypt(material, wire)
			So(err, ShouldBeNil)
			So(plain, ShouldEqual, "hello")
			plain, err = s.Decrypt(wire)
			So(err, ShouldBeNil)
			So(plain, ShouldEqual, "hello")

			s.Lock()
			So(s.State(), ShouldEqual, StateLocked)
			_, err = s.Encrypt("x")
			So(err, ShouldEqual, ErrLocked)
			_, err = s.Decrypt(wire)
			So(err, ShouldEqual, ErrLocked)
			s.Lock()
		})

		Convey("Another owner's wallet should be denied", func() {
			other := NewSession(&Config{
				Wallet: wallet.NewLocal(newOwner(), nil),
				Vault:  v,
				Domain: v.Domain(),
				Scope:  []proto.LedgerID{testLedger},
			})
			So(other.Unlock(ctx, h), ShouldEqual, vault.ErrUnauthorized)
			So(other.State(), ShouldEqual, StateLocked)
		})

		Convey("An assertion outside the vault validity window should be denied", func() {
			past := NewSession(&Config{
				Wallet: wallet.NewLocal(owner, nil),
				Vault:  v,
				Domain: v.Domain(),
				Scope:  []proto.LedgerID{testLedger},
				Clock:  func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) },
			})
			So(past.Unlock(ctx, h), ShouldEqual, vault.ErrUnauthorized)
			So(past.State(), ShouldEqual, StateLocked)
		})

		Convey("A declined signature should leave the session locked", func() {
			declined := NewSession(&Config{
				Wallet: wallet.NewLocal(owner, func(context.Context, *wallet.Request) (bool, error) {
					return false, nil
				}),
				Vault:  v,
				Domain: v.Domain(),
				Scope:  []proto.LedgerID{testLedger},
			})
			So(declined.Unlock(ctx, h), ShouldEqual, wallet.ErrSignatureDeclined)
			So(declined.State(), ShouldEqual, StateLocked)
		})

		Convey("A closed session cannot be unlocked", func() {
			So(s.Close(), ShouldBeNil)
			So(s.Unlock(ctx, h), ShouldEqual, ErrSessionClosed)
		})
	})
}

func TestSession(t *testing.T) {
	Convey("Given a session over a fake vault", t, func() {
		ctx := context.Background()
		owner := newOwner()
		f := &fakeRevealer{material: []byte("0123456789abcdef0123")}
		cfg := &Config{
			Wallet: wallet.NewLocal(owner, nil),
			Vault:  f,
			Domain: eip712.Domain{ChainID: 1},
			Scope:  []proto.LedgerID{testLedger},
		}

		Convey("material of the wrong length should be rejected", func() {
			f.material = []byte("short")
			s := NewSession(cfg)
			So(s.Unlock(ctx, proto.KeyHandle{1}), ShouldEqual, ErrMalformedKeyMaterial)
			So(s.State(), ShouldEqual, StateLocked)
		})

		Convey("an unavailable vault should be reported", func() {
			f.err = vault.ErrVaultUnavailable
			s := NewSession(cfg)
			So(s.Unlock(ctx, proto.KeyHandle{1}), ShouldEqual, vault.ErrVaultUnavailable)
			So(s.State(), ShouldEqual, StateLocked)
		})

		Convey("the session should lock itself when the window ends", func() {
			cfg.Validity = 50 * time.Millisecond
			s := NewSession(cfg)
			defer s.Close()
			So(s.Unlock(ctx, proto.KeyHandle{1}), ShouldBeNil)
			So(s.State(), ShouldEqual, StateUnlocked)
			time.Sleep(200 * time.Millisecond)
			So(s.State(), ShouldEqual, StateLocked)
			_, err := s.Encrypt("x")
			So(err, ShouldEqual, ErrLocked)
		})

		Convey("cancellation while revealing should leave nothing behind", func() {
			defer leaktest.Check(t)()
			f.block = make(chan struct{})
			s := NewSession(cfg)
			cctx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- s.Unlock(cctx, proto.KeyHandle{1}) }()

			for s.State() != StateUnlocking {
				time.Sleep(time.Millisecond)
			}
			So(s.Unlock(ctx, proto.KeyHandle{1}), ShouldEqual, ErrUnlockInProgress)
			cancel()
			So(<-done, ShouldEqual, context.Canceled)
			So(s.State(), ShouldEqual, StateLocked)
			_, err := s.Encrypt("x")
			So(err, ShouldEqual, ErrLocked)
		})

		Convey("locking while unlocking should abandon the unlock", func() {
			f.block = make(chan struct{})
			s := NewSession(cfg)
			done := make(chan error, 1)
			go func() { done <- s.Unlock(ctx, proto.KeyHandle{1}) }()
			for s.State() != StateUnlocking {
				time.Sleep(time.Millisecond)
			}
			s.Lock()
			close(f.block)
			So(errors.Cause(<-done), ShouldEqual, ErrLocked)
			So(s.State(), ShouldEqual, StateLocked)
		})
	})
}
