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

package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/symmetric"
	"github.com/CovenantSQL/SecretLedger/ledger"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/storage"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/unlock"
	"github.com/CovenantSQL/SecretLedger/vault"
	"github.com/CovenantSQL/SecretLedger/wallet"
)

var testLedgerID = proto.LedgerID{0x1e, 0xd9, 0xe4}

type testEnv struct {
	vault *vault.LocalVault
	chain *ledger.Chain
	st    *storage.Storage
}

func newTestEnv() *testEnv {
	vk, _, err := ca.GenSecp256k1KeyPair()
	So(err, ShouldBeNil)
	env := &testEnv{}
	env.vault, err = vault.NewLocalVault(&vault.LocalConfig{Key: vk, ChainID: 1337})
	So(err, ShouldBeNil)
	env.st, err = storage.NewMemStorage()
	So(err, ShouldBeNil)
	env.chain, err = ledger.NewChain(&ledger.Config{ID: testLedgerID, Storage: env.st, Vault: env.vault})
	So(err, ShouldBeNil)
	return env
}

func (env *testEnv) close() {
	env.st.Close()
	env.vault.Close()
}

func (env *testEnv) pouch(key *ca.PrivateKey) *Pouch {
	p, err := New(&Config{
		Wallet:  wallet.NewLocal(key, nil),
		Ledger:  env.chain,
		Vault:   env.vault,
		Domain:  env.vault.Domain(),
		Workers: 4,
	})
	So(err, ShouldBeNil)
	return p
}

func newKey() *ca.PrivateKey {
	key, _, err := ca.GenSecp256k1KeyPair()
	So(err, ShouldBeNil)
	return key
}

func plaintexts(items []*Item) (out []string) {
	for _, it := range items {
		So(it.Err, ShouldBeNil)
		out = append(out, it.Plaintext)
	}
	return
}

func TestPouch(t *testing.T) {
	Convey("Given a pouch on an in-process ledger", t, func() {
		ctx := context.Background()
		env := newTestEnv()
		defer env.close()
		owner := newKey()
		p := env.pouch(owner)
		defer p.Close()

		Convey("operations before create should fail", func() {
			So(errors.Cause(p.Unlock(ctx)), ShouldEqual, types.ErrNotFound)
			_, err := p.Send(ctx, "x")
			So(err, ShouldEqual, ErrNotUnlocked)
			_, err = p.List(ctx, 0)
			So(err, ShouldEqual, ErrNotUnlocked)
			n, err := p.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("a created pouch", func() {
			r, err := p.Create(ctx)
			So(err, ShouldBeNil)
			So(r.Handle.IsZero(), ShouldBeFalse)

			Convey("cannot be created twice", func() {
				_, err := p.Create(ctx)
				So(errors.Cause(err), ShouldEqual, types.ErrAlreadyExists)
			})

			Convey("stays locked until unlocked", func() {
				So(p.Unlocked(), ShouldBeFalse)
				_, err := p.Send(ctx, "hello")
				So(err, ShouldEqual, ErrNotUnlocked)
			})

			Convey("should round trip entries across rotation", func() {
				So(p.Unlock(ctx), ShouldBeNil)
				So(p.Unlocked(), ShouldBeTrue)

				idx, err := p.Send(ctx, "hello")
				So(err, ShouldBeNil)
				So(idx, ShouldEqual, 0)
				items, err := p.List(ctx, 0)
				So(err, ShouldBeNil)
				So(plaintexts(items), ShouldResemble, []string{"hello"})

				idx, err = p.Send(ctx, "world")
				So(err, ShouldBeNil)
				So(idx, ShouldEqual, 1)
				n, err := p.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				_, err = p.Rotate(ctx)
				So(err, ShouldBeNil)
				So(p.Unlocked(), ShouldBeFalse)
				So(p.Unlock(ctx), ShouldBeNil)

				idx, err = p.Send(ctx, "third")
				So(err, ShouldBeNil)
				So(idx, ShouldEqual, 2)

				items, err = p.List(ctx, 0)
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 3)
				for i, it := range items {
					So(it.Index, ShouldEqual, uint64(i))
				}
				So(items[0].Err, ShouldEqual, symmetric.ErrDecryptionFailed)
				So(items[1].Err, ShouldEqual, symmetric.ErrDecryptionFailed)
				So(items[2].Err, ShouldBeNil)
				So(items[2].Plaintext, ShouldEqual, "third")

				Convey("and list only the most recent entries", func() {
					items, err := p.List(ctx, 1)
					So(err, ShouldBeNil)
					So(items, ShouldHaveLength, 1)
					So(items[0].Index, ShouldEqual, 2)
					So(items[0].Plaintext, ShouldEqual, "third")
				})

				Convey("and lock on demand", func() {
					p.Lock()
					_, err := p.Send(ctx, "x")
					So(err, ShouldEqual, ErrNotUnlocked)
				})
			})

			Convey("should report bad entries per item", func() {
				So(p.Unlock(ctx), ShouldBeNil)
				_, err := p.Send(ctx, "good")
				So(err, ShouldBeNil)

				// append a foreign ciphertext directly
				nonce, err := env.chain.NextNonce(ctx, owner.Address())
				So(err, ShouldBeNil)
				tx := types.NewAppendEntry(owner.Address(), testLedgerID, nonce, "sl2:AAAA:BBBB")
				So(tx.Sign(owner), ShouldBeNil)
				_, err = env.chain.Apply(ctx, tx)
				So(err, ShouldBeNil)

				_, err = p.Send(ctx, "also good")
				So(err, ShouldBeNil)

				items, err := p.List(ctx, 0)
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 3)
				So(items[0].Plaintext, ShouldEqual, "good")
				So(items[1].Err, ShouldEqual, symmetric.ErrUnsupportedFormat)
				So(items[2].Plaintext, ShouldEqual, "also good")
			})

			Convey("another owner cannot read it", func() {
				So(p.Unlock(ctx), ShouldBeNil)
				_, err := p.Send(ctx, "secret")
				So(err, ShouldBeNil)

				mallory := env.pouch(newKey())
				defer mallory.Close()
				h, err := env.chain.GetKeyHandle(ctx, owner.Address())
				So(err, ShouldBeNil)
				So(mallory.Session().Unlock(ctx, h), ShouldEqual, vault.ErrUnauthorized)
			})
		})

		Convey("concurrent sends should get dense indices", func() {
			_, err := p.Create(ctx)
			So(err, ShouldBeNil)
			So(p.Unlock(ctx), ShouldBeNil)

			var wg sync.WaitGroup
			errs := make(chan error, 16)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := p.Send(ctx, "m")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				So(err, ShouldBeNil)
			}
			items, err := p.List(ctx, 0)
			So(err, ShouldBeNil)
			So(items, ShouldHaveLength, 16)
			for i, it := range items {
				So(it.Index, ShouldEqual, uint64(i))
				So(it.Plaintext, ShouldEqual, "m")
			}
		})
	})
}

func TestPouchClose(t *testing.T) {
	Convey("Closing a pouch should stop its workers and wipe its key", t, func() {
		defer leaktest.CheckTimeout(t, 5*time.Second)()
		ctx := context.Background()
		env := newTestEnv()
		defer env.close()
		p := env.pouch(newKey())
		_, err := p.Create(ctx)
		So(err, ShouldBeNil)
		So(p.Unlock(ctx), ShouldBeNil)
		So(p.Close(), ShouldBeNil)
		So(p.Close(), ShouldBeNil)
		So(p.Session().State(), ShouldEqual, unlock.StateLocked)

		_, err = p.List(ctx, 0)
		So(err, ShouldEqual, ErrClosed)
		_, err = p.Send(ctx, "late")
		So(err, ShouldEqual, ErrClosed)
		So(p.Unlock(ctx), ShouldEqual, ErrClosed)
		_, err = p.Rotate(ctx)
		So(err, ShouldEqual, ErrClosed)
		_, err = p.Create(ctx)
		So(err, ShouldEqual, ErrClosed)
	})

	Convey("Closing a pouch while lists are decrypting should not strand them", t, func() {
		ctx := context.Background()
		env := newTestEnv()
		defer env.close()
		p, err := New(&Config{
			Wallet:  wallet.NewLocal(newKey(), nil),
			Ledger:  env.chain,
			Vault:   env.vault,
			Domain:  env.vault.Domain(),
			Workers: 1,
		})
		So(err, ShouldBeNil)
		_, err = p.Create(ctx)
		So(err, ShouldBeNil)
		So(p.Unlock(ctx), ShouldBeNil)
		for i := 0; i < 16; i++ {
			_, err = p.Send(ctx, "entry")
			So(err, ShouldBeNil)
		}

		const lists = 8
		done := make(chan error, lists)
		start := make(chan struct{})
		for i := 0; i < lists; i++ {
			go func() {
				<-start
				_, err := p.List(ctx, 0)
				done <- err
			}()
		}
		close(start)
		So(p.Close(), ShouldBeNil)

		for i := 0; i < lists; i++ {
			select {
			case err := <-done:
				if err != nil {
					So(err, ShouldBeIn, []error{ErrClosed, ErrNotUnlocked})
				}
			case <-time.After(10 * time.Second):
				So("List blocked after Close", ShouldBeEmpty)
			}
		}
	})
}

func TestDSN(t *testing.T) {
	Convey("DSN should round trip options", t, func() {
		o := NewOptions()
		o.LedgerEndpoint = "http://127.0.0.1:4661"
		o.VaultEndpoint = "http://127.0.0.1:4662"
		o.Workers = 2
		o.Validity = time.Hour
		o.Debug = true

		parsed, err := ParseDSN(o.FormatDSN())
		So(err, ShouldBeNil)
		So(parsed, ShouldResemble, o)

		parsed, err = ParseDSN("secretledger://ledger.example:443?tls=true")
		So(err, ShouldBeNil)
		So(parsed.LedgerEndpoint, ShouldEqual, "https://ledger.example:443")
		So(parsed.VaultEndpoint, ShouldEqual, parsed.LedgerEndpoint)
		So(parsed.Workers, ShouldEqual, DefaultWorkers)

		_, err = ParseDSN("mysql://x")
		So(err, ShouldNotBeNil)
		_, err = ParseDSN("secretledger://x?workers=zero")
		So(err, ShouldNotBeNil)
		_, err = ParseDSN("secretledger://x?validity=forever")
		So(err, ShouldNotBeNil)
	})
}
