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

package ledger

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/SecretLedger/chainbus"
	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/storage"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/vault"
)

var testLedgerID = proto.LedgerID{0x1e, 0xd9, 0xe4}

type fakeMinter struct {
	sync.Mutex
	next    byte
	minted  []vault.Scope
	allowed map[proto.KeyHandle][]proto.Address
	failErr error
}

func newFakeMinter() *fakeMinter {
	return &fakeMinter{allowed: make(map[proto.KeyHandle][]proto.Address)}
}

func (m *fakeMinter) Mint(ctx context.Context, scope vault.Scope, material, proof []byte) (h proto.KeyHandle, err error) {
	m.Lock()
	defer m.Unlock()
	if m.failErr != nil {
		return h, m.failErr
	}
	m.next++
	h[0] = m.next
	m.minted = append(m.minted, scope)
	return
}

func (m *fakeMinter) Allow(ctx context.Context, h proto.KeyHandle, caller, grantee proto.Address) error {
	m.Lock()
	defer m.Unlock()
	m.allowed[h] = append(m.allowed[h], grantee)
	return nil
}

type testOwner struct {
	key   *ca.PrivateKey
	nonce types.AccountNonce
}

func newTestOwner() *testOwner {
	key, _, err := ca.GenSecp256k1KeyPair()
	So(err, ShouldBeNil)
	return &testOwner{key: key}
}

func (o *testOwner) addr() proto.Address {
	return o.key.Address()
}

func (o *testOwner) sign(tx types.Transaction) types.Transaction {
	So(tx.Sign(o.key), ShouldBeNil)
	return tx
}

func (o *testOwner) create() types.Transaction {
	tx := types.NewCreateLedger(o.addr(), testLedgerID, o.nonce, []byte("sealed"), []byte("proof"))
	o.nonce++
	return o.sign(tx)
}

func (o *testOwner) rotate() types.Transaction {
	tx := types.NewRotateLedgerKey(o.addr(), testLedgerID, o.nonce, []byte("sealed2"), []byte("proof2"))
	o.nonce++
	return o.sign(tx)
}

func (o *testOwner) append(ct string) types.Transaction {
	tx := types.NewAppendEntry(o.addr(), testLedgerID, o.nonce, ct)
	o.nonce++
	return o.sign(tx)
}

func newTestChain(st *storage.Storage, m KeyMinter, bus chainbus.Bus) *Chain {
	var tick int64
	c, err := NewChain(&Config{
		ID:      testLedgerID,
		Storage: st,
		Vault:   m,
		Bus:     bus,
		Clock: func() time.Time {
			tick++
			return time.Unix(1700000000+tick, 0)
		},
	})
	So(err, ShouldBeNil)
	return c
}

func TestChain(t *testing.T) {
	Convey("Given an empty ledger", t, func() {
		ctx := context.Background()
		st, err := storage.NewMemStorage()
		So(err, ShouldBeNil)
		defer st.Close()
		m := newFakeMinter()
		c := newTestChain(st, m, nil)
		alice := newTestOwner()

		Convey("Unknown owners have no handle and no entries", func() {
			_, err := c.GetKeyHandle(ctx, alice.addr())
			So(err, ShouldEqual, types.ErrNotFound)
			_, err = c.GetKeyRecord(ctx, alice.addr())
			So(err, ShouldEqual, types.ErrNotFound)
			n, err := c.EntryCount(ctx, alice.addr())
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			_, err = c.GetEntry(ctx, alice.addr(), 0)
			So(err, ShouldEqual, types.ErrIndexOutOfBounds)
			So(c.ID(), ShouldEqual, testLedgerID)
		})

		Convey("Append and rotate before create should fail", func() {
			_, err := c.Apply(ctx, alice.append("x"))
			So(errors.Cause(err), ShouldEqual, types.ErrNotFound)
			alice.nonce = 0
			_, err = c.Apply(ctx, alice.rotate())
			So(errors.Cause(err), ShouldEqual, types.ErrNotFound)
		})

		Convey("Create should mint a handle and allow the owner", func() {
			r, err := c.Apply(ctx, alice.create())
			So(err, ShouldBeNil)
			So(r.Handle.IsZero(), ShouldBeFalse)
			So(r.Type, ShouldEqual, types.TransactionTypeCreateLedger)

			h, err := c.GetKeyHandle(ctx, alice.addr())
			So(err, ShouldBeNil)
			So(h, ShouldEqual, r.Handle)
			So(m.minted, ShouldResemble, []vault.Scope{{Owner: alice.addr(), Ledger: testLedgerID}})
			So(m.allowed[h], ShouldResemble, []proto.Address{alice.addr()})

			nonce, err := c.NextNonce(ctx, alice.addr())
			So(err, ShouldBeNil)
			So(nonce, ShouldEqual, 1)

			Convey("A second create should fail without changing state", func() {
				_, err := c.Apply(ctx, alice.create())
				So(errors.Cause(err), ShouldEqual, types.ErrAlreadyExists)
				h2, err := c.GetKeyHandle(ctx, alice.addr())
				So(err, ShouldBeNil)
				So(h2, ShouldEqual, h)
				nonce, _ := c.NextNonce(ctx, alice.addr())
				So(nonce, ShouldEqual, 1)
			})

			Convey("Appends should be dense and ordered", func() {
				for i, ct := range []string{"a", "b", "c"} {
					r, err := c.Apply(ctx, alice.append(ct))
					So(err, ShouldBeNil)
					So(r.Index, ShouldEqual, uint64(i))
				}
				n, err := c.EntryCount(ctx, alice.addr())
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				for i, ct := range []string{"a", "b", "c"} {
					e, err := c.GetEntry(ctx, alice.addr(), uint64(i))
					So(err, ShouldBeNil)
					So(e.Ciphertext, ShouldEqual, ct)
					So(e.Index, ShouldEqual, uint64(i))
				}
				_, err = c.GetEntry(ctx, alice.addr(), 3)
				So(err, ShouldEqual, types.ErrIndexOutOfBounds)

				all, err := c.GetEntries(ctx, alice.addr())
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 3)
				all[0].Ciphertext = "mutated"
				e, _ := c.GetEntry(ctx, alice.addr(), 0)
				So(e.Ciphertext, ShouldEqual, "a")
			})

			Convey("Replayed or skipped nonces should be rejected", func() {
				tx := alice.append("a")
				_, err := c.Apply(ctx, tx)
				So(err, ShouldBeNil)
				_, err = c.Apply(ctx, tx)
				So(errors.Cause(err), ShouldEqual, types.ErrInvalidAccountNonce)
				alice.nonce += 5
				_, err = c.Apply(ctx, alice.append("b"))
				So(errors.Cause(err), ShouldEqual, types.ErrInvalidAccountNonce)
			})

			Convey("Rotate should replace the handle and keep entries", func() {
				_, err := c.Apply(ctx, alice.append("old"))
				So(err, ShouldBeNil)
				r, err := c.Apply(ctx, alice.rotate())
				So(err, ShouldBeNil)
				So(r.Handle, ShouldNotEqual, h)
				rec, err := c.GetKeyRecord(ctx, alice.addr())
				So(err, ShouldBeNil)
				So(rec.Handle, ShouldEqual, r.Handle)
				So(rec.Rotations, ShouldEqual, 1)
				So(m.allowed[r.Handle], ShouldResemble, []proto.Address{alice.addr()})
				n, _ := c.EntryCount(ctx, alice.addr())
				So(n, ShouldEqual, 1)
			})

			Convey("Other owners cannot append to alice's record", func() {
				bob := newTestOwner()
				tx := types.NewAppendEntry(alice.addr(), testLedgerID, 1, "forged")
				So(tx.Sign(bob.key), ShouldBeNil)
				_, err := c.Apply(ctx, tx)
				So(errors.Cause(err), ShouldEqual, types.ErrInvalidSender)
			})
		})

		Convey("Transactions for another ledger should be rejected", func() {
			tx := types.NewCreateLedger(alice.addr(), proto.LedgerID{0x01}, 0, []byte("k"), []byte("p"))
			So(tx.Sign(alice.key), ShouldBeNil)
			_, err := c.Apply(ctx, tx)
			So(err, ShouldEqual, types.ErrLedgerMismatch)
		})

		Convey("A vault failure should leave no state", func() {
			m.failErr = vault.ErrVaultUnavailable
			_, err := c.Apply(ctx, alice.create())
			So(errors.Cause(err), ShouldEqual, vault.ErrVaultUnavailable)
			_, err = c.GetKeyHandle(ctx, alice.addr())
			So(err, ShouldEqual, types.ErrNotFound)
			nonce, _ := c.NextNonce(ctx, alice.addr())
			So(nonce, ShouldEqual, 0)
		})

		Convey("Concurrent creates should commit exactly once", func() {
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				ok, dups int
			)
			txs := make([]types.Transaction, 8)
			for i := range txs {
				alice.nonce = 0
				txs[i] = alice.create()
			}
			for _, tx := range txs {
				wg.Add(1)
				go func(tx types.Transaction) {
					defer wg.Done()
					_, err := c.Apply(ctx, tx)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						ok++
					} else if errors.Cause(err) == types.ErrAlreadyExists {
						dups++
					}
				}(tx)
			}
			wg.Wait()
			So(ok, ShouldEqual, 1)
			So(dups, ShouldEqual, len(txs)-1)
		})

		Convey("Notifications should be published after commit", func() {
			var (
				mu     sync.Mutex
				events []*types.Event
			)
			record := func(ev *types.Event) {
				mu.Lock()
				defer mu.Unlock()
				events = append(events, ev)
			}
			for _, topic := range []string{TopicCreated, TopicRotated, TopicStored} {
				So(c.Bus().Subscribe(topic, record), ShouldBeNil)
			}
			_, err := c.Apply(ctx, alice.create())
			So(err, ShouldBeNil)
			_, err = c.Apply(ctx, alice.append("x"))
			So(err, ShouldBeNil)
			_, err = c.Apply(ctx, alice.rotate())
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 3)
			So(events[0].Type, ShouldEqual, types.EventCreated)
			So(events[1].Type, ShouldEqual, types.EventStored)
			So(events[1].Index, ShouldEqual, 0)
			So(events[2].Type, ShouldEqual, types.EventRotated)
			So(events[2].Owner, ShouldEqual, alice.addr())
		})
	})
}

func TestChainReload(t *testing.T) {
	Convey("A ledger reopened from disk should restore its state", t, func() {
		ctx := context.Background()
		dir, err := ioutil.TempDir("", "ledger")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "ledger.db")

		st, err := storage.OpenStorage(path)
		So(err, ShouldBeNil)
		c := newTestChain(st, newFakeMinter(), nil)
		alice := newTestOwner()
		r, err := c.Apply(ctx, alice.create())
		So(err, ShouldBeNil)
		for _, ct := range []string{"hello", "world"} {
			_, err = c.Apply(ctx, alice.append(ct))
			So(err, ShouldBeNil)
		}
		So(st.Close(), ShouldBeNil)

		st, err = storage.OpenStorage(path)
		So(err, ShouldBeNil)
		defer st.Close()
		c = newTestChain(st, newFakeMinter(), nil)
		h, err := c.GetKeyHandle(ctx, alice.addr())
		So(err, ShouldBeNil)
		So(h, ShouldEqual, r.Handle)
		n, err := c.EntryCount(ctx, alice.addr())
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 2)
		e, err := c.GetEntry(ctx, alice.addr(), 1)
		So(err, ShouldBeNil)
		So(e.Ciphertext, ShouldEqual, "world")
		nonce, err := c.NextNonce(ctx, alice.addr())
		So(err, ShouldBeNil)
		So(nonce, ShouldEqual, 3)
		_, err = c.Apply(ctx, alice.append("again"))
		So(err, ShouldBeNil)
	})
}

// blockingMinter holds every Mint until release is closed.
type blockingMinter struct {
	*fakeMinter
	entered chan struct{}
	release chan struct{}
}

func (m *blockingMinter) Mint(ctx context.Context, scope vault.Scope, material, proof []byte) (proto.KeyHandle, error) {
	m.entered <- struct{}{}
	select {
	case <-m.release:
	case <-ctx.Done():
		return proto.KeyHandle{}, ctx.Err()
	}
	return m.fakeMinter.Mint(ctx, scope, material, proof)
}

type applyResult struct {
	r   *types.Receipt
	err error
}

func TestChainMintOutsideLock(t *testing.T) {
	Convey("Given a ledger whose vault is slow to mint", t, func() {
		ctx := context.Background()
		st, err := storage.NewMemStorage()
		So(err, ShouldBeNil)
		defer st.Close()
		m := &blockingMinter{
			fakeMinter: newFakeMinter(),
			entered:    make(chan struct{}, 2),
			release:    make(chan struct{}),
		}
		c := newTestChain(st, m, nil)

		alice := newTestOwner()
		aliceCreate := alice.create()
		close(m.release)
		_, err = c.Apply(ctx, aliceCreate)
		So(err, ShouldBeNil)
		<-m.entered
		_, err = c.Apply(ctx, alice.append("sl1:a:b"))
		So(err, ShouldBeNil)
		m.release = make(chan struct{})

		bob := newTestOwner()
		bobCreate := bob.create()
		aliceAppend := alice.append("sl1:c:d")

		apply := func(tx types.Transaction) <-chan applyResult {
			ch := make(chan applyResult, 1)
			go func() {
				r, err := c.Apply(ctx, tx)
				ch <- applyResult{r, err}
			}()
			return ch
		}

		Convey("reads and other owners' appends proceed while a create is minting", func() {
			pending := apply(bobCreate)
			<-m.entered

			counted := make(chan uint64, 1)
			go func() {
				n, _ := c.EntryCount(ctx, alice.addr())
				counted <- n
			}()
			select {
			case n := <-counted:
				So(n, ShouldEqual, 1)
			case <-time.After(5 * time.Second):
				So("EntryCount blocked by a pending mint", ShouldBeEmpty)
			}

			select {
			case res := <-apply(aliceAppend):
				So(res.err, ShouldBeNil)
				So(res.r.Index, ShouldEqual, 1)
			case <-time.After(5 * time.Second):
				So("append blocked by a pending mint", ShouldBeEmpty)
			}

			_, err := c.GetKeyHandle(ctx, bob.addr())
			So(err, ShouldEqual, types.ErrNotFound)

			close(m.release)
			res := <-pending
			So(res.err, ShouldBeNil)
			h, err := c.GetKeyHandle(ctx, bob.addr())
			So(err, ShouldBeNil)
			So(h, ShouldEqual, res.r.Handle)
		})

		Convey("of two racing creates exactly one commits", func() {
			first, second := apply(bobCreate), apply(bobCreate)
			<-m.entered
			<-m.entered
			close(m.release)

			results := []applyResult{<-first, <-second}
			var ok, exists int
			for _, res := range results {
				switch errors.Cause(res.err) {
				case nil:
					ok++
				case types.ErrAlreadyExists:
					exists++
				}
			}
			So(ok, ShouldEqual, 1)
			So(exists, ShouldEqual, 1)
			So(m.minted, ShouldHaveLength, 3)
			nonce, err := c.NextNonce(ctx, bob.addr())
			So(err, ShouldBeNil)
			So(nonce, ShouldEqual, 1)
		})
	})
}
