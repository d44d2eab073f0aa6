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

// Package client implements the pouch: the owner-side façade that creates and
// rotates the ledger key, unlocks it, and stores and lists encrypted entries.
package client

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ivpusic/grpool"
	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/CovenantSQL/SecretLedger/crypto"
	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/eip712"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/unlock"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/utils/trace"
	"github.com/CovenantSQL/SecretLedger/vault"
	"github.com/CovenantSQL/SecretLedger/wallet"
)

var (
	pouchSendSucc    = metrics.GetOrRegisterMeter("pouch-send-succ", nil)
	pouchSendFail    = metrics.GetOrRegisterMeter("pouch-send-fail", nil)
	pouchDecryptFail = metrics.GetOrRegisterMeter("pouch-decrypt-fail", nil)
)

// Ledger is the ledger a pouch talks to, in process or remote.
type Ledger interface {
	ID() proto.LedgerID
	NextNonce(ctx context.Context, owner proto.Address) (types.AccountNonce, error)
	GetKeyHandle(ctx context.Context, owner proto.Address) (proto.KeyHandle, error)
	EntryCount(ctx context.Context, owner proto.Address) (uint64, error)
	GetEntry(ctx context.Context, owner proto.Address, index uint64) (*types.Entry, error)
	GetEntries(ctx context.Context, owner proto.Address) ([]*types.Entry, error)
	Apply(ctx context.Context, tx types.Transaction) (*types.Receipt, error)
}

// KeyVault is the part of the vault a pouch uses directly.
type KeyVault interface {
	PublicKey(ctx context.Context) (*ca.PublicKey, error)
	Reveal(ctx context.Context, req *vault.RevealRequest) ([]byte, error)
}

// Config configures a Pouch.
type Config struct {
	Wallet wallet.Wallet
	Ledger Ledger
	Vault  KeyVault
	// Domain is the EIP-712 domain of the vault.
	Domain eip712.Domain
	// Validity of unlock sessions, defaults to unlock.DefaultValidity.
	Validity  time.Duration
	Workers   int
	CacheSize int
}

// Item is one listed entry. Exactly one of Plaintext and Err is meaningful.
type Item struct {
	Index      uint64    `json:"index"`
	CreatedAt  time.Time `json:"createdAt"`
	Ciphertext string    `json:"ciphertext"`
	Plaintext  string    `json:"plaintext,omitempty"`
	Err        error     `json:"-"`
}

// Pouch is the façade of one owner.
type Pouch struct {
	txMu    sync.Mutex
	owner   proto.Address
	wallet  wallet.Wallet
	ledger  Ledger
	vault   KeyVault
	session *unlock.Session
	cache   *lru.Cache
	pool    *grpool.Pool

	// closeMu is held for reading while List feeds the pool.
	closeMu sync.RWMutex
	closed  bool
}

// New returns a locked pouch.
func New(cfg *Config) (p *Pouch, err error) {
	if cfg.Wallet == nil || cfg.Ledger == nil || cfg.Vault == nil {
		return nil, errors.New("pouch requires a wallet, a ledger and a vault")
	}
	workers, cacheSize := cfg.Workers, cfg.CacheSize
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	p = &Pouch{
		owner:  cfg.Wallet.Address(),
		wallet: cfg.Wallet,
		ledger: cfg.Ledger,
		vault:  cfg.Vault,
		session: unlock.NewSession(&unlock.Config{
			Wallet:   cfg.Wallet,
			Vault:    cfg.Vault,
			Domain:   cfg.Domain,
			Scope:    []proto.LedgerID{cfg.Ledger.ID()},
			Validity: cfg.Validity,
		}),
	}
	if p.cache, err = lru.New(cacheSize); err != nil {
		return nil, errors.Wrap(err, "create entry cache failed")
	}
	p.pool = grpool.NewPool(workers, workers*4)
	return
}

// Owner returns the owner address of the pouch.
func (p *Pouch) Owner() proto.Address {
	return p.owner
}

// Session returns the unlock session of the pouch.
func (p *Pouch) Session() *unlock.Session {
	return p.session
}

// Close locks the pouch and stops its workers. It waits for a List that is
// decrypting; later calls fail with ErrClosed.
func (p *Pouch) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.session.Close()
	p.pool.Release()
	return nil
}

func (p *Pouch) isClosed() bool {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	return p.closed
}

// newKeyMaterial generates K, seals it to the vault and signs the input
// proof. K itself never leaves this function.
func (p *Pouch) newKeyMaterial(ctx context.Context) (enc, proof []byte, err error) {
	material := make([]byte, unlock.KeyMaterialSize)
	defer utils.ZeroBytes(material)
	if _, err = rand.Read(material); err != nil {
		err = errors.Wrap(err, "generate key material failed")
		return
	}
	pub, err := p.vault.PublicKey(ctx)
	if err != nil {
		return
	}
	if enc, err = crypto.EncryptAndSign(pub, material); err != nil {
		return
	}
	scope := vault.Scope{Owner: p.owner, Ledger: p.ledger.ID()}
	var sig ca.Signature
	if sig, err = p.wallet.SignHash(ctx, vault.InputProofHash(scope, enc)); err != nil {
		return
	}
	proof = sig
	return
}

// submit signs the transaction built for the next nonce and applies it.
func (p *Pouch) submit(ctx context.Context, build func(nonce types.AccountNonce) types.Transaction) (
	r *types.Receipt, err error,
) {
	nonce, err := p.ledger.NextNonce(ctx, p.owner)
	if err != nil {
		return
	}
	tx := build(nonce)
	if err = tx.Sign(wallet.Signer(ctx, p.wallet)); err != nil {
		return
	}
	return p.ledger.Apply(ctx, tx)
}

func (p *Pouch) changeKey(ctx context.Context, rotate bool) (r *types.Receipt, err error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	p.txMu.Lock()
	defer p.txMu.Unlock()

	enc, proof, err := p.newKeyMaterial(ctx)
	if err != nil {
		return
	}
	id := p.ledger.ID()
	return p.submit(ctx, func(nonce types.AccountNonce) types.Transaction {
		if rotate {
			return types.NewRotateLedgerKey(p.owner, id, nonce, enc, proof)
		}
		return types.NewCreateLedger(p.owner, id, nonce, enc, proof)
	})
}

// Create creates the owner's ledger with a fresh key.
func (p *Pouch) Create(ctx context.Context) (r *types.Receipt, err error) {
	if r, err = p.changeKey(ctx, false); err != nil {
		return
	}
	log.WithFields(log.Fields{"owner": p.owner.Hex(), "handle": r.Handle.Hex()}).Info("pouch created")
	return
}

// Rotate replaces the ledger key and locks the pouch. Entries written under
// the old key stay unreadable with the new one.
func (p *Pouch) Rotate(ctx context.Context) (r *types.Receipt, err error) {
	if r, err = p.changeKey(ctx, true); err != nil {
		return
	}
	p.session.Lock()
	log.WithFields(log.Fields{"owner": p.owner.Hex(), "handle": r.Handle.Hex()}).Info("pouch key rotated")
	return
}

// Unlock reveals the current key of the pouch.
func (p *Pouch) Unlock(ctx context.Context) (err error) {
	if p.isClosed() {
		return ErrClosed
	}
	h, err := p.ledger.GetKeyHandle(ctx, p.owner)
	if err != nil {
		return
	}
	return p.session.Unlock(ctx, h)
}

// Lock wipes the key material.
func (p *Pouch) Lock() {
	p.session.Lock()
}

// Unlocked reports whether the pouch holds key material.
func (p *Pouch) Unlocked() bool {
	return p.session.State() == unlock.StateUnlocked
}

// Send encrypts plaintext and appends it. It returns the entry index.
func (p *Pouch) Send(ctx context.Context, plaintext string) (index uint64, err error) {
	defer func() {
		if err != nil {
			pouchSendFail.Mark(1)
		} else {
			pouchSendSucc.Mark(1)
		}
	}()

	if p.isClosed() {
		err = ErrClosed
		return
	}
	wire, err := p.session.Encrypt(plaintext)
	if errors.Cause(err) == unlock.ErrLocked {
		err = ErrNotUnlocked
		return
	} else if err != nil {
		return
	}

	p.txMu.Lock()
	defer p.txMu.Unlock()
	r, err := p.submit(ctx, func(nonce types.AccountNonce) types.Transaction {
		return types.NewAppendEntry(p.owner, p.ledger.ID(), nonce, wire)
	})
	if err != nil {
		return
	}
	return r.Index, nil
}

// Count returns the number of entries of the owner.
func (p *Pouch) Count(ctx context.Context) (uint64, error) {
	return p.ledger.EntryCount(ctx, p.owner)
}

// entries returns raw entries [from, to), from the cache when possible.
func (p *Pouch) entries(ctx context.Context, from, to uint64) (out []*types.Entry, err error) {
	out = make([]*types.Entry, 0, to-from)
	for i := from; i < to; i++ {
		v, ok := p.cache.Get(i)
		if !ok {
			break
		}
		out = append(out, v.(*types.Entry))
	}
	if uint64(len(out)) == to-from {
		return
	}

	all, err := p.ledger.GetEntries(ctx, p.owner)
	if err != nil {
		return nil, err
	}
	if uint64(len(all)) < to {
		return nil, errors.Wrapf(types.ErrIndexOutOfBounds, "ledger returned %d entries, want %d", len(all), to)
	}
	out = out[:0]
	for _, e := range all[from:to] {
		p.cache.Add(e.Index, e)
		out = append(out, e)
	}
	return
}

// List returns the most recent limit entries in index order, all of them
// when limit <= 0. Each entry is decrypted independently: one failure is
// reported on its Item and never aborts the others.
func (p *Pouch) List(ctx context.Context, limit int) (items []*Item, err error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	if p.session.State() != unlock.StateUnlocked {
		return nil, ErrNotUnlocked
	}
	ctx, task := trace.NewTask(ctx, "pouch.List")
	defer task.End()
	count, err := p.ledger.EntryCount(ctx, p.owner)
	if err != nil {
		return
	}
	var from uint64
	if limit > 0 && uint64(limit) < count {
		from = count - uint64(limit)
	}
	var entries []*types.Entry
	trace.WithRegion(ctx, "fetch", func() { entries, err = p.entries(ctx, from, count) })
	if err != nil {
		return
	}
	trace.Logf(ctx, "pouch", "decrypting %d entries", len(entries))

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	items = make([]*Item, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		item := &Item{Index: e.Index, CreatedAt: e.CreatedAt, Ciphertext: e.Ciphertext}
		items[i] = item
		wg.Add(1)
		p.pool.JobQueue <- func() {
			defer wg.Done()
			if item.Plaintext, item.Err = p.session.Decrypt(item.Ciphertext); item.Err != nil {
				if errors.Cause(item.Err) == unlock.ErrLocked {
					item.Err = ErrNotUnlocked
				}
				pouchDecryptFail.Mark(1)
			}
		}
	}
	trace.WithRegion(ctx, "decrypt", wg.Wait)
	return
}
