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
	"sync"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/chainbus"
	"github.com/CovenantSQL/SecretLedger/metric"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/storage"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/utils/timer"
	"github.com/CovenantSQL/SecretLedger/utils/trace"
	"github.com/CovenantSQL/SecretLedger/vault"
)

// ErrNoVault indicates a key transaction applied to a ledger without a vault.
var ErrNoVault = errors.New("ledger has no vault configured")

// Chain is a single ledger instance.
type Chain struct {
	sync.RWMutex
	id    proto.LedgerID
	st    *storage.Storage
	vault KeyMinter
	bus   chainbus.Bus
	clock func() time.Time
	s     *state
}

// NewChain opens the ledger of cfg, reloading any persisted state.
func NewChain(cfg *Config) (c *Chain, err error) {
	if cfg == nil || cfg.Storage == nil {
		return nil, errors.New("ledger storage is required")
	}
	c = &Chain{
		id:    cfg.ID,
		st:    cfg.Storage,
		vault: cfg.Vault,
		bus:   cfg.Bus,
		clock: cfg.Clock,
		s:     newState(),
	}
	if c.bus == nil {
		c.bus = chainbus.New()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if err = loadState(c.st, c.s); err != nil {
		err = errors.Wrap(err, "load ledger state failed")
		return nil, err
	}
	for _, list := range c.s.entries {
		c.s.total += uint64(len(list))
	}
	metric.LedgerEntries.Set(float64(c.s.total))
	log.WithFields(log.Fields{
		"ledger":  c.id.Hex(),
		"records": len(c.s.records),
		"entries": c.s.total,
	}).Info("ledger loaded")
	return
}

// ID returns the ledger identifier.
func (c *Chain) ID() proto.LedgerID {
	return c.id
}

// Bus returns the notification bus of the ledger.
func (c *Chain) Bus() chainbus.Bus {
	return c.bus
}

// Apply verifies and commits tx. It returns a receipt on success; on failure
// no state is changed.
func (c *Chain) Apply(ctx context.Context, tx types.Transaction) (r *types.Receipt, err error) {
	if tx == nil {
		return nil, types.ErrInvalidTransaction
	}
	defer func() {
		metric.LedgerTransactions.WithLabelValues(
			tx.GetTransactionType().String(), metric.Result(err)).Inc()
	}()

	ctx, task := trace.NewTask(ctx, "ledger.Apply")
	defer task.End()
	tm := timer.NewTimer()

	trace.WithRegion(ctx, "verify", func() { err = tx.Verify() })
	tm.Add("verify")
	if err != nil {
		return
	}
	if tx.GetLedgerID() != c.id {
		err = types.ErrLedgerMismatch
		return
	}

	var ev *types.Event
	r, ev, err = c.applyTransaction(ctx, tx, tm)
	le := log.WithFields(log.Fields{
		"type":  tx.GetTransactionType(),
		"owner": tx.GetAccountAddress().Hex(),
		"nonce": tx.GetAccountNonce(),
	}).WithFields(tm.ToLogFields())
	if err != nil {
		le.WithError(err).Debug("apply transaction failed")
		return nil, err
	}
	le.Debug("transaction applied")
	c.publish(ev)
	return
}

// checkTransaction reports the precondition and nonce failures of tx against
// the current state. The caller holds the Chain lock.
func (c *Chain) checkTransaction(tx types.Transaction) (record *types.KeyRecord, err error) {
	owner := tx.GetAccountAddress()
	record, exists := c.s.loadRecord(owner)

	switch t := tx.(type) {
	case *types.CreateLedger:
		if exists {
			return nil, types.ErrAlreadyExists
		}
	case *types.RotateLedgerKey, *types.AppendEntry:
		if !exists {
			return nil, types.ErrNotFound
		}
	default:
		return nil, errors.Wrapf(types.ErrInvalidTransactionType, "unexpected transaction %T", t)
	}

	if next := c.s.nextNonce(owner); tx.GetAccountNonce() != next {
		return nil, errors.Wrapf(types.ErrInvalidAccountNonce,
			"owner %s expects nonce %d, got %d", owner.Hex(), next, tx.GetAccountNonce())
	}
	return
}

func keyMaterial(tx types.Transaction) *types.KeyMaterialHeader {
	switch t := tx.(type) {
	case *types.CreateLedger:
		return &t.KeyMaterialHeader
	case *types.RotateLedgerKey:
		return &t.KeyMaterialHeader
	}
	return nil
}

// applyTransaction mints the key handle of a key transaction without holding
// the Chain lock, then commits under the lock after checking tx again. A
// handle minted for a transaction that loses a race stays unreferenced.
func (c *Chain) applyTransaction(ctx context.Context, tx types.Transaction, tm *timer.Timer) (
	r *types.Receipt, ev *types.Event, err error,
) {
	owner := tx.GetAccountAddress()

	var handle proto.KeyHandle
	if km := keyMaterial(tx); km != nil {
		c.RLock()
		_, err = c.checkTransaction(tx)
		c.RUnlock()
		if err != nil {
			return
		}
		if handle, err = c.mintHandle(ctx, owner, km); err != nil {
			return
		}
		tm.Add("mint")
	}

	c.Lock()
	defer c.Unlock()
	tm.Add("lock")

	record, err := c.checkTransaction(tx)
	if err != nil {
		if !handle.IsZero() {
			log.WithFields(log.Fields{
				"owner":  owner.Hex(),
				"handle": handle.Hex(),
			}).Warning("minted key handle orphaned by a concurrent transaction")
		}
		return
	}

	now := utils.NormalizeTime(c.clock())
	r = &types.Receipt{
		TxHash: tx.Hash(),
		Type:   tx.GetTransactionType(),
		Owner:  owner,
		Nonce:  tx.GetAccountNonce(),
	}
	ev = &types.Event{
		Ledger: c.id,
		Owner:  owner,
		TxHash: r.TxHash,
		Time:   now,
	}
	sps := []storageProcedure{
		putNonce(owner, tx.GetAccountNonce()+1),
		putTx(tx),
	}

	var cb storageCallback
	switch t := tx.(type) {
	case *types.CreateLedger:
		nr := &types.KeyRecord{Owner: owner, Exists: true, Handle: handle, UpdatedAt: now}
		sps = append(sps, putRecord(nr))
		cb = func() { c.s.records[owner] = nr }
		r.Handle, ev.Type, ev.Handle = handle, types.EventCreated, handle
	case *types.RotateLedgerKey:
		nr := deepcopy.Copy(record).(*types.KeyRecord)
		nr.Handle = handle
		nr.Rotations++
		nr.UpdatedAt = now
		sps = append(sps, putRecord(nr))
		cb = func() { c.s.records[owner] = nr }
		r.Handle, ev.Type, ev.Handle = handle, types.EventRotated, handle
	case *types.AppendEntry:
		e := &types.Entry{
			Index:      c.s.entryCount(owner),
			CreatedAt:  now,
			Ciphertext: t.Ciphertext,
		}
		sps = append(sps, putEntry(owner, e), putCount(owner, e.Index+1))
		cb = func() {
			c.s.entries[owner] = append(c.s.entries[owner], e)
			c.s.total++
			metric.LedgerEntries.Set(float64(c.s.total))
		}
		r.Index, ev.Type, ev.Index = e.Index, types.EventStored, e.Index
	}

	region := trace.StartRegion(ctx, "store")
	err = store(c.st, sps, func() {
		cb()
		c.s.nonces[owner] = tx.GetAccountNonce() + 1
	})
	region.End()
	tm.Add("store")
	if err != nil {
		err = errors.Wrap(err, "commit transaction failed")
	}
	return
}

// mintHandle registers the sealed key of h with the vault and grants reveal
// to the owner. A handle minted here is orphaned if the commit fails later;
// it is never referenced by the ledger.
func (c *Chain) mintHandle(ctx context.Context, owner proto.Address, h *types.KeyMaterialHeader) (
	handle proto.KeyHandle, err error,
) {
	defer trace.StartRegion(ctx, "mint").End()
	if c.vault == nil {
		err = ErrNoVault
		return
	}
	scope := vault.Scope{Owner: owner, Ledger: c.id}
	if handle, err = c.vault.Mint(ctx, scope, h.EncryptedKey, h.Proof); err != nil {
		err = errors.Wrap(err, "mint key handle failed")
		return
	}
	if err = c.vault.Allow(ctx, handle, c.id, owner); err != nil {
		err = errors.Wrapf(err, "allow owner on handle %s failed", handle.Hex())
		return
	}
	return
}

func (c *Chain) publish(ev *types.Event) {
	var topic string
	switch ev.Type {
	case types.EventCreated:
		topic = TopicCreated
	case types.EventRotated:
		topic = TopicRotated
	case types.EventStored:
		topic = TopicStored
	default:
		return
	}
	c.bus.Publish(topic, ev)
}

// GetKeyHandle returns the current key handle of owner.
func (c *Chain) GetKeyHandle(ctx context.Context, owner proto.Address) (h proto.KeyHandle, err error) {
	c.RLock()
	defer c.RUnlock()
	r, ok := c.s.loadRecord(owner)
	if !ok {
		err = types.ErrNotFound
		return
	}
	return r.Handle, nil
}

// GetKeyRecord returns a copy of the key record of owner.
func (c *Chain) GetKeyRecord(ctx context.Context, owner proto.Address) (r *types.KeyRecord, err error) {
	c.RLock()
	defer c.RUnlock()
	o, ok := c.s.loadRecord(owner)
	if !ok {
		err = types.ErrNotFound
		return
	}
	return deepcopy.Copy(o).(*types.KeyRecord), nil
}

// EntryCount returns the number of entries of owner, 0 for unknown owners.
func (c *Chain) EntryCount(ctx context.Context, owner proto.Address) (uint64, error) {
	c.RLock()
	defer c.RUnlock()
	return c.s.entryCount(owner), nil
}

// GetEntry returns entry index of owner.
func (c *Chain) GetEntry(ctx context.Context, owner proto.Address, index uint64) (*types.Entry, error) {
	c.RLock()
	defer c.RUnlock()
	return c.s.entry(owner, index)
}

// GetEntries returns every entry of owner in index order.
func (c *Chain) GetEntries(ctx context.Context, owner proto.Address) ([]*types.Entry, error) {
	c.RLock()
	defer c.RUnlock()
	return c.s.copyEntries(owner), nil
}

// NextNonce returns the nonce the next transaction of owner must carry.
func (c *Chain) NextNonce(ctx context.Context, owner proto.Address) (types.AccountNonce, error) {
	c.RLock()
	defer c.RUnlock()
	return c.s.nextNonce(owner), nil
}

// CreateLedger applies a CreateLedger transaction.
func (c *Chain) CreateLedger(ctx context.Context, tx *types.CreateLedger) (*types.Receipt, error) {
	return c.Apply(ctx, tx)
}

// RotateLedgerKey applies a RotateLedgerKey transaction.
func (c *Chain) RotateLedgerKey(ctx context.Context, tx *types.RotateLedgerKey) (*types.Receipt, error) {
	return c.Apply(ctx, tx)
}

// AppendEntry applies an AppendEntry transaction.
func (c *Chain) AppendEntry(ctx context.Context, tx *types.AppendEntry) (*types.Receipt, error) {
	return c.Apply(ctx, tx)
}
