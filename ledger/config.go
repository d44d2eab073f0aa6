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

// Package ledger implements the authoritative per-owner record of pouch keys
// and append-only ciphertext entries.
//
// Every mutation is a signed transaction verified against its owner, checked
// against the owner's account nonce, and persisted in a single leveldb batch
// before the in-memory state changes and a notification is published.
package ledger

import (
	"context"
	"time"

	"github.com/CovenantSQL/SecretLedger/chainbus"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/storage"
	"github.com/CovenantSQL/SecretLedger/vault"
)

const (
	// TopicCreated is published with a *types.Event after CreateLedger.
	TopicCreated = "ledger/created"
	// TopicRotated is published with a *types.Event after RotateLedgerKey.
	TopicRotated = "ledger/rotated"
	// TopicStored is published with a *types.Event after AppendEntry.
	TopicStored = "ledger/stored"
)

// KeyMinter is the part of the vault the ledger calls while applying key
// transactions.
type KeyMinter interface {
	Mint(ctx context.Context, scope vault.Scope, encryptedMaterial, proof []byte) (proto.KeyHandle, error)
	Allow(ctx context.Context, handle proto.KeyHandle, caller, grantee proto.Address) error
}

// Config is the ledger configuration.
type Config struct {
	ID      proto.LedgerID
	Storage *storage.Storage
	Vault   KeyMinter
	// Bus receives ledger notifications. A private bus is created when nil.
	Bus chainbus.Bus
	// Clock assigns entry and record timestamps. Defaults to time.Now.
	Clock func() time.Time
}
