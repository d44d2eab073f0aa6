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

package types

import (
	"time"

	"github.com/CovenantSQL/SecretLedger/crypto/hash"
	"github.com/CovenantSQL/SecretLedger/proto"
)

// KeyRecord is the per-owner key state of a ledger. Handle is meaningful only
// when Exists.
type KeyRecord struct {
	Owner     proto.Address   `json:"owner"`
	Exists    bool            `json:"exists"`
	Handle    proto.KeyHandle `json:"handle"`
	Rotations uint64          `json:"rotations"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Entry is one append-only ciphertext of an owner. Index is dense and
// 0-based, CreatedAt is assigned by the ledger clock.
type Entry struct {
	Index      uint64    `json:"index"`
	CreatedAt  time.Time `json:"createdAt"`
	Ciphertext string    `json:"ciphertext"`
}

// EventType classifies ledger notifications.
type EventType string

const (
	// EventCreated is published after a CreateLedger commit.
	EventCreated EventType = "created"
	// EventRotated is published after a RotateLedgerKey commit.
	EventRotated EventType = "rotated"
	// EventStored is published after an AppendEntry commit.
	EventStored EventType = "stored"
)

// Event is the payload of a ledger notification.
type Event struct {
	Type   EventType       `json:"type"`
	Ledger proto.LedgerID  `json:"ledger"`
	Owner  proto.Address   `json:"owner"`
	Handle proto.KeyHandle `json:"handle,omitempty"`
	Index  uint64          `json:"index,omitempty"`
	TxHash hash.Hash       `json:"txHash"`
	Time   time.Time       `json:"time"`
}

// Receipt reports the outcome of an applied transaction.
type Receipt struct {
	TxHash hash.Hash       `json:"txHash"`
	Type   TransactionType `json:"type"`
	Owner  proto.Address   `json:"owner"`
	Nonce  AccountNonce    `json:"nonce"`
	Handle proto.KeyHandle `json:"handle,omitempty"`
	Index  uint64          `json:"index,omitempty"`
}
