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
	"github.com/pkg/errors"
)

var (
	// ErrAlreadyExists indicates a CreateLedger for an owner that already has a ledger.
	ErrAlreadyExists = errors.New("ledger already exists")
	// ErrNotFound indicates an operation on an owner without a ledger.
	ErrNotFound = errors.New("ledger not found")
	// ErrIndexOutOfBounds indicates an entry index beyond the entry count.
	ErrIndexOutOfBounds = errors.New("entry index out of bounds")
	// ErrInvalidAccountNonce indicates a transaction nonce that is not the next expected one.
	ErrInvalidAccountNonce = errors.New("invalid account nonce")
	// ErrInvalidSender indicates a transaction not signed by its owner.
	ErrInvalidSender = errors.New("transaction sender is not the owner")
	// ErrLedgerMismatch indicates a transaction addressed to another ledger.
	ErrLedgerMismatch = errors.New("transaction is addressed to another ledger")
	// ErrInvalidTransaction indicates a transaction with missing fields.
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrInvalidTransactionType represents an unregistered transaction type.
	ErrInvalidTransactionType = errors.New("invalid transaction type, can not instantiate transaction")
	// ErrTransactionRegistration represents invalid transaction object type being registered.
	ErrTransactionRegistration = errors.New("transaction register failed")
)
