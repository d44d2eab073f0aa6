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
	"encoding/json"
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/utils"
)

var (
	txTypeMapping sync.Map
	txType        = reflect.TypeOf((*Transaction)(nil)).Elem()
	txWrapperType = reflect.TypeOf((*TransactionWrapper)(nil))
)

// TransactionWrapper is the wrapper for Transaction interface for serialization/deserialization purpose.
type TransactionWrapper struct {
	Transaction
}

// envelope is the msgpack form of a wrapped transaction: the type tag first so
// the concrete transaction can be instantiated before decoding the body.
type envelope struct {
	Type TransactionType
	Body []byte
}

// WrapTransaction wraps transaction in wrapper.
func WrapTransaction(tx Transaction) *TransactionWrapper {
	return &TransactionWrapper{
		Transaction: tx,
	}
}

// Unwrap returns transaction within wrapper.
func (w *TransactionWrapper) Unwrap() Transaction {
	return w.Transaction
}

// MarshalBinary encodes the wrapped transaction as a typed msgpack envelope.
func (w *TransactionWrapper) MarshalBinary() ([]byte, error) {
	if w == nil || w.Transaction == nil {
		return nil, errors.Wrap(ErrInvalidTransactionType, "nil transaction")
	}
	body, err := utils.EncodeMsgPack(w.Transaction)
	if err != nil {
		return nil, errors.Wrap(err, "encode transaction body failed")
	}
	buf, err := utils.EncodeMsgPack(&envelope{
		Type: w.GetTransactionType(),
		Body: body.Bytes(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode transaction envelope failed")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a typed msgpack envelope.
func (w *TransactionWrapper) UnmarshalBinary(data []byte) (err error) {
	var env envelope
	if err = utils.DecodeMsgPack(data, &env); err != nil {
		return errors.Wrap(err, "decode transaction envelope failed")
	}
	var tx Transaction
	if tx, err = NewTransaction(env.Type); err != nil {
		return
	}
	if err = utils.DecodeMsgPack(env.Body, tx); err != nil {
		return errors.Wrapf(err, "decode %s transaction failed", env.Type)
	}
	if tx.GetTransactionType() != env.Type {
		return errors.Wrapf(ErrInvalidTransactionType,
			"envelope type %s, body type %s", env.Type, tx.GetTransactionType())
	}
	w.Transaction = tx
	return
}

// MarshalJSON implements json.Marshaler interface.
func (w TransactionWrapper) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Transaction)
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (w *TransactionWrapper) UnmarshalJSON(data []byte) (err error) {
	// detect type from current bytes
	var typeDetector TransactionTypeMixin
	typeDetector.SetTransactionType(TransactionTypeNumber)

	if err = json.Unmarshal(data, &typeDetector); err != nil {
		err = errors.Wrap(err, "try decode transaction failed")
		return
	}

	txType := typeDetector.GetTransactionType()

	if txType == TransactionTypeNumber {
		err = errors.Wrapf(ErrInvalidTransactionType, "invalid tx type: %d", txType)
		return
	}

	if w.Transaction, err = NewTransaction(txType); err != nil {
		err = errors.Wrapf(err, "instantiate transaction type %s failed", txType.String())
		return
	}

	return json.Unmarshal(data, w.Transaction)
}

// EncodeTransaction is a shortcut of WrapTransaction(tx).MarshalBinary().
func EncodeTransaction(tx Transaction) ([]byte, error) {
	return WrapTransaction(tx).MarshalBinary()
}

// DecodeTransaction decodes a typed msgpack envelope into its transaction.
func DecodeTransaction(data []byte) (tx Transaction, err error) {
	var w TransactionWrapper
	if err = w.UnmarshalBinary(data); err != nil {
		return
	}
	tx = w.Unwrap()
	return
}

// RegisterTransaction registers transaction type to wrapper.
func RegisterTransaction(t TransactionType, tx Transaction) {
	if tx == nil {
		panic(ErrTransactionRegistration)
	}
	rt := reflect.TypeOf(tx)

	if rt == txWrapperType {
		panic(ErrTransactionRegistration)
	}

	txTypeMapping.Store(t, rt)
}

// NewTransaction instantiates new transaction object.
func NewTransaction(t TransactionType) (tx Transaction, err error) {
	var d interface{}
	var ok bool
	var rt reflect.Type

	if d, ok = txTypeMapping.Load(t); !ok {
		err = errors.Wrapf(ErrInvalidTransactionType, "transaction %s not registered", t)
		return
	}
	rt = d.(reflect.Type)

	if !rt.Implements(txType) || rt == txWrapperType {
		err = errors.Wrap(ErrInvalidTransactionType, "invalid transaction registered")
		return
	}

	var rv reflect.Value

	if rt.Kind() == reflect.Ptr {
		rv = reflect.New(rt.Elem())
	} else {
		rv = reflect.New(rt).Elem()
	}

	rawTx := rv.Interface()
	tx = rawTx.(Transaction)

	if txTypeAwareness, ok := rawTx.(ContainsTransactionTypeMixin); ok {
		txTypeAwareness.SetTransactionType(t)
	}

	return
}
