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

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/CovenantSQL/SecretLedger/proto"
)

// CodeLedgerError is the JSON-RPC error code of a failed ledger call. The
// error data carries the same string code as the HTTP API.
const CodeLedgerError = -32000

type paramsKey struct{}

type jsonrpcHandlerFunc func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (interface{}, error)

// validator is implemented by params structs that check themselves.
type validator interface {
	Validate() error
}

// JSONRPCHandler serves the read only ledger methods on an events connection.
type JSONRPCHandler struct {
	methods map[string]jsonrpcHandlerFunc
}

// NewJSONRPCHandler returns a handler with the ledger methods of chain
// registered.
func NewJSONRPCHandler(chain Ledger) *JSONRPCHandler {
	h := &JSONRPCHandler{methods: make(map[string]jsonrpcHandlerFunc)}
	h.registerMethod("ledger_id", func(ctx context.Context, _ *jsonrpc2.Conn, _ *jsonrpc2.Request) (interface{}, error) {
		return chain.ID(), nil
	}, nil)
	h.registerMethod("ledger_nonce", func(ctx context.Context, _ *jsonrpc2.Conn, _ *jsonrpc2.Request) (interface{}, error) {
		p := ctx.Value(paramsKey{}).(*ownerParams)
		return chain.NextNonce(ctx, p.Owner)
	}, ownerParams{})
	h.registerMethod("ledger_record", func(ctx context.Context, _ *jsonrpc2.Conn, _ *jsonrpc2.Request) (interface{}, error) {
		p := ctx.Value(paramsKey{}).(*ownerParams)
		return chain.GetKeyRecord(ctx, p.Owner)
	}, ownerParams{})
	h.registerMethod("ledger_count", func(ctx context.Context, _ *jsonrpc2.Conn, _ *jsonrpc2.Request) (interface{}, error) {
		p := ctx.Value(paramsKey{}).(*ownerParams)
		return chain.EntryCount(ctx, p.Owner)
	}, ownerParams{})
	h.registerMethod("ledger_entry", func(ctx context.Context, _ *jsonrpc2.Conn, _ *jsonrpc2.Request) (interface{}, error) {
		p := ctx.Value(paramsKey{}).(*entryParams)
		return chain.GetEntry(ctx, p.Owner, p.Index)
	}, entryParams{})
	h.registerMethod("ledger_entries", func(ctx context.Context, _ *jsonrpc2.Conn, _ *jsonrpc2.Request) (interface{}, error) {
		p := ctx.Value(paramsKey{}).(*ownerParams)
		return chain.GetEntries(ctx, p.Owner)
	}, ownerParams{})
	return h
}

type ownerParams struct {
	Owner proto.Address
}

func (p *ownerParams) Validate() error {
	if p.Owner.IsZero() {
		return errors.New("owner is required")
	}
	return nil
}

type entryParams struct {
	Owner proto.Address
	Index uint64
}

func (p *entryParams) Validate() error {
	if p.Owner.IsZero() {
		return errors.New("owner is required")
	}
	return nil
}

func (h *JSONRPCHandler) registerMethod(method string, fn jsonrpcHandlerFunc, paramsType interface{}) {
	if _, ok := h.methods[method]; ok {
		panic(fmt.Sprintf("method %q already registered", method))
	}
	if paramsType == nil {
		h.methods[method] = fn
		return
	}
	typ := reflect.TypeOf(paramsType)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	h.methods[method] = processParams(fn, typ)
}

// Handle implements jsonrpc2.Handler.
func (h *JSONRPCHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	jsonrpc2.HandlerWithError(h.handle).Handle(ctx, conn, req)
}

func (h *JSONRPCHandler) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (
	result interface{}, err error,
) {
	defer func() {
		if p := recover(); p != nil {
			switch p := p.(type) {
			case error:
				err = p
			default:
				err = fmt.Errorf("%v", p)
			}
		}
	}()

	fn := h.methods[req.Method]
	if fn == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: req.Method}
	} else if req.Params == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
	}

	if result, err = fn(ctx, conn, req); err != nil {
		if _, ok := err.(*jsonrpc2.Error); !ok {
			err = rpcError(err)
		}
	}
	return
}

// processParams unmarshals req.Params, a JSON array, into the fields of a
// paramsType struct in order: "[owner, 3]" becomes {Owner: owner, Index: 3}.
func processParams(h jsonrpcHandlerFunc, paramsType reflect.Type) jsonrpcHandlerFunc {
	return func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (
		result interface{}, err error,
	) {
		paramsNew := reflect.New(paramsType)
		paramsElem := paramsNew.Elem()
		paramsArray := make([]interface{}, paramsElem.NumField())
		for i := 0; i < paramsElem.NumField(); i++ {
			paramsArray[i] = paramsElem.Field(i).Addr().Interface()
		}

		if err := json.Unmarshal(*req.Params, &paramsArray); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		if len(paramsArray) != paramsElem.NumField() {
			return nil, &jsonrpc2.Error{
				Code: jsonrpc2.CodeInvalidParams,
				Message: fmt.Sprintf("unexpected parameters, expected %d but got %d",
					paramsElem.NumField(), len(paramsArray)),
			}
		}

		params := paramsNew.Interface()
		if t, ok := params.(validator); ok {
			if err := t.Validate(); err != nil {
				return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
			}
		}

		return h(context.WithValue(ctx, paramsKey{}, params), conn, req)
	}
}

func rpcError(err error) *jsonrpc2.Error {
	data := json.RawMessage(strconv.Quote(codeOf(err)))
	return &jsonrpc2.Error{Code: CodeLedgerError, Message: err.Error(), Data: &data}
}

// rpcErrorCause maps a JSON-RPC error received by a client back to a
// sentinel error.
func rpcErrorCause(err error) error {
	re, ok := err.(*jsonrpc2.Error)
	if !ok {
		return errors.Wrap(ErrLedgerUnavailable, err.Error())
	}
	if re.Code != CodeLedgerError || re.Data == nil {
		return re
	}
	var code string
	if json.Unmarshal(*re.Data, &code) != nil {
		return re
	}
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return re
}
