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

// Package api exposes a ledger over HTTP: REST reads, msgpack transaction
// submission and a websocket JSON-RPC connection streaming ledger events.
package api

import (
	"context"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/CovenantSQL/SecretLedger/chainbus"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/utils/web"
)

const (
	// ContentTypeTransaction is the media type of a submitted transaction.
	ContentTypeTransaction = "application/x-msgpack"
	// HeaderRequestID carries the id of a request in both directions.
	HeaderRequestID = "X-Request-ID"

	maxTransactionSize = 1 << 20
)

// Ledger is the chain served by the API.
type Ledger interface {
	ID() proto.LedgerID
	NextNonce(ctx context.Context, owner proto.Address) (types.AccountNonce, error)
	GetKeyHandle(ctx context.Context, owner proto.Address) (proto.KeyHandle, error)
	GetKeyRecord(ctx context.Context, owner proto.Address) (*types.KeyRecord, error)
	EntryCount(ctx context.Context, owner proto.Address) (uint64, error)
	GetEntry(ctx context.Context, owner proto.Address, index uint64) (*types.Entry, error)
	GetEntries(ctx context.Context, owner proto.Address) ([]*types.Entry, error)
	Apply(ctx context.Context, tx types.Transaction) (*types.Receipt, error)
}

type ledgerResponse struct {
	ID proto.LedgerID `json:"id"`
}

type nonceResponse struct {
	Nonce types.AccountNonce `json:"nonce"`
}

type handleResponse struct {
	Handle proto.KeyHandle `json:"handle"`
}

type countResponse struct {
	Count uint64 `json:"count"`
}

// Server serves a Ledger.
type Server struct {
	ledger Ledger
	rpc    *JSONRPCHandler
	events *hub
}

// NewServer returns a server for l. Events published on bus are streamed to
// websocket subscribers.
func NewServer(l Ledger, bus chainbus.Bus) (s *Server, err error) {
	s = &Server{
		ledger: l,
		rpc:    NewJSONRPCHandler(l),
		events: newHub(),
	}
	if err = s.events.attach(bus); err != nil {
		return nil, errors.Wrap(err, "subscribe ledger events failed")
	}
	return
}

// Register mounts the ledger routes on r.
func (s *Server) Register(r *mux.Router) {
	v := r.PathPrefix("/v1").Subrouter()
	v.Use(requestID)
	v.HandleFunc("/ledger", s.getLedger).Methods(http.MethodGet)
	v.HandleFunc("/tx", s.submit).Methods(http.MethodPost)
	v.HandleFunc("/events", s.serveEvents).Methods(http.MethodGet)

	o := v.PathPrefix("/owners/{owner}").Subrouter()
	o.HandleFunc("/nonce", s.getNonce).Methods(http.MethodGet)
	o.HandleFunc("/handle", s.getHandle).Methods(http.MethodGet)
	o.HandleFunc("/record", s.getRecord).Methods(http.MethodGet)
	o.HandleFunc("/entries/count", s.getCount).Methods(http.MethodGet)
	o.HandleFunc("/entries/{index:[0-9]+}", s.getEntry).Methods(http.MethodGet)
	o.HandleFunc("/entries", s.getEntries).Methods(http.MethodGet)
}

// Close disconnects every event subscriber and detaches from the bus.
func (s *Server) Close() {
	s.events.close()
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.Must(uuid.NewV4()).String()
		}
		rw.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(rw, r)
	})
}

func ownerOf(r *http.Request) (proto.Address, error) {
	owner, err := proto.ParseAddress(mux.Vars(r)["owner"])
	if err != nil {
		return owner, errors.Wrap(ErrBadRequest, err.Error())
	}
	return owner, nil
}

func (s *Server) getLedger(rw http.ResponseWriter, r *http.Request) {
	web.SendResponse(rw, http.StatusOK, &ledgerResponse{ID: s.ledger.ID()})
}

func (s *Server) submit(rw http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(rw, r.Body, maxTransactionSize))
	if err != nil {
		sendError(rw, errors.Wrap(ErrBadRequest, err.Error()))
		return
	}
	tx, err := types.DecodeTransaction(body)
	if err != nil {
		if errors.Cause(err) != types.ErrInvalidTransactionType {
			err = errors.Wrap(ErrBadRequest, err.Error())
		}
		sendError(rw, err)
		return
	}
	receipt, err := s.ledger.Apply(r.Context(), tx)
	if err != nil {
		log.WithFields(log.Fields{
			"request": rw.Header().Get(HeaderRequestID),
			"type":    tx.GetTransactionType().String(),
			"owner":   tx.GetAccountAddress().Hex(),
		}).WithError(err).Debug("apply transaction failed")
		sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, receipt)
}

func (s *Server) getNonce(rw http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		sendError(rw, err)
		return
	}
	nonce, err := s.ledger.NextNonce(r.Context(), owner)
	if err != nil {
		sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, &nonceResponse{Nonce: nonce})
}

func (s *Server) getHandle(rw http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		sendError(rw, err)
		return
	}
	h, err := s.ledger.GetKeyHandle(r.Context(), owner)
	if err != nil {
		sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, &handleResponse{Handle: h})
}

func (s *Server) getRecord(rw http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		sendError(rw, err)
		return
	}
	rec, err := s.ledger.GetKeyRecord(r.Context(), owner)
	if err != nil {
		sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, rec)
}

func (s *Server) getCount(rw http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		sendError(rw, err)
		return
	}
	n, err := s.ledger.EntryCount(r.Context(), owner)
	if err != nil {
		sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, &countResponse{Count: n})
}

func (s *Server) getEntry(rw http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		sendError(rw, err)
		return
	}
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		sendError(rw, errors.Wrap(ErrBadRequest, err.Error()))
		return
	}
	e, err := s.ledger.GetEntry(r.Context(), owner, index)
	if err != nil {
		sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, e)
}

func (s *Server) getEntries(rw http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		sendError(rw, err)
		return
	}
	entries, err := s.ledger.GetEntries(r.Context(), owner)
	if err != nil {
		sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, entries)
}
