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

package vault

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/CovenantSQL/SecretLedger/crypto/eip712"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/utils/web"
)

const maxRequestSize = 1 << 20

// Error codes of the vault HTTP API.
const (
	CodeUnauthorized    = "unauthorized"
	CodeInvalidProof    = "invalid_proof"
	CodeInvalidMaterial = "invalid_material"
	CodeInvalidRequest  = "invalid_request"
	CodeInternal        = "internal"
)

type mintRequest struct {
	Scope             Scope         `json:"scope"`
	EncryptedMaterial hexutil.Bytes `json:"encryptedMaterial" validate:"required"`
	Proof             hexutil.Bytes `json:"proof" validate:"required,len=65"`
}

type allowRequest struct {
	Handle  proto.KeyHandle `json:"handle" validate:"required"`
	Caller  proto.Address   `json:"caller" validate:"required"`
	Grantee proto.Address   `json:"grantee" validate:"required"`
}

type publicKeyResponse struct {
	PublicKey hexutil.Bytes `json:"publicKey"`
}

type handleResponse struct {
	Handle proto.KeyHandle `json:"handle"`
}

type revealResponse struct {
	Material hexutil.Bytes `json:"material"`
}

// Server exposes a Vault over HTTP. Mint and Allow are service calls made by
// a ledger and require the service token; reveal carries its own signed
// assertion.
type Server struct {
	vault    Vault
	domain   eip712.Domain
	token    string
	validate *validator.Validate
}

// NewServer returns a server for v. With an empty token the service routes
// always answer 403.
func NewServer(v Vault, domain eip712.Domain, token string) *Server {
	return &Server{
		vault:    v,
		domain:   domain,
		token:    token,
		validate: validator.New(),
	}
}

// Register mounts the vault routes on r.
func (s *Server) Register(r *mux.Router) {
	v := r.PathPrefix("/v1/vault").Subrouter()
	v.HandleFunc("/pubkey", s.publicKey).Methods(http.MethodGet)
	v.HandleFunc("/domain", s.getDomain).Methods(http.MethodGet)
	v.HandleFunc("/mint", s.service(s.mint)).Methods(http.MethodPost)
	v.HandleFunc("/allow", s.service(s.allow)).Methods(http.MethodPost)
	v.HandleFunc("/reveal", s.reveal).Methods(http.MethodPost)
}

func (s *Server) service(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			web.SendError(rw, http.StatusForbidden, CodeUnauthorized, ErrUnauthorized)
			return
		}
		h(rw, r)
	}
}

func (s *Server) decode(rw http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxRequestSize)).Decode(req); err != nil {
		web.SendError(rw, http.StatusBadRequest, CodeInvalidRequest, errors.Wrap(err, "decode request failed"))
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		web.SendError(rw, http.StatusBadRequest, CodeInvalidRequest, err)
		return false
	}
	return true
}

func (s *Server) sendError(rw http.ResponseWriter, err error) {
	switch errors.Cause(err) {
	case ErrUnauthorized:
		web.SendError(rw, http.StatusForbidden, CodeUnauthorized, ErrUnauthorized)
	case ErrInvalidProof:
		web.SendError(rw, http.StatusBadRequest, CodeInvalidProof, ErrInvalidProof)
	case ErrInvalidMaterial:
		web.SendError(rw, http.StatusBadRequest, CodeInvalidMaterial, ErrInvalidMaterial)
	case ErrInvalidRequest:
		web.SendError(rw, http.StatusBadRequest, CodeInvalidRequest, ErrInvalidRequest)
	case ErrVaultUnavailable:
		web.SendError(rw, http.StatusServiceUnavailable, web.CodeUnavailable, ErrVaultUnavailable)
	default:
		log.WithError(err).Error("vault request failed")
		web.SendError(rw, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func (s *Server) publicKey(rw http.ResponseWriter, r *http.Request) {
	pub, err := s.vault.PublicKey(r.Context())
	if err != nil {
		s.sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, &publicKeyResponse{PublicKey: pub.Serialize()})
}

func (s *Server) getDomain(rw http.ResponseWriter, r *http.Request) {
	web.SendResponse(rw, http.StatusOK, s.domain)
}

func (s *Server) mint(rw http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !s.decode(rw, r, &req) {
		return
	}
	h, err := s.vault.Mint(r.Context(), req.Scope, req.EncryptedMaterial, req.Proof)
	if err != nil {
		s.sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, &handleResponse{Handle: h})
}

func (s *Server) allow(rw http.ResponseWriter, r *http.Request) {
	var req allowRequest
	if !s.decode(rw, r, &req) {
		return
	}
	if err := s.vault.Allow(r.Context(), req.Handle, req.Caller, req.Grantee); err != nil {
		s.sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, nil)
}

func (s *Server) reveal(rw http.ResponseWriter, r *http.Request) {
	var req RevealRequest
	if !s.decode(rw, r, &req) {
		return
	}
	out, err := s.vault.Reveal(r.Context(), &req)
	if err != nil {
		s.sendError(rw, err)
		return
	}
	web.SendResponse(rw, http.StatusOK, &revealResponse{Material: out})
}
