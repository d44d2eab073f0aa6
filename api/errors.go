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
	"net/http"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/crypto/verifier"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/utils/web"
	"github.com/CovenantSQL/SecretLedger/vault"
)

var (
	// ErrLedgerUnavailable indicates the ledger could not be reached. It is
	// retryable.
	ErrLedgerUnavailable = errors.New("api: ledger unavailable")
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = errors.New("api: bad request")
)

const codeInternal = "internal"

type errorCode struct {
	code   string
	status int
	err    error
}

// errorCodes maps sentinel errors to their stable wire codes.
var errorCodes = []errorCode{
	{"already_exists", http.StatusConflict, types.ErrAlreadyExists},
	{"not_found", http.StatusNotFound, types.ErrNotFound},
	{"index_out_of_bounds", http.StatusNotFound, types.ErrIndexOutOfBounds},
	{"invalid_nonce", http.StatusConflict, types.ErrInvalidAccountNonce},
	{"invalid_sender", http.StatusForbidden, types.ErrInvalidSender},
	{"ledger_mismatch", http.StatusBadRequest, types.ErrLedgerMismatch},
	{"invalid_transaction", http.StatusBadRequest, types.ErrInvalidTransaction},
	{"invalid_transaction_type", http.StatusBadRequest, types.ErrInvalidTransactionType},
	{"signature_mismatch", http.StatusForbidden, verifier.ErrSignatureNotMatch},
	{"hash_mismatch", http.StatusBadRequest, verifier.ErrHashValueNotMatch},
	{"invalid_proof", http.StatusBadRequest, vault.ErrInvalidProof},
	{"invalid_material", http.StatusBadRequest, vault.ErrInvalidMaterial},
	{"unauthorized", http.StatusForbidden, vault.ErrUnauthorized},
	{web.CodeUnavailable, http.StatusServiceUnavailable, vault.ErrVaultUnavailable},
	{"bad_request", http.StatusBadRequest, ErrBadRequest},
}

func sendError(rw http.ResponseWriter, err error) {
	cause := errors.Cause(err)
	for _, c := range errorCodes {
		if cause == c.err {
			web.SendError(rw, c.status, c.code, err)
			return
		}
	}
	log.WithError(err).Error("ledger request failed")
	web.SendError(rw, http.StatusInternalServerError, codeInternal, "internal error")
}

// codeOf returns the wire code of err.
func codeOf(err error) string {
	cause := errors.Cause(err)
	for _, c := range errorCodes {
		if cause == c.err {
			return c.code
		}
	}
	return codeInternal
}

// mapError turns client side failures back into sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == web.ErrTransport {
		return errors.Wrap(ErrLedgerUnavailable, err.Error())
	}
	re, ok := err.(*web.RemoteError)
	if !ok {
		return err
	}
	for _, c := range errorCodes {
		if re.Code == c.code {
			if c.err == vault.ErrVaultUnavailable {
				return errors.Wrap(c.err, re.Status)
			}
			return c.err
		}
	}
	if re.HTTPCode >= http.StatusInternalServerError {
		return errors.Wrap(ErrLedgerUnavailable, re.Error())
	}
	return re
}
