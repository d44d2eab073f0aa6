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

// Package web holds the JSON response envelope shared by the SecretLedger
// HTTP servers and clients.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dghubble/sling"
	"github.com/jmoiron/jsonq"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/utils/log"
)

// CodeUnavailable is the error code of a retryable backend failure.
const CodeUnavailable = "unavailable"

// Envelope is the body of every response.
type Envelope struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SendResponse writes a successful envelope carrying data.
func SendResponse(rw http.ResponseWriter, code int, data interface{}) {
	write(rw, code, map[string]interface{}{
		"success": true,
		"status":  "ok",
		"data":    data,
	})
}

// SendError writes a failed envelope. errCode is the stable name clients map
// back to a sentinel error.
func SendError(rw http.ResponseWriter, code int, errCode string, msg interface{}) {
	write(rw, code, map[string]interface{}{
		"success": false,
		"status":  fmt.Sprint(msg),
		"code":    errCode,
	})
}

func write(rw http.ResponseWriter, code int, body interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	if err := json.NewEncoder(rw).Encode(body); err != nil {
		log.WithError(err).Debug("write response failed")
	}
}

// ErrTransport wraps failures to reach a server.
var ErrTransport = errors.New("web: transport failed")

// RemoteError is a failed envelope returned by a server.
type RemoteError struct {
	HTTPCode int
	Code     string
	Status   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d %s: %s", e.HTTPCode, e.Code, e.Status)
}

// Do sends the request built by s and decodes the data of a successful
// envelope into out. Transport failures are wrapped in ErrTransport, failed
// envelopes are returned as *RemoteError.
func Do(ctx context.Context, s *sling.Sling, out interface{}) (err error) {
	req, err := s.Request()
	if err != nil {
		return errors.Wrap(err, "build request failed")
	}
	var (
		env     Envelope
		failure map[string]interface{}
	)
	resp, err := s.Do(req.WithContext(ctx), &env, &failure)
	if err != nil {
		if resp == nil {
			return errors.Wrap(ErrTransport, err.Error())
		}
		if resp.StatusCode >= 400 {
			// non-json failure body
			return &RemoteError{HTTPCode: resp.StatusCode, Status: resp.Status}
		}
		return errors.Wrap(err, "decode response failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseFailure(resp.StatusCode, failure)
	}
	if !env.Success {
		return &RemoteError{HTTPCode: resp.StatusCode, Code: env.Code, Status: env.Status}
	}
	if out != nil && len(env.Data) > 0 {
		if err = json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, "decode response data failed")
		}
	}
	return
}

func parseFailure(httpCode int, failure map[string]interface{}) error {
	re := &RemoteError{HTTPCode: httpCode}
	if failure == nil {
		return re
	}
	q := jsonq.NewQuery(failure)
	re.Code, _ = q.String("code")
	re.Status, _ = q.String("status")
	return re
}
