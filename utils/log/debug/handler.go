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

// Package debug exposes the process log level over HTTP.
package debug

import (
	"encoding/json"
	"net/http"

	"github.com/CovenantSQL/SecretLedger/utils/log"
)

// LogLevelPath is where pouchd mounts LogLevelHandler.
const LogLevelPath = "/debug/loglevel"

type levelResponse struct {
	Level string `json:"level"`
	Orig  string `json:"orig,omitempty"`
	Want  string `json:"want,omitempty"`
	Err   string `json:"err,omitempty"`
}

// LogLevelHandler reports the log level on GET and changes it on POST with
// the "level" form value.
func LogLevelHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var resp levelResponse
		switch r.Method {
		case http.MethodPost:
			resp.Orig = log.GetLevel().String()
			if resp.Want = r.FormValue("level"); resp.Want != "" {
				lvl, err := log.ParseLevel(resp.Want)
				if err != nil {
					resp.Err = err.Error()
					break
				}
				log.SetLevel(lvl)
				log.WithFields(log.Fields{"from": resp.Orig, "to": resp.Want}).Info("log level changed")
			}
		case http.MethodGet:
		default:
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp.Level = log.GetLevel().String()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
}
