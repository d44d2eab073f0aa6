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

// Package metric holds the prometheus collectors of SecretLedger and an
// expvar dashboard fed from them.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
)

// Namespace prefixes every SecretLedger metric.
const Namespace = "secretledger"

const (
	// ResultSuccess labels a successful operation.
	ResultSuccess = "success"
	// ResultFailure labels a failed operation.
	ResultFailure = "failure"
)

var (
	// Registry is the registry all SecretLedger collectors are registered to.
	Registry = prometheus.NewRegistry()

	// LedgerTransactions counts applied ledger transactions by type and result.
	LedgerTransactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "ledger",
		Name:      "transactions_total",
		Help:      "Ledger transactions processed, by type and result.",
	}, []string{"type", "result"})

	// LedgerEntries tracks the total number of stored entries.
	LedgerEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "ledger",
		Name:      "entries",
		Help:      "Entries stored across all owners.",
	})

	// VaultOperations counts vault calls by operation and result.
	VaultOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "vault",
		Name:      "operations_total",
		Help:      "Vault operations, by operation and result.",
	}, []string{"op", "result"})

	// UnlockedSessions tracks the sessions currently holding key material.
	UnlockedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "unlock",
		Name:      "sessions",
		Help:      "Unlock sessions currently holding key material.",
	})
)

func init() {
	Registry.MustRegister(
		version.NewCollector(Namespace),
		prometheus.NewGoCollector(),
		LedgerTransactions,
		LedgerEntries,
		VaultOperations,
		UnlockedSessions,
	)
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
