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

package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	graphite "github.com/cyberdelia/go-metrics-graphite"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/CovenantSQL/SecretLedger/api"
	"github.com/CovenantSQL/SecretLedger/conf"
	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/kms"
	"github.com/CovenantSQL/SecretLedger/ledger"
	"github.com/CovenantSQL/SecretLedger/metric"
	"github.com/CovenantSQL/SecretLedger/storage"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/utils/log/debug"
	"github.com/CovenantSQL/SecretLedger/vault"
)

const shutdownTimeout = 10 * time.Second

// daemon is one pouchd process: a ledger, an optional embedded vault and the
// http server exposing both.
type daemon struct {
	cfg    *conf.Config
	st     *storage.Storage
	vault  *vault.LocalVault
	chain  *ledger.Chain
	api    *api.Server
	server *http.Server
	addr   net.Addr
	logw   io.Closer
	ctx    context.Context
	cancel context.CancelFunc
}

func loadVaultKey(path string, password []byte, gen bool) (key *ca.PrivateKey, err error) {
	if gen && !utils.Exist(path) {
		log.WithField("path", path).Info("generate vault key")
		return kms.GeneratePrivateKey(path, password)
	}
	return kms.LoadPrivateKey(path, password)
}

func newDaemon(cfg *conf.Config, password []byte, genKey bool) (d *daemon, err error) {
	if cfg.Ledger == nil {
		return nil, errors.Wrap(conf.ErrInvalidConfig, "ledger section is required")
	}
	d = &daemon{cfg: cfg}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	self := d
	defer func() {
		if err != nil {
			self.close()
		}
	}()

	var minter ledger.KeyMinter
	if cfg.Vault != nil {
		var key *ca.PrivateKey
		if key, err = loadVaultKey(cfg.Vault.KeyFile, password, genKey); err != nil {
			return nil, errors.Wrap(err, "load vault key failed")
		}
		if d.vault, err = vault.NewLocalVault(&vault.LocalConfig{
			Key:               key,
			ChainID:           cfg.Vault.ChainID,
			Dir:               cfg.Vault.DataDir,
			MaxRevealValidity: cfg.Vault.MaxRevealValidity,
		}); err != nil {
			return nil, errors.Wrap(err, "open vault failed")
		}
		minter = d.vault
	}
	if cfg.Ledger.VaultEndpoint != "" {
		minter = vault.NewClient(cfg.Ledger.VaultEndpoint, cfg.Ledger.ServiceToken, nil)
	}
	if minter == nil {
		return nil, errors.Wrap(conf.ErrInvalidConfig, "either a vault section or a ledger vault endpoint is required")
	}

	if d.st, err = storage.OpenStorage(cfg.Ledger.DataDir); err != nil {
		return nil, errors.Wrap(err, "open ledger storage failed")
	}
	if d.chain, err = ledger.NewChain(&ledger.Config{
		ID:      cfg.Ledger.ID,
		Storage: d.st,
		Vault:   minter,
	}); err != nil {
		return nil, errors.Wrap(err, "load ledger failed")
	}
	if d.api, err = api.NewServer(d.chain, d.chain.Bus()); err != nil {
		return nil, err
	}

	var handler http.Handler
	if handler, err = d.router(); err != nil {
		return nil, err
	}
	d.server = &http.Server{
		Addr:              cfg.Ledger.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return
}

func (d *daemon) router() (handler http.Handler, err error) {
	r := mux.NewRouter()
	d.api.Register(r)
	if d.vault != nil {
		vault.NewServer(d.vault, d.vault.Domain(), d.cfg.Vault.ServiceToken).Register(r)
	}
	r.Handle("/metrics", promhttp.HandlerFor(metric.Registry, promhttp.HandlerOpts{}))
	var metricWeb http.Handler
	if metricWeb, err = metric.InitMetricWeb(d.ctx); err != nil {
		return nil, errors.Wrap(err, "init metric web failed")
	}
	r.Handle("/debug/metrics", metricWeb)
	r.Handle(debug.LogLevelPath, debug.LogLevelHandler()).Methods(http.MethodGet, http.MethodPost)

	logw := log.StandardLogger().Writer()
	d.logw = logw
	handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", api.HeaderRequestID}),
		handlers.ExposedHeaders([]string{api.HeaderRequestID}),
	)(r)
	return handlers.CombinedLoggingHandler(logw, handler), nil
}

func (d *daemon) start() (err error) {
	listener, err := net.Listen("tcp", d.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "couldn't bind to address %q", d.server.Addr)
	}
	d.addr = listener.Addr()
	go func() {
		if err := d.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("serve http failed")
		}
	}()

	if m := d.cfg.Metric; m != nil {
		if metricLog {
			go metrics.Log(metrics.DefaultRegistry, m.LogInterval, log.StandardLogger())
		}
		if m.GraphiteServer != "" {
			addr, err := net.ResolveTCPAddr("tcp", m.GraphiteServer)
			if err != nil {
				log.WithError(err).Error("resolve metric graphite server addr failed")
			} else {
				go graphite.Graphite(metrics.DefaultRegistry, m.LogInterval, name, addr)
			}
		}
	} else if metricLog {
		go metrics.Log(metrics.DefaultRegistry, conf.DefaultMetricLogInterval, log.StandardLogger())
	}
	return
}

func (d *daemon) stop() (err error) {
	// hijacked websocket connections are not tracked by Shutdown
	d.api.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = d.server.Shutdown(ctx)
	d.close()
	return
}

func (d *daemon) close() {
	if d.api != nil {
		d.api.Close()
	}
	if d.st != nil {
		if err := d.st.Close(); err != nil {
			log.WithError(err).Error("close ledger storage failed")
		}
	}
	if d.vault != nil {
		if err := d.vault.Close(); err != nil {
			log.WithError(err).Error("close vault failed")
		}
	}
	if d.logw != nil {
		d.logw.Close()
	}
	d.cancel()
}
