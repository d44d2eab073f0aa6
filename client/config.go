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

package client

import (
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/unlock"
)

const (
	dsnScheme         = "secretledger"
	paramKeyDebug     = "debug"
	paramKeyVault     = "vault"
	paramKeyTLS       = "tls"
	paramKeyWorkers   = "workers"
	paramKeyCacheSize = "cache"
	paramKeyValidity  = "validity"
)

var (
	// DefaultWorkers is the decrypt pool size of List.
	DefaultWorkers = 8
	// DefaultCacheSize is the number of raw entries kept in memory.
	DefaultCacheSize = 1024
)

// Options is a pouch configuration parsed from a DSN string of the form
// secretledger://ledger-host:port?vault=http://vault-host:port&workers=8.
type Options struct {
	LedgerEndpoint string
	VaultEndpoint  string

	Debug     bool
	Workers   int
	CacheSize int
	Validity  time.Duration
}

// NewOptions creates options with default value.
func NewOptions() *Options {
	return &Options{
		Workers:   DefaultWorkers,
		CacheSize: DefaultCacheSize,
		Validity:  unlock.DefaultValidity,
	}
}

// FormatDSN formats the given Options into a DSN string.
func (o *Options) FormatDSN() string {
	u := &url.URL{Scheme: dsnScheme}
	newQuery := u.Query()

	if lu, err := url.Parse(o.LedgerEndpoint); err == nil && lu.Host != "" {
		u.Host = lu.Host
		if lu.Scheme == "https" {
			newQuery.Set(paramKeyTLS, "true")
		}
	} else {
		u.Host = o.LedgerEndpoint
	}
	if o.VaultEndpoint != "" {
		newQuery.Set(paramKeyVault, o.VaultEndpoint)
	}
	if o.Debug {
		newQuery.Set(paramKeyDebug, "true")
	}
	if o.Workers != DefaultWorkers {
		newQuery.Set(paramKeyWorkers, strconv.Itoa(o.Workers))
	}
	if o.CacheSize != DefaultCacheSize {
		newQuery.Set(paramKeyCacheSize, strconv.Itoa(o.CacheSize))
	}
	if o.Validity != unlock.DefaultValidity {
		newQuery.Set(paramKeyValidity, o.Validity.String())
	}

	u.RawQuery = newQuery.Encode()
	return u.String()
}

// ParseDSN parses the DSN string to Options.
func ParseDSN(dsn string) (o *Options, err error) {
	var u *url.URL
	if u, err = url.Parse(dsn); err != nil {
		return
	}
	if u.Scheme != dsnScheme || u.Host == "" {
		err = errors.Errorf("invalid pouch dsn %q", dsn)
		return
	}

	o = NewOptions()
	urlQuery := u.Query()
	scheme := "http"
	if urlQuery.Get(paramKeyTLS) == "true" {
		scheme = "https"
	}
	o.LedgerEndpoint = scheme + "://" + u.Host
	o.VaultEndpoint = urlQuery.Get(paramKeyVault)
	if o.VaultEndpoint == "" {
		o.VaultEndpoint = o.LedgerEndpoint
	}
	if urlQuery.Get(paramKeyDebug) == "true" {
		o.Debug = true
	}
	if v := urlQuery.Get(paramKeyWorkers); v != "" {
		if o.Workers, err = strconv.Atoi(v); err != nil || o.Workers <= 0 {
			return nil, errors.Errorf("invalid workers %q", v)
		}
	}
	if v := urlQuery.Get(paramKeyCacheSize); v != "" {
		if o.CacheSize, err = strconv.Atoi(v); err != nil || o.CacheSize <= 0 {
			return nil, errors.Errorf("invalid cache size %q", v)
		}
	}
	if v := urlQuery.Get(paramKeyValidity); v != "" {
		if o.Validity, err = time.ParseDuration(v); err != nil {
			return nil, errors.Wrapf(err, "invalid validity %q", v)
		}
	}
	return
}
