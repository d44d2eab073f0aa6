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

package internal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/api"
	"github.com/CovenantSQL/SecretLedger/client"
	"github.com/CovenantSQL/SecretLedger/conf"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/vault"
	"github.com/CovenantSQL/SecretLedger/wallet"
)

// These are general flags used by most commands.
var (
	configFile string
	password   string
	dsn        string
	keyFile    string
	assumeYes  bool
	debug      bool
)

// options is the effective client configuration after configInit.
var options *client.Options

func addCommonFlags(cmd *Command) {
	cmd.Flag.StringVar(&configFile, "config", "~/.pouch/config.yaml", "Config file for pouch")
	cmd.Flag.StringVar(&password, "password", "", "Owner key password, defaults to $POUCH_PASSWORD")
	cmd.Flag.StringVar(&keyFile, "key", "", "Owner key file, overrides the config file")
	cmd.Flag.BoolVar(&debug, "debug", false, "Dump responses for debugging")
}

func addEndpointFlags(cmd *Command) {
	cmd.Flag.StringVar(&dsn, "dsn", "", "Ledger DSN, e.g. secretledger://127.0.0.1:4661?vault=http://127.0.0.1:4661")
	cmd.Flag.BoolVar(&assumeYes, "yes", false, "Sign every request without asking")
}

// configInit merges the optional config file, the DSN and the flags.
func configInit() {
	log.SetStringLevel("", log.WarnLevel)
	if password == "" {
		password = os.Getenv("POUCH_PASSWORD")
	}
	options = client.NewOptions()

	path := utils.HomeDirExpand(configFile)
	if utils.Exist(path) {
		cfg, err := conf.LoadConfig(path)
		if err != nil {
			ConsoleLog.WithError(err).Error("load config failed")
			SetExitStatus(1)
			Exit()
		}
		if c := cfg.Client; c != nil {
			options.LedgerEndpoint = c.LedgerEndpoint
			options.VaultEndpoint = c.VaultEndpoint
			if c.Validity > 0 {
				options.Validity = c.Validity
			}
			if c.Workers > 0 {
				options.Workers = c.Workers
			}
			if c.CacheSize > 0 {
				options.CacheSize = c.CacheSize
			}
			if keyFile == "" {
				keyFile = c.KeyFile
			}
		}
	}

	if dsn != "" {
		o, err := client.ParseDSN(dsn)
		if err != nil {
			ConsoleLog.WithError(err).Error("parse dsn failed")
			SetExitStatus(1)
			Exit()
		}
		options = o
	}
	if options.VaultEndpoint == "" {
		options.VaultEndpoint = options.LedgerEndpoint
	}
	if keyFile == "" {
		keyFile = "~/.pouch/owner.key"
	}
	keyFile = utils.HomeDirExpand(keyFile)
	debug = debug || options.Debug
}

// confirm asks on the terminal before every signature.
func confirm(ctx context.Context, req *wallet.Request) (bool, error) {
	if assumeYes {
		return true, nil
	}
	switch req.Kind {
	case wallet.KindTypedData:
		fmt.Fprintf(os.Stderr, "Sign %s for the vault? [y/N] ", req.TypedData.PrimaryType)
	default:
		fmt.Fprintf(os.Stderr, "Sign digest 0x%x? [y/N] ", req.Digest)
	}
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, errors.Wrap(err, "read answer failed")
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func openWallet() *wallet.Local {
	w, err := wallet.OpenKeyFile(keyFile, []byte(password), confirm)
	if err != nil {
		ConsoleLog.WithError(err).Error("open owner key failed")
		SetExitStatus(1)
		Exit()
	}
	return w
}

func dialLedger(ctx context.Context) *api.Client {
	if options.LedgerEndpoint == "" {
		ConsoleLog.Error("no ledger endpoint, set -dsn or Client.LedgerEndpoint")
		SetExitStatus(1)
		Exit()
	}
	lc, err := api.Dial(ctx, options.LedgerEndpoint, nil)
	if err != nil {
		ConsoleLog.WithError(err).Error("connect ledger failed")
		SetExitStatus(1)
		Exit()
	}
	return lc
}

// openPouch opens the pouch of the configured owner, locked.
func openPouch(ctx context.Context) *client.Pouch {
	w := openWallet()
	lc := dialLedger(ctx)
	vc := vault.NewClient(options.VaultEndpoint, "", nil)
	domain, err := vc.Domain(ctx)
	if err != nil {
		ConsoleLog.WithError(err).Error("connect vault failed")
		SetExitStatus(1)
		Exit()
	}
	p, err := client.New(&client.Config{
		Wallet:    w,
		Ledger:    lc,
		Vault:     vc,
		Domain:    domain,
		Validity:  options.Validity,
		Workers:   options.Workers,
		CacheSize: options.CacheSize,
	})
	if err != nil {
		ConsoleLog.WithError(err).Error("open pouch failed")
		SetExitStatus(1)
		Exit()
	}
	return p
}

func dump(v ...interface{}) {
	if debug {
		spew.Fdump(os.Stderr, v...)
	}
}
