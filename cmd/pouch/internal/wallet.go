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
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/utils"
)

// CmdWallet is pouch wallet command entity.
var CmdWallet = &Command{
	UsageLine: "pouch wallet [common params] [-dsn dsn]",
	Short:     "show the owner address and ledger state",
	Long: `
Wallet prints the owner address, the next account nonce, the current key
handle and the number of stored entries. No signature is needed.
`,
}

func init() {
	CmdWallet.Run = runWallet

	addCommonFlags(CmdWallet)
	addEndpointFlags(CmdWallet)
}

func runWallet(cmd *Command, args []string) {
	configInit()
	ctx, cancel := utils.SignalContext(context.Background())
	defer cancel()

	owner := openWallet().Address()
	fmt.Printf("owner address: %s\n", owner.Hex())

	lc := dialLedger(ctx)
	fmt.Printf("ledger: %s\n", lc.ID().Hex())
	nonce, err := lc.NextNonce(ctx, owner)
	if err != nil {
		ConsoleLog.WithError(err).Error("get nonce failed")
		SetExitStatus(1)
		return
	}
	fmt.Printf("next nonce: %d\n", nonce)

	rec, err := lc.GetKeyRecord(ctx, owner)
	if errors.Cause(err) == types.ErrNotFound {
		fmt.Println("pouch: not created")
		return
	} else if err != nil {
		ConsoleLog.WithError(err).Error("get key record failed")
		SetExitStatus(1)
		return
	}
	dump(rec)
	fmt.Printf("key handle: %s (rotated %d times)\n", rec.Handle.Hex(), rec.Rotations)

	n, err := lc.EntryCount(ctx, owner)
	if err != nil {
		ConsoleLog.WithError(err).Error("count entries failed")
		SetExitStatus(1)
		return
	}
	fmt.Printf("entries: %d\n", n)
}
