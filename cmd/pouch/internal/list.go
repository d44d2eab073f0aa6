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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/CovenantSQL/SecretLedger/client"
	"github.com/CovenantSQL/SecretLedger/utils"
)

// CmdList is pouch list command entity.
var CmdList = &Command{
	UsageLine: "pouch list [common params] [-dsn dsn] [-yes] [-n count] [-raw] [-json]",
	Short:     "decrypt and print the most recent entries",
	Long: `
List unlocks the pouch and prints the most recent entries, oldest first.
Entries that cannot be decrypted, such as those written before a key
rotation, are reported individually. With -raw the ciphertexts are printed
without unlocking.
e.g.
    pouch list -n 10
`,
}

var (
	listLimit int
	listRaw   bool
	listJSON  bool
)

type listedItem struct {
	*client.Item
	Error string `json:"error,omitempty"`
}

func init() {
	CmdList.Run = runList

	addCommonFlags(CmdList)
	addEndpointFlags(CmdList)
	CmdList.Flag.IntVar(&listLimit, "n", 0, "Number of most recent entries, 0 for all")
	CmdList.Flag.BoolVar(&listRaw, "raw", false, "Print ciphertexts without unlocking")
	CmdList.Flag.BoolVar(&listJSON, "json", false, "Print entries as json lines")
}

func runList(cmd *Command, args []string) {
	configInit()
	ctx, cancel := utils.SignalContext(context.Background())
	defer cancel()

	if listRaw {
		listCiphertexts(ctx)
		return
	}

	p := openPouch(ctx)
	defer p.Close()
	if err := p.Unlock(ctx); err != nil {
		ConsoleLog.WithError(err).Error("unlock pouch failed")
		SetExitStatus(1)
		return
	}
	items, err := p.List(ctx, listLimit)
	if err != nil {
		ConsoleLog.WithError(err).Error("list entries failed")
		SetExitStatus(1)
		return
	}
	dump(items)

	enc := json.NewEncoder(os.Stdout)
	for _, it := range items {
		if listJSON {
			li := &listedItem{Item: it}
			if it.Err != nil {
				li.Error = it.Err.Error()
			}
			_ = enc.Encode(li)
			continue
		}
		if it.Err != nil {
			fmt.Printf("#%d %s <undecryptable: %v>\n", it.Index, it.CreatedAt.Format(time.RFC3339), it.Err)
			continue
		}
		fmt.Printf("#%d %s %s\n", it.Index, it.CreatedAt.Format(time.RFC3339), it.Plaintext)
	}
}

func listCiphertexts(ctx context.Context) {
	owner := openWallet().Address()
	entries, err := dialLedger(ctx).GetEntries(ctx, owner)
	if err != nil {
		ConsoleLog.WithError(err).Error("get entries failed")
		SetExitStatus(1)
		return
	}
	if listLimit > 0 && len(entries) > listLimit {
		entries = entries[len(entries)-listLimit:]
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if listJSON {
			_ = enc.Encode(e)
			continue
		}
		fmt.Printf("#%d %s %s\n", e.Index, e.CreatedAt.Format(time.RFC3339), e.Ciphertext)
	}
}
