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
	"io/ioutil"
	"os"
	"strings"

	"github.com/CovenantSQL/SecretLedger/utils"
)

// CmdSend is pouch send command entity.
var CmdSend = &Command{
	UsageLine: "pouch send [common params] [-dsn dsn] [-yes] [-stdin] [message...]",
	Short:     "encrypt and append an entry",
	Long: `
Send unlocks the pouch, encrypts the message with the pouch key and appends
it to the ledger. The arguments are joined by spaces, or the message is read
from standard input with -stdin.
e.g.
    pouch send remember the milk
    echo secret | pouch send -stdin
`,
}

var sendStdin bool

func init() {
	CmdSend.Run = runSend

	addCommonFlags(CmdSend)
	addEndpointFlags(CmdSend)
	CmdSend.Flag.BoolVar(&sendStdin, "stdin", false, "Read the message from standard input")
}

func runSend(cmd *Command, args []string) {
	configInit()

	var message string
	if sendStdin {
		raw, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			ConsoleLog.WithError(err).Error("read standard input failed")
			SetExitStatus(1)
			return
		}
		message = strings.TrimRight(string(raw), "\n")
	} else {
		message = strings.Join(args, " ")
	}
	if message == "" {
		ConsoleLog.Error("send needs a message")
		SetExitStatus(1)
		return
	}

	ctx, cancel := utils.SignalContext(context.Background())
	defer cancel()
	p := openPouch(ctx)
	defer p.Close()
	if err := p.Unlock(ctx); err != nil {
		ConsoleLog.WithError(err).Error("unlock pouch failed")
		SetExitStatus(1)
		return
	}
	index, err := p.Send(ctx, message)
	if err != nil {
		ConsoleLog.WithError(err).Error("send entry failed")
		SetExitStatus(1)
		return
	}
	fmt.Printf("stored entry #%d\n", index)
}
