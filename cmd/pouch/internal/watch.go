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
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/utils"
)

// CmdWatch is pouch watch command entity.
var CmdWatch = &Command{
	UsageLine: "pouch watch [common params] [-dsn dsn] [-all] [-types created,rotated,stored]",
	Short:     "follow ledger events",
	Long: `
Watch prints the ledger events of the owner as they are committed, until
interrupted. With -all the events of every owner are printed. Events carry
no plaintext.
`,
}

var (
	watchAll   bool
	watchTypes string
)

func init() {
	CmdWatch.Run = runWatch

	addCommonFlags(CmdWatch)
	addEndpointFlags(CmdWatch)
	CmdWatch.Flag.BoolVar(&watchAll, "all", false, "Watch every owner")
	CmdWatch.Flag.StringVar(&watchTypes, "types", "", "Comma separated event types to watch")
}

func runWatch(cmd *Command, args []string) {
	configInit()
	ctx, cancel := utils.SignalContext(context.Background())
	defer cancel()

	var owner proto.Address
	if !watchAll {
		owner = openWallet().Address()
	}
	var eventTypes []types.EventType
	for _, t := range strings.Split(watchTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			eventTypes = append(eventTypes, types.EventType(t))
		}
	}

	err := dialLedger(ctx).Watch(ctx, owner, func(ev *types.Event) {
		dump(ev)
		switch ev.Type {
		case types.EventStored:
			fmt.Printf("%s %s %s stored #%d\n", ev.Time.Format(time.RFC3339), ev.Ledger.Hex(), ev.Owner.Hex(), ev.Index)
		default:
			fmt.Printf("%s %s %s %s %s\n", ev.Time.Format(time.RFC3339), ev.Ledger.Hex(), ev.Owner.Hex(), ev.Type, ev.Handle.Hex())
		}
	}, eventTypes...)
	if err != nil && errors.Cause(err) != context.Canceled {
		ConsoleLog.WithError(err).Error("watch ledger failed")
		SetExitStatus(1)
	}
}
