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

	"github.com/CovenantSQL/SecretLedger/utils"
)

// CmdCreate is pouch create command entity.
var CmdCreate = &Command{
	UsageLine: "pouch create [common params] [-dsn dsn] [-yes]",
	Short:     "create the owner's pouch",
	Long: `
Create generates a pouch key, seals it to the vault and submits a
CreateLedger transaction. A pouch can only be created once per ledger.
`,
}

// CmdRotate is pouch rotate command entity.
var CmdRotate = &Command{
	UsageLine: "pouch rotate [common params] [-dsn dsn] [-yes]",
	Short:     "replace the pouch key",
	Long: `
Rotate replaces the pouch key with a fresh one. Entries written under the
previous key can no longer be decrypted.
`,
}

func init() {
	CmdCreate.Run = runCreate
	CmdRotate.Run = runRotate

	addCommonFlags(CmdCreate)
	addEndpointFlags(CmdCreate)
	addCommonFlags(CmdRotate)
	addEndpointFlags(CmdRotate)
}

func runCreate(cmd *Command, args []string) {
	configInit()
	ctx, cancel := utils.SignalContext(context.Background())
	defer cancel()

	p := openPouch(ctx)
	defer p.Close()
	r, err := p.Create(ctx)
	if err != nil {
		ConsoleLog.WithError(err).Error("create pouch failed")
		SetExitStatus(1)
		return
	}
	dump(r)
	fmt.Printf("pouch created, key handle: %s, tx: %s\n", r.Handle.Hex(), r.TxHash.String())
}

func runRotate(cmd *Command, args []string) {
	configInit()
	ctx, cancel := utils.SignalContext(context.Background())
	defer cancel()

	p := openPouch(ctx)
	defer p.Close()
	r, err := p.Rotate(ctx)
	if err != nil {
		ConsoleLog.WithError(err).Error("rotate pouch key failed")
		SetExitStatus(1)
		return
	}
	dump(r)
	fmt.Printf("pouch key rotated, key handle: %s, tx: %s\n", r.Handle.Hex(), r.TxHash.String())
}
