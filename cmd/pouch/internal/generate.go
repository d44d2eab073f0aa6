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
	"fmt"

	"github.com/CovenantSQL/SecretLedger/crypto/kms"
	"github.com/CovenantSQL/SecretLedger/utils"
)

// CmdGenerate is pouch generate command entity.
var CmdGenerate = &Command{
	UsageLine: "pouch generate [common params]",
	Short:     "generate an owner key",
	Long: `
Generate creates a new password protected owner key file and prints its
address. An existing key file is never overwritten.
e.g.
    pouch generate -key ~/.pouch/owner.key
`,
}

func init() {
	CmdGenerate.Run = runGenerate

	addCommonFlags(CmdGenerate)
}

func runGenerate(cmd *Command, args []string) {
	configInit()
	if utils.Exist(keyFile) {
		ConsoleLog.Errorf("key file %s already exists", keyFile)
		SetExitStatus(1)
		return
	}
	key, err := kms.GeneratePrivateKey(keyFile, []byte(password))
	if err != nil {
		ConsoleLog.WithError(err).Error("generate owner key failed")
		SetExitStatus(1)
		return
	}
	fmt.Printf("owner address: %s\n", key.Address().Hex())
	fmt.Printf("key file: %s\n", keyFile)
}
