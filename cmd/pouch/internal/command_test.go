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
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/SecretLedger/client"
	"github.com/CovenantSQL/SecretLedger/wallet"
)

func TestCommand(t *testing.T) {
	Convey("command names come from the usage line", t, func() {
		So(CmdSend.Name(), ShouldEqual, "send")
		So(CmdVersion.Name(), ShouldEqual, "version")
		So(CmdHelp.Name(), ShouldEqual, "help")
		for _, c := range []*Command{CmdGenerate, CmdWallet, CmdCreate, CmdRotate, CmdSend, CmdList, CmdWatch} {
			So(c.Runnable(), ShouldBeTrue)
			So(c.Short, ShouldNotBeEmpty)
		}
		So(PrintVersion(), ShouldStartWith, "pouch ")
	})

	Convey("-yes approves without a prompt", t, func() {
		assumeYes = true
		defer func() { assumeYes = false }()
		ok, err := confirm(context.Background(), &wallet.Request{Kind: wallet.KindTransaction})
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
	})

	Convey("a dsn overrides the endpoints", t, func() {
		configFile = "/nonexistent/config.yaml"
		dsn = "secretledger://127.0.0.1:4661?vault=http://127.0.0.1:4662&workers=2"
		defer func() { dsn, keyFile = "", "" }()
		configInit()
		So(options.LedgerEndpoint, ShouldEqual, "http://127.0.0.1:4661")
		So(options.VaultEndpoint, ShouldEqual, "http://127.0.0.1:4662")
		So(options.Workers, ShouldEqual, 2)
		So(options.CacheSize, ShouldEqual, client.DefaultCacheSize)
		So(keyFile, ShouldNotStartWith, "~")
	})
}
