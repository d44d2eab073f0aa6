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

package conf

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	yaml "gopkg.in/yaml.v2"

	"github.com/CovenantSQL/SecretLedger/proto"
)

const testConfig = `
LogLevel: debug
Ledger:
  ID: "0x00000000000000000000000000000000000000aa"
  DataDir: ledger
  ServiceToken: s3cret
Vault:
  ChainID: 1337
  KeyFile: ~/vault.key
  DataDir: /var/lib/vault
  ServiceToken: s3cret
Client:
  LedgerEndpoint: http://127.0.0.1:4661
  KeyFile: owner.key
  Validity: 1h
Metric:
  GraphiteServer: 127.0.0.1:2003
`

func TestLoadConfig(t *testing.T) {
	Convey("LoadConfig", t, func() {
		dir, err := ioutil.TempDir("", "conf")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "config.yaml")
		So(ioutil.WriteFile(path, []byte(testConfig), 0600), ShouldBeNil)

		c, err := LoadConfig(path)
		So(err, ShouldBeNil)
		So(c.WorkingRoot, ShouldEqual, dir)
		So(c.Ledger.ID, ShouldEqual, proto.LedgerID{19: 0xaa})
		So(c.Ledger.ListenAddr, ShouldEqual, DefaultListenAddr)
		So(c.Ledger.DataDir, ShouldEqual, filepath.Join(dir, "ledger"))
		So(c.Vault.KeyFile, ShouldNotStartWith, "~")
		So(c.Vault.DataDir, ShouldEqual, "/var/lib/vault")
		So(c.Vault.MaxRevealValidity, ShouldEqual, DefaultRevealValidity)
		So(c.Client.Validity, ShouldEqual, time.Hour)
		So(c.Client.KeyFile, ShouldEqual, filepath.Join(dir, "owner.key"))
		So(c.Metric.LogInterval, ShouldEqual, DefaultMetricLogInterval)

		_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("config round trip through yaml", t, func() {
		c := &Config{
			Ledger: &LedgerConfig{ID: proto.LedgerID{1}, ListenAddr: ":0", DataDir: "d"},
			Vault:  &VaultConfig{ChainID: 1, KeyFile: "k", MaxRevealValidity: time.Minute},
		}
		out, err := yaml.Marshal(c)
		So(err, ShouldBeNil)
		back, err := ParseConfig(out)
		So(err, ShouldBeNil)
		So(back.Ledger, ShouldResemble, c.Ledger)
		So(back.Vault, ShouldResemble, c.Vault)
	})

	Convey("invalid configs", t, func() {
		for _, bad := range []string{
			"LogLevel: loud",
			"Ledger:\n  DataDir: x",
			"Vault:\n  KeyFile: k",
			"Vault:\n  ChainID: -1\n  KeyFile: k",
			"Client:\n  LedgerEndpoint: not a url",
			"Ledger:\n  ID: nope\n  DataDir: x",
		} {
			_, err := ParseConfig([]byte(bad))
			So(err, ShouldNotBeNil)
		}
		_, err := ParseConfig([]byte("LogLevel: loud"))
		So(errors.Cause(err), ShouldEqual, ErrInvalidConfig)
	})
}
