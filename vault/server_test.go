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

package vault

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/SecretLedger/crypto"
	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/proto"
)

func TestServerClient(t *testing.T) {
	Convey("Given a vault served over HTTP", t, func() {
		ctx := context.Background()
		v := newTestVault()
		defer v.Close()
		router := mux.NewRouter()
		NewServer(v, v.Domain(), "s3cret").Register(router)
		srv := httptest.NewServer(router)
		defer srv.Close()

		c := NewClient(srv.URL, "s3cret", srv.Client())
		owner, _, err := ca.GenSecp256k1KeyPair()
		So(err, ShouldBeNil)
		scope := Scope{Owner: owner.Address(), Ledger: testLedger}

		Convey("the client should report the vault key and domain", func() {
			pub, err := c.PublicKey(ctx)
			So(err, ShouldBeNil)
			So(pub.IsEqual(v.key.PubKey()), ShouldBeTrue)
			d, err := c.Domain(ctx)
			So(err, ShouldBeNil)
			So(d, ShouldResemble, v.Domain())
		})

		Convey("mint, allow and reveal should round trip", func() {
			material := []byte("0123456789abcdef0123")
			enc, proof := sealMaterial(c, owner, material)
			h, err := c.Mint(ctx, scope, enc, proof)
			So(err, ShouldBeNil)
			So(c.Allow(ctx, h, testLedger, owner.Address()), ShouldBeNil)

			eph, ephPub, err := ca.GenSecp256k1KeyPair()
			So(err, ShouldBeNil)
			d, err := c.Domain(ctx)
			So(err, ShouldBeNil)
			req := revealRequest(d, h, owner, ephPub, []proto.LedgerID{testLedger}, testNow, time.Hour)
			out, err := c.Reveal(ctx, req)
			So(err, ShouldBeNil)
			clear, err := crypto.DecryptAndCheck(eph, out)
			So(err, ShouldBeNil)
			So(clear, ShouldResemble, material)

			Convey("denials should map back to ErrUnauthorized", func() {
				req := revealRequest(d, h, owner, ephPub, []proto.LedgerID{testLedger},
					testNow.Add(-48*time.Hour), time.Hour)
				_, err := c.Reveal(ctx, req)
				So(err, ShouldEqual, ErrUnauthorized)
			})
		})

		Convey("proof failures should map back to ErrInvalidProof", func() {
			enc, _ := sealMaterial(c, owner, []byte("k"))
			_, err := c.Mint(ctx, scope, enc, make([]byte, 65))
			So(err, ShouldEqual, ErrInvalidProof)
		})

		Convey("malformed requests should map back to ErrInvalidRequest", func() {
			_, err := c.Reveal(ctx, &RevealRequest{})
			So(errors.Cause(err), ShouldEqual, ErrInvalidRequest)
		})

		Convey("service calls without the token should be refused", func() {
			anon := NewClient(srv.URL, "wrong", nil)
			enc, proof := sealMaterial(c, owner, []byte("k"))
			_, err := anon.Mint(ctx, scope, enc, proof)
			So(err, ShouldEqual, ErrUnauthorized)
			So(anon.Allow(ctx, proto.KeyHandle{1}, testLedger, owner.Address()), ShouldEqual, ErrUnauthorized)
		})

		Convey("an unreachable vault should be reported as unavailable", func() {
			dead := httptest.NewServer(router)
			dead.Close()
			_, err := NewClient(dead.URL, "", nil).PublicKey(ctx)
			So(errors.Cause(err), ShouldEqual, ErrVaultUnavailable)
		})
	})
}
