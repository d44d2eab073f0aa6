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

package verifier

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/hash"
)

type header struct {
	payload []byte
	fail    error
}

func (h *header) MarshalHash() ([]byte, error) {
	return h.payload, h.fail
}

type signed struct {
	header
	DefaultHashSignVerifierImpl
}

func TestDefaultHashSignVerifierImpl(t *testing.T) {
	Convey("a header signed by an owner key", t, func() {
		priv, pub, err := asymmetric.GenSecp256k1KeyPair()
		So(err, ShouldBeNil)
		obj := &signed{header: header{payload: []byte("entry")}}
		So(obj.Sign(&obj.header, priv), ShouldBeNil)

		So(obj.Verify(&obj.header), ShouldBeNil)
		So(obj.Hash(), ShouldEqual, hash.Keccak256H([]byte("entry")))
		addr, err := obj.Signer()
		So(err, ShouldBeNil)
		So(addr, ShouldEqual, pub.Address())

		Convey("changed content fails the digest", func() {
			obj.payload = []byte("other")
			So(errors.Cause(obj.Verify(&obj.header)), ShouldEqual, ErrHashValueNotMatch)
		})
		Convey("a missing signature recovers no signer", func() {
			obj.Signature = nil
			So(errors.Cause(obj.Verify(&obj.header)), ShouldEqual, ErrSignatureNotMatch)
		})
		Convey("a changed signature never recovers the owner", func() {
			obj.Signature[0] ^= 0xff
			addr, err := obj.Signer()
			if err == nil {
				So(addr, ShouldNotEqual, pub.Address())
			} else {
				So(errors.Cause(err), ShouldEqual, ErrSignatureNotMatch)
			}
		})
		Convey("a failing encoder surfaces its error", func() {
			failure := errors.New("encode")
			obj.fail = failure
			So(obj.Verify(&obj.header), ShouldEqual, failure)
		})
	})

	Convey("a declining signer", t, func() {
		failure := errors.New("declined")
		obj := &signed{}
		err := obj.Sign(&obj.header, SignerFunc(func([]byte) (asymmetric.Signature, error) {
			return nil, failure
		}))
		So(err, ShouldEqual, failure)
	})
}
