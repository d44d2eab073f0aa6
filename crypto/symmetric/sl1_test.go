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

package symmetric

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

var material = []byte{
	0x5a, 0x0b, 0x54, 0xd5, 0xdc, 0x17, 0xe0, 0xaa, 0xdc, 0x38,
	0x3d, 0x2d, 0xb4, 0x3b, 0x0a, 0x0d, 0x3e, 0x02, 0x9c, 0x4c,
}

func TestDeriveKey(t *testing.T) {
	Convey("key derivation is sha256 of the material", t, func() {
		key := DeriveKey(material)
		So(len(key), ShouldEqual, KeySize)
		So(DeriveKey(material), ShouldResemble, key)
		So(DeriveKey(material[:19]), ShouldNotResemble, key)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	Convey("round trip", t, func() {
		for _, plain := range []string{"", "hello", "日本語 ✓", strings.Repeat("x", 1747)} {
			wire, err := Encrypt(material, plain)
			So(err, ShouldBeNil)
			So(strings.HasPrefix(wire, VersionTag+":"), ShouldBeTrue)
			parts := strings.Split(wire, ":")
			So(len(parts), ShouldEqual, 3)
			nonce, err := base64.StdEncoding.DecodeString(parts[1])
			So(err, ShouldBeNil)
			So(len(nonce), ShouldEqual, NonceSize)
			sealed, err := base64.StdEncoding.DecodeString(parts[2])
			So(err, ShouldBeNil)
			So(len(sealed), ShouldEqual, len(plain)+16)

			out, err := Decrypt(material, wire)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, plain)
		}
	})

	Convey("fresh nonce per call", t, func() {
		a, err := Encrypt(material, "same")
		So(err, ShouldBeNil)
		b, err := Encrypt(material, "same")
		So(err, ShouldBeNil)
		So(a, ShouldNotEqual, b)
	})

	Convey("wrong key fails without detail", t, func() {
		wire, err := Encrypt(material, "secret")
		So(err, ShouldBeNil)
		other := append([]byte{}, material...)
		other[0] ^= 0x01
		_, err = Decrypt(other, wire)
		So(err, ShouldEqual, ErrDecryptionFailed)
	})

	Convey("tampering", t, func() {
		wire, err := Encrypt(material, "secret")
		So(err, ShouldBeNil)
		parts := strings.Split(wire, ":")

		Convey("ciphertext bit flip", func() {
			sealed, _ := base64.StdEncoding.DecodeString(parts[2])
			sealed[0] ^= 0x80
			parts[2] = base64.StdEncoding.EncodeToString(sealed)
			_, err := Decrypt(material, strings.Join(parts, ":"))
			So(err, ShouldEqual, ErrDecryptionFailed)
		})

		Convey("nonce bit flip", func() {
			nonce, _ := base64.StdEncoding.DecodeString(parts[1])
			nonce[3] ^= 0x01
			parts[1] = base64.StdEncoding.EncodeToString(nonce)
			_, err := Decrypt(material, strings.Join(parts, ":"))
			So(err, ShouldEqual, ErrDecryptionFailed)
		})

		Convey("version tag change", func() {
			parts[0] = "sl2"
			_, err := Decrypt(material, strings.Join(parts, ":"))
			So(err, ShouldEqual, ErrUnsupportedFormat)
		})
	})

	Convey("malformed wire strings", t, func() {
		for _, wire := range []string{"", "sl1", "sl1:a", "sl1:a:b:c", "v0:AAAA:AAAA"} {
			_, err := Decrypt(material, wire)
			So(err, ShouldEqual, ErrUnsupportedFormat)
		}
		for _, wire := range []string{
			"sl1:!!!!:AAAA",
			"sl1:AAAA:AAAA",
			"sl1:AAAAAAAAAAAAAAAA:not-base64",
			"sl1:AAAAAAAAAAAAAAAA\n:AAAA",
		} {
			_, err := Decrypt(material, wire)
			So(err, ShouldEqual, ErrDecryptionFailed)
		}
	})
}

func TestCipher(t *testing.T) {
	Convey("concurrent use and wipe", t, func() {
		c, err := NewCipher(material)
		So(err, ShouldBeNil)

		var wg sync.WaitGroup
		errs := make(chan error, 32)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				wire, err := c.Encrypt("concurrent")
				if err == nil {
					_, err = c.Decrypt(wire)
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			So(err, ShouldBeNil)
		}

		c.Wipe()
		_, err = c.Encrypt("after")
		So(err, ShouldEqual, ErrWiped)
		_, err = c.Decrypt("sl1:AAAAAAAAAAAAAAAA:AAAA")
		So(err, ShouldEqual, ErrWiped)
	})
}
