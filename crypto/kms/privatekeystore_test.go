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

package kms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPrivateKeyFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "kms")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	password := []byte("pouch password")

	Convey("save and load", t, func() {
		path := filepath.Join(dir, "keys", "private.key")
		key, err := GeneratePrivateKey(path, password)
		So(err, ShouldBeNil)
		So(key, ShouldNotBeNil)

		info, err := os.Stat(path)
		So(err, ShouldBeNil)
		So(info.Mode().Perm(), ShouldEqual, os.FileMode(0600))

		loaded, err := LoadPrivateKey(path, password)
		So(err, ShouldBeNil)
		So(loaded.Serialize(), ShouldResemble, key.Serialize())
		So(loaded.Address(), ShouldEqual, key.Address())

		Convey("wrong password", func() {
			_, err := LoadPrivateKey(path, []byte("guess"))
			So(errors.Cause(err), ShouldEqual, ErrWrongPassword)
		})
	})

	Convey("load error", t, func() {
		lk, err := LoadPrivateKey("/path/not/exist", password)
		So(err, ShouldNotBeNil)
		So(lk, ShouldBeNil)
	})

	Convey("empty key file", t, func() {
		path := filepath.Join(dir, "empty")
		So(os.WriteFile(path, nil, 0600), ShouldBeNil)
		lk, err := LoadPrivateKey(path, password)
		So(err, ShouldEqual, ErrNotKeyFile)
		So(lk, ShouldBeNil)
	})

	Convey("not key file", t, func() {
		lk, err := LoadPrivateKey("doc.go", password)
		So(err, ShouldEqual, ErrNotKeyFile)
		So(lk, ShouldBeNil)
	})
}
