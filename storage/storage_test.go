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

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStorage(t *testing.T) {
	Convey("Given a memory storage", t, func() {
		st, err := NewMemStorage()
		So(err, ShouldBeNil)
		defer st.Close()

		Convey("Values can be set, fetched and deleted", func() {
			So(st.SetValue([]byte("k1"), []byte("v1")), ShouldBeNil)
			v, err := st.GetValue([]byte("k1"))
			So(err, ShouldBeNil)
			So(v, ShouldResemble, []byte("v1"))

			ok, err := st.HasValue([]byte("k1"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			So(st.DelValue([]byte("k1")), ShouldBeNil)
			v, err = st.GetValue([]byte("k1"))
			So(err, ShouldBeNil)
			So(v, ShouldBeNil)
		})

		Convey("Batches are applied together and scanned in key order", func() {
			b := st.NewBatch()
			b.Put([]byte("e/2"), []byte("c"))
			b.Put([]byte("e/0"), []byte("a"))
			b.Put([]byte("e/1"), []byte("b"))
			b.Put([]byte("x/0"), []byte("z"))
			b.Delete([]byte("x/0"))
			So(b.Len(), ShouldEqual, 5)
			So(b.Write(), ShouldBeNil)

			var values []string
			So(st.Scan([]byte("e/"), func(k, v []byte) error {
				values = append(values, string(v))
				return nil
			}), ShouldBeNil)
			So(values, ShouldResemble, []string{"a", "b", "c"})

			ok, err := st.HasValue([]byte("x/0"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			stop := errors.New("stop")
			count := 0
			err = st.Scan([]byte("e/"), func(k, v []byte) error {
				count++
				return stop
			})
			So(err, ShouldEqual, stop)
			So(count, ShouldEqual, 1)
		})

		Convey("SetValues writes every pair", func() {
			So(st.SetValues([]KV{
				{Key: []byte("a"), Value: []byte("1")},
				{Key: []byte("b"), Value: []byte("2")},
			}), ShouldBeNil)
			v, err := st.GetValue([]byte("b"))
			So(err, ShouldBeNil)
			So(v, ShouldResemble, []byte("2"))
		})

		Convey("A closed storage rejects operations", func() {
			So(st.Close(), ShouldBeNil)
			So(st.Close(), ShouldBeNil)
			_, err := st.GetValue([]byte("a"))
			So(err, ShouldEqual, ErrStorageClosed)
			So(st.SetValue([]byte("a"), nil), ShouldEqual, ErrStorageClosed)
			So(st.NewBatch().Write(), ShouldEqual, ErrStorageClosed)
		})
	})

	Convey("A file storage persists across reopen", t, func() {
		dir, err := os.MkdirTemp("", "storage")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "db")

		st, err := OpenStorage(path)
		So(err, ShouldBeNil)
		So(st.SetValue([]byte("persist"), []byte("yes")), ShouldBeNil)
		So(st.Close(), ShouldBeNil)

		st, err = OpenStorage(path)
		So(err, ShouldBeNil)
		defer st.Close()
		v, err := st.GetValue([]byte("persist"))
		So(err, ShouldBeNil)
		So(v, ShouldResemble, []byte("yes"))
	})
}
