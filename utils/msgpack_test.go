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

package utils

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type msgpackNestedStruct struct {
	C int64
}

type msgpackTestStruct struct {
	A string
	B msgpackNestedStruct
	M map[string]uint64
	T time.Time
}

func TestMsgPack_EncodeDecode(t *testing.T) {
	Convey("complex structure encode decode test", t, func() {
		preValue := &msgpackTestStruct{
			A: "happy",
			B: msgpackNestedStruct{C: 1},
			M: map[string]uint64{"b": 2, "a": 1},
			T: NormalizeTime(time.Now()),
		}
		buf, err := EncodeMsgPack(preValue)
		So(err, ShouldBeNil)
		var postValue msgpackTestStruct
		err = DecodeMsgPack(buf.Bytes(), &postValue)
		So(err, ShouldBeNil)
		So(postValue.A, ShouldEqual, preValue.A)
		So(postValue.B, ShouldResemble, preValue.B)
		So(postValue.M, ShouldResemble, preValue.M)
		So(postValue.T.Equal(preValue.T), ShouldBeTrue)
	})

	Convey("map encoding should be stable", t, func() {
		a := map[string]uint64{}
		b := map[string]uint64{}
		for i, k := range []string{"x", "y", "z", "w", "v"} {
			a[k] = uint64(i)
		}
		for i := 4; i >= 0; i-- {
			b[[]string{"x", "y", "z", "w", "v"}[i]] = uint64(i)
		}
		ea, err := EncodeMsgPack(a)
		So(err, ShouldBeNil)
		eb, err := EncodeMsgPack(b)
		So(err, ShouldBeNil)
		So(ea.Bytes(), ShouldResemble, eb.Bytes())
	})
}

func TestBytesAndPath(t *testing.T) {
	Convey("ConcatAll and ZeroBytes", t, func() {
		b := ConcatAll([]byte{1, 2}, nil, []byte{3})
		So(b, ShouldResemble, []byte{1, 2, 3})
		ZeroBytes(b)
		So(b, ShouldResemble, []byte{0, 0, 0})
	})

	Convey("ResolvePath joins relative paths to root", t, func() {
		So(ResolvePath("/var/lib/ledger", "data"), ShouldEqual, "/var/lib/ledger/data")
		So(ResolvePath("/var/lib/ledger", "/abs/data"), ShouldEqual, "/abs/data")
		So(ResolvePath("/var/lib/ledger", ""), ShouldEqual, "")
		So(ResolvePath("", "data"), ShouldEqual, "data")
		So(Exist("/definitely/not/here"), ShouldBeFalse)
	})
}
