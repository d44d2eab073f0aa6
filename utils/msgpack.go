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
	"bytes"
	"time"

	"github.com/ugorji/go/codec"
)

var (
	// Canonical settings make map encodings stable, transaction hashes
	// are computed over these bytes.
	msgpackHandle = &codec.MsgpackHandle{
		WriteExt: true,
	}
)

func init() {
	msgpackHandle.RawToString = true
	msgpackHandle.Canonical = true
}

// DecodeMsgPack reverses the encode operation on a byte slice input.
func DecodeMsgPack(buf []byte, out interface{}) error {
	dec := codec.NewDecoderBytes(buf, msgpackHandle)
	return dec.Decode(out)
}

// EncodeMsgPack writes an encoded object to a new bytes buffer.
func EncodeMsgPack(in interface{}) (*bytes.Buffer, error) {
	buf := bytes.NewBuffer(nil)
	enc := codec.NewEncoder(buf, msgpackHandle)
	err := enc.Encode(in)
	return buf, err
}

// NormalizeTime drops the monotonic clock reading and location of t, so a
// time survives an encode/decode round trip unchanged.
func NormalizeTime(t time.Time) time.Time {
	return time.Unix(0, t.UnixNano()).UTC()
}
