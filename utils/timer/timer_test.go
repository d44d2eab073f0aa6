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

package timer

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTimer(t *testing.T) {
	Convey("laps are measured from the previous lap", t, func() {
		tm := NewTimer()
		time.Sleep(5 * time.Millisecond)
		tm.Add("verify")
		time.Sleep(5 * time.Millisecond)
		tm.Add("store")
		tm.Add("store")

		m := tm.ToMap()
		So(m, ShouldContainKey, "verify")
		So(m, ShouldContainKey, "store")
		So(m["verify"], ShouldBeGreaterThanOrEqualTo, 5*time.Millisecond)
		So(m["store"], ShouldBeGreaterThanOrEqualTo, 5*time.Millisecond)
		So(m["total"], ShouldEqual, tm.Total())
		So(m["total"], ShouldBeGreaterThanOrEqualTo, m["verify"]+m["store"])
		So(tm.ToLogFields(), ShouldHaveLength, 3)
	})

	Convey("an empty timer has a zero total", t, func() {
		tm := NewTimer()
		So(tm.ToMap(), ShouldResemble, map[string]time.Duration{"total": 0})
	})
}
