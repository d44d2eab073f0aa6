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

// Package timer records named stage durations of a single operation.
package timer

import (
	"sync"
	"time"

	"github.com/CovenantSQL/SecretLedger/utils/log"
)

// Timer is a stop watch with named laps.
type Timer struct {
	sync.Mutex
	start time.Time
	last  time.Time
	laps  []lap
}

type lap struct {
	name string
	d    time.Duration
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	now := time.Now()
	return &Timer{start: now, last: now}
}

// Add closes the current lap under name.
func (t *Timer) Add(name string) {
	t.Lock()
	defer t.Unlock()
	now := time.Now()
	t.laps = append(t.laps, lap{name: name, d: now.Sub(t.last)})
	t.last = now
}

// Total returns the time from start to the last lap.
func (t *Timer) Total() time.Duration {
	t.Lock()
	defer t.Unlock()
	return t.last.Sub(t.start)
}

// ToMap returns the lap durations plus "total". A repeated name accumulates.
func (t *Timer) ToMap() map[string]time.Duration {
	t.Lock()
	defer t.Unlock()
	m := make(map[string]time.Duration, len(t.laps)+1)
	for _, l := range t.laps {
		m[l.name] += l.d
	}
	m["total"] = t.last.Sub(t.start)
	return m
}

// ToLogFields returns ToMap as log fields.
func (t *Timer) ToLogFields() log.Fields {
	f := log.Fields{}
	for k, v := range t.ToMap() {
		f[k] = v
	}
	return f
}
