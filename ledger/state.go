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

package ledger

import (
	"github.com/mohae/deepcopy"

	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/types"
)

// state is the in-memory image of the persisted ledger. It is guarded by the
// Chain lock.
type state struct {
	records map[proto.Address]*types.KeyRecord
	entries map[proto.Address][]*types.Entry
	nonces  map[proto.Address]types.AccountNonce
	total   uint64
}

func newState() *state {
	return &state{
		records: make(map[proto.Address]*types.KeyRecord),
		entries: make(map[proto.Address][]*types.Entry),
		nonces:  make(map[proto.Address]types.AccountNonce),
	}
}

func (s *state) loadRecord(owner proto.Address) (r *types.KeyRecord, ok bool) {
	if r, ok = s.records[owner]; ok && !r.Exists {
		ok = false
	}
	return
}

func (s *state) nextNonce(owner proto.Address) types.AccountNonce {
	return s.nonces[owner]
}

func (s *state) entryCount(owner proto.Address) uint64 {
	return uint64(len(s.entries[owner]))
}

func (s *state) entry(owner proto.Address, index uint64) (e *types.Entry, err error) {
	list := s.entries[owner]
	if index >= uint64(len(list)) {
		err = types.ErrIndexOutOfBounds
		return
	}
	return deepcopy.Copy(list[index]).(*types.Entry), nil
}

func (s *state) copyEntries(owner proto.Address) []*types.Entry {
	list := s.entries[owner]
	out := make([]*types.Entry, len(list))
	for i, e := range list {
		out[i] = deepcopy.Copy(e).(*types.Entry)
	}
	return out
}
