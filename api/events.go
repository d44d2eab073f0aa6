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

package api

import (
	"context"
	"net/http"
	"sync"

	qs "github.com/derekstavis/go-qs"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/jsonq"
	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"

	"github.com/CovenantSQL/SecretLedger/chainbus"
	"github.com/CovenantSQL/SecretLedger/ledger"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/utils/log"
)

// MethodEvent is the notification method carrying a *types.Event.
const MethodEvent = "ledger_event"

const subscriberBuffer = 64

var eventTopics = []string{ledger.TopicCreated, ledger.TopicRotated, ledger.TopicStored}

// filter selects the events of a subscriber. Zero values match everything.
type filter struct {
	owner proto.Address
	types map[types.EventType]bool
}

func (f *filter) match(ev *types.Event) bool {
	if !f.owner.IsZero() && f.owner != ev.Owner {
		return false
	}
	return len(f.types) == 0 || f.types[ev.Type]
}

// parseFilter reads ?owner=0x..&types[]=stored&types[]=rotated.
func parseFilter(rawQuery string) (f *filter, err error) {
	f = &filter{}
	if rawQuery == "" {
		return
	}
	query, err := qs.Unmarshal(rawQuery)
	if err != nil {
		return nil, errors.Wrap(ErrBadRequest, err.Error())
	}
	q := jsonq.NewQuery(query)
	if owner, _ := q.String("owner"); owner != "" {
		if f.owner, err = proto.ParseAddress(owner); err != nil {
			return nil, errors.Wrap(ErrBadRequest, err.Error())
		}
	}
	names, err := q.ArrayOfStrings("types")
	if err != nil {
		var one string
		if one, err = q.String("types"); err != nil {
			names, err = nil, nil
		} else {
			names = []string{one}
		}
	}
	for _, name := range names {
		t := types.EventType(name)
		switch t {
		case types.EventCreated, types.EventRotated, types.EventStored:
		default:
			return nil, errors.Wrapf(ErrBadRequest, "unknown event type %q", name)
		}
		if f.types == nil {
			f.types = make(map[types.EventType]bool)
		}
		f.types[t] = true
	}
	return
}

type subscriber struct {
	filter *filter
	ch     chan *types.Event
	done   chan struct{}
}

// hub fans bus events out to websocket subscribers. A subscriber that falls
// behind by more than subscriberBuffer events loses the overflow.
type hub struct {
	sync.Mutex
	bus    chainbus.Bus
	subs   map[*subscriber]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) attach(bus chainbus.Bus) error {
	if bus == nil {
		return nil
	}
	for _, topic := range eventTopics {
		if err := bus.Subscribe(topic, h.publish); err != nil {
			return err
		}
	}
	h.bus = bus
	return nil
}

func (h *hub) publish(ev *types.Event) {
	h.Lock()
	defer h.Unlock()
	for sub := range h.subs {
		if !sub.filter.match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.WithFields(log.Fields{
				"type":  ev.Type,
				"owner": ev.Owner.Hex(),
			}).Warning("event subscriber lagging, event dropped")
		}
	}
}

func (h *hub) subscribe(f *filter) *subscriber {
	sub := &subscriber{
		filter: f,
		ch:     make(chan *types.Event, subscriberBuffer),
		done:   make(chan struct{}),
	}
	h.Lock()
	defer h.Unlock()
	if h.closed {
		close(sub.done)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.Lock()
	defer h.Unlock()
	delete(h.subs, sub)
}

func (h *hub) close() {
	h.Lock()
	defer h.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.done)
		delete(h.subs, sub)
	}
	if h.bus != nil {
		for _, topic := range eventTopics {
			_ = h.bus.Unsubscribe(topic, h.publish)
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) serveEvents(rw http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.RawQuery)
	if err != nil {
		sendError(rw, err)
		return
	}
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.WithError(err).Error("upgrade http connection to websocket failed")
		return
	}
	defer conn.Close()

	sub := s.events.subscribe(f)
	defer s.events.unsubscribe(sub)

	ctx := context.Background()
	rpc := jsonrpc2.NewConn(ctx, wsstream.NewObjectStream(conn), s.rpc)
	defer rpc.Close()

	for {
		select {
		case <-rpc.DisconnectNotify():
			return
		case <-sub.done:
			return
		case ev := <-sub.ch:
			if err := rpc.Notify(ctx, MethodEvent, ev); err != nil {
				log.WithError(err).Debug("notify event failed")
				return
			}
		}
	}
}
