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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dghubble/sling"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"

	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/types"
	"github.com/CovenantSQL/SecretLedger/utils/web"
)

// Client is a Ledger reached over HTTP.
type Client struct {
	endpoint string
	base     *sling.Sling
	id       proto.LedgerID
}

// Dial connects to the ledger at endpoint and fetches its id. A nil
// httpClient uses http.DefaultClient.
func Dial(ctx context.Context, endpoint string, httpClient *http.Client) (c *Client, err error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint = strings.TrimRight(endpoint, "/") + "/"
	c = &Client{
		endpoint: endpoint,
		base:     sling.New().Client(httpClient).Base(endpoint).Set("Accept", "application/json"),
	}
	var resp ledgerResponse
	if err = mapError(web.Do(ctx, c.base.New().Get("v1/ledger"), &resp)); err != nil {
		return nil, err
	}
	c.id = resp.ID
	return
}

func ownerPath(owner proto.Address, suffix string) string {
	return "v1/owners/" + owner.Hex() + "/" + suffix
}

// ID returns the id of the remote ledger.
func (c *Client) ID() proto.LedgerID {
	return c.id
}

// NextNonce returns the nonce the next transaction of owner must carry.
func (c *Client) NextNonce(ctx context.Context, owner proto.Address) (types.AccountNonce, error) {
	var resp nonceResponse
	err := mapError(web.Do(ctx, c.base.New().Get(ownerPath(owner, "nonce")), &resp))
	return resp.Nonce, err
}

// GetKeyHandle returns the current key handle of owner.
func (c *Client) GetKeyHandle(ctx context.Context, owner proto.Address) (proto.KeyHandle, error) {
	var resp handleResponse
	err := mapError(web.Do(ctx, c.base.New().Get(ownerPath(owner, "handle")), &resp))
	return resp.Handle, err
}

// GetKeyRecord returns the key record of owner.
func (c *Client) GetKeyRecord(ctx context.Context, owner proto.Address) (r *types.KeyRecord, err error) {
	r = new(types.KeyRecord)
	if err = mapError(web.Do(ctx, c.base.New().Get(ownerPath(owner, "record")), r)); err != nil {
		return nil, err
	}
	return
}

// EntryCount returns the number of entries of owner.
func (c *Client) EntryCount(ctx context.Context, owner proto.Address) (uint64, error) {
	var resp countResponse
	err := mapError(web.Do(ctx, c.base.New().Get(ownerPath(owner, "entries/count")), &resp))
	return resp.Count, err
}

// GetEntry returns entry index of owner.
func (c *Client) GetEntry(ctx context.Context, owner proto.Address, index uint64) (e *types.Entry, err error) {
	e = new(types.Entry)
	path := ownerPath(owner, "entries/"+strconv.FormatUint(index, 10))
	if err = mapError(web.Do(ctx, c.base.New().Get(path), e)); err != nil {
		return nil, err
	}
	return
}

// GetEntries returns every entry of owner in index order.
func (c *Client) GetEntries(ctx context.Context, owner proto.Address) (entries []*types.Entry, err error) {
	err = mapError(web.Do(ctx, c.base.New().Get(ownerPath(owner, "entries")), &entries))
	return
}

// Apply submits a signed transaction.
func (c *Client) Apply(ctx context.Context, tx types.Transaction) (r *types.Receipt, err error) {
	body, err := types.EncodeTransaction(tx)
	if err != nil {
		return nil, errors.Wrap(err, "encode transaction failed")
	}
	req := c.base.New().Post("v1/tx").
		Set("Content-Type", ContentTypeTransaction).
		Body(bytes.NewReader(body))
	r = new(types.Receipt)
	if err = mapError(web.Do(ctx, req, r)); err != nil {
		return nil, err
	}
	return
}

// eventHandler delivers MethodEvent notifications.
type eventHandler func(*types.Event)

func (h eventHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if !req.Notif || req.Method != MethodEvent || req.Params == nil {
		return
	}
	var ev types.Event
	if json.Unmarshal(*req.Params, &ev) == nil {
		h(&ev)
	}
}

// Watch calls fn with every event of owner, or of every owner when owner is
// zero, until ctx is done or the connection drops. Only events of the given
// types are delivered when any are given.
func (c *Client) Watch(ctx context.Context, owner proto.Address, fn func(*types.Event), eventTypes ...types.EventType) error {
	u, err := url.Parse(c.endpoint + "v1/events")
	if err != nil {
		return errors.Wrap(err, "parse events url failed")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := url.Values{}
	if !owner.IsZero() {
		q.Set("owner", owner.Hex())
	}
	for _, t := range eventTypes {
		q.Add("types[]", string(t))
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return errors.Wrap(ErrLedgerUnavailable, err.Error())
	}
	rpc := jsonrpc2.NewConn(ctx, wsstream.NewObjectStream(conn), eventHandler(fn))
	defer rpc.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-rpc.DisconnectNotify():
		return errors.Wrap(ErrLedgerUnavailable, "event stream closed")
	}
}
