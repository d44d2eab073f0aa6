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

package vault

import (
	"context"
	"net/http"
	"strings"

	"github.com/dghubble/sling"
	"github.com/pkg/errors"

	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/eip712"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/utils/web"
)

// Client is a Vault reached over HTTP.
type Client struct {
	base  *sling.Sling
	token string
}

// NewClient returns a client of the vault at endpoint. token is only needed
// for Mint and Allow. A nil httpClient uses http.DefaultClient.
func NewClient(endpoint, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:  sling.New().Client(httpClient).Base(strings.TrimRight(endpoint, "/")+"/").Set("Accept", "application/json"),
		token: token,
	}
}

func (c *Client) service() *sling.Sling {
	return c.base.New().Set("Authorization", "Bearer "+c.token)
}

// mapError turns transport and envelope failures into vault errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == web.ErrTransport {
		return errors.Wrap(ErrVaultUnavailable, err.Error())
	}
	re, ok := err.(*web.RemoteError)
	if !ok {
		return err
	}
	switch re.Code {
	case CodeUnauthorized:
		return ErrUnauthorized
	case CodeInvalidProof:
		return ErrInvalidProof
	case CodeInvalidMaterial:
		return ErrInvalidMaterial
	case CodeInvalidRequest:
		return errors.Wrap(ErrInvalidRequest, re.Status)
	}
	if re.HTTPCode >= http.StatusInternalServerError {
		return errors.Wrap(ErrVaultUnavailable, re.Error())
	}
	return re
}

// PublicKey implements Vault.PublicKey.
func (c *Client) PublicKey(ctx context.Context) (pub *ca.PublicKey, err error) {
	var resp publicKeyResponse
	if err = mapError(web.Do(ctx, c.base.New().Get("v1/vault/pubkey"), &resp)); err != nil {
		return
	}
	return ca.ParsePubKey(resp.PublicKey)
}

// Domain returns the EIP-712 domain the vault verifies assertions under.
func (c *Client) Domain(ctx context.Context) (d eip712.Domain, err error) {
	err = mapError(web.Do(ctx, c.base.New().Get("v1/vault/domain"), &d))
	return
}

// Mint implements Vault.Mint.
func (c *Client) Mint(ctx context.Context, scope Scope, encryptedMaterial, proof []byte) (h proto.KeyHandle, err error) {
	var resp handleResponse
	req := &mintRequest{Scope: scope, EncryptedMaterial: encryptedMaterial, Proof: proof}
	if err = mapError(web.Do(ctx, c.service().Post("v1/vault/mint").BodyJSON(req), &resp)); err != nil {
		return
	}
	return resp.Handle, nil
}

// Allow implements Vault.Allow.
func (c *Client) Allow(ctx context.Context, h proto.KeyHandle, caller, grantee proto.Address) error {
	req := &allowRequest{Handle: h, Caller: caller, Grantee: grantee}
	return mapError(web.Do(ctx, c.service().Post("v1/vault/allow").BodyJSON(req), nil))
}

// Reveal implements Vault.Reveal.
func (c *Client) Reveal(ctx context.Context, req *RevealRequest) (out []byte, err error) {
	var resp revealResponse
	if err = mapError(web.Do(ctx, c.base.New().Post("v1/vault/reveal").BodyJSON(req), &resp)); err != nil {
		return
	}
	return resp.Material, nil
}
