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

// Package unlock implements the unlock session: the procedure that turns a
// key handle into usable key material after the owner signs a bounded reveal
// assertion, and the volatile holder of that material.
//
// A session moves Locked -> Unlocking -> Unlocked -> Locked. Lock, Close and
// the end of the assertion validity window all return it to Locked and wipe
// the key.
package unlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/crypto"
	ca "github.com/CovenantSQL/SecretLedger/crypto/asymmetric"
	"github.com/CovenantSQL/SecretLedger/crypto/eip712"
	"github.com/CovenantSQL/SecretLedger/crypto/symmetric"
	"github.com/CovenantSQL/SecretLedger/metric"
	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
	"github.com/CovenantSQL/SecretLedger/vault"
	"github.com/CovenantSQL/SecretLedger/wallet"
)

const (
	// DefaultValidity is the validity window of reveal assertions.
	DefaultValidity = 10 * 24 * time.Hour
	// KeyMaterialSize is the length of well formed pouch key material.
	KeyMaterialSize = proto.AddressLength
)

var (
	// ErrMalformedKeyMaterial indicates revealed material of the wrong shape.
	ErrMalformedKeyMaterial = errors.New("unlock: malformed key material")
	// ErrUnlockInProgress indicates Unlock on a session already unlocking.
	ErrUnlockInProgress = errors.New("unlock: unlock in progress")
	// ErrLocked indicates a cipher operation on a locked session.
	ErrLocked = errors.New("unlock: session locked")
	// ErrSessionClosed indicates use of a closed session.
	ErrSessionClosed = errors.New("unlock: session closed")
)

// State of a session.
type State int

const (
	// StateLocked holds no key material.
	StateLocked State = iota
	// StateUnlocking waits for the owner signature or the vault.
	StateUnlocking
	// StateUnlocked holds key material.
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "Locked"
	case StateUnlocking:
		return "Unlocking"
	case StateUnlocked:
		return "Unlocked"
	default:
		return "Unknown"
	}
}

// Revealer is the vault capability a session needs.
type Revealer interface {
	Reveal(ctx context.Context, req *vault.RevealRequest) ([]byte, error)
}

// Config configures a Session.
type Config struct {
	Wallet wallet.Wallet
	Vault  Revealer
	Domain eip712.Domain
	// Scope is the set of ledgers the assertion names.
	Scope []proto.LedgerID
	// Validity defaults to DefaultValidity.
	Validity time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Session is one unlock session of an owner.
type Session struct {
	mu        sync.Mutex
	cfg       Config
	id        uuid.UUID
	state     State
	closed    bool
	cipher    *symmetric.Cipher
	expiresAt time.Time
	timer     *time.Timer
	gen       uint64
}

// NewSession returns a locked session.
func NewSession(cfg *Config) *Session {
	s := &Session{cfg: *cfg}
	if s.cfg.Validity <= 0 {
		s.cfg.Validity = DefaultValidity
	}
	if s.cfg.Clock == nil {
		s.cfg.Clock = time.Now
	}
	return s
}

// ID returns the id of the current or last unlock, empty before the first.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == uuid.Nil {
		return ""
	}
	return s.id.String()
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExpiresAt returns the end of the validity window while unlocked.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Unlock reveals the material of handle. On any failure, including ctx
// cancellation, the session ends Locked and retains nothing.
func (s *Session) Unlock(ctx context.Context, handle proto.KeyHandle) (err error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.state == StateUnlocking:
		s.mu.Unlock()
		return ErrUnlockInProgress
	case s.state == StateUnlocked:
		s.lockLocked()
	}
	s.state = StateUnlocking
	s.id = uuid.New()
	s.gen++
	gen, id := s.gen, s.id
	s.mu.Unlock()

	le := log.WithFields(log.Fields{"session": id.String(), "handle": handle.Hex()})
	le.Debug("unlocking")

	c, expiresAt, err := s.reveal(ctx, handle)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil && s.closed {
		err = ErrSessionClosed
	} else if err == nil && s.gen != gen {
		err = errors.Wrap(ErrLocked, "locked while unlocking")
	}
	if err != nil {
		if c != nil {
			c.Wipe()
		}
		if s.gen == gen {
			s.state = StateLocked
		}
		le.WithError(err).Debug("unlock failed")
		return
	}

	s.cipher = c
	s.state = StateUnlocked
	s.expiresAt = expiresAt
	s.timer = time.AfterFunc(expiresAt.Sub(s.cfg.Clock()), func() { s.expire(gen) })
	metric.UnlockedSessions.Inc()
	le.WithField("expires", expiresAt).Info("session unlocked")
	return
}

func (s *Session) reveal(ctx context.Context, handle proto.KeyHandle) (
	c *symmetric.Cipher, expiresAt time.Time, err error,
) {
	eph, ephPub, err := ca.GenSecp256k1KeyPair()
	if err != nil {
		return
	}
	defer eph.D.SetUint64(0)

	now := s.cfg.Clock()
	a := eip712.NewRevealAssertion(ephPub, s.cfg.Scope, now, s.cfg.Validity)
	sig, err := s.cfg.Wallet.SignTypedData(ctx, eip712.TypedData(s.cfg.Domain, a))
	if err != nil {
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}

	out, err := s.cfg.Vault.Reveal(ctx, &vault.RevealRequest{
		Handle:       handle,
		Assertion:    a,
		Signature:    []byte(sig),
		EphemeralKey: ephPub.Serialize(),
	})
	if err != nil {
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}

	material, err := crypto.DecryptAndCheck(eph, out)
	if err != nil {
		err = errors.Wrap(ErrMalformedKeyMaterial, err.Error())
		return
	}
	defer utils.ZeroBytes(material)
	if len(material) != KeyMaterialSize {
		err = ErrMalformedKeyMaterial
		return
	}
	if c, err = symmetric.NewCipher(material); err != nil {
		return
	}
	expiresAt = now.Add(s.cfg.Validity)
	return
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != StateUnlocked {
		return
	}
	s.lockLocked()
	log.WithField("session", s.id.String()).Info("unlock session expired")
}

// lockLocked wipes the key. s.mu must be held.
func (s *Session) lockLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cipher != nil {
		s.cipher.Wipe()
		s.cipher = nil
	}
	if s.state == StateUnlocked {
		metric.UnlockedSessions.Dec()
	}
	s.state = StateLocked
	s.expiresAt = time.Time{}
}

// Lock wipes the key material. Locking a locked session is a no-op; a pending
// Unlock is abandoned.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnlocking {
		s.gen++
	}
	s.lockLocked()
}

// Close locks the session for good.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
	s.lockLocked()
	return nil
}

func (s *Session) current() (*symmetric.Cipher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked || s.cipher == nil {
		return nil, ErrLocked
	}
	return s.cipher, nil
}

// Encrypt seals plaintext under the unlocked key.
func (s *Session) Encrypt(plaintext string) (string, error) {
	c, err := s.current()
	if err != nil {
		return "", err
	}
	wire, err := c.Encrypt(plaintext)
	if err == symmetric.ErrWiped {
		err = ErrLocked
	}
	return wire, err
}

// Decrypt opens a sl1 string under the unlocked key.
func (s *Session) Decrypt(wire string) (string, error) {
	c, err := s.current()
	if err != nil {
		return "", err
	}
	plain, err := c.Decrypt(wire)
	if err == symmetric.ErrWiped {
		err = ErrLocked
	}
	return plain, err
}
