// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package session implements the end-to-end session-key contract: an
// ephemeral X25519 Diffie-Hellman exchange establishing a ChaCha20-Poly1305
// AEAD key, with Pending/Established/Expired state transitions and a
// temp-session map keyed by a 16-byte session id for the handshake window,
// whose idle entries Sweep removes.
package session

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/bfix/gospel/logger"
	"github.com/google/uuid"
)

// Error codes
var (
	ErrAlreadyEstablished = errors.New("session: already established")
	ErrNotEstablished     = errors.New("session: not yet established")
	ErrDecryptFailed      = errors.New("session: decrypt failed")
	ErrUnknownSession     = errors.New("session: unknown session id")
)

// State is the lifecycle stage of a Session.
type State int

// Session states.
const (
	StatePending State = iota
	StateEstablished
	StateExpired
)

// nonceSize is the AEAD nonce length prepended to ciphertexts, per the
// 24-byte random nonce contract; ChaCha20-Poly1305's extended-nonce
// variant (XChaCha20-Poly1305) is used so a uniformly random 24-byte
// value is safe to draw per message.
const nonceSize = 24

// Session is one end-to-end ephemeral key-exchange session with a peer.
type Session struct {
	mu        sync.Mutex
	state     State
	prv       [32]byte
	pub       [32]byte
	shared    [32]byte
	aead      cipher.AEAD
	createdAt time.Time
	updatedAt time.Time
}

// New creates a pending session with a freshly generated ephemeral X25519
// keypair.
func New() (*Session, error) {
	var prv [32]byte
	if _, err := rand.Read(prv[:]); err != nil {
		return nil, err
	}
	var pub [32]byte
	c, err := curve25519.X25519(prv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(pub[:], c)
	now := time.Now()
	return &Session{
		state:     StatePending,
		prv:       prv,
		pub:       pub,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// EphemeralPublic returns this session's ephemeral public key, the value
// carried in an OnLine/OnLineAck payload.
func (s *Session) EphemeralPublic() [32]byte {
	return s.pub
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Establish derives the shared AEAD key from the peer's ephemeral public
// key. It fails with ErrAlreadyEstablished if called twice.
func (s *Session) Establish(peerPublic [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEstablished {
		return ErrAlreadyEstablished
	}
	shared, err := curve25519.X25519(s.prv[:], peerPublic[:])
	if err != nil {
		return err
	}
	copy(s.shared[:], shared)
	aead, err := chacha20poly1305.NewX(s.shared[:])
	if err != nil {
		return err
	}
	s.aead = aead
	s.state = StateEstablished
	s.updatedAt = time.Now()
	logger.Printf(logger.DBG, "[session] established\n")
	return nil
}

// Encrypt prepends a random 24-byte nonce and AEAD-encrypts plaintext.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstablished {
		return nil, ErrNotEstablished
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := s.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

// Decrypt splits the leading nonce from data and AEAD-decrypts the rest.
func (s *Session) Decrypt(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstablished {
		return nil, ErrNotEstablished
	}
	if len(data) < nonceSize {
		return nil, ErrDecryptFailed
	}
	nonce, ct := data[:nonceSize], data[nonceSize:]
	pt, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}

// Touch updates updated_at to now, resetting the expiry clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
}

// IsExpired reports whether the session has been idle longer than ttl.
func (s *Session) IsExpired(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.updatedAt) > ttl {
		s.state = StateExpired
		return true
	}
	return false
}

// NewSessionID generates a 16-byte session identifier for the temp-session
// map: the 16 raw bytes of a random (version 4) UUID.
func NewSessionID() [16]byte {
	id := uuid.New()
	var out [16]byte
	copy(out[:], id[:])
	return out
}
