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

// Package identity implements the signing identity of a node: an Ed25519
// keypair and the 20-byte address derived from its public key.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/bfix/gospel/logger"
)

// AddressSize is the length in bytes of a derived peer address.
const AddressSize = 20

// Error codes
var (
	ErrInvalidSeed      = errors.New("identity: invalid private key seed size")
	ErrInvalidPublicKey = errors.New("identity: invalid public key size")
	ErrInvalidSignature = errors.New("identity: invalid signature size")
	ErrVerifyFailed     = errors.New("identity: signature verification failed")
)

// Address is the 20-byte SHA-256-derived identifier of a peer, computed
// as the leading bytes of SHA-256(public key).
type Address [AddressSize]byte

// DeriveAddress computes the address for a given Ed25519 public key.
func DeriveAddress(pub ed25519.PublicKey) Address {
	sum := sha256.Sum256(pub)
	var a Address
	copy(a[:], sum[:AddressSize])
	return a
}

// String returns the hex encoding of an address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Equals reports whether two addresses match.
func (a Address) Equals(b Address) bool {
	return a == b
}

// ParseAddress decodes a hex-encoded address string.
func ParseAddress(s string) (a Address, err error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, err
	}
	if len(b) != AddressSize {
		return a, ErrInvalidPublicKey
	}
	copy(a[:], b)
	return a, nil
}

// Public is the publicly shareable half of an identity: the raw Ed25519
// public key plus its derived address.
type Public struct {
	Key     ed25519.PublicKey
	Address Address
}

// NewPublic wraps a raw public key, deriving its address.
func NewPublic(key ed25519.PublicKey) (*Public, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	return &Public{
		Key:     key,
		Address: DeriveAddress(key),
	}, nil
}

// Verify checks a detached signature over data.
func (p *Public) Verify(data, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(p.Key, data, sig)
}

// Identity is a node's local signing keypair.
type Identity struct {
	priv   ed25519.PrivateKey
	public *Public
}

// Generate creates a fresh random identity.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	p, err := NewPublic(pub)
	if err != nil {
		return nil, err
	}
	logger.Printf(logger.DBG, "[identity] generated new identity '%s'\n", p.Address)
	return &Identity{priv: priv, public: p}, nil
}

// FromSeed restores an identity from its 32-byte private seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeed
	}
	priv := ed25519.NewKeyFromSeed(seed)
	p, err := NewPublic(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Identity{priv: priv, public: p}, nil
}

// Seed returns the 32-byte private seed for persistence.
func (id *Identity) Seed() []byte {
	return id.priv.Seed()
}

// Public returns the identity's public half.
func (id *Identity) Public() *Public {
	return id.public
}

// Address is a shortcut for Public().Address.
func (id *Identity) Address() Address {
	return id.public.Address
}

// Sign produces a detached Ed25519 signature over data.
func (id *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(id.priv, data)
}
