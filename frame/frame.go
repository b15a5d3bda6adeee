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

// Package frame implements the signed envelope carried over every
// connection: a canonical body plus a detached signature, with the
// per-sender replay-nonce bookkeeping that guards the forwarding core
// against reprocessing the same frame twice.
package frame

import (
	"crypto/ed25519"
	"errors"

	"meshnode/codec"
	"meshnode/identity"
	"meshnode/util"
)

// CurrentVersion is the protocol version this node produces.
const CurrentVersion = 1

// Error codes
var (
	ErrDecodeFailed       = errors.New("frame: decode failed")
	ErrAddressMismatch    = errors.New("frame: sender_address does not match derived address")
	ErrBadSignature       = errors.New("frame: signature verification failed")
	ErrUnsupportedVersion = errors.New("frame: unsupported protocol version")
	ErrPayloadLenMismatch = errors.New("frame: payload_length does not match payload size")
	ErrReplayedNonce      = errors.New("frame: nonce already seen from this sender")
)

// Body is the signed portion of a frame.
type Body struct {
	Version         uint8
	SenderAddress   string
	SenderPublicKey []byte
	Nonce           uint64
	PayloadLength   uint32
	Payload         []byte
}

// encode produces the canonical byte form of the body: the exact bytes the
// signature is computed over, in field order (version, sender_address,
// sender_public_key, nonce, payload_length, payload).
func (b *Body) encode() []byte {
	w := codec.NewWriter()
	w.U8(b.Version).
		String(b.SenderAddress).
		VarBytes(b.SenderPublicKey).
		U64(b.Nonce).
		U32(b.PayloadLength).
		VarBytes(b.Payload)
	return w.Bytes()
}

func decodeBody(r *codec.Reader) (*Body, error) {
	b := &Body{}
	var err error
	if b.Version, err = r.U8(); err != nil {
		return nil, ErrDecodeFailed
	}
	if b.SenderAddress, err = r.String(); err != nil {
		return nil, ErrDecodeFailed
	}
	if b.SenderPublicKey, err = r.VarBytes(); err != nil {
		return nil, ErrDecodeFailed
	}
	if b.Nonce, err = r.U64(); err != nil {
		return nil, ErrDecodeFailed
	}
	if b.PayloadLength, err = r.U32(); err != nil {
		return nil, ErrDecodeFailed
	}
	if b.Payload, err = r.VarBytes(); err != nil {
		return nil, ErrDecodeFailed
	}
	return b, nil
}

// Frame is the immutable, signed envelope exchanged between peers.
type Frame struct {
	Body      *Body
	Signature []byte
}

// Encode serializes the full envelope: body bytes length-prefixed,
// followed by the detached signature length-prefixed.
func (f *Frame) Encode() []byte {
	bodyBytes := f.Body.encode()
	w := codec.NewWriter()
	w.VarBytes(bodyBytes).VarBytes(f.Signature)
	return w.Bytes()
}

// Build fills sender address and public key from id, draws a random
// nonce, encodes payload into the body, and signs the canonical body
// encoding.
func Build(id *identity.Identity, payload []byte) *Frame {
	body := &Body{
		Version:         CurrentVersion,
		SenderAddress:   id.Address().String(),
		SenderPublicKey: []byte(id.Public().Key),
		Nonce:           util.RndUInt64(),
		PayloadLength:   uint32(len(payload)),
		Payload:         payload,
	}
	sig := id.Sign(body.encode())
	return &Frame{Body: body, Signature: sig}
}

// VerifyBytes decodes a wire-format frame and fully verifies it: the
// sender address must match the derivation of the embedded public key,
// the signature must verify, the declared payload length must match the
// actual payload, and the version must be supported. It does not check
// for replay; callers use a Window for that.
func VerifyBytes(raw []byte) (*Frame, error) {
	r := codec.NewReader(raw)
	bodyBytes, err := r.VarBytes()
	if err != nil {
		return nil, ErrDecodeFailed
	}
	sig, err := r.VarBytes()
	if err != nil {
		return nil, ErrDecodeFailed
	}
	body, err := decodeBody(codec.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	if body.Version != CurrentVersion {
		return nil, ErrUnsupportedVersion
	}
	if body.PayloadLength != uint32(len(body.Payload)) {
		return nil, ErrPayloadLenMismatch
	}
	if len(body.SenderPublicKey) != ed25519.PublicKeySize {
		return nil, ErrDecodeFailed
	}
	pub, err := identity.NewPublic(body.SenderPublicKey)
	if err != nil {
		return nil, ErrDecodeFailed
	}
	if pub.Address.String() != body.SenderAddress {
		return nil, ErrAddressMismatch
	}
	if !pub.Verify(bodyBytes, sig) {
		return nil, ErrBadSignature
	}
	return &Frame{Body: body, Signature: sig}, nil
}
