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

package handlers

import (
	"errors"

	"meshnode/peerbook"
)

// ErrPayloadTooShort is returned when a command payload is shorter than
// its wire format requires.
var ErrPayloadTooShort = errors.New("handlers: payload too short")

// onlinePayload is the decoded Node.OnLine payload: session_id (16B) ||
// be_u16 endpoints_length || endpoints_bytes || ephemeral_public (32B),
// where endpoints_bytes is a length-prefixed-string list followed by a
// trailing 1-byte scope flag.
type onlinePayload struct {
	SessionID      [16]byte
	Endpoints      []string
	Scope          peerbook.Scope
	EphemeralPublic [32]byte
}

func encodeEndpointList(endpoints []string, scope peerbook.Scope) []byte {
	var buf []byte
	for _, ep := range endpoints {
		buf = append(buf, beU16(uint16(len(ep)))...)
		buf = append(buf, []byte(ep)...)
	}
	buf = append(buf, byte(scope))
	return buf
}

func decodeEndpointList(b []byte) ([]string, peerbook.Scope, error) {
	if len(b) < 1 {
		return nil, 0, ErrPayloadTooShort
	}
	scope := peerbook.Scope(b[len(b)-1])
	rest := b[:len(b)-1]
	var endpoints []string
	for len(rest) > 0 {
		if len(rest) < 2 {
			return nil, 0, ErrPayloadTooShort
		}
		n := int(rest[0])<<8 | int(rest[1])
		rest = rest[2:]
		if len(rest) < n {
			return nil, 0, ErrPayloadTooShort
		}
		endpoints = append(endpoints, string(rest[:n]))
		rest = rest[n:]
	}
	return endpoints, scope, nil
}

func encodeOnline(sessionID [16]byte, endpoints []string, scope peerbook.Scope, ephemeralPublic [32]byte) []byte {
	endpointBytes := encodeEndpointList(endpoints, scope)
	out := make([]byte, 0, 16+2+len(endpointBytes)+32)
	out = append(out, sessionID[:]...)
	out = append(out, beU16(uint16(len(endpointBytes)))...)
	out = append(out, endpointBytes...)
	out = append(out, ephemeralPublic[:]...)
	return out
}

func decodeOnline(data []byte) (*onlinePayload, error) {
	if len(data) < 16+2+32 {
		return nil, ErrPayloadTooShort
	}
	p := &onlinePayload{}
	copy(p.SessionID[:], data[:16])
	rest := data[16:]

	n := int(rest[0])<<8 | int(rest[1])
	rest = rest[2:]
	if len(rest) < n+32 {
		return nil, ErrPayloadTooShort
	}
	endpointBytes := rest[:n]
	rest = rest[n:]

	endpoints, scope, err := decodeEndpointList(endpointBytes)
	if err != nil {
		return nil, err
	}
	p.Endpoints = endpoints
	p.Scope = scope
	copy(p.EphemeralPublic[:], rest[:32])
	return p, nil
}

// onlineAckPayload is the decoded Node.OnLineAck payload: session_id
// (16B) || address string || ephemeral_public (32B).
type onlineAckPayload struct {
	SessionID       [16]byte
	Address         string
	EphemeralPublic [32]byte
}

func encodeOnlineAck(sessionID [16]byte, address string, ephemeralPublic [32]byte) []byte {
	out := make([]byte, 0, 16+2+len(address)+32)
	out = append(out, sessionID[:]...)
	out = append(out, beU16(uint16(len(address)))...)
	out = append(out, []byte(address)...)
	out = append(out, ephemeralPublic[:]...)
	return out
}

func decodeOnlineAck(data []byte) (*onlineAckPayload, error) {
	if len(data) < 16+2 {
		return nil, ErrPayloadTooShort
	}
	p := &onlineAckPayload{}
	copy(p.SessionID[:], data[:16])
	rest := data[16:]
	n := int(rest[0])<<8 | int(rest[1])
	rest = rest[2:]
	if len(rest) < n+32 {
		return nil, ErrPayloadTooShort
	}
	p.Address = string(rest[:n])
	rest = rest[n:]
	copy(p.EphemeralPublic[:], rest[:32])
	return p, nil
}

// sendTextPayload is the decoded Message.SendText payload: receiver
// string || timestamp (u128, ms since epoch, big-endian) || text string.
type sendTextPayload struct {
	Receiver  string
	Timestamp [16]byte
	Text      string
}

// beU128FromMillis packs a millisecond-since-epoch count into the
// low-order bytes of a big-endian 128-bit field, the high bytes zero.
func beU128FromMillis(ms uint64) [16]byte {
	var b [16]byte
	for i := 15; i >= 8; i-- {
		b[i] = byte(ms)
		ms >>= 8
	}
	return b
}

func encodeSendText(receiver string, timestamp [16]byte, text string) []byte {
	out := make([]byte, 0, 2+len(receiver)+16+2+len(text))
	out = append(out, beU16(uint16(len(receiver)))...)
	out = append(out, []byte(receiver)...)
	out = append(out, timestamp[:]...)
	out = append(out, beU16(uint16(len(text)))...)
	out = append(out, []byte(text)...)
	return out
}

func decodeSendText(data []byte) (*sendTextPayload, error) {
	if len(data) < 2 {
		return nil, ErrPayloadTooShort
	}
	n := int(data[0])<<8 | int(data[1])
	rest := data[2:]
	if len(rest) < n+16+2 {
		return nil, ErrPayloadTooShort
	}
	receiver := string(rest[:n])
	rest = rest[n:]

	var ts [16]byte
	copy(ts[:], rest[:16])
	rest = rest[16:]

	tn := int(rest[0])<<8 | int(rest[1])
	rest = rest[2:]
	if len(rest) < tn {
		return nil, ErrPayloadTooShort
	}
	text := string(rest[:tn])

	return &sendTextPayload{Receiver: receiver, Timestamp: ts, Text: text}, nil
}

func beU16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}
