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

// Package codec implements the deterministic binary encoding used for
// everything that ends up inside a signed frame body. There is exactly one
// canonical wire form per value: fixed-width integers are big-endian,
// variable-length fields are length-prefixed with a uint32, and field order
// always matches struct declaration order. Two peers encoding the same
// value always produce the same bytes, which is what makes a detached
// signature over the encoding meaningful.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Error codes
var (
	ErrTruncated   = errors.New("codec: truncated input")
	ErrFieldTooBig = errors.New("codec: length-prefixed field exceeds limit")
)

// MaxFieldLen bounds any single length-prefixed field, guarding a
// corrupt or hostile peer from forcing an oversized allocation.
const MaxFieldLen = 1 << 20

// Writer accumulates a canonical byte encoding.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// U8 writes a single byte.
func (w *Writer) U8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

// U16 writes a big-endian uint16.
func (w *Writer) U16(v uint16) *Writer {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return w
}

// U32 writes a big-endian uint32.
func (w *Writer) U32(v uint32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

// U64 writes a big-endian uint64.
func (w *Writer) U64(v uint64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
	return w
}

// Fixed writes raw bytes with no length prefix; the caller guarantees a
// fixed, known size on both ends (e.g. a public key or signature).
func (w *Writer) Fixed(b []byte) *Writer {
	w.buf.Write(b)
	return w
}

// VarBytes writes a length-prefixed byte slice.
func (w *Writer) VarBytes(b []byte) *Writer {
	w.U32(uint32(len(b)))
	w.buf.Write(b)
	return w
}

// String writes a length-prefixed UTF-8 string.
func (w *Writer) String(s string) *Writer {
	w.VarBytes([]byte(s))
	return w
}

// Reader consumes a canonical byte encoding in order.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps a byte slice for sequential decoding.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// Fixed reads exactly n raw bytes.
func (r *Reader) Fixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, r.buf[r.pos:r.pos+n])
	r.pos += n
	return v, nil
}

// VarBytes reads a length-prefixed byte slice.
func (r *Reader) VarBytes() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if n > MaxFieldLen {
		return nil, ErrFieldTooBig
	}
	return r.Fixed(int(n))
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	b, err := r.VarBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
