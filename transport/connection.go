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

package transport

import (
	"bufio"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Kind identifies which transport variant a Connection currently is.
type Kind int

// Connection kinds.
const (
	KindDatagram Kind = iota
	KindStream
	KindHTTP
	KindWebSocket
)

func (k Kind) String() string {
	switch k {
	case KindDatagram:
		return "datagram"
	case KindStream:
		return "stream"
	case KindHTTP:
		return "http"
	case KindWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// Connection is a tagged union over the four transport variants named in
// the data model: datagram-to-peer, duplex stream, duplex stream currently
// framed as HTTP/1.1, duplex stream currently framed as WebSocket. Stream
// variants carry independently lockable read and write halves so one
// goroutine can write while another reads.
type Connection struct {
	kind Kind

	// stream-based variants
	conn   net.Conn
	reader *bufio.Reader
	rmu    sync.Mutex
	wmu    sync.Mutex

	// websocket variant, set once the connection has been upgraded
	ws *websocket.Conn

	// datagram variant
	pc       net.PacketConn
	peerAddr net.Addr

	// RemotePeer is the best-known peer address string for this
	// connection, filled in once the first frame is verified. Empty
	// until then.
	RemotePeer string
}

// NewStreamConnection wraps an accepted stream (e.g. a TCP net.Conn) for
// the raw framed path.
func NewStreamConnection(conn net.Conn) *Connection {
	return &Connection{kind: KindStream, conn: conn, reader: bufio.NewReaderSize(conn, 4096)}
}

// NewDatagramConnection wraps a packet connection bound to a single peer
// address.
func NewDatagramConnection(pc net.PacketConn, peer net.Addr) *Connection {
	return &Connection{kind: KindDatagram, pc: pc, peerAddr: peer}
}

// Kind reports the connection's current transport variant.
func (c *Connection) Kind() Kind {
	return c.kind
}

// Peek returns up to n bytes from the stream without consuming them, used
// by the protocol sniff to decide between the raw framed path and the
// HTTP path.
func (c *Connection) Peek(n int) ([]byte, error) {
	return c.reader.Peek(n)
}

// PromoteHTTP marks the connection as carrying HTTP/1.1 framing, after a
// successful sniff.
func (c *Connection) PromoteHTTP() {
	c.kind = KindHTTP
}

// PromoteWebSocket switches the connection to the WebSocket variant after
// a successful RFC 6455 handshake, wrapping the same underlying net.Conn.
func (c *Connection) PromoteWebSocket() {
	c.ws = websocket.NewConn(c.conn, true, 0, 0, c.reader, nil, nil)
	c.kind = KindWebSocket
}

// Reader exposes the buffered reader backing a stream/HTTP connection, for
// handing off to an external HTTP router or the raw read loop.
func (c *Connection) Reader() *bufio.Reader {
	return c.reader
}

// Conn exposes the underlying net.Conn, e.g. to write the raw WebSocket
// handshake response bytes before promoting.
func (c *Connection) Conn() net.Conn {
	return c.conn
}

// ReadFrame reads one length-prefixed frame payload off a stream
// connection's read half. Only valid for KindStream.
func (c *Connection) ReadFrame() ([]byte, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	var hdr [4]byte
	if _, err := fullRead(c.reader, hdr[:]); err != nil {
		return nil, err
	}
	size := beUint32(hdr[:])
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, size)
	if _, err := fullRead(c.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes one length-prefixed frame payload to a stream
// connection's write half, locking it for the duration so concurrent
// senders cannot interleave bytes.
func (c *Connection) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	var hdr [4]byte
	putBeUint32(hdr[:], uint32(len(payload)))
	if _, err := c.conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := c.conn.Write(payload)
	return err
}

// Send writes payload to the active half appropriate for the connection's
// kind: datagram connections use send_to semantics, stream variants lock
// the write half and write the full buffer.
func (c *Connection) Send(payload []byte) error {
	switch c.kind {
	case KindDatagram:
		_, err := c.pc.WriteTo(payload, c.peerAddr)
		return err
	case KindWebSocket:
		c.wmu.Lock()
		defer c.wmu.Unlock()
		return c.ws.WriteMessage(websocket.BinaryMessage, payload)
	default:
		return c.WriteFrame(payload)
	}
}

// Close closes the underlying transport.
func (c *Connection) Close() error {
	switch c.kind {
	case KindDatagram:
		return nil // shared PacketConn, not owned by this Connection
	case KindWebSocket:
		return c.ws.Close()
	default:
		if c.conn != nil {
			return c.conn.Close()
		}
		return nil
	}
}

func fullRead(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBeUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
