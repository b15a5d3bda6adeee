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

// Package node implements the node lifecycle: binding the datagram and
// stream listeners, racing each accept/read loop against cancellation,
// running the protocol sniff on freshly accepted stream connections, and
// feeding verified frames into the command dispatch table.
package node

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"meshnode/command"
	"meshnode/frame"
	"meshnode/handlers"
	"meshnode/identity"
	"meshnode/store"
	"meshnode/transport"

	"github.com/bfix/gospel/logger"
)

// replayShadowTTL is how long a shadowed nonce survives in the attached
// store, comfortably longer than any realistic process restart gap.
const replayShadowTTL = 24 * time.Hour

// Config holds the bind parameters and tunables for a running node.
type Config struct {
	BindIP     string
	Port       int
	SessionTTL time.Duration

	// Store, if non-nil, backs the replay window and peer book with an
	// on-disk shadow so both survive a restart.
	Store store.KV

	// ReplayWindowSize overrides frame.DefaultWindowSize when positive.
	ReplayWindowSize int
}

// Node is a single running instance: its identity, registered handlers,
// and the listeners it owns.
type Node struct {
	Cfg     Config
	Self    *identity.Identity
	Reg     *command.Registry
	Handler *handlers.Context

	startTime time.Time
	stopTime  time.Time

	mu       sync.Mutex
	listener net.Listener
	pc       net.PacketConn
	conns    map[net.Conn]struct{}

	wg sync.WaitGroup
}

// New wires up a Node around an identity and bind config. deliver is
// invoked once per locally-addressed SendText.
func New(self *identity.Identity, cfg Config, deliver handlers.Sink) *Node {
	hctx := handlers.NewContext(self, cfg.SessionTTL, deliver)
	if cfg.ReplayWindowSize > 0 {
		hctx.Window = frame.NewWindow(cfg.ReplayWindowSize)
	}
	hctx.AttachStore(cfg.Store, replayShadowTTL)
	reg := command.NewRegistry()
	handlers.RegisterAll(reg, hctx)
	return &Node{
		Cfg:     cfg,
		Self:    self,
		Reg:     reg,
		Handler: hctx,
		conns:   make(map[net.Conn]struct{}),
	}
}

func bindAddr(ip string, port int) string {
	return net.JoinHostPort(ip, itoa(port))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

// Start implements §4.13: binds datagram and stream listeners, spawns an
// accept/read task per listener racing cancellation, and blocks until
// ctx is cancelled and every listener task has exited.
func (n *Node) Start(ctx context.Context) error {
	n.startTime = time.Now()
	addr := bindAddr(n.Cfg.BindIP, n.Cfg.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		ln.Close()
		return err
	}

	n.mu.Lock()
	n.listener = ln
	n.pc = pc
	n.mu.Unlock()

	n.wg.Add(2)
	go n.acceptLoop(ctx, ln)
	go n.datagramLoop(ctx, pc)

	logger.Printf(logger.INFO, "[node] listening on %s (tcp+udp)\n", addr)

	<-ctx.Done()
	n.closeListeners()
	n.wg.Wait()
	return nil
}

// Stop cancels the node via cancel (the caller owns the context's cancel
// function per §4.13) and unblocks a pending accept call by closing the
// listeners directly. Idempotent.
func (n *Node) Stop(cancel context.CancelFunc) {
	cancel()
	n.closeListeners()
	n.stopTime = time.Now()
}

// closeListeners closes the listening sockets and every currently
// accepted stream connection, so a streamReadLoop blocked in
// c.ReadFrame() on an otherwise idle connection unblocks with an error
// instead of surviving past cancellation.
func (n *Node) closeListeners() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener != nil {
		n.listener.Close()
	}
	if n.pc != nil {
		n.pc.Close()
	}
	for c := range n.conns {
		c.Close()
	}
}

// Addr returns the bound stream listener's address, or nil if the node
// has not finished starting yet.
func (n *Node) Addr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

func (n *Node) trackConn(c net.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conns[c] = struct{}{}
}

func (n *Node) untrackConn(c net.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.conns, c)
}

func (n *Node) acceptLoop(ctx context.Context, ln net.Listener) {
	defer n.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Printf(logger.WARN, "[node] accept failed: %s\n", err.Error())
				return
			}
		}
		n.trackConn(conn)
		n.wg.Add(1)
		go n.streamReadLoop(ctx, conn)
	}
}

// streamReadLoop implements §4.5: sniff for an HTTP/1.1 request line
// before committing to the raw framed path, then loop reading and
// dispatching frames until EOF, error, or cancellation.
func (n *Node) streamReadLoop(ctx context.Context, conn net.Conn) {
	defer n.wg.Done()
	defer n.untrackConn(conn)
	c := transport.NewStreamConnection(conn)
	defer c.Close()

	if isHTTP, err := transport.SniffHTTP(c); err == nil && isHTTP {
		c.PromoteHTTP()
		logger.Printf(logger.DBG, "[node] connection sniffed as HTTP, closing\n")
		// HTTP is not served on the peer port: no HTTP router is attached
		// here and no WebSocket upgrade is performed, so the deferred
		// Close ends the connection.
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := c.ReadFrame()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Printf(logger.DBG, "[node] stream read loop exiting: %s\n", err.Error())
			}
			n.forgetAllConnectionsOf(c)
			return
		}
		handlers.Dispatch(ctx, n.Reg, n.Handler.Window, raw, c)
	}
}

// datagramLoop implements the datagram half of §4.5: every inbound
// packet is treated as a candidate frame; non-protocol bytes are
// silently ignored per the read-loop contract.
func (n *Node) datagramLoop(ctx context.Context, pc net.PacketConn) {
	defer n.wg.Done()
	buf := make([]byte, transport.MaxFrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sz, peer, err := pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Printf(logger.DBG, "[node] datagram loop exiting: %s\n", err.Error())
				return
			}
		}
		raw := make([]byte, sz)
		copy(raw, buf[:sz])

		if _, err := frame.VerifyBytes(raw); err != nil {
			continue
		}
		c := transport.NewDatagramConnection(pc, peer)
		handlers.Dispatch(ctx, n.Reg, n.Handler.Window, raw, c)
	}
}

// forgetAllConnectionsOf removes every registry entry whose connection
// set includes c, called when a stream connection's read loop exits on
// EOF or error.
func (n *Node) forgetAllConnectionsOf(c *transport.Connection) {
	for _, addr := range n.Handler.Reg.AddressesWith(c) {
		n.Handler.Reg.Remove(addr)
	}
}
