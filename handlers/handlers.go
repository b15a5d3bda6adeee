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

// Package handlers implements the Node.OnLine/OnLineAck/OffLine and
// Message.SendText commands, and the forward-decision routing core they
// share: local delivery, registry-directed re-emission, or single-hop
// flood, guarded against loops by the per-sender replay window.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meshnode/command"
	"meshnode/frame"
	"meshnode/identity"
	"meshnode/peerbook"
	"meshnode/registry"
	"meshnode/session"
	"meshnode/store"
	"meshnode/transport"

	"github.com/bfix/gospel/logger"
)

// Error codes
var (
	ErrUnknownSession = errors.New("handlers: unknown temp session")
)

// Sink receives text delivered to this node, either typed locally by the
// application or arriving over the network addressed to it.
type Sink func(from identity.Address, text string)

// Context bundles the per-node state the handlers need: this node's own
// identity, the peer registry, the session maps, the endpoint catalog,
// and the replay window that guards the forward-decision core.
type Context struct {
	Self *identity.Identity
	Reg  *registry.Registry
	Temp *session.TempSessions
	Book *peerbook.Book

	Window *frame.Window

	SessionTTL time.Duration
	Deliver    Sink

	sessionsMu sync.Mutex
	sessions   map[identity.Address]*session.Session
}

// NewContext wires up an empty per-node handler context around an
// identity. deliver is called once per locally consumed SendText.
func NewContext(self *identity.Identity, sessionTTL time.Duration, deliver Sink) *Context {
	return &Context{
		Self:       self,
		Reg:        registry.New(),
		Temp:       session.NewTempSessions(),
		Book:       peerbook.New(),
		Window:     frame.NewWindow(frame.DefaultWindowSize),
		SessionTTL: sessionTTL,
		Deliver:    deliver,
		sessions:   make(map[identity.Address]*session.Session),
	}
}

// AttachStore gives both the peer book and the replay window an on-disk
// shadow backed by kv, then loads any peer book snapshot kv already
// holds from a prior run. Call once, before the node starts accepting
// traffic.
func (c *Context) AttachStore(kv store.KV, replayTTL time.Duration) {
	if kv == nil {
		return
	}
	c.Book.AttachStore(kv)
	c.Window.AttachStore(kv, replayTTL)
	if err := c.Book.LoadFromStore(context.Background()); err != nil {
		logger.Printf(logger.WARN, "[handlers] peer book snapshot load failed: %s\n", err.Error())
	}
}

func (c *Context) putSession(addr identity.Address, s *session.Session) {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	c.sessions[addr] = s
}

// Session returns the established session for a peer address, if any.
func (c *Context) Session(addr identity.Address) (*session.Session, bool) {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	s, ok := c.sessions[addr]
	return s, ok
}

// RegisterAll installs every handler this package implements into reg.
func RegisterAll(reg *command.Registry, hctx *Context) {
	reg.Register(command.EntityNode, command.ActionOnLine, hctx.onLine)
	reg.Register(command.EntityNode, command.ActionOnLineAck, hctx.onLineAck)
	reg.Register(command.EntityNode, command.ActionOffLine, hctx.offLine)
	reg.Register(command.EntityMessage, command.ActionSendText, hctx.sendText)
}

// onLine implements §4.9: a fresh peer announces itself and its
// endpoints, we start a session keyed to its ephemeral public key and
// register its connection, then reply with our own OnLineAck on the
// same connection.
func (c *Context) onLine(ctx context.Context, cmd *command.Command, from command.Sender) error {
	p, err := decodeOnline(cmd.Data)
	if err != nil {
		return fmt.Errorf("onLine: %w", err)
	}

	s, err := session.New()
	if err != nil {
		return fmt.Errorf("onLine: new session: %w", err)
	}
	if err := s.Establish(p.EphemeralPublic); err != nil {
		return fmt.Errorf("onLine: establish: %w", err)
	}

	addr, err := identity.ParseAddress(from.Address)
	if err != nil {
		return fmt.Errorf("onLine: %w", err)
	}
	c.putSession(addr, s)

	if from.Conn != nil {
		switch p.Scope {
		case peerbook.ScopeInner:
			c.Reg.AddInner(from.Address, from.Conn, p.Endpoints)
		default:
			c.Reg.AddExternal(from.Address, from.Conn, p.Endpoints)
		}
	}
	var protocols peerbook.Protocols
	if from.Conn != nil {
		protocols = peerbook.ProtocolsForKind(from.Conn.Kind())
	}
	for _, ep := range p.Endpoints {
		c.Book.Observe(ep, p.Scope, protocols, 0)
	}

	ack := command.New(command.EntityNode, command.ActionOnLineAck,
		encodeOnlineAck(p.SessionID, c.Self.Address().String(), s.EphemeralPublic()))
	reply := frame.Build(c.Self, ack.Encode())
	if from.Conn != nil {
		if err := from.Conn.Send(reply.Encode()); err != nil {
			logger.Printf(logger.WARN, "[handlers] onLineAck send failed: %s\n", err.Error())
		}
	}
	logger.Printf(logger.INFO, "[handlers] onLine from %s (%d endpoints, scope=%d)\n", from.Address, len(p.Endpoints), p.Scope)
	return nil
}

// onLineAck implements §4.10: the peer we reached out to has replied
// with its ephemeral public key; complete the handshake and promote the
// temp session into the permanent session map.
func (c *Context) onLineAck(ctx context.Context, cmd *command.Command, from command.Sender) error {
	p, err := decodeOnlineAck(cmd.Data)
	if err != nil {
		return fmt.Errorf("onLineAck: %w", err)
	}

	s, ok := c.Temp.Get(p.SessionID)
	if !ok {
		return ErrUnknownSession
	}
	c.Temp.Drop(p.SessionID)

	if err := s.Establish(p.EphemeralPublic); err != nil {
		return fmt.Errorf("onLineAck: establish: %w", err)
	}
	s.Touch()

	addr, err := identity.ParseAddress(p.Address)
	if err != nil {
		return fmt.Errorf("onLineAck: %w", err)
	}
	c.putSession(addr, s)
	logger.Printf(logger.INFO, "[handlers] onLineAck established session with %s\n", p.Address)
	return nil
}

// offLine implements §4.11: drop the sender from the registry, closing
// its connections. Idempotent.
func (c *Context) offLine(ctx context.Context, cmd *command.Command, from command.Sender) error {
	c.Reg.Remove(from.Address)
	c.Window.Reset(from.Address)
	logger.Printf(logger.INFO, "[handlers] offLine from %s\n", from.Address)
	return nil
}

// sendText implements §4.12: local delivery if this node is the
// receiver, otherwise the forward-decision core.
func (c *Context) sendText(ctx context.Context, cmd *command.Command, from command.Sender) error {
	p, err := decodeSendText(cmd.Data)
	if err != nil {
		return fmt.Errorf("sendText: %w", err)
	}

	if p.Receiver == c.Self.Address().String() {
		if c.Deliver != nil {
			addr, err := identity.ParseAddress(from.Address)
			if err != nil {
				return fmt.Errorf("sendText: %w", err)
			}
			c.Deliver(addr, p.Text)
		}
		return nil
	}
	return c.Forward(p.Receiver, from)
}

// Forward implements §4.7, the routing core: re-emission on every
// registered connection for the receiver if any exist, else a
// single-hop flood across every connected peer except the connection
// the frame arrived on. The frame bytes are
// never re-signed or modified. Callers have already handled the
// receiver-is-self case.
func (c *Context) Forward(receiver string, from command.Sender) error {
	if conns := c.Reg.GetConnections(receiver, true); len(conns) > 0 {
		for _, conn := range conns {
			if err := conn.Send(from.RawFrame); err != nil {
				logger.Printf(logger.WARN, "[handlers] forward to %s failed: %s\n", receiver, err.Error())
			}
		}
		return nil
	}

	for _, conn := range c.Reg.AllConnected() {
		if conn == from.Conn {
			continue
		}
		if err := conn.Send(from.RawFrame); err != nil {
			logger.Printf(logger.WARN, "[handlers] flood send failed: %s\n", err.Error())
		}
	}
	return nil
}

// Dispatch verifies raw frame bytes, checks the replay window, decodes
// the inner command, and dispatches it — the single entry point a
// connection's read loop calls per incoming frame.
func Dispatch(ctx context.Context, reg *command.Registry, window *frame.Window, raw []byte, conn *transport.Connection) {
	f, err := frame.VerifyBytes(raw)
	if err != nil {
		logger.Printf(logger.WARN, "[handlers] frame verify failed: %s\n", err.Error())
		return
	}
	if window.Seen(f.Body.SenderAddress, f.Body.Nonce) {
		logger.Printf(logger.DBG, "[handlers] dropping replayed nonce from %s\n", f.Body.SenderAddress)
		return
	}
	cmd, err := command.Decode(f.Body.Payload)
	if err != nil {
		logger.Printf(logger.WARN, "[handlers] command decode failed: %s\n", err.Error())
		return
	}
	reg.Dispatch(ctx, cmd, command.Sender{
		Address:  f.Body.SenderAddress,
		RawFrame: raw,
		Conn:     conn,
	})
}
