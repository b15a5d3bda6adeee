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

// Package command implements the (entity, action) payload carried inside a
// frame body, and the dispatch table that routes an incoming command to its
// registered handler.
package command

import (
	"context"
	"fmt"
	"sync"

	"meshnode/codec"
	"meshnode/transport"

	"github.com/bfix/gospel/logger"
)

// Entity identifies the subsystem a command belongs to.
type Entity uint8

// Known entities.
const (
	EntityNode Entity = iota + 1
	EntityMessage
	EntityWitness
	EntityTelephone
	EntityFile
)

func (e Entity) String() string {
	switch e {
	case EntityNode:
		return "Node"
	case EntityMessage:
		return "Message"
	case EntityWitness:
		return "Witness"
	case EntityTelephone:
		return "Telephone"
	case EntityFile:
		return "File"
	default:
		return fmt.Sprintf("Entity(%d)", uint8(e))
	}
}

// Action identifies the operation requested within an Entity.
type Action uint8

// Known actions.
const (
	ActionOnLine Action = iota + 1
	ActionOnLineAck
	ActionOffLine
	ActionAck
	ActionUpdate

	ActionSendText
	ActionSendBinary

	ActionTick
	ActionCheck

	ActionCall
	ActionHangUp
	ActionAccept
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionOnLine:
		return "OnLine"
	case ActionOnLineAck:
		return "OnLineAck"
	case ActionOffLine:
		return "OffLine"
	case ActionAck:
		return "Ack"
	case ActionUpdate:
		return "Update"
	case ActionSendText:
		return "SendText"
	case ActionSendBinary:
		return "SendBinary"
	case ActionTick:
		return "Tick"
	case ActionCheck:
		return "Check"
	case ActionCall:
		return "Call"
	case ActionHangUp:
		return "HangUp"
	case ActionAccept:
		return "Accept"
	case ActionReject:
		return "Reject"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// Command is the (entity, action, payload) triple carried by a frame.
type Command struct {
	Entity Entity
	Action Action
	Data   []byte
}

// New creates a command with the given entity, action and payload.
func New(entity Entity, action Action, data []byte) *Command {
	return &Command{Entity: entity, Action: action, Data: data}
}

// ID returns a single key combining entity and action, used to look up
// handlers in the dispatch table.
func (c *Command) ID() uint16 {
	return uint16(c.Action)<<8 | uint16(c.Entity)
}

// Encode serializes a command into its canonical wire form.
func (c *Command) Encode() []byte {
	w := codec.NewWriter()
	w.U8(uint8(c.Entity)).U8(uint8(c.Action)).VarBytes(c.Data)
	return w.Bytes()
}

// Decode parses a command from its canonical wire form.
func Decode(b []byte) (*Command, error) {
	r := codec.NewReader(b)
	e, err := r.U8()
	if err != nil {
		return nil, err
	}
	a, err := r.U8()
	if err != nil {
		return nil, err
	}
	data, err := r.VarBytes()
	if err != nil {
		return nil, err
	}
	return &Command{Entity: Entity(e), Action: Action(a), Data: data}, nil
}

// Sender carries what a handler needs to know about the command's origin
// without reaching back into the connection's read loop: the verified
// sender address, the raw signed frame bytes (for unmodified forwarding),
// and the connection the frame arrived on (for same-connection replies).
type Sender struct {
	// Address is the hex peer address the enclosing frame was signed by.
	Address string

	// RawFrame is the exact wire-encoded bytes of the enclosing frame,
	// re-emitted unchanged by the forward-decision core.
	RawFrame []byte

	// Conn is the connection the frame was received on.
	Conn *transport.Connection
}

// Handler processes a dispatched command. It must not block on further
// network I/O while holding locks the registry or session maps rely on.
type Handler func(ctx context.Context, cmd *Command, from Sender) error

// Registry maps (entity, action) pairs to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uint16]Handler
}

// NewRegistry returns an empty dispatch table.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uint16]Handler)}
}

// Register installs a handler for an (entity, action) pair, replacing any
// previous registration.
func (r *Registry) Register(entity Entity, action Action, h Handler) {
	id := uint16(action)<<8 | uint16(entity)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = h
}

// Dispatch looks up and runs the handler for cmd. Handler errors are logged
// and never propagated past this boundary, so a single bad command cannot
// unwind the caller's read loop.
func (r *Registry) Dispatch(ctx context.Context, cmd *Command, from Sender) {
	r.mu.RLock()
	h, ok := r.handlers[cmd.ID()]
	r.mu.RUnlock()
	if !ok {
		logger.Printf(logger.WARN, "[command] no handler for %s/%s from %s\n", cmd.Entity, cmd.Action, from.Address)
		return
	}
	if err := h(ctx, cmd, from); err != nil {
		logger.Printf(logger.ERROR, "[command] handler for %s/%s failed: %s\n", cmd.Entity, cmd.Action, err.Error())
	}
}
