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

// Package registry implements the peer registry: the address-keyed
// partition of live connections into "inner" (locally accepted/managed)
// and "external" (scope-flagged as outside the inner mesh), which the
// forward-decision core consults to pick an outbound path for a frame.
package registry

import (
	"sync"

	"meshnode/transport"
)

// Entry is one address's bookkeeping: its connections, split by scope,
// plus the endpoints the peer reported observing itself on.
type Entry struct {
	Inner    []*transport.Connection
	External []*transport.Connection

	// ObservedEndpoints are the socket addresses the peer itself
	// reported (from its OnLine payload), recorded verbatim; no
	// cross-check against the connection's actual remote address is
	// performed.
	ObservedEndpoints []string
}

// Registry is the address-keyed map of connected peers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

func (r *Registry) entry(address string) *Entry {
	e, ok := r.entries[address]
	if !ok {
		e = &Entry{}
		r.entries[address] = e
	}
	return e
}

// containsConn reports whether conn is already present in list, so adds
// stay idempotent.
func containsConn(list []*transport.Connection, conn *transport.Connection) bool {
	for _, c := range list {
		if c == conn {
			return true
		}
	}
	return false
}

// AddInner registers conn for address under the inner scope.
func (r *Registry) AddInner(address string, conn *transport.Connection, observedEndpoints []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(address)
	if !containsConn(e.Inner, conn) {
		e.Inner = append(e.Inner, conn)
	}
	e.ObservedEndpoints = append(e.ObservedEndpoints, observedEndpoints...)
}

// AddExternal registers conn for address under the external scope.
func (r *Registry) AddExternal(address string, conn *transport.Connection, observedEndpoints []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(address)
	if !containsConn(e.External, conn) {
		e.External = append(e.External, conn)
	}
	e.ObservedEndpoints = append(e.ObservedEndpoints, observedEndpoints...)
}

// Remove drops all connections for address, closing their underlying
// transports before releasing ownership.
func (r *Registry) Remove(address string) {
	r.mu.Lock()
	e, ok := r.entries[address]
	if ok {
		delete(r.entries, address)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	for _, c := range e.Inner {
		c.Close()
	}
	for _, c := range e.External {
		c.Close()
	}
}

// GetConnections returns the connections registered for address. When
// includeBoth is true, both inner and external connections are returned;
// otherwise only inner connections are returned.
func (r *Registry) GetConnections(address string, includeBoth bool) []*transport.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[address]
	if !ok {
		return nil
	}
	if !includeBoth {
		out := make([]*transport.Connection, len(e.Inner))
		copy(out, e.Inner)
		return out
	}
	out := make([]*transport.Connection, 0, len(e.Inner)+len(e.External))
	out = append(out, e.Inner...)
	out = append(out, e.External...)
	return out
}

// AllConnected returns every connection currently registered, inner and
// external, across all addresses — used by the flood fallback in the
// forward-decision core.
func (r *Registry) AllConnected() []*transport.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*transport.Connection
	for _, e := range r.entries {
		out = append(out, e.Inner...)
		out = append(out, e.External...)
	}
	return out
}

// AddressesWith returns every address whose entry references conn, used
// when a connection's read loop exits to find what to drop from the
// registry.
func (r *Registry) AddressesWith(conn *transport.Connection) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for addr, e := range r.entries {
		if containsConn(e.Inner, conn) || containsConn(e.External, conn) {
			out = append(out, addr)
		}
	}
	return out
}

// Has reports whether address has any registered connection.
func (r *Registry) Has(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[address]
	return ok && (len(e.Inner) > 0 || len(e.External) > 0)
}
