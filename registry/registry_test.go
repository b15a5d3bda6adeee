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

package registry

import (
	"net"
	"testing"

	"meshnode/transport"
)

func pipeConnection(t *testing.T) *transport.Connection {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return transport.NewStreamConnection(server)
}

func TestAddInnerAndGetConnections(t *testing.T) {
	r := New()
	c := pipeConnection(t)
	r.AddInner("addr-a", c, []string{"1.2.3.4:9000"})

	got := r.GetConnections("addr-a", false)
	if len(got) != 1 || got[0] != c {
		t.Fatalf("got %v connections, want [c]", got)
	}
}

func TestMultiHomedAddressUnionsBothScopes(t *testing.T) {
	r := New()
	inner := pipeConnection(t)
	ext := pipeConnection(t)
	r.AddInner("addr-a", inner, nil)
	r.AddExternal("addr-a", ext, nil)

	both := r.GetConnections("addr-a", true)
	if len(both) != 2 {
		t.Fatalf("got %d connections, want 2", len(both))
	}
	innerOnly := r.GetConnections("addr-a", false)
	if len(innerOnly) != 1 || innerOnly[0] != inner {
		t.Fatalf("got %v, want [inner]", innerOnly)
	}
}

func TestIdempotentAdd(t *testing.T) {
	r := New()
	c := pipeConnection(t)
	r.AddInner("addr-a", c, nil)
	r.AddInner("addr-a", c, nil)
	if got := r.GetConnections("addr-a", false); len(got) != 1 {
		t.Fatalf("got %d connections, want 1 (idempotent add)", len(got))
	}
}

func TestAddressesWithFindsOwningAddress(t *testing.T) {
	r := New()
	c := pipeConnection(t)
	r.AddInner("addr-a", c, nil)
	r.AddExternal("addr-b", pipeConnection(t), nil)

	got := r.AddressesWith(c)
	if len(got) != 1 || got[0] != "addr-a" {
		t.Fatalf("got %v, want [addr-a]", got)
	}
}

func TestRemoveDropsAllConnections(t *testing.T) {
	r := New()
	r.AddInner("addr-a", pipeConnection(t), nil)
	r.AddExternal("addr-a", pipeConnection(t), nil)
	r.Remove("addr-a")
	if r.Has("addr-a") {
		t.Fatal("address still present after Remove")
	}
	if len(r.GetConnections("addr-a", true)) != 0 {
		t.Fatal("connections still returned after Remove")
	}
}
