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

package node

import (
	"context"
	"net"
	"testing"
	"time"

	"meshnode/identity"
)

func TestStartAndStopIsIdempotentAndReturns(t *testing.T) {
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	n := New(id, Config{BindIP: "127.0.0.1", Port: 0, SessionTTL: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	n.Stop(cancel)
	n.Stop(cancel) // idempotent

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

// TestStopUnblocksLiveStreamReadLoop connects a peer that never sends or
// closes anything, so its streamReadLoop is parked in the protocol
// sniff's blocking peek, then verifies Stop still makes Start return
// promptly instead of hanging on n.wg.Wait() forever.
func TestStopUnblocksLiveStreamReadLoop(t *testing.T) {
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	n := New(id, Config{BindIP: "127.0.0.1", Port: 0, SessionTTL: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Start(ctx) }()

	var addr net.Addr
	for i := 0; i < 100 && addr == nil; i++ {
		time.Sleep(5 * time.Millisecond)
		addr = n.Addr()
	}
	if addr == nil {
		t.Fatal("node never bound a listener")
	}

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	time.Sleep(20 * time.Millisecond) // let acceptLoop register the connection

	n.Stop(cancel)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop with a live, idle connection")
	}
}

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 42: "42", -3: "-3", 65535: "65535"}
	for in, want := range cases {
		if got := itoa(in); got != want {
			t.Fatalf("itoa(%d) = %q, want %q", in, got, want)
		}
	}
}
