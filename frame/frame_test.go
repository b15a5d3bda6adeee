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

package frame

import (
	"bytes"
	"testing"
	"time"

	"meshnode/identity"
	"meshnode/store"
)

func testIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestBuildAndVerify(t *testing.T) {
	id := testIdentity(t)
	f := Build(id, []byte("hello"))
	raw := f.Encode()

	verified, err := VerifyBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(verified.Body.Payload, []byte("hello")) {
		t.Fatal("payload mismatch")
	}
	if verified.Body.SenderAddress != id.Address().String() {
		t.Fatal("sender address mismatch")
	}
}

func TestVerifyFailsOnTamperedSignature(t *testing.T) {
	id := testIdentity(t)
	f := Build(id, []byte("hello"))
	raw := f.Encode()
	raw[len(raw)-1] ^= 0xFF

	if _, err := VerifyBytes(raw); err == nil {
		t.Fatal("expected verification error for tampered bytes")
	}
}

func TestVerifyFailsOnTruncated(t *testing.T) {
	id := testIdentity(t)
	f := Build(id, []byte("hello"))
	raw := f.Encode()
	if _, err := VerifyBytes(raw[:len(raw)-20]); err == nil {
		t.Fatal("expected decode error on truncated bytes")
	}
}

func TestReplayWindowRejectsSecondOccurrence(t *testing.T) {
	w := NewWindow(4)
	if w.Seen("addr-a", 1) {
		t.Fatal("first occurrence reported as seen")
	}
	if !w.Seen("addr-a", 1) {
		t.Fatal("replayed nonce not detected")
	}
}

func TestReplayWindowEvictsOldest(t *testing.T) {
	w := NewWindow(2)
	w.Seen("addr-a", 1)
	w.Seen("addr-a", 2)
	w.Seen("addr-a", 3) // evicts nonce 1
	if w.Seen("addr-a", 1) {
		t.Fatal("evicted nonce incorrectly reported as still seen")
	}
}

func TestReplayWindowPerSenderIsolation(t *testing.T) {
	w := NewWindow(4)
	w.Seen("addr-a", 1)
	if w.Seen("addr-b", 1) {
		t.Fatal("nonce from a different sender incorrectly reported as seen")
	}
}

func TestReplayWindowShadowCatchesReplayAfterLocalEviction(t *testing.T) {
	kv := store.NewMemory()
	defer kv.Close()

	w := NewWindow(1)
	w.AttachStore(kv, time.Hour)

	w.Seen("addr-a", 1)
	w.Seen("addr-a", 2) // evicts nonce 1 from the in-memory LRU

	// A fresh window sharing the same shadow (as after a restart) must
	// still catch nonce 1 as a replay even though its own LRU never saw
	// it locally.
	restarted := NewWindow(1)
	restarted.AttachStore(kv, time.Hour)
	if !restarted.Seen("addr-a", 1) {
		t.Fatal("shadowed nonce not detected as replay after restart")
	}
}
