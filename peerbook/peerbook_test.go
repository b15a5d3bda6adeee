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

package peerbook

import (
	"context"
	"testing"
	"time"

	"meshnode/store"
)

func TestObserveCreatesRecord(t *testing.T) {
	b := New()
	b.Observe("10.0.0.1:4000", ScopeInner, ProtoStream, 200)

	r, ok := b.Get("10.0.0.1:4000")
	if !ok {
		t.Fatal("record not found after Observe")
	}
	if r.Scope != ScopeInner || r.ReachabilityScore != 200 || r.Protocols != ProtoStream {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.FirstSeen.IsZero() || r.LastSeen.IsZero() {
		t.Fatal("timestamps not set")
	}
}

func TestObserveMergesHigherReachability(t *testing.T) {
	b := New()
	b.Observe("10.0.0.1:4000", ScopeInner, ProtoStream, 50)
	b.Observe("10.0.0.1:4000", ScopeInner, ProtoStream, 200)

	r, _ := b.Get("10.0.0.1:4000")
	if r.ReachabilityScore != 200 {
		t.Fatalf("ReachabilityScore = %d, want 200 (max retained)", r.ReachabilityScore)
	}
}

func TestObserveMergesProtocolsAsUnion(t *testing.T) {
	b := New()
	b.Observe("10.0.0.1:4000", ScopeInner, ProtoStream, 0)
	b.Observe("10.0.0.1:4000", ScopeInner, ProtoDatagram, 0)
	b.Observe("10.0.0.1:4000", ScopeInner, ProtoWS, 0)

	r, _ := b.Get("10.0.0.1:4000")
	want := ProtoStream | ProtoDatagram | ProtoWS
	if r.Protocols != want {
		t.Fatalf("Protocols = %b, want %b (union retained)", r.Protocols, want)
	}
}

func TestObserveKeepsEarliestFirstSeen(t *testing.T) {
	b := New()
	b.Observe("10.0.0.1:4000", ScopeInner, ProtoStream, 10)
	first, _ := b.Get("10.0.0.1:4000")

	b.Observe("10.0.0.1:4000", ScopeInner, ProtoStream, 10)
	second, _ := b.Get("10.0.0.1:4000")

	if !second.FirstSeen.Equal(first.FirstSeen) {
		t.Fatalf("FirstSeen changed on re-observe: %v -> %v", first.FirstSeen, second.FirstSeen)
	}
}

func TestMarkDisappearedOnUnknownEndpointIsNoop(t *testing.T) {
	b := New()
	b.MarkDisappeared("nowhere:0")
	if _, ok := b.Get("nowhere:0"); ok {
		t.Fatal("unknown endpoint should not materialize a record")
	}
}

func TestMarkDisappearedSetsTimestamp(t *testing.T) {
	b := New()
	b.Observe("10.0.0.1:4000", ScopeExternal, ProtoStream, 0)
	b.MarkDisappeared("10.0.0.1:4000")

	r, _ := b.Get("10.0.0.1:4000")
	if r.LastDisappeared.IsZero() {
		t.Fatal("LastDisappeared not set")
	}
}

func TestByScopeFiltersCorrectly(t *testing.T) {
	b := New()
	b.Observe("inner:1", ScopeInner, ProtoStream, 0)
	b.Observe("outer:1", ScopeExternal, ProtoStream, 0)
	b.Observe("outer:2", ScopeExternal, ProtoStream, 0)

	inner := b.ByScope(ScopeInner)
	outer := b.ByScope(ScopeExternal)
	if len(inner) != 1 || len(outer) != 2 {
		t.Fatalf("ByScope counts = inner:%d outer:%d, want 1, 2", len(inner), len(outer))
	}
}

func TestByScopePartitionsAreDisjoint(t *testing.T) {
	b := New()
	b.Observe("shared:1", ScopeInner, ProtoStream, 10)
	b.Observe("shared:1", ScopeExternal, ProtoDatagram, 90)

	inner := b.ByScope(ScopeInner)
	outer := b.ByScope(ScopeExternal)
	if len(inner) != 1 || len(outer) != 1 {
		t.Fatalf("same endpoint under both scopes should occupy both partitions independently, got inner:%d outer:%d", len(inner), len(outer))
	}
	if inner[0].ReachabilityScore != 10 || outer[0].ReachabilityScore != 90 {
		t.Fatalf("partitions bled into each other: inner=%+v outer=%+v", inner[0], outer[0])
	}
}

func TestAllReturnsEveryRecord(t *testing.T) {
	b := New()
	b.Observe("a:1", ScopeInner, ProtoStream, 0)
	b.Observe("b:1", ScopeExternal, ProtoStream, 0)
	if len(b.All()) != 2 {
		t.Fatalf("All() returned %d records, want 2", len(b.All()))
	}
}

func TestPruneRemovesStaleRecordsOnly(t *testing.T) {
	b := New()
	b.Observe("stale:1", ScopeInner, ProtoStream, 0)
	b.inner["stale:1"] = Record{
		Endpoint: "stale:1",
		LastSeen: time.Now().Add(-48 * time.Hour),
	}
	b.Observe("fresh:1", ScopeInner, ProtoStream, 0)

	removed := b.Prune(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("Prune removed %d, want 1", removed)
	}
	if _, ok := b.Get("stale:1"); ok {
		t.Fatal("stale record survived Prune")
	}
	if _, ok := b.Get("fresh:1"); !ok {
		t.Fatal("fresh record incorrectly removed by Prune")
	}
}

func TestAttachStorePersistsAndReloadsSnapshot(t *testing.T) {
	kv := store.NewMemory()
	defer kv.Close()

	b := New()
	b.AttachStore(kv)
	b.Observe("10.0.0.9:4000", ScopeExternal, ProtoDatagram, 77)

	reloaded := New()
	reloaded.AttachStore(kv)
	if err := reloaded.LoadFromStore(context.Background()); err != nil {
		t.Fatal(err)
	}

	r, ok := reloaded.Get("10.0.0.9:4000")
	if !ok {
		t.Fatal("record missing after LoadFromStore")
	}
	if r.ReachabilityScore != 77 || r.Protocols != ProtoDatagram {
		t.Fatalf("reloaded record = %+v, want score 77 and ProtoDatagram", r)
	}
}

func TestParseSeedRecord(t *testing.T) {
	ep, ok := parseSeedRecord("endpoint=203.0.113.5:4000")
	if !ok || ep != "203.0.113.5:4000" {
		t.Fatalf("parseSeedRecord = %q, %v", ep, ok)
	}
	if _, ok := parseSeedRecord("garbage"); ok {
		t.Fatal("expected malformed record to be rejected")
	}
}
