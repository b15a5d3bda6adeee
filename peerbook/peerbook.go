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

// Package peerbook maintains the catalog of known peer endpoints,
// independent of whether a live connection currently exists: first/last
// seen timestamps, last-disappeared, a reachability score, and which
// protocols each endpoint has been reached over. Entries merge by
// endpoint address, keeping the union of observed protocols and the
// most favorable reachability score, the same policy the original node
// catalog used when reconciling a freshly announced record against one
// already on file.
package peerbook

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"meshnode/store"
	"meshnode/transport"
	"meshnode/util"

	"github.com/bfix/gospel/logger"
)

// snapshotKey is the single key under which the whole book is shadowed in
// an attached store.KV: the book is small and read as a unit at startup,
// so there is no need for one key per endpoint.
const snapshotKey = "peerbook:snapshot"

// persistTimeout bounds how long a snapshot write or load waits on the
// backing store.
const persistTimeout = 2 * time.Second

// Scope distinguishes inner (locally accepted) from external peers, as
// carried by the trailing scope flag in an OnLine payload. It also
// selects which of the book's two disjoint partitions a record lives
// in.
type Scope uint8

// Known scopes.
const (
	ScopeInner    Scope = 0
	ScopeExternal Scope = 1
)

// Protocols is a bitset of the transport kinds an endpoint has been
// reached over.
type Protocols uint8

// Known protocol bits.
const (
	ProtoStream Protocols = 1 << iota
	ProtoDatagram
	ProtoHTTP
	ProtoWS
)

// ProtocolsForKind maps a live connection's kind to the corresponding
// single protocol bit.
func ProtocolsForKind(k transport.Kind) Protocols {
	switch k {
	case transport.KindStream:
		return ProtoStream
	case transport.KindDatagram:
		return ProtoDatagram
	case transport.KindHTTP:
		return ProtoHTTP
	case transport.KindWebSocket:
		return ProtoWS
	default:
		return 0
	}
}

// Record is one endpoint's catalog entry. Scope reflects which of the
// book's two partitions it was read from; it is not itself mutated by a
// merge (an endpoint does not change partition by being re-observed).
type Record struct {
	Endpoint          string
	Scope             Scope
	Protocols         Protocols
	FirstSeen         time.Time
	LastSeen          time.Time
	LastDisappeared   time.Time // zero means never
	ReachabilityScore uint8
}

// merge combines an existing record with a freshly observed one for the
// same endpoint: the OR of protocols, the earliest first-seen, the
// latest last-seen/last-disappeared, and the higher reachability score.
func merge(existing, fresh Record) Record {
	out := existing
	if fresh.FirstSeen.Before(out.FirstSeen) || out.FirstSeen.IsZero() {
		out.FirstSeen = fresh.FirstSeen
	}
	if fresh.LastSeen.After(out.LastSeen) {
		out.LastSeen = fresh.LastSeen
	}
	if fresh.LastDisappeared.After(out.LastDisappeared) {
		out.LastDisappeared = fresh.LastDisappeared
	}
	if fresh.ReachabilityScore > out.ReachabilityScore {
		out.ReachabilityScore = fresh.ReachabilityScore
	}
	out.Protocols |= fresh.Protocols
	return out
}

// Book is the endpoint catalog: two disjoint maps, inner and external,
// each keyed by endpoint address string, mirroring the Peer Registry's
// own inner/external partition.
type Book struct {
	mu       sync.RWMutex
	inner    map[string]Record
	external map[string]Record

	kv store.KV
}

// New returns an empty peer book.
func New() *Book {
	return &Book{
		inner:    make(map[string]Record),
		external: make(map[string]Record),
	}
}

func (b *Book) partition(scope Scope) map[string]Record {
	if scope == ScopeExternal {
		return b.external
	}
	return b.inner
}

// bookSnapshot is the on-disk shape of a peer book: both partitions,
// serialized as a unit.
type bookSnapshot struct {
	Inner    map[string]Record
	External map[string]Record
}

// AttachStore gives the book an on-disk shadow: every Observe/
// MarkDisappeared persists the whole book as a single snapshot. Call
// LoadFromStore afterwards to recover a prior snapshot at startup. A nil
// kv detaches the shadow again.
func (b *Book) AttachStore(kv store.KV) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kv = kv
}

// LoadFromStore replaces the book's contents with a previously persisted
// snapshot, if an attached store has one. A missing snapshot is not an
// error: a fresh node simply starts with an empty book.
func (b *Book) LoadFromStore(ctx context.Context) error {
	b.mu.Lock()
	kv := b.kv
	b.mu.Unlock()
	if kv == nil {
		return nil
	}

	data, found, err := kv.Get(ctx, snapshotKey)
	if err != nil || !found {
		return err
	}
	var snap bookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if snap.Inner != nil {
		b.inner = snap.Inner
	}
	if snap.External != nil {
		b.external = snap.External
	}
	return nil
}

// persist writes the current contents of the book to the attached store,
// if any, logging rather than propagating a failure: the book remains
// authoritative in memory regardless of whether its shadow succeeds.
func (b *Book) persist() {
	b.mu.RLock()
	kv := b.kv
	snap := bookSnapshot{
		Inner:    cloneRecords(b.inner),
		External: cloneRecords(b.external),
	}
	b.mu.RUnlock()
	if kv == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		logger.Printf(logger.WARN, "[peerbook] snapshot marshal failed: %s\n", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := kv.Put(ctx, snapshotKey, data, 0); err != nil {
		logger.Printf(logger.WARN, "[peerbook] snapshot write failed: %s\n", err.Error())
	}
}

func cloneRecords(m map[string]Record) map[string]Record {
	out := make(map[string]Record, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Observe records that endpoint was just seen under scope with the
// given protocol(s), merging with any existing entry in that
// partition.
func (b *Book) Observe(endpoint string, scope Scope, protocols Protocols, score uint8) {
	b.mu.Lock()
	now := time.Now()
	fresh := Record{
		Endpoint:          endpoint,
		Scope:             scope,
		Protocols:         protocols,
		FirstSeen:         now,
		LastSeen:          now,
		ReachabilityScore: score,
	}
	m := b.partition(scope)
	if existing, ok := m[endpoint]; ok {
		m[endpoint] = merge(existing, fresh)
	} else {
		m[endpoint] = fresh
	}
	b.mu.Unlock()
	b.persist()
}

// MarkDisappeared records that endpoint was just found unreachable, in
// whichever partition it is known under.
func (b *Book) MarkDisappeared(endpoint string) {
	b.mu.Lock()
	var found bool
	for _, m := range [...]map[string]Record{b.inner, b.external} {
		if r, ok := m[endpoint]; ok {
			r.LastDisappeared = time.Now()
			m[endpoint] = r
			found = true
			break
		}
	}
	b.mu.Unlock()
	if found {
		b.persist()
	}
}

// Get returns the record for an endpoint, if known in either partition.
func (b *Book) Get(endpoint string) (Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if r, ok := b.inner[endpoint]; ok {
		return r, true
	}
	if r, ok := b.external[endpoint]; ok {
		return r, true
	}
	return Record{}, false
}

// All returns every known record across both partitions.
func (b *Book) All() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Record, 0, len(b.inner)+len(b.external))
	for _, r := range b.inner {
		out = append(out, r)
	}
	for _, r := range b.external {
		out = append(out, r)
	}
	return out
}

// ByScope returns every known record in the given partition.
func (b *Book) ByScope(scope Scope) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m := b.partition(scope)
	out := make([]Record, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}

// Prune removes every record across both partitions whose LastSeen is
// older than maxAge, the periodic housekeeping that keeps a long-running
// node's book from accumulating peers it will never hear from again. It
// returns the number of records removed.
func (b *Book) Prune(maxAge time.Duration) int {
	cutoff := util.NewAbsoluteTime(time.Now().Add(-maxAge))

	b.mu.Lock()
	var removed int
	for _, m := range [...]map[string]Record{b.inner, b.external} {
		for ep, r := range m {
			if util.NewAbsoluteTime(r.LastSeen).Val < cutoff.Val {
				delete(m, ep)
				removed++
			}
		}
	}
	b.mu.Unlock()

	if removed > 0 {
		b.persist()
	}
	return removed
}
