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
	"container/list"
	"context"
	"strconv"
	"sync"
	"time"

	"meshnode/store"

	"github.com/bfix/gospel/logger"
)

// DefaultWindowSize is the suggested per-sender nonce history depth.
const DefaultWindowSize = 1024

// shadowTimeout bounds how long a Seen call will wait on the on-disk
// shadow store before treating it as unavailable for this call.
const shadowTimeout = 2 * time.Second

// Window is a bounded, LRU-evicted set of recently seen (sender, nonce)
// pairs per sender address, used to reject replayed frames. A sender's
// oldest nonce is forgotten once newer nonces from the same sender push
// it out; sender entries themselves are never evicted, and only Reset
// discards a sender's history.
//
// When AttachStore has given it a backing store.KV, every newly recorded
// nonce is also shadowed there with a TTL; a nonce the in-memory LRU has
// forgotten (evicted locally, or lost across a process restart) is still
// caught as a replay as long as its shadow entry has not expired.
type Window struct {
	mu      sync.Mutex
	size    int
	senders map[string]*senderWindow

	kv  store.KV
	ttl time.Duration
}

type senderWindow struct {
	seen  map[uint64]*list.Element
	order *list.List
}

// record inserts nonce as most-recently-seen, evicting the oldest entry
// if the sender's window is now over capacity.
func (sw *senderWindow) record(nonce uint64, limit int) {
	el := sw.order.PushFront(nonce)
	sw.seen[nonce] = el
	if sw.order.Len() > limit {
		if back := sw.order.Back(); back != nil {
			sw.order.Remove(back)
			delete(sw.seen, back.Value.(uint64))
		}
	}
}

// NewWindow creates a replay window holding up to size recent nonces per
// sender.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{size: size, senders: make(map[string]*senderWindow)}
}

// AttachStore gives the window an on-disk shadow of recently seen
// nonces, each persisted with ttl. Safe to call at any time; a nil kv
// detaches the shadow again.
func (w *Window) AttachStore(kv store.KV, ttl time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.kv = kv
	w.ttl = ttl
}

func shadowKey(sender string, nonce uint64) string {
	return "replay:" + sender + ":" + strconv.FormatUint(nonce, 16)
}

// Seen reports whether (sender, nonce) was already observed. If not, it
// is recorded and the call returns false; if it was, the call returns
// true (the caller drops the frame). A nonce found only in the shadow
// store is recorded in the in-memory window as well.
func (w *Window) Seen(sender string, nonce uint64) bool {
	w.mu.Lock()
	sw, ok := w.senders[sender]
	if !ok {
		sw = &senderWindow{seen: make(map[uint64]*list.Element), order: list.New()}
		w.senders[sender] = sw
	}
	if _, ok := sw.seen[nonce]; ok {
		w.mu.Unlock()
		return true
	}
	kv, ttl := w.kv, w.ttl
	w.mu.Unlock()

	if kv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shadowTimeout)
		_, found, err := kv.Get(ctx, shadowKey(sender, nonce))
		cancel()
		if err != nil {
			logger.Printf(logger.WARN, "[frame] replay shadow read failed: %s\n", err.Error())
		} else if found {
			w.mu.Lock()
			sw.record(nonce, w.size)
			w.mu.Unlock()
			return true
		}
	}

	w.mu.Lock()
	sw.record(nonce, w.size)
	w.mu.Unlock()

	if kv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shadowTimeout)
		err := kv.Put(ctx, shadowKey(sender, nonce), []byte{1}, ttl)
		cancel()
		if err != nil {
			logger.Printf(logger.WARN, "[frame] replay shadow write failed: %s\n", err.Error())
		}
	}
	return false
}

// Reset discards all recorded nonces for a sender, e.g. when the peer's
// connection is removed from the registry. The on-disk shadow, if any,
// is left to expire by TTL rather than swept per-nonce: Reset has no
// enumeration of which nonces belong to sender in the store.
func (w *Window) Reset(sender string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.senders, sender)
}
