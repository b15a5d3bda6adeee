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

package session

import (
	"time"

	"meshnode/util"
)

// TempSessions holds sessions that have exchanged an ephemeral key but
// have not yet been promoted into the peer's long-lived session slot,
// keyed by the 16-byte session id carried in OnLine/OnLineAck.
type TempSessions struct {
	m *util.Map[[16]byte, *Session]
}

// NewTempSessions returns an empty temp-session map.
func NewTempSessions() *TempSessions {
	return &TempSessions{m: util.NewMap[[16]byte, *Session]()}
}

// Start creates a new pending session under a fresh id and stores it.
func (t *TempSessions) Start() ([16]byte, *Session, error) {
	s, err := New()
	if err != nil {
		return [16]byte{}, nil, err
	}
	id := NewSessionID()
	t.m.Put(id, s, 0)
	return id, s, nil
}

// Get looks up a pending session by id.
func (t *TempSessions) Get(id [16]byte) (*Session, bool) {
	return t.m.Get(id, 0)
}

// Drop removes a session from the temp map, e.g. once it has been
// promoted into the permanent session map or has expired.
func (t *TempSessions) Drop(id [16]byte) {
	t.m.Delete(id, 0)
}

// Sweep removes every pending session idle longer than ttl, returning the
// number removed.
func (t *TempSessions) Sweep(ttl time.Duration) int {
	removed := 0
	toDrop := make([][16]byte, 0)
	_ = t.m.ProcessRange(func(key [16]byte, value *Session, pid int) error {
		if value.IsExpired(ttl) {
			toDrop = append(toDrop, key)
		}
		return nil
	}, true)
	for _, id := range toDrop {
		t.m.Delete(id, 0)
		removed++
	}
	return removed
}
