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

package transport

import (
	"net/http"
	"strings"
	"testing"
)

func TestComputeAcceptMatchesRFC6455Vector(t *testing.T) {
	got := ComputeAccept("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("Sec-WebSocket-Accept = %q, want %q", got, want)
	}
}

func TestIsWebSocketUpgradeCaseInsensitive(t *testing.T) {
	req, _ := http.NewRequest("GET", "/", nil)
	req.Header.Set("Upgrade", "WebSocket")
	if !IsWebSocketUpgrade(req) {
		t.Fatal("expected upgrade header to be detected case-insensitively")
	}
}

func TestIsWebSocketUpgradeAbsent(t *testing.T) {
	req, _ := http.NewRequest("GET", "/", nil)
	if IsWebSocketUpgrade(req) {
		t.Fatal("expected no upgrade detected")
	}
}

func TestHTTPMethodPrefixMatch(t *testing.T) {
	for _, prefix := range httpMethodPrefixes {
		if !strings.HasPrefix(prefix+"/path HTTP/1.1\r\n", prefix) {
			t.Fatalf("prefix %q not matched", prefix)
		}
	}
}
