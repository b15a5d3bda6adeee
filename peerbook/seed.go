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
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// ResolveSeeds queries the TXT records of name against server (host:port)
// and returns the "host:port" endpoint strings found in them, one per TXT
// string of the form "endpoint=host:port". Malformed strings are skipped.
// This is how a fresh node bootstraps its peer book before it has learned
// any endpoint by direct contact.
func ResolveSeeds(name, server string, timeout time.Duration) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	c := new(dns.Client)
	c.Timeout = timeout
	in, _, err := c.Exchange(m, server)
	if err != nil {
		return nil, fmt.Errorf("peerbook: dns seed lookup failed: %w", err)
	}

	var out []string
	for _, rr := range in.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, s := range txt.Txt {
			if ep, ok := parseSeedRecord(s); ok {
				out = append(out, ep)
			}
		}
	}
	return out, nil
}

func parseSeedRecord(s string) (string, bool) {
	const prefix = "endpoint="
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

// Seed populates the book with endpoints resolved from a DNS TXT seed
// record, as external peers with a neutral reachability score.
func (b *Book) Seed(name, server string, timeout time.Duration) error {
	endpoints, err := ResolveSeeds(name, server, timeout)
	if err != nil {
		return err
	}
	for _, ep := range endpoints {
		b.Observe(ep, ScopeExternal, ProtoStream, 128)
	}
	return nil
}
