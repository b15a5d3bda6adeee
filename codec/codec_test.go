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

package codec

import "testing"

func TestRoundtrip(t *testing.T) {
	w := NewWriter()
	w.U8(7).U16(1000).U32(123456).U64(9999999999).VarBytes([]byte{1, 2, 3}).String("hello")
	r := NewReader(w.Bytes())

	if v, err := r.U8(); err != nil || v != 7 {
		t.Fatalf("U8 = %v, %v", v, err)
	}
	if v, err := r.U16(); err != nil || v != 1000 {
		t.Fatalf("U16 = %v, %v", v, err)
	}
	if v, err := r.U32(); err != nil || v != 123456 {
		t.Fatalf("U32 = %v, %v", v, err)
	}
	if v, err := r.U64(); err != nil || v != 9999999999 {
		t.Fatalf("U64 = %v, %v", v, err)
	}
	if v, err := r.VarBytes(); err != nil || len(v) != 3 {
		t.Fatalf("VarBytes = %v, %v", v, err)
	}
	if v, err := r.String(); err != nil || v != "hello" {
		t.Fatalf("String = %v, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", r.Remaining())
	}
}

func TestTruncatedInput(t *testing.T) {
	r := NewReader([]byte{0, 0})
	if _, err := r.U32(); err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestCanonicalForm(t *testing.T) {
	w1 := NewWriter()
	w1.U32(42).String("abc")
	w2 := NewWriter()
	w2.U32(42).String("abc")
	if string(w1.Bytes()) != string(w2.Bytes()) {
		t.Fatal("identical values produced different encodings")
	}
}

func TestOversizedFieldRejected(t *testing.T) {
	w := NewWriter()
	w.U32(MaxFieldLen + 1)
	r := NewReader(w.Bytes())
	if _, err := r.VarBytes(); err != ErrFieldTooBig {
		t.Fatalf("err = %v, want ErrFieldTooBig", err)
	}
}
