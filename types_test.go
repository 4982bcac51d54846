// seehuhn.de/go/pdfcore - the object store of a PDF library
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdf

import (
	"bytes"
	"slices"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in  Object
		out string
	}{
		{nil, "null"},
		{Bool(true), "true"},
		{Integer(-12), "-12"},
		{Real(1.5), "1.5"},
		{Real(2), "2."},
		{String("hello"), "(hello)"},
		{String("a(b)c"), "(a(b)c)"},
		{String("xa)b(cx"), `(xa\)b\(cx)`},
		{String("back\\slash"), `(back\\slash)`},
		{String{0, 1, 2, 3}, "<00010203>"},
		{Name("Type"), "/Type"},
		{Name("A B#"), "/A#20B#23"},
		{Name(""), "/"},
		{Literal("1 0 0 1 0 0 cm"), "1 0 0 1 0 0 cm"},
		{Array{Integer(1), nil, Name("x")}, "[1 null /x]"},
		{Array{}, "[]"},
		{Dict{"B": Integer(2), "A": Integer(1), "C": nil}, "<<\n/A 1\n/B 2\n>>"},
		{NewReference(12, 3), "12 3 R"},
	}
	for _, test := range cases {
		out := Format(test.in)
		if out != test.out {
			t.Errorf("Format(%#v) = %q, want %q", test.in, out, test.out)
		}
	}
}

func TestFormatStream(t *testing.T) {
	stm := &Stream{
		Dict: Dict{"Type": Name("X")},
		R:    strings.NewReader("abc"),
	}
	got := Format(stm)
	want := "<<\n/Length 3\n/Type /X\n>>\nstream\nabc\nendstream"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if _, hasLength := stm.Dict["Length"]; hasLength {
		t.Error("stream dictionary was modified")
	}
}

func TestTextString(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"Grüße",
		"日本語",
		"a€b",
	}
	for _, s := range cases {
		enc := TextString(s)
		isUTF16 := bytes.HasPrefix(enc, []byte{0xFE, 0xFF})
		if s == "日本語" || s == "a€b" {
			if !isUTF16 {
				t.Errorf("%q: UTF-16 encoding expected", s)
			}
		} else if isUTF16 {
			t.Errorf("%q: Latin-1 encoding expected", s)
		}
		if dec := enc.AsTextString(); dec != s {
			t.Errorf("%q: round trip gave %q", s, dec)
		}
	}
}

func TestReference(t *testing.T) {
	ref := NewReference(0xFFFFFFFF, 0xFFFF)
	if ref.Number() != 0xFFFFFFFF || ref.Generation() != 0xFFFF {
		t.Errorf("got %d %d", ref.Number(), ref.Generation())
	}

	ref = NewReference(17, 0)
	if ref.String() != "obj_17" {
		t.Errorf("got %q", ref.String())
	}
	ref = NewReference(17, 2)
	if ref.String() != "obj_17@2" {
		t.Errorf("got %q", ref.String())
	}

	bad := Reference(1 << 50)
	if err := bad.PDF(&bytes.Buffer{}); err == nil {
		t.Error("invalid reference was written")
	}
}

func TestIsDirectOnly(t *testing.T) {
	for _, obj := range []Object{nil, Bool(true), Bool(false)} {
		if !IsDirectOnly(obj) {
			t.Errorf("%v is direct-only", obj)
		}
	}
	for _, obj := range []Object{Integer(0), Name(""), String(nil), Array(nil), Dict(nil), NewReference(1, 0)} {
		if IsDirectOnly(obj) {
			t.Errorf("%#v is not direct-only", obj)
		}
	}
}

func TestVersion(t *testing.T) {
	for _, s := range []string{"1.0", "1.4", "1.7", "2.0"} {
		v, err := ParseVersion(s)
		if err != nil {
			t.Fatal(err)
		}
		out, err := v.ToString()
		if err != nil || out != s {
			t.Errorf("%s: got %q %v", s, out, err)
		}
	}
	for _, s := range []string{"1.8", "", "1.", "2"} {
		if _, err := ParseVersion(s); err == nil {
			t.Errorf("version %q accepted", s)
		}
	}
	if s := Version(0).String(); s != "pdf.Version(0)" {
		t.Errorf("got %q", s)
	}
	if s := Version(100).String(); s != "pdf.Version(100)" {
		t.Errorf("got %q", s)
	}
}

func TestSortedKeys(t *testing.T) {
	dict := Dict{"Type": Name("Page"), "A": Integer(1), "Parent": nil, "B": Bool(true)}
	got := dict.SortedKeys()
	want := []Name{"A", "B", "Parent", "Type"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if keys := (Dict{}).SortedKeys(); len(keys) != 0 {
		t.Errorf("empty dict: got %v", keys)
	}
}
