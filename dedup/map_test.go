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

package dedup

import (
	"testing"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/internal/debug/mock"
)

func TestMap(t *testing.T) {
	s := NewSerializer(mock.Getter{}, nil)
	fa := s.Canonicalize(pdf.Dict{"A": pdf.Integer(1)}, 0)
	fb := s.Canonicalize(pdf.Dict{"B": pdf.Integer(1)}, 0)
	refA := pdf.NewReference(1, 0)
	refB := pdf.NewReference(2, 0)

	m := NewMap()
	if _, found := m.Lookup(fa); found {
		t.Error("empty map has an entry")
	}
	m.Remember(fa, refA)
	m.Remember(fb, refB)
	m.Remember(fa, pdf.NewReference(3, 0))

	if m.Len() != 2 {
		t.Errorf("wrong length %d", m.Len())
	}
	if ref, found := m.Lookup(fa); !found || ref != refA {
		t.Errorf("wrong entry %s %t", ref, found)
	}
	if ref, found := m.Lookup(fb); !found || ref != refB {
		t.Errorf("wrong entry %s %t", ref, found)
	}
}

func TestMapHashCollision(t *testing.T) {
	m := NewMap()
	f1 := Form{Data: []byte("one")}
	f2 := Form{Data: []byte("two")}
	m.Remember(f1, pdf.NewReference(1, 0))

	if _, found := m.Lookup(f2); found {
		t.Error("lookup ignores the encoded data")
	}
}

func TestCandidate(t *testing.T) {
	cases := []struct {
		obj  pdf.Object
		want bool
	}{
		{pdf.Dict{}, true},
		{pdf.Dict{"Type": pdf.Name("Font")}, true},
		{pdf.Dict{"Type": pdf.Name("Page")}, false},
		{pdf.Dict{"Type": pdf.Name("Pages")}, false},
		{&pdf.Stream{Dict: pdf.Dict{}}, true},
		{pdf.Array{}, false},
		{pdf.Integer(1), false},
		{nil, false},
	}
	for i, c := range cases {
		if got := Candidate(c.obj); got != c.want {
			t.Errorf("%d: got %t, want %t", i, got, c.want)
		}
	}
}
