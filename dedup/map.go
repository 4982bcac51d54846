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
	"seehuhn.de/go/pdfcore"
)

// Map records the objects which have already been written, indexed by
// their canonical form.
type Map struct {
	m map[[32]byte][]mapEntry
	n int
}

type mapEntry struct {
	data []byte
	ref  pdf.Reference
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{m: make(map[[32]byte][]mapEntry)}
}

// Lookup returns the reference of an object with canonical form f, if one
// has been recorded.
func (m *Map) Lookup(f Form) (pdf.Reference, bool) {
	for _, e := range m.m[f.Sum] {
		if string(e.data) == string(f.Data) {
			return e.ref, true
		}
	}
	return 0, false
}

// Remember records that ref is an object with canonical form f.  If an
// object with the same form has been recorded before, the map is not
// changed.
func (m *Map) Remember(f Form, ref pdf.Reference) {
	if _, found := m.Lookup(f); found {
		return
	}
	m.m[f.Sum] = append(m.m[f.Sum], mapEntry{data: f.Data, ref: ref})
	m.n++
}

// Len returns the number of recorded forms.
func (m *Map) Len() int {
	return m.n
}

// Candidate reports whether obj takes part in deduplication.
// Only dictionaries and streams are considered.  The nodes of the page tree
// are excluded, since every page needs its own identity.
func Candidate(obj pdf.Object) bool {
	switch x := obj.(type) {
	case pdf.Dict:
		tp, _ := x["Type"].(pdf.Name)
		return tp != "Page" && tp != "Pages"
	case *pdf.Stream:
		return true
	default:
		return false
	}
}
