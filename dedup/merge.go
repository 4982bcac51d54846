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

// Merger finds duplicate objects in a document.  It implements
// [pdf.Deduplicator], and can be used with [pdf.WriterOptions] to write at
// most one copy of every canonical form:
//
//	opt := &pdf.WriterOptions{Dedup: dedup.NewMerger(doc, nil)}
//	err := doc.Write(w, opt)
//
// A Merger must only be used for a single pass over a document.
type Merger struct {
	ser  *Serializer
	seen *Map
}

// NewMerger returns a new Merger for the objects of r.
func NewMerger(r pdf.Getter, opt *Options) *Merger {
	return &Merger{
		ser:  NewSerializer(r, opt),
		seen: NewMap(),
	}
}

// Canonical implements the [pdf.Deduplicator] interface.
func (m *Merger) Canonical(ref pdf.Reference, obj pdf.Object) pdf.Reference {
	if !Candidate(obj) {
		return ref
	}
	form := m.ser.Canonicalize(ref, 0)
	if orig, found := m.seen.Lookup(form); found {
		return orig
	}
	m.seen.Remember(form, ref)
	return ref
}

// Len returns the number of distinct forms seen so far.
func (m *Merger) Len() int {
	return m.seen.Len()
}
