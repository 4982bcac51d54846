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

// Package pdf implements the object store of a PDF library.
//
// A PDF file is a graph of objects.  The object kinds are represented by the
// Go types [Bool], [Integer], [Real], [String], [Name], [Array], [Dict],
// [*Stream] and [Reference], together with nil for the null object.
// Objects which are shared between several places in the graph are stored
// as indirect objects, and are referred to by a [Reference].  The graph may
// contain cycles, for example between the nodes of the page tree.
//
// All indirect objects of a document are owned by a [Table].  The table
// hands out references, resolves them in constant time, tracks which
// objects have been modified, and reuses the object numbers of deleted
// objects with an incremented generation number.  Resolving a reference to
// a deleted or released object fails with a [*StaleReferenceError].
//
// A [Document] combines a Table with the trailer information of a file.
// Documents read from a file (using [Open] or [NewReader] together with
// [OpenDocument]) load their objects lazily.  Changes can be appended to
// the file as an incremental update using [Document.WriteUpdate], or the
// whole document can be written as a new file using [Document.Write]:
//
//	r, err := pdf.Open("in.pdf", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	doc := pdf.OpenDocument(r)
//
//	... modify objects using doc.Put(), doc.Register() and doc.Free() ...
//
//	err = doc.WriteUpdate(out) // out appends to the file "in.pdf"
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Stream data is decoded using the filters described by the stream
// dictionary, see [DecodeStream].  The size of decoded data is limited, to
// protect against decompression bombs.
//
// Warnings and debug output are sent to the logger set by [SetLogger].
// By default, nothing is logged.
package pdf
