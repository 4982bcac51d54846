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
	"errors"
	"io"
	"slices"

	"golang.org/x/exp/maps"
)

// Document is a PDF document held in memory.
//
// The objects of the document are owned by a [Table].  For documents read
// from a file, objects are loaded lazily from the underlying [Reader].  A
// Document implements both [Getter] and [Putter].
//
// Objects obtained via [Document.Get] may be modified in place.  In this
// case, [Table.SetModified] must be called, so that the change is included
// in the next incremental update.
type Document struct {
	// Version is the PDF version of the document.
	Version Version

	// Trailer holds the document-level trailer entries, for example /Root,
	// /Info and /ID.  Entries which describe the cross-reference section
	// are filled in when the document is written.
	Trailer Dict

	table *Table
	r     *Reader

	// base is the size of the file written so far, and prevXRef the
	// position of its last cross-reference section.  Both are zero for
	// documents which have never been written.
	base     int64
	prevXRef int64
	lastByte byte
}

// NewDocument creates a new, empty document.
func NewDocument(v Version) *Document {
	return &Document{
		Version: v,
		Trailer: Dict{},
		table:   NewTable(nil),
	}
}

// OpenDocument creates a document for the file read by r.  The document
// can be modified, and the changes can be appended to the file using
// [Document.WriteUpdate].
func OpenDocument(r *Reader) *Document {
	d := &Document{
		Version:  r.Version,
		Trailer:  cloneDict(r.Trailer),
		table:    NewTable(r),
		r:        r,
		base:     r.Size(),
		prevXRef: r.XRefPos,
	}
	r.Declare(d.table)
	if size, ok := r.Trailer["Size"].(Integer); ok && size > 0 {
		// Object numbers up to /Size-1 may be in use by earlier revisions.
		for int64(d.table.Size()) < int64(size) {
			d.table.slots = append(d.table.slots, slot{})
		}
	}

	if r.size > 0 {
		var buf [1]byte
		if _, err := r.r.ReadAt(buf[:], r.size-1); err == nil {
			d.lastByte = buf[0]
		}
	}
	return d
}

// Table returns the object table of the document.
func (d *Document) Table() *Table {
	return d.table
}

// Get implements the [Getter] interface.
func (d *Document) Get(ref Reference) (Object, error) {
	return d.table.Get(ref)
}

// Alloc implements the [Putter] interface.
func (d *Document) Alloc() Reference {
	return d.table.Alloc()
}

// Put implements the [Putter] interface.
func (d *Document) Put(ref Reference, obj Object) error {
	return d.table.Put(ref, obj)
}

// Free deletes the object ref from the document.  See [Table.Free].
func (d *Document) Free(ref Reference) error {
	return d.table.Free(ref)
}

// Register promotes obj to an indirect object of the document.
// See [Table.Register].
func (d *Document) Register(obj Object) Object {
	return d.table.Register(obj)
}

// Catalog returns the document catalog.
func (d *Document) Catalog() (Dict, error) {
	return GetDict(d, d.Trailer["Root"])
}

// Write writes the complete document to w, as a new file.  All objects are
// flushed from the table afterwards; pinned objects stay available.
//
// If opt.Dedup is set, structurally equal objects are merged using
// [Document.Deduplicate] before the file is written.
func (d *Document) Write(w io.Writer, opt *WriterOptions) error {
	if opt == nil {
		opt = &WriterOptions{}
	}
	ver := opt.Version
	if ver == 0 {
		ver = d.Version
	}
	if opt.UseXRefStream && ver < V1_5 {
		return errVersion
	}
	if _, hasRoot := d.Trailer["Root"]; !hasRoot {
		return errors.New("missing /Root in trailer")
	}

	if opt.Dedup != nil {
		_, err := d.Deduplicate(opt.Dedup)
		if err != nil {
			return err
		}
	}

	fw := newFileWriter(w, 0)
	err := fw.writeHeader(ver)
	if err != nil {
		return err
	}

	// The xref stream gets a new object number, so that it does not
	// take over a slot which is free in the table.  The slot is removed
	// again if writing fails.
	var xRefRef Reference
	if opt.UseXRefStream {
		number := d.table.Size()
		d.table.slots = append(d.table.slots, slot{state: Resident})
		xRefRef = NewReference(uint32(number), 0)
		defer func() {
			if d.table.State(xRefRef) == Resident {
				d.table.slots = d.table.slots[:number]
			}
		}()
	}

	var written []Reference
	for number := 0; number < d.table.Size(); number++ {
		s := &d.table.slots[number]
		if s.state == Unused || s.state == Free {
			gen := s.gen
			if number == 0 {
				gen = maxGeneration
			}
			fw.writeFree(uint32(number), gen)
			continue
		}
		ref := NewReference(uint32(number), s.gen)
		if ref == xRefRef && opt.UseXRefStream {
			continue
		}

		obj, err := d.table.Get(ref)
		if err != nil {
			return err
		}
		err = fw.writeIndirect(ref, obj)
		if err != nil {
			return err
		}
		written = append(written, ref)
	}

	trailer := d.trailer()
	xRefPos := fw.w.pos
	if opt.UseXRefStream {
		err = fw.writeXRefStream(xRefRef, trailer)
	} else {
		err = fw.writeXRefTable(trailer)
	}
	if err != nil {
		return err
	}
	err = fw.writeTail(xRefPos)
	if err != nil {
		return err
	}

	if opt.UseXRefStream {
		// the xref stream is not part of the document
		err = d.table.Free(xRefRef)
		if err != nil {
			return err
		}
	}
	for _, ref := range written {
		d.table.Flush(ref)
	}
	d.table.ClearModified()
	d.base = fw.w.pos
	d.prevXRef = xRefPos
	d.lastByte = '\n'
	return nil
}

// Deduplicate merges structurally equal objects of the document.  All live
// objects are presented to dd in order of increasing object number.  For
// every object which dd reports as a duplicate of an earlier object, the
// references in the document are redirected to the earlier object and the
// duplicate is freed.  The function returns the number of freed objects.
func (d *Document) Deduplicate(dd Deduplicator) (int, error) {
	var live []Reference
	for ref := range d.table.Refs() {
		live = append(live, ref)
	}

	alias := make(map[Reference]Reference)
	for _, ref := range live {
		obj, err := d.table.Get(ref)
		if err != nil {
			return 0, err
		}
		if orig := dd.Canonical(ref, obj); orig != ref {
			alias[ref] = orig
		}
	}
	if len(alias) == 0 {
		return 0, nil
	}

	for _, ref := range live {
		if _, isDup := alias[ref]; isDup {
			continue
		}
		obj, err := d.table.Get(ref)
		if err != nil {
			return 0, err
		}
		if newObj, changed := redirect(obj, alias); changed {
			err = d.table.Put(ref, newObj)
			if err != nil {
				return 0, err
			}
		}
	}
	if trailer, changed := redirect(d.Trailer, alias); changed {
		d.Trailer = trailer.(Dict)
	}

	for dup, orig := range alias {
		Logger().Debug("merged duplicate object", "ref", dup, "into", orig)
		err := d.table.Free(dup)
		if err != nil {
			return 0, err
		}
	}
	return len(alias), nil
}

// redirect replaces the references in obj according to alias.  The object
// is copied where it changes; obj itself is not modified.
func redirect(obj Object, alias map[Reference]Reference) (Object, bool) {
	switch x := obj.(type) {
	case Reference:
		if to, ok := alias[x]; ok {
			return to, true
		}
	case Array:
		var res Array
		for i, elem := range x {
			newElem, changed := redirect(elem, alias)
			if changed && res == nil {
				res = slices.Clone(x)
			}
			if res != nil {
				res[i] = newElem
			}
		}
		if res != nil {
			return res, true
		}
	case Dict:
		var res Dict
		for key, val := range x {
			newVal, changed := redirect(val, alias)
			if !changed {
				continue
			}
			if res == nil {
				res = maps.Clone(x)
			}
			res[key] = newVal
		}
		if res != nil {
			return res, true
		}
	case *Stream:
		if dict, changed := redirect(x.Dict, alias); changed {
			return &Stream{Dict: dict.(Dict), R: x.R}, true
		}
	}
	return obj, false
}

// WriteUpdate appends an incremental update to a document which has been
// read from a file or written before.  Only objects which have been
// modified or freed since the last write are included.  The data written
// to w must be appended to the previous contents of the file.
func (d *Document) WriteUpdate(w io.Writer) error {
	if d.prevXRef == 0 {
		return errors.New("incremental update requires a previous revision")
	}
	if _, hasRoot := d.Trailer["Root"]; !hasRoot {
		return errors.New("missing /Root in trailer")
	}

	fw := newFileWriter(w, d.base)
	if d.lastByte != '\n' && d.lastByte != '\r' {
		_, err := fw.w.Write([]byte("\n"))
		if err != nil {
			return err
		}
	}

	modified := d.table.Modified()
	for _, ref := range modified {
		if d.table.State(ref) == Free {
			fw.writeFree(ref.Number(), ref.Generation())
			continue
		}
		obj, err := d.table.Get(ref)
		if err != nil {
			return err
		}
		err = fw.writeIndirect(ref, obj)
		if err != nil {
			return err
		}
	}

	trailer := d.trailer()
	trailer["Prev"] = Integer(d.prevXRef)
	xRefPos := fw.w.pos
	err := fw.writeXRefTable(trailer)
	if err != nil {
		return err
	}
	err = fw.writeTail(xRefPos)
	if err != nil {
		return err
	}

	d.table.ClearModified()
	d.base = fw.w.pos
	d.prevXRef = xRefPos
	d.lastByte = '\n'
	return nil
}

// trailer returns the trailer dictionary for the next cross-reference
// section.
func (d *Document) trailer() Dict {
	trailer := cloneDict(d.Trailer)
	for _, key := range trailerOnlyKeys {
		delete(trailer, key)
	}
	trailer["Size"] = Integer(d.table.Size())
	return trailer
}
