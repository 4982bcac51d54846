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

// Package revision reconstructs the revision history of a PDF file.
//
// A PDF file can be modified by appending incremental updates.  Every
// update consists of the new and changed objects, a cross-reference
// section, and a trailer which points back to the previous section.  This
// package follows the chain of cross-reference sections from the end of the
// file back to the original document, and reports one [Revision] per
// section.
package revision

import (
	"cmp"
	"errors"
	"fmt"
	"io"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/limitbuf"
)

// Revision describes one cross-reference section of a PDF file, together
// with the objects declared by it.
type Revision struct {
	// XRefPos is the byte offset of the cross-reference section.
	XRefPos int64

	// EOF is the byte offset of the "%%EOF" marker which closes the
	// revision.
	EOF int64

	// Changed lists the objects which were written in this revision, in
	// order of increasing object number.
	Changed []pdf.Reference

	// Freed lists the objects which were deleted in this revision, in
	// order of increasing object number.  The generation numbers are the
	// ones to be used when the object numbers are reused.
	Freed []pdf.Reference
}

// Contains reports whether the object ref was written in this revision.
func (r *Revision) Contains(ref pdf.Reference) bool {
	i, found := slices.BinarySearchFunc(r.Changed, ref.Number(), func(a pdf.Reference, number uint32) int {
		return cmp.Compare(a.Number(), number)
	})
	return found && r.Changed[i] == ref
}

// Refs returns the references of all objects written or deleted in this
// revision, in order of increasing object number.
func (r *Revision) Refs() []pdf.Reference {
	res := make([]pdf.Reference, 0, len(r.Changed)+len(r.Freed))
	res = append(res, r.Changed...)
	res = append(res, r.Freed...)
	slices.SortFunc(res, byNumber)
	return res
}

// ChainError indicates that the chain of cross-reference sections is
// broken.
type ChainError struct {
	// Pos is the byte offset where the problem was found.
	Pos int64

	Err error
}

func (err *ChainError) Error() string {
	return fmt.Sprintf("broken revision chain at byte %d: %v", err.Pos, err.Err)
}

func (err *ChainError) Unwrap() error {
	return err.Err
}

// Read reconstructs the revisions of the PDF file r of the given size.
// The revisions are returned in chronological order, the original document
// first.
//
// The file is read independently from any [pdf.Reader] for the same data.
// If any part of the chain of cross-reference sections cannot be read, a
// [*ChainError] is returned, and no revisions.
func Read(r io.ReaderAt, size int64) ([]Revision, error) {
	pos, err := pdf.FindStartXRef(r, size)
	if err != nil {
		return nil, &ChainError{Pos: size, Err: err}
	}

	var res []Revision
	seen := make(map[int64]bool)
	for pos != 0 {
		if seen[pos] {
			return nil, &ChainError{Pos: pos, Err: errLoop}
		}
		seen[pos] = true

		sec, err := pdf.ReadXRefSection(r, size, pos, limitbuf.DefaultLimit)
		if err != nil {
			return nil, &ChainError{Pos: pos, Err: err}
		}
		eof, err := pdf.FindEOF(r, size, sec.End)
		if err != nil {
			return nil, &ChainError{Pos: sec.End, Err: err}
		}

		res = append(res, fromSection(sec, eof))
		pos = sec.Prev
	}

	slices.Reverse(res)
	return res, nil
}

// fromSection summarizes a cross-reference section.  The section itself is
// not retained.
func fromSection(sec *pdf.XRefSection, eof int64) Revision {
	rev := Revision{
		XRefPos: sec.Pos,
		EOF:     eof,
	}
	for number, entry := range sec.Entries {
		if number == 0 {
			continue
		}
		ref := pdf.NewReference(number, entry.Generation)
		if entry.Free {
			rev.Freed = append(rev.Freed, ref)
		} else {
			rev.Changed = append(rev.Changed, ref)
		}
	}
	slices.SortFunc(rev.Changed, byNumber)
	slices.SortFunc(rev.Freed, byNumber)
	return rev
}

func byNumber(a, b pdf.Reference) int {
	return cmp.Compare(a.Number(), b.Number())
}

var errLoop = errors.New("loop in /Prev chain")
