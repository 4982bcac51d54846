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
	"errors"
	"fmt"
	"io"
	"math/bits"

	"golang.org/x/exp/slices"
)

// WriterOptions controls how a PDF file is written.
type WriterOptions struct {
	// Version is the PDF version written into the file header.
	// If this is zero, the version of the document is used.
	Version Version

	// UseXRefStream selects a cross-reference stream instead of a
	// cross-reference table.  This requires PDF version 1.5 or newer.
	UseXRefStream bool

	// Dedup, if set, is used to merge structurally equal objects before
	// the file is written.  The package seehuhn.de/go/pdfcore/dedup
	// provides an implementation.
	Dedup Deduplicator
}

// A Deduplicator identifies indirect objects which are structurally equal
// to an object seen before.  See [Document.Deduplicate].
type Deduplicator interface {
	// Canonical returns the reference of an earlier object which is equal
	// to the object ref, or ref itself if there is no such object.
	Canonical(ref Reference, obj Object) Reference
}

type posWriter struct {
	w   io.Writer
	pos int64
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}

// fileWriter writes indirect objects and records their positions for the
// cross-reference section.
type fileWriter struct {
	w       *posWriter
	entries map[uint32]*XRefEntry
}

func newFileWriter(w io.Writer, pos int64) *fileWriter {
	return &fileWriter{
		w:       &posWriter{w: w, pos: pos},
		entries: make(map[uint32]*XRefEntry),
	}
}

func (fw *fileWriter) writeHeader(ver Version) error {
	verString, err := ver.ToString()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(fw.w, "%%PDF-%s\n%%\x80\x80\x80\x80\n", verString)
	return err
}

// writeIndirect writes obj as the indirect object ref.
func (fw *fileWriter) writeIndirect(ref Reference, obj Object) error {
	if _, seen := fw.entries[ref.Number()]; seen {
		return errors.New("object " + ref.String() + " already written")
	}
	fw.entries[ref.Number()] = &XRefEntry{
		Pos:        fw.w.pos,
		Generation: ref.Generation(),
	}

	_, err := fmt.Fprintf(fw.w, "%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}
	if obj == nil {
		_, err = fw.w.Write([]byte("null"))
	} else {
		err = obj.PDF(fw.w)
	}
	if err != nil {
		return err
	}
	_, err = fw.w.Write([]byte("\nendobj\n"))
	return err
}

// writeFree records a free entry.  The generation is the one to use if the
// object number is reused.
func (fw *fileWriter) writeFree(number uint32, gen uint16) {
	fw.entries[number] = &XRefEntry{Free: true, Generation: gen}
}

// numbers returns the object numbers of all recorded entries, in
// increasing order.
func (fw *fileWriter) numbers() []uint32 {
	res := make([]uint32, 0, len(fw.entries))
	for number := range fw.entries {
		res = append(res, number)
	}
	slices.Sort(res)
	return res
}

// nextFree returns, for every free entry, the number of the next free
// entry.  The last free entry links back to object 0.
func (fw *fileWriter) nextFree(numbers []uint32) map[uint32]uint32 {
	next := make(map[uint32]uint32)
	var last uint32
	first := true
	for _, number := range numbers {
		if !fw.entries[number].Free {
			continue
		}
		if !first {
			next[last] = number
		}
		last = number
		first = false
	}
	if !first {
		next[last] = 0
	}
	return next
}

// writeXRefTable writes the cross-reference table for all recorded
// entries, followed by the trailer.  Consecutive object numbers are
// grouped into subsections.
func (fw *fileWriter) writeXRefTable(trailer Dict) error {
	numbers := fw.numbers()
	next := fw.nextFree(numbers)

	_, err := fw.w.Write([]byte("xref\n"))
	if err != nil {
		return err
	}
	for start := 0; start < len(numbers); {
		end := start + 1
		for end < len(numbers) && numbers[end] == numbers[end-1]+1 {
			end++
		}
		_, err = fmt.Fprintf(fw.w, "%d %d\n", numbers[start], end-start)
		if err != nil {
			return err
		}
		for _, number := range numbers[start:end] {
			entry := fw.entries[number]
			if entry.Free {
				_, err = fmt.Fprintf(fw.w, "%010d %05d f\r\n", next[number], entry.Generation)
			} else {
				_, err = fmt.Fprintf(fw.w, "%010d %05d n\r\n", entry.Pos, entry.Generation)
			}
			if err != nil {
				return err
			}
		}
		start = end
	}

	_, err = fw.w.Write([]byte("trailer\n"))
	if err != nil {
		return err
	}
	err = trailer.PDF(fw.w)
	if err != nil {
		return err
	}
	_, err = fw.w.Write([]byte("\n"))
	return err
}

// writeXRefStream writes a cross-reference stream for all recorded
// entries, using ref as the object identifier of the stream.  The entries
// of the trailer are included in the stream dictionary.
func (fw *fileWriter) writeXRefStream(ref Reference, trailer Dict) error {
	fw.entries[ref.Number()] = &XRefEntry{
		Pos:        fw.w.pos,
		Generation: ref.Generation(),
	}
	numbers := fw.numbers()
	next := fw.nextFree(numbers)

	maxField2 := uint64(0)
	maxField3 := uint64(0)
	for _, number := range numbers {
		entry := fw.entries[number]
		var f2, f3 uint64
		switch {
		case entry.Free:
			f2, f3 = uint64(next[number]), uint64(entry.Generation)
		case entry.Stream != 0:
			f2, f3 = uint64(entry.Stream), uint64(entry.Pos)
		default:
			f2, f3 = uint64(entry.Pos), uint64(entry.Generation)
		}
		maxField2 = max(maxField2, f2)
		maxField3 = max(maxField3, f3)
	}
	w2 := max((bits.Len64(maxField2)+7)/8, 1)
	w3 := (bits.Len64(maxField3) + 7) / 8

	data := &bytes.Buffer{}
	var index Array
	for start := 0; start < len(numbers); {
		end := start + 1
		for end < len(numbers) && numbers[end] == numbers[end-1]+1 {
			end++
		}
		index = append(index, Integer(numbers[start]), Integer(end-start))
		for _, number := range numbers[start:end] {
			entry := fw.entries[number]
			switch {
			case entry.Free:
				data.WriteByte(0)
				encodeInt(data, uint64(next[number]), w2)
				encodeInt(data, uint64(entry.Generation), w3)
			case entry.Stream != 0:
				data.WriteByte(2)
				encodeInt(data, uint64(entry.Stream), w2)
				encodeInt(data, uint64(entry.Pos), w3)
			default:
				data.WriteByte(1)
				encodeInt(data, uint64(entry.Pos), w2)
				encodeInt(data, uint64(entry.Generation), w3)
			}
		}
		start = end
	}

	dict := cloneDict(trailer)
	dict["Type"] = Name("XRef")
	dict["W"] = Array{Integer(1), Integer(w2), Integer(w3)}
	if len(index) != 2 || index[0] != Integer(0) {
		dict["Index"] = index
	}
	filter := FilterFlate{
		"Predictor": Integer(12),
		"Columns":   Integer(1 + w2 + w3),
	}
	stm, err := EncodeStream(dict, data.Bytes(), filter)
	if err != nil {
		return err
	}

	// the entry for the stream itself has been recorded above
	delete(fw.entries, ref.Number())
	return fw.writeIndirect(ref, stm)
}

func (fw *fileWriter) writeTail(xRefPos int64) error {
	_, err := fmt.Fprintf(fw.w, "startxref\n%d\n%%%%EOF\n", xRefPos)
	return err
}

func encodeInt(data *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		data.WriteByte(byte(x >> (i * 8)))
	}
}
