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
	"strconv"
)

// XRefEntry is one entry of a cross-reference section.
type XRefEntry struct {
	// Generation is the generation number of the object.  For free
	// entries, this is the generation number to be used when the object
	// number is reused.
	Generation uint16

	// Free is true for entries which describe deleted objects.
	Free bool

	// Pos is the byte offset of the object in the file.  For objects
	// stored in an object stream, this is the index within the stream.
	Pos int64

	// Stream is the object number of the object stream containing the
	// object, or 0 if the object is not compressed.
	Stream uint32
}

// Location returns the storage location described by the entry.
func (e *XRefEntry) Location() Location {
	if e.Stream != 0 {
		return Location{Stream: e.Stream, Index: int(e.Pos)}
	}
	return Location{Pos: e.Pos}
}

// XRefSection is a single cross-reference section of a PDF file, together
// with its trailer dictionary.
type XRefSection struct {
	// Pos is the byte offset of the section in the file.
	Pos int64

	// Entries lists the objects declared in this section.  If the section
	// has a /XRefStm entry, the entries from the referenced stream are
	// included.
	Entries map[uint32]*XRefEntry

	// Trailer is the trailer dictionary.  For cross-reference streams,
	// this is the stream dictionary.
	Trailer Dict

	// Prev is the byte offset of the previous section, or 0 if this is
	// the oldest section.
	Prev int64

	// End is the byte offset just after the section.
	End int64

	// IsStream is true for cross-reference streams.
	IsStream bool
}

// FindStartXRef returns the byte offset given after the last "startxref"
// keyword in the file.
func FindStartXRef(r io.ReaderAt, size int64) (int64, error) {
	pos, err := lastOccurrence(r, size, "startxref")
	if err != nil {
		return 0, err
	}

	s := newScanner(r, size, pos+9, nil)
	err = s.SkipWhiteSpace()
	if err != nil {
		return 0, err
	}
	xRefPos, err := s.ReadInteger()
	if err != nil {
		return 0, Wrap(err, "startxref")
	}
	if xRefPos <= 0 || int64(xRefPos) >= size {
		return 0, &MalformedFileError{
			Err: fmt.Errorf("invalid xref position %d", xRefPos),
			Loc: []string{atByte(pos)},
		}
	}
	return int64(xRefPos), nil
}

// FindEOF returns the byte offset of the first "%%EOF" marker at or after
// position from.
func FindEOF(r io.ReaderAt, size, from int64) (int64, error) {
	if from < 0 || from >= size {
		return 0, &MalformedFileError{
			Err: errors.New("%%EOF not found"),
			Loc: []string{atByte(from)},
		}
	}
	s := newScanner(r, size, from, nil)
	err := s.SkipAfter("%%EOF")
	if err == io.EOF {
		return 0, &MalformedFileError{
			Err: errors.New("%%EOF not found"),
			Loc: []string{atByte(from)},
		}
	} else if err != nil {
		return 0, err
	}
	return s.filePos() - 5, nil
}

func lastOccurrence(r io.ReaderAt, size int64, pat string) (int64, error) {
	const chunkSize = 1024

	buf := make([]byte, chunkSize)
	k := int64(len(pat))
	pos := size
	for pos >= k {
		start := max(pos-chunkSize, 0)
		n, err := r.ReadAt(buf[:pos-start], start)
		if err != nil && err != io.EOF {
			return 0, err
		}

		idx := bytes.LastIndex(buf[:n], []byte(pat))
		if idx >= 0 {
			return start + int64(idx), nil
		}
		if start == 0 {
			break
		}
		pos = start + k - 1
	}
	return 0, &MalformedFileError{
		Err: errors.New(pat + " not found"),
	}
}

// ReadXRefSection reads the cross-reference section starting at byte offset
// pos.  Both xref tables and xref streams are supported.  For hybrid files,
// the entries from the stream referenced by /XRefStm are merged into the
// section.  Stream data is decoded into buffers of at most maxStreamSize
// bytes.
func ReadXRefSection(r io.ReaderAt, size, pos int64, maxStreamSize int) (*XRefSection, error) {
	if pos <= 0 || pos >= size {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("xref position %d out of range", pos),
		}
	}

	s := newScanner(r, size, pos, nil)
	buf, err := s.Peek(4)
	if err != nil {
		return nil, err
	}

	sec := &XRefSection{
		Pos:     pos,
		Entries: make(map[uint32]*XRefEntry),
	}
	if bytes.Equal(buf, []byte("xref")) {
		sec.Trailer, err = readXRefTable(sec.Entries, s)
		if err != nil {
			return nil, Wrap(err, "xref table at "+atByte(pos))
		}
		sec.End = s.filePos()

		if xRefStm, ok := sec.Trailer["XRefStm"]; ok {
			zStart, ok := xRefStm.(Integer)
			if !ok || zStart <= 0 || int64(zStart) >= size {
				return nil, &MalformedFileError{
					Err: fmt.Errorf("invalid /XRefStm %s", Format(xRefStm)),
					Loc: []string{atByte(pos)},
				}
			}
			extra := make(map[uint32]*XRefEntry)
			s = newScanner(r, size, int64(zStart), nil)
			_, err = readXRefStream(extra, s, maxStreamSize)
			if err != nil {
				return nil, Wrap(err, "xref stream at "+atByte(int64(zStart)))
			}
			for number, entry := range extra {
				if old := sec.Entries[number]; old == nil || old.Free {
					sec.Entries[number] = entry
				}
			}
		}
	} else {
		sec.IsStream = true
		sec.Trailer, err = readXRefStream(sec.Entries, s, maxStreamSize)
		if err != nil {
			return nil, Wrap(err, "xref stream at "+atByte(pos))
		}
		sec.End = s.filePos()
	}

	if prev, ok := sec.Trailer["Prev"]; ok {
		prevPos, ok := prev.(Integer)
		if !ok || prevPos <= 0 || int64(prevPos) >= size {
			return nil, &MalformedFileError{
				Err: fmt.Errorf("invalid /Prev value %s", Format(prev)),
				Loc: []string{atByte(pos)},
			}
		}
		sec.Prev = int64(prevPos)
	}

	return sec, nil
}

func readXRefTable(xref map[uint32]*XRefEntry, s *scanner) (Dict, error) {
	err := s.SkipString("xref")
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}

	for {
		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 || buf[0] < '0' || buf[0] > '9' {
			break
		}

		start, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		length, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		if start < 0 || length < 0 || start+length > 0xFFFFFFFF {
			return nil, s.errorf("invalid xref subsection %d %d", start, length)
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		err = decodeXRefSubsection(xref, s, uint32(start), uint32(start+length))
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
	}

	err = s.SkipString("trailer")
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	return s.ReadDict()
}

func decodeXRefSubsection(xref map[uint32]*XRefEntry, s *scanner, start, end uint32) error {
	for i := start; i < end; i++ {
		buf, err := s.Peek(20)
		if err != nil {
			return err
		}
		if len(buf) < 18 {
			return &MalformedFileError{
				Err: io.ErrUnexpectedEOF,
				Loc: []string{atByte(s.filePos())},
			}
		}

		a, err := strconv.ParseInt(string(buf[:10]), 10, 64)
		if err != nil {
			return s.errorf("malformed xref entry %q", buf)
		}
		b, err := strconv.ParseUint(string(buf[11:16]), 10, 16)
		if err != nil {
			// fix a common error in some PDF files
			if bytes.HasPrefix(buf, []byte("0000000000 65536 ")) {
				Logger().Debug("xref repair", "entry", i, "generation", 65536)
				b = 65535
			} else {
				return s.errorf("malformed xref entry %q", buf)
			}
		}

		entry := &XRefEntry{Generation: uint16(b)}
		switch buf[17] {
		case 'f':
			entry.Free = true
		case 'n':
			entry.Pos = a
		default:
			return s.errorf("malformed xref entry %q", buf)
		}
		if _, seen := xref[i]; !seen {
			xref[i] = entry
		}

		// Entries are 20 bytes long, but some writers use a single
		// end-of-line byte.
		s.pos += 18
		err = s.SkipWhiteSpace()
		if err != nil {
			return err
		}
	}
	return nil
}

func readXRefStream(xref map[uint32]*XRefEntry, s *scanner, maxStreamSize int) (Dict, error) {
	_, obj, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, s.errorf("invalid xref stream")
	}
	dict := stream.Dict

	w, ss, err := checkXRefStreamDict(dict)
	if err != nil {
		return nil, err
	}
	data, err := DecodeStream(nil, stream, maxStreamSize)
	if err != nil {
		return nil, err
	}
	err = decodeXRefStream(xref, data, w, ss)
	if err != nil {
		return nil, err
	}

	return dict, nil
}

type xRefSubsection struct {
	Start, Size uint32
}

func checkXRefStreamDict(dict Dict) ([]int, []xRefSubsection, error) {
	size, ok := dict["Size"].(Integer)
	if !ok || size < 0 || size > 0xFFFFFFFF {
		return nil, nil, &MalformedFileError{Err: errors.New("invalid /Size in xref stream")}
	}
	W, ok := dict["W"].(Array)
	if !ok || len(W) < 3 {
		return nil, nil, &MalformedFileError{Err: errors.New("invalid /W in xref stream")}
	}
	var w []int
	for _, Wi := range W {
		wi, ok := Wi.(Integer)
		if !ok || wi < 0 || wi > 8 {
			return nil, nil, &MalformedFileError{Err: errors.New("invalid /W in xref stream")}
		}
		w = append(w, int(wi))
	}

	var ss []xRefSubsection
	switch index := dict["Index"].(type) {
	case nil:
		ss = append(ss, xRefSubsection{0, uint32(size)})
	case Array:
		if len(index)%2 != 0 {
			return nil, nil, &MalformedFileError{Err: errors.New("invalid /Index in xref stream")}
		}
		for i := 0; i < len(index); i += 2 {
			start, ok1 := index[i].(Integer)
			n, ok2 := index[i+1].(Integer)
			if !ok1 || !ok2 || start < 0 || n < 0 || start+n > 0xFFFFFFFF {
				return nil, nil, &MalformedFileError{Err: errors.New("invalid /Index in xref stream")}
			}
			ss = append(ss, xRefSubsection{uint32(start), uint32(n)})
		}
	default:
		return nil, nil, &MalformedFileError{Err: errors.New("invalid /Index in xref stream")}
	}
	return w, ss, nil
}

func decodeXRefStream(xref map[uint32]*XRefEntry, data []byte, w []int, ss []xRefSubsection) error {
	wTotal := 0
	for _, wi := range w {
		wTotal += wi
	}
	if wTotal == 0 {
		return &MalformedFileError{Err: errors.New("empty xref stream rows")}
	}

	w0, w1, w2 := w[0], w[1], w[2]
	for _, sec := range ss {
		for i := sec.Start; i < sec.Start+sec.Size; i++ {
			if len(data) < wTotal {
				return &MalformedFileError{Err: errors.New("xref stream too short")}
			}
			row := data[:wTotal]
			data = data[wTotal:]

			if _, seen := xref[i]; seen {
				continue
			}

			tp := decodeInt(row[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeInt(row[w0 : w0+w1])
			b := decodeInt(row[w0+w1 : w0+w1+w2])
			switch tp {
			case 0:
				// free object: a = next free object, b = next generation
				xref[i] = &XRefEntry{Free: true, Generation: uint16(b)}
			case 1:
				// used object: a = byte offset, b = generation
				xref[i] = &XRefEntry{Pos: a, Generation: uint16(b)}
			case 2:
				// compressed object: a = object stream number, b = index
				xref[i] = &XRefEntry{Pos: b, Stream: uint32(a)}
			default:
				// Unknown entry types refer to the null object.
			}
		}
	}
	return nil
}

func decodeInt(buf []byte) (res int64) {
	for _, x := range buf {
		res = res<<8 | int64(x)
	}
	return res
}
