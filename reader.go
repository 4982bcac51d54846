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
	"os"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/pdfcore/limitbuf"
)

// ReaderOptions controls how a PDF file is read.
type ReaderOptions struct {
	// MaxStreamSize is the maximum size of decoded stream data, in bytes.
	// If this is zero or negative, [limitbuf.DefaultLimit] is used.
	MaxStreamSize int
}

func (opt *ReaderOptions) maxStreamSize() int {
	if opt == nil || opt.MaxStreamSize <= 0 {
		return limitbuf.DefaultLimit
	}
	return opt.MaxStreamSize
}

// Reader represents a PDF file opened for reading.  Use [Open] or
// [NewReader] to create a new Reader.
//
// The Reader resolves references using the merged cross-reference
// information of all revisions of the file: for every object number, the
// entry from the newest section wins.
type Reader struct {
	// Version is the PDF version used in this file.  This is specified in
	// the header at the start of the file, and may be overridden by the
	// /Version entry in the document catalog.
	Version Version

	// ID is the file identifier.  This is either a slice of two byte slices
	// (the original ID of the file, and the ID of the current version), or
	// nil if the file does not specify an ID.
	ID [][]byte

	// Trailer holds the entries of the newest trailer dictionary.  Entries
	// which only describe the cross-reference section are omitted.
	Trailer Dict

	// XRefPos is the byte offset of the newest cross-reference section.
	XRefPos int64

	size int64
	r    io.ReaderAt
	opt  ReaderOptions

	xref  map[uint32]*XRefEntry
	level int

	// recently used object streams, by object number
	streams *lruCache[uint32, *objStm]
}

// objStmCacheSize is the number of decoded object streams kept in memory
// by a Reader.
const objStmCacheSize = 8

// Open opens the named PDF file for reading.  After use, [Reader.Close]
// must be called to close the file.
func Open(fname string, opt *ReaderOptions) (*Reader, error) {
	fd, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}
	r, err := NewReader(fd, fi.Size(), opt)
	if err != nil {
		fd.Close()
		return nil, err
	}
	return r, nil
}

// NewReader creates a new Reader which reads a PDF file of the given size
// from data.
func NewReader(data io.ReaderAt, size int64, opt *ReaderOptions) (*Reader, error) {
	r := &Reader{
		size:    size,
		r:       data,
		streams: newCache[uint32, *objStm](objStmCacheSize),
	}
	if opt != nil {
		r.opt = *opt
	}

	s := newScanner(data, size, 0, nil)
	version, err := s.readHeaderVersion()
	if err != nil {
		return nil, err
	}
	r.Version = version

	err = r.readXRef()
	if err != nil {
		return nil, err
	}

	if _, isEncrypted := r.Trailer["Encrypt"]; isEncrypted {
		return nil, &MalformedFileError{Err: errors.New("encrypted files are not supported")}
	}

	if ID, ok := r.Trailer["ID"].(Array); ok && len(ID) >= 2 {
		for i := 0; i < 2; i++ {
			s, ok := ID[i].(String)
			if !ok {
				break
			}
			r.ID = append(r.ID, []byte(s))
		}
		if len(r.ID) != 2 {
			r.ID = nil
		}
	}

	catalog, err := GetDict(r, r.Trailer["Root"])
	if err != nil {
		return nil, Wrap(err, "document catalog")
	}
	if catalog == nil {
		return nil, &MalformedFileError{Err: errors.New("document catalog not found")}
	}
	if name, ok := catalog["Version"].(Name); ok {
		if v, err := ParseVersion(string(name)); err == nil && v > r.Version {
			r.Version = v
		}
	}

	return r, nil
}

// Size returns the size of the underlying file, in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// Close closes the file underlying the reader.  This call only has an effect
// if the io.ReaderAt passed to NewReader has a Close method, or if the
// Reader was created using Open.  Otherwise, Close has no effect and
// returns nil.
func (r *Reader) Close() error {
	closer, ok := r.r.(io.Closer)
	if ok {
		return closer.Close()
	}
	return nil
}

// trailerOnlyKeys lists trailer entries which describe a single
// cross-reference section, rather than the document.
var trailerOnlyKeys = []Name{
	"Prev", "XRefStm", "Type", "W", "Index", "Filter", "DecodeParms", "Length",
}

func (r *Reader) readXRef() error {
	start, err := FindStartXRef(r.r, r.size)
	if err != nil {
		return err
	}
	r.XRefPos = start
	r.xref = make(map[uint32]*XRefEntry)

	seen := make(map[int64]bool)
	for start != 0 {
		if seen[start] {
			return &MalformedFileError{
				Err: errors.New("loop in /Prev chain"),
				Loc: []string{atByte(start)},
			}
		}
		seen[start] = true

		sec, err := ReadXRefSection(r.r, r.size, start, r.opt.maxStreamSize())
		if err != nil {
			return err
		}
		for number, entry := range sec.Entries {
			if _, exists := r.xref[number]; !exists {
				r.xref[number] = entry
			}
		}
		if r.Trailer == nil {
			r.Trailer = cloneDict(sec.Trailer)
			for _, key := range trailerOnlyKeys {
				delete(r.Trailer, key)
			}
		}
		start = sec.Prev
	}
	return nil
}

// Declare registers all objects of the file with the table t.  The objects
// are not read; this happens on first access, via [Reader.Load].
func (r *Reader) Declare(t *Table) {
	for number, entry := range r.xref {
		ref := NewReference(number, entry.Generation)
		t.Declare(ref, entry.Location(), entry.Free)
	}
}

// Get implements the [Getter] interface.  References to objects which are
// missing from the file, or which have been deleted, resolve to null.
func (r *Reader) Get(ref Reference) (Object, error) {
	entry := r.xref[ref.Number()]
	if entry == nil || entry.Free {
		return nil, nil
	}
	if entry.Stream == 0 && entry.Generation != ref.Generation() {
		return nil, nil
	}
	return r.Load(ref, entry.Location())
}

// Load implements the [Loader] interface.
func (r *Reader) Load(ref Reference, loc Location) (Object, error) {
	if loc.Stream != 0 {
		if ref.Generation() != 0 {
			return nil, nil
		}
		obj, err := r.getFromObjectStream(ref.Number(), loc)
		return obj, Wrap(err, "object "+ref.String())
	}

	s := newScanner(r.r, r.size, loc.Pos, r.safeGetInt)
	fileRef, obj, err := s.ReadIndirectObject()
	if err != nil {
		return nil, Wrap(err, "object "+ref.String())
	}
	if fileRef != ref {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("xref corrupted: found %s instead of %s", fileRef, ref),
			Loc: []string{atByte(loc.Pos)},
		}
	}
	return obj, nil
}

// objStm holds the decoded contents of an object stream.
type objStm struct {
	data []byte
	span map[uint32][2]int // start and end of each object in data
}

func (r *Reader) getFromObjectStream(number uint32, loc Location) (Object, error) {
	stm, ok := r.streams.Get(loc.Stream)
	if !ok {
		var err error
		stm, err = r.readObjectStream(loc.Stream)
		if err != nil {
			return nil, err
		}
		r.streams.Put(loc.Stream, stm)
	}

	span, ok := stm.span[number]
	if !ok {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object %d missing from object stream %d", number, loc.Stream),
		}
	}
	s := newStreamScanner(bytes.NewReader(stm.data[span[0]:span[1]]))
	return s.ReadObject()
}

func (r *Reader) readObjectStream(number uint32) (*objStm, error) {
	entry := r.xref[number]
	if entry == nil || entry.Free || entry.Stream != 0 {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object stream %d not found", number),
		}
	}
	obj, err := r.Load(NewReference(number, entry.Generation), entry.Location())
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object %d is not an object stream", number),
		}
	}

	N, ok := stream.Dict["N"].(Integer)
	if !ok || N < 0 || N > 1_000_000 {
		return nil, &MalformedFileError{Err: errors.New("no valid /N for object stream")}
	}
	first, ok := stream.Dict["First"].(Integer)
	if !ok || first < 0 {
		return nil, &MalformedFileError{Err: errors.New("no valid /First for object stream")}
	}

	data, err := DecodeStream(r, stream, r.opt.maxStreamSize())
	if err != nil {
		return nil, err
	}
	if int64(first) > int64(len(data)) {
		return nil, &MalformedFileError{Err: errors.New("no valid /First for object stream")}
	}

	contents := &objStm{
		data: data,
		span: make(map[uint32][2]int, N),
	}
	starts := make(map[uint32]int, N)
	var ends []int
	s := newStreamScanner(bytes.NewReader(data[:first]))
	for i := 0; i < int(N); i++ {
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		no, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		offs, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		pos := int64(first) + int64(offs)
		if no < 0 || no > 0xFFFFFFFF || offs < 0 || pos > int64(len(data)) {
			return nil, &MalformedFileError{Err: errors.New("invalid object stream index")}
		}
		starts[uint32(no)] = int(pos)
		ends = append(ends, int(pos))
	}

	// An object ends where the next object starts.
	ends = append(ends, len(data))
	slices.Sort(ends)
	for no, start := range starts {
		end := len(data)
		if i, _ := slices.BinarySearch(ends, start+1); i < len(ends) {
			end = ends[i]
		}
		contents.span[no] = [2]int{start, end}
	}
	return contents, nil
}

// safeGetInt resolves the /Length of a stream.  The nesting level is
// limited, since resolving the length may require reading another stream.
func (r *Reader) safeGetInt(obj Object) (Integer, error) {
	if x, ok := obj.(Integer); ok {
		return x, nil
	}
	if r.level > 2 {
		return 0, &MalformedFileError{
			Err: errors.New("too many nested stream lengths"),
		}
	}
	r.level++
	val, err := GetInt(r, obj)
	r.level--
	return val, err
}
