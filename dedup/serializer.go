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

// Package dedup computes canonical encodings of PDF objects, for detecting
// duplicate objects when a document is written.
//
// The canonical form of an object covers everything reachable from the
// object.  References are resolved, dictionary keys are sorted, and the
// payload of streams is represented by its SHA-256 digest.  Two objects
// have the same canonical form if and only if they are structurally
// equal, ignoring the links from a node to its parent.
//
// Object graphs in PDF files may contain cycles.  Encoding is guaranteed to
// terminate: /P and /Parent entries which point to dictionaries are not
// followed, the nesting depth is bounded, and a reference which is already
// being encoded is written as a back-reference.
package dedup

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math"

	"seehuhn.de/go/pdfcore"
)

// DefaultDepth is the default limit for the nesting depth of containers.
const DefaultDepth = 100

// Options controls the canonical encoding.
type Options struct {
	// Depth limits the nesting depth of dictionaries, arrays and streams.
	// Beyond this depth, containers are represented by their tag only.
	// If this is zero or negative, [DefaultDepth] is used.
	Depth int
}

// Form is the canonical encoding of an object.
type Form struct {
	Data []byte
	Sum  [32]byte // SHA-256 of Data
}

// Equal reports whether two forms are identical.
func (f Form) Equal(other Form) bool {
	return f.Sum == other.Sum && bytes.Equal(f.Data, other.Data)
}

// Tags of the canonical encoding.
const (
	tagNull       = 'n'
	tagBool       = 'b'
	tagInteger    = 'i'
	tagReal       = 'f'
	tagString     = 's'
	tagName       = '/'
	tagLiteral    = 'l'
	tagArray      = '['
	tagArrayEnd   = ']'
	tagDict       = '<'
	tagDictEnd    = '>'
	tagKey        = 'k'
	tagStream     = 'S'
	tagDigest     = 'h'
	tagBackRef    = '^'
	tagUnresolved = '?'
	tagReadError  = '!'
	tagUnknown    = 'x'
)

// Serializer computes canonical forms of the objects of one document.
//
// The serializer caches the encoding of indirect objects, so that shared
// objects are only encoded once.  The cache assumes that the document is not
// modified while the serializer is in use.
//
// A Serializer is not safe for concurrent use.
type Serializer struct {
	r        pdf.Getter
	maxDepth int

	cache map[pdf.Reference][]byte
	stack []pdf.Reference
	buf   *bytes.Buffer
}

// NewSerializer returns a new serializer for objects from r.
func NewSerializer(r pdf.Getter, opt *Options) *Serializer {
	depth := DefaultDepth
	if opt != nil && opt.Depth > 0 {
		depth = opt.Depth
	}
	return &Serializer{
		r:        r,
		maxDepth: depth,
		cache:    make(map[pdf.Reference][]byte),
		buf:      &bytes.Buffer{},
	}
}

// CacheSize returns the number of indirect objects with a cached encoding.
func (s *Serializer) CacheSize() int {
	return len(s.cache)
}

// Canonicalize returns the canonical form of obj.  If depth is zero or
// negative, the depth limit of the serializer is used.
//
// This function never fails.  Objects which cannot be read are
// represented by a marker which includes the object identifier.
func (s *Serializer) Canonicalize(obj pdf.Object, depth int) Form {
	if depth <= 0 {
		depth = s.maxDepth
	}
	s.buf.Reset()
	s.stack = s.stack[:0]
	s.encode(obj, depth)

	data := bytes.Clone(s.buf.Bytes())
	return Form{
		Data: data,
		Sum:  sha256.Sum256(data),
	}
}

// result describes the context-dependence of an encoding.
type result struct {
	// truncated is set if the depth limit was reached.
	truncated bool

	// minBack is the smallest stack index referenced by a back-reference,
	// or math.MaxInt if there were no back-references.
	minBack int
}

func (r result) merge(other result) result {
	return result{
		truncated: r.truncated || other.truncated,
		minBack:   min(r.minBack, other.minBack),
	}
}

var clean = result{minBack: math.MaxInt}

func (s *Serializer) encode(obj pdf.Object, depth int) result {
	switch x := obj.(type) {
	case nil:
		s.buf.WriteByte(tagNull)
	case pdf.Bool:
		s.buf.WriteByte(tagBool)
		if x {
			s.buf.WriteByte(1)
		} else {
			s.buf.WriteByte(0)
		}
	case pdf.Integer:
		s.buf.WriteByte(tagInteger)
		s.writeUint(uint64(x))
	case pdf.Real:
		s.buf.WriteByte(tagReal)
		s.writeUint(math.Float64bits(float64(x)))
	case pdf.String:
		s.buf.WriteByte(tagString)
		s.writeBytes(x)
	case pdf.Name:
		s.buf.WriteByte(tagName)
		s.writeBytes([]byte(x))
	case pdf.Literal:
		s.buf.WriteByte(tagLiteral)
		s.writeBytes(x)
	case pdf.Array:
		s.buf.WriteByte(tagArray)
		if depth <= 0 {
			return result{truncated: true, minBack: math.MaxInt}
		}
		res := clean
		for _, elem := range x {
			res = res.merge(s.encode(elem, depth-1))
		}
		s.buf.WriteByte(tagArrayEnd)
		return res
	case pdf.Dict:
		s.buf.WriteByte(tagDict)
		if depth <= 0 {
			return result{truncated: true, minBack: math.MaxInt}
		}
		res := s.encodeDictBody(x, depth)
		s.buf.WriteByte(tagDictEnd)
		return res
	case *pdf.Stream:
		s.buf.WriteByte(tagStream)
		if depth <= 0 {
			return result{truncated: true, minBack: math.MaxInt}
		}
		res := s.encodeDictBody(x.Dict, depth)
		s.buf.WriteByte(tagDictEnd)
		sum, ok := s.streamDigest(x)
		if !ok {
			s.buf.WriteByte(tagReadError)
			return res
		}
		s.buf.WriteByte(tagDigest)
		s.buf.Write(sum[:])
		return res
	case pdf.Reference:
		return s.encodeReference(x, depth)
	default:
		s.buf.WriteByte(tagUnknown)
	}
	return clean
}

// isParentLink reports whether the entry key/val links a node to its
// parent.  Such entries are excluded from the encoding.
func isParentLink(key pdf.Name, val pdf.Object) bool {
	if key != "P" && key != "Parent" {
		return false
	}
	switch val.(type) {
	case pdf.Reference, pdf.Dict:
		return true
	default:
		return false
	}
}

func (s *Serializer) encodeDictBody(dict pdf.Dict, depth int) result {
	res := clean
	for _, key := range dict.SortedKeys() {
		val := dict[key]
		if val == nil || isParentLink(key, val) {
			continue
		}
		s.buf.WriteByte(tagKey)
		s.writeBytes([]byte(key))
		res = res.merge(s.encode(val, depth-1))
	}
	return res
}

func (s *Serializer) encodeReference(ref pdf.Reference, depth int) result {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == ref {
			s.buf.WriteByte(tagBackRef)
			s.writeUint(uint64(len(s.stack) - i))
			return result{minBack: i}
		}
	}

	if data, ok := s.cache[ref]; ok {
		s.buf.Write(data)
		return clean
	}

	obj, err := s.r.Get(ref)
	if err != nil {
		pdf.Logger().Debug("dedup: unresolved reference",
			"ref", ref, "err", err)
		s.buf.WriteByte(tagUnresolved)
		s.writeUint(uint64(ref))
		return clean
	}

	level := len(s.stack)
	s.stack = append(s.stack, ref)
	start := s.buf.Len()
	res := s.encode(obj, depth)
	s.stack = s.stack[:level]

	// Only encodings without back-references are cached.  Inside a cycle,
	// the encoding depends on the object where the cycle was entered.
	if !res.truncated && res.minBack == math.MaxInt {
		s.cache[ref] = bytes.Clone(s.buf.Bytes()[start:])
	}
	if res.minBack >= level {
		res.minBack = math.MaxInt
	}
	return res
}

// streamDigest returns the SHA-256 digest of the raw stream data.
// If the stream data cannot be re-read, it is replaced by an in-memory
// copy.
func (s *Serializer) streamDigest(stm *pdf.Stream) ([32]byte, bool) {
	h := sha256.New()
	if stm.R == nil {
		return [32]byte(h.Sum(nil)), true
	}

	if seeker, ok := stm.R.(io.Seeker); ok {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err == nil {
			_, err = io.Copy(h, stm.R)
			_, seekErr := seeker.Seek(pos, io.SeekStart)
			if err == nil && seekErr == nil {
				return [32]byte(h.Sum(nil)), true
			}
			return [32]byte{}, false
		}
	}

	data, err := io.ReadAll(stm.R)
	stm.R = bytes.NewReader(data)
	if err != nil {
		return [32]byte{}, false
	}
	h.Write(data)
	return [32]byte(h.Sum(nil)), true
}

func (s *Serializer) writeUint(x uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], x)
	s.buf.Write(buf[:])
}

func (s *Serializer) writeBytes(data []byte) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(data)))
	s.buf.Write(buf[:n])
	s.buf.Write(data)
}
