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
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Object represents an object in a PDF file.  The PDF object kinds are
// represented by the types [Bool], [Integer], [Real], [String], [Name],
// [Literal], [Array], [Dict], [*Stream] and [Reference].  The PDF null
// object is represented by nil.
type Object interface {
	// PDF writes the PDF file representation of the object to w.
	PDF(w io.Writer) error
}

// Bool is a boolean object.
type Bool bool

func (x Bool) PDF(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatBool(bool(x)))
	return err
}

// Integer is an integer object.
type Integer int64

func (x Integer) PDF(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatInt(int64(x), 10))
	return err
}

// Real is a real number object.
type Real float64

// PDF always includes a decimal point, so that the value is read back as
// a Real.
func (x Real) PDF(w io.Writer) error {
	s := strconv.FormatFloat(float64(x), 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += "."
	}
	_, err := io.WriteString(w, s)
	return err
}

// String is a string object.  The bytes are stored without interpretation;
// which encoding applies depends on where the string is used.
type String []byte

// PDF implements the [Object] interface.
//
// Strings are written in literal form "(...)", unless more than a third of
// the bytes would need escaping.  In this case the hexadecimal form
// "<...>" is used.
func (x String) PDF(w io.Writer) error {
	balanced := parensBalanced(x)
	escapes := 0
	for _, c := range x {
		if needsEscape(c, balanced) {
			escapes++
		}
	}

	var buf []byte
	if 3*escapes > len(x) {
		buf = fmt.Appendf(buf, "<%x>", []byte(x))
	} else {
		buf = make([]byte, 0, len(x)+3*escapes+2)
		buf = append(buf, '(')
		for _, c := range x {
			switch {
			case !needsEscape(c, balanced):
				buf = append(buf, c)
			case literalEscapes[c] != 0:
				buf = append(buf, '\\', literalEscapes[c])
			default:
				buf = fmt.Appendf(buf, `\%03o`, c)
			}
		}
		buf = append(buf, ')')
	}

	_, err := w.Write(buf)
	return err
}

// literalEscapes lists the bytes which have a short escape sequence
// inside literal strings.
var literalEscapes = [256]byte{
	'\b': 'b',
	'\f': 'f',
	'\r': 'r',
	'(':  '(',
	')':  ')',
	'\\': '\\',
}

func needsEscape(c byte, balanced bool) bool {
	switch c {
	case '\n', '\t':
		return false
	case '\r', '\\':
		return true
	case '(', ')':
		return !balanced
	}
	return c < 32 || c >= 127
}

// parensBalanced reports whether the parentheses in s are properly
// nested.  Balanced parentheses need not be escaped.
func parensBalanced(s []byte) bool {
	level := 0
	for _, c := range s {
		switch c {
		case '(':
			level++
		case ')':
			if level == 0 {
				return false
			}
			level--
		}
	}
	return level == 0
}

// AsTextString interprets x as a PDF "text string" and returns the
// corresponding utf-8 encoded string.  Strings starting with a UTF-16BE byte
// order mark are decoded as UTF-16, all other strings are treated as
// Latin-1, which agrees with PDFDocEncoding for all printable characters.
func (x String) AsTextString() string {
	var res []byte
	var err error
	if len(x) >= 2 && x[0] == 0xFE && x[1] == 0xFF {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		res, err = dec.Bytes(x)
	} else {
		res, err = charmap.ISO8859_1.NewDecoder().Bytes(x)
	}
	if err != nil {
		return string(x)
	}
	return string(res)
}

// TextString encodes s as a text string.  Latin-1 is used where possible,
// and UTF-16BE with a byte order mark otherwise.
func TextString(s string) String {
	buf, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err == nil {
		return String(buf)
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	buf, err = enc.Bytes([]byte(s))
	if err != nil {
		return String(s)
	}
	return String(buf)
}

// Name is a name object, stored without the leading slash.
type Name string

// PDF implements the [Object] interface.
//
// Bytes outside the printable ASCII range, delimiters and "#" are written
// as "#xx" escapes.
func (x Name) PDF(w io.Writer) error {
	buf := make([]byte, 1, len(x)+1)
	buf[0] = '/'
	for i := 0; i < len(x); i++ {
		c := x[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter[c] {
			buf = fmt.Appendf(buf, "#%02x", c)
		} else {
			buf = append(buf, c)
		}
	}
	_, err := w.Write(buf)
	return err
}

// Literal is a pre-serialised piece of PDF syntax.  The bytes are written to
// the output unchanged.
type Literal []byte

// PDF implements the [Object] interface.
func (x Literal) PDF(w io.Writer) error {
	_, err := w.Write(x)
	return err
}

// Array is an ordered sequence of objects.
type Array []Object

func (x Array) String() string {
	return fmt.Sprintf("<Array, %d elements>", len(x))
}

// PDF implements the [Object] interface.
func (x Array) PDF(w io.Writer) error {
	_, err := io.WriteString(w, "[")
	if err != nil {
		return err
	}
	for i, val := range x {
		if i > 0 {
			_, err = io.WriteString(w, " ")
			if err != nil {
				return err
			}
		}
		err = writeObject(w, val)
		if err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "]")
	return err
}

// Dict is a dictionary object.  Entries with value null are treated as
// absent.
type Dict map[Name]Object

func (x Dict) String() string {
	if tp, ok := x["Type"].(Name); ok {
		return fmt.Sprintf("<%s Dict, %d entries>", tp, len(x))
	}
	return fmt.Sprintf("<Dict, %d entries>", len(x))
}

// SortedKeys returns the keys of the dictionary in lexicographic order.
func (x Dict) SortedKeys() []Name {
	keys := maps.Keys(x)
	slices.Sort(keys)
	return keys
}

// PDF implements the [Object] interface.
//
// Keys are written in sorted order, one entry per line.  Entries with
// value null are omitted.
func (x Dict) PDF(w io.Writer) error {
	if x == nil {
		_, err := io.WriteString(w, "null")
		return err
	}

	_, err := io.WriteString(w, "<<")
	if err != nil {
		return err
	}
	for _, key := range x.SortedKeys() {
		val := x[key]
		if val == nil {
			continue
		}
		_, err = io.WriteString(w, "\n")
		if err != nil {
			return err
		}
		err = key.PDF(w)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, " ")
		if err != nil {
			return err
		}
		err = val.PDF(w)
		if err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "\n>>")
	return err
}

// writeObject writes obj to w, using "null" for nil.
func writeObject(w io.Writer, obj Object) error {
	if obj == nil {
		_, err := io.WriteString(w, "null")
		return err
	}
	return obj.PDF(w)
}

// Stream is a stream object: a dictionary together with a byte sequence.
type Stream struct {
	Dict
	R io.Reader
}

func (x *Stream) String() string {
	res := []string{}
	tp, ok := x.Dict["Type"].(Name)
	if ok {
		res = append(res, string(tp)+" Stream")
	} else {
		res = append(res, "Stream")
	}
	length, ok := x.Dict["Length"].(Integer)
	if ok {
		res = append(res, strconv.FormatInt(int64(length), 10)+" bytes")
	}
	switch filter := x.Dict["Filter"].(type) {
	case Name:
		res = append(res, string(filter))
	case Array:
		for _, f := range filter {
			if name, ok := f.(Name); ok {
				res = append(res, string(name))
			}
		}
	}
	return "<" + strings.Join(res, ", ") + ">"
}

// PDF implements the [Object] interface.
//
// The stream data is read from x.R.  If /Length is missing, the data is
// buffered first so that the length can be filled in.
func (x *Stream) PDF(w io.Writer) error {
	dict := x.Dict
	var data io.Reader = x.R
	if data == nil {
		data = bytes.NewReader(nil)
	}
	if _, hasLength := dict["Length"].(Integer); !hasLength {
		body, err := io.ReadAll(data)
		if err != nil {
			return err
		}
		dict = cloneDict(dict)
		dict["Length"] = Integer(len(body))
		data = bytes.NewReader(body)
	}

	err := dict.PDF(w)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "\nstream\n")
	if err != nil {
		return err
	}
	_, err = io.Copy(w, data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "\nendstream")
	return err
}

// Reference identifies an indirect object by object number and generation
// number.  The number is kept in bits 0-31, the generation in bits 32-47.
type Reference uint64

// NewReference returns the reference with the given object and generation
// number.
func NewReference(number uint32, generation uint16) Reference {
	return Reference(uint64(number) | uint64(generation)<<32)
}

// Number returns the object number of the reference.
func (x Reference) Number() uint32 {
	return uint32(x)
}

// Generation returns the generation number of the reference.
func (x Reference) Generation() uint16 {
	return uint16(x >> 32)
}

// String returns a short description of the reference, for use in error
// messages and logs.
func (x Reference) String() string {
	if gen := x.Generation(); gen > 0 {
		return fmt.Sprintf("obj_%d@%d", x.Number(), gen)
	}
	return "obj_" + strconv.FormatUint(uint64(x.Number()), 10)
}

// PDF implements the [Object] interface.
func (x Reference) PDF(w io.Writer) error {
	if x>>48 != 0 {
		return fmt.Errorf("invalid reference: 0x%016x", uint64(x))
	}

	_, err := fmt.Fprintf(w, "%d %d R", x.Number(), x.Generation())
	return err
}

// IsDirectOnly reports whether obj is one of the shared singleton values
// null, true and false.  These values can never be made indirect.
func IsDirectOnly(obj Object) bool {
	switch obj.(type) {
	case nil, Bool:
		return true
	default:
		return false
	}
}

// Format returns the serialised form of obj, as used inside a file.
func Format(obj Object) string {
	if obj == nil {
		return "null"
	}
	buf := &bytes.Buffer{}
	err := obj.PDF(buf)
	if err != nil {
		return fmt.Sprintf("<%T: %v>", obj, err)
	}
	return buf.String()
}

var (
	isSpace = map[byte]bool{
		0:  true,
		9:  true,
		10: true,
		12: true,
		13: true,
		32: true,
	}
	isDelimiter = map[byte]bool{
		'(': true,
		')': true,
		'<': true,
		'>': true,
		'[': true,
		']': true,
		'{': true,
		'}': true,
		'/': true,
		'%': true,
	}
)
