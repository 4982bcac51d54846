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

const scannerBufSize = 1024

// scanner reads PDF objects from a byte source.
//
// The unread part of the input is buf[pos:end].  The scanner never holds
// on to more than scannerBufSize bytes.
type scanner struct {
	r   io.Reader
	ra  io.ReaderAt // used to access stream data, may be nil
	buf []byte

	pos, end int
	offset   int64 // file position of buf[0]
	eof      bool

	getInt func(Object) (Integer, error)
}

// newScanner returns a scanner which reads ra, starting at position pos.
// The function getInt is used to resolve indirect stream lengths.  If
// getInt is nil, only direct lengths are accepted.
func newScanner(ra io.ReaderAt, size, pos int64, getInt func(Object) (Integer, error)) *scanner {
	if getInt == nil {
		getInt = directInt
	}
	return &scanner{
		r:      io.NewSectionReader(ra, pos, size-pos),
		ra:     ra,
		buf:    make([]byte, scannerBufSize),
		offset: pos,
		getInt: getInt,
	}
}

// newStreamScanner returns a scanner which reads objects from the
// decoded contents of an object stream.  Stream objects are not allowed
// inside such data.
func newStreamScanner(r io.Reader) *scanner {
	return &scanner{
		r:      r,
		buf:    make([]byte, scannerBufSize),
		getInt: directInt,
	}
}

func directInt(obj Object) (Integer, error) {
	x, ok := obj.(Integer)
	if !ok {
		return 0, errors.New("expected an integer")
	}
	return x, nil
}

func (s *scanner) filePos() int64 {
	return s.offset + int64(s.pos)
}

func (s *scanner) errorf(format string, a ...any) error {
	return &MalformedFileError{
		Err: fmt.Errorf(format, a...),
		Loc: []string{atByte(s.filePos())},
	}
}

func (s *scanner) unexpectedEOF() error {
	return &MalformedFileError{
		Err: io.ErrUnexpectedEOF,
		Loc: []string{atByte(s.filePos())},
	}
}

// ReadIndirectObject reads an object of the form "n g obj ... endobj".
func (s *scanner) ReadIndirectObject() (Reference, Object, error) {
	// Some writers point the xref entries at the end of the previous line.
	err := s.SkipWhiteSpace()
	if err != nil {
		return 0, nil, err
	}
	number, err := s.ReadInteger()
	if err != nil {
		return 0, nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return 0, nil, err
	}
	generation, err := s.ReadInteger()
	if err != nil {
		return 0, nil, err
	}
	if number < 0 || number > 0xFFFFFFFF || generation < 0 || generation > 0xFFFF {
		return 0, nil, s.errorf("invalid object identifier %d %d", number, generation)
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return 0, nil, err
	}
	err = s.SkipString("obj")
	if err != nil {
		return 0, nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return 0, nil, err
	}

	obj, err := s.ReadObject()
	if err != nil {
		return 0, nil, err
	}

	err = s.SkipWhiteSpace()
	if err != nil {
		return 0, nil, err
	}
	err = s.SkipString("endobj")
	if err != nil {
		return 0, nil, err
	}
	return NewReference(uint32(number), uint16(generation)), obj, nil
}

// ReadObject reads a single object.  An integer which is followed by a
// generation number and the keyword "R" is read as a [Reference].
func (s *scanner) ReadObject() (Object, error) {
	obj, err := s.readDirect()
	if err != nil {
		return nil, err
	}
	if a, isInt := obj.(Integer); isInt && s.isReferenceTail() {
		return s.finishReference(a)
	}
	return obj, nil
}

var keywords = []struct {
	text string
	val  Object
}{
	{"null", nil},
	{"true", Bool(true)},
	{"false", Bool(false)},
}

// readDirect reads an object, without checking for references.
func (s *scanner) readDirect() (Object, error) {
	buf, err := s.Peek(5)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, s.unexpectedEOF()
	}

	switch c := buf[0]; {
	case c == '/':
		return s.ReadName()
	case c >= '0' && c <= '9', c == '+', c == '-', c == '.':
		return s.ReadNumber()
	case c == '(':
		s.pos++
		return s.ReadQuotedString()
	case c == '[':
		s.pos++
		return s.ReadArray()
	case bytes.HasPrefix(buf, []byte("<<")):
		return s.readDictOrStream()
	case c == '<':
		s.pos++
		return s.ReadHexString()
	}

	for _, kw := range keywords {
		if bytes.HasPrefix(buf, []byte(kw.text)) {
			s.pos += len(kw.text)
			return kw.val, nil
		}
	}
	return nil, s.errorf("unexpected input %q", buf)
}

// isReferenceTail reports whether the input continues with a generation
// number and the keyword "R".  No input is consumed.
func (s *scanner) isReferenceTail() bool {
	buf, _ := s.Peek(32)
	skipSpace := func(i int) int {
		for i < len(buf) && isSpace[buf[i]] {
			i++
		}
		return i
	}

	i := skipSpace(0)
	j := i
	for j < len(buf) && buf[j] >= '0' && buf[j] <= '9' {
		j++
	}
	k := skipSpace(j)
	if j == i || k == j || k >= len(buf) || buf[k] != 'R' {
		return false
	}
	return k+1 == len(buf) || isSpace[buf[k+1]] || isDelimiter[buf[k+1]]
}

// finishReference reads the "g R" part of a reference, after the object
// number a has been read.
func (s *scanner) finishReference(a Integer) (Reference, error) {
	err := s.SkipWhiteSpace()
	if err != nil {
		return 0, err
	}
	b, err := s.ReadInteger()
	if err != nil {
		return 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return 0, err
	}
	err = s.SkipString("R")
	if err != nil {
		return 0, err
	}
	if a < 0 || a > 0xFFFFFFFF || b < 0 || b > 0xFFFF {
		return 0, s.errorf("invalid reference %d %d R", a, b)
	}
	return NewReference(uint32(a), uint16(b)), nil
}

// ReadInteger reads an integer.
func (s *scanner) ReadInteger() (Integer, error) {
	digits, _, err := s.scanNumber(false)
	if err != nil {
		return 0, err
	}
	x, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0, s.errorf("malformed integer %q", digits)
	}
	return Integer(x), nil
}

// ReadNumber reads an integer or real number.
func (s *scanner) ReadNumber() (Object, error) {
	digits, isReal, err := s.scanNumber(true)
	if err != nil {
		return nil, err
	}
	if isReal {
		x, err := strconv.ParseFloat(string(digits), 64)
		if err != nil {
			return nil, s.errorf("malformed number %q", digits)
		}
		return Real(x), nil
	}
	x, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return nil, s.errorf("malformed integer %q", digits)
	}
	return Integer(x), nil
}

// scanNumber collects an optional sign, followed by digits.  If allowDot
// is set, at most one decimal point is accepted and isReal reports whether
// one was found.
func (s *scanner) scanNumber(allowDot bool) (digits []byte, isReal bool, err error) {
	err = s.ScanBytes(func(c byte) bool {
		switch {
		case c >= '0' && c <= '9':
		case (c == '+' || c == '-') && len(digits) == 0:
		case c == '.' && allowDot && !isReal:
			isReal = true
		default:
			return false
		}
		digits = append(digits, c)
		return true
	})
	return digits, isReal, err
}

// ReadQuotedString reads a ()-delimited string, starting after the opening
// bracket.  End-of-line markers inside the string are normalised to "\n".
func (s *scanner) ReadQuotedString() (String, error) {
	const (
		plain = iota
		afterBackslash
		octal
		afterCR
	)

	var res []byte
	state := plain
	depth := 0
	var code byte
	var codeLen int
	err := s.ScanBytes(func(c byte) bool {
		switch state {
		case afterCR:
			state = plain
			if c == '\n' {
				return true
			}
		case octal:
			if c >= '0' && c <= '7' && codeLen < 3 {
				code = code<<3 | (c - '0')
				codeLen++
				return true
			}
			res = append(res, code)
			state = plain
		case afterBackslash:
			state = plain
			switch c {
			case '\n':
				// line continuation
			case '\r':
				state = afterCR
			case '0', '1', '2', '3', '4', '5', '6', '7':
				code = c - '0'
				codeLen = 1
				state = octal
			default:
				if esc, ok := quotedEscapes[c]; ok {
					c = esc
				}
				res = append(res, c)
			}
			return true
		}

		switch c {
		case '\\':
			state = afterBackslash
			return true
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return false
			}
			depth--
		case '\r':
			c = '\n'
			state = afterCR
		}
		res = append(res, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	if state == octal {
		res = append(res, code)
	}

	err = s.SkipString(")")
	if err != nil {
		return nil, err
	}
	return String(res), nil
}

// quotedEscapes maps the character after a backslash to the byte it
// represents.  Other escaped characters stand for themselves.
var quotedEscapes = map[byte]byte{
	'n': '\n',
	'r': '\r',
	't': '\t',
	'b': '\b',
	'f': '\f',
}

// hexDigit returns the value of the hexadecimal digit c.
func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// ReadHexString reads a <>-delimited string, starting after the opening
// angled bracket.  Characters other than hex digits are ignored.
func (s *scanner) ReadHexString() (String, error) {
	var res []byte
	odd := false
	err := s.ScanBytes(func(c byte) bool {
		if c == '>' {
			return false
		}
		d, ok := hexDigit(c)
		if !ok {
			return true
		}
		if odd {
			res[len(res)-1] |= d
		} else {
			res = append(res, d<<4)
		}
		odd = !odd
		return true
	})
	if err != nil {
		return nil, err
	}

	// At the end of the file, the closing ">" may be missing.
	_ = s.SkipString(">")

	return String(res), nil
}

// ReadName reads a name object, including the leading slash.  Invalid
// "#" escapes are kept as they are.
func (s *scanner) ReadName() (Name, error) {
	err := s.SkipString("/")
	if err != nil {
		return "", err
	}

	var res []byte
	escape := -1 // index of a pending "#" in res
	err = s.ScanBytes(func(c byte) bool {
		if isSpace[c] || isDelimiter[c] {
			return false
		}
		res = append(res, c)
		switch {
		case c == '#' && escape < 0:
			escape = len(res) - 1
		case escape >= 0 && len(res)-escape == 3:
			hi, ok1 := hexDigit(res[escape+1])
			lo, ok2 := hexDigit(res[escape+2])
			if ok1 && ok2 {
				res = append(res[:escape], hi<<4|lo)
				escape = -1
			} else if c == '#' {
				escape = len(res) - 1
			} else {
				escape = -1
			}
		}
		return true
	})
	if err != nil && !(err == io.EOF && len(res) == 0) {
		return "", err
	}

	return Name(res), nil
}

// ReadArray reads an array, starting after the opening "[".
func (s *scanner) ReadArray() (Array, error) {
	res := Array{}
	for {
		err := s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 {
			return nil, s.unexpectedEOF()
		}
		if buf[0] == ']' {
			s.pos++
			return res, nil
		}

		obj, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		res = append(res, obj)
	}
}

// ReadDict reads a dictionary, including the delimiters "<<" and ">>".
// Entries with value null are dropped.
func (s *scanner) ReadDict() (Dict, error) {
	err := s.SkipString("<<")
	if err != nil {
		return nil, err
	}

	dict := Dict{}
	for {
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 || buf[0] != '/' {
			break
		}

		key, err := s.ReadName()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		val, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		if val != nil {
			dict[key] = val
		}
	}

	err = s.SkipString(">>")
	if err != nil {
		return nil, err
	}
	return dict, nil
}

// readDictOrStream reads a dictionary, together with the stream data if
// the dictionary is followed by the keyword "stream".
func (s *scanner) readDictOrStream() (Object, error) {
	dict, err := s.ReadDict()
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	buf, err := s.Peek(6)
	if err != nil {
		return nil, err
	}
	if string(buf) != "stream" {
		return dict, nil
	}
	return s.ReadStreamData(dict)
}

// ReadStreamData reads the data of a stream, starting at the keyword
// "stream".  The returned stream reads its data directly from the
// underlying file.
func (s *scanner) ReadStreamData(dict Dict) (*Stream, error) {
	if s.ra == nil {
		return nil, s.errorf("stream objects not allowed here")
	}

	length, err := s.getInt(dict["Length"])
	if err != nil {
		return nil, Wrap(err, "stream /Length")
	}
	if length < 0 {
		return nil, s.errorf("stream with negative length")
	}

	err = s.SkipString("stream")
	if err != nil {
		return nil, err
	}
	buf, err := s.Peek(2)
	if err != nil {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(buf, []byte("\r\n")):
		s.pos += 2
	case bytes.HasPrefix(buf, []byte("\n")):
		s.pos++
	default:
		return nil, s.errorf("missing end of line after \"stream\"")
	}

	start := s.filePos()
	err = s.Discard(int64(length))
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	err = s.SkipString("endstream")
	if err != nil {
		return nil, err
	}

	return &Stream{
		Dict: dict,
		R:    io.NewSectionReader(s.ra, start, int64(length)),
	}, nil
}

// readHeaderVersion reads the "%PDF-x.y" header at the start of a file.
func (s *scanner) readHeaderVersion() (Version, error) {
	buf, err := s.Peek(16)
	if err != nil {
		return 0, err
	}
	if len(buf) < 8 || !bytes.HasPrefix(buf, []byte("%PDF-")) {
		return 0, s.errorf("PDF header not found")
	}
	version, err := ParseVersion(string(buf[5:8]))
	if err != nil {
		return 0, &MalformedFileError{Err: err, Loc: []string{atByte(s.filePos() + 5)}}
	}
	return version, nil
}

// fill tries to make at least n unread bytes available.  Fewer bytes are
// available only at the end of the input.
func (s *scanner) fill(n int) error {
	for s.end-s.pos < n && !s.eof {
		if s.pos > 0 {
			copy(s.buf, s.buf[s.pos:s.end])
			s.offset += int64(s.pos)
			s.end -= s.pos
			s.pos = 0
		}
		k, err := s.r.Read(s.buf[s.end:])
		s.end += k
		if err == io.EOF {
			s.eof = true
		} else if err != nil {
			return err
		}
	}
	return nil
}

// Peek returns the next n bytes of input, without consuming them.  At the
// end of input, a shorter slice is returned.  The slice is only valid until
// the next call to a scanner method.
func (s *scanner) Peek(n int) ([]byte, error) {
	if n > len(s.buf) {
		panic("peek window too large")
	}
	err := s.fill(n)
	if err != nil {
		return nil, err
	}
	return s.buf[s.pos:min(s.pos+n, s.end)], nil
}

// Discard skips the next n bytes of input.
func (s *scanner) Discard(n int64) error {
	for n > 0 {
		if s.pos == s.end {
			err := s.fill(1)
			if err != nil {
				return err
			}
			if s.pos == s.end {
				return io.ErrUnexpectedEOF
			}
		}
		k := min(n, int64(s.end-s.pos))
		s.pos += int(k)
		n -= k
	}
	return nil
}

// ScanBytes passes input bytes to accept, until accept returns false.  The
// byte for which false is returned is not consumed.  If the input is
// exhausted before any byte was accepted, io.EOF is returned.
func (s *scanner) ScanBytes(accept func(c byte) bool) error {
	consumed := false
	for {
		if s.pos == s.end {
			err := s.fill(1)
			if err != nil {
				return err
			}
			if s.pos == s.end {
				if !consumed {
					return io.EOF
				}
				return nil
			}
		}
		if !accept(s.buf[s.pos]) {
			return nil
		}
		s.pos++
		consumed = true
	}
}

// SkipWhiteSpace skips white space and comments.
func (s *scanner) SkipWhiteSpace() error {
	inComment := false
	err := s.ScanBytes(func(c byte) bool {
		switch {
		case inComment:
			inComment = c != '\r' && c != '\n'
		case c == '%':
			inComment = true
		default:
			return isSpace[c]
		}
		return true
	})
	if err == io.EOF {
		return nil
	}
	return err
}

// SkipString consumes pat, which must be the next part of the input.
func (s *scanner) SkipString(pat string) error {
	buf, err := s.Peek(len(pat))
	if err != nil {
		return err
	}
	if string(buf) != pat {
		return s.errorf("expected %q but found %q", pat, buf)
	}
	s.pos += len(pat)
	return nil
}

// SkipAfter advances the input to the first byte after the next occurrence
// of pat.  If pat is not found, io.EOF is returned.
func (s *scanner) SkipAfter(pat string) error {
	n := len(pat)
	if n > len(s.buf) {
		panic("SkipAfter target too large")
	}
	for {
		err := s.fill(n)
		if err != nil {
			return err
		}
		idx := bytes.Index(s.buf[s.pos:s.end], []byte(pat))
		if idx >= 0 {
			s.pos += idx + n
			return nil
		}
		if s.eof {
			s.pos = s.end
			return io.EOF
		}
		// keep the last n-1 bytes, they may start a match
		s.pos = max(s.pos, s.end-n+1)
	}
}
