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

// Package ascii85 implements the ASCII base-85 encoding used by the
// ASCII85Decode filter in PDF files.
//
// In contrast to the encoding/ascii85 package of the standard library, the
// encoder writes the "~>" end-of-data marker, and the decoder stops at this
// marker.
package ascii85

import (
	"bufio"
	"errors"
	"io"
)

var (
	errInvalidChar = errors.New("ascii85: invalid character")
	errInvalidEnd  = errors.New("ascii85: invalid end marker")
)

// Decode returns a reader which decodes ASCII85 data read from r.
// Decoding stops at the "~>" end marker.  A missing end marker is
// reported as [io.ErrUnexpectedEOF].
func Decode(r io.Reader) io.Reader {
	return &decoder{r: bufio.NewReader(r)}
}

type decoder struct {
	r    *bufio.Reader
	err  error
	out  [4]byte
	pend []byte // decoded bytes not yet returned
}

func (d *decoder) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(d.pend) > 0 {
			k := copy(p[n:], d.pend)
			d.pend = d.pend[k:]
			n += k
			continue
		}
		if d.err != nil {
			break
		}
		d.err = d.decodeGroup()
	}
	if n > 0 {
		return n, nil
	}
	return 0, d.err
}

// decodeGroup decodes the next group of up to five input characters into
// d.pend.
func (d *decoder) decodeGroup() error {
	var v uint32
	k := 0
	for k < 5 {
		c, err := d.r.ReadByte()
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		} else if err != nil {
			return err
		}

		switch {
		case isSpace(c):
			continue
		case c == 'z' && k == 0:
			d.out = [4]byte{}
			d.pend = d.out[:]
			return nil
		case c >= '!' && c < '!'+85:
			v = v*85 + uint32(c-'!')
			k++
		case c == '~':
			c, err = d.r.ReadByte()
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			} else if err != nil {
				return err
			}
			if c != '>' || k == 1 {
				return errInvalidEnd
			}
			if k > 0 {
				for i := k; i < 5; i++ {
					v = v*85 + 84
				}
				d.putWord(v)
				d.pend = d.out[:k-1]
			}
			return io.EOF
		default:
			return errInvalidChar
		}
	}
	d.putWord(v)
	d.pend = d.out[:]
	return nil
}

func (d *decoder) putWord(v uint32) {
	d.out[0] = byte(v >> 24)
	d.out[1] = byte(v >> 16)
	d.out[2] = byte(v >> 8)
	d.out[3] = byte(v)
}

// Encode returns a writer which writes ASCII85 encoded data to w.
// The returned writer must be closed to write the final group and the end
// marker.  Closing the writer also closes w.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &encoder{
		w:   w,
		buf: make([]byte, 0, lineWidth+8),
	}
}

const lineWidth = 75

type encoder struct {
	w   io.WriteCloser
	buf []byte
	v   uint32
	k   int
}

func (e *encoder) Write(p []byte) (int, error) {
	for i, b := range p {
		e.v = e.v<<8 | uint32(b)
		e.k++
		if e.k < 4 {
			continue
		}

		if len(e.buf) >= lineWidth {
			if err := e.flush(); err != nil {
				return i, err
			}
		}
		if e.v == 0 {
			e.buf = append(e.buf, 'z')
		} else {
			e.buf = appendGroup(e.buf, e.v, 5)
		}
		e.v = 0
		e.k = 0
	}
	return len(p), nil
}

func (e *encoder) Close() error {
	if e.k > 0 {
		e.buf = appendGroup(e.buf, e.v<<((4-e.k)*8), e.k+1)
		e.v = 0
		e.k = 0
	}
	e.buf = append(e.buf, '~', '>')
	if err := e.flush(); err != nil {
		return err
	}
	return e.w.Close()
}

func (e *encoder) flush() error {
	e.buf = append(e.buf, '\n')
	_, err := e.w.Write(e.buf)
	e.buf = e.buf[:0]
	return err
}

// appendGroup appends the first n base-85 digits of v to buf.
func appendGroup(buf []byte, v uint32, n int) []byte {
	var c [5]byte
	for i := 4; i >= 0; i-- {
		c[i] = byte(v%85) + '!'
		v /= 85
	}
	return append(buf, c[:n]...)
}

func isSpace(c byte) bool {
	switch c {
	case 0, 9, 10, 12, 13, 32:
		return true
	}
	return false
}
