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

// Package runlength implements the RunLengthDecode filter.
//
// Each run starts with a length byte L.  For L < 128, the next L+1 bytes
// are copied literally.  For L > 128, the next byte is repeated 257-L
// times.  L = 128 marks the end of data.
package runlength

import (
	"bufio"
	"io"
)

const endOfData = 128

// Decode returns a reader which decodes run-length encoded data read from r.
func Decode(r io.Reader) io.Reader {
	return &decoder{r: bufio.NewReader(r)}
}

type decoder struct {
	r       *bufio.Reader
	err     error
	literal int  // literal bytes left in the current run
	repeat  int  // repetitions left in the current run
	val     byte // the repeated byte
}

func (d *decoder) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && d.err == nil {
		switch {
		case d.literal > 0:
			k, err := d.r.Read(p[n:min(len(p), n+d.literal)])
			n += k
			d.literal -= k
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			d.err = err
		case d.repeat > 0:
			k := min(len(p)-n, d.repeat)
			for i := range k {
				p[n+i] = d.val
			}
			n += k
			d.repeat -= k
		default:
			d.err = d.startRun()
		}
	}
	if n > 0 {
		return n, nil
	}
	return 0, d.err
}

func (d *decoder) startRun() error {
	length, err := d.r.ReadByte()
	if err != nil {
		// A missing end-of-data marker is tolerated.
		return err
	}
	switch {
	case length == endOfData:
		return io.EOF
	case length < endOfData:
		d.literal = int(length) + 1
	default:
		d.val, err = d.r.ReadByte()
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		} else if err != nil {
			return err
		}
		d.repeat = 257 - int(length)
	}
	return nil
}

// Encode returns a writer which run-length encodes data and writes the
// result to w.  The returned writer must be closed to flush all data and
// to write the end-of-data marker.  Closing the writer also closes w.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &encoder{w: w}
}

type encoder struct {
	w io.WriteCloser

	// buf[0] is reserved for the length byte of a literal run,
	// pending literal bytes are in buf[1:1+lit].
	buf [129]byte
	lit int

	run    int // length of the current repeat run, 0 if none
	runVal byte
}

func (e *encoder) Write(p []byte) (int, error) {
	for i, c := range p {
		if e.run > 0 {
			if c == e.runVal && e.run < 128 {
				e.run++
				continue
			}
			if err := e.flushRun(); err != nil {
				return i, err
			}
		}

		e.buf[1+e.lit] = c
		e.lit++

		// three equal bytes start a repeat run
		if e.lit >= 3 && e.buf[e.lit-1] == c && e.buf[e.lit-2] == c {
			e.lit -= 3
			if err := e.flushLiteral(); err != nil {
				return i, err
			}
			e.run = 3
			e.runVal = c
			continue
		}

		if e.lit == 128 {
			if err := e.flushLiteral(); err != nil {
				return i, err
			}
		}
	}
	return len(p), nil
}

func (e *encoder) Close() error {
	if e.run > 0 {
		if err := e.flushRun(); err != nil {
			return err
		}
	}
	if err := e.flushLiteral(); err != nil {
		return err
	}
	if _, err := e.w.Write([]byte{endOfData}); err != nil {
		return err
	}
	return e.w.Close()
}

func (e *encoder) flushLiteral() error {
	if e.lit == 0 {
		return nil
	}
	e.buf[0] = byte(e.lit - 1)
	_, err := e.w.Write(e.buf[:e.lit+1])
	e.lit = 0
	return err
}

func (e *encoder) flushRun() error {
	_, err := e.w.Write([]byte{byte(257 - e.run), e.runVal})
	e.run = 0
	return err
}
