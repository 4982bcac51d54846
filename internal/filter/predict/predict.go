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

// Package predict implements the PNG predictor functions which can be
// applied to the data of FlateDecode and LZWDecode streams.
//
// Cross-reference streams normally use the PNG "Up" predictor (Predictor
// 12) to improve compression of the table columns.
package predict

import (
	"errors"
	"fmt"
	"io"
)

const maxColumns = 1 << 20

// Params holds the /DecodeParms values which control prediction.
type Params struct {
	// Colors is the number of color components per sample.
	Colors int

	// BitsPerComponent is the number of bits per color component.
	// Valid values are 1, 2, 4, 8 and 16.
	BitsPerComponent int

	// Columns is the number of samples per row.
	Columns int

	// Predictor is 1 for no prediction, or 10-15 for the PNG predictors.
	// When encoding, 10-14 select the PNG filter type Predictor-10 for
	// every row, and 15 selects the Up filter.
	Predictor int
}

// Validate checks whether the parameters are supported.
func (p *Params) Validate() error {
	if p.Predictor == 1 {
		return nil
	}
	if p.Predictor < 10 || p.Predictor > 15 {
		return fmt.Errorf("predict: unsupported predictor %d", p.Predictor)
	}
	if p.Colors < 1 || p.Colors > 256 {
		return errors.New("predict: invalid Colors value")
	}
	switch p.BitsPerComponent {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("predict: invalid BitsPerComponent %d", p.BitsPerComponent)
	}
	maxCols := min(maxColumns, (1<<31-1)/(p.Colors*p.BitsPerComponent))
	if p.Columns < 1 || p.Columns > maxCols {
		return errors.New("predict: invalid Columns value")
	}
	return nil
}

func (p *Params) bytesPerRow() int {
	return (p.Colors*p.BitsPerComponent*p.Columns + 7) / 8
}

func (p *Params) bytesPerPixel() int {
	return (p.Colors*p.BitsPerComponent + 7) / 8
}

// NewReader returns a reader which undoes the prediction applied to the
// data read from r.  For Predictor 1, r is returned unchanged.
func NewReader(r io.Reader, p *Params) (io.Reader, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return r, nil
	}
	n := p.bytesPerRow()
	return &reader{
		r:    r,
		bpp:  p.bytesPerPixel(),
		in:   make([]byte, n+1),
		prev: make([]byte, n),
		cur:  make([]byte, n),
	}, nil
}

type reader struct {
	r    io.Reader
	bpp  int
	in   []byte // tag byte followed by the encoded row
	prev []byte
	cur  []byte
	pend []byte // decoded bytes not yet returned
}

func (r *reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.pend) > 0 {
			k := copy(p[n:], r.pend)
			r.pend = r.pend[k:]
			n += k
			continue
		}

		_, err := io.ReadFull(r.r, r.in)
		if err != nil {
			if n > 0 {
				return n, nil
			}
			if err == io.ErrUnexpectedEOF {
				err = errors.New("predict: incomplete row")
			}
			return 0, err
		}
		r.prev, r.cur = r.cur, r.prev
		if err := decodeRow(r.cur, r.prev, r.in[1:], r.in[0], r.bpp); err != nil {
			return n, err
		}
		r.pend = r.cur
	}
	return n, nil
}

// decodeRow reverses the PNG filter tag on the row data, given the
// previous decoded row.
func decodeRow(cur, prev, data []byte, tag byte, bpp int) error {
	for i, x := range data {
		var left, upLeft byte
		if i >= bpp {
			left = cur[i-bpp]
			upLeft = prev[i-bpp]
		}
		up := prev[i]

		switch tag {
		case 0:
			cur[i] = x
		case 1:
			cur[i] = x + left
		case 2:
			cur[i] = x + up
		case 3:
			cur[i] = x + byte((int(left)+int(up))/2)
		case 4:
			cur[i] = x + paeth(left, up, upLeft)
		default:
			return fmt.Errorf("predict: invalid PNG filter type %d", tag)
		}
	}
	return nil
}

// NewWriter returns a writer which applies the prediction to the data
// before writing it to w.  Closing the returned writer closes w.
func NewWriter(w io.WriteCloser, p *Params) (io.WriteCloser, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return w, nil
	}
	tag := byte(p.Predictor - 10)
	if p.Predictor == 15 {
		tag = 2
	}
	n := p.bytesPerRow()
	return &writer{
		w:    w,
		tag:  tag,
		bpp:  p.bytesPerPixel(),
		row:  make([]byte, 0, n),
		prev: make([]byte, n),
		out:  make([]byte, n+1),
	}, nil
}

type writer struct {
	w    io.WriteCloser
	tag  byte
	bpp  int
	row  []byte
	prev []byte
	out  []byte
}

func (w *writer) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		k := min(len(p), cap(w.row)-len(w.row))
		w.row = append(w.row, p[:k]...)
		p = p[k:]
		n += k
		if len(w.row) == cap(w.row) {
			if err := w.writeRow(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (w *writer) writeRow() error {
	cur := w.row
	w.out[0] = w.tag
	for i, x := range cur {
		var left, upLeft byte
		if i >= w.bpp {
			left = cur[i-w.bpp]
			upLeft = w.prev[i-w.bpp]
		}
		up := w.prev[i]

		var pred byte
		switch w.tag {
		case 1:
			pred = left
		case 2:
			pred = up
		case 3:
			pred = byte((int(left) + int(up)) / 2)
		case 4:
			pred = paeth(left, up, upLeft)
		}
		w.out[i+1] = x - pred
	}
	copy(w.prev, cur)
	w.row = w.row[:0]
	_, err := w.w.Write(w.out)
	return err
}

// Close writes the final row, padded with zeros if necessary, and closes
// the underlying writer.
func (w *writer) Close() error {
	if k := len(w.row); k > 0 {
		w.row = w.row[:cap(w.row)]
		clear(w.row[k:])
		if err := w.writeRow(); err != nil {
			return err
		}
	}
	return w.w.Close()
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
