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

// Package limitbuf implements a growable byte buffer with a hard size
// limit.
//
// The buffer is used to collect the output of stream filters.  A
// malicious file can make a small compressed stream expand to an
// arbitrary size; the limit makes sure such input is rejected with an
// error instead of exhausting the available memory.
package limitbuf

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// DefaultLimit is the limit used when a non-positive limit is passed to
// [New].  This is just under the largest buffer size which can be
// allocated on all platforms.
const DefaultLimit = math.MaxInt32 - 8

const minGrow = 512

var (
	// ErrCapacityExceeded indicates that a write would take the buffer
	// past its limit.
	ErrCapacityExceeded = errors.New("buffer limit exceeded")

	// ErrCapacityOverflow indicates that the requested buffer size cannot
	// be represented as an int.
	ErrCapacityOverflow = errors.New("buffer size overflow")
)

// CapacityError is returned when a write to a [Buffer] fails.
// Err is either [ErrCapacityExceeded] or [ErrCapacityOverflow].
type CapacityError struct {
	Err       error
	Size      int // current size of the buffer
	Requested int // number of bytes which could not be written
	Limit     int
}

func (err *CapacityError) Error() string {
	return fmt.Sprintf("limitbuf: cannot add %d bytes to %d bytes (limit %d): %v",
		err.Requested, err.Size, err.Limit, err.Err)
}

func (err *CapacityError) Unwrap() error {
	return err.Err
}

// Buffer is a byte buffer with a fixed maximum size.
// The zero value is not usable, use [New] to create a Buffer.
type Buffer struct {
	data  []byte
	limit int
}

// New returns an empty buffer which can hold at most limit bytes.
// If limit is zero or negative, [DefaultLimit] is used.
func New(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Buffer{limit: limit}
}

// Limit returns the maximum number of bytes the buffer can hold.
func (b *Buffer) Limit() int {
	return b.limit
}

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the number of bytes allocated for the buffer.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Bytes returns the contents of the buffer.  The returned slice is only
// valid until the next modification of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// String returns the contents of the buffer as a string.
func (b *Buffer) String() string {
	return string(b.data)
}

// Reset empties the buffer.  The allocated memory is kept.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Write appends p to the buffer.  If the buffer would grow beyond its
// limit, nothing is written and a [*CapacityError] is returned.
func (b *Buffer) Write(p []byte) (int, error) {
	err := b.ensure(len(p))
	if err != nil {
		return 0, err
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// WriteByte appends the byte c to the buffer.
func (b *Buffer) WriteByte(c byte) error {
	err := b.ensure(1)
	if err != nil {
		return err
	}
	b.data = append(b.data, c)
	return nil
}

// ReadFrom reads data from r until EOF and appends it to the buffer.
// If the data does not fit into the buffer, a [*CapacityError] is
// returned.  In this case, the buffer contains the data read before the
// limit was reached.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		if len(b.data) == cap(b.data) {
			room := b.limit - len(b.data)
			if room == 0 {
				// Only fail if there is actually more data.
				var extra [1]byte
				n, err := io.ReadFull(r, extra[:])
				if n == 0 {
					if err == io.EOF {
						return total, nil
					}
					return total, err
				}
				return total, &CapacityError{
					Err:       ErrCapacityExceeded,
					Size:      len(b.data),
					Requested: n,
					Limit:     b.limit,
				}
			}
			err := b.ensure(min(minGrow, room))
			if err != nil {
				return total, err
			}
		}

		n, err := r.Read(b.data[len(b.data):cap(b.data)])
		if n < 0 {
			panic("limitbuf: reader returned negative count from Read")
		}
		b.data = b.data[:len(b.data)+n]
		total += int64(n)
		if err == io.EOF {
			return total, nil
		} else if err != nil {
			return total, err
		}
	}
}

// ensure makes sure that n more bytes can be appended to the buffer
// without reallocation.
func (b *Buffer) ensure(n int) error {
	size := len(b.data)
	if n > math.MaxInt-size {
		return &CapacityError{
			Err:       ErrCapacityOverflow,
			Size:      size,
			Requested: n,
			Limit:     b.limit,
		}
	}
	need := size + n
	if need > b.limit {
		return &CapacityError{
			Err:       ErrCapacityExceeded,
			Size:      size,
			Requested: n,
			Limit:     b.limit,
		}
	}
	if need <= cap(b.data) {
		return nil
	}

	newCap := max(cap(b.data), minGrow/2)
	for newCap < need {
		if newCap > b.limit/2 {
			newCap = b.limit
			break
		}
		newCap *= 2
	}
	newCap = min(newCap, b.limit)

	data := make([]byte, size, newCap)
	copy(data, b.data)
	b.data = data
	return nil
}
