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
	"errors"
	"strconv"
	"strings"
)

var (
	errVersion = errors.New("unsupported PDF version")

	// ErrDirectOnly is reported (as a warning, through the package logger)
	// when an attempt is made to turn null, true or false into an indirect
	// object.
	ErrDirectOnly = errors.New("direct-only object cannot be made indirect")
)

// MalformedFileError indicates that the PDF file could not be parsed.
type MalformedFileError struct {
	Err error
	Loc []string
}

func (err *MalformedFileError) Error() string {
	middle := ""
	if err.Err != nil {
		middle = ": " + err.Err.Error()
	}
	tail := ""
	if len(err.Loc) > 0 {
		tail = " (" + strings.Join(err.Loc, ", ") + ")"
	}
	return "not a valid PDF file" + middle + tail
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// Wrap adds location information to an error.  For errors of type
// [*MalformedFileError], the location is added to the Loc field, other
// errors are wrapped into a new MalformedFileError.  If err is nil, nil is
// returned.
func Wrap(err error, loc string) error {
	if err == nil {
		return nil
	}
	var e *MalformedFileError
	if errors.As(err, &e) {
		res := &MalformedFileError{
			Err: e.Err,
			Loc: append([]string{loc}, e.Loc...),
		}
		return res
	}
	return &MalformedFileError{
		Err: err,
		Loc: []string{loc},
	}
}

func atByte(pos int64) string {
	return "byte " + strconv.FormatInt(pos, 10)
}

// StaleReferenceError is returned when a reference is resolved whose object
// is no longer available: the slot has been freed, was never registered, has
// a different generation number, or the object was flushed and released.
type StaleReferenceError struct {
	Ref   Reference
	State State
}

func (err *StaleReferenceError) Error() string {
	return "stale reference " + err.Ref.String() + " (" + err.State.String() + ")"
}
