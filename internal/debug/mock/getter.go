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

// Package mock provides test doubles for the interfaces of the pdf package.
package mock

import (
	"seehuhn.de/go/pdfcore"
)

// Getter is a [pdf.Getter] which serves objects from a map.  Resolving a
// reference which is not in the map fails with a
// [*pdf.StaleReferenceError].
type Getter map[pdf.Reference]pdf.Object

// Get implements the [pdf.Getter] interface.
func (g Getter) Get(ref pdf.Reference) (pdf.Object, error) {
	obj, ok := g[ref]
	if !ok {
		return nil, &pdf.StaleReferenceError{Ref: ref, State: pdf.Unused}
	}
	return obj, nil
}
