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
	"fmt"

	"golang.org/x/exp/maps"
)

// Getter represents a source of indirect objects, for example a [*Table]
// or a [*Reader].
type Getter interface {
	Get(Reference) (Object, error)
}

// Putter represents a destination for indirect objects.
type Putter interface {
	Alloc() Reference
	Put(ref Reference, obj Object) error
}

// maxIndirection limits the length of reference chains followed by
// [Resolve].
const maxIndirection = 16

// Resolve follows references until it reaches a direct object.  Objects
// which are not references are returned as they are.  A chain of more than
// maxIndirection references, which includes reference loops, gives a
// [*MalformedFileError].
func Resolve(r Getter, obj Object) (Object, error) {
	start, isReference := obj.(Reference)
	for steps := 0; isReference; steps++ {
		if steps == maxIndirection {
			return nil, &MalformedFileError{
				Err: errors.New("reference chain too long"),
				Loc: []string{"object " + start.String()},
			}
		}

		var err error
		obj, err = r.Get(obj.(Reference))
		if err != nil {
			return nil, err
		}
		_, isReference = obj.(Reference)
	}
	return obj, nil
}

// getAs resolves obj and converts the result to type T.  The null object
// gives the zero value of T.
func getAs[T Object](r Getter, obj Object) (T, error) {
	var zero T

	obj, err := Resolve(r, obj)
	if err != nil || obj == nil {
		return zero, err
	}
	x, ok := obj.(T)
	if !ok {
		return zero, &MalformedFileError{
			Err: fmt.Errorf("wanted %T, found %T", zero, obj),
		}
	}
	return x, nil
}

// These functions resolve an object and convert it to a specific type.
// They have the signature
//
//	func GetT(r Getter, obj Object) (T, error)
//
// A null object gives the zero value of T without an error.  An object of
// a different type gives a [*MalformedFileError].
var (
	GetArray  = getAs[Array]
	GetBool   = getAs[Bool]
	GetDict   = getAs[Dict]
	GetInt    = getAs[Integer]
	GetName   = getAs[Name]
	GetReal   = getAs[Real]
	GetStream = getAs[*Stream]
	GetString = getAs[String]
)

// cloneDict returns a shallow copy of dict.  The result is never nil.
func cloneDict(dict Dict) Dict {
	if dict == nil {
		return Dict{}
	}
	return maps.Clone(dict)
}
