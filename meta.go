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

import "strconv"

// Version identifies a revision of the PDF file format.  The zero value
// is not a valid version.
type Version int

// These are the versions which can be read and written.
const (
	_ Version = iota
	V1_0
	V1_1
	V1_2
	V1_3
	V1_4
	V1_5
	V1_6
	V1_7
	V2_0
)

var versionNames = [...]string{
	V1_0: "1.0",
	V1_1: "1.1",
	V1_2: "1.2",
	V1_3: "1.3",
	V1_4: "1.4",
	V1_5: "1.5",
	V1_6: "1.6",
	V1_7: "1.7",
	V2_0: "2.0",
}

// ParseVersion converts a version string like "1.7", as found in the file
// header and in the /Version entry of the catalog.
func ParseVersion(s string) (Version, error) {
	for v, name := range versionNames {
		if name != "" && name == s {
			return Version(v), nil
		}
	}
	return 0, errVersion
}

// ToString returns the version number as used in the file header, for
// example "1.7".  An error is returned for unknown versions.
func (ver Version) ToString() (string, error) {
	if ver <= 0 || int(ver) >= len(versionNames) {
		return "", errVersion
	}
	return versionNames[ver], nil
}

func (ver Version) String() string {
	if s, err := ver.ToString(); err == nil {
		return s
	}
	return "pdf.Version(" + strconv.Itoa(int(ver)) + ")"
}
