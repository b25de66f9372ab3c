// Package sku parses the product code embedded in design filenames.
//
// A full token looks like TDB0402DSMV01: type letters, a size code,
// a two-letter licensor, an optional property code, and an optional
// sequence. Real archives carry plenty of partially structured names,
// so the third type letter and the trailing groups are optional and
// unknown codes pass through verbatim rather than failing the parse.
package sku

import (
	"regexp"
	"strings"
)

// Result is the structured classification of one filename token.
// Parsed is false when the token does not match the grammar at all;
// all other fields are empty in that case.
type Result struct {
	Parsed bool

	TypeCode    string
	TypeName    string
	SubtypeCode string
	SubtypeName string
	GroupCode   string
	GroupName   string

	SizeCode string
	SizeName string

	LicensorCode string
	PropertyCode string
	SequenceCode string

	Category string
	Division string
}

// tokenPattern: type letters (third optional), size digits with an
// optional trailing letter, two-letter licensor, optional 2-4 letter
// property, optional two-digit sequence with trailing letter.
var tokenPattern = regexp.MustCompile(`^([A-Z])([A-Z])([A-Z])?([0-9]+[A-Z]?)([A-Z]{2})([A-Z]{2,4})?([0-9]{2}[A-Z]?)?$`)

// Parse classifies a filename. It is deterministic and total: any
// filename yields a Result, never an error.
func Parse(filename string) Result {
	token := tokenFromFilename(filename)
	if token == "" {
		return Result{}
	}

	m := tokenPattern.FindStringSubmatch(token)
	if m == nil {
		return Result{}
	}

	r := Result{
		Parsed:       true,
		TypeCode:     m[1],
		SubtypeCode:  m[2],
		GroupCode:    m[3],
		SizeCode:     m[4],
		LicensorCode: m[5],
		PropertyCode: m[6],
		SequenceCode: m[7],
	}

	r.TypeName = lookupOrEcho(typeNames, r.TypeCode)
	r.SubtypeName = lookupOrEcho(subtypeNames, r.SubtypeCode)
	if r.GroupCode != "" {
		r.GroupName = lookupOrEcho(groupNames, r.GroupCode)
	}
	r.SizeName = sizeName(r.TypeCode, r.SizeCode)
	r.Category = lookupOrEcho(categories, r.TypeCode)
	r.Division = lookupOrEcho(divisions, r.TypeCode)

	return r
}

// tokenFromFilename takes the filename up to the first space or
// underscore, upper-cased, with any extension stripped.
func tokenFromFilename(filename string) string {
	token := filename
	if i := strings.IndexAny(token, " _"); i >= 0 {
		token = token[:i]
	}
	if i := strings.LastIndex(token, "."); i >= 0 {
		token = token[:i]
	}
	return strings.ToUpper(strings.TrimSpace(token))
}

// lookupOrEcho returns the table name for a code, or the code itself
// when the table does not know it. Partially-known taxonomies stay
// usable this way.
func lookupOrEcho(table map[string]string, code string) string {
	if name, ok := table[code]; ok {
		return name
	}
	return code
}

// sizeName resolves a size code through the table selected by the
// top-level type letter.
func sizeName(typeCode, sizeCode string) string {
	if table, ok := sizeTables[typeCode]; ok {
		if name, ok := table[sizeCode]; ok {
			return name
		}
	}
	return sizeCode
}
