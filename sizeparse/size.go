// Package sizeparse decodes the decimal/binary size literals used throughout
// a recipe ("5MB", "5MiB", "5") into a byte count.
package sizeparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
)

// BadSizeLiteral reports a size literal that didn't parse: an unrecognised
// unit or a non-integer quantity.
type BadSizeLiteral struct {
	Value  string
	Reason string
}

func (e *BadSizeLiteral) Error() string {
	return fmt.Sprintf("bad size literal %q: %s", e.Value, e.Reason)
}

// decimal and binary multipliers, kept distinct and case-sensitive per the
// recipe grammar: kB (lowercase k) is decimal, KiB (uppercase K) is binary.
var multipliers = map[string]uint64{
	"B":   1,
	"kB":  1000,
	"MB":  1000 * 1000,
	"GB":  1000 * 1000 * 1000,
	"TB":  1000 * 1000 * 1000 * 1000,
	"PB":  1000 * 1000 * 1000 * 1000 * 1000,
	"EB":  1000 * 1000 * 1000 * 1000 * 1000 * 1000,
	"ZB":  1000 * 1000 * 1000 * 1000 * 1000 * 1000 * 1000,
	"YB":  1000 * 1000 * 1000 * 1000 * 1000 * 1000 * 1000 * 1000,
	"KiB": 1024,
	"MiB": 1024 * 1024,
	"GiB": 1024 * 1024 * 1024,
	"TiB": 1024 * 1024 * 1024 * 1024,
	"PiB": 1024 * 1024 * 1024 * 1024 * 1024,
	"EiB": 1024 * 1024 * 1024 * 1024 * 1024 * 1024,
	"ZiB": 1024 * 1024 * 1024 * 1024 * 1024 * 1024 * 1024,
	"YiB": 1024 * 1024 * 1024 * 1024 * 1024 * 1024 * 1024 * 1024,
}

// ParseSize decodes a SizeLiteral into a byte count. The grammar is: digits,
// optional whitespace, then an optional unit drawn from the closed
// enumeration above. Purely-numeric input is bytes. Matching is
// case-sensitive: "MB" and "mb" are different tokens, and only "MB" is
// recognised.
//
// datasize.ByteSize is used purely as the return type so callers get its
// String()/HR() formatting for free; the parsing itself does not delegate to
// datasize.Parse (see DESIGN.md for why).
func ParseSize(s string) (datasize.ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	compact := strings.ReplaceAll(trimmed, " ", "")
	if compact == "" {
		return 0, &BadSizeLiteral{Value: s, Reason: "empty value"}
	}

	splitAt := len(compact)
	for i, r := range compact {
		if r < '0' || r > '9' {
			splitAt = i
			break
		}
	}

	quantityPart := compact[:splitAt]
	unitPart := compact[splitAt:]

	if quantityPart == "" {
		return 0, &BadSizeLiteral{Value: s, Reason: "missing numeric quantity"}
	}

	quantity, convErr := strconv.ParseUint(quantityPart, 10, 64)
	if convErr != nil {
		return 0, &BadSizeLiteral{Value: s, Reason: "quantity is not an integer"}
	}

	if unitPart == "" {
		return datasize.ByteSize(quantity), nil
	}

	multiplier, ok := multipliers[unitPart]
	if !ok {
		return 0, &BadSizeLiteral{Value: s, Reason: fmt.Sprintf("unrecognised unit %q", unitPart)}
	}

	return datasize.ByteSize(quantity * multiplier), nil
}
