/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2022 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Package size provides a byte-count type that parses and formats human
// sizes ("512", "64K", "10M", "1G") using 1024-based units.
package size

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a count of bytes.
type Size uint64

const (
	SizeNul  Size = 0
	SizeUnit Size = 1
	SizeKilo      = SizeUnit << 10
	SizeMega      = SizeKilo << 10
	SizeGiga      = SizeMega << 10
	SizeTera      = SizeGiga << 10
	SizePeta      = SizeTera << 10
	SizeExa       = SizePeta << 10
)

var units = []struct {
	suffix string
	size   Size
}{
	{"EB", SizeExa},
	{"PB", SizePeta},
	{"TB", SizeTera},
	{"GB", SizeGiga},
	{"MB", SizeMega},
	{"KB", SizeKilo},
}

// Parse reads a size expressed as a decimal number followed by an optional
// unit suffix (B, K/KB, M/MB, G/GB, T/TB, P/PB, E/EB). A bare number is
// interpreted as bytes.
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SizeNul, fmt.Errorf("size: empty value")
	}

	i := len(s)
	for i > 0 && (s[i-1] < '0' || s[i-1] > '9') && s[i-1] != '.' {
		i--
	}

	numPart := s[:i]
	unitPart := strings.ToUpper(strings.TrimSpace(s[i:]))

	val, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return SizeNul, fmt.Errorf("size: invalid numeric value %q: %w", numPart, err)
	}

	var mult Size
	switch unitPart {
	case "", "B":
		mult = SizeUnit
	case "K", "KB":
		mult = SizeKilo
	case "M", "MB":
		mult = SizeMega
	case "G", "GB":
		mult = SizeGiga
	case "T", "TB":
		mult = SizeTera
	case "P", "PB":
		mult = SizePeta
	case "E", "EB":
		mult = SizeExa
	default:
		return SizeNul, fmt.Errorf("size: unknown unit %q", unitPart)
	}

	return Size(val * float64(mult)), nil
}

// String renders the size using the largest unit producing a non-zero
// integral part, e.g. 1536 -> "1.50 KB".
func (s Size) String() string {
	for _, u := range units {
		if s >= u.size {
			return fmt.Sprintf("%.2f %s", float64(s)/float64(u.size), u.suffix)
		}
	}

	return fmt.Sprintf("%d B", uint64(s))
}

// Int64 returns the size as an int64.
func (s Size) Int64() int64 {
	return int64(s)
}

// Uint64 returns the size as an uint64.
func (s Size) Uint64() uint64 {
	return uint64(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}

	*s = v
	return nil
}
