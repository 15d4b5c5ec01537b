/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"fmt"
)

type tokenKind uint8

const (
	tokWord tokenKind = iota
	tokBraceOpen
	tokBraceClose
	tokSemicolon
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	line int
}

// tokenize splits an nginx-style configuration source into a flat token
// stream. Comments start with '#' and run to end of line; identifiers are
// any maximal run of non-whitespace, non-{};# characters.
func tokenize(src string) ([]token, error) {
	var (
		toks []token
		line = 1
		i    = 0
		n    = len(src)
	)

	for i < n {
		c := src[i]

		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '{':
			toks = append(toks, token{tokBraceOpen, "{", line})
			i++
		case c == '}':
			toks = append(toks, token{tokBraceClose, "}", line})
			i++
		case c == ';':
			toks = append(toks, token{tokSemicolon, ";", line})
			i++
		default:
			start := i
			for i < n {
				d := src[i]
				if d == ' ' || d == '\t' || d == '\r' || d == '\n' || d == '{' || d == '}' || d == ';' || d == '#' {
					break
				}
				i++
			}

			if i == start {
				return nil, fmt.Errorf("config: unexpected character %q at line %d", c, line)
			}

			toks = append(toks, token{tokWord, src[start:i], line})
		}
	}

	toks = append(toks, token{tokEOF, "", line})

	return toks, nil
}
