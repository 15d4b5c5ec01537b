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

// Package multipart splits a multipart/form-data body into its constituent
// file parts. Form fields without a filename are not retained, matching
// this server's upload-only use of multipart bodies.
package multipart

import (
	"bytes"
	"errors"
	"strings"
)

// ErrNoBoundary is returned when the boundary delimiter cannot be found in
// the body at all (malformed request).
var ErrNoBoundary = errors.New("multipart: boundary not found in body")

// Part is one decoded file part of a multipart/form-data body.
type Part struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Decode splits body on "--boundary" delimiters terminated by
// "--boundary--". Parts without a filename= parameter in their
// Content-Disposition header are skipped.
func Decode(body []byte, boundary string) ([]Part, error) {
	delim := []byte("--" + boundary)

	first := bytes.Index(body, delim)
	if first < 0 {
		return nil, ErrNoBoundary
	}

	var parts []Part

	pos := first + len(delim)

	for {
		if pos >= len(body) {
			break
		}

		// End-of-parts marker immediately following a delimiter.
		if bytes.HasPrefix(body[pos:], []byte("--")) {
			break
		}

		// Skip the CRLF after the delimiter line.
		if bytes.HasPrefix(body[pos:], []byte("\r\n")) {
			pos += 2
		} else if bytes.HasPrefix(body[pos:], []byte("\n")) {
			pos++
		}

		next := bytes.Index(body[pos:], delim)
		if next < 0 {
			break
		}

		raw := body[pos : pos+next]
		pos = pos + next + len(delim)

		part, ok := parsePart(raw)
		if ok {
			parts = append(parts, part)
		}
	}

	return parts, nil
}

// parsePart splits one part's raw bytes (everything between its opening
// delimiter's CRLF and the next delimiter) into headers and content,
// trimming the CRLF that immediately precedes the next boundary.
func parsePart(raw []byte) (Part, bool) {
	sep := []byte("\r\n\r\n")
	sepLen := 4

	idx := bytes.Index(raw, sep)
	if idx < 0 {
		sep = []byte("\n\n")
		sepLen = 2
		idx = bytes.Index(raw, sep)
	}

	if idx < 0 {
		return Part{}, false
	}

	headerBlock := string(raw[:idx])
	content := raw[idx+sepLen:]

	content = bytes.TrimSuffix(content, []byte("\r\n"))
	content = bytes.TrimSuffix(content, []byte("\n"))

	filename, contentType := parsePartHeaders(headerBlock)
	if filename == "" {
		return Part{}, false
	}

	return Part{Filename: filename, ContentType: contentType, Data: content}, true
}

func parsePartHeaders(block string) (filename, contentType string) {
	contentType = "application/octet-stream"

	lines := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")

	for _, l := range lines {
		lower := strings.ToLower(l)

		switch {
		case strings.HasPrefix(lower, "content-disposition:"):
			filename = extractFilename(l)
		case strings.HasPrefix(lower, "content-type:"):
			contentType = strings.TrimSpace(l[len("content-type:"):])
		}
	}

	return filename, contentType
}

func extractFilename(line string) string {
	idx := strings.Index(line, "filename=")
	if idx < 0 {
		return ""
	}

	rest := line[idx+len("filename="):]
	rest = strings.TrimSpace(rest)
	rest = strings.Trim(rest, `"`)

	if i := strings.IndexByte(rest, ';'); i >= 0 {
		rest = strings.TrimSpace(rest[:i])
		rest = strings.Trim(rest, `"`)
	}

	return rest
}
