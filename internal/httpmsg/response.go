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

package httpmsg

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// headerPair preserves header insertion order on the wire, unlike a plain
// map.
type headerPair struct {
	Name  string
	Value string
}

// Response is a structured HTTP response built by the request handler and
// framed to wire bytes by WriteTo.
type Response struct {
	Code       int
	StatusText string
	headers    []headerPair
	Body       []byte
	Chunked    bool
}

// NewResponse builds a Response for code with the default reason phrase.
func NewResponse(code int) *Response {
	return &Response{Code: code, StatusText: StatusText(code)}
}

// SetHeader sets (replacing any prior value) a response header.
func (r *Response) SetHeader(name, value string) {
	for i, h := range r.headers {
		if h.Name == name {
			r.headers[i].Value = value
			return
		}
	}

	r.headers = append(r.headers, headerPair{name, value})
}

// RemoveHeader deletes a response header if present.
func (r *Response) RemoveHeader(name string) {
	for i, h := range r.headers {
		if h.Name == name {
			r.headers = append(r.headers[:i], r.headers[i+1:]...)
			return
		}
	}
}

// SetBody sets the body and the Content-Length header, unless the chunked
// flag is set (in which case Content-Length is omitted and
// Transfer-Encoding: chunked is emitted instead).
func (r *Response) SetBody(body []byte) {
	r.Body = body

	if r.Chunked {
		r.RemoveHeader("Content-Length")
		r.SetHeader("Transfer-Encoding", "chunked")
	} else {
		r.SetHeader("Content-Length", strconv.Itoa(len(body)))
	}
}

// SetChunked toggles chunked framing; see SetBody for the header
// consequence on the next SetBody call.
func (r *Response) SetChunked(c bool) {
	r.Chunked = c

	if c {
		r.RemoveHeader("Content-Length")
		r.SetHeader("Transfer-Encoding", "chunked")
	} else {
		r.RemoveHeader("Transfer-Encoding")
	}
}

// SetLastModified emits an RFC 7231 GMT date for mtime.
func (r *Response) SetLastModified(mtime time.Time) {
	r.SetHeader("Last-Modified", mtime.UTC().Format(http1TimeFormat))
}

// SetETag emits tag double-quoted.
func (r *Response) SetETag(tag string) {
	r.SetHeader("ETag", `"`+tag+`"`)
}

// SetCacheControl emits value verbatim.
func (r *Response) SetCacheControl(value string) {
	r.SetHeader("Cache-Control", value)
}

// SetKeepAlive writes Connection: keep-alive or close.
func (r *Response) SetKeepAlive(keep bool) {
	if keep {
		r.SetHeader("Connection", "keep-alive")
	} else {
		r.SetHeader("Connection", "close")
	}
}

const http1TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// WriteTo frames the response to wire bytes: status line, headers in
// insertion order, blank line, body (or chunk frames when Chunked).
func (r *Response) WriteTo(buf *bytes.Buffer) {
	if r.StatusText == "" {
		r.StatusText = StatusText(r.Code)
	}

	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", r.Code, r.StatusText)

	for _, h := range r.headers {
		fmt.Fprintf(buf, "%s: %s\r\n", h.Name, h.Value)
	}

	buf.WriteString("\r\n")

	if r.Chunked {
		if len(r.Body) > 0 {
			buf.Write(EncodeChunk(r.Body))
		}

		buf.WriteString(ChunkTerminator)
	} else {
		buf.Write(r.Body)
	}
}

// Bytes returns the fully framed response.
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	r.WriteTo(&buf)

	return buf.Bytes()
}

// ErrorResponse builds a small HTML error page for code, with an optional
// extra message appended.
func ErrorResponse(code int, message string) *Response {
	r := NewResponse(code)

	body := fmt.Sprintf("<html><head><title>%d %s</title></head><body><h1>%d %s</h1>",
		code, r.StatusText, code, r.StatusText)

	if message != "" {
		body += fmt.Sprintf("<p>%s</p>", message)
	}

	body += "</body></html>"

	r.SetHeader("Content-Type", "text/html")
	r.SetBody([]byte(body))

	return r
}

// Redirect builds a 30x response with a Location header and a small HTML
// body. code defaults to 302 when 0.
func Redirect(location string, code int) *Response {
	if code == 0 {
		code = 302
	}

	r := NewResponse(code)
	r.SetHeader("Location", location)
	r.SetHeader("Content-Type", "text/html")
	r.SetBody([]byte(fmt.Sprintf(`<html><body>Redirecting to <a href="%s">%s</a></body></html>`, location, location)))

	return r
}
