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

// Package httpmsg streams raw connection bytes into a parsed Request and
// frames a Response back to wire bytes, per RFC 7230-7231 as narrowed by
// this server (request-line, headers, Content-Length/chunked bodies,
// conditional validators).
package httpmsg

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Limits enforced while parsing a request, per §3 of the design.
const (
	MaxURILength   = 8192
	MaxHeaderLine  = 8192
	MaxHeaderCount = 100
)

// ErrMalformed marks a request that failed to parse (maps to 400).
// ErrTooLarge marks a request whose request-line or headers exceeded a
// fixed protocol limit (maps to 400). ErrBodyTooLarge marks a request whose
// body exceeded the server's configured client_max_body_size (maps to 413)
// and wraps ErrTooLarge, so callers that only care about "too large" can
// still match with errors.Is(err, ErrTooLarge).
var (
	ErrMalformed    = errors.New("httpmsg: malformed request")
	ErrTooLarge     = errors.New("httpmsg: request exceeds a configured limit")
	ErrBodyTooLarge = fmt.Errorf("httpmsg: request body exceeds client_max_body_size: %w", ErrTooLarge)
)

// Request is a fully or partially parsed HTTP request.
type Request struct {
	Method  string
	URI     string
	Path    string
	Query   string
	Version string

	headers map[string]string

	Body     []byte
	Complete bool
	Chunked  bool
}

// Header returns the canonicalized (lower-cased) header value and whether it
// was present.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// Headers returns the canonicalized name->value map. Callers must not
// mutate it.
func (r *Request) Headers() map[string]string {
	return r.headers
}

// IsMultipart reports whether Content-Type declares multipart/form-data.
func (r *Request) IsMultipart() bool {
	ct, _ := r.Header("content-type")
	return strings.Contains(strings.ToLower(ct), "multipart/form-data")
}

// MultipartBoundary extracts the boundary= parameter from Content-Type,
// with surrounding quotes stripped. Returns "" if absent.
func (r *Request) MultipartBoundary() string {
	ct, ok := r.Header("content-type")
	if !ok {
		return ""
	}

	idx := strings.Index(ct, "boundary=")
	if idx < 0 {
		return ""
	}

	b := ct[idx+len("boundary="):]
	if i := strings.IndexByte(b, ';'); i >= 0 {
		b = b[:i]
	}

	b = strings.TrimSpace(b)
	b = strings.Trim(b, `"`)

	return b
}

// IsFormURLEncoded reports whether Content-Type is
// application/x-www-form-urlencoded.
func (r *Request) IsFormURLEncoded() bool {
	ct, _ := r.Header("content-type")
	return strings.Contains(strings.ToLower(ct), "application/x-www-form-urlencoded")
}

// FormData parses the body as application/x-www-form-urlencoded, returning
// an ordered slice of (key, value) pairs (ordering mirrors first
// occurrence).
func (r *Request) FormData() []KV {
	return ParseQueryString(string(r.Body))
}

// QueryParam lazily decodes the query string and returns the first value
// for key.
func (r *Request) QueryParam(key string) (string, bool) {
	for _, kv := range ParseQueryString(r.Query) {
		if kv.Key == key {
			return kv.Value, true
		}
	}

	return "", false
}

// KV is an ordered key/value pair, used for query-string and
// form-urlencoded data where declaration order matters and keys may repeat.
type KV struct {
	Key   string
	Value string
}

// ParseQueryString decodes a `k=v&k2=v2` query/body string into ordered
// pairs, '+' decoded as space and %HH escapes decoded as bytes.
func ParseQueryString(s string) []KV {
	var out []KV

	if s == "" {
		return out
	}

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}

		var k, v string

		if i := strings.IndexByte(pair, '='); i >= 0 {
			k, v = pair[:i], pair[i+1:]
		} else {
			k = pair
		}

		out = append(out, KV{Key: URLDecode(k), Value: URLDecode(v)})
	}

	return out
}

// parseState tracks which phase of the wire stream a Parser is in.
type parseState uint8

const (
	stateHeaders parseState = iota
	stateBody
	stateDone
)

// Parser incrementally parses one request from a byte stream that may
// arrive across multiple Feed calls (one per readable event on a
// Connection).
type Parser struct {
	state parseState

	headerAcc []byte

	req *Request

	contentLen int
	bodyAcc    []byte

	chunk *chunkDecoder

	// maxBodySize rejects a request whose body (declared via
	// Content-Length, or accumulated while streaming a chunked body)
	// exceeds it. Zero means unlimited.
	maxBodySize uint64
}

// NewParser returns a Parser ready to consume the first byte of a request.
// maxBodySize, when non-zero, rejects with ErrBodyTooLarge (mapped to 413 by
// the caller) as soon as the body is known or observed to exceed it, rather than
// buffering the full oversized body first.
func NewParser(maxBodySize uint64) *Parser {
	return &Parser{state: stateHeaders, maxBodySize: maxBodySize}
}

// Feed appends newly-read bytes and attempts to make progress. It returns
// a non-nil *Request with Complete=true once the whole request (headers +
// body) has been parsed, or a non-nil error if the request is malformed or
// exceeds a limit (the caller responds 413 for ErrBodyTooLarge, 400 for
// any other error, and closes). A nil Request and
// nil error means "need more data".
func (p *Parser) Feed(data []byte) (*Request, error) {
	switch p.state {
	case stateHeaders:
		return p.feedHeaders(data)
	case stateBody:
		return p.feedBody(data)
	default:
		return p.req, nil
	}
}

func (p *Parser) feedHeaders(data []byte) (*Request, error) {
	p.headerAcc = append(p.headerAcc, data...)

	idx := bytes.Index(p.headerAcc, []byte("\r\n\r\n"))
	if idx < 0 {
		if err := checkPartialHeaderLimits(p.headerAcc); err != nil {
			return nil, err
		}

		return nil, nil
	}

	req, err := parseHeaderBlock(p.headerAcc[:idx])
	if err != nil {
		return nil, err
	}

	p.req = req

	rest := p.headerAcc[idx+4:]
	p.headerAcc = nil

	if te, ok := req.Header("transfer-encoding"); ok && strings.Contains(strings.ToLower(te), "chunked") {
		req.Chunked = true
		p.state = stateBody
		p.chunk = newChunkDecoder(p.maxBodySize)

		return p.chunk.feed(req, rest)
	}

	if cl, ok := req.Header("content-length"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid content-length", ErrMalformed)
		}

		if p.maxBodySize > 0 && uint64(n) > p.maxBodySize {
			return nil, ErrBodyTooLarge
		}

		p.contentLen = n
		p.state = stateBody
		p.bodyAcc = append(p.bodyAcc, rest...)

		return p.tryContentLength()
	}

	req.Complete = true
	p.state = stateDone

	return req, nil
}

func (p *Parser) feedBody(data []byte) (*Request, error) {
	if p.req.Chunked {
		return p.chunk.feed(p.req, data)
	}

	p.bodyAcc = append(p.bodyAcc, data...)

	return p.tryContentLength()
}

func (p *Parser) tryContentLength() (*Request, error) {
	if len(p.bodyAcc) < p.contentLen {
		return nil, nil
	}

	p.req.Body = p.bodyAcc[:p.contentLen]
	p.req.Complete = true
	p.state = stateDone

	return p.req, nil
}

// checkPartialHeaderLimits rejects input early when any already-accumulated
// line exceeds MaxHeaderLine or the accumulated line count exceeds
// MaxHeaderCount + 1 (request line), without waiting for CRLFCRLF.
func checkPartialHeaderLimits(acc []byte) error {
	lines := bytes.Split(acc, []byte("\r\n"))

	// The last element is a partial (possibly empty) line still being
	// accumulated; only fully terminated lines count toward the limit.
	complete := lines
	if len(complete) > 0 {
		complete = complete[:len(complete)-1]
	}

	if len(complete) > MaxHeaderCount+1 {
		return fmt.Errorf("%w: too many header lines", ErrTooLarge)
	}

	for _, l := range lines {
		if len(l) > MaxHeaderLine {
			return fmt.Errorf("%w: header line too long", ErrTooLarge)
		}
	}

	return nil
}

func parseHeaderBlock(block []byte) (*Request, error) {
	lines := bytes.Split(block, []byte("\r\n"))
	if len(lines) == 0 || len(lines[0]) == 0 {
		return nil, fmt.Errorf("%w: empty request", ErrMalformed)
	}

	reqLine := string(lines[0])

	parts := strings.Split(reqLine, " ")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed request line", ErrMalformed)
	}

	method, target, version := parts[0], parts[1], parts[2]

	if len(target) > MaxURILength {
		return nil, fmt.Errorf("%w: uri too long", ErrTooLarge)
	}

	path, query := target, ""
	if i := strings.IndexByte(target, '?'); i >= 0 {
		path, query = target[:i], target[i+1:]
	}

	req := &Request{
		Method:  method,
		URI:     target,
		Path:    URLDecode(path),
		Query:   query,
		Version: version,
		headers: make(map[string]string),
	}

	headerLines := lines[1:]

	if len(headerLines) > MaxHeaderCount {
		return nil, fmt.Errorf("%w: too many header lines", ErrTooLarge)
	}

	for _, l := range headerLines {
		if len(l) == 0 {
			continue
		}

		if len(l) > MaxHeaderLine {
			return nil, fmt.Errorf("%w: header line too long", ErrTooLarge)
		}

		name, value, err := parseHeaderLine(string(l))
		if err != nil {
			return nil, err
		}

		req.headers[strings.ToLower(name)] = value
	}

	return req, nil
}

func parseHeaderLine(l string) (name, value string, err error) {
	i := strings.IndexByte(l, ':')
	if i < 0 {
		return "", "", fmt.Errorf("%w: malformed header line %q", ErrMalformed, l)
	}

	name = l[:i]
	value = strings.Trim(l[i+1:], " \t")

	return name, value, nil
}
