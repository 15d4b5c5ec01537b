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
)

// chunkDecoder incrementally decodes a Transfer-Encoding: chunked body
// across Feed calls, each chunk framed as "<hex-size>CRLF<size bytes>CRLF",
// terminated by a "0" size chunk. A chunked body carries no a-priori total
// length, so maxBodySize is enforced against the running total as chunks
// arrive rather than up front.
type chunkDecoder struct {
	pending []byte // undecoded bytes not yet framed into a complete chunk
	done    bool

	maxBodySize uint64
	total       uint64
}

func newChunkDecoder(maxBodySize uint64) *chunkDecoder {
	return &chunkDecoder{maxBodySize: maxBodySize}
}

func (d *chunkDecoder) feed(req *Request, data []byte) (*Request, error) {
	d.pending = append(d.pending, data...)

	for !d.done {
		idx := bytes.Index(d.pending, []byte("\r\n"))
		if idx < 0 {
			return nil, nil
		}

		sizeLine := string(d.pending[:idx])
		if si := bytes.IndexByte([]byte(sizeLine), ';'); si >= 0 {
			sizeLine = sizeLine[:si] // chunk extensions are discarded
		}

		size, err := strconv.ParseInt(sizeLine, 16, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("%w: invalid chunk size", ErrMalformed)
		}

		rest := d.pending[idx+2:]

		if size == 0 {
			// terminator chunk: consume the trailing CRLF if present, else
			// wait for more data.
			if len(rest) < 2 {
				return nil, nil
			}

			d.done = true
			d.pending = rest[2:]

			break
		}

		if d.maxBodySize > 0 && d.total+uint64(size) > d.maxBodySize {
			return nil, ErrBodyTooLarge
		}

		if int64(len(rest)) < size+2 {
			return nil, nil
		}

		req.Body = append(req.Body, rest[:size]...)
		d.total += uint64(size)
		d.pending = rest[size+2:]
	}

	req.Complete = true

	return req, nil
}

// EncodeChunk frames one chunk: hex length, CRLF, bytes, CRLF.
func EncodeChunk(p []byte) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%x\r\n", len(p))
	buf.Write(p)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

// ChunkTerminator is the zero-length terminating chunk frame.
const ChunkTerminator = "0\r\n\r\n"
