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

package server

import (
	"bytes"
	"errors"
	"time"

	"golang.org/x/sys/unix"

	libcfg "github.com/sabouaram/webserv/internal/config"
	libhttp "github.com/sabouaram/webserv/internal/httpmsg"
)

// State is a Connection's position in its read/process/write/close state
// machine.
type State uint8

const (
	ReadingRequest State = iota
	Processing
	WritingResponse
	Closing
)

// readChunkSize bounds a single non-blocking read, matching the source's
// 4 KiB-per-call framing.
const readChunkSize = 4096

// idleTimeout is the inactivity window after which the reaper closes a
// Connection.
const idleTimeout = 60 * time.Second

// Connection is a per-client state machine: read/write buffers, owning
// Server, and a timeout clock. The fd is exclusively owned by the
// Connection and is closed exactly once on destruction.
type Connection struct {
	FD   int
	Peer string

	Server *libcfg.Server

	state State

	parser *libhttp.Parser

	outBuf      []byte
	outOff      int
	shouldClose bool

	lastActivity time.Time
}

// NewConnection wraps an accepted fd in a Connection with ReadingRequest
// as its initial state.
func NewConnection(fd int, peer string, srv *libcfg.Server) *Connection {
	return &Connection{
		FD:           fd,
		Peer:         peer,
		Server:       srv,
		state:        ReadingRequest,
		parser:       libhttp.NewParser(srv.MaxBodySize.Uint64()),
		lastActivity: time.Now(),
	}
}

// State returns the connection's current state.
func (c *Connection) State() State { return c.state }

// ShouldClose reports whether the connection is ready to be reaped.
// Monotonic: once true, never reverts to false.
func (c *Connection) ShouldClose() bool { return c.shouldClose }

// Interest reports which readiness events the event loop should poll for,
// given the connection's current state.
func (c *Connection) Interest() (readable, writable bool) {
	switch c.state {
	case ReadingRequest:
		return true, false
	case WritingResponse:
		return false, true
	case Processing:
		return true, true
	default:
		return false, false
	}
}

// OnReadable is invoked when the fd is readable in ReadingRequest state:
// reads up to readChunkSize bytes and feeds the parser. A complete request
// is dispatched to the handler; a malformed one gets a 400 error response
// (413 when the body exceeds the size limit). Either way the connection
// transitions to WritingResponse and closes once the response is written.
func (c *Connection) OnReadable(dispatch func(*libhttp.Request, *libcfg.Server) *libhttp.Response) {
	buf := make([]byte, readChunkSize)

	n, err := unix.Read(c.FD, buf)

	if n == 0 && err == nil {
		c.shouldClose = true
		c.state = Closing

		return
	}

	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}

		c.shouldClose = true
		c.state = Closing

		return
	}

	c.lastActivity = time.Now()

	req, perr := c.parser.Feed(buf[:n])

	if perr != nil {
		status := 400
		if errors.Is(perr, libhttp.ErrBodyTooLarge) {
			status = 413
		}

		c.setResponse(libhttp.ErrorResponse(status, ""))

		return
	}

	if req == nil {
		return
	}

	resp := dispatch(req, c.Server)
	c.setResponse(resp)
}

func (c *Connection) setResponse(resp *libhttp.Response) {
	resp.SetKeepAlive(false)

	var buf bytes.Buffer
	resp.WriteTo(&buf)

	c.outBuf = buf.Bytes()
	c.outOff = 0
	c.state = WritingResponse
}

// OnWritable is invoked when the fd is writable in WritingResponse state:
// advances the write offset; once the whole buffer has been sent,
// transitions to Closing (the design always closes after one response —
// keep-alive is parsed but not honored).
func (c *Connection) OnWritable() {
	n, err := unix.Write(c.FD, c.outBuf[c.outOff:])

	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}

		c.shouldClose = true
		c.state = Closing

		return
	}

	c.lastActivity = time.Now()
	c.outOff += n

	if c.outOff >= len(c.outBuf) {
		c.state = Closing
		c.shouldClose = true
	}
}

// Idle reports whether the connection has been inactive longer than
// idleTimeout as of now.
func (c *Connection) Idle(now time.Time) bool {
	return now.Sub(c.lastActivity) > idleTimeout
}

// Close releases the fd. Safe to call once; the event loop guarantees it
// is invoked exactly once per Connection.
func (c *Connection) Close() error {
	return unix.Close(c.FD)
}
