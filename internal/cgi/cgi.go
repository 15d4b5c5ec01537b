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

// Package cgi executes CGI scripts per RFC 3875: it builds the gateway
// environment, forks the interpreter, pipes the request body to its stdin
// and the response document from its stdout, and enforces a per-route
// supervision deadline (cgi_timeout in the configuration, DefaultTimeout
// otherwise).
//
// The server is otherwise a single goroutine driving a readiness-multiplexed
// event loop (see internal/server); this package is the one carve-out.
// Writing the request body to the child's stdin from the same goroutine
// that then reads the child's stdout risks the classic pipe-buffer
// deadlock described in the CGI timeout design note: a script that writes
// more than the pipe's capacity (64 KiB on Linux) before it has consumed
// all of stdin will block on write while the supervisor blocks waiting to
// finish writing stdin before it starts reading stdout. Run writes on a
// dedicated goroutine per in-flight request and join it before the
// deadline completes.
package cgi

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	libdur "github.com/sabouaram/webserv/duration"
	librun "github.com/sabouaram/webserv/runner"
)

// DefaultTimeout is the wall-clock deadline from fork to child exit applied
// when an Env does not set Timeout.
var DefaultTimeout = libdur.Seconds(30).Time()

// readChunk bounds each read from the child's stdout, mirroring the
// source's 4 KiB polling granularity.
const readChunk = 4096

// Request is the subset of request data the CGI environment and stdin
// piping need; it is deliberately decoupled from httpmsg.Request so this
// package has no import-cycle dependency on the request parser.
type Request struct {
	Method     string
	RequestURI string
	Path       string
	Query      string
	Version    string
	Headers    map[string]string
	Body       []byte
}

// Env describes the server-side context the gateway variables are derived
// from.
type Env struct {
	ServerPort  int
	ServerName  string
	ScriptPath  string // resolved filesystem path to the script
	Interpreter string
	Timeout     time.Duration // falls back to DefaultTimeout when zero
}

// Document is a parsed CGI output: recognized Status/Content-Type headers
// plus every other header passed through verbatim, and the body.
type Document struct {
	StatusCode  int
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// Execute runs the CGI script described by env for req and returns its
// parsed output document, or an error when the process could not be
// started, produced no output, or exceeded Timeout.
func Execute(req Request, env Env) (*Document, error) {
	cmd := exec.Command(env.Interpreter, filepath.Base(env.ScriptPath))
	cmd.Dir = filepath.Dir(env.ScriptPath)
	cmd.Env = buildEnviron(req, env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("cgi: stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cgi: stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cgi: start: %w", err)
	}

	timeout := env.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	deadline := time.Now().Add(timeout)

	var (
		wg       sync.WaitGroup
		writeErr error
	)

	wg.Add(1)

	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				librun.RecoveryCaller("internal/cgi.Execute.stdinWriter", rec)
			}
		}()
		defer stdin.Close()

		if len(req.Body) > 0 {
			_, writeErr = stdin.Write(req.Body)
		}
	}()

	out, readErr := readWithDeadline(stdout, deadline)

	if readErr != nil {
		// Kill first: a child that never reads stdin would otherwise keep
		// the writer goroutine, and so wg.Wait, blocked forever.
		_ = cmd.Process.Kill()
		wg.Wait()
		_, _ = cmd.Process.Wait()

		return nil, readErr
	}

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("cgi: wait: %w", err)
		}
	}

	if writeErr != nil && len(out) == 0 {
		return nil, fmt.Errorf("cgi: writing request body: %w", writeErr)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("cgi: empty output")
	}

	return parseDocument(out), nil
}

// readWithDeadline polls the child's stdout in readChunk increments,
// returning errTimeout if deadline elapses first. When r supports read
// deadlines (the *os.File of a child's stdout pipe does), a Read that is
// still blocked at the deadline is interrupted as well.
func readWithDeadline(r interface{ Read([]byte) (int, error) }, deadline time.Time) ([]byte, error) {
	var out bytes.Buffer

	buf := make([]byte, readChunk)

	if d, ok := r.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = d.SetReadDeadline(deadline)
	}

	for {
		if time.Now().After(deadline) {
			return nil, errTimeout
		}

		n, err := r.Read(buf)

		if n > 0 {
			out.Write(buf[:n])
		}

		if err != nil {
			if os.IsTimeout(err) {
				return nil, errTimeout
			}

			return out.Bytes(), nil
		}
	}
}

var errTimeout = fmt.Errorf("cgi: timeout")

// IsTimeout reports whether err is the CGI supervision deadline error,
// which the caller maps to a 500 response distinct from other CGI
// failures.
func IsTimeout(err error) bool {
	return err == errTimeout
}

// buildEnviron constructs the RFC 3875 environment as a flat NAME=VALUE
// slice suitable for exec.Cmd.Env.
func buildEnviron(req Request, env Env) []string {
	m := map[string]string{
		"REQUEST_METHOD":    req.Method,
		"SERVER_PROTOCOL":   req.Version,
		"REQUEST_URI":       req.RequestURI,
		"QUERY_STRING":      req.Query,
		"SERVER_PORT":       serverPort(env.ServerPort),
		"SERVER_NAME":       env.ServerName,
		"SERVER_SOFTWARE":   "webserv/1.0",
		"GATEWAY_INTERFACE": "CGI/1.1",
		"SCRIPT_FILENAME":   env.ScriptPath,
		"SCRIPT_NAME":       filepath.Base(env.ScriptPath),
		"PATH_INFO":         req.Path,
		"PATH_TRANSLATED":   env.ScriptPath,
		"CONTENT_LENGTH":    strconv.Itoa(len(req.Body)),
		"REMOTE_ADDR":       "127.0.0.1",
		"REMOTE_HOST":       "localhost",
	}

	if ct, ok := req.Headers["content-type"]; ok {
		m["CONTENT_TYPE"] = ct
	}

	for name, value := range req.Headers {
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))

		if key == "HTTP_CONTENT_TYPE" || key == "HTTP_CONTENT_LENGTH" {
			continue
		}

		m[key] = value
	}

	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}

	return out
}

func serverPort(p int) string {
	if p == 0 {
		return "8080"
	}

	return strconv.Itoa(p)
}

// parseDocument splits raw CGI output on the first CRLFCRLF (LF LF
// tolerated) into headers and body. Absent separator, the whole output is
// the body with a default Content-Type and status 200.
func parseDocument(raw []byte) *Document {
	sep := []byte("\r\n\r\n")
	sepLen := 4

	idx := bytes.Index(raw, sep)
	if idx < 0 {
		sep = []byte("\n\n")
		sepLen = 2
		idx = bytes.Index(raw, sep)
	}

	if idx < 0 {
		return &Document{
			StatusCode:  200,
			ContentType: "text/html",
			Headers:     map[string]string{},
			Body:        raw,
		}
	}

	headerBlock := string(raw[:idx])
	body := raw[idx+sepLen:]

	doc := &Document{StatusCode: 200, ContentType: "", Headers: map[string]string{}, Body: body}

	lines := strings.Split(strings.ReplaceAll(headerBlock, "\r\n", "\n"), "\n")

	for _, l := range lines {
		if l == "" {
			continue
		}

		i := strings.IndexByte(l, ':')
		if i < 0 {
			continue
		}

		name := strings.TrimSpace(l[:i])
		value := strings.TrimSpace(l[i+1:])

		switch strings.ToLower(name) {
		case "status":
			fields := strings.SplitN(value, " ", 2)

			if code, err := strconv.Atoi(fields[0]); err == nil {
				doc.StatusCode = code
			}
			// reason phrase (fields[1], if present) is discarded; the
			// status table supplies the reason on the wire.
		case "content-type":
			doc.ContentType = value
		default:
			doc.Headers[name] = value
		}
	}

	if doc.ContentType == "" {
		doc.ContentType = "text/html"
	}

	return doc
}
