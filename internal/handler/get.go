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

package handler

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	libhex "github.com/sabouaram/webserv/encoding/hexa"
	libhttp "github.com/sabouaram/webserv/internal/httpmsg"
)

// serveFile reads fsPath entirely and builds a 200 response with
// conditional-GET short-circuiting via If-None-Match against the
// hex(inode)-hex(mtime)-hex(size) ETag.
func serveFile(req *libhttp.Request, fsPath string, info os.FileInfo) *libhttp.Response {
	etag := computeETag(info)

	if inm, ok := req.Header("If-None-Match"); ok && inm == `"`+etag+`"` {
		resp := libhttp.NewResponse(304)
		resp.SetETag(etag)

		return resp
	}

	data, err := os.ReadFile(fsPath)
	if err != nil {
		return libhttp.ErrorResponse(404, "")
	}

	resp := libhttp.NewResponse(200)
	resp.SetHeader("Content-Type", libhttp.MIMEType(filepath.Ext(fsPath)))
	resp.SetLastModified(info.ModTime())
	resp.SetETag(etag)
	resp.SetCacheControl("public, max-age=3600")
	resp.SetBody(data)

	return resp
}

// computeETag builds hex(inode)-hex(mtime)-hex(size), per the glossary
// definition. Falls back to a zero inode on platforms where the raw stat
// isn't a *syscall.Stat_t (none targeted by this server, but kept
// defensive rather than panicking).
func computeETag(info os.FileInfo) string {
	var inode uint64

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		inode = st.Ino
	}

	coder := libhex.New()
	field := func(v uint64) string {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)

		return string(coder.Encode(b[:]))
	}

	return field(inode) + "-" + field(uint64(info.ModTime().Unix())) + "-" + field(uint64(info.Size()))
}

// directoryListing renders the HTML index of a directory: header, a
// leading "../" entry unless requestPath is "/", then each remaining
// entry (directories rendered with a trailing slash), footer. Entries are
// listed in byte-wise name order.
func directoryListing(requestPath, fsPath string) *libhttp.Response {
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		return libhttp.ErrorResponse(403, "")
	}

	var b strings.Builder

	fmt.Fprintf(&b, "<html><head><title>Index of %s</title></head><body>", requestPath)
	fmt.Fprintf(&b, "<h1>Index of %s</h1><hr><ul>", requestPath)

	if requestPath != "/" {
		b.WriteString(`<li><a href="../">../</a></li>`)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." {
			continue
		}

		names = append(names, e.Name())
	}

	// The on-disk scan is not otherwise ordered; keep it stable byte-wise
	// so repeated listings of the same directory render identically.
	sort.Strings(names)

	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		byName[e.Name()] = e
	}

	for _, name := range names {
		e := byName[name]

		display := name
		if e.IsDir() {
			display += "/"
		}

		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, display, display)
	}

	b.WriteString("</ul><hr><p>webserv/1.0</p></body></html>")

	resp := libhttp.NewResponse(200)
	resp.SetHeader("Content-Type", "text/html")
	resp.SetBody([]byte(b.String()))

	return resp
}
