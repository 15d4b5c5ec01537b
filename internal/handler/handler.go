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

// Package handler dispatches a parsed Request, matched to a Route, to the
// method-specific logic that serves static files, directory listings,
// uploads, deletes, or invokes a CGI script, and produces a Response.
package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	libcgi "github.com/sabouaram/webserv/internal/cgi"
	libcfg "github.com/sabouaram/webserv/internal/config"
	libhttp "github.com/sabouaram/webserv/internal/httpmsg"
	libmpt "github.com/sabouaram/webserv/internal/multipart"
	librte "github.com/sabouaram/webserv/internal/routing"
)

// Handle is the top-level dispatch entry point: method validity, route
// match, method-allowed check, redirect, then method-specific handling.
func Handle(req *libhttp.Request, srv *libcfg.Server) *libhttp.Response {
	if req.Method != "GET" && req.Method != "POST" && req.Method != "DELETE" {
		return libhttp.ErrorResponse(501, "")
	}

	// client_max_body_size is enforced earlier, while the body is streamed
	// in off the wire (internal/httpmsg.Parser, wired with
	// srv.MaxBodySize in internal/server.NewConnection) — a request never
	// reaches Handle with an oversized Body.
	route := librte.Match(srv, req.Path)
	if route == nil {
		return libhttp.ErrorResponse(404, "")
	}

	if !route.AllowsMethod(req.Method) {
		return libhttp.ErrorResponse(405, "")
	}

	if route.Redirect != "" {
		return libhttp.Redirect(route.Redirect, 301)
	}

	switch req.Method {
	case "GET":
		return handleGET(req, srv, route)
	case "POST":
		return handlePOST(req, srv, route)
	case "DELETE":
		return handleDELETE(req, route)
	default:
		return libhttp.ErrorResponse(501, "")
	}
}

func resolvedPath(route *libcfg.Route, reqPath string) string {
	return librte.ResolveFilePath(route, reqPath)
}

func isCGITarget(route *libcfg.Route, fsPath string) bool {
	return route.CGI && filepath.Ext(fsPath) == route.CGIExt
}

func invokeCGI(req *libhttp.Request, srv *libcfg.Server, route *libcfg.Route, fsPath string) *libhttp.Response {
	port := 0
	if len(srv.Ports) > 0 {
		port = srv.Ports[0]
	}

	name := srv.Host
	if len(srv.Names) > 0 {
		name = srv.Names[0]
	}

	doc, err := libcgi.Execute(libcgi.Request{
		Method:     req.Method,
		RequestURI: req.URI,
		Path:       req.Path,
		Query:      req.Query,
		Version:    req.Version,
		Headers:    req.Headers(),
		Body:       req.Body,
	}, libcgi.Env{
		ServerPort:  port,
		ServerName:  name,
		ScriptPath:  fsPath,
		Interpreter: route.Interpreter,
		Timeout:     route.CGITimeout.Time(),
	})
	if err != nil {
		if libcgi.IsTimeout(err) {
			return libhttp.ErrorResponse(500, "CGI timeout")
		}

		return libhttp.ErrorResponse(500, "CGI execution failed")
	}

	resp := libhttp.NewResponse(doc.StatusCode)
	resp.SetHeader("Content-Type", doc.ContentType)

	for name, value := range doc.Headers {
		resp.SetHeader(name, value)
	}

	resp.SetBody(doc.Body)

	return resp
}

func handleGET(req *libhttp.Request, srv *libcfg.Server, route *libcfg.Route) *libhttp.Response {
	fsPath := resolvedPath(route, req.Path)

	if isCGITarget(route, fsPath) {
		return invokeCGI(req, srv, route, fsPath)
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		return libhttp.ErrorResponse(404, "")
	}

	if info.IsDir() {
		for _, idx := range route.Index {
			candidate := filepath.Join(fsPath, idx)

			if ci, err := os.Stat(candidate); err == nil && !ci.IsDir() {
				fsPath = candidate
				info = ci

				break
			}
		}
	}

	if info.IsDir() {
		if !route.DirectoryListing {
			return libhttp.ErrorResponse(403, "")
		}

		return directoryListing(req.Path, fsPath)
	}

	return serveFile(req, fsPath, info)
}

func handlePOST(req *libhttp.Request, srv *libcfg.Server, route *libcfg.Route) *libhttp.Response {
	fsPath := resolvedPath(route, req.Path)

	if isCGITarget(route, fsPath) {
		return invokeCGI(req, srv, route, fsPath)
	}

	if info, err := os.Stat(fsPath); err == nil && !info.IsDir() && libhttp.IsStaticExtension(filepath.Ext(fsPath)) {
		return libhttp.ErrorResponse(405, "")
	}

	if req.IsMultipart() {
		if !route.Upload {
			return libhttp.ErrorResponse(403, "")
		}

		return handleUpload(req, route)
	}

	if req.IsFormURLEncoded() {
		return echoForm(req)
	}

	body := fmt.Sprintf("<html><body><h1>Received</h1><p>%d bytes</p></body></html>", len(req.Body))
	resp := libhttp.NewResponse(200)
	resp.SetHeader("Content-Type", "text/html")
	resp.SetBody([]byte(body))

	return resp
}

func handleDELETE(req *libhttp.Request, route *libcfg.Route) *libhttp.Response {
	fsPath := resolvedPath(route, req.Path)

	info, err := os.Stat(fsPath)
	if err != nil {
		return libhttp.ErrorResponse(404, "")
	}

	if info.IsDir() {
		return libhttp.ErrorResponse(403, "")
	}

	if !hasWritePermission(fsPath) {
		return libhttp.ErrorResponse(403, "")
	}

	if err := os.Remove(fsPath); err != nil {
		return libhttp.ErrorResponse(403, "")
	}

	return libhttp.NewResponse(204)
}

// hasWritePermission checks both the file's own write bit and its parent
// directory's, racing the subsequent os.Remove (TOCTOU, documented and
// accepted for a teaching server rather than hidden behind a false sense
// of atomicity).
func hasWritePermission(path string) bool {
	if info, err := os.Stat(path); err == nil {
		if info.Mode().Perm()&0o200 == 0 {
			return false
		}
	}

	dir, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return false
	}

	return dir.Mode().Perm()&0o200 != 0
}

func nowEpoch() int64 {
	return time.Now().Unix()
}

func echoForm(req *libhttp.Request) *libhttp.Response {
	var b strings.Builder

	b.WriteString("<html><body><h1>Form received</h1><ul>")

	for _, kv := range req.FormData() {
		fmt.Fprintf(&b, "<li>%s = %s</li>", kv.Key, kv.Value)
	}

	b.WriteString("</ul></body></html>")

	resp := libhttp.NewResponse(200)
	resp.SetHeader("Content-Type", "text/html")
	resp.SetBody([]byte(b.String()))

	return resp
}

func handleUpload(req *libhttp.Request, route *libcfg.Route) *libhttp.Response {
	boundary := req.MultipartBoundary()

	parts, err := libmpt.Decode(req.Body, boundary)
	if err != nil {
		return libhttp.ErrorResponse(400, "malformed multipart body")
	}

	if err := os.MkdirAll(route.UploadDir, 0o755); err != nil {
		return libhttp.ErrorResponse(500, "cannot create upload directory")
	}

	var saved []string

	for _, p := range parts {
		name := strconv.FormatInt(nowEpoch(), 10) + "_" + p.Filename
		path := filepath.Join(route.UploadDir, name)

		if err := os.WriteFile(path, p.Data, 0o644); err != nil {
			return libhttp.ErrorResponse(500, "failed to save upload")
		}

		saved = append(saved, path)
	}

	var b strings.Builder

	b.WriteString("<html><body><h1>Uploaded</h1><ul>")

	for _, s := range saved {
		fmt.Fprintf(&b, "<li>%s</li>", s)
	}

	b.WriteString("</ul></body></html>")

	resp := libhttp.NewResponse(201)
	resp.SetHeader("Content-Type", "text/html")
	resp.SetBody([]byte(b.String()))

	return resp
}
