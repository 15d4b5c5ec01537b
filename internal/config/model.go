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

// Package config holds the in-memory tree of servers and routes produced by
// tokenizing an nginx-style configuration file, plus the lookup used by the
// event loop to resolve an accepted connection to its owning Server.
package config

import (
	libdur "github.com/sabouaram/webserv/duration"
	libsiz "github.com/sabouaram/webserv/size"
)

// DefaultCGITimeout applies to any route with CGI enabled that does not set
// cgi_timeout explicitly.
var DefaultCGITimeout = libdur.Seconds(30)

// Route is a configured path prefix within a Server. Invariants: if CGI is
// true, Interpreter and CGIExt are both non-empty; if Upload is true,
// UploadDir is non-empty.
type Route struct {
	Path             string   `validate:"required"`
	Methods          []string `validate:"required,min=1,dive,oneof=GET POST DELETE"`
	Redirect         string
	Root             string
	DirectoryListing bool
	Index            []string
	CGI              bool
	Interpreter      string
	CGIExt           string
	CGITimeout       libdur.Duration
	Upload           bool
	UploadDir        string
}

// Validate checks the CGI/Upload invariants that the struct tags alone
// cannot express (conditional requiredness).
func (r *Route) Validate() error {
	if r.CGI && (r.Interpreter == "" || r.CGIExt == "") {
		return errInvalidRoute("route " + r.Path + ": cgi_pass requires both cgi_pass and cgi_ext")
	}

	if r.Upload && r.UploadDir == "" {
		return errInvalidRoute("route " + r.Path + ": upload_enable requires upload_store")
	}

	return nil
}

// AllowsMethod reports whether m is in the route's allowed method set.
func (r *Route) AllowsMethod(m string) bool {
	for _, a := range r.Methods {
		if a == m {
			return true
		}
	}

	return false
}

// Server is one `server { }` block: a bound host, one or more listening
// ports, zero or more server names, and an ordered list of routes.
type Server struct {
	Host        string `validate:"required"`
	Ports       []int  `validate:"required,min=1,dive,gt=0,lt=65536"`
	Names       []string
	MaxBodySize libsiz.Size
	ErrorPages  map[int]string
	Routes      []*Route `validate:"dive"`
}

// DefaultMaxBodySize is applied when a server block omits
// client_max_body_size.
const DefaultMaxBodySize = libsiz.SizeMega

// MatchName returns true if name is one of the server's configured names,
// or if the server carries no names at all (matches everything on its
// host:port pair).
func (s *Server) MatchName(name string) bool {
	if len(s.Names) == 0 {
		return true
	}

	for _, n := range s.Names {
		if n == name {
			return true
		}
	}

	return false
}

// ErrorPage returns the configured error-page path for code, if any.
func (s *Server) ErrorPage(code int) (string, bool) {
	p, ok := s.ErrorPages[code]
	return p, ok
}

// Config is the ordered list of Server records parsed from a configuration
// file. Lookup is by (host, port); first declared server on a given
// host:port pair is that pair's default.
type Config struct {
	Servers []*Server `validate:"required,min=1,dive"`
}

// ServerFor resolves the Server that owns a given listener (host, port),
// optionally narrowing by requested server name. If name does not match any
// server bound to that endpoint, the default (first-declared) server for
// the endpoint is returned.
func (c *Config) ServerFor(host string, port int, name string) *Server {
	var def *Server

	for _, s := range c.Servers {
		if s.Host != host && s.Host != "0.0.0.0" {
			continue
		}

		if !hasPort(s.Ports, port) {
			continue
		}

		if def == nil {
			def = s
		}

		if name != "" && s.MatchName(name) {
			return s
		}
	}

	return def
}

// Endpoints returns the distinct (host, port) pairs that must be bound by
// the event loop's Listeners, in first-declaration order.
func (c *Config) Endpoints() []Endpoint {
	var out []Endpoint

	seen := make(map[Endpoint]bool)

	for _, s := range c.Servers {
		for _, p := range s.Ports {
			e := Endpoint{Host: s.Host, Port: p}

			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}

	return out
}

// Endpoint is a (host, port) pair a Listener binds to.
type Endpoint struct {
	Host string
	Port int
}

func hasPort(ports []int, p int) bool {
	for _, x := range ports {
		if x == p {
			return true
		}
	}

	return false
}

type errInvalidRoute string

func (e errInvalidRoute) Error() string { return string(e) }
