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
	"os"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"
	libdur "github.com/sabouaram/webserv/duration"
	libsiz "github.com/sabouaram/webserv/size"
)

// Load reads path, tokenizes it, builds the Config tree and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}

	return Parse(string(raw))
}

// Parse builds a Config from configuration-file source text.
func Parse(src string) (*Config, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}

	cfg := &Config{}

	for !p.at(tokEOF) {
		if p.atWord("server") {
			p.next()

			s, err := p.parseServer()
			if err != nil {
				return nil, err
			}

			cfg.Servers = append(cfg.Servers, s)

			continue
		}

		return nil, p.errf("unexpected token %q, expected 'server'", p.cur().text)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }

func (p *parser) atWord(w string) bool { return p.cur().kind == tokWord && p.cur().text == w }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}

	return t
}

func (p *parser) errf(format string, args ...interface{}) error {
	return fmt.Errorf("config: line %d: %s", p.cur().line, fmt.Sprintf(format, args...))
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if !p.at(k) {
		return token{}, p.errf("expected %s, got %q", what, p.cur().text)
	}

	return p.next(), nil
}

// directiveWords collects every word token up to (not including) the
// terminating ';'.
func (p *parser) directiveWords() ([]string, error) {
	var words []string

	for p.at(tokWord) {
		words = append(words, p.next().text)
	}

	if _, err := p.expect(tokSemicolon, "';'"); err != nil {
		return nil, err
	}

	return words, nil
}

func (p *parser) parseServer() (*Server, error) {
	if _, err := p.expect(tokBraceOpen, "'{'"); err != nil {
		return nil, err
	}

	s := &Server{
		Host:        "0.0.0.0",
		ErrorPages:  map[int]string{},
		MaxBodySize: DefaultMaxBodySize,
	}

	for !p.at(tokBraceClose) {
		if p.at(tokEOF) {
			return nil, p.errf("unterminated server block")
		}

		if p.atWord("location") {
			p.next()

			path, err := p.expect(tokWord, "route path")
			if err != nil {
				return nil, err
			}

			r, err := p.parseLocation(path.text)
			if err != nil {
				return nil, err
			}

			s.Routes = append(s.Routes, r)

			continue
		}

		if !p.at(tokWord) {
			return nil, p.errf("unexpected token %q in server block", p.cur().text)
		}

		directive := p.next().text

		words, err := p.directiveWords()
		if err != nil {
			return nil, err
		}

		if err := applyServerDirective(s, directive, words, p); err != nil {
			return nil, err
		}
	}

	p.next() // consume closing brace

	return s, nil
}

func applyServerDirective(s *Server, directive string, words []string, p *parser) error {
	switch directive {
	case "listen":
		if len(words) != 1 {
			return p.errf("listen expects exactly one argument")
		}

		host, port, err := splitListen(words[0])
		if err != nil {
			return p.errf("%s", err)
		}

		if host != "" {
			s.Host = host
		}

		s.Ports = append(s.Ports, port)
	case "host":
		if len(words) != 1 {
			return p.errf("host expects exactly one argument")
		}

		s.Host = words[0]
	case "server_name":
		s.Names = append(s.Names, words...)
	case "client_max_body_size":
		if len(words) != 1 {
			return p.errf("client_max_body_size expects exactly one argument")
		}

		sz, err := libsiz.Parse(words[0])
		if err != nil {
			return p.errf("invalid client_max_body_size %q: %v", words[0], err)
		}

		s.MaxBodySize = sz
	case "error_page":
		if len(words) != 2 {
			return p.errf("error_page expects <code> <path>")
		}

		code, err := strconv.Atoi(words[0])
		if err != nil {
			return p.errf("invalid error_page code %q", words[0])
		}

		s.ErrorPages[code] = words[1]
	default:
		return p.errf("unknown directive %q", directive)
	}

	return nil
}

func (p *parser) parseLocation(path string) (*Route, error) {
	if _, err := p.expect(tokBraceOpen, "'{'"); err != nil {
		return nil, err
	}

	r := &Route{Path: path, Methods: []string{"GET"}, CGITimeout: DefaultCGITimeout}

	explicitMethods := false

	for !p.at(tokBraceClose) {
		if p.at(tokEOF) {
			return nil, p.errf("unterminated location block")
		}

		if !p.at(tokWord) {
			return nil, p.errf("unexpected token %q in location block", p.cur().text)
		}

		directive := p.next().text

		words, err := p.directiveWords()
		if err != nil {
			return nil, err
		}

		if err := applyRouteDirective(r, directive, words, p, &explicitMethods); err != nil {
			return nil, err
		}
	}

	p.next()

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

func applyRouteDirective(r *Route, directive string, words []string, p *parser, explicitMethods *bool) error {
	switch directive {
	case "allow_methods", "methods":
		r.Methods = nil

		for _, w := range words {
			r.Methods = append(r.Methods, strings.ToUpper(w))
		}

		*explicitMethods = true
	case "return", "redirect":
		if len(words) != 1 {
			return p.errf("%s expects exactly one argument", directive)
		}

		r.Redirect = words[0]
	case "root":
		if len(words) != 1 {
			return p.errf("root expects exactly one argument")
		}

		r.Root = words[0]
	case "autoindex":
		v, err := onOff(words, p)
		if err != nil {
			return err
		}

		r.DirectoryListing = v
	case "index":
		r.Index = append(r.Index, words...)
	case "cgi_pass":
		if len(words) != 1 {
			return p.errf("cgi_pass expects exactly one argument")
		}

		r.Interpreter = words[0]
		r.CGI = true
	case "cgi_ext":
		if len(words) != 1 {
			return p.errf("cgi_ext expects exactly one argument")
		}

		r.CGIExt = words[0]
		r.CGI = true
	case "cgi_timeout":
		if len(words) != 1 {
			return p.errf("cgi_timeout expects exactly one argument")
		}

		d, err := libdur.Parse(words[0])
		if err != nil {
			return p.errf("invalid cgi_timeout %q: %v", words[0], err)
		}

		r.CGITimeout = d
	case "upload_enable":
		v, err := onOff(words, p)
		if err != nil {
			return err
		}

		r.Upload = v
	case "upload_store", "upload_path":
		if len(words) != 1 {
			return p.errf("%s expects exactly one argument", directive)
		}

		r.UploadDir = words[0]
	default:
		return p.errf("unknown directive %q", directive)
	}

	return nil
}

func onOff(words []string, p *parser) (bool, error) {
	if len(words) != 1 {
		return false, p.errf("expected exactly one 'on'/'off' argument")
	}

	switch words[0] {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, p.errf("expected 'on' or 'off', got %q", words[0])
	}
}

// splitListen parses "<port>" or "<host>:<port>".
func splitListen(s string) (host string, port int, err error) {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		host = s[:i]
		s = s[i+1:]
	}

	port, err = strconv.Atoi(s)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen port %q", s)
	}

	return host, port, nil
}

var structValidate = validator.New()

// Validate runs struct-tag validation over the whole config tree plus the
// conditional CGI/Upload invariants per-route.
func Validate(c *Config) error {
	if err := structValidate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for _, s := range c.Servers {
		for _, r := range s.Routes {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
		}
	}

	return nil
}
