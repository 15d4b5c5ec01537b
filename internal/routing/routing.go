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

// Package routing matches a request path against a Server's configured
// routes by longest declared-prefix, falling back to "/" when present.
package routing

import (
	"strings"

	libcfg "github.com/sabouaram/webserv/internal/config"
)

// Match returns the Route whose Path is the longest prefix of path among
// s.Routes. Ties (equal-length prefixes) resolve to the first-declared
// route. If no route's path is a prefix of path, the route declared
// exactly at "/" is returned if one exists; otherwise nil.
func Match(s *libcfg.Server, path string) *libcfg.Route {
	var (
		best    *libcfg.Route
		bestLen = -1
	)

	for _, r := range s.Routes {
		if !isPrefix(r.Path, path) {
			continue
		}

		if len(r.Path) > bestLen {
			best = r
			bestLen = len(r.Path)
		}
	}

	if best != nil {
		return best
	}

	for _, r := range s.Routes {
		if r.Path == "/" {
			return r
		}
	}

	return nil
}

func isPrefix(routePath, reqPath string) bool {
	if routePath == "/" {
		return true
	}

	return strings.HasPrefix(reqPath, routePath)
}

// ResolveFilePath removes route's path prefix from reqPath and joins the
// remainder onto route.Root with exactly one separating '/'.
func ResolveFilePath(route *libcfg.Route, reqPath string) string {
	rest := strings.TrimPrefix(reqPath, route.Path)
	rest = strings.TrimPrefix(rest, "/")

	root := strings.TrimSuffix(route.Root, "/")

	if rest == "" {
		return root
	}

	return root + "/" + rest
}
