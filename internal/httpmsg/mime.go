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

import "strings"

// mimeTypes is the process-wide immutable extension -> Content-Type table.
var mimeTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".svg":  "image/svg+xml",
	".xml":  "application/xml",
}

// DefaultContentType is used when no extension match is found.
const DefaultContentType = "application/octet-stream"

// MIMEType returns the Content-Type registered for a file extension
// (matched case-insensitively, leading dot required), or
// DefaultContentType if unregistered.
func MIMEType(ext string) string {
	if t, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return t
	}

	return DefaultContentType
}

// staticExtensions is the set of file extensions the POST handler refuses
// with 405 when the resolved path is an existing regular (non-CGI) file.
var staticExtensions = map[string]bool{
	".html": true, ".htm": true, ".css": true, ".js": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".txt": true, ".pdf": true, ".ico": true,
}

// IsStaticExtension reports whether ext is in the POST-rejected static set.
func IsStaticExtension(ext string) bool {
	return staticExtensions[strings.ToLower(ext)]
}
