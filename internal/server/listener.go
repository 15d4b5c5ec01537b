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

// Package server owns the listening sockets and per-connection state
// machines, and drives them with a single-threaded, readiness-multiplexed
// event loop built on golang.org/x/sys/unix.Poll.
package server

import (
	"fmt"

	"golang.org/x/sys/unix"

	libcfg "github.com/sabouaram/webserv/internal/config"
)

// Listener owns one bound, listening, non-blocking socket for a (host,
// port) endpoint.
type Listener struct {
	FD   int
	Host string
	Port int
}

// NewListener creates a TCP socket, applies SO_REUSEADDR (and SO_REUSEPORT
// where available), binds, switches to non-blocking, and starts listening
// with a backlog of 128.
func NewListener(ep libcfg.Endpoint) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("server: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("server: SO_REUSEADDR: %w", err)
	}

	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1) // best-effort, not all OSes support it

	addr, err := hostToSockaddr(ep.Host, ep.Port)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("server: bind %s:%d: %w", ep.Host, ep.Port, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("server: set nonblocking: %w", err)
	}

	if err := unix.Listen(fd, 128); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("server: listen: %w", err)
	}

	return &Listener{FD: fd, Host: ep.Host, Port: ep.Port}, nil
}

// Accept performs one non-blocking accept. It returns (0, nil, false, nil)
// when the call would block, and sets the accepted fd non-blocking
// explicitly to tolerate OSes that don't inherit the listener's flag.
func (l *Listener) Accept() (fd int, peer string, ok bool, err error) {
	nfd, sa, aerr := unix.Accept(l.FD)
	if aerr != nil {
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
			return 0, "", false, nil
		}

		return 0, "", false, aerr
	}

	if serr := unix.SetNonblock(nfd, true); serr != nil {
		_ = unix.Close(nfd)
		return 0, "", false, serr
	}

	return nfd, peerString(sa), true, nil
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.FD)
}

func peerString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	default:
		return "unknown"
	}
}

func hostToSockaddr(host string, port int) (unix.Sockaddr, error) {
	addr := &unix.SockaddrInet4{Port: port}

	if host == "" || host == "0.0.0.0" {
		return addr, nil
	}

	ip, err := parseIPv4(host)
	if err != nil {
		return nil, fmt.Errorf("server: invalid host %q: %w", host, err)
	}

	addr.Addr = ip

	return addr, nil
}

func parseIPv4(host string) ([4]byte, error) {
	var out [4]byte

	var parts [4]int
	n, err := fmt.Sscanf(host, "%d.%d.%d.%d", &parts[0], &parts[1], &parts[2], &parts[3])

	if err != nil || n != 4 {
		return out, fmt.Errorf("not a dotted-quad IPv4 address")
	}

	for i, p := range parts {
		if p < 0 || p > 255 {
			return out, fmt.Errorf("octet out of range")
		}

		out[i] = byte(p)
	}

	return out, nil
}
