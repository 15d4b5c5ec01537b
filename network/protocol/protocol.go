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

// Package protocol identifies the transport protocol of a network address
// (tcp, udp, unix, unixgram) independently of net.Dial's string constants.
package protocol

import "strings"

// NetworkProtocol is a transport protocol usable with net.Dial.
type NetworkProtocol uint8

const (
	NetworkEmpty NetworkProtocol = iota
	NetworkTCP
	NetworkUDP
	NetworkUnix
	NetworkUnixGram
)

// Parse maps a net.Dial-style network string ("tcp", "tcp4", "udp6", "unix", ...)
// to a NetworkProtocol. An unrecognized value returns NetworkEmpty.
func Parse(s string) NetworkProtocol {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp", "tcp4", "tcp6":
		return NetworkTCP
	case "udp", "udp4", "udp6":
		return NetworkUDP
	case "unix":
		return NetworkUnix
	case "unixgram":
		return NetworkUnixGram
	default:
		return NetworkEmpty
	}
}

// Code returns a short uppercase identifier for the protocol, suitable for
// use as a map key or log field alongside an address.
func (n NetworkProtocol) Code() string {
	switch n {
	case NetworkTCP:
		return "TCP"
	case NetworkUDP:
		return "UDP"
	case NetworkUnix:
		return "UNIX"
	case NetworkUnixGram:
		return "UNIXGRAM"
	default:
		return "LOCAL"
	}
}

// String implements fmt.Stringer, returning the canonical net.Dial network name.
func (n NetworkProtocol) String() string {
	switch n {
	case NetworkTCP:
		return "tcp"
	case NetworkUDP:
		return "udp"
	case NetworkUnix:
		return "unix"
	case NetworkUnixGram:
		return "unixgram"
	default:
		return ""
	}
}
