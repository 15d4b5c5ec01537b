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
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	libcfg "github.com/sabouaram/webserv/internal/config"
	libhttp "github.com/sabouaram/webserv/internal/httpmsg"
	logint "github.com/sabouaram/webserv/logger"
)

// pollTimeoutMillis bounds each readiness wait; on timeout the loop runs
// the idle reaper before re-entering.
const pollTimeoutMillis = 1000

// Dispatch resolves a completed Request against Config to a Response. The
// event loop is decoupled from internal/handler through this function
// type so this package has no import-cycle dependency on routing/handler.
type Dispatch func(req *libhttp.Request, srv *libcfg.Server) *libhttp.Response

// Loop is the event-driven connection manager: it owns every Listener and
// every Connection (keyed by fd) and drives them from a single poll()
// wait loop.
type Loop struct {
	cfg       *libcfg.Config
	dispatch  Dispatch
	log       logint.Logger
	listeners []*Listener
	conns     map[int]*Connection
	running   atomic.Bool
}

// New builds a Loop bound to every distinct (host, port) endpoint in cfg.
func New(cfg *libcfg.Config, dispatch Dispatch, log logint.Logger) (*Loop, error) {
	l := &Loop{
		cfg:      cfg,
		dispatch: dispatch,
		log:      log,
		conns:    make(map[int]*Connection),
	}
	l.running.Store(true)

	for _, ep := range cfg.Endpoints() {
		ls, err := NewListener(ep)
		if err != nil {
			l.closeListeners()
			return nil, err
		}

		l.listeners = append(l.listeners, ls)
	}

	return l, nil
}

// Stop flips the running flag; the loop exits at the top of its next
// iteration.
func (l *Loop) Stop() {
	l.running.Store(false)
}

func (l *Loop) isRunning() bool {
	return l.running.Load()
}

// Run drives listeners and connections until Stop is called. Every
// iteration rebuilds the poll fd set from scratch (O(N) in connection
// count); the loop is free to maintain it incrementally, but correctness
// does not depend on it.
func (l *Loop) Run() error {
	listenerIndex := make(map[int]*Listener, len(l.listeners))

	for _, ls := range l.listeners {
		listenerIndex[ls.FD] = ls
	}

	for l.isRunning() {
		fds := l.buildPollSet(listenerIndex)

		n, err := unix.Poll(fds, pollTimeoutMillis)

		if err != nil {
			if err == unix.EINTR {
				continue
			}

			if l.log != nil {
				l.log.Error("poll failed", err)
			}

			continue
		}

		if n == 0 {
			l.reapIdle()
			continue
		}

		l.dispatchReady(fds, listenerIndex)
		l.closeMarked()
	}

	l.closeAll()

	return nil
}

func (l *Loop) buildPollSet(listenerIndex map[int]*Listener) []unix.PollFd {
	fds := make([]unix.PollFd, 0, len(l.listeners)+len(l.conns))

	for _, ls := range l.listeners {
		fds = append(fds, unix.PollFd{Fd: int32(ls.FD), Events: unix.POLLIN})
	}

	for fd, c := range l.conns {
		readable, writable := c.Interest()

		var ev int16

		if readable {
			ev |= unix.POLLIN
		}

		if writable {
			ev |= unix.POLLOUT
		}

		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: ev})
	}

	return fds
}

func (l *Loop) dispatchReady(fds []unix.PollFd, listenerIndex map[int]*Listener) {
	for _, pf := range fds {
		if pf.Revents == 0 {
			continue
		}

		fd := int(pf.Fd)

		if ls, ok := listenerIndex[fd]; ok {
			l.acceptLoop(ls)
			continue
		}

		c, ok := l.conns[fd]
		if !ok {
			continue
		}

		if pf.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			c.shouldClose = true
			c.state = Closing

			continue
		}

		if pf.Revents&unix.POLLIN != 0 {
			c.OnReadable(l.dispatch)
		}

		if pf.Revents&unix.POLLOUT != 0 && c.State() == WritingResponse {
			c.OnWritable()
		}
	}
}

// acceptLoop accepts in a tight loop until WouldBlock, resolving each
// accepted fd to the default Server for the listener's (host, port).
func (l *Loop) acceptLoop(ls *Listener) {
	for {
		fd, peer, ok, err := ls.Accept()
		if err != nil {
			if l.log != nil {
				l.log.Error("accept failed", err)
			}

			return
		}

		if !ok {
			return
		}

		srv := l.cfg.ServerFor(ls.Host, ls.Port, "")

		l.conns[fd] = NewConnection(fd, peer, srv)
	}
}

func (l *Loop) reapIdle() {
	now := time.Now()

	for fd, c := range l.conns {
		if c.Idle(now) {
			_ = c.Close()
			delete(l.conns, fd)
		}
	}
}

func (l *Loop) closeMarked() {
	for fd, c := range l.conns {
		if c.ShouldClose() {
			_ = c.Close()
			delete(l.conns, fd)
		}
	}
}

func (l *Loop) closeAll() {
	for fd, c := range l.conns {
		_ = c.Close()
		delete(l.conns, fd)
	}

	l.closeListeners()
}

func (l *Loop) closeListeners() {
	for _, ls := range l.listeners {
		_ = ls.Close()
	}
}
