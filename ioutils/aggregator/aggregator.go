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

// Package aggregator buffers writes from many callers behind a single
// periodically-flushed io.Writer, so concurrent log hooks don't each take
// their own lock on the destination file.
package aggregator

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosedResources is returned by Write once the aggregator has been closed.
var ErrClosedResources = errors.New("aggregator: closed resources")

// Config describes the aggregator's flush behavior.
type Config struct {
	// AsyncTimer is stored but not read; only SyncTimer drives periodic flushes.
	AsyncTimer time.Duration
	// AsyncMax, if non-zero, forces a flush once the buffer reaches this many bytes.
	AsyncMax int
	// AsyncFct is stored but never called.
	AsyncFct func(ctx context.Context)
	// SyncTimer is the interval of the periodic flush goroutine.
	SyncTimer time.Duration
	// SyncFct is called on every tick of SyncTimer, before the buffer is flushed.
	SyncFct func(ctx context.Context)
	// BufWriter is the initial capacity of the internal buffer.
	BufWriter int
	// FctWriter receives the buffered bytes on every flush.
	FctWriter func(p []byte) (n int, err error)
}

// Aggregator is a concurrency-safe io.Writer that batches writes and flushes
// them to a destination function on a timer.
type Aggregator interface {
	Write(p []byte) (n int, err error)
	Start(ctx context.Context) error
	Close() error
	SetLoggerError(fct func(msg string, err ...error))
}

type agg struct {
	mut    sync.Mutex
	cfg    Config
	buf    *bytes.Buffer
	cancel context.CancelFunc
	closed bool
	onErr  func(msg string, err ...error)
}

// New creates an Aggregator governed by cfg. The returned instance is not
// running until Start is called.
func New(_ context.Context, cfg Config) (Aggregator, error) {
	if cfg.SyncTimer <= 0 {
		cfg.SyncTimer = time.Second
	}

	if cfg.BufWriter <= 0 {
		cfg.BufWriter = 4096
	}

	if cfg.FctWriter == nil {
		return nil, errors.New("aggregator: FctWriter is required")
	}

	return &agg{
		cfg: cfg,
		buf: bytes.NewBuffer(make([]byte, 0, cfg.BufWriter)),
	}, nil
}

func (a *agg) SetLoggerError(fct func(msg string, err ...error)) {
	a.mut.Lock()
	defer a.mut.Unlock()
	a.onErr = fct
}

func (a *agg) logError(msg string, err error) {
	if a.onErr != nil {
		a.onErr(msg, err)
	}
}

func (a *agg) Write(p []byte) (int, error) {
	a.mut.Lock()
	defer a.mut.Unlock()

	if a.closed {
		return 0, ErrClosedResources
	}

	n, err := a.buf.Write(p)

	if a.cfg.AsyncMax > 0 && a.buf.Len() >= a.cfg.AsyncMax {
		a.flushLocked()
	}

	return n, err
}

func (a *agg) flushLocked() {
	if a.buf.Len() == 0 {
		return
	}

	if _, err := a.cfg.FctWriter(a.buf.Bytes()); err != nil {
		a.logError("aggregator: flush failed", err)
	}

	a.buf.Reset()
}

// Start launches the periodic flush goroutine. It returns immediately; the
// goroutine stops when ctx is canceled or Close is called.
func (a *agg) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	a.mut.Lock()
	a.cancel = cancel
	a.mut.Unlock()

	go a.run(ctx)

	return nil
}

func (a *agg) run(ctx context.Context) {
	t := time.NewTicker(a.cfg.SyncTimer)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			a.mut.Lock()
			a.flushLocked()
			a.mut.Unlock()
			return

		case <-t.C:
			a.mut.Lock()
			if a.cfg.SyncFct != nil {
				a.cfg.SyncFct(ctx)
			}
			a.flushLocked()
			a.mut.Unlock()
		}
	}
}

func (a *agg) Close() error {
	a.mut.Lock()
	if a.closed {
		a.mut.Unlock()
		return nil
	}

	a.closed = true
	cancel := a.cancel
	a.flushLocked()
	a.mut.Unlock()

	if cancel != nil {
		cancel()
	}

	return nil
}
