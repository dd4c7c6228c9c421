//go:build !windows

package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// TerminalHost puts stdin into raw mode and feeds its bytes to a
// TerminalKeys decoder. Only instantiated in main.go for interactive use.
type TerminalHost struct {
	keys         *TerminalKeys
	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	fd           int
	nonblockSet  bool
	oldTermState *term.State
}

func NewTerminalHost(keys *TerminalKeys) *TerminalHost {
	return &TerminalHost{
		keys:   keys,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// nonblockReader polls a non-blocking fd so the read loop can notice Stop.
type nonblockReader struct {
	fd     int
	stopCh <-chan struct{}
}

func (r nonblockReader) Read(p []byte) (int, error) {
	for {
		select {
		case <-r.stopCh:
			return 0, os.ErrClosed
		default:
		}
		n, err := syscall.Read(r.fd, p)
		if n > 0 {
			return n, nil
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || (err == nil && n == 0) {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		return 0, err
	}
}

// Start sets stdin to raw non-blocking mode and begins decoding keys.
// Call Stop() to restore stdin.
func (h *TerminalHost) Start() error {
	h.fd = int(os.Stdin.Fd())

	// Raw mode: no echo, no line buffering, Ctrl+C arrives as a byte.
	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		close(h.done)
		return fmt.Errorf("terminal_host: failed to set raw mode: %w", err)
	}
	h.oldTermState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
		close(h.done)
		return fmt.Errorf("terminal_host: failed to set nonblocking stdin: %w", err)
	}
	h.nonblockSet = true

	go func() {
		defer close(h.done)
		h.keys.Run(nonblockReader{fd: h.fd, stopCh: h.stopCh}, h.stopCh)
	}()
	return nil
}

// Stop terminates the reader and restores stdin to its previous mode.
func (h *TerminalHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}
