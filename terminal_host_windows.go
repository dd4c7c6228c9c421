//go:build windows

package main

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// TerminalHost puts the console into raw mode and feeds its bytes to a
// TerminalKeys decoder. Only instantiated in main.go for interactive use.
type TerminalHost struct {
	keys         *TerminalKeys
	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	fd           int
	oldTermState *term.State
}

func NewTerminalHost(keys *TerminalKeys) *TerminalHost {
	return &TerminalHost{
		keys:   keys,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start sets stdin to raw mode and begins decoding keys.
// Call Stop() to restore stdin.
func (h *TerminalHost) Start() error {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		close(h.done)
		return fmt.Errorf("terminal_host: failed to set raw mode: %w", err)
	}
	h.oldTermState = oldState

	go func() {
		defer close(h.done)
		h.keys.Run(os.Stdin, h.stopCh)
	}()
	return nil
}

// Stop restores the console. A read blocked on stdin is abandoned; the
// decoder exits on stop regardless.
func (h *TerminalHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}
