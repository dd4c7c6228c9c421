// keyboard_terminal.go - Key events from a raw byte stream with hold-timeout release

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	DEFAULT_HOLD_TIMEOUT = 500 * time.Millisecond
	ESC_SEQUENCE_WINDOW  = 25 * time.Millisecond // A lone Esc waits this long for a follow-up byte

	termCtrlC = 0x03
	termCtrlD = 0x04
	termEsc   = 0x1B
)

var ErrUndecodableKey = errors.New("undecodable key byte")

type escState uint8

const (
	escNone escState = iota
	escPending  // Esc seen, waiting for the next byte
	escSequence // Inside a CSI or SS3 sequence
)

// TerminalKeys turns a terminal byte stream into press/release events.
// Terminals report no key-up, so a key counts as held while auto-repeat
// keeps re-sending it, and is released once hold passes without a repeat.
type TerminalKeys struct {
	events chan KeyEvent
	quit   chan struct{}
	hold   time.Duration

	quitOnce sync.Once
}

func NewTerminalKeys(hold time.Duration) *TerminalKeys {
	if hold <= 0 {
		hold = DEFAULT_HOLD_TIMEOUT
	}
	return &TerminalKeys{
		events: make(chan KeyEvent, keyEventQueue),
		quit:   make(chan struct{}),
		hold:   hold,
	}
}

func (t *TerminalKeys) Events() <-chan KeyEvent { return t.events }

// Quit is closed on Ctrl+C, Ctrl+D or a lone Esc. Esc followed by more
// bytes within ESC_SEQUENCE_WINDOW is a navigation or function key.
func (t *TerminalKeys) Quit() <-chan struct{} { return t.quit }

func (t *TerminalKeys) signalQuit() {
	t.quitOnce.Do(func() { close(t.quit) })
}

// Run reads r until it fails, stop is closed, or a quit key arrives. Keys
// still held are released and the event channel is closed on return.
func (t *TerminalKeys) Run(r io.Reader, stop <-chan struct{}) {
	bytesCh := make(chan byte, 64)
	go func() {
		defer close(bytesCh)
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case bytesCh <- buf[0]:
				case <-stop:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	held := make(map[KeyID]time.Time)
	escTimer := time.NewTimer(ESC_SEQUENCE_WINDOW)
	escTimer.Stop()
	defer escTimer.Stop()
	esc := escNone
	ticker := time.NewTicker(t.hold / 4)
	defer ticker.Stop()
	defer close(t.events)
	defer func() {
		for k := range held {
			t.emit(Release(k), stop)
		}
	}()

	for {
		select {
		case <-stop:
			return
		case <-t.quit:
			return
		case b, ok := <-bytesCh:
			if !ok {
				return
			}
			if b == termCtrlC || b == termCtrlD {
				t.signalQuit()
				return
			}
			switch esc {
			case escPending:
				escTimer.Stop()
				if b == '[' || b == 'O' {
					esc = escSequence
					escTimer.Reset(ESC_SEQUENCE_WINDOW)
					continue
				}
				// Alt-modified key: Esc prefix plus the key byte.
				esc = escNone
				t.emit(KeyEvent{Err: fmt.Errorf("%w: ESC 0x%02X", ErrUndecodableKey, b)}, stop)
				continue
			case escSequence:
				if b >= 0x40 && b <= 0x7E {
					escTimer.Stop()
					esc = escNone
					t.emit(KeyEvent{Err: fmt.Errorf("%w: escape sequence ending 0x%02X", ErrUndecodableKey, b)}, stop)
				}
				continue
			}
			if b == termEsc {
				esc = escPending
				escTimer.Reset(ESC_SEQUENCE_WINDOW)
				continue
			}
			t.handleByte(b, held, stop)
		case <-escTimer.C:
			switch esc {
			case escPending:
				t.signalQuit()
				return
			case escSequence:
				esc = escNone
				t.emit(KeyEvent{Err: fmt.Errorf("%w: truncated escape sequence", ErrUndecodableKey)}, stop)
			}
		case now := <-ticker.C:
			for k, last := range held {
				if now.Sub(last) >= t.hold {
					delete(held, k)
					t.emit(Release(k), stop)
				}
			}
		}
	}
}

// emit gives up once stop closes so a departed consumer cannot wedge Run.
func (t *TerminalKeys) emit(ev KeyEvent, stop <-chan struct{}) {
	select {
	case t.events <- ev:
	case <-stop:
	}
}

func (t *TerminalKeys) handleByte(b byte, held map[KeyID]time.Time, stop <-chan struct{}) {
	if b < 0x20 || b > 0x7E {
		t.emit(KeyEvent{Err: fmt.Errorf("%w: 0x%02X", ErrUndecodableKey, b)}, stop)
		return
	}
	k := KeyID(b)
	if _, ok := held[k]; !ok {
		t.emit(Press(k), stop)
	}
	held[k] = time.Now()
}
