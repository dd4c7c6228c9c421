package main

import (
	"errors"
	"io"
	"testing"
	"time"
)

func nextEvent(t *testing.T, ch <-chan KeyEvent) KeyEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a key event")
	}
	return KeyEvent{}
}

func startTerminalKeys(hold time.Duration) (*TerminalKeys, *io.PipeWriter, chan struct{}, chan struct{}) {
	pr, pw := io.Pipe()
	keys := NewTerminalKeys(hold)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keys.Run(pr, stop)
	}()
	return keys, pw, stop, done
}

func TestTerminalKeys_PressThenHoldRelease(t *testing.T) {
	keys, pw, stop, done := startTerminalKeys(40 * time.Millisecond)
	defer func() { close(stop); pw.Close(); <-done }()

	pw.Write([]byte("a"))
	if ev := nextEvent(t, keys.Events()); ev != Press('a') {
		t.Fatalf("expected press a, got %+v", ev)
	}
	// Auto-repeat inside the hold window must not retrigger.
	pw.Write([]byte("a"))
	pw.Write([]byte("a"))
	if ev := nextEvent(t, keys.Events()); ev != Release('a') {
		t.Fatalf("expected release a after the hold timeout, got %+v", ev)
	}
}

func TestTerminalKeys_UndecodableByte(t *testing.T) {
	keys, pw, stop, done := startTerminalKeys(time.Second)
	defer func() { close(stop); pw.Close(); <-done }()

	pw.Write([]byte{0x01})
	ev := nextEvent(t, keys.Events())
	if !errors.Is(ev.Err, ErrUndecodableKey) {
		t.Fatalf("expected a decode error event, got %+v", ev)
	}
	pw.Write([]byte("Q"))
	if ev := nextEvent(t, keys.Events()); ev != Press('Q') {
		t.Fatalf("stream should continue after a bad byte, got %+v", ev)
	}
}

func TestTerminalKeys_EscapeQuitsAndReleasesHeld(t *testing.T) {
	keys, pw, stop, done := startTerminalKeys(time.Second)
	defer func() { close(stop); pw.Close(); <-done }()

	pw.Write([]byte("z"))
	nextEvent(t, keys.Events())
	pw.Write([]byte{termEsc})
	select {
	case <-keys.Quit():
	case <-time.After(2 * time.Second):
		t.Fatal("escape should signal quit")
	}
	if ev := nextEvent(t, keys.Events()); ev != Release('z') {
		t.Fatalf("held key should be released on exit, got %+v", ev)
	}
	if _, ok := <-keys.Events(); ok {
		t.Fatal("event channel should close after quit")
	}
}

func TestTerminalKeys_ArrowKeySequenceIsOneDecodeError(t *testing.T) {
	keys, pw, stop, done := startTerminalKeys(time.Second)
	defer func() { close(stop); pw.Close(); <-done }()

	pw.Write([]byte("\x1b[A"))
	pw.Write([]byte("q"))
	ev := nextEvent(t, keys.Events())
	if !errors.Is(ev.Err, ErrUndecodableKey) {
		t.Fatalf("expected one decode error for the arrow key, got %+v", ev)
	}
	if ev := nextEvent(t, keys.Events()); ev != Press('q') {
		t.Fatalf("expected press q after the sequence, got %+v", ev)
	}
	select {
	case <-keys.Quit():
		t.Fatal("an arrow key must not quit")
	default:
	}
}

func TestTerminalKeys_ParameterisedSequence(t *testing.T) {
	keys, pw, stop, done := startTerminalKeys(time.Second)
	defer func() { close(stop); pw.Close(); <-done }()

	// Ctrl+Right, then an SS3 F1.
	pw.Write([]byte("\x1b[1;5C\x1bOPw"))
	for range 2 {
		if ev := nextEvent(t, keys.Events()); !errors.Is(ev.Err, ErrUndecodableKey) {
			t.Fatalf("expected a decode error, got %+v", ev)
		}
	}
	if ev := nextEvent(t, keys.Events()); ev != Press('w') {
		t.Fatalf("expected press w, got %+v", ev)
	}
}

func TestTerminalKeys_CtrlCQuits(t *testing.T) {
	keys, pw, stop, done := startTerminalKeys(time.Second)
	defer func() { close(stop); pw.Close(); <-done }()

	pw.Write([]byte{termCtrlC})
	select {
	case <-keys.Quit():
	case <-time.After(2 * time.Second):
		t.Fatal("ctrl+c should signal quit")
	}
}

func TestTerminalKeys_ReaderEOF(t *testing.T) {
	keys, pw, stop, done := startTerminalKeys(time.Second)
	defer close(stop)
	pw.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run should return when the reader ends")
	}
	if _, ok := <-keys.Events(); ok {
		t.Fatal("event channel should be closed")
	}
}
