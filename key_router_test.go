package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordedEvent struct {
	key    KeyID
	action KeyAction
}

// recordingPool is a Dispatcher that maps only lower-case letters.
type recordingPool struct {
	mu  sync.Mutex
	got []recordedEvent
}

func (p *recordingPool) Dispatch(k KeyID, a KeyAction) bool {
	if k < 'a' || k > 'z' {
		return false
	}
	p.mu.Lock()
	p.got = append(p.got, recordedEvent{k, a})
	p.mu.Unlock()
	return true
}

func (p *recordingPool) Lookup(k KeyID) (ScaleStep, bool) {
	return ScaleStep{Index: int(k - 'a'), Key: k, Frequency: float64(k)}, true
}

func (p *recordingPool) events() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.got...)
}

func TestKeyRouter_PreservesOrder(t *testing.T) {
	pool := &recordingPool{}
	r := NewKeyRouter(pool, quietLogger())
	ch := make(chan KeyEvent, 16)
	want := []KeyEvent{Press('a'), Press('b'), Release('a'), Press('a'), Release('b'), Release('a')}
	for _, ev := range want {
		ch <- ev
	}
	close(ch)
	if err := r.Run(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	got := pool.events()
	if len(got) != len(want) {
		t.Fatalf("expected %d dispatches, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].key != want[i].Key || got[i].action != want[i].Action {
			t.Fatalf("event %d: got %v %s, want %v %s", i, got[i].key, got[i].action, want[i].Key, want[i].Action)
		}
	}
	if r.Dispatched() != uint64(len(want)) {
		t.Fatalf("dispatched counter %d", r.Dispatched())
	}
}

func TestKeyRouter_DecodeErrorContinues(t *testing.T) {
	pool := &recordingPool{}
	r := NewKeyRouter(pool, quietLogger())
	ch := make(chan KeyEvent, 4)
	ch <- KeyEvent{Err: errors.New("garbage")}
	ch <- Press('c')
	ch <- Press('!')
	close(ch)
	if err := r.Run(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	if got := pool.events(); len(got) != 1 || got[0].key != 'c' {
		t.Fatalf("expected only 'c' dispatched, got %v", got)
	}
	if r.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", r.Dropped())
	}
	if s, ok := r.LastPlayed(); !ok || s.Key != 'c' {
		t.Fatalf("last played %+v %v", s, ok)
	}
}

func TestKeyRouter_StopsOnCancel(t *testing.T) {
	r := NewKeyRouter(&recordingPool{}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, make(chan KeyEvent)) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("router did not exit after cancel")
	}
}

func TestKeyRouter_LastPlayedLabel(t *testing.T) {
	r := NewKeyRouter(&recordingPool{}, quietLogger())
	if got := r.LastPlayedLabel(); got != "Key: - Frequency: -" {
		t.Fatalf("empty label %q", got)
	}
	r.handle(Press('e'))
	r.handle(Release('e'))
	if got := r.LastPlayedLabel(); got != "Key: e Frequency: 101.00" {
		t.Fatalf("label %q", got)
	}
}
