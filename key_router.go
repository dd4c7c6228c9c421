// key_router.go - Single-consumer delivery of key events to the voice pool

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
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// KeyEvent is one decoded keyboard transition. A source that fails to decode
// a raw event sends it with Err set instead of dropping it silently.
type KeyEvent struct {
	Key    KeyID
	Action KeyAction
	Err    error
}

func Press(k KeyID) KeyEvent   { return KeyEvent{Key: k, Action: KeyPress} }
func Release(k KeyID) KeyEvent { return KeyEvent{Key: k, Action: KeyRelease} }

// KeySource produces key events. The channel is closed when the source ends.
type KeySource interface {
	Events() <-chan KeyEvent
}

type Dispatcher interface {
	Dispatch(key KeyID, action KeyAction) bool
	Lookup(key KeyID) (ScaleStep, bool)
}

type KeyRouter struct {
	pool       Dispatcher
	logger     *slog.Logger
	last       atomic.Pointer[ScaleStep]
	dispatched atomic.Uint64
	dropped    atomic.Uint64
}

func NewKeyRouter(pool Dispatcher, logger *slog.Logger) *KeyRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyRouter{pool: pool, logger: logger}
}

// Run consumes events in arrival order until ctx is cancelled or the channel
// closes. Cancellation is only observed between events, so a dispatch in
// progress always completes.
func (r *KeyRouter) Run(ctx context.Context, events <-chan KeyEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.handle(ev)
		}
	}
}

func (r *KeyRouter) handle(ev KeyEvent) {
	if ev.Err != nil {
		r.dropped.Add(1)
		r.logger.Warn("key event decode failed", "err", ev.Err)
		return
	}
	if !r.pool.Dispatch(ev.Key, ev.Action) {
		r.dropped.Add(1)
		return
	}
	r.dispatched.Add(1)
	if ev.Action == KeyPress {
		if step, ok := r.pool.Lookup(ev.Key); ok {
			r.last.Store(&step)
		}
	}
}

// LastPlayed is the most recently pressed mapped step.
func (r *KeyRouter) LastPlayed() (ScaleStep, bool) {
	if s := r.last.Load(); s != nil {
		return *s, true
	}
	return ScaleStep{}, false
}

func (r *KeyRouter) LastPlayedLabel() string {
	s, ok := r.LastPlayed()
	if !ok {
		return "Key: - Frequency: -"
	}
	return fmt.Sprintf("Key: %s Frequency: %.2f", s.Key, s.Frequency)
}

func (r *KeyRouter) Dispatched() uint64 { return r.dispatched.Load() }
func (r *KeyRouter) Dropped() uint64    { return r.dropped.Load() }
