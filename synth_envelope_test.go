// synth_envelope_test.go - ADSR segment timing and parameter publication

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
	"sync"
	"testing"
)

const testEnvRate = 1000.0

func runEnvelope(e *envelope, p *EnvelopeParams, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = e.step(p, 1/testEnvRate)
	}
	return out
}

func TestEnvelope_Segments(t *testing.T) {
	p := DefaultEnvelope()
	var e envelope
	e.trigger()

	attack := runEnvelope(&e, &p, 11)
	peak := false
	for i := 1; i < len(attack); i++ {
		if attack[i] == 1 {
			peak = true
			break
		}
		if attack[i] < attack[i-1] {
			t.Fatalf("attack not monotonic at %d", i)
		}
	}
	if !peak || e.stage == envAttack {
		t.Fatalf("expected peak within 10 ms attack, got %v stage %s", attack, e.stage)
	}

	runEnvelope(&e, &p, 12)
	if e.stage != envSustain {
		t.Fatalf("expected sustain after decay, got %s", e.stage)
	}
	if got := runEnvelope(&e, &p, 100)[99]; got != float32(DEFAULT_SUSTAIN) {
		t.Fatalf("expected sustain level %v, got %v", DEFAULT_SUSTAIN, got)
	}

	e.release()
	runEnvelope(&e, &p, 12)
	if e.stage != envIdle || e.level != 0 {
		t.Fatalf("expected idle after release, got %s at %v", e.stage, e.level)
	}
}

func TestEnvelope_ZeroTimes(t *testing.T) {
	p := EnvelopeParams{Sustain: 0.5, Level: 1}
	var e envelope
	e.trigger()
	out := runEnvelope(&e, &p, 3)
	if out[0] != 1 || out[1] != 0.5 || out[2] != 0.5 {
		t.Fatalf("instant segments: got %v", out)
	}
	e.release()
	if got := runEnvelope(&e, &p, 1)[0]; got != 0 || e.stage != envIdle {
		t.Fatalf("instant release: got %v in %s", got, e.stage)
	}
}

func TestEnvelope_ReleaseFromAttack(t *testing.T) {
	p := DefaultEnvelope()
	var e envelope
	e.trigger()
	runEnvelope(&e, &p, 5)
	e.release()
	if e.releaseFrom <= 0 || e.releaseFrom >= 1 {
		t.Fatalf("release should start from the current attack level, got %v", e.releaseFrom)
	}
	runEnvelope(&e, &p, 12)
	if e.stage != envIdle {
		t.Fatalf("expected idle, got %s", e.stage)
	}
}

func TestEnvelope_ReleaseWhileIdle(t *testing.T) {
	var e envelope
	e.release()
	if e.stage != envIdle {
		t.Fatalf("release on an idle envelope must stay idle, got %s", e.stage)
	}
}

func TestEnvelopeHandle_Update(t *testing.T) {
	h := NewEnvelopeHandle(DefaultEnvelope())
	got := h.Update(func(p *EnvelopeParams) { p.Attack = 2 })
	if got.Attack != 2 || h.Load().Attack != 2 {
		t.Fatalf("update not published: %+v", h.Load())
	}
	if h.Load().Release != DEFAULT_RELEASE {
		t.Fatal("update must keep untouched fields")
	}
}

// Readers must only ever observe whole records. Run with -race.
func TestEnvelopeHandle_ConcurrentReaders(t *testing.T) {
	h := NewEnvelopeHandle(DefaultEnvelope())
	var wg sync.WaitGroup
	var mu sync.Mutex
	wg.Go(func() {
		for i := range 2000 {
			v := float64(i)
			mu.Lock()
			h.Update(func(p *EnvelopeParams) { p.Attack, p.Decay = v, v })
			mu.Unlock()
		}
	})
	for range 4 {
		wg.Go(func() {
			for range 2000 {
				p := h.Load()
				if p.Attack != p.Decay && p.Attack != DEFAULT_ATTACK {
					t.Errorf("torn record: %+v", p)
					return
				}
			}
		})
	}
	wg.Wait()
}
